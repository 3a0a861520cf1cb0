package agent

import "coxswain/session"

// ReductionPolicy narrows the message window sent to a backend once the
// store crosses its high-water mark. The store's log is append-only;
// policies never mutate it, they only choose what the next request carries.
type ReductionPolicy func(msgs []session.Message, store *session.Store) []session.Message

// ReduceOldestFirst keeps the first user message for task framing and drops
// the oldest remaining messages until the estimated size fits under the
// high-water mark. The cut never lands mid tool exchange: a window starting
// on a tool-role message would orphan results from their calls, so the cut
// advances to the next user or assistant message.
func ReduceOldestFirst(msgs []session.Message, store *session.Store) []session.Message {
	if len(msgs) < 3 {
		return msgs
	}

	limits := store.Limits()
	target := int(float64(limits.ContextTokens) * limits.HighWater)

	estimate := func(window []session.Message) int {
		total := 0
		for _, m := range window {
			total += store.EstimateTokens(m.Content)
			if m.Result != nil {
				total += store.EstimateTokens(m.Result.Output)
			}
			for _, c := range m.ToolCalls {
				total += store.EstimateTokens(string(c.Arguments))
			}
		}
		return total
	}

	head := msgs[:1] // first user message stays
	cut := 1
	for cut < len(msgs)-1 && estimate(head)+estimate(msgs[cut:]) > target {
		cut++
	}

	// Do not start the window on an orphaned tool result.
	for cut < len(msgs)-1 && msgs[cut].Role == session.RoleTool {
		cut++
	}

	if cut == 1 {
		return msgs
	}
	out := make([]session.Message, 0, 1+len(msgs)-cut)
	out = append(out, head...)
	out = append(out, msgs[cut:]...)
	return out
}
