// Package agent drives the conversational loop: it sends the session to a
// model backend, interprets the response as terminal text or tool calls,
// executes tools, feeds results back, and repeats until completion, the
// turn cap, or an unrecoverable failure. It owns the ordered fallback list
// of backends.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coxswain/event"
	"coxswain/provider"
	"coxswain/session"
	"coxswain/tool"
)

// State is the orchestrator's lifecycle position.
type State string

const (
	StateIdle                State = "idle"
	StateSendingRequest      State = "sending_request"
	StateAwaitingToolResults State = "awaiting_tool_results"
	StateCompleted           State = "completed"
	StateAbortedMaxTurns     State = "aborted_max_turns"
	StateAbortedFatal        State = "aborted_fatal"
)

// DefaultMaxTurns caps request/tool cycles per Run.
const DefaultMaxTurns = 8

// DefaultDrainGrace bounds how long cancellation waits for in-flight tools
// before their results are discarded.
const DefaultDrainGrace = 2 * time.Second

// Config is the immutable orchestrator configuration.
type Config struct {
	MaxTurns     int
	SystemPrompt string
	DrainGrace   time.Duration

	// Reduce is applied to the message log before each request once the
	// store signals it has crossed its high-water mark. Nil uses
	// ReduceOldestFirst. The log itself is never mutated; reduction only
	// narrows what a request carries.
	Reduce ReductionPolicy
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxTurns:   DefaultMaxTurns,
		DrainGrace: DefaultDrainGrace,
	}
}

// Outcome is the final report of one Run. The session store retains the full
// message log in every terminal state, including the aborted ones.
type Outcome struct {
	State     State
	Turns     int
	FinalText string
	Usage     provider.Usage
	Reason    string // populated for aborted states
}

// Orchestrator runs sessions to completion over an ordered backend list.
type Orchestrator struct {
	cfg      Config
	store    *session.Store
	backends []provider.Adapter
	exec     *tool.Executor
	bus      *event.Bus

	mu     sync.Mutex
	state  State
	active int // index of the backend currently in use; only advances
	turns  int
}

// New creates an orchestrator. The backend list must not be empty; its order
// is the fallback order.
func New(cfg Config, store *session.Store, backends []provider.Adapter, exec *tool.Executor, bus *event.Bus) (*Orchestrator, error) {
	if len(backends) == 0 {
		return nil, errors.New("agent: at least one backend is required")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.DrainGrace <= 0 {
		cfg.DrainGrace = DefaultDrainGrace
	}
	if cfg.Reduce == nil {
		cfg.Reduce = ReduceOldestFirst
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		backends: backends,
		exec:     exec,
		bus:      bus,
		state:    StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Turns returns completed request/tool cycles.
func (o *Orchestrator) Turns() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.turns
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run drives one user input to a terminal state. A non-nil error is only
// returned for fatal conditions; the Outcome always describes how the
// session ended.
func (o *Orchestrator) Run(ctx context.Context, userInput string) (*Outcome, error) {
	o.store.Append(session.NewUserMessage(userInput))

	var usage provider.Usage

	for {
		if err := ctx.Err(); err != nil {
			return o.fatal(ctx, usage, "cancelled", err)
		}

		o.setState(StateSendingRequest)
		o.publish(ctx, event.TurnStarted, map[string]any{"turn": o.Turns() + 1})

		resp, err := o.sendWithFallback(ctx, o.buildRequest())
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return o.fatal(ctx, usage, "cancelled", err)
			}
			return o.fatal(ctx, usage, "provider_exhausted", err)
		}
		usage = usage.Add(resp.Usage)

		if resp.Text != "" {
			o.publish(ctx, event.ResponseDelta, map[string]any{"text": resp.Text})
		}

		if len(resp.ToolCalls) == 0 {
			o.store.Append(session.NewAssistantMessage(resp.Text, nil))
			o.setState(StateCompleted)
			o.publish(ctx, event.TurnEnded, map[string]any{
				"turn":         o.Turns(),
				"total_tokens": usage.TotalTokens,
			})
			return &Outcome{
				State:     StateCompleted,
				Turns:     o.Turns(),
				FinalText: resp.Text,
				Usage:     usage,
			}, nil
		}

		calls := toSessionCalls(resp.ToolCalls)
		o.store.Append(session.NewAssistantMessage(resp.Text, calls))
		for _, call := range calls {
			if err := o.store.BeginTool(call); err != nil {
				// Duplicate id from the backend; surface as an input error
				// result rather than aborting.
				o.store.Append(session.NewToolMessage(session.ToolResult{
					ToolCallID: call.ID,
					Status:     session.StatusError,
					Output:     err.Error(),
				}))
			}
		}

		o.setState(StateAwaitingToolResults)
		o.mu.Lock()
		o.turns++
		turn := o.turns
		o.mu.Unlock()

		results, execErr := o.executeWithDrain(ctx, calls)

		// Finalize in issuance order so the provider-visible log is
		// deterministic no matter which tool finished first. Results that
		// drained in during a cancellation grace period are still recorded.
		for _, res := range results {
			if _, err := o.store.FinalizeTool(res); err != nil {
				o.store.Append(session.NewToolMessage(res))
			}
		}
		if execErr != nil {
			return o.fatal(ctx, usage, "cancelled", execErr)
		}

		o.publish(ctx, event.TurnEnded, map[string]any{
			"turn":         turn,
			"tool_calls":   len(calls),
			"total_tokens": usage.TotalTokens,
		})

		if turn >= o.cfg.MaxTurns {
			o.setState(StateAbortedMaxTurns)
			reason := fmt.Sprintf("turn cap of %d reached", o.cfg.MaxTurns)
			o.publish(ctx, event.Failed, map[string]any{"reason": reason})
			return &Outcome{
				State:  StateAbortedMaxTurns,
				Turns:  turn,
				Usage:  usage,
				Reason: reason,
			}, nil
		}
	}
}

// sendWithFallback tries the active backend, then each remaining one in
// order, one attempt apiece. A success pins the winning backend for
// subsequent requests; classification decides which failures justify moving
// on.
func (o *Orchestrator) sendWithFallback(ctx context.Context, req provider.Request) (*provider.Response, error) {
	o.mu.Lock()
	start := o.active
	o.mu.Unlock()

	var lastErr error
	for i := start; i < len(o.backends); i++ {
		backend := o.backends[i]
		resp, err := backend.Complete(ctx, req)
		if err == nil {
			o.mu.Lock()
			o.active = i
			o.mu.Unlock()
			return resp, nil
		}
		lastErr = err
		if !provider.IsFallback(err) {
			return nil, err
		}
		o.publish(ctx, event.Failed, map[string]any{
			"provider":    backend.Name(),
			"error":       err.Error(),
			"recoverable": i+1 < len(o.backends),
		})
	}
	return nil, fmt.Errorf("all %d configured backends failed: %w", len(o.backends)-start, lastErr)
}

// executeWithDrain runs the turn's tool batch, bounding how long
// cancellation waits for stragglers. After the grace period the results are
// abandoned; the executor's own context handling stops the work.
func (o *Orchestrator) executeWithDrain(ctx context.Context, calls []session.ToolCall) ([]session.ToolResult, error) {
	done := make(chan []session.ToolResult, 1)
	go func() {
		done <- o.exec.ExecuteBatch(ctx, calls)
	}()

	select {
	case results := <-done:
		return results, nil
	case <-ctx.Done():
	}

	grace := time.NewTimer(o.cfg.DrainGrace)
	defer grace.Stop()
	select {
	case results := <-done:
		return results, ctx.Err()
	case <-grace.C:
		return nil, ctx.Err()
	}
}

// buildRequest serializes the (possibly reduced) log for the next request.
func (o *Orchestrator) buildRequest() provider.Request {
	msgs := o.store.Snapshot()
	if o.store.NeedsReduction() {
		msgs = o.cfg.Reduce(msgs, o.store)
	}

	out := make([]provider.Message, 0, len(msgs)+1)
	if o.cfg.SystemPrompt != "" {
		out = append(out, provider.Message{Role: provider.RoleSystem, Content: o.cfg.SystemPrompt})
	}
	for _, m := range msgs {
		out = append(out, toProviderMessage(m))
	}

	return provider.Request{
		Messages:   out,
		Tools:      tool.Schemas(),
		ToolChoice: "auto",
	}
}

func (o *Orchestrator) fatal(ctx context.Context, usage provider.Usage, reason string, err error) (*Outcome, error) {
	o.setState(StateAbortedFatal)
	o.publish(ctx, event.Failed, map[string]any{
		"reason": reason,
		"error":  err.Error(),
	})
	return &Outcome{
		State:  StateAbortedFatal,
		Turns:  o.Turns(),
		Usage:  usage,
		Reason: reason,
	}, err
}

func (o *Orchestrator) publish(ctx context.Context, kind event.Kind, data map[string]any) {
	if o.bus == nil {
		return
	}
	_ = o.bus.Publish(ctx, kind, data)
}

func toSessionCalls(calls []provider.ToolCall) []session.ToolCall {
	out := make([]session.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = session.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}

func toProviderMessage(m session.Message) provider.Message {
	switch m.Role {
	case session.RoleAssistant:
		calls := make([]provider.ToolCall, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			calls[i] = provider.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
		}
		return provider.Message{Role: provider.RoleAssistant, Content: m.Content, ToolCalls: calls}
	case session.RoleTool:
		isErr := m.Result != nil && m.Result.Status != session.StatusOK
		return provider.Message{
			Role:       provider.RoleTool,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			IsError:    isErr,
		}
	default:
		return provider.Message{Role: provider.RoleUser, Content: m.Content}
	}
}
