// Package session owns conversation state: the append-only message log, the
// table of in-flight tool invocations, and the running token budget. The
// store is the single source of truth for a session; it is mutated only by
// the orchestrator and by tool-result finalization, and read by external
// consumers through snapshots.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
)

// Limits bounds the approximate size of the message log.
type Limits struct {
	ContextTokens int     // approximate token budget for the full log
	HighWater     float64 // fraction of ContextTokens past which reduction is signaled
}

// DefaultLimits returns the default budget limits.
func DefaultLimits() Limits {
	return Limits{
		ContextTokens: 128000,
		HighWater:     0.8,
	}
}

// Store is the serialize-safe owner of a session's conversation state.
type Store struct {
	id       string
	limits   Limits
	enc      *tiktoken.Tiktoken // nil when the encoding is unavailable
	mu       sync.Mutex
	messages []Message
	inflight map[string]pendingTool
	tokens   int
}

type pendingTool struct {
	call    ToolCall
	started time.Time
}

// New creates an empty Store. Token estimation uses the cl100k_base encoding
// when it can be loaded, and a bytes/4 heuristic otherwise.
func New(limits Limits) *Store {
	if limits.ContextTokens <= 0 {
		limits = DefaultLimits()
	}
	if limits.HighWater <= 0 || limits.HighWater > 1 {
		limits.HighWater = DefaultLimits().HighWater
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &Store{
		id:       uuid.New().String(),
		limits:   limits,
		enc:      enc,
		inflight: make(map[string]pendingTool),
	}
}

// ID returns the session identifier.
func (s *Store) ID() string { return s.id }

// Append commits a message to the log and recomputes the running budget.
func (s *Store) Append(msg Message) {
	n := s.EstimateTokens(messageText(msg))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg.clone())
	s.tokens += n
}

// Snapshot returns a deep copy of the committed message log.
func (s *Store) Snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.clone()
	}
	return out
}

// Len returns the number of committed messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// BeginTool registers a tool call in the in-flight table. The id must be
// unique among calls that have not yet been finalized.
func (s *Store) BeginTool(call ToolCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[call.ID]; ok {
		return fmt.Errorf("tool call %q is already in flight", call.ID)
	}
	s.inflight[call.ID] = pendingTool{call: call, started: time.Now()}
	return nil
}

// FinalizeTool commits the result of an in-flight tool call: the result is
// appended as a tool-role message and removed from the in-flight table.
// A result may be finalized exactly once.
func (s *Store) FinalizeTool(res ToolResult) (Message, error) {
	s.mu.Lock()
	if _, ok := s.inflight[res.ToolCallID]; !ok {
		s.mu.Unlock()
		return Message{}, fmt.Errorf("tool call %q is not in flight", res.ToolCallID)
	}
	delete(s.inflight, res.ToolCallID)
	s.mu.Unlock()

	msg := NewToolMessage(res)
	s.Append(msg)
	return msg, nil
}

// InFlight returns the calls currently awaiting finalization.
func (s *Store) InFlight() []ToolCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolCall, 0, len(s.inflight))
	for _, p := range s.inflight {
		out = append(out, p.call)
	}
	return out
}

// Budget returns the approximate token size of the committed log.
func (s *Store) Budget() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// NeedsReduction reports whether the running budget has crossed the
// high-water mark. The store only signals; the reduction strategy itself is
// chosen by the orchestrator.
func (s *Store) NeedsReduction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens > int(float64(s.limits.ContextTokens)*s.limits.HighWater)
}

// Limits returns the configured budget limits.
func (s *Store) Limits() Limits { return s.limits }

// EstimateTokens returns the approximate token count of text.
func (s *Store) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if s.enc != nil {
		return len(s.enc.Encode(text, nil, nil))
	}
	return len(text)/4 + 1
}

// messageText collects everything in a message that costs tokens.
func messageText(m Message) string {
	text := m.Content
	for _, tc := range m.ToolCalls {
		text += tc.Name + string(tc.Arguments)
	}
	return text
}
