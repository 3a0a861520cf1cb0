// Package event carries lifecycle notifications from the orchestration loop
// and the tool executor to a single logical consumer. Delivery is ordered:
// events for a session carry strictly increasing sequence numbers and are
// observed in that order. The channel is bounded with backpressure; a full
// buffer suspends the producer rather than dropping events, because a lost
// event would leave a consumer's tool-progress view inconsistent.
package event

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Kind identifies the type of lifecycle event.
type Kind string

const (
	TurnStarted    Kind = "turn_started"
	ResponseDelta  Kind = "response_delta"
	ToolBegan      Kind = "tool_began"
	ToolProgressed Kind = "tool_progressed"
	ToolEnded      Kind = "tool_ended"
	TurnEnded      Kind = "turn_ended"
	Failed         Kind = "failed"
)

// Event is a single lifecycle notification.
type Event struct {
	Kind      Kind           `json:"kind"`
	SessionID string         `json:"session_id"`
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event: bus is closed")

// Bus delivers ordered events for one session.
type Bus struct {
	sessionID string
	ch        chan Event
	mu        sync.Mutex
	seq       uint64
	closed    bool
}

// NewBus creates a Bus with the given buffer capacity (256 if non-positive).
func NewBus(sessionID string, capacity int) *Bus {
	if capacity <= 0 {
		capacity = 256
	}
	return &Bus{
		sessionID: sessionID,
		ch:        make(chan Event, capacity),
	}
}

// Publish assigns the next sequence number and enqueues the event. When the
// buffer is full, Publish blocks until the consumer drains or ctx is done.
// The lock is held across the send so concurrent producers cannot reorder
// sequence numbers in the channel.
func (b *Bus) Publish(ctx context.Context, kind Kind, data map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	// Checked before the send: with free capacity and a cancelled context
	// both select cases are ready and the runtime picks one at random.
	if err := ctx.Err(); err != nil {
		return err
	}
	b.seq++
	ev := Event{
		Kind:      kind,
		SessionID: b.sessionID,
		Seq:       b.seq,
		Timestamp: time.Now(),
		Data:      data,
	}
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		b.seq-- // keep numbering dense; the event was never delivered
		return ctx.Err()
	}
}

// Events returns the read-only event stream. No replay: consumers observe
// only what they have not yet drained.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Close closes the stream. Safe to call more than once. Producers must have
// stopped, or the consumer must keep draining, before Close is called.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}
