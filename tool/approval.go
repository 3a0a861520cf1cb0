package tool

import (
	"context"
	"encoding/json"
	"sync"
)

// Decision is the outcome of an approval request.
type Decision int

const (
	Denied Decision = iota
	Approved
)

// Approver gates destructive tools. Decide may resolve immediately or block
// until an external actor (a terminal prompt, a review queue) supplies the
// answer; the executor treats it as a suspension point and honors ctx.
type Approver interface {
	Decide(ctx context.Context, name string, arguments json.RawMessage) (Decision, error)
}

// ApproveAll approves every request. Suitable for non-interactive runs.
type ApproveAll struct{}

func (ApproveAll) Decide(context.Context, string, json.RawMessage) (Decision, error) {
	return Approved, nil
}

// DenyAll denies every request.
type DenyAll struct{}

func (DenyAll) Decide(context.Context, string, json.RawMessage) (Decision, error) {
	return Denied, nil
}

// Pending is a one-shot rendezvous between the executor and an external
// decider. The executor blocks in Wait; the UI calls Resolve exactly once
// when the user answers. Extra Resolve calls are ignored.
type Pending struct {
	once sync.Once
	ch   chan Decision
}

// NewPending creates an unresolved approval.
func NewPending() *Pending {
	return &Pending{ch: make(chan Decision, 1)}
}

// Resolve supplies the decision. Only the first call has any effect.
func (p *Pending) Resolve(d Decision) {
	p.once.Do(func() {
		p.ch <- d
		close(p.ch)
	})
}

// Wait blocks until the decision arrives or ctx is cancelled. Cancellation
// counts as denial.
func (p *Pending) Wait(ctx context.Context) (Decision, error) {
	select {
	case d := <-p.ch:
		return d, nil
	case <-ctx.Done():
		return Denied, ctx.Err()
	}
}

// PendingApprover adapts a queue of externally resolved approvals into the
// Approver interface: each Decide call registers a Pending with the supplied
// callback and waits on it.
type PendingApprover struct {
	// Request is invoked with each new pending approval; the receiver is
	// responsible for eventually calling Resolve.
	Request func(name string, arguments json.RawMessage, p *Pending)
}

func (a *PendingApprover) Decide(ctx context.Context, name string, arguments json.RawMessage) (Decision, error) {
	p := NewPending()
	a.Request(name, arguments, p)
	return p.Wait(ctx)
}
