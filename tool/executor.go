package tool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"coxswain/event"
	"coxswain/patch"
	"coxswain/session"
)

// DefaultFanOut caps how many read-only tools run concurrently in one turn.
const DefaultFanOut = 4

// Config is the immutable executor configuration, fixed at construction.
type Config struct {
	// Root is the sandbox boundary; path arguments must resolve inside it.
	Root string

	// TruncateBytes caps every tool output. Zero disables truncation.
	TruncateBytes int

	// ShellTimeout bounds shell_exec wall-clock time unless the call
	// overrides it.
	ShellTimeout time.Duration

	// FanOut limits concurrent read-only executions.
	FanOut int

	// Approver gates destructive tools. Nil approves everything.
	Approver Approver

	// Policy vets shell commands before execution. Nil allows everything.
	Policy CommandPolicy

	// Extractors supplies per-language symbol extraction.
	Extractors ExtractorRegistry

	// Patch applies unified diffs for apply_patch.
	Patch *patch.Engine

	// Bus receives tool lifecycle events. Nil disables publishing.
	Bus *event.Bus
}

// DefaultConfig returns a config with the standard limits for the given
// sandbox root.
func DefaultConfig(root string) Config {
	return Config{
		Root:          root,
		TruncateBytes: DefaultTruncateBytes,
		ShellTimeout:  DefaultShellTimeout,
		FanOut:        DefaultFanOut,
		Extractors:    DefaultExtractors(),
		Patch:         patch.NewEngine(),
	}
}

// Executor runs validated tool calls under the sandbox, lock, timeout, and
// truncation rules. Safe for concurrent use.
type Executor struct {
	cfg Config
	sem *semaphore.Weighted

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewExecutor creates an executor. Zero-value limits in cfg fall back to the
// defaults.
func NewExecutor(cfg Config) *Executor {
	if cfg.TruncateBytes == 0 {
		cfg.TruncateBytes = DefaultTruncateBytes
	}
	if cfg.ShellTimeout == 0 {
		cfg.ShellTimeout = DefaultShellTimeout
	}
	if cfg.FanOut <= 0 {
		cfg.FanOut = DefaultFanOut
	}
	if cfg.Patch == nil {
		cfg.Patch = patch.NewEngine()
	}
	if cfg.Extractors == nil {
		cfg.Extractors = DefaultExtractors()
	}
	return &Executor{
		cfg:   cfg,
		sem:   semaphore.NewWeighted(int64(cfg.FanOut)),
		locks: make(map[string]*sync.Mutex),
	}
}

// Execute runs one tool call end to end and always returns exactly one
// result. Caller input problems (unknown tool, bad arguments, sandbox or
// policy violations) come back as error-status results, never as Go errors;
// the returned result is ready to append to the session.
func (e *Executor) Execute(ctx context.Context, call session.ToolCall) session.ToolResult {
	start := time.Now()

	inv, err := Validate(call, e.cfg.Root, e.cfg.Policy)
	if err != nil {
		return session.ToolResult{
			ToolCallID: call.ID,
			Status:     session.StatusError,
			Output:     err.Error(),
			Elapsed:    time.Since(start),
		}
	}

	e.publish(ctx, event.ToolBegan, map[string]any{
		"tool_call_id": inv.ID,
		"tool":         string(inv.Kind),
		"summary":      summarize(inv),
	})

	if inv.Destructive() && e.cfg.Approver != nil {
		decision, err := e.cfg.Approver.Decide(ctx, string(inv.Kind), call.Arguments)
		if err != nil || decision != Approved {
			res := session.ToolResult{
				ToolCallID: inv.ID,
				Status:     session.StatusDenied,
				Output:     "denied: approval was not granted",
				Elapsed:    time.Since(start),
			}
			e.publishEnded(ctx, res, inv)
			return res
		}
	}

	res := e.dispatch(ctx, inv)
	res.ToolCallID = inv.ID
	res.Elapsed = time.Since(start)

	if out, truncated, omitted := Truncate(res.Output, e.cfg.TruncateBytes); truncated {
		res.Output = out
		res.Truncated = true
		res.OmittedBytes = omitted
	}

	e.publishEnded(ctx, res, inv)
	return res
}

// ExecuteBatch runs one turn's calls: read-only tools fan out concurrently
// up to the configured limit while destructive tools run sequentially in
// issuance order. Results always come back in issuance order regardless of
// which finished first.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []session.ToolCall) []session.ToolResult {
	results := make([]session.ToolResult, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		if destructiveCall(call) {
			continue
		}
		if err := e.sem.Acquire(ctx, 1); err != nil {
			results[i] = cancelledResult(call.ID, err)
			continue
		}
		wg.Add(1)
		go func(i int, call session.ToolCall) {
			defer wg.Done()
			defer e.sem.Release(1)
			results[i] = e.Execute(ctx, call)
		}(i, call)
	}

	for i, call := range calls {
		if !destructiveCall(call) {
			continue
		}
		if ctx.Err() != nil {
			results[i] = cancelledResult(call.ID, ctx.Err())
			continue
		}
		results[i] = e.Execute(ctx, call)
	}

	wg.Wait()
	return results
}

// destructiveCall classifies a raw call before full validation so batch
// scheduling can separate readers from writers. Unknown tools count as
// read-only; they fail validation immediately anyway.
func destructiveCall(call session.ToolCall) bool {
	switch Kind(call.Name) {
	case KindWrite, KindShellExec, KindApplyPatch:
		return true
	default:
		return false
	}
}

func cancelledResult(id string, err error) session.ToolResult {
	return session.ToolResult{
		ToolCallID: id,
		Status:     session.StatusError,
		Output:     fmt.Sprintf("cancelled before execution: %v", err),
	}
}

func (e *Executor) dispatch(ctx context.Context, inv Invocation) session.ToolResult {
	var output string
	var err error
	status := session.StatusOK

	switch inv.Kind {
	case KindRead:
		output, err = readFile(inv.Read)
	case KindWrite:
		unlock := e.lockPath(inv.Write.Path)
		output, err = writeFile(inv.Write)
		unlock()
	case KindSearch:
		output, err = searchFiles(e.cfg.Root, inv.Search)
	case KindFind:
		output, err = findFiles(e.cfg.Root, inv.Find)
	case KindSymbols:
		output, err = extractSymbols(e.cfg.Extractors, inv.Symbols)
	case KindApplyPatch:
		return e.runApplyPatch(inv)
	case KindShellExec:
		return e.runShellExec(ctx, inv)
	}

	if err != nil {
		return session.ToolResult{Status: session.StatusError, Output: err.Error()}
	}
	return session.ToolResult{Status: status, Output: output}
}

func (e *Executor) runShellExec(ctx context.Context, inv Invocation) session.ToolResult {
	progress := func(stream, chunk string) {
		e.publish(ctx, event.ToolProgressed, map[string]any{
			"tool_call_id": inv.ID,
			"stream":       stream,
			"chunk":        chunk,
		})
	}

	outcome, err := runShell(ctx, e.cfg.Root, inv.ShellExec, e.cfg.ShellTimeout, progress)
	if err != nil {
		return session.ToolResult{Status: session.StatusError, Output: err.Error()}
	}

	output := outcome.Output
	if outcome.TimedOut {
		timeoutMs := inv.ShellExec.TimeoutMs
		if timeoutMs <= 0 {
			timeoutMs = int(e.cfg.ShellTimeout / time.Millisecond)
		}
		output += timeoutMarker(timeoutMs)
		return session.ToolResult{Status: session.StatusTimedOut, Output: output}
	}
	if outcome.ExitCode != 0 {
		output += fmt.Sprintf("\n[Exit code: %d]", outcome.ExitCode)
	}
	return session.ToolResult{Status: session.StatusOK, Output: output}
}

// runApplyPatch applies each file diff independently: a conflict voids that
// file's diff but the rest of the patch set still proceeds. Dry-run walks
// the identical matching path and reports the same verdicts without writing.
func (e *Executor) runApplyPatch(inv Invocation) session.ToolResult {
	args := inv.ApplyPatch

	fileDiffs, err := patch.Parse(args.Diff)
	if err != nil {
		return session.ToolResult{Status: session.StatusError, Output: err.Error()}
	}

	var sb strings.Builder
	conflicts := 0
	for _, fd := range fileDiffs {
		target, rerr := resolveInRoot(e.cfg.Root, fd.Path)
		if rerr != nil {
			return session.ToolResult{Status: session.StatusError, Output: rerr.Error()}
		}

		unlock := e.lockPath(target)
		report, conflicted := e.applyOneFile(target, fd, args.DryRun)
		unlock()

		sb.WriteString(report)
		if conflicted {
			conflicts++
		}
	}

	status := session.StatusOK
	if conflicts > 0 {
		status = session.StatusError
		fmt.Fprintf(&sb, "%d of %d file diffs conflicted; conflicted files were left untouched.\n", conflicts, len(fileDiffs))
	}
	return session.ToolResult{Status: status, Output: sb.String()}
}

func (e *Executor) applyOneFile(target string, fd patch.FileDiff, dryRun bool) (string, bool) {
	// Creation diffs still read the target when it exists, so the engine
	// can refuse to clobber a file that already has content.
	content := ""
	data, err := readFile(&ReadArgs{Path: target})
	switch {
	case err == nil:
		content = data
	case fd.IsNew && errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Sprintf("%s: %v\n", fd.Path, err), true
	}

	res := e.cfg.Patch.Apply(content, fd)
	if res.Verdict == patch.VerdictConflict {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s: conflict\n", fd.Path)
		for _, hr := range res.Hunks {
			if hr.Conflict || hr.Skipped {
				fmt.Fprintf(&sb, "  hunk %d: %s\n", hr.Index, hr.Reason)
			}
		}
		return sb.String(), true
	}

	verb := "applied"
	if dryRun {
		verb = "would apply"
	}

	if !dryRun {
		var err error
		switch {
		case fd.IsDelete:
			err = removeFile(target)
		default:
			_, err = writeFile(&WriteArgs{Path: target, Content: res.Content, Create: true, Overwrite: true})
		}
		if err != nil {
			return fmt.Sprintf("%s: %v\n", fd.Path, err), true
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s %d hunk(s)\n", fd.Path, verb, len(res.Hunks))
	for _, hr := range res.Hunks {
		if hr.Offset != 0 {
			fmt.Fprintf(&sb, "  hunk %d matched %+d line(s) from its stated offset\n", hr.Index, hr.Offset)
		}
	}
	return sb.String(), false
}

// lockPath serializes mutations to one path. Locks are per-path and never
// discarded; the set of touched paths in a session is small.
func (e *Executor) lockPath(path string) func() {
	e.mu.Lock()
	l, ok := e.locks[path]
	if !ok {
		l = &sync.Mutex{}
		e.locks[path] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (e *Executor) publish(ctx context.Context, kind event.Kind, data map[string]any) {
	if e.cfg.Bus == nil {
		return
	}
	// A closed bus or cancelled context just drops the notification; tool
	// results flow through the session, not the event stream.
	_ = e.cfg.Bus.Publish(ctx, kind, data)
}

func (e *Executor) publishEnded(ctx context.Context, res session.ToolResult, inv Invocation) {
	e.publish(ctx, event.ToolEnded, map[string]any{
		"tool_call_id": res.ToolCallID,
		"tool":         string(inv.Kind),
		"status":       string(res.Status),
		"elapsed_ms":   res.Elapsed.Milliseconds(),
		"truncated":    res.Truncated,
	})
}

// summarize produces the short human-readable line shown next to a running
// tool in the UI.
func summarize(inv Invocation) string {
	switch inv.Kind {
	case KindRead:
		return "read " + inv.Read.Path
	case KindWrite:
		return fmt.Sprintf("write %s (%d bytes)", inv.Write.Path, len(inv.Write.Content))
	case KindSearch:
		return "search for " + inv.Search.Pattern
	case KindApplyPatch:
		if inv.ApplyPatch.DryRun {
			return "preview patch"
		}
		return "apply patch"
	case KindFind:
		return "find " + inv.Find.Query
	case KindSymbols:
		return "symbols in " + inv.Symbols.Path
	case KindShellExec:
		return "run: " + firstLine(inv.ShellExec.Command)
	default:
		return string(inv.Kind)
	}
}
