// Package tool validates and executes the structured invocations a model
// backend requests: filesystem reads and writes, content search, fuzzy file
// lookup, symbol extraction, unified-diff application, and shell commands.
// Malformed input never aborts a session; it becomes an error-status result
// the model can react to.
package tool

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"coxswain/session"
)

// Kind identifies one supported tool.
type Kind string

const (
	KindRead       Kind = "read"
	KindWrite      Kind = "write"
	KindSearch     Kind = "search"
	KindApplyPatch Kind = "apply_patch"
	KindFind       Kind = "find"
	KindSymbols    Kind = "symbols"
	KindShellExec  Kind = "shell_exec"
)

// ReadArgs reads a file, optionally restricted to a byte range.
type ReadArgs struct {
	Path   string `json:"path"`
	Offset int    `json:"offset,omitempty"` // starting byte, 0-based
	Length int    `json:"length,omitempty"` // bytes to read; 0 means to EOF
}

// WriteArgs writes full file content. Create and Overwrite gate whether a
// missing or existing target is acceptable.
type WriteArgs struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Create    bool   `json:"create"`
	Overwrite bool   `json:"overwrite"`
}

// SearchArgs searches file contents under the sandbox root.
type SearchArgs struct {
	Pattern       string `json:"pattern"`
	Glob          string `json:"glob,omitempty"`
	CaseSensitive bool   `json:"case_sensitive"`
	Literal       bool   `json:"literal,omitempty"` // treat pattern as a plain substring
	MaxResults    int    `json:"max_results,omitempty"`
}

// ApplyPatchArgs applies a unified diff. DryRun previews per-hunk verdicts
// without touching any file.
type ApplyPatchArgs struct {
	Diff   string `json:"diff"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// FindArgs fuzzy-matches file paths against a query.
type FindArgs struct {
	Query      string `json:"query"`
	TypeFilter string `json:"type_filter,omitempty"` // file extension, e.g. "go"
	MaxResults int    `json:"max_results,omitempty"`

	// IgnorePatterns are glob patterns excluded from the walk, matched
	// against both base names and root-relative paths. They extend the
	// built-in ignore set, never replace it.
	IgnorePatterns []string `json:"ignore_patterns,omitempty"`
}

// SymbolsArgs extracts declarations from one file.
type SymbolsArgs struct {
	Path string `json:"path"`
}

// ShellExecArgs runs a shell command under the configured timeout.
type ShellExecArgs struct {
	Command   string            `json:"command"`
	TimeoutMs int               `json:"timeout_ms,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Invocation is a validated tool call. Exactly one of the argument fields is
// set, matching Kind; constructing one goes through Validate so an unhandled
// kind is impossible downstream.
type Invocation struct {
	ID   string
	Kind Kind

	Read       *ReadArgs
	Write      *WriteArgs
	Search     *SearchArgs
	ApplyPatch *ApplyPatchArgs
	Find       *FindArgs
	Symbols    *SymbolsArgs
	ShellExec  *ShellExecArgs
}

// Destructive reports whether the invocation mutates the filesystem or runs
// arbitrary commands, and therefore needs approval. A dry-run patch is not
// destructive.
func (inv Invocation) Destructive() bool {
	switch inv.Kind {
	case KindWrite, KindShellExec:
		return true
	case KindApplyPatch:
		return !inv.ApplyPatch.DryRun
	default:
		return false
	}
}

// Reason classifies why validation rejected a call.
type Reason string

const (
	UnknownTool        Reason = "unknown_tool"
	InvalidArguments   Reason = "invalid_arguments"
	PathEscapesSandbox Reason = "path_escapes_sandbox"
	CommandDenied      Reason = "command_denied"
)

// ValidationError rejects a tool call before execution. It is recoverable:
// the executor converts it into an error-status result.
type ValidationError struct {
	Reason  Reason
	Field   string // offending field for InvalidArguments
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Reason, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Validate checks a raw ToolCall in order: tool name, argument shape, path
// sandboxing, then command policy. The first failure wins.
func Validate(call session.ToolCall, root string, policy CommandPolicy) (Invocation, error) {
	inv := Invocation{ID: call.ID, Kind: Kind(call.Name)}

	switch inv.Kind {
	case KindRead:
		var args ReadArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return inv, err
		}
		if args.Path == "" {
			return inv, requiredField("path")
		}
		if args.Offset < 0 {
			return inv, &ValidationError{Reason: InvalidArguments, Field: "offset", Message: "must not be negative"}
		}
		if args.Length < 0 {
			return inv, &ValidationError{Reason: InvalidArguments, Field: "length", Message: "must not be negative"}
		}
		resolved, err := resolveInRoot(root, args.Path)
		if err != nil {
			return inv, err
		}
		args.Path = resolved
		inv.Read = &args

	case KindWrite:
		var args WriteArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return inv, err
		}
		if args.Path == "" {
			return inv, requiredField("path")
		}
		resolved, err := resolveInRoot(root, args.Path)
		if err != nil {
			return inv, err
		}
		args.Path = resolved
		inv.Write = &args

	case KindSearch:
		var args SearchArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return inv, err
		}
		if args.Pattern == "" {
			return inv, requiredField("pattern")
		}
		if args.MaxResults <= 0 {
			args.MaxResults = 100
		}
		inv.Search = &args

	case KindApplyPatch:
		var args ApplyPatchArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return inv, err
		}
		if args.Diff == "" {
			return inv, requiredField("diff")
		}
		inv.ApplyPatch = &args

	case KindFind:
		var args FindArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return inv, err
		}
		if args.Query == "" {
			return inv, requiredField("query")
		}
		if args.MaxResults <= 0 {
			args.MaxResults = 25
		}
		inv.Find = &args

	case KindSymbols:
		var args SymbolsArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return inv, err
		}
		if args.Path == "" {
			return inv, requiredField("path")
		}
		resolved, err := resolveInRoot(root, args.Path)
		if err != nil {
			return inv, err
		}
		args.Path = resolved
		inv.Symbols = &args

	case KindShellExec:
		var args ShellExecArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return inv, err
		}
		if args.Command == "" {
			return inv, requiredField("command")
		}
		if args.TimeoutMs < 0 {
			return inv, &ValidationError{Reason: InvalidArguments, Field: "timeout_ms", Message: "must not be negative"}
		}
		if policy != nil && !policy(args.Command) {
			return inv, &ValidationError{Reason: CommandDenied, Message: fmt.Sprintf("command rejected by policy: %s", firstLine(args.Command))}
		}
		inv.ShellExec = &args

	default:
		return inv, &ValidationError{Reason: UnknownTool, Message: fmt.Sprintf("no tool named %q", call.Name)}
	}

	return inv, nil
}

// CommandPolicy decides whether a shell command may run. A nil policy allows
// everything.
type CommandPolicy func(command string) bool

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return &ValidationError{Reason: InvalidArguments, Message: "missing argument payload"}
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &ValidationError{Reason: InvalidArguments, Field: fieldFromJSONError(err), Message: err.Error()}
	}
	return nil
}

func requiredField(name string) error {
	return &ValidationError{Reason: InvalidArguments, Field: name, Message: "required"}
}

// fieldFromJSONError recovers the offending field name from the stdlib's
// decode errors where possible.
func fieldFromJSONError(err error) string {
	if ute, ok := err.(*json.UnmarshalTypeError); ok {
		return ute.Field
	}
	msg := err.Error()
	const marker = `unknown field "`
	if idx := strings.Index(msg, marker); idx != -1 {
		rest := msg[idx+len(marker):]
		if end := strings.Index(rest, `"`); end != -1 {
			return rest[:end]
		}
	}
	return ""
}

// resolveInRoot normalizes a path-valued argument and confirms it stays
// inside the sandbox root. Relative paths resolve against the root.
func resolveInRoot(root, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	cleaned := filepath.Clean(path)
	cleanRoot := filepath.Clean(root)
	if cleaned != cleanRoot && !strings.HasPrefix(cleaned, cleanRoot+string(filepath.Separator)) {
		return "", &ValidationError{
			Reason:  PathEscapesSandbox,
			Message: fmt.Sprintf("%s resolves outside the workspace root", path),
		}
	}
	return cleaned, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return s[:idx]
	}
	return s
}
