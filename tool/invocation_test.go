package tool

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"coxswain/session"
)

func call(name, args string) session.ToolCall {
	return session.ToolCall{ID: "c1", Name: name, Arguments: json.RawMessage(args)}
}

func TestValidateUnknownTool(t *testing.T) {
	_, err := Validate(call("teleport", `{}`), "/ws", nil)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if ve.Reason != UnknownTool {
		t.Errorf("reason = %q, want %q", ve.Reason, UnknownTool)
	}
}

func TestValidateMissingRequiredField(t *testing.T) {
	_, err := Validate(call("read", `{}`), "/ws", nil)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if ve.Reason != InvalidArguments {
		t.Errorf("reason = %q, want %q", ve.Reason, InvalidArguments)
	}
	if ve.Field != "path" {
		t.Errorf("field = %q, want path", ve.Field)
	}
}

func TestValidateWrongFieldType(t *testing.T) {
	_, err := Validate(call("read", `{"path":"a.txt","offset":"ten"}`), "/ws", nil)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if ve.Reason != InvalidArguments {
		t.Errorf("reason = %q, want %q", ve.Reason, InvalidArguments)
	}
	if ve.Field != "offset" {
		t.Errorf("field = %q, want offset", ve.Field)
	}
}

func TestValidateUnknownField(t *testing.T) {
	_, err := Validate(call("read", `{"path":"a.txt","bogus":1}`), "/ws", nil)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if ve.Field != "bogus" {
		t.Errorf("field = %q, want bogus", ve.Field)
	}
}

func TestValidatePathEscape(t *testing.T) {
	cases := []string{
		`{"path":"../outside.txt"}`,
		`{"path":"/etc/passwd"}`,
		`{"path":"ok/../../escape"}`,
	}
	for _, args := range cases {
		_, err := Validate(call("read", args), "/ws", nil)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("args %s: error type = %T, want *ValidationError", args, err)
		}
		if ve.Reason != PathEscapesSandbox {
			t.Errorf("args %s: reason = %q, want %q", args, ve.Reason, PathEscapesSandbox)
		}
	}
}

func TestValidateResolvesRelativePath(t *testing.T) {
	inv, err := Validate(call("read", `{"path":"sub/file.txt"}`), "/ws", nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if inv.Read.Path != "/ws/sub/file.txt" {
		t.Errorf("resolved path = %q", inv.Read.Path)
	}
}

func TestValidateCommandDenied(t *testing.T) {
	policy := func(cmd string) bool { return !strings.Contains(cmd, "rm ") }

	_, err := Validate(call("shell_exec", `{"command":"rm -rf /"}`), "/ws", policy)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if ve.Reason != CommandDenied {
		t.Errorf("reason = %q, want %q", ve.Reason, CommandDenied)
	}

	if _, err := Validate(call("shell_exec", `{"command":"ls"}`), "/ws", policy); err != nil {
		t.Errorf("allowed command rejected: %v", err)
	}
}

func TestValidateOrderNameBeforeArgs(t *testing.T) {
	// An unknown tool with garbage arguments must report UnknownTool, not
	// InvalidArguments.
	_, err := Validate(call("nope", `not json`), "/ws", nil)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if ve.Reason != UnknownTool {
		t.Errorf("reason = %q, want %q", ve.Reason, UnknownTool)
	}
}

func TestDestructiveClassification(t *testing.T) {
	cases := []struct {
		inv  Invocation
		want bool
	}{
		{Invocation{Kind: KindRead, Read: &ReadArgs{}}, false},
		{Invocation{Kind: KindSearch, Search: &SearchArgs{}}, false},
		{Invocation{Kind: KindFind, Find: &FindArgs{}}, false},
		{Invocation{Kind: KindSymbols, Symbols: &SymbolsArgs{}}, false},
		{Invocation{Kind: KindWrite, Write: &WriteArgs{}}, true},
		{Invocation{Kind: KindShellExec, ShellExec: &ShellExecArgs{}}, true},
		{Invocation{Kind: KindApplyPatch, ApplyPatch: &ApplyPatchArgs{DryRun: true}}, false},
		{Invocation{Kind: KindApplyPatch, ApplyPatch: &ApplyPatchArgs{}}, true},
	}
	for _, tc := range cases {
		if got := tc.inv.Destructive(); got != tc.want {
			t.Errorf("%s destructive = %v, want %v", tc.inv.Kind, got, tc.want)
		}
	}
}
