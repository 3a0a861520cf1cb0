package tool

import (
	"strings"
	"testing"
)

func TestTruncateUnderCeiling(t *testing.T) {
	out, truncated, omitted := Truncate("short", 100)
	if truncated || omitted != 0 || out != "short" {
		t.Errorf("got (%q, %v, %d), want untouched output", out, truncated, omitted)
	}
}

func TestTruncateExactCeiling(t *testing.T) {
	in := strings.Repeat("x", 100)
	out, truncated, _ := Truncate(in, 100)
	if truncated || out != in {
		t.Error("output exactly at the ceiling must not be truncated")
	}
}

func TestTruncateOverCeiling(t *testing.T) {
	const ceiling = 100
	const k = 37 // bytes over
	in := strings.Repeat("a", 60) + strings.Repeat("b", ceiling+k-60)

	out, truncated, omitted := Truncate(in, ceiling)
	if !truncated {
		t.Fatal("truncated flag not set")
	}
	if omitted != k {
		t.Errorf("omitted = %d, want %d", omitted, k)
	}

	// Retained prefix and suffix must sum to exactly the ceiling. Strip the
	// marker line to measure them.
	markerStart := strings.Index(out, "\n[... ")
	markerEnd := strings.Index(out, " omitted ...]\n")
	if markerStart == -1 || markerEnd == -1 {
		t.Fatalf("marker missing from output %q", out)
	}
	prefix := out[:markerStart]
	suffix := out[markerEnd+len(" omitted ...]\n"):]
	if len(prefix)+len(suffix) != ceiling {
		t.Errorf("prefix %d + suffix %d = %d, want %d", len(prefix), len(suffix), len(prefix)+len(suffix), ceiling)
	}
	if !strings.HasPrefix(in, prefix) {
		t.Error("prefix is not the head of the input")
	}
	if !strings.HasSuffix(in, suffix) {
		t.Error("suffix is not the tail of the input")
	}
}

func TestTruncateOddCeiling(t *testing.T) {
	in := strings.Repeat("z", 200)
	out, truncated, omitted := Truncate(in, 101)
	if !truncated || omitted != 99 {
		t.Fatalf("got truncated=%v omitted=%d, want true, 99", truncated, omitted)
	}
	kept := len(out) - len("\n[... 99 bytes omitted ...]\n")
	if kept != 101 {
		t.Errorf("retained bytes = %d, want 101", kept)
	}
}

func TestTruncateDisabled(t *testing.T) {
	in := strings.Repeat("q", 5000)
	out, truncated, _ := Truncate(in, 0)
	if truncated || out != in {
		t.Error("ceiling 0 must disable truncation")
	}
}
