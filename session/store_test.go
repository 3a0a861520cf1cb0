package session

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAppendAndSnapshotIsolation(t *testing.T) {
	s := New(DefaultLimits())
	s.Append(NewUserMessage("hello"))
	s.Append(NewAssistantMessage("hi", []ToolCall{
		{ID: "c1", Name: "read", Arguments: json.RawMessage(`{"path":"a.txt"}`)},
	}))

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d messages, want 2", len(snap))
	}

	// Mutating the snapshot must not reach the store.
	snap[0].Content = "tampered"
	snap[1].ToolCalls[0].Name = "tampered"
	again := s.Snapshot()
	if again[0].Content != "hello" {
		t.Errorf("store content = %q, snapshot mutation leaked", again[0].Content)
	}
	if again[1].ToolCalls[0].Name != "read" {
		t.Errorf("store tool call = %q, snapshot mutation leaked", again[1].ToolCalls[0].Name)
	}
}

func TestBeginToolRejectsDuplicateID(t *testing.T) {
	s := New(DefaultLimits())
	call := ToolCall{ID: "c1", Name: "read"}
	if err := s.BeginTool(call); err != nil {
		t.Fatalf("first BeginTool: %v", err)
	}
	if err := s.BeginTool(call); err == nil {
		t.Fatal("second BeginTool with same id should fail")
	}
}

func TestFinalizeToolExactlyOnce(t *testing.T) {
	s := New(DefaultLimits())
	if err := s.BeginTool(ToolCall{ID: "c1", Name: "read"}); err != nil {
		t.Fatalf("BeginTool: %v", err)
	}

	res := ToolResult{ToolCallID: "c1", Status: StatusOK, Output: "content"}
	msg, err := s.FinalizeTool(res)
	if err != nil {
		t.Fatalf("FinalizeTool: %v", err)
	}
	if msg.Role != RoleTool || msg.ToolCallID != "c1" {
		t.Errorf("finalized message = %+v", msg)
	}
	if s.Len() != 1 {
		t.Errorf("log length = %d, want 1", s.Len())
	}
	if len(s.InFlight()) != 0 {
		t.Errorf("in-flight table should be empty, has %d", len(s.InFlight()))
	}

	if _, err := s.FinalizeTool(res); err == nil {
		t.Fatal("second FinalizeTool for same id should fail")
	}
}

func TestFinalizeUnknownToolFails(t *testing.T) {
	s := New(DefaultLimits())
	if _, err := s.FinalizeTool(ToolResult{ToolCallID: "ghost"}); err == nil {
		t.Fatal("finalizing a never-begun call should fail")
	}
}

func TestBudgetGrowsWithAppends(t *testing.T) {
	s := New(DefaultLimits())
	if s.Budget() != 0 {
		t.Fatalf("empty budget = %d, want 0", s.Budget())
	}
	s.Append(NewUserMessage(strings.Repeat("word ", 100)))
	first := s.Budget()
	if first == 0 {
		t.Fatal("budget did not grow after append")
	}
	s.Append(NewUserMessage(strings.Repeat("word ", 100)))
	if s.Budget() <= first {
		t.Errorf("budget = %d after second append, want > %d", s.Budget(), first)
	}
}

func TestNeedsReductionSignal(t *testing.T) {
	s := New(Limits{ContextTokens: 100, HighWater: 0.8})
	if s.NeedsReduction() {
		t.Fatal("empty store should not need reduction")
	}
	// ~500 tokens, well past 80 percent of 100.
	s.Append(NewUserMessage(strings.Repeat("alpha beta gamma ", 200)))
	if !s.NeedsReduction() {
		t.Fatalf("budget %d should exceed high-water mark", s.Budget())
	}
}

func TestEstimateTokensNonZero(t *testing.T) {
	s := New(DefaultLimits())
	if s.EstimateTokens("") != 0 {
		t.Error("empty text should cost 0 tokens")
	}
	if s.EstimateTokens("some text here") == 0 {
		t.Error("non-empty text should cost tokens")
	}
}
