package provider

import (
	"context"
	"errors"
	"testing"
)

func TestParseToolCallsBareArray(t *testing.T) {
	text := `I'll read the file. [{"name": "read", "arguments": {"path": "main.go"}}]`
	calls := parseToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].Name != "read" {
		t.Errorf("name = %q", calls[0].Name)
	}
	if calls[0].ID == "" {
		t.Error("call id not assigned")
	}
}

func TestParseToolCallsWrapped(t *testing.T) {
	text := `{"tool_calls": [{"name": "search", "arguments": {"pattern": "foo"}}, {"name": "read", "arguments": {"path": "a"}}]}`
	calls := parseToolCalls(text)
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].Name != "search" || calls[1].Name != "read" {
		t.Errorf("names = %q, %q", calls[0].Name, calls[1].Name)
	}
}

func TestParseToolCallsPlainText(t *testing.T) {
	if calls := parseToolCalls("just a normal answer with no JSON"); calls != nil {
		t.Errorf("got %d calls from plain text, want none", len(calls))
	}
}

func TestStripToolCallJSON(t *testing.T) {
	text := `Here is my plan. [{"name": "read", "arguments": {}}]`
	got := stripToolCallJSON(text)
	if got != "Here is my plan." {
		t.Errorf("stripped = %q", got)
	}
}

type staticAdapter struct{ name string }

func (a staticAdapter) Name() string { return a.name }
func (a staticAdapter) Complete(context.Context, Request) (*Response, error) {
	return nil, errors.New("not wired")
}

func TestBuildAdaptersPreservesOrder(t *testing.T) {
	orig := newAdapter
	defer func() { newAdapter = orig }()
	newAdapter = func(ep Endpoint) (Adapter, error) {
		return staticAdapter{name: ep.Provider}, nil
	}

	adapters, err := BuildAdapters([]Endpoint{
		{Provider: "openai", Model: "gpt-4o", APIKey: "k1"},
		{Provider: "anthropic", Model: "claude-sonnet-4-20250514", APIKey: "k2"},
	})
	if err != nil {
		t.Fatalf("BuildAdapters: %v", err)
	}
	if len(adapters) != 2 {
		t.Fatalf("got %d adapters, want 2", len(adapters))
	}
	if adapters[0].Name() != "openai" || adapters[1].Name() != "anthropic" {
		t.Errorf("order = %q, %q", adapters[0].Name(), adapters[1].Name())
	}
}

func TestBuildAdaptersAbortsOnConstructorFailure(t *testing.T) {
	orig := newAdapter
	defer func() { newAdapter = orig }()
	newAdapter = func(ep Endpoint) (Adapter, error) {
		if ep.Provider == "broken" {
			return nil, errors.New("bad endpoint")
		}
		return staticAdapter{name: ep.Provider}, nil
	}

	_, err := BuildAdapters([]Endpoint{
		{Provider: "openai"},
		{Provider: "broken"},
	})
	if err == nil {
		t.Fatal("expected error when one endpoint fails to construct")
	}
}
