// Package provider defines the transport boundary to model backends. A
// backend is a polymorphic capability: it accepts a serialized conversation
// plus declared tool schemas and returns either terminal text or a list of
// tool calls. Failures are classified so the orchestrator can decide whether
// to fall back to the next configured backend.
package provider

import (
	"context"
	"encoding/json"
)

// Role identifies who produced a wire-level message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry of the serialized conversation sent to a backend.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant messages
	ToolCallID string     `json:"tool_call_id,omitempty"` // tool messages
	IsError    bool       `json:"is_error,omitempty"`     // tool messages
}

// ToolSchema declares a tool to the model (name, description, JSON Schema).
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is the input to a backend Complete call.
type Request struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	ToolChoice  string       `json:"tool_choice,omitempty"` // "auto" when empty
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
}

// Usage tracks token consumption reported (or estimated) by a backend.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// Response is a backend's answer: terminal text, tool calls, or both.
type Response struct {
	ID           string     `json:"id"`
	Model        string     `json:"model"`
	Provider     string     `json:"provider"`
	Text         string     `json:"text,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	Usage        Usage      `json:"usage"`
	FinishReason string     `json:"finish_reason"` // "stop" or "tool_calls"
}

// Adapter is the capability every backend implements. One instance per
// configured endpoint; the orchestrator holds an ordered list of them.
type Adapter interface {
	// Name returns the backend identifier (e.g. "openai", "anthropic").
	Name() string

	// Complete sends a blocking request and returns the full response.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Endpoint is one entry of the ordered fallback list: a backend identifier,
// a model identifier, and transport parameters.
type Endpoint struct {
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	APIKey      string         `json:"api_key,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// newAdapter constructs the production adapter for one endpoint. A package
// variable so tests can substitute a constructor that skips real client
// setup and credential validation.
var newAdapter = func(ep Endpoint) (Adapter, error) {
	return NewGollmAdapter(ep)
}

// BuildAdapters constructs one gollm-backed adapter per endpoint, preserving
// order. An endpoint that fails to construct aborts the whole build; a
// fallback list with silently missing entries would be misleading.
func BuildAdapters(endpoints []Endpoint) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(endpoints))
	for _, ep := range endpoints {
		a, err := newAdapter(ep)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}
