package session

import (
	"encoding/json"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is an operation requested by the model, before validation.
// IDs are unique within the turn that produced them.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Status is the final disposition of a tool execution.
type Status string

const (
	StatusOK       Status = "ok"
	StatusError    Status = "error"
	StatusTimedOut Status = "timed_out"
	StatusDenied   Status = "denied"
)

// ToolResult is the finalized outcome of one ToolCall.
type ToolResult struct {
	ToolCallID   string        `json:"tool_call_id"`
	Status       Status        `json:"status"`
	Output       string        `json:"output"`
	Truncated    bool          `json:"truncated"`
	OmittedBytes int           `json:"omitted_bytes,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Message is a single committed entry in the conversation log. Messages are
// append-only: once committed they are never mutated or removed.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`   // assistant messages only
	ToolCallID string      `json:"tool_call_id,omitempty"` // tool messages only
	Result     *ToolResult `json:"result,omitempty"`       // tool messages only
	Timestamp  time.Time   `json:"timestamp"`
}

// NewUserMessage creates a user Message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewAssistantMessage creates an assistant Message, optionally carrying the
// tool calls the model requested.
func NewAssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls, Timestamp: time.Now()}
}

// NewToolMessage creates a tool-role Message from a finalized result.
func NewToolMessage(res ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    res.Output,
		ToolCallID: res.ToolCallID,
		Result:     &res,
		Timestamp:  time.Now(),
	}
}

// clone returns a deep copy so snapshot consumers cannot reach store internals.
func (m Message) clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(out.ToolCalls, m.ToolCalls)
		for i, tc := range m.ToolCalls {
			if tc.Arguments != nil {
				args := make(json.RawMessage, len(tc.Arguments))
				copy(args, tc.Arguments)
				out.ToolCalls[i].Arguments = args
			}
		}
	}
	if m.Result != nil {
		r := *m.Result
		out.Result = &r
	}
	return out
}
