package provider

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter implements Adapter on top of the gollm library, which handles
// the provider-specific wire protocols for OpenAI, Anthropic, and others.
type GollmAdapter struct {
	endpoint Endpoint
	llm      gollm.LLM
}

// NewGollmAdapter creates an adapter for one endpoint. An empty APIKey lets
// gollm read it from the provider's conventional environment variable.
func NewGollmAdapter(ep Endpoint) (*GollmAdapter, error) {
	maxTokens := ep.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	opts := []gollm.ConfigOption{
		gollm.SetProvider(ep.Provider),
		gollm.SetModel(ep.Model),
		gollm.SetMaxTokens(maxTokens),
		gollm.SetTemperature(ep.Temperature),
		gollm.SetMaxRetries(0), // fallback across endpoints replaces retry
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if ep.APIKey != "" {
		opts = append(opts, gollm.SetAPIKey(ep.APIKey))
	}
	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, &TransportError{ProviderError{
			Provider: ep.Provider,
			Message:  "failed to construct backend client",
			Cause:    err,
		}}
	}
	return &GollmAdapter{endpoint: ep, llm: llm}, nil
}

// Name returns the backend identifier.
func (a *GollmAdapter) Name() string { return a.endpoint.Provider }

// Complete sends the request and interprets the response as terminal text
// and/or tool calls.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := a.translateRequest(req)

	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}
	if req.MaxTokens > 0 {
		a.llm.SetOption("max_tokens", req.MaxTokens)
	}

	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, a.classifyError(err)
	}
	return a.buildResponse(req, text), nil
}

// translateRequest flattens the conversation into a gollm prompt. System
// messages become the system prompt; assistant turns and tool results are
// inlined as labeled context.
func (a *GollmAdapter) translateRequest(req Request) *gollm.Prompt {
	var systemPrompt string
	var parts []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt += msg.Content + "\n"
		case RoleUser:
			parts = append(parts, msg.Content)
		case RoleAssistant:
			if msg.Content != "" {
				parts = append(parts, "[Assistant]: "+msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, "[Assistant called "+tc.Name+"]: "+string(tc.Arguments))
			}
		case RoleTool:
			prefix := "[Tool Result " + msg.ToolCallID + "]"
			if msg.IsError {
				prefix = "[Tool Error " + msg.ToolCallID + "]"
			}
			parts = append(parts, prefix+": "+msg.Content)
		}
	}

	promptText := strings.Join(parts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	promptOpts := []gollm.PromptOption{}
	if systemPrompt != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(strings.TrimSpace(systemPrompt), gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens > 0 {
		promptOpts = append(promptOpts, gollm.WithMaxLength(req.MaxTokens))
	}

	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
		choice := req.ToolChoice
		if choice == "" {
			choice = "auto"
		}
		promptOpts = append(promptOpts, gollm.WithToolChoice(choice))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

// buildResponse constructs a Response, extracting any tool calls gollm
// returned embedded in the generated text.
func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	model := req.Model
	if model == "" {
		model = a.endpoint.Model
	}

	toolCalls := parseToolCalls(text)
	cleaned := text
	if len(toolCalls) > 0 {
		cleaned = stripToolCallJSON(text)
	}

	finish := "stop"
	if len(toolCalls) > 0 {
		finish = "tool_calls"
	}

	inTokens := estimateRequestTokens(req)
	outTokens := len(text) / 4
	return &Response{
		ID:           "resp_" + uuid.New().String()[:8],
		Model:        model,
		Provider:     a.endpoint.Provider,
		Text:         cleaned,
		ToolCalls:    toolCalls,
		FinishReason: finish,
		Usage: Usage{
			InputTokens:  inTokens,
			OutputTokens: outTokens,
			TotalTokens:  inTokens + outTokens,
		},
	}
}

// parseToolCalls extracts tool calls gollm may return as JSON embedded in
// the response text, either wrapped in {"tool_calls": ...} or as a bare
// array of {"name": ..., "arguments": ...} objects.
func parseToolCalls(text string) []ToolCall {
	var rawCalls []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	if start := strings.Index(text, `{"tool_calls"`); start != -1 {
		var wrapper struct {
			ToolCalls json.RawMessage `json:"tool_calls"`
		}
		if err := json.Unmarshal([]byte(text[start:]), &wrapper); err == nil {
			_ = json.Unmarshal(wrapper.ToolCalls, &rawCalls)
		}
	}
	if len(rawCalls) == 0 {
		start := strings.Index(text, `[{"name"`)
		if start == -1 {
			return nil
		}
		if err := json.Unmarshal([]byte(text[start:]), &rawCalls); err != nil {
			return nil
		}
	}

	calls := make([]ToolCall, 0, len(rawCalls))
	for _, rc := range rawCalls {
		calls = append(calls, ToolCall{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: rc.Arguments,
		})
	}
	return calls
}

func stripToolCallJSON(text string) string {
	for _, marker := range []string{`{"tool_calls"`, `[{"name"`} {
		if idx := strings.Index(text, marker); idx != -1 {
			text = strings.TrimSpace(text[:idx])
		}
	}
	return text
}

// classifyError maps a gollm error onto the fallback taxonomy. gollm
// surfaces provider failures as flat errors, so classification keys off the
// message content.
func (a *GollmAdapter) classifyError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	name := a.endpoint.Provider

	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "invalid key"):
		return &AuthError{ProviderError{Provider: name, StatusCode: 401, Message: msg, Cause: err}}
	case strings.Contains(lower, "403") || strings.Contains(lower, "forbidden"):
		return &AuthError{ProviderError{Provider: name, StatusCode: 403, Message: msg, Cause: err}}
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "quota"):
		return &RateLimitError{ProviderError{Provider: name, StatusCode: 429, Message: msg, Cause: err}}
	case strings.Contains(lower, "unmarshal") || strings.Contains(lower, "decode") ||
		strings.Contains(lower, "unexpected response"):
		return &MalformedResponseError{ProviderError{Provider: name, Message: msg, Cause: err}}
	default:
		return &TransportError{ProviderError{Provider: name, Message: msg, Cause: err}}
	}
}

// estimateRequestTokens is a rough byte-length estimate; gollm does not
// expose the provider's reported usage.
func estimateRequestTokens(req Request) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
		for _, tc := range msg.ToolCalls {
			total += len(tc.Arguments) / 4
		}
	}
	if total == 0 {
		total = 1
	}
	return total
}
