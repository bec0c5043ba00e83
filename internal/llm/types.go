package llm

import (
	"encoding/json"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// FinishReasonError marks a response produced from a backend failure.
// It is the only finish reason the agent loop treats specially.
const FinishReasonError = "error"

// FinishReasonStop is the normal end of a model turn.
const FinishReasonStop = "stop"

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	ID       string `json:"id,omitempty"`
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`

	// Source records which encoding the call was parsed from.
	Source Encoding `json:"-"`
}

// NewToolCall builds a ToolCall from its parts.
func NewToolCall(id, name string, args map[string]any, source Encoding) ToolCall {
	var tc ToolCall
	tc.ID = id
	tc.Function.Name = name
	tc.Function.Arguments = args
	tc.Source = source
	return tc
}

// ArgumentsJSON returns the call arguments encoded as a JSON object.
// Nil arguments encode as "{}".
func (tc ToolCall) ArgumentsJSON() string {
	if tc.Function.Arguments == nil {
		return "{}"
	}
	b, err := json.Marshal(tc.Function.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ToolDefinition describes a tool offered to the model. Parameters is a
// JSON schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is a single chat call.
type Request struct {
	Messages    []Message
	Tools       []ToolDefinition // nil when no tools are offered
	Model       string
	MaxTokens   int
	Temperature float64
}

// Response is the unified response from any provider. Backend failures
// are reported with FinishReason set to FinishReasonError and a
// human-readable Content, never as a Go error.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Model        string

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int
}

// HasToolCalls reports whether the model asked for any tool.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// IsError reports whether the response represents a backend failure.
func (r *Response) IsError() bool {
	return r == nil || r.FinishReason == FinishReasonError
}

// errorNote is the content placed in error responses.
const errorNote = "LLM 호출 중 오류가 발생했습니다. (LLM call failed)"

// ErrorResponse converts a backend failure into a Response.
func ErrorResponse(model string) *Response {
	return &Response{
		Content:      errorNote,
		FinishReason: FinishReasonError,
		Model:        model,
	}
}
