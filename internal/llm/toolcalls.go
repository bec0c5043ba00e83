package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Encoding identifies how a tool call reached us.
type Encoding string

const (
	// EncodingStructured is the backend's native function-call field.
	EncodingStructured Encoding = "structured"

	// EncodingTextual is a <tool_call>{json}</tool_call> tag in content.
	EncodingTextual Encoding = "textual"
)

// toolCallTag matches one textual tool call. The grammar is part of the
// prompt contract with the model and must not change.
var toolCallTag = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)

// RawToolCall is a structured call as it arrives from a backend, with
// arguments still JSON-encoded.
type RawToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolCallSource is either StructuredSource or TextualSource.
type ToolCallSource interface {
	parse() ([]ToolCall, string)
}

// StructuredSource carries native tool calls and the accompanying text.
type StructuredSource struct {
	Calls   []RawToolCall
	Content string
}

// TextualSource is free text that may embed <tool_call> tags.
type TextualSource struct {
	Content string
}

// ParseToolCalls normalizes either encoding into ToolCalls and returns
// the content that remains for the user.
func ParseToolCalls(src ToolCallSource) ([]ToolCall, string) {
	return src.parse()
}

// ExtractToolCalls picks the encoding for a backend reply: structured
// calls win when present, otherwise the content is scanned for tags.
func ExtractToolCalls(structured []RawToolCall, content string) ([]ToolCall, string) {
	if len(structured) > 0 {
		return ParseToolCalls(StructuredSource{Calls: structured, Content: content})
	}
	return ParseToolCalls(TextualSource{Content: content})
}

func (s StructuredSource) parse() ([]ToolCall, string) {
	calls := make([]ToolCall, 0, len(s.Calls))
	for _, raw := range s.Calls {
		calls = append(calls, NewToolCall(raw.ID, raw.Name, decodeArguments(raw.Arguments), EncodingStructured))
	}
	return calls, s.Content
}

// decodeArguments decodes a JSON argument string. Anything that is not
// a JSON object is preserved under "raw".
func decodeArguments(s string) map[string]any {
	if strings.TrimSpace(s) == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil || args == nil {
		return map[string]any{"raw": s}
	}
	return args
}

func (s TextualSource) parse() ([]ToolCall, string) {
	if !strings.Contains(s.Content, "<tool_call>") {
		return nil, s.Content
	}

	var calls []ToolCall
	for _, m := range toolCallTag.FindAllStringSubmatch(s.Content, -1) {
		var data struct {
			Name      string         `json:"name"`
			Arguments map[string]any `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
			continue
		}
		if data.Name == "" {
			continue
		}
		if data.Arguments == nil {
			data.Arguments = map[string]any{}
		}
		calls = append(calls, NewToolCall(newCallID(), data.Name, data.Arguments, EncodingTextual))
	}

	if len(calls) == 0 {
		return nil, s.Content
	}
	return calls, strings.TrimSpace(toolCallTag.ReplaceAllString(s.Content, ""))
}

// newCallID returns an identifier in the call_xxxxxxxx form.
func newCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
