package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echo " + name,
		Parameters:  map[string]any{"type": "object"},
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			return JSONResult(map[string]any{"tool": name, "args": args}), nil
		},
	}
}

func TestDefinitionsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry(quietLogger())
	for _, name := range []string{"web_fetch", "internal_state", "send_message"} {
		r.Register(echoTool(name))
	}
	// Re-registration replaces in place.
	replacement := echoTool("internal_state")
	replacement.Description = "replaced"
	r.Register(replacement)

	defs := r.Definitions()
	if len(defs) != 3 {
		t.Fatalf("got %d definitions, want 3", len(defs))
	}
	want := []string{"web_fetch", "internal_state", "send_message"}
	for i, d := range defs {
		if d.Name != want[i] {
			t.Errorf("defs[%d] = %q, want %q", i, d.Name, want[i])
		}
	}
	if defs[1].Description != "replaced" {
		t.Errorf("re-registration should overwrite, got %q", defs[1].Description)
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d", r.Len())
	}
}

func TestExecuteNeverFails(t *testing.T) {
	r := NewRegistry(quietLogger())
	r.Register(echoTool("ok"))
	r.Register(&Tool{
		Name: "fails",
		Handler: func(context.Context, map[string]any) (string, error) {
			return "", errors.New("backend unavailable")
		},
	})
	r.Register(&Tool{
		Name: "panics",
		Handler: func(context.Context, map[string]any) (string, error) {
			panic("boom")
		},
	})

	tests := []struct {
		name      string
		tool      string
		wantError bool
		wantText  string
	}{
		{"success", "ok", false, `"tool":"ok"`},
		{"unknown tool", "missing", true, "unknown tool: missing"},
		{"handler error", "fails", true, "backend unavailable"},
		{"handler panic", "panics", true, "panicked: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Execute(context.Background(), tt.tool, nil)
			if got := IsErrorResult(out); got != tt.wantError {
				t.Errorf("IsErrorResult(%s) = %v, want %v", out, got, tt.wantError)
			}
			if !strings.Contains(out, tt.wantText) {
				t.Errorf("result %q does not contain %q", out, tt.wantText)
			}
		})
	}
}

func TestExecuteNilArgsBecomeEmptyMap(t *testing.T) {
	r := NewRegistry(quietLogger())
	var got map[string]any
	r.Register(&Tool{
		Name: "capture",
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			got = args
			return "{}", nil
		},
	})
	r.Execute(context.Background(), "capture", nil)
	if got == nil {
		t.Error("handler received nil args")
	}
}

func TestIsErrorResult(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{`{"error": "x"}`, true},
		{`{"error": null}`, true},
		{`{"url": "u", "error": "timeout"}`, true},
		{`{"success": true}`, false},
		{`{"text": "{\"error\": \"nested\"}"}`, false},
		{`{"result": {"error": "nested object"}}`, false},
		{`Error: something`, false},
		{`["error"]`, false},
		{``, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsErrorResult(tt.in); got != tt.want {
				t.Errorf("IsErrorResult(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestJSONResultDoesNotEscapeHTML(t *testing.T) {
	out := JSONResult(map[string]string{"url": "https://a.io/?x=1&y=<2>"})
	if !strings.Contains(out, "&y=<2>") {
		t.Errorf("JSONResult escaped HTML: %s", out)
	}
	var back map[string]string
	if err := json.Unmarshal([]byte(out), &back); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want int
	}{
		{"float", map[string]any{"n": float64(7)}, 7},
		{"int", map[string]any{"n": 3}, 3},
		{"numeric string", map[string]any{"n": "12"}, 12},
		{"garbage string", map[string]any{"n": "abc"}, 10},
		{"missing", map[string]any{}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := intArg(tt.args, "n", 10); got != tt.want {
				t.Errorf("intArg = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSessionKeyContext(t *testing.T) {
	ctx := context.Background()
	if got := SessionKeyFromContext(ctx); got != "" {
		t.Errorf("empty context key = %q", got)
	}
	ctx = WithSessionKey(WithChannel(ctx, "discord"), "discord:c:u")
	if got := SessionKeyFromContext(ctx); got != "discord:c:u" {
		t.Errorf("SessionKeyFromContext = %q", got)
	}
	if got := ChannelFromContext(ctx); got != "discord" {
		t.Errorf("ChannelFromContext = %q", got)
	}
}
