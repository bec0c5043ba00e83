package llm

import (
	"context"
	"testing"
)

type namedClient struct {
	name  string
	calls int
}

func (c *namedClient) Chat(_ context.Context, req *Request) *Response {
	c.calls++
	return &Response{Content: c.name, FinishReason: FinishReasonStop, Model: req.Model}
}

func TestMultiClientRouting(t *testing.T) {
	router := &namedClient{name: "openrouter"}
	direct := &namedClient{name: "anthropic"}

	m := NewMultiClient(router, nil)
	m.AddProvider("anthropic", direct)
	m.AddModel("claude-haiku-4", "anthropic")
	m.AddModel("ghost-model", "missing")
	m.AddModel("openai/gpt-4o", "openrouter-missing")

	tests := []struct {
		model     string
		want      string
		wantModel string
	}{
		{"claude-haiku-4", "anthropic", "claude-haiku-4"},
		{"anthropic/claude-sonnet-4", "anthropic", "claude-sonnet-4"},
		{"google/gemini-2.5-pro", "openrouter", "google/gemini-2.5-pro"},
		{"ghost-model", "openrouter", "ghost-model"},
		{"openai/gpt-4o", "openrouter", "openai/gpt-4o"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			req := &Request{Model: tt.model}
			resp := m.Chat(context.Background(), req)
			if resp.Content != tt.want {
				t.Errorf("routed to %q, want %q", resp.Content, tt.want)
			}
			if resp.Model != tt.wantModel {
				t.Errorf("model = %q, want %q", resp.Model, tt.wantModel)
			}
			if req.Model != tt.model {
				t.Errorf("caller request mutated to %q", req.Model)
			}
		})
	}
}

func TestMultiClientNoFallback(t *testing.T) {
	m := NewMultiClient(nil, nil)
	resp := m.Chat(context.Background(), &Request{Model: "x"})
	if resp.FinishReason != FinishReasonError {
		t.Errorf("FinishReason = %q, want error", resp.FinishReason)
	}
}
