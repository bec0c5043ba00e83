package tools

import (
	"context"
	"testing"

	"github.com/tokamak-network/ai-tokamak/internal/bus"
)

type recordingPublisher struct {
	msgs []bus.OutboundMessage
}

func (p *recordingPublisher) PublishOutbound(msg bus.OutboundMessage) {
	p.msgs = append(p.msgs, msg)
}

func TestSendMessage(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		wantSent  int
	}{
		{
			name:     "delivers",
			args:     map[string]any{"channel": "discord", "chat_id": "123", "content": "Staking is live"},
			wantSent: 1,
		},
		{
			name:      "missing chat id",
			args:      map[string]any{"channel": "discord", "content": "hello"},
			wantError: true,
		},
		{
			name:      "missing content",
			args:      map[string]any{"channel": "discord", "chat_id": "123"},
			wantError: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			r := NewRegistry(quietLogger())
			r.RegisterSendMessage(pub)

			ctx := WithSessionKey(context.Background(), "web:abc:u1")
			out := r.Execute(ctx, "send_message", tt.args)

			if IsErrorResult(out) != tt.wantError {
				t.Errorf("result %s, wantError %v", out, tt.wantError)
			}
			if len(pub.msgs) != tt.wantSent {
				t.Fatalf("sent %d messages, want %d", len(pub.msgs), tt.wantSent)
			}
			if tt.wantSent == 1 {
				got := pub.msgs[0]
				if got.Channel != "discord" || got.ChatID != "123" || got.Content != "Staking is live" {
					t.Errorf("message = %+v", got)
				}
				if got.Metadata["origin_session"] != "web:abc:u1" {
					t.Errorf("origin_session = %q", got.Metadata["origin_session"])
				}
			}
		})
	}
}
