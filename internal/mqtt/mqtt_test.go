package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tokamak-network/ai-tokamak/internal/bus"
	"github.com/tokamak-network/ai-tokamak/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTopics(t *testing.T) {
	tp := Topics{Prefix: "aitokamak"}
	if got := tp.Status(); got != "aitokamak/status" {
		t.Errorf("Status = %q", got)
	}
	if got := tp.InboundFilter(); got != "aitokamak/inbound/+" {
		t.Errorf("InboundFilter = %q", got)
	}
	if got := tp.Outbound("room1"); got != "aitokamak/outbound/room1" {
		t.Errorf("Outbound = %q", got)
	}

	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"aitokamak/inbound/room1", "room1", true},
		{"aitokamak/inbound/", "", false},
		{"aitokamak/inbound/a/b", "", false},
		{"aitokamak/outbound/room1", "", false},
		{"other/inbound/room1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := tp.ChatID(tt.topic)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ChatID = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDecodeInbound(t *testing.T) {
	tp := Topics{Prefix: "aitokamak"}
	tests := []struct {
		name       string
		topic      string
		payload    string
		wantErr    bool
		wantSender string
		wantMsgID  string
	}{
		{"full", "aitokamak/inbound/room1", `{"sender_id":"alice","content":"What is TON?","message_id":"m1"}`, false, "alice", "m1"},
		{"sender defaults to chat", "aitokamak/inbound/room1", `{"content":"hi"}`, false, "room1", ""},
		{"empty content", "aitokamak/inbound/room1", `{"sender_id":"alice","content":"  "}`, true, "", ""},
		{"not json", "aitokamak/inbound/room1", `hello`, true, "", ""},
		{"wrong topic", "aitokamak/status", `{"content":"hi"}`, true, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := tp.decodeInbound(tt.topic, []byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if msg.Channel != Channel || msg.ChatID != "room1" || msg.SenderID != tt.wantSender {
				t.Errorf("msg = %+v", msg)
			}
			if msg.Metadata["message_id"] != tt.wantMsgID {
				t.Errorf("message_id = %q", msg.Metadata["message_id"])
			}
			if msg.SessionKey() != "mqtt:room1:"+tt.wantSender {
				t.Errorf("SessionKey = %q", msg.SessionKey())
			}
		})
	}
}

func TestEncodeOutbound(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	msg := bus.OutboundMessage{
		Channel:  Channel,
		ChatID:   "room1",
		Content:  "**TON** is the [token](<https://tokamak.network>)",
		ReplyTo:  "m1",
		Metadata: map[string]string{"session": "mqtt:room1:alice"},
	}

	tests := []struct {
		name     string
		plain    bool
		wantText string
	}{
		{"markdown only", false, ""},
		{"with plain text", true, "TON is the token (https://tokamak.network)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := encodeOutbound(msg, tt.plain, now)
			if err != nil {
				t.Fatalf("encodeOutbound: %v", err)
			}
			var got outboundPayload
			if err := json.Unmarshal(b, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Content != msg.Content || got.ReplyTo != "m1" || got.Session != "mqtt:room1:alice" {
				t.Errorf("payload = %+v", got)
			}
			if got.Text != tt.wantText {
				t.Errorf("text = %q, want %q", got.Text, tt.wantText)
			}
			if !got.Timestamp.Equal(now) {
				t.Errorf("timestamp = %v", got.Timestamp)
			}
		})
	}
}

type recordingInbound struct {
	msgs []bus.InboundMessage
	err  error
}

func (r *recordingInbound) PublishInbound(_ context.Context, msg bus.InboundMessage) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestHandleInbound(t *testing.T) {
	in := &recordingInbound{}
	tr := New(config.MQTTConfig{TopicPrefix: "aitokamak", RateLimitPerMinute: 2}, "client", in, quietLogger())

	for i := 0; i < 3; i++ {
		tr.handleInbound("aitokamak/inbound/room1", []byte(`{"sender_id":"bob","content":"hello"}`))
	}
	if len(in.msgs) != 2 {
		t.Fatalf("queued %d messages, want 2 (rate limited)", len(in.msgs))
	}

	tr.limiter.reset()
	tr.handleInbound("aitokamak/inbound/room1", []byte(`not json`))
	if len(in.msgs) != 2 {
		t.Errorf("invalid payload was queued")
	}
}

func TestHandleInboundQueueError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	in := &recordingInbound{err: errors.New("bus stopped")}
	tr := New(config.MQTTConfig{TopicPrefix: "aitokamak"}, "client", in, logger)

	tr.handleInbound("aitokamak/inbound/room1", []byte(`{"content":"hello"}`))
	if !strings.Contains(buf.String(), "not queued") {
		t.Errorf("expected warning, got %q", buf.String())
	}
}

func TestDeliverNotConnected(t *testing.T) {
	tr := New(config.MQTTConfig{TopicPrefix: "aitokamak"}, "client", &recordingInbound{}, quietLogger())
	err := tr.deliver(context.Background(), bus.OutboundMessage{ChatID: "room1", Content: "hi"})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("deliver err = %v, want ErrNotConnected", err)
	}
}

func TestNewClientIDPrecedence(t *testing.T) {
	tr := New(config.MQTTConfig{ClientID: "configured"}, "generated", &recordingInbound{}, quietLogger())
	if tr.clientID != "configured" {
		t.Errorf("clientID = %q", tr.clientID)
	}
	tr = New(config.MQTTConfig{}, "generated", &recordingInbound{}, quietLogger())
	if tr.clientID != "generated" {
		t.Errorf("clientID = %q", tr.clientID)
	}
}

type recordingSubscriber struct {
	channels []string
}

func (r *recordingSubscriber) SubscribeOutbound(channel string, _ bus.Handler) {
	r.channels = append(r.channels, channel)
}

func TestAttach(t *testing.T) {
	sub := &recordingSubscriber{}
	New(config.MQTTConfig{}, "c", &recordingInbound{}, quietLogger()).Attach(sub)
	if len(sub.channels) != 1 || sub.channels[0] != Channel {
		t.Errorf("subscribed channels = %v", sub.channels)
	}
}

func TestLoadOrCreateClientID(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := LoadOrCreateClientID(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateClientID: %v", err)
	}
	if !strings.HasPrefix(first, "aitokamak-") {
		t.Errorf("id = %q", first)
	}
	data, err := os.ReadFile(filepath.Join(dir, clientIDFile))
	if err != nil || strings.TrimSpace(string(data)) != first {
		t.Fatalf("persisted = %q, err %v", data, err)
	}

	second, err := LoadOrCreateClientID(dir)
	if err != nil || second != first {
		t.Errorf("second = %q, err %v; want %q", second, err, first)
	}
}

func TestRateLimiter(t *testing.T) {
	r := newMessageRateLimiter(3, time.Minute, quietLogger())
	allowed := 0
	for i := 0; i < 5; i++ {
		if r.allow() {
			allowed++
		}
	}
	if allowed != 3 || r.dropped.Load() != 2 {
		t.Errorf("allowed %d, dropped %d", allowed, r.dropped.Load())
	}
	r.reset()
	if !r.allow() {
		t.Error("allow after reset = false")
	}
}
