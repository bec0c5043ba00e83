package bus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNilBusPublishOutbound(t *testing.T) {
	var b *Bus
	// Must not panic.
	b.PublishOutbound(OutboundMessage{Channel: "discord", Content: "hi"})
	if got := b.Dropped(); got != 0 {
		t.Errorf("Dropped() on nil bus = %d, want 0", got)
	}
}

func TestSessionKey(t *testing.T) {
	msg := InboundMessage{Channel: "discord", ChatID: "c1", SenderID: "u1"}
	if got := msg.SessionKey(); got != "discord:c1:u1" {
		t.Errorf("SessionKey() = %q", got)
	}
}

func TestPublishInbound(t *testing.T) {
	b := New(4, quietLogger())

	if err := b.PublishInbound(context.Background(), InboundMessage{Channel: "web", Content: "hello"}); err != nil {
		t.Fatalf("PublishInbound: %v", err)
	}

	select {
	case got := <-b.Inbound():
		if got.Content != "hello" {
			t.Errorf("Content = %q", got.Content)
		}
		if got.Timestamp.IsZero() {
			t.Error("Timestamp should be stamped on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for inbound message")
	}
}

func TestPublishInboundBlocksUntilContextDone(t *testing.T) {
	b := New(1, quietLogger())
	if err := b.PublishInbound(context.Background(), InboundMessage{Content: "fill"}); err != nil {
		t.Fatalf("PublishInbound: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.PublishInbound(ctx, InboundMessage{Content: "blocked"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestPublishInboundAfterStop(t *testing.T) {
	b := New(1, quietLogger())
	_ = b.PublishInbound(context.Background(), InboundMessage{Content: "fill"})
	b.Stop()
	b.Stop() // idempotent

	err := b.PublishInbound(context.Background(), InboundMessage{Content: "late"})
	if !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
}

func TestOutboundDropsWhenFull(t *testing.T) {
	var mu sync.Mutex
	var dropped []string
	b := New(1, quietLogger(), WithDropHook(func(ch string) {
		mu.Lock()
		dropped = append(dropped, ch)
		mu.Unlock()
	}))

	b.PublishOutbound(OutboundMessage{Channel: "discord", Content: "one"})
	b.PublishOutbound(OutboundMessage{Channel: "mqtt", Content: "two"})

	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(dropped) != 1 || dropped[0] != "mqtt" {
		t.Errorf("drop hook saw %v, want [mqtt]", dropped)
	}
}

func TestDispatchOutboundFanOut(t *testing.T) {
	b := New(8, quietLogger())

	var mu sync.Mutex
	got := map[string][]string{}
	record := func(name string) Handler {
		return func(_ context.Context, msg OutboundMessage) error {
			mu.Lock()
			defer mu.Unlock()
			got[name] = append(got[name], msg.Content)
			return nil
		}
	}
	b.SubscribeOutbound("discord", record("discord-a"))
	b.SubscribeOutbound("discord", record("discord-b"))
	b.SubscribeOutbound("mqtt", func(context.Context, OutboundMessage) error {
		return errors.New("broker down")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.DispatchOutbound(ctx)
		close(done)
	}()

	b.PublishOutbound(OutboundMessage{Channel: "discord", Content: "first"})
	b.PublishOutbound(OutboundMessage{Channel: "mqtt", Content: "ignored error"})
	b.PublishOutbound(OutboundMessage{Channel: "nobody", Content: "no subscriber"})
	b.PublishOutbound(OutboundMessage{Channel: "discord", Content: "second"})

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(got["discord-b"])
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for delivery")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	for _, name := range []string{"discord-a", "discord-b"} {
		if len(got[name]) != 2 || got[name][0] != "first" || got[name][1] != "second" {
			t.Errorf("%s received %v, want [first second]", name, got[name])
		}
	}
}

func TestDispatchOutboundStopsOnStop(t *testing.T) {
	b := New(1, quietLogger())
	done := make(chan error, 1)
	go func() { done <- b.DispatchOutbound(context.Background()) }()

	b.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("DispatchOutbound returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("DispatchOutbound did not return after Stop")
	}
}
