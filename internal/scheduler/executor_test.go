package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tokamak-network/ai-tokamak/internal/agent"
	"github.com/tokamak-network/ai-tokamak/internal/bus"
	"github.com/tokamak-network/ai-tokamak/internal/session"
)

type stubRunner struct {
	mu       sync.Mutex
	reply    string
	ok       bool
	delay    time.Duration
	messages []string
	retries  []int
	active   int32
	overlap  atomic.Bool
}

func (r *stubRunner) RunWithRetry(_ context.Context, _ *session.Session, message string, maxRetries int, _ ...agent.RunOption) (string, bool) {
	if atomic.AddInt32(&r.active, 1) > 1 {
		r.overlap.Store(true)
	}
	defer atomic.AddInt32(&r.active, -1)
	time.Sleep(r.delay)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	r.retries = append(r.retries, maxRetries)
	return r.reply, r.ok
}

type recordingPublisher struct {
	msgs []bus.OutboundMessage
}

func (p *recordingPublisher) PublishOutbound(msg bus.OutboundMessage) {
	p.msgs = append(p.msgs, msg)
}

func messageTask(target, text string) *Task {
	return &Task{
		ID:   "task-1",
		Name: "weekly-update",
		Payload: Payload{
			Kind:   PayloadMessage,
			Target: target,
			Data:   map[string]any{"message": text},
		},
	}
}

func TestExecutorCleanup(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sessions := session.NewStore(10, session.WithClock(clock))
	sessions.GetOrCreate("web:old:u").AddMessage("user", "hi", nil)

	now = now.Add(2 * time.Hour)
	sessions.GetOrCreate("web:new:u").AddMessage("user", "hi", nil)

	e := NewExecutor(sessions, nil, nil, 0, quietLogger())

	tests := []struct {
		name      string
		data      map[string]any
		wantErr   bool
		remaining int
	}{
		{"bad max age", map[string]any{"max_age": "soon"}, true, 2},
		{"default max age", nil, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Name: "cleanup", Payload: Payload{Kind: PayloadSessionCleanup, Data: tt.data}}
			_, err := e.Execute(context.Background(), task)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := sessions.Len(); got != tt.remaining {
				t.Errorf("sessions remaining = %d, want %d", got, tt.remaining)
			}
		})
	}
}

func TestExecutorMessage(t *testing.T) {
	sessions := session.NewStore(10)
	runner := &stubRunner{reply: "This week on Tokamak...", ok: true}
	pub := &recordingPublisher{}
	e := NewExecutor(sessions, runner, pub, 2, quietLogger())

	result, err := e.Execute(context.Background(), messageTask("discord:123", "Summarize this week"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result == "" {
		t.Error("empty result summary")
	}
	if len(runner.messages) != 1 || runner.messages[0] != "Summarize this week" {
		t.Errorf("runner messages = %v", runner.messages)
	}
	if runner.retries[0] != 2 {
		t.Errorf("max retries = %d, want 2", runner.retries[0])
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages", len(pub.msgs))
	}
	out := pub.msgs[0]
	if out.Channel != "discord" || out.ChatID != "123" || out.Content != "This week on Tokamak..." {
		t.Errorf("outbound = %+v", out)
	}

	sess, ok := sessions.Get("scheduler:weekly-update")
	if !ok || sess.Len() != 2 {
		t.Errorf("scheduler session not recorded: %v", ok)
	}
}

func TestExecutorMessageErrors(t *testing.T) {
	tests := []struct {
		name    string
		runner  Runner
		task    *Task
		wantErr error
	}{
		{"no runner", nil, messageTask("web:1", "hi"), ErrNoRunner},
		{"bad target", &stubRunner{ok: true}, messageTask("web", "hi"), nil},
		{"no reply", &stubRunner{}, messageTask("web:1", "hi"), nil},
		{"no message", &stubRunner{ok: true}, messageTask("web:1", ""), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			e := NewExecutor(session.NewStore(10), tt.runner, pub, 0, quietLogger())
			_, err := e.Execute(context.Background(), tt.task)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if len(pub.msgs) != 0 {
				t.Errorf("published %d messages on failure", len(pub.msgs))
			}
		})
	}
}

func TestExecutorMessageEndedSession(t *testing.T) {
	sessions := session.NewStore(10)
	sessions.GetOrCreate("scheduler:weekly-update").End()
	runner := &stubRunner{reply: "unused", ok: true}
	pub := &recordingPublisher{}
	e := NewExecutor(sessions, runner, pub, 0, quietLogger())

	result, err := e.Execute(context.Background(), messageTask("discord:123", "Summarize this week"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result == "" {
		t.Error("empty result summary")
	}
	if len(runner.messages) != 0 || len(pub.msgs) != 0 {
		t.Errorf("ended session ran the agent: messages %v, published %d", runner.messages, len(pub.msgs))
	}
	sess, _ := sessions.Get("scheduler:weekly-update")
	if sess.Len() != 0 {
		t.Errorf("ended session stored %d messages", sess.Len())
	}
}

func TestExecutorMessageSerializesPerTask(t *testing.T) {
	sessions := session.NewStore(100)
	runner := &stubRunner{reply: "update", ok: true, delay: 5 * time.Millisecond}
	e := NewExecutor(sessions, runner, nil, 0, quietLogger())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Execute(context.Background(), messageTask("web:1", "status?")); err != nil {
				t.Errorf("Execute: %v", err)
			}
		}()
	}
	wg.Wait()

	if runner.overlap.Load() {
		t.Error("fires of one task ran concurrently")
	}
	sess, _ := sessions.Get("scheduler:weekly-update")
	msgs := sess.Messages()
	if len(msgs) != 8 {
		t.Fatalf("stored %d messages, want 8", len(msgs))
	}
	for i := 0; i+1 < len(msgs); i += 2 {
		if msgs[i].Role != "user" || msgs[i+1].Role != "assistant" {
			t.Fatalf("history not interleaved at %d: %s, %s", i, msgs[i].Role, msgs[i+1].Role)
		}
	}
}

func TestSessionCleanupTaskDefaults(t *testing.T) {
	task := SessionCleanupTask(0, 0)
	if task.Name != SessionCleanupTaskName || task.Schedule.Every.Duration != DefaultCleanupInterval {
		t.Errorf("task = %+v", task)
	}
	if task.Payload.Data["max_age"] != "1h0m0s" {
		t.Errorf("max_age = %v", task.Payload.Data["max_age"])
	}
	if err := task.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
