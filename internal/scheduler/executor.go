package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tokamak-network/ai-tokamak/internal/agent"
	"github.com/tokamak-network/ai-tokamak/internal/bus"
	"github.com/tokamak-network/ai-tokamak/internal/llm"
	"github.com/tokamak-network/ai-tokamak/internal/session"
)

// Defaults for the built-in session cleanup task.
const (
	SessionCleanupTaskName = "session-cleanup"
	DefaultCleanupInterval = 10 * time.Minute
	DefaultSessionMaxAge   = time.Hour
	sessionKeyPrefix       = "scheduler:"
	createdBySystem        = "system"
)

// ErrNoRunner is returned when a message task fires without an agent.
var ErrNoRunner = errors.New("no agent configured for message tasks")

// Runner runs the agent for one message.
type Runner interface {
	RunWithRetry(ctx context.Context, sess *session.Session, message string, maxRetries int, opts ...agent.RunOption) (string, bool)
}

// Publisher delivers outbound messages.
type Publisher interface {
	PublishOutbound(msg bus.OutboundMessage)
}

// Executor carries out task payloads.
type Executor struct {
	sessions   *session.Store
	runner     Runner
	pub        Publisher
	maxRetries int
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // session key → lock
}

// NewExecutor creates an Executor. runner and pub may be nil when only
// cleanup tasks are scheduled.
func NewExecutor(sessions *session.Store, runner Runner, pub Publisher, maxRetries int, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Executor{
		sessions:   sessions,
		runner:     runner,
		pub:        pub,
		maxRetries: maxRetries,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// lock serializes message tasks that share a session.
func (e *Executor) lock(key string) func() {
	e.mu.Lock()
	m, ok := e.locks[key]
	if !ok {
		m = &sync.Mutex{}
		e.locks[key] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Execute implements ExecuteFunc.
func (e *Executor) Execute(ctx context.Context, task *Task) (string, error) {
	switch task.Payload.Kind {
	case PayloadSessionCleanup:
		return e.cleanup(task)
	case PayloadMessage:
		return e.message(ctx, task)
	default:
		return "", fmt.Errorf("unknown payload kind %q", task.Payload.Kind)
	}
}

func (e *Executor) cleanup(task *Task) (string, error) {
	maxAge := DefaultSessionMaxAge
	if raw, ok := task.Payload.Data["max_age"].(string); ok && raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return "", fmt.Errorf("max_age: %w", err)
		}
		maxAge = d
	}
	removed := e.sessions.CleanupStale(maxAge)
	return fmt.Sprintf("removed %d sessions", removed), nil
}

func (e *Executor) message(ctx context.Context, task *Task) (string, error) {
	if e.runner == nil {
		return "", ErrNoRunner
	}
	channel, chatID, err := ParseTarget(task.Payload.Target)
	if err != nil {
		return "", err
	}
	text, _ := task.Payload.Data["message"].(string)
	if text == "" {
		return "", errors.New("message payload has no data.message")
	}

	key := sessionKeyPrefix + task.Name
	unlock := e.lock(key)
	defer unlock()

	sess := e.sessions.GetOrCreate(key)
	if sess.IsEnded() {
		e.logger.Info("scheduler session ended, skipping message task", "task", task.Name, "session", key)
		return "skipped: session ended", nil
	}
	sess.AddMessage(llm.RoleUser, text, map[string]string{"sender": "scheduler", "task": task.ID})

	reply, ok := e.runner.RunWithRetry(ctx, sess, text, e.maxRetries)
	if !ok {
		return "", errors.New("agent produced no reply")
	}
	sess.AddMessage(llm.RoleAssistant, reply, nil)

	if e.pub != nil {
		e.pub.PublishOutbound(bus.OutboundMessage{
			Channel:  channel,
			ChatID:   chatID,
			Content:  reply,
			Metadata: map[string]string{"task": task.Name},
		})
	}
	e.logger.Debug("scheduled message delivered", "task", task.Name, "channel", channel, "chat_id", chatID)
	return fmt.Sprintf("delivered %d chars to %s", len([]rune(reply)), task.Payload.Target), nil
}

// SessionCleanupTask returns the built-in task that removes sessions
// idle for longer than maxAge every interval. Zero values take the
// defaults.
func SessionCleanupTask(interval, maxAge time.Duration) *Task {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return &Task{
		Name:     SessionCleanupTaskName,
		Schedule: Schedule{Kind: ScheduleEvery, Every: &Duration{Duration: interval}},
		Payload: Payload{
			Kind: PayloadSessionCleanup,
			Data: map[string]any{"max_age": maxAge.String()},
		},
		Enabled:   true,
		CreatedBy: createdBySystem,
	}
}
