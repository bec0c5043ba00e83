// Package chat connects inbound bus messages to the agent loop. It owns
// the conversation lifecycle: session lookup, reactivation, persistence
// of both sides of the exchange and delivery of the reply.
package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tokamak-network/ai-tokamak/internal/agent"
	"github.com/tokamak-network/ai-tokamak/internal/bus"
	"github.com/tokamak-network/ai-tokamak/internal/format"
	"github.com/tokamak-network/ai-tokamak/internal/llm"
	"github.com/tokamak-network/ai-tokamak/internal/session"
	"github.com/tokamak-network/ai-tokamak/internal/tools"
)

// ChannelDiscord is the bus channel whose replies are reformatted and
// split for Discord.
const ChannelDiscord = "discord"

// Runner runs the agent for one message.
type Runner interface {
	RunWithRetry(ctx context.Context, sess *session.Session, message string, maxRetries int, opts ...agent.RunOption) (string, bool)
}

// Publisher delivers outbound messages.
type Publisher interface {
	PublishOutbound(msg bus.OutboundMessage)
}

// Config tunes a Handler.
type Config struct {
	MaxRetries       int
	DiscordMaxLength int
}

// Handler processes inbound messages.
type Handler struct {
	sessions *session.Store
	runner   Runner
	pub      Publisher
	cfg      Config
	logger   *slog.Logger
	locks    *keyedMutex
}

// NewHandler creates a Handler. pub may be nil when replies are only
// consumed synchronously through Handle.
func NewHandler(sessions *session.Store, runner Runner, pub Publisher, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.DiscordMaxLength <= 0 {
		cfg.DiscordMaxLength = format.DiscordMaxLength
	}
	return &Handler{
		sessions: sessions,
		runner:   runner,
		pub:      pub,
		cfg:      cfg,
		logger:   logger,
		locks:    newKeyedMutex(),
	}
}

// Handle runs one inbound message through its session and returns the
// reply. ok is false when the session is ended or the agent produced
// nothing. Messages for the same session are processed one at a time.
func (h *Handler) Handle(ctx context.Context, msg bus.InboundMessage) (string, bool) {
	key := msg.SessionKey()
	unlock := h.locks.Lock(key)
	defer unlock()

	sess := h.sessions.GetOrCreate(key)
	if sess.IsEnded() && msg.Mention {
		h.logger.Info("session reactivated", "session", key)
		sess.Reactivate()
	}

	sess.AddMessage(llm.RoleUser, msg.Content, map[string]string{
		"sender":     msg.SenderID,
		"message_id": msg.Metadata["message_id"],
	})

	if sess.IsEnded() {
		h.logger.Debug("session ended, not responding", "session", key)
		return "", false
	}

	ctx = tools.WithChannel(ctx, msg.Channel)
	reply, ok := h.runner.RunWithRetry(ctx, sess, msg.Content, h.cfg.MaxRetries)
	if !ok {
		h.logger.Warn("no reply produced", "session", key)
		return "", false
	}

	sess.AddMessage(llm.RoleAssistant, reply, nil)
	return reply, true
}

// Process handles msg and publishes the reply to the message's channel.
func (h *Handler) Process(ctx context.Context, msg bus.InboundMessage) {
	reply, ok := h.Handle(ctx, msg)
	if !ok || h.pub == nil {
		return
	}
	for _, out := range h.outbound(msg, reply) {
		h.pub.PublishOutbound(out)
	}
}

// outbound shapes a reply for its channel. Discord replies are rewritten
// and split to respect the message length limit.
func (h *Handler) outbound(msg bus.InboundMessage, reply string) []bus.OutboundMessage {
	parts := []string{reply}
	if msg.Channel == ChannelDiscord {
		formatted := format.DiscordMessage(reply)
		if f := format.Inspect(formatted); f.Tables > 0 {
			h.logger.Debug("discord reply contains a table", "session", msg.SessionKey())
		}
		parts = format.Split(formatted, h.cfg.DiscordMaxLength)
	}

	out := make([]bus.OutboundMessage, 0, len(parts))
	for _, p := range parts {
		out = append(out, bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: p,
			ReplyTo: msg.Metadata["message_id"],
			Metadata: map[string]string{
				"session": msg.SessionKey(),
			},
		})
	}
	return out
}

// Run consumes inbound messages until ctx is done or the channel closes.
// Each message is processed in its own goroutine; Run waits for them
// before returning.
func (h *Handler) Run(ctx context.Context, inbound <-chan bus.InboundMessage) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.Process(ctx, msg)
			}()
		}
	}
}

// keyedMutex serializes work per key. Entries are removed once no
// goroutine holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
