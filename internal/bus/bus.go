// Package bus decouples chat channels from the agent. Channels publish
// inbound messages onto a queue consumed by the chat handler; replies
// flow back through per-channel outbound subscriptions. Outbound
// delivery is fire-and-forget: a full queue drops the message rather
// than blocking the publisher. Calling PublishOutbound on a nil *Bus is
// a no-op.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the queue depth used when New is given zero.
const DefaultBufferSize = 100

// InboundMessage is a user message received on some channel.
type InboundMessage struct {
	Channel   string            `json:"channel"`
	SenderID  string            `json:"sender_id"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content"`
	Mention   bool              `json:"mention,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// SessionKey returns the key of the session this message belongs to.
func (m InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID + ":" + m.SenderID
}

// OutboundMessage is a reply or notification to deliver on a channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	ReplyTo  string            `json:"reply_to,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Handler delivers an outbound message on one channel.
type Handler func(ctx context.Context, msg OutboundMessage) error

// Option configures a Bus.
type Option func(*Bus)

// WithDropHook registers a callback invoked with the channel name each
// time an outbound message is dropped.
func WithDropHook(fn func(channel string)) Option {
	return func(b *Bus) { b.onDrop = fn }
}

// Bus carries inbound and outbound messages.
type Bus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	mu   sync.RWMutex
	subs map[string][]Handler

	dropped  atomic.Int64
	onDrop   func(channel string)
	stopOnce sync.Once
	done     chan struct{}
	logger   *slog.Logger
}

// New creates a bus with the given queue depth for both directions.
func New(bufSize int, logger *slog.Logger, opts ...Option) *Bus {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		inbound:  make(chan InboundMessage, bufSize),
		outbound: make(chan OutboundMessage, bufSize),
		subs:     make(map[string][]Handler),
		done:     make(chan struct{}),
		logger:   logger,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// PublishInbound queues msg for the chat handler. It blocks until the
// message is queued, ctx is done, or the bus is stopped.
func (b *Bus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case b.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrStopped
	}
}

// Inbound returns the inbound queue.
func (b *Bus) Inbound() <-chan InboundMessage {
	return b.inbound
}

// PublishOutbound queues msg for delivery without blocking. A full
// queue drops the message.
func (b *Bus) PublishOutbound(msg OutboundMessage) {
	if b == nil {
		return
	}
	select {
	case <-b.done:
		b.drop(msg, "bus stopped")
		return
	default:
	}
	select {
	case b.outbound <- msg:
	default:
		b.drop(msg, "outbound queue full")
	}
}

func (b *Bus) drop(msg OutboundMessage, reason string) {
	b.dropped.Add(1)
	if b.onDrop != nil {
		b.onDrop(msg.Channel)
	}
	b.logger.Warn("outbound message dropped",
		"channel", msg.Channel,
		"chat_id", msg.ChatID,
		"reason", reason,
	)
}

// Dropped returns the number of outbound messages dropped so far.
func (b *Bus) Dropped() int64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

// SubscribeOutbound registers h for messages on channel. A channel may
// have several handlers; each receives every message.
func (b *Bus) SubscribeOutbound(channel string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[channel] = append(b.subs[channel], h)
}

// Channels returns the names of channels with outbound subscribers.
func (b *Bus) Channels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subs))
	for name := range b.subs {
		names = append(names, name)
	}
	return names
}

// DispatchOutbound delivers queued outbound messages to their channel's
// handlers until ctx is done or the bus is stopped. Handler errors are
// logged and never reach the publisher.
func (b *Bus) DispatchOutbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil
		case msg := <-b.outbound:
			b.deliver(ctx, msg)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, msg OutboundMessage) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subs[msg.Channel]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("no outbound subscriber for channel", "channel", msg.Channel)
		return
	}
	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			b.logger.Error("outbound delivery failed",
				"channel", msg.Channel,
				"chat_id", msg.ChatID,
				"error", err,
			)
		}
	}
}

// Stop releases blocked publishers and ends DispatchOutbound. Safe to
// call more than once.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
}
