package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/tokamak-network/ai-tokamak/internal/bus"
	"github.com/tokamak-network/ai-tokamak/internal/config"
)

const (
	connectTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
	inboundTimeout  = 5 * time.Second
	rateInterval    = time.Minute
)

// ErrNotConnected is returned when a reply is delivered before the
// broker connection exists.
var ErrNotConnected = errors.New("mqtt not connected")

// InboundPublisher queues messages for the agent. Implemented by
// bus.Bus.
type InboundPublisher interface {
	PublishInbound(ctx context.Context, msg bus.InboundMessage) error
}

// OutboundSubscriber registers channel handlers. Implemented by
// bus.Bus.
type OutboundSubscriber interface {
	SubscribeOutbound(channel string, h bus.Handler)
}

// Transport bridges the bus and an MQTT broker.
type Transport struct {
	cfg      config.MQTTConfig
	topics   Topics
	clientID string
	inbound  InboundPublisher
	limiter  *messageRateLimiter
	logger   *slog.Logger
	now      func() time.Time

	mu  sync.RWMutex
	cm  *autopaho.ConnectionManager
	ctx context.Context
}

// New creates a Transport but does not connect. clientID is used when
// the config does not set one.
func New(cfg config.MQTTConfig, clientID string, inbound InboundPublisher, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClientID != "" {
		clientID = cfg.ClientID
	}
	limit := int64(cfg.RateLimitPerMinute)
	if limit <= 0 {
		limit = config.DefaultMQTTRateLimit
	}
	return &Transport{
		cfg:      cfg,
		topics:   Topics{Prefix: cfg.TopicPrefix},
		clientID: clientID,
		inbound:  inbound,
		limiter:  newMessageRateLimiter(limit, rateInterval, logger),
		logger:   logger,
		now:      time.Now,
		ctx:      context.Background(),
	}
}

// Attach subscribes the transport to outbound messages for Channel.
func (t *Transport) Attach(sub OutboundSubscriber) {
	sub.SubscribeOutbound(Channel, t.deliver)
}

// Run connects to the broker and blocks until ctx is cancelled, then
// publishes an offline status and disconnects.
func (t *Transport) Run(ctx context.Context) error {
	brokerURL, err := url.Parse(t.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	t.mu.Lock()
	t.ctx = ctx
	t.mu.Unlock()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: t.cfg.Username,
		ConnectPassword: []byte(t.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   t.topics.Status(),
			Payload: []byte(StatusOffline),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			t.logger.Info("mqtt connected to broker", "broker", t.cfg.Broker)
			t.publishStatus(ctx, cm, StatusOnline)
			t.subscribe(ctx, cm)
		},
		OnConnectError: func(err error) {
			t.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: t.clientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				t.onPublish,
			},
			OnClientError: func(err error) {
				t.logger.Warn("mqtt client error", "error", err)
			},
		},
	}
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	t.mu.Lock()
	t.cm = cm
	t.mu.Unlock()

	go t.limiter.start(ctx)

	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	if err := cm.AwaitConnection(connCtx); err != nil && ctx.Err() == nil {
		t.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}
	cancel()

	<-ctx.Done()

	stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	t.publishStatus(stopCtx, cm, StatusOffline)
	if err := cm.Disconnect(stopCtx); err != nil {
		t.logger.Debug("mqtt disconnect", "error", err)
	}
	<-cm.Done()
	return nil
}

func (t *Transport) subscribe(ctx context.Context, cm *autopaho.ConnectionManager) {
	filter := t.topics.InboundFilter()
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: 1}},
	}); err != nil {
		t.logger.Warn("mqtt subscribe failed", "filter", filter, "error", err)
		return
	}
	t.logger.Debug("mqtt subscribed", "filter", filter)
}

func (t *Transport) publishStatus(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   t.topics.Status(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		t.logger.Warn("mqtt status publish failed", "status", status, "error", err)
		return
	}
	t.logger.Info("mqtt status published", "status", status)
}

// onPublish handles a message received on a subscribed topic.
func (t *Transport) onPublish(pr paho.PublishReceived) (bool, error) {
	if pr.Packet == nil {
		return false, nil
	}
	if _, ok := t.topics.ChatID(pr.Packet.Topic); !ok {
		return false, nil
	}
	t.handleInbound(pr.Packet.Topic, pr.Packet.Payload)
	return true, nil
}

// handleInbound decodes and queues one inbound message.
func (t *Transport) handleInbound(topic string, payload []byte) {
	if !t.limiter.allow() {
		return
	}
	msg, err := t.topics.decodeInbound(topic, payload)
	if err != nil {
		t.logger.Debug("mqtt inbound message ignored", "topic", topic, "error", err)
		return
	}

	t.mu.RLock()
	parent := t.ctx
	t.mu.RUnlock()
	ctx, cancel := context.WithTimeout(parent, inboundTimeout)
	defer cancel()

	if err := t.inbound.PublishInbound(ctx, msg); err != nil {
		t.logger.Warn("mqtt inbound message not queued",
			"topic", topic,
			"error", err,
		)
		return
	}
	t.logger.Debug("mqtt inbound message queued",
		"chat_id", msg.ChatID,
		"sender_id", msg.SenderID,
		"payload_size", len(payload),
	)
}

// deliver publishes one outbound message. It implements bus.Handler.
func (t *Transport) deliver(ctx context.Context, msg bus.OutboundMessage) error {
	t.mu.RLock()
	cm := t.cm
	t.mu.RUnlock()
	if cm == nil {
		return ErrNotConnected
	}

	payload, err := encodeOutbound(msg, t.cfg.PlainText, t.now())
	if err != nil {
		return fmt.Errorf("encode outbound: %w", err)
	}
	topic := t.topics.Outbound(msg.ChatID)
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
