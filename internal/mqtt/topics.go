package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tokamak-network/ai-tokamak/internal/bus"
	"github.com/tokamak-network/ai-tokamak/internal/format"
)

// Channel is the bus channel served by this transport.
const Channel = "mqtt"

// Status payloads published to the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Topics derives topic names from a prefix.
type Topics struct {
	Prefix string
}

// Status is the retained availability topic.
func (t Topics) Status() string { return t.Prefix + "/status" }

// InboundFilter matches every inbound chat topic.
func (t Topics) InboundFilter() string { return t.Prefix + "/inbound/+" }

// Outbound is the reply topic for one chat.
func (t Topics) Outbound(chatID string) string { return t.Prefix + "/outbound/" + chatID }

// ChatID extracts the chat id from an inbound topic. ok is false for
// topics outside the inbound tree or with an empty or nested suffix.
func (t Topics) ChatID(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, t.Prefix+"/inbound/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// inboundPayload is the JSON body clients publish.
type inboundPayload struct {
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	MessageID string `json:"message_id,omitempty"`
	Mention   bool   `json:"mention,omitempty"`
}

// outboundPayload is the JSON body published for each reply.
type outboundPayload struct {
	Content   string    `json:"content"`
	Text      string    `json:"text,omitempty"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	Session   string    `json:"session,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrEmptyContent is returned for inbound payloads with no text.
var ErrEmptyContent = errors.New("inbound message has no content")

// decodeInbound turns an inbound publish into a bus message.
func (t Topics) decodeInbound(topic string, payload []byte) (bus.InboundMessage, error) {
	chatID, ok := t.ChatID(topic)
	if !ok {
		return bus.InboundMessage{}, fmt.Errorf("not an inbound topic: %s", topic)
	}
	var p inboundPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return bus.InboundMessage{}, fmt.Errorf("decode inbound payload: %w", err)
	}
	if strings.TrimSpace(p.Content) == "" {
		return bus.InboundMessage{}, ErrEmptyContent
	}
	if p.SenderID == "" {
		p.SenderID = chatID
	}

	msg := bus.InboundMessage{
		Channel:  Channel,
		SenderID: p.SenderID,
		ChatID:   chatID,
		Content:  p.Content,
		Mention:  p.Mention,
	}
	if p.MessageID != "" {
		msg.Metadata = map[string]string{"message_id": p.MessageID}
	}
	return msg, nil
}

// encodeOutbound renders a reply. With plain set, a markdown-free copy
// is included as text for clients that cannot render markdown.
func encodeOutbound(msg bus.OutboundMessage, plain bool, now time.Time) ([]byte, error) {
	p := outboundPayload{
		Content:   msg.Content,
		ReplyTo:   msg.ReplyTo,
		Session:   msg.Metadata["session"],
		Timestamp: now.UTC(),
	}
	if plain {
		p.Text = format.ToPlain(msg.Content)
	}
	return json.Marshal(p)
}
