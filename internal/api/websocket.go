package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tokamak-network/ai-tokamak/internal/bus"
	"github.com/tokamak-network/ai-tokamak/internal/format"
)

// ChannelWeb is the bus channel served by the websocket endpoint.
const ChannelWeb = "web"

const (
	wsWriteTimeout = 10 * time.Second
	wsMaxFrame     = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsInbound is a frame sent by a websocket client.
type wsInbound struct {
	Content  string `json:"content"`
	SenderID string `json:"sender_id,omitempty"`
}

// wsOutbound is a frame written to a websocket client.
type wsOutbound struct {
	Content string `json:"content"`
	HTML    string `json:"html,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
}

type wsConn struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

func (c *wsConn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// wsHub tracks open websocket connections by ID and routes outbound
// messages for the web channel to them. The connection ID doubles as
// the bus chat ID.
type wsHub struct {
	bus    *bus.Bus
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[string]*wsConn
}

func newWSHub(b *bus.Bus, logger *slog.Logger) *wsHub {
	h := &wsHub{
		bus:    b,
		logger: logger,
		conns:  make(map[string]*wsConn),
	}
	b.SubscribeOutbound(ChannelWeb, h.deliver)
	return h
}

func (h *wsHub) add(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

func (h *wsHub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

func (h *wsHub) get(id string) (*wsConn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	return c, ok
}

func (h *wsHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		_ = c.conn.Close()
		delete(h.conns, id)
	}
}

// deliver is the outbound bus handler for the web channel.
func (h *wsHub) deliver(_ context.Context, msg bus.OutboundMessage) error {
	c, ok := h.get(msg.ChatID)
	if !ok {
		h.logger.Debug("websocket connection gone, dropping reply", "conn_id", msg.ChatID)
		return nil
	}

	frame := wsOutbound{Content: msg.Content, ReplyTo: msg.ReplyTo}
	html, err := format.ToHTML(msg.Content)
	if err != nil {
		h.logger.Warn("render reply html failed", "conn_id", c.id, "error", err)
	}
	frame.HTML = html
	return c.write(frame)
}

func (h *wsHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &wsConn{id: uuid.NewString(), conn: conn}
	conn.SetReadLimit(wsMaxFrame)

	h.add(c)
	defer func() {
		h.remove(c.id)
		_ = conn.Close()
	}()
	h.logger.Info("websocket connected", "conn_id", c.id, "remote", r.RemoteAddr)

	for {
		var frame wsInbound
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				h.logger.Debug("websocket read ended", "conn_id", c.id, "error", err)
			}
			h.logger.Info("websocket disconnected", "conn_id", c.id)
			return
		}
		if strings.TrimSpace(frame.Content) == "" {
			continue
		}
		sender := frame.SenderID
		if sender == "" {
			sender = c.id
		}

		msg := bus.InboundMessage{
			Channel:   ChannelWeb,
			SenderID:  sender,
			ChatID:    c.id,
			Content:   frame.Content,
			Mention:   true,
			Metadata:  map[string]string{"message_id": uuid.NewString()},
			Timestamp: time.Now(),
		}
		if err := h.bus.PublishInbound(r.Context(), msg); err != nil {
			h.logger.Warn("websocket message not queued", "conn_id", c.id, "error", err)
			return
		}
	}
}
