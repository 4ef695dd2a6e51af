package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/escolalink/messaging-platform/internal/model"
	"github.com/escolalink/messaging-platform/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	ackTimeout = 10 * time.Second

	maxMessageSize = 4096
	sendBufferSize = 64
)

// Conn is the subset of *websocket.Conn the client uses. Tests substitute
// an in-memory implementation.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// ReadAcker advances the read state when a client acknowledges visibility.
type ReadAcker interface {
	MarkRead(ctx context.Context, conversationID, readerID string) error
}

// Client is one WebSocket connection bound to a user profile. The hub
// signals detachment by closing done; send itself is never closed, so the
// read pump can keep queueing error envelopes without racing the hub.
type Client struct {
	hub     *Hub
	conn    Conn
	send    chan []byte
	done    chan struct{}
	profile model.Profile
	acker   ReadAcker
	logger  *logger.Logger
}

// NewClient wraps an upgraded connection. The caller registers it with the
// hub and starts the pumps.
func NewClient(hub *Hub, conn Conn, profile model.Profile, acker ReadAcker, log *logger.Logger) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		profile: profile,
		acker:   acker,
		logger:  log,
	}
}

// ReadPump consumes client-to-server events until the connection drops,
// then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.sendError("invalid_json")
			continue
		}
		c.handle(&env)
	}
}

func (c *Client) handle(env *model.Envelope) {
	switch env.Type {
	case model.EventPresenceRegister:
		// Registration happened at upgrade time; a repeat is a no-op.

	case model.EventReadAck:
		var ack model.ReadEvent
		if err := json.Unmarshal(env.Payload, &ack); err != nil || ack.ConversationID == "" {
			c.sendError("invalid_read_ack")
			return
		}
		// The reader is always the connection's own user, whatever the
		// payload claims.
		ack.ReaderID = c.profile.ID

		ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
		defer cancel()
		if err := c.acker.MarkRead(ctx, ack.ConversationID, ack.ReaderID); err != nil {
			c.logger.Warn("read ack failed",
				zap.String("conversation_id", ack.ConversationID),
				zap.String("reader_id", ack.ReaderID),
				zap.Error(err),
			)
			c.sendError("read_ack_failed")
		}

	default:
		c.sendError("unknown_event")
	}
}

func (c *Client) sendError(reason string) {
	env, err := model.NewEnvelope(model.EventError, map[string]string{"reason": reason})
	if err != nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
	}
}

// WritePump serializes all writes to the connection and keeps it alive
// with pings. Exactly one WritePump runs per connection, which preserves
// the per-conversation delivery order the hub enqueued.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
