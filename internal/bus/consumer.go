package bus

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/escolalink/messaging-platform/internal/model"
	"github.com/escolalink/messaging-platform/internal/ws"
	"github.com/escolalink/messaging-platform/pkg/logger"
)

// Consumer relays bus events to this instance's hub.
type Consumer struct {
	client *Client
	hub    *ws.Hub
	logger *logger.Logger
	subs   []*nats.Subscription
}

// NewConsumer creates a consumer bound to hub.
func NewConsumer(client *Client, hub *ws.Hub, log *logger.Logger) *Consumer {
	return &Consumer{client: client, hub: hub, logger: log}
}

// Start subscribes to the user and broadcast subjects.
func (c *Consumer) Start() error {
	userSub, err := c.client.Conn().Subscribe(SubjectPrefix+".user.*", c.onUserEvent)
	if err != nil {
		return fmt.Errorf("failed to subscribe to user subjects: %w", err)
	}
	c.subs = append(c.subs, userSub)

	bcastSub, err := c.client.Conn().Subscribe(BroadcastSubject(), c.onBroadcast)
	if err != nil {
		return fmt.Errorf("failed to subscribe to broadcast subject: %w", err)
	}
	c.subs = append(c.subs, bcastSub)
	return nil
}

// Stop unsubscribes from all subjects.
func (c *Consumer) Stop() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil
}

// onUserEvent forwards an already-encoded envelope to every local
// connection of the addressed user. The user id is the last subject token.
func (c *Consumer) onUserEvent(msg *nats.Msg) {
	tokens := strings.Split(msg.Subject, ".")
	userID := tokens[len(tokens)-1]
	if userID == "" {
		return
	}
	c.hub.SendToUser(userID, msg.Data)
}

// onBroadcast decodes the item's targeting triple and lets the hub filter
// connected profiles against it.
func (c *Consumer) onBroadcast(msg *nats.Msg) {
	var env model.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		c.logger.Warn("malformed bus envelope", zap.Error(err))
		return
	}
	var item model.BroadcastEvent
	if err := json.Unmarshal(env.Payload, &item); err != nil {
		c.logger.Warn("malformed broadcast payload", zap.Error(err))
		return
	}
	c.hub.Broadcast(item.Target(), msg.Data)
}
