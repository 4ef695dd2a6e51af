package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/escolalink/messaging-platform/internal/model"
)

const (
	// SubjectPrefix is the prefix for all portal subjects.
	SubjectPrefix = "portal"
)

// UserSubject returns the subject carrying events addressed to one user.
// NATS preserves publish order per connection, which is what upholds the
// per-conversation delivery ordering.
func UserSubject(userID string) string {
	return fmt.Sprintf("%s.user.%s", SubjectPrefix, userID)
}

// BroadcastSubject is the subject carrying audience-filtered items.
func BroadcastSubject() string {
	return fmt.Sprintf("%s.broadcast", SubjectPrefix)
}

// Dispatcher implements service.Dispatcher by publishing envelopes to the
// bus; every instance's Consumer relays them to its local hub.
type Dispatcher struct {
	client *Client
}

// NewDispatcher creates a bus-backed dispatcher.
func NewDispatcher(client *Client) *Dispatcher {
	return &Dispatcher{client: client}
}

// DirectMessage publishes a message.new event for the recipient.
func (d *Dispatcher) DirectMessage(ctx context.Context, recipientID string, msg *model.DirectMessage) error {
	return d.publish(UserSubject(recipientID), model.EventMessageNew, msg)
}

// ConversationRead publishes a message.read event for the recipient.
func (d *Dispatcher) ConversationRead(ctx context.Context, recipientID string, read *model.ReadEvent) error {
	return d.publish(UserSubject(recipientID), model.EventMessageRead, read)
}

// Broadcast publishes a broadcast.new event; receiving hubs apply the
// audience filter against their connected profiles.
func (d *Dispatcher) Broadcast(ctx context.Context, item *model.BroadcastEvent) error {
	return d.publish(BroadcastSubject(), model.EventBroadcastNew, item)
}

func (d *Dispatcher) publish(subject string, t model.EventType, payload any) error {
	env, err := model.NewEnvelope(t, payload)
	if err != nil {
		return fmt.Errorf("failed to build envelope: %w", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := d.client.Conn().Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}
