package ws

import (
	"context"
	"encoding/json"

	"github.com/escolalink/messaging-platform/internal/model"
)

// LocalDispatcher delivers events straight to the in-process hub. It is
// the single-instance wiring; multi-instance deployments route the same
// envelopes through the fan-out bus instead.
type LocalDispatcher struct {
	hub *Hub
}

// NewLocalDispatcher creates a dispatcher bound to hub.
func NewLocalDispatcher(hub *Hub) *LocalDispatcher {
	return &LocalDispatcher{hub: hub}
}

// DirectMessage pushes a message.new event to the recipient's connections.
func (d *LocalDispatcher) DirectMessage(ctx context.Context, recipientID string, msg *model.DirectMessage) error {
	data, err := encodeEnvelope(model.EventMessageNew, msg)
	if err != nil {
		return err
	}
	d.hub.SendToUser(recipientID, data)
	return nil
}

// ConversationRead pushes a message.read event to the recipient's
// connections.
func (d *LocalDispatcher) ConversationRead(ctx context.Context, recipientID string, read *model.ReadEvent) error {
	data, err := encodeEnvelope(model.EventMessageRead, read)
	if err != nil {
		return err
	}
	d.hub.SendToUser(recipientID, data)
	return nil
}

// Broadcast pushes a broadcast.new event to every connection passing the
// audience filter.
func (d *LocalDispatcher) Broadcast(ctx context.Context, item *model.BroadcastEvent) error {
	data, err := encodeEnvelope(model.EventBroadcastNew, item)
	if err != nil {
		return err
	}
	d.hub.Broadcast(item.Target(), data)
	return nil
}

func encodeEnvelope(t model.EventType, payload any) ([]byte, error) {
	env, err := model.NewEnvelope(t, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}
