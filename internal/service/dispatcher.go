package service

import (
	"context"

	"github.com/escolalink/messaging-platform/internal/model"
)

// Dispatcher pushes persisted entities to currently-connected clients. A
// dispatch failure is a missed live push, never a lost message: callers log
// it and move on, because the store already holds the record and clients
// reconcile by re-fetching on reconnect.
type Dispatcher interface {
	// DirectMessage delivers a message.new event to every open connection
	// of recipientID.
	DirectMessage(ctx context.Context, recipientID string, msg *model.DirectMessage) error

	// ConversationRead delivers a message.read event to every open
	// connection of recipientID (the participant who is not the reader).
	ConversationRead(ctx context.Context, recipientID string, read *model.ReadEvent) error

	// Broadcast delivers a broadcast.new event to every connection whose
	// registered profile passes the audience filter for the item.
	Broadcast(ctx context.Context, item *model.BroadcastEvent) error
}

// NopDispatcher discards every dispatch. Used when the server runs without
// a fan-out bus and in tests.
type NopDispatcher struct{}

func (NopDispatcher) DirectMessage(context.Context, string, *model.DirectMessage) error { return nil }
func (NopDispatcher) ConversationRead(context.Context, string, *model.ReadEvent) error  { return nil }
func (NopDispatcher) Broadcast(context.Context, *model.BroadcastEvent) error            { return nil }
