package model

import (
	"encoding/json"
)

// EventType identifies a live-channel event.
type EventType string

const (
	// Server to client.
	EventMessageNew   EventType = "message.new"
	EventMessageRead  EventType = "message.read"
	EventBroadcastNew EventType = "broadcast.new"
	EventError        EventType = "error"

	// Client to server.
	EventPresenceRegister EventType = "presence.register"
	EventReadAck          EventType = "read.ack"
)

// Envelope is the wire frame for every event on the live channel and the
// fan-out bus.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an Envelope.
func NewEnvelope(t EventType, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: t, Payload: data}, nil
}

// ReadEvent is the payload of message.read and read.ack events.
type ReadEvent struct {
	ConversationID string `json:"conversation_id"`
	ReaderID       string `json:"reader_id"`
}

// PresenceEvent is the payload of presence.register events.
type PresenceEvent struct {
	UserID string `json:"user_id"`
}

// BroadcastEvent is the payload of broadcast.new events. Exactly one of
// Post or Event is set.
type BroadcastEvent struct {
	Post  *BroadcastMessage `json:"post,omitempty"`
	Event *CalendarEvent    `json:"event,omitempty"`
}

// Target returns the targeting triple of whichever item is set.
func (b BroadcastEvent) Target() Audience {
	if b.Post != nil {
		return b.Post.Target()
	}
	if b.Event != nil {
		return b.Event.Target()
	}
	return Audience{}
}
