package model

import (
	"time"
)

// Conversation is a durable pairwise channel between exactly two users.
// The participant pair is unordered; it is stored normalized (UserA < UserB)
// so the uniqueness constraint holds regardless of who initiated.
type Conversation struct {
	ID           string    `json:"id"`
	UserA        string    `json:"user_a"`
	UserB        string    `json:"user_b"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`

	// Populated by list queries only.
	LastMessage *DirectMessage `json:"last_message,omitempty"`
	UnreadCount int            `json:"unread_count,omitempty"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.UserA == userID || c.UserB == userID
}

// Peer returns the other participant for userID. Empty string if userID is
// not a participant.
func (c *Conversation) Peer(userID string) string {
	switch userID {
	case c.UserA:
		return c.UserB
	case c.UserB:
		return c.UserA
	}
	return ""
}

// NormalizePair orders a participant pair so that (a, b) and (b, a) map to
// the same stored pair.
func NormalizePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// CreateConversationRequest is the request to find or create a conversation.
type CreateConversationRequest struct {
	UserA string `json:"user_a"`
	UserB string `json:"user_b"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
