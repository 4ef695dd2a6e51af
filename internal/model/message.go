package model

import (
	"time"
)

// DirectMessage is a single message inside a conversation. Read is false at
// creation and transitions to true exactly once, when the recipient marks
// the conversation read.
type DirectMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// SendMessageRequest is the request to append a message to a conversation.
// SenderID defaults to the authenticated user when omitted.
type SendMessageRequest struct {
	Content  string `json:"content"`
	SenderID string `json:"sender_id,omitempty"`
}

// ListMessagesResponse is the response for listing conversation messages,
// oldest first.
type ListMessagesResponse struct {
	Messages []DirectMessage `json:"messages"`
	HasMore  bool            `json:"has_more"`
}
