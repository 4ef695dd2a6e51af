// Package store persists conversations, direct messages and broadcast
// items. It is the single source of truth; the live channel only ever
// re-delivers what the store already holds.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/escolalink/messaging-platform/internal/model"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence surface used by the service layer. All writes
// are single atomic operations; a caller disconnecting mid-flight can skip
// the live push but never leave a partial write.
type Store interface {
	// FindOrCreateConversation returns the canonical conversation for the
	// pair in cand, inserting cand if none exists yet. Safe under
	// concurrent calls from both participants; the pair in cand must be
	// normalized. The bool reports whether cand was inserted.
	FindOrCreateConversation(ctx context.Context, cand *model.Conversation) (*model.Conversation, bool, error)

	GetConversation(ctx context.Context, id string) (*model.Conversation, error)

	// ListConversations returns the user's conversations ordered by last
	// activity descending, each with its most recent message and the count
	// of unread messages addressed to the user.
	ListConversations(ctx context.Context, userID string, limit int) ([]model.Conversation, error)

	// InsertMessage persists msg and advances the conversation's
	// last-activity timestamp in the same atomic operation.
	InsertMessage(ctx context.Context, msg *model.DirectMessage) error

	// ListMessages returns up to limit messages in ascending creation
	// order. A non-zero before bounds the page to messages created
	// strictly earlier, for keyset pagination backwards through history.
	ListMessages(ctx context.Context, conversationID string, limit int, before time.Time) ([]model.DirectMessage, error)

	// MarkConversationRead flips every unread message not sent by readerID
	// to read and returns how many transitioned. Zero means the call was a
	// no-op; read flags never transition back.
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)

	InsertBroadcast(ctx context.Context, post *model.BroadcastMessage) error
	ListBroadcasts(ctx context.Context) ([]model.BroadcastMessage, error)

	InsertCalendarEvent(ctx context.Context, event *model.CalendarEvent) error
	// ListCalendarEvents returns events with date in [from, to]; zero
	// bounds are open.
	ListCalendarEvents(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error)

	Ping(ctx context.Context) error
	Close() error
}
