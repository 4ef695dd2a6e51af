package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/escolalink/messaging-platform/internal/model"
)

// Memory is an in-process Store used for development and tests. A single
// mutex serializes find-or-create, which stands in for the unique index the
// Postgres backend relies on.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	pairIndex     map[[2]string]string // normalized pair -> conversation id
	messages      map[string][]model.DirectMessage
	broadcasts    []model.BroadcastMessage
	events        []model.CalendarEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*model.Conversation),
		pairIndex:     make(map[[2]string]string),
		messages:      make(map[string][]model.DirectMessage),
	}
}

func (m *Memory) FindOrCreateConversation(ctx context.Context, cand *model.Conversation) (*model.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]string{cand.UserA, cand.UserB}
	if id, ok := m.pairIndex[key]; ok {
		c := *m.conversations[id]
		return &c, false, nil
	}

	c := *cand
	m.conversations[c.ID] = &c
	m.pairIndex[key] = c.ID
	out := c
	return &out, true, nil
}

func (m *Memory) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *Memory) ListConversations(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Conversation
	for _, c := range m.conversations {
		if !c.HasParticipant(userID) {
			continue
		}
		conv := *c
		msgs := m.messages[c.ID]
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			conv.LastMessage = &last
		}
		for _, msg := range msgs {
			if msg.SenderID != userID && !msg.Read {
				conv.UnreadCount++
			}
		}
		out = append(out, conv)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) InsertMessage(ctx context.Context, msg *model.DirectMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[msg.ConversationID]
	if !ok {
		return ErrNotFound
	}
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], *msg)
	c.LastActivity = msg.CreatedAt
	return nil
}

func (m *Memory) ListMessages(ctx context.Context, conversationID string, limit int, before time.Time) ([]model.DirectMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.conversations[conversationID]; !ok {
		return nil, ErrNotFound
	}

	msgs := m.messages[conversationID]
	var page []model.DirectMessage
	for _, msg := range msgs {
		if !before.IsZero() && !msg.CreatedAt.Before(before) {
			continue
		}
		page = append(page, msg)
	}
	// Keep the newest window of the page; callers receive ascending order.
	if limit > 0 && len(page) > limit {
		page = page[len(page)-limit:]
	}
	out := make([]model.DirectMessage, len(page))
	copy(out, page)
	return out, nil
}

func (m *Memory) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[conversationID]; !ok {
		return 0, ErrNotFound
	}

	var n int64
	msgs := m.messages[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].Read {
			msgs[i].Read = true
			n++
		}
	}
	return n, nil
}

func (m *Memory) InsertBroadcast(ctx context.Context, post *model.BroadcastMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, *post)
	return nil
}

func (m *Memory) ListBroadcasts(ctx context.Context) ([]model.BroadcastMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.BroadcastMessage, len(m.broadcasts))
	copy(out, m.broadcasts)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) InsertCalendarEvent(ctx context.Context, event *model.CalendarEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

func (m *Memory) ListCalendarEvents(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.CalendarEvent
	for _, e := range m.events {
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
