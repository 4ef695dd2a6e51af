package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/escolalink/messaging-platform/internal/model"
)

func newConversation(t *testing.T, a, b string) *model.Conversation {
	t.Helper()
	ua, ub := model.NormalizePair(a, b)
	now := time.Now()
	return &model.Conversation{
		ID:           uuid.Must(uuid.NewV7()).String(),
		UserA:        ua,
		UserB:        ub,
		CreatedAt:    now,
		LastActivity: now,
	}
}

func newMessage(t *testing.T, convID, sender, content string, at time.Time) *model.DirectMessage {
	t.Helper()
	return &model.DirectMessage{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: convID,
		SenderID:       sender,
		Content:        content,
		CreatedAt:      at,
	}
}

func TestFindOrCreateConversationNoDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	first, created, err := s.FindOrCreateConversation(ctx, newConversation(t, "u1", "u2"))
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("expected first call to create")
	}

	// Reversed pair must resolve to the same conversation.
	second, created, err := s.FindOrCreateConversation(ctx, newConversation(t, "u2", "u1"))
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("expected second call to find, not create")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same conversation id, got %s and %s", first.ID, second.ID)
	}
}

func TestFindOrCreateConversationConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "u1", "u2"
			if i%2 == 1 {
				a, b = b, a
			}
			c, _, err := s.FindOrCreateConversation(ctx, newConversation(t, a, b))
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got conversation %s, caller 0 got %s", i, ids[i], ids[0])
		}
	}
}

func TestListMessagesAscendingOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	conv, _, err := s.FindOrCreateConversation(ctx, newConversation(t, "u1", "u2"))
	if err != nil {
		t.Fatal(err)
	}

	base := time.Now()
	contents := []string{"first", "second", "third"}
	for i, c := range contents {
		msg := newMessage(t, conv.ID, "u1", c, base.Add(time.Duration(i)*time.Second))
		if err := s.InsertMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := s.ListMessages(ctx, conv.ID, 50, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(msgs))
	}
	for i, msg := range msgs {
		if msg.Content != contents[i] {
			t.Fatalf("position %d: expected %q, got %q", i, contents[i], msg.Content)
		}
		if i > 0 && msg.CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("messages out of order at position %d", i)
		}
	}
}

func TestListMessagesPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	conv, _, _ := s.FindOrCreateConversation(ctx, newConversation(t, "u1", "u2"))
	base := time.Now()
	for i := 0; i < 5; i++ {
		msg := newMessage(t, conv.ID, "u1", "m", base.Add(time.Duration(i)*time.Second))
		if err := s.InsertMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	// A limited page returns the newest window, still ascending.
	page, err := s.ListMessages(ctx, conv.ID, 2, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(page))
	}
	if !page[0].CreatedAt.Equal(base.Add(3 * time.Second)) {
		t.Fatalf("expected newest window, got message at %v", page[0].CreatedAt)
	}

	// The before cursor pages backwards.
	older, err := s.ListMessages(ctx, conv.ID, 10, page[0].CreatedAt)
	if err != nil {
		t.Fatal(err)
	}
	if len(older) != 3 {
		t.Fatalf("expected 3 older messages, got %d", len(older))
	}
}

func TestListMessagesUnknownConversation(t *testing.T) {
	s := NewMemory()
	if _, err := s.ListMessages(context.Background(), uuid.NewString(), 50, time.Time{}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkConversationReadMonotonicIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	conv, _, _ := s.FindOrCreateConversation(ctx, newConversation(t, "u1", "u2"))
	now := time.Now()
	if err := s.InsertMessage(ctx, newMessage(t, conv.ID, "u1", "oi", now)); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertMessage(ctx, newMessage(t, conv.ID, "u2", "ola", now.Add(time.Second))); err != nil {
		t.Fatal(err)
	}

	// u2 reads: only u1's message transitions.
	n, err := s.MarkConversationRead(ctx, conv.ID, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 transition, got %d", n)
	}

	// Repeat is a no-op, and nothing flips back.
	n, err = s.MarkConversationRead(ctx, conv.ID, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected idempotent repeat, got %d transitions", n)
	}

	msgs, _ := s.ListMessages(ctx, conv.ID, 50, time.Time{})
	if !msgs[0].Read {
		t.Fatal("u1's message should stay read")
	}
	if msgs[1].Read {
		t.Fatal("u2's own message must not be marked read by u2's ack")
	}
}

func TestListConversationsOrderAndPreview(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	c1, _, _ := s.FindOrCreateConversation(ctx, newConversation(t, "u1", "u2"))
	c2, _, _ := s.FindOrCreateConversation(ctx, newConversation(t, "u1", "u3"))

	base := time.Now()
	if err := s.InsertMessage(ctx, newMessage(t, c1.ID, "u2", "old", base)); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertMessage(ctx, newMessage(t, c2.ID, "u3", "newer", base.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}

	convs, err := s.ListConversations(ctx, "u1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	if convs[0].ID != c2.ID {
		t.Fatal("most recently active conversation should come first")
	}
	if convs[0].LastMessage == nil || convs[0].LastMessage.Content != "newer" {
		t.Fatalf("expected last message preview, got %+v", convs[0].LastMessage)
	}
	if convs[0].UnreadCount != 1 || convs[1].UnreadCount != 1 {
		t.Fatalf("expected unread counts of 1, got %d and %d", convs[0].UnreadCount, convs[1].UnreadCount)
	}

	// The other participant sees no unread for their own messages.
	convs, err = s.ListConversations(ctx, "u3", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].UnreadCount != 0 {
		t.Fatalf("expected u3 to have no unread, got %+v", convs)
	}
}

func TestCalendarEventDateRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	day := 24 * time.Hour
	base := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		e := &model.CalendarEvent{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Title:     "event",
			Date:      base.Add(time.Duration(i) * day),
			Audience:  model.Audience{Scope: model.ScopeAll},
			CreatedAt: base,
		}
		if err := s.InsertCalendarEvent(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	events, err := s.ListCalendarEvents(ctx, base.Add(day), base.Add(2*day))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events in range, got %d", len(events))
	}
	if events[0].Date.After(events[1].Date) {
		t.Fatal("events should be in ascending date order")
	}
}
