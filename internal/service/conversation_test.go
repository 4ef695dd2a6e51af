package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/escolalink/messaging-platform/internal/model"
	"github.com/escolalink/messaging-platform/internal/store"
	"github.com/escolalink/messaging-platform/pkg/logger"
)

// recordingDispatcher remembers every push so tests can assert on the
// fan-out side of an operation.
type recordingDispatcher struct {
	messages   []*model.DirectMessage
	recipients []string
	reads      []*model.ReadEvent
	broadcasts []*model.BroadcastEvent
	fail       bool
}

func (d *recordingDispatcher) DirectMessage(_ context.Context, recipientID string, msg *model.DirectMessage) error {
	if d.fail {
		return errors.New("no route")
	}
	d.recipients = append(d.recipients, recipientID)
	d.messages = append(d.messages, msg)
	return nil
}

func (d *recordingDispatcher) ConversationRead(_ context.Context, recipientID string, read *model.ReadEvent) error {
	if d.fail {
		return errors.New("no route")
	}
	d.recipients = append(d.recipients, recipientID)
	d.reads = append(d.reads, read)
	return nil
}

func (d *recordingDispatcher) Broadcast(_ context.Context, item *model.BroadcastEvent) error {
	if d.fail {
		return errors.New("no route")
	}
	d.broadcasts = append(d.broadcasts, item)
	return nil
}

func newConversationService(t *testing.T) (*ConversationService, *recordingDispatcher) {
	t.Helper()
	d := &recordingDispatcher{}
	return NewConversationService(store.NewMemory(), d, logger.NewNop()), d
}

func TestFindOrCreateReturnsCanonicalConversation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newConversationService(t)

	first, err := svc.FindOrCreate(ctx, "maria", "joao")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.FindOrCreate(ctx, "joao", "maria")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one conversation for the pair, got %s and %s", first.ID, second.ID)
	}
}

func TestFindOrCreateRejectsInvalidPairs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newConversationService(t)

	tests := []struct {
		name  string
		userA string
		userB string
	}{
		{"same user", "maria", "maria"},
		{"empty first", "", "joao"},
		{"empty second", "maria", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.FindOrCreate(ctx, tt.userA, tt.userB); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestAppendDeliversToPeerOnly(t *testing.T) {
	ctx := context.Background()
	svc, d := newConversationService(t)

	conv, err := svc.FindOrCreate(ctx, "maria", "joao")
	if err != nil {
		t.Fatal(err)
	}

	msg, err := svc.Append(ctx, conv.ID, "maria", "oi")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Read {
		t.Fatal("new message must start unread")
	}
	if len(d.messages) != 1 {
		t.Fatalf("expected 1 dispatched message, got %d", len(d.messages))
	}
	if d.recipients[0] != "joao" {
		t.Fatalf("expected delivery to joao, got %s", d.recipients[0])
	}
}

func TestAppendValidation(t *testing.T) {
	ctx := context.Background()
	svc, d := newConversationService(t)

	conv, err := svc.FindOrCreate(ctx, "maria", "joao")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		convID  string
		sender  string
		content string
		want    error
	}{
		{"empty content", conv.ID, "maria", "", ErrInvalid},
		{"whitespace content", conv.ID, "maria", "   ", ErrInvalid},
		{"outsider sender", conv.ID, "pedro", "oi", ErrForbidden},
		{"unknown conversation", "missing", "maria", "oi", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Append(ctx, tt.convID, tt.sender, tt.content); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(d.messages) != 0 {
		t.Fatalf("rejected messages must not be dispatched, got %d", len(d.messages))
	}
}

func TestAppendSurvivesDeliveryFailure(t *testing.T) {
	ctx := context.Background()
	svc, d := newConversationService(t)

	conv, err := svc.FindOrCreate(ctx, "maria", "joao")
	if err != nil {
		t.Fatal(err)
	}

	d.fail = true
	if _, err := svc.Append(ctx, conv.ID, "maria", "oi"); err != nil {
		t.Fatalf("persisted message must not fail on push error, got %v", err)
	}

	// The message is in the store regardless.
	resp, err := svc.ListMessages(ctx, conv.ID, 0, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Messages) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(resp.Messages))
	}
}

func TestConcurrentAppendsDeliverInPersistenceOrder(t *testing.T) {
	ctx := context.Background()
	svc, d := newConversationService(t)

	conv, err := svc.FindOrCreate(ctx, "maria", "joao")
	if err != nil {
		t.Fatal(err)
	}

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				if _, err := svc.Append(ctx, conv.ID, "maria", "oi"); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	stored, err := svc.ListMessages(ctx, conv.ID, 0, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.messages) != len(stored.Messages) {
		t.Fatalf("dispatched %d messages, stored %d", len(d.messages), len(stored.Messages))
	}
	for i := range stored.Messages {
		if d.messages[i].ID != stored.Messages[i].ID {
			t.Fatalf("delivery order diverged from persistence order at %d", i)
		}
	}
}

func TestMarkReadEmitsSingleEvent(t *testing.T) {
	ctx := context.Background()
	svc, d := newConversationService(t)

	conv, err := svc.FindOrCreate(ctx, "maria", "joao")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Append(ctx, conv.ID, "maria", "oi"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Append(ctx, conv.ID, "maria", "tudo bem?"); err != nil {
		t.Fatal(err)
	}

	if err := svc.MarkRead(ctx, conv.ID, "joao"); err != nil {
		t.Fatal(err)
	}
	if len(d.reads) != 1 {
		t.Fatalf("expected exactly 1 read event for 2 messages, got %d", len(d.reads))
	}
	if got := d.recipients[len(d.recipients)-1]; got != "maria" {
		t.Fatalf("read receipt must go to the sender, got %s", got)
	}
	if d.reads[0].ReaderID != "joao" {
		t.Fatalf("expected reader joao, got %s", d.reads[0].ReaderID)
	}

	// Second call finds nothing unread and stays silent.
	if err := svc.MarkRead(ctx, conv.ID, "joao"); err != nil {
		t.Fatal(err)
	}
	if len(d.reads) != 1 {
		t.Fatalf("idempotent mark-read must not emit again, got %d events", len(d.reads))
	}
}

func TestMarkReadAuthorization(t *testing.T) {
	ctx := context.Background()
	svc, _ := newConversationService(t)

	conv, err := svc.FindOrCreate(ctx, "maria", "joao")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.MarkRead(ctx, conv.ID, "pedro"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for an outsider, got %v", err)
	}
	if err := svc.MarkRead(ctx, "missing", "maria"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMessagesOrderAndHasMore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newConversationService(t)

	conv, err := svc.FindOrCreate(ctx, "maria", "joao")
	if err != nil {
		t.Fatal(err)
	}
	for _, content := range []string{"um", "dois", "tres"} {
		if _, err := svc.Append(ctx, conv.ID, "maria", content); err != nil {
			t.Fatal(err)
		}
	}

	resp, err := svc.ListMessages(ctx, conv.ID, 2, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(resp.Messages))
	}
	if !resp.HasMore {
		t.Fatal("expected HasMore with a full page")
	}
	if !resp.Messages[0].CreatedAt.Before(resp.Messages[1].CreatedAt) &&
		!resp.Messages[0].CreatedAt.Equal(resp.Messages[1].CreatedAt) {
		t.Fatal("messages must be in ascending order")
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 50},
		{-5, 50},
		{10, 10},
		{200, 200},
		{500, 200},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
