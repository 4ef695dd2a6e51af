package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/escolalink/messaging-platform/internal/model"
	"github.com/escolalink/messaging-platform/internal/store"
	"github.com/escolalink/messaging-platform/pkg/logger"
)

func newBroadcastService(t *testing.T) (*BroadcastService, *recordingDispatcher, store.Store) {
	t.Helper()
	d := &recordingDispatcher{}
	st := store.NewMemory()
	return NewBroadcastService(st, d, logger.NewNop()), d, st
}

func TestPublishPersistsAndFansOut(t *testing.T) {
	ctx := context.Background()
	svc, d, _ := newBroadcastService(t)

	post, err := svc.Publish(ctx, &model.PublishBroadcastRequest{
		Content:  "prova remarcada para sexta",
		Scope:    model.ScopeCourse,
		CourseID: 12,
	})
	if err != nil {
		t.Fatal(err)
	}
	if post.ID == "" {
		t.Fatal("expected an id on the persisted post")
	}
	if len(d.broadcasts) != 1 {
		t.Fatalf("expected 1 fan-out, got %d", len(d.broadcasts))
	}
	if d.broadcasts[0].Post.ID != post.ID {
		t.Fatal("fan-out must carry the persisted post")
	}
}

func TestPublishValidation(t *testing.T) {
	ctx := context.Background()
	svc, d, st := newBroadcastService(t)

	tests := []struct {
		name string
		req  model.PublishBroadcastRequest
	}{
		{"empty content", model.PublishBroadcastRequest{Scope: model.ScopeAll}},
		{"course without course id", model.PublishBroadcastRequest{Content: "x", Scope: model.ScopeCourse}},
		{"section without course id", model.PublishBroadcastRequest{Content: "x", Scope: model.ScopeClassSection, ClassSection: "A"}},
		{"section without section", model.PublishBroadcastRequest{Content: "x", Scope: model.ScopeClassSection, CourseID: 12}},
		{"unknown scope", model.PublishBroadcastRequest{Content: "x", Scope: "SCHOOL"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Publish(ctx, &tt.req); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}

	// Nothing may reach the store or the wire on a rejected publish.
	posts, err := st.ListBroadcasts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 0 {
		t.Fatalf("rejected posts must not be persisted, got %d", len(posts))
	}
	if len(d.broadcasts) != 0 {
		t.Fatalf("rejected posts must not be dispatched, got %d", len(d.broadcasts))
	}
}

func TestListForUserMatchesAudience(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newBroadcastService(t)

	publish := func(content string, scope model.Scope, courseID int64, section string) {
		t.Helper()
		_, err := svc.Publish(ctx, &model.PublishBroadcastRequest{
			Content:      content,
			Scope:        scope,
			CourseID:     courseID,
			ClassSection: section,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	publish("para todos", model.ScopeAll, 0, "")
	publish("para engenharia", model.ScopeCourse, 12, "")
	publish("para a turma B", model.ScopeClassSection, 12, "B")
	publish("para direito", model.ScopeCourse, 30, "")

	student := model.Profile{ID: "ana", Role: model.RoleStudent, CourseID: 12, ClassSection: "A"}
	posts, err := svc.ListForUser(ctx, student)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 relevant posts, got %d", len(posts))
	}
	for _, p := range posts {
		if p.Content == "para a turma B" || p.Content == "para direito" {
			t.Fatalf("post %q must not be visible to this profile", p.Content)
		}
	}
}

func TestPublishSurvivesFanOutFailure(t *testing.T) {
	ctx := context.Background()
	svc, d, st := newBroadcastService(t)

	d.fail = true
	if _, err := svc.Publish(ctx, &model.PublishBroadcastRequest{
		Content: "aviso",
		Scope:   model.ScopeAll,
	}); err != nil {
		t.Fatalf("persisted post must not fail on push error, got %v", err)
	}

	posts, err := st.ListBroadcasts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected the post in the store, got %d", len(posts))
	}
}

func TestCreateEventValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newBroadcastService(t)

	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)

	if _, err := svc.CreateEvent(ctx, &model.CreateEventRequest{
		Date:  date,
		Scope: model.ScopeAll,
	}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for missing title, got %v", err)
	}
	if _, err := svc.CreateEvent(ctx, &model.CreateEventRequest{
		Title: "entrega do projeto",
		Scope: model.ScopeAll,
	}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for missing date, got %v", err)
	}

	event, err := svc.CreateEvent(ctx, &model.CreateEventRequest{
		Title:    "entrega do projeto",
		Date:     date,
		Scope:    model.ScopeCourse,
		CourseID: 12,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !event.Date.Equal(date) {
		t.Fatalf("expected date %v, got %v", date, event.Date)
	}
}

func TestListEventsForUserFiltersByAudienceAndRange(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newBroadcastService(t)

	mk := func(title string, date time.Time, scope model.Scope, courseID int64) {
		t.Helper()
		_, err := svc.CreateEvent(ctx, &model.CreateEventRequest{
			Title:    title,
			Date:     date,
			Scope:    scope,
			CourseID: courseID,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	sept := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	oct := time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)
	mk("feriado", sept, model.ScopeAll, 0)
	mk("prova de calculo", sept.Add(24*time.Hour), model.ScopeCourse, 12)
	mk("prova de direito", sept.Add(48*time.Hour), model.ScopeCourse, 30)
	mk("formatura", oct, model.ScopeAll, 0)

	student := model.Profile{ID: "ana", Role: model.RoleStudent, CourseID: 12, ClassSection: "A"}
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)

	events, err := svc.ListEventsForUser(ctx, student, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events in September for this profile, got %d", len(events))
	}
	if events[0].Title != "feriado" || events[1].Title != "prova de calculo" {
		t.Fatalf("unexpected events %q, %q", events[0].Title, events[1].Title)
	}
}
