package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escolalink/messaging-platform/internal/audience"
	"github.com/escolalink/messaging-platform/internal/model"
	"github.com/escolalink/messaging-platform/internal/store"
	"github.com/escolalink/messaging-platform/pkg/logger"
	"github.com/escolalink/messaging-platform/pkg/metrics"
)

// BroadcastService publishes mural posts and calendar events and serves
// their pull-path catalogs. Push and pull share audience.Relevant, so a
// user connected at publish time and a user fetching later see the same
// set of items.
type BroadcastService struct {
	store      store.Store
	dispatcher Dispatcher
	logger     *logger.Logger
}

// NewBroadcastService creates a new broadcast service.
func NewBroadcastService(st store.Store, d Dispatcher, log *logger.Logger) *BroadcastService {
	if d == nil {
		d = NopDispatcher{}
	}
	return &BroadcastService{
		store:      st,
		dispatcher: d,
		logger:     log,
	}
}

// Publish validates, persists and fans out a mural post.
func (s *BroadcastService) Publish(ctx context.Context, req *model.PublishBroadcastRequest) (*model.BroadcastMessage, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: content must not be empty", ErrInvalid)
	}
	aud := model.Audience{
		Scope:        req.Scope,
		CourseID:     req.CourseID,
		ClassSection: req.ClassSection,
	}
	if err := aud.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	post := &model.BroadcastMessage{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Content:   req.Content,
		Audience:  aud,
		CreatedAt: time.Now(),
	}
	if err := s.store.InsertBroadcast(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to persist broadcast: %w", err)
	}
	metrics.BroadcastsTotal.WithLabelValues(string(aud.Scope)).Inc()

	if err := s.dispatcher.Broadcast(ctx, &model.BroadcastEvent{Post: post}); err != nil {
		metrics.DeliveryFailures.Inc()
		s.logger.Warn("broadcast fan-out failed",
			zap.String("broadcast_id", post.ID),
			zap.Error(err),
		)
	}
	return post, nil
}

// ListForUser returns the persisted posts relevant to the user's profile,
// newest first. This is the pull-path twin of Publish's fan-out.
func (s *BroadcastService) ListForUser(ctx context.Context, p model.Profile) ([]model.BroadcastMessage, error) {
	posts, err := s.store.ListBroadcasts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list broadcasts: %w", err)
	}
	return audience.FilterPosts(posts, p), nil
}

// CreateEvent validates, persists and fans out a calendar event.
func (s *BroadcastService) CreateEvent(ctx context.Context, req *model.CreateEventRequest) (*model.CalendarEvent, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrInvalid)
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalid)
	}
	aud := model.Audience{
		Scope:        req.Scope,
		CourseID:     req.CourseID,
		ClassSection: req.ClassSection,
	}
	if err := aud.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	event := &model.CalendarEvent{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Audience:    aud,
		CreatedAt:   time.Now(),
	}
	if err := s.store.InsertCalendarEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to persist calendar event: %w", err)
	}
	metrics.BroadcastsTotal.WithLabelValues(string(aud.Scope)).Inc()

	if err := s.dispatcher.Broadcast(ctx, &model.BroadcastEvent{Event: event}); err != nil {
		metrics.DeliveryFailures.Inc()
		s.logger.Warn("calendar fan-out failed",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
	return event, nil
}

// ListEventsForUser returns the calendar events in [from, to] relevant to
// the user's profile, in ascending date order.
func (s *BroadcastService) ListEventsForUser(ctx context.Context, p model.Profile, from, to time.Time) ([]model.CalendarEvent, error) {
	events, err := s.store.ListCalendarEvents(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}
	return audience.FilterEvents(events, p), nil
}
