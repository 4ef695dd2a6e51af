package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escolalink/messaging-platform/internal/model"
	"github.com/escolalink/messaging-platform/internal/store"
	"github.com/escolalink/messaging-platform/pkg/logger"
	"github.com/escolalink/messaging-platform/pkg/metrics"
)

// ConversationService handles direct-messaging operations. Persistence
// always happens before fan-out; dispatch errors are logged and swallowed.
type ConversationService struct {
	store      store.Store
	dispatcher Dispatcher
	logger     *logger.Logger

	// seq serializes the persist-then-enqueue window per conversation, so
	// concurrent appends reach the peer in the order they persisted.
	seq [64]sync.Mutex
}

// NewConversationService creates a new conversation service.
func NewConversationService(st store.Store, d Dispatcher, log *logger.Logger) *ConversationService {
	if d == nil {
		d = NopDispatcher{}
	}
	return &ConversationService{
		store:      st,
		dispatcher: d,
		logger:     log,
	}
}

// FindOrCreate returns the canonical conversation between two distinct
// users, creating it on first message-intent.
func (s *ConversationService) FindOrCreate(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	if userA == "" || userB == "" {
		return nil, fmt.Errorf("%w: both participants are required", ErrInvalid)
	}
	if userA == userB {
		return nil, fmt.Errorf("%w: a conversation needs two distinct users", ErrInvalid)
	}

	ua, ub := model.NormalizePair(userA, userB)
	now := time.Now()
	cand := &model.Conversation{
		ID:           uuid.Must(uuid.NewV7()).String(),
		UserA:        ua,
		UserB:        ub,
		CreatedAt:    now,
		LastActivity: now,
	}

	conv, created, err := s.store.FindOrCreateConversation(ctx, cand)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create conversation: %w", err)
	}
	if created {
		metrics.ConversationsTotal.Inc()
		s.logger.Info("conversation created",
			zap.String("conversation_id", conv.ID),
			zap.String("user_a", conv.UserA),
			zap.String("user_b", conv.UserB),
		)
	}
	return conv, nil
}

// List returns the user's conversations, most recently active first, each
// with its last message preview and unread count.
func (s *ConversationService) List(ctx context.Context, userID string, limit int) (*model.ListConversationsResponse, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalid)
	}
	limit = clampLimit(limit)

	convs, err := s.store.ListConversations(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return &model.ListConversationsResponse{
		Conversations: convs,
		Total:         len(convs),
	}, nil
}

// Append validates and persists a new message, then pushes it to the other
// participant's live connections.
func (s *ConversationService) Append(ctx context.Context, conversationID, senderID, content string) (*model.DirectMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content must not be empty", ErrInvalid)
	}
	if senderID == "" {
		return nil, fmt.Errorf("%w: sender id is required", ErrInvalid)
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err == store.ErrNotFound {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if !conv.HasParticipant(senderID) {
		return nil, fmt.Errorf("%w: sender is not a participant", ErrForbidden)
	}

	lock := s.sequence(conv.ID)
	lock.Lock()
	defer lock.Unlock()

	msg := &model.DirectMessage{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		Read:           false,
		CreatedAt:      time.Now(),
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}
	metrics.MessagesTotal.Inc()

	// The sender already has the message from this response; push only to
	// the peer. A failed push is not an error for the sender.
	peer := conv.Peer(senderID)
	if err := s.dispatcher.DirectMessage(ctx, peer, msg); err != nil {
		metrics.DeliveryFailures.Inc()
		s.logger.Warn("live delivery failed",
			zap.String("conversation_id", conv.ID),
			zap.String("recipient", peer),
			zap.Error(err),
		)
	}
	return msg, nil
}

// ListMessages returns messages oldest first for chat-window population.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID string, limit int, before time.Time) (*model.ListMessagesResponse, error) {
	limit = clampLimit(limit)

	msgs, err := s.store.ListMessages(ctx, conversationID, limit, before)
	if err == store.ErrNotFound {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return &model.ListMessagesResponse{
		Messages: msgs,
		HasMore:  len(msgs) == limit,
	}, nil
}

// MarkRead transitions every unread message addressed to readerID to read.
// Idempotent; emits a single message.read event toward the other
// participant, and only when something actually transitioned.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, readerID string) error {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err == store.ErrNotFound {
		return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}
	if !conv.HasParticipant(readerID) {
		return fmt.Errorf("%w: reader is not a participant", ErrForbidden)
	}

	lock := s.sequence(conversationID)
	lock.Lock()
	defer lock.Unlock()

	n, err := s.store.MarkConversationRead(ctx, conversationID, readerID)
	if err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}
	if n == 0 {
		return nil
	}

	read := &model.ReadEvent{ConversationID: conversationID, ReaderID: readerID}
	peer := conv.Peer(readerID)
	if err := s.dispatcher.ConversationRead(ctx, peer, read); err != nil {
		metrics.DeliveryFailures.Inc()
		s.logger.Warn("read receipt delivery failed",
			zap.String("conversation_id", conversationID),
			zap.String("recipient", peer),
			zap.Error(err),
		)
	}
	return nil
}

// sequence returns the lock covering one conversation's mutations. Locks
// are striped by conversation id hash, so unrelated conversations rarely
// contend and the set of locks stays bounded.
func (s *ConversationService) sequence(conversationID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(conversationID))
	return &s.seq[h.Sum32()%uint32(len(s.seq))]
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}
