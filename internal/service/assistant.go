package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/escolalink/messaging-platform/internal/llm"
	"github.com/escolalink/messaging-platform/pkg/metrics"
)

// AssistantService forwards a prompt to the configured completion provider.
// The provider is a stateless black box: no conversation state is kept and
// failures are surfaced to the caller, never retried.
type AssistantService struct {
	client llm.Client
}

// NewAssistantService creates a new assistant service. client may be nil
// when no provider is configured; Reply then reports the feature disabled.
func NewAssistantService(client llm.Client) *AssistantService {
	return &AssistantService{client: client}
}

// Enabled reports whether a completion provider is configured.
func (s *AssistantService) Enabled() bool {
	return s.client != nil
}

// Reply sends the prompt and returns the assistant's text response.
func (s *AssistantService) Reply(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt must not be empty", ErrInvalid)
	}
	if s.client == nil {
		return "", fmt.Errorf("%w: assistant is not configured", ErrNotFound)
	}

	start := time.Now()
	reply, err := s.client.Complete(ctx, prompt)
	metrics.AssistantRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return reply, nil
}
