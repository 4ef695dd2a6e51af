// Package llm provides the text-completion client used by the assistant
// surface. Providers are interchangeable black boxes: a prompt goes in,
// text or an error comes out, no state is kept between calls.
package llm

import (
	"context"
	"errors"
)

// Client is the interface for completion providers.
type Client interface {
	// Complete sends a single prompt and returns the reply text.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of completion provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new completion client for the given provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return nil, errors.New("unknown completion provider")
	}
}
