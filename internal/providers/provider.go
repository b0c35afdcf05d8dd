// internal/providers/provider.go

// Package providers implements the advisor client capability: send a system
// prompt plus message history to one LLM provider, get back text and a token
// count, or an error. The two concrete clients share no state and know
// nothing about each other.
package providers

import (
	"context"

	"llm-council/internal/models"
)

// Provider names used in logs, metrics, and cost attribution.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Response is one successful advisor call.
type Response struct {
	Text       string
	TokensUsed int
}

// Client is the advisor capability. Implementations must honor ctx
// cancellation and must treat empty returned text as a failure.
type Client interface {
	Name() string
	Invoke(ctx context.Context, systemPrompt string, history []models.HistoryMessage) (*Response, error)
}
