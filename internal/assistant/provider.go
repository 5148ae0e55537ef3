package assistant

import (
	"context"

	"github.com/brightsteps/assistant/internal/domain"
)

// Provider defines the interface for assistant reply providers
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// IsConfigured checks if provider has valid credentials
	IsConfigured() bool

	// Reply generates the assistant's answer to prompt, given the recent
	// conversation history (oldest first).
	Reply(ctx context.Context, identity domain.Identity, history []domain.Message, prompt string) (string, error)
}
