package ai

import (
	"context"
	"errors"
)

// ErrNoProvider is returned by NoopProvider for every completion.
var ErrNoProvider = errors.New("AI provider not configured: set ai.provider and an API key in the codepolice config")

// NoopProvider is used when no AI provider is configured.
// IsAvailable always returns false and Complete returns ErrNoProvider, so the
// fix pipeline falls through to annotation fixes instead of crashing.
type NoopProvider struct{}

func (n *NoopProvider) Name() string                       { return "none" }
func (n *NoopProvider) IsAvailable(_ context.Context) bool { return false }

func (n *NoopProvider) Complete(_ context.Context, _ CompletionRequest) (string, error) {
	return "", ErrNoProvider
}
