package ai

import (
	"context"
	"log/slog"

	"github.com/protocolzero/codepolice/internal/config"
)

// Provider abstracts calls to a language model.
// To add a new provider:
//  1. Create a file in internal/ai/ (e.g. mymodel.go)
//  2. Implement Provider
//  3. Register in newSingle()
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// IsAvailable verifies the provider is reachable and configured.
	IsAvailable(ctx context.Context) bool

	// Complete sends one system + user prompt pair and returns the raw text
	// of the model's reply.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest is a single model call.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	// MaxTokens caps the reply length; 0 uses the provider default.
	MaxTokens int
}

const defaultMaxTokens = 4096

// New returns the configured Provider.
// If no provider or API key is set, it returns a NoopProvider; callers
// degrade to annotation-only fixes in that case.
// If fallback providers are configured, returns a ChainProvider that tries
// them in order on failure with circuit breaker protection.
func New(cfg config.AIConfig) (Provider, error) {
	primary, err := newSingle(cfg.Provider, cfg)
	if err != nil {
		return nil, err
	}

	if len(cfg.Fallback) == 0 {
		return primary, nil
	}

	chain := []Provider{primary}
	for _, fallbackProvider := range cfg.Fallback {
		p, err := newSingle(fallbackProvider, cfg)
		if err != nil {
			slog.Warn("ai: failed to create fallback provider, skipping", "provider", fallbackProvider, "error", err)
			continue
		}
		chain = append(chain, p)
	}

	if len(chain) == 1 {
		return primary, nil
	}

	return NewChain(chain), nil
}
