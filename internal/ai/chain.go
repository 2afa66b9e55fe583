package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/protocolzero/codepolice/internal/config"
)

const (
	failureThreshold = 3
	resetTimeout     = 2 * time.Minute
)

type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half-open"
)

type circuitBreaker struct {
	mu           sync.Mutex
	failures     int
	lastFailedAt time.Time
	state        breakerState
	now          func() time.Time
}

func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{state: stateClosed, now: time.Now}
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == stateOpen {
		if cb.now().Sub(cb.lastFailedAt) >= resetTimeout {
			cb.state = stateHalfOpen
			return true
		}
		return false
	}
	return true
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = stateClosed
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailedAt = cb.now()

	if cb.failures >= failureThreshold || cb.state == stateHalfOpen {
		cb.state = stateOpen
		slog.Debug("ai: circuit breaker opened", "failures", cb.failures)
	}
}

func (cb *circuitBreaker) trip() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailedAt = cb.now()
	cb.state = stateOpen
}

// ChainProvider tries each provider in order, skipping those whose circuit
// is open.
type ChainProvider struct {
	providers []Provider
	breakers  map[string]*circuitBreaker
	mu        sync.RWMutex
	current   string
	fallback  bool
}

func NewChain(providers []Provider) *ChainProvider {
	breakers := make(map[string]*circuitBreaker)
	for _, p := range providers {
		breakers[p.Name()] = newCircuitBreaker()
	}

	current := ""
	if len(providers) > 0 {
		current = providers[0].Name()
	}

	return &ChainProvider{
		providers: providers,
		breakers:  breakers,
		current:   current,
	}
}

func (c *ChainProvider) Name() string { return "chain" }

func (c *ChainProvider) IsAvailable(ctx context.Context) bool {
	for _, p := range c.providers {
		if p.IsAvailable(ctx) {
			return true
		}
	}
	return false
}

func (c *ChainProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	var lastErr error
	var usedFallback bool

	for _, p := range c.providers {
		cb := c.breakers[p.Name()]
		if !cb.allow() {
			slog.Debug("ai: circuit open, skipping provider", "provider", p.Name())
			continue
		}

		out, err := p.Complete(ctx, req)
		if err == nil {
			cb.recordSuccess()
			c.mu.Lock()
			c.current = p.Name()
			c.fallback = usedFallback
			c.mu.Unlock()

			if usedFallback {
				slog.Info("ai: provider succeeded after failover", "provider", p.Name())
			}
			return out, nil
		}

		switch {
		case isAuthError(err):
			cb.trip()
			slog.Warn("ai: auth error, opening circuit", "provider", p.Name(), "error", err)
		case isRetriableError(err):
			cb.recordFailure()
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.Warn("ai: provider failed, trying next", "provider", p.Name(), "error", err)
		lastErr = err
		usedFallback = true
	}

	if lastErr == nil {
		return "", fmt.Errorf("all AI providers skipped: circuits open")
	}
	return "", fmt.Errorf("all AI providers failed; last error: %w", lastErr)
}

// CurrentProvider returns the provider that served the last success and
// whether it was reached by failover.
func (c *ChainProvider) CurrentProvider() (provider string, fallback bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.fallback
}

func newSingle(provider string, cfg config.AIConfig) (Provider, error) {
	switch provider {
	case "", "none":
		return &NoopProvider{}, nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return &NoopProvider{}, nil
		}
		return NewOpenAI(cfg)
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return &NoopProvider{}, nil
		}
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider %q (supported: anthropic, openai)", provider)
	}
}
