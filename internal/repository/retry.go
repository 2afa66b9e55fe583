package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	defaultAPITimeout = 30 * time.Second
	maxAPIRetries     = 3
)

// caller wraps every remote API call with a token-bucket limiter, a
// per-attempt timeout and bounded exponential backoff. Reads retry on 429,
// 5xx and transport failures. Writes that create state retry only on
// statuses that mean the request was not processed, since a timed-out first
// attempt may already have succeeded.
type caller struct {
	provider string
	limiter  *rate.Limiter
	timeout  time.Duration
	newBack  func() backoff.BackOff
}

func newCaller(provider string, opts ...Option) *caller {
	c := &caller{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		timeout:  defaultAPITimeout,
		newBack: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 8 * time.Second
			b.MaxElapsedTime = 0
			return backoff.WithMaxRetries(b, maxAPIRetries)
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// do runs an idempotent call until it succeeds, fails permanently or runs
// out of retries. fn reports the HTTP status it saw, or 0 when no response
// arrived.
func (c *caller) do(ctx context.Context, op string, fn func(ctx context.Context) (int, error)) error {
	return c.run(ctx, op, retriable, fn)
}

// doWrite runs a call that is not safe to repeat blindly.
func (c *caller) doWrite(ctx context.Context, op string, fn func(ctx context.Context) (int, error)) error {
	return c.run(ctx, op, retriableWrite, fn)
}

func (c *caller) run(ctx context.Context, op string, retry func(context.Context, int, error) bool, fn func(ctx context.Context) (int, error)) error {
	attempt := 0
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		status, err := fn(callCtx)
		if err == nil {
			return nil
		}
		if !retry(ctx, status, err) {
			return backoff.Permanent(err)
		}
		slog.Debug("Source control call failed; retrying",
			"provider", c.provider,
			"op", op,
			"attempt", attempt,
			"status", status,
			"error", err,
		)
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(c.newBack(), ctx)); err != nil {
		return fmt.Errorf("%s %s: %w", c.provider, op, err)
	}
	return nil
}

func retriable(ctx context.Context, status int, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrFileNotFound) {
		return false
	}
	switch {
	case status == 0:
		return true
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

// retriableWrite allows a retry only when the server or a proxy in front of
// it reports that the request never reached the handler.
func retriableWrite(ctx context.Context, status int, _ error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
