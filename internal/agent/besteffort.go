package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// SideEffectResult is the outcome of a non-critical call. Err is recorded
// for inspection and logging only; callers never propagate it.
type SideEffectResult struct {
	Name string
	Err  error
}

// OK reports whether the side effect succeeded.
func (r SideEffectResult) OK() bool { return r.Err == nil }

// BestEffort runs fn as a non-critical side effect. Failures and panics are
// logged at warn level and returned as a SideEffectResult, never as an error.
func BestEffort(ctx context.Context, name string, fn func(ctx context.Context) error) (res SideEffectResult) {
	res.Name = name
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
			slog.Warn("Best-effort step panicked", "step", name, "panic", r)
		}
	}()
	if err := fn(ctx); err != nil {
		res.Err = err
		slog.Warn("Best-effort step failed", "step", name, "error", err)
	}
	return res
}
