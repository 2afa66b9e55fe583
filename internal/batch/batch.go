// Package batch runs independent work items in fixed-width windows.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// DefaultWidth is the number of items run concurrently per window.
const DefaultWidth = 5

// Failure is an item that returned an error (or panicked).
type Failure struct {
	Index int
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("item %d: %v", f.Index, f.Err)
}

// Result holds the successes in input order and the failures by index.
type Result[T any] struct {
	Values []T
	// Indexes[i] is the input index of Values[i].
	Indexes  []int
	Failures []Failure
}

// Run processes items in sequential windows of width. Every item in a window
// runs concurrently and the window waits for all of them; one item's failure
// cancels nothing. A width <= 0 uses DefaultWidth.
func Run[In, Out any](ctx context.Context, items []In, width int, fn func(ctx context.Context, item In) (Out, error)) Result[Out] {
	if width <= 0 {
		width = DefaultWidth
	}

	outs := make([]Out, len(items))
	errs := make([]error, len(items))

	for start := 0; start < len(items); start += width {
		end := min(start+width, len(items))

		// A plain Group: no derived context, so one failure never cancels
		// siblings.
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				outs[i], errs[i] = call(ctx, i, items[i], fn)
				return nil
			})
		}
		_ = g.Wait()

		slog.Debug("batch window settled", "from", start, "to", end, "total", len(items))
	}

	var res Result[Out]
	for i := range items {
		if errs[i] != nil {
			res.Failures = append(res.Failures, Failure{Index: i, Err: errs[i]})
			continue
		}
		res.Values = append(res.Values, outs[i])
		res.Indexes = append(res.Indexes, i)
	}
	return res
}

func call[In, Out any](ctx context.Context, idx int, item In, fn func(context.Context, In) (Out, error)) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("batch item panicked", "index", idx, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, item)
}
