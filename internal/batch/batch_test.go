package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunKeepsOrderAndIsolatesFailures(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6}
	res := Run(context.Background(), items, 3, func(_ context.Context, n int) (int, error) {
		if n == 1 || n == 5 {
			return 0, errors.New("boom")
		}
		// Later items finish first inside a window.
		time.Sleep(time.Duration(7-n) * time.Millisecond)
		return n * 10, nil
	})

	assert.Equal(t, []int{0, 20, 30, 40, 60}, res.Values)
	assert.Equal(t, []int{0, 2, 3, 4, 6}, res.Indexes)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Equal(t, 5, res.Failures[1].Index)
}

func TestRunBoundsConcurrencyPerWindow(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 12)
	Run(context.Background(), items, 4, func(_ context.Context, _ int) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return struct{}{}, nil
	})
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestRunRecoversPanics(t *testing.T) {
	res := Run(context.Background(), []string{"ok", "panic"}, 0, func(_ context.Context, s string) (string, error) {
		if s == "panic" {
			panic("bad input")
		}
		return s, nil
	})
	assert.Equal(t, []string{"ok"}, res.Values)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Contains(t, res.Failures[0].Err.Error(), "bad input")
}

func TestRunEmpty(t *testing.T) {
	res := Run(context.Background(), nil, 5, func(_ context.Context, n int) (int, error) { return n, nil })
	assert.Empty(t, res.Values)
	assert.Empty(t, res.Failures)
}
