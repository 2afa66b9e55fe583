package agent

import (
	"sync"
	"time"
)

// DefaultDedupWindow is how long a (project, commit) trigger suppresses
// repeats.
const DefaultDedupWindow = 5 * time.Minute

// TriggerGuard drops repeat triggers for the same project and commit that
// arrive within the window of the first one.
type TriggerGuard struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[triggerKey]time.Time
	now    func() time.Time
}

type triggerKey struct {
	project string
	commit  string
}

// NewTriggerGuard returns a guard with the given window; zero uses the
// default.
func NewTriggerGuard(window time.Duration) *TriggerGuard {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &TriggerGuard{
		window: window,
		seen:   make(map[triggerKey]time.Time),
		now:    time.Now,
	}
}

// Acquire records the trigger and reports whether it should run. A false
// return means an identical trigger was accepted less than a window ago.
func (g *TriggerGuard) Acquire(project, commit string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := triggerKey{project: project, commit: commit}
	now := g.now()
	if at, ok := g.seen[k]; ok && now.Sub(at) < g.window {
		return false
	}
	g.seen[k] = now
	return true
}

// Prune forgets triggers older than the window and returns how many went.
func (g *TriggerGuard) Prune() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	n := 0
	for k, at := range g.seen {
		if now.Sub(at) >= g.window {
			delete(g.seen, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked triggers.
func (g *TriggerGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
