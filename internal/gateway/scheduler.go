package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/protocolzero/codepolice/internal/agent"
	"github.com/protocolzero/codepolice/internal/analysis"
)

const (
	// sweepExpr drops expired tier-1 cache entries and stale dedup keys.
	sweepExpr = "@every 10m"
	// defaultPurgeExpr prunes the shared cache table.
	defaultPurgeExpr = "@daily"
	purgeTimeout     = 2 * time.Minute
)

// Scheduler runs the gateway's housekeeping jobs on robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	purgeExpr string
	cache     *analysis.Cache
	guard     *agent.TriggerGuard
	broadcast func(SSEEvent)
}

func newScheduler(purgeExpr string, cache *analysis.Cache, guard *agent.TriggerGuard, broadcast func(SSEEvent)) *Scheduler {
	if purgeExpr == "" {
		purgeExpr = defaultPurgeExpr
	}
	return &Scheduler{
		cron:      cron.New(),
		purgeExpr: purgeExpr,
		cache:     cache,
		guard:     guard,
		broadcast: broadcast,
	}
}

// Start registers the jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(sweepExpr, s.sweep); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", sweepExpr, err)
	}
	if s.cache != nil {
		if err := validate(s.purgeExpr); err != nil {
			return err
		}
		if _, err := s.cron.AddFunc(s.purgeExpr, s.purgeShared); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.purgeExpr, err)
		}
	}
	s.cron.Start()
	slog.Info("gateway scheduler started", "sweep", sweepExpr, "purge", s.purgeExpr)
	return nil
}

// Stop halts the cron runner and waits for running jobs.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

func (s *Scheduler) sweep() {
	expired := 0
	if s.cache != nil {
		expired = s.cache.PurgeExpired()
	}
	pruned := s.guard.Prune()
	if expired > 0 || pruned > 0 {
		slog.Debug("scheduler: sweep", "cache_expired", expired, "dedup_pruned", pruned)
	}
}

func (s *Scheduler) purgeShared() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()
	n, err := s.cache.PurgeShared(ctx)
	if err != nil {
		slog.Warn("scheduler: shared cache purge failed", "error", err)
		return
	}
	slog.Info("scheduler: shared cache purged", "rows", n)
	s.broadcast(SSEEvent{Type: "cache.purged", Payload: map[string]any{"rows": n}})
}

// validate checks that expr is a valid cron expression.
func validate(expr string) error {
	p := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := p.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
