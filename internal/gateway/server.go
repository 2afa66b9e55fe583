package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/protocolzero/codepolice/internal/agent"
	"github.com/protocolzero/codepolice/internal/analysis"
	"github.com/protocolzero/codepolice/internal/config"
	"github.com/protocolzero/codepolice/internal/database"
	"github.com/protocolzero/codepolice/models"
)

// Scanner clones and analyzes a repository. *agent.RepoScanner satisfies it.
type Scanner interface {
	Scan(ctx context.Context, req agent.ScanRequest) (*agent.ScanReport, error)
}

// RunLookup reads back recorded auto-fix outcomes. *agent.DBRecorder
// satisfies it.
type RunLookup interface {
	Get(ctx context.Context, runID string) (*agent.RunRecord, error)
}

// Deps are the collaborators of a Gateway. DB, Scanner, Runs and Cache are
// optional; the routes that need them answer 503 without them.
type Deps struct {
	DB        database.DB
	AutoFixer *agent.AutoFixer
	Scanner   Scanner
	Runs      RunLookup
	Cache     *analysis.Cache
}

// Gateway is the long-running daemon that combines:
//   - the auto-fix pipeline (triggered by API calls and push webhooks)
//   - a cron Scheduler (cache and dedup housekeeping)
//   - a REST + SSE HTTP server
type Gateway struct {
	cfg         *config.Config
	db          database.DB
	fixer       *agent.AutoFixer
	scanner     Scanner
	runs        RunLookup
	cache       *analysis.Cache
	scheduler   *Scheduler
	broadcaster *Broadcaster

	mu        sync.RWMutex
	status    Status
	startedAt time.Time

	// bg is the lifetime context for webhook-triggered runs.
	bg      context.Context
	stopBg  context.CancelFunc
	running sync.WaitGroup
}

// New creates a Gateway. Call Start() to begin serving.
func New(cfg *config.Config, deps Deps) *Gateway {
	bg, stop := context.WithCancel(context.Background())
	gw := &Gateway{
		cfg:         cfg,
		db:          deps.DB,
		fixer:       deps.AutoFixer,
		scanner:     deps.Scanner,
		runs:        deps.Runs,
		cache:       deps.Cache,
		broadcaster: newBroadcaster(),
		startedAt:   time.Now(),
		bg:          bg,
		stopBg:      stop,
	}
	gw.scheduler = newScheduler(cfg.Cache.PurgeSchedule, gw.cache, gw.fixer.Guard(), gw.broadcaster.send)
	return gw
}

// Addr is the listen address from config, defaulting to 127.0.0.1:6080.
func (gw *Gateway) Addr() string {
	host := gw.cfg.Gateway.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := gw.cfg.Gateway.Port
	if port == 0 {
		port = 6080
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Start runs the gateway until ctx is cancelled. It:
//  1. Starts the cron scheduler
//  2. Starts a stats ticker that broadcasts Status every 5s via SSE
//  3. Binds the HTTP server (blocks until shutdown)
//
// Webhook-triggered runs still in flight are cancelled on shutdown and
// awaited before Start returns.
func (gw *Gateway) Start(ctx context.Context) error {
	addr := gw.Addr()

	if err := gw.scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	go gw.runStatsTicker(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           buildHandler(gw),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		gw.scheduler.Stop()
		gw.broadcaster.close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway: listening", "addr", "http://"+addr)
	gw.broadcaster.send(SSEEvent{
		Type:    "gateway.started",
		Payload: map[string]string{"addr": "http://" + addr},
	})

	err := srv.ListenAndServe()
	gw.stopBg()
	gw.running.Wait()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Wait blocks until background runs started by webhooks have finished.
func (gw *Gateway) Wait() { gw.running.Wait() }

// runStatsTicker refreshes Status every 5 seconds and broadcasts a
// "status.update" SSE event to all connected clients.
func (gw *Gateway) runStatsTicker(ctx context.Context) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			gw.refreshStatus(ctx)
		}
	}
}

func (gw *Gateway) refreshStatus(ctx context.Context) {
	var opened countRow
	if gw.db != nil {
		_ = gw.db.Get(ctx, &opened, "SELECT COUNT(*) AS n FROM analysis_runs WHERE auto_fix_status = ?", agent.RunStatusPROpened)
	}
	gw.mu.Lock()
	gw.status.RecordedPRs = opened.N
	gw.mu.Unlock()

	gw.broadcaster.send(SSEEvent{Type: "status.update", Payload: gw.currentStatus()})
}

func (gw *Gateway) currentStatus() Status {
	gw.mu.RLock()
	s := gw.status
	gw.mu.RUnlock()
	s.GuardEntries = gw.fixer.Guard().Len()
	s.Subscribers = gw.broadcaster.count()
	s.UptimeSeconds = int64(time.Since(gw.startedAt).Seconds())
	return s
}

// runStarted marks a trigger as accepted.
func (gw *Gateway) runStarted() {
	gw.mu.Lock()
	gw.status.ActiveRuns++
	gw.status.RunsStarted++
	gw.status.LastTriggerAt = time.Now().UTC().Format(time.RFC3339)
	gw.mu.Unlock()
}

// runFinished records the outcome of an accepted trigger.
func (gw *Gateway) runFinished(res models.AutoFixResult) {
	gw.mu.Lock()
	gw.status.ActiveRuns--
	if res.Success {
		gw.status.RunsSucceeded++
	} else {
		gw.status.RunsFailed++
	}
	gw.mu.Unlock()
}

func (gw *Gateway) runSkipped() {
	gw.mu.Lock()
	gw.status.RunsSkipped++
	gw.mu.Unlock()
}
