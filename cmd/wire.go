package cmd

import (
	"context"
	"fmt"

	"github.com/protocolzero/codepolice/internal/agent"
	"github.com/protocolzero/codepolice/internal/ai"
	"github.com/protocolzero/codepolice/internal/analysis"
	"github.com/protocolzero/codepolice/internal/config"
	"github.com/protocolzero/codepolice/internal/database"
	"github.com/protocolzero/codepolice/internal/fixgen"
	"github.com/protocolzero/codepolice/internal/notify"
)

// services is everything a command needs to analyze and fix. Close releases
// the database.
type services struct {
	cfg      *config.Config
	db       database.DB
	provider ai.Provider
	cache    *analysis.Cache
	analyzer *analysis.Analyzer
	fixer    *agent.AutoFixer
	recorder *agent.DBRecorder
}

func (s *services) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// openServices loads config, opens and migrates the database, and builds
// the analyzer and auto-fixer on top of one shared cache.
func openServices(ctx context.Context) (*services, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	provider, err := ai.New(cfg.AI)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configuring AI provider: %w", err)
	}

	rules, err := analysis.LoadRuleSet(cfg.Rules.Path)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	cache := newCache(cfg, db)
	analyzer := analysis.NewAnalyzer(provider, cache, analysis.AnalyzerOptions{
		ModelVersion: cfg.Cache.ModelVersion,
		Rules:        rules.Strings(),
		Concurrency:  cfg.AutoFix.Concurrency,
		Timeout:      cfg.AutoFix.OracleTimeout,
	})

	recorder := agent.NewDBRecorder(db)
	fixer := agent.NewAutoFixer(cfg.AutoFix, agent.AutoFixDeps{
		Fixer: fixgen.NewClient(provider, fixgen.Options{
			Attempts: cfg.AutoFix.OracleAttempts,
			Timeout:  cfg.AutoFix.OracleTimeout,
		}),
		Recorder: recorder,
		Notifier: notify.NewDispatcher(cfg.Notify),
	})

	return &services{
		cfg:      cfg,
		db:       db,
		provider: provider,
		cache:    cache,
		analyzer: analyzer,
		fixer:    fixer,
		recorder: recorder,
	}, nil
}

// openDB opens the configured database and applies migrations.
func openDB(ctx context.Context, cfg *config.Config) (database.DB, error) {
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// newCache builds the analysis cache, backed by the database when the
// shared tier is enabled.
func newCache(cfg *config.Config, db database.DB) *analysis.Cache {
	opts := analysis.CacheOptions{
		MaxEntries:    cfg.Cache.MaxEntries,
		TTL:           cfg.Cache.TTL,
		EvictFraction: cfg.Cache.EvictFraction,
	}
	if cfg.Cache.Shared && db != nil {
		return analysis.NewCache(opts, analysis.NewDBStore(db))
	}
	return analysis.NewCache(opts, nil)
}
