package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/protocolzero/codepolice/internal/agent"
	"github.com/protocolzero/codepolice/internal/gateway"
	"github.com/protocolzero/codepolice/internal/repository"
)

var gatewayPort int
var gatewayLogDir string

var gatewayCmd = &cobra.Command{
	Use:     "gateway",
	Aliases: []string{"serve"},
	Short:   "Start the codepolice gateway daemon",
	Long: `Starts the codepolice gateway: a long-running daemon that receives
GitHub push webhooks, analyzes the pushed commit and opens a fix pull
request, and exposes a local REST + SSE API (default: http://127.0.0.1:6080).

A push for the same repository and commit within the dedup window
(autofix.dedup_window, default 5m) is acknowledged and ignored.

Quick API reference:
  GET  /health               liveness check
  GET  /api/status           run counters snapshot
  POST /api/autofix          run the fix pipeline synchronously (AutoFixInput JSON)
  GET  /api/runs/{id}        recorded outcome of an analysis run
  POST /webhooks/github      GitHub push webhook (X-Hub-Signature-256 required)
  GET  /api/cache/stats      analysis cache counters
  POST /api/cache/purge      drop expired cache entries
  GET  /events               SSE stream of live events`,
	RunE: runGateway,
}

func init() {
	gatewayCmd.Flags().IntVar(&gatewayPort, "port", 0,
		"HTTP port to listen on (default 6080, overrides config)")
	gatewayCmd.Flags().StringVar(&gatewayLogDir, "log-dir", "",
		"directory for rotated gateway logs (overrides config)")
}

func runGateway(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()
	cfg := svc.cfg

	if gatewayLogDir != "" {
		cfg.Gateway.LogDir = gatewayLogDir
	}
	logPath, closeLog, err := setupGatewayFileLogger(cfg.Gateway.LogDir)
	if err != nil {
		return fmt.Errorf("initialising gateway logger: %w", err)
	}
	defer closeLog()

	if gatewayPort > 0 {
		cfg.Gateway.Port = gatewayPort
	}

	gw := gateway.New(cfg, gateway.Deps{
		DB:        svc.db,
		AutoFixer: svc.fixer,
		Scanner:   agent.NewRepoScanner(repository.NewCloneManager(), svc.analyzer),
		Runs:      svc.recorder,
		Cache:     svc.cache,
	})

	fmt.Println(headerStyle.Render("codepolice gateway starting"))
	fmt.Printf("  API        : http://%s\n", gw.Addr())
	fmt.Printf("  Webhook    : http://%s/webhooks/github\n", gw.Addr())
	fmt.Printf("  Events     : http://%s/events\n", gw.Addr())
	fmt.Printf("  Database   : %s\n", svc.db.Driver())
	fmt.Printf("  Logs       : %s\n\n", logPath)
	if !hasWebhookSecret(cfg.Git.GitHub) {
		fmt.Println(warnStyle.Render("No GitHub webhook secret configured; push deliveries will be rejected."))
	}
	fmt.Println(dimStyle.Render("Press Ctrl+C to stop gracefully."))
	fmt.Println()

	slog.Info("gateway logger initialised", "file", logPath)
	return gw.Start(ctx)
}

// setupGatewayFileLogger sends slog output to stdout and a size-rotated
// file under logDir.
func setupGatewayFileLogger(logDir string) (string, func(), error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating log dir %s: %w", logDir, err)
	}

	logPath := filepath.Join(logDir, "gateway.log")
	rotator := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, rotator), &slog.HandlerOptions{
		Level:     level,
		AddSource: verbose,
	})
	slog.SetDefault(slog.New(handler))
	slog.SetLogLoggerLevel(level)

	return logPath, func() { _ = rotator.Close() }, nil
}
