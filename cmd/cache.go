package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/protocolzero/codepolice/internal/analysis"
	"github.com/protocolzero/codepolice/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the shared analysis cache",
}

var cachePurgeOlderThan time.Duration

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete shared cache entries older than the cache TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		db, err := openDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ttl := cfg.Cache.TTL
		if cachePurgeOlderThan > 0 {
			ttl = cachePurgeOlderThan
		}
		n, err := analysis.NewDBStore(db).PurgeOlderThan(ctx, time.Now().Add(-ttl))
		if err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("Purged %d cached analyses older than %s", n, ttl)))
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().DurationVar(&cachePurgeOlderThan, "older-than", 0,
		"age cutoff (default: cache.ttl from config)")
	cacheCmd.AddCommand(cachePurgeCmd)
}
