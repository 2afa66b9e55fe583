package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/protocolzero/codepolice/internal/agent"
	"github.com/protocolzero/codepolice/internal/config"
	"github.com/protocolzero/codepolice/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal dashboard of recorded auto-fix runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		db, err := openDB(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		return tui.NewApp(agent.NewDBRecorder(db)).Run()
	},
}
