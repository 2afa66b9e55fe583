package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "codepolice",
	Short: "Model-driven code review with automatic fix pull requests",
	Long: `codepolice analyzes repositories with a language model, computes
line-anchored fixes for the issues it finds and opens a single pull request
per trigger with every changed file.

Get started:
  codepolice doctor     Verify credentials and storage
  codepolice scan       Analyze a repository (optionally open a fix PR)
  codepolice autofix    Run the fix pipeline for a prepared trigger
  codepolice gateway    Start the webhook receiver and REST API
  codepolice cache      Purge the shared analysis cache
  codepolice ui         Terminal dashboard of recorded runs`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.codepolice/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		scanCmd,
		autofixCmd,
		gatewayCmd,
		cacheCmd,
		configCmd,
		doctorCmd,
		uiCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}
