package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/protocolzero/codepolice/internal/analysis"
	"github.com/protocolzero/codepolice/internal/config"
	"github.com/protocolzero/codepolice/internal/database"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify credentials, storage and configuration",
	Long: `Checks that the database can be reached, a model provider is
configured, source-control tokens and webhook secrets are present, and the
custom rules file parses.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println(headerStyle.Render("=== codepolice doctor ==="))

	fmt.Print("Database ................. ")
	db, err := database.New(cfg.Database)
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		if err := db.Ping(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else {
			fmt.Printf("OK (%s)\n", db.Driver())
		}
		db.Close()
	}

	fmt.Print("AI provider .............. ")
	switch {
	case cfg.AI.Provider == "" || cfg.AI.Provider == "none":
		fmt.Println("disabled (fixes will be annotations only, analysis finds nothing)")
		allOK = false
	case cfg.AI.Provider == "openai" && cfg.AI.OpenAIKey == "":
		fmt.Println("WARN (OpenAI key missing)")
		allOK = false
	case cfg.AI.Provider == "anthropic" && cfg.AI.AnthropicKey == "":
		fmt.Println("WARN (Anthropic key missing)")
		allOK = false
	default:
		fmt.Printf("OK (%s / %s)\n", cfg.AI.Provider, cfg.AI.Model)
	}

	fmt.Print("GitHub token ............. ")
	if len(cfg.Git.GitHub) == 0 || cfg.Git.GitHub[0].Token == "" {
		fmt.Println("WARN (not configured)")
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", hostOrDefault(cfg.Git.GitHub[0].Host, "github.com"))
	}

	fmt.Print("GitHub webhook secret .... ")
	if hasWebhookSecret(cfg.Git.GitHub) {
		fmt.Println("OK")
	} else {
		fmt.Println("WARN (gateway will reject push deliveries)")
		allOK = false
	}

	fmt.Print("GitLab token ............. ")
	if len(cfg.Git.GitLab) == 0 || cfg.Git.GitLab[0].Token == "" {
		fmt.Println("not configured (optional)")
	} else {
		fmt.Printf("OK (%s)\n", hostOrDefault(cfg.Git.GitLab[0].Host, "gitlab.com"))
	}

	fmt.Print("Rules file ............... ")
	if rules, err := analysis.LoadRuleSet(cfg.Rules.Path); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else if cfg.Rules.Path == "" {
		fmt.Println("none (optional)")
	} else {
		fmt.Printf("OK (%d rules)\n", len(rules.Rules))
	}

	fmt.Print("Purge schedule ........... ")
	if cfg.Cache.PurgeSchedule == "" {
		fmt.Println("default (@daily)")
	} else {
		fmt.Printf("%s\n", cfg.Cache.PurgeSchedule)
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed. codepolice is ready!"))
	} else {
		fmt.Println(warnStyle.Render("Some checks need attention; edit the config with 'codepolice config edit'."))
	}
	return nil
}

func hasWebhookSecret(entries []config.GitHubConfig) bool {
	for _, e := range entries {
		if e.WebhookSecret != "" {
			return true
		}
	}
	return false
}

func hostOrDefault(host, def string) string {
	if host == "" {
		return def
	}
	return host
}
