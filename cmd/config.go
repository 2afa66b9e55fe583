package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/protocolzero/codepolice/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and manage codepolice configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration (secrets redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		redact(cfg)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

// redact masks every credential in cfg.
func redact(cfg *config.Config) {
	if cfg.AI.OpenAIKey != "" {
		cfg.AI.OpenAIKey = "sk-***"
	}
	if cfg.AI.AnthropicKey != "" {
		cfg.AI.AnthropicKey = "sk-ant-***"
	}
	for i := range cfg.Git.GitHub {
		if cfg.Git.GitHub[i].Token != "" {
			cfg.Git.GitHub[i].Token = "ghp-***"
		}
		if cfg.Git.GitHub[i].WebhookSecret != "" {
			cfg.Git.GitHub[i].WebhookSecret = "***"
		}
	}
	for i := range cfg.Git.GitLab {
		if cfg.Git.GitLab[i].Token != "" {
			cfg.Git.GitLab[i].Token = "glpat-***"
		}
	}
	if cfg.Database.DSN != "" {
		cfg.Database.DSN = "***"
	}
	if cfg.Notify.Slack.WebhookURL != "" {
		cfg.Notify.Slack.WebhookURL = "https://hooks.slack.com/***"
	}
	if cfg.Notify.Webhook.Secret != "" {
		cfg.Notify.Webhook.Secret = "***"
	}
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the path to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%s already exists", p)
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := config.Save(cfg, p); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Wrote " + p))
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "nano"
		}
		fmt.Printf("Opening %s with %s...\n", p, editor)
		c := exec.Command(editor, p) // #nosec G204 -- editor is from $EDITOR env var, intentional user-controlled binary
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd, configEditCmd)
}
