package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/protocolzero/codepolice/internal/repository"
	"github.com/protocolzero/codepolice/models"
)

var (
	autofixInput   string
	autofixProject string
	autofixJSON    bool
)

var autofixCmd = &cobra.Command{
	Use:   "autofix",
	Short: "Run the fix pipeline for a prepared trigger",
	Long: `Reads an AutoFixInput JSON document (owner, repo, branch, commitSha,
issues, ...) and runs the fix pipeline once: each affected file is fetched
at the commit, fixes are generated and applied, and one pull request is
opened with every changed file.

The source-control token may be omitted from the document when the config
holds one for the provider.

Examples:
  codepolice autofix --input run.json
  cat run.json | codepolice autofix --input - --json`,
	RunE: runAutoFix,
}

func init() {
	autofixCmd.Flags().StringVar(&autofixInput, "input", "", "AutoFixInput JSON file, or - for stdin (required)")
	autofixCmd.Flags().StringVar(&autofixProject, "project", "", "project id for deduplication (default owner/repo)")
	autofixCmd.Flags().BoolVar(&autofixJSON, "json", false, "print the result as JSON")
	_ = autofixCmd.MarkFlagRequired("input")
}

func runAutoFix(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	in, err := readAutoFixInput(autofixInput, cmd.InOrStdin())
	if err != nil {
		return err
	}

	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	if in.SourceControlToken == "" {
		in.SourceControlToken = repository.TokenForProvider(svc.cfg, in.Provider, in.Host)
	}
	if in.SourceControlToken == "" {
		return fmt.Errorf("no source-control token in input or config for provider %q", in.Provider)
	}
	if autofixProject != "" {
		in.ProjectID = autofixProject
	}

	res, skipped := svc.fixer.RunOnce(ctx, in.ProjectID, in)
	if skipped {
		fmt.Println(warnStyle.Render("Duplicate trigger skipped."))
		return nil
	}
	if autofixJSON {
		return printJSON(cmd.OutOrStdout(), res)
	}
	printAutoFixResult(res)
	if !res.Success {
		return fmt.Errorf("auto-fix did not open a pull request")
	}
	return nil
}

func readAutoFixInput(path string, stdin io.Reader) (models.AutoFixInput, error) {
	var in models.AutoFixInput
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path) // #nosec G304 -- path is a user-supplied CLI argument
		if err != nil {
			return in, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return in, fmt.Errorf("parsing input: %w", err)
	}
	if in.Owner == "" || in.Repo == "" || in.CommitSHA == "" {
		return in, fmt.Errorf("input must set owner, repo and commitSha")
	}
	return in, nil
}

func printAutoFixResult(res models.AutoFixResult) {
	fmt.Println()
	if res.Success {
		fmt.Println(successStyle.Render(fmt.Sprintf("Opened pull request #%d", res.PRNumber)))
		fmt.Printf("  URL     : %s\n", res.PRURL)
		fmt.Printf("  Branch  : %s\n", res.BranchName)
	} else {
		fmt.Println(errorStyle.Render("No pull request opened: " + res.Error))
	}
	fmt.Printf("  Fixes   : %d\n", res.FixesGenerated)
	fmt.Printf("  Files   : %d\n", res.FilesChanged)
	for _, e := range res.Errors {
		fmt.Println(dimStyle.Render("  ! " + e))
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
