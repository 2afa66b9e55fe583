package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/protocolzero/codepolice/internal/agent"
	"github.com/protocolzero/codepolice/internal/repository"
	"github.com/protocolzero/codepolice/models"
)

var (
	scanRepoURL   string
	scanBranch    string
	scanFix       bool
	scanOutputFmt string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Analyze a repository for code issues",
	Long: `Clones a repository, analyzes every source file with the configured
model and prints the issues found. Results are cached by content, so an
unchanged file is never sent to the model twice within the cache TTL.

With --fix the issues are handed to the fix pipeline, which opens one pull
request against the scanned branch.

Examples:
  codepolice scan --repo https://github.com/example/myapp
  codepolice scan --repo https://github.com/example/myapp --branch develop --output yaml
  codepolice scan --repo https://gitlab.com/group/sub/myapp --fix`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanRepoURL, "repo", "", "Repository URL to scan (required)")
	scanCmd.Flags().StringVar(&scanBranch, "branch", "", "Branch to scan (default: repo default branch)")
	scanCmd.Flags().BoolVar(&scanFix, "fix", false, "Open a fix pull request for the issues found")
	scanCmd.Flags().StringVar(&scanOutputFmt, "output", "table", "Output format: table|json|yaml")
	_ = scanCmd.MarkFlagRequired("repo")
}

// scanOutput is the json/yaml rendering of a scan.
type scanOutput struct {
	RunID       string        `json:"run_id"       yaml:"run_id"`
	Provider    string        `json:"provider"     yaml:"provider"`
	Owner       string        `json:"owner"        yaml:"owner"`
	Repo        string        `json:"repo"         yaml:"repo"`
	Branch      string        `json:"branch"       yaml:"branch"`
	Commit      string        `json:"commit"       yaml:"commit"`
	Files       int           `json:"files"        yaml:"files"`
	DurationSec float64       `json:"duration_sec" yaml:"duration_sec"`
	FailedFiles []string      `json:"failed_files,omitempty" yaml:"failed_files,omitempty"`
	Issues      []issueOutput `json:"issues"       yaml:"issues"`
}

type issueOutput struct {
	ID       string `json:"id"       yaml:"id"`
	File     string `json:"file"     yaml:"file"`
	Line     int    `json:"line"     yaml:"line"`
	EndLine  int    `json:"end_line,omitempty" yaml:"end_line,omitempty"`
	Severity string `json:"severity" yaml:"severity"`
	Category string `json:"category" yaml:"category"`
	Message  string `json:"message"  yaml:"message"`
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch scanOutputFmt {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q (valid: table, json, yaml)", scanOutputFmt)
	}

	provider, err := repository.DetectProvider(scanRepoURL)
	if err != nil {
		return fmt.Errorf("detecting git provider from URL: %w", err)
	}

	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	token := repository.TokenForProvider(svc.cfg, provider, repository.HostFromURL(scanRepoURL))
	if scanFix && token == "" {
		return fmt.Errorf("--fix needs a %s token in the config", provider)
	}

	slog.Info("Starting scan", "repo", scanRepoURL, "branch", scanBranch, "provider", provider)

	scanner := agent.NewRepoScanner(repository.NewCloneManager(), svc.analyzer)
	report, err := scanner.Scan(ctx, agent.ScanRequest{RepoURL: scanRepoURL, Branch: scanBranch, Token: token})
	if err != nil {
		return err
	}
	runID := uuid.NewString()

	out := cmd.OutOrStdout()
	switch scanOutputFmt {
	case "json":
		if err := printJSON(out, toScanOutput(runID, report)); err != nil {
			return err
		}
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(toScanOutput(runID, report)); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		_ = enc.Close()
	default:
		printScanTable(out, report)
	}

	if !scanFix {
		return nil
	}
	res, skipped := svc.fixer.RunOnce(ctx, "", report.AutoFixInput(token, runID))
	if skipped {
		fmt.Println(warnStyle.Render("Duplicate trigger skipped."))
		return nil
	}
	printAutoFixResult(res)
	return nil
}

func toScanOutput(runID string, r *agent.ScanReport) scanOutput {
	o := scanOutput{
		RunID:       runID,
		Provider:    r.Provider,
		Owner:       r.Owner,
		Repo:        r.Repo,
		Branch:      r.Branch,
		Commit:      r.Commit,
		Files:       r.Files,
		DurationSec: r.Duration.Round(time.Millisecond).Seconds(),
		FailedFiles: r.FailedFiles,
		Issues:      make([]issueOutput, 0, len(r.Issues)),
	}
	for _, is := range sortedIssues(r.Issues) {
		o.Issues = append(o.Issues, issueOutput{
			ID:       is.ID,
			File:     is.FilePath,
			Line:     is.Line,
			EndLine:  is.EndLine,
			Severity: string(is.Severity),
			Category: is.Category,
			Message:  is.Message,
		})
	}
	return o
}

// sortedIssues orders by severity, then file and line.
func sortedIssues(issues []models.Issue) []models.Issue {
	out := append([]models.Issue(nil), issues...)
	sort.SliceStable(out, func(i, j int) bool {
		if wi, wj := out[i].Severity.Weight(), out[j].Severity.Weight(); wi != wj {
			return wi > wj
		}
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		return out[i].Line < out[j].Line
	})
	return out
}

func printScanTable(w io.Writer, r *agent.ScanReport) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("=== %s/%s @ %s ===", r.Owner, r.Repo, shortCommit(r.Commit))))
	counts := map[models.Severity]int{}
	for _, is := range sortedIssues(r.Issues) {
		counts[is.Severity]++
		sev := string(is.Severity)
		fmt.Fprintf(w, "%-10s %s:%d  %s\n", severityStyle(sev).Render(sev), is.FilePath, is.Line, is.Message)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Files: %d  Issues: %d  (%.1fs)\n", r.Files, len(r.Issues), r.Duration.Seconds())
	fmt.Fprintf(w, "Critical: %d  High: %d  Medium: %d  Low: %d  Info: %d\n",
		counts[models.SeverityCritical], counts[models.SeverityHigh], counts[models.SeverityMedium],
		counts[models.SeverityLow], counts[models.SeverityInfo])
	for _, f := range r.FailedFiles {
		fmt.Fprintln(w, warnStyle.Render("analysis failed: "+f))
	}
}

func shortCommit(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
