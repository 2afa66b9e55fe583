package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/protocolzero/codepolice/internal/batch"
	"github.com/protocolzero/codepolice/internal/config"
	"github.com/protocolzero/codepolice/internal/fixgen"
	"github.com/protocolzero/codepolice/internal/notify"
	"github.com/protocolzero/codepolice/internal/patch"
	"github.com/protocolzero/codepolice/internal/repository"
	"github.com/protocolzero/codepolice/models"
)

// SourceControlFactory builds the remote client for one trigger.
type SourceControlFactory func(provider, host, token string) (repository.SourceControl, error)

// Notifier receives pipeline notifications. *notify.Dispatcher satisfies it.
type Notifier interface {
	Notify(ctx context.Context, evt notify.Event)
}

// AutoFixDeps are the collaborators of an AutoFixer. Recorder, Notifier and
// Guard are optional.
type AutoFixDeps struct {
	SourceControl SourceControlFactory
	Fixer         *fixgen.Client
	Recorder      RunRecorder
	Notifier      Notifier
	Guard         *TriggerGuard
}

// AutoFixer is the pipeline coordinator: it filters issues, fetches each
// affected file at the trigger commit, generates and applies fixes, and
// publishes the changed files as one pull request.
type AutoFixer struct {
	cfg  config.AutoFixConfig
	deps AutoFixDeps
}

// NewAutoFixer creates an AutoFixer. A nil Guard gets one with the
// configured window.
func NewAutoFixer(cfg config.AutoFixConfig, deps AutoFixDeps) *AutoFixer {
	if deps.Guard == nil {
		deps.Guard = NewTriggerGuard(cfg.DedupWindow)
	}
	if deps.SourceControl == nil {
		deps.SourceControl = func(provider, host, token string) (repository.SourceControl, error) {
			return repository.New(provider, host, token, repository.WithTimeout(cfg.APITimeout))
		}
	}
	return &AutoFixer{cfg: cfg, deps: deps}
}

// Guard exposes the trigger guard so callers can prune it on a schedule.
func (a *AutoFixer) Guard() *TriggerGuard { return a.deps.Guard }

// RunOnce runs the pipeline unless the same project and commit was
// triggered within the dedup window. skipped reports a suppressed duplicate;
// the result is then zero. An empty projectID falls back to owner/repo.
func (a *AutoFixer) RunOnce(ctx context.Context, projectID string, in models.AutoFixInput) (res models.AutoFixResult, skipped bool) {
	project, commit := in.DedupKey()
	if projectID != "" {
		project = projectID
	}
	if !a.deps.Guard.Acquire(project, commit) {
		slog.Info("Duplicate auto-fix trigger skipped",
			"project", project,
			"commit", commit,
		)
		return models.AutoFixResult{}, true
	}

	return a.RunAndReport(ctx, project, in), false
}

// RunAndReport runs the pipeline without consulting the guard, then records
// and announces the outcome best-effort. Callers that acquire the guard
// themselves use it.
func (a *AutoFixer) RunAndReport(ctx context.Context, project string, in models.AutoFixInput) models.AutoFixResult {
	res := a.Run(ctx, in)
	a.report(ctx, project, in, res)
	return res
}

// fileJob is the per-file unit of work.
type fileJob struct {
	path   string
	issues []models.Issue
}

// fileOutcome is what one file contributed.
type fileOutcome struct {
	path       string
	newContent string
	changed    bool
	fixes      []models.Fix
	applied    int
	failed     int
}

// fetchError marks a per-file failure that happened before any fixes were
// generated.
type fetchError struct{ err error }

func (e *fetchError) Error() string { return e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// Run executes the pipeline for one trigger without the dedup guard. One
// file's failure never stops the others; it is reported in Errors as
// "path: message".
func (a *AutoFixer) Run(ctx context.Context, in models.AutoFixInput) models.AutoFixResult {
	filter := in.SeverityFilter
	if len(filter) == 0 {
		filter = a.cfg.SeverityFilter
	}
	severities := models.ParseSeverities(filter)
	if len(severities) == 0 {
		severities = models.DefaultSeverityFilter
	}
	issues := models.FilterBySeverity(in.Issues, severities)

	slog.Info("Auto-fix run started",
		"owner", in.Owner,
		"repo", in.Repo,
		"commit", shortSHA(in.CommitSHA),
		"issues", len(in.Issues),
		"eligible", len(issues),
	)
	if len(issues) == 0 {
		return models.AutoFixResult{Error: "No issues match the severity filter"}
	}

	sc, err := a.deps.SourceControl(in.Provider, in.Host, in.SourceControlToken)
	if err != nil {
		return models.AutoFixResult{Error: fmt.Sprintf("connecting to source control: %v", err)}
	}

	jobs := groupJobs(issues)
	results := batch.Run(ctx, jobs, a.cfg.Concurrency, func(ctx context.Context, job fileJob) (fileOutcome, error) {
		return a.processFile(ctx, sc, in, job)
	})

	var (
		res       models.AutoFixResult
		changes   = make(map[string]string)
		allFixes  []models.Fix
		fetchErrs int
		applied   int
		failed    int
	)
	for _, out := range results.Values {
		res.FixesGenerated += len(out.fixes)
		applied += out.applied
		failed += out.failed
		allFixes = append(allFixes, out.fixes...)
		if out.changed {
			changes[out.path] = out.newContent
		}
	}
	for _, f := range results.Failures {
		var fe *fetchError
		if errors.As(f.Err, &fe) {
			fetchErrs++
		}
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", jobs[f.Index].path, f.Err))
	}
	res.FilesChanged = len(changes)
	slog.Info("Fixes computed",
		"files", len(jobs),
		"files_changed", res.FilesChanged,
		"fixes", res.FixesGenerated,
		"applied", applied,
		"failed_to_apply", failed,
		"file_errors", len(res.Errors),
	)

	if len(changes) == 0 {
		_, msg := diagnoseNoChanges(len(jobs), fetchErrs, len(results.Failures), res.FixesGenerated)
		res.Error = msg
		slog.Warn("Auto-fix produced no changes", "reason", msg, "errors", len(res.Errors))
		return res
	}

	pr := NewPRAgent(sc, a.cfg.BranchPrefix).CreatePR(ctx, PRRequest{
		Owner:      in.Owner,
		Repo:       in.Repo,
		BaseBranch: in.Branch,
		CommitSHA:  in.CommitSHA,
		Changes:    changes,
		Fixes:      fixesFor(allFixes, changes),
		Issues:     issues,
	})
	res.Success = pr.Success
	res.PRNumber = pr.PRNumber
	res.PRURL = pr.PRURL
	res.BranchName = pr.BranchName
	res.Error = pr.Error
	return res
}

func (a *AutoFixer) processFile(ctx context.Context, sc repository.SourceControl, in models.AutoFixInput, job fileJob) (fileOutcome, error) {
	file, err := sc.GetFile(ctx, in.Owner, in.Repo, job.path, in.CommitSHA)
	if err != nil {
		return fileOutcome{}, &fetchError{err: err}
	}

	gen := a.deps.Fixer.GenerateFixes(ctx, fixgen.Request{
		FileContent: file.Content,
		FilePath:    job.path,
		Language:    fixgen.DetectLanguage(job.path),
		Issues:      job.issues,
	})
	for _, o := range patch.Overlaps(gen.Fixes) {
		slog.Warn("Overlapping fixes; applying bottom-up anyway",
			"file", job.path,
			"first", o.First.IssueID,
			"first_lines", fmt.Sprintf("%d-%d", o.First.StartLine, o.First.EndLine),
			"second", o.Second.IssueID,
			"second_lines", fmt.Sprintf("%d-%d", o.Second.StartLine, o.Second.EndLine),
		)
	}

	applied := patch.ApplyMultipleFixes(job.path, file.Content, gen.Fixes)
	slog.Info("Processed file",
		"file", job.path,
		"issues", len(job.issues),
		"fixes", len(gen.Fixes),
		"source", gen.Source,
		"attempts", gen.Attempts,
		"applied", applied.AppliedFixCount,
		"failed", len(applied.FailedFixes),
	)
	return fileOutcome{
		path:       job.path,
		newContent: applied.NewContent,
		changed:    applied.NewContent != file.Content,
		fixes:      gen.Fixes,
		applied:    applied.AppliedFixCount,
		failed:     len(applied.FailedFixes),
	}, nil
}

func (a *AutoFixer) report(ctx context.Context, project string, in models.AutoFixInput, res models.AutoFixResult) {
	if a.deps.Recorder != nil && in.AnalysisRunID != "" {
		BestEffort(ctx, "record analysis run", func(ctx context.Context) error {
			return a.deps.Recorder.RecordAutoFix(ctx, in.AnalysisRunID, project, in.CommitSHA, res)
		})
	}
	if a.deps.Notifier == nil {
		return
	}
	evt := notify.Event{
		RepoKey:  in.Owner + "/" + in.Repo,
		Severity: string(highestSeverity(in.Issues)),
		Metadata: map[string]any{
			"commit":          shortSHA(in.CommitSHA),
			"fixes_generated": res.FixesGenerated,
			"files_changed":   res.FilesChanged,
		},
	}
	if res.Success {
		evt.Type = notify.EventPROpened
		evt.Title = fmt.Sprintf("Code Police opened #%d on %s", res.PRNumber, evt.RepoKey)
		evt.Body = fmt.Sprintf("%d fix(es) across %d file(s).", res.FixesGenerated, res.FilesChanged)
		evt.URL = res.PRURL
	} else {
		evt.Type = notify.EventAutoFixFailed
		evt.Title = "Code Police auto-fix failed on " + evt.RepoKey
		evt.Body = res.Error
		if len(res.Errors) > 0 {
			evt.Body += "\n" + strings.Join(res.Errors, "\n")
		}
	}
	BestEffort(ctx, "notify "+evt.Type, func(ctx context.Context) error {
		a.deps.Notifier.Notify(ctx, evt)
		return nil
	})
}

// groupJobs buckets issues by file in path order.
func groupJobs(issues []models.Issue) []fileJob {
	byFile := models.GroupIssuesByFile(issues)
	jobs := make([]fileJob, 0, len(byFile))
	for path, is := range byFile {
		jobs = append(jobs, fileJob{path: path, issues: is})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].path < jobs[j].path })
	return jobs
}

// fixesFor keeps fixes whose file is part of the change set.
func fixesFor(fixes []models.Fix, changes map[string]string) []models.Fix {
	out := make([]models.Fix, 0, len(fixes))
	for _, f := range fixes {
		if _, ok := changes[f.FilePath]; ok {
			out = append(out, f)
		}
	}
	return out
}

func highestSeverity(issues []models.Issue) models.Severity {
	var best models.Severity
	for _, is := range issues {
		s := models.ParseSeverity(string(is.Severity))
		if best == "" || s.Weight() > best.Weight() {
			best = s
		}
	}
	return best
}
