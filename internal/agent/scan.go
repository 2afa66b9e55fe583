package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/protocolzero/codepolice/internal/analysis"
	"github.com/protocolzero/codepolice/internal/batch"
	"github.com/protocolzero/codepolice/internal/repository"
	"github.com/protocolzero/codepolice/models"
)

// Cloner checks out a repository locally. *repository.CloneManager
// satisfies it.
type Cloner interface {
	Clone(ctx context.Context, repoURL, token, branch, commit string) (*repository.CloneResult, error)
	Cleanup(result *repository.CloneResult)
}

// FileAnalyzer detects issues in files. *analysis.Analyzer satisfies it.
type FileAnalyzer interface {
	AnalyzeFiles(ctx context.Context, files []analysis.FileInput) ([]models.Issue, []batch.Failure)
}

// ScanRequest names a repository to scan. Commit pins the checkout; an empty
// Commit scans the branch head. A nil Paths scans every text file, otherwise
// only the listed repo-relative paths are analyzed.
type ScanRequest struct {
	RepoURL string
	Branch  string
	Commit  string
	Token   string
	Paths   []string
}

// ScanReport is the outcome of one repository scan.
type ScanReport struct {
	Provider    string
	Host        string
	Owner       string
	Repo        string
	Branch      string
	Commit      string
	Files       int
	Issues      []models.Issue
	FailedFiles []string
	Duration    time.Duration
}

// AutoFixInput turns the report into a pipeline trigger.
func (r *ScanReport) AutoFixInput(token, runID string) models.AutoFixInput {
	return models.AutoFixInput{
		SourceControlToken: token,
		Provider:           r.Provider,
		Host:               r.Host,
		Owner:              r.Owner,
		Repo:               r.Repo,
		Branch:             r.Branch,
		CommitSHA:          r.Commit,
		Issues:             r.Issues,
		AnalysisRunID:      runID,
	}
}

// RepoScanner clones a repository and runs the analyzer over its files.
type RepoScanner struct {
	cloner   Cloner
	analyzer FileAnalyzer
}

// NewRepoScanner creates a RepoScanner.
func NewRepoScanner(cloner Cloner, analyzer FileAnalyzer) *RepoScanner {
	return &RepoScanner{cloner: cloner, analyzer: analyzer}
}

// Scan clones req.RepoURL, analyzes the requested text files and removes the
// clone. Files the analyzer fails on are listed in FailedFiles.
func (s *RepoScanner) Scan(ctx context.Context, req ScanRequest) (*ScanReport, error) {
	started := time.Now()
	provider, err := repository.DetectProvider(req.RepoURL)
	if err != nil {
		return nil, err
	}

	clone, err := s.cloner.Clone(ctx, req.RepoURL, req.Token, req.Branch, req.Commit)
	if err != nil {
		return nil, err
	}
	defer s.cloner.Cleanup(clone)

	sources, err := repository.ReadSourceFiles(clone.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", clone.Owner, clone.Repo, err)
	}
	inputs := make([]analysis.FileInput, 0, len(sources))
	for _, f := range selectFiles(sources, req.Paths) {
		inputs = append(inputs, analysis.FileInput{Path: f.Path, Content: f.Content})
	}

	issues, failures := s.analyzer.AnalyzeFiles(ctx, inputs)
	report := &ScanReport{
		Provider: provider,
		Host:     repository.HostFromURL(req.RepoURL),
		Owner:    clone.Owner,
		Repo:     clone.Repo,
		Branch:   clone.Branch,
		Commit:   clone.Commit,
		Files:    len(inputs),
		Issues:   issues,
		Duration: time.Since(started),
	}
	for _, f := range failures {
		report.FailedFiles = append(report.FailedFiles, inputs[f.Index].Path)
	}

	slog.Info("Scan complete",
		"repo", clone.Owner+"/"+clone.Repo,
		"commit", shortSHA(clone.Commit),
		"files", report.Files,
		"issues", len(issues),
		"failed_files", len(report.FailedFiles),
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

// selectFiles keeps the sources named in paths. A nil paths keeps them all.
func selectFiles(sources []repository.SourceFile, paths []string) []repository.SourceFile {
	if paths == nil {
		return sources
	}
	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[p] = true
	}
	var out []repository.SourceFile
	for _, f := range sources {
		if wanted[f.Path] {
			out = append(out, f)
		}
	}
	return out
}
