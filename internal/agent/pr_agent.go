package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/protocolzero/codepolice/internal/repository"
	"github.com/protocolzero/codepolice/models"
)

// ErrNoChanges is reported when there is nothing to publish.
var ErrNoChanges = errors.New("No file changes to commit")

// PRRequest is one change set to publish.
type PRRequest struct {
	Owner      string
	Repo       string
	BaseBranch string
	// CommitSHA is the commit the fixes were computed against.
	CommitSHA string
	// Changes maps repo-relative paths to their new content.
	Changes map[string]string
	Fixes   []models.Fix
	Issues  []models.Issue
	// Unfixable issues are listed in the PR body for manual follow-up.
	Unfixable []models.Issue
}

// PRAgent publishes a change set as a pull request: branch, one commit per
// file, pull request, labels. Steps run in order and the first failure
// stops the rest. Nothing is rolled back, so a failed run can leave a
// branch behind.
type PRAgent struct {
	sc           repository.SourceControl
	branchPrefix string
	now          func() time.Time
}

// NewPRAgent creates a PRAgent publishing through sc.
func NewPRAgent(sc repository.SourceControl, branchPrefix string) *PRAgent {
	return &PRAgent{sc: sc, branchPrefix: branchPrefix, now: time.Now}
}

// CreatePR publishes req. It never returns an error; failures come back as
// Success=false with a message.
func (a *PRAgent) CreatePR(ctx context.Context, req PRRequest) models.PRCreationResult {
	if len(req.Changes) == 0 {
		return models.PRCreationResult{Error: ErrNoChanges.Error()}
	}

	branch, pr, err := a.publish(ctx, req)
	if err != nil {
		slog.Error("Publishing fixes failed",
			"owner", req.Owner,
			"repo", req.Repo,
			"branch", branch,
			"error", err,
		)
		return models.PRCreationResult{BranchName: branch, Error: err.Error()}
	}

	labels := Labels(req.Issues)
	BestEffort(ctx, "add labels", func(ctx context.Context) error {
		return a.sc.AddLabels(ctx, req.Owner, req.Repo, pr.Number, labels)
	})

	slog.Info("PR created",
		"provider", a.sc.Name(),
		"url", pr.URL,
		"number", pr.Number,
		"files", len(req.Changes),
	)
	return models.PRCreationResult{
		Success:    true,
		PRNumber:   pr.Number,
		PRURL:      pr.URL,
		BranchName: branch,
	}
}

func (a *PRAgent) publish(ctx context.Context, req PRRequest) (string, *models.PullRequest, error) {
	baseSHA, err := a.sc.GetBranchSHA(ctx, req.Owner, req.Repo, req.BaseBranch)
	if err != nil {
		return "", nil, fmt.Errorf("resolving base branch: %w", err)
	}

	commit := req.CommitSHA
	if commit == "" {
		commit = baseSHA
	}
	branch := BranchName(a.branchPrefix, a.now(), commit)
	if err := a.sc.CreateBranch(ctx, req.Owner, req.Repo, branch, baseSHA); err != nil {
		return "", nil, fmt.Errorf("creating branch: %w", err)
	}

	paths := make([]string, 0, len(req.Changes))
	for p := range req.Changes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	// Serial: each commit moves the branch tip the next lookup must see.
	for _, path := range paths {
		var blobSHA string
		current, err := a.sc.GetFile(ctx, req.Owner, req.Repo, path, branch)
		switch {
		case errors.Is(err, repository.ErrFileNotFound):
		case err != nil:
			return branch, nil, fmt.Errorf("reading %s on %s: %w", path, branch, err)
		default:
			blobSHA = current.SHA
		}
		err = a.sc.PutFile(ctx, req.Owner, req.Repo, repository.PutFileOptions{
			Path:    path,
			Content: req.Changes[path],
			Message: CommitMessage(path, req.Fixes),
			Branch:  branch,
			SHA:     blobSHA,
		})
		if err != nil {
			return branch, nil, fmt.Errorf("committing %s: %w", path, err)
		}
		slog.Debug("Committed fix", "path", path, "branch", branch)
	}

	pr, err := a.sc.CreatePullRequest(ctx, req.Owner, req.Repo, repository.CreatePROptions{
		Title:      PRTitle(commit),
		Body:       PRBody(commit, req.Fixes, req.Issues, req.Unfixable),
		HeadBranch: branch,
		BaseBranch: req.BaseBranch,
	})
	if err != nil {
		return branch, nil, fmt.Errorf("creating pull request: %w", err)
	}
	return branch, pr, nil
}
