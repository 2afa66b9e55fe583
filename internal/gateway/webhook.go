package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/google/go-github/v68/github"
	"github.com/google/uuid"

	"github.com/protocolzero/codepolice/internal/agent"
	"github.com/protocolzero/codepolice/internal/repository"
	"github.com/protocolzero/codepolice/models"
)

var errNoWebhookSecret = errors.New("no GitHub webhook secret configured")

// handleGitHubWebhook accepts GitHub push deliveries. A valid branch push
// is acknowledged with 202 and scanned and fixed in the background; the
// dedup guard is consulted before any work starts so redeliveries are cheap.
func (gw *Gateway) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	if err := gw.verifyGitHubSignature(r.Header.Get(github.SHA256SignatureHeader), payload); err != nil {
		slog.Warn("gateway: rejected webhook delivery",
			"delivery", github.DeliveryID(r),
			"error", err,
		)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch e := event.(type) {
	case *github.PingEvent:
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
	case *github.PushEvent:
		gw.handlePush(w, e)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "event": github.WebHookType(r)})
	}
}

func (gw *Gateway) handlePush(w http.ResponseWriter, e *github.PushEvent) {
	branch, isBranch := strings.CutPrefix(e.GetRef(), "refs/heads/")
	if !isBranch || e.GetDeleted() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "not a branch update"})
		return
	}
	repo := e.GetRepo()
	project := repo.GetFullName()
	commit := e.GetAfter()
	if project == "" || commit == "" || repo.GetCloneURL() == "" {
		writeError(w, http.StatusBadRequest, "push event is missing repository or commit")
		return
	}

	paths := changedPaths(e.Commits)
	if paths != nil && len(paths) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "no added or modified files"})
		return
	}
	if gw.scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "repository scanning is not configured")
		return
	}
	if !gw.fixer.Guard().Acquire(project, commit) {
		slog.Info("gateway: duplicate push skipped", "project", project, "commit", commit)
		gw.runSkipped()
		gw.broadcaster.send(SSEEvent{Type: "autofix.skipped", Payload: map[string]any{
			"project": project, "commit": commit,
		}})
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	cloneURL := repo.GetCloneURL()
	host := repository.HostFromURL(cloneURL)
	token := repository.TokenForProvider(gw.cfg, "github", host)
	runID := uuid.NewString()

	gw.runStarted()
	gw.broadcaster.send(SSEEvent{Type: "autofix.started", Payload: map[string]any{
		"project": project, "commit": commit, "source": "webhook", "run_id": runID,
	}})

	gw.running.Add(1)
	go func() {
		defer gw.running.Done()
		req := agent.ScanRequest{RepoURL: cloneURL, Branch: branch, Commit: commit, Token: token, Paths: paths}
		res := gw.scanAndFix(gw.bg, project, req, runID)
		gw.runFinished(res)
		gw.broadcaster.send(SSEEvent{Type: "autofix.completed", Payload: completedPayload(project, commit, res)})
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "run_id": runID})
}

// scanAndFix analyzes the pushed commit and feeds the issues to the
// pipeline. The guard has already been acquired.
func (gw *Gateway) scanAndFix(ctx context.Context, project string, req agent.ScanRequest, runID string) models.AutoFixResult {
	report, err := gw.scanner.Scan(ctx, req)
	if err != nil {
		slog.Error("gateway: scan failed", "project", project, "error", err)
		return models.AutoFixResult{Error: "scan failed: " + err.Error()}
	}
	in := report.AutoFixInput(req.Token, runID)
	in.ProjectID = project
	return gw.fixer.RunAndReport(ctx, project, in)
}

// changedPaths lists the files added or modified by the pushed commits,
// sorted and without duplicates. It returns nil when the delivery carries no
// commit list, which means the whole tree is scanned.
func changedPaths(commits []*github.HeadCommit) []string {
	if len(commits) == 0 {
		return nil
	}
	// Commits arrive oldest first; the last touch of a path wins.
	present := make(map[string]bool)
	for _, c := range commits {
		for _, p := range c.Added {
			present[p] = true
		}
		for _, p := range c.Modified {
			present[p] = true
		}
		for _, p := range c.Removed {
			present[p] = false
		}
	}
	paths := []string{}
	for p, ok := range present {
		if ok {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)
	return paths
}

// verifyGitHubSignature checks sig against every configured webhook secret.
func (gw *Gateway) verifyGitHubSignature(sig string, payload []byte) error {
	var lastErr error = errNoWebhookSecret
	for _, gh := range gw.cfg.Git.GitHub {
		if gh.WebhookSecret == "" {
			continue
		}
		if lastErr = github.ValidateSignature(sig, payload, []byte(gh.WebhookSecret)); lastErr == nil {
			return nil
		}
	}
	return lastErr
}
