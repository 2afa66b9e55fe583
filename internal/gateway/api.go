package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/protocolzero/codepolice/internal/repository"
	"github.com/protocolzero/codepolice/models"
)

// buildHandler wires all routes onto a ServeMux.
func buildHandler(gw *Gateway) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /api/status", gw.handleStatus)

	// Auto-fix
	mux.HandleFunc("POST /api/autofix", gw.handleAutoFix)
	mux.HandleFunc("GET /api/runs/{id}", gw.handleGetRun)
	mux.HandleFunc("POST /webhooks/github", gw.handleGitHubWebhook)

	// Analysis cache
	mux.HandleFunc("GET /api/cache/stats", gw.handleCacheStats)
	mux.HandleFunc("POST /api/cache/purge", gw.handleCachePurge)

	// SSE
	mux.HandleFunc("GET /events", gw.handleEvents)

	return mux
}

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (gw *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gw.currentStatus())
}

// handleAutoFix runs the pipeline synchronously and answers with the
// AutoFixResult. A pipeline failure is still a 200; the result carries it.
// A duplicate trigger within the dedup window answers 409.
func (gw *Gateway) handleAutoFix(w http.ResponseWriter, r *http.Request) {
	var in models.AutoFixInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.Owner = strings.TrimSpace(in.Owner)
	in.Repo = strings.TrimSpace(in.Repo)
	in.CommitSHA = strings.TrimSpace(in.CommitSHA)
	if in.Owner == "" || in.Repo == "" || in.CommitSHA == "" {
		writeError(w, http.StatusBadRequest, "owner, repo and commitSha are required")
		return
	}
	if in.SourceControlToken == "" {
		in.SourceControlToken = repository.TokenForProvider(gw.cfg, in.Provider, in.Host)
	}
	if in.SourceControlToken == "" {
		writeError(w, http.StatusBadRequest, "sourceControlToken is required when no token is configured for the provider")
		return
	}

	project, commit := in.DedupKey()
	if !gw.fixer.Guard().Acquire(project, commit) {
		gw.runSkipped()
		gw.broadcaster.send(SSEEvent{Type: "autofix.skipped", Payload: map[string]any{
			"project": project, "commit": commit,
		}})
		writeError(w, http.StatusConflict, fmt.Sprintf("auto-fix for %s at %s already triggered", project, commit))
		return
	}

	gw.runStarted()
	gw.broadcaster.send(SSEEvent{Type: "autofix.started", Payload: map[string]any{
		"project": project, "commit": commit, "source": "api",
	}})
	// The run outlives the request: a client hang-up must not strand a branch.
	res := gw.fixer.RunAndReport(context.WithoutCancel(r.Context()), project, in)
	gw.runFinished(res)
	gw.broadcaster.send(SSEEvent{Type: "autofix.completed", Payload: completedPayload(project, commit, res)})
	writeJSON(w, http.StatusOK, res)
}

func (gw *Gateway) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if gw.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	id := r.PathValue("id")
	rec, err := gw.runs.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (gw *Gateway) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if gw.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis cache is not configured")
		return
	}
	writeJSON(w, http.StatusOK, gw.cache.Stats())
}

func (gw *Gateway) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	if gw.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis cache is not configured")
		return
	}
	expired := gw.cache.PurgeExpired()
	rows, err := gw.cache.PurgeShared(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expired": expired, "shared_rows": rows})
}

// handleEvents streams SSE to the client. Each line is a JSON SSEEvent.
// Clients receive a "connected" event immediately, then live updates.
func (gw *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering if behind a proxy

	ch := gw.broadcaster.subscribe()
	defer gw.broadcaster.unsubscribe(ch)

	connected, _ := json.Marshal(SSEEvent{Type: "connected", Payload: gw.currentStatus()})
	// SSE endpoint writes JSON event frames, not HTML; HTML escaping is not applicable here.
	// nosemgrep: go.lang.security.audit.xss.no-fprintf-to-responsewriter.no-fprintf-to-responsewriter
	fmt.Fprintf(w, "data: %s\n\n", connected)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			// nosemgrep: go.lang.security.audit.xss.no-direct-write-to-responsewriter.no-direct-write-to-responsewriter
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}

func completedPayload(project, commit string, res models.AutoFixResult) map[string]any {
	payload := map[string]any{
		"project":         project,
		"commit":          commit,
		"success":         res.Success,
		"fixes_generated": res.FixesGenerated,
		"files_changed":   res.FilesChanged,
	}
	if res.PRURL != "" {
		payload["pr_url"] = res.PRURL
	}
	if res.Error != "" {
		payload["error"] = res.Error
	}
	return payload
}
