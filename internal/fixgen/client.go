// Package fixgen turns detected issues into concrete line-anchored fixes by
// asking a code-fix model, validating its reply, and synthesizing annotation
// fixes for anything the model did not cover.
package fixgen

import (
	"context"
	"log/slog"
	"time"

	"github.com/protocolzero/codepolice/internal/ai"
	"github.com/protocolzero/codepolice/models"
)

const (
	defaultAttempts = 3
	defaultTimeout  = 60 * time.Second

	preciseTemperature = 0.1
	retryTemperature   = 0.4
	fixMaxTokens       = 8192
)

// Source says where the fixes in a Result came from.
type Source string

const (
	SourceNone     Source = ""
	SourceOracle   Source = "oracle"
	SourceFallback Source = "fallback"
	SourceMixed    Source = "mixed"
)

// Request is one file and the issues to fix in it.
type Request struct {
	FileContent string
	FilePath    string
	Language    string
	Issues      []models.Issue
}

// Result holds every fix produced for a Request.
type Result struct {
	Fixes []models.Fix
	// Attempts is the number of model calls made.
	Attempts int
	// Synthesized counts fixes produced by fallback annotation.
	Synthesized int
	Source      Source
}

// Options tunes a Client. Zero values use the defaults.
type Options struct {
	Attempts int
	Timeout  time.Duration
}

// Client is the code-fix oracle client.
type Client struct {
	provider ai.Provider
	attempts int
	timeout  time.Duration
}

// NewClient returns a Client calling provider.
func NewClient(provider ai.Provider, opts Options) *Client {
	c := &Client{provider: provider, attempts: opts.Attempts, timeout: opts.Timeout}
	if c.attempts <= 0 {
		c.attempts = defaultAttempts
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	return c
}

// GenerateFixes returns fixes for req.Issues. It does not fail: when the
// model returns nothing usable after every attempt, or cannot be reached,
// each uncovered issue gets a synthesized annotation fix. An empty issue
// list returns an empty Result without calling the model.
func (c *Client) GenerateFixes(ctx context.Context, req Request) Result {
	if len(req.Issues) == 0 {
		return Result{}
	}
	if req.Language == "" {
		req.Language = DetectLanguage(req.FilePath)
	}

	res := Result{}
	numbered := NumberLines(req.FileContent)

	for attempt := 1; attempt <= c.attempts; attempt++ {
		res.Attempts = attempt
		fixes, err := c.attempt(ctx, req, numbered, attempt)
		if err != nil {
			slog.Warn("Fix oracle call failed; falling back to annotations",
				"file", req.FilePath,
				"attempt", attempt,
				"error", err,
			)
			break
		}
		if len(fixes) > 0 {
			res.Fixes = fixes
			res.Source = SourceOracle
			break
		}
		slog.Debug("Fix oracle returned zero usable fixes",
			"file", req.FilePath,
			"attempt", attempt,
			"max_attempts", c.attempts,
		)
	}

	missing := uncovered(req.Issues, res.Fixes)
	if len(missing) == 0 {
		return res
	}

	synth := Synthesize(req.FileContent, req.FilePath, req.Language, missing)
	res.Fixes = append(res.Fixes, synth...)
	res.Synthesized = len(synth)
	if res.Source == SourceOracle {
		res.Source = SourceMixed
	} else {
		res.Source = SourceFallback
	}
	slog.Info("Synthesized annotation fixes",
		"file", req.FilePath,
		"issues", len(req.Issues),
		"synthesized", len(synth),
		"source", res.Source,
	)
	return res
}

// attempt makes one model call. A transport error is returned; an empty or
// malformed reply yields zero fixes and no error so the caller retries.
func (c *Client) attempt(ctx context.Context, req Request, numbered string, n int) ([]models.Fix, error) {
	temperature := preciseTemperature
	if n > 1 {
		temperature = retryTemperature
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.provider.Complete(callCtx, ai.CompletionRequest{
		System:      systemPrompt,
		Prompt:      buildPrompt(req, numbered, n),
		Temperature: temperature,
		MaxTokens:   fixMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	switch r := ParseResponse(reply).(type) {
	case Valid:
		fixes, dropped := normalize(r.Fixes, req.Issues, req.FilePath)
		if dropped > 0 || r.Skipped > 0 {
			slog.Debug("Dropped unusable oracle fixes",
				"file", req.FilePath,
				"dropped", dropped,
				"undecodable", r.Skipped,
			)
		}
		return fixes, nil
	case Malformed:
		slog.Warn("Malformed fix oracle reply",
			"file", req.FilePath,
			"attempt", n,
			"reason", r.Reason,
			"reply_chars", len(r.Raw),
		)
		return nil, nil
	default:
		return nil, nil
	}
}

// uncovered returns the issues that no fix references.
func uncovered(issues []models.Issue, fixes []models.Fix) []models.Issue {
	covered := make(map[string]bool, len(fixes))
	for _, f := range fixes {
		covered[f.IssueID] = true
	}
	var out []models.Issue
	for _, is := range issues {
		if !covered[is.ID] {
			out = append(out, is)
		}
	}
	return out
}
