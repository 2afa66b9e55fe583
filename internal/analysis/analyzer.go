package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/protocolzero/codepolice/internal/ai"
	"github.com/protocolzero/codepolice/internal/batch"
	"github.com/protocolzero/codepolice/internal/fixgen"
	"github.com/protocolzero/codepolice/models"
)

// DefaultModelVersion tags cache keys; bump it when the analysis prompt or
// model changes so stale results stop matching.
const DefaultModelVersion = "codepolice-analysis-v1"

// FileInput is one file to analyze.
type FileInput struct {
	Path     string
	Content  string
	Language string
}

// AnalyzerOptions configures an Analyzer. Zero values use the defaults.
type AnalyzerOptions struct {
	ModelVersion string
	Rules        []string
	Concurrency  int
	Timeout      time.Duration
}

// Analyzer detects issues in files with the model, through the cache.
type Analyzer struct {
	provider     ai.Provider
	cache        *Cache
	rules        []string
	modelVersion string
	width        int
	timeout      time.Duration
}

// NewAnalyzer returns an Analyzer. cache must not be nil.
func NewAnalyzer(provider ai.Provider, cache *Cache, opts AnalyzerOptions) *Analyzer {
	a := &Analyzer{
		provider:     provider,
		cache:        cache,
		rules:        opts.Rules,
		modelVersion: opts.ModelVersion,
		width:        opts.Concurrency,
		timeout:      opts.Timeout,
	}
	if a.modelVersion == "" {
		a.modelVersion = DefaultModelVersion
	}
	if a.width <= 0 {
		a.width = batch.DefaultWidth
	}
	if a.timeout <= 0 {
		a.timeout = 60 * time.Second
	}
	return a
}

// AnalyzeFile returns the issues found in f. A cached analysis of identical
// content, language and rules is returned without calling the model.
func (a *Analyzer) AnalyzeFile(ctx context.Context, f FileInput) ([]models.Issue, error) {
	lang := f.Language
	if lang == "" {
		lang = fixgen.DetectLanguage(f.Path)
	}
	key := CacheKey(f.Content, lang, a.rules, a.modelVersion)

	if e, ok := a.cache.Get(ctx, key); ok {
		slog.Debug("Analysis cache hit", "file", f.Path, "issues", len(e.Issues))
		return forPath(e.Issues, f.Path), nil
	}

	issues, err := a.analyze(ctx, f, lang)
	if err != nil {
		return nil, err
	}
	a.cache.Set(ctx, &Entry{Key: key, Issues: issues, ModelVersion: a.modelVersion})
	return forPath(issues, f.Path), nil
}

// AnalyzeFiles analyzes files in batch windows. Files that fail are reported
// with their index and do not affect the others.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, files []FileInput) ([]models.Issue, []batch.Failure) {
	res := batch.Run(ctx, files, a.width, a.AnalyzeFile)
	var all []models.Issue
	for _, issues := range res.Values {
		all = append(all, issues...)
	}
	for _, f := range res.Failures {
		slog.Warn("File analysis failed", "file", files[f.Index].Path, "error", f.Err)
	}
	return all, res.Failures
}

// Cache exposes the analyzer's cache for stats and maintenance.
func (a *Analyzer) Cache() *Cache { return a.cache }

type rawIssue struct {
	Line         int    `json:"line"`
	EndLine      int    `json:"endLine"`
	Severity     string `json:"severity"`
	Category     string `json:"category"`
	Message      string `json:"message"`
	Explanation  string `json:"explanation"`
	SuggestedFix string `json:"suggestedFix"`
	CodeSnippet  string `json:"codeSnippet"`
}

func (a *Analyzer) analyze(ctx context.Context, f FileInput, lang string) ([]models.Issue, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.provider.Complete(callCtx, ai.CompletionRequest{
		System:      "You are Code Police, a meticulous code reviewer. You reply with a single JSON object and nothing else.",
		Prompt:      analysisPrompt(f.Path, lang, f.Content, a.rules),
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", f.Path, err)
	}

	var parsed struct {
		Issues []rawIssue `json:"issues"`
	}
	if _, err := ai.DecodeJSONObject(reply, &parsed); err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", f.Path, err)
	}

	totalLines := strings.Count(strings.TrimSuffix(f.Content, "\n"), "\n") + 1
	issues := make([]models.Issue, 0, len(parsed.Issues))
	for _, r := range parsed.Issues {
		if strings.TrimSpace(r.Message) == "" || r.Line < 1 || r.Line > totalLines {
			continue
		}
		end := r.EndLine
		if end < r.Line {
			end = 0
		}
		issues = append(issues, models.Issue{
			ID:           uuid.NewString(),
			FilePath:     f.Path,
			Line:         r.Line,
			EndLine:      min(end, totalLines),
			Severity:     models.ParseSeverity(r.Severity),
			Category:     strings.ToLower(strings.TrimSpace(r.Category)),
			Message:      strings.TrimSpace(r.Message),
			Explanation:  r.Explanation,
			SuggestedFix: r.SuggestedFix,
			CodeSnippet:  r.CodeSnippet,
		})
	}
	slog.Info("Analyzed file", "file", f.Path, "language", lang, "issues", len(issues))
	return issues, nil
}

// forPath copies cached issues for path. Identical content cached under a
// different path gets fresh ids so ids stay unique per file.
func forPath(cached []models.Issue, path string) []models.Issue {
	out := make([]models.Issue, len(cached))
	for i, is := range cached {
		if is.FilePath != path {
			is.ID = uuid.NewString()
			is.FilePath = path
		}
		out[i] = is
	}
	return out
}

func analysisPrompt(path, lang, content string, rules []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review this %s file for security vulnerabilities, bugs, performance problems and style issues.\n\n", lang)
	fmt.Fprintf(&b, "FILE: %s\n```\n%s```\n\n", path, fixgen.NumberLines(content))
	if len(rules) > 0 {
		b.WriteString("Also enforce these project rules:\n")
		for _, r := range rules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}
	b.WriteString(`Line numbers refer to the numbered lines above. Respond ONLY with JSON:
{
  "issues": [
    {
      "line": <first line>,
      "endLine": <last line>,
      "severity": "critical" | "high" | "medium" | "low" | "info",
      "category": "security" | "bug" | "performance" | "style",
      "message": "<one sentence>",
      "explanation": "<why it matters>",
      "suggestedFix": "<how to fix, one sentence>",
      "codeSnippet": "<offending code>"
    }
  ]
}
Return {"issues": []} when the file is clean.
`)
	return b.String()
}
