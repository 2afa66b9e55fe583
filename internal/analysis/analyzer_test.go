package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocolzero/codepolice/internal/ai"
	"github.com/protocolzero/codepolice/models"
)

type countingOracle struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
}

func (o *countingOracle) Name() string                       { return "counting" }
func (o *countingOracle) IsAvailable(_ context.Context) bool { return true }

func (o *countingOracle) Complete(_ context.Context, _ ai.CompletionRequest) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	return o.reply, o.err
}

const oneIssueReply = "```json\n" + `{"issues": [
  {"line": 2, "endLine": 2, "severity": "HIGH", "category": "Security", "message": "SQL built by concatenation", "suggestedFix": "Use a parameterized query"},
  {"line": 99, "severity": "low", "message": "out of range"},
  {"line": 1, "severity": "low", "message": ""}
]}` + "\n```"

const queryFile = "package db\nq := \"SELECT * FROM users WHERE id=\" + id\n"

func TestAnalyzeFileCachesIdenticalContent(t *testing.T) {
	ctx := context.Background()
	oracle := &countingOracle{reply: oneIssueReply}
	a := NewAnalyzer(oracle, NewCache(CacheOptions{}, nil), AnalyzerOptions{})

	first, err := a.AnalyzeFile(ctx, FileInput{Path: "db/query.go", Content: queryFile})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, models.SeverityHigh, first[0].Severity)
	assert.Equal(t, "security", first[0].Category)
	assert.Equal(t, "db/query.go", first[0].FilePath)
	assert.NotEmpty(t, first[0].ID)

	second, err := a.AnalyzeFile(ctx, FileInput{Path: "db/query.go", Content: queryFile})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, oracle.calls, "second analysis should be served from cache")

	_, err = a.AnalyzeFile(ctx, FileInput{Path: "db/query.go", Content: queryFile + " "})
	require.NoError(t, err)
	assert.Equal(t, 2, oracle.calls, "a one-character change must miss the cache")
}

func TestAnalyzeFileReassignsIDsForOtherPaths(t *testing.T) {
	ctx := context.Background()
	oracle := &countingOracle{reply: oneIssueReply}
	a := NewAnalyzer(oracle, NewCache(CacheOptions{}, nil), AnalyzerOptions{})

	first, err := a.AnalyzeFile(ctx, FileInput{Path: "a.go", Content: queryFile})
	require.NoError(t, err)
	copyOf, err := a.AnalyzeFile(ctx, FileInput{Path: "b.go", Content: queryFile})
	require.NoError(t, err)

	require.Len(t, copyOf, 1)
	assert.Equal(t, 1, oracle.calls)
	assert.Equal(t, "b.go", copyOf[0].FilePath)
	assert.NotEqual(t, first[0].ID, copyOf[0].ID)
}

func TestAnalyzeFileErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	oracle := &countingOracle{err: errors.New("boom")}
	a := NewAnalyzer(oracle, NewCache(CacheOptions{}, nil), AnalyzerOptions{})

	_, err := a.AnalyzeFile(ctx, FileInput{Path: "a.go", Content: queryFile})
	require.Error(t, err)
	assert.Equal(t, 0, a.Cache().Stats().Size)
}

func TestAnalyzeFilesIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	oracle := &countingOracle{reply: `not json at all`}
	a := NewAnalyzer(oracle, NewCache(CacheOptions{}, nil), AnalyzerOptions{Concurrency: 2})

	issues, failures := a.AnalyzeFiles(ctx, []FileInput{
		{Path: "a.go", Content: "package a\n"},
		{Path: "b.go", Content: "package b\n"},
	})
	assert.Empty(t, issues)
	assert.Len(t, failures, 2)
}

func TestLoadRuleSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - id: no-console-log
    description: Do not leave console.log calls in production code
    severity: LOW
  - id: require-timeouts
    description: HTTP clients must set a timeout
`), 0o600))

	rs, err := LoadRuleSet(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"no-console-log: Do not leave console.log calls in production code (low)",
		"require-timeouts: HTTP clients must set a timeout",
	}, rs.Strings())

	empty, err := LoadRuleSet("")
	require.NoError(t, err)
	assert.Empty(t, empty.Strings())

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules:\n  - id: x\n    severity: urgent\n"), 0o600))
	_, err = LoadRuleSet(bad)
	assert.Error(t, err)
}
