package fixgen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocolzero/codepolice/internal/ai"
	"github.com/protocolzero/codepolice/models"
)

// fakeOracle replays scripted replies in order; once the script runs out it
// repeats the last entry.
type fakeOracle struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []ai.CompletionRequest
}

func (f *fakeOracle) Name() string                       { return "fake" }
func (f *fakeOracle) IsAvailable(_ context.Context) bool { return true }

func (f *fakeOracle) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	var reply string
	var err error
	if len(f.replies) > 0 {
		reply = f.replies[min(i, len(f.replies)-1)]
	}
	if len(f.errs) > 0 {
		err = f.errs[min(i, len(f.errs)-1)]
	}
	return reply, err
}

const sampleFile = `package main

import "fmt"

func main() {
	password := "hunter2"
	fmt.Println(password)
}
`

func sampleIssues() []models.Issue {
	return []models.Issue{
		{ID: "iss-1", FilePath: "main.go", Line: 6, Severity: models.SeverityCritical, Category: "security", Message: "Hardcoded credential"},
		{ID: "iss-2", FilePath: "main.go", Line: 7, Severity: models.SeverityMedium, Category: "logging", Message: "Secret printed to stdout"},
	}
}

func TestGenerateFixes_EmptyIssuesSkipsOracle(t *testing.T) {
	oracle := &fakeOracle{replies: []string{`{"fixes":[]}`}}
	res := NewClient(oracle, Options{}).GenerateFixes(context.Background(), Request{FileContent: sampleFile, FilePath: "main.go"})
	assert.Empty(t, res.Fixes)
	assert.Empty(t, oracle.requests)
}

func TestGenerateFixes_OracleAlwaysFailsFallsBackPerIssue(t *testing.T) {
	oracle := &fakeOracle{errs: []error{errors.New("connection reset")}}
	issues := sampleIssues()

	res := NewClient(oracle, Options{}).GenerateFixes(context.Background(), Request{
		FileContent: sampleFile,
		FilePath:    "main.go",
		Issues:      issues,
	})

	require.Len(t, res.Fixes, len(issues))
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, len(issues), res.Synthesized)
	for i, f := range res.Fixes {
		assert.Equal(t, issues[i].ID, f.IssueID)
		assert.Equal(t, models.ConfidenceMedium, f.Confidence)
		assert.True(t, f.CanAutoApply)
	}
	assert.Contains(t, res.Fixes[0].FixedCode, "// SECURITY: Hardcoded credential")
}

func TestGenerateFixes_RetriesWithUrgentPromptAndHigherTemperature(t *testing.T) {
	oracle := &fakeOracle{replies: []string{
		`{"fixes": []}`,
		`not json at all`,
		`{"fixes": [
			{"issueId": "iss-1", "startLine": 6, "endLine": 6, "fixedCode": "password := os.Getenv(\"APP_PASSWORD\")"},
			{"issueId": "iss-2", "startLine": "7", "fixedCode": "fmt.Println(\"password loaded\")", "confidence": "low", "canAutoApply": false}
		]}`,
	}}

	res := NewClient(oracle, Options{}).GenerateFixes(context.Background(), Request{
		FileContent: sampleFile,
		FilePath:    "main.go",
		Issues:      sampleIssues(),
	})

	require.Len(t, oracle.requests, 3)
	assert.Equal(t, preciseTemperature, oracle.requests[0].Temperature)
	assert.NotContains(t, oracle.requests[0].Prompt, "RETRY")
	for _, r := range oracle.requests[1:] {
		assert.Equal(t, retryTemperature, r.Temperature)
		assert.Contains(t, r.Prompt, "ZERO usable fixes")
	}

	require.Len(t, res.Fixes, 2)
	assert.Equal(t, SourceOracle, res.Source)
	assert.Equal(t, 3, res.Attempts)

	first := res.Fixes[0]
	assert.Equal(t, models.ConfidenceHigh, first.Confidence, "missing confidence defaults to high")
	assert.True(t, first.CanAutoApply, "missing canAutoApply defaults to true")
	assert.Equal(t, "main.go", first.FilePath)

	second := res.Fixes[1]
	assert.Equal(t, 7, second.StartLine, "numeric strings are accepted")
	assert.Equal(t, 7, second.EndLine)
	assert.Equal(t, models.ConfidenceLow, second.Confidence)
	assert.False(t, second.CanAutoApply)
}

func TestGenerateFixes_MissingLinesFallBackToIssue(t *testing.T) {
	oracle := &fakeOracle{replies: []string{"```json\n" + `{"fixes":[{"issueId":"iss-9","fixedCode":"x := 1"}]}` + "\n```"}}
	issue := models.Issue{ID: "iss-9", FilePath: "a.go", Line: 4, EndLine: 6, Category: "bug", Message: "m"}

	res := NewClient(oracle, Options{}).GenerateFixes(context.Background(), Request{
		FileContent: "a\nb\nc\nd\ne\nf\ng\n",
		FilePath:    "a.go",
		Issues:      []models.Issue{issue},
	})
	require.Len(t, res.Fixes, 1)
	assert.Equal(t, 4, res.Fixes[0].StartLine)
	assert.Equal(t, 6, res.Fixes[0].EndLine)
	assert.Len(t, oracle.requests, 1)
}

func TestGenerateFixes_PartialCoverageIsFilled(t *testing.T) {
	oracle := &fakeOracle{replies: []string{`{"fixes":[{"issueId":"iss-1","startLine":6,"endLine":6,"fixedCode":"password := load()"},{"issueId":"unknown","fixedCode":"x"}]}`}}

	res := NewClient(oracle, Options{}).GenerateFixes(context.Background(), Request{
		FileContent: sampleFile,
		FilePath:    "main.go",
		Issues:      sampleIssues(),
	})
	require.Len(t, res.Fixes, 2)
	assert.Equal(t, SourceMixed, res.Source)
	assert.Equal(t, "iss-1", res.Fixes[0].IssueID)
	assert.Equal(t, "iss-2", res.Fixes[1].IssueID)
	assert.Equal(t, 1, res.Synthesized)
}

func TestGenerateFixes_NoProviderUsesFallback(t *testing.T) {
	res := NewClient(&ai.NoopProvider{}, Options{}).GenerateFixes(context.Background(), Request{
		FileContent: sampleFile,
		FilePath:    "main.go",
		Issues:      sampleIssues()[:1],
	})
	require.Len(t, res.Fixes, 1)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, SourceFallback, res.Source)
}

func TestParseResponse(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		malformed bool
		fixes     int
	}{
		{"plain", `{"fixes":[{"issueId":"a","fixedCode":"x"}]}`, false, 1},
		{"fenced with prose", "Sure!\n```json\n{\"fixes\":[]}\n```", false, 0},
		{"trailing comma repaired", `{"fixes":[{"issueId":"a","fixedCode":"x"},]}`, false, 1},
		{"missing fixes", `{"result":"ok"}`, true, 0},
		{"fixes not array", `{"fixes":"none"}`, true, 0},
		{"null fixes", `{"fixes":null}`, true, 0},
		{"empty reply", ``, true, 0},
		{"bad element skipped", `{"fixes":[{"issueId":"a","fixedCode":"x"},{"startLine":"abc"}]}`, false, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			switch r := ParseResponse(tc.raw).(type) {
			case Valid:
				assert.False(t, tc.malformed, "expected Malformed")
				assert.Len(t, r.Fixes, tc.fixes)
			case Malformed:
				assert.True(t, tc.malformed, "unexpected Malformed: %s", r.Reason)
				assert.Equal(t, tc.raw, r.Raw)
			default:
				t.Fatalf("unexpected result type %T", r)
			}
		})
	}
}

func TestNumberLinesPadsConsistently(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("x\n")
	}
	out := strings.Split(strings.TrimSuffix(NumberLines(b.String()), "\n"), "\n")
	require.Len(t, out, 12)
	assert.Equal(t, " 1 | x", out[0])
	assert.Equal(t, "12 | x", out[11])
}
