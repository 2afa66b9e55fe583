package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocolzero/codepolice/internal/ai"
	"github.com/protocolzero/codepolice/internal/config"
	"github.com/protocolzero/codepolice/internal/fixgen"
	"github.com/protocolzero/codepolice/internal/notify"
	"github.com/protocolzero/codepolice/internal/repository"
	"github.com/protocolzero/codepolice/models"
)

const threeLineFile = "package x\n\nfunc f() {}\n"

func newTestAutoFixer(sc *fakeSC, deps AutoFixDeps) *AutoFixer {
	deps.SourceControl = func(_, _, _ string) (repository.SourceControl, error) { return sc, nil }
	if deps.Fixer == nil {
		// No model configured: every issue gets a synthesized annotation.
		deps.Fixer = fixgen.NewClient(&ai.NoopProvider{}, fixgen.Options{})
	}
	return NewAutoFixer(config.AutoFixConfig{Concurrency: 2}, deps)
}

func issueAt(id, path string, line int, sev models.Severity) models.Issue {
	return models.Issue{ID: id, FilePath: path, Line: line, Severity: sev, Category: "bug", Message: "Problem " + id}
}

func baseInput(issues ...models.Issue) models.AutoFixInput {
	return models.AutoFixInput{
		SourceControlToken: "tok",
		Owner:              "acme",
		Repo:               "api",
		Branch:             "main",
		CommitSHA:          "feedfacecafe",
		AnalysisRunID:      "run-1",
		Issues:             issues,
	}
}

func TestRunIsolatesPerFileFailures(t *testing.T) {
	sc := newFakeSC(map[string]string{
		"one.go":   threeLineFile,
		"two.go":   threeLineFile,
		"three.go": threeLineFile,
	})
	sc.fetchErrs["two.go"] = errors.New("502 bad gateway")
	a := newTestAutoFixer(sc, AutoFixDeps{})

	res := a.Run(context.Background(), baseInput(
		issueAt("a", "one.go", 3, models.SeverityHigh),
		issueAt("b", "two.go", 3, models.SeverityHigh),
		issueAt("c", "three.go", 3, models.SeverityHigh),
	))

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.FilesChanged)
	assert.Equal(t, 2, res.FixesGenerated)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "two.go: "), res.Errors[0])

	var committed []string
	for _, p := range sc.puts {
		committed = append(committed, p.Path)
		assert.Contains(t, p.Content, "// BUG: Problem")
	}
	assert.Equal(t, []string{"one.go", "three.go"}, committed)
}

func TestRunAppliesSeverityFilter(t *testing.T) {
	sc := newFakeSC(map[string]string{"one.go": threeLineFile})
	a := newTestAutoFixer(sc, AutoFixDeps{})

	res := a.Run(context.Background(), baseInput(issueAt("a", "one.go", 3, models.SeverityLow)))
	assert.False(t, res.Success)
	assert.Equal(t, "No issues match the severity filter", res.Error)
	assert.Zero(t, sc.totalCalls())

	in := baseInput(issueAt("a", "one.go", 3, models.SeverityLow))
	in.SeverityFilter = []string{"low"}
	res = a.Run(context.Background(), in)
	assert.True(t, res.Success, res.Error)
}

func TestRunDiagnosesAllFetchFailures(t *testing.T) {
	sc := newFakeSC(nil)
	a := newTestAutoFixer(sc, AutoFixDeps{})

	res := a.Run(context.Background(), baseInput(
		issueAt("a", "gone.go", 1, models.SeverityHigh),
		issueAt("b", "also-gone.go", 1, models.SeverityHigh),
	))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "All 2 file(s) failed to fetch")
	assert.Len(t, res.Errors, 2)
	assert.Zero(t, sc.calls["CreateBranch"])
}

func TestRunDiagnosesUnchangedFixes(t *testing.T) {
	sc := newFakeSC(map[string]string{"one.go": threeLineFile})
	oracle := &scriptedOracle{reply: `{"fixes":[{"issueId":"a","startLine":3,"endLine":3,"fixedCode":"func f() {}"}]}`}
	a := newTestAutoFixer(sc, AutoFixDeps{Fixer: fixgen.NewClient(oracle, fixgen.Options{})})

	res := a.Run(context.Background(), baseInput(issueAt("a", "one.go", 3, models.SeverityHigh)))
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.FixesGenerated)
	assert.Zero(t, res.FilesChanged)
	assert.Contains(t, res.Error, "none of them changed file content")
}

func TestDiagnoseNoChanges(t *testing.T) {
	tests := []struct {
		name                          string
		files, fetchFailed, failed, n int
		want                          NoChangeReason
	}{
		{"all fetch failed", 3, 3, 3, 0, NoChangeAllFetchFailed},
		{"some failed", 3, 1, 1, 2, NoChangeSomeFilesFailed},
		{"unchanged", 2, 0, 0, 4, NoChangeFixesUnchanged},
		{"nothing", 2, 0, 0, 0, NoChangeNoFixes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := diagnoseNoChanges(tt.files, tt.fetchFailed, tt.failed, tt.n)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestRunOnceSkipsDuplicateTriggers(t *testing.T) {
	sc := newFakeSC(map[string]string{"one.go": threeLineFile})
	rec := &fakeRecorder{}
	notes := &fakeNotifier{}
	a := newTestAutoFixer(sc, AutoFixDeps{Recorder: rec, Notifier: notes})
	in := baseInput(issueAt("a", "one.go", 3, models.SeverityCritical))

	first, skipped := a.RunOnce(context.Background(), "proj-1", in)
	require.False(t, skipped)
	require.True(t, first.Success, first.Error)

	second, skipped := a.RunOnce(context.Background(), "proj-1", in)
	assert.True(t, skipped)
	assert.Equal(t, models.AutoFixResult{}, second)
	assert.Equal(t, 1, sc.calls["CreatePullRequest"])

	require.Len(t, rec.runs, 1)
	assert.Equal(t, "run-1", rec.runs[0].runID)
	assert.Equal(t, "proj-1", rec.runs[0].project)
	require.Len(t, notes.events, 1)
	assert.Equal(t, notify.EventPROpened, notes.events[0].Type)
	assert.Equal(t, "critical", notes.events[0].Severity)

	_, skipped = a.RunOnce(context.Background(), "proj-2", in)
	assert.False(t, skipped, "a different project is not a duplicate")
}

func TestRunOnceRecorderFailureIsSwallowed(t *testing.T) {
	sc := newFakeSC(nil)
	rec := &fakeRecorder{err: errors.New("database is locked")}
	notes := &fakeNotifier{}
	a := newTestAutoFixer(sc, AutoFixDeps{Recorder: rec, Notifier: notes})

	res, skipped := a.RunOnce(context.Background(), "", baseInput(issueAt("a", "gone.go", 1, models.SeverityHigh)))
	assert.False(t, skipped)
	assert.False(t, res.Success)
	require.Len(t, notes.events, 1)
	assert.Equal(t, notify.EventAutoFixFailed, notes.events[0].Type)
	assert.Equal(t, "acme/api", rec.runs[0].project)
}

func TestTriggerGuardWindow(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewTriggerGuard(5 * time.Minute)
	g.now = func() time.Time { return clock }

	assert.True(t, g.Acquire("p", "c1"))
	assert.False(t, g.Acquire("p", "c1"))
	assert.True(t, g.Acquire("p", "c2"))

	clock = clock.Add(4*time.Minute + 59*time.Second)
	assert.False(t, g.Acquire("p", "c1"))

	clock = clock.Add(time.Second)
	assert.Equal(t, 2, g.Prune())
	assert.Zero(t, g.Len())
	assert.True(t, g.Acquire("p", "c1"))
}

// scriptedOracle always returns the same reply.
type scriptedOracle struct{ reply string }

func (s *scriptedOracle) Name() string                       { return "scripted" }
func (s *scriptedOracle) IsAvailable(_ context.Context) bool { return true }
func (s *scriptedOracle) Complete(_ context.Context, _ ai.CompletionRequest) (string, error) {
	return s.reply, nil
}
