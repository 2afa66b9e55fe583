package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocolzero/codepolice/models"
)

func newTestPRAgent(sc *fakeSC) *PRAgent {
	a := NewPRAgent(sc, "")
	a.now = func() time.Time { return time.Date(2026, 3, 9, 15, 4, 5, 0, time.UTC) }
	return a
}

func TestCreatePREmptyChangesMakesNoCalls(t *testing.T) {
	sc := newFakeSC(nil)
	res := newTestPRAgent(sc).CreatePR(context.Background(), PRRequest{Owner: "acme", Repo: "api", BaseBranch: "main"})

	assert.False(t, res.Success)
	assert.Equal(t, "No file changes to commit", res.Error)
	assert.Zero(t, sc.totalCalls())
}

func TestCreatePRPublishesInPathOrder(t *testing.T) {
	sc := newFakeSC(map[string]string{"b.go": "old b", "a.go": "old a"})
	req := PRRequest{
		Owner:      "acme",
		Repo:       "api",
		BaseBranch: "main",
		CommitSHA:  "1234567890abcdef",
		Changes:    map[string]string{"b.go": "new b", "a.go": "new a", "c.go": "brand new"},
		Fixes: []models.Fix{
			{IssueID: "i1", FilePath: "a.go", StartLine: 3, EndLine: 3, Explanation: "Use parameterized query\nmore detail", Confidence: models.ConfidenceHigh},
		},
		Issues: []models.Issue{
			{ID: "i1", FilePath: "a.go", Line: 3, Severity: models.SeverityCritical, Category: "SQL injection"},
			{ID: "i2", FilePath: "b.go", Line: 1, Severity: models.SeverityLow, Category: "performance"},
		},
	}

	res := newTestPRAgent(sc).CreatePR(context.Background(), req)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 17, res.PRNumber)
	assert.Equal(t, "codepolice/fix-20260309-1234567", res.BranchName)
	assert.Equal(t, []string{"codepolice/fix-20260309-1234567"}, sc.branches)

	require.Len(t, sc.puts, 3)
	assert.Equal(t, "a.go", sc.puts[0].Path)
	assert.Equal(t, "blob-a.go", sc.puts[0].SHA)
	assert.Equal(t, "fix(codepolice): Use parameterized query", sc.puts[0].Message)
	assert.Equal(t, "b.go", sc.puts[1].Path)
	assert.Equal(t, "fix(codepolice): apply automated fixes to b.go", sc.puts[1].Message)
	assert.Equal(t, "c.go", sc.puts[2].Path)
	assert.Empty(t, sc.puts[2].SHA, "new files are created without a blob SHA")

	require.NotNil(t, sc.prOpts)
	assert.Equal(t, "Code Police: automated fixes for 1234567", sc.prOpts.Title)
	assert.Equal(t, "main", sc.prOpts.BaseBranch)
	assert.Contains(t, sc.prOpts.Body, "`a.go:3` **[CRITICAL]** Use parameterized query")
	assert.Contains(t, sc.prOpts.Body, "### Testing")

	require.Len(t, sc.labelSets, 1)
	assert.Equal(t, []string{"code-police", "priority: high", "security", "performance"}, sc.labelSets[0])
}

func TestCreatePRLabelFailureIsSwallowed(t *testing.T) {
	sc := newFakeSC(map[string]string{"a.go": "x"})
	sc.labelErr = errors.New("403 forbidden")

	res := newTestPRAgent(sc).CreatePR(context.Background(), PRRequest{
		Owner: "acme", Repo: "api", BaseBranch: "main", CommitSHA: "abcdef0123",
		Changes: map[string]string{"a.go": "y"},
	})
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, 1, sc.calls["AddLabels"])
}

func TestCreatePRFailureKeepsBranchName(t *testing.T) {
	sc := newFakeSC(map[string]string{"a.go": "x"})
	sc.prErr = errors.New("422 validation failed")

	res := newTestPRAgent(sc).CreatePR(context.Background(), PRRequest{
		Owner: "acme", Repo: "api", BaseBranch: "main", CommitSHA: "abcdef0123",
		Changes: map[string]string{"a.go": "y"},
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "creating pull request")
	assert.Equal(t, "codepolice/fix-20260309-abcdef0", res.BranchName)
	assert.Zero(t, sc.calls["AddLabels"])
}

func TestCommitMessageTruncates(t *testing.T) {
	long := strings.Repeat("x", 100)
	msg := CommitMessage("a.go", []models.Fix{{FilePath: "a.go", Explanation: long}})
	subject := strings.TrimPrefix(msg, "fix(codepolice): ")
	assert.Len(t, subject, commitSubjectMax)
	assert.True(t, strings.HasSuffix(subject, "..."))
}

func TestBestEffortRecoversPanics(t *testing.T) {
	res := BestEffort(context.Background(), "explode", func(context.Context) error { panic("boom") })
	assert.False(t, res.OK())
	assert.Equal(t, "explode", res.Name)

	res = BestEffort(context.Background(), "fine", func(context.Context) error { return nil })
	assert.True(t, res.OK())
}
