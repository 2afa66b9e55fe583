package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/protocolzero/codepolice/internal/notify"
	"github.com/protocolzero/codepolice/internal/repository"
	"github.com/protocolzero/codepolice/models"
)

// fakeSC is an in-memory SourceControl that counts every call.
type fakeSC struct {
	mu sync.Mutex

	files     map[string]string // path -> content at the trigger commit
	fetchErrs map[string]error
	labelErr  error
	prErr     error

	calls     map[string]int
	puts      []repository.PutFileOptions
	branches  []string
	prOpts    *repository.CreatePROptions
	labelSets [][]string
}

func newFakeSC(files map[string]string) *fakeSC {
	return &fakeSC{files: files, fetchErrs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeSC) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeSC) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeSC) Name() string { return "fake" }

func (f *fakeSC) GetBranchSHA(_ context.Context, _, _, _ string) (string, error) {
	f.count("GetBranchSHA")
	return "base0000000000", nil
}

func (f *fakeSC) CreateBranch(_ context.Context, _, _, branch, _ string) error {
	f.count("CreateBranch")
	f.mu.Lock()
	f.branches = append(f.branches, branch)
	f.mu.Unlock()
	return nil
}

func (f *fakeSC) GetFile(_ context.Context, _, _, path, _ string) (*repository.FileContent, error) {
	f.count("GetFile")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErrs[path]; err != nil {
		return nil, err
	}
	content, ok := f.files[path]
	if !ok {
		return nil, repository.ErrFileNotFound
	}
	return &repository.FileContent{SHA: "blob-" + path, Content: content}, nil
}

func (f *fakeSC) PutFile(_ context.Context, _, _ string, opts repository.PutFileOptions) error {
	f.count("PutFile")
	f.mu.Lock()
	f.puts = append(f.puts, opts)
	f.mu.Unlock()
	return nil
}

func (f *fakeSC) CreatePullRequest(_ context.Context, owner, repo string, opts repository.CreatePROptions) (*models.PullRequest, error) {
	f.count("CreatePullRequest")
	if f.prErr != nil {
		return nil, f.prErr
	}
	f.prOpts = &opts
	return &models.PullRequest{
		Number:     17,
		Title:      opts.Title,
		URL:        fmt.Sprintf("https://github.com/%s/%s/pull/17", owner, repo),
		HeadBranch: opts.HeadBranch,
		BaseBranch: opts.BaseBranch,
	}, nil
}

func (f *fakeSC) AddLabels(_ context.Context, _, _ string, _ int, labels []string) error {
	f.count("AddLabels")
	f.mu.Lock()
	f.labelSets = append(f.labelSets, labels)
	f.mu.Unlock()
	return f.labelErr
}

type recordedRun struct {
	runID, project, commit string
	res                    models.AutoFixResult
}

type fakeRecorder struct {
	runs []recordedRun
	err  error
}

func (r *fakeRecorder) RecordAutoFix(_ context.Context, runID, projectID, commitSHA string, res models.AutoFixResult) error {
	r.runs = append(r.runs, recordedRun{runID, projectID, commitSHA, res})
	return r.err
}

type fakeNotifier struct{ events []notify.Event }

func (n *fakeNotifier) Notify(_ context.Context, evt notify.Event) {
	n.events = append(n.events, evt)
}
