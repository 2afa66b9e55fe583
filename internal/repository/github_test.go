package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	gogithub "github.com/google/go-github/v68/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocolzero/codepolice/internal/config"
)

func newTestGitHub(t *testing.T, handler http.Handler) *GitHubProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := gogithub.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base

	call := newCaller("github")
	call.newBack = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxAPIRetries)
	}
	return &GitHubProvider{client: client, call: call}
}

func TestGitHubGetBranchSHA(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/api/git/ref/heads/main", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"ref":"refs/heads/main","object":{"type":"commit","sha":"abc123"}}`)
	})
	gh := newTestGitHub(t, mux)

	sha, err := gh.GetBranchSHA(context.Background(), "acme", "api", "main")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)
}

func TestGitHubGetFileDecodesContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/api/contents/src/app.js", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "deadbeef", r.URL.Query().Get("ref"))
		_, _ = io.WriteString(w, `{"type":"file","encoding":"base64","content":"Y29uc29sZS5sb2coMSkK","sha":"blob1","path":"src/app.js"}`)
	})
	gh := newTestGitHub(t, mux)

	f, err := gh.GetFile(context.Background(), "acme", "api", "src/app.js", "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "blob1", f.SHA)
	assert.Equal(t, "console.log(1)\n", f.Content)
}

func TestGitHubGetFileNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/api/contents/missing.go", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Not Found"}`)
	})
	gh := newTestGitHub(t, mux)

	_, err := gh.GetFile(context.Background(), "acme", "api", "missing.go", "main")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileNotFound))
	assert.EqualValues(t, 1, calls.Load())
}

func TestGitHubRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/api/git/ref/heads/main", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"ref":"refs/heads/main","object":{"sha":"abc"}}`)
	})
	gh := newTestGitHub(t, mux)

	sha, err := gh.GetBranchSHA(context.Background(), "acme", "api", "main")
	require.NoError(t, err)
	assert.Equal(t, "abc", sha)
	assert.EqualValues(t, 2, calls.Load())
}

func TestGitHubClientErrorsFailFast(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/api/git/refs", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"message":"Reference already exists"}`)
	})
	gh := newTestGitHub(t, mux)

	err := gh.CreateBranch(context.Background(), "acme", "api", "codepolice/fix", "abc")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGitHubWritesRetryOnlyUnprocessedStatuses(t *testing.T) {
	var refCalls, prCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/api/git/refs", func(w http.ResponseWriter, _ *http.Request) {
		if refCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"ref":"refs/heads/codepolice/fix","object":{"sha":"abc"}}`)
	})
	mux.HandleFunc("POST /repos/acme/api/pulls", func(w http.ResponseWriter, _ *http.Request) {
		prCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	gh := newTestGitHub(t, mux)

	require.NoError(t, gh.CreateBranch(context.Background(), "acme", "api", "codepolice/fix", "abc"))
	assert.EqualValues(t, 2, refCalls.Load(), "503 means the ref was never created")

	_, err := gh.CreatePullRequest(context.Background(), "acme", "api", CreatePROptions{
		Title: "fix", HeadBranch: "codepolice/fix", BaseBranch: "main",
	})
	require.Error(t, err)
	assert.EqualValues(t, 1, prCalls.Load(), "a 500 may have opened the pull request")
}

func TestRetriableWrite(t *testing.T) {
	ctx := context.Background()
	for status, want := range map[int]bool{
		0:                              false,
		http.StatusInternalServerError: false,
		http.StatusUnprocessableEntity: false,
		http.StatusTooManyRequests:     true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	} {
		assert.Equal(t, want, retriableWrite(ctx, status, errors.New("boom")), "status %d", status)
		if status == 0 || status >= 500 {
			assert.True(t, retriable(ctx, status, errors.New("boom")), "reads retry status %d", status)
		}
	}
}

func TestGitHubPutFileSendsSHAAndBranch(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /repos/acme/api/contents/src/app.js", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"content":{"sha":"new"},"commit":{"sha":"c1"}}`)
	})
	gh := newTestGitHub(t, mux)

	err := gh.PutFile(context.Background(), "acme", "api", PutFileOptions{
		Path:    "src/app.js",
		Content: "fixed\n",
		Message: "fix(codepolice): sanitize input",
		Branch:  "codepolice/fix-20260101-abc1234",
		SHA:     "blob1",
	})
	require.NoError(t, err)
	assert.Equal(t, "blob1", body["sha"])
	assert.Equal(t, "codepolice/fix-20260101-abc1234", body["branch"])
	assert.Equal(t, "Zml4ZWQK", body["content"])
}

func TestGitHubCreatePullRequestAndLabels(t *testing.T) {
	var labels []string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/api/pulls", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"number":42,"title":"t","html_url":"https://github.com/acme/api/pull/42","head":{"ref":"fix"},"base":{"ref":"main"}}`)
	})
	mux.HandleFunc("POST /repos/acme/api/issues/42/labels", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&labels))
		_, _ = io.WriteString(w, `[]`)
	})
	gh := newTestGitHub(t, mux)
	ctx := context.Background()

	pr, err := gh.CreatePullRequest(ctx, "acme", "api", CreatePROptions{Title: "t", HeadBranch: "fix", BaseBranch: "main"})
	require.NoError(t, err)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "https://github.com/acme/api/pull/42", pr.URL)

	require.NoError(t, gh.AddLabels(ctx, "acme", "api", pr.Number, []string{"code-police", "security"}))
	assert.Equal(t, []string{"code-police", "security"}, labels)
}

func TestParseOwnerRepo(t *testing.T) {
	tests := []struct {
		url, owner, repo string
	}{
		{"https://github.com/acme/api.git", "acme", "api"},
		{"https://github.com/acme/api", "acme", "api"},
		{"git@github.com:acme/api.git", "acme", "api"},
		{"https://gitlab.com/group/sub/api.git", "group/sub", "api"},
		{"api", "", "api"},
	}
	for _, tt := range tests {
		owner, repo := ParseOwnerRepo(tt.url)
		assert.Equal(t, tt.owner, owner, tt.url)
		assert.Equal(t, tt.repo, repo, tt.url)
	}
}

func TestDetectProviderAndHost(t *testing.T) {
	p, err := DetectProvider("https://gitlab.example.com/acme/api")
	require.NoError(t, err)
	assert.Equal(t, "gitlab", p)
	_, err = DetectProvider("https://example.com/acme/api")
	assert.Error(t, err)

	assert.Equal(t, "github.example.com", HostFromURL("https://token@github.example.com/acme/api.git"))
	assert.Equal(t, "github.com", HostFromURL("git@github.com:acme/api.git"))
}

func TestTokenForProvider(t *testing.T) {
	cfg := &config.Config{Git: config.GitConfig{
		GitHub: []config.GitHubConfig{
			{Token: "public"},
			{Token: "enterprise", Host: "github.corp.example"},
		},
		GitLab: []config.GitLabConfig{{Token: "gl"}},
	}}
	assert.Equal(t, "public", TokenForProvider(cfg, "github", "github.com"))
	assert.Equal(t, "enterprise", TokenForProvider(cfg, "github", "github.corp.example"))
	assert.Equal(t, "gl", TokenForProvider(cfg, "gitlab", ""))
	assert.Empty(t, TokenForProvider(cfg, "gitlab", "gitlab.corp.example"))
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New("bitbucket", "", "tok")
	assert.Error(t, err)
	_, err = New("github", "", "")
	assert.Error(t, err)
}

func TestReadSourceFilesSkipsHiddenAndBinary(t *testing.T) {
	root := t.TempDir()
	write := func(rel string, data []byte) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o600))
	}
	write("main.go", []byte("package main\n"))
	write("pkg/util.go", []byte("package pkg\n"))
	write(".git/config", []byte("[core]\n"))
	write("node_modules/x/index.js", []byte("x\n"))
	write("logo.png", []byte{0x89, 'P', 'N', 'G', 0x00, 0x01})

	files, err := ReadSourceFiles(root)
	require.NoError(t, err)
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"main.go", "pkg/util.go"}, paths)
}
