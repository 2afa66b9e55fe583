package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/protocolzero/codepolice/internal/config"
	"github.com/protocolzero/codepolice/models"
)

// ErrFileNotFound is returned by GetFile when the path does not exist at ref.
var ErrFileNotFound = errors.New("file not found")

// SourceControl is the remote hosting API the pull request agent publishes
// through. Implementations: GitHub, GitLab.
type SourceControl interface {
	// Name identifies the provider ("github" or "gitlab").
	Name() string

	// GetBranchSHA resolves the commit a branch currently points at.
	GetBranchSHA(ctx context.Context, owner, repo, branch string) (string, error)

	// CreateBranch creates branch at sha.
	CreateBranch(ctx context.Context, owner, repo, branch, sha string) error

	// GetFile returns the content and blob SHA of path at ref, which may be
	// a branch name or a commit SHA.
	GetFile(ctx context.Context, owner, repo, path, ref string) (*FileContent, error)

	// PutFile creates or updates a file with a single commit on opts.Branch.
	PutFile(ctx context.Context, owner, repo string, opts PutFileOptions) error

	// CreatePullRequest opens a pull (or merge) request.
	CreatePullRequest(ctx context.Context, owner, repo string, opts CreatePROptions) (*models.PullRequest, error)

	// AddLabels attaches labels to an open pull request.
	AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error
}

// FileContent is a file as stored on the remote.
type FileContent struct {
	// SHA is the blob SHA the remote requires for updates.
	SHA     string
	Content string
}

// PutFileOptions describes one file commit.
type PutFileOptions struct {
	Path    string
	Content string
	Message string
	Branch  string
	// SHA is the current blob SHA; empty creates the file.
	SHA string
}

// CreatePROptions contains all fields needed to open a pull request.
type CreatePROptions struct {
	Title      string
	Body       string
	HeadBranch string // branch containing the fix
	BaseBranch string // target branch (usually "main" or "master")
}

// Option tunes the API call wrapper shared by all providers.
type Option func(*caller)

// WithTimeout bounds every API attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *caller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New returns the SourceControl for provider. host selects GitHub
// Enterprise or a self-hosted GitLab; empty means the public service.
func New(provider, host, token string, opts ...Option) (SourceControl, error) {
	if token == "" {
		return nil, fmt.Errorf("no %s token provided", provider)
	}
	switch provider {
	case "", "github":
		return NewGitHub(config.GitHubConfig{Token: token, Host: host}, opts...)
	case "gitlab":
		return NewGitLab(config.GitLabConfig{Token: token, Host: host}, opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

// DetectProvider infers the hosting platform from a repository URL.
func DetectProvider(repoURL string) (string, error) {
	lower := strings.ToLower(repoURL)
	switch {
	case strings.Contains(lower, "github."):
		return "github", nil
	case strings.Contains(lower, "gitlab."):
		return "gitlab", nil
	default:
		return "", fmt.Errorf("cannot detect provider from URL %q; use --provider flag", repoURL)
	}
}

// HostFromURL returns the host part of an HTTPS or SSH repository URL.
func HostFromURL(repoURL string) string {
	u := repoURL
	if i := strings.Index(u, "://"); i != -1 {
		u = u[i+3:]
	} else if i := strings.Index(u, "@"); i != -1 {
		u = u[i+1:]
	}
	if i := strings.IndexAny(u, "/:"); i != -1 {
		u = u[:i]
	}
	if i := strings.LastIndex(u, "@"); i != -1 {
		u = u[i+1:]
	}
	return u
}

// TokenForProvider returns the configured token for provider and host. An
// entry without a host matches the public service.
func TokenForProvider(cfg *config.Config, provider, host string) string {
	match := func(entryHost, public string) bool {
		if entryHost == "" {
			entryHost = public
		}
		return host == "" || strings.EqualFold(entryHost, host)
	}
	switch provider {
	case "", "github":
		for _, g := range cfg.Git.GitHub {
			if g.Token != "" && match(g.Host, "github.com") {
				return g.Token
			}
		}
	case "gitlab":
		for _, g := range cfg.Git.GitLab {
			if g.Token != "" && match(g.Host, "gitlab.com") {
				return g.Token
			}
		}
	}
	return ""
}
