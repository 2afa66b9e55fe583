package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// CloneTimeout is the ceiling on a single clone.
const CloneTimeout = 2 * time.Minute

// maxSourceFileSize skips generated or vendored blobs that are too large to
// send to the model.
const maxSourceFileSize = 256 << 10

// CloneResult holds information about a completed clone operation.
type CloneResult struct {
	LocalPath string
	Owner     string
	Repo      string
	Branch    string
	Commit    string
}

// SourceFile is a text file read from a clone, with a repo-relative path.
type SourceFile struct {
	Path    string
	Content string
}

// CloneManager handles cloning repositories to temporary directories using go-git.
type CloneManager struct {
	timeout time.Duration
}

// NewCloneManager creates a CloneManager with the default ceiling.
func NewCloneManager() *CloneManager {
	return &CloneManager{timeout: CloneTimeout}
}

// Clone shallow-clones repoURL into a temporary directory.
// token is used for HTTPS authentication; branch is optional (defaults to HEAD).
// A non-empty commit pins the worktree to that full SHA even when the branch
// has moved past it.
func (cm *CloneManager) Clone(ctx context.Context, repoURL, token, branch, commit string) (*CloneResult, error) {
	if commit != "" && !plumbing.IsHash(commit) {
		return nil, fmt.Errorf("invalid commit %q", commit)
	}
	ctx, cancel := context.WithTimeout(ctx, cm.timeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "codepolice-clone-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	cloneOpts := &gogit.CloneOptions{
		URL:   repoURL,
		Depth: 1, // shallow clone for speed
	}
	if token != "" {
		cloneOpts.Auth = &githttp.BasicAuth{
			Username: "codepolice",
			Password: token,
		}
	}
	if branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		cloneOpts.SingleBranch = true
	}

	slog.Debug("Cloning repository",
		"url", repoURL,
		"branch", branch,
		"commit", commit,
		"dest", tmpDir,
	)

	repo, err := gogit.PlainCloneContext(ctx, tmpDir, false, cloneOpts)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("cloning %s: %w", repoURL, err)
	}

	head, err := repo.Head()
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	resolvedBranch := head.Name().Short()
	if resolvedBranch == "" || resolvedBranch == "HEAD" {
		resolvedBranch = branch
	}

	resolvedCommit := head.Hash().String()
	if commit != "" && commit != resolvedCommit {
		if err := checkoutCommit(ctx, repo, commit, cloneOpts.Auth); err != nil {
			_ = os.RemoveAll(tmpDir)
			return nil, err
		}
		resolvedCommit = commit
	}

	owner, repoName := ParseOwnerRepo(repoURL)
	return &CloneResult{
		LocalPath: tmpDir,
		Owner:     owner,
		Repo:      repoName,
		Branch:    resolvedBranch,
		Commit:    resolvedCommit,
	}, nil
}

// checkoutCommit moves the worktree to commit, fetching it by SHA first when
// the shallow clone does not contain it.
func checkoutCommit(ctx context.Context, repo *gogit.Repository, commit string, auth transport.AuthMethod) error {
	hash := plumbing.NewHash(commit)
	if _, err := repo.CommitObject(hash); err != nil {
		err = repo.FetchContext(ctx, &gogit.FetchOptions{
			RefSpecs: []gitconfig.RefSpec{gitconfig.RefSpec(commit + ":refs/codepolice/pinned")},
			Depth:    1,
			Auth:     auth,
		})
		if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			return fmt.Errorf("fetching commit %s: %w", commit, err)
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return fmt.Errorf("checking out %s: %w", commit, err)
	}
	return nil
}

// Cleanup removes the temporary directory created during Clone.
func (cm *CloneManager) Cleanup(result *CloneResult) {
	if result == nil || result.LocalPath == "" {
		return
	}
	if err := os.RemoveAll(result.LocalPath); err != nil {
		slog.Warn("Failed to clean up clone directory",
			"path", result.LocalPath, "error", err)
	}
}

// ReadSourceFiles walks a clone and returns its text files with
// slash-separated relative paths. Hidden directories, binary files and files
// above the size limit are skipped.
func ReadSourceFiles(root string) ([]SourceFile, error) {
	var files []SourceFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			switch d.Name() {
			case "node_modules", "vendor", "dist", "build":
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() == 0 || info.Size() > maxSourceFileSize {
			return nil
		}
		data, err := os.ReadFile(path) // #nosec G304 -- path is inside our own clone
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if bytes.IndexByte(data, 0) != -1 {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, SourceFile{Path: filepath.ToSlash(rel), Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

// ParseOwnerRepo extracts the owner and repository name from a git URL.
// Supports HTTPS (https://github.com/owner/repo.git) and SSH
// (git@github.com:owner/repo.git). Nested GitLab groups stay in owner.
func ParseOwnerRepo(repoURL string) (owner, repo string) {
	u := strings.TrimSuffix(strings.TrimSuffix(repoURL, "/"), ".git")

	var path string
	switch {
	case strings.Contains(u, "://"):
		rest := u[strings.Index(u, "://")+3:]
		if i := strings.Index(rest, "/"); i != -1 {
			path = rest[i+1:]
		}
	case strings.Contains(u, ":"):
		path = u[strings.Index(u, ":")+1:]
	default:
		path = u
	}

	if i := strings.LastIndex(path, "/"); i != -1 {
		return path[:i], path[i+1:]
	}
	return "", path
}
