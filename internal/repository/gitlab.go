package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/protocolzero/codepolice/internal/config"
	"github.com/protocolzero/codepolice/models"
)

// GitLabProvider implements SourceControl for GitLab (cloud and self-hosted).
// Owner and repo are joined into the project path.
type GitLabProvider struct {
	client *gitlab.Client
	call   *caller
}

// NewGitLab creates a GitLabProvider from the given configuration.
func NewGitLab(cfg config.GitLabConfig, opts ...Option) (*GitLabProvider, error) {
	clientOpts := []gitlab.ClientOptionFunc{}
	if cfg.Host != "" && cfg.Host != "gitlab.com" {
		base := fmt.Sprintf("https://%s/api/v4/", cfg.Host)
		clientOpts = append(clientOpts, gitlab.WithBaseURL(base))
	}

	client, err := gitlab.NewClient(cfg.Token, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}

	return &GitLabProvider{client: client, call: newCaller("gitlab", opts...)}, nil
}

func (g *GitLabProvider) Name() string { return "gitlab" }

func (g *GitLabProvider) GetBranchSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	pid := projectPath(owner, repo)
	var sha string
	err := g.call.do(ctx, "get branch", func(ctx context.Context) (int, error) {
		b, resp, err := g.client.Branches.GetBranch(pid, branch, gitlab.WithContext(ctx))
		if err != nil {
			return glStatus(resp), err
		}
		if b.Commit != nil {
			sha = b.Commit.ID
		}
		return glStatus(resp), nil
	})
	if err != nil {
		return "", fmt.Errorf("resolving branch %s on %s: %w", branch, pid, err)
	}
	return sha, nil
}

func (g *GitLabProvider) CreateBranch(ctx context.Context, owner, repo, branch, sha string) error {
	pid := projectPath(owner, repo)
	err := g.call.doWrite(ctx, "create branch", func(ctx context.Context) (int, error) {
		_, resp, err := g.client.Branches.CreateBranch(pid, &gitlab.CreateBranchOptions{
			Branch: gitlab.Ptr(branch),
			Ref:    gitlab.Ptr(sha),
		}, gitlab.WithContext(ctx))
		return glStatus(resp), err
	})
	if err != nil {
		return fmt.Errorf("creating branch %s on %s: %w", branch, pid, err)
	}
	return nil
}

func (g *GitLabProvider) GetFile(ctx context.Context, owner, repo, path, ref string) (*FileContent, error) {
	pid := projectPath(owner, repo)
	var out *FileContent
	err := g.call.do(ctx, "get file", func(ctx context.Context) (int, error) {
		f, resp, err := g.client.RepositoryFiles.GetFile(pid, path, &gitlab.GetFileOptions{
			Ref: gitlab.Ptr(ref),
		}, gitlab.WithContext(ctx))
		if err != nil {
			if glStatus(resp) == http.StatusNotFound {
				return http.StatusNotFound, ErrFileNotFound
			}
			return glStatus(resp), err
		}
		content := f.Content
		if f.Encoding == "base64" {
			raw, err := base64.StdEncoding.DecodeString(f.Content)
			if err != nil {
				return glStatus(resp), fmt.Errorf("decoding %s: %w", path, err)
			}
			content = string(raw)
		}
		out = &FileContent{SHA: f.BlobID, Content: content}
		return glStatus(resp), nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s@%s: %w", path, ref, err)
	}
	return out, nil
}

// PutFile updates the file when opts.SHA is set and creates it otherwise.
// GitLab does not need the blob SHA; it only selects the endpoint.
func (g *GitLabProvider) PutFile(ctx context.Context, owner, repo string, opts PutFileOptions) error {
	pid := projectPath(owner, repo)
	encoded := base64.StdEncoding.EncodeToString([]byte(opts.Content))
	err := g.call.doWrite(ctx, "put file", func(ctx context.Context) (int, error) {
		var resp *gitlab.Response
		var err error
		if opts.SHA == "" {
			_, resp, err = g.client.RepositoryFiles.CreateFile(pid, opts.Path, &gitlab.CreateFileOptions{
				Branch:        gitlab.Ptr(opts.Branch),
				Content:       gitlab.Ptr(encoded),
				Encoding:      gitlab.Ptr("base64"),
				CommitMessage: gitlab.Ptr(opts.Message),
			}, gitlab.WithContext(ctx))
		} else {
			_, resp, err = g.client.RepositoryFiles.UpdateFile(pid, opts.Path, &gitlab.UpdateFileOptions{
				Branch:        gitlab.Ptr(opts.Branch),
				Content:       gitlab.Ptr(encoded),
				Encoding:      gitlab.Ptr("base64"),
				CommitMessage: gitlab.Ptr(opts.Message),
			}, gitlab.WithContext(ctx))
		}
		return glStatus(resp), err
	})
	if err != nil {
		return fmt.Errorf("committing %s: %w", opts.Path, err)
	}
	return nil
}

func (g *GitLabProvider) CreatePullRequest(ctx context.Context, owner, repo string, opts CreatePROptions) (*models.PullRequest, error) {
	pid := projectPath(owner, repo)
	var mr *gitlab.MergeRequest
	err := g.call.doWrite(ctx, "create merge request", func(ctx context.Context) (int, error) {
		var resp *gitlab.Response
		var err error
		mr, resp, err = g.client.MergeRequests.CreateMergeRequest(pid, &gitlab.CreateMergeRequestOptions{
			Title:        gitlab.Ptr(opts.Title),
			Description:  gitlab.Ptr(opts.Body),
			SourceBranch: gitlab.Ptr(opts.HeadBranch),
			TargetBranch: gitlab.Ptr(opts.BaseBranch),
		}, gitlab.WithContext(ctx))
		return glStatus(resp), err
	})
	if err != nil {
		return nil, fmt.Errorf("creating MR on %s: %w", pid, err)
	}
	return &models.PullRequest{
		Number:     int(mr.IID),
		Title:      mr.Title,
		URL:        mr.WebURL,
		HeadBranch: mr.SourceBranch,
		BaseBranch: mr.TargetBranch,
	}, nil
}

func (g *GitLabProvider) AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	pid := projectPath(owner, repo)
	add := gitlab.LabelOptions(labels)
	err := g.call.do(ctx, "add labels", func(ctx context.Context) (int, error) {
		_, resp, err := g.client.MergeRequests.UpdateMergeRequest(pid, int64(number), &gitlab.UpdateMergeRequestOptions{
			AddLabels: &add,
		}, gitlab.WithContext(ctx))
		return glStatus(resp), err
	})
	if err != nil {
		return fmt.Errorf("labelling !%d on %s: %w", number, pid, err)
	}
	return nil
}

func projectPath(owner, repo string) string {
	return owner + "/" + repo
}

func glStatus(resp *gitlab.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	return 0
}
