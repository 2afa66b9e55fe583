package repository

import (
	"context"
	"fmt"
	"net/http"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/protocolzero/codepolice/internal/config"
	"github.com/protocolzero/codepolice/models"
)

// GitHubProvider implements SourceControl for GitHub and GitHub Enterprise.
type GitHubProvider struct {
	client *gogithub.Client
	call   *caller
}

// NewGitHub creates a GitHubProvider from the given configuration.
func NewGitHub(cfg config.GitHubConfig, opts ...Option) (*GitHubProvider, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	// Support GitHub Enterprise by overriding the base URL.
	if cfg.Host != "" && cfg.Host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", cfg.Host)
		upload := fmt.Sprintf("https://%s/api/uploads/", cfg.Host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	return &GitHubProvider{client: client, call: newCaller("github", opts...)}, nil
}

func (g *GitHubProvider) Name() string { return "github" }

func (g *GitHubProvider) GetBranchSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	var sha string
	err := g.call.do(ctx, "get ref", func(ctx context.Context) (int, error) {
		ref, resp, err := g.client.Git.GetRef(ctx, owner, repo, "heads/"+branch)
		if err != nil {
			return ghStatus(resp), err
		}
		sha = ref.GetObject().GetSHA()
		return ghStatus(resp), nil
	})
	if err != nil {
		return "", fmt.Errorf("resolving branch %s on %s/%s: %w", branch, owner, repo, err)
	}
	return sha, nil
}

func (g *GitHubProvider) CreateBranch(ctx context.Context, owner, repo, branch, sha string) error {
	err := g.call.doWrite(ctx, "create ref", func(ctx context.Context) (int, error) {
		_, resp, err := g.client.Git.CreateRef(ctx, owner, repo, &gogithub.Reference{
			Ref:    gogithub.Ptr("refs/heads/" + branch),
			Object: &gogithub.GitObject{SHA: gogithub.Ptr(sha)},
		})
		return ghStatus(resp), err
	})
	if err != nil {
		return fmt.Errorf("creating branch %s on %s/%s: %w", branch, owner, repo, err)
	}
	return nil
}

func (g *GitHubProvider) GetFile(ctx context.Context, owner, repo, path, ref string) (*FileContent, error) {
	var out *FileContent
	err := g.call.do(ctx, "get contents", func(ctx context.Context) (int, error) {
		file, _, resp, err := g.client.Repositories.GetContents(ctx, owner, repo, path,
			&gogithub.RepositoryContentGetOptions{Ref: ref})
		if err != nil {
			if ghStatus(resp) == http.StatusNotFound {
				return http.StatusNotFound, ErrFileNotFound
			}
			return ghStatus(resp), err
		}
		if file == nil {
			return ghStatus(resp), fmt.Errorf("%s is a directory", path)
		}
		content, err := file.GetContent()
		if err != nil {
			return ghStatus(resp), fmt.Errorf("decoding %s: %w", path, err)
		}
		out = &FileContent{SHA: file.GetSHA(), Content: content}
		return ghStatus(resp), nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s@%s: %w", path, ref, err)
	}
	return out, nil
}

func (g *GitHubProvider) PutFile(ctx context.Context, owner, repo string, opts PutFileOptions) error {
	fileOpts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.Ptr(opts.Message),
		Content: []byte(opts.Content),
		Branch:  gogithub.Ptr(opts.Branch),
	}
	if opts.SHA != "" {
		fileOpts.SHA = gogithub.Ptr(opts.SHA)
	}
	err := g.call.doWrite(ctx, "put contents", func(ctx context.Context) (int, error) {
		var resp *gogithub.Response
		var err error
		if opts.SHA == "" {
			_, resp, err = g.client.Repositories.CreateFile(ctx, owner, repo, opts.Path, fileOpts)
		} else {
			_, resp, err = g.client.Repositories.UpdateFile(ctx, owner, repo, opts.Path, fileOpts)
		}
		return ghStatus(resp), err
	})
	if err != nil {
		return fmt.Errorf("committing %s: %w", opts.Path, err)
	}
	return nil
}

func (g *GitHubProvider) CreatePullRequest(ctx context.Context, owner, repo string, opts CreatePROptions) (*models.PullRequest, error) {
	var pr *gogithub.PullRequest
	err := g.call.doWrite(ctx, "create pull request", func(ctx context.Context) (int, error) {
		var resp *gogithub.Response
		var err error
		pr, resp, err = g.client.PullRequests.Create(ctx, owner, repo, &gogithub.NewPullRequest{
			Title:               gogithub.Ptr(opts.Title),
			Body:                gogithub.Ptr(opts.Body),
			Head:                gogithub.Ptr(opts.HeadBranch),
			Base:                gogithub.Ptr(opts.BaseBranch),
			MaintainerCanModify: gogithub.Ptr(true),
		})
		return ghStatus(resp), err
	})
	if err != nil {
		return nil, fmt.Errorf("creating PR on %s/%s: %w", owner, repo, err)
	}
	return &models.PullRequest{
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		URL:        pr.GetHTMLURL(),
		HeadBranch: pr.GetHead().GetRef(),
		BaseBranch: pr.GetBase().GetRef(),
	}, nil
}

func (g *GitHubProvider) AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	err := g.call.do(ctx, "add labels", func(ctx context.Context) (int, error) {
		_, resp, err := g.client.Issues.AddLabelsToIssue(ctx, owner, repo, number, labels)
		return ghStatus(resp), err
	})
	if err != nil {
		return fmt.Errorf("labelling #%d on %s/%s: %w", number, owner, repo, err)
	}
	return nil
}

// ghStatus extracts the HTTP status from a go-github response; 0 means no
// response arrived.
func ghStatus(resp *gogithub.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	return 0
}
