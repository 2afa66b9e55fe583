package models

// PullRequest is a pull (or merge) request opened on the remote service.
type PullRequest struct {
	Number     int    `json:"number"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	HeadBranch string `json:"head_branch"`
	BaseBranch string `json:"base_branch"`
}

// PRCreationResult is the terminal outcome of publishing a change set.
// Success=false always carries a human-readable Error.
type PRCreationResult struct {
	Success    bool   `json:"success"`
	PRNumber   int    `json:"prNumber,omitempty"`
	PRURL      string `json:"prUrl,omitempty"`
	BranchName string `json:"branchName,omitempty"`
	Error      string `json:"error,omitempty"`
}
