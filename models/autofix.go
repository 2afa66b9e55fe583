package models

// AutoFixInput is a single webhook or manual trigger of the auto-fix pipeline.
type AutoFixInput struct {
	ProjectID          string   `json:"projectId,omitempty"`
	SourceControlToken string   `json:"sourceControlToken"`
	Provider           string   `json:"provider,omitempty"` // github | gitlab; default github
	Host               string   `json:"host,omitempty"`
	Owner              string   `json:"owner"`
	Repo               string   `json:"repo"`
	Branch             string   `json:"branch"`
	CommitSHA          string   `json:"commitSha"`
	Issues             []Issue  `json:"issues"`
	AnalysisRunID      string   `json:"analysisRunId"`
	SeverityFilter     []string `json:"severityFilter,omitempty"`
}

// DedupKey identifies the trigger for duplicate suppression. The project id
// defaults to owner/repo.
func (in AutoFixInput) DedupKey() (project, commit string) {
	project = in.ProjectID
	if project == "" {
		project = in.Owner + "/" + in.Repo
	}
	return project, in.CommitSHA
}

// AutoFixResult is what the pipeline reports back upstream.
type AutoFixResult struct {
	Success        bool     `json:"success"`
	PRNumber       int      `json:"prNumber,omitempty"`
	PRURL          string   `json:"prUrl,omitempty"`
	BranchName     string   `json:"branchName,omitempty"`
	FixesGenerated int      `json:"fixesGenerated"`
	FilesChanged   int      `json:"filesChanged"`
	Error          string   `json:"error,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}
