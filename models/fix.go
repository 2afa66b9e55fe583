package models

// Confidence is the oracle's confidence that a fix is correct.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Fix is a proposed edit replacing the inclusive, 1-indexed line range
// StartLine..EndLine of the file revision the oracle was shown.
// OriginalCode is advisory; the line numbers are authoritative.
type Fix struct {
	IssueID      string     `json:"issueId"`
	FilePath     string     `json:"filePath"`
	StartLine    int        `json:"startLine"`
	EndLine      int        `json:"endLine"`
	OriginalCode string     `json:"originalCode"`
	FixedCode    string     `json:"fixedCode"`
	Explanation  string     `json:"explanation"`
	Confidence   Confidence `json:"confidence"`
	CanAutoApply bool       `json:"canAutoApply"`
}

// FilePatchResult is the outcome of applying a set of fixes to one file.
type FilePatchResult struct {
	Path            string `json:"path"`
	NewContent      string `json:"newContent"`
	AppliedFixCount int    `json:"appliedFixCount"`
	FailedFixes     []Fix  `json:"failedFixes"`
}
