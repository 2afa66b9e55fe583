package models

import "strings"

// Issue is a code issue detected in one file at a specific commit.
// Line numbers are 1-indexed and refer to that commit's revision of the file.
type Issue struct {
	ID           string   `json:"id"`
	FilePath     string   `json:"filePath"`
	Line         int      `json:"line"`
	EndLine      int      `json:"endLine,omitempty"`
	Severity     Severity `json:"severity"`
	Category     string   `json:"category"`
	Message      string   `json:"message"`
	Explanation  string   `json:"explanation,omitempty"`
	SuggestedFix string   `json:"suggestedFix,omitempty"`
	CodeSnippet  string   `json:"codeSnippet,omitempty"`
}

// LastLine returns the inclusive end of the issue's range.
func (i Issue) LastLine() int {
	if i.EndLine >= i.Line {
		return i.EndLine
	}
	return i.Line
}

// Issue categories recognised by labelling and fallback annotation.
const (
	CategorySecurity    = "security"
	CategoryPerformance = "performance"
	CategoryBug         = "bug"
	CategoryStyle       = "style"
)

// NormalizedCategory folds free-form category names onto the known set.
// Anything unrecognised is returned lower-cased.
func (i Issue) NormalizedCategory() string {
	c := strings.ToLower(strings.TrimSpace(i.Category))
	switch {
	case strings.Contains(c, "secur"), strings.Contains(c, "vuln"), strings.Contains(c, "inject"):
		return CategorySecurity
	case strings.Contains(c, "perf"):
		return CategoryPerformance
	case strings.Contains(c, "bug"), strings.Contains(c, "logic"), strings.Contains(c, "error"), strings.Contains(c, "correct"):
		return CategoryBug
	case strings.Contains(c, "style"), strings.Contains(c, "format"), strings.Contains(c, "readab"), strings.Contains(c, "convention"), strings.Contains(c, "naming"):
		return CategoryStyle
	default:
		return c
	}
}

// GroupIssuesByFile buckets issues by file path, preserving input order
// within each bucket.
func GroupIssuesByFile(issues []Issue) map[string][]Issue {
	out := make(map[string][]Issue)
	for _, is := range issues {
		out[is.FilePath] = append(out[is.FilePath], is)
	}
	return out
}

// FilterBySeverity keeps issues whose severity is in allowed.
func FilterBySeverity(issues []Issue, allowed []Severity) []Issue {
	set := make(map[Severity]bool, len(allowed))
	for _, s := range allowed {
		set[s] = true
	}
	out := make([]Issue, 0, len(issues))
	for _, is := range issues {
		if set[ParseSeverity(string(is.Severity))] {
			out = append(out, is)
		}
	}
	return out
}
