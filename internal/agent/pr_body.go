package agent

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/protocolzero/codepolice/models"
)

const (
	// DefaultBranchPrefix namespaces fix branches.
	DefaultBranchPrefix = "codepolice"

	commitSubjectMax = 72
	shortSHALen      = 7
)

// BranchName derives the fix branch from the run date and the triggering
// commit: <prefix>/fix-YYYYMMDD-<sha7>.
func BranchName(prefix string, at time.Time, commitSHA string) string {
	if prefix == "" {
		prefix = DefaultBranchPrefix
	}
	return fmt.Sprintf("%s/fix-%s-%s", prefix, at.UTC().Format("20060102"), shortSHA(commitSHA))
}

func shortSHA(sha string) string {
	if len(sha) > shortSHALen {
		return sha[:shortSHALen]
	}
	return sha
}

// PRTitle references the triggering commit.
func PRTitle(commitSHA string) string {
	return "Code Police: automated fixes for " + shortSHA(commitSHA)
}

// CommitMessage uses the first explained fix for path, or a generic subject
// when none maps to it.
func CommitMessage(path string, fixes []models.Fix) string {
	for _, f := range fixes {
		if f.FilePath != path {
			continue
		}
		if e := firstLine(f.Explanation); e != "" {
			return "fix(codepolice): " + truncate(e, commitSubjectMax)
		}
	}
	return "fix(codepolice): apply automated fixes to " + path
}

// PRBody renders the Markdown description: a summary, one line per fix, any
// issues left unfixed and a testing checklist.
func PRBody(commitSHA string, fixes []models.Fix, issues []models.Issue, unfixable []models.Issue) string {
	byID := make(map[string]models.Issue, len(issues))
	for _, is := range issues {
		byID[is.ID] = is
	}
	files := make(map[string]bool)
	for _, f := range fixes {
		files[f.FilePath] = true
	}

	ordered := make([]models.Fix, len(fixes))
	copy(ordered, fixes)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].FilePath != ordered[j].FilePath {
			return ordered[i].FilePath < ordered[j].FilePath
		}
		return ordered[i].StartLine < ordered[j].StartLine
	})

	var b strings.Builder
	b.WriteString("## Code Police automated fixes\n\n")
	fmt.Fprintf(&b, "This pull request addresses **%d** issue(s) across **%d** file(s) found in commit `%s`.\n\n",
		len(fixes), len(files), shortSHA(commitSHA))

	b.WriteString("### Fixes\n\n")
	for _, f := range ordered {
		line := firstLine(f.Explanation)
		if line == "" {
			line = firstLine(byID[f.IssueID].Message)
		}
		sev := ""
		if is, ok := byID[f.IssueID]; ok && is.Severity != "" {
			sev = fmt.Sprintf("**[%s]** ", strings.ToUpper(string(is.Severity)))
		}
		fmt.Fprintf(&b, "- `%s:%d` %s%s _(confidence: %s)_\n", f.FilePath, f.StartLine, sev, line, f.Confidence)
	}

	if len(unfixable) > 0 {
		b.WriteString("\n### Needs manual attention\n\n")
		for _, is := range unfixable {
			fmt.Fprintf(&b, "- `%s:%d` %s\n", is.FilePath, is.Line, firstLine(is.Message))
		}
	}

	b.WriteString("\n### Testing\n\n")
	b.WriteString("- [ ] Run the full test suite\n")
	b.WriteString("- [ ] Review each change for unintended behaviour\n")
	b.WriteString("- [ ] Re-check security fixes against the original finding\n")
	b.WriteString("- [ ] Resolve any `TODO`/`SECURITY`/`BUG` annotations left for follow-up\n")
	b.WriteString("\n---\n_Generated by codepolice._\n")
	return b.String()
}

// Labels derives PR labels from the severities and categories present.
func Labels(issues []models.Issue) []string {
	labels := []string{"code-police"}
	var high bool
	cats := make(map[string]bool)
	for _, is := range issues {
		switch models.ParseSeverity(string(is.Severity)) {
		case models.SeverityCritical, models.SeverityHigh:
			high = true
		}
		cats[is.NormalizedCategory()] = true
	}
	if high {
		labels = append(labels, "priority: high")
	}
	for _, c := range []string{models.CategorySecurity, models.CategoryBug, models.CategoryPerformance} {
		if cats[c] {
			labels = append(labels, c)
		}
	}
	return labels
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i != -1 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
