package fixgen

import (
	"strings"

	"github.com/protocolzero/codepolice/models"
)

// Synthesize builds an annotation fix for every issue in issues: the
// issue's line range, clamped to the file, with a categorized comment
// prepended to the untouched original code. It never fails, so a file with
// issues always leaves this stage with at least one fix per issue.
func Synthesize(content, filePath, language string, issues []models.Issue) []models.Fix {
	if len(issues) == 0 {
		return nil
	}
	lines := strings.Split(content, "\n")
	total := len(lines)
	if strings.HasSuffix(content, "\n") {
		total--
	}
	if total < 1 {
		total = 1
	}

	opener, closer := commentSyntax(language)
	fixes := make([]models.Fix, 0, len(issues))
	for _, is := range issues {
		start := clamp(is.Line, 1, total)
		end := clamp(is.LastLine(), start, total)
		span := make([]string, 0, end-start+1)
		for _, l := range lines[start-1 : end] {
			span = append(span, strings.TrimSuffix(l, "\r"))
		}
		original := strings.Join(span, "\n")

		indent := leadingIndent(lines[start-1])
		comment := indent + opener + " " + annotationPrefix(is) + " " + annotationText(is) + closer

		fixed := comment
		if original != "" {
			fixed += "\n" + original
		}
		fixes = append(fixes, models.Fix{
			IssueID:      is.ID,
			FilePath:     filePath,
			StartLine:    start,
			EndLine:      end,
			OriginalCode: original,
			FixedCode:    fixed,
			Explanation:  "Annotated for manual follow-up: " + oneLine(is.Message),
			Confidence:   models.ConfidenceMedium,
			CanAutoApply: true,
		})
	}
	return fixes
}

func annotationPrefix(is models.Issue) string {
	switch is.NormalizedCategory() {
	case models.CategorySecurity:
		return "SECURITY:"
	case models.CategoryPerformance:
		return "PERF:"
	case models.CategoryBug:
		return "BUG:"
	case models.CategoryStyle:
		return "STYLE:"
	default:
		return "TODO:"
	}
}

func annotationText(is models.Issue) string {
	if s := oneLine(is.SuggestedFix); s != "" {
		return s
	}
	if s := oneLine(is.Message); s != "" {
		return s
	}
	return "review this code (" + is.ID + ")"
}

// oneLine joins the non-blank lines of s with single spaces so the text fits
// in one comment line. Single-line text is returned trimmed but otherwise
// verbatim.
func oneLine(s string) string {
	var parts []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " ")
}

func leadingIndent(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
