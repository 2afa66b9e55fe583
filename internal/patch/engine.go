// Package patch applies line-anchored fixes to file contents.
//
// Line numbers are the authoritative locator. A fix whose range is invalid
// for the current text falls back to matching its original code; a fix that
// changes nothing by either route is reported as failed, never applied
// partially.
package patch

import (
	"sort"
	"strings"

	"github.com/protocolzero/codepolice/models"
)

// minTrimmedMatchLen is the shortest single line (after trimming) that may be
// located by trimmed-line matching. Shorter lines such as "}" or "return nil"
// match too often to be trusted.
const minTrimmedMatchLen = 10

// ApplyFix applies a single fix to content. It returns the new content and
// whether the fix changed anything. On failure content is returned unchanged.
func ApplyFix(content string, fix models.Fix) (string, bool) {
	if out, ok := applyLineAnchored(content, fix); ok && out != content {
		return out, true
	}
	if out, ok := applyStringMatch(content, fix); ok && out != content {
		return out, true
	}
	return content, false
}

// ApplyMultipleFixes applies fixes to one file's content, bottom of the file
// first, so that ranges of fixes not yet applied keep pointing at the lines
// the oracle saw. Bounds are re-checked before every fix; a fix that no longer
// fits is recorded in FailedFixes.
func ApplyMultipleFixes(path, content string, fixes []models.Fix) models.FilePatchResult {
	res := models.FilePatchResult{Path: path, NewContent: content}
	if len(fixes) == 0 {
		return res
	}

	ordered := make([]models.Fix, len(fixes))
	copy(ordered, fixes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartLine > ordered[j].StartLine
	})

	current := content
	for _, f := range ordered {
		next, ok := ApplyFix(current, f)
		if !ok {
			res.FailedFixes = append(res.FailedFixes, f)
			continue
		}
		current = next
		res.AppliedFixCount++
	}
	res.NewContent = current
	return res
}

// applyLineAnchored replaces lines StartLine..EndLine with the re-indented
// fixed code. ok is false when the range is invalid for content.
func applyLineAnchored(content string, fix models.Fix) (string, bool) {
	doc := splitDocument(content)
	if fix.StartLine < 1 || fix.EndLine < fix.StartLine || fix.EndLine > doc.total() {
		return "", false
	}

	ref := leadingWhitespace(doc.lines[fix.StartLine-1])
	return doc.splice(fix.StartLine-1, fix.EndLine, reindent(fixedLines(fix.FixedCode), ref)), true
}

// applyStringMatch locates the fix by its original code: an exact substring
// first, then, for a single non-trivial line, a whitespace-insensitive line
// match that keeps that line's indentation.
func applyStringMatch(content string, fix models.Fix) (string, bool) {
	orig := strings.ReplaceAll(fix.OriginalCode, "\r\n", "\n")
	if strings.TrimSpace(orig) == "" {
		return "", false
	}

	fixed := strings.ReplaceAll(fix.FixedCode, "\r\n", "\n")
	doc := splitDocument(content)
	if doc.crlf {
		orig = strings.ReplaceAll(orig, "\n", "\r\n")
		fixed = strings.ReplaceAll(fixed, "\n", "\r\n")
	}
	if strings.Contains(content, orig) {
		return strings.Replace(content, orig, fixed, 1), true
	}

	target := strings.TrimSpace(fix.OriginalCode)
	if strings.Contains(target, "\n") || len(target) <= minTrimmedMatchLen {
		return "", false
	}
	for i, line := range doc.lines[:doc.total()] {
		if strings.TrimSpace(line) != target {
			continue
		}
		return doc.splice(i, i+1, reindent(fixedLines(fix.FixedCode), leadingWhitespace(line))), true
	}
	return "", false
}

// reindent gives the first line the reference indentation and raises any
// later non-blank line that is indented less than it. Blank lines stay blank.
func reindent(lines []string, ref string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		switch {
		case strings.TrimSpace(l) == "":
			out[i] = ""
		case i == 0:
			out[i] = ref + strings.TrimLeft(l, " \t")
		case len(leadingWhitespace(l)) < len(ref):
			out[i] = ref + strings.TrimLeft(l, " \t")
		default:
			out[i] = l
		}
	}
	return out
}

// fixedLines splits fixed code into lines. Trailing newlines are dropped and
// an empty fix yields no lines, deleting the range.
func fixedLines(code string) []string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	code = strings.TrimRight(code, "\n")
	if code == "" {
		return nil
	}
	return strings.Split(code, "\n")
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// document is a file split on "\n". A trailing newline leaves an empty last
// element that is not counted as a line.
type document struct {
	lines    []string
	trailing bool
	crlf     bool
}

func splitDocument(content string) document {
	return document{
		lines:    strings.Split(content, "\n"),
		trailing: strings.HasSuffix(content, "\n"),
		crlf:     strings.Contains(content, "\r\n"),
	}
}

func (d document) total() int {
	if d.trailing {
		return len(d.lines) - 1
	}
	return len(d.lines)
}

// splice replaces lines[from:to] with repl and joins the result. In CRLF
// files replacement lines get their "\r" back, except a new last line of a
// file that had no trailing newline.
func (d document) splice(from, to int, repl []string) string {
	atEOF := to == d.total() && !d.trailing
	if d.crlf {
		out := make([]string, len(repl))
		for i, l := range repl {
			if atEOF && i == len(repl)-1 {
				out[i] = l
				continue
			}
			out[i] = l + "\r"
		}
		repl = out
	}

	lines := make([]string, 0, len(d.lines)-(to-from)+len(repl))
	lines = append(lines, d.lines[:from]...)
	lines = append(lines, repl...)
	lines = append(lines, d.lines[to:]...)
	if atEOF && len(repl) == 0 && from > 0 {
		// Deleting the final lines leaves the previous line last.
		lines[from-1] = strings.TrimSuffix(lines[from-1], "\r")
	}
	return strings.Join(lines, "\n")
}
