package fixgen

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/protocolzero/codepolice/models"
)

const systemPrompt = "You are Code Police, a senior engineer who writes minimal, correct source fixes. " +
	"You reply with a single JSON object and nothing else."

// NumberLines prefixes every line with its 1-indexed number, right-aligned
// to the width of the largest number.
func NumberLines(content string) string {
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	width := len(strconv.Itoa(len(lines)))
	var b strings.Builder
	b.Grow(len(content) + len(lines)*(width+3))
	for i, l := range lines {
		fmt.Fprintf(&b, "%*d | %s\n", width, i+1, strings.TrimSuffix(l, "\r"))
	}
	return b.String()
}

type promptIssue struct {
	ID           string `json:"id"`
	Line         int    `json:"line"`
	EndLine      int    `json:"endLine"`
	Severity     string `json:"severity"`
	Category     string `json:"category"`
	Message      string `json:"message"`
	Explanation  string `json:"explanation,omitempty"`
	SuggestedFix string `json:"suggestedFix,omitempty"`
}

func issuesJSON(issues []models.Issue) string {
	out := make([]promptIssue, 0, len(issues))
	for _, is := range issues {
		out = append(out, promptIssue{
			ID:           is.ID,
			Line:         is.Line,
			EndLine:      is.LastLine(),
			Severity:     string(is.Severity),
			Category:     is.Category,
			Message:      is.Message,
			Explanation:  is.Explanation,
			SuggestedFix: is.SuggestedFix,
		})
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	return string(b)
}

const responseSchema = `{
  "fixes": [
    {
      "issueId": "<id from the issue list>",
      "filePath": "<path>",
      "startLine": <first line replaced, 1-indexed, inclusive>,
      "endLine": <last line replaced, 1-indexed, inclusive>,
      "originalCode": "<exact text of lines startLine..endLine, without line numbers>",
      "fixedCode": "<replacement text for exactly those lines>",
      "explanation": "<one sentence>",
      "confidence": "high" | "medium" | "low",
      "canAutoApply": true | false
    }
  ]
}`

// buildPrompt renders the user prompt for one attempt. Attempt 1 is the
// precise prompt; later attempts tell the model the previous reply produced
// nothing usable.
func buildPrompt(req Request, numbered string, attempt int) string {
	var b strings.Builder
	if attempt > 1 {
		fmt.Fprintf(&b, "RETRY %d: your previous answer contained ZERO usable fixes. ", attempt-1)
		b.WriteString("That is not acceptable. Pick a different, smaller line range or a single line, ")
		b.WriteString("and return a fix for EVERY issue below.\n\n")
	}
	fmt.Fprintf(&b, "FILE: %s\nLANGUAGE: %s\n\n", req.FilePath, req.Language)
	b.WriteString("The file is shown with line numbers (\"N | code\"). The numbers are NOT part of the code.\n\n")
	b.WriteString("```\n")
	b.WriteString(numbered)
	b.WriteString("```\n\n")
	b.WriteString("ISSUES:\n")
	b.WriteString(issuesJSON(req.Issues))
	b.WriteString("\n\nRULES:\n")
	b.WriteString("1. Every issue MUST receive a fix. Declaring an issue unfixable is not allowed.\n")
	b.WriteString("2. startLine/endLine refer to the numbered lines above and must cover exactly the code you replace.\n")
	b.WriteString("3. fixedCode replaces those lines completely; keep surrounding code untouched and do not include line numbers.\n")
	b.WriteString("4. Keep the change minimal and in the file's existing style.\n")
	b.WriteString("5. If two issues touch the same lines, return one fix covering both and use the first issue's id.\n\n")
	b.WriteString("Respond ONLY with JSON in this shape, no markdown fences:\n")
	b.WriteString(responseSchema)
	b.WriteString("\n")
	return b.String()
}
