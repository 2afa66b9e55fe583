package fixgen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/protocolzero/codepolice/internal/ai"
	"github.com/protocolzero/codepolice/models"
)

// ParseResult is an oracle reply after shape validation: either Valid or
// Malformed. Nothing downstream reads the raw JSON.
type ParseResult interface {
	parseResult()
}

// Valid is a reply whose top-level "fixes" is an array. Elements that did not
// decode as a fix object are counted in Skipped.
type Valid struct {
	Fixes    []RawFix
	Skipped  int
	Repaired bool
}

// Malformed is a reply that has no usable "fixes" array.
type Malformed struct {
	Raw    string
	Reason string
}

func (Valid) parseResult()     {}
func (Malformed) parseResult() {}

// RawFix is one element of the oracle's "fixes" array. Optional fields are
// pointers or zero values so normalization can tell "missing" from "set".
type RawFix struct {
	IssueID      string     `json:"issueId"`
	FilePath     string     `json:"filePath"`
	StartLine    lineNumber `json:"startLine"`
	EndLine      lineNumber `json:"endLine"`
	OriginalCode string     `json:"originalCode"`
	FixedCode    *string    `json:"fixedCode"`
	Explanation  string     `json:"explanation"`
	Confidence   string     `json:"confidence"`
	CanAutoApply *bool      `json:"canAutoApply"`
}

// lineNumber accepts a JSON number, a numeric string, or null. Zero means
// the field was absent or unusable.
type lineNumber int

func (n *lineNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("line number %s: %w", b, err)
	}
	if f < 0 {
		f = 0
	}
	*n = lineNumber(int(f))
	return nil
}

// ParseResponse validates an oracle reply.
func ParseResponse(raw string) ParseResult {
	var envelope struct {
		Fixes json.RawMessage `json:"fixes"`
	}
	repaired, err := ai.DecodeJSONObject(raw, &envelope)
	if err != nil {
		return Malformed{Raw: raw, Reason: err.Error()}
	}
	if len(envelope.Fixes) == 0 || bytes.Equal(bytes.TrimSpace(envelope.Fixes), []byte("null")) {
		return Malformed{Raw: raw, Reason: `reply has no "fixes" field`}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(envelope.Fixes, &items); err != nil {
		return Malformed{Raw: raw, Reason: `"fixes" is not an array`}
	}

	v := Valid{Repaired: repaired}
	for _, item := range items {
		var f RawFix
		if err := json.Unmarshal(item, &f); err != nil {
			v.Skipped++
			continue
		}
		v.Fixes = append(v.Fixes, f)
	}
	return v
}

// normalize turns raw fixes into Fix records for filePath. Fixes that name
// no known issue or carry no fixedCode are dropped. Missing confidence and
// canAutoApply default to high and true; missing line numbers fall back to
// the issue's own range.
func normalize(raw []RawFix, issues []models.Issue, filePath string) (fixes []models.Fix, dropped int) {
	byID := make(map[string]models.Issue, len(issues))
	for _, is := range issues {
		byID[is.ID] = is
	}

	for _, r := range raw {
		issue, ok := byID[strings.TrimSpace(r.IssueID)]
		if !ok && len(issues) == 1 && r.IssueID == "" {
			issue, ok = issues[0], true
		}
		if !ok || r.FixedCode == nil {
			dropped++
			continue
		}

		f := models.Fix{
			IssueID:      issue.ID,
			FilePath:     filePath,
			StartLine:    int(r.StartLine),
			EndLine:      int(r.EndLine),
			OriginalCode: r.OriginalCode,
			FixedCode:    *r.FixedCode,
			Explanation:  strings.TrimSpace(r.Explanation),
			Confidence:   parseConfidence(r.Confidence),
			CanAutoApply: true,
		}
		if r.CanAutoApply != nil {
			f.CanAutoApply = *r.CanAutoApply
		}
		if f.StartLine == 0 {
			f.StartLine = issue.Line
		}
		if f.EndLine == 0 {
			if r.StartLine == 0 {
				f.EndLine = issue.LastLine()
			} else {
				f.EndLine = f.StartLine
			}
		}
		if f.EndLine < f.StartLine {
			f.EndLine = f.StartLine
		}
		if f.Explanation == "" {
			f.Explanation = issue.Message
		}
		fixes = append(fixes, f)
	}
	return fixes, dropped
}

func parseConfidence(s string) models.Confidence {
	switch models.Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case models.ConfidenceMedium:
		return models.ConfidenceMedium
	case models.ConfidenceLow:
		return models.ConfidenceLow
	default:
		return models.ConfidenceHigh
	}
}
