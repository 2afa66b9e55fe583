package models

import "strings"

// Severity is the severity of a detected code issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// DefaultSeverityFilter is the set of severities auto-fixed when a trigger
// does not name its own filter.
var DefaultSeverityFilter = []Severity{SeverityCritical, SeverityHigh, SeverityMedium}

// Weight returns a numeric weight for sorting (higher = more severe).
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	return s.Weight() > 0
}

// ParseSeverity normalises analyzer- or model-specific severity strings.
// Unknown values map to info so they are never auto-fixed by default.
func ParseSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "blocker":
		return SeverityCritical
	case "high", "error", "major":
		return SeverityHigh
	case "medium", "moderate", "warning":
		return SeverityMedium
	case "low", "minor":
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// ParseSeverities converts a list of raw filter strings, dropping duplicates.
func ParseSeverities(raw []string) []Severity {
	seen := make(map[Severity]bool, len(raw))
	out := make([]Severity, 0, len(raw))
	for _, r := range raw {
		s := ParseSeverity(r)
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
