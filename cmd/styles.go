package cmd

import "github.com/charmbracelet/lipgloss"

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var errorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#EF4444"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

// severityStyle colours a severity label in table output.
func severityStyle(sev string) lipgloss.Style {
	switch sev {
	case "critical":
		return errorStyle.Bold(true)
	case "high":
		return errorStyle
	case "medium":
		return warnStyle
	default:
		return dimStyle
	}
}
