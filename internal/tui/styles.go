package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent   = lipgloss.Color("#14B8A6") // teal
	green    = lipgloss.Color("#22C55E")
	yellow   = lipgloss.Color("#F59E0B")
	red      = lipgloss.Color("#EF4444")
	blue     = lipgloss.Color("#38BDF8")
	slate    = lipgloss.Color("#94A3B8")
	slateDim = lipgloss.Color("#64748B")
	panelBg  = lipgloss.Color("#111827")
	bgDark   = lipgloss.Color("#0B1220")
	line     = lipgloss.Color("#1F2937")
	ink      = lipgloss.Color("#E5E7EB")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ink).
			Background(bgDark).
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			BorderForeground(accent).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Background(panelBg).
			Padding(1, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Background(panelBg).
			Padding(1, 1)

	panelHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ink)

	mutedBadgeStyle = lipgloss.NewStyle().
			Foreground(slate).
			Background(bgDark).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Padding(0, 1)

	keycapStyle = lipgloss.NewStyle().
			Foreground(ink).
			Background(lipgloss.Color("#1E293B")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(line).
			Padding(0, 1)

	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(green)
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(red)
	fixesStyle = lipgloss.NewStyle().Bold(true).Foreground(blue)
	filesStyle = lipgloss.NewStyle().Bold(true).Foreground(yellow)

	dimStyle = lipgloss.NewStyle().Foreground(slateDim)
)

// statusBadge renders an auto-fix status as a coloured pill.
func statusBadge(status string) string {
	switch status {
	case "pr_opened":
		return lipgloss.NewStyle().Foreground(bgDark).Background(green).Padding(0, 1).Render("pr opened")
	case "failed":
		return lipgloss.NewStyle().Foreground(bgDark).Background(red).Padding(0, 1).Render(status)
	default:
		return mutedBadgeStyle.Render(status)
	}
}
