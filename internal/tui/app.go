// Package tui is the terminal dashboard for recorded auto-fix runs.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// App is the root bubbletea model.
type App struct {
	width     int
	height    int
	dashboard DashboardModel
}

// NewApp creates the TUI application.
func NewApp(src RunSource) *App {
	return &App{dashboard: NewDashboardModel(src)}
}

// Run starts the bubbletea program.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.dashboard.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.dashboard.SetSize(max(20, msg.Width-2), max(8, msg.Height-6))
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		}
	}

	var cmd tea.Cmd
	a.dashboard, cmd = a.dashboard.Update(msg)
	return a, cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(line).
		Width(a.width).
		Padding(0, 1).
		Render(lipgloss.JoinHorizontal(lipgloss.Left,
			titleStyle.Render("codepolice"),
			"  ",
			dimStyle.Render("auto-fix runs"),
		))

	content := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		MaxHeight(max(1, a.height-4)).
		Render(a.dashboard.View())

	status := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Foreground(slateDim).
		Render("r refresh  q quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, content, status)
}
