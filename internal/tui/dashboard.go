package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/protocolzero/codepolice/internal/agent"
)

// RunSource lists recorded auto-fix outcomes. *agent.DBRecorder satisfies it.
type RunSource interface {
	Recent(ctx context.Context, limit int) ([]agent.RunRecord, error)
}

const refreshEvery = 10 * time.Second

// DashboardModel shows the recent auto-fix runs and their totals.
type DashboardModel struct {
	src      RunSource
	runs     []agent.RunRecord
	err      error
	width    int
	height   int
	lastLoad time.Time
	loading  bool
}

// dashLoadedMsg carries loaded runs.
type dashLoadedMsg struct {
	runs []agent.RunRecord
	err  error
}

// dashTickMsg triggers a periodic reload.
type dashTickMsg struct{}

// NewDashboardModel creates a DashboardModel.
func NewDashboardModel(src RunSource) DashboardModel {
	return DashboardModel{src: src, loading: true}
}

func (d DashboardModel) Init() tea.Cmd {
	return d.loadCmd()
}

func (d DashboardModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		runs, err := d.src.Recent(ctx, 50)
		return dashLoadedMsg{runs: runs, err: err}
	}
}

func (d DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashLoadedMsg:
		d.runs = msg.runs
		d.err = msg.err
		d.loading = false
		d.lastLoad = time.Now()
		return d, tea.Tick(refreshEvery, func(time.Time) tea.Msg { return dashTickMsg{} })
	case dashTickMsg:
		return d, d.loadCmd()
	case tea.KeyMsg:
		if msg.String() == "r" {
			d.loading = true
			return d, d.loadCmd()
		}
	}
	return d, nil
}

func (d *DashboardModel) SetSize(w, h int) {
	d.width = w
	d.height = h
}

// totals sums the loaded runs.
func (d DashboardModel) totals() (opened, failed, fixes, files int) {
	for _, r := range d.runs {
		if r.Status == agent.RunStatusPROpened {
			opened++
		} else {
			failed++
		}
		fixes += r.FixesGenerated
		files += r.FilesChanged
	}
	return opened, failed, fixes, files
}

func (d DashboardModel) View() string {
	if d.loading && len(d.runs) == 0 {
		return panelStyle.Width(max(20, d.width-2)).Render("Loading runs...")
	}

	opened, failed, fixes, files := d.totals()
	cardW := 18
	if d.width >= 100 {
		cardW = 20
	}
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		renderCounter("PRs opened", opened, okStyle, cardW),
		renderCounter("Failed", failed, errStyle, cardW),
		renderCounter("Fixes", fixes, fixesStyle, cardW),
		renderCounter("Files", files, filesStyle, cardW),
	)

	lineLimit := d.height - 12
	if lineLimit < 5 {
		lineLimit = 5
	}
	var rows strings.Builder
	for i, r := range d.runs {
		if i >= lineLimit {
			break
		}
		detail := dimStyle.Render(truncate(r.Error, 48))
		if r.PRURL != "" {
			detail = lipgloss.NewStyle().Foreground(slate).Render(fmt.Sprintf("#%d %s", r.PRNumber, r.PRURL))
		}
		rows.WriteString(lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Width(34).Foreground(ink).Render(truncate(r.ProjectID, 32)),
			lipgloss.NewStyle().Width(10).Foreground(slate).Render(shortSHA(r.CommitSHA)),
			lipgloss.NewStyle().Width(14).Render(statusBadge(r.Status)),
			detail,
		))
		rows.WriteByte('\n')
	}
	switch {
	case d.err != nil:
		rows.Reset()
		rows.WriteString(errStyle.Render("Loading runs failed: " + d.err.Error()))
	case len(d.runs) == 0:
		rows.WriteString(dimStyle.Render("No runs yet. Run: codepolice scan --repo <url> --fix"))
	}

	updated := "never"
	if !d.lastLoad.IsZero() {
		updated = d.lastLoad.Format("15:04:05")
	}
	refreshInfo := lipgloss.JoinHorizontal(lipgloss.Left,
		keycapStyle.Render("r"),
		" ",
		dimStyle.Render("refresh"),
		"   ",
		dimStyle.Render("updated "+updated),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Padding(0, 1).Render(summary),
		panelStyle.Width(max(20, d.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("Recent Runs"),
				dimStyle.Render("Project                           Commit    Status        Result"),
				rows.String(),
				refreshInfo,
			),
		),
	)
}

func renderCounter(label string, count int, style lipgloss.Style, width int) string {
	return boxStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Center,
			style.Render(fmt.Sprintf("%d", count)),
			dimStyle.Render(strings.ToUpper(label)),
		),
	) + "  "
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n+1:]
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
