package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/de-monkey-v/hyper-team-sub000/internal/report"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

var (
	accentColor = lipgloss.Color("#A78BFA")
	mutedColor  = lipgloss.Color("#6B7280")
	errorColor  = lipgloss.Color("#F87171")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	sectionStyle = lipgloss.NewStyle().Bold(true)
	activeStyle  = sectionStyle.Foreground(accentColor).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
)

// View renders the monitor.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if !m.loaded && m.err == nil {
		b.WriteString(mutedStyle.Render("loading..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.sectionTitle("Members", focusMembers))
	b.WriteString("\n")
	b.WriteString(m.members.View())
	b.WriteString("\n\n")
	b.WriteString(m.sectionTitle("Tasks", focusTasks))
	b.WriteString("\n")
	b.WriteString(m.tasks.View())
	b.WriteString("\n")

	if len(m.snap.Cycles) > 0 {
		b.WriteString(errorStyle.Render(formatCycles(m.snap.Cycles)))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("refresh failed: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("hyperteam") + " " + sectionStyle.Render(m.team)
	if !m.loaded {
		return title
	}
	s := m.snap.Summary
	counts := fmt.Sprintf("%s %d  %s %d  %s %d  %s %d",
		statusText(taskgraph.StatusPending), s.Pending,
		statusText(taskgraph.StatusInProgress), s.InProgress,
		statusText(taskgraph.StatusCompleted), s.Completed,
		statusText(taskgraph.StatusCancelled), s.Cancelled,
	)
	updated := mutedStyle.Render("updated " + m.snap.Loaded.Format("15:04:05"))
	line := title + "  " + counts + "  " + updated
	if m.width > 0 {
		line = report.Truncate(line, m.width)
	}
	return line
}

func statusText(s taskgraph.Status) string {
	return lipgloss.NewStyle().Foreground(report.StatusColor(s)).Render(report.StatusIcon(s))
}

func (m Model) sectionTitle(name string, focus int) string {
	if m.focus == focus {
		return activeStyle.Render(name)
	}
	return sectionStyle.Render(name)
}

func (m Model) renderFooter() string {
	if m.showHelp {
		return mutedStyle.Render(strings.Join([]string{
			"tab      switch table",
			"↑/↓ j/k  move selection",
			"r        refresh now",
			"?        close help",
			"q        quit",
		}, "\n"))
	}
	return mutedStyle.Render("tab switch • r refresh • ? help • q quit")
}

func formatCycles(cycles [][]string) string {
	parts := make([]string, len(cycles))
	for i, c := range cycles {
		parts[i] = "[" + strings.Join(c, " → ") + "]"
	}
	return "dependency cycles: " + strings.Join(parts, " ")
}
