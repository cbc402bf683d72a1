package report

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

var (
	pendingColor    = lipgloss.Color("#9CA3AF") // gray
	inProgressColor = lipgloss.Color("#F59E0B") // amber
	completedColor  = lipgloss.Color("#10B981") // green
	cancelledColor  = lipgloss.Color("#F87171") // red
	mutedColor      = lipgloss.Color("#6B7280")
	accentColor     = lipgloss.Color("#A78BFA") // violet

	idStyle     = lipgloss.NewStyle().Foreground(mutedColor)
	ownerStyle  = lipgloss.NewStyle().Foreground(accentColor)
	branchStyle = lipgloss.NewStyle().Foreground(mutedColor)
	noteStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
)

// StatusColor returns the display color of a task status.
func StatusColor(s taskgraph.Status) lipgloss.Color {
	switch s {
	case taskgraph.StatusInProgress:
		return inProgressColor
	case taskgraph.StatusCompleted:
		return completedColor
	case taskgraph.StatusCancelled:
		return cancelledColor
	default:
		return pendingColor
	}
}

// StatusIcon returns a one-cell marker for a task status.
func StatusIcon(s taskgraph.Status) string {
	switch s {
	case taskgraph.StatusInProgress:
		return "◐"
	case taskgraph.StatusCompleted:
		return "●"
	case taskgraph.StatusCancelled:
		return "✕"
	default:
		return "○"
	}
}

// Truncate shortens s to maxWidth terminal columns, adding "..." when it
// cuts. Escape sequences and wide characters are measured correctly.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return s
	}
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of the terminal behind f, or fallback
// when f is not a terminal.
func TerminalWidth(f *os.File, fallback int) int {
	if !IsTerminal(f) {
		return fallback
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

type painter struct{ color bool }

func (p painter) paint(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}
