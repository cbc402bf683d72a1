package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/de-monkey-v/hyper-team-sub000/internal/report"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

// Pane focus
const (
	focusMembers = iota
	focusTasks
)

// Messages

type tickMsg time.Time

type busMsg struct{}

type snapshotMsg struct {
	snap Snapshot
	err  error
}

// Model is the monitor's bubbletea model.
type Model struct {
	team     string
	src      Source
	interval time.Duration
	events   <-chan struct{}

	snap   Snapshot
	err    error
	loaded bool

	members table.Model
	tasks   table.Model
	focus   int

	width    int
	height   int
	showHelp bool
}

// NewModel creates a monitor for team. events, when non-nil, triggers a
// reload whenever it receives.
func NewModel(team string, src Source, interval time.Duration, events <-chan struct{}) Model {
	if interval <= 0 {
		interval = time.Second
	}
	m := Model{
		team:     team,
		src:      src,
		interval: interval,
		events:   events,
		members:  newTable(memberColumns(80)),
		tasks:    newTable(taskColumns(80)),
	}
	m.members.Focus()
	return m
}

func newTable(cols []table.Column) table.Model {
	t := table.New(table.WithColumns(cols), table.WithHeight(5))
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(mutedColor).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(accentColor)
	t.SetStyles(s)
	return t
}

func memberColumns(width int) []table.Column {
	name := max(12, width-58)
	return []table.Column{
		{Title: "Member", Width: name},
		{Title: "Role", Width: 8},
		{Title: "State", Width: 18},
		{Title: "Backend", Width: 14},
		{Title: "Unread", Width: 6},
		{Title: "Tasks", Width: 5},
	}
}

func taskColumns(width int) []table.Column {
	subject := max(16, width-54)
	return []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Status", Width: 13},
		{Title: "Subject", Width: subject},
		{Title: "Owner", Width: 14},
		{Title: "Blocked by", Width: 14},
	}
}

// Commands

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) load() tea.Cmd {
	src, team := m.src, m.team
	return func() tea.Msg {
		snap, err := src.Load(context.Background(), team)
		return snapshotMsg{snap: snap, err: err}
	}
}

func waitForEvent(events <-chan struct{}) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-events; !ok {
			return nil
		}
		return busMsg{}
	}
}

// Init starts the first load, the refresh ticker and the event listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), tick(m.interval), waitForEvent(m.events))
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, tea.Batch(m.load(), tick(m.interval))

	case busMsg:
		return m, tea.Batch(m.load(), waitForEvent(m.events))

	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			m.snap = msg.snap
			m.loaded = true
			m.members.SetRows(memberRows(msg.snap.Members))
			m.tasks.SetRows(taskRows(msg.snap.Tasks))
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "shift+tab":
		m.toggleFocus()
		return m, nil
	case "r":
		return m, m.load()
	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	}

	var cmd tea.Cmd
	if m.focus == focusMembers {
		m.members, cmd = m.members.Update(msg)
	} else {
		m.tasks, cmd = m.tasks.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == focusMembers {
		m.focus = focusTasks
		m.members.Blur()
		m.tasks.Focus()
	} else {
		m.focus = focusMembers
		m.tasks.Blur()
		m.members.Focus()
	}
}

// layout splits the height between the two tables: a third for members.
func (m *Model) layout() {
	width := max(m.width-2, 40)
	m.members.SetColumns(memberColumns(width))
	m.tasks.SetColumns(taskColumns(width))
	m.members.SetWidth(width)
	m.tasks.SetWidth(width)

	// header, two section titles, footer, and table header borders
	avail := max(m.height-10, 4)
	memberHeight := max(avail/3, 2)
	m.members.SetHeight(memberHeight)
	m.tasks.SetHeight(max(avail-memberHeight, 2))
}

func memberRows(members []MemberRow) []table.Row {
	rows := make([]table.Row, 0, len(members))
	for _, mr := range members {
		unread := "-"
		if mr.Unread > 0 {
			unread = fmt.Sprintf("%d", mr.Unread)
		}
		rows = append(rows, table.Row{
			mr.Name,
			mr.Role,
			mr.State,
			mr.Backend,
			unread,
			fmt.Sprintf("%d", mr.Owned),
		})
	}
	return rows
}

func taskRows(tasks []taskgraph.Task) []table.Row {
	rows := make([]table.Row, 0, len(tasks))
	for _, t := range tasks {
		owner := t.Owner
		if owner == "" {
			owner = "-"
		}
		blocked := "-"
		if len(t.BlockedBy) > 0 {
			blocked = strings.Join(t.BlockedBy, ",")
		}
		rows = append(rows, table.Row{
			t.ID,
			report.StatusIcon(t.Status) + " " + t.Status.String(),
			t.Subject,
			owner,
			blocked,
		})
	}
	return rows
}
