package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/de-monkey-v/hyper-team-sub000/internal/mailbox"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

// StateFunc reports a member's lifecycle state when a coordinator runs in
// the same process. ok is false when the state is unknown.
type StateFunc func(team, member string) (state string, ok bool)

// Source loads the data the monitor displays. Mail, Tasks and State are
// optional.
type Source struct {
	Registry *registry.Registry
	Mail     *mailbox.Store
	Tasks    taskgraph.Store
	State    StateFunc
}

// MemberRow is one line of the members table.
type MemberRow struct {
	Name    string
	Role    string
	State   string
	Backend string
	Unread  int
	Owned   int
}

// Snapshot is everything shown in one frame.
type Snapshot struct {
	Team    registry.Team
	Members []MemberRow
	Tasks   []taskgraph.Task
	Summary taskgraph.Summary
	Cycles  [][]string
	Loaded  time.Time
}

// Load reads the team's current state.
func (s Source) Load(ctx context.Context, team string) (Snapshot, error) {
	t, err := s.Registry.Get(team)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Team: t, Loaded: time.Now()}

	owned := make(map[string]int)
	if s.Tasks != nil {
		g, err := s.Tasks.Load(ctx, team)
		if err != nil {
			return Snapshot{}, err
		}
		for _, task := range g.Tasks() {
			if task.Archived {
				continue
			}
			snap.Tasks = append(snap.Tasks, task)
			if task.Owner != "" && !task.Status.IsTerminal() {
				owned[task.Owner]++
			}
		}
		snap.Summary = g.Summary()
		snap.Cycles = g.DetectCycles()
	}

	for _, m := range t.Members {
		row := MemberRow{
			Name:    m.Name,
			Role:    string(m.Role),
			State:   memberState(s.State, team, m),
			Backend: backendLabel(m.Backend),
			Owned:   owned[m.Name],
		}
		if s.Mail != nil {
			// An unreadable inbox shows as zero rather than failing the frame.
			row.Unread, _ = s.Mail.UnreadCount(team, m.Name)
		}
		snap.Members = append(snap.Members, row)
	}
	return snap, nil
}

func memberState(fn StateFunc, team string, m registry.Member) string {
	if fn != nil {
		if st, ok := fn(team, m.Name); ok {
			return st
		}
	}
	switch {
	case m.IsActive:
		return "active"
	case m.LeftAt != nil:
		return "terminated"
	default:
		return "inactive"
	}
}

func backendLabel(b registry.BackendRef) string {
	switch {
	case b.Pane != "":
		return b.Pane
	case b.PID != 0:
		return fmt.Sprintf("pid %d", b.PID)
	default:
		return "-"
	}
}
