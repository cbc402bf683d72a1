package report

import (
	"context"
	"sort"

	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/process"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
)

// StaleMember is an active member whose pane no longer exists.
type StaleMember struct {
	Team   string `json:"team" yaml:"team"`
	Member string `json:"member" yaml:"member"`
	Pane   string `json:"pane" yaml:"pane"`
}

// Orphans lists disagreements between the registry and the pane manager.
type Orphans struct {
	// StaleMembers are registered as active but have no live pane.
	StaleMembers []StaleMember `json:"staleMembers" yaml:"staleMembers"`
	// OrphanPanes are live panes no active member points to.
	OrphanPanes []process.Handle `json:"orphanPanes" yaml:"orphanPanes"`
}

// Empty reports whether nothing was found.
func (o Orphans) Empty() bool {
	return len(o.StaleMembers) == 0 && len(o.OrphanPanes) == 0
}

// FindOrphans cross-checks every team's active members against the panes
// the manager reports.
func FindOrphans(ctx context.Context, reg *registry.Registry, procs process.Manager) (Orphans, error) {
	teams, err := reg.List()
	if err != nil {
		return Orphans{}, err
	}
	panes, err := procs.List(ctx)
	if err != nil {
		return Orphans{}, err
	}

	live := make(map[string]bool, len(panes))
	for _, h := range panes {
		live[h.Pane] = true
	}

	out := Orphans{StaleMembers: []StaleMember{}, OrphanPanes: []process.Handle{}}
	claimed := make(map[string]bool)
	for _, t := range teams {
		for _, m := range t.ActiveMembers() {
			if m.Backend.Kind == registry.BackendCoordinator {
				continue
			}
			pane := m.Backend.Pane
			if pane == "" {
				pane = naming.PaneName(t.Name, m.Name)
			}
			claimed[pane] = true
			if !live[pane] {
				out.StaleMembers = append(out.StaleMembers, StaleMember{Team: t.Name, Member: m.Name, Pane: pane})
			}
		}
	}
	for _, h := range panes {
		if !claimed[h.Pane] {
			out.OrphanPanes = append(out.OrphanPanes, h)
		}
	}

	sort.Slice(out.StaleMembers, func(i, j int) bool {
		a, b := out.StaleMembers[i], out.StaleMembers[j]
		if a.Team != b.Team {
			return a.Team < b.Team
		}
		return a.Member < b.Member
	})
	sort.Slice(out.OrphanPanes, func(i, j int) bool { return out.OrphanPanes[i].Pane < out.OrphanPanes[j].Pane })
	return out, nil
}
