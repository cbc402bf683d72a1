package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

// TreeOptions control RenderTree.
type TreeOptions struct {
	// Width truncates each line to this many columns. Zero disables it.
	Width int
	// Color styles the output with lipgloss.
	Color bool
	// ShowArchived includes archived tasks.
	ShowArchived bool
}

// RenderTree draws the dependency forest of g: each root task with the
// tasks it blocks beneath it. A task with several blockers is drawn in
// full under the first and referenced under the others. Tasks reachable
// from no root, which only happens inside a cycle, are listed last.
func RenderTree(g *taskgraph.Graph, opts TreeOptions) string {
	tasks := make(map[string]taskgraph.Task)
	var order []string
	for _, t := range g.Tasks() {
		if t.Archived && !opts.ShowArchived {
			continue
		}
		tasks[t.ID] = t
		order = append(order, t.ID)
	}

	r := treeRenderer{
		tasks:   tasks,
		opts:    opts,
		p:       painter{color: opts.Color},
		printed: make(map[string]bool),
	}

	if len(order) == 0 {
		return r.p.paint(noteStyle, "(no tasks)") + "\n"
	}

	for _, id := range order {
		if len(r.visibleBlockers(tasks[id])) == 0 {
			r.node(id, "", "", map[string]bool{})
		}
	}

	var rest []string
	for _, id := range order {
		if !r.printed[id] {
			rest = append(rest, id)
		}
	}
	if len(rest) > 0 {
		r.line(r.p.paint(headerStyle, "Unreachable (cyclic):"))
		for _, id := range rest {
			if !r.printed[id] {
				r.node(id, "", "", map[string]bool{})
			}
		}
	}
	return r.b.String()
}

type treeRenderer struct {
	tasks   map[string]taskgraph.Task
	opts    TreeOptions
	p       painter
	printed map[string]bool
	b       strings.Builder
}

func (r *treeRenderer) visibleBlockers(t taskgraph.Task) []string {
	var out []string
	for _, id := range t.BlockedBy {
		if _, ok := r.tasks[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// node prints id with prefix for its own line and childPrefix for the
// lines of its children. path holds the ancestors, to stop at cycles.
func (r *treeRenderer) node(id, prefix, childPrefix string, path map[string]bool) {
	t := r.tasks[id]
	switch {
	case path[id]:
		r.line(r.p.paint(branchStyle, prefix) + r.label(t) + " " + r.p.paint(noteStyle, "(cycle)"))
		return
	case r.printed[id]:
		r.line(r.p.paint(branchStyle, prefix) + r.label(t) + " " + r.p.paint(noteStyle, "(see above)"))
		return
	}
	r.printed[id] = true
	r.line(r.p.paint(branchStyle, prefix) + r.label(t))

	var children []string
	for _, c := range t.Blocks {
		if _, ok := r.tasks[c]; ok {
			children = append(children, c)
		}
	}
	path[id] = true
	for i, c := range children {
		branch, next := "├── ", "│   "
		if i == len(children)-1 {
			branch, next = "└── ", "    "
		}
		r.node(c, childPrefix+branch, childPrefix+next, path)
	}
	delete(path, id)
}

func (r *treeRenderer) label(t taskgraph.Task) string {
	status := lipgloss.NewStyle().Foreground(StatusColor(t.Status))
	parts := []string{
		r.p.paint(status, StatusIcon(t.Status)),
		r.p.paint(idStyle, "#"+t.ID),
		t.Subject,
	}
	if t.Owner != "" {
		parts = append(parts, r.p.paint(ownerStyle, "@"+t.Owner))
	}
	if t.Status != taskgraph.StatusPending {
		parts = append(parts, r.p.paint(status, fmt.Sprintf("[%s]", t.Status)))
	}
	if t.Archived {
		parts = append(parts, r.p.paint(noteStyle, "(archived)"))
	}
	return strings.Join(parts, " ")
}

func (r *treeRenderer) line(s string) {
	r.b.WriteString(Truncate(s, r.opts.Width))
	r.b.WriteByte('\n')
}
