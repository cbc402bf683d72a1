package report

import (
	"fmt"
	"strings"

	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

// RenderDOT exports g as a Graphviz digraph. Edges point from blocker to
// blocked task. Archived tasks are left out.
func RenderDOT(g *taskgraph.Graph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", quote(g.Team()))
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white];\n")

	visible := make(map[string]bool)
	tasks := g.Tasks()
	for _, t := range tasks {
		if t.Archived {
			continue
		}
		visible[t.ID] = true
		label := t.ID + "\\n" + escape(t.Subject)
		if t.Owner != "" {
			label += "\\n@" + escape(t.Owner)
		}
		fmt.Fprintf(&b, "  %s [label=\"%s\", color=%s];\n", quote(t.ID), label, quote(string(StatusColor(t.Status))))
	}
	for _, t := range tasks {
		if !visible[t.ID] {
			continue
		}
		for _, blocked := range t.Blocks {
			if visible[blocked] {
				fmt.Fprintf(&b, "  %s -> %s;\n", quote(t.ID), quote(blocked))
			}
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func quote(s string) string {
	return `"` + escape(s) + `"`
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s)
}
