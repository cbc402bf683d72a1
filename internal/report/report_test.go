package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
	"github.com/de-monkey-v/hyper-team-sub000/internal/testutil"
)

func newGraph(t *testing.T) *taskgraph.Graph {
	t.Helper()
	n := 0
	return taskgraph.New("alpha", taskgraph.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}))
}

func mustAdd(t *testing.T, g *taskgraph.Graph, subject, owner string) string {
	t.Helper()
	id, err := g.AddTask(subject, owner)
	if err != nil {
		t.Fatalf("AddTask(%q) error = %v", subject, err)
	}
	return id
}

func mustEdge(t *testing.T, g *taskgraph.Graph, blocker, blocked string) {
	t.Helper()
	if err := g.AddBlockingEdge(blocker, blocked); err != nil {
		t.Fatalf("AddBlockingEdge(%s, %s) error = %v", blocker, blocked, err)
	}
}

func TestRenderTree(t *testing.T) {
	g := newGraph(t)
	a := mustAdd(t, g, "design", "w1")
	b := mustAdd(t, g, "build", "")
	c := mustAdd(t, g, "test", "")
	mustAdd(t, g, "docs", "")
	mustEdge(t, g, a, b)
	mustEdge(t, g, a, c)
	mustEdge(t, g, b, c)
	if err := g.SetStatus(a, taskgraph.StatusInProgress); err != nil {
		t.Fatal(err)
	}

	got := RenderTree(g, TreeOptions{})
	want := strings.Join([]string{
		"◐ #t1 design @w1 [in_progress]",
		"├── ○ #t2 build",
		"│   └── ○ #t3 test",
		"└── ○ #t3 test (see above)",
		"○ #t4 docs",
		"",
	}, "\n")
	if got != want {
		t.Errorf("RenderTree() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderTree_EmptyAndArchived(t *testing.T) {
	g := newGraph(t)
	if got := RenderTree(g, TreeOptions{}); got != "(no tasks)\n" {
		t.Errorf("empty RenderTree() = %q", got)
	}

	id := mustAdd(t, g, "old", "")
	if err := g.Archive(id); err != nil {
		t.Fatal(err)
	}
	if got := RenderTree(g, TreeOptions{}); got != "(no tasks)\n" {
		t.Errorf("archived hidden RenderTree() = %q", got)
	}
	if got := RenderTree(g, TreeOptions{ShowArchived: true}); !strings.Contains(got, "(archived)") {
		t.Errorf("ShowArchived RenderTree() = %q", got)
	}
}

func TestRenderTree_Cycle(t *testing.T) {
	snap := taskgraph.Snapshot{Team: "alpha", Tasks: []taskgraph.Task{
		{ID: "a", Subject: "A", Status: taskgraph.StatusPending, Blocks: []string{"b"}, BlockedBy: []string{"b"}},
		{ID: "b", Subject: "B", Status: taskgraph.StatusPending, Blocks: []string{"a"}, BlockedBy: []string{"a"}},
	}}
	g, err := taskgraph.FromSnapshot(snap)
	if err != nil {
		t.Fatalf("FromSnapshot() error = %v", err)
	}

	got := RenderTree(g, TreeOptions{})
	for _, want := range []string{"Unreachable (cyclic):", "○ #a A", "└── ○ #b B", "(cycle)"} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderTree() missing %q:\n%s", want, got)
		}
	}
}

func TestRenderTree_Width(t *testing.T) {
	g := newGraph(t)
	mustAdd(t, g, strings.Repeat("x", 50), "")
	for _, line := range strings.Split(strings.TrimSpace(RenderTree(g, TreeOptions{Width: 20})), "\n") {
		if w := len([]rune(line)); w > 20 {
			t.Errorf("line %q is %d columns, want <= 20", line, w)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 2, "..."},
		{"hello", 0, "hello"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestRenderDOT(t *testing.T) {
	g := newGraph(t)
	a := mustAdd(t, g, `say "hi"`, "w1")
	b := mustAdd(t, g, "reply", "")
	c := mustAdd(t, g, "gone", "")
	mustEdge(t, g, a, b)
	mustEdge(t, g, b, c)
	if err := g.Archive(c); err != nil {
		t.Fatal(err)
	}

	got := RenderDOT(g)
	for _, want := range []string{
		`digraph "alpha" {`,
		`"t1" [label="t1\nsay \"hi\"\n@w1"`,
		`"t1" -> "t2";`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderDOT() missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, `"t3"`) {
		t.Errorf("archived task rendered:\n%s", got)
	}
}

func TestFindOrphans(t *testing.T) {
	reg := registry.New(t.TempDir())
	procs := testutil.NewFakeManager()
	if _, err := reg.CreateTeam("alpha", ""); err != nil {
		t.Fatal(err)
	}

	live := procs.AddPane("alpha", "live")
	procs.AddPane("beta", "stray")
	members := []registry.Member{
		{Name: naming.LeadName, Role: registry.RoleLead, IsActive: true,
			Backend: registry.BackendRef{Kind: registry.BackendCoordinator, PID: 1}},
		{Name: "live", IsActive: true, Backend: registry.BackendRef{Kind: registry.BackendTmux, Pane: live.Pane}},
		{Name: "dead", IsActive: true, Backend: registry.BackendRef{Kind: registry.BackendTmux, Pane: naming.PaneName("alpha", "dead")}},
		{Name: "left"},
	}
	for _, m := range members {
		if err := reg.AddMember("alpha", m); err != nil {
			t.Fatalf("AddMember(%s) error = %v", m.Name, err)
		}
	}

	got, err := FindOrphans(context.Background(), reg, procs)
	if err != nil {
		t.Fatalf("FindOrphans() error = %v", err)
	}
	if len(got.StaleMembers) != 1 || got.StaleMembers[0].Member != "dead" {
		t.Errorf("StaleMembers = %+v, want [dead]", got.StaleMembers)
	}
	if len(got.OrphanPanes) != 1 || got.OrphanPanes[0].Member != "stray" {
		t.Errorf("OrphanPanes = %+v, want [stray]", got.OrphanPanes)
	}
	if got.Empty() {
		t.Error("Empty() = true")
	}
}

func TestEncode(t *testing.T) {
	v := StaleMember{Team: "alpha", Member: "m1", Pane: "p"}

	var j bytes.Buffer
	if err := Encode(&j, FormatJSON, v); err != nil {
		t.Fatalf("Encode(json) error = %v", err)
	}
	if !strings.Contains(j.String(), `"member": "m1"`) {
		t.Errorf("json = %s", j.String())
	}

	var y bytes.Buffer
	if err := Encode(&y, FormatYAML, v); err != nil {
		t.Fatalf("Encode(yaml) error = %v", err)
	}
	if y.String() != "team: alpha\nmember: m1\npane: p\n" {
		t.Errorf("yaml = %q", y.String())
	}

	if err := Encode(&y, "xml", v); err == nil {
		t.Error("expected error for unknown format")
	}
}
