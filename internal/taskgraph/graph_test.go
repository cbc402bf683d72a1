package taskgraph

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/event"
)

func newTestGraph(t *testing.T, opts ...Option) *Graph {
	t.Helper()
	n := 0
	base := []Option{
		WithIDGenerator(func() string { n++; return fmt.Sprintf("t%d", n) }),
		WithClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }),
	}
	return New("alpha", append(base, opts...)...)
}

func mustAdd(t *testing.T, g *Graph, subject string) string {
	t.Helper()
	id, err := g.AddTask(subject, "")
	if err != nil {
		t.Fatalf("AddTask(%q) error = %v", subject, err)
	}
	return id
}

func mustEdge(t *testing.T, g *Graph, blocker, blocked string) {
	t.Helper()
	if err := g.AddBlockingEdge(blocker, blocked); err != nil {
		t.Fatalf("AddBlockingEdge(%s, %s) error = %v", blocker, blocked, err)
	}
}

func TestAddTask(t *testing.T) {
	g := newTestGraph(t)

	id, err := g.AddTask("write docs", "ann")
	if err != nil {
		t.Fatalf("AddTask() error = %v", err)
	}
	task, err := g.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if task.Status != StatusPending {
		t.Errorf("Status = %s, want pending", task.Status)
	}
	if task.Owner != "ann" || task.Team != "alpha" {
		t.Errorf("task = %+v", task)
	}
	if task.Blocks == nil || task.BlockedBy == nil {
		t.Error("edge slices should be non-nil")
	}

	if _, err := g.AddTask("   ", ""); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("AddTask(blank) error = %v, want ErrInvalidInput", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	g := newTestGraph(t)
	_, err := g.Get("nope")
	if !errors.Is(err, errors.ErrTaskNotFound) {
		t.Errorf("Get() error = %v, want ErrTaskNotFound", err)
	}
}

func TestAddBlockingEdge_Symmetric(t *testing.T) {
	g := newTestGraph(t)
	a, b := mustAdd(t, g, "a"), mustAdd(t, g, "b")

	mustEdge(t, g, a, b)
	mustEdge(t, g, a, b) // duplicate is a no-op

	ta, _ := g.Get(a)
	tb, _ := g.Get(b)
	if !slices.Equal(ta.Blocks, []string{b}) {
		t.Errorf("a.Blocks = %v, want [%s]", ta.Blocks, b)
	}
	if !slices.Equal(tb.BlockedBy, []string{a}) {
		t.Errorf("b.BlockedBy = %v, want [%s]", tb.BlockedBy, a)
	}
}

func TestAddBlockingEdge_Errors(t *testing.T) {
	g := newTestGraph(t)
	a, b, c := mustAdd(t, g, "a"), mustAdd(t, g, "b"), mustAdd(t, g, "c")
	mustEdge(t, g, a, b)
	mustEdge(t, g, b, c)

	tests := []struct {
		name             string
		blocker, blocked string
		want             error
	}{
		{"self edge", a, a, errors.ErrWouldCreateCycle},
		{"direct cycle", b, a, errors.ErrWouldCreateCycle},
		{"transitive cycle", c, a, errors.ErrWouldCreateCycle},
		{"missing blocker", "zz", a, errors.ErrTaskNotFound},
		{"missing blocked", a, "zz", errors.ErrTaskNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := g.Snapshot()
			err := g.AddBlockingEdge(tt.blocker, tt.blocked)
			if !errors.Is(err, tt.want) {
				t.Fatalf("AddBlockingEdge() error = %v, want %v", err, tt.want)
			}
			after := g.Snapshot()
			for i := range before.Tasks {
				if !slices.Equal(before.Tasks[i].Blocks, after.Tasks[i].Blocks) ||
					!slices.Equal(before.Tasks[i].BlockedBy, after.Tasks[i].BlockedBy) {
					t.Errorf("graph mutated on rejected edge: task %s", before.Tasks[i].ID)
				}
			}
		})
	}

	if cycles := g.DetectCycles(); len(cycles) != 0 {
		t.Errorf("DetectCycles() = %v, want none", cycles)
	}
}

func TestRemoveBlockingEdge(t *testing.T) {
	g := newTestGraph(t)
	a, b := mustAdd(t, g, "a"), mustAdd(t, g, "b")
	mustEdge(t, g, a, b)

	if err := g.RemoveBlockingEdge(a, b); err != nil {
		t.Fatalf("RemoveBlockingEdge() error = %v", err)
	}
	if err := g.RemoveBlockingEdge(a, b); err != nil {
		t.Fatalf("RemoveBlockingEdge() on absent edge error = %v", err)
	}
	ta, _ := g.Get(a)
	tb, _ := g.Get(b)
	if len(ta.Blocks) != 0 || len(tb.BlockedBy) != 0 {
		t.Errorf("edge not removed: a.Blocks=%v b.BlockedBy=%v", ta.Blocks, tb.BlockedBy)
	}
	if err := g.RemoveBlockingEdge(a, "zz"); !errors.Is(err, errors.ErrTaskNotFound) {
		t.Errorf("RemoveBlockingEdge(missing) error = %v", err)
	}
}

func TestSetStatus_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		path  []Status
		final Status
		ok    bool
	}{
		{"pending to in_progress", nil, StatusInProgress, true},
		{"pending to pending is no-op", nil, StatusPending, true},
		{"pending to completed", nil, StatusCompleted, false},
		{"pending to cancelled", nil, StatusCancelled, false},
		{"in_progress to completed", []Status{StatusInProgress}, StatusCompleted, true},
		{"in_progress to cancelled", []Status{StatusInProgress}, StatusCancelled, true},
		{"in_progress to pending", []Status{StatusInProgress}, StatusPending, false},
		{"completed to completed is no-op", []Status{StatusInProgress, StatusCompleted}, StatusCompleted, true},
		{"completed to in_progress", []Status{StatusInProgress, StatusCompleted}, StatusInProgress, false},
		{"cancelled to completed", []Status{StatusInProgress, StatusCancelled}, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGraph(t)
			id := mustAdd(t, g, "x")
			for _, s := range tt.path {
				if err := g.SetStatus(id, s); err != nil {
					t.Fatalf("setup SetStatus(%s) error = %v", s, err)
				}
			}
			before, _ := g.Get(id)

			err := g.SetStatus(id, tt.final)
			if tt.ok && err != nil {
				t.Fatalf("SetStatus(%s) error = %v", tt.final, err)
			}
			if !tt.ok {
				if !errors.Is(err, errors.ErrInvalidTransition) {
					t.Fatalf("SetStatus(%s) error = %v, want ErrInvalidTransition", tt.final, err)
				}
				after, _ := g.Get(id)
				if after.Status != before.Status {
					t.Errorf("status changed on rejected transition: %s -> %s", before.Status, after.Status)
				}
			}
		})
	}
}

func TestSetStatus_UnknownTaskAndStatus(t *testing.T) {
	g := newTestGraph(t)
	if err := g.SetStatus("nope", StatusInProgress); !errors.Is(err, errors.ErrTaskNotFound) {
		t.Errorf("error = %v, want ErrTaskNotFound", err)
	}
	id := mustAdd(t, g, "x")
	if err := g.SetStatus(id, Status("done")); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestCompletionDoesNotClearEdges(t *testing.T) {
	g := newTestGraph(t)
	a, b := mustAdd(t, g, "a"), mustAdd(t, g, "b")
	mustEdge(t, g, a, b)

	if roots := g.FindRoots(); !slices.Equal(roots, []string{a}) {
		t.Fatalf("FindRoots() = %v, want [%s]", roots, a)
	}

	_ = g.SetStatus(a, StatusInProgress)
	if err := g.SetStatus(a, StatusCompleted); err != nil {
		t.Fatal(err)
	}

	tb, _ := g.Get(b)
	if !slices.Equal(tb.BlockedBy, []string{a}) {
		t.Errorf("b.BlockedBy = %v, want [%s] after blocker completes", tb.BlockedBy, a)
	}
	if roots := g.FindRoots(); !slices.Equal(roots, []string{a}) {
		t.Errorf("FindRoots() = %v, edges must persist", roots)
	}

	ready := g.Ready()
	if len(ready) != 1 || ready[0].ID != b {
		t.Errorf("Ready() = %v, want [%s]", ready, b)
	}

	if err := g.RemoveBlockingEdge(a, b); err != nil {
		t.Fatal(err)
	}
	if roots := g.FindRoots(); !slices.Equal(roots, []string{a, b}) {
		t.Errorf("FindRoots() = %v, want [%s %s]", roots, a, b)
	}
}

func TestFindRoots_InsertionOrder(t *testing.T) {
	g := newTestGraph(t)
	ids := []string{mustAdd(t, g, "1"), mustAdd(t, g, "2"), mustAdd(t, g, "3"), mustAdd(t, g, "4")}
	mustEdge(t, g, ids[3], ids[1])

	want := []string{ids[0], ids[2], ids[3]}
	if roots := g.FindRoots(); !slices.Equal(roots, want) {
		t.Errorf("FindRoots() = %v, want %v", roots, want)
	}
	if roots := New("empty").FindRoots(); roots == nil || len(roots) != 0 {
		t.Errorf("empty graph roots = %#v, want empty non-nil", roots)
	}
}

func TestClaim(t *testing.T) {
	g := newTestGraph(t)
	a, b := mustAdd(t, g, "a"), mustAdd(t, g, "b")
	mustEdge(t, g, a, b)

	if err := g.Claim(b, "ann"); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Fatalf("Claim(blocked) error = %v, want ErrInvalidTransition", err)
	}
	if err := g.Claim(a, ""); !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("Claim(no owner) error = %v", err)
	}
	if err := g.Claim(a, "ann"); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	ta, _ := g.Get(a)
	if ta.Owner != "ann" || ta.Status != StatusInProgress {
		t.Errorf("claimed task = %+v", ta)
	}
	if err := g.Claim(a, "bob"); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("double Claim() error = %v", err)
	}
	if owned := g.OwnedBy("ann"); len(owned) != 1 || owned[0].ID != a {
		t.Errorf("OwnedBy(ann) = %v", owned)
	}
}

func TestArchive(t *testing.T) {
	g := newTestGraph(t)
	a, b := mustAdd(t, g, "a"), mustAdd(t, g, "b")
	mustEdge(t, g, a, b)

	if err := g.Archive(a); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if err := g.Archive(a); err != nil {
		t.Fatalf("second Archive() error = %v", err)
	}

	if roots := g.FindRoots(); len(roots) != 0 {
		t.Errorf("FindRoots() = %v, archived tasks are excluded and b is still blocked", roots)
	}
	ta, err := g.Get(a)
	if err != nil || !ta.Archived || !slices.Equal(ta.Blocks, []string{b}) {
		t.Errorf("archived task = %+v, %v", ta, err)
	}
	if s := g.Summary(); s.Archived != 1 || s.Pending != 1 || s.Total != 2 {
		t.Errorf("Summary() = %+v", s)
	}
}

func TestDetectCycles_FromSnapshot(t *testing.T) {
	snap := Snapshot{
		Team: "alpha",
		Tasks: []Task{
			{ID: "a", Subject: "a", Status: StatusPending, Blocks: []string{"b"}, BlockedBy: []string{"c"}},
			{ID: "b", Subject: "b", Status: StatusPending, Blocks: []string{"c"}, BlockedBy: []string{"a"}},
			{ID: "c", Subject: "c", Status: StatusPending, Blocks: []string{"a"}, BlockedBy: []string{"b"}},
			{ID: "d", Subject: "d", Status: StatusPending},
		},
	}
	g, err := FromSnapshot(snap)
	if err != nil {
		t.Fatalf("FromSnapshot() error = %v", err)
	}

	cycles := g.DetectCycles()
	if len(cycles) != 1 {
		t.Fatalf("DetectCycles() = %v, want one cycle", cycles)
	}
	if !slices.Equal(cycles[0], []string{"a", "b", "c"}) {
		t.Errorf("cycle = %v, want [a b c]", cycles[0])
	}
}

func TestFromSnapshot_RejectsAsymmetricEdges(t *testing.T) {
	snap := Snapshot{
		Team: "alpha",
		Tasks: []Task{
			{ID: "a", Subject: "a", Status: StatusPending, Blocks: []string{"b"}},
			{ID: "b", Subject: "b", Status: StatusPending},
		},
	}
	if _, err := FromSnapshot(snap); err == nil {
		t.Fatal("FromSnapshot() accepted one-sided edge")
	}
}

func TestGraph_Events(t *testing.T) {
	bus := event.NewBus()
	var types []string
	bus.SubscribeAll(func(e event.Event) { types = append(types, e.EventType()) })

	g := newTestGraph(t, WithBus(bus))
	a, b := mustAdd(t, g, "a"), mustAdd(t, g, "b")
	mustEdge(t, g, a, b)
	_ = g.SetStatus(a, StatusInProgress)
	_ = g.SetStatus(a, StatusInProgress) // no-op, no event
	_ = g.RemoveBlockingEdge(a, b)

	want := []string{
		event.TypeTaskCreated, event.TypeTaskCreated,
		event.TypeTaskEdgeChanged, event.TypeTaskStatusChanged, event.TypeTaskEdgeChanged,
	}
	if !slices.Equal(types, want) {
		t.Errorf("events = %v, want %v", types, want)
	}
}

func TestGraph_ConcurrentEdges(t *testing.T) {
	g := New("alpha")
	const n = 20
	ids := make([]string, n)
	for i := range ids {
		ids[i] = mustAdd(t, g, fmt.Sprint(i))
	}

	// Chain forward edges and attempt every reverse edge concurrently; the
	// graph must stay acyclic and symmetric.
	var wg sync.WaitGroup
	for i := 0; i < n-1; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = g.AddBlockingEdge(ids[i], ids[i+1])
		}()
		go func() {
			defer wg.Done()
			_ = g.AddBlockingEdge(ids[i+1], ids[i])
		}()
	}
	wg.Wait()

	if cycles := g.DetectCycles(); len(cycles) != 0 {
		t.Fatalf("cycles after concurrent edges: %v", cycles)
	}
	if _, err := FromSnapshot(g.Snapshot()); err != nil {
		t.Fatalf("snapshot not symmetric: %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("in_progress"); err != nil || s != StatusInProgress {
		t.Errorf("ParseStatus(in_progress) = %v, %v", s, err)
	}
	if _, err := ParseStatus("done"); err == nil {
		t.Error("ParseStatus(done) should fail")
	}
}
