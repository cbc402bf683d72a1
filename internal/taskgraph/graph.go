package taskgraph

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/event"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
)

const invariantAcyclic = "blocking relation is acyclic"

// Graph is one team's task set. All methods are safe for concurrent use.
// Returned tasks are copies.
type Graph struct {
	mu     sync.RWMutex
	team   string
	tasks  map[string]*Task
	order  []string
	bus    *event.Bus
	logger *logging.Logger
	now    func() time.Time
	newID  func() string

	// While held, events queue in pending until release.
	evMu    sync.Mutex
	held    bool
	pending []event.Event
}

// New creates an empty graph for team.
func New(team string, opts ...Option) *Graph {
	g := &Graph{
		team:   team,
		tasks:  make(map[string]*Task),
		logger: logging.NopLogger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.WithTeam(team)
	return g
}

// FromSnapshot rebuilds a graph from persisted state. The blocking relation
// must be symmetric; cycles are accepted so DetectCycles can report them.
func FromSnapshot(s Snapshot, opts ...Option) (*Graph, error) {
	g := New(s.Team, opts...)
	for i := range s.Tasks {
		t := s.Tasks[i].clone()
		if t.ID == "" {
			return nil, fmt.Errorf("task at position %d has no id", i)
		}
		if _, dup := g.tasks[t.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %s", t.ID)
		}
		if !t.Status.Valid() {
			return nil, fmt.Errorf("task %s has unknown status %q", t.ID, t.Status)
		}
		t.Team = s.Team
		g.tasks[t.ID] = &t
		g.order = append(g.order, t.ID)
	}
	if err := g.checkSymmetry(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) checkSymmetry() error {
	for _, id := range g.order {
		t := g.tasks[id]
		for _, b := range t.Blocks {
			other, ok := g.tasks[b]
			if !ok {
				return fmt.Errorf("task %s blocks unknown task %s", id, b)
			}
			if !slices.Contains(other.BlockedBy, id) {
				return fmt.Errorf("task %s blocks %s but %s is not blocked by it", id, b, b)
			}
		}
		for _, b := range t.BlockedBy {
			other, ok := g.tasks[b]
			if !ok {
				return fmt.Errorf("task %s is blocked by unknown task %s", id, b)
			}
			if !slices.Contains(other.Blocks, id) {
				return fmt.Errorf("task %s is blocked by %s but %s does not block it", id, b, b)
			}
		}
	}
	return nil
}

// Team returns the owning team name.
func (g *Graph) Team() string { return g.team }

// Snapshot returns the persisted form of the graph.
func (g *Graph) Snapshot() Snapshot {
	return Snapshot{Team: g.team, Tasks: g.Tasks()}
}

// Len returns the number of tasks, archived ones included.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// AddTask creates a pending task and returns its ID.
func (g *Graph) AddTask(subject, owner string) (string, error) {
	return g.Add(Spec{Subject: subject, Owner: owner})
}

// Add creates a pending task from spec and returns its ID.
func (g *Graph) Add(spec Spec) (string, error) {
	subject := strings.TrimSpace(spec.Subject)
	if subject == "" {
		return "", errors.NewValidationError("task subject is required").WithField("subject")
	}

	g.mu.Lock()
	now := g.now().UTC()
	t := &Task{
		ID:          g.newID(),
		Subject:     subject,
		Description: spec.Description,
		Status:      StatusPending,
		Owner:       spec.Owner,
		Team:        g.team,
		Blocks:      []string{},
		BlockedBy:   []string{},
		Tags:        slices.Clone(spec.Tags),
		Priority:    spec.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, dup := g.tasks[t.ID]; dup {
		g.mu.Unlock()
		return "", errors.NewTeamError("generated task id already in use", errors.ErrAlreadyExists).
			WithTeam(g.team).WithTask(t.ID)
	}
	g.tasks[t.ID] = t
	g.order = append(g.order, t.ID)
	g.mu.Unlock()

	g.logger.WithTask(t.ID).Debug("task added", "subject", subject, "owner", spec.Owner)
	g.publish(event.NewTaskCreatedEvent(g.team, t.ID, subject, spec.Owner))
	return t.ID, nil
}

// Get returns a copy of the task.
func (g *Graph) Get(id string) (Task, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.tasks[id]
	if !ok {
		return Task{}, errors.TaskNotFound(g.team, id)
	}
	return t.clone(), nil
}

// Tasks returns copies of every task in insertion order.
func (g *Graph) Tasks() []Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id].clone())
	}
	return out
}

// AddBlockingEdge records that blocker blocks blocked. Adding an existing
// edge is a no-op.
//
// Returns ErrTaskNotFound if either task is missing and ErrWouldCreateCycle
// if blocked already reaches blocker, including blocker == blocked. The
// graph is unchanged on error.
func (g *Graph) AddBlockingEdge(blocker, blocked string) error {
	g.mu.Lock()
	b, err := g.lookup(blocker)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	d, err := g.lookup(blocked)
	if err != nil {
		g.mu.Unlock()
		return err
	}

	if path := g.pathLocked(blocked, blocker); path != nil {
		g.mu.Unlock()
		cycle := append(path, blocked)
		return errors.NewTeamError(
			fmt.Sprintf("edge %s -> %s would create cycle [%s]", blocker, blocked, strings.Join(cycle, " -> ")),
			errors.ErrWouldCreateCycle,
		).WithTeam(g.team).WithTask(blocked).WithInvariant(invariantAcyclic)
	}

	if slices.Contains(b.Blocks, blocked) {
		g.mu.Unlock()
		return nil
	}
	now := g.now().UTC()
	b.Blocks = append(b.Blocks, blocked)
	d.BlockedBy = append(d.BlockedBy, blocker)
	b.UpdatedAt = now
	d.UpdatedAt = now
	g.mu.Unlock()

	g.logger.Debug("blocking edge added", "blocker", blocker, "blocked", blocked)
	g.publish(event.NewTaskEdgeChangedEvent(g.team, blocker, blocked, true))
	return nil
}

// RemoveBlockingEdge deletes the edge blocker -> blocked from both
// endpoints. Removing an absent edge is a no-op.
func (g *Graph) RemoveBlockingEdge(blocker, blocked string) error {
	g.mu.Lock()
	b, err := g.lookup(blocker)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	d, err := g.lookup(blocked)
	if err != nil {
		g.mu.Unlock()
		return err
	}

	i := slices.Index(b.Blocks, blocked)
	if i < 0 {
		g.mu.Unlock()
		return nil
	}
	now := g.now().UTC()
	b.Blocks = slices.Delete(b.Blocks, i, i+1)
	if j := slices.Index(d.BlockedBy, blocker); j >= 0 {
		d.BlockedBy = slices.Delete(d.BlockedBy, j, j+1)
	}
	b.UpdatedAt = now
	d.UpdatedAt = now
	g.mu.Unlock()

	g.logger.Debug("blocking edge removed", "blocker", blocker, "blocked", blocked)
	g.publish(event.NewTaskEdgeChangedEvent(g.team, blocker, blocked, false))
	return nil
}

// SetStatus moves a task to status. Allowed changes are pending ->
// in_progress and in_progress -> completed or cancelled. Setting the
// current status again is a no-op. Edges are never modified.
func (g *Graph) SetStatus(id string, status Status) error {
	return g.transition(id, status, nil)
}

// Claim assigns owner and moves a pending task to in_progress. The task's
// blockers must all be completed.
func (g *Graph) Claim(id, owner string) error {
	if owner == "" {
		return errors.NewValidationError("owner is required").WithField("owner")
	}
	return g.transition(id, StatusInProgress, func(t *Task) error {
		if t.Status != StatusPending {
			return g.invalidTransition(t, StatusInProgress)
		}
		if open := g.openBlockersLocked(t); len(open) > 0 {
			return errors.NewTeamError(
				fmt.Sprintf("task is blocked by unfinished [%s]", strings.Join(open, ", ")),
				errors.ErrInvalidTransition,
			).WithTeam(g.team).WithTask(t.ID).WithMember(owner)
		}
		t.Owner = owner
		return nil
	})
}

func (g *Graph) transition(id string, to Status, check func(*Task) error) error {
	if !to.Valid() {
		return errors.NewValidationError("unknown task status").WithField("status").WithValue(string(to))
	}

	g.mu.Lock()
	t, err := g.lookup(id)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if check != nil {
		if err := check(t); err != nil {
			g.mu.Unlock()
			return err
		}
	}
	from := t.Status
	if !canTransition(from, to) {
		g.mu.Unlock()
		return g.invalidTransition(t, to)
	}
	if from == to && check == nil {
		g.mu.Unlock()
		return nil
	}
	t.Status = to
	t.UpdatedAt = g.now().UTC()
	g.mu.Unlock()

	g.logger.WithTask(id).Info("task status changed", "from", string(from), "to", string(to))
	if from != to {
		g.publish(event.NewTaskStatusChangedEvent(g.team, id, string(from), string(to)))
	}
	return nil
}

func (g *Graph) invalidTransition(t *Task, to Status) error {
	return errors.NewTeamError(
		fmt.Sprintf("cannot move task from %s to %s", t.Status, to),
		errors.ErrInvalidTransition,
	).WithTeam(g.team).WithTask(t.ID)
}

// Archive soft-deletes a task. Archived tasks keep their edges and remain
// visible through Get and Tasks, but are excluded from FindRoots and Ready.
// Archiving twice is a no-op.
func (g *Graph) Archive(id string) error {
	g.mu.Lock()
	t, err := g.lookup(id)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if t.Archived {
		g.mu.Unlock()
		return nil
	}
	t.Archived = true
	t.UpdatedAt = g.now().UTC()
	g.mu.Unlock()

	g.logger.WithTask(id).Info("task archived")
	return nil
}

// FindRoots returns the IDs of unarchived tasks with no blockers, in
// insertion order.
func (g *Graph) FindRoots() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	roots := []string{}
	for _, id := range g.order {
		t := g.tasks[id]
		if !t.Archived && len(t.BlockedBy) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Ready returns unarchived pending tasks whose blockers are all completed,
// in insertion order.
func (g *Graph) Ready() []Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Task
	for _, id := range g.order {
		t := g.tasks[id]
		if t.Archived || t.Status != StatusPending {
			continue
		}
		if len(g.openBlockersLocked(t)) == 0 {
			out = append(out, t.clone())
		}
	}
	return out
}

// OwnedBy returns the tasks currently owned by member, in insertion order.
func (g *Graph) OwnedBy(member string) []Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Task
	for _, id := range g.order {
		if t := g.tasks[id]; t.Owner == member {
			out = append(out, t.clone())
		}
	}
	return out
}

// Summary counts tasks by status.
func (g *Graph) Summary() Summary {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var s Summary
	for _, id := range g.order {
		t := g.tasks[id]
		s.Total++
		if t.Archived {
			s.Archived++
			continue
		}
		switch t.Status {
		case StatusPending:
			s.Pending++
		case StatusInProgress:
			s.InProgress++
		case StatusCompleted:
			s.Completed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// DetectCycles returns every cycle found by a depth-first walk that starts
// from each task in insertion order and follows Blocks edges in stored
// order. Each cycle is listed once, starting at the first task of the cycle
// reached by the walk.
func (g *Graph) DetectCycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.order))
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		state[id] = onStack
		stack = append(stack, id)
		for _, next := range g.tasks[id].Blocks {
			if _, ok := g.tasks[next]; !ok {
				continue
			}
			switch state[next] {
			case unvisited:
				visit(next)
			case onStack:
				start := slices.Index(stack, next)
				cycles = append(cycles, slices.Clone(stack[start:]))
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, id := range g.order {
		if state[id] == unvisited {
			visit(id)
		}
	}
	return cycles
}

// pathLocked returns a path of Blocks edges from -> ... -> to, or nil.
// from == to yields a one-element path.
func (g *Graph) pathLocked(from, to string) []string {
	visited := make(map[string]bool)
	var path []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		path = append(path, id)
		if id == to {
			return true
		}
		visited[id] = true
		if t, ok := g.tasks[id]; ok {
			for _, next := range t.Blocks {
				if !visited[next] && dfs(next) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if dfs(from) {
		return path
	}
	return nil
}

func (g *Graph) openBlockersLocked(t *Task) []string {
	var open []string
	for _, b := range t.BlockedBy {
		if bt, ok := g.tasks[b]; !ok || bt.Status != StatusCompleted {
			open = append(open, b)
		}
	}
	return open
}

func (g *Graph) lookup(id string) (*Task, error) {
	t, ok := g.tasks[id]
	if !ok {
		return nil, errors.TaskNotFound(g.team, id)
	}
	return t, nil
}

func (g *Graph) publish(e event.Event) {
	if g.bus == nil {
		return
	}
	g.evMu.Lock()
	if g.held {
		g.pending = append(g.pending, e)
		g.evMu.Unlock()
		return
	}
	g.evMu.Unlock()
	g.bus.Publish(e)
}

// hold queues events until release. Stores hold a graph for the length of
// an Update so nothing is published for changes that are not persisted.
func (g *Graph) hold() {
	g.evMu.Lock()
	defer g.evMu.Unlock()
	g.held = true
}

// release stops queueing and publishes the queued events when commit is
// true, or discards them otherwise.
func (g *Graph) release(commit bool) {
	g.evMu.Lock()
	queued := g.pending
	g.pending = nil
	g.held = false
	g.evMu.Unlock()
	if !commit || g.bus == nil {
		return
	}
	for _, e := range queued {
		g.bus.Publish(e)
	}
}
