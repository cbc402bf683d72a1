package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/process"
)

// FakeManager is an in-memory process.Manager. Panes exist from Spawn until
// Terminate or Kill. Failure knobs may be set before or between calls.
type FakeManager struct {
	mu    sync.Mutex
	panes map[string]process.Handle
	pid   int

	// SpawnErr, when set, is returned by Spawn and no pane is created.
	SpawnErr error
	// DieOnSpawn makes spawned panes vanish immediately, so liveness checks
	// fail.
	DieOnSpawn bool
	// IsAliveErr, when set, is returned by IsAlive.
	IsAliveErr error
	// TerminateErrs are returned by successive Terminate calls, one per call,
	// before Terminate starts succeeding.
	TerminateErrs []error

	spawned    []process.Spec
	terminated []process.Handle
}

var _ process.Manager = (*FakeManager)(nil)

// NewFakeManager creates an empty FakeManager.
func NewFakeManager() *FakeManager {
	return &FakeManager{panes: make(map[string]process.Handle), pid: 1000}
}

// Spawn implements process.Manager.
func (f *FakeManager) Spawn(ctx context.Context, spec process.Spec) (process.Handle, error) {
	if err := ctx.Err(); err != nil {
		return process.Handle{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.spawned = append(f.spawned, spec)
	if f.SpawnErr != nil {
		return process.Handle{}, f.SpawnErr
	}
	f.pid++
	h := process.Handle{
		Team:   spec.Team,
		Member: spec.Member,
		Pane:   naming.PaneName(spec.Team, spec.Member),
		Socket: "fake",
		PID:    f.pid,
	}
	if !f.DieOnSpawn {
		f.panes[h.Pane] = h
	}
	return h, nil
}

// IsAlive implements process.Manager.
func (f *FakeManager) IsAlive(_ context.Context, h process.Handle) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.IsAliveErr != nil {
		return false, f.IsAliveErr
	}
	_, ok := f.panes[h.Pane]
	return ok, nil
}

// Terminate implements process.Manager.
func (f *FakeManager) Terminate(_ context.Context, h process.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.TerminateErrs) > 0 {
		err := f.TerminateErrs[0]
		f.TerminateErrs = f.TerminateErrs[1:]
		if err != nil {
			return err
		}
	}
	delete(f.panes, h.Pane)
	f.terminated = append(f.terminated, h)
	return nil
}

// List implements process.Manager.
func (f *FakeManager) List(_ context.Context) ([]process.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]process.Handle, 0, len(f.panes))
	for _, h := range f.panes {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pane < out[j].Pane })
	return out, nil
}

// Kill removes a pane without going through Terminate, as if it crashed.
func (f *FakeManager) Kill(pane string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.panes, pane)
}

// AddPane registers a pane that no member spawned.
func (f *FakeManager) AddPane(team, member string) process.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pid++
	h := process.Handle{Team: team, Member: member, Pane: naming.PaneName(team, member), Socket: "fake", PID: f.pid}
	f.panes[h.Pane] = h
	return h
}

// Spawned returns every spec passed to Spawn.
func (f *FakeManager) Spawned() []process.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]process.Spec(nil), f.spawned...)
}

// Terminated returns every handle successfully terminated.
func (f *FakeManager) Terminated() []process.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]process.Handle(nil), f.terminated...)
}

// Unavailable returns a retryable ProcessUnavailable error for use with the
// failure knobs.
func Unavailable(msg string) error {
	return errors.NewProcessError(msg, errors.ErrProcessUnavailable)
}
