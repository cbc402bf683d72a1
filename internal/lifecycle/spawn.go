package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/process"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
)

// SpawnSpec describes a worker to start.
type SpawnSpec struct {
	Name      string
	AgentType string
	// Model defaults to the team's DefaultModel setting.
	Model  string
	Color  string
	Prompt string
	Cwd    string
	Env    map[string]string
}

// SpawnMember registers the member, starts its backend and waits for the
// backend to be confirmed alive.
//
// On any failure the backend is terminated, the registry record is removed
// and an error wrapping ErrSpawnFailed is returned together with a handle in
// state SpawnFailed.
func (c *Coordinator) SpawnMember(ctx context.Context, team string, spec SpawnSpec) (MemberHandle, error) {
	if spec.Name == naming.LeadName {
		return MemberHandle{}, errors.NewValidationError("name is reserved for the team lead").
			WithField("member").
			WithValue(spec.Name).
			WithCause(errors.ErrNameInvalid)
	}
	t, err := c.reg.Get(team)
	if err != nil {
		return MemberHandle{}, err
	}
	if spec.Model == "" {
		spec.Model = t.Settings.DefaultModel
	}

	rec := registry.Member{
		Name:      spec.Name,
		Role:      registry.RoleWorker,
		AgentType: spec.AgentType,
		Model:     spec.Model,
		Color:     spec.Color,
		Prompt:    spec.Prompt,
		Cwd:       spec.Cwd,
	}
	if err := c.reg.AddMember(team, rec); err != nil {
		return MemberHandle{}, err
	}
	logger := c.logger.WithTeam(team).WithMember(spec.Name)

	c.untrack(team, spec.Name)
	if err := c.setState(team, spec.Name, nil, StateRequested, "", ""); err != nil {
		return c.failSpawn(ctx, team, spec.Name, process.Handle{}, err)
	}
	if err := c.setState(team, spec.Name, nil, StateSpawning, "", ""); err != nil {
		return c.failSpawn(ctx, team, spec.Name, process.Handle{}, err)
	}

	env := make(map[string]string, len(spec.Env)+1)
	maps.Copy(env, spec.Env)
	env[process.EnvBaseDir] = c.reg.BaseDir()
	pspec := process.Spec{
		Team:      team,
		Member:    spec.Name,
		AgentID:   naming.AgentID(spec.Name, team),
		AgentType: spec.AgentType,
		Model:     spec.Model,
		Prompt:    spec.Prompt,
		Cwd:       spec.Cwd,
		Env:       env,
	}

	var h process.Handle
	err = c.retry(ctx, "spawn", logger, func(ctx context.Context) error {
		var err error
		h, err = c.procs.Spawn(ctx, pspec)
		return err
	})
	if err != nil {
		return c.failSpawn(ctx, team, spec.Name, process.Handle{}, err)
	}
	if err := c.awaitAlive(ctx, h); err != nil {
		return c.failSpawn(ctx, team, spec.Name, h, err)
	}

	m, err := c.reg.UpdateMember(team, spec.Name, func(m *registry.Member) error {
		m.Backend = registry.BackendRef{
			Kind:   registry.BackendTmux,
			Pane:   h.Pane,
			Socket: h.Socket,
			PID:    h.PID,
		}
		m.IsActive = true
		return nil
	})
	if err != nil {
		return c.failSpawn(ctx, team, spec.Name, h, err)
	}
	if err := c.setState(team, spec.Name, nil, StateActive, "", ""); err != nil {
		return c.failSpawn(ctx, team, spec.Name, h, err)
	}

	logger.Info("member active", "pane", h.Pane, "pid", h.PID)
	return c.handle(team, m), nil
}

// awaitAlive probes the backend until it reports alive or SpawnTimeout
// passes. Retryable probe errors keep the loop going.
func (c *Coordinator) awaitAlive(parent context.Context, h process.Handle) error {
	ctx, cancel := context.WithTimeout(parent, c.cfg.SpawnTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.LivenessInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		alive, err := c.procs.IsAlive(ctx, h)
		switch {
		case err == nil && alive:
			return nil
		case err != nil && !errors.IsRetryable(err):
			return err
		case err != nil:
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return err
			}
			te := errors.NewTimeoutError("confirming liveness of "+h.Pane, c.cfg.SpawnTimeout)
			if lastErr != nil {
				return errors.Join(te, lastErr)
			}
			return te
		case <-ticker.C:
		}
	}
}

// failSpawn rolls back a spawn attempt: terminate whatever was started,
// remove the registry record and record SpawnFailed.
func (c *Coordinator) failSpawn(ctx context.Context, team, member string, h process.Handle, cause error) (MemberHandle, error) {
	logger := c.logger.WithTeam(team).WithMember(member)

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.SpawnTimeout)
	defer cancel()
	if h.Pane != "" || h.PID > 0 {
		if err := c.procs.Terminate(cleanupCtx, h); err != nil {
			logger.Warn("terminate after failed spawn", "pane", h.Pane, "error", err.Error())
		}
	}
	if err := c.reg.RemoveMember(team, member); err != nil && !errors.Is(err, errors.ErrMemberNotFound) {
		logger.Error("rollback of member record failed", "error", err.Error())
	}
	if err := c.setState(team, member, nil, StateSpawnFailed, "", cause.Error()); err != nil {
		logger.Warn("record spawn failure", "error", err.Error())
	}
	logger.Error("spawn failed", "error", cause.Error())

	failed := MemberHandle{
		Team:      team,
		Member:    member,
		AgentID:   naming.AgentID(member, team),
		Role:      registry.RoleWorker,
		State:     StateSpawnFailed,
		Reason:    cause.Error(),
		UpdatedAt: c.now().UTC(),
	}
	return failed, errors.NewTeamError("member did not become active", fmt.Errorf("%w: %w", errors.ErrSpawnFailed, cause)).
		WithTeam(team).
		WithMember(member).
		WithInvariant("a failed spawn leaves no member record")
}

func (c *Coordinator) untrack(team, member string) {
	c.mu.Lock()
	delete(c.members, memberKey{team, member})
	c.mu.Unlock()
}

// handle builds a MemberHandle from a registry record and tracked state.
func (c *Coordinator) handle(team string, m registry.Member) MemberHandle {
	h := MemberHandle{
		Team:      team,
		Member:    m.Name,
		AgentID:   m.AgentID,
		Role:      m.Role,
		State:     deriveState(m),
		IsActive:  m.IsActive,
		Backend:   m.Backend,
		UpdatedAt: m.JoinedAt,
	}
	if m.LeftAt != nil {
		h.UpdatedAt = *m.LeftAt
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if tr, ok := c.members[memberKey{team, m.Name}]; ok {
		h.State = tr.state
		h.RequestID = tr.requestID
		h.Reason = tr.reason
		h.UpdatedAt = tr.updatedAt
	}
	return h
}
