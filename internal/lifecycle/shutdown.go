package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/mailbox"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
)

// RequestShutdown asks an active member to shut down by appending a
// ShutdownRequest to its inbox, and moves it to ShutdownRequested.
//
// Requesting again while a request is outstanding issues a new request ID;
// a response to any of the IDs resolves the handshake.
func (c *Coordinator) RequestShutdown(_ context.Context, team, member, reason string) (string, error) {
	if member == naming.LeadName {
		return "", errors.NewTeamError("the lead is not shut down by request", errors.ErrInvalidTransition).
			WithTeam(team).WithMember(member)
	}
	m, err := c.reg.Member(team, member)
	if err != nil {
		return "", err
	}
	if !m.IsActive {
		return "", errors.NewTeamError("cannot request shutdown of inactive member", errors.ErrRecipientInactive).
			WithTeam(team).
			WithMember(member).
			WithInvariant("messages are only appended for active recipients")
	}
	if cur := c.currentState(team, m); !CanTransition(cur, StateShutdownRequested) {
		return "", errors.NewTeamError(
			fmt.Sprintf("member cannot move from %s to %s", stateName(cur), StateShutdownRequested),
			errors.ErrInvalidTransition,
		).WithTeam(team).WithMember(member)
	}

	id := uuid.NewString()
	p := c.register(team, member, id)

	msg := mailbox.Message{
		From:    naming.LeadName,
		Text:    shutdownText(reason),
		Summary: "shutdown request",
		Payload: mailbox.ShutdownRequest{RequestID: id, Reason: reason},
	}
	if _, err := c.mail.Append(team, member, msg); err != nil {
		c.unregister(p, id)
		return "", err
	}
	if err := c.setState(team, member, &m, StateShutdownRequested, id, reason); err != nil {
		return "", err
	}

	c.logger.WithTeam(team).WithMember(member).Info("shutdown requested", "request_id", id, "reason", reason)
	return id, nil
}

func shutdownText(reason string) string {
	if reason == "" {
		return "Shutdown requested. Reply with a shutdown response."
	}
	return "Shutdown requested: " + reason + ". Reply with a shutdown response."
}

// register adds id to the member's open handshake, creating one if needed.
func (c *Coordinator) register(team, member, id string) *pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.requests {
		if p.team == team && p.member == member && !p.claimed {
			p.ids = append(p.ids, id)
			c.requests[id] = p
			return p
		}
	}
	p := &pending{team: team, member: member, ids: []string{id}, done: make(chan struct{})}
	c.requests[id] = p
	return p
}

func (c *Coordinator) unregister(p *pending, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.requests, id)
	p.ids = slices.DeleteFunc(p.ids, func(s string) bool { return s == id })
}

// claim marks the handshake for requestID as being resolved. It fails for
// unknown IDs and for handshakes already claimed by another response.
func (c *Coordinator) claim(requestID string) (*pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.requests[requestID]
	if !ok || p.claimed {
		return nil, errors.NewTeamError(
			fmt.Sprintf("no pending shutdown request %s", requestID),
			errors.ErrRequestNotFound,
		).WithSeverity(errors.SeverityWarning)
	}
	p.claimed = true
	return p, nil
}

func (c *Coordinator) resolve(p *pending, out Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out.Team = p.team
	out.Member = p.member
	p.outcome = out
	close(p.done)
}

// maxAnswered bounds how many resolved request IDs are remembered.
const maxAnswered = 1024

// collect drops a resolved handshake's request IDs and remembers them as
// answered.
func (c *Coordinator) collect(p *pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range p.ids {
		if c.requests[id] == p {
			delete(c.requests, id)
			c.answered = append(c.answered, id)
		}
	}
	if n := len(c.answered) - maxAnswered; n > 0 {
		c.answered = slices.Delete(c.answered, 0, n)
	}
}

func (c *Coordinator) currentState(team string, m registry.Member) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tr, ok := c.members[memberKey{team, m.Name}]; ok {
		return tr.state
	}
	return deriveState(m)
}

// HandleShutdownResponse resolves a shutdown handshake.
//
// On approval the member moves to ShutdownApproved, its backend is
// terminated (retrying transient failures with backoff), it is deactivated
// in the registry and ends in Terminated. On denial it returns to Active.
// Returns ErrRequestNotFound for unknown or already answered requests.
func (c *Coordinator) HandleShutdownResponse(ctx context.Context, requestID string, approve bool, reason string) error {
	p, err := c.claim(requestID)
	if err != nil {
		return err
	}
	team, member := p.team, p.member
	logger := c.logger.WithTeam(team).WithMember(member)

	fail := func(err error) error {
		c.resolve(p, Outcome{RequestID: requestID, Approved: approve, Reason: reason, Err: err})
		return err
	}

	m, err := c.reg.Member(team, member)
	if err != nil {
		return fail(err)
	}

	if !approve {
		if err := c.setState(team, member, &m, StateActive, requestID, reason); err != nil {
			return fail(err)
		}
		logger.Info("shutdown denied", "request_id", requestID, "reason", reason)
		c.resolve(p, Outcome{RequestID: requestID, Approved: false, Reason: reason})
		return nil
	}

	if err := c.setState(team, member, &m, StateShutdownApproved, requestID, reason); err != nil {
		return fail(err)
	}
	h := handleFor(team, m)
	err = c.retry(ctx, "terminate", logger, func(ctx context.Context) error {
		return c.procs.Terminate(ctx, h)
	})
	if err != nil {
		logger.Error("terminate failed", "pane", h.Pane, "error", err.Error())
		return fail(errors.NewTeamError("cannot terminate approved member", err).
			WithTeam(team).WithMember(member))
	}
	if err := c.reg.DeactivateMember(team, member); err != nil {
		return fail(err)
	}
	if err := c.setState(team, member, &m, StateTerminated, requestID, reason); err != nil {
		return fail(err)
	}

	logger.Info("member terminated", "request_id", requestID)
	c.resolve(p, Outcome{RequestID: requestID, Approved: true, Reason: reason})
	return nil
}

// AwaitShutdown waits up to timeout for the handshake behind requestID to
// be resolved, reading the lead inbox every PollInterval in the meantime.
//
// A timeout returns a TimeoutError wrapping ErrShutdownTimeout; the member
// stays in ShutdownRequested and may be asked again.
func (c *Coordinator) AwaitShutdown(ctx context.Context, requestID string, timeout time.Duration) (Outcome, error) {
	c.mu.Lock()
	p, ok := c.requests[requestID]
	c.mu.Unlock()
	if !ok {
		return Outcome{}, errors.NewTeamError(
			fmt.Sprintf("no pending shutdown request %s", requestID),
			errors.ErrRequestNotFound,
		)
	}
	if timeout <= 0 {
		timeout = c.cfg.ShutdownWait
	}
	logger := c.logger.WithTeam(p.team).WithMember(p.member)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := c.ProcessInbox(ctx, p.team); err != nil {
			logger.Warn("processing lead inbox", "error", err.Error())
		}
		select {
		case <-p.done:
			c.collect(p)
			return p.outcome, nil
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-deadline.C:
			return Outcome{}, errors.NewTimeoutError(
				fmt.Sprintf("waiting for %s to answer shutdown request %s", p.member, requestID),
				timeout,
			).WithCause(errors.ErrShutdownTimeout)
		case <-ticker.C:
		}
	}
}

// ShutdownMember runs the full handshake for one member: request, wait,
// and re-request on timeout until ShutdownAttempts is spent.
//
// Inactive members are left alone. A member whose backend has already
// exited is deactivated without a handshake. A denial is reported as
// ErrActiveMembersExist.
func (c *Coordinator) ShutdownMember(ctx context.Context, team, member, reason string) error {
	m, err := c.reg.Member(team, member)
	if err != nil {
		return err
	}
	if m.Role == registry.RoleLead {
		return errors.NewTeamError("the lead is not shut down by request", errors.ErrInvalidTransition).
			WithTeam(team).WithMember(member)
	}
	if !m.IsActive {
		return nil
	}
	logger := c.logger.WithTeam(team).WithMember(member)

	if c.backendGone(ctx, team, m) {
		return c.reap(team, m)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.ShutdownAttempts; attempt++ {
		id, err := c.RequestShutdown(ctx, team, member, reason)
		if err != nil {
			return err
		}
		out, err := c.AwaitShutdown(ctx, id, c.cfg.ShutdownWait)
		switch {
		case errors.Is(err, errors.ErrShutdownTimeout):
			lastErr = err
			logger.Warn("no shutdown response", "attempt", attempt, "max_attempts", c.cfg.ShutdownAttempts)
			if c.backendGone(ctx, team, m) {
				return c.reap(team, m)
			}
			continue
		case err != nil:
			return err
		case !out.Approved:
			return errors.NewTeamError(fmt.Sprintf("member declined shutdown: %s", out.Reason), errors.ErrActiveMembersExist).
				WithTeam(team).
				WithMember(member).
				WithInvariant("members leave only through an approved shutdown")
		case out.Err != nil:
			if !errors.IsRetryable(out.Err) {
				return out.Err
			}
			lastErr = out.Err
			continue
		}
		return nil
	}

	return errors.NewTeamError(
		fmt.Sprintf("no shutdown confirmation after %d attempts", c.cfg.ShutdownAttempts),
		fmt.Errorf("%w (last error: %w)", errors.ErrShutdownTimeout, lastErr),
	).WithTeam(team).WithMember(member).WithRetryable(true)
}

// backendGone reports whether the member's backend is confirmed to have
// exited. Probe errors count as not gone.
func (c *Coordinator) backendGone(ctx context.Context, team string, m registry.Member) bool {
	if !m.Backend.Valid() || m.Backend.Kind == registry.BackendCoordinator {
		return false
	}
	alive, err := c.procs.IsAlive(ctx, handleFor(team, m))
	return err == nil && !alive
}

// reap deactivates a member whose backend already exited.
func (c *Coordinator) reap(team string, m registry.Member) error {
	if err := c.reg.DeactivateMember(team, m.Name); err != nil {
		return err
	}
	c.logger.WithTeam(team).WithMember(m.Name).Warn("backend already exited, member deactivated", "pane", m.Backend.Pane)
	return c.setState(team, m.Name, &m, StateTerminated, "", "backend exited")
}

// DeleteTeam shuts down every active worker through the handshake, then
// deactivates the lead and deletes the team and its task graph.
//
// Workers are shut down concurrently, at most MaxParallelShutdowns at a
// time. If any worker does not confirm, nothing is deleted and the error
// names the members that remain: ErrShutdownTimeout for unanswered
// requests, ErrActiveMembersExist for denials.
func (c *Coordinator) DeleteTeam(ctx context.Context, team string) error {
	t, err := c.reg.Get(team)
	if err != nil {
		return err
	}
	logger := c.logger.WithTeam(team)

	var (
		mu       sync.Mutex
		failures = map[string]error{}
	)
	p := pool.New().WithContext(ctx).WithMaxGoroutines(c.cfg.MaxParallelShutdowns)
	for _, m := range t.ActiveMembers() {
		if m.Role == registry.RoleLead {
			continue
		}
		p.Go(func(ctx context.Context) error {
			err := c.ShutdownMember(ctx, team, m.Name, "team deleted")
			if err != nil {
				mu.Lock()
				failures[m.Name] = err
				mu.Unlock()
			}
			return err
		})
	}
	if err := p.Wait(); err != nil {
		return teardownError(team, failures, err)
	}

	if lead, ok := t.Lead(); ok && lead.IsActive {
		if err := c.reg.DeactivateMember(team, lead.Name); err != nil {
			return err
		}
	}
	if err := c.reg.DeleteTeam(team); err != nil {
		return err
	}
	c.forgetTeam(team)

	if c.tasks != nil {
		if err := c.tasks.Delete(ctx, team); err != nil {
			return errors.Wrapf(err, "delete task graph of %s", team)
		}
	}
	logger.Info("team torn down")
	return nil
}

func teardownError(team string, failures map[string]error, joined error) error {
	var stuck, declined, other []string
	for _, name := range slices.Sorted(maps.Keys(failures)) {
		switch err := failures[name]; {
		case errors.Is(err, errors.ErrShutdownTimeout):
			stuck = append(stuck, name)
		case errors.Is(err, errors.ErrActiveMembersExist):
			declined = append(declined, name)
		default:
			other = append(other, name)
		}
	}

	switch {
	case len(stuck) > 0:
		return errors.NewTeamError(
			fmt.Sprintf("members did not confirm shutdown [%s]", strings.Join(stuck, ", ")),
			fmt.Errorf("%w: %w", errors.ErrShutdownTimeout, joined),
		).WithTeam(team).WithInvariant("no deletion while members are active")
	case len(declined) > 0:
		return errors.NewTeamError(
			fmt.Sprintf("members declined shutdown [%s]", strings.Join(declined, ", ")),
			fmt.Errorf("%w: %w", errors.ErrActiveMembersExist, joined),
		).WithTeam(team).WithInvariant("no deletion while members are active")
	default:
		return errors.NewTeamError(
			fmt.Sprintf("teardown failed for [%s]", strings.Join(other, ", ")),
			joined,
		).WithTeam(team)
	}
}
