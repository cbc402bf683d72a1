package lifecycle

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/event"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
	"github.com/de-monkey-v/hyper-team-sub000/internal/mailbox"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/process"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

// Coordinator orchestrates member lifecycles across the registry, the
// message store, the task graph and the process manager.
type Coordinator struct {
	reg   *registry.Registry
	mail  *mailbox.Store
	procs process.Manager
	tasks taskgraph.Store

	bus    *event.Bus
	logger *logging.Logger
	cfg    Config
	now    func() time.Time

	mu       sync.Mutex
	members  map[memberKey]*tracked
	requests map[string]*pending
	// answered holds request IDs of handshakes this coordinator resolved,
	// oldest first, capped at maxAnswered.
	answered []string

	// inboxMu serializes ProcessInbox so concurrent waiters never dispatch
	// the same response twice.
	inboxMu sync.Mutex
}

type memberKey struct{ team, member string }

type tracked struct {
	state     State
	requestID string
	reason    string
	updatedAt time.Time
}

// pending is one shutdown handshake. A re-request adds another ID that
// resolves the same handshake.
type pending struct {
	team    string
	member  string
	ids     []string
	claimed bool
	outcome Outcome
	done    chan struct{}
}

// New creates a Coordinator.
func New(reg *registry.Registry, mail *mailbox.Store, procs process.Manager, opts ...Option) *Coordinator {
	c := &Coordinator{
		reg:      reg,
		mail:     mail,
		procs:    procs,
		logger:   logging.NopLogger(),
		cfg:      DefaultConfig(),
		now:      time.Now,
		members:  make(map[memberKey]*tracked),
		requests: make(map[string]*pending),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the active timing and retry budget.
func (c *Coordinator) Config() Config { return c.cfg }

// CreateTeam creates the team and registers the lead as its first, active
// member, backed by the current process.
func (c *Coordinator) CreateTeam(_ context.Context, name, description string) (registry.Team, error) {
	if _, err := c.reg.CreateTeam(name, description); err != nil {
		return registry.Team{}, err
	}
	lead := registry.Member{
		Name:     naming.LeadName,
		Role:     registry.RoleLead,
		Backend:  registry.BackendRef{Kind: registry.BackendCoordinator, PID: os.Getpid()},
		IsActive: true,
	}
	if err := c.reg.AddMember(name, lead); err != nil {
		return registry.Team{}, err
	}
	return c.reg.Get(name)
}

// State returns the member's lifecycle state. Members the coordinator has
// not driven itself get a state derived from their registry record.
func (c *Coordinator) State(team, member string) (State, error) {
	c.mu.Lock()
	t, ok := c.members[memberKey{team, member}]
	c.mu.Unlock()
	if ok {
		return t.state, nil
	}
	m, err := c.reg.Member(team, member)
	if err != nil {
		return "", err
	}
	return deriveState(m), nil
}

// Handles returns a view of every member of the team in registry order.
func (c *Coordinator) Handles(team string) ([]MemberHandle, error) {
	t, err := c.reg.Get(team)
	if err != nil {
		return nil, err
	}

	out := make([]MemberHandle, 0, len(t.Members))
	for _, m := range t.Members {
		out = append(out, c.handle(team, m))
	}
	return out, nil
}

// setState moves a member to the given state. Members not yet tracked
// start from the state derived from seed.
func (c *Coordinator) setState(team, member string, seed *registry.Member, to State, requestID, reason string) error {
	c.mu.Lock()
	key := memberKey{team, member}
	tr, ok := c.members[key]
	var from State
	switch {
	case ok:
		from = tr.state
	case seed != nil:
		from = deriveState(*seed)
	}
	if !CanTransition(from, to) {
		c.mu.Unlock()
		return errors.NewTeamError(
			fmt.Sprintf("member cannot move from %s to %s", stateName(from), to),
			errors.ErrInvalidTransition,
		).WithTeam(team).WithMember(member)
	}
	if !ok {
		tr = &tracked{}
		c.members[key] = tr
	}
	tr.state = to
	tr.requestID = requestID
	tr.reason = reason
	tr.updatedAt = c.now().UTC()
	c.mu.Unlock()

	c.logger.WithTeam(team).WithMember(member).Debug("member state changed",
		"from", stateName(from), "to", string(to), "request_id", requestID)
	if c.bus != nil {
		c.bus.Publish(event.NewMemberStateChangedEvent(team, member, string(from), string(to), requestID, reason))
	}
	return nil
}

func stateName(s State) string {
	if s == "" {
		return "untracked"
	}
	return string(s)
}

// forgetTeam drops all in-memory state for the team.
func (c *Coordinator) forgetTeam(team string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.members {
		if k.team == team {
			delete(c.members, k)
		}
	}
	for id, p := range c.requests {
		if p.team == team {
			delete(c.requests, id)
		}
	}
}

// retry runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. The delay doubles after each retryable failure.
func (c *Coordinator) retry(ctx context.Context, op string, logger *logging.Logger, fn func(context.Context) error) error {
	delay := c.cfg.RetryBackoff
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !errors.IsRetryable(err) || attempt >= c.cfg.RetryAttempts {
			return err
		}
		logger.Warn("retrying after transient failure",
			"op", op, "attempt", attempt, "delay", delay.String(), "error", err.Error())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}
}

func handleFor(team string, m registry.Member) process.Handle {
	return process.Handle{
		Team:   team,
		Member: m.Name,
		Pane:   m.Backend.Pane,
		Socket: m.Backend.Socket,
		PID:    m.Backend.PID,
	}
}
