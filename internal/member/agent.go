// Package member is the worker side of the team protocol: it watches the
// member's inbox, answers shutdown requests and reports idleness to the
// lead.
package member

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
	"github.com/de-monkey-v/hyper-team-sub000/internal/mailbox"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
)

// ApprovalPolicy decides how to answer a shutdown request.
type ApprovalPolicy func(ctx context.Context, req mailbox.ShutdownRequest) (approve bool, reason string)

// ApproveAll approves every shutdown request.
func ApproveAll(context.Context, mailbox.ShutdownRequest) (bool, string) {
	return true, "shutting down"
}

// MessageHandler receives every non-protocol message. Messages are marked
// read only when it returns nil.
type MessageHandler func(ctx context.Context, msg mailbox.Message) error

// Agent is one member's inbox loop.
type Agent struct {
	team   string
	name   string
	mail   *mailbox.Store
	reg    *registry.Registry
	logger *logging.Logger

	policy  ApprovalPolicy
	handler MessageHandler

	stopped atomic.Bool
}

// Option configures an Agent.
type Option func(*Agent)

// WithApprovalPolicy replaces the default ApproveAll policy.
func WithApprovalPolicy(p ApprovalPolicy) Option {
	return func(a *Agent) {
		if p != nil {
			a.policy = p
		}
	}
}

// WithHandler sets the handler for non-protocol messages.
func WithHandler(h MessageHandler) Option {
	return func(a *Agent) {
		a.handler = h
	}
}

// WithRegistry lets Send and Broadcast reject inactive senders and Send
// reject unknown and inactive recipients.
func WithRegistry(reg *registry.Registry) Option {
	return func(a *Agent) {
		a.reg = reg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates the agent for member name of team.
func New(mail *mailbox.Store, team, name string, opts ...Option) (*Agent, error) {
	if err := naming.ValidateTeamName(team); err != nil {
		return nil, err
	}
	if err := naming.ValidateMemberName(name); err != nil {
		return nil, err
	}
	a := &Agent{
		team:   team,
		name:   name,
		mail:   mail,
		logger: logging.NopLogger(),
		policy: ApproveAll,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.WithTeam(team).WithMember(name)
	return a, nil
}

// Team returns the agent's team.
func (a *Agent) Team() string { return a.team }

// Name returns the agent's member name.
func (a *Agent) Name() string { return a.name }

// Stopped reports whether the agent approved a shutdown request.
func (a *Agent) Stopped() bool { return a.stopped.Load() }

// Run watches the inbox until ctx is cancelled or the agent approves a
// shutdown request, in which case it returns nil after answering.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger.Info("member agent started")
	err := a.mail.Watch(ctx, a.team, a.name, func(msg mailbox.Message) {
		if a.stopped.Load() {
			return
		}
		if a.dispatch(ctx, msg) {
			a.stopped.Store(true)
			cancel()
		}
	})
	a.logger.Info("member agent stopped", "approved_shutdown", a.stopped.Load())
	return err
}

// dispatch handles one message and reports whether the agent should stop.
func (a *Agent) dispatch(ctx context.Context, msg mailbox.Message) bool {
	req, ok := msg.Payload.(mailbox.ShutdownRequest)
	if !ok {
		if a.handler == nil {
			return false
		}
		if err := a.handler(ctx, msg); err != nil {
			a.logger.Warn("message handler failed", "message_id", msg.ID, "error", err.Error())
			return false
		}
		a.markRead(msg.ID)
		return false
	}

	approve, reason := a.policy(ctx, req)
	if err := a.RespondShutdown(req.RequestID, approve, reason); err != nil {
		a.logger.Error("cannot answer shutdown request", "request_id", req.RequestID, "error", err.Error())
		return false
	}
	a.markRead(msg.ID)
	return approve
}

func (a *Agent) markRead(id string) {
	if err := a.mail.MarkRead(a.team, a.name, id); err != nil {
		a.logger.Warn("mark read failed", "message_id", id, "error", err.Error())
	}
}

// RespondShutdown answers a shutdown request in the lead's inbox.
func (a *Agent) RespondShutdown(requestID string, approve bool, reason string) error {
	verdict := "denied"
	if approve {
		verdict = "approved"
	}
	_, err := a.mail.Append(a.team, naming.LeadName, mailbox.Message{
		From:    a.name,
		Text:    fmt.Sprintf("Shutdown %s", verdict),
		Summary: "shutdown " + verdict,
		Payload: mailbox.ShutdownResponse{RequestID: requestID, Approve: approve, Reason: reason},
	})
	if err == nil {
		a.logger.Info("shutdown answered", "request_id", requestID, "approve", approve)
	}
	return err
}

// NotifyIdle tells the lead the member is ready for more work. taskID, when
// set, names the task just finished.
func (a *Agent) NotifyIdle(taskID, reason string) error {
	text := "Idle"
	if taskID != "" {
		text = fmt.Sprintf("Idle after task %s", taskID)
	}
	_, err := a.mail.Append(a.team, naming.LeadName, mailbox.Message{
		From:    a.name,
		Text:    text,
		Summary: "idle",
		Payload: mailbox.IdleNotification{TaskID: taskID, Reason: reason},
	})
	return err
}

// RequestPlanApproval asks the lead to approve a plan and returns the
// request ID the answer will carry.
func (a *Agent) RequestPlanApproval(plan string) (string, error) {
	id := uuid.NewString()
	_, err := a.mail.Append(a.team, naming.LeadName, mailbox.Message{
		From:    a.name,
		Text:    plan,
		Summary: "plan approval request",
		Payload: mailbox.PlanApprovalRequest{RequestID: id, Plan: plan},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Send appends a plain message to another member's inbox. With a registry
// attached, the agent itself must still be active, and unknown and
// inactive recipients are rejected first.
func (a *Agent) Send(to, text, summary string) (mailbox.Message, error) {
	if err := a.checkActive(); err != nil {
		return mailbox.Message{}, err
	}
	if a.reg != nil {
		m, err := a.reg.Member(a.team, to)
		if err != nil {
			return mailbox.Message{}, err
		}
		if !m.IsActive {
			return mailbox.Message{}, errors.NewTeamError("cannot message inactive member", errors.ErrRecipientInactive).
				WithTeam(a.team).
				WithMember(to).
				WithInvariant("messages are only appended for active recipients")
		}
	}
	return a.mail.Append(a.team, to, mailbox.Message{From: a.name, Text: text, Summary: summary})
}

// Broadcast sends text to every other active member. With a registry
// attached, a deactivated agent is rejected.
func (a *Agent) Broadcast(text, summary string) (int, error) {
	if err := a.checkActive(); err != nil {
		return 0, err
	}
	return a.mail.Broadcast(a.team, a.name, text, summary)
}

// checkActive fails once the agent's own member record is gone or
// deactivated. Without a registry there is nothing to check.
func (a *Agent) checkActive() error {
	if a.reg == nil {
		return nil
	}
	m, err := a.reg.Member(a.team, a.name)
	if err != nil {
		return err
	}
	if !m.IsActive {
		return errors.NewTeamError("inactive member cannot send", errors.ErrSenderInactive).
			WithTeam(a.team).
			WithMember(a.name).
			WithInvariant("only active members send messages")
	}
	return nil
}
