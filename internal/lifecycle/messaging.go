package lifecycle

import (
	"context"
	"slices"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/mailbox"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

// SendMessage appends a plain message to an active member's inbox.
//
// The sender must be an active member of team. Returns ErrMemberNotFound for
// unknown senders or recipients, ErrSenderInactive and ErrRecipientInactive
// for deactivated ones; nothing is appended in any of these cases.
func (c *Coordinator) SendMessage(_ context.Context, team, from, to, text, summary string) (mailbox.Message, error) {
	if err := c.checkSender(team, from); err != nil {
		return mailbox.Message{}, err
	}
	m, err := c.reg.Member(team, to)
	if err != nil {
		return mailbox.Message{}, err
	}
	if !m.IsActive {
		return mailbox.Message{}, errors.NewTeamError("cannot message inactive member", errors.ErrRecipientInactive).
			WithTeam(team).
			WithMember(to).
			WithInvariant("messages are only appended for active recipients")
	}
	return c.mail.Append(team, to, mailbox.Message{From: from, Text: text, Summary: summary})
}

// Broadcast appends one copy of the message to every active member except
// the sender, who must itself be active. Cost grows linearly with the
// number of active members.
func (c *Coordinator) Broadcast(_ context.Context, team, from, text, summary string) (int, error) {
	if err := c.checkSender(team, from); err != nil {
		return 0, err
	}
	return c.mail.Broadcast(team, from, text, summary)
}

func (c *Coordinator) checkSender(team, from string) error {
	if err := naming.ValidateMemberName(from); err != nil {
		return err
	}
	m, err := c.reg.Member(team, from)
	if err != nil {
		return err
	}
	if !m.IsActive {
		return errors.NewTeamError("inactive member cannot send", errors.ErrSenderInactive).
			WithTeam(team).
			WithMember(from).
			WithInvariant("only active members send messages")
	}
	return nil
}

// ProcessInbox reads the lead's unread messages and acts on protocol
// payloads: shutdown responses resolve their handshake and idle
// notifications complete the task they name. Handled messages are marked
// read. Shutdown responses to requests this coordinator never issued stay
// unread, since another coordinator on the same workspace may be waiting
// for them; so does anything else meant for the operator. Returns the
// number of messages handled.
func (c *Coordinator) ProcessInbox(ctx context.Context, team string) (int, error) {
	c.inboxMu.Lock()
	defer c.inboxMu.Unlock()

	msgs, err := c.mail.ListUnread(team, naming.LeadName)
	if err != nil {
		return 0, err
	}

	var (
		handled []string
		errs    []error
	)
	for _, msg := range msgs {
		if ctx.Err() != nil {
			break
		}
		switch p := msg.Payload.(type) {
		case mailbox.ShutdownResponse:
			owned, err := c.dispatchShutdownResponse(ctx, team, msg.From, p)
			if owned {
				handled = append(handled, msg.ID)
			}
			if err != nil {
				errs = append(errs, err)
			}
		case mailbox.IdleNotification:
			handled = append(handled, msg.ID)
			if err := c.handleIdle(ctx, team, msg.From, p); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(handled) > 0 {
		if err := c.mail.MarkRead(team, naming.LeadName, handled...); err != nil {
			errs = append(errs, err)
		}
	}
	return len(handled), errors.Join(errs...)
}

// dispatchShutdownResponse resolves the handshake resp answers. owned
// reports whether the request ID was issued by this coordinator, in which
// case the response is consumed even when it is stale or misaddressed.
func (c *Coordinator) dispatchShutdownResponse(ctx context.Context, team, from string, resp mailbox.ShutdownResponse) (owned bool, err error) {
	logger := c.logger.WithTeam(team).WithMember(from)

	c.mu.Lock()
	p, known := c.requests[resp.RequestID]
	stale := !known && slices.Contains(c.answered, resp.RequestID)
	c.mu.Unlock()
	switch {
	case stale || (known && p.claimed):
		logger.Debug("dropping response to an answered shutdown request", "request_id", resp.RequestID)
		return true, nil
	case !known:
		logger.Debug("leaving response to a foreign shutdown request unread", "request_id", resp.RequestID)
		return false, nil
	case p.team != team || p.member != from:
		logger.Warn("ignoring shutdown response from a member the request was not sent to",
			"request_id", resp.RequestID, "addressee", p.member)
		return true, nil
	}
	return true, c.HandleShutdownResponse(ctx, resp.RequestID, resp.Approve, resp.Reason)
}

// handleIdle completes the in-progress task an idle notification names,
// provided the sender owns it or it is unowned.
func (c *Coordinator) handleIdle(ctx context.Context, team, from string, n mailbox.IdleNotification) error {
	logger := c.logger.WithTeam(team).WithMember(from)
	logger.Info("member idle", "task_id", n.TaskID, "reason", n.Reason)
	if c.tasks == nil || n.TaskID == "" {
		return nil
	}

	return c.tasks.Update(ctx, team, func(g *taskgraph.Graph) error {
		t, err := g.Get(n.TaskID)
		if err != nil {
			return err
		}
		if t.Status != taskgraph.StatusInProgress || (t.Owner != "" && t.Owner != from) {
			logger.Debug("idle notification left task unchanged", "task_id", t.ID, "status", t.Status.String(), "owner", t.Owner)
			return nil
		}
		return g.SetStatus(t.ID, taskgraph.StatusCompleted)
	})
}
