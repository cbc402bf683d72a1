package member

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/mailbox"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
	"github.com/de-monkey-v/hyper-team-sub000/internal/testutil"
)

func newTestMail(t *testing.T) (*mailbox.Store, *registry.Registry) {
	t.Helper()
	reg := registry.New(t.TempDir())
	if _, err := reg.CreateTeam("alpha", ""); err != nil {
		t.Fatalf("CreateTeam() error = %v", err)
	}
	for _, name := range []string{"w1", "w2"} {
		err := reg.AddMember("alpha", registry.Member{
			Name:     name,
			IsActive: true,
			Backend:  registry.BackendRef{Kind: registry.BackendTmux, Pane: naming.PaneName("alpha", name)},
		})
		if err != nil {
			t.Fatalf("AddMember(%s) error = %v", name, err)
		}
	}
	return mailbox.New(reg, mailbox.WithFSNotify(false), mailbox.WithPolling(5*time.Millisecond, 20*time.Millisecond)), reg
}

func leadMessages(t *testing.T, mail *mailbox.Store) []mailbox.Message {
	t.Helper()
	msgs, err := mail.ListUnread("alpha", naming.LeadName)
	if err != nil {
		t.Fatalf("ListUnread(lead) error = %v", err)
	}
	return msgs
}

func TestNew_ValidatesNames(t *testing.T) {
	mail, _ := newTestMail(t)
	if _, err := New(mail, "Alpha", "w1"); !errors.Is(err, errors.ErrNameInvalid) {
		t.Errorf("bad team error = %v", err)
	}
	if _, err := New(mail, "alpha", ""); !errors.Is(err, errors.ErrNameInvalid) {
		t.Errorf("bad member error = %v", err)
	}
}

func TestAgent_Run_ApprovesShutdown(t *testing.T) {
	mail, _ := newTestMail(t)
	a, err := New(mail, "alpha", "w1")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := mail.Append("alpha", "w1", mailbox.Message{
		From:    naming.LeadName,
		Payload: mailbox.ShutdownRequest{RequestID: "r1", Reason: "done"},
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run() returned only because the context expired")
	}
	if !a.Stopped() {
		t.Error("Stopped() = false after approving shutdown")
	}

	msgs := leadMessages(t, mail)
	if len(msgs) != 1 {
		t.Fatalf("lead inbox = %d messages, want 1", len(msgs))
	}
	resp, ok := msgs[0].Payload.(mailbox.ShutdownResponse)
	if !ok || resp.RequestID != "r1" || !resp.Approve || msgs[0].From != "w1" {
		t.Errorf("response = %+v", msgs[0])
	}
	if n, _ := mail.UnreadCount("alpha", "w1"); n != 0 {
		t.Errorf("request left unread")
	}
}

func TestAgent_Run_DenyKeepsRunning(t *testing.T) {
	mail, _ := newTestMail(t)
	deny := func(context.Context, mailbox.ShutdownRequest) (bool, string) { return false, "busy" }

	var (
		mu   sync.Mutex
		seen []string
	)
	a, err := New(mail, "alpha", "w1",
		WithApprovalPolicy(deny),
		WithHandler(func(_ context.Context, msg mailbox.Message) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, msg.Text)
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	if _, err := mail.Append("alpha", "w1", mailbox.Message{
		From:    naming.LeadName,
		Payload: mailbox.ShutdownRequest{RequestID: "r1"},
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := mail.Append("alpha", "w1", mailbox.Message{From: "w2", Text: "ping"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	testutil.Eventually(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, "handler never saw the plain message")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if a.Stopped() {
		t.Error("Stopped() = true after denying")
	}

	msgs := leadMessages(t, mail)
	if len(msgs) != 1 {
		t.Fatalf("lead inbox = %d messages, want 1", len(msgs))
	}
	if resp := msgs[0].Payload.(mailbox.ShutdownResponse); resp.Approve || resp.Reason != "busy" {
		t.Errorf("response = %+v, want denial", resp)
	}
	if n, _ := mail.UnreadCount("alpha", "w1"); n != 0 {
		t.Errorf("unread = %d, want 0", n)
	}
}

func TestAgent_NotifyIdle(t *testing.T) {
	mail, _ := newTestMail(t)
	a, err := New(mail, "alpha", "w1")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.NotifyIdle("t1", "finished"); err != nil {
		t.Fatalf("NotifyIdle() error = %v", err)
	}

	msgs := leadMessages(t, mail)
	if len(msgs) != 1 {
		t.Fatalf("lead inbox = %d messages, want 1", len(msgs))
	}
	n, ok := msgs[0].Payload.(mailbox.IdleNotification)
	if !ok || n.TaskID != "t1" || n.Reason != "finished" {
		t.Errorf("payload = %+v", msgs[0].Payload)
	}
}

func TestAgent_RequestPlanApproval(t *testing.T) {
	mail, _ := newTestMail(t)
	a, _ := New(mail, "alpha", "w1")

	id, err := a.RequestPlanApproval("1. write tests")
	if err != nil {
		t.Fatalf("RequestPlanApproval() error = %v", err)
	}
	msgs := leadMessages(t, mail)
	req, ok := msgs[0].Payload.(mailbox.PlanApprovalRequest)
	if !ok || req.RequestID != id || req.Plan != "1. write tests" {
		t.Errorf("payload = %+v", msgs[0].Payload)
	}
}

func TestAgent_Send(t *testing.T) {
	mail, reg := newTestMail(t)
	if err := reg.DeactivateMember("alpha", "w2"); err != nil {
		t.Fatalf("DeactivateMember() error = %v", err)
	}

	checked, _ := New(mail, "alpha", "w1", WithRegistry(reg))
	if _, err := checked.Send("w2", "hi", ""); !errors.Is(err, errors.ErrRecipientInactive) {
		t.Errorf("Send(inactive) error = %v, want ErrRecipientInactive", err)
	}
	if _, err := checked.Send("nobody", "hi", ""); !errors.Is(err, errors.ErrMemberNotFound) {
		t.Errorf("Send(unknown) error = %v, want ErrMemberNotFound", err)
	}

	unchecked, _ := New(mail, "alpha", "w1")
	if _, err := unchecked.Send("w2", "hi", ""); err != nil {
		t.Errorf("Send() without registry error = %v", err)
	}

	// A deactivated member can no longer send.
	if err := reg.DeactivateMember("alpha", "w1"); err != nil {
		t.Fatalf("DeactivateMember() error = %v", err)
	}
	gone, _ := New(mail, "alpha", "w1", WithRegistry(reg))
	if _, err := gone.Send(naming.LeadName, "hi", ""); !errors.Is(err, errors.ErrSenderInactive) {
		t.Errorf("Send() from inactive error = %v, want ErrSenderInactive", err)
	}
	if msgs := leadMessages(t, mail); len(msgs) != 0 {
		t.Errorf("lead inbox = %+v, want empty", msgs)
	}
}

func TestAgent_Broadcast(t *testing.T) {
	mail, reg := newTestMail(t)
	a, _ := New(mail, "alpha", "w1", WithRegistry(reg))

	n, err := a.Broadcast("standup", "")
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Broadcast() = %d, want 1", n)
	}

	if err := reg.DeactivateMember("alpha", "w1"); err != nil {
		t.Fatalf("DeactivateMember() error = %v", err)
	}
	n, err = a.Broadcast("still here", "")
	if !errors.Is(err, errors.ErrSenderInactive) {
		t.Fatalf("Broadcast() after deactivation error = %v, want ErrSenderInactive", err)
	}
	if n != 0 {
		t.Errorf("Broadcast() after deactivation = %d, want 0", n)
	}
	if count, _ := mail.UnreadCount("alpha", "w2"); count != 1 {
		t.Errorf("w2 unread = %d, want 1", count)
	}
}
