package tmux

import (
	"context"
	"errors"
	"os/exec"
	"slices"
	"strings"
	"testing"
)

// fakeRunner records invocations and answers from a script keyed by the
// tmux subcommand.
type fakeRunner struct {
	calls   [][]string
	outputs map[string]string
	errs    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, socket string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, CommandArgs(socket, args...))
	if err := f.errs[args[0]]; err != nil {
		return nil, err
	}
	return []byte(f.outputs[args[0]]), nil
}

func stderrErr(msg string) error {
	return &CommandError{Args: []string{"x"}, Stderr: msg, Err: errors.New("exit status 1")}
}

func TestCommandArgs(t *testing.T) {
	got := CommandArgs("hyperteam", "kill-session", "-t", "x")
	want := []string{"-L", "hyperteam", "kill-session", "-t", "x"}
	if !slices.Equal(got, want) {
		t.Errorf("CommandArgs() = %v, want %v", got, want)
	}
}

func TestCommandContext(t *testing.T) {
	cmd := CommandContext(context.Background(), "sock", "has-session")
	want := []string{"tmux", "-L", "sock", "has-session"}
	if !slices.Equal(cmd.Args, want) {
		t.Errorf("Args = %v, want %v", cmd.Args, want)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		noServer    bool
		missing     bool
		unavailable bool
	}{
		{"nil", nil, false, false, false},
		{"no server", stderrErr("no server running on /tmp/tmux-0/hyperteam"), true, false, false},
		{"connect failure", stderrErr("error connecting to /tmp/tmux-0/hyperteam (No such file or directory)"), true, false, false},
		{"missing session", stderrErr("can't find session: alpha"), false, true, false},
		{"binary missing", &CommandError{Err: exec.ErrNotFound}, false, false, true},
		{"deadline", context.DeadlineExceeded, false, false, true},
		{"plain", errors.New("boom"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNoServer(tt.err); got != tt.noServer {
				t.Errorf("IsNoServer() = %v, want %v", got, tt.noServer)
			}
			if got := IsSessionMissing(tt.err); got != tt.missing {
				t.Errorf("IsSessionMissing() = %v, want %v", got, tt.missing)
			}
			if got := IsUnavailable(tt.err); got != tt.unavailable {
				t.Errorf("IsUnavailable() = %v, want %v", got, tt.unavailable)
			}
		})
	}
}

func TestCommandError_Error(t *testing.T) {
	err := &CommandError{Args: []string{"new-session"}, Stderr: "duplicate session: x", Err: errors.New("exit status 1")}
	if got := err.Error(); got != "tmux new-session: exit status 1: duplicate session: x" {
		t.Errorf("Error() = %q", got)
	}
}

func TestClient_NewSession(t *testing.T) {
	f := &fakeRunner{}
	c := &Client{Runner: f, Socket: "hyperteam"}

	err := c.NewSession(context.Background(), SessionSpec{
		Name:   "hyperteam-alpha--bob",
		Dir:    "/work",
		Width:  200,
		Height: 50,
		Env:    map[string]string{"B": "2", "A": "1"},
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	got := strings.Join(f.calls[0], " ")
	want := "-L hyperteam new-session -d -s hyperteam-alpha--bob -x 200 -y 50 -c /work -e A=1 -e B=2"
	if got != want {
		t.Errorf("args = %q\nwant   %q", got, want)
	}
}

func TestClient_HasSession(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    bool
		wantErr bool
	}{
		{"exists", nil, true, false},
		{"missing", stderrErr("can't find session: x"), false, false},
		{"no server", stderrErr("no server running on /tmp/x"), false, false},
		{"other", errors.New("boom"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRunner{errs: map[string]error{"has-session": tt.err}}
			c := &Client{Runner: f, Socket: "s"}
			got, err := c.HasSession(context.Background(), "x")
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("HasSession() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_KillSession_Idempotent(t *testing.T) {
	f := &fakeRunner{errs: map[string]error{"kill-session": stderrErr("can't find session: x")}}
	c := &Client{Runner: f, Socket: "s"}
	if err := c.KillSession(context.Background(), "x"); err != nil {
		t.Errorf("KillSession() error = %v, want nil for missing session", err)
	}
}

func TestClient_PanePID(t *testing.T) {
	f := &fakeRunner{outputs: map[string]string{"display-message": "4242\n"}}
	c := &Client{Runner: f, Socket: "s"}
	pid, err := c.PanePID(context.Background(), "x")
	if err != nil || pid != 4242 {
		t.Errorf("PanePID() = %d, %v", pid, err)
	}

	f.outputs["display-message"] = "garbage"
	if _, err := c.PanePID(context.Background(), "x"); err == nil {
		t.Error("PanePID() should fail on non-numeric output")
	}
}

func TestClient_ListSessions(t *testing.T) {
	f := &fakeRunner{outputs: map[string]string{
		"list-panes": "hyperteam-b--y\t20\nhyperteam-a--x\t10\nhyperteam-a--x\t11\n",
	}}
	c := &Client{Runner: f, Socket: "s"}

	got, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	want := []Session{{"hyperteam-a--x", 10}, {"hyperteam-b--y", 20}}
	if !slices.Equal(got, want) {
		t.Errorf("ListSessions() = %v, want %v", got, want)
	}

	f.errs = map[string]error{"list-panes": stderrErr("no server running on /tmp/x")}
	got, err = c.ListSessions(context.Background())
	if err != nil || len(got) != 0 {
		t.Errorf("ListSessions() without server = %v, %v", got, err)
	}
}

func TestNewClient_DefaultSocket(t *testing.T) {
	if c := NewClient(""); c.Socket != SocketName {
		t.Errorf("Socket = %q, want %q", c.Socket, SocketName)
	}
}

func TestClient_GracefulStop_MissingSession(t *testing.T) {
	missing := stderrErr("can't find session: x")
	f := &fakeRunner{errs: map[string]error{
		"display-message": missing,
		"send-keys":       missing,
		"kill-session":    missing,
	}}
	c := &Client{Runner: f, Socket: "s"}
	if err := c.GracefulStop(context.Background(), "x", 0); err != nil {
		t.Errorf("GracefulStop() error = %v, want nil", err)
	}
}
