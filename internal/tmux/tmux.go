// Package tmux wraps the tmux command line for hyperteam.
//
// Every member pane lives in its own session on a shared, dedicated socket
// (SocketName by default), so hyperteam sessions never mix with the user's
// own tmux server. Commands go through a [Runner] so callers can substitute
// a fake in tests.
package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// SocketName is the default tmux socket for member panes.
const SocketName = "hyperteam"

// Runner executes one tmux command against socket and returns its stdout.
type Runner interface {
	Run(ctx context.Context, socket string, args ...string) ([]byte, error)
}

// ExecRunner runs the tmux binary.
type ExecRunner struct {
	// Binary overrides the tmux executable. Empty means "tmux".
	Binary string
}

// Run implements Runner. A non-zero exit returns a *CommandError carrying
// stderr.
func (r ExecRunner) Run(ctx context.Context, socket string, args ...string) ([]byte, error) {
	bin := r.Binary
	if bin == "" {
		bin = "tmux"
	}
	cmd := exec.CommandContext(ctx, bin, CommandArgs(socket, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, &CommandError{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return out, nil
}

// CommandArgs returns the full argument list for a tmux invocation on
// socket: ["-L", socket, args...].
func CommandArgs(socket string, args ...string) []string {
	return append([]string{"-L", socket}, args...)
}

// CommandContext creates a context-aware exec.Cmd for tmux on socket.
func CommandContext(ctx context.Context, socket string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "tmux", CommandArgs(socket, args...)...)
}

// CommandError is a failed tmux invocation.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	name := "tmux"
	if len(e.Args) > 0 {
		name = "tmux " + e.Args[0]
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", name, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", name, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// IsNoServer reports whether err means no tmux server is listening on the
// socket, which also means no session exists there.
func IsNoServer(err error) bool {
	return stderrContains(err, "no server running", "error connecting to", "failed to connect to server")
}

// IsSessionMissing reports whether err means the target session does not
// exist on a running server.
func IsSessionMissing(err error) bool {
	return stderrContains(err, "can't find session", "session not found", "can't find pane")
}

// IsUnavailable reports whether tmux itself could not be run: the binary is
// missing, or the command was cut off by its context.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func stderrContains(err error, needles ...string) bool {
	var ce *CommandError
	if !errors.As(err, &ce) {
		return false
	}
	msg := strings.ToLower(ce.Stderr)
	for _, n := range needles {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// Available reports whether the tmux binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}
