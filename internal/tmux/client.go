package tmux

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Client issues tmux commands against one socket.
type Client struct {
	Runner Runner
	Socket string
}

// NewClient returns a Client for socket using the tmux binary. An empty
// socket selects SocketName.
func NewClient(socket string) *Client {
	if socket == "" {
		socket = SocketName
	}
	return &Client{Runner: ExecRunner{}, Socket: socket}
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	return c.Runner.Run(ctx, c.Socket, args...)
}

// SessionSpec describes a detached session to create.
type SessionSpec struct {
	Name   string
	Dir    string
	Width  int
	Height int
	Env    map[string]string
}

// NewSession creates a detached session. Environment entries are passed
// with -e in key order.
func (c *Client) NewSession(ctx context.Context, spec SessionSpec) error {
	args := []string{"new-session", "-d", "-s", spec.Name}
	if spec.Width > 0 {
		args = append(args, "-x", strconv.Itoa(spec.Width))
	}
	if spec.Height > 0 {
		args = append(args, "-y", strconv.Itoa(spec.Height))
	}
	if spec.Dir != "" {
		args = append(args, "-c", spec.Dir)
	}
	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+spec.Env[k])
	}
	_, err := c.run(ctx, args...)
	return err
}

// SendKeys types keys into the session's active pane.
func (c *Client) SendKeys(ctx context.Context, session string, keys ...string) error {
	_, err := c.run(ctx, append([]string{"send-keys", "-t", session}, keys...)...)
	return err
}

// HasSession reports whether session exists. A socket with no server has no
// sessions.
func (c *Client) HasSession(ctx context.Context, session string) (bool, error) {
	_, err := c.run(ctx, "has-session", "-t", "="+session)
	switch {
	case err == nil:
		return true, nil
	case IsNoServer(err) || IsSessionMissing(err):
		return false, nil
	default:
		return false, err
	}
}

// KillSession removes session. A missing session or server is not an error.
func (c *Client) KillSession(ctx context.Context, session string) error {
	_, err := c.run(ctx, "kill-session", "-t", "="+session)
	if err != nil && !IsNoServer(err) && !IsSessionMissing(err) {
		return err
	}
	return nil
}

// PanePID returns the PID of the process in the session's active pane.
func (c *Client) PanePID(ctx context.Context, session string) (int, error) {
	out, err := c.run(ctx, "display-message", "-p", "-t", "="+session, "#{pane_pid}")
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("parse pane pid %q: %w", strings.TrimSpace(string(out)), err)
	}
	return pid, nil
}

// Session is one row of ListSessions.
type Session struct {
	Name string
	PID  int
}

// ListSessions returns every session on the socket with its pane PID,
// sorted by name.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	out, err := c.run(ctx, "list-panes", "-a", "-F", "#{session_name}\t#{pane_pid}")
	if err != nil {
		if IsNoServer(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var sessions []Session
	for line := range strings.Lines(string(out)) {
		name, pidStr, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		pid, _ := strconv.Atoi(pidStr)
		sessions = append(sessions, Session{Name: name, PID: pid})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Name < sessions[j].Name })
	return sessions, nil
}

// CapturePane returns the last lines of the session's visible pane and
// scrollback.
func (c *Client) CapturePane(ctx context.Context, session string, lines int) (string, error) {
	args := []string{"capture-pane", "-p", "-t", "=" + session}
	if lines > 0 {
		args = append(args, "-S", "-"+strconv.Itoa(lines))
	}
	out, err := c.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
