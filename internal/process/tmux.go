package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/tmux"
)

// TmuxConfig configures a TmuxManager.
type TmuxConfig struct {
	Socket       string
	AgentCommand string
	Width        int
	Height       int

	// PromptDir holds prompt files read by the agent command. Defaults to
	// the OS temp dir.
	PromptDir string

	// GracefulTimeout is the wait between Ctrl+C and kill-session.
	GracefulTimeout time.Duration

	// Runner overrides how tmux is executed.
	Runner tmux.Runner

	Logger *logging.Logger
}

// TmuxManager runs each member in its own tmux session on a shared socket.
type TmuxManager struct {
	client    *tmux.Client
	command   string
	width     int
	height    int
	promptDir string
	graceful  time.Duration
	logger    *logging.Logger
}

var _ Manager = (*TmuxManager)(nil)

// NewTmuxManager creates a TmuxManager.
func NewTmuxManager(cfg TmuxConfig) *TmuxManager {
	client := tmux.NewClient(cfg.Socket)
	if cfg.Runner != nil {
		client.Runner = cfg.Runner
	}
	m := &TmuxManager{
		client:    client,
		command:   cfg.AgentCommand,
		width:     cfg.Width,
		height:    cfg.Height,
		promptDir: cfg.PromptDir,
		graceful:  cfg.GracefulTimeout,
		logger:    cfg.Logger,
	}
	if m.command == "" {
		m.command = "claude"
	}
	if m.width == 0 {
		m.width = 200
	}
	if m.height == 0 {
		m.height = 50
	}
	if m.promptDir == "" {
		m.promptDir = os.TempDir()
	}
	if m.graceful == 0 {
		m.graceful = tmux.DefaultGracefulStopTimeout
	}
	if m.logger == nil {
		m.logger = logging.NopLogger()
	}
	return m
}

// Socket returns the tmux socket name.
func (m *TmuxManager) Socket() string { return m.client.Socket }

// Client exposes the underlying tmux client.
func (m *TmuxManager) Client() *tmux.Client { return m.client }

func (m *TmuxManager) promptPath(pane string) string {
	return filepath.Join(m.promptDir, pane+".prompt")
}

// Spawn implements Manager. A leftover session with the same name is
// removed first; registry names are unique, so such a session is an orphan.
func (m *TmuxManager) Spawn(ctx context.Context, spec Spec) (Handle, error) {
	if err := naming.ValidateTeamName(spec.Team); err != nil {
		return Handle{}, err
	}
	if err := naming.ValidateMemberName(spec.Member); err != nil {
		return Handle{}, err
	}

	pane := naming.PaneName(spec.Team, spec.Member)
	h := Handle{Team: spec.Team, Member: spec.Member, Pane: pane, Socket: m.client.Socket}
	log := m.logger.WithTeam(spec.Team).WithMember(spec.Member)

	if err := m.client.KillSession(ctx, pane); err != nil {
		return Handle{}, m.wrap("remove stale session", err, h)
	}

	err := m.client.NewSession(ctx, tmux.SessionSpec{
		Name:   pane,
		Dir:    spec.Cwd,
		Width:  m.width,
		Height: m.height,
		Env:    spec.Environment(),
	})
	if err != nil {
		log.Error("failed to create tmux session", "pane", pane, "error", err.Error())
		return Handle{}, m.wrap("create session", err, h)
	}

	cleanup := func() {
		_ = m.client.KillSession(context.WithoutCancel(ctx), pane)
		_ = os.Remove(m.promptPath(pane))
	}

	line, err := m.commandLine(spec, pane)
	if err != nil {
		cleanup()
		return Handle{}, errors.NewProcessError("write prompt file", err).WithMember(spec.AgentID).WithPane(pane)
	}
	if err := m.client.SendKeys(ctx, pane, line, "Enter"); err != nil {
		cleanup()
		return Handle{}, m.wrap("start agent", err, h)
	}

	if pid, err := m.client.PanePID(ctx, pane); err == nil {
		h.PID = pid
	} else {
		log.Warn("could not read pane pid", "pane", pane, "error", err.Error())
	}

	log.Info("member pane started", "pane", pane, "pid", h.PID)
	return h, nil
}

// commandLine builds the shell line typed into the pane. The prompt goes
// through a file so it needs no escaping beyond the path itself.
func (m *TmuxManager) commandLine(spec Spec, pane string) (string, error) {
	parts := []string{m.command}
	if spec.Model != "" {
		parts = append(parts, "--model", shellQuote(spec.Model))
	}
	if spec.Prompt != "" {
		path := m.promptPath(pane)
		if err := os.WriteFile(path, []byte(spec.Prompt), 0o600); err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf(`"$(cat %s)"`, shellQuote(path)))
	}
	return strings.Join(parts, " "), nil
}

// IsAlive implements Manager.
func (m *TmuxManager) IsAlive(ctx context.Context, h Handle) (bool, error) {
	ok, err := m.client.HasSession(ctx, h.Pane)
	if err != nil {
		return false, m.wrap("probe session", err, h)
	}
	return ok, nil
}

// Terminate implements Manager.
func (m *TmuxManager) Terminate(ctx context.Context, h Handle) error {
	if h.Pane == "" {
		return nil
	}
	if err := m.client.GracefulStop(ctx, h.Pane, m.graceful); err != nil {
		return m.wrap("stop session", err, h)
	}
	_ = os.Remove(m.promptPath(h.Pane))
	m.logger.WithTeam(h.Team).WithMember(h.Member).Info("member pane terminated", "pane", h.Pane)
	return nil
}

// List implements Manager. Sessions not named by naming.PaneName are
// ignored.
func (m *TmuxManager) List(ctx context.Context) ([]Handle, error) {
	sessions, err := m.client.ListSessions(ctx)
	if err != nil {
		return nil, m.wrap("list sessions", err, Handle{})
	}
	var out []Handle
	for _, s := range sessions {
		team, member, ok := naming.ParsePaneName(s.Name)
		if !ok {
			continue
		}
		out = append(out, Handle{Team: team, Member: member, Pane: s.Name, Socket: m.client.Socket, PID: s.PID})
	}
	return out, nil
}

// wrap classifies a tmux failure. An unreachable server or a missing or
// interrupted tmux binary is ProcessUnavailable and retryable.
func (m *TmuxManager) wrap(op string, err error, h Handle) error {
	var pe *errors.ProcessError
	if tmux.IsNoServer(err) || tmux.IsUnavailable(err) {
		pe = errors.NewProcessError(fmt.Sprintf("%s: %v", op, err), errors.ErrProcessUnavailable)
	} else {
		pe = errors.NewProcessError(op, err)
	}
	if h.Team != "" && h.Member != "" {
		pe = pe.WithMember(naming.AgentID(h.Member, h.Team))
	}
	return pe.WithPane(h.Pane).WithSocket(m.client.Socket)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
