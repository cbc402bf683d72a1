package process

import (
	"context"
	"maps"
)

// Environment variables set in every member pane.
const (
	EnvTeam    = "HYPERTEAM_TEAM"
	EnvMember  = "HYPERTEAM_MEMBER"
	EnvAgentID = "HYPERTEAM_AGENT_ID"
	EnvBaseDir = "HYPERTEAM_BASE_DIR"
)

// Spec describes a member agent to start.
type Spec struct {
	Team      string
	Member    string
	AgentID   string
	AgentType string
	Model     string
	Prompt    string
	Cwd       string
	Env       map[string]string
}

// Environment returns the variables the pane is started with: Env plus the
// team and member identity, which always win.
func (s Spec) Environment() map[string]string {
	env := make(map[string]string, len(s.Env)+3)
	maps.Copy(env, s.Env)
	env[EnvTeam] = s.Team
	env[EnvMember] = s.Member
	if s.AgentID != "" {
		env[EnvAgentID] = s.AgentID
	}
	return env
}

// Handle identifies a running pane.
type Handle struct {
	Team   string `json:"team"`
	Member string `json:"member"`
	Pane   string `json:"pane"`
	Socket string `json:"socket,omitempty"`
	PID    int    `json:"pid,omitempty"`
}

// Manager starts, probes, and stops member panes.
//
// Errors caused by the manager being unreachable wrap
// errors.ErrProcessUnavailable and are retryable.
type Manager interface {
	// Spawn starts the member's pane and returns its handle once created.
	// Spawn does not wait for the agent inside the pane to become ready.
	Spawn(ctx context.Context, spec Spec) (Handle, error)

	// IsAlive reports whether the pane still exists.
	IsAlive(ctx context.Context, h Handle) (bool, error)

	// Terminate stops the pane. Terminating a pane that is already gone
	// succeeds.
	Terminate(ctx context.Context, h Handle) error

	// List returns every pane the manager can see, including panes with no
	// registered member.
	List(ctx context.Context) ([]Handle, error)
}
