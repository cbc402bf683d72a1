package registry

import (
	"encoding/json"
	"time"
)

// Role describes a member's function within its team.
type Role string

const (
	// RoleLead marks the coordinator's own member record.
	RoleLead Role = "lead"
	// RoleWorker marks a spawned worker.
	RoleWorker Role = "worker"
)

// BackendKind identifies which process manager owns a member's backend.
type BackendKind string

const (
	// BackendTmux is a tmux session on the hyperteam socket.
	BackendTmux BackendKind = "tmux"
	// BackendCoordinator is the coordinator process itself (the lead).
	BackendCoordinator BackendKind = "coordinator"
)

// BackendRef locates the process backing a member.
type BackendRef struct {
	Kind   BackendKind `json:"kind,omitempty"`
	Pane   string      `json:"paneId,omitempty"`
	Socket string      `json:"socket,omitempty"`
	PID    int         `json:"pid,omitempty"`
}

// Valid reports whether the reference identifies a process.
func (b BackendRef) Valid() bool {
	return b.Pane != "" || b.PID > 0
}

// Member is one participant of a team.
type Member struct {
	AgentID   string     `json:"agentId"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	AgentType string     `json:"agentType,omitempty"`
	Model     string     `json:"model,omitempty"`
	Color     string     `json:"color,omitempty"`
	Prompt    string     `json:"prompt,omitempty"`
	Cwd       string     `json:"cwd,omitempty"`
	Backend   BackendRef `json:"backend"`
	IsActive  bool       `json:"isActive"`
	JoinedAt  time.Time  `json:"joinedAt"`
	LeftAt    *time.Time `json:"leftAt,omitempty"`
}

// Settings are optional per-team limits.
type Settings struct {
	MaxConcurrentTasks int      `json:"maxConcurrentTasks,omitempty"`
	DefaultModel       string   `json:"defaultModel,omitempty"`
	Timeout            Duration `json:"timeout,omitempty"`
}

// Team is the persisted team record.
type Team struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	LeadAgentID string    `json:"leadAgentId,omitempty"`
	Members     []Member  `json:"members"`
	Settings    Settings  `json:"settings"`
}

// Member returns the member with the given name.
func (t *Team) Member(name string) (Member, bool) {
	for _, m := range t.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

func (t *Team) memberIndex(name string) int {
	for i := range t.Members {
		if t.Members[i].Name == name {
			return i
		}
	}
	return -1
}

// ActiveMembers returns the members with IsActive set, in join order.
func (t *Team) ActiveMembers() []Member {
	var out []Member
	for _, m := range t.Members {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out
}

// ActiveMemberNames returns the names of active members, in join order.
func (t *Team) ActiveMemberNames() []string {
	var out []string
	for _, m := range t.Members {
		if m.IsActive {
			out = append(out, m.Name)
		}
	}
	return out
}

// Lead returns the lead member, if the team has one.
func (t *Team) Lead() (Member, bool) {
	for _, m := range t.Members {
		if m.Role == RoleLead {
			return m, true
		}
	}
	return Member{}, false
}

// Duration is a time.Duration that encodes as a Go duration string.
type Duration time.Duration

// MarshalJSON encodes the duration as e.g. "30m0s".
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}
