package lifecycle

import (
	"time"

	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
)

// State is a member's position in the lifecycle state machine.
type State string

// Member states.
const (
	StateRequested         State = "requested"
	StateSpawning          State = "spawning"
	StateActive            State = "active"
	StateShutdownRequested State = "shutdown_requested"
	StateShutdownApproved  State = "shutdown_approved"
	StateTerminated        State = "terminated"
	StateSpawnFailed       State = "spawn_failed"
)

func (s State) String() string { return string(s) }

// IsTerminal reports whether no further transition is expected.
func (s State) IsTerminal() bool {
	return s == StateTerminated || s == StateSpawnFailed
}

// transitions lists the allowed successor states. The empty state is a
// member the coordinator has not seen yet.
var transitions = map[State][]State{
	"":                     {StateRequested},
	StateRequested:         {StateSpawning, StateSpawnFailed},
	StateSpawning:          {StateActive, StateSpawnFailed},
	StateActive:            {StateShutdownRequested, StateTerminated},
	StateShutdownRequested: {StateShutdownRequested, StateShutdownApproved, StateActive, StateTerminated},
	StateShutdownApproved:  {StateTerminated, StateShutdownRequested},
	StateTerminated:        {StateRequested},
	StateSpawnFailed:       {StateRequested},
}

// CanTransition reports whether from -> to is a legal member transition.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// deriveState infers a state from a registry record for members the
// coordinator is not tracking, e.g. ones spawned by another process.
func deriveState(m registry.Member) State {
	switch {
	case m.IsActive:
		return StateActive
	case m.LeftAt != nil:
		return StateTerminated
	default:
		return StateRequested
	}
}

// MemberHandle is a point-in-time view of one member's lifecycle.
type MemberHandle struct {
	Team      string              `json:"team"`
	Member    string              `json:"member"`
	AgentID   string              `json:"agentId"`
	Role      registry.Role       `json:"role"`
	State     State               `json:"state"`
	IsActive  bool                `json:"isActive"`
	Backend   registry.BackendRef `json:"backend"`
	RequestID string              `json:"requestId,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Outcome is the resolution of a shutdown handshake.
type Outcome struct {
	RequestID string
	Team      string
	Member    string
	Approved  bool
	Reason    string
	// Err is set when the member approved but its backend could not be
	// terminated.
	Err error
}
