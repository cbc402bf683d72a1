package taskgraph

import (
	"fmt"
	"slices"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// String returns the status name.
func (s Status) String() string { return string(s) }

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus converts a user-supplied status name.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown task status %q (valid: pending, in_progress, completed, cancelled)", s)
	}
	return st, nil
}

// canTransition reports whether from -> to is an allowed status change.
// Staying in the same status is always allowed.
func canTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusInProgress
	case StatusInProgress:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}

// Task is a unit of work owned by at most one member.
type Task struct {
	ID          string    `json:"id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	Owner       string    `json:"owner,omitempty"`
	Team        string    `json:"team"`
	Blocks      []string  `json:"blocks"`
	BlockedBy   []string  `json:"blockedBy"`
	Tags        []string  `json:"tags,omitempty"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Archived    bool      `json:"archived,omitempty"`
}

func (t *Task) clone() Task {
	cp := *t
	cp.Blocks = slices.Clone(t.Blocks)
	cp.BlockedBy = slices.Clone(t.BlockedBy)
	cp.Tags = slices.Clone(t.Tags)
	if cp.Blocks == nil {
		cp.Blocks = []string{}
	}
	if cp.BlockedBy == nil {
		cp.BlockedBy = []string{}
	}
	return cp
}

// Spec describes a task to add.
type Spec struct {
	Subject     string
	Description string
	Owner       string
	Tags        []string
	Priority    int
}

// Snapshot is the persisted form of a graph: tasks in insertion order.
type Snapshot struct {
	Team  string `json:"team"`
	Tasks []Task `json:"tasks"`
}

// Summary counts tasks by status. Archived tasks are counted separately
// and excluded from the status counts.
type Summary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	Archived   int `json:"archived"`
}
