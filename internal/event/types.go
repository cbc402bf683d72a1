package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns the "category.action" identifier.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeTeamCreated        = "team.created"
	TypeTeamDeleted        = "team.deleted"
	TypeMemberJoined       = "member.joined"
	TypeMemberLeft         = "member.left"
	TypeMemberRemoved      = "member.removed"
	TypeMemberStateChanged = "member.state_changed"
	TypeMessageAppended    = "mailbox.message"
	TypeTaskCreated        = "task.created"
	TypeTaskStatusChanged  = "task.status_changed"
	TypeTaskEdgeChanged    = "task.edge_changed"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// -----------------------------------------------------------------------------
// Registry Events
// -----------------------------------------------------------------------------

// TeamCreatedEvent is emitted after a team record is first persisted.
type TeamCreatedEvent struct {
	baseEvent
	Team        string
	Description string
}

// NewTeamCreatedEvent creates a TeamCreatedEvent.
func NewTeamCreatedEvent(team, description string) TeamCreatedEvent {
	return TeamCreatedEvent{baseEvent: newBaseEvent(TypeTeamCreated), Team: team, Description: description}
}

// TeamDeletedEvent is emitted after a team and its inboxes are removed.
type TeamDeletedEvent struct {
	baseEvent
	Team string
}

// NewTeamDeletedEvent creates a TeamDeletedEvent.
func NewTeamDeletedEvent(team string) TeamDeletedEvent {
	return TeamDeletedEvent{baseEvent: newBaseEvent(TypeTeamDeleted), Team: team}
}

// MemberJoinedEvent is emitted when a member record is added to a team.
type MemberJoinedEvent struct {
	baseEvent
	Team   string
	Member string
	Role   string
}

// NewMemberJoinedEvent creates a MemberJoinedEvent.
func NewMemberJoinedEvent(team, member, role string) MemberJoinedEvent {
	return MemberJoinedEvent{baseEvent: newBaseEvent(TypeMemberJoined), Team: team, Member: member, Role: role}
}

// MemberLeftEvent is emitted when a member is deactivated.
type MemberLeftEvent struct {
	baseEvent
	Team   string
	Member string
}

// NewMemberLeftEvent creates a MemberLeftEvent.
func NewMemberLeftEvent(team, member string) MemberLeftEvent {
	return MemberLeftEvent{baseEvent: newBaseEvent(TypeMemberLeft), Team: team, Member: member}
}

// MemberRemovedEvent is emitted when a member record is hard-removed,
// which only happens when a spawn is rolled back.
type MemberRemovedEvent struct {
	baseEvent
	Team   string
	Member string
}

// NewMemberRemovedEvent creates a MemberRemovedEvent.
func NewMemberRemovedEvent(team, member string) MemberRemovedEvent {
	return MemberRemovedEvent{baseEvent: newBaseEvent(TypeMemberRemoved), Team: team, Member: member}
}

// -----------------------------------------------------------------------------
// Lifecycle Events
// -----------------------------------------------------------------------------

// MemberStateChangedEvent is emitted on every lifecycle state transition.
type MemberStateChangedEvent struct {
	baseEvent
	Team      string
	Member    string
	From      string
	To        string
	RequestID string // shutdown request, if any
	Reason    string
}

// NewMemberStateChangedEvent creates a MemberStateChangedEvent.
func NewMemberStateChangedEvent(team, member, from, to, requestID, reason string) MemberStateChangedEvent {
	return MemberStateChangedEvent{
		baseEvent: newBaseEvent(TypeMemberStateChanged),
		Team:      team,
		Member:    member,
		From:      from,
		To:        to,
		RequestID: requestID,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Mailbox Events
// -----------------------------------------------------------------------------

// MessageAppendedEvent is emitted after a message is durably appended to
// a recipient's inbox.
type MessageAppendedEvent struct {
	baseEvent
	Team        string
	Recipient   string
	From        string
	MessageID   string
	PayloadType string
}

// NewMessageAppendedEvent creates a MessageAppendedEvent.
func NewMessageAppendedEvent(team, recipient, from, messageID, payloadType string) MessageAppendedEvent {
	return MessageAppendedEvent{
		baseEvent:   newBaseEvent(TypeMessageAppended),
		Team:        team,
		Recipient:   recipient,
		From:        from,
		MessageID:   messageID,
		PayloadType: payloadType,
	}
}

// -----------------------------------------------------------------------------
// Task Graph Events
// -----------------------------------------------------------------------------

// TaskCreatedEvent is emitted when a task node is added.
type TaskCreatedEvent struct {
	baseEvent
	Team    string
	TaskID  string
	Subject string
	Owner   string
}

// NewTaskCreatedEvent creates a TaskCreatedEvent.
func NewTaskCreatedEvent(team, taskID, subject, owner string) TaskCreatedEvent {
	return TaskCreatedEvent{
		baseEvent: newBaseEvent(TypeTaskCreated),
		Team:      team,
		TaskID:    taskID,
		Subject:   subject,
		Owner:     owner,
	}
}

// TaskStatusChangedEvent is emitted when a task moves between statuses.
type TaskStatusChangedEvent struct {
	baseEvent
	Team   string
	TaskID string
	From   string
	To     string
}

// NewTaskStatusChangedEvent creates a TaskStatusChangedEvent.
func NewTaskStatusChangedEvent(team, taskID, from, to string) TaskStatusChangedEvent {
	return TaskStatusChangedEvent{
		baseEvent: newBaseEvent(TypeTaskStatusChanged),
		Team:      team,
		TaskID:    taskID,
		From:      from,
		To:        to,
	}
}

// TaskEdgeChangedEvent is emitted when a blocking edge is added or removed.
type TaskEdgeChangedEvent struct {
	baseEvent
	Team    string
	Blocker string
	Blocked string
	Added   bool
}

// NewTaskEdgeChangedEvent creates a TaskEdgeChangedEvent.
func NewTaskEdgeChangedEvent(team, blocker, blocked string, added bool) TaskEdgeChangedEvent {
	return TaskEdgeChangedEvent{
		baseEvent: newBaseEvent(TypeTaskEdgeChanged),
		Team:      team,
		Blocker:   blocker,
		Blocked:   blocked,
		Added:     added,
	}
}
