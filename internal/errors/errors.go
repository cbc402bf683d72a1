// Package errors provides centralized error definitions and error handling utilities
// for hyperteam. It defines the protocol's error taxonomy as sentinel errors,
// context-carrying error types, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - TeamError: registry, mailbox, task graph and lifecycle failures, carrying
//     the team, member and task identifiers plus the violated invariant
//   - ProcessError: failures of the pane/process manager collaborator
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input (names, settings)
//   - TimeoutError: a bounded wait expired
//
// # Usage
//
//	err := errors.TeamNotFound("alpha")
//	if errors.Is(err, errors.ErrTeamNotFound) { ... }
//
//	var teamErr *errors.TeamError
//	if errors.As(err, &teamErr) {
//	    fmt.Println(teamErr.Team, teamErr.Invariant)
//	}
//
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// Validation and invariant errors are never retryable. Only transient
// collaborator failures (ErrProcessUnavailable) and timeouts are.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Validation sentinel errors
var (
	// ErrNameInvalid indicates a team or member name violates the naming policy.
	ErrNameInvalid = New("name invalid")
	// ErrAlreadyExists indicates a team with the same name already exists.
	ErrAlreadyExists = New("already exists")
	// ErrDuplicateMemberName indicates a member name is already used in the team.
	ErrDuplicateMemberName = New("duplicate member name")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// Not-found sentinel errors
var (
	// ErrNotFound is the parent of every not-found variant.
	ErrNotFound = New("not found")
	// ErrTeamNotFound indicates that a team could not be found.
	ErrTeamNotFound = fmt.Errorf("team %w", ErrNotFound)
	// ErrMemberNotFound indicates that a member could not be found in its team.
	ErrMemberNotFound = fmt.Errorf("member %w", ErrNotFound)
	// ErrTaskNotFound indicates that a task could not be found.
	ErrTaskNotFound = fmt.Errorf("task %w", ErrNotFound)
	// ErrRequestNotFound indicates an unknown shutdown request ID.
	ErrRequestNotFound = fmt.Errorf("shutdown request %w", ErrNotFound)
)

// Invariant sentinel errors
var (
	// ErrActiveMembersExist indicates a team cannot be deleted while members are active.
	ErrActiveMembersExist = New("active members exist")
	// ErrWouldCreateCycle indicates a blocking edge would close a dependency cycle.
	ErrWouldCreateCycle = New("would create cycle")
	// ErrInvalidTransition indicates a task or member state transition is not allowed.
	ErrInvalidTransition = New("invalid transition")
	// ErrRecipientInactive indicates a message was addressed to a deactivated member.
	ErrRecipientInactive = New("recipient inactive")
	// ErrSenderInactive indicates a deactivated member tried to send a message.
	ErrSenderInactive = New("sender inactive")
)

// Lifecycle sentinel errors
var (
	// ErrSpawnFailed indicates a member's backend never became live.
	ErrSpawnFailed = New("spawn failed")
	// ErrShutdownTimeout indicates a member did not complete the shutdown handshake.
	ErrShutdownTimeout = New("shutdown timeout")
	// ErrProcessUnavailable indicates the process manager could not be reached.
	ErrProcessUnavailable = New("process manager unavailable")
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// TeamsError is the base interface for all hyperteam errors.
type TeamsError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// TeamError represents a failed registry, mailbox, task graph or lifecycle
// operation. It names every identifier involved and the invariant that was
// violated, so callers can decide between retrying, cleaning up or aborting.
//
// Example:
//
//	err := errors.NewTeamError("cannot delete team", errors.ErrActiveMembersExist).
//	    WithTeam("alpha").
//	    WithInvariant("no deletion while members are active")
//	fmt.Println(err) // "team error [team=alpha]: cannot delete team: active members exist (invariant: no deletion while members are active)"
type TeamError struct {
	baseError
	Team      string
	Member    string
	Task      string
	Invariant string
}

// NewTeamError creates a new TeamError. The retryable flag follows the cause.
func NewTeamError(message string, cause error) *TeamError {
	return &TeamError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  Is(cause, ErrProcessUnavailable) || Is(cause, ErrTimeout),
			userFacing: true,
		},
	}
}

// WithTeam adds a team name to the error context.
func (e *TeamError) WithTeam(team string) *TeamError {
	e.Team = team
	return e
}

// WithMember adds a member name to the error context.
func (e *TeamError) WithMember(member string) *TeamError {
	e.Member = member
	return e
}

// WithTask adds a task ID to the error context.
func (e *TeamError) WithTask(task string) *TeamError {
	e.Task = task
	return e
}

// WithInvariant records which protocol invariant the operation would violate.
func (e *TeamError) WithInvariant(invariant string) *TeamError {
	e.Invariant = invariant
	return e
}

// WithSeverity sets the error severity.
func (e *TeamError) WithSeverity(s Severity) *TeamError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *TeamError) WithRetryable(r bool) *TeamError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TeamError) Error() string {
	var parts []string
	if e.Team != "" {
		parts = append(parts, fmt.Sprintf("team=%s", e.Team))
	}
	if e.Member != "" {
		parts = append(parts, fmt.Sprintf("member=%s", e.Member))
	}
	if e.Task != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.Task))
	}

	prefix := "team error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("team error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Invariant != "" {
		msg = fmt.Sprintf("%s (invariant: %s)", msg, e.Invariant)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

// ProcessError represents a failure reported by the pane/process manager.
//
// Example:
//
//	err := errors.NewProcessError("tmux new-session failed", errors.ErrProcessUnavailable).
//	    WithPane("hyperteam-alpha--worker-1")
type ProcessError struct {
	baseError
	Member string
	Pane   string
	Socket string
}

// NewProcessError creates a new ProcessError. Errors caused by
// ErrProcessUnavailable are retryable.
func NewProcessError(message string, cause error) *ProcessError {
	return &ProcessError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  Is(cause, ErrProcessUnavailable),
			userFacing: true,
		},
	}
}

// WithMember adds a member agent ID to the error context.
func (e *ProcessError) WithMember(member string) *ProcessError {
	e.Member = member
	return e
}

// WithPane adds a pane/session name to the error context.
func (e *ProcessError) WithPane(pane string) *ProcessError {
	e.Pane = pane
	return e
}

// WithSocket adds a tmux socket name to the error context.
func (e *ProcessError) WithSocket(socket string) *ProcessError {
	e.Socket = socket
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ProcessError) WithRetryable(r bool) *ProcessError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ProcessError) Error() string {
	var parts []string
	if e.Member != "" {
		parts = append(parts, fmt.Sprintf("member=%s", e.Member))
	}
	if e.Pane != "" {
		parts = append(parts, fmt.Sprintf("pane=%s", e.Pane))
	}
	if e.Socket != "" {
		parts = append(parts, fmt.Sprintf("socket=%s", e.Socket))
	}

	prefix := "process error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("process error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input.
//
// Example:
//
//	err := errors.NewValidationError("must be kebab-case").WithField("team").WithValue("Bad Name")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is matches ErrInvalidInput in addition to the wrapped cause.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for shutdown response", 30*time.Second)
//	fmt.Println(err) // "timeout error: waiting for shutdown response (timeout: 30s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is matches ErrTimeout in addition to the wrapped cause.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// -----------------------------------------------------------------------------
// Taxonomy Constructors
// -----------------------------------------------------------------------------

// TeamNotFound returns the error for an unknown team.
func TeamNotFound(team string) *TeamError {
	return NewTeamError("team does not exist", ErrTeamNotFound).WithTeam(team).WithSeverity(SeverityWarning)
}

// MemberNotFound returns the error for an unknown member of a team.
func MemberNotFound(team, member string) *TeamError {
	return NewTeamError("member does not exist", ErrMemberNotFound).
		WithTeam(team).WithMember(member).WithSeverity(SeverityWarning)
}

// TaskNotFound returns the error for an unknown task.
func TaskNotFound(team, task string) *TeamError {
	return NewTeamError("task does not exist", ErrTaskNotFound).
		WithTeam(team).WithTask(task).WithSeverity(SeverityWarning)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var teamsErr TeamsError
	if As(err, &teamsErr) {
		return teamsErr.IsRetryable()
	}

	return Is(err, ErrProcessUnavailable) || Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var teamsErr TeamsError
	if As(err, &teamsErr) {
		return teamsErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement TeamsError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var teamsErr TeamsError
	if As(err, &teamsErr) {
		return teamsErr.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
