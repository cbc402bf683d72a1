package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// TeamError Tests
// -----------------------------------------------------------------------------

func TestNewTeamError(t *testing.T) {
	err := NewTeamError("cannot delete team", ErrActiveMembersExist)

	if err.message != "cannot delete team" {
		t.Errorf("message = %q, want %q", err.message, "cannot delete team")
	}
	if err.cause != ErrActiveMembersExist {
		t.Errorf("cause = %v, want %v", err.cause, ErrActiveMembersExist)
	}
	if err.Severity() != SeverityError {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityError)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
	if !err.IsUserFacing() {
		t.Error("IsUserFacing() = false, want true")
	}
}

func TestNewTeamError_RetryableFollowsCause(t *testing.T) {
	err := NewTeamError("terminate pane", ErrProcessUnavailable)
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true for ErrProcessUnavailable")
	}
}

func TestTeamError_WithMethods(t *testing.T) {
	err := NewTeamError("test", nil).
		WithTeam("alpha").
		WithMember("worker-1").
		WithTask("task-1").
		WithInvariant("acyclic").
		WithSeverity(SeverityCritical).
		WithRetryable(true)

	if err.Team != "alpha" {
		t.Errorf("Team = %q, want %q", err.Team, "alpha")
	}
	if err.Member != "worker-1" {
		t.Errorf("Member = %q, want %q", err.Member, "worker-1")
	}
	if err.Task != "task-1" {
		t.Errorf("Task = %q, want %q", err.Task, "task-1")
	}
	if err.Invariant != "acyclic" {
		t.Errorf("Invariant = %q, want %q", err.Invariant, "acyclic")
	}
	if err.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityCritical)
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
}

func TestTeamError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *TeamError
		want string
	}{
		{
			name: "no context",
			err:  NewTeamError("failed", nil),
			want: "team error: failed",
		},
		{
			name: "team only",
			err:  NewTeamError("failed", nil).WithTeam("alpha"),
			want: "team error [team=alpha]: failed",
		},
		{
			name: "all identifiers with cause",
			err:  NewTeamError("failed", ErrTaskNotFound).WithTeam("alpha").WithMember("m1").WithTask("t1"),
			want: "team error [team=alpha, member=m1, task=t1]: failed: task not found",
		},
		{
			name: "with invariant",
			err: NewTeamError("cannot delete team", ErrActiveMembersExist).
				WithTeam("alpha").
				WithInvariant("no deletion while members are active"),
			want: "team error [team=alpha]: cannot delete team: active members exist (invariant: no deletion while members are active)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTeamError_ErrorsIs(t *testing.T) {
	err := NewTeamError("edge rejected", ErrWouldCreateCycle).WithTask("c")
	wrapped := fmt.Errorf("adding edge: %w", err)

	if !errors.Is(wrapped, ErrWouldCreateCycle) {
		t.Error("errors.Is(wrapped, ErrWouldCreateCycle) = false, want true")
	}

	var teamErr *TeamError
	if !errors.As(wrapped, &teamErr) {
		t.Fatal("errors.As(wrapped, *TeamError) = false, want true")
	}
	if teamErr.Task != "c" {
		t.Errorf("Task = %q, want %q", teamErr.Task, "c")
	}
}

// -----------------------------------------------------------------------------
// Not-found Tests
// -----------------------------------------------------------------------------

func TestNotFoundConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"team", TeamNotFound("alpha"), ErrTeamNotFound},
		{"member", MemberNotFound("alpha", "m1"), ErrMemberNotFound},
		{"task", TaskNotFound("alpha", "t1"), ErrTaskNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
			}
			if !errors.Is(tt.err, ErrNotFound) {
				t.Errorf("errors.Is(%v, ErrNotFound) = false", tt.err)
			}
			if GetSeverity(tt.err) != SeverityWarning {
				t.Errorf("GetSeverity() = %v, want %v", GetSeverity(tt.err), SeverityWarning)
			}
		})
	}
}

func TestMemberNotFound_CarriesIdentifiers(t *testing.T) {
	err := MemberNotFound("alpha", "m1")
	if err.Team != "alpha" || err.Member != "m1" {
		t.Errorf("identifiers = (%q, %q), want (alpha, m1)", err.Team, err.Member)
	}
}

// -----------------------------------------------------------------------------
// ProcessError Tests
// -----------------------------------------------------------------------------

func TestProcessError(t *testing.T) {
	err := NewProcessError("new-session failed", ErrProcessUnavailable).
		WithMember("m1@alpha").
		WithPane("hyperteam-alpha-m1").
		WithSocket("hyperteam")

	want := "process error [member=m1@alpha, pane=hyperteam-alpha-m1, socket=hyperteam]: new-session failed: process manager unavailable"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
	if !errors.Is(err, ErrProcessUnavailable) {
		t.Error("errors.Is(err, ErrProcessUnavailable) = false, want true")
	}

	plain := NewProcessError("bad spec", nil)
	if plain.IsRetryable() {
		t.Error("IsRetryable() = true for error without transient cause")
	}
	if got := plain.Error(); got != "process error: bad spec" {
		t.Errorf("Error() = %q", got)
	}
}

// -----------------------------------------------------------------------------
// ValidationError Tests
// -----------------------------------------------------------------------------

func TestValidationError(t *testing.T) {
	err := NewValidationError("must be kebab-case").
		WithField("team").
		WithValue("Bad Name").
		WithCause(ErrNameInvalid)

	want := "validation error [field=team, value=Bad Name]: must be kebab-case: name invalid"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrNameInvalid) {
		t.Error("errors.Is(err, ErrNameInvalid) = false, want true")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("errors.Is(err, ErrInvalidInput) = false, want true")
	}
	if err.IsRetryable() {
		t.Error("validation errors must not be retryable")
	}
	if err.Severity() != SeverityWarning {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityWarning)
	}
}

// -----------------------------------------------------------------------------
// TimeoutError Tests
// -----------------------------------------------------------------------------

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("waiting for shutdown response", 30*time.Second)

	want := "timeout error: waiting for shutdown response (timeout: 30s)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false, want true")
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}

	withCause := err.WithCause(ErrShutdownTimeout)
	if !errors.Is(withCause, ErrShutdownTimeout) {
		t.Error("errors.Is(err, ErrShutdownTimeout) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Classification Helper Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"process unavailable sentinel", ErrProcessUnavailable, true},
		{"wrapped process unavailable", Wrap(ErrProcessUnavailable, "spawn"), true},
		{"timeout sentinel", ErrTimeout, true},
		{"cycle", NewTeamError("edge", ErrWouldCreateCycle), false},
		{"name invalid", NewValidationError("bad").WithCause(ErrNameInvalid), false},
		{"timeout error", NewTimeoutError("op", time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if IsUserFacing(errors.New("internal")) {
		t.Error("IsUserFacing(plain) = true")
	}
	if !IsUserFacing(TeamNotFound("alpha")) {
		t.Error("IsUserFacing(TeamNotFound) = false")
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want debug", got)
	}
	if got := GetSeverity(errors.New("x")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want error", got)
	}
	crit := NewTeamError("x", nil).WithSeverity(SeverityCritical)
	if got := GetSeverity(Wrap(crit, "outer")); got != SeverityCritical {
		t.Errorf("GetSeverity(wrapped critical) = %v, want critical", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "msg") != nil {
		t.Error("Wrap(nil) != nil")
	}
	if Wrapf(nil, "msg %d", 1) != nil {
		t.Error("Wrapf(nil) != nil")
	}

	err := Wrapf(ErrTeamNotFound, "loading %s", "alpha")
	if got := err.Error(); got != "loading alpha: team not found" {
		t.Errorf("Wrapf() = %q", got)
	}
	if !errors.Is(err, ErrTeamNotFound) {
		t.Error("Wrapf lost the cause")
	}
}
