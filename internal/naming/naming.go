// Package naming holds the identifier policy shared by teams and members:
// kebab-case names, agent IDs of the form "name@team", and the tmux session
// names derived from them.
package naming

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
)

// MaxNameLength bounds team and member names. Pane names embed both, and
// tmux session names become part of socket paths.
const MaxNameLength = 64

// LeadName is the member name reserved for the coordinator.
const LeadName = "team-lead"

var kebabRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateTeamName checks name against the kebab-case policy.
func ValidateTeamName(name string) error {
	return validate("team", name)
}

// ValidateMemberName checks name against the kebab-case policy.
func ValidateMemberName(name string) error {
	return validate("member", name)
}

func validate(field, name string) error {
	switch {
	case name == "":
		return errors.NewValidationError("must not be empty").
			WithField(field).WithCause(errors.ErrNameInvalid)
	case len(name) > MaxNameLength:
		return errors.NewValidationError(fmt.Sprintf("must be at most %d characters", MaxNameLength)).
			WithField(field).WithValue(name).WithCause(errors.ErrNameInvalid)
	case !kebabRegex.MatchString(name):
		return errors.NewValidationError("must be kebab-case (lowercase letters, digits, single hyphens)").
			WithField(field).WithValue(name).WithCause(errors.ErrNameInvalid)
	}
	return nil
}

// Slugify turns free text into a kebab-case name that passes validation,
// or returns "" if nothing usable remains.
func Slugify(text string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}

	s := strings.TrimRight(b.String(), "-")
	if len(s) > MaxNameLength {
		s = strings.TrimRight(s[:MaxNameLength], "-")
	}
	return s
}

// AgentID returns the team-qualified member identifier "name@team".
func AgentID(member, team string) string {
	return member + "@" + team
}

// ParseAgentID splits "name@team". ok is false when the input has no "@"
// or either side is empty.
func ParseAgentID(id string) (member, team string, ok bool) {
	member, team, found := strings.Cut(id, "@")
	if !found || member == "" || team == "" {
		return "", "", false
	}
	return member, team, true
}

// PaneName returns the tmux session name used for a member's pane.
func PaneName(team, member string) string {
	return "hyperteam-" + team + "--" + member
}

// ParsePaneName reverses PaneName. The "--" separator is unambiguous
// because kebab-case names never contain consecutive hyphens.
func ParsePaneName(pane string) (team, member string, ok bool) {
	rest, found := strings.CutPrefix(pane, "hyperteam-")
	if !found {
		return "", "", false
	}
	team, member, found = strings.Cut(rest, "--")
	if !found || team == "" || member == "" {
		return "", "", false
	}
	return team, member, true
}
