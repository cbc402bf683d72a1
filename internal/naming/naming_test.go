package naming

import (
	"strings"
	"testing"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
)

func TestValidateTeamName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "alpha", false},
		{"kebab", "auth-refactor-2", false},
		{"digits only", "42", false},
		{"max length", strings.Repeat("a", MaxNameLength), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxNameLength+1), true},
		{"uppercase", "Alpha", true},
		{"space", "my team", true},
		{"underscore", "my_team", true},
		{"leading hyphen", "-alpha", true},
		{"trailing hyphen", "alpha-", true},
		{"double hyphen", "alpha--beta", true},
		{"path traversal", "../etc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTeamName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTeamName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrNameInvalid) {
				t.Errorf("error should wrap ErrNameInvalid: %v", err)
			}
		})
	}
}

func TestValidateMemberName_Field(t *testing.T) {
	err := ValidateMemberName("Bad Name")
	var verr *errors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Field != "member" {
		t.Errorf("Field = %q, want member", verr.Field)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Auth Refactor", "auth-refactor"},
		{"  Fix: login bug!! ", "fix-login-bug"},
		{"already-kebab", "already-kebab"},
		{"émoji 🚀 team", "moji-team"},
		{"!!!", ""},
		{strings.Repeat("ab ", 40), strings.TrimRight(strings.Repeat("ab-", 22)[:MaxNameLength], "-")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Slugify(tt.in)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if got != "" {
				if err := ValidateTeamName(got); err != nil {
					t.Errorf("Slugify output %q is not a valid name: %v", got, err)
				}
			}
		})
	}
}

func TestAgentID(t *testing.T) {
	id := AgentID("worker-1", "alpha")
	if id != "worker-1@alpha" {
		t.Errorf("AgentID() = %q", id)
	}

	member, team, ok := ParseAgentID(id)
	if !ok || member != "worker-1" || team != "alpha" {
		t.Errorf("ParseAgentID(%q) = (%q, %q, %v)", id, member, team, ok)
	}

	for _, bad := range []string{"worker", "@alpha", "worker@", ""} {
		if _, _, ok := ParseAgentID(bad); ok {
			t.Errorf("ParseAgentID(%q) should fail", bad)
		}
	}
}

func TestPaneName(t *testing.T) {
	pane := PaneName("auth-team", "worker-1")
	if pane != "hyperteam-auth-team--worker-1" {
		t.Errorf("PaneName() = %q", pane)
	}

	team, member, ok := ParsePaneName(pane)
	if !ok || team != "auth-team" || member != "worker-1" {
		t.Errorf("ParsePaneName(%q) = (%q, %q, %v)", pane, team, member, ok)
	}

	for _, bad := range []string{"otherapp-abc", "hyperteam-alpha", "hyperteam---m"} {
		if _, _, ok := ParsePaneName(bad); ok {
			t.Errorf("ParsePaneName(%q) should fail", bad)
		}
	}
}
