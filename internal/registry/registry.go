package registry

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/event"
	"github.com/de-monkey-v/hyper-team-sub000/internal/filelock"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
)

const (
	configFileName = "config.json"
	inboxDirName   = "inboxes"
	lockDirName    = ".locks"
)

// Registry stores team records under {baseDir}/teams.
// It is safe for concurrent use, including from several processes sharing
// the same base directory.
type Registry struct {
	baseDir  string
	locks    *filelock.Keyed
	bus      *event.Bus
	logger   *logging.Logger
	now      func() time.Time
	defaults Settings
}

// New creates a Registry rooted at baseDir.
func New(baseDir string, opts ...Option) *Registry {
	r := &Registry{
		baseDir: baseDir,
		locks:   filelock.NewKeyed(),
		logger:  logging.NopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BaseDir returns the workspace root.
func (r *Registry) BaseDir() string { return r.baseDir }

// TeamsDir returns {base}/teams.
func (r *Registry) TeamsDir() string { return filepath.Join(r.baseDir, "teams") }

// TeamDir returns the directory holding a team's record and inboxes.
func (r *Registry) TeamDir(team string) string { return filepath.Join(r.TeamsDir(), team) }

// InboxDir returns the directory holding a team's member inboxes.
func (r *Registry) InboxDir(team string) string {
	return filepath.Join(r.TeamDir(team), inboxDirName)
}

func (r *Registry) configPath(team string) string {
	return filepath.Join(r.TeamDir(team), configFileName)
}

func (r *Registry) lockPath(team string) string {
	return filepath.Join(r.TeamsDir(), lockDirName, team+".lock")
}

// WithTeamLock runs fn while holding the team's write lock. The lock is not
// reentrant: fn must not call mutating Registry methods for the same team.
func (r *Registry) WithTeamLock(team string, fn func() error) error {
	if err := naming.ValidateTeamName(team); err != nil {
		return err
	}
	return r.locks.Do(team, r.lockPath(team), fn)
}

// Exists reports whether the team record is present.
func (r *Registry) Exists(team string) bool {
	if naming.ValidateTeamName(team) != nil {
		return false
	}
	_, err := os.Stat(r.configPath(team))
	return err == nil
}

// Get returns a snapshot of the team record.
func (r *Registry) Get(team string) (Team, error) {
	if err := naming.ValidateTeamName(team); err != nil {
		return Team{}, err
	}
	return r.load(team)
}

func (r *Registry) load(team string) (Team, error) {
	data, err := os.ReadFile(r.configPath(team))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Team{}, errors.TeamNotFound(team)
		}
		return Team{}, errors.Wrapf(err, "read team %s", team)
	}

	var t Team
	if err := json.Unmarshal(data, &t); err != nil {
		return Team{}, errors.Wrapf(err, "decode team %s", team)
	}
	return t, nil
}

func (r *Registry) save(t *Team) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode team %s", t.Name)
	}
	return filelock.WriteFileAtomic(r.configPath(t.Name), data, 0o644)
}

// List returns snapshots of every team, sorted by name. Directories without
// a readable record are skipped.
func (r *Registry) List() ([]Team, error) {
	entries, err := os.ReadDir(r.TeamsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "list teams")
	}

	var teams []Team
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		t, err := r.load(e.Name())
		if err != nil {
			r.logger.Debug("skipping unreadable team", "dir", e.Name(), "error", err)
			continue
		}
		teams = append(teams, t)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

// CreateTeam persists a new team with no members.
//
// Returns ErrNameInvalid if the name violates the kebab-case policy and
// ErrAlreadyExists if a team with the name exists.
func (r *Registry) CreateTeam(name, description string) (Team, error) {
	if err := naming.ValidateTeamName(name); err != nil {
		return Team{}, err
	}

	t := Team{
		Name:        name,
		Description: description,
		CreatedAt:   r.now().UTC(),
		Members:     []Member{},
		Settings:    r.defaults,
	}

	err := r.locks.Do(name, r.lockPath(name), func() error {
		if _, err := os.Stat(r.configPath(name)); err == nil {
			return errors.NewTeamError("cannot create team", errors.ErrAlreadyExists).
				WithTeam(name).
				WithInvariant("team names are unique per workspace")
		}
		if err := os.MkdirAll(r.InboxDir(name), 0o755); err != nil {
			return errors.Wrapf(err, "create team dir %s", name)
		}
		return r.save(&t)
	})
	if err != nil {
		return Team{}, err
	}

	r.logger.WithTeam(name).Info("team created")
	r.publish(event.NewTeamCreatedEvent(name, description))
	return t, nil
}

// mutate loads the team under its lock, applies fn and saves the result.
// Nothing is written if fn returns an error.
func (r *Registry) mutate(team string, fn func(*Team) error) (Team, error) {
	if err := naming.ValidateTeamName(team); err != nil {
		return Team{}, err
	}
	if !r.Exists(team) {
		return Team{}, errors.TeamNotFound(team)
	}

	var out Team
	err := r.locks.Do(team, r.lockPath(team), func() error {
		t, err := r.load(team)
		if err != nil {
			return err
		}
		if err := fn(&t); err != nil {
			return err
		}
		if err := r.save(&t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// AddMember appends a member record.
//
// AgentID and JoinedAt are filled in when empty. Returns ErrTeamNotFound,
// ErrNameInvalid, or ErrDuplicateMemberName when the name is already used
// in the team (active or not).
func (r *Registry) AddMember(team string, m Member) error {
	if err := naming.ValidateMemberName(m.Name); err != nil {
		return err
	}
	if err := checkBackend(team, m); err != nil {
		return err
	}

	_, err := r.mutate(team, func(t *Team) error {
		if t.memberIndex(m.Name) >= 0 {
			return errors.NewTeamError("cannot add member", errors.ErrDuplicateMemberName).
				WithTeam(team).
				WithMember(m.Name).
				WithInvariant("member names are unique within a team")
		}
		m.AgentID = naming.AgentID(m.Name, team)
		if m.Role == "" {
			m.Role = RoleWorker
		}
		if m.JoinedAt.IsZero() {
			m.JoinedAt = r.now().UTC()
		}
		if m.Role == RoleLead {
			t.LeadAgentID = m.AgentID
		}
		t.Members = append(t.Members, m)
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.WithTeam(team).WithMember(m.Name).Info("member added", "role", string(m.Role))
	r.publish(event.NewMemberJoinedEvent(team, m.Name, string(m.Role)))
	return nil
}

func checkBackend(team string, m Member) error {
	if m.IsActive && !m.Backend.Valid() {
		return errors.NewTeamError("active member requires a backend reference", errors.ErrInvalidInput).
			WithTeam(team).
			WithMember(m.Name).
			WithInvariant("active members have a valid backend reference")
	}
	return nil
}

// UpdateMember applies fn to the named member under the team lock. fn may
// not rename the member. Returns the updated member.
func (r *Registry) UpdateMember(team, name string, fn func(*Member) error) (Member, error) {
	var updated Member
	_, err := r.mutate(team, func(t *Team) error {
		i := t.memberIndex(name)
		if i < 0 {
			return errors.MemberNotFound(team, name)
		}
		m := t.Members[i]
		if err := fn(&m); err != nil {
			return err
		}
		if m.Name != name {
			return errors.NewTeamError("members cannot be renamed", errors.ErrInvalidInput).
				WithTeam(team).WithMember(name)
		}
		if err := checkBackend(team, m); err != nil {
			return err
		}
		t.Members[i] = m
		updated = m
		return nil
	})
	return updated, err
}

// DeactivateMember marks the member inactive and records when it left.
// Deactivating an inactive member is a no-op. Returns ErrMemberNotFound for
// unknown names.
func (r *Registry) DeactivateMember(team, name string) error {
	wasActive := false
	_, err := r.mutate(team, func(t *Team) error {
		i := t.memberIndex(name)
		if i < 0 {
			return errors.MemberNotFound(team, name)
		}
		m := &t.Members[i]
		if !m.IsActive {
			return nil
		}
		wasActive = true
		now := r.now().UTC()
		m.IsActive = false
		m.LeftAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	if wasActive {
		r.logger.WithTeam(team).WithMember(name).Info("member deactivated")
		r.publish(event.NewMemberLeftEvent(team, name))
	}
	return nil
}

// RemoveMember deletes the member record outright. It exists for spawn
// rollback, where the member never became active; removing an active
// member is rejected.
func (r *Registry) RemoveMember(team, name string) error {
	_, err := r.mutate(team, func(t *Team) error {
		i := t.memberIndex(name)
		if i < 0 {
			return errors.MemberNotFound(team, name)
		}
		if t.Members[i].IsActive {
			return errors.NewTeamError("cannot remove active member", errors.ErrActiveMembersExist).
				WithTeam(team).
				WithMember(name).
				WithInvariant("only inactive members can be removed")
		}
		t.Members = append(t.Members[:i], t.Members[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.WithTeam(team).WithMember(name).Info("member removed")
	r.publish(event.NewMemberRemovedEvent(team, name))
	return nil
}

// UpdateSettings replaces the team settings.
func (r *Registry) UpdateSettings(team string, s Settings) error {
	if s.MaxConcurrentTasks < 0 || s.Timeout < 0 {
		return errors.NewValidationError("settings must be non-negative").WithField("settings").WithValue(s)
	}
	_, err := r.mutate(team, func(t *Team) error {
		t.Settings = s
		return nil
	})
	return err
}

// Member returns a snapshot of one member.
func (r *Registry) Member(team, name string) (Member, error) {
	t, err := r.Get(team)
	if err != nil {
		return Member{}, err
	}
	m, ok := t.Member(name)
	if !ok {
		return Member{}, errors.MemberNotFound(team, name)
	}
	return m, nil
}

// ActiveMembers returns a snapshot of the team's active members.
func (r *Registry) ActiveMembers(team string) ([]Member, error) {
	t, err := r.Get(team)
	if err != nil {
		return nil, err
	}
	return t.ActiveMembers(), nil
}

// DeleteTeam removes the team record together with every inbox.
//
// Returns ErrActiveMembersExist, naming the active members, if any member
// is still active; nothing is removed in that case.
func (r *Registry) DeleteTeam(team string) error {
	if err := naming.ValidateTeamName(team); err != nil {
		return err
	}
	if !r.Exists(team) {
		return errors.TeamNotFound(team)
	}

	err := r.locks.Do(team, r.lockPath(team), func() error {
		t, err := r.load(team)
		if err != nil {
			return err
		}
		if active := t.ActiveMemberNames(); len(active) > 0 {
			return errors.NewTeamError(
				fmt.Sprintf("cannot delete team with active members [%s]", strings.Join(active, ", ")),
				errors.ErrActiveMembersExist,
			).WithTeam(team).WithInvariant("no deletion while members are active")
		}
		if err := os.RemoveAll(r.TeamDir(team)); err != nil {
			return errors.Wrapf(err, "remove team dir %s", team)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.locks.Forget(team)
	r.logger.WithTeam(team).Info("team deleted")
	r.publish(event.NewTeamDeletedEvent(team))
	return nil
}

func (r *Registry) publish(e event.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}
