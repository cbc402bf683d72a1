package taskgraph

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/filelock"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
)

const (
	graphFileName = "graph.json"
	graphLockName = ".graph.lock"
)

// JSONStore keeps each team's graph in {dir}/{team}/graph.json.
type JSONStore struct {
	dir   string
	locks *filelock.Keyed
	opts  []Option
}

// NewJSONStore creates a store rooted at dir.
func NewJSONStore(dir string, opts ...Option) *JSONStore {
	return &JSONStore{dir: dir, locks: filelock.NewKeyed(), opts: opts}
}

func (s *JSONStore) path(team string) string {
	return filepath.Join(s.dir, team, graphFileName)
}

func (s *JSONStore) lockPath(team string) string {
	return filepath.Join(s.dir, team, graphLockName)
}

// Load implements Store.
func (s *JSONStore) Load(_ context.Context, team string) (*Graph, error) {
	if err := naming.ValidateTeamName(team); err != nil {
		return nil, err
	}
	return s.load(team)
}

func (s *JSONStore) load(team string) (*Graph, error) {
	data, err := os.ReadFile(s.path(team))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(team, s.opts...), nil
		}
		return nil, errors.Wrapf(err, "read task graph %s", team)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrapf(err, "decode task graph %s", team)
	}
	snap.Team = team
	g, err := FromSnapshot(snap, s.opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "task graph %s", team)
	}
	return g, nil
}

// Update implements Store.
func (s *JSONStore) Update(_ context.Context, team string, fn func(*Graph) error) error {
	if err := naming.ValidateTeamName(team); err != nil {
		return err
	}
	var g *Graph
	err := s.locks.Do(team, s.lockPath(team), func() error {
		var err error
		if g, err = s.load(team); err != nil {
			return err
		}
		g.hold()
		if err := fn(g); err != nil {
			return err
		}
		data, err := json.MarshalIndent(g.Snapshot(), "", "  ")
		if err != nil {
			return errors.Wrapf(err, "encode task graph %s", team)
		}
		return filelock.WriteFileAtomic(s.path(team), data, 0o644)
	})
	if g != nil {
		g.release(err == nil)
	}
	return err
}

// Delete implements Store.
func (s *JSONStore) Delete(_ context.Context, team string) error {
	if err := naming.ValidateTeamName(team); err != nil {
		return err
	}
	err := s.locks.Do(team, s.lockPath(team), func() error {
		return os.RemoveAll(filepath.Join(s.dir, team))
	})
	s.locks.Forget(team)
	return err
}

// Close implements Store.
func (s *JSONStore) Close() error { return nil }
