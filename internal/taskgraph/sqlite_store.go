package taskgraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
)

// SQLiteStore keeps every team's graph in one SQLite database. Each Update
// runs in a single immediate transaction, so concurrent writers from other
// processes queue on the database lock.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.Mutex
	opts []Option
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite parent dir: %w", err)
	}

	dsn := "file:" + dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store, err := NewSQLiteStoreFromDB(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStoreFromDB wraps an open database and applies the schema.
func NewSQLiteStoreFromDB(db *sql.DB, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, opts: opts}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			team TEXT NOT NULL,
			task_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			subject TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			priority INTEGER NOT NULL DEFAULT 0,
			archived INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (team, task_id)
		);`,
		`CREATE TABLE IF NOT EXISTS task_edges (
			team TEXT NOT NULL,
			blocker TEXT NOT NULL,
			blocked TEXT NOT NULL,
			blocker_seq INTEGER NOT NULL,
			blocked_seq INTEGER NOT NULL,
			PRIMARY KEY (team, blocker, blocked)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_team_seq ON tasks(team, seq);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migrate sqlite schema: %w", err)
		}
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, team string) (*Graph, error) {
	if err := naming.ValidateTeamName(team); err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, team)
}

func (s *SQLiteStore) load(ctx context.Context, q querier, team string) (*Graph, error) {
	snap := Snapshot{Team: team}
	index := make(map[string]int)

	rows, err := q.QueryContext(ctx,
		`SELECT task_id, subject, description, status, owner, tags, priority, archived, created_at, updated_at
		 FROM tasks WHERE team = ? ORDER BY seq`, team)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	for rows.Next() {
		var (
			t                  Task
			status, tags       string
			archived           int
			createdRaw, updRaw string
		)
		if err := rows.Scan(&t.ID, &t.Subject, &t.Description, &status, &t.Owner, &tags, &t.Priority, &archived, &createdRaw, &updRaw); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Team = team
		t.Status = Status(status)
		t.Archived = archived != 0
		t.Blocks = []string{}
		t.BlockedBy = []string{}
		if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode tags of %s: %w", t.ID, err)
		}
		if t.CreatedAt, err = parseTime(createdRaw); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if t.UpdatedAt, err = parseTime(updRaw); err != nil {
			_ = rows.Close()
			return nil, err
		}
		index[t.ID] = len(snap.Tasks)
		snap.Tasks = append(snap.Tasks, t)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close task rows: %w", err)
	}

	if err := s.loadEdges(ctx, q, team, &snap, index, "blocker_seq", func(t *Task, other string) {
		t.Blocks = append(t.Blocks, other)
	}, true); err != nil {
		return nil, err
	}
	if err := s.loadEdges(ctx, q, team, &snap, index, "blocked_seq", func(t *Task, other string) {
		t.BlockedBy = append(t.BlockedBy, other)
	}, false); err != nil {
		return nil, err
	}

	g, err := FromSnapshot(snap, s.opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "task graph %s", team)
	}
	return g, nil
}

// loadEdges reads edges ordered by the per-endpoint sequence so the Blocks
// and BlockedBy slices come back in the order they were stored.
func (s *SQLiteStore) loadEdges(ctx context.Context, q querier, team string, snap *Snapshot, index map[string]int, orderCol string, add func(*Task, string), fromBlocker bool) error {
	rows, err := q.QueryContext(ctx,
		`SELECT blocker, blocked FROM task_edges WHERE team = ? ORDER BY `+orderCol, team)
	if err != nil {
		return fmt.Errorf("query edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var blocker, blocked string
		if err := rows.Scan(&blocker, &blocked); err != nil {
			return fmt.Errorf("scan edge: %w", err)
		}
		owner, other := blocked, blocker
		if fromBlocker {
			owner, other = blocker, blocked
		}
		i, ok := index[owner]
		if !ok {
			return fmt.Errorf("edge %s -> %s references unknown task", blocker, blocked)
		}
		add(&snap.Tasks[i], other)
	}
	return rows.Err()
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, team string, fn func(*Graph) error) error {
	if err := naming.ValidateTeamName(team); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	g, err := s.load(ctx, tx, team)
	if err != nil {
		return err
	}
	g.hold()
	committed := false
	defer func() { g.release(committed) }()

	if err := fn(g); err != nil {
		return err
	}
	if err := s.save(ctx, tx, g.Snapshot()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func (s *SQLiteStore) save(ctx context.Context, q querier, snap Snapshot) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM task_edges WHERE team = ?`, snap.Team); err != nil {
		return fmt.Errorf("clear edges: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM tasks WHERE team = ?`, snap.Team); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}

	for seq, t := range snap.Tasks {
		tags, err := json.Marshal(nonNil(t.Tags))
		if err != nil {
			return fmt.Errorf("encode tags of %s: %w", t.ID, err)
		}
		archived := 0
		if t.Archived {
			archived = 1
		}
		_, err = q.ExecContext(ctx,
			`INSERT INTO tasks(team, task_id, seq, subject, description, status, owner, tags, priority, archived, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.Team, t.ID, seq, t.Subject, t.Description, string(t.Status), t.Owner, string(tags),
			t.Priority, archived, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}

	for _, t := range snap.Tasks {
		for blockerSeq, blocked := range t.Blocks {
			blockedSeq := blockedPosition(snap, blocked, t.ID)
			_, err := q.ExecContext(ctx,
				`INSERT INTO task_edges(team, blocker, blocked, blocker_seq, blocked_seq) VALUES (?, ?, ?, ?, ?)`,
				snap.Team, t.ID, blocked, blockerSeq, blockedSeq,
			)
			if err != nil {
				return fmt.Errorf("insert edge %s -> %s: %w", t.ID, blocked, err)
			}
		}
	}
	return nil
}

// blockedPosition returns the index of blocker in blocked's BlockedBy.
func blockedPosition(snap Snapshot, blocked, blocker string) int {
	for _, t := range snap.Tasks {
		if t.ID != blocked {
			continue
		}
		for i, id := range t.BlockedBy {
			if id == blocker {
				return i
			}
		}
	}
	return 0
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, team string) error {
	if err := naming.ValidateTeamName(team); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_edges WHERE team = ?`, team); err != nil {
		return fmt.Errorf("delete edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE team = ?`, team); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	return tx.Commit()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
