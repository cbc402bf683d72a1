package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Entry is one parsed line of a hyperteam log file.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Team    string         `json:"team,omitempty"`
	Member  string         `json:"member,omitempty"`
	Task    string         `json:"task,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Filter selects entries. Zero-valued fields match everything.
type Filter struct {
	Level    string // minimum level
	Team     string
	Member   string
	Contains string
	Since    time.Time
}

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadEntries parses every JSON line of the log file at path in file order.
// Lines that are not valid JSON are skipped.
func ReadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		e, err := parseEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return entries, nil
}

func parseEntry(line string) (Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, err
	}

	e := Entry{Attrs: map[string]any{}}
	for k, v := range raw {
		s, _ := v.(string)
		switch k {
		case "time":
			e.Time, _ = time.Parse(time.RFC3339Nano, s)
		case "level":
			e.Level = s
		case "msg":
			e.Message = s
		case KeyTeam:
			e.Team = s
		case KeyMember:
			e.Member = s
		case KeyTask:
			e.Task = s
		default:
			e.Attrs[k] = v
		}
	}
	return e, nil
}

// FilterEntries returns the entries matching every criterion of f.
func FilterEntries(entries []Entry, f Filter) []Entry {
	var out []Entry
	for _, e := range entries {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f Filter) matches(e Entry) bool {
	if f.Level != "" {
		floor, ok := levelRank[ParseLevel(f.Level)]
		if got, known := levelRank[e.Level]; ok && known && got < floor {
			return false
		}
	}
	if f.Team != "" && e.Team != f.Team {
		return false
	}
	if f.Member != "" && e.Member != f.Member {
		return false
	}
	if f.Contains != "" && !strings.Contains(e.Message, f.Contains) {
		return false
	}
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	return true
}
