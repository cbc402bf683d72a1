package mailbox

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/event"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
)

const (
	inboxExt  = ".jsonl"
	ledgerExt = ".read"

	DefaultPollInterval = time.Second
	DefaultMaxBackoff   = 60 * time.Second
)

// Store is the persistent message store. It shares the team write lock
// with the registry, so appends can never land in a team that is being
// deleted.
type Store struct {
	reg          *registry.Registry
	bus          *event.Bus
	logger       *logging.Logger
	now          func() time.Time
	pollInterval time.Duration
	maxBackoff   time.Duration
	useFSNotify  bool
}

// New creates a Store over the teams managed by reg.
func New(reg *registry.Registry, opts ...Option) *Store {
	s := &Store{
		reg:          reg,
		logger:       logging.NopLogger(),
		now:          time.Now,
		pollInterval: DefaultPollInterval,
		maxBackoff:   DefaultMaxBackoff,
		useFSNotify:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) inboxPath(team, recipient string) string {
	return filepath.Join(s.reg.InboxDir(team), recipient+inboxExt)
}

func (s *Store) ledgerPath(team, recipient string) string {
	return filepath.Join(s.reg.InboxDir(team), recipient+ledgerExt)
}

// Append adds msg to the end of recipient's inbox and returns the stored
// message. ID and Timestamp are filled in when empty; Read is always stored
// false. The inbox is created on first use.
//
// Returns ErrTeamNotFound if the team does not exist.
func (s *Store) Append(team, recipient string, msg Message) (Message, error) {
	if err := naming.ValidateMemberName(recipient); err != nil {
		return Message{}, err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}
	if msg.Payload == nil {
		msg.Payload = PlainMessage{}
	}
	msg.Read = false

	line, err := json.Marshal(msg)
	if err != nil {
		return Message{}, errors.Wrapf(err, "encode message %s", msg.ID)
	}
	line = append(line, '\n')

	err = s.reg.WithTeamLock(team, func() error {
		if !s.reg.Exists(team) {
			return errors.TeamNotFound(team)
		}
		if err := os.MkdirAll(s.reg.InboxDir(team), 0o755); err != nil {
			return errors.Wrap(err, "create inbox dir")
		}
		return appendLine(s.inboxPath(team, recipient), line)
	})
	if err != nil {
		return Message{}, err
	}

	s.logger.WithTeam(team).Debug("message appended",
		"recipient", recipient,
		"from", msg.From,
		"type", string(msg.Type()),
		"id", msg.ID,
	)
	if s.bus != nil {
		s.bus.Publish(event.NewMessageAppendedEvent(team, recipient, msg.From, msg.ID, string(msg.Type())))
	}
	return msg, nil
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", filepath.Base(path))
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", filepath.Base(path))
	}
	return f.Close()
}

// Unread yields recipient's unread messages in append order. The sequence
// reads the inbox lazily and can be ranged over again to re-read it.
// Malformed lines are skipped. A missing inbox yields nothing.
func (s *Store) Unread(team, recipient string) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		read, err := s.ledger(team, recipient)
		if err != nil {
			yield(Message{}, err)
			return
		}
		for msg, err := range s.scan(team, recipient) {
			if err != nil {
				yield(Message{}, err)
				return
			}
			if _, ok := read[msg.ID]; ok {
				continue
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// ListUnread collects Unread into a slice.
func (s *Store) ListUnread(team, recipient string) ([]Message, error) {
	var out []Message
	for msg, err := range s.Unread(team, recipient) {
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// All returns every message in recipient's inbox with Read populated.
func (s *Store) All(team, recipient string) ([]Message, error) {
	read, err := s.ledger(team, recipient)
	if err != nil {
		return nil, err
	}
	var out []Message
	for msg, err := range s.scan(team, recipient) {
		if err != nil {
			return nil, err
		}
		_, msg.Read = read[msg.ID]
		out = append(out, msg)
	}
	return out, nil
}

// UnreadCount returns the number of unread messages for recipient.
func (s *Store) UnreadCount(team, recipient string) (int, error) {
	n := 0
	for _, err := range s.Unread(team, recipient) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// MarkRead records ids as read for recipient. Marking an already-read
// message again is a no-op.
func (s *Store) MarkRead(team, recipient string, ids ...string) error {
	if err := naming.ValidateMemberName(recipient); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	return s.reg.WithTeamLock(team, func() error {
		if !s.reg.Exists(team) {
			return errors.TeamNotFound(team)
		}
		read, err := s.readLedger(team, recipient)
		if err != nil {
			return err
		}

		var b strings.Builder
		for _, id := range ids {
			if id == "" {
				continue
			}
			if _, ok := read[id]; ok {
				continue
			}
			read[id] = struct{}{}
			b.WriteString(id)
			b.WriteByte('\n')
		}
		if b.Len() == 0 {
			return nil
		}
		return appendLine(s.ledgerPath(team, recipient), []byte(b.String()))
	})
}

// MarkAllRead marks every currently unread message read and returns how
// many were marked.
func (s *Store) MarkAllRead(team, recipient string) (int, error) {
	unread, err := s.ListUnread(team, recipient)
	if err != nil {
		return 0, err
	}
	ids := make([]string, len(unread))
	for i, m := range unread {
		ids[i] = m.ID
	}
	if err := s.MarkRead(team, recipient, ids...); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Broadcast appends one copy of the message to the inbox of every active
// member except from, and returns the number of copies written. Cost is
// linear in the number of active members.
//
// Delivery continues past individual failures; the returned error joins
// them.
func (s *Store) Broadcast(team, from, text, summary string) (int, error) {
	members, err := s.reg.ActiveMembers(team)
	if err != nil {
		return 0, err
	}

	var errs []error
	sent := 0
	for _, m := range members {
		if m.Name == from {
			continue
		}
		_, err := s.Append(team, m.Name, Message{
			From:    from,
			Text:    text,
			Summary: summary,
			Payload: BroadcastMessage{},
		})
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "broadcast to %s", m.Name))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// scan yields every well-formed message in the inbox file. Lines have no
// length limit.
func (s *Store) scan(team, recipient string) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		if err := naming.ValidateMemberName(recipient); err != nil {
			yield(Message{}, err)
			return
		}
		if !s.reg.Exists(team) {
			yield(Message{}, errors.TeamNotFound(team))
			return
		}

		f, err := os.Open(s.inboxPath(team, recipient))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return
			}
			yield(Message{}, errors.Wrapf(err, "open inbox %s", recipient))
			return
		}
		defer func() { _ = f.Close() }()

		r := bufio.NewReader(f)
		for {
			line, err := r.ReadBytes('\n')
			if len(line) > 0 {
				msg, ok := s.decode(team, recipient, line)
				if ok && !yield(msg, nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Message{}, errors.Wrapf(err, "read inbox %s", recipient))
				return
			}
		}
	}
}

// decode parses one inbox line. Blank and malformed lines report false.
func (s *Store) decode(team, recipient string, line []byte) (Message, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Message{}, false
	}
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		s.logger.WithTeam(team).Warn("skipping malformed message",
			"recipient", recipient,
			"bytes", len(line),
			"error", err.Error(),
		)
		return Message{}, false
	}
	msg.Read = false
	return msg, true
}

func (s *Store) ledger(team, recipient string) (map[string]struct{}, error) {
	if err := naming.ValidateMemberName(recipient); err != nil {
		return nil, err
	}
	if !s.reg.Exists(team) {
		return nil, errors.TeamNotFound(team)
	}
	return s.readLedger(team, recipient)
}

func (s *Store) readLedger(team, recipient string) (map[string]struct{}, error) {
	read := make(map[string]struct{})
	data, err := os.ReadFile(s.ledgerPath(team, recipient))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return read, nil
		}
		return nil, errors.Wrapf(err, "read ledger %s", recipient)
	}
	for id := range strings.Lines(string(data)) {
		id = strings.TrimSpace(id)
		if id != "" {
			read[id] = struct{}{}
		}
	}
	return read, nil
}

// Clear removes recipient's inbox and read ledger.
func (s *Store) Clear(team, recipient string) error {
	if err := naming.ValidateMemberName(recipient); err != nil {
		return err
	}
	return s.reg.WithTeamLock(team, func() error {
		for _, p := range []string{s.inboxPath(team, recipient), s.ledgerPath(team, recipient)} {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return errors.Wrapf(err, "remove %s", filepath.Base(p))
			}
		}
		return nil
	})
}
