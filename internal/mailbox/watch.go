package mailbox

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// maxWatchErrors is how many consecutive read failures Watch tolerates
// before giving up.
const maxWatchErrors = 5

// Handler receives messages delivered by Watch.
type Handler func(Message)

// Watch delivers recipient's unread messages to handler, each at most once,
// until ctx is cancelled. Messages already unread when Watch starts are
// delivered first. Watch does not mark messages read.
//
// The inbox is polled at the configured interval. Each poll that finds
// nothing doubles the wait up to the backoff ceiling; any delivery resets
// it. When filesystem notifications are enabled, a write to the inbox ends
// the current wait early.
//
// Returns nil when ctx is cancelled, or the last read error after
// repeated failures.
func (s *Store) Watch(ctx context.Context, team, recipient string, handler Handler) error {
	// Fail fast on a bad team or recipient.
	if _, err := s.ledger(team, recipient); err != nil {
		return err
	}

	var wake <-chan fsnotify.Event
	if s.useFSNotify {
		if w, err := fsnotify.NewWatcher(); err != nil {
			s.logger.WithTeam(team).Debug("fsnotify unavailable, polling only", "error", err.Error())
		} else {
			defer func() { _ = w.Close() }()
			if err := w.Add(s.reg.InboxDir(team)); err != nil {
				s.logger.WithTeam(team).Debug("cannot watch inbox dir, polling only", "error", err.Error())
			} else {
				wake = w.Events
			}
		}
	}

	inbox := filepath.Base(s.inboxPath(team, recipient))
	delivered := make(map[string]struct{})
	interval := s.pollInterval
	failures := 0
	first := true

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			if filepath.Base(ev.Name) != inbox || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			interval = s.pollInterval
		case <-timer.C:
		}

		n, err := s.deliver(team, recipient, delivered, handler)
		if err != nil {
			failures++
			s.logger.WithTeam(team).Warn("inbox poll failed",
				"recipient", recipient,
				"attempt", failures,
				"error", err.Error(),
			)
			if failures >= maxWatchErrors {
				return err
			}
		} else {
			failures = 0
		}

		if n > 0 || first {
			interval = s.pollInterval
			first = false
		} else {
			interval = nextBackoff(interval, s.maxBackoff)
		}
		resetTimer(timer, interval)
	}
}

// deliver hands every unread message not yet in delivered to handler.
// After a complete pass, IDs that are no longer unread are dropped from
// delivered, so it stays bounded by the unread backlog.
func (s *Store) deliver(team, recipient string, delivered map[string]struct{}, handler Handler) (int, error) {
	n := 0
	unread := make(map[string]struct{}, len(delivered))
	for msg, err := range s.Unread(team, recipient) {
		if err != nil {
			return n, err
		}
		unread[msg.ID] = struct{}{}
		if _, ok := delivered[msg.ID]; ok {
			continue
		}
		delivered[msg.ID] = struct{}{}
		handler(msg)
		n++
	}
	for id := range delivered {
		if _, ok := unread[id]; !ok {
			delete(delivered, id)
		}
	}
	return n, nil
}

func nextBackoff(cur, ceiling time.Duration) time.Duration {
	next := cur * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
