package mailbox

import (
	"time"

	"github.com/de-monkey-v/hyper-team-sub000/internal/event"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
)

// Option configures a Store.
type Option func(*Store)

// WithBus attaches an event bus. A MessageAppendedEvent is published after
// every successful append.
func WithBus(bus *event.Bus) Option {
	return func(s *Store) {
		s.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithPolling sets the initial poll interval and the backoff ceiling used
// by Watch. Non-positive values keep the defaults.
func WithPolling(interval, maxBackoff time.Duration) Option {
	return func(s *Store) {
		if interval > 0 {
			s.pollInterval = interval
		}
		if maxBackoff > 0 {
			s.maxBackoff = maxBackoff
		}
	}
}

// WithFSNotify toggles filesystem notifications in Watch. Polling always
// runs; notifications only shorten the wait.
func WithFSNotify(enabled bool) Option {
	return func(s *Store) {
		s.useFSNotify = enabled
	}
}
