package registry

import (
	"time"

	"github.com/de-monkey-v/hyper-team-sub000/internal/event"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
)

// Option configures a Registry.
type Option func(*Registry)

// WithBus attaches an event bus. Team and member events are published
// after each successful mutation.
func WithBus(bus *event.Bus) Option {
	return func(r *Registry) {
		r.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithDefaultSettings sets the settings stamped on teams created without
// explicit settings.
func WithDefaultSettings(s Settings) Option {
	return func(r *Registry) {
		r.defaults = s
	}
}
