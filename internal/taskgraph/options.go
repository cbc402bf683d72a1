package taskgraph

import (
	"time"

	"github.com/de-monkey-v/hyper-team-sub000/internal/event"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
)

// Option configures a Graph.
type Option func(*Graph)

// WithBus attaches an event bus. Task events are published after each
// successful mutation, outside the graph lock. Inside a Store's Update they
// are published only once the save commits.
func WithBus(bus *event.Bus) Option {
	return func(g *Graph) {
		g.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock overrides the time source used for task timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Graph) {
		g.now = now
	}
}

// WithIDGenerator overrides how task IDs are minted.
func WithIDGenerator(fn func() string) Option {
	return func(g *Graph) {
		g.newID = fn
	}
}
