package lifecycle

import (
	"time"

	"github.com/de-monkey-v/hyper-team-sub000/internal/config"
	"github.com/de-monkey-v/hyper-team-sub000/internal/event"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

// Config holds the coordinator's timing and retry budget.
type Config struct {
	// SpawnTimeout bounds liveness confirmation after Spawn.
	SpawnTimeout time.Duration
	// LivenessInterval is the gap between IsAlive probes during spawn.
	LivenessInterval time.Duration
	// ShutdownWait bounds each wait for a shutdown response.
	ShutdownWait time.Duration
	// ShutdownAttempts is how many requests are sent before giving up.
	ShutdownAttempts int
	// RetryAttempts bounds calls to the process manager that fail with a
	// retryable error.
	RetryAttempts int
	// RetryBackoff is the first retry delay, doubled per attempt.
	RetryBackoff time.Duration
	// MaxParallelShutdowns bounds concurrent teardown in DeleteTeam.
	MaxParallelShutdowns int
	// PollInterval is how often the lead inbox is read while waiting.
	PollInterval time.Duration
}

// DefaultConfig returns the default budget.
func DefaultConfig() Config {
	return Config{
		SpawnTimeout:         5 * time.Second,
		LivenessInterval:     100 * time.Millisecond,
		ShutdownWait:         30 * time.Second,
		ShutdownAttempts:     3,
		RetryAttempts:        3,
		RetryBackoff:         500 * time.Millisecond,
		MaxParallelShutdowns: 4,
		PollInterval:         250 * time.Millisecond,
	}
}

// ConfigFrom builds a Config from the loaded application config. Unset
// values fall back to DefaultConfig.
func ConfigFrom(cfg *config.Config) Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	lc := cfg.Lifecycle
	if d := lc.SpawnTimeout(); d > 0 {
		out.SpawnTimeout = d
	}
	if d := lc.ShutdownWait(); d > 0 {
		out.ShutdownWait = d
	}
	if lc.ShutdownAttempts > 0 {
		out.ShutdownAttempts = lc.ShutdownAttempts
	}
	if lc.RetryAttempts > 0 {
		out.RetryAttempts = lc.RetryAttempts
	}
	if d := lc.RetryBackoff(); d > 0 {
		out.RetryBackoff = d
	}
	if lc.MaxParallelShutdowns > 0 {
		out.MaxParallelShutdowns = lc.MaxParallelShutdowns
	}
	return out
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.SpawnTimeout <= 0 {
		c.SpawnTimeout = def.SpawnTimeout
	}
	if c.LivenessInterval <= 0 {
		c.LivenessInterval = def.LivenessInterval
	}
	if c.ShutdownWait <= 0 {
		c.ShutdownWait = def.ShutdownWait
	}
	if c.ShutdownAttempts <= 0 {
		c.ShutdownAttempts = def.ShutdownAttempts
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 1
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	if c.MaxParallelShutdowns <= 0 {
		c.MaxParallelShutdowns = def.MaxParallelShutdowns
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	return c
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfig replaces the timing and retry budget.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) {
		c.cfg = cfg.normalized()
	}
}

// WithTaskStore lets idle notifications complete tasks and DeleteTeam drop
// the team's task graph.
func WithTaskStore(store taskgraph.Store) Option {
	return func(c *Coordinator) {
		c.tasks = store
	}
}

// WithBus attaches an event bus for member state changes.
func WithBus(bus *event.Bus) Option {
	return func(c *Coordinator) {
		c.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}
