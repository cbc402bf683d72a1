package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/de-monkey-v/hyper-team-sub000/internal/config"
	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/event"
	"github.com/de-monkey-v/hyper-team-sub000/internal/lifecycle"
	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
	"github.com/de-monkey-v/hyper-team-sub000/internal/mailbox"
	"github.com/de-monkey-v/hyper-team-sub000/internal/process"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

// newProcessManager builds the pane manager. Tests swap it for a fake.
var newProcessManager = func(cfg *config.Config, logger *logging.Logger) process.Manager {
	return process.NewTmuxManager(process.TmuxConfig{
		Socket:       cfg.Process.Socket,
		AgentCommand: cfg.Process.AgentCommand,
		Width:        cfg.Process.Width,
		Height:       cfg.Process.Height,
		Logger:       logger,
	})
}

// runtime holds the stores and services one command invocation uses.
type runtime struct {
	cfg    *config.Config
	base   string
	logger *logging.Logger
	bus    *event.Bus
	reg    *registry.Registry
	mail   *mailbox.Store
	tasks  taskgraph.Store
	procs  process.Manager
	coord  *lifecycle.Coordinator
}

func openRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	base := cfg.Paths.ResolveBaseDir()

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(cfg.LogDir(), cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, err
		}
	}

	bus := event.NewBus()
	bus.SetLogger(logger)

	reg := registry.New(base,
		registry.WithBus(bus),
		registry.WithLogger(logger),
		registry.WithDefaultSettings(registry.Settings{
			MaxConcurrentTasks: cfg.Team.MaxConcurrentTasks,
			DefaultModel:       cfg.Team.DefaultModel,
			Timeout:            registry.Duration(cfg.Team.Timeout()),
		}),
	)
	mail := mailbox.New(reg,
		mailbox.WithBus(bus),
		mailbox.WithLogger(logger),
		mailbox.WithPolling(cfg.Mailbox.PollInterval(), cfg.Mailbox.MaxBackoff()),
		mailbox.WithFSNotify(cfg.Mailbox.UseFSNotify),
	)
	tasks, err := taskgraph.Open(cfg.Tasks.Backend, base, taskgraph.WithBus(bus), taskgraph.WithLogger(logger))
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	procs := newProcessManager(cfg, logger)

	coord := lifecycle.New(reg, mail, procs,
		lifecycle.WithConfig(lifecycle.ConfigFrom(cfg)),
		lifecycle.WithTaskStore(tasks),
		lifecycle.WithBus(bus),
		lifecycle.WithLogger(logger),
	)

	return &runtime{
		cfg:    cfg,
		base:   base,
		logger: logger,
		bus:    bus,
		reg:    reg,
		mail:   mail,
		tasks:  tasks,
		procs:  procs,
		coord:  coord,
	}, nil
}

func (r *runtime) Close() error {
	return errors.Join(r.tasks.Close(), r.logger.Close())
}

// withRuntime wraps a RunE body with runtime setup, teardown and a context
// cancelled on SIGINT/SIGTERM.
func withRuntime(fn func(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return fn(ctx, cmd, rt, args)
	}
}
