// Package tui is the live team monitor: a two-table view of members and
// tasks that refreshes on a timer and whenever the event bus reports a
// change.
package tui

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/event"
)

// App wraps the Bubbletea program.
type App struct {
	model   Model
	program *tea.Program
	cleanup func()
}

// Options configure the monitor.
type Options struct {
	// Interval is the refresh period (default 1s).
	Interval time.Duration
	// Bus, when set, triggers an immediate refresh on every event.
	Bus *event.Bus
}

// New creates the monitor for team.
func New(team string, src Source, opts Options) *App {
	events, cleanup := busEvents(opts.Bus)
	return &App{
		model:   NewModel(team, src, opts.Interval, events),
		cleanup: cleanup,
	}
}

// Run starts the monitor and blocks until the user quits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	a.program = tea.NewProgram(
		a.model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		if _, ok := <-sigChan; ok {
			a.program.Send(tea.Quit())
		}
	}()

	_, err := a.program.Run()
	signal.Stop(sigChan)
	close(sigChan)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// busEvents adapts bus publications into a coalescing notification channel.
// Publishers never block: a pending notification absorbs later ones.
func busEvents(bus *event.Bus) (<-chan struct{}, func()) {
	if bus == nil {
		return nil, func() {}
	}
	ch := make(chan struct{}, 1)
	id := bus.SubscribeAll(func(event.Event) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return ch, func() { bus.Unsubscribe(id) }
}
