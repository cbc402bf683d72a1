package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/de-monkey-v/hyper-team-sub000/internal/tui"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <team>",
	Short: "Watch a team's members and tasks live",
	Args:  cobra.ExactArgs(1),
	RunE:  withRuntime(runMonitor),
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(ctx context.Context, _ *cobra.Command, rt *runtime, args []string) error {
	team := args[0]
	if _, err := rt.reg.Get(team); err != nil {
		return err
	}
	src := tui.Source{
		Registry: rt.reg,
		Mail:     rt.mail,
		Tasks:    rt.tasks,
		State: func(team, member string) (string, bool) {
			st, err := rt.coord.State(team, member)
			return string(st), err == nil
		},
	}
	app := tui.New(team, src, tui.Options{
		Interval: rt.cfg.Monitor.RefreshInterval(),
		Bus:      rt.bus,
	})
	return app.Run(ctx)
}
