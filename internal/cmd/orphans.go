package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/report"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Find members whose pane is gone and panes no member owns",
	Long: `Compare the registry with the panes running on the hyperteam tmux
socket. --reap deactivates stale members and kills orphan panes.`,
	Args: cobra.NoArgs,
	RunE: withRuntime(runOrphans),
}

var (
	orphansReap   bool
	orphansFormat string
)

func init() {
	rootCmd.AddCommand(orphansCmd)
	orphansCmd.Flags().BoolVar(&orphansReap, "reap", false, "clean up what is found")
	addFormatFlag(orphansCmd, &orphansFormat)
}

func runOrphans(ctx context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
	found, err := report.FindOrphans(ctx, rt.reg, rt.procs)
	if err != nil {
		return err
	}

	err = render(cmd, orphansFormat, found, func(w io.Writer) error {
		if found.Empty() {
			fmt.Fprintln(w, "No orphans.")
			return nil
		}
		for _, s := range found.StaleMembers {
			fmt.Fprintf(w, "stale member  %s@%s (pane %s gone)\n", s.Member, s.Team, s.Pane)
		}
		for _, h := range found.OrphanPanes {
			fmt.Fprintf(w, "orphan pane   %s\n", h.Pane)
		}
		return nil
	})
	if err != nil || !orphansReap {
		return err
	}

	var errs []error
	for _, s := range found.StaleMembers {
		if err := rt.reg.DeactivateMember(s.Team, s.Member); err != nil {
			errs = append(errs, errors.Wrapf(err, "deactivate %s@%s", s.Member, s.Team))
		}
	}
	for _, h := range found.OrphanPanes {
		if err := rt.procs.Terminate(ctx, h); err != nil {
			errs = append(errs, errors.Wrapf(err, "terminate pane %s", h.Pane))
		}
	}
	if len(errs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Reaped %d members and %d panes\n", len(found.StaleMembers), len(found.OrphanPanes))
	}
	return errors.Join(errs...)
}
