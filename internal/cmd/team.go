package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/de-monkey-v/hyper-team-sub000/internal/lifecycle"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Create, inspect and delete teams",
}

var teamCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a team with this process as its lead",
	Long: `Create a team. The name must be kebab-case (a-z, 0-9, hyphens) and at
most 64 characters. The lead member "team-lead" is registered immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: withRuntime(runTeamCreate),
}

var teamDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Shut every member down and remove the team",
	Long: `Send a shutdown request to every active member, wait for each to
approve, then remove the team's files and task graph.

If any member declines or does not answer in time the team is kept and the
command fails naming those members.`,
	Args: cobra.ExactArgs(1),
	RunE: withRuntime(runTeamDelete),
}

var teamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List teams",
	Args:  cobra.NoArgs,
	RunE:  withRuntime(runTeamList),
}

var teamShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a team's members and task summary",
	Args:  cobra.ExactArgs(1),
	RunE:  withRuntime(runTeamShow),
}

var (
	teamDescription string
	teamListFormat  string
	teamShowFormat  string
)

func init() {
	rootCmd.AddCommand(teamCmd)
	teamCmd.AddCommand(teamCreateCmd, teamDeleteCmd, teamListCmd, teamShowCmd)

	teamCreateCmd.Flags().StringVarP(&teamDescription, "description", "d", "", "what the team is for")
	addFormatFlag(teamListCmd, &teamListFormat)
	addFormatFlag(teamShowCmd, &teamShowFormat)
}

func runTeamCreate(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	t, err := rt.coord.CreateTeam(ctx, args[0], teamDescription)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created team %s (lead %s)\n", t.Name, t.LeadAgentID)
	return nil
}

func runTeamDelete(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	if err := rt.coord.DeleteTeam(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted team %s\n", args[0])
	return nil
}

func runTeamList(_ context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
	teams, err := rt.reg.List()
	if err != nil {
		return err
	}
	if teams == nil {
		teams = []registry.Team{}
	}
	return render(cmd, teamListFormat, teams, func(w io.Writer) error {
		if len(teams) == 0 {
			fmt.Fprintln(w, "No teams.")
			return nil
		}
		for _, t := range teams {
			fmt.Fprintf(w, "%-24s %d/%d active  %s\n", t.Name, len(t.ActiveMembers()), len(t.Members), t.Description)
		}
		return nil
	})
}

// teamView is the machine-readable form of team show.
type teamView struct {
	Team    registry.Team            `json:"team"`
	Members []lifecycle.MemberHandle `json:"members"`
	Tasks   taskgraph.Summary        `json:"tasks"`
}

func runTeamShow(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	t, err := rt.reg.Get(args[0])
	if err != nil {
		return err
	}
	handles, err := rt.coord.Handles(t.Name)
	if err != nil {
		return err
	}
	g, err := rt.tasks.Load(ctx, t.Name)
	if err != nil {
		return err
	}
	view := teamView{Team: t, Members: handles, Tasks: g.Summary()}

	return render(cmd, teamShowFormat, view, func(w io.Writer) error {
		fmt.Fprintf(w, "Team:     %s\n", t.Name)
		if t.Description != "" {
			fmt.Fprintf(w, "About:    %s\n", t.Description)
		}
		fmt.Fprintf(w, "Created:  %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04"))
		s := view.Tasks
		fmt.Fprintf(w, "Tasks:    %d total, %d pending, %d in progress, %d completed, %d cancelled\n",
			s.Total, s.Pending, s.InProgress, s.Completed, s.Cancelled)
		fmt.Fprintln(w)
		printHandles(w, handles)
		return nil
	})
}

func printHandles(w io.Writer, handles []lifecycle.MemberHandle) {
	fmt.Fprintf(w, "%-20s %-7s %-19s %s\n", "MEMBER", "ROLE", "STATE", "BACKEND")
	for _, h := range handles {
		fmt.Fprintf(w, "%-20s %-7s %-19s %s\n", h.Member, h.Role, h.State, backendString(h.Backend))
	}
}

func backendString(b registry.BackendRef) string {
	switch {
	case b.Pane != "":
		return fmt.Sprintf("%s pane %s", b.Kind, b.Pane)
	case b.PID != 0:
		return fmt.Sprintf("%s pid %d", b.Kind, b.PID)
	default:
		return "-"
	}
}
