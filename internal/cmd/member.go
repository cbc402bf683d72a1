package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/de-monkey-v/hyper-team-sub000/internal/errors"
	"github.com/de-monkey-v/hyper-team-sub000/internal/lifecycle"
	"github.com/de-monkey-v/hyper-team-sub000/internal/mailbox"
	"github.com/de-monkey-v/hyper-team-sub000/internal/member"
	"github.com/de-monkey-v/hyper-team-sub000/internal/process"
)

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Spawn, list and shut down team members",
}

var memberSpawnCmd = &cobra.Command{
	Use:   "spawn <team> <name>",
	Short: "Start a worker member in its own pane",
	Long: `Register a worker, start its agent in a new pane and wait until the pane
is confirmed alive. If the pane never comes up the member record is removed
again, so a failed spawn leaves nothing behind.`,
	Args: cobra.ExactArgs(2),
	RunE: withRuntime(runMemberSpawn),
}

var memberShutdownCmd = &cobra.Command{
	Use:   "shutdown <team> <name>",
	Short: "Ask a member to shut down and wait for it",
	Args:  cobra.ExactArgs(2),
	RunE:  withRuntime(runMemberShutdown),
}

var memberListCmd = &cobra.Command{
	Use:   "list <team>",
	Short: "List a team's members and their lifecycle states",
	Args:  cobra.ExactArgs(1),
	RunE:  withRuntime(runMemberList),
}

var memberRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the inbox loop for a member",
	Long: `Watch a member's inbox, print every message and answer shutdown
requests. Team and member default to HYPERTEAM_TEAM and HYPERTEAM_MEMBER,
which are set in every spawned pane.

The loop exits after it approves a shutdown request.`,
	Args: cobra.NoArgs,
	RunE: withRuntime(runMemberRun),
}

var (
	spawnAgentType  string
	spawnModel      string
	spawnColor      string
	spawnPrompt     string
	spawnPromptFile string
	spawnCwd        string

	shutdownReason string
	listFormat     string

	runTeam       string
	runMember     string
	runDenyReason string
)

func init() {
	rootCmd.AddCommand(memberCmd)
	memberCmd.AddCommand(memberSpawnCmd, memberShutdownCmd, memberListCmd, memberRunCmd)

	memberSpawnCmd.Flags().StringVarP(&spawnAgentType, "type", "t", "", "agent type label")
	memberSpawnCmd.Flags().StringVarP(&spawnModel, "model", "m", "", "model (default: team setting)")
	memberSpawnCmd.Flags().StringVar(&spawnColor, "color", "", "display color")
	memberSpawnCmd.Flags().StringVarP(&spawnPrompt, "prompt", "p", "", "initial prompt")
	memberSpawnCmd.Flags().StringVar(&spawnPromptFile, "prompt-file", "", "read the initial prompt from a file")
	memberSpawnCmd.Flags().StringVar(&spawnCwd, "cwd", "", "working directory (default: current)")

	memberShutdownCmd.Flags().StringVarP(&shutdownReason, "reason", "r", "requested by lead", "reason sent with the request")

	addFormatFlag(memberListCmd, &listFormat)

	memberRunCmd.Flags().StringVar(&runTeam, "team", "", "team (default $"+process.EnvTeam+")")
	memberRunCmd.Flags().StringVar(&runMember, "member", "", "member (default $"+process.EnvMember+")")
	memberRunCmd.Flags().StringVar(&runDenyReason, "deny", "", "decline shutdown requests with this reason")
}

func runMemberSpawn(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	prompt := spawnPrompt
	if spawnPromptFile != "" {
		data, err := os.ReadFile(spawnPromptFile)
		if err != nil {
			return fmt.Errorf("read prompt file: %w", err)
		}
		prompt = string(data)
	}
	cwd := spawnCwd
	if cwd == "" {
		var err error
		if cwd, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	h, err := rt.coord.SpawnMember(ctx, args[0], lifecycle.SpawnSpec{
		Name:      args[1],
		AgentType: spawnAgentType,
		Model:     spawnModel,
		Color:     spawnColor,
		Prompt:    prompt,
		Cwd:       cwd,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Spawned %s (%s)\n", h.AgentID, backendString(h.Backend))
	return nil
}

func runMemberShutdown(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	if err := rt.coord.ShutdownMember(ctx, args[0], args[1], shutdownReason); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Member %s shut down\n", args[1])
	return nil
}

func runMemberList(_ context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	handles, err := rt.coord.Handles(args[0])
	if err != nil {
		return err
	}
	return render(cmd, listFormat, handles, func(w io.Writer) error {
		printHandles(w, handles)
		return nil
	})
}

func runMemberRun(ctx context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
	team := firstNonEmpty(runTeam, os.Getenv(process.EnvTeam))
	name := firstNonEmpty(runMember, os.Getenv(process.EnvMember))
	if team == "" || name == "" {
		return errors.NewValidationError("team and member are required").
			WithField("team/member").
			WithCause(errors.ErrInvalidInput)
	}

	out := cmd.OutOrStdout()
	policy := member.ApproveAll
	if runDenyReason != "" {
		policy = func(context.Context, mailbox.ShutdownRequest) (bool, string) {
			return false, runDenyReason
		}
	}
	agent, err := member.New(rt.mail, team, name,
		member.WithRegistry(rt.reg),
		member.WithLogger(rt.logger),
		member.WithApprovalPolicy(policy),
		member.WithHandler(func(_ context.Context, msg mailbox.Message) error {
			_, err := fmt.Fprintln(out, mailbox.FormatForPrompt([]mailbox.Message{msg}))
			return err
		}),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Watching inbox of %s@%s\n", name, team)
	err = agent.Run(ctx)
	if agent.Stopped() {
		fmt.Fprintln(out, "Shutdown approved.")
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
