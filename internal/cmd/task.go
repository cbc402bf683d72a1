package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/de-monkey-v/hyper-team-sub000/internal/report"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the team's task graph",
	Long: `Manage a team's tasks and the "blocks" edges between them.

A task can start only once every task blocking it is completed, and edges
that would close a cycle are rejected.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <team> <subject>",
	Short: "Add a pending task",
	Args:  cobra.ExactArgs(2),
	RunE:  withRuntime(runTaskAdd),
}

var taskBlockCmd = &cobra.Command{
	Use:   "block <team> <blocker> <blocked>",
	Short: "Make <blocked> wait for <blocker>",
	Args:  cobra.ExactArgs(3),
	RunE:  withRuntime(runTaskBlock),
}

var taskUnblockCmd = &cobra.Command{
	Use:   "unblock <team> <blocker> <blocked>",
	Short: "Remove a blocking edge",
	Args:  cobra.ExactArgs(3),
	RunE:  withRuntime(runTaskUnblock),
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <team> <id> <status>",
	Short: "Set a task's status (pending, in_progress, completed, cancelled)",
	Args:  cobra.ExactArgs(3),
	RunE:  withRuntime(runTaskStatus),
}

var taskClaimCmd = &cobra.Command{
	Use:   "claim <team> <id> <member>",
	Short: "Assign a ready task and start it",
	Args:  cobra.ExactArgs(3),
	RunE:  withRuntime(runTaskClaim),
}

var taskArchiveCmd = &cobra.Command{
	Use:   "archive <team> <id>",
	Short: "Hide a finished task from roots and ready lists",
	Args:  cobra.ExactArgs(2),
	RunE:  withRuntime(runTaskArchive),
}

var taskListCmd = &cobra.Command{
	Use:   "list <team>",
	Short: "List tasks in insertion order",
	Args:  cobra.ExactArgs(1),
	RunE:  withRuntime(runTaskList),
}

var taskRootsCmd = &cobra.Command{
	Use:   "roots <team>",
	Short: "List tasks nothing blocks",
	Args:  cobra.ExactArgs(1),
	RunE:  withRuntime(runTaskRoots),
}

var taskCyclesCmd = &cobra.Command{
	Use:   "cycles <team>",
	Short: "Report dependency cycles in the stored graph",
	Args:  cobra.ExactArgs(1),
	RunE:  withRuntime(runTaskCycles),
}

var taskGraphCmd = &cobra.Command{
	Use:   "graph <team>",
	Short: "Draw the task graph as a tree or Graphviz DOT",
	Args:  cobra.ExactArgs(1),
	RunE:  withRuntime(runTaskGraph),
}

var (
	taskDescription string
	taskOwner       string
	taskPriority    int
	taskTags        []string

	taskListFormat string
	taskReadyOnly  bool
	taskOwnedBy    string

	graphFormat   string
	graphArchived bool
	graphWidth    int
	graphNoColor  bool
)

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskAddCmd, taskBlockCmd, taskUnblockCmd, taskStatusCmd, taskClaimCmd,
		taskArchiveCmd, taskListCmd, taskRootsCmd, taskCyclesCmd, taskGraphCmd)

	taskAddCmd.Flags().StringVarP(&taskDescription, "description", "d", "", "details")
	taskAddCmd.Flags().StringVar(&taskOwner, "owner", "", "assign to a member")
	taskAddCmd.Flags().IntVar(&taskPriority, "priority", 0, "higher sorts first in ready lists")
	taskAddCmd.Flags().StringSliceVar(&taskTags, "tag", nil, "labels")

	addFormatFlag(taskListCmd, &taskListFormat)
	taskListCmd.Flags().BoolVar(&taskReadyOnly, "ready", false, "only pending tasks with no open blockers")
	taskListCmd.Flags().StringVar(&taskOwnedBy, "owner", "", "only tasks owned by this member")

	taskGraphCmd.Flags().StringVarP(&graphFormat, "format", "o", "tree", "tree or dot")
	taskGraphCmd.Flags().BoolVar(&graphArchived, "archived", false, "include archived tasks")
	taskGraphCmd.Flags().IntVar(&graphWidth, "width", -1, "truncate lines (default terminal width, 0 for none)")
	taskGraphCmd.Flags().BoolVar(&graphNoColor, "no-color", false, "disable colors")
}

// updateGraph applies fn to the stored graph of team, which must exist.
func updateGraph(ctx context.Context, rt *runtime, team string, fn func(*taskgraph.Graph) error) error {
	if _, err := rt.reg.Get(team); err != nil {
		return err
	}
	return rt.tasks.Update(ctx, team, fn)
}

func loadGraph(ctx context.Context, rt *runtime, team string) (*taskgraph.Graph, error) {
	if _, err := rt.reg.Get(team); err != nil {
		return nil, err
	}
	return rt.tasks.Load(ctx, team)
}

func runTaskAdd(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	var id string
	err := updateGraph(ctx, rt, args[0], func(g *taskgraph.Graph) error {
		var err error
		id, err = g.Add(taskgraph.Spec{
			Subject:     args[1],
			Description: taskDescription,
			Owner:       taskOwner,
			Priority:    taskPriority,
			Tags:        taskTags,
		})
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added task #%s\n", id)
	return nil
}

func runTaskBlock(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	err := updateGraph(ctx, rt, args[0], func(g *taskgraph.Graph) error {
		return g.AddBlockingEdge(args[1], args[2])
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "#%s now blocks #%s\n", args[1], args[2])
	return nil
}

func runTaskUnblock(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	err := updateGraph(ctx, rt, args[0], func(g *taskgraph.Graph) error {
		return g.RemoveBlockingEdge(args[1], args[2])
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "#%s no longer blocks #%s\n", args[1], args[2])
	return nil
}

func runTaskStatus(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	status, err := taskgraph.ParseStatus(args[2])
	if err != nil {
		return err
	}
	err = updateGraph(ctx, rt, args[0], func(g *taskgraph.Graph) error {
		return g.SetStatus(args[1], status)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task #%s is %s\n", args[1], status)
	return nil
}

func runTaskClaim(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	if _, err := rt.reg.Member(args[0], args[2]); err != nil {
		return err
	}
	err := updateGraph(ctx, rt, args[0], func(g *taskgraph.Graph) error {
		return g.Claim(args[1], args[2])
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task #%s claimed by %s\n", args[1], args[2])
	return nil
}

func runTaskArchive(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	err := updateGraph(ctx, rt, args[0], func(g *taskgraph.Graph) error {
		return g.Archive(args[1])
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Archived task #%s\n", args[1])
	return nil
}

func runTaskList(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	g, err := loadGraph(ctx, rt, args[0])
	if err != nil {
		return err
	}
	var tasks []taskgraph.Task
	switch {
	case taskReadyOnly:
		tasks = g.Ready()
	case taskOwnedBy != "":
		tasks = g.OwnedBy(taskOwnedBy)
	default:
		tasks = g.Tasks()
	}
	if tasks == nil {
		tasks = []taskgraph.Task{}
	}
	return render(cmd, taskListFormat, tasks, func(w io.Writer) error {
		printTasks(w, tasks)
		return nil
	})
}

func printTasks(w io.Writer, tasks []taskgraph.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	for _, t := range tasks {
		line := fmt.Sprintf("%s #%-4s %-12s %s", report.StatusIcon(t.Status), t.ID, t.Status, t.Subject)
		if t.Owner != "" {
			line += " @" + t.Owner
		}
		if len(t.BlockedBy) > 0 {
			line += " (blocked by " + strings.Join(t.BlockedBy, ", ") + ")"
		}
		if t.Archived {
			line += " (archived)"
		}
		fmt.Fprintln(w, line)
	}
}

func runTaskRoots(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	g, err := loadGraph(ctx, rt, args[0])
	if err != nil {
		return err
	}
	roots := g.FindRoots()
	if len(roots) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No root tasks.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(roots, "\n"))
	return nil
}

func runTaskCycles(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	g, err := loadGraph(ctx, rt, args[0])
	if err != nil {
		return err
	}
	cycles := g.DetectCycles()
	if len(cycles) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cycles.")
		return nil
	}
	for _, c := range cycles {
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(c, " -> "))
	}
	return fmt.Errorf("found %d dependency cycles", len(cycles))
}

func runTaskGraph(ctx context.Context, cmd *cobra.Command, rt *runtime, args []string) error {
	g, err := loadGraph(ctx, rt, args[0])
	if err != nil {
		return err
	}
	switch graphFormat {
	case "dot":
		fmt.Fprint(cmd.OutOrStdout(), report.RenderDOT(g))
		return nil
	case "tree":
		f, _ := cmd.OutOrStdout().(*os.File)
		interactive := report.IsTerminal(f)
		width := graphWidth
		if width < 0 {
			width = report.TerminalWidth(f, 0)
		}
		fmt.Fprint(cmd.OutOrStdout(), report.RenderTree(g, report.TreeOptions{
			Width:        width,
			Color:        interactive && !graphNoColor,
			ShowArchived: graphArchived,
		}))
		return nil
	default:
		return fmt.Errorf("unknown graph format %q (tree or dot)", graphFormat)
	}
}
