package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/de-monkey-v/hyper-team-sub000/internal/report"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

// ─── task_create ────────────────────────────────────────────────────────────

type taskCreateTool struct{ *env }

func (t *taskCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("task_create",
		mcp.WithDescription("Add a task to the team's shared task graph. New tasks start pending."),
		mcp.WithString("subject", mcp.Required(), mcp.Description("One-line task title")),
		mcp.WithString("description", mcp.Description("Details, acceptance criteria")),
		mcp.WithString("owner", mcp.Description("Member to assign; empty leaves it unowned")),
		mcp.WithNumber("priority", mcp.Description("Higher sorts first in ready lists")),
		mcp.WithString("tags", mcp.Description("Comma-separated labels")),
	)
}

func (t *taskCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	spec := taskgraph.Spec{
		Subject:     req.GetString("subject", ""),
		Description: req.GetString("description", ""),
		Owner:       req.GetString("owner", ""),
		Priority:    intArg(req, "priority", 0),
		Tags:        listArg(req, "tags"),
	}
	if spec.Subject == "" {
		return mcp.NewToolResultError("'subject' is required"), nil
	}
	var id string
	err := t.tasks.Update(ctx, t.id.Team, func(g *taskgraph.Graph) error {
		var err error
		id, err = g.Add(spec)
		return err
	})
	if err != nil {
		return errorResult(err), nil
	}
	t.logger.WithTask(id).Info("task created via mcp", "subject", spec.Subject)
	return mcp.NewToolResultText(fmt.Sprintf("Created task #%s", id)), nil
}

// ─── task_update ────────────────────────────────────────────────────────────

type taskUpdateTool struct{ *env }

func (t *taskUpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("task_update",
		mcp.WithDescription("Change a task's status. Setting in_progress claims the task for you and fails while blockers are open."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task ID")),
		mcp.WithString("status",
			mcp.Description("New status"),
			mcp.Enum("pending", "in_progress", "completed", "cancelled"),
		),
		mcp.WithBoolean("archive", mcp.Description("Archive the task (completed or cancelled only)")),
	)
}

func (t *taskUpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	statusArg := req.GetString("status", "")
	archive := boolArg(req, "archive", false)
	if statusArg == "" && !archive {
		return mcp.NewToolResultError("give 'status' or set 'archive'"), nil
	}

	var result taskgraph.Task
	err := t.tasks.Update(ctx, t.id.Team, func(g *taskgraph.Graph) error {
		if statusArg != "" {
			status, err := taskgraph.ParseStatus(statusArg)
			if err != nil {
				return err
			}
			if status == taskgraph.StatusInProgress {
				err = g.Claim(id, t.id.Member)
			} else {
				err = g.SetStatus(id, status)
			}
			if err != nil {
				return err
			}
		}
		if archive {
			if err := g.Archive(id); err != nil {
				return err
			}
		}
		var err error
		result, err = g.Get(id)
		return err
	})
	if err != nil {
		return errorResult(err), nil
	}
	msg := fmt.Sprintf("Task #%s is %s", result.ID, result.Status)
	if result.Archived {
		msg += " (archived)"
	}
	return mcp.NewToolResultText(msg), nil
}

// ─── task_block ─────────────────────────────────────────────────────────────

type taskBlockTool struct{ *env }

func (t *taskBlockTool) Definition() mcp.Tool {
	return mcp.NewTool("task_block",
		mcp.WithDescription("Record that one task must finish before another can start. Edges that would form a cycle are rejected."),
		mcp.WithString("blocker", mcp.Required(), mcp.Description("Task that must finish first")),
		mcp.WithString("blocked", mcp.Required(), mcp.Description("Task that waits")),
		mcp.WithBoolean("remove", mcp.Description("Remove the edge instead of adding it")),
	)
}

func (t *taskBlockTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blocker := req.GetString("blocker", "")
	blocked := req.GetString("blocked", "")
	if blocker == "" || blocked == "" {
		return mcp.NewToolResultError("'blocker' and 'blocked' are required"), nil
	}
	remove := boolArg(req, "remove", false)
	err := t.tasks.Update(ctx, t.id.Team, func(g *taskgraph.Graph) error {
		if remove {
			return g.RemoveBlockingEdge(blocker, blocked)
		}
		return g.AddBlockingEdge(blocker, blocked)
	})
	if err != nil {
		return errorResult(err), nil
	}
	if remove {
		return mcp.NewToolResultText(fmt.Sprintf("#%s no longer blocks #%s", blocker, blocked)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("#%s now blocks #%s", blocker, blocked)), nil
}

// ─── task_list ──────────────────────────────────────────────────────────────

type taskListTool struct{ *env }

func (t *taskListTool) Definition() mcp.Tool {
	return mcp.NewTool("task_list",
		mcp.WithDescription("Show the team's tasks. 'ready' lists pending tasks with no open blockers; 'mine' lists tasks you own."),
		mcp.WithString("filter",
			mcp.Description("all (default), ready or mine"),
			mcp.Enum("all", "ready", "mine"),
		),
		mcp.WithString("format",
			mcp.Description("tree (default) or json"),
			mcp.Enum("tree", "json"),
		),
	)
}

func (t *taskListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := t.tasks.Load(ctx, t.id.Team)
	if err != nil {
		return errorResult(err), nil
	}
	filter := req.GetString("filter", "all")
	format := req.GetString("format", "tree")

	if filter == "all" && format == "tree" {
		return mcp.NewToolResultText(report.RenderTree(g, report.TreeOptions{})), nil
	}

	var tasks []taskgraph.Task
	switch filter {
	case "ready":
		tasks = g.Ready()
	case "mine":
		tasks = g.OwnedBy(t.id.Member)
	case "all":
		tasks = g.Tasks()
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown filter %q", filter)), nil
	}
	if tasks == nil {
		tasks = []taskgraph.Task{}
	}
	if format == "json" {
		return jsonResult(tasks)
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("(no tasks)"), nil
	}
	var b strings.Builder
	for _, task := range tasks {
		fmt.Fprintf(&b, "%s #%s %s", report.StatusIcon(task.Status), task.ID, task.Subject)
		if task.Owner != "" {
			b.WriteString(" @" + task.Owner)
		}
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(b.String()), nil
}
