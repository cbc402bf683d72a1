package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/de-monkey-v/hyper-team-sub000/internal/mailbox"
)

// ─── team_send_message ──────────────────────────────────────────────────────

type sendMessageTool struct{ *env }

func (t *sendMessageTool) Definition() mcp.Tool {
	return mcp.NewTool("team_send_message",
		mcp.WithDescription("Send a message to one teammate's inbox. Use team-lead to reach the lead."),
		mcp.WithString("to", mcp.Required(), mcp.Description("Recipient member name")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message body")),
		mcp.WithString("summary", mcp.Description("Short summary shown in previews")),
	)
}

func (t *sendMessageTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	to := req.GetString("to", "")
	text := req.GetString("text", "")
	if to == "" || text == "" {
		return mcp.NewToolResultError("'to' and 'text' are required"), nil
	}
	msg, err := t.agent.Send(to, text, req.GetString("summary", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Sent to %s (id %s)", to, msg.ID)), nil
}

// ─── team_broadcast ─────────────────────────────────────────────────────────

type broadcastTool struct{ *env }

func (t *broadcastTool) Definition() mcp.Tool {
	return mcp.NewTool("team_broadcast",
		mcp.WithDescription("Send a message to every other active teammate. Each recipient gets its own copy, so use sparingly."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message body")),
		mcp.WithString("summary", mcp.Description("Short summary shown in previews")),
	)
}

func (t *broadcastTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}
	n, err := t.agent.Broadcast(text, req.GetString("summary", ""))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Broadcast delivered to %d members", n)), nil
}

// ─── team_read_inbox ────────────────────────────────────────────────────────

type readInboxTool struct{ *env }

func (t *readInboxTool) Definition() mcp.Tool {
	return mcp.NewTool("team_read_inbox",
		mcp.WithDescription("Read your unread messages in arrival order."),
		mcp.WithBoolean("mark_read", mcp.Description("Mark the returned messages read (default false)")),
		mcp.WithNumber("limit", mcp.Description("Return at most this many messages (default all)")),
		mcp.WithString("format",
			mcp.Description("text (default) or json"),
			mcp.Enum("text", "json"),
		),
	)
}

func (t *readInboxTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	msgs, err := t.mail.ListUnread(t.id.Team, t.id.Member)
	if err != nil {
		return errorResult(err), nil
	}
	msgs = mailbox.FilterMessages(msgs, mailbox.FilterOptions{MaxMessages: intArg(req, "limit", 0)})

	if boolArg(req, "mark_read", false) && len(msgs) > 0 {
		ids := make([]string, len(msgs))
		for i, m := range msgs {
			ids[i] = m.ID
		}
		if err := t.mail.MarkRead(t.id.Team, t.id.Member, ids...); err != nil {
			return errorResult(err), nil
		}
	}

	if req.GetString("format", "text") == "json" {
		if msgs == nil {
			msgs = []mailbox.Message{}
		}
		return jsonResult(msgs)
	}
	if len(msgs) == 0 {
		return mcp.NewToolResultText("No unread messages."), nil
	}
	return mcp.NewToolResultText(mailbox.FormatForPrompt(msgs)), nil
}

// ─── team_mark_read ─────────────────────────────────────────────────────────

type markReadTool struct{ *env }

func (t *markReadTool) Definition() mcp.Tool {
	return mcp.NewTool("team_mark_read",
		mcp.WithDescription("Mark messages read. Marking a message twice is harmless."),
		mcp.WithString("ids", mcp.Description("Comma-separated message IDs")),
		mcp.WithBoolean("all", mcp.Description("Mark every unread message read")),
	)
}

func (t *markReadTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if boolArg(req, "all", false) {
		n, err := t.mail.MarkAllRead(t.id.Team, t.id.Member)
		if err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Marked %d messages read", n)), nil
	}
	ids := listArg(req, "ids")
	if len(ids) == 0 {
		return mcp.NewToolResultError("give 'ids' or set 'all'"), nil
	}
	if err := t.mail.MarkRead(t.id.Team, t.id.Member, ids...); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Marked %d messages read", len(ids))), nil
}

// ─── team_respond_shutdown ──────────────────────────────────────────────────

type respondShutdownTool struct{ *env }

func (t *respondShutdownTool) Definition() mcp.Tool {
	return mcp.NewTool("team_respond_shutdown",
		mcp.WithDescription("Answer a shutdown_request from the lead. Approve once your work is saved; your pane is then stopped."),
		mcp.WithString("request_id", mcp.Required(), mcp.Description("requestId from the shutdown_request")),
		mcp.WithBoolean("approve", mcp.Required(), mcp.Description("true to shut down, false to keep working")),
		mcp.WithString("reason", mcp.Description("Why, especially when declining")),
	)
}

func (t *respondShutdownTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("request_id", "")
	if id == "" {
		return mcp.NewToolResultError("'request_id' is required"), nil
	}
	approve, ok := req.GetArguments()["approve"].(bool)
	if !ok {
		return mcp.NewToolResultError("'approve' must be true or false"), nil
	}
	if err := t.agent.RespondShutdown(id, approve, req.GetString("reason", "")); err != nil {
		return errorResult(err), nil
	}
	t.logger.Info("shutdown response sent", "request_id", id, "approve", approve)
	if approve {
		return mcp.NewToolResultText("Shutdown approved. Stop working now."), nil
	}
	return mcp.NewToolResultText("Shutdown declined."), nil
}

// ─── team_notify_idle ───────────────────────────────────────────────────────

type notifyIdleTool struct{ *env }

func (t *notifyIdleTool) Definition() mcp.Tool {
	return mcp.NewTool("team_notify_idle",
		mcp.WithDescription("Tell the lead you are ready for more work. Name the task you just finished to have it marked completed."),
		mcp.WithString("task_id", mcp.Description("Task just finished")),
		mcp.WithString("reason", mcp.Description("Short note for the lead")),
	)
}

func (t *notifyIdleTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.agent.NotifyIdle(req.GetString("task_id", ""), req.GetString("reason", "")); err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText("Lead notified."), nil
}
