// Package mcpserver exposes the team protocol to member agents as MCP tools
// over stdio.
//
// Every tool acts as the calling member: the identity comes from the
// HYPERTEAM_TEAM and HYPERTEAM_MEMBER variables the pane manager sets.
// Each tool is a struct with Definition, returning the schema, and Handle,
// processing a call. Domain errors are returned as tool errors so the agent
// can read and react to them.
package mcpserver

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/de-monkey-v/hyper-team-sub000/internal/logging"
	"github.com/de-monkey-v/hyper-team-sub000/internal/mailbox"
	"github.com/de-monkey-v/hyper-team-sub000/internal/member"
	"github.com/de-monkey-v/hyper-team-sub000/internal/naming"
	"github.com/de-monkey-v/hyper-team-sub000/internal/process"
	"github.com/de-monkey-v/hyper-team-sub000/internal/registry"
	"github.com/de-monkey-v/hyper-team-sub000/internal/taskgraph"
)

// Version is reported to MCP clients.
var Version = "dev"

// Identity is the member on whose behalf tools run.
type Identity struct {
	Team   string
	Member string
}

// IdentityFromEnv reads the identity set in member panes.
func IdentityFromEnv() (Identity, error) {
	id := Identity{Team: os.Getenv(process.EnvTeam), Member: os.Getenv(process.EnvMember)}
	if id.Team == "" || id.Member == "" {
		return Identity{}, fmt.Errorf("%s and %s must be set", process.EnvTeam, process.EnvMember)
	}
	if err := naming.ValidateTeamName(id.Team); err != nil {
		return Identity{}, err
	}
	if err := naming.ValidateMemberName(id.Member); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Deps are the stores the tools operate on.
type Deps struct {
	Registry *registry.Registry
	Mail     *mailbox.Store
	Tasks    taskgraph.Store
	Logger   *logging.Logger
}

// env is shared by every tool.
type env struct {
	id     Identity
	reg    *registry.Registry
	mail   *mailbox.Store
	tasks  taskgraph.Store
	agent  *member.Agent
	logger *logging.Logger
}

// Tool is one MCP tool.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

func newEnv(id Identity, deps Deps) (*env, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	agent, err := member.New(deps.Mail, id.Team, id.Member,
		member.WithRegistry(deps.Registry),
		member.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return &env{
		id:     id,
		reg:    deps.Registry,
		mail:   deps.Mail,
		tasks:  deps.Tasks,
		agent:  agent,
		logger: logger.WithTeam(id.Team).WithMember(id.Member),
	}, nil
}

// Tools returns every tool bound to the identity.
func Tools(id Identity, deps Deps) ([]Tool, error) {
	e, err := newEnv(id, deps)
	if err != nil {
		return nil, err
	}
	return []Tool{
		&sendMessageTool{e},
		&broadcastTool{e},
		&readInboxTool{e},
		&markReadTool{e},
		&respondShutdownTool{e},
		&notifyIdleTool{e},
		&taskCreateTool{e},
		&taskUpdateTool{e},
		&taskBlockTool{e},
		&taskListTool{e},
	}, nil
}

// New creates the MCP server with every tool registered.
func New(id Identity, deps Deps) (*server.MCPServer, error) {
	tools, err := Tools(id, deps)
	if err != nil {
		return nil, err
	}
	s := server.NewMCPServer(
		"hyperteam",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions(id)),
	)
	for _, t := range tools {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s, nil
}

// ServeStdio serves the tools on stdin/stdout until the client disconnects.
func ServeStdio(id Identity, deps Deps) error {
	s, err := New(id, deps)
	if err != nil {
		return err
	}
	return server.ServeStdio(s)
}

func instructions(id Identity) string {
	return fmt.Sprintf(`You are member %q of team %q.
Read your inbox with team_read_inbox and mark messages read once handled.
When you receive a shutdown_request, answer it with team_respond_shutdown.
When you finish a task, update it with task_update and call team_notify_idle.`, id.Member, id.Team)
}
