package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/de-monkey-v/hyper-team-sub000/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the team tools over MCP on stdio",
	Long: `Run an MCP server on stdin/stdout exposing messaging and task tools to
the member agent running in this pane. The member identity comes from
HYPERTEAM_TEAM and HYPERTEAM_MEMBER, or from --team and --member.`,
	Args: cobra.NoArgs,
	RunE: withRuntime(runServe),
}

var (
	serveTeam   string
	serveMember string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveTeam, "team", "", "team (overrides the environment)")
	serveCmd.Flags().StringVar(&serveMember, "member", "", "member (overrides the environment)")
}

func runServe(_ context.Context, cmd *cobra.Command, rt *runtime, _ []string) error {
	var id mcpserver.Identity
	if serveTeam != "" && serveMember != "" {
		id = mcpserver.Identity{Team: serveTeam, Member: serveMember}
	} else {
		var err error
		if id, err = mcpserver.IdentityFromEnv(); err != nil {
			return err
		}
	}
	if _, err := rt.reg.Member(id.Team, id.Member); err != nil {
		return err
	}
	mcpserver.Version = rootCmd.Version
	rt.logger.WithTeam(id.Team).WithMember(id.Member).Info("mcp server starting")
	return mcpserver.ServeStdio(id, mcpserver.Deps{
		Registry: rt.reg,
		Mail:     rt.mail,
		Tasks:    rt.tasks,
		Logger:   rt.logger,
	})
}
