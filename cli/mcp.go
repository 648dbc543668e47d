// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP server on stdio for assistant integration
package cli

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kith/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol.
		log.SetOutput(os.Stderr)
		return withNotifications(cmd.Context(), func(ctx context.Context, a *app) error {
			log.Info("starting MCP server", "version", VersionString(), "user", a.cfg.UserID)

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go a.deliver(ctx)

			server := handlers.NewServer(a.svc, VersionString())
			return server.Run(ctx, &mcp.StdioTransport{})
		})
	},
}
