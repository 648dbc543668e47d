// ABOUTME: Interactive terminal UI subcommand
// ABOUTME: Runs the full-screen browser with reminders delivered in the background
package cli

import (
	"context"

	"github.com/harperreed/kith/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse relationships in an interactive terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNotifications(cmd.Context(), func(ctx context.Context, a *app) error {
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go a.deliver(ctx)

			return tui.Run(ctx, a.svc)
		})
	},
}
