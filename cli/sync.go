// ABOUTME: Charm sync CLI commands
// ABOUTME: Status, manual sync and wipe for the charm-backed store
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/kith/tui"
	"github.com/spf13/cobra"
)

var syncWipeYes bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync records through charm",
	Long:  "Sync commands need the charm backend (--backend charm or backend: charm in the config).",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSyncNow(cmd, args)
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show charm connection status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCharm(cmd.Context(), func(ctx context.Context, a *app) error {
			c := a.charm.Config()
			printField(cmd.OutOrStdout(), "Server:", c.Host)
			printField(cmd.OutOrStdout(), "Auto sync:", fmt.Sprintf("%t", c.AutoSync))
			id, err := a.charm.ID()
			if err != nil {
				printField(cmd.OutOrStdout(), "Connected:", overdueStyle.Render("no ("+err.Error()+")"))
				return nil
			}
			printField(cmd.OutOrStdout(), "Connected:", successStyle.Render("yes"))
			printField(cmd.OutOrStdout(), "Charm ID:", id)
			return nil
		})
	},
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Push and pull changes immediately",
	RunE:  runSyncNow,
}

func runSyncNow(cmd *cobra.Command, args []string) error {
	return withCharm(cmd.Context(), func(ctx context.Context, a *app) error {
		if !a.charm.IsConnected() {
			return fmt.Errorf("not connected to %s", a.charm.Config().Host)
		}
		if err := a.charm.Sync(); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		// Pulled reminders are armed by the next long-running kith process.
		rems, err := a.svc.Reminders.List(ctx)
		if err != nil {
			return err
		}
		printSuccess("Synced (%d upcoming reminders)", len(upcoming(rems, time.Now())))
		return nil
	})
}

var syncWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every local record and start fresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCharm(cmd.Context(), func(ctx context.Context, a *app) error {
			if !syncWipeYes {
				ok, err := tui.Confirm("Wipe all local kith data? This cannot be undone.")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Cancelled.")
					return nil
				}
			}
			if err := a.charm.Reset(); err != nil {
				return fmt.Errorf("wipe failed: %w", err)
			}
			printSuccess("Local data wiped")
			return nil
		})
	},
}

// withCharm is withApp for commands that only make sense on the charm backend.
func withCharm(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	return withApp(ctx, func(ctx context.Context, a *app) error {
		if a.charm == nil {
			return fmt.Errorf("sync needs the charm backend (current: %s)", a.cfg.Backend)
		}
		return fn(ctx, a)
	})
}

func init() {
	syncWipeCmd.Flags().BoolVarP(&syncWipeYes, "yes", "y", false, "Skip confirmation")
	syncCmd.AddCommand(syncStatusCmd, syncNowCmd, syncWipeCmd)
}
