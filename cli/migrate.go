// ABOUTME: Migration subcommand copying data between storage backends
// ABOUTME: Supports dry-run and a backup of an existing SQLite target
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kith/charm"
	"github.com/harperreed/kith/config"
	"github.com/harperreed/kith/db"
	"github.com/spf13/cobra"
)

var (
	migrateTo     string
	migrateToPath string
	migrateDryRun bool
	migrateBackup bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy your data from the configured backend into another one",
	Long: `Copies every relationship, activity and reminder you own from the configured
backend into the target. Records already present in the target are skipped, so an
interrupted migration can be rerun.`,
	Example: `  kith migrate --to charm
  kith --backend charm migrate --to sqlite --to-db ~/kith-export.db --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			target, closeTarget, err := openTarget(a.cfg)
			if err != nil {
				return err
			}
			defer closeTarget()

			stats, err := db.Copy(ctx, a.store, target, a.cfg.UserID, migrateDryRun)
			if err != nil {
				return err
			}

			prefix := ""
			if migrateDryRun {
				prefix = "[dry run] would copy "
			}
			for _, c := range []string{db.CollectionRelationships, db.CollectionActivities, db.CollectionReminders} {
				fmt.Printf("%s%s: %d copied, %d already present\n", prefix, c, stats.Copied[c], stats.Skipped[c])
			}
			return nil
		})
	},
}

func openTarget(cfg config.Config) (db.Restorer, func(), error) {
	switch migrateTo {
	case config.BackendCharm:
		if cfg.Backend == config.BackendCharm {
			return nil, nil, fmt.Errorf("already using the charm backend")
		}
		client, err := charm.NewClient(&charm.Config{Host: cfg.CharmHost, AutoSync: cfg.CharmAutoSync})
		if err != nil {
			return nil, nil, err
		}
		return db.NewKVStore(client), func() { _ = client.Close() }, nil
	case config.BackendSQLite:
		if migrateToPath == "" {
			return nil, nil, fmt.Errorf("--to-db is required when migrating to sqlite")
		}
		if cfg.Backend == config.BackendSQLite && migrateToPath == cfg.DBPath() {
			return nil, nil, fmt.Errorf("source and target are the same database")
		}
		if migrateBackup && !migrateDryRun {
			if err := backupFile(migrateToPath); err != nil {
				return nil, nil, err
			}
		}
		store, err := db.OpenSQLiteStore(migrateToPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown target %q (want %s or %s)", migrateTo, config.BackendSQLite, config.BackendCharm)
}

// backupFile copies an existing database next to itself before it is written.
func backupFile(path string) error {
	input, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read database: %w", err)
	}
	backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backupPath, input, 0600); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	log.Info("backup created", "path", backupPath)
	return nil
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", config.BackendCharm, "Target backend: sqlite or charm")
	migrateCmd.Flags().StringVar(&migrateToPath, "to-db", "", "Target SQLite path when --to=sqlite")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Show what would be copied without writing")
	migrateCmd.Flags().BoolVar(&migrateBackup, "backup", true, "Back up an existing SQLite target first")
}
