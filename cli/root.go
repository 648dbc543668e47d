// ABOUTME: Root command, global flags and logging setup
// ABOUTME: Every subcommand shares the config loaded here
package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kith/config"
	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var (
	flagLogLevel string
	flagDBPath   string
	flagBackend  string
	flagUser     string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "kith",
	Short:         "Stay in touch with the people who matter",
	Long:          "kith tracks relationships, the cadence you want to keep with each person, and a timeline of notes, interactions and reminders.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if flagDBPath != "" {
			loaded.DatabasePath = flagDBPath
		}
		if flagBackend != "" {
			loaded.Backend = flagBackend
		}
		if flagUser != "" {
			loaded.UserID = flagUser
		}
		if flagLogLevel != "" {
			loaded.LogLevel = flagLogLevel
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		return setupLogging(cfg.LogLevel)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kith %s (commit: %s, built: %s)\n", Version, Commit, BuildDate)
	},
}

// VersionString returns a short version for health checks and MCP.
func VersionString() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(lvl == log.DebugLevel)
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagDBPath, "db-path", "", "SQLite database path (default: $XDG_DATA_HOME/kith/kith.db)")
	pf.StringVar(&flagBackend, "backend", "", "Storage backend: sqlite or charm")
	pf.StringVar(&flagUser, "user", "", "User id that owns the records")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(relationshipCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(interactionCmd)
	rootCmd.AddCommand(reminderCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(contactsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(migrateCmd)
}
