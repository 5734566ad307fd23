package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lherron/lkmig/internal/config"
	"github.com/lherron/lkmig/internal/ledger"
)

var dbAdmCmd = &cobra.Command{
	Use:   "db",
	Short: "Run ledger maintenance",
	Long:  `Commands for the SQLite run ledger that records every import. These are administrative operations.`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run any pending ledger migrations",
	Long: `Migrate applies any pending SQL migrations to the ledger.

Migrations are embedded in the binary and tracked via the schema_migrations
table. Each migration file (e.g., 000001_baseline.sql) is applied exactly once,
so the command can be run any number of times.

Use --dry-run to see which migrations would be applied without running them.`,
	Args: cobra.NoArgs,
	RunE: runDBMigrate,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending ledger migrations",
	Args:  cobra.NoArgs,
	RunE:  runDBStatus,
}

var dbMigrateDryRun bool

func init() {
	rootAdmCmd.AddCommand(dbAdmCmd)
	dbAdmCmd.AddCommand(dbMigrateCmd, dbStatusCmd)

	dbMigrateCmd.Flags().BoolVar(&dbMigrateDryRun, "dry-run", false, "Show which migrations would be applied without running them")
}

// openLedgerRaw opens the configured ledger without checking its schema.
func openLedgerRaw(cmd *cobra.Command) (*ledger.DB, error) {
	cfg, err := config.Load(cmd.Flag("config").Value.String())
	if err != nil {
		return nil, exitError(2, fmt.Errorf("failed to load config: %w", err))
	}
	if v := cmd.Flag("ledger").Value.String(); v != "" {
		cfg.LedgerPath = v
	}
	db, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return nil, exitError(1, fmt.Errorf("failed to open ledger: %w", err))
	}
	return db, nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	db, err := openLedgerRaw(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	out := cmd.OutOrStdout()

	if dbMigrateDryRun {
		_, pending, err := db.MigrationStatus()
		if err != nil {
			return exitError(1, fmt.Errorf("failed to get migration status: %w", err))
		}
		if len(pending) == 0 {
			fmt.Fprintln(out, "No pending migrations. Ledger is up to date.")
			return nil
		}
		fmt.Fprintln(out, "Pending migrations (would be applied):")
		for _, m := range pending {
			fmt.Fprintf(out, "  ○ %s\n", m)
		}
		fmt.Fprintf(out, "\nTotal: %d migration(s) would be applied.\n", len(pending))
		return nil
	}

	applied, err := db.MigrateWithInfo()
	if err != nil {
		return exitError(1, fmt.Errorf("failed to run migrations: %w", err))
	}
	if len(applied) == 0 {
		fmt.Fprintln(out, "Ledger is up to date. No migrations to apply.")
		return nil
	}
	for _, m := range applied {
		fmt.Fprintf(out, "✓ Applied migration: %s\n", m)
	}
	fmt.Fprintf(out, "\nApplied %d migration(s) to %s.\n", len(applied), db.Path())
	return nil
}

func runDBStatus(cmd *cobra.Command, args []string) error {
	db, err := openLedgerRaw(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, pending, err := db.MigrationStatus()
	if err != nil {
		return exitError(1, fmt.Errorf("failed to get migration status: %w", err))
	}
	printMigrationStatus(cmd.OutOrStdout(), db.Path(), applied, pending)
	return nil
}

func printMigrationStatus(out io.Writer, path string, applied, pending []string) {
	fmt.Fprintf(out, "Ledger: %s\n", path)
	if len(applied) == 0 && len(pending) == 0 {
		fmt.Fprintln(out, "No migrations found.")
		return
	}
	if len(applied) > 0 {
		fmt.Fprintln(out, "Applied migrations:")
		for _, m := range applied {
			fmt.Fprintf(out, "  ✓ %s\n", m)
		}
	}
	if len(pending) > 0 {
		if len(applied) > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, "Pending migrations:")
		for _, m := range pending {
			fmt.Fprintf(out, "  ○ %s\n", m)
		}
	}
}
