package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/council-records/config"
	"github.com/otherjamesbrown/council-records/pkg/db"
)

// dbOptions holds the db command flags.
type dbOptions struct {
	dryRun bool
	target string
	yes    bool
}

// NewDbCommand creates the root db command with all subcommands.
func NewDbCommand(deps *CommandDeps) *cobra.Command {
	opts := &dbOptions{}
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the council records store.

The schema used by 'council batch --store' ships inside the binary as
numbered SQL migrations (001_meetings.sql, 002_batch_jobs.sql, ...). They are
applied in order and tracked in the schema_migrations table.

Connection settings come from the database section of the config file,
DATABASE_URL, or COUNCIL_DB_* environment variables.`,
		Example: `  council db status
  council db migrate
  council db migrate --dry-run
  council db migrate --target 001`,
		Aliases: []string{"database", "migrations"},
	}

	cmd.AddCommand(newDbMigrateCommand(deps, opts))
	cmd.AddCommand(newDbStatusCommand(deps))
	return cmd
}

// newDbMigrateCommand creates the 'db migrate' subcommand.
func newDbMigrateCommand(deps *CommandDeps, opts *dbOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending database migrations.

Shows pending migrations before applying them. Each migration runs in its own
transaction; if one fails it is rolled back and no further migrations are
attempted.`,
		Example: `  council db migrate
  council db migrate --dry-run
  council db migrate --target 002 --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbMigrate(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), deps, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show what would be applied without executing")
	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "Target version to migrate to (e.g., 002)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Apply without asking for confirmation")
	return cmd
}

// newDbStatusCommand creates the 'db status' subcommand.
func newDbStatusCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database migration status",
		Long: `Show applied and pending migrations, and drift: migrations recorded in
the database that this binary no longer ships.`,
		Example: `  council db status
  council db status --output-format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbStatus(cmd.Context(), cmd.OutOrStdout(), deps)
		},
	}
}

// runDbMigrate executes the db migrate command.
func runDbMigrate(ctx context.Context, in io.Reader, w io.Writer, deps *CommandDeps, opts *dbOptions) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	migrations := db.Migrations()
	status, err := db.GetMigrationStatus(ctx, pool, migrations)
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	if len(status.Pending) == 0 {
		fmt.Fprintln(w, "No pending migrations.")
		return nil
	}

	fmt.Fprintf(w, "Pending migrations (%d):\n", len(status.Pending))
	for _, m := range status.Pending {
		fmt.Fprintf(w, "  %s - %s\n", m.Version, m.Name)
	}
	fmt.Fprintln(w)

	if opts.dryRun {
		fmt.Fprintln(w, "Dry run mode: no migrations applied.")
		return nil
	}

	if !opts.yes && !confirm(in, w, "Apply these migrations? (y/N): ") {
		fmt.Fprintln(w, "Migration cancelled.")
		return nil
	}

	var result *db.MigrationResult
	if opts.target != "" {
		fmt.Fprintf(w, "Applying migrations up to version %s...\n", opts.target)
		result, err = db.RunMigrationsToTarget(ctx, pool, migrations, opts.target)
	} else {
		fmt.Fprintln(w, "Applying all pending migrations...")
		result, err = db.RunMigrations(ctx, pool, migrations)
	}
	if err != nil {
		fmt.Fprintf(w, "\nMigration failed: %v\n", err)
		if result != nil && len(result.Applied) > 0 {
			fmt.Fprintln(w, "\nSuccessfully applied before failure:")
			for _, v := range result.Applied {
				fmt.Fprintf(w, "  ✓ %s\n", v)
			}
		}
		return err
	}

	printMigrationResult(w, result)
	return nil
}

func confirm(in io.Reader, w io.Writer, prompt string) bool {
	fmt.Fprint(w, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "y")
}

func printMigrationResult(w io.Writer, result *db.MigrationResult) {
	fmt.Fprintln(w)
	if len(result.Applied) > 0 {
		fmt.Fprintf(w, "Successfully applied %d migration(s):\n", len(result.Applied))
		for _, v := range result.Applied {
			fmt.Fprintf(w, "  ✓ %s\n", v)
		}
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped %d migration(s) (already applied):\n", len(result.Skipped))
		for _, v := range result.Skipped {
			fmt.Fprintf(w, "  - %s\n", v)
		}
	}
	fmt.Fprintln(w, "\nMigrations completed successfully.")
}

// runDbStatus executes the db status command.
func runDbStatus(ctx context.Context, w io.Writer, deps *CommandDeps) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	pool, err := deps.ConnectToDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	status, err := db.GetMigrationStatus(ctx, pool, db.Migrations())
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	if cfg.OutputFormat != config.OutputFormatText {
		return writeRecord(w, cfg.OutputFormat, status)
	}
	printMigrationStatus(w, status)
	return nil
}

// printMigrationStatus formats migration status for terminal display.
func printMigrationStatus(w io.Writer, status *db.MigrationStatus) {
	printEntries := func(title string, entries []db.MigrationStatusEntry) {
		if len(entries) == 0 {
			return
		}
		fmt.Fprintf(w, "%s (%d):\n", title, len(entries))
		fmt.Fprintln(w, "  VERSION    NAME                              APPLIED")
		for _, m := range entries {
			appliedAt := "-"
			if m.AppliedAt != nil {
				appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "  %-10s %-33s %s\n", truncate(m.Version, 10), truncate(m.Name, 33), appliedAt)
		}
		fmt.Fprintln(w)
	}

	printEntries("Applied Migrations", status.Applied)
	printEntries("Pending Migrations", status.Pending)
	printEntries("Drift - applied but not shipped", status.Drift)

	if len(status.Applied) == 0 && len(status.Pending) == 0 && len(status.Drift) == 0 {
		fmt.Fprintln(w, "No migrations found.")
		return
	}

	fmt.Fprintf(w, "Summary: %d applied, %d pending", len(status.Applied), len(status.Pending))
	if len(status.Drift) > 0 {
		fmt.Fprintf(w, ", %d drift", len(status.Drift))
	}
	fmt.Fprintln(w)
}
