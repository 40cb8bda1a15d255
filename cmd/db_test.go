package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/council-records/config"
	"github.com/otherjamesbrown/council-records/pkg/db"
)

// TestDbCommand_HasSubcommands verifies the db command has migrate and status subcommands.
func TestDbCommand_HasSubcommands(t *testing.T) {
	cmd := NewDbCommand(testDeps(config.DefaultConfig()))
	assert.Equal(t, "db", cmd.Use)

	migrateCmd, _, err := cmd.Find([]string{"migrate"})
	require.NoError(t, err)
	for _, name := range []string{"dry-run", "target", "yes"} {
		assert.NotNil(t, migrateCmd.Flags().Lookup(name), "migrate should have --%s", name)
	}

	statusCmd, _, err := cmd.Find([]string{"status"})
	require.NoError(t, err)
	assert.Equal(t, "status", statusCmd.Use)
}

func TestRunDbStatus_ConnectError(t *testing.T) {
	deps := testDeps(config.DefaultConfig())
	deps.ConnectToDB = func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error) {
		return nil, errors.New("connection refused")
	}

	var buf bytes.Buffer
	err := runDbStatus(context.Background(), &buf, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to database")
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirm(strings.NewReader("y\n"), &out, "? "))
	assert.True(t, confirm(strings.NewReader("Y"), &out, "? "))
	assert.False(t, confirm(strings.NewReader("\n"), &out, "? "))
	assert.False(t, confirm(strings.NewReader(""), &out, "? "))
	assert.Equal(t, "? ? ? ? ", out.String())
}

func TestPrintMigrationStatus(t *testing.T) {
	applied := time.Date(2026, 2, 11, 9, 30, 0, 0, time.UTC)
	status := &db.MigrationStatus{
		Applied: []db.MigrationStatusEntry{{Version: "001", Name: "001_meetings.sql", AppliedAt: &applied}},
		Pending: []db.MigrationStatusEntry{{Version: "002", Name: "002_batch_jobs.sql"}},
		Drift:   []db.MigrationStatusEntry{},
	}

	var buf bytes.Buffer
	printMigrationStatus(&buf, status)
	out := buf.String()
	assert.Contains(t, out, "Applied Migrations (1):")
	assert.Contains(t, out, "2026-02-11 09:30:00")
	assert.Contains(t, out, "Pending Migrations (1):")
	assert.NotContains(t, out, "Drift")
	assert.Contains(t, out, "Summary: 1 applied, 1 pending")
}

func TestPrintMigrationStatus_Empty(t *testing.T) {
	var buf bytes.Buffer
	printMigrationStatus(&buf, &db.MigrationStatus{})
	assert.Equal(t, "No migrations found.\n", buf.String())
}

func TestPrintMigrationResult(t *testing.T) {
	var buf bytes.Buffer
	printMigrationResult(&buf, &db.MigrationResult{Applied: []string{"002"}, Skipped: []string{"001"}})
	assert.Contains(t, buf.String(), "Successfully applied 1 migration(s):")
	assert.Contains(t, buf.String(), "Skipped 1 migration(s)")
}
