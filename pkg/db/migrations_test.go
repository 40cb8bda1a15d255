package db

import (
	"context"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"with .sql suffix", "001_test.sql", "001_test"},
		{"uppercase suffix", "002_test.SQL", "002_test"},
		{"mixed case suffix", "004_test.Sql", "004_test"},
		{"without suffix", "003_test", "003_test"},
		{"empty string", "", ""},
		{"just .sql", ".sql", ".sql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeVersion(tt.input))
		})
	}
}

func TestFindMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_second.sql":   {Data: []byte("SELECT 2;")},
		"001_first.sql":    {Data: []byte("SELECT 1;")},
		"README.md":        {Data: []byte("docs")},
		"nested/003_x.sql": {Data: []byte("SELECT 3;")},
	}

	migrations, err := findMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "001_first", migrations[0].Version)
	assert.Equal(t, "001_first.sql", migrations[0].Name)
	assert.Equal(t, "002_second", migrations[1].Version)
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := findMigrations(Migrations())
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, "001_meetings", migrations[0].Version)
}

func TestBuildStatus(t *testing.T) {
	now := time.Now()
	migrations := []Migration{
		{Version: "001_a", Name: "001_a.sql"},
		{Version: "002_b", Name: "002_b.sql"},
	}
	applied := map[string]time.Time{"001_a": now, "000_removed": now}

	status := buildStatus(migrations, applied)
	require.Len(t, status.Applied, 1)
	assert.Equal(t, "001_a", status.Applied[0].Version)
	require.Len(t, status.Pending, 1)
	assert.Nil(t, status.Pending[0].AppliedAt)
	require.Len(t, status.Drift, 1)
	assert.Equal(t, "000_removed.sql", status.Drift[0].Name)
}

func TestRunMigrations_NilPool(t *testing.T) {
	_, err := RunMigrations(context.Background(), nil, Migrations())
	assert.EqualError(t, err, "pool is nil")
}

func TestGetMigrationStatus_NilPool(t *testing.T) {
	_, err := GetMigrationStatus(context.Background(), nil, Migrations())
	assert.Error(t, err)
}

// TestRunMigrations_Integration applies the embedded schema twice against
// DATABASE_URL.
func TestRunMigrations_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	pool := setupTestDB(t)

	ctx := context.Background()
	first, err := RunMigrations(ctx, pool, Migrations())
	require.NoError(t, err)

	second, err := RunMigrations(ctx, pool, Migrations())
	require.NoError(t, err)
	assert.Empty(t, second.Applied)
	assert.Len(t, second.Skipped, len(first.Applied)+len(first.Skipped))
}

func TestRunMigrationsToTarget_InvalidTarget(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	pool := setupTestDB(t)

	_, err := RunMigrationsToTarget(context.Background(), pool, Migrations(), "999_missing")
	assert.ErrorContains(t, err, "not found")
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}
