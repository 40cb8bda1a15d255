package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/council-records/config"
	"github.com/otherjamesbrown/council-records/pkg/ingest/batch"
)

// writeMeetings lays out two meetings under a fresh root.
func writeMeetings(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2026", "02-11", "agenda.txt"), agendaText)
	writeFile(t, filepath.Join(root, "2026", "02-11", "minutes.txt"), minutesText)
	writeFile(t, filepath.Join(root, "2026", "03-04", "agenda.txt"), agendaText)
	return root
}

func TestBatchCommand_Flags(t *testing.T) {
	cmd := NewBatchCommand(testDeps(config.DefaultConfig()))
	for _, name := range []string{"split", "store", "publish", "concurrency", "dry-run", "force"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing --%s", name)
	}
}

func TestRunBatch_WritesOutputs(t *testing.T) {
	root := writeMeetings(t)

	var buf bytes.Buffer
	require.NoError(t, runBatch(context.Background(), &buf, testDeps(config.DefaultConfig()), &batchOptions{}, root))

	assert.Contains(t, buf.String(), "Meetings:  2")
	assert.Contains(t, buf.String(), "Documents: 3 (3 parsed, 0 skipped, 0 failed)")
	for _, p := range []string{"2026/02-11/agenda_parsed.json", "2026/02-11/minutes_parsed.json", "2026/03-04/agenda_parsed.json"} {
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(p)))
		assert.NoError(t, err, p)
	}

	// A second run finds everything up to date.
	buf.Reset()
	require.NoError(t, runBatch(context.Background(), &buf, testDeps(config.DefaultConfig()), &batchOptions{}, root))
	assert.Contains(t, buf.String(), "(0 parsed, 3 skipped, 0 failed)")
}

func TestRunBatch_DryRunJSON(t *testing.T) {
	root := writeMeetings(t)
	cfg := config.DefaultConfig()
	cfg.OutputFormat = config.OutputFormatJSON

	var buf bytes.Buffer
	require.NoError(t, runBatch(context.Background(), &buf, testDeps(cfg), &batchOptions{dryRun: true, store: true}, root))

	var result batch.ProcessResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, 3, result.ParsedCount)
	assert.True(t, result.Success)

	_, err := os.Stat(filepath.Join(root, "2026", "02-11", "agenda_parsed.json"))
	assert.True(t, os.IsNotExist(err), "dry run writes nothing")
}

func TestRunBatch_FailedDocument(t *testing.T) {
	root := writeMeetings(t)
	writeFile(t, filepath.Join(root, "2026", "04-01", "agenda.txt"), "   \n")

	var buf bytes.Buffer
	err := runBatch(context.Background(), &buf, testDeps(config.DefaultConfig()), &batchOptions{}, root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 4 documents failed")
	assert.Contains(t, buf.String(), "[empty_content]")
	assert.Contains(t, buf.String(), "→ ")
}

func TestRunBatch_MetricsFile(t *testing.T) {
	root := writeMeetings(t)
	cfg := config.DefaultConfig()
	cfg.MetricsFile = filepath.Join(t.TempDir(), "council.prom")

	var buf bytes.Buffer
	require.NoError(t, runBatch(context.Background(), &buf, testDeps(cfg), &batchOptions{}, root))

	data, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `council_documents_processed_total{kind="agenda",status="parsed"} 2`)
}

func TestRunBatch_StoreConnectError(t *testing.T) {
	deps := testDeps(config.DefaultConfig())
	deps.ConnectToDB = func(context.Context, *config.CLIConfig) (*pgxpool.Pool, error) {
		return nil, errors.New("connection refused")
	}

	var buf bytes.Buffer
	err := runBatch(context.Background(), &buf, deps, &batchOptions{store: true}, writeMeetings(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to database")
}

func TestRunBatch_MissingRoot(t *testing.T) {
	var buf bytes.Buffer
	err := runBatch(context.Background(), &buf, testDeps(config.DefaultConfig()), &batchOptions{}, filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
}
