package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/council-records/config"
	"github.com/otherjamesbrown/council-records/pkg/ingest/split"
)

type fakeCopier struct{ pages int }

func (f *fakeCopier) PageCount(string) (int, error) { return f.pages, nil }

func (f *fakeCopier) CopyPages(_ string, _, _ int, dest string) error {
	return os.WriteFile(dest, []byte("%PDF-1.7\n"), 0o644)
}

// writeSplitFixtures writes a 15-page text packet and the parsed agenda for it.
func writeSplitFixtures(t *testing.T, dir string) (packet, agendaJSON string) {
	t.Helper()
	pages := make([]string, 15)
	for i := range pages {
		pages[i] = fmt.Sprintf("page %d", i+1)
	}
	pages[9] = "Ord. 26-006 An Ordinance amending the zoning map"
	packet = writeFile(t, filepath.Join(dir, "packet.txt"), strings.Join(pages, "\f"))

	agendaSrc := writeFile(t, filepath.Join(dir, "agenda.txt"), agendaText)
	agendaJSON = filepath.Join(dir, "agenda_parsed.json")
	var buf bytes.Buffer
	require.NoError(t, runParseAgenda(&buf, testDeps(config.DefaultConfig()), &parseOptions{output: agendaJSON}, agendaSrc))
	return packet, agendaJSON
}

func TestSplitCommand_Args(t *testing.T) {
	cmd := NewSplitCommand(testDeps(config.DefaultConfig()))
	assert.Error(t, cmd.Args(cmd, []string{"packet.pdf", "agenda.json"}))
	assert.NoError(t, cmd.Args(cmd, []string{"packet.pdf", "agenda.json", "out"}))
}

func TestRunSplit(t *testing.T) {
	dir := t.TempDir()
	packet, agendaJSON := writeSplitFixtures(t, dir)
	outDir := filepath.Join(dir, "split")

	var buf bytes.Buffer
	err := runSplit(context.Background(), &buf, testDeps(config.DefaultConfig()), &fakeCopier{pages: 15}, packet, agendaJSON, outDir)
	require.NoError(t, err)

	text := buf.String()
	assert.Contains(t, text, "Files created: 3")
	assert.Contains(t, text, "Coverage:      8/15 pages (7 pages unaccounted)")
	assert.Contains(t, text, "ordinances/03.01_ordinance_Ord-26-006.pdf")
	// 3.2's file number is not on page 14 or 15.
	assert.Contains(t, text, "Warnings (1):")

	m, err := split.ReadManifest(filepath.Join(outDir, split.ManifestName))
	require.NoError(t, err)
	assert.Equal(t, 15, m.PacketPages)
	assert.Equal(t, 3, m.FilesCreated)
}

func TestRunSplit_JSON(t *testing.T) {
	dir := t.TempDir()
	packet, agendaJSON := writeSplitFixtures(t, dir)
	cfg := config.DefaultConfig()
	cfg.OutputFormat = config.OutputFormatJSON

	var buf bytes.Buffer
	require.NoError(t, runSplit(context.Background(), &buf, testDeps(cfg), &fakeCopier{pages: 15}, packet, agendaJSON, filepath.Join(dir, "out")))

	var m split.Manifest
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, 8, m.TotalPagesSplit)
}

func TestRunSplit_BadAgenda(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, filepath.Join(dir, "agenda.json"), "{not json")

	var buf bytes.Buffer
	err := runSplit(context.Background(), &buf, testDeps(config.DefaultConfig()), &fakeCopier{pages: 1}, "packet.pdf", bad, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding agenda")
}
