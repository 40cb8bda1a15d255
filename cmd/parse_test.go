package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/council-records/config"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
)

func TestParseCommand_HasSubcommands(t *testing.T) {
	cmd := NewParseCommand(testDeps(config.DefaultConfig()))
	agendaCmd, _, err := cmd.Find([]string{"agenda"})
	require.NoError(t, err)
	assert.NotNil(t, agendaCmd.Flags().Lookup("output"))

	minutesCmd, _, err := cmd.Find([]string{"minutes"})
	require.NoError(t, err)
	assert.NotNil(t, minutesCmd.Flags().Lookup("max-pages"))
}

func TestParseAgenda_TextSummaryAndFile(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "agenda.txt"), agendaText)
	out := filepath.Join(dir, "agenda_parsed.json")

	var buf bytes.Buffer
	err := runParseAgenda(&buf, testDeps(config.DefaultConfig()), &parseOptions{output: out}, src)
	require.NoError(t, err)

	text := buf.String()
	assert.Contains(t, text, "regular 2026-02-11")
	assert.Contains(t, text, "Items:            2")
	assert.Contains(t, text, "Items with pages: 2")
	assert.Contains(t, text, "ordinance_first_reading")
	assert.Contains(t, text, "Wrote "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var a types.Agenda
	require.NoError(t, json.Unmarshal(data, &a))
	require.Len(t, a.Sections, 1)
	assert.Equal(t, "3.2", a.Sections[0].Items[1].ItemNumber)
}

func TestParseAgenda_JSONToStdout(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "agenda.txt"), agendaText)
	cfg := config.DefaultConfig()
	cfg.OutputFormat = config.OutputFormatJSON

	var buf bytes.Buffer
	require.NoError(t, runParseAgenda(&buf, testDeps(cfg), &parseOptions{}, src))

	var a types.Agenda
	require.NoError(t, json.Unmarshal(buf.Bytes(), &a))
	assert.Equal(t, 2, a.ItemCount())
}

func TestParseAgenda_OutputDir(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "in", "agenda.txt"), agendaText)
	cfg := config.DefaultConfig()
	cfg.OutputDir = filepath.Join(dir, "out")

	var buf bytes.Buffer
	require.NoError(t, runParseAgenda(&buf, testDeps(cfg), &parseOptions{}, src))
	_, err := os.Stat(filepath.Join(dir, "out", "agenda_agenda_parsed.json"))
	assert.NoError(t, err)
}

func TestParseAgenda_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	err := runParseAgenda(&buf, testDeps(config.DefaultConfig()), &parseOptions{}, filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestParseMinutes_Summary(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "minutes.txt"), minutesText)

	var buf bytes.Buffer
	require.NoError(t, runParseMinutes(&buf, testDeps(config.DefaultConfig()), &parseOptions{}, src))

	text := buf.String()
	assert.Contains(t, text, "Members:   2")
	assert.Contains(t, text, "Items:     2 (2 with a result)")
	assert.Contains(t, text, "Approved")
	assert.Contains(t, text, "Defeated")
}

func TestParseMinutes_MaxPagesAndYAMLFile(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "minutes.txt"), minutesText)
	out := filepath.Join(dir, "minutes.yaml")
	cfg := config.DefaultConfig()
	cfg.OutputFormat = config.OutputFormatJSON

	var buf bytes.Buffer
	require.NoError(t, runParseMinutes(&buf, testDeps(cfg), &parseOptions{output: out, maxPages: 1}, src))

	var summary minutesSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &summary))
	assert.Equal(t, out, summary.Output)
	assert.Equal(t, 0, summary.Items, "items sit on page 2")
	assert.Equal(t, []string{"Rivera", "Gilmore"}, summary.CouncilMembers)

	_, err := os.Stat(out)
	assert.NoError(t, err)
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "Approved", resultLabel("approved"))
	assert.Equal(t, "No action", resultLabel("no_action"))
}

func TestMeetingLabel(t *testing.T) {
	date := "2026-02-11"
	assert.Equal(t, "special 2026-02-11", meetingLabel(types.MeetingInfo{Type: types.MeetingSpecial, Date: &date}))
	assert.Equal(t, "regular (date unknown)", meetingLabel(types.MeetingInfo{Type: types.MeetingRegular}))
}
