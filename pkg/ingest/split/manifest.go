package split

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
)

// ManifestName is the manifest file written next to the split files.
const ManifestName = "manifest.json"

// Entry describes one file produced by a split.
type Entry struct {
	ItemNumber string         `json:"item_number"`
	Title      string         `json:"title"`
	ItemType   types.ItemType `json:"item_type"`
	FileNumber *string        `json:"file_number"`
	PageStart  int            `json:"page_start"`
	PageEnd    int            `json:"page_end"`
	PageCount  int            `json:"page_count"`
	// OutputFile is relative to the output directory, slash separated.
	OutputFile string `json:"output_file"`
}

// Manifest records what a split produced.
type Manifest struct {
	Meeting         types.MeetingInfo `json:"meeting"`
	PacketPages     int               `json:"packet_pages"`
	FilesCreated    int               `json:"files_created"`
	TotalPagesSplit int               `json:"total_pages_split"`
	Warnings        []string          `json:"warnings"`
	Items           []Entry           `json:"items"`
}

// Complete reports whether every packet page went into some output file.
func (m *Manifest) Complete() bool {
	return m.TotalPagesSplit == m.PacketPages
}

// Unaccounted is the number of packet pages not covered by any output file.
// It is negative when item ranges overlap.
func (m *Manifest) Unaccounted() int {
	return m.PacketPages - m.TotalPagesSplit
}

// Coverage summarizes page coverage for display.
func (m *Manifest) Coverage() string {
	if m.Complete() {
		return fmt.Sprintf("COMPLETE (%d/%d pages)", m.PacketPages, m.PacketPages)
	}
	return fmt.Sprintf("%d/%d pages (%d pages unaccounted)", m.TotalPagesSplit, m.PacketPages, m.Unaccounted())
}

func (m *Manifest) add(e Entry) {
	m.Items = append(m.Items, e)
	m.FilesCreated = len(m.Items)
	m.TotalPagesSplit += e.PageCount
}

func (m *Manifest) warn(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	m.Warnings = append(m.Warnings, msg)
	return msg
}

// WriteManifest writes m as indented JSON to dir/manifest.json.
func WriteManifest(dir string, m *Manifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	return &m, nil
}
