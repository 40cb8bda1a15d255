package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/council-records/config"
	"github.com/otherjamesbrown/council-records/pkg/ingest/split"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
)

// NewSplitCommand creates the split command.
func NewSplitCommand(deps *CommandDeps) *cobra.Command {
	return newSplitCommand(deps, split.NewPDFCopier())
}

func newSplitCommand(deps *CommandDeps, copier split.PageCopier) *cobra.Command {
	return &cobra.Command{
		Use:   "split <packet.pdf> <agenda_parsed.json> <out_dir>",
		Short: "Split a meeting packet into one PDF per agenda item",
		Long: `Split a meeting packet using the page ranges of a parsed agenda.

The agenda pages go to agenda/00.00_agenda.pdf and every item with a page
range goes to ordinances/, resolutions/, claims/ or other/, named by item
number, item type and file number. Items whose range falls outside the packet
are skipped with a warning. Each item's file number is looked for on the first
pages of its range; a missing number is only a warning.

manifest.json in the output directory lists every file created, the warnings
and the page coverage.`,
		Example: `  council parse agenda agenda.pdf -o agenda_parsed.json
  council split packet.pdf agenda_parsed.json ./split`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd.Context(), cmd.OutOrStdout(), deps, copier, args[0], args[1], args[2])
		},
	}
}

func runSplit(ctx context.Context, w io.Writer, deps *CommandDeps, copier split.PageCopier, packet, agendaPath, outDir string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	a, err := readAgenda(agendaPath)
	if err != nil {
		return err
	}

	s := split.New(copier, split.Options{Logger: deps.logger()})
	manifest, err := s.Split(ctx, packet, a, outDir)
	if err != nil {
		return fmt.Errorf("splitting packet: %w", err)
	}

	if cfg.OutputFormat != config.OutputFormatText {
		return writeRecord(w, cfg.OutputFormat, manifest)
	}
	printManifest(w, outDir, manifest)
	return nil
}

// readAgenda loads an agenda record written by `council parse agenda`.
func readAgenda(path string) (*types.Agenda, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agenda: %w", err)
	}
	var a types.Agenda
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding agenda %s: %w", path, err)
	}
	return &a, nil
}

func printManifest(w io.Writer, outDir string, m *split.Manifest) {
	fmt.Fprintf(w, "Split into %s\n", outDir)
	fmt.Fprintf(w, "  Packet pages:  %d\n", m.PacketPages)
	fmt.Fprintf(w, "  Files created: %d\n", m.FilesCreated)
	fmt.Fprintf(w, "  Coverage:      %s\n", m.Coverage())

	if len(m.Items) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  ITEM     PAGES      FILE")
		for _, e := range m.Items {
			fmt.Fprintf(w, "  %-8s %-10s %s\n", e.ItemNumber, fmt.Sprintf("%d-%d", e.PageStart, e.PageEnd), e.OutputFile)
		}
	}
	if len(m.Warnings) > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\n", len(m.Warnings))
		for _, warning := range m.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
}
