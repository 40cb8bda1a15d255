package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/council-records/config"
	"github.com/otherjamesbrown/council-records/pkg/ingest/agenda"
	"github.com/otherjamesbrown/council-records/pkg/ingest/minutes"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
)

// parseOptions holds the flags of the parse subcommands.
type parseOptions struct {
	output   string
	maxPages int
}

// NewParseCommand creates the parse command with its agenda and minutes subcommands.
func NewParseCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse a single agenda or minutes document",
		Long: `Parse a single council document into a structured record.

Agendas yield sections and items with page ranges and file numbers. Minutes
yield voted items with results, tallies and per-member vote breakdowns.

Documents may be PDFs or plain text with form feeds between pages.

The record is written to --output (YAML for .yaml/.yml, JSON otherwise), to
output_dir when configured, or printed with --output-format json|yaml.`,
	}

	cmd.AddCommand(newParseAgendaCommand(deps))
	cmd.AddCommand(newParseMinutesCommand(deps))
	return cmd
}

func newParseAgendaCommand(deps *CommandDeps) *cobra.Command {
	opts := &parseOptions{}
	cmd := &cobra.Command{
		Use:   "agenda <file>",
		Short: "Parse an agenda document",
		Example: `  council parse agenda 2026/02-11/agenda.pdf
  council parse agenda agenda.txt -o agenda_parsed.json
  council parse agenda agenda.pdf --output-format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParseAgenda(cmd.OutOrStdout(), deps, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the parsed record to this file")
	return cmd
}

func newParseMinutesCommand(deps *CommandDeps) *cobra.Command {
	opts := &parseOptions{}
	cmd := &cobra.Command{
		Use:   "minutes <file>",
		Short: "Parse a minutes document",
		Example: `  council parse minutes 2026/02-11/minutes.pdf
  council parse minutes minutes.txt -o minutes_parsed.json --max-pages 30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParseMinutes(cmd.OutOrStdout(), deps, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the parsed record to this file")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "Pages to read (default: minutes_max_pages)")
	return cmd
}

// sectionCount is one row of the agenda summary.
type sectionCount struct {
	Number   int                   `json:"number" yaml:"number"`
	Category types.SectionCategory `json:"type" yaml:"type"`
	Items    int                   `json:"items" yaml:"items"`
}

type agendaSummary struct {
	Source         string            `json:"source" yaml:"source"`
	Output         string            `json:"output,omitempty" yaml:"output,omitempty"`
	Meeting        types.MeetingInfo `json:"meeting" yaml:"meeting"`
	AgendaPages    int               `json:"agenda_pages" yaml:"agenda_pages"`
	Sections       []sectionCount    `json:"sections" yaml:"sections"`
	Items          int               `json:"items" yaml:"items"`
	ItemsWithPages int               `json:"items_with_pages" yaml:"items_with_pages"`
}

type minutesSummary struct {
	Source          string            `json:"source" yaml:"source"`
	Output          string            `json:"output,omitempty" yaml:"output,omitempty"`
	Meeting         types.MeetingInfo `json:"meeting" yaml:"meeting"`
	CouncilMembers  []string          `json:"council_members" yaml:"council_members"`
	InitialAbsences []string          `json:"initial_absences" yaml:"initial_absences"`
	Items           int               `json:"items" yaml:"items"`
	Voted           int               `json:"voted" yaml:"voted"`
	Results         map[string]int    `json:"results" yaml:"results"`
}

func runParseAgenda(w io.Writer, deps *CommandDeps, opts *parseOptions, path string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	log := deps.logger()

	a, err := agenda.ParseFile(path, agenda.Options{Logger: log})
	if err != nil {
		return fmt.Errorf("parsing agenda: %w", err)
	}

	out := outputPath(cfg, opts.output, path, "agenda")
	if out == "" && cfg.OutputFormat != config.OutputFormatText {
		return writeRecord(w, cfg.OutputFormat, a)
	}
	if out != "" {
		if err := writeRecordFile(out, a); err != nil {
			return err
		}
	}

	summary := agendaSummary{
		Source:         path,
		Output:         out,
		Meeting:        a.Meeting,
		AgendaPages:    a.AgendaPages,
		Sections:       []sectionCount{},
		Items:          a.ItemCount(),
		ItemsWithPages: a.ItemsWithPages(),
	}
	for _, s := range a.Sections {
		summary.Sections = append(summary.Sections, sectionCount{Number: s.Number, Category: s.Category, Items: len(s.Items)})
	}

	if cfg.OutputFormat != config.OutputFormatText {
		return writeRecord(w, cfg.OutputFormat, summary)
	}
	printAgendaSummary(w, summary)
	return nil
}

func printAgendaSummary(w io.Writer, s agendaSummary) {
	fmt.Fprintf(w, "Agenda: %s\n", s.Source)
	fmt.Fprintf(w, "  Meeting:          %s\n", meetingLabel(s.Meeting))
	fmt.Fprintf(w, "  Agenda pages:     %d\n", s.AgendaPages)
	fmt.Fprintf(w, "  Sections:         %d\n", len(s.Sections))
	fmt.Fprintf(w, "  Items:            %d\n", s.Items)
	fmt.Fprintf(w, "  Items with pages: %d\n", s.ItemsWithPages)
	if len(s.Sections) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  SECTION  TYPE                          ITEMS")
		for _, sc := range s.Sections {
			fmt.Fprintf(w, "  %-8d %-29s %d\n", sc.Number, sc.Category, sc.Items)
		}
	}
	if s.Output != "" {
		fmt.Fprintf(w, "\nWrote %s\n", s.Output)
	}
}

func runParseMinutes(w io.Writer, deps *CommandDeps, opts *parseOptions, path string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	maxPages := opts.maxPages
	if maxPages <= 0 {
		maxPages = cfg.MinutesMaxPages
	}
	m, err := minutes.ParseFile(path, minutes.Options{
		MaxPages:       maxPages,
		FallbackRoster: cfg.FallbackRoster,
		Logger:         deps.logger(),
	})
	if err != nil {
		return fmt.Errorf("parsing minutes: %w", err)
	}

	out := outputPath(cfg, opts.output, path, "minutes")
	if out == "" && cfg.OutputFormat != config.OutputFormatText {
		return writeRecord(w, cfg.OutputFormat, m)
	}
	if out != "" {
		if err := writeRecordFile(out, m); err != nil {
			return err
		}
	}

	summary := minutesSummary{
		Source:          path,
		Output:          out,
		Meeting:         m.Meeting,
		CouncilMembers:  m.CouncilMembers,
		InitialAbsences: m.InitialAbsences,
		Items:           len(m.Items),
		Voted:           m.Voted(),
		Results:         m.ResultCounts(),
	}
	if cfg.OutputFormat != config.OutputFormatText {
		return writeRecord(w, cfg.OutputFormat, summary)
	}
	printMinutesSummary(w, summary)
	return nil
}

func printMinutesSummary(w io.Writer, s minutesSummary) {
	fmt.Fprintf(w, "Minutes: %s\n", s.Source)
	fmt.Fprintf(w, "  Meeting:   %s\n", meetingLabel(s.Meeting))
	fmt.Fprintf(w, "  Members:   %d\n", len(s.CouncilMembers))
	if len(s.InitialAbsences) > 0 {
		fmt.Fprintf(w, "  Absent:    %v\n", s.InitialAbsences)
	}
	fmt.Fprintf(w, "  Items:     %d (%d with a result)\n", s.Items, s.Voted)

	if len(s.Results) > 0 {
		keys := make([]string, 0, len(s.Results))
		for k := range s.Results {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(w)
		fmt.Fprintln(w, "  RESULT       ITEMS")
		for _, k := range keys {
			fmt.Fprintf(w, "  %-12s %d\n", resultLabel(k), s.Results[k])
		}
	}
	if s.Output != "" {
		fmt.Fprintf(w, "\nWrote %s\n", s.Output)
	}
}

// outputPath picks the record file: the flag, else output_dir, else none.
func outputPath(cfg *config.CLIConfig, flag, source, kind string) string {
	if flag != "" {
		return flag
	}
	if cfg.OutputDir != "" {
		return filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%s_parsed.json", stem(source), kind))
	}
	return ""
}

func meetingLabel(info types.MeetingInfo) string {
	if info.Date == nil {
		return info.Type + " (date unknown)"
	}
	return info.Type + " " + *info.Date
}

func resultLabel(key string) string {
	if key == "no_action" {
		return "No action"
	}
	return types.Result(key).Display()
}
