package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/council-records/config"
	"github.com/otherjamesbrown/council-records/pkg/db"
	ierrors "github.com/otherjamesbrown/council-records/pkg/errors"
	"github.com/otherjamesbrown/council-records/pkg/ingest/agenda"
	"github.com/otherjamesbrown/council-records/pkg/ingest/batch"
	"github.com/otherjamesbrown/council-records/pkg/ingest/minutes"
	"github.com/otherjamesbrown/council-records/pkg/ingest/split"
	"github.com/otherjamesbrown/council-records/pkg/ingest/storage"
	"github.com/otherjamesbrown/council-records/pkg/logging"
	"github.com/otherjamesbrown/council-records/pkg/observability"
)

// batchOptions holds the flags shared by batch and watch.
type batchOptions struct {
	split       bool
	store       bool
	publish     bool
	concurrency int
	dryRun      bool
	force       bool
}

func (o *batchOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.split, "split", false, "Split each meeting packet using its parsed agenda")
	cmd.Flags().BoolVar(&o.store, "store", false, "Store parsed records in PostgreSQL")
	cmd.Flags().BoolVar(&o.publish, "publish", false, "Publish parse events to Redis")
	cmd.Flags().IntVarP(&o.concurrency, "concurrency", "c", 0, "Meetings processed at once (default: concurrency)")
	cmd.Flags().BoolVar(&o.force, "force", false, "Re-parse documents whose output is up to date")
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(deps *CommandDeps) *cobra.Command {
	opts := &batchOptions{}
	cmd := &cobra.Command{
		Use:   "batch <root>",
		Short: "Parse every meeting folder under a directory",
		Long: `Parse every meeting folder under a root directory.

A meeting folder holds any of agenda.pdf|txt, minutes.pdf|txt and
packet.pdf (or minutes-packet.pdf). Dates come from YYYY/MM-DD or
YYYY-MM-DD folder names.

Each agenda is written to agenda_parsed.json and each minutes document to
minutes_parsed.json beside its source. Documents whose output is newer than
the source are skipped unless --force is given. A failed document is reported
and the batch continues.

Flags:
  --split        Split packet.pdf into split/ using the parsed agenda
  --store        Store records in PostgreSQL (run 'council db migrate' first)
  --publish      Publish agenda.parsed, minutes.parsed and batch events to Redis
  --dry-run      Parse only; write, store and publish nothing
  --force        Re-parse documents whose output is up to date`,
		Example: `  council batch ./meetings
  council batch ./meetings --split --store
  council batch ./meetings --dry-run --output-format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), cmd.OutOrStdout(), deps, opts, args[0])
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Parse without writing, storing or publishing")
	return cmd
}

// pipeline is a processor wired to the sinks selected by batchOptions.
type pipeline struct {
	processor *batch.Processor
	metrics   *observability.Metrics
	closers   []func()
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// newPipeline connects the requested sinks and builds the processor.
func newPipeline(ctx context.Context, cfg *config.CLIConfig, deps *CommandDeps, opts *batchOptions, log logging.Logger) (*pipeline, error) {
	reg := prometheus.NewRegistry()
	p := &pipeline{metrics: observability.NewMetrics(reg)}

	batchDeps := batch.Deps{
		Metrics: p.metrics,
		Tracer:  observability.NewTracer(),
		Logger:  log,
	}

	if opts.store && !opts.dryRun {
		pool, err := deps.ConnectToDB(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		p.closers = append(p.closers, pool.Close)
		if _, err := db.RegisterPoolStats(reg, pool, observability.Namespace); err != nil {
			log.Warn("Failed to register pool metrics", logging.Err(err))
		}
		batchDeps.Store = storage.NewRepository(pool, log)
	}

	if opts.publish && !opts.dryRun {
		pub, err := deps.NewPublisher(ctx, cfg, log)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		p.closers = append(p.closers, func() { _ = pub.Close() })
		batchDeps.Publisher = pub
	}

	if opts.split {
		batchDeps.Splitter = split.New(split.NewPDFCopier(), split.Options{Logger: log})
	}

	concurrency := opts.concurrency
	if concurrency <= 0 {
		concurrency = cfg.Concurrency
	}
	p.processor = batch.NewProcessor(batch.Config{
		Concurrency: concurrency,
		DryRun:      opts.dryRun,
		Split:       opts.split,
		Force:       opts.force,
		Agenda:      agenda.Options{Logger: log},
		Minutes: minutes.Options{
			MaxPages:       cfg.MinutesMaxPages,
			FallbackRoster: cfg.FallbackRoster,
			Logger:         log,
		},
		OnProgress: func(s batch.ProgressSnapshot) {
			log.Debug("Progress",
				logging.F("processed", s.ProcessedCount),
				logging.F("total", s.TotalDocuments),
				logging.F("percent", fmt.Sprintf("%.0f", s.PercentComplete())))
		},
	}, batchDeps)
	return p, nil
}

func runBatch(ctx context.Context, w io.Writer, deps *CommandDeps, opts *batchOptions, root string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	log := deps.logger()

	p, err := newPipeline(ctx, cfg, deps, opts, log)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.processor.Process(ctx, root)
	if err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := p.metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn("Failed to write metrics file", logging.Err(err), logging.F("path", cfg.MetricsFile))
		}
	}

	if cfg.OutputFormat != config.OutputFormatText {
		if err := writeRecord(w, cfg.OutputFormat, result); err != nil {
			return err
		}
	} else {
		printBatchResult(w, result)
	}

	switch {
	case result.Cancelled:
		return fmt.Errorf("batch cancelled after %d of %d documents",
			result.ParsedCount+result.SkippedCount+result.FailedCount, result.TotalDocuments)
	case result.FailedCount > 0:
		return fmt.Errorf("%d of %d documents failed", result.FailedCount, result.TotalDocuments)
	}
	return nil
}

func printBatchResult(w io.Writer, r *batch.ProcessResult) {
	fmt.Fprintf(w, "Batch %s\n", r.JobID)
	fmt.Fprintf(w, "  Root:      %s\n", r.Root)
	fmt.Fprintf(w, "  Meetings:  %d\n", r.Meetings)
	fmt.Fprintf(w, "  Documents: %d (%d parsed, %d skipped, %d failed)\n",
		r.TotalDocuments, r.ParsedCount, r.SkippedCount, r.FailedCount)
	fmt.Fprintf(w, "  Duration:  %s\n", r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond))

	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "\nFailed (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e.Path)
			fmt.Fprintf(w, "    [%s] %s: %s\n", e.Code, e.Stage, truncate(e.Message, 100))
			if action := ierrors.GetSuggestedAction(e.Code); action != "" {
				fmt.Fprintf(w, "    → %s\n", action)
			}
		}
	}
}
