package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/council-records/pkg/buildinfo"
	"github.com/otherjamesbrown/council-records/pkg/ingest/batch"
	"github.com/otherjamesbrown/council-records/pkg/ingest/meeting"
	"github.com/otherjamesbrown/council-records/pkg/ingest/watch"
	"github.com/otherjamesbrown/council-records/pkg/logging"
	"github.com/otherjamesbrown/council-records/pkg/observability"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(deps *CommandDeps) *cobra.Command {
	opts := &batchOptions{}
	cmd := &cobra.Command{
		Use:   "watch <root>",
		Short: "Re-parse meeting folders as documents change",
		Long: `Watch a root directory and re-parse meeting folders when their documents change.

Existing meeting folders are processed once at startup. New folders are picked
up as they are created. Changes are debounced per folder (watch_debounce) so a
document copied in several writes is parsed once.

When metrics_addr is configured the command serves Prometheus metrics on
/metrics, build information on /version and a liveness check on /healthz.
When metrics_file is configured the metrics are also written there after
every run.

Stop with Ctrl-C.`,
		Example: `  council watch ./meetings
  council watch ./meetings --split --store --publish
  COUNCIL_METRICS_ADDR=:9102 council watch ./meetings`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), deps, opts, args[0])
		},
	}
	opts.bind(cmd)
	return cmd
}

// textfileHandler writes the metrics file after every meeting run.
type textfileHandler struct {
	next    watch.Handler
	metrics *observability.Metrics
	path    string
	log     logging.Logger
}

func (h *textfileHandler) ProcessMeeting(ctx context.Context, m *meeting.Meeting) (*batch.ProcessResult, error) {
	result, err := h.next.ProcessMeeting(ctx, m)
	if werr := h.metrics.WriteTextfile(h.path); werr != nil {
		h.log.Warn("Failed to write metrics file", logging.Err(werr), logging.F("path", h.path))
	}
	return result, err
}

func runWatch(ctx context.Context, deps *CommandDeps, opts *batchOptions, root string) error {
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

	var handler watch.Handler = p.processor
	if cfg.MetricsFile != "" {
		handler = &textfileHandler{next: handler, metrics: p.metrics, path: cfg.MetricsFile, log: log}
	}

	w, err := watch.New(root, handler, watch.Options{Debounce: cfg.WatchDebounce, Logger: log})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := newMetricsServer(cfg.MetricsAddr, p.metrics)
		go func() {
			log.Info("Serving metrics", logging.F("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Metrics server failed", logging.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	err = w.Run(ctx)

	stats := w.Stats()
	log.Info("Watch stopped",
		logging.F("events", stats.Events),
		logging.F("runs", stats.Runs),
		logging.F("failures", stats.Failures))
	return err
}

func newMetricsServer(addr string, m *observability.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/version", buildinfo.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
