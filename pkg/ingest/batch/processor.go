package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	ierrors "github.com/otherjamesbrown/council-records/pkg/errors"
	"github.com/otherjamesbrown/council-records/pkg/ingest/agenda"
	"github.com/otherjamesbrown/council-records/pkg/ingest/events"
	"github.com/otherjamesbrown/council-records/pkg/ingest/meeting"
	"github.com/otherjamesbrown/council-records/pkg/ingest/minutes"
	"github.com/otherjamesbrown/council-records/pkg/ingest/split"
	"github.com/otherjamesbrown/council-records/pkg/ingest/storage"
	"github.com/otherjamesbrown/council-records/pkg/ingest/textsource"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
	"github.com/otherjamesbrown/council-records/pkg/logging"
	"github.com/otherjamesbrown/council-records/pkg/observability"
)

// DefaultConcurrency is the default number of meetings processed at once.
const DefaultConcurrency = 4

// Output names written next to the source documents.
const (
	AgendaOutput  = "agenda_parsed.json"
	MinutesOutput = "minutes_parsed.json"
	SplitDir      = "split"
)

// Document kinds, used in metrics and spans.
const (
	KindAgenda  = "agenda"
	KindMinutes = "minutes"
)

// Store persists parsed documents and job bookkeeping. *storage.Repository
// satisfies it.
type Store interface {
	SaveAgenda(ctx context.Context, ref storage.MeetingRef, a *types.Agenda) (int64, error)
	SaveMinutes(ctx context.Context, ref storage.MeetingRef, m *types.Minutes) (int64, error)
	CreateJob(ctx context.Context, job *storage.Job) error
	UpdateJobProgress(ctx context.Context, jobID string, c storage.JobCounts) error
	CompleteJob(ctx context.Context, jobID string, status storage.JobStatus, c storage.JobCounts) error
	RecordError(ctx context.Context, jobID string, se *ierrors.StageError) error
}

// Publisher announces parsed documents. *events.Publisher satisfies it.
type Publisher interface {
	PublishAgendaParsed(ctx context.Context, params events.AgendaParams) error
	PublishMinutesParsed(ctx context.Context, params events.MinutesParams) error
	PublishBatchProgress(ctx context.Context, params events.BatchProgressParams) error
	PublishBatchCompleted(ctx context.Context, params events.BatchCompletedParams) error
}

// Splitter cuts a packet into per-item files. *split.Splitter satisfies it.
type Splitter interface {
	Split(ctx context.Context, packet string, a *types.Agenda, outDir string) (*split.Manifest, error)
}

// Config configures the batch processor.
type Config struct {
	// Concurrency is the number of meetings processed at once.
	Concurrency int

	// DryRun parses documents without writing, storing or publishing.
	DryRun bool

	// Split cuts each meeting's packet using its parsed agenda.
	Split bool

	// Force re-parses documents whose output is newer than the source.
	Force bool

	Agenda  agenda.Options
	Minutes minutes.Options

	// OnProgress is called synchronously after every progress change. It must
	// not call back into the Processor.
	OnProgress func(ProgressSnapshot)
}

// Deps are the optional collaborators of a Processor. Nil members are skipped.
type Deps struct {
	Store     Store
	Publisher Publisher
	Splitter  Splitter
	Metrics   *observability.Metrics
	Tracer    *observability.Tracer
	Logger    logging.Logger
}

// ProcessResult contains the result of a batch run.
type ProcessResult struct {
	JobID          string
	Root           string
	Meetings       int
	TotalDocuments int
	ParsedCount    int
	SkippedCount   int
	FailedCount    int
	StartedAt      time.Time
	CompletedAt    time.Time
	Success        bool
	Cancelled      bool
	Errors         []FileError
	// Outputs lists the files written, sorted.
	Outputs []string
}

// FileError records a failed document.
type FileError struct {
	Path    string
	Stage   string
	Code    ierrors.ErrorCode
	Message string
}

// Processor parses meeting folders and hands the results to its sinks.
type Processor struct {
	cfg    Config
	deps   Deps
	logger logging.Logger
	tracer *observability.Tracer

	progress *Progress
	mu       sync.Mutex
}

// NewProcessor creates a batch processor.
func NewProcessor(cfg Config, deps Deps) *Processor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	logger := logging.OrNop(deps.Logger)
	cfg.Agenda.Logger = logging.OrNop(cfg.Agenda.Logger)
	cfg.Minutes.Logger = logging.OrNop(cfg.Minutes.Logger)

	tracer := deps.Tracer
	if tracer == nil {
		tracer = observability.NewTracer()
	}
	return &Processor{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(logging.F("component", "batch_processor")),
		tracer: tracer,
	}
}

// Process discovers the meeting folders under root and processes them.
func (p *Processor) Process(ctx context.Context, root string) (*ProcessResult, error) {
	meetings, err := meeting.ScanMeetings(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ierrors.ErrInputMissing, root)
		}
		return nil, fmt.Errorf("failed to discover meetings: %w", err)
	}
	return p.run(ctx, root, meetings)
}

// ProcessMeeting processes a single meeting folder as its own job.
func (p *Processor) ProcessMeeting(ctx context.Context, m *meeting.Meeting) (*ProcessResult, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: meeting is nil", ierrors.ErrValidation)
	}
	return p.run(ctx, m.Dir, []*meeting.Meeting{m})
}

// Progress returns the tracker of the most recent run.
func (p *Processor) Progress() *Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

func (p *Processor) run(ctx context.Context, root string, meetings []*meeting.Meeting) (*ProcessResult, error) {
	total := countDocuments(meetings)
	jobID := uuid.New().String()

	result := &ProcessResult{
		JobID:          jobID,
		Root:           root,
		Meetings:       len(meetings),
		TotalDocuments: total,
		StartedAt:      time.Now(),
		Errors:         []FileError{},
		Outputs:        []string{},
	}
	ctx = logging.WithJobID(ctx, jobID)
	log := p.logger.WithContext(ctx)

	ctx, span := p.tracer.StartBatch(ctx, jobID, root)
	defer span.End()

	progress := NewProgress(total)
	progress.SetOnUpdate(p.cfg.OnProgress)
	p.mu.Lock()
	p.progress = progress
	p.mu.Unlock()

	if total == 0 {
		result.CompletedAt = time.Now()
		result.Success = true
		progress.Complete(true)
		log.Info("No meeting documents found", logging.F("root", root))
		return result, nil
	}

	if p.storing() {
		job := &storage.Job{
			ID:             jobID,
			Root:           root,
			Status:         storage.JobStatusInProgress,
			TotalDocuments: total,
			Options: map[string]interface{}{
				"split":       p.cfg.Split,
				"force":       p.cfg.Force,
				"concurrency": p.cfg.Concurrency,
			},
		}
		if err := p.deps.Store.CreateJob(ctx, job); err != nil {
			log.Warn("Failed to create job record", logging.Err(err))
		}
	}

	log.Info("Batch started",
		logging.F("root", root),
		logging.F("meetings", len(meetings)),
		logging.F("documents", total),
		logging.F("dry_run", p.cfg.DryRun))
	progress.Start()

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for _, m := range meetings {
		g.Go(func() error {
			p.processMeeting(ctx, jobID, m, result)
			return nil
		})
	}
	_ = g.Wait()

	result.CompletedAt = time.Now()
	result.Cancelled = ctx.Err() != nil
	result.Success = result.FailedCount == 0 && !result.Cancelled
	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Path < result.Errors[j].Path })
	sort.Strings(result.Outputs)

	status := storage.JobStatusCompleted
	switch {
	case result.Cancelled:
		status = storage.JobStatusCancelled
		progress.Cancel()
	case result.FailedCount > 0:
		status = storage.JobStatusCompletedErrors
		progress.Complete(false)
	default:
		progress.Complete(true)
	}

	// Bookkeeping still runs after cancellation.
	final := context.WithoutCancel(ctx)
	if p.storing() {
		if err := p.deps.Store.CompleteJob(final, jobID, status, countsOf(result)); err != nil {
			log.Warn("Failed to update job status", logging.Err(err))
		}
	}
	if p.publishing() {
		if err := p.deps.Publisher.PublishBatchCompleted(final, events.BatchCompletedParams{
			JobID:          jobID,
			Root:           root,
			Meetings:       result.Meetings,
			TotalDocuments: result.TotalDocuments,
			ParsedCount:    result.ParsedCount,
			SkippedCount:   result.SkippedCount,
			FailedCount:    result.FailedCount,
			StartedAt:      result.StartedAt,
			CompletedAt:    result.CompletedAt,
			Success:        result.Success,
			FinalStatus:    string(status),
		}); err != nil {
			log.Warn("Failed to publish completion event", logging.Err(err))
		}
	}

	log.Info("Batch finished",
		logging.F("status", string(status)),
		logging.F("parsed", result.ParsedCount),
		logging.F("skipped", result.SkippedCount),
		logging.F("failed", result.FailedCount))
	return result, nil
}

func (p *Processor) storing() bool    { return p.deps.Store != nil && !p.cfg.DryRun }
func (p *Processor) publishing() bool { return p.deps.Publisher != nil && !p.cfg.DryRun }

func countDocuments(meetings []*meeting.Meeting) int {
	n := 0
	for _, m := range meetings {
		if m.Files.AgendaPath != "" {
			n++
		}
		if m.Files.MinutesPath != "" {
			n++
		}
	}
	return n
}

func countsOf(r *ProcessResult) storage.JobCounts {
	return storage.JobCounts{
		Processed: r.ParsedCount + r.SkippedCount + r.FailedCount,
		Parsed:    r.ParsedCount,
		Skipped:   r.SkippedCount,
		Failed:    r.FailedCount,
	}
}

type outcome struct {
	status  string
	outputs []string
	err     *ierrors.StageError
}

var outcomeSkipped = outcome{status: observability.StatusSkipped}

func failed(err *ierrors.StageError, outputs ...string) outcome {
	return outcome{status: observability.StatusFailed, err: err, outputs: outputs}
}

// processMeeting handles the agenda (and packet) before the minutes.
func (p *Processor) processMeeting(ctx context.Context, jobID string, m *meeting.Meeting, result *ProcessResult) {
	p.deps.Metrics.MeetingStarted()
	defer p.deps.Metrics.MeetingDone()

	ctx = logging.WithMeeting(ctx, m.Key)
	ctx, span := p.tracer.StartMeeting(ctx, m.Key)
	defer span.End()

	if path := m.Files.AgendaPath; path != "" {
		o := outcomeSkipped
		if ctx.Err() == nil {
			p.progress.SetCurrentFile(path)
			o = p.processAgenda(ctx, jobID, m)
		}
		p.recordOutcome(ctx, jobID, path, o, result)
	}
	if path := m.Files.MinutesPath; path != "" {
		o := outcomeSkipped
		if ctx.Err() == nil {
			p.progress.SetCurrentFile(path)
			o = p.processMinutes(ctx, jobID, m)
		}
		p.recordOutcome(ctx, jobID, path, o, result)
	}
}

func (p *Processor) processAgenda(ctx context.Context, jobID string, m *meeting.Meeting) outcome {
	src := m.Files.AgendaPath
	out := filepath.Join(m.Dir, AgendaOutput)
	log := p.logger.WithContext(ctx).With(logging.F("file", src))

	if !p.cfg.Force && upToDate(src, out) {
		log.Debug("Agenda output is up to date")
		return outcomeSkipped
	}

	ctx, span := p.tracer.StartDocument(ctx, KindAgenda, src)
	defer span.End()
	sh := observability.NewSpanHelper(span)
	start := time.Now()

	fail := func(se *ierrors.StageError, outputs ...string) outcome {
		sh.SetError(se, string(se.Code), ierrors.IsRetryable(se.Code))
		p.deps.Metrics.RecordDocument(KindAgenda, observability.StatusFailed, time.Since(start).Seconds())
		log.Error("Agenda failed", logging.Err(se), logging.F("stage", se.Stage))
		return failed(se, outputs...)
	}

	doc, err := readDocument(src, textsource.Options{})
	if err != nil {
		return fail(ierrors.ClassifyError(err, ierrors.StageRead))
	}

	a := agenda.ParseDocument(doc, p.cfg.Agenda)
	sh.SetItems(a.ItemCount())
	p.deps.Metrics.RecordItems(KindAgenda, a.ItemCount())

	if p.cfg.DryRun {
		log.Info("Dry run: parsed agenda",
			logging.F("sections", len(a.Sections)),
			logging.F("items", a.ItemCount()))
		p.deps.Metrics.RecordDocument(KindAgenda, observability.StatusParsed, time.Since(start).Seconds())
		sh.SetSuccess()
		return outcome{status: observability.StatusParsed}
	}

	if err := writeJSON(out, a); err != nil {
		return fail(ierrors.NewStageError(ierrors.CodeProcessingError, ierrors.StageWrite, out, err))
	}
	outputs := []string{out}

	var splitFiles *int
	if p.cfg.Split && p.deps.Splitter != nil && m.Files.PacketPath != "" {
		manifest, err := p.splitPacket(ctx, m, a)
		if err != nil {
			return fail(ierrors.ClassifyError(err, ierrors.StageSplit), outputs...)
		}
		splitFiles = &manifest.FilesCreated
		outputs = append(outputs, filepath.Join(m.Dir, SplitDir, split.ManifestName))
		log.Info("Packet split",
			logging.F("files", manifest.FilesCreated),
			logging.F("coverage", manifest.Coverage()),
			logging.F("warnings", len(manifest.Warnings)))
	}

	ref := storage.MeetingRef{Key: m.Key, Info: a.Meeting, SourcePath: src}
	if p.storing() {
		if _, err := p.deps.Store.SaveAgenda(ctx, ref, a); err != nil {
			return fail(ierrors.NewStageError(ierrors.CodeStorageError, ierrors.StageStore, src, err), outputs...)
		}
	}
	if p.publishing() {
		if err := p.deps.Publisher.PublishAgendaParsed(ctx, events.AgendaParams{
			JobID:      jobID,
			MeetingKey: ref.MeetingKey(),
			SourcePath: src,
			Agenda:     a,
			SplitFiles: splitFiles,
		}); err != nil {
			// The agenda is already written and stored.
			log.Warn("Failed to publish agenda event", logging.Err(err))
		}
	}

	p.deps.Metrics.RecordDocument(KindAgenda, observability.StatusParsed, time.Since(start).Seconds())
	sh.SetSuccess()
	log.Debug("Agenda parsed",
		logging.F("sections", len(a.Sections)),
		logging.F("items", a.ItemCount()),
		logging.F("items_with_pages", a.ItemsWithPages()))
	return outcome{status: observability.StatusParsed, outputs: outputs}
}

func (p *Processor) splitPacket(ctx context.Context, m *meeting.Meeting, a *types.Agenda) (*split.Manifest, error) {
	ctx, span := p.tracer.StartSplit(ctx, m.Files.PacketPath)
	defer span.End()

	manifest, err := p.deps.Splitter.Split(ctx, m.Files.PacketPath, a, filepath.Join(m.Dir, SplitDir))
	if err != nil {
		return nil, err
	}
	p.deps.Metrics.RecordSplit(manifest.TotalPagesSplit, len(manifest.Warnings))
	return manifest, nil
}

func (p *Processor) processMinutes(ctx context.Context, jobID string, m *meeting.Meeting) outcome {
	src := m.Files.MinutesPath
	out := filepath.Join(m.Dir, MinutesOutput)
	log := p.logger.WithContext(ctx).With(logging.F("file", src))

	if !p.cfg.Force && upToDate(src, out) {
		log.Debug("Minutes output is up to date")
		return outcomeSkipped
	}

	ctx, span := p.tracer.StartDocument(ctx, KindMinutes, src)
	defer span.End()
	sh := observability.NewSpanHelper(span)
	start := time.Now()

	fail := func(se *ierrors.StageError, outputs ...string) outcome {
		sh.SetError(se, string(se.Code), ierrors.IsRetryable(se.Code))
		p.deps.Metrics.RecordDocument(KindMinutes, observability.StatusFailed, time.Since(start).Seconds())
		log.Error("Minutes failed", logging.Err(se), logging.F("stage", se.Stage))
		return failed(se, outputs...)
	}

	maxPages := p.cfg.Minutes.MaxPages
	if maxPages <= 0 {
		maxPages = minutes.DefaultMaxPages
	}
	doc, err := readDocument(src, textsource.Options{MaxPages: maxPages})
	if err != nil {
		return fail(ierrors.ClassifyError(err, ierrors.StageRead))
	}

	mins := minutes.ParseDocument(doc, p.cfg.Minutes)
	sh.SetItems(len(mins.Items))
	p.deps.Metrics.RecordItems(KindMinutes, len(mins.Items))
	p.deps.Metrics.RecordResults(mins.ResultCounts())

	if p.cfg.DryRun {
		log.Info("Dry run: parsed minutes",
			logging.F("items", len(mins.Items)),
			logging.F("voted", mins.Voted()))
		p.deps.Metrics.RecordDocument(KindMinutes, observability.StatusParsed, time.Since(start).Seconds())
		sh.SetSuccess()
		return outcome{status: observability.StatusParsed}
	}

	if err := writeJSON(out, mins); err != nil {
		return fail(ierrors.NewStageError(ierrors.CodeProcessingError, ierrors.StageWrite, out, err))
	}

	ref := storage.MeetingRef{Key: m.Key, Info: mins.Meeting, SourcePath: src}
	if p.storing() {
		if _, err := p.deps.Store.SaveMinutes(ctx, ref, mins); err != nil {
			return fail(ierrors.NewStageError(ierrors.CodeStorageError, ierrors.StageStore, src, err), out)
		}
	}
	if p.publishing() {
		if err := p.deps.Publisher.PublishMinutesParsed(ctx, events.MinutesParams{
			JobID:      jobID,
			MeetingKey: ref.MeetingKey(),
			SourcePath: src,
			Minutes:    mins,
		}); err != nil {
			log.Warn("Failed to publish minutes event", logging.Err(err))
		}
	}

	p.deps.Metrics.RecordDocument(KindMinutes, observability.StatusParsed, time.Since(start).Seconds())
	sh.SetSuccess()
	log.Debug("Minutes parsed",
		logging.F("items", len(mins.Items)),
		logging.F("voted", mins.Voted()),
		logging.F("members", len(mins.CouncilMembers)))
	return outcome{status: observability.StatusParsed, outputs: []string{out}}
}

// readDocument opens path and rejects documents without any text.
func readDocument(path string, opts textsource.Options) (*textsource.Document, error) {
	doc, err := textsource.Open(path, opts)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Text()) == "" {
		return nil, ierrors.NewStageError(ierrors.CodeEmptyContent, ierrors.StageRead, path, errors.New("no text extracted"))
	}
	return doc, nil
}

// upToDate reports whether out exists and is not older than src.
func upToDate(src, out string) bool {
	si, err := os.Stat(src)
	if err != nil {
		return false
	}
	oi, err := os.Stat(out)
	if err != nil {
		return false
	}
	return !oi.ModTime().Before(si.ModTime())
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// recordOutcome updates counts, progress and the job record.
func (p *Processor) recordOutcome(ctx context.Context, jobID, path string, o outcome, result *ProcessResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result.Outputs = append(result.Outputs, o.outputs...)

	switch o.status {
	case observability.StatusParsed:
		result.ParsedCount++
		p.progress.RecordParsed()

	case observability.StatusSkipped:
		result.SkippedCount++
		p.progress.RecordSkipped()

	case observability.StatusFailed:
		se := o.err
		if se.Path == "" {
			se.Path = path
		}
		result.FailedCount++
		result.Errors = append(result.Errors, FileError{
			Path:    path,
			Stage:   se.Stage,
			Code:    se.Code,
			Message: se.Message,
		})
		p.progress.RecordFailed()

		if p.storing() {
			if err := p.deps.Store.RecordError(context.WithoutCancel(ctx), jobID, se); err != nil {
				p.logger.Warn("Failed to record error", logging.Err(err))
			}
		}
	}

	if p.storing() {
		if err := p.deps.Store.UpdateJobProgress(context.WithoutCancel(ctx), jobID, countsOf(result)); err != nil {
			p.logger.Warn("Failed to update job progress", logging.Err(err))
		}
	}
	if p.publishing() && ctx.Err() == nil {
		snap := p.progress.Snapshot()
		current := path
		if err := p.deps.Publisher.PublishBatchProgress(ctx, events.BatchProgressParams{
			JobID:                     jobID,
			TotalDocuments:            snap.TotalDocuments,
			ProcessedCount:            snap.ProcessedCount,
			ParsedCount:               snap.ParsedCount,
			SkippedCount:              snap.SkippedCount,
			FailedCount:               snap.FailedCount,
			CurrentFile:               &current,
			ElapsedSeconds:            snap.ElapsedSeconds,
			EstimatedRemainingSeconds: snap.EstimatedRemainingSeconds,
			Status:                    snap.Status,
		}); err != nil {
			p.logger.Warn("Failed to publish progress", logging.Err(err))
		}
	}
}
