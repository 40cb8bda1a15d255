package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	ierrors "github.com/otherjamesbrown/council-records/pkg/errors"
	"github.com/otherjamesbrown/council-records/pkg/ingest/events"
	"github.com/otherjamesbrown/council-records/pkg/ingest/meeting"
	"github.com/otherjamesbrown/council-records/pkg/ingest/split"
	"github.com/otherjamesbrown/council-records/pkg/ingest/storage"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const agendaText = "Regular Meeting\nWednesday, February 11, 2026\n\f" +
	"3. ORDINANCES (FIRST READING)\n10 - 13 3.1 An Ordinance amending the zoning map\nOrd. 26-006\n"

const minutesText = "Regular Meeting\nWednesday, February 11, 2026\n" +
	"Daniel Rivera, Councilperson-at-Large\n" +
	"Frank E. Gilmore, Councilperson, Ward F\n\f" +
	"10. RESOLUTIONS\n10.1 A Resolution honoring a retiree\nApproved 2-0\n"

type fakeStore struct {
	mu        sync.Mutex
	agendas   []storage.MeetingRef
	minutes   []storage.MeetingRef
	jobs      []*storage.Job
	completed []storage.JobStatus
	errs      []*ierrors.StageError
	updates   int
	saveErr   error
}

func (f *fakeStore) SaveAgenda(_ context.Context, ref storage.MeetingRef, _ *types.Agenda) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.agendas = append(f.agendas, ref)
	return int64(len(f.agendas)), nil
}

func (f *fakeStore) SaveMinutes(_ context.Context, ref storage.MeetingRef, _ *types.Minutes) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.minutes = append(f.minutes, ref)
	return int64(len(f.minutes)), nil
}

func (f *fakeStore) CreateJob(_ context.Context, job *storage.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeStore) UpdateJobProgress(context.Context, string, storage.JobCounts) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return nil
}

func (f *fakeStore) CompleteJob(_ context.Context, _ string, status storage.JobStatus, _ storage.JobCounts) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, status)
	return nil
}

func (f *fakeStore) RecordError(_ context.Context, _ string, se *ierrors.StageError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, se)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	agendas   []events.AgendaParams
	minutes   []events.MinutesParams
	progress  int
	completed []events.BatchCompletedParams
}

func (f *fakePublisher) PublishAgendaParsed(_ context.Context, p events.AgendaParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agendas = append(f.agendas, p)
	return nil
}

func (f *fakePublisher) PublishMinutesParsed(_ context.Context, p events.MinutesParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minutes = append(f.minutes, p)
	return nil
}

func (f *fakePublisher) PublishBatchProgress(context.Context, events.BatchProgressParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress++
	return nil
}

func (f *fakePublisher) PublishBatchCompleted(_ context.Context, p events.BatchCompletedParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, p)
	return nil
}

type fakeSplitter struct {
	mu     sync.Mutex
	calls  []string
	outDir string
	err    error
}

func (f *fakeSplitter) Split(_ context.Context, packet string, a *types.Agenda, outDir string) (*split.Manifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, packet)
	f.outDir = outDir
	if f.err != nil {
		return nil, f.err
	}
	return &split.Manifest{Meeting: a.Meeting, PacketPages: 13, FilesCreated: 2, TotalPagesSplit: 13}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newRoot lays out two meetings: 2026/02-11 with an agenda and minutes, and
// 2026/03-04 with an agenda only.
func newRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2026", "02-11", "agenda.txt"), agendaText)
	writeFile(t, filepath.Join(root, "2026", "02-11", "minutes.txt"), minutesText)
	writeFile(t, filepath.Join(root, "2026", "03-04", "agenda.txt"), agendaText)
	return root
}

func TestProcess_ParsesEveryDocument(t *testing.T) {
	root := newRoot(t)
	store := &fakeStore{}
	pub := &fakePublisher{}

	p := NewProcessor(Config{Concurrency: 2}, Deps{Store: store, Publisher: pub})
	result, err := p.Process(context.Background(), root)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Meetings)
	assert.Equal(t, 3, result.TotalDocuments)
	assert.Equal(t, 3, result.ParsedCount)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.JobID)

	assert.FileExists(t, filepath.Join(root, "2026", "02-11", AgendaOutput))
	assert.FileExists(t, filepath.Join(root, "2026", "02-11", MinutesOutput))
	assert.FileExists(t, filepath.Join(root, "2026", "03-04", AgendaOutput))
	assert.Len(t, result.Outputs, 3)

	assert.Len(t, store.agendas, 2)
	require.Len(t, store.minutes, 1)
	assert.Equal(t, "2026-02-11", store.minutes[0].Key)
	require.Len(t, store.jobs, 1)
	assert.Equal(t, 3, store.jobs[0].TotalDocuments)
	assert.Equal(t, []storage.JobStatus{storage.JobStatusCompleted}, store.completed)
	assert.Equal(t, 3, store.updates)

	assert.Len(t, pub.agendas, 2)
	require.Len(t, pub.minutes, 1)
	assert.Equal(t, 1, pub.minutes[0].Minutes.Voted())
	assert.Equal(t, 3, pub.progress)
	require.Len(t, pub.completed, 1)
	assert.Equal(t, string(storage.JobStatusCompleted), pub.completed[0].FinalStatus)

	snap := p.Progress().Snapshot()
	assert.True(t, snap.IsSuccess())
	assert.Equal(t, 100.0, snap.PercentComplete())
}

func TestProcess_SkipsUpToDateOutputs(t *testing.T) {
	root := newRoot(t)
	p := NewProcessor(Config{}, Deps{})

	_, err := p.Process(context.Background(), root)
	require.NoError(t, err)

	second, err := p.Process(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ParsedCount)
	assert.Equal(t, 3, second.SkippedCount)
	assert.True(t, second.Success)

	forced, err := NewProcessor(Config{Force: true}, Deps{}).Process(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, forced.ParsedCount)
}

func TestProcess_EmptyDocumentFailsAlone(t *testing.T) {
	root := newRoot(t)
	writeFile(t, filepath.Join(root, "2026", "02-11", "minutes.txt"), "   \n")
	store := &fakeStore{}

	result, err := NewProcessor(Config{}, Deps{Store: store}).Process(context.Background(), root)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.ParsedCount)
	assert.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ierrors.CodeEmptyContent, result.Errors[0].Code)
	assert.Equal(t, ierrors.StageRead, result.Errors[0].Stage)

	require.Len(t, store.errs, 1)
	assert.Equal(t, filepath.Join(root, "2026", "02-11", "minutes.txt"), store.errs[0].Path)
	assert.Equal(t, []storage.JobStatus{storage.JobStatusCompletedErrors}, store.completed)
}

func TestProcess_StoreFailure(t *testing.T) {
	root := newRoot(t)
	store := &fakeStore{saveErr: errors.New("connection refused")}

	result, err := NewProcessor(Config{Concurrency: 1}, Deps{Store: store}).Process(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 3, result.FailedCount)
	for _, e := range result.Errors {
		assert.Equal(t, ierrors.CodeStorageError, e.Code)
		assert.Equal(t, ierrors.StageStore, e.Stage)
	}
	// The JSON output is still written before the store fails.
	assert.Len(t, result.Outputs, 3)
}

func TestProcess_DryRun(t *testing.T) {
	root := newRoot(t)
	store := &fakeStore{}
	pub := &fakePublisher{}

	result, err := NewProcessor(Config{DryRun: true}, Deps{Store: store, Publisher: pub}).Process(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 3, result.ParsedCount)
	assert.Empty(t, result.Outputs)
	assert.NoFileExists(t, filepath.Join(root, "2026", "02-11", AgendaOutput))
	assert.Empty(t, store.jobs)
	assert.Empty(t, store.agendas)
	assert.Empty(t, pub.completed)
}

func TestProcess_SplitsPacket(t *testing.T) {
	root := newRoot(t)
	dir := filepath.Join(root, "2026", "02-11")
	writeFile(t, filepath.Join(dir, "packet.pdf"), "%PDF-1.4\n")
	splitter := &fakeSplitter{}
	pub := &fakePublisher{}

	result, err := NewProcessor(Config{Split: true}, Deps{Splitter: splitter, Publisher: pub}).Process(context.Background(), root)
	require.NoError(t, err)
	assert.True(t, result.Success)

	assert.Equal(t, []string{filepath.Join(dir, "packet.pdf")}, splitter.calls)
	assert.Equal(t, filepath.Join(dir, SplitDir), splitter.outDir)
	assert.Contains(t, result.Outputs, filepath.Join(dir, SplitDir, split.ManifestName))

	var withSplit int
	for _, a := range pub.agendas {
		if a.SplitFiles != nil {
			withSplit++
			assert.Equal(t, 2, *a.SplitFiles)
		}
	}
	assert.Equal(t, 1, withSplit)
}

func TestProcess_SplitFailure(t *testing.T) {
	root := newRoot(t)
	dir := filepath.Join(root, "2026", "02-11")
	writeFile(t, filepath.Join(dir, "packet.pdf"), "%PDF-1.4\n")
	splitter := &fakeSplitter{err: ierrors.ErrUnreadable}

	result, err := NewProcessor(Config{Split: true}, Deps{Splitter: splitter}).Process(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, ierrors.CodeUnreadable, result.Errors[0].Code)
	assert.Equal(t, ierrors.StageSplit, result.Errors[0].Stage)
	assert.Equal(t, 2, result.ParsedCount)
}

func TestProcess_CancelledContext(t *testing.T) {
	root := newRoot(t)
	store := &fakeStore{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewProcessor(Config{}, Deps{Store: store}).Process(ctx, root)
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.SkippedCount)
	assert.Equal(t, []storage.JobStatus{storage.JobStatusCancelled}, store.completed)
}

func TestProcess_MissingRoot(t *testing.T) {
	_, err := NewProcessor(Config{}, Deps{}).Process(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ierrors.ErrInputMissing)
}

func TestProcess_NoDocuments(t *testing.T) {
	store := &fakeStore{}
	result, err := NewProcessor(Config{}, Deps{Store: store}).Process(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.TotalDocuments)
	assert.Empty(t, store.jobs)
}

func TestProcessMeeting(t *testing.T) {
	root := newRoot(t)
	m, err := meeting.ScanMeetingDir(root, filepath.Join(root, "2026", "02-11"))
	require.NoError(t, err)

	var snaps []ProgressSnapshot
	p := NewProcessor(Config{OnProgress: func(s ProgressSnapshot) { snaps = append(snaps, s) }}, Deps{})
	result, err := p.ProcessMeeting(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Meetings)
	assert.Equal(t, 2, result.ParsedCount)
	require.NotEmpty(t, snaps)
	assert.Equal(t, StatusCompleted, snaps[len(snaps)-1].Status)

	_, err = p.ProcessMeeting(context.Background(), nil)
	assert.ErrorIs(t, err, ierrors.ErrValidation)
}

func TestUpToDate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "agenda.txt")
	out := filepath.Join(dir, AgendaOutput)
	writeFile(t, src, "x")

	assert.False(t, upToDate(src, out))
	writeFile(t, out, "{}")
	assert.True(t, upToDate(src, out))
	assert.False(t, upToDate(filepath.Join(dir, "missing.txt"), out))
}
