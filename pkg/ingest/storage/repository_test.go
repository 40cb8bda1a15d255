package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/otherjamesbrown/council-records/pkg/errors"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
)

// recorder captures statements issued through the fake pool and transaction.
type recorder struct {
	statements []string
	copied     [][]any
	nextID     int64
	failOn     string
	committed  bool
	rolledBack bool
	tag        string
}

func (r *recorder) record(sql string) error {
	stmt := strings.Join(strings.Fields(sql), " ")
	r.statements = append(r.statements, stmt)
	if r.failOn != "" && strings.Contains(stmt, r.failOn) {
		return errors.New("boom")
	}
	return nil
}

type fakeRow struct {
	r   *recorder
	err error
}

func (f fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	f.r.nextID++
	switch d := dest[0].(type) {
	case *int64:
		*d = f.r.nextID
	case *JobStatus:
		*d = JobStatusCompleted
	}
	return nil
}

type fakeTx struct {
	pgx.Tx
	r *recorder
}

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 1"), t.r.record(sql)
}

func (t *fakeTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	return fakeRow{r: t.r, err: t.r.record(sql)}
}

func (t *fakeTx) CopyFrom(_ context.Context, table pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	var n int64
	for src.Next() {
		vals, _ := src.Values()
		t.r.copied = append(t.r.copied, vals)
		n++
	}
	return n, t.r.record("COPY " + table.Sanitize())
}

func (t *fakeTx) Commit(context.Context) error {
	t.r.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.r.committed {
		t.r.rolledBack = true
	}
	return nil
}

type fakeDB struct{ r *recorder }

func (d fakeDB) Begin(context.Context) (pgx.Tx, error) { return &fakeTx{r: d.r}, nil }

func (d fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	tag := d.r.tag
	if tag == "" {
		tag = "UPDATE 1"
	}
	return pgconn.NewCommandTag(tag), d.r.record(sql)
}

func (d fakeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	return fakeRow{r: d.r, err: d.r.record(sql)}
}

func newTestRepo() (*Repository, *recorder) {
	r := &recorder{}
	return NewRepository(fakeDB{r: r}, nil), r
}

func intp(v int) *int { return &v }

func countPrefix(stmts []string, prefix string) int {
	n := 0
	for _, s := range stmts {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

func TestSaveAgenda(t *testing.T) {
	repo, rec := newTestRepo()
	date := "2026-02-11"
	agenda := &types.Agenda{
		Meeting:     types.MeetingInfo{Type: types.MeetingRegular, Date: &date},
		AgendaPages: 9,
		Sections: []types.Section{
			{Number: 3, Title: "ORDINANCES", Items: []types.AgendaItem{
				{ItemNumber: "3.1", PageStart: intp(10), PageEnd: intp(13)},
				{ItemNumber: "3.2"},
			}},
			{Number: 10, Title: "RESOLUTIONS", Items: []types.AgendaItem{{ItemNumber: "10.1"}}},
		},
	}

	id, err := repo.SaveAgenda(context.Background(), MeetingRef{Key: "2026/02-11", Info: agenda.Meeting}, agenda)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.True(t, rec.committed)
	assert.False(t, rec.rolledBack)

	assert.Equal(t, 1, countPrefix(rec.statements, "INSERT INTO meetings"))
	assert.Equal(t, 1, countPrefix(rec.statements, "DELETE FROM agenda_sections"))
	assert.Equal(t, 2, countPrefix(rec.statements, "INSERT INTO agenda_sections"))
	assert.Equal(t, 3, countPrefix(rec.statements, "INSERT INTO agenda_items"))
}

func TestSaveAgenda_RollsBackOnError(t *testing.T) {
	repo, rec := newTestRepo()
	rec.failOn = "INSERT INTO agenda_items"
	agenda := &types.Agenda{Sections: []types.Section{{Number: 3, Items: []types.AgendaItem{{ItemNumber: "3.1"}}}}}

	_, err := repo.SaveAgenda(context.Background(), MeetingRef{Key: "k"}, agenda)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 3.1")
	assert.False(t, rec.committed)
	assert.True(t, rec.rolledBack)
}

func TestSaveMinutes(t *testing.T) {
	repo, rec := newTestRepo()
	approved := types.ResultApproved
	tally := "8-1"
	minutes := &types.Minutes{
		CouncilMembers: []string{"Ridley", "Lavarro"},
		Items: []types.MinutesItem{
			{ItemNumber: "10.1", Result: &approved, VoteTally: &tally, Votes: &types.VoteBreakdown{
				Aye: []string{"Ridley"}, Nay: []string{"Lavarro"}, Abstain: []string{}, Absent: []string{},
			}},
			{ItemNumber: "10.2"},
		},
	}

	_, err := repo.SaveMinutes(context.Background(), MeetingRef{Key: "2026/02-11"}, minutes)
	require.NoError(t, err)
	assert.True(t, rec.committed)
	assert.Equal(t, 2, countPrefix(rec.statements, "INSERT INTO minutes_items"))
	assert.Equal(t, 1, countPrefix(rec.statements, "COPY"))
	require.Len(t, rec.copied, 2)
	assert.Equal(t, []any{int64(2), "Ridley", VoteAye}, rec.copied[0])
	assert.Equal(t, []any{int64(2), "Lavarro", VoteNay}, rec.copied[1])
}

func TestSaveMinutes_NoVotesSkipsCopy(t *testing.T) {
	repo, rec := newTestRepo()
	_, err := repo.SaveMinutes(context.Background(), MeetingRef{Key: "k"}, &types.Minutes{Items: []types.MinutesItem{{ItemNumber: "3.1"}}})
	require.NoError(t, err)
	assert.Zero(t, countPrefix(rec.statements, "COPY"))
}

func TestVoteRows(t *testing.T) {
	assert.Nil(t, VoteRows(1, nil))
	rows := VoteRows(7, &types.VoteBreakdown{
		Aye: []string{"A"}, Abstain: []string{"B"}, Absent: []string{"C"}, Unrecognized: []string{"D"},
	})
	assert.Equal(t, [][]any{
		{int64(7), "A", VoteAye},
		{int64(7), "B", VoteAbstain},
		{int64(7), "C", VoteAbsent},
		{int64(7), "D", VoteUnrecognized},
	}, rows)
}

func TestMeetingKey(t *testing.T) {
	date := "2026-02-11"
	assert.Equal(t, "2026/02-11", MeetingRef{Key: "2026/02-11"}.MeetingKey())
	assert.Equal(t, "special:2026-02-11", MeetingRef{Info: types.MeetingInfo{Type: types.MeetingSpecial, Date: &date}}.MeetingKey())
	assert.Equal(t, "regular:undated", MeetingRef{Info: types.MeetingInfo{Type: types.MeetingRegular}}.MeetingKey())
}

func TestCompleteJob_NotFound(t *testing.T) {
	repo, rec := newTestRepo()
	rec.tag = "UPDATE 0"
	err := repo.CompleteJob(context.Background(), "job-1", JobStatusCompleted, JobCounts{})
	assert.True(t, ierrors.IsNotFound(err))
}

func TestJobLifecycle(t *testing.T) {
	repo, rec := newTestRepo()
	ctx := context.Background()

	require.NoError(t, repo.CreateJob(ctx, &Job{ID: "job-1", Root: "/data", Status: JobStatusInProgress, TotalDocuments: 2}))
	require.NoError(t, repo.UpdateJobProgress(ctx, "job-1", JobCounts{Processed: 1, Parsed: 1}))
	se := ierrors.NewStageError(ierrors.CodeUnreadable, ierrors.StageMinutes, "minutes.pdf", errors.New("bad xref"))
	require.NoError(t, repo.RecordError(ctx, "job-1", se))
	require.NoError(t, repo.CompleteJob(ctx, "job-1", JobStatusCompletedErrors, JobCounts{Processed: 2, Parsed: 1, Failed: 1}))

	status, err := repo.JobStatusOf(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, status)

	assert.Equal(t, 1, countPrefix(rec.statements, "INSERT INTO batch_jobs"))
	assert.Equal(t, 1, countPrefix(rec.statements, "INSERT INTO batch_errors"))
	assert.Equal(t, 2, countPrefix(rec.statements, "UPDATE batch_jobs"))
}
