// Package storage persists parsed council documents and batch jobs in PostgreSQL.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	ierrors "github.com/otherjamesbrown/council-records/pkg/errors"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
	"github.com/otherjamesbrown/council-records/pkg/logging"
)

// JobStatus represents the state of a batch job.
type JobStatus string

const (
	JobStatusInProgress      JobStatus = "in_progress"
	JobStatusCompleted       JobStatus = "completed"
	JobStatusCompletedErrors JobStatus = "completed_with_errors"
	JobStatusCancelled       JobStatus = "cancelled"
)

// Vote values stored per member.
const (
	VoteAye          = "aye"
	VoteNay          = "nay"
	VoteAbstain      = "abstain"
	VoteAbsent       = "absent"
	VoteUnrecognized = "unrecognized"
)

// DB is the subset of pgxpool.Pool used by the repository.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// MeetingRef identifies the meeting a document belongs to.
type MeetingRef struct {
	// Key is the meeting's stable key, usually its directory ("2026/02-11").
	// When empty the key is derived from the meeting type and date.
	Key        string
	Info       types.MeetingInfo
	SourcePath string
}

// MeetingKey returns the key used to upsert the meeting row.
func (r MeetingRef) MeetingKey() string {
	if r.Key != "" {
		return r.Key
	}
	date := "undated"
	if r.Info.Date != nil {
		date = *r.Info.Date
	}
	return r.Info.Type + ":" + date
}

// Job tracks a batch run.
type Job struct {
	ID             string
	Root           string
	Status         JobStatus
	TotalDocuments int
	Options        map[string]interface{}
}

// JobCounts are the per-outcome document counts of a job.
type JobCounts struct {
	Processed int
	Parsed    int
	Skipped   int
	Failed    int
}

// Repository provides database operations for parsed documents.
type Repository struct {
	db     DB
	logger logging.Logger
}

// NewRepository creates a new repository.
func NewRepository(db DB, logger logging.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logging.OrNop(logger).With(logging.F("component", "council_repository")),
	}
}

// SaveAgenda stores an agenda in one transaction. The meeting row is upserted
// and any sections and items previously stored for it are replaced.
func (r *Repository) SaveAgenda(ctx context.Context, ref MeetingRef, a *types.Agenda) (int64, error) {
	var meetingID int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		if meetingID, err = upsertMeeting(ctx, tx, ref); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM agenda_sections WHERE meeting_id = $1`, meetingID); err != nil {
			return fmt.Errorf("failed to clear agenda sections: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO agenda_documents (meeting_id, source_path, agenda_pages, parsed_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (meeting_id) DO UPDATE
			SET source_path = EXCLUDED.source_path, agenda_pages = EXCLUDED.agenda_pages, parsed_at = NOW()
		`, meetingID, ref.SourcePath, a.AgendaPages)
		if err != nil {
			return fmt.Errorf("failed to store agenda document: %w", err)
		}

		position := 0
		for _, s := range a.Sections {
			var sectionID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO agenda_sections (meeting_id, number, title, category)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, meetingID, s.Number, s.Title, string(s.Category)).Scan(&sectionID)
			if err != nil {
				return fmt.Errorf("failed to store section %d: %w", s.Number, err)
			}

			for _, it := range s.Items {
				position++
				_, err := tx.Exec(ctx, `
					INSERT INTO agenda_items (
						section_id, meeting_id, item_number, title,
						page_start, page_end, file_number, item_type, position
					) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				`, sectionID, meetingID, it.ItemNumber, it.Title,
					it.PageStart, it.PageEnd, it.FileNumber, string(it.ItemType), position)
				if err != nil {
					return fmt.Errorf("failed to store item %s: %w", it.ItemNumber, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Debug("Agenda stored",
		logging.F("meeting_id", meetingID),
		logging.F("meeting_key", ref.MeetingKey()),
		logging.F("items", a.ItemCount()))
	return meetingID, nil
}

// SaveMinutes stores minutes in one transaction, replacing any items and
// votes previously stored for the meeting.
func (r *Repository) SaveMinutes(ctx context.Context, ref MeetingRef, m *types.Minutes) (int64, error) {
	var meetingID int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		if meetingID, err = upsertMeeting(ctx, tx, ref); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM minutes_items WHERE meeting_id = $1`, meetingID); err != nil {
			return fmt.Errorf("failed to clear minutes items: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO minutes_documents (meeting_id, source_path, council_members, initial_absences, parsed_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (meeting_id) DO UPDATE
			SET source_path = EXCLUDED.source_path,
			    council_members = EXCLUDED.council_members,
			    initial_absences = EXCLUDED.initial_absences,
			    parsed_at = NOW()
		`, meetingID, ref.SourcePath, m.CouncilMembers, m.InitialAbsences)
		if err != nil {
			return fmt.Errorf("failed to store minutes document: %w", err)
		}

		var votes [][]any
		for i, it := range m.Items {
			var result *string
			if it.Result != nil {
				s := string(*it.Result)
				result = &s
			}
			var detail *string
			if it.VoteDetail != "" {
				detail = &it.VoteDetail
			}

			var itemID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO minutes_items (
					meeting_id, item_number, title, file_number,
					result, vote_tally, vote_detail, position
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING id
			`, meetingID, it.ItemNumber, it.Title, it.FileNumber,
				result, it.VoteTally, detail, i+1).Scan(&itemID)
			if err != nil {
				return fmt.Errorf("failed to store item %s: %w", it.ItemNumber, err)
			}
			votes = append(votes, VoteRows(itemID, it.Votes)...)
		}

		if len(votes) == 0 {
			return nil
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"minutes_votes"},
			[]string{"item_id", "member", "vote"},
			pgx.CopyFromRows(votes))
		if err != nil {
			return fmt.Errorf("failed to store votes: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Debug("Minutes stored",
		logging.F("meeting_id", meetingID),
		logging.F("meeting_key", ref.MeetingKey()),
		logging.F("items", len(m.Items)))
	return meetingID, nil
}

// VoteRows flattens a breakdown into (item_id, member, vote) rows.
func VoteRows(itemID int64, v *types.VoteBreakdown) [][]any {
	if v == nil {
		return nil
	}
	var rows [][]any
	add := func(members []string, vote string) {
		for _, m := range members {
			rows = append(rows, []any{itemID, m, vote})
		}
	}
	add(v.Aye, VoteAye)
	add(v.Nay, VoteNay)
	add(v.Abstain, VoteAbstain)
	add(v.Absent, VoteAbsent)
	add(v.Unrecognized, VoteUnrecognized)
	return rows
}

func upsertMeeting(ctx context.Context, tx pgx.Tx, ref MeetingRef) (int64, error) {
	var date *time.Time
	if ref.Info.Date != nil {
		if d, err := time.Parse("2006-01-02", *ref.Info.Date); err == nil {
			date = &d
		}
	}

	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO meetings (meeting_key, meeting_type, meeting_date, raw_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (meeting_key) DO UPDATE
		SET meeting_type = EXCLUDED.meeting_type,
		    meeting_date = EXCLUDED.meeting_date,
		    raw_date = EXCLUDED.raw_date,
		    updated_at = NOW()
		RETURNING id
	`, ref.MeetingKey(), ref.Info.Type, date, ref.Info.Date).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert meeting %s: %w", ref.MeetingKey(), err)
	}
	return id, nil
}

func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// CreateJob records the start of a batch.
func (r *Repository) CreateJob(ctx context.Context, job *Job) error {
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO batch_jobs (id, root, status, total_documents, options, started_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW(), NOW())
	`, job.ID, job.Root, job.Status, job.TotalDocuments, optionsJSON)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	r.logger.Debug("Batch job created", logging.F("job_id", job.ID))
	return nil
}

// UpdateJobProgress updates the document counts of a running job.
func (r *Repository) UpdateJobProgress(ctx context.Context, jobID string, c JobCounts) error {
	result, err := r.db.Exec(ctx, `
		UPDATE batch_jobs
		SET processed_count = $2, parsed_count = $3, skipped_count = $4, failed_count = $5, updated_at = NOW()
		WHERE id = $1
	`, jobID, c.Processed, c.Parsed, c.Skipped, c.Failed)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, ierrors.ErrNotFound)
	}
	return nil
}

// CompleteJob marks a job finished with its final counts.
func (r *Repository) CompleteJob(ctx context.Context, jobID string, status JobStatus, c JobCounts) error {
	result, err := r.db.Exec(ctx, `
		UPDATE batch_jobs
		SET status = $2, processed_count = $3, parsed_count = $4, skipped_count = $5, failed_count = $6,
		    completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, jobID, status, c.Processed, c.Parsed, c.Skipped, c.Failed)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, ierrors.ErrNotFound)
	}

	r.logger.Debug("Job completed",
		logging.F("job_id", jobID),
		logging.F("status", string(status)))
	return nil
}

// RecordError records a document failure for a job.
func (r *Repository) RecordError(ctx context.Context, jobID string, se *ierrors.StageError) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO batch_errors (job_id, file_path, stage, code, message, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, jobID, se.Path, se.Stage, string(se.Code), se.Error())
	if err != nil {
		return fmt.Errorf("failed to record error: %w", err)
	}
	return nil
}

// JobStatusOf returns the stored status of a job.
func (r *Repository) JobStatusOf(ctx context.Context, jobID string) (JobStatus, error) {
	var status JobStatus
	err := r.db.QueryRow(ctx, `SELECT status FROM batch_jobs WHERE id = $1`, jobID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("job %s: %w", jobID, ierrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get job: %w", err)
	}
	return status, nil
}
