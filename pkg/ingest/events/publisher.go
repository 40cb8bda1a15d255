// Package events publishes council document parse events to Redis.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
	"github.com/otherjamesbrown/council-records/pkg/logging"
)

// Redis channels for parse events.
const (
	ChannelAgendaParsed   = "events.council.agenda_parsed"
	ChannelMinutesParsed  = "events.council.minutes_parsed"
	ChannelBatchProgress  = "events.council.batch_progress"
	ChannelBatchCompleted = "events.council.batch_completed"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	Source        string    `json:"source"`
	Version       string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent with sensible defaults.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "council-records",
		Version:   "1.0",
	}
}

// AgendaParsedEvent is published after an agenda is parsed.
type AgendaParsedEvent struct {
	BaseEvent

	JobID      string            `json:"job_id"`
	MeetingKey string            `json:"meeting_key"`
	Meeting    types.MeetingInfo `json:"meeting"`
	SourcePath string            `json:"source_path"`

	AgendaPages    int `json:"agenda_pages"`
	SectionCount   int `json:"section_count"`
	ItemCount      int `json:"item_count"`
	ItemsWithPages int `json:"items_with_pages"`

	SplitFiles *int `json:"split_files,omitempty"`
}

// MinutesParsedEvent is published after minutes are parsed.
type MinutesParsedEvent struct {
	BaseEvent

	JobID      string            `json:"job_id"`
	MeetingKey string            `json:"meeting_key"`
	Meeting    types.MeetingInfo `json:"meeting"`
	SourcePath string            `json:"source_path"`

	CouncilMembers []string       `json:"council_members"`
	ItemCount      int            `json:"item_count"`
	VotedCount     int            `json:"voted_count"`
	ResultCounts   map[string]int `json:"result_counts"`
}

// BatchProgressEvent is published as documents complete.
type BatchProgressEvent struct {
	BaseEvent

	JobID          string `json:"job_id"`
	TotalDocuments int    `json:"total_documents"`
	ProcessedCount int    `json:"processed_count"`
	ParsedCount    int    `json:"parsed_count"`
	SkippedCount   int    `json:"skipped_count"`
	FailedCount    int    `json:"failed_count"`

	CurrentFile               *string  `json:"current_file,omitempty"`
	ElapsedSeconds            float64  `json:"elapsed_seconds"`
	EstimatedRemainingSeconds *float64 `json:"estimated_remaining_seconds,omitempty"`
	Status                    string   `json:"status"`
}

// BatchCompletedEvent is published when a batch finishes.
type BatchCompletedEvent struct {
	BaseEvent

	JobID string `json:"job_id"`
	Root  string `json:"root"`

	Meetings       int `json:"meetings"`
	TotalDocuments int `json:"total_documents"`
	ParsedCount    int `json:"parsed_count"`
	SkippedCount   int `json:"skipped_count"`
	FailedCount    int `json:"failed_count"`

	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	Success     bool   `json:"success"`
	FinalStatus string `json:"final_status"`
}

// Client is the subset of the Redis client used for publishing.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Publisher publishes parse events to Redis.
type Publisher struct {
	client Client
	logger logging.Logger
}

// PublisherConfig holds Redis connection configuration.
type PublisherConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewPublisher creates a new event publisher.
func NewPublisher(client Client, logger logging.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logging.OrNop(logger).With(logging.F("component", "event_publisher")),
	}
}

// NewPublisherFromConfig creates a publisher with a new Redis connection.
func NewPublisherFromConfig(ctx context.Context, cfg PublisherConfig, logger logging.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	return NewPublisher(client, logger), nil
}

// AgendaParams identifies a parsed agenda.
type AgendaParams struct {
	JobID      string
	MeetingKey string
	SourcePath string
	Agenda     *types.Agenda
	// SplitFiles is the number of files a packet split produced, if one ran.
	SplitFiles *int
}

// PublishAgendaParsed publishes an agenda summary.
func (p *Publisher) PublishAgendaParsed(ctx context.Context, params AgendaParams) error {
	a := params.Agenda
	event := AgendaParsedEvent{
		BaseEvent:      NewBaseEvent("council.agenda_parsed"),
		JobID:          params.JobID,
		MeetingKey:     params.MeetingKey,
		Meeting:        a.Meeting,
		SourcePath:     params.SourcePath,
		AgendaPages:    a.AgendaPages,
		SectionCount:   len(a.Sections),
		ItemCount:      a.ItemCount(),
		ItemsWithPages: a.ItemsWithPages(),
		SplitFiles:     params.SplitFiles,
	}
	return p.publish(ctx, ChannelAgendaParsed, event)
}

// MinutesParams identifies parsed minutes.
type MinutesParams struct {
	JobID      string
	MeetingKey string
	SourcePath string
	Minutes    *types.Minutes
}

// PublishMinutesParsed publishes a minutes summary.
func (p *Publisher) PublishMinutesParsed(ctx context.Context, params MinutesParams) error {
	m := params.Minutes
	event := MinutesParsedEvent{
		BaseEvent:      NewBaseEvent("council.minutes_parsed"),
		JobID:          params.JobID,
		MeetingKey:     params.MeetingKey,
		Meeting:        m.Meeting,
		SourcePath:     params.SourcePath,
		CouncilMembers: m.CouncilMembers,
		ItemCount:      len(m.Items),
		VotedCount:     m.Voted(),
		ResultCounts:   m.ResultCounts(),
	}
	return p.publish(ctx, ChannelMinutesParsed, event)
}

// BatchProgressParams contains parameters for publishing batch progress.
type BatchProgressParams struct {
	JobID                     string
	TotalDocuments            int
	ProcessedCount            int
	ParsedCount               int
	SkippedCount              int
	FailedCount               int
	CurrentFile               *string
	ElapsedSeconds            float64
	EstimatedRemainingSeconds *float64
	Status                    string
}

// PublishBatchProgress publishes a progress update for a batch.
func (p *Publisher) PublishBatchProgress(ctx context.Context, params BatchProgressParams) error {
	event := BatchProgressEvent{
		BaseEvent:                 NewBaseEvent("council.batch_progress"),
		JobID:                     params.JobID,
		TotalDocuments:            params.TotalDocuments,
		ProcessedCount:            params.ProcessedCount,
		ParsedCount:               params.ParsedCount,
		SkippedCount:              params.SkippedCount,
		FailedCount:               params.FailedCount,
		CurrentFile:               params.CurrentFile,
		ElapsedSeconds:            params.ElapsedSeconds,
		EstimatedRemainingSeconds: params.EstimatedRemainingSeconds,
		Status:                    params.Status,
	}
	return p.publish(ctx, ChannelBatchProgress, event)
}

// BatchCompletedParams contains parameters for publishing batch completion.
type BatchCompletedParams struct {
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
	FinalStatus    string
}

// PublishBatchCompleted publishes a completion event for a batch.
func (p *Publisher) PublishBatchCompleted(ctx context.Context, params BatchCompletedParams) error {
	event := BatchCompletedEvent{
		BaseEvent:       NewBaseEvent("council.batch_completed"),
		JobID:           params.JobID,
		Root:            params.Root,
		Meetings:        params.Meetings,
		TotalDocuments:  params.TotalDocuments,
		ParsedCount:     params.ParsedCount,
		SkippedCount:    params.SkippedCount,
		FailedCount:     params.FailedCount,
		StartedAt:       params.StartedAt,
		CompletedAt:     params.CompletedAt,
		DurationSeconds: params.CompletedAt.Sub(params.StartedAt).Seconds(),
		Success:         params.Success,
		FinalStatus:     params.FinalStatus,
	}
	return p.publish(ctx, ChannelBatchCompleted, event)
}

// publish serializes and publishes an event to Redis.
func (p *Publisher) publish(ctx context.Context, channel string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Error("Failed to publish event",
			logging.Err(err),
			logging.F("channel", channel))
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	p.logger.Debug("Event published",
		logging.F("channel", channel),
		logging.F("payload_size", len(data)))

	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
