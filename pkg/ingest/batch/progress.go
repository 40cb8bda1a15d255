// Package batch parses every meeting folder under a root directory.
package batch

import (
	"sync"
	"time"
)

// Progress states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Progress tracks the documents handled by a batch run. It is safe for
// concurrent use.
type Progress struct {
	mu sync.RWMutex

	totalDocuments int
	processed      int
	parsed         int
	skipped        int
	failed         int
	currentFile    string
	status         string
	startedAt      time.Time

	onUpdate func(ProgressSnapshot)
}

// NewProgress creates a tracker for total documents.
func NewProgress(total int) *Progress {
	return &Progress{
		totalDocuments: total,
		status:         StatusPending,
		startedAt:      time.Now(),
	}
}

// SetOnUpdate registers fn to be called synchronously after every change.
func (p *Progress) SetOnUpdate(fn func(ProgressSnapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUpdate = fn
}

// Start marks the run as started.
func (p *Progress) Start() {
	p.update(func() {
		p.status = StatusRunning
		p.startedAt = time.Now()
	})
}

// SetCurrentFile records the document being worked on.
func (p *Progress) SetCurrentFile(path string) {
	p.update(func() { p.currentFile = path })
}

// RecordParsed counts a parsed document.
func (p *Progress) RecordParsed() {
	p.update(func() { p.parsed++; p.processed++ })
}

// RecordSkipped counts a document that was up to date or not attempted.
func (p *Progress) RecordSkipped() {
	p.update(func() { p.skipped++; p.processed++ })
}

// RecordFailed counts a failed document.
func (p *Progress) RecordFailed() {
	p.update(func() { p.failed++; p.processed++ })
}

// Complete marks the run as finished.
func (p *Progress) Complete(success bool) {
	p.update(func() {
		p.status = StatusCompleted
		if !success {
			p.status = StatusFailed
		}
	})
}

// Cancel marks the run as cancelled.
func (p *Progress) Cancel() {
	p.update(func() { p.status = StatusCancelled })
}

// update applies fn under the lock and notifies the callback after
// releasing it.
func (p *Progress) update(fn func()) {
	p.mu.Lock()
	fn()
	cb := p.onUpdate
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() ProgressSnapshot {
	elapsed := time.Since(p.startedAt).Seconds()
	var remaining *float64
	if p.processed > 0 {
		est := elapsed / float64(p.processed) * float64(p.totalDocuments-p.processed)
		remaining = &est
	}
	return ProgressSnapshot{
		TotalDocuments:            p.totalDocuments,
		ProcessedCount:            p.processed,
		ParsedCount:               p.parsed,
		SkippedCount:              p.skipped,
		FailedCount:               p.failed,
		CurrentFile:               p.currentFile,
		Status:                    p.status,
		StartedAt:                 p.startedAt,
		ElapsedSeconds:            elapsed,
		EstimatedRemainingSeconds: remaining,
	}
}

// ProgressSnapshot is an immutable view of Progress.
type ProgressSnapshot struct {
	TotalDocuments            int
	ProcessedCount            int
	ParsedCount               int
	SkippedCount              int
	FailedCount               int
	CurrentFile               string
	Status                    string
	StartedAt                 time.Time
	ElapsedSeconds            float64
	EstimatedRemainingSeconds *float64
}

// PercentComplete returns the share of documents processed.
func (s ProgressSnapshot) PercentComplete() float64 {
	if s.TotalDocuments == 0 {
		return 0
	}
	return float64(s.ProcessedCount) / float64(s.TotalDocuments) * 100
}

// IsComplete returns true if all documents have been processed.
func (s ProgressSnapshot) IsComplete() bool {
	return s.ProcessedCount >= s.TotalDocuments
}

// IsSuccess returns true if the run completed without failures.
func (s ProgressSnapshot) IsSuccess() bool {
	return s.Status == StatusCompleted && s.FailedCount == 0
}
