// Package domain defines migration audit events. Events record rotation
// lifecycle milestones with counters only; plaintext and key material never
// appear in an event.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies rotation audit events.
type EventType string

const (
	EventStarted        EventType = "started"
	EventBatchCompleted EventType = "batch_completed"
	EventCompleted      EventType = "completed"
	EventFailed         EventType = "failed"
	EventPaused         EventType = "paused"
	EventResumed        EventType = "resumed"
	EventRolledBack     EventType = "rolled_back"
)

// Event is a single audit trail entry for a rotation job.
type Event struct {
	ID            uuid.UUID `json:"id"`
	JobID         uuid.UUID `json:"job_id"`
	Type          EventType `json:"type"`
	SourceVersion uint64    `json:"source_version"`
	TargetVersion uint64    `json:"target_version"`
	Scanned       int64     `json:"scanned"`
	Migrated      int64     `json:"migrated"`
	Skipped       int64     `json:"skipped"`
	Failed        int64     `json:"failed"`
	Cursor        int64     `json:"cursor"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
