// Package domain defines the rotation job model and its lifecycle.
//
// A rotation job re-encrypts every row carrying the source key version under
// the target version, batch by batch in primary key order, checkpointing its
// cursor after each batch so a crashed or paused job resumes exactly where it
// stopped.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/medvault/phivault/internal/errors"
)

// JobStatus represents the lifecycle state of a rotation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusRunning    JobStatus = "running"
	JobStatusPaused     JobStatus = "paused"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRolledBack JobStatus = "rolled_back"
)

// validTransitions maps each status to the statuses it may move to.
// Completed, failed and rolled_back are terminal.
var validTransitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusRunning, JobStatusRolledBack},
	JobStatusRunning: {JobStatusPaused, JobStatusCompleted, JobStatusFailed, JobStatusRolledBack},
	JobStatusPaused:  {JobStatusRunning, JobStatusRolledBack},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to JobStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// RotationJob tracks a key rotation migration over the record table.
//
// Cursor is the id of the last fully processed row; a batch is the next
// BatchSize rows above it in id order. Counters are cumulative over the whole
// job, surviving pause, crash and resume.
type RotationJob struct {
	ID            uuid.UUID  `json:"id"`
	SourceVersion uint64     `json:"source_version"`
	TargetVersion uint64     `json:"target_version"`
	Status        JobStatus  `json:"status"`
	Cursor        int64      `json:"cursor"`
	TotalRows     int64      `json:"total_rows"`
	Scanned       int64      `json:"scanned"`
	Migrated      int64      `json:"migrated"`
	Skipped       int64      `json:"skipped"`
	Failed        int64      `json:"failed"`
	LockedBy      string     `json:"locked_by,omitempty"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	LastRowError  string     `json:"last_row_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewRotationJob creates a pending job for migrating sourceVersion to
// targetVersion over totalRows rows.
func NewRotationJob(sourceVersion, targetVersion uint64, totalRows int64) (*RotationJob, error) {
	if sourceVersion == targetVersion {
		return nil, fmt.Errorf(
			"%w: source and target version are both %d",
			apperrors.ErrInvalidInput, sourceVersion,
		)
	}

	return &RotationJob{
		ID:            uuid.New(),
		SourceVersion: sourceVersion,
		TargetVersion: targetVersion,
		Status:        JobStatusPending,
		TotalRows:     totalRows,
	}, nil
}

// Transition moves the job to a new status, enforcing the lifecycle rules.
func (j *RotationJob) Transition(to JobStatus) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf(
			"%w: rotation job cannot move from %s to %s",
			apperrors.ErrInvalidState, j.Status, to,
		)
	}
	j.Status = to
	return nil
}

// IsActive reports whether the job still holds rotation work: pending,
// running or paused.
func (j *RotationJob) IsActive() bool {
	switch j.Status {
	case JobStatusPending, JobStatusRunning, JobStatusPaused:
		return true
	}
	return false
}

// IsTerminal reports whether the job has reached a final status.
func (j *RotationJob) IsTerminal() bool {
	return !j.IsActive()
}
