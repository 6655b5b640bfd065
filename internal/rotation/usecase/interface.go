// Package usecase implements the rotation orchestrator: batch re-encryption
// of stored fields from a source key version to a target version, with
// checkpointed resume, an advisory lease, pause/resume and rollback.
package usecase

import (
	"context"

	"github.com/google/uuid"

	rotationDomain "github.com/medvault/phivault/internal/rotation/domain"
)

// RotationJobRepository defines rotation job persistence operations.
type RotationJobRepository interface {
	// Create inserts a new job.
	Create(ctx context.Context, job *rotationDomain.RotationJob) error

	// GetByID retrieves a job.
	GetByID(ctx context.Context, id uuid.UUID) (*rotationDomain.RotationJob, error)

	// HasActiveJobWithSource reports whether a pending, running or paused job
	// names the given key version as source.
	HasActiveJobWithSource(ctx context.Context, label uint64) (bool, error)

	// UpdateCheckpoint persists the cursor and cumulative counters.
	UpdateCheckpoint(ctx context.Context, job *rotationDomain.RotationJob) error

	// UpdateStatus persists a status change.
	UpdateStatus(ctx context.Context, id uuid.UUID, status rotationDomain.JobStatus) error

	// AcquireLease takes the advisory job lease for ttlSeconds. Returns false
	// when another live owner holds it.
	AcquireLease(ctx context.Context, id uuid.UUID, owner string, ttlSeconds int64) (bool, error)

	// ReleaseLease drops the lease if the owner still holds it.
	ReleaseLease(ctx context.Context, id uuid.UUID, owner string) error
}

// KeyPromoter switches the write-current key version. The orchestrator
// promotes the target at job start and restores the source on rollback.
type KeyPromoter interface {
	PromoteWrite(ctx context.Context, label uint64) error
}

// RotationUseCase drives rotation jobs end to end.
type RotationUseCase interface {
	// Start validates versions, promotes the target to write-current and
	// creates a pending job covering the whole record table.
	Start(ctx context.Context, sourceVersion, targetVersion uint64) (*rotationDomain.RotationJob, error)

	// Run drives a job to a terminal status or until the context is cancelled
	// or the job is paused. Safe to call again after a crash: work resumes
	// from the last checkpoint.
	Run(ctx context.Context, jobID uuid.UUID) error

	// Status returns the job's current state and counters.
	Status(ctx context.Context, jobID uuid.UUID) (*rotationDomain.RotationJob, error)

	// Pause asks a running job to stop after its current batch.
	Pause(ctx context.Context, jobID uuid.UUID) error

	// Resume moves a paused job back to running. Call Run afterwards to
	// continue processing.
	Resume(ctx context.Context, jobID uuid.UUID) error

	// Abort rolls a job back: the job is marked rolled back and the
	// write-current pointer returns to the source version. Already migrated
	// rows stay as they are; they remain readable via their embedded version.
	Abort(ctx context.Context, jobID uuid.UUID) error
}
