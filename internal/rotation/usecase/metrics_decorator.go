package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/phivault/internal/metrics"
	rotationDomain "github.com/medvault/phivault/internal/rotation/domain"
)

// rotationUseCaseWithMetrics decorates RotationUseCase with metrics instrumentation.
type rotationUseCaseWithMetrics struct {
	next    RotationUseCase
	metrics metrics.BusinessMetrics
}

// NewRotationUseCaseWithMetrics wraps a RotationUseCase with metrics recording.
func NewRotationUseCaseWithMetrics(useCase RotationUseCase, m metrics.BusinessMetrics) RotationUseCase {
	return &rotationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Start records metrics for rotation start operations.
func (r *rotationUseCaseWithMetrics) Start(
	ctx context.Context,
	sourceVersion, targetVersion uint64,
) (*rotationDomain.RotationJob, error) {
	start := time.Now()
	job, err := r.next.Start(ctx, sourceVersion, targetVersion)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "rotation_start", status)
	r.metrics.RecordDuration(ctx, "rotation", "rotation_start", time.Since(start), status)

	return job, err
}

// Run records metrics for the whole rotation run, including per-outcome row
// counts taken from the job's counters.
func (r *rotationUseCaseWithMetrics) Run(ctx context.Context, jobID uuid.UUID) error {
	start := time.Now()
	before, beforeErr := r.next.Status(ctx, jobID)

	err := r.next.Run(ctx, jobID)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "rotation_run", status)
	r.metrics.RecordDuration(ctx, "rotation", "rotation_run", time.Since(start), status)

	if beforeErr == nil {
		if after, afterErr := r.next.Status(ctx, jobID); afterErr == nil {
			r.metrics.RecordRotationRows(ctx, "migrated", after.Migrated-before.Migrated)
			r.metrics.RecordRotationRows(ctx, "skipped", after.Skipped-before.Skipped)
			r.metrics.RecordRotationRows(ctx, "failed", after.Failed-before.Failed)
		}
	}

	return err
}

// Status records metrics for status lookups.
func (r *rotationUseCaseWithMetrics) Status(ctx context.Context, jobID uuid.UUID) (*rotationDomain.RotationJob, error) {
	job, err := r.next.Status(ctx, jobID)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "rotation_status", status)

	return job, err
}

// Pause records metrics for pause operations.
func (r *rotationUseCaseWithMetrics) Pause(ctx context.Context, jobID uuid.UUID) error {
	err := r.next.Pause(ctx, jobID)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "rotation_pause", status)

	return err
}

// Resume records metrics for resume operations.
func (r *rotationUseCaseWithMetrics) Resume(ctx context.Context, jobID uuid.UUID) error {
	err := r.next.Resume(ctx, jobID)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "rotation_resume", status)

	return err
}

// Abort records metrics for abort operations.
func (r *rotationUseCaseWithMetrics) Abort(ctx context.Context, jobID uuid.UUID) error {
	start := time.Now()
	err := r.next.Abort(ctx, jobID)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "rotation", "rotation_abort", status)
	r.metrics.RecordDuration(ctx, "rotation", "rotation_abort", time.Since(start), status)

	return err
}
