package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	rotationUseCase "github.com/medvault/phivault/internal/rotation/usecase"
)

// RunRotateStart creates a rotation job and promotes the target version to
// write-current. The job is left pending; run it with rotate-run.
func RunRotateStart(
	ctx context.Context,
	rotationUC rotationUseCase.RotationUseCase,
	logger *slog.Logger,
	sourceVersion, targetVersion uint64,
) error {
	logger.Info("starting rotation",
		slog.Uint64("source_version", sourceVersion),
		slog.Uint64("target_version", targetVersion),
	)

	job, err := rotationUC.Start(ctx, sourceVersion, targetVersion)
	if err != nil {
		return fmt.Errorf("failed to start rotation: %w", err)
	}

	logger.Info("rotation job created",
		slog.String("job_id", job.ID.String()),
		slog.Int64("total_rows", job.TotalRows),
	)
	return nil
}

// RunRotateRun drives a rotation job until it reaches a terminal status, is
// paused, or the context is cancelled. Safe to rerun after a crash; work
// resumes from the last checkpoint.
func RunRotateRun(
	ctx context.Context,
	rotationUC rotationUseCase.RotationUseCase,
	logger *slog.Logger,
	jobIDStr string,
) error {
	jobID, err := parseJobID(jobIDStr)
	if err != nil {
		return err
	}

	logger.Info("running rotation job", slog.String("job_id", jobID.String()))

	if err := rotationUC.Run(ctx, jobID); err != nil {
		return fmt.Errorf("rotation job failed: %w", err)
	}

	job, err := rotationUC.Status(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to read rotation job status: %w", err)
	}

	logger.Info("rotation run finished",
		slog.String("job_id", jobID.String()),
		slog.String("status", string(job.Status)),
		slog.Int64("migrated", job.Migrated),
		slog.Int64("skipped", job.Skipped),
		slog.Int64("failed", job.Failed),
	)
	return nil
}

// RunRotateStatus prints a rotation job's state and counters as JSON.
func RunRotateStatus(
	ctx context.Context,
	rotationUC rotationUseCase.RotationUseCase,
	w io.Writer,
	jobIDStr string,
) error {
	jobID, err := parseJobID(jobIDStr)
	if err != nil {
		return err
	}

	job, err := rotationUC.Status(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to read rotation job status: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(job)
}

// RunRotatePause asks a running rotation job to stop after its current batch.
func RunRotatePause(
	ctx context.Context,
	rotationUC rotationUseCase.RotationUseCase,
	logger *slog.Logger,
	jobIDStr string,
) error {
	jobID, err := parseJobID(jobIDStr)
	if err != nil {
		return err
	}

	if err := rotationUC.Pause(ctx, jobID); err != nil {
		return fmt.Errorf("failed to pause rotation job: %w", err)
	}

	logger.Info("rotation job paused", slog.String("job_id", jobID.String()))
	return nil
}

// RunRotateResume moves a paused rotation job back to running. Use rotate-run
// to continue processing.
func RunRotateResume(
	ctx context.Context,
	rotationUC rotationUseCase.RotationUseCase,
	logger *slog.Logger,
	jobIDStr string,
) error {
	jobID, err := parseJobID(jobIDStr)
	if err != nil {
		return err
	}

	if err := rotationUC.Resume(ctx, jobID); err != nil {
		return fmt.Errorf("failed to resume rotation job: %w", err)
	}

	logger.Info("rotation job resumed", slog.String("job_id", jobID.String()))
	return nil
}

// RunRotateAbort rolls a rotation job back, restoring the source version as
// write-current. Already migrated rows stay readable via their embedded
// version label.
func RunRotateAbort(
	ctx context.Context,
	rotationUC rotationUseCase.RotationUseCase,
	logger *slog.Logger,
	jobIDStr string,
) error {
	jobID, err := parseJobID(jobIDStr)
	if err != nil {
		return err
	}

	if err := rotationUC.Abort(ctx, jobID); err != nil {
		return fmt.Errorf("failed to abort rotation job: %w", err)
	}

	logger.Info("rotation job rolled back", slog.String("job_id", jobID.String()))
	return nil
}
