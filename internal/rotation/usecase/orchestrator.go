package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	auditDomain "github.com/medvault/phivault/internal/audit/domain"
	auditUsecase "github.com/medvault/phivault/internal/audit/usecase"
	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	cryptoService "github.com/medvault/phivault/internal/crypto/service"
	"github.com/medvault/phivault/internal/database"
	apperrors "github.com/medvault/phivault/internal/errors"
	recordsUsecase "github.com/medvault/phivault/internal/records/usecase"
	rotationDomain "github.com/medvault/phivault/internal/rotation/domain"
)

// Config holds rotation orchestrator configuration.
type Config struct {
	// BatchSize is the number of rows fetched and processed per checkpoint.
	BatchSize int

	// Workers is the number of concurrent row re-encryptors per batch.
	Workers int

	// RowsPerSec throttles row processing across the whole job. Zero disables
	// throttling.
	RowsPerSec int

	// LeaseTTL is how long a runner's claim on a job stays valid without
	// renewal. Renewal happens implicitly once per batch.
	LeaseTTL time.Duration

	// AbortOnRowFailure stops the job at the first failed row instead of
	// counting it and moving on.
	AbortOnRowFailure bool

	// RunnerID identifies this process as a lease owner.
	RunnerID string
}

// RotationOrchestrator implements RotationUseCase.
type RotationOrchestrator struct {
	config     Config
	txManager  database.TxManager
	jobRepo    RotationJobRepository
	recordRepo recordsUsecase.RecordRepository
	codec      cryptoService.Codec
	promoter   KeyPromoter
	emitter    auditUsecase.Emitter
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// NewRotationOrchestrator creates a RotationOrchestrator.
func NewRotationOrchestrator(
	config Config,
	txManager database.TxManager,
	jobRepo RotationJobRepository,
	recordRepo recordsUsecase.RecordRepository,
	codec cryptoService.Codec,
	promoter KeyPromoter,
	emitter auditUsecase.Emitter,
	logger *slog.Logger,
) *RotationOrchestrator {
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RunnerID == "" {
		config.RunnerID = uuid.NewString()
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if config.RowsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RowsPerSec), config.RowsPerSec)
	}

	return &RotationOrchestrator{
		config:     config,
		txManager:  txManager,
		jobRepo:    jobRepo,
		recordRepo: recordRepo,
		codec:      codec,
		promoter:   promoter,
		emitter:    emitter,
		logger:     logger,
		limiter:    limiter,
	}
}

// Start validates the rotation, promotes the target version to write-current
// and creates a pending job. After Start all new writes use the target
// version; the job then sweeps existing rows.
func (o *RotationOrchestrator) Start(
	ctx context.Context,
	sourceVersion, targetVersion uint64,
) (*rotationDomain.RotationJob, error) {
	job, err := rotationDomain.NewRotationJob(sourceVersion, targetVersion, 0)
	if err != nil {
		return nil, err
	}

	active, err := o.jobRepo.HasActiveJobWithSource(ctx, sourceVersion)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, fmt.Errorf(
			"%w: a rotation job for source version %d is already active",
			apperrors.ErrConflict, sourceVersion,
		)
	}

	total, err := o.recordRepo.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	job.TotalRows = total

	// Promotion validates the target: an unknown or retired version fails
	// here before the job exists.
	if err := o.promoter.PromoteWrite(ctx, targetVersion); err != nil {
		return nil, err
	}

	if err := o.jobRepo.Create(ctx, job); err != nil {
		// Best effort restore of the write pointer.
		if restoreErr := o.promoter.PromoteWrite(ctx, sourceVersion); restoreErr != nil {
			o.logger.ErrorContext(ctx, "failed to restore write version after job creation failure",
				slog.Any("error", restoreErr))
		}
		return nil, err
	}

	o.emit(ctx, job, auditDomain.EventStarted, "")

	o.logger.InfoContext(ctx, "rotation started",
		slog.String("job_id", job.ID.String()),
		slog.Uint64("source_version", sourceVersion),
		slog.Uint64("target_version", targetVersion),
		slog.Int64("total_rows", total),
	)

	return job, nil
}

// Run drives the job batch by batch until it reaches a terminal status, is
// paused, or the context is cancelled. The lease is re-acquired before every
// batch, which doubles as renewal; pause and abort requests from other
// processes are observed between batches.
func (o *RotationOrchestrator) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	switch job.Status {
	case rotationDomain.JobStatusPending, rotationDomain.JobStatusPaused:
		if err := job.Transition(rotationDomain.JobStatusRunning); err != nil {
			return err
		}
		if err := o.jobRepo.UpdateStatus(ctx, jobID, rotationDomain.JobStatusRunning); err != nil {
			return err
		}
	case rotationDomain.JobStatusRunning:
		// Crash recovery: resume from the persisted checkpoint.
	default:
		return fmt.Errorf(
			"%w: rotation job %s is %s",
			apperrors.ErrInvalidState, jobID, job.Status,
		)
	}

	defer func() {
		if err := o.jobRepo.ReleaseLease(context.WithoutCancel(ctx), jobID, o.config.RunnerID); err != nil {
			o.logger.Error("failed to release rotation lease", slog.Any("error", err))
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		acquired, err := o.jobRepo.AcquireLease(
			ctx, jobID, o.config.RunnerID, int64(o.config.LeaseTTL.Seconds()),
		)
		if err != nil {
			return err
		}
		if !acquired {
			return fmt.Errorf(
				"%w: rotation job %s is leased by another runner",
				rotationDomain.ErrLeaseConflict, jobID,
			)
		}

		job, err = o.jobRepo.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status != rotationDomain.JobStatusRunning {
			o.logger.InfoContext(ctx, "rotation run stopping",
				slog.String("job_id", jobID.String()),
				slog.String("status", string(job.Status)),
			)
			return nil
		}

		done, err := o.processBatch(ctx, job)
		if err != nil {
			// Cancellation interrupts the run without failing the job: the
			// persisted running status lets a later Run resume from the
			// checkpoint, same as a crash mid-batch.
			if apperrors.Is(err, context.Canceled) || apperrors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return o.fail(ctx, job, err)
		}
		if done {
			return o.complete(ctx, job)
		}
	}
}

// Status returns the job's current state and counters.
func (o *RotationOrchestrator) Status(ctx context.Context, jobID uuid.UUID) (*rotationDomain.RotationJob, error) {
	return o.jobRepo.GetByID(ctx, jobID)
}

// Pause asks a running job to stop after its current batch.
func (o *RotationOrchestrator) Pause(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.Transition(rotationDomain.JobStatusPaused); err != nil {
		return err
	}
	if err := o.jobRepo.UpdateStatus(ctx, jobID, rotationDomain.JobStatusPaused); err != nil {
		return err
	}

	o.emit(ctx, job, auditDomain.EventPaused, "")
	return nil
}

// Resume moves a paused job back to running.
func (o *RotationOrchestrator) Resume(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.Transition(rotationDomain.JobStatusRunning); err != nil {
		return err
	}
	if err := o.jobRepo.UpdateStatus(ctx, jobID, rotationDomain.JobStatusRunning); err != nil {
		return err
	}

	o.emit(ctx, job, auditDomain.EventResumed, "")
	return nil
}

// Abort rolls the job back. The write-current pointer returns to the source
// version so new writes stop using the target; rows already migrated keep
// their target-version ciphertext and stay readable through their embedded
// label.
func (o *RotationOrchestrator) Abort(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.Transition(rotationDomain.JobStatusRolledBack); err != nil {
		return err
	}

	if err := o.promoter.PromoteWrite(ctx, job.SourceVersion); err != nil {
		return err
	}
	if err := o.jobRepo.UpdateStatus(ctx, jobID, rotationDomain.JobStatusRolledBack); err != nil {
		return err
	}

	o.emit(ctx, job, auditDomain.EventRolledBack, "")

	o.logger.InfoContext(ctx, "rotation rolled back",
		slog.String("job_id", jobID.String()),
		slog.Uint64("restored_write_version", job.SourceVersion),
	)
	return nil
}

type rowOutcome int

const (
	rowMigrated rowOutcome = iota
	rowSkipped
	rowFailed
)

type rowResult struct {
	outcome rowOutcome
	err     error
}

// processBatch fetches and re-encrypts the next batch after the job's cursor.
// Returns done=true when no rows remain. The checkpoint (cursor plus
// counters) is persisted in one transaction after the whole batch, so a crash
// mid-batch replays the batch; replay is harmless because rows already on the
// target version are skipped and the guarded update cannot double-write.
func (o *RotationOrchestrator) processBatch(
	ctx context.Context,
	job *rotationDomain.RotationJob,
) (bool, error) {
	records, err := o.recordRepo.ListBatchAfter(ctx, job.Cursor, o.config.BatchSize)
	if err != nil {
		return false, err
	}
	if len(records) == 0 {
		return true, nil
	}

	results := make([]rowResult, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Workers)

	for i, record := range records {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				// Rows already handed to the group keep running; wait for
				// them so no write-back lands after the lease is released.
				// The batch replays on the next run and their rows are
				// recognized as migrated and skipped.
				_ = g.Wait()
				return false, err
			}
		}

		g.Go(func() error {
			results[i] = o.processRow(gctx, job, record.ID, record.Value)
			if results[i].outcome == rowFailed && o.config.AbortOnRowFailure {
				return fmt.Errorf("record %d: %w", record.ID, results[i].err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return false, err
	}

	job.Scanned += int64(len(records))
	job.Cursor = records[len(records)-1].ID
	for i, result := range results {
		switch result.outcome {
		case rowMigrated:
			job.Migrated++
		case rowSkipped:
			job.Skipped++
		case rowFailed:
			job.Failed++
			job.LastRowError = fmt.Sprintf("record %d: %v", records[i].ID, result.err)
			o.logger.ErrorContext(ctx, "rotation row failed",
				slog.String("job_id", job.ID.String()),
				slog.Int64("record_id", records[i].ID),
				slog.Any("error", result.err),
			)
		}
	}

	err = o.txManager.WithTx(ctx, func(ctx context.Context) error {
		return o.jobRepo.UpdateCheckpoint(ctx, job)
	})
	if err != nil {
		return false, err
	}

	o.emit(ctx, job, auditDomain.EventBatchCompleted, "")

	return int64(len(records)) < int64(o.config.BatchSize), nil
}

// processRow re-encrypts a single row from the source to the target version.
// Rows already on the target (a replayed batch), on an unrelated version, or
// rewritten concurrently since the batch was fetched are skipped.
func (o *RotationOrchestrator) processRow(
	ctx context.Context,
	job *rotationDomain.RotationJob,
	recordID int64,
	value string,
) rowResult {
	label, err := cryptoDomain.VersionLabel(value)
	if err != nil {
		return rowResult{outcome: rowFailed, err: err}
	}
	if label != job.SourceVersion {
		return rowResult{outcome: rowSkipped}
	}

	plaintext, err := o.codec.Decrypt(value)
	if err != nil {
		return rowResult{outcome: rowFailed, err: err}
	}
	defer cryptoDomain.Zero(plaintext)

	newValue, err := o.codec.EncryptWithVersion(job.TargetVersion, plaintext)
	if err != nil {
		return rowResult{outcome: rowFailed, err: err}
	}

	updated, err := o.recordRepo.UpdateValueIfVersion(ctx, recordID, job.SourceVersion, newValue)
	if err != nil {
		return rowResult{outcome: rowFailed, err: err}
	}
	if !updated {
		// A concurrent write replaced the value since the batch was fetched.
		// Whatever got written used the write-current version, so the row no
		// longer needs migrating.
		return rowResult{outcome: rowSkipped}
	}

	return rowResult{outcome: rowMigrated}
}

// complete verifies the sweep actually cleared the source version before
// marking the job completed. Surviving source rows (failed rows, or writes
// that raced the sweep under the old version) leave the job failed instead,
// with the remainder recorded.
func (o *RotationOrchestrator) complete(ctx context.Context, job *rotationDomain.RotationJob) error {
	remaining, err := o.recordRepo.CountByVersion(ctx, job.SourceVersion)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return o.fail(ctx, job, fmt.Errorf(
			"%w: %d rows still carry source version %d after full sweep",
			apperrors.ErrInvalidState, remaining, job.SourceVersion,
		))
	}

	if err := job.Transition(rotationDomain.JobStatusCompleted); err != nil {
		return err
	}
	if err := o.jobRepo.UpdateStatus(ctx, job.ID, rotationDomain.JobStatusCompleted); err != nil {
		return err
	}

	o.emit(ctx, job, auditDomain.EventCompleted, "")

	o.logger.InfoContext(ctx, "rotation completed",
		slog.String("job_id", job.ID.String()),
		slog.Int64("migrated", job.Migrated),
		slog.Int64("skipped", job.Skipped),
		slog.Int64("failed", job.Failed),
	)
	return nil
}

func (o *RotationOrchestrator) fail(ctx context.Context, job *rotationDomain.RotationJob, cause error) error {
	if transitionErr := job.Transition(rotationDomain.JobStatusFailed); transitionErr == nil {
		if err := o.jobRepo.UpdateStatus(ctx, job.ID, rotationDomain.JobStatusFailed); err != nil {
			o.logger.ErrorContext(ctx, "failed to persist failed status", slog.Any("error", err))
		}
		o.emit(ctx, job, auditDomain.EventFailed, cause.Error())
	}

	o.logger.ErrorContext(ctx, "rotation failed",
		slog.String("job_id", job.ID.String()),
		slog.Any("error", cause),
	)
	return cause
}

func (o *RotationOrchestrator) emit(
	ctx context.Context,
	job *rotationDomain.RotationJob,
	eventType auditDomain.EventType,
	detail string,
) {
	o.emitter.Emit(ctx, &auditDomain.Event{
		JobID:         job.ID,
		Type:          eventType,
		SourceVersion: job.SourceVersion,
		TargetVersion: job.TargetVersion,
		Scanned:       job.Scanned,
		Migrated:      job.Migrated,
		Skipped:       job.Skipped,
		Failed:        job.Failed,
		Cursor:        job.Cursor,
		Detail:        detail,
	})
}
