// Package repository implements persistence for rotation jobs, including the
// checkpoint cursor and the advisory lease that keeps two runners off the
// same job.
package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/medvault/phivault/internal/database"
	apperrors "github.com/medvault/phivault/internal/errors"
	rotationDomain "github.com/medvault/phivault/internal/rotation/domain"
)

// PostgreSQLRotationJobRepository handles rotation job persistence for PostgreSQL.
type PostgreSQLRotationJobRepository struct {
	db *sql.DB
}

// NewPostgreSQLRotationJobRepository creates a new PostgreSQLRotationJobRepository.
func NewPostgreSQLRotationJobRepository(db *sql.DB) *PostgreSQLRotationJobRepository {
	return &PostgreSQLRotationJobRepository{db: db}
}

// Create inserts a new rotation job.
func (r *PostgreSQLRotationJobRepository) Create(ctx context.Context, job *rotationDomain.RotationJob) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO rotation_jobs (id, source_version, target_version, status, cursor,
				  total_rows, scanned, migrated, skipped, failed, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query,
		job.ID, job.SourceVersion, job.TargetVersion, job.Status, job.Cursor,
		job.TotalRows, job.Scanned, job.Migrated, job.Skipped, job.Failed)
	if err != nil {
		return apperrors.Wrap(err, "failed to create rotation job")
	}
	return nil
}

// GetByID retrieves a rotation job.
func (r *PostgreSQLRotationJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*rotationDomain.RotationJob, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, source_version, target_version, status, cursor, total_rows,
				  scanned, migrated, skipped, failed, locked_by, locked_until,
				  last_row_error, created_at, updated_at, completed_at
			  FROM rotation_jobs WHERE id = $1`

	return scanJob(querier.QueryRowContext(ctx, query, id))
}

// HasActiveJobWithSource reports whether a pending, running or paused job
// names the given key version as its source.
func (r *PostgreSQLRotationJobRepository) HasActiveJobWithSource(ctx context.Context, label uint64) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT EXISTS (
				  SELECT 1 FROM rotation_jobs
				  WHERE source_version = $1 AND status IN ('pending', 'running', 'paused')
			  )`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, label).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UpdateCheckpoint persists the cursor and cumulative counters. Called inside
// a transaction after every fully processed batch.
func (r *PostgreSQLRotationJobRepository) UpdateCheckpoint(ctx context.Context, job *rotationDomain.RotationJob) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE rotation_jobs
			  SET cursor = $1, scanned = $2, migrated = $3, skipped = $4, failed = $5,
				  last_row_error = $6, updated_at = NOW()
			  WHERE id = $7`

	result, err := querier.ExecContext(ctx, query,
		job.Cursor, job.Scanned, job.Migrated, job.Skipped, job.Failed,
		job.LastRowError, job.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to checkpoint rotation job")
	}
	return requireRow(result)
}

// UpdateStatus persists a job's status, stamping completion time when the
// status is terminal.
func (r *PostgreSQLRotationJobRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status rotationDomain.JobStatus,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE rotation_jobs
			  SET status = $1,
				  completed_at = CASE WHEN $1 IN ('completed', 'failed', 'rolled_back')
					  THEN NOW() ELSE completed_at END,
				  updated_at = NOW()
			  WHERE id = $2`

	result, err := querier.ExecContext(ctx, query, status, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update rotation job status")
	}
	return requireRow(result)
}

// AcquireLease takes the advisory lease on a job for ttlSeconds. Returns false
// when another live owner holds it. Re-acquisition by the current owner
// extends the lease.
func (r *PostgreSQLRotationJobRepository) AcquireLease(
	ctx context.Context,
	id uuid.UUID,
	owner string,
	ttlSeconds int64,
) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE rotation_jobs
			  SET locked_by = $1, locked_until = NOW() + $2 * INTERVAL '1 second'
			  WHERE id = $3
				  AND (locked_by IS NULL OR locked_by = $1 OR locked_until < NOW())`

	result, err := querier.ExecContext(ctx, query, owner, ttlSeconds, id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ReleaseLease drops the lease if the given owner still holds it.
func (r *PostgreSQLRotationJobRepository) ReleaseLease(ctx context.Context, id uuid.UUID, owner string) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE rotation_jobs
			  SET locked_by = NULL, locked_until = NULL
			  WHERE id = $1 AND locked_by = $2`

	_, err := querier.ExecContext(ctx, query, id, owner)
	return err
}

func scanJob(row *sql.Row) (*rotationDomain.RotationJob, error) {
	var job rotationDomain.RotationJob
	var lockedBy sql.NullString
	var lockedUntil, completedAt sql.NullTime
	var lastRowError sql.NullString

	err := row.Scan(
		&job.ID, &job.SourceVersion, &job.TargetVersion, &job.Status, &job.Cursor,
		&job.TotalRows, &job.Scanned, &job.Migrated, &job.Skipped, &job.Failed,
		&lockedBy, &lockedUntil, &lastRowError,
		&job.CreatedAt, &job.UpdatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "rotation job")
	}
	if err != nil {
		return nil, err
	}

	if lockedBy.Valid {
		job.LockedBy = lockedBy.String
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		job.LockedUntil = &t
	}
	if lastRowError.Valid {
		job.LastRowError = lastRowError.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}

	return &job, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.Wrap(apperrors.ErrNotFound, "rotation job")
	}
	return nil
}
