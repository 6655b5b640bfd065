package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/medvault/phivault/internal/database"
	apperrors "github.com/medvault/phivault/internal/errors"
	rotationDomain "github.com/medvault/phivault/internal/rotation/domain"
)

// MySQLRotationJobRepository handles rotation job persistence for MySQL.
type MySQLRotationJobRepository struct {
	db *sql.DB
}

// NewMySQLRotationJobRepository creates a new MySQLRotationJobRepository.
func NewMySQLRotationJobRepository(db *sql.DB) *MySQLRotationJobRepository {
	return &MySQLRotationJobRepository{db: db}
}

// Create inserts a new rotation job.
func (r *MySQLRotationJobRepository) Create(ctx context.Context, job *rotationDomain.RotationJob) error {
	querier := database.GetTx(ctx, r.db)

	query := "INSERT INTO rotation_jobs (id, source_version, target_version, status, `cursor`," + `
				  total_rows, scanned, migrated, skipped, failed, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query,
		job.ID, job.SourceVersion, job.TargetVersion, job.Status, job.Cursor,
		job.TotalRows, job.Scanned, job.Migrated, job.Skipped, job.Failed)
	if err != nil {
		return apperrors.Wrap(err, "failed to create rotation job")
	}
	return nil
}

// GetByID retrieves a rotation job.
func (r *MySQLRotationJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*rotationDomain.RotationJob, error) {
	querier := database.GetTx(ctx, r.db)

	query := "SELECT id, source_version, target_version, status, `cursor`, total_rows," + `
				  scanned, migrated, skipped, failed, locked_by, locked_until,
				  last_row_error, created_at, updated_at, completed_at
			  FROM rotation_jobs WHERE id = ?`

	return scanJob(querier.QueryRowContext(ctx, query, id))
}

// HasActiveJobWithSource reports whether a pending, running or paused job
// names the given key version as its source.
func (r *MySQLRotationJobRepository) HasActiveJobWithSource(ctx context.Context, label uint64) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT EXISTS (
				  SELECT 1 FROM rotation_jobs
				  WHERE source_version = ? AND status IN ('pending', 'running', 'paused')
			  )`

	var exists bool
	if err := querier.QueryRowContext(ctx, query, label).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UpdateCheckpoint persists the cursor and cumulative counters.
func (r *MySQLRotationJobRepository) UpdateCheckpoint(ctx context.Context, job *rotationDomain.RotationJob) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE rotation_jobs
			  SET ` + "`cursor`" + ` = ?, scanned = ?, migrated = ?, skipped = ?, failed = ?,
				  last_row_error = ?, updated_at = NOW()
			  WHERE id = ?`

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
func (r *MySQLRotationJobRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status rotationDomain.JobStatus,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE rotation_jobs
			  SET status = ?,
				  completed_at = CASE WHEN ? IN ('completed', 'failed', 'rolled_back')
					  THEN NOW() ELSE completed_at END,
				  updated_at = NOW()
			  WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, status, status, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update rotation job status")
	}
	return requireRow(result)
}

// AcquireLease takes the advisory lease on a job for ttlSeconds.
func (r *MySQLRotationJobRepository) AcquireLease(
	ctx context.Context,
	id uuid.UUID,
	owner string,
	ttlSeconds int64,
) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE rotation_jobs
			  SET locked_by = ?, locked_until = NOW() + INTERVAL ? SECOND
			  WHERE id = ?
				  AND (locked_by IS NULL OR locked_by = ? OR locked_until < NOW())`

	result, err := querier.ExecContext(ctx, query, owner, ttlSeconds, id, owner)
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
func (r *MySQLRotationJobRepository) ReleaseLease(ctx context.Context, id uuid.UUID, owner string) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE rotation_jobs
			  SET locked_by = NULL, locked_until = NULL
			  WHERE id = ? AND locked_by = ?`

	_, err := querier.ExecContext(ctx, query, id, owner)
	return err
}
