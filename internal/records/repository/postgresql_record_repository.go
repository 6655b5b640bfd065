// Package repository implements persistence for patient records.
//
// The batch listing and guarded update here are the storage half of the
// rotation pipeline: batches are keyed by primary key order and rewrites only
// land when the stored value still carries the expected source version.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	"github.com/medvault/phivault/internal/database"
	apperrors "github.com/medvault/phivault/internal/errors"
	recordsDomain "github.com/medvault/phivault/internal/records/domain"
)

// PostgreSQLRecordRepository implements record persistence for PostgreSQL.
type PostgreSQLRecordRepository struct {
	db *sql.DB
}

// NewPostgreSQLRecordRepository creates a new PostgreSQL record repository.
func NewPostgreSQLRecordRepository(db *sql.DB) *PostgreSQLRecordRepository {
	return &PostgreSQLRecordRepository{db: db}
}

// Create inserts a record and fills in its generated id and timestamps.
func (p *PostgreSQLRecordRepository) Create(ctx context.Context, record *recordsDomain.Record) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO patient_records (patient_id, name, value, created_at, updated_at)
			  VALUES ($1, $2, $3, NOW(), NOW())
			  RETURNING id, created_at, updated_at`

	err := querier.QueryRowContext(ctx, query, record.PatientID, record.Name, record.Value).
		Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create record")
	}
	return nil
}

// GetByID retrieves a record by its primary key.
func (p *PostgreSQLRecordRepository) GetByID(ctx context.Context, id int64) (*recordsDomain.Record, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, patient_id, name, value, created_at, updated_at
			  FROM patient_records WHERE id = $1`

	var record recordsDomain.Record
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&record.ID,
		&record.PatientID,
		&record.Name,
		&record.Value,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "record")
	}
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// ListBatchAfter retrieves up to limit records with id greater than afterID,
// in ascending id order. This is the rotation batch scan: resuming from a
// checkpoint cursor revisits no row and skips none.
func (p *PostgreSQLRecordRepository) ListBatchAfter(
	ctx context.Context,
	afterID int64,
	limit int,
) ([]*recordsDomain.Record, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, patient_id, name, value, created_at, updated_at
			  FROM patient_records
			  WHERE id > $1
			  ORDER BY id ASC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []*recordsDomain.Record
	for rows.Next() {
		var record recordsDomain.Record
		if err := rows.Scan(
			&record.ID,
			&record.PatientID,
			&record.Name,
			&record.Value,
			&record.CreatedAt,
			&record.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// CountAll returns the total number of records.
func (p *PostgreSQLRecordRepository) CountAll(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	var count int64
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM patient_records`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountByVersion returns how many records are still encrypted under the given
// key version, matched on the serialized version prefix.
func (p *PostgreSQLRecordRepository) CountByVersion(ctx context.Context, label uint64) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM patient_records WHERE value LIKE $1`

	var count int64
	err := querier.QueryRowContext(ctx, query, cryptoDomain.VersionPrefix(label)+"%").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateValueIfVersion rewrites a record's value only if the stored value
// still carries the expected source version prefix. Returns false without
// error when the guard does not match, which the rotation treats as a
// concurrent rewrite to skip.
func (p *PostgreSQLRecordRepository) UpdateValueIfVersion(
	ctx context.Context,
	id int64,
	sourceVersion uint64,
	newValue string,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE patient_records
			  SET value = $1, updated_at = NOW()
			  WHERE id = $2 AND value LIKE $3`

	result, err := querier.ExecContext(ctx, query, newValue, id, cryptoDomain.VersionPrefix(sourceVersion)+"%")
	if err != nil {
		return false, fmt.Errorf("failed to update record %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
