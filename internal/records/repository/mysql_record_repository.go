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

// MySQLRecordRepository implements record persistence for MySQL. Same contract
// as the PostgreSQL implementation; MySQL has no RETURNING so Create reads the
// generated id from the result.
type MySQLRecordRepository struct {
	db *sql.DB
}

// NewMySQLRecordRepository creates a new MySQL record repository.
func NewMySQLRecordRepository(db *sql.DB) *MySQLRecordRepository {
	return &MySQLRecordRepository{db: db}
}

// Create inserts a record and fills in its generated id.
func (m *MySQLRecordRepository) Create(ctx context.Context, record *recordsDomain.Record) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO patient_records (patient_id, name, value, created_at, updated_at)
			  VALUES (?, ?, ?, NOW(), NOW())`

	result, err := querier.ExecContext(ctx, query, record.PatientID, record.Name, record.Value)
	if err != nil {
		return apperrors.Wrap(err, "failed to create record")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	record.ID = id
	return nil
}

// GetByID retrieves a record by its primary key.
func (m *MySQLRecordRepository) GetByID(ctx context.Context, id int64) (*recordsDomain.Record, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, patient_id, name, value, created_at, updated_at
			  FROM patient_records WHERE id = ?`

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
// in ascending id order.
func (m *MySQLRecordRepository) ListBatchAfter(
	ctx context.Context,
	afterID int64,
	limit int,
) ([]*recordsDomain.Record, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, patient_id, name, value, created_at, updated_at
			  FROM patient_records
			  WHERE id > ?
			  ORDER BY id ASC
			  LIMIT ?`

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
func (m *MySQLRecordRepository) CountAll(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	var count int64
	err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM patient_records`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountByVersion returns how many records are still encrypted under the given
// key version.
func (m *MySQLRecordRepository) CountByVersion(ctx context.Context, label uint64) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*) FROM patient_records WHERE value LIKE ?`

	var count int64
	err := querier.QueryRowContext(ctx, query, cryptoDomain.VersionPrefix(label)+"%").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateValueIfVersion rewrites a record's value only if the stored value
// still carries the expected source version prefix.
func (m *MySQLRecordRepository) UpdateValueIfVersion(
	ctx context.Context,
	id int64,
	sourceVersion uint64,
	newValue string,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE patient_records
			  SET value = ?, updated_at = NOW()
			  WHERE id = ? AND value LIKE ?`

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
