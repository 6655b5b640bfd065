package repository

import (
	"context"
	"database/sql"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	"github.com/medvault/phivault/internal/database"
	apperrors "github.com/medvault/phivault/internal/errors"
)

// MySQLKeyVersionRepository implements key-version state persistence for MySQL.
// Same contract as the PostgreSQL implementation with `?` placeholders.
type MySQLKeyVersionRepository struct {
	db *sql.DB
}

// NewMySQLKeyVersionRepository creates a new MySQL key-version repository.
func NewMySQLKeyVersionRepository(db *sql.DB) *MySQLKeyVersionRepository {
	return &MySQLKeyVersionRepository{db: db}
}

// Create inserts a new key version row with the read-only role.
func (m *MySQLKeyVersionRepository) Create(ctx context.Context, kv *cryptoDomain.KeyVersion) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO key_versions (label, algorithm, role, created_at)
			  VALUES (?, ?, ?, NOW())`

	_, err := querier.ExecContext(ctx, query, kv.Label, kv.Algorithm, kv.Role)
	if err != nil {
		return apperrors.Wrap(err, "failed to create key version")
	}
	return nil
}

// List retrieves all key versions ordered by label ascending.
func (m *MySQLKeyVersionRepository) List(ctx context.Context) ([]*cryptoDomain.KeyVersion, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT label, algorithm, role, activated_at FROM key_versions ORDER BY label ASC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var versions []*cryptoDomain.KeyVersion
	for rows.Next() {
		var kv cryptoDomain.KeyVersion
		var activatedAt sql.NullTime

		if err := rows.Scan(&kv.Label, &kv.Algorithm, &kv.Role, &activatedAt); err != nil {
			return nil, err
		}
		if activatedAt.Valid {
			kv.ActivatedAt = activatedAt.Time
		}

		versions = append(versions, &kv)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return versions, nil
}

// UpdateRole changes a key version's role. Promotion to write-current also
// stamps the activation time.
func (m *MySQLKeyVersionRepository) UpdateRole(
	ctx context.Context,
	label uint64,
	role cryptoDomain.KeyRole,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE key_versions
			  SET role = ?,
			      activated_at = CASE WHEN ? = 'write-current' THEN NOW() ELSE activated_at END
			  WHERE label = ?`

	result, err := querier.ExecContext(ctx, query, role, role, label)
	if err != nil {
		return apperrors.Wrap(err, "failed to update key version role")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.Wrap(apperrors.ErrNotFound, "key version")
	}
	return nil
}

// Delete removes a purged key version row.
func (m *MySQLKeyVersionRepository) Delete(ctx context.Context, label uint64) error {
	querier := database.GetTx(ctx, m.db)

	_, err := querier.ExecContext(ctx, `DELETE FROM key_versions WHERE label = ?`, label)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete key version")
	}
	return nil
}
