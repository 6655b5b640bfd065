package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/medvault/phivault/internal/audit/domain"
	"github.com/medvault/phivault/internal/database"
)

// MySQLAuditEventRepository handles audit event persistence for MySQL.
type MySQLAuditEventRepository struct {
	db *sql.DB
}

// NewMySQLAuditEventRepository creates a new MySQLAuditEventRepository.
func NewMySQLAuditEventRepository(db *sql.DB) *MySQLAuditEventRepository {
	return &MySQLAuditEventRepository{db: db}
}

// Create inserts a new audit event.
func (r *MySQLAuditEventRepository) Create(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO audit_events (id, job_id, type, source_version, target_version,
				  scanned, migrated, skipped, failed, ` + "`cursor`" + `, detail, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())`

	_, err := querier.ExecContext(ctx, query,
		event.ID, event.JobID, event.Type, event.SourceVersion, event.TargetVersion,
		event.Scanned, event.Migrated, event.Skipped, event.Failed, event.Cursor, event.Detail)

	return err
}

// ListByJob retrieves audit events for a job in chronological order with
// offset and limit pagination.
func (r *MySQLAuditEventRepository) ListByJob(
	ctx context.Context,
	jobID uuid.UUID,
	offset, limit int,
) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, job_id, type, source_version, target_version,
				  scanned, migrated, skipped, failed, ` + "`cursor`" + `, detail, created_at
			  FROM audit_events
			  WHERE job_id = ?
			  ORDER BY created_at ASC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, jobID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.Event
	for rows.Next() {
		var event domain.Event

		err := rows.Scan(&event.ID, &event.JobID, &event.Type, &event.SourceVersion,
			&event.TargetVersion, &event.Scanned, &event.Migrated, &event.Skipped,
			&event.Failed, &event.Cursor, &event.Detail, &event.CreatedAt)
		if err != nil {
			return nil, err
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
