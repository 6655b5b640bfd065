// Package usecase implements the audit trail for rotation jobs. Emission is
// fire and forget: a failing audit sink logs and never blocks or fails the
// migration that produced the event.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medvault/phivault/internal/audit/domain"
)

// EventRepository defines audit event persistence operations.
type EventRepository interface {
	Create(ctx context.Context, event *domain.Event) error
	ListByJob(ctx context.Context, jobID uuid.UUID, offset, limit int) ([]*domain.Event, error)
}

// Emitter receives rotation audit events.
type Emitter interface {
	Emit(ctx context.Context, event *domain.Event)
}

// SlogEmitter writes audit events to the structured log.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter creates a SlogEmitter. A nil logger uses the default.
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger}
}

// Emit logs the event.
func (e *SlogEmitter) Emit(ctx context.Context, event *domain.Event) {
	e.logger.InfoContext(ctx, "rotation audit event",
		slog.String("job_id", event.JobID.String()),
		slog.String("type", string(event.Type)),
		slog.Uint64("source_version", event.SourceVersion),
		slog.Uint64("target_version", event.TargetVersion),
		slog.Int64("scanned", event.Scanned),
		slog.Int64("migrated", event.Migrated),
		slog.Int64("skipped", event.Skipped),
		slog.Int64("failed", event.Failed),
		slog.Int64("cursor", event.Cursor),
	)
}

// DBEmitter persists audit events to the audit_events table, logging them as
// well. Persistence failures are logged and swallowed.
type DBEmitter struct {
	repo   EventRepository
	logger *slog.Logger
}

// NewDBEmitter creates a DBEmitter.
func NewDBEmitter(repo EventRepository, logger *slog.Logger) *DBEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBEmitter{repo: repo, logger: logger}
}

// Emit assigns the event an id and timestamp, persists it and logs it.
func (e *DBEmitter) Emit(ctx context.Context, event *domain.Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if err := e.repo.Create(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist audit event",
			slog.String("job_id", event.JobID.String()),
			slog.String("type", string(event.Type)),
			slog.Any("error", err),
		)
	}

	e.logger.InfoContext(ctx, "rotation audit event",
		slog.String("job_id", event.JobID.String()),
		slog.String("type", string(event.Type)),
		slog.Int64("migrated", event.Migrated),
		slog.Int64("failed", event.Failed),
	)
}
