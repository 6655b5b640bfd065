package dto

import (
	"time"

	auditDomain "github.com/medvault/phivault/internal/audit/domain"
	rotationDomain "github.com/medvault/phivault/internal/rotation/domain"
)

// RotationJobResponse represents a rotation job in API responses.
type RotationJobResponse struct {
	ID            string     `json:"id"`
	SourceVersion uint64     `json:"source_version"`
	TargetVersion uint64     `json:"target_version"`
	Status        string     `json:"status"`
	Cursor        int64      `json:"cursor"`
	TotalRows     int64      `json:"total_rows"`
	Scanned       int64      `json:"scanned"`
	Migrated      int64      `json:"migrated"`
	Skipped       int64      `json:"skipped"`
	Failed        int64      `json:"failed"`
	LastRowError  string     `json:"last_row_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// MapJobToResponse converts a domain rotation job to a response.
func MapJobToResponse(job *rotationDomain.RotationJob) RotationJobResponse {
	return RotationJobResponse{
		ID:            job.ID.String(),
		SourceVersion: job.SourceVersion,
		TargetVersion: job.TargetVersion,
		Status:        string(job.Status),
		Cursor:        job.Cursor,
		TotalRows:     job.TotalRows,
		Scanned:       job.Scanned,
		Migrated:      job.Migrated,
		Skipped:       job.Skipped,
		Failed:        job.Failed,
		LastRowError:  job.LastRowError,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
		CompletedAt:   job.CompletedAt,
	}
}

// EventResponse represents an audit trail entry in API responses.
type EventResponse struct {
	ID            string    `json:"id"`
	JobID         string    `json:"job_id"`
	Type          string    `json:"type"`
	SourceVersion uint64    `json:"source_version"`
	TargetVersion uint64    `json:"target_version"`
	Scanned       int64     `json:"scanned"`
	Migrated      int64     `json:"migrated"`
	Skipped       int64     `json:"skipped"`
	Failed        int64     `json:"failed"`
	Cursor        int64     `json:"cursor"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListEventsResponse represents a paginated audit trail for a job.
type ListEventsResponse struct {
	Data []EventResponse `json:"data"`
}

// MapEventsToListResponse converts audit events to a list response.
func MapEventsToListResponse(events []*auditDomain.Event) ListEventsResponse {
	data := make([]EventResponse, 0, len(events))
	for _, event := range events {
		data = append(data, EventResponse{
			ID:            event.ID.String(),
			JobID:         event.JobID.String(),
			Type:          string(event.Type),
			SourceVersion: event.SourceVersion,
			TargetVersion: event.TargetVersion,
			Scanned:       event.Scanned,
			Migrated:      event.Migrated,
			Skipped:       event.Skipped,
			Failed:        event.Failed,
			Cursor:        event.Cursor,
			Detail:        event.Detail,
			CreatedAt:     event.CreatedAt,
		})
	}

	return ListEventsResponse{Data: data}
}
