package dto

import (
	"encoding/base64"
	"time"

	recordsDomain "github.com/medvault/phivault/internal/records/domain"
)

// RecordResponse represents record metadata in API responses. The field value
// is excluded; use GetRecordResponse for reads.
type RecordResponse struct {
	ID        int64     `json:"id"`
	PatientID string    `json:"patient_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetRecordResponse represents a record with its decrypted field value,
// base64-encoded.
type GetRecordResponse struct {
	ID        int64     `json:"id"`
	PatientID string    `json:"patient_id"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MapRecordToCreateResponse converts a domain record to a metadata-only response.
func MapRecordToCreateResponse(record *recordsDomain.Record) RecordResponse {
	return RecordResponse{
		ID:        record.ID,
		PatientID: record.PatientID.String(),
		Name:      record.Name,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

// MapRecordToGetResponse converts a domain record with decrypted value to a
// response. The plaintext is base64-encoded to mirror the request contract.
func MapRecordToGetResponse(record *recordsDomain.Record) GetRecordResponse {
	return GetRecordResponse{
		ID:        record.ID,
		PatientID: record.PatientID.String(),
		Name:      record.Name,
		Value:     base64.StdEncoding.EncodeToString([]byte(record.Value)),
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}
