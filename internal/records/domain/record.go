// Package domain defines the patient record model whose protected fields are
// stored encrypted at rest.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Record is a patient record row. Value holds the encrypted serialized form of
// a protected field; plaintext only exists in memory on either side of the
// field adapter.
type Record struct {
	ID        int64     `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	Name      string    `json:"name"`
	Value     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
