// Package usecase implements business logic for patient records: storing
// protected fields encrypted and returning them decrypted.
package usecase

import (
	"context"

	"github.com/google/uuid"

	recordsDomain "github.com/medvault/phivault/internal/records/domain"
)

// RecordRepository defines persistence for patient records. Implementations
// are transaction-aware via database.GetTx.
type RecordRepository interface {
	// Create stores a record, filling in its generated id.
	Create(ctx context.Context, record *recordsDomain.Record) error

	// GetByID retrieves a record by primary key.
	GetByID(ctx context.Context, id int64) (*recordsDomain.Record, error)

	// ListBatchAfter retrieves up to limit records with id greater than
	// afterID, in ascending id order.
	ListBatchAfter(ctx context.Context, afterID int64, limit int) ([]*recordsDomain.Record, error)

	// CountAll returns the total number of records.
	CountAll(ctx context.Context) (int64, error)

	// CountByVersion returns how many records are still encrypted under the
	// given key version.
	CountByVersion(ctx context.Context, label uint64) (int64, error)

	// UpdateValueIfVersion rewrites a record's value only if it still carries
	// the expected source version. Returns false when the guard misses.
	UpdateValueIfVersion(ctx context.Context, id int64, sourceVersion uint64, newValue string) (bool, error)
}

// RecordUseCase stores and retrieves patient records with transparent field
// encryption.
type RecordUseCase interface {
	// Create encrypts the plaintext field value under the write-current key
	// version and stores the record.
	Create(ctx context.Context, patientID uuid.UUID, name, plaintext string) (*recordsDomain.Record, error)

	// Get retrieves a record and decrypts its field value. The returned
	// record's Value holds plaintext.
	Get(ctx context.Context, id int64) (*recordsDomain.Record, error)
}
