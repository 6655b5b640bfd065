package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	recordsDomain "github.com/medvault/phivault/internal/records/domain"
	recordsService "github.com/medvault/phivault/internal/records/service"
)

type recordUseCase struct {
	recordRepo RecordRepository
	adapter    *recordsService.FieldAdapter
}

// NewRecordUseCase creates a RecordUseCase backed by the given repository and
// field adapter.
func NewRecordUseCase(recordRepo RecordRepository, adapter *recordsService.FieldAdapter) RecordUseCase {
	return &recordUseCase{recordRepo: recordRepo, adapter: adapter}
}

// Create encrypts the field value and stores the record. The plaintext never
// reaches the repository or the logs.
func (r *recordUseCase) Create(
	ctx context.Context,
	patientID uuid.UUID,
	name, plaintext string,
) (*recordsDomain.Record, error) {
	serialized, err := r.adapter.EncryptOnWrite(plaintext)
	if err != nil {
		return nil, err
	}

	record := &recordsDomain.Record{
		PatientID: patientID,
		Name:      name,
		Value:     serialized,
	}
	if err := r.recordRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "record created",
		"record_id", record.ID,
		"patient_id", patientID,
		"field", name,
	)

	record.Value = plaintext
	return record, nil
}

// Get retrieves a record and decrypts its field value using the key version
// embedded in the stored form.
func (r *recordUseCase) Get(ctx context.Context, id int64) (*recordsDomain.Record, error) {
	record, err := r.recordRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	plaintext, err := r.adapter.DecryptOnRead(record.Value)
	if err != nil {
		slog.ErrorContext(ctx, "record decryption failed", "record_id", id, "error", err)
		return nil, err
	}

	record.Value = plaintext
	return record, nil
}
