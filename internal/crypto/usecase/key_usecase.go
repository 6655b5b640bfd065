package usecase

import (
	"context"
	"fmt"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	cryptoService "github.com/medvault/phivault/internal/crypto/service"
	"github.com/medvault/phivault/internal/database"
	apperrors "github.com/medvault/phivault/internal/errors"
)

type keyUseCase struct {
	txManager       database.TxManager
	keyVersionRepo  KeyVersionRepository
	recordCounter   RecordCounter
	rotationChecker RotationChecker
	minDistRatio    float64
}

// NewKeyUseCase creates a KeyUseCase with the provided dependencies.
// minDistinctRatio is the key strength threshold applied on registration.
func NewKeyUseCase(
	txManager database.TxManager,
	keyVersionRepo KeyVersionRepository,
	recordCounter RecordCounter,
	rotationChecker RotationChecker,
	minDistinctRatio float64,
) KeyUseCase {
	return &keyUseCase{
		txManager:       txManager,
		keyVersionRepo:  keyVersionRepo,
		recordCounter:   recordCounter,
		rotationChecker: rotationChecker,
		minDistRatio:    minDistinctRatio,
	}
}

// LoadRing builds the in-memory key ring from durable version state and the
// external key supply. The ring mirrors the persisted roles exactly: one
// write-current version, read-only versions for decrypt, retired versions
// registered only when their material is still supplied.
func (k *keyUseCase) LoadRing(
	ctx context.Context,
	supplier cryptoService.KeySupplier,
) (*cryptoDomain.KeyRing, error) {
	versions, err := k.keyVersionRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list key versions: %w", err)
	}

	ring := cryptoDomain.NewKeyRing(k.minDistRatio)

	for _, kv := range versions {
		key, err := supplier.GetKey(ctx, kv.Label)
		if err != nil {
			if kv.Role == cryptoDomain.RoleRetired {
				// Retired material may legitimately be purged from the supply.
				continue
			}
			ring.Close()
			return nil, fmt.Errorf(
				"%w: key supply has no material for version %d (%s)",
				apperrors.ErrConfiguration, kv.Label, kv.Role,
			)
		}

		if err := ring.Register(kv.Label, key, kv.Algorithm); err != nil {
			ring.Close()
			return nil, err
		}

		switch kv.Role {
		case cryptoDomain.RoleWriteCurrent:
			if err := ring.SetCurrentWrite(kv.Label); err != nil {
				ring.Close()
				return nil, err
			}
		case cryptoDomain.RoleRetired:
			if err := ring.Retire(kv.Label); err != nil {
				ring.Close()
				return nil, err
			}
		}
	}

	return ring, nil
}

// CreateVersion registers a new key version as read-only. The key material
// must already be available from the supplier; strength validation happens in
// the ring before anything is persisted.
func (k *keyUseCase) CreateVersion(
	ctx context.Context,
	ring *cryptoDomain.KeyRing,
	supplier cryptoService.KeySupplier,
	label uint64,
	alg cryptoDomain.Algorithm,
) error {
	key, err := supplier.GetKey(ctx, label)
	if err != nil {
		return fmt.Errorf("key supply: %w", err)
	}

	if err := ring.Register(label, key, alg); err != nil {
		return err
	}

	kv := &cryptoDomain.KeyVersion{
		Label:     label,
		Algorithm: alg,
		Role:      cryptoDomain.RoleReadOnly,
	}
	if err := k.keyVersionRepo.Create(ctx, kv); err != nil {
		// Keep ring and durable state consistent on failure.
		_ = ring.Retire(label)
		_ = ring.Purge(label)
		return err
	}

	return nil
}

// PromoteWrite swaps the write-current role to label. Durable state and the
// in-memory ring change together: both role updates commit in one transaction
// before the ring pointer moves, so a crash between the two leaves the
// database authoritative for the next LoadRing.
func (k *keyUseCase) PromoteWrite(
	ctx context.Context,
	ring *cryptoDomain.KeyRing,
	label uint64,
) error {
	// Validate against the ring first: unknown or retired labels fail before
	// any durable mutation.
	if _, err := ring.ResolveForDecrypt(label); err != nil {
		return err
	}

	prev, hasPrev := ring.CurrentWriteLabel()
	if hasPrev && prev == label {
		return nil
	}

	err := k.txManager.WithTx(ctx, func(ctx context.Context) error {
		if hasPrev {
			if err := k.keyVersionRepo.UpdateRole(ctx, prev, cryptoDomain.RoleReadOnly); err != nil {
				return err
			}
		}
		return k.keyVersionRepo.UpdateRole(ctx, label, cryptoDomain.RoleWriteCurrent)
	})
	if err != nil {
		return err
	}

	return ring.SetCurrentWrite(label)
}

// Retire marks a version retired once it is provably unused: no outstanding
// rotation job names it as source and no encrypted row still carries it.
func (k *keyUseCase) Retire(
	ctx context.Context,
	ring *cryptoDomain.KeyRing,
	label uint64,
) error {
	kv, err := ring.ResolveForDecrypt(label)
	if err != nil {
		return err
	}
	if kv.Role == cryptoDomain.RoleWriteCurrent {
		return fmt.Errorf(
			"%w: cannot retire the write-current version %d",
			cryptoDomain.ErrKeyRetired, label,
		)
	}

	outstanding, err := k.rotationChecker.HasActiveJobWithSource(ctx, label)
	if err != nil {
		return err
	}
	if outstanding {
		return fmt.Errorf(
			"%w: rotation job with source version %d is outstanding",
			apperrors.ErrConflict, label,
		)
	}

	remaining, err := k.recordCounter.CountByVersion(ctx, label)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return fmt.Errorf(
			"%w: %d rows still encrypted under version %d",
			apperrors.ErrConflict, remaining, label,
		)
	}

	if err := k.keyVersionRepo.UpdateRole(ctx, label, cryptoDomain.RoleRetired); err != nil {
		return err
	}

	return ring.Retire(label)
}
