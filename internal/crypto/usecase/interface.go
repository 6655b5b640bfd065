// Package usecase implements business logic for key-version lifecycle
// management: bootstrapping the key ring from durable state plus the external
// key supply, creating versions, promoting the write-current version and
// gating retirement.
package usecase

import (
	"context"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	cryptoService "github.com/medvault/phivault/internal/crypto/service"
)

// KeyVersionRepository defines persistence for key-version lifecycle state.
// Implementations must be transaction-aware via database.GetTx so role swaps
// during promotion commit atomically.
type KeyVersionRepository interface {
	// Create stores a new key version row (label, algorithm, role).
	Create(ctx context.Context, kv *cryptoDomain.KeyVersion) error

	// List retrieves all key versions ordered by label ascending.
	List(ctx context.Context) ([]*cryptoDomain.KeyVersion, error)

	// UpdateRole changes a key version's role, stamping activation time on
	// promotion to write-current.
	UpdateRole(ctx context.Context, label uint64, role cryptoDomain.KeyRole) error

	// Delete removes a purged key version row.
	Delete(ctx context.Context, label uint64) error
}

// RecordCounter reports how many encrypted rows still carry a given key
// version. Used to gate retirement and rotation completion.
type RecordCounter interface {
	CountByVersion(ctx context.Context, label uint64) (int64, error)
}

// RotationChecker reports whether a rotation job is still outstanding for a
// source version. Used to gate retirement.
type RotationChecker interface {
	HasActiveJobWithSource(ctx context.Context, label uint64) (bool, error)
}

// KeyUseCase orchestrates key-version lifecycle operations against the ring,
// the durable role state and the external key supply.
type KeyUseCase interface {
	// LoadRing builds a KeyRing from persisted version state and the key
	// supplier. Called at startup. A version whose key material is missing
	// from the supplier refuses startup unless the version is retired (its
	// material may already be purged).
	LoadRing(ctx context.Context, supplier cryptoService.KeySupplier) (*cryptoDomain.KeyRing, error)

	// CreateVersion registers a new key version: validates the supplied key
	// material, adds it to the ring as read-only and persists the state row.
	CreateVersion(
		ctx context.Context,
		ring *cryptoDomain.KeyRing,
		supplier cryptoService.KeySupplier,
		label uint64,
		alg cryptoDomain.Algorithm,
	) error

	// PromoteWrite atomically makes label the write-current version and
	// demotes the previous write-current version to read-only, in both the
	// durable state and the in-memory ring.
	PromoteWrite(ctx context.Context, ring *cryptoDomain.KeyRing, label uint64) error

	// Retire marks a version retired. Refused while a rotation job with this
	// version as source is outstanding or any row still carries the version.
	Retire(ctx context.Context, ring *cryptoDomain.KeyRing, label uint64) error
}
