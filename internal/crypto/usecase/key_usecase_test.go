package usecase

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	apperrors "github.com/medvault/phivault/internal/errors"
)

type fakeTxManager struct{}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeKeyVersionRepo struct {
	versions  []*cryptoDomain.KeyVersion
	createErr error
	roles     map[uint64]cryptoDomain.KeyRole
}

func newFakeKeyVersionRepo(versions ...*cryptoDomain.KeyVersion) *fakeKeyVersionRepo {
	return &fakeKeyVersionRepo{versions: versions, roles: make(map[uint64]cryptoDomain.KeyRole)}
}

func (f *fakeKeyVersionRepo) Create(_ context.Context, kv *cryptoDomain.KeyVersion) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.versions = append(f.versions, kv)
	return nil
}

func (f *fakeKeyVersionRepo) List(_ context.Context) ([]*cryptoDomain.KeyVersion, error) {
	return f.versions, nil
}

func (f *fakeKeyVersionRepo) UpdateRole(_ context.Context, label uint64, role cryptoDomain.KeyRole) error {
	f.roles[label] = role
	return nil
}

func (f *fakeKeyVersionRepo) Delete(_ context.Context, label uint64) error {
	return nil
}

type fakeSupplier struct {
	keys map[uint64][]byte
}

func (f *fakeSupplier) GetKey(_ context.Context, label uint64) ([]byte, error) {
	key, ok := f.keys[label]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "key material")
	}
	return key, nil
}

func (f *fakeSupplier) ListVersions(_ context.Context) ([]uint64, error) {
	labels := make([]uint64, 0, len(f.keys))
	for label := range f.keys {
		labels = append(labels, label)
	}
	return labels, nil
}

type fakeRecordCounter struct {
	counts map[uint64]int64
}

func (f *fakeRecordCounter) CountByVersion(_ context.Context, label uint64) (int64, error) {
	return f.counts[label], nil
}

type fakeRotationChecker struct {
	active map[uint64]bool
}

func (f *fakeRotationChecker) HasActiveJobWithSource(_ context.Context, label uint64) (bool, error) {
	return f.active[label], nil
}

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, cryptoDomain.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestKeyUseCase_LoadRing(t *testing.T) {
	ctx := context.Background()

	t.Run("rebuilds roles from durable state", func(t *testing.T) {
		repo := newFakeKeyVersionRepo(
			&cryptoDomain.KeyVersion{Label: 1, Algorithm: cryptoDomain.AESGCM, Role: cryptoDomain.RoleReadOnly},
			&cryptoDomain.KeyVersion{Label: 2, Algorithm: cryptoDomain.AESGCM, Role: cryptoDomain.RoleWriteCurrent},
		)
		supplier := &fakeSupplier{keys: map[uint64][]byte{1: testKey(t), 2: testKey(t)}}
		uc := NewKeyUseCase(&fakeTxManager{}, repo, &fakeRecordCounter{}, &fakeRotationChecker{}, 0.25)

		ring, err := uc.LoadRing(ctx, supplier)
		require.NoError(t, err)
		defer ring.Close()

		label, ok := ring.CurrentWriteLabel()
		require.True(t, ok)
		assert.Equal(t, uint64(2), label)

		kv, err := ring.ResolveForDecrypt(1)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.RoleReadOnly, kv.Role)
	})

	t.Run("retired version with purged material is skipped", func(t *testing.T) {
		repo := newFakeKeyVersionRepo(
			&cryptoDomain.KeyVersion{Label: 1, Algorithm: cryptoDomain.AESGCM, Role: cryptoDomain.RoleRetired},
			&cryptoDomain.KeyVersion{Label: 2, Algorithm: cryptoDomain.AESGCM, Role: cryptoDomain.RoleWriteCurrent},
		)
		supplier := &fakeSupplier{keys: map[uint64][]byte{2: testKey(t)}}
		uc := NewKeyUseCase(&fakeTxManager{}, repo, &fakeRecordCounter{}, &fakeRotationChecker{}, 0.25)

		ring, err := uc.LoadRing(ctx, supplier)
		require.NoError(t, err)
		defer ring.Close()

		_, err = ring.ResolveForDecrypt(1)
		assert.ErrorIs(t, err, cryptoDomain.ErrUnknownVersion)
	})

	t.Run("missing material for live version refuses startup", func(t *testing.T) {
		repo := newFakeKeyVersionRepo(
			&cryptoDomain.KeyVersion{Label: 1, Algorithm: cryptoDomain.AESGCM, Role: cryptoDomain.RoleWriteCurrent},
		)
		supplier := &fakeSupplier{keys: map[uint64][]byte{}}
		uc := NewKeyUseCase(&fakeTxManager{}, repo, &fakeRecordCounter{}, &fakeRotationChecker{}, 0.25)

		_, err := uc.LoadRing(ctx, supplier)
		assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	})

	t.Run("retired version with surviving material still decrypts", func(t *testing.T) {
		repo := newFakeKeyVersionRepo(
			&cryptoDomain.KeyVersion{Label: 1, Algorithm: cryptoDomain.AESGCM, Role: cryptoDomain.RoleRetired},
			&cryptoDomain.KeyVersion{Label: 2, Algorithm: cryptoDomain.AESGCM, Role: cryptoDomain.RoleWriteCurrent},
		)
		supplier := &fakeSupplier{keys: map[uint64][]byte{1: testKey(t), 2: testKey(t)}}
		uc := NewKeyUseCase(&fakeTxManager{}, repo, &fakeRecordCounter{}, &fakeRotationChecker{}, 0.25)

		ring, err := uc.LoadRing(ctx, supplier)
		require.NoError(t, err)
		defer ring.Close()

		kv, err := ring.ResolveForDecrypt(1)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.RoleRetired, kv.Role)
	})
}

func TestKeyUseCase_CreateVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("registers and persists as read-only", func(t *testing.T) {
		repo := newFakeKeyVersionRepo()
		supplier := &fakeSupplier{keys: map[uint64][]byte{3: testKey(t)}}
		uc := NewKeyUseCase(&fakeTxManager{}, repo, &fakeRecordCounter{}, &fakeRotationChecker{}, 0.25)
		ring := cryptoDomain.NewKeyRing(0.25)
		defer ring.Close()

		err := uc.CreateVersion(ctx, ring, supplier, 3, cryptoDomain.AESGCM)
		require.NoError(t, err)

		require.Len(t, repo.versions, 1)
		assert.Equal(t, cryptoDomain.RoleReadOnly, repo.versions[0].Role)

		kv, err := ring.ResolveForDecrypt(3)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.RoleReadOnly, kv.Role)
	})

	t.Run("missing material fails", func(t *testing.T) {
		repo := newFakeKeyVersionRepo()
		supplier := &fakeSupplier{keys: map[uint64][]byte{}}
		uc := NewKeyUseCase(&fakeTxManager{}, repo, &fakeRecordCounter{}, &fakeRotationChecker{}, 0.25)
		ring := cryptoDomain.NewKeyRing(0.25)
		defer ring.Close()

		err := uc.CreateVersion(ctx, ring, supplier, 3, cryptoDomain.AESGCM)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("weak key is rejected before persisting", func(t *testing.T) {
		repo := newFakeKeyVersionRepo()
		supplier := &fakeSupplier{keys: map[uint64][]byte{3: make([]byte, cryptoDomain.KeySize)}}
		uc := NewKeyUseCase(&fakeTxManager{}, repo, &fakeRecordCounter{}, &fakeRotationChecker{}, 0.25)
		ring := cryptoDomain.NewKeyRing(0.25)
		defer ring.Close()

		err := uc.CreateVersion(ctx, ring, supplier, 3, cryptoDomain.AESGCM)
		assert.ErrorIs(t, err, cryptoDomain.ErrWeakKey)
		assert.Empty(t, repo.versions)
	})

	t.Run("persist failure rolls the ring back", func(t *testing.T) {
		repo := newFakeKeyVersionRepo()
		repo.createErr = apperrors.ErrConflict
		supplier := &fakeSupplier{keys: map[uint64][]byte{3: testKey(t)}}
		uc := NewKeyUseCase(&fakeTxManager{}, repo, &fakeRecordCounter{}, &fakeRotationChecker{}, 0.25)
		ring := cryptoDomain.NewKeyRing(0.25)
		defer ring.Close()

		err := uc.CreateVersion(ctx, ring, supplier, 3, cryptoDomain.AESGCM)
		assert.ErrorIs(t, err, apperrors.ErrConflict)

		_, err = ring.ResolveForDecrypt(3)
		assert.ErrorIs(t, err, cryptoDomain.ErrUnknownVersion)
	})
}

func TestKeyUseCase_PromoteWrite(t *testing.T) {
	ctx := context.Background()

	newRing := func(t *testing.T) *cryptoDomain.KeyRing {
		t.Helper()
		ring := cryptoDomain.NewKeyRing(0.25)
		require.NoError(t, ring.Register(1, testKey(t), cryptoDomain.AESGCM))
		require.NoError(t, ring.Register(2, testKey(t), cryptoDomain.AESGCM))
		require.NoError(t, ring.SetCurrentWrite(1))
		return ring
	}

	t.Run("swaps roles durably and in memory", func(t *testing.T) {
		repo := newFakeKeyVersionRepo()
		uc := NewKeyUseCase(&fakeTxManager{}, repo, &fakeRecordCounter{}, &fakeRotationChecker{}, 0.25)
		ring := newRing(t)
		defer ring.Close()

		require.NoError(t, uc.PromoteWrite(ctx, ring, 2))

		label, ok := ring.CurrentWriteLabel()
		require.True(t, ok)
		assert.Equal(t, uint64(2), label)
		assert.Equal(t, cryptoDomain.RoleReadOnly, repo.roles[1])
		assert.Equal(t, cryptoDomain.RoleWriteCurrent, repo.roles[2])
	})

	t.Run("promoting the current version is a no-op", func(t *testing.T) {
		repo := newFakeKeyVersionRepo()
		uc := NewKeyUseCase(&fakeTxManager{}, repo, &fakeRecordCounter{}, &fakeRotationChecker{}, 0.25)
		ring := newRing(t)
		defer ring.Close()

		require.NoError(t, uc.PromoteWrite(ctx, ring, 1))
		assert.Empty(t, repo.roles)
	})

	t.Run("unknown version fails", func(t *testing.T) {
		repo := newFakeKeyVersionRepo()
		uc := NewKeyUseCase(&fakeTxManager{}, repo, &fakeRecordCounter{}, &fakeRotationChecker{}, 0.25)
		ring := newRing(t)
		defer ring.Close()

		err := uc.PromoteWrite(ctx, ring, 9)
		assert.ErrorIs(t, err, cryptoDomain.ErrUnknownVersion)
	})

	t.Run("retired version is refused", func(t *testing.T) {
		repo := newFakeKeyVersionRepo()
		uc := NewKeyUseCase(&fakeTxManager{}, repo, &fakeRecordCounter{}, &fakeRotationChecker{}, 0.25)
		ring := newRing(t)
		defer ring.Close()
		require.NoError(t, ring.Retire(2))

		err := uc.PromoteWrite(ctx, ring, 2)
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyRetired)
	})
}

func TestKeyUseCase_Retire(t *testing.T) {
	ctx := context.Background()

	newRing := func(t *testing.T) *cryptoDomain.KeyRing {
		t.Helper()
		ring := cryptoDomain.NewKeyRing(0.25)
		require.NoError(t, ring.Register(1, testKey(t), cryptoDomain.AESGCM))
		require.NoError(t, ring.Register(2, testKey(t), cryptoDomain.AESGCM))
		require.NoError(t, ring.SetCurrentWrite(2))
		return ring
	}

	t.Run("retires an unused version", func(t *testing.T) {
		repo := newFakeKeyVersionRepo()
		counter := &fakeRecordCounter{counts: map[uint64]int64{}}
		checker := &fakeRotationChecker{active: map[uint64]bool{}}
		uc := NewKeyUseCase(&fakeTxManager{}, repo, counter, checker, 0.25)
		ring := newRing(t)
		defer ring.Close()

		require.NoError(t, uc.Retire(ctx, ring, 1))
		assert.Equal(t, cryptoDomain.RoleRetired, repo.roles[1])

		kv, err := ring.ResolveForDecrypt(1)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.RoleRetired, kv.Role)
	})

	t.Run("refused while rows still carry the version", func(t *testing.T) {
		repo := newFakeKeyVersionRepo()
		counter := &fakeRecordCounter{counts: map[uint64]int64{1: 42}}
		checker := &fakeRotationChecker{active: map[uint64]bool{}}
		uc := NewKeyUseCase(&fakeTxManager{}, repo, counter, checker, 0.25)
		ring := newRing(t)
		defer ring.Close()

		err := uc.Retire(ctx, ring, 1)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Empty(t, repo.roles)
	})

	t.Run("refused while a rotation job is outstanding", func(t *testing.T) {
		repo := newFakeKeyVersionRepo()
		counter := &fakeRecordCounter{counts: map[uint64]int64{}}
		checker := &fakeRotationChecker{active: map[uint64]bool{1: true}}
		uc := NewKeyUseCase(&fakeTxManager{}, repo, counter, checker, 0.25)
		ring := newRing(t)
		defer ring.Close()

		err := uc.Retire(ctx, ring, 1)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("write-current version cannot be retired", func(t *testing.T) {
		repo := newFakeKeyVersionRepo()
		counter := &fakeRecordCounter{counts: map[uint64]int64{}}
		checker := &fakeRotationChecker{active: map[uint64]bool{}}
		uc := NewKeyUseCase(&fakeTxManager{}, repo, counter, checker, 0.25)
		ring := newRing(t)
		defer ring.Close()

		err := uc.Retire(ctx, ring, 2)
		assert.ErrorIs(t, err, cryptoDomain.ErrKeyRetired)
	})
}
