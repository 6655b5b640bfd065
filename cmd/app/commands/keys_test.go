package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	cryptoService "github.com/medvault/phivault/internal/crypto/service"
	apperrors "github.com/medvault/phivault/internal/errors"
)

type fakeSupplier struct {
	keys map[uint64][]byte
}

func (f *fakeSupplier) GetKey(_ context.Context, label uint64) ([]byte, error) {
	key, ok := f.keys[label]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "key material not found")
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

type fakeKeyUseCase struct {
	createErr  error
	promoteErr error
	retireErr  error
}

func (f *fakeKeyUseCase) LoadRing(
	_ context.Context,
	_ cryptoService.KeySupplier,
) (*cryptoDomain.KeyRing, error) {
	return nil, nil
}

func (f *fakeKeyUseCase) CreateVersion(
	ctx context.Context,
	ring *cryptoDomain.KeyRing,
	supplier cryptoService.KeySupplier,
	label uint64,
	alg cryptoDomain.Algorithm,
) error {
	if f.createErr != nil {
		return f.createErr
	}
	key, err := supplier.GetKey(ctx, label)
	if err != nil {
		return err
	}
	return ring.Register(label, key, alg)
}

func (f *fakeKeyUseCase) PromoteWrite(_ context.Context, ring *cryptoDomain.KeyRing, label uint64) error {
	if f.promoteErr != nil {
		return f.promoteErr
	}
	return ring.SetCurrentWrite(label)
}

func (f *fakeKeyUseCase) Retire(_ context.Context, ring *cryptoDomain.KeyRing, label uint64) error {
	if f.retireErr != nil {
		return f.retireErr
	}
	return ring.Retire(label)
}

func testKey(fill byte) []byte {
	key := make([]byte, cryptoDomain.KeySize)
	for i := range key {
		key[i] = fill + byte(i)
	}
	return key
}

func newTestRing(t *testing.T) *cryptoDomain.KeyRing {
	t.Helper()

	ring := cryptoDomain.NewKeyRing(0.25)
	require.NoError(t, ring.Register(1, testKey(10), cryptoDomain.AESGCM))
	require.NoError(t, ring.Register(2, testKey(70), cryptoDomain.ChaCha20))
	require.NoError(t, ring.SetCurrentWrite(1))
	t.Cleanup(ring.Close)

	return ring
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunCreateKey(t *testing.T) {
	ctx := context.Background()

	t.Run("registers a new version", func(t *testing.T) {
		ring := newTestRing(t)
		supplier := &fakeSupplier{keys: map[uint64][]byte{3: testKey(130)}}

		err := RunCreateKey(ctx, &fakeKeyUseCase{}, ring, supplier, testLogger(), 3, "chacha20-poly1305")
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.RoleReadOnly, ring.Labels()[3])
	})

	t.Run("rejects unknown algorithm", func(t *testing.T) {
		ring := newTestRing(t)
		supplier := &fakeSupplier{keys: map[uint64][]byte{3: testKey(130)}}

		err := RunCreateKey(ctx, &fakeKeyUseCase{}, ring, supplier, testLogger(), 3, "des")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid algorithm")
	})

	t.Run("fails when key material is missing", func(t *testing.T) {
		ring := newTestRing(t)
		supplier := &fakeSupplier{keys: map[uint64][]byte{}}

		err := RunCreateKey(ctx, &fakeKeyUseCase{}, ring, supplier, testLogger(), 3, "aes-gcm")
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestRunListKeys(t *testing.T) {
	ring := newTestRing(t)
	require.NoError(t, ring.Retire(2))

	var buf bytes.Buffer
	require.NoError(t, RunListKeys(ring, &buf))

	assert.Equal(t, "v1\twrite-current\nv2\tretired\n", buf.String())
}

func TestRunPromoteKey(t *testing.T) {
	ctx := context.Background()

	t.Run("switches the write-current version", func(t *testing.T) {
		ring := newTestRing(t)

		require.NoError(t, RunPromoteKey(ctx, &fakeKeyUseCase{}, ring, testLogger(), 2))

		label, ok := ring.CurrentWriteLabel()
		require.True(t, ok)
		assert.Equal(t, uint64(2), label)
	})

	t.Run("propagates use case errors", func(t *testing.T) {
		ring := newTestRing(t)
		useCase := &fakeKeyUseCase{promoteErr: apperrors.Wrap(apperrors.ErrConflict, "rotation in progress")}

		err := RunPromoteKey(ctx, useCase, ring, testLogger(), 2)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}

func TestRunRetireKey(t *testing.T) {
	ctx := context.Background()

	t.Run("retires a read-only version", func(t *testing.T) {
		ring := newTestRing(t)

		require.NoError(t, RunRetireKey(ctx, &fakeKeyUseCase{}, ring, testLogger(), 2))
		assert.Equal(t, cryptoDomain.RoleRetired, ring.Labels()[2])
	})

	t.Run("propagates use case errors", func(t *testing.T) {
		ring := newTestRing(t)
		useCase := &fakeKeyUseCase{retireErr: apperrors.Wrap(apperrors.ErrConflict, "rows still carry this version")}

		err := RunRetireKey(ctx, useCase, ring, testLogger(), 2)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}
