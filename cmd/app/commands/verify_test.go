package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	apperrors "github.com/medvault/phivault/internal/errors"
)

type fakeKeyVersionRepo struct {
	versions []*cryptoDomain.KeyVersion
	listErr  error
}

func (f *fakeKeyVersionRepo) Create(_ context.Context, _ *cryptoDomain.KeyVersion) error {
	return nil
}

func (f *fakeKeyVersionRepo) List(_ context.Context) ([]*cryptoDomain.KeyVersion, error) {
	return f.versions, f.listErr
}

func (f *fakeKeyVersionRepo) UpdateRole(_ context.Context, _ uint64, _ cryptoDomain.KeyRole) error {
	return nil
}

func (f *fakeKeyVersionRepo) Delete(_ context.Context, _ uint64) error {
	return nil
}

type fakeRecordCounter struct {
	counts map[uint64]int64
}

func (f *fakeRecordCounter) CountByVersion(_ context.Context, label uint64) (int64, error) {
	return f.counts[label], nil
}

func TestRunVerify(t *testing.T) {
	repo := &fakeKeyVersionRepo{versions: []*cryptoDomain.KeyVersion{
		{Label: 1, Algorithm: cryptoDomain.AESGCM, Role: cryptoDomain.RoleReadOnly},
		{Label: 2, Algorithm: cryptoDomain.ChaCha20, Role: cryptoDomain.RoleWriteCurrent},
	}}
	counter := &fakeRecordCounter{counts: map[uint64]int64{1: 0, 2: 42}}

	var buf bytes.Buffer
	require.NoError(t, RunVerify(context.Background(), repo, counter, &buf))

	assert.Equal(t, "v1\tread-only\t0 rows\nv2\twrite-current\t42 rows\n", buf.String())
}

func TestRunVerifyListError(t *testing.T) {
	repo := &fakeKeyVersionRepo{listErr: apperrors.New("database unavailable")}

	var buf bytes.Buffer
	err := RunVerify(context.Background(), repo, &fakeRecordCounter{}, &buf)
	require.Error(t, err)
	assert.Empty(t, buf.String())
}
