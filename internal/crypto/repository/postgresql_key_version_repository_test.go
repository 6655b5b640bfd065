package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	apperrors "github.com/medvault/phivault/internal/errors"
)

func TestPostgreSQLKeyVersionRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgreSQLKeyVersionRepository(db)

	mock.ExpectExec("INSERT INTO key_versions").
		WithArgs(uint64(1), cryptoDomain.AESGCM, cryptoDomain.RoleReadOnly).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Create(context.Background(), &cryptoDomain.KeyVersion{
		Label:     1,
		Algorithm: cryptoDomain.AESGCM,
		Role:      cryptoDomain.RoleReadOnly,
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLKeyVersionRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgreSQLKeyVersionRepository(db)
	activated := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"label", "algorithm", "role", "activated_at"}).
		AddRow(uint64(1), string(cryptoDomain.AESGCM), string(cryptoDomain.RoleReadOnly), nil).
		AddRow(uint64(2), string(cryptoDomain.ChaCha20), string(cryptoDomain.RoleWriteCurrent), activated)

	mock.ExpectQuery("SELECT label, algorithm, role, activated_at FROM key_versions").
		WillReturnRows(rows)

	versions, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, versions, 2)

	assert.Equal(t, uint64(1), versions[0].Label)
	assert.Equal(t, cryptoDomain.RoleReadOnly, versions[0].Role)
	assert.True(t, versions[0].ActivatedAt.IsZero())

	assert.Equal(t, uint64(2), versions[1].Label)
	assert.Equal(t, cryptoDomain.RoleWriteCurrent, versions[1].Role)
	assert.Equal(t, activated, versions[1].ActivatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLKeyVersionRepository_UpdateRole(t *testing.T) {
	t.Run("updates existing version", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewPostgreSQLKeyVersionRepository(db)

		mock.ExpectExec("UPDATE key_versions").
			WithArgs(cryptoDomain.RoleWriteCurrent, uint64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.UpdateRole(context.Background(), 2, cryptoDomain.RoleWriteCurrent)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown label returns not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewPostgreSQLKeyVersionRepository(db)

		mock.ExpectExec("UPDATE key_versions").
			WithArgs(cryptoDomain.RoleRetired, uint64(9)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.UpdateRole(context.Background(), 9, cryptoDomain.RoleRetired)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgreSQLKeyVersionRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostgreSQLKeyVersionRepository(db)

	mock.ExpectExec("DELETE FROM key_versions").
		WithArgs(uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}
