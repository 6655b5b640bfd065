package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	"github.com/medvault/phivault/internal/crypto/http/dto"
	cryptoService "github.com/medvault/phivault/internal/crypto/service"
	apperrors "github.com/medvault/phivault/internal/errors"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

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

func newTestKeyHandler(t *testing.T, useCase *fakeKeyUseCase) (*KeyHandler, *cryptoDomain.KeyRing) {
	t.Helper()

	ring := cryptoDomain.NewKeyRing(0.25)
	require.NoError(t, ring.Register(1, testKey(10), cryptoDomain.AESGCM))
	require.NoError(t, ring.Register(2, testKey(70), cryptoDomain.ChaCha20))
	require.NoError(t, ring.SetCurrentWrite(1))
	t.Cleanup(ring.Close)

	supplier := &fakeSupplier{keys: map[uint64][]byte{3: testKey(130)}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewKeyHandler(useCase, ring, supplier, logger), ring
}

func newKeyRouter(handler *KeyHandler) *gin.Engine {
	router := gin.New()
	router.GET("/v1/keys", handler.ListHandler)
	router.POST("/v1/keys", handler.CreateHandler)
	router.POST("/v1/keys/:label/promote", handler.PromoteHandler)
	router.POST("/v1/keys/:label/retire", handler.RetireHandler)
	return router
}

func performJSONRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestKeyHandler_ListHandler(t *testing.T) {
	handler, _ := newTestKeyHandler(t, &fakeKeyUseCase{})
	router := newKeyRouter(handler)

	w := performJSONRequest(router, http.MethodGet, "/v1/keys", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.ListKeysResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Data, 2)
	assert.Equal(t, uint64(1), response.Data[0].Label)
	assert.Equal(t, "write-current", response.Data[0].Role)
	assert.Equal(t, uint64(2), response.Data[1].Label)
	assert.Equal(t, "read-only", response.Data[1].Role)
}

func TestKeyHandler_CreateHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, ring := newTestKeyHandler(t, &fakeKeyUseCase{})
		router := newKeyRouter(handler)

		w := performJSONRequest(router, http.MethodPost, "/v1/keys", gin.H{
			"label":     3,
			"algorithm": "aes-gcm",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, cryptoDomain.RoleReadOnly, ring.Labels()[3])
	})

	t.Run("Error_UnknownAlgorithm", func(t *testing.T) {
		handler, _ := newTestKeyHandler(t, &fakeKeyUseCase{})
		router := newKeyRouter(handler)

		w := performJSONRequest(router, http.MethodPost, "/v1/keys", gin.H{
			"label":     3,
			"algorithm": "rot13",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_MissingKeyMaterial", func(t *testing.T) {
		handler, _ := newTestKeyHandler(t, &fakeKeyUseCase{})
		router := newKeyRouter(handler)

		w := performJSONRequest(router, http.MethodPost, "/v1/keys", gin.H{
			"label":     9,
			"algorithm": "aes-gcm",
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestKeyHandler_PromoteHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, ring := newTestKeyHandler(t, &fakeKeyUseCase{})
		router := newKeyRouter(handler)

		w := performJSONRequest(router, http.MethodPost, "/v1/keys/2/promote", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		current, ok := ring.CurrentWriteLabel()
		require.True(t, ok)
		assert.Equal(t, uint64(2), current)
	})

	t.Run("Error_InvalidLabel", func(t *testing.T) {
		handler, _ := newTestKeyHandler(t, &fakeKeyUseCase{})
		router := newKeyRouter(handler)

		w := performJSONRequest(router, http.MethodPost, "/v1/keys/zero/promote", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_Conflict", func(t *testing.T) {
		useCase := &fakeKeyUseCase{promoteErr: apperrors.Wrap(apperrors.ErrConflict, "rotation in progress")}
		handler, _ := newTestKeyHandler(t, useCase)
		router := newKeyRouter(handler)

		w := performJSONRequest(router, http.MethodPost, "/v1/keys/2/promote", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestKeyHandler_RetireHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, ring := newTestKeyHandler(t, &fakeKeyUseCase{})
		router := newKeyRouter(handler)

		w := performJSONRequest(router, http.MethodPost, "/v1/keys/2/retire", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, cryptoDomain.RoleRetired, ring.Labels()[2])
	})

	t.Run("Error_RowsStillEncrypted", func(t *testing.T) {
		useCase := &fakeKeyUseCase{retireErr: apperrors.Wrap(apperrors.ErrConflict, "rows still carry version")}
		handler, _ := newTestKeyHandler(t, useCase)
		router := newKeyRouter(handler)

		w := performJSONRequest(router, http.MethodPost, "/v1/keys/2/retire", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
