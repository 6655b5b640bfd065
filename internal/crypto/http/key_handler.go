// Package http provides HTTP handlers for key version lifecycle operations:
// listing, registering, promoting and retiring field-encryption key versions.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	"github.com/medvault/phivault/internal/crypto/http/dto"
	cryptoService "github.com/medvault/phivault/internal/crypto/service"
	cryptoUseCase "github.com/medvault/phivault/internal/crypto/usecase"
	"github.com/medvault/phivault/internal/httputil"
	customValidation "github.com/medvault/phivault/internal/validation"
)

// KeyHandler handles HTTP requests for key version lifecycle operations.
type KeyHandler struct {
	keyUseCase cryptoUseCase.KeyUseCase
	ring       *cryptoDomain.KeyRing
	supplier   cryptoService.KeySupplier
	logger     *slog.Logger
}

// NewKeyHandler creates a new key handler.
func NewKeyHandler(
	keyUseCase cryptoUseCase.KeyUseCase,
	ring *cryptoDomain.KeyRing,
	supplier cryptoService.KeySupplier,
	logger *slog.Logger,
) *KeyHandler {
	return &KeyHandler{
		keyUseCase: keyUseCase,
		ring:       ring,
		supplier:   supplier,
		logger:     logger,
	}
}

// ListHandler returns the registered key versions with their roles.
// GET /v1/keys
func (h *KeyHandler) ListHandler(c *gin.Context) {
	response := dto.MapLabelsToListResponse(h.ring.Labels())
	c.JSON(http.StatusOK, response)
}

// CreateHandler registers a new key version as read-only.
// POST /v1/keys
// Returns 201 Created. The key material must already exist in the key supplier.
func (h *KeyHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateKeyRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	alg := cryptoDomain.Algorithm(req.Algorithm)
	if err := h.keyUseCase.CreateVersion(c.Request.Context(), h.ring, h.supplier, req.Label, alg); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.KeyResponse{
		Label:     req.Label,
		Algorithm: req.Algorithm,
		Role:      string(cryptoDomain.RoleReadOnly),
	})
}

// PromoteHandler makes a key version the write-current one.
// POST /v1/keys/:label/promote
func (h *KeyHandler) PromoteHandler(c *gin.Context) {
	label, ok := h.parseLabel(c)
	if !ok {
		return
	}

	if err := h.keyUseCase.PromoteWrite(c.Request.Context(), h.ring, label); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.KeyResponse{
		Label: label,
		Role:  string(cryptoDomain.RoleWriteCurrent),
	})
}

// RetireHandler retires a key version. Refused while rows or an active
// rotation job still reference it.
// POST /v1/keys/:label/retire
func (h *KeyHandler) RetireHandler(c *gin.Context) {
	label, ok := h.parseLabel(c)
	if !ok {
		return
	}

	if err := h.keyUseCase.Retire(c.Request.Context(), h.ring, label); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.KeyResponse{
		Label: label,
		Role:  string(cryptoDomain.RoleRetired),
	})
}

// parseLabel extracts and validates the label URL parameter. Writes the error
// response and returns false when invalid.
func (h *KeyHandler) parseLabel(c *gin.Context) (uint64, bool) {
	label, err := strconv.ParseUint(c.Param("label"), 10, 64)
	if err != nil || label < 1 {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid label parameter: must be a positive integer"),
			h.logger,
		)
		return 0, false
	}
	return label, true
}
