// Package http provides HTTP handlers for patient record operations.
// Protected field values are encrypted before they reach storage and
// decrypted on the way out.
package http

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	"github.com/medvault/phivault/internal/httputil"
	"github.com/medvault/phivault/internal/records/http/dto"
	recordsUseCase "github.com/medvault/phivault/internal/records/usecase"
	customValidation "github.com/medvault/phivault/internal/validation"
)

// RecordHandler handles HTTP requests for patient record operations.
type RecordHandler struct {
	recordUseCase recordsUseCase.RecordUseCase
	logger        *slog.Logger
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(recordUseCase recordsUseCase.RecordUseCase, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{
		recordUseCase: recordUseCase,
		logger:        logger,
	}
}

// CreateHandler stores a new patient record with its field value encrypted.
// POST /v1/records
// Returns 201 Created with record metadata (excludes the field value).
func (h *RecordHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateRecordRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid patient_id: must be a valid UUID"),
			h.logger,
		)
		return
	}

	value, err := base64.StdEncoding.DecodeString(req.Value)
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid base64 value: %w", err),
			h.logger,
		)
		return
	}

	record, err := h.recordUseCase.Create(c.Request.Context(), patientID, req.Name, string(value))
	cryptoDomain.Zero(value)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := dto.MapRecordToCreateResponse(record)
	c.JSON(http.StatusCreated, response)
}

// GetHandler retrieves a record and decrypts its field value.
// GET /v1/records/:id
// Returns 200 OK with the base64-encoded plaintext value.
func (h *RecordHandler) GetHandler(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid id parameter: must be a positive integer"),
			h.logger,
		)
		return
	}

	record, err := h.recordUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := dto.MapRecordToGetResponse(record)
	c.JSON(http.StatusOK, response)
}
