// Package http provides HTTP handlers for rotation job control: starting,
// inspecting, pausing, resuming and aborting jobs, plus the audit trail.
// Jobs are driven by a separate worker process; the API only manages state.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	auditUseCase "github.com/medvault/phivault/internal/audit/usecase"
	"github.com/medvault/phivault/internal/httputil"
	"github.com/medvault/phivault/internal/rotation/http/dto"
	rotationUseCase "github.com/medvault/phivault/internal/rotation/usecase"
	customValidation "github.com/medvault/phivault/internal/validation"
)

// RotationHandler handles HTTP requests for rotation job operations.
type RotationHandler struct {
	rotationUseCase rotationUseCase.RotationUseCase
	eventRepo       auditUseCase.EventRepository
	logger          *slog.Logger
}

// NewRotationHandler creates a new rotation handler.
func NewRotationHandler(
	rotationUC rotationUseCase.RotationUseCase,
	eventRepo auditUseCase.EventRepository,
	logger *slog.Logger,
) *RotationHandler {
	return &RotationHandler{
		rotationUseCase: rotationUC,
		eventRepo:       eventRepo,
		logger:          logger,
	}
}

// StartHandler creates a pending rotation job and promotes the target version
// to write-current.
// POST /v1/rotations
// Returns 201 Created with the job state.
func (h *RotationHandler) StartHandler(c *gin.Context) {
	var req dto.StartRotationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	job, err := h.rotationUseCase.Start(c.Request.Context(), req.SourceVersion, req.TargetVersion)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapJobToResponse(job))
}

// StatusHandler returns a job's current state and counters.
// GET /v1/rotations/:id
func (h *RotationHandler) StatusHandler(c *gin.Context) {
	jobID, ok := h.parseJobID(c)
	if !ok {
		return
	}

	job, err := h.rotationUseCase.Status(c.Request.Context(), jobID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobToResponse(job))
}

// PauseHandler asks a running job to stop after its current batch.
// POST /v1/rotations/:id/pause
func (h *RotationHandler) PauseHandler(c *gin.Context) {
	h.transitionJob(c, h.rotationUseCase.Pause)
}

// ResumeHandler moves a paused job back to running so a worker can pick it up.
// POST /v1/rotations/:id/resume
func (h *RotationHandler) ResumeHandler(c *gin.Context) {
	h.transitionJob(c, h.rotationUseCase.Resume)
}

// AbortHandler rolls a job back and restores the source version as
// write-current. Already migrated rows stay readable via their embedded
// version label.
// POST /v1/rotations/:id/abort
func (h *RotationHandler) AbortHandler(c *gin.Context) {
	h.transitionJob(c, h.rotationUseCase.Abort)
}

// EventsHandler returns the job's audit trail with pagination.
// GET /v1/rotations/:id/events?offset=0&limit=50
func (h *RotationHandler) EventsHandler(c *gin.Context) {
	jobID, ok := h.parseJobID(c)
	if !ok {
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	events, err := h.eventRepo.ListByJob(c.Request.Context(), jobID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEventsToListResponse(events))
}

// transitionJob applies a state-changing operation and returns the refreshed
// job state.
func (h *RotationHandler) transitionJob(
	c *gin.Context,
	op func(ctx context.Context, jobID uuid.UUID) error,
) {
	jobID, ok := h.parseJobID(c)
	if !ok {
		return
	}

	if err := op(c.Request.Context(), jobID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	job, err := h.rotationUseCase.Status(c.Request.Context(), jobID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobToResponse(job))
}

// parseJobID extracts and validates the job id URL parameter. Writes the
// error response and returns false when invalid.
func (h *RotationHandler) parseJobID(c *gin.Context) (uuid.UUID, bool) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			fmt.Errorf("invalid id parameter: must be a valid UUID"),
			h.logger,
		)
		return uuid.Nil, false
	}
	return jobID, true
}
