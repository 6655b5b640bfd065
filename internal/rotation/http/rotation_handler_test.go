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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/medvault/phivault/internal/audit/domain"
	apperrors "github.com/medvault/phivault/internal/errors"
	rotationDomain "github.com/medvault/phivault/internal/rotation/domain"
	"github.com/medvault/phivault/internal/rotation/http/dto"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeRotationUseCase struct {
	jobs     map[uuid.UUID]*rotationDomain.RotationJob
	startErr error
}

func newFakeRotationUseCase() *fakeRotationUseCase {
	return &fakeRotationUseCase{jobs: make(map[uuid.UUID]*rotationDomain.RotationJob)}
}

func (f *fakeRotationUseCase) Start(
	_ context.Context,
	sourceVersion, targetVersion uint64,
) (*rotationDomain.RotationJob, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	job, err := rotationDomain.NewRotationJob(sourceVersion, targetVersion, 100)
	if err != nil {
		return nil, err
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeRotationUseCase) Run(_ context.Context, _ uuid.UUID) error { return nil }

func (f *fakeRotationUseCase) Status(_ context.Context, jobID uuid.UUID) (*rotationDomain.RotationJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "rotation job not found")
	}
	return job, nil
}

func (f *fakeRotationUseCase) Pause(_ context.Context, jobID uuid.UUID) error {
	return f.transition(jobID, rotationDomain.JobStatusPaused)
}

func (f *fakeRotationUseCase) Resume(_ context.Context, jobID uuid.UUID) error {
	return f.transition(jobID, rotationDomain.JobStatusRunning)
}

func (f *fakeRotationUseCase) Abort(_ context.Context, jobID uuid.UUID) error {
	return f.transition(jobID, rotationDomain.JobStatusRolledBack)
}

func (f *fakeRotationUseCase) transition(jobID uuid.UUID, to rotationDomain.JobStatus) error {
	job, ok := f.jobs[jobID]
	if !ok {
		return apperrors.Wrap(apperrors.ErrNotFound, "rotation job not found")
	}
	return job.Transition(to)
}

type fakeEventRepo struct {
	events []*auditDomain.Event
}

func (f *fakeEventRepo) Create(_ context.Context, event *auditDomain.Event) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEventRepo) ListByJob(
	_ context.Context,
	jobID uuid.UUID,
	offset, limit int,
) ([]*auditDomain.Event, error) {
	var out []*auditDomain.Event
	for _, event := range f.events {
		if event.JobID == jobID {
			out = append(out, event)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func newTestRotationHandler() (*RotationHandler, *fakeRotationUseCase, *fakeEventRepo) {
	useCase := newFakeRotationUseCase()
	eventRepo := &fakeEventRepo{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRotationHandler(useCase, eventRepo, logger), useCase, eventRepo
}

func newRotationRouter(handler *RotationHandler) *gin.Engine {
	router := gin.New()
	router.POST("/v1/rotations", handler.StartHandler)
	router.GET("/v1/rotations/:id", handler.StatusHandler)
	router.POST("/v1/rotations/:id/pause", handler.PauseHandler)
	router.POST("/v1/rotations/:id/resume", handler.ResumeHandler)
	router.POST("/v1/rotations/:id/abort", handler.AbortHandler)
	router.GET("/v1/rotations/:id/events", handler.EventsHandler)
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

func startJob(t *testing.T, router *gin.Engine) dto.RotationJobResponse {
	t.Helper()

	w := performJSONRequest(router, http.MethodPost, "/v1/rotations", gin.H{
		"source_version": 1,
		"target_version": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var response dto.RotationJobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestRotationHandler_StartHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, _, _ := newTestRotationHandler()
		router := newRotationRouter(handler)

		response := startJob(t, router)

		assert.Equal(t, uint64(1), response.SourceVersion)
		assert.Equal(t, uint64(2), response.TargetVersion)
		assert.Equal(t, "pending", response.Status)
	})

	t.Run("Error_MissingVersions", func(t *testing.T) {
		handler, _, _ := newTestRotationHandler()
		router := newRotationRouter(handler)

		w := performJSONRequest(router, http.MethodPost, "/v1/rotations", gin.H{})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_SameSourceAndTarget", func(t *testing.T) {
		handler, _, _ := newTestRotationHandler()
		router := newRotationRouter(handler)

		w := performJSONRequest(router, http.MethodPost, "/v1/rotations", gin.H{
			"source_version": 1,
			"target_version": 1,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_ActiveJobConflict", func(t *testing.T) {
		handler, useCase, _ := newTestRotationHandler()
		useCase.startErr = apperrors.Wrap(apperrors.ErrConflict, "job already active for source version")
		router := newRotationRouter(handler)

		w := performJSONRequest(router, http.MethodPost, "/v1/rotations", gin.H{
			"source_version": 1,
			"target_version": 2,
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestRotationHandler_StatusHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, _, _ := newTestRotationHandler()
		router := newRotationRouter(handler)
		job := startJob(t, router)

		w := performJSONRequest(router, http.MethodGet, "/v1/rotations/"+job.ID, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.RotationJobResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, job.ID, response.ID)
		assert.Equal(t, int64(100), response.TotalRows)
	})

	t.Run("Error_InvalidID", func(t *testing.T) {
		handler, _, _ := newTestRotationHandler()
		router := newRotationRouter(handler)

		w := performJSONRequest(router, http.MethodGet, "/v1/rotations/not-a-uuid", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		handler, _, _ := newTestRotationHandler()
		router := newRotationRouter(handler)

		w := performJSONRequest(router, http.MethodGet, "/v1/rotations/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRotationHandler_Lifecycle(t *testing.T) {
	t.Run("PauseAndResume", func(t *testing.T) {
		handler, useCase, _ := newTestRotationHandler()
		router := newRotationRouter(handler)
		job := startJob(t, router)

		jobID := uuid.MustParse(job.ID)
		require.NoError(t, useCase.jobs[jobID].Transition(rotationDomain.JobStatusRunning))

		w := performJSONRequest(router, http.MethodPost, "/v1/rotations/"+job.ID+"/pause", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"paused"`)

		w = performJSONRequest(router, http.MethodPost, "/v1/rotations/"+job.ID+"/resume", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"running"`)
	})

	t.Run("Abort", func(t *testing.T) {
		handler, _, _ := newTestRotationHandler()
		router := newRotationRouter(handler)
		job := startJob(t, router)

		w := performJSONRequest(router, http.MethodPost, "/v1/rotations/"+job.ID+"/abort", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"rolled_back"`)
	})

	t.Run("Error_PauseTerminalJob", func(t *testing.T) {
		handler, _, _ := newTestRotationHandler()
		router := newRotationRouter(handler)
		job := startJob(t, router)

		w := performJSONRequest(router, http.MethodPost, "/v1/rotations/"+job.ID+"/abort", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = performJSONRequest(router, http.MethodPost, "/v1/rotations/"+job.ID+"/pause", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestRotationHandler_EventsHandler(t *testing.T) {
	t.Run("Success_Paginated", func(t *testing.T) {
		handler, _, eventRepo := newTestRotationHandler()
		router := newRotationRouter(handler)
		job := startJob(t, router)
		jobID := uuid.MustParse(job.ID)

		for i := 0; i < 5; i++ {
			eventRepo.events = append(eventRepo.events, &auditDomain.Event{
				ID:        uuid.Must(uuid.NewV7()),
				JobID:     jobID,
				Type:      auditDomain.EventBatchCompleted,
				Cursor:    int64(i+1) * 500,
				CreatedAt: time.Now().UTC(),
			})
		}

		w := performJSONRequest(router, http.MethodGet, "/v1/rotations/"+job.ID+"/events?offset=1&limit=2", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.ListEventsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 2)
		assert.Equal(t, int64(1000), response.Data[0].Cursor)
		assert.Equal(t, int64(1500), response.Data[1].Cursor)
	})

	t.Run("Error_InvalidPagination", func(t *testing.T) {
		handler, _, _ := newTestRotationHandler()
		router := newRotationRouter(handler)
		job := startJob(t, router)

		w := performJSONRequest(router, http.MethodGet, "/v1/rotations/"+job.ID+"/events?limit=0", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
