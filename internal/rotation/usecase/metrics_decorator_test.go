package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/medvault/phivault/internal/errors"
	rotationDomain "github.com/medvault/phivault/internal/rotation/domain"
)

type recordingMetrics struct {
	mu         sync.Mutex
	operations map[string]string
	rows       map[string]int64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{operations: make(map[string]string), rows: make(map[string]int64)}
}

func (r *recordingMetrics) RecordOperation(_ context.Context, _, operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operations[operation] = status
}

func (r *recordingMetrics) RecordDuration(_ context.Context, _, _ string, _ time.Duration, _ string) {
}

func (r *recordingMetrics) RecordRotationRows(_ context.Context, outcome string, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[outcome] += count
}

type stubRotationUseCase struct {
	job    *rotationDomain.RotationJob
	runErr error
}

func (s *stubRotationUseCase) Start(_ context.Context, source, target uint64) (*rotationDomain.RotationJob, error) {
	return s.job, nil
}

func (s *stubRotationUseCase) Run(_ context.Context, _ uuid.UUID) error {
	if s.runErr != nil {
		return s.runErr
	}
	s.job.Migrated += 100
	s.job.Skipped += 5
	return nil
}

func (s *stubRotationUseCase) Status(_ context.Context, _ uuid.UUID) (*rotationDomain.RotationJob, error) {
	copied := *s.job
	return &copied, nil
}

func (s *stubRotationUseCase) Pause(_ context.Context, _ uuid.UUID) error  { return nil }
func (s *stubRotationUseCase) Resume(_ context.Context, _ uuid.UUID) error { return nil }
func (s *stubRotationUseCase) Abort(_ context.Context, _ uuid.UUID) error  { return nil }

func TestRotationUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("records run outcome and row deltas", func(t *testing.T) {
		job, err := rotationDomain.NewRotationJob(1, 2, 200)
		require.NoError(t, err)
		stub := &stubRotationUseCase{job: job}
		m := newRecordingMetrics()
		decorated := NewRotationUseCaseWithMetrics(stub, m)

		require.NoError(t, decorated.Run(ctx, job.ID))

		assert.Equal(t, "success", m.operations["rotation_run"])
		assert.Equal(t, int64(100), m.rows["migrated"])
		assert.Equal(t, int64(5), m.rows["skipped"])
	})

	t.Run("records error status", func(t *testing.T) {
		job, err := rotationDomain.NewRotationJob(1, 2, 200)
		require.NoError(t, err)
		stub := &stubRotationUseCase{job: job, runErr: apperrors.ErrConflict}
		m := newRecordingMetrics()
		decorated := NewRotationUseCaseWithMetrics(stub, m)

		assert.ErrorIs(t, decorated.Run(ctx, job.ID), apperrors.ErrConflict)
		assert.Equal(t, "error", m.operations["rotation_run"])
	})

	t.Run("records lifecycle operations", func(t *testing.T) {
		job, err := rotationDomain.NewRotationJob(1, 2, 200)
		require.NoError(t, err)
		stub := &stubRotationUseCase{job: job}
		m := newRecordingMetrics()
		decorated := NewRotationUseCaseWithMetrics(stub, m)

		_, err = decorated.Start(ctx, 1, 2)
		require.NoError(t, err)
		require.NoError(t, decorated.Pause(ctx, job.ID))
		require.NoError(t, decorated.Resume(ctx, job.ID))
		require.NoError(t, decorated.Abort(ctx, job.ID))
		_, err = decorated.Status(ctx, job.ID)
		require.NoError(t, err)

		for _, op := range []string{"rotation_start", "rotation_pause", "rotation_resume", "rotation_abort", "rotation_status"} {
			assert.Equal(t, "success", m.operations[op], op)
		}
	})
}
