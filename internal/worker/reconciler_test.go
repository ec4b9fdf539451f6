package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/minhphan/garageflow/internal/models"
	"github.com/minhphan/garageflow/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubUpdater struct {
	mu     sync.Mutex
	calls  []string
	errFor map[string]error
}

func (s *stubUpdater) UpdateAppointmentStatus(_ context.Context, appointmentID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, appointmentID+":"+status)
	return s.errFor[appointmentID]
}

func (s *stubUpdater) updated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.calls...)
}

type stubMirror struct {
	mu      sync.Mutex
	pending []repository.UnsyncedAppointment
	synced  []string
	listErr error
}

func (s *stubMirror) ListUnsyncedAppointments(_ context.Context, _ int) ([]repository.UnsyncedAppointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]repository.UnsyncedAppointment{}, s.pending...), nil
}

func (s *stubMirror) MarkAppointmentSynced(_ context.Context, checklistID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = append(s.synced, checklistID)
	return nil
}

func (s *stubMirror) cleared() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.synced...)
}

func TestAppointmentReconciler_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("retries and clears each pending appointment", func(t *testing.T) {
		updater := &stubUpdater{}
		mirror := &stubMirror{pending: []repository.UnsyncedAppointment{
			{ChecklistID: "cl-1", AppointmentID: "apt-1"},
			{ChecklistID: "cl-2", AppointmentID: "apt-2"},
		}}
		r := NewAppointmentReconciler(updater, mirror, time.Minute, zap.NewNop())

		r.sweep(ctx)

		assert.Equal(t, []string{
			"apt-1:" + models.AppointmentStatusInProgress,
			"apt-2:" + models.AppointmentStatusInProgress,
		}, updater.updated())
		assert.Equal(t, []string{"cl-1", "cl-2"}, mirror.cleared())
	})

	t.Run("a failed retry keeps the flag for the next sweep", func(t *testing.T) {
		updater := &stubUpdater{errFor: map[string]error{"apt-1": errors.New("still down")}}
		mirror := &stubMirror{pending: []repository.UnsyncedAppointment{
			{ChecklistID: "cl-1", AppointmentID: "apt-1"},
			{ChecklistID: "cl-2", AppointmentID: "apt-2"},
		}}
		r := NewAppointmentReconciler(updater, mirror, time.Minute, zap.NewNop())

		r.sweep(ctx)

		assert.Equal(t, []string{"cl-2"}, mirror.cleared())
	})

	t.Run("list errors skip the sweep", func(t *testing.T) {
		updater := &stubUpdater{}
		mirror := &stubMirror{listErr: errors.New("database locked")}
		r := NewAppointmentReconciler(updater, mirror, time.Minute, zap.NewNop())

		r.sweep(ctx)
		assert.Empty(t, updater.updated())
	})
}

func TestAppointmentReconciler_Lifecycle(t *testing.T) {
	updater := &stubUpdater{}
	mirror := &stubMirror{pending: []repository.UnsyncedAppointment{
		{ChecklistID: "cl-1", AppointmentID: "apt-1"},
	}}
	r := NewAppointmentReconciler(updater, mirror, 10*time.Millisecond, zap.NewNop())

	require.NoError(t, r.Start(context.Background()))
	assert.Error(t, r.Start(context.Background()))

	require.Eventually(t, func() bool { return len(updater.updated()) >= 1 },
		2*time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop() // idempotent

	assert.Equal(t, "AppointmentReconciler", r.Name())
}
