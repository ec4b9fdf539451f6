package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minhphan/garageflow/internal/models"
	"github.com/minhphan/garageflow/internal/repository"
	"go.uber.org/zap"
)

// AppointmentUpdater retries the appointment status side effect.
type AppointmentUpdater interface {
	UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error
}

// ChecklistMirror lists and clears the unsynced appointment flags.
type ChecklistMirror interface {
	ListUnsyncedAppointments(ctx context.Context, limit int) ([]repository.UnsyncedAppointment, error)
	MarkAppointmentSynced(ctx context.Context, checklistID string) error
}

// AppointmentReconciler sweeps approved checklists whose appointment move
// to in_progress failed at approval time and retries the update. Approval
// is never rolled back over this side effect, so the sweep is the only
// thing closing the gap.
type AppointmentReconciler struct {
	backend   AppointmentUpdater
	mirror    ChecklistMirror
	logger    *zap.Logger
	interval  time.Duration
	batchSize int

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewAppointmentReconciler creates a new reconciliation sweeper
func NewAppointmentReconciler(backend AppointmentUpdater, mirror ChecklistMirror, interval time.Duration, logger *zap.Logger) *AppointmentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &AppointmentReconciler{
		backend:   backend,
		mirror:    mirror,
		logger:    logger,
		interval:  interval,
		batchSize: 50,
	}
}

// Start starts the sweep loop
func (r *AppointmentReconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return fmt.Errorf("appointment reconciler is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.isRunning = true

	r.logger.Info("AppointmentReconciler started", zap.Duration("interval", r.interval))
	go r.loop(loopCtx)
	return nil
}

// Stop stops the sweep loop
func (r *AppointmentReconciler) Stop() {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = false
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()
	<-done
	r.logger.Info("AppointmentReconciler stopped")
}

// Name returns the worker name for identification
func (r *AppointmentReconciler) Name() string {
	return "AppointmentReconciler"
}

func (r *AppointmentReconciler) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep retries one batch of pending appointment updates.
func (r *AppointmentReconciler) sweep(ctx context.Context) {
	pending, err := r.mirror.ListUnsyncedAppointments(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("Failed to list unsynced appointments", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	retried := 0
	for _, u := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := r.backend.UpdateAppointmentStatus(ctx, u.AppointmentID, models.AppointmentStatusInProgress); err != nil {
			r.logger.Warn("Appointment status retry failed",
				zap.String("checklist_id", u.ChecklistID),
				zap.String("appointment_id", u.AppointmentID),
				zap.Error(err))
			continue
		}
		if err := r.mirror.MarkAppointmentSynced(ctx, u.ChecklistID); err != nil {
			r.logger.Warn("Failed to clear sync flag",
				zap.String("checklist_id", u.ChecklistID), zap.Error(err))
			continue
		}
		retried++
	}

	if retried > 0 {
		r.logger.Info("Appointment reconciliation sweep completed",
			zap.Int("checked", len(pending)),
			zap.Int("synced", retried))
	}
}
