package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minhphan/garageflow/internal/models"
	"go.uber.org/zap"
)

// ChecklistRepository mirrors backend checklists locally. The mirror feeds
// the settlement report and the appointment reconciliation sweep; the
// backend stays the source of truth.
type ChecklistRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewChecklistRepository creates a new checklist repository
func NewChecklistRepository(db *sql.DB, logger *zap.Logger) *ChecklistRepository {
	return &ChecklistRepository{db: db, logger: logger}
}

// Save inserts or refreshes the local copy of a checklist.
func (r *ChecklistRepository) Save(ctx context.Context, c *models.Checklist, appointmentSynced bool) error {
	items, err := json.Marshal(c.LineItems)
	if err != nil {
		return fmt.Errorf("marshal line items: %w", err)
	}

	query := `
		INSERT INTO checklists (
			id, appointment_id, status, issue_description, issue_type,
			solution_applied, rejection_reason, line_items,
			appointment_synced, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			issue_description = excluded.issue_description,
			issue_type = excluded.issue_type,
			solution_applied = excluded.solution_applied,
			rejection_reason = excluded.rejection_reason,
			line_items = excluded.line_items,
			appointment_synced = excluded.appointment_synced,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		c.ID, c.AppointmentID, c.Status, c.IssueDescription, c.IssueType,
		c.SolutionApplied, c.RejectionReason, string(items),
		appointmentSynced, c.CreatedAt, time.Now(),
	)
	if err != nil {
		r.logger.Error("Failed to save checklist", zap.String("id", c.ID), zap.Error(err))
		return fmt.Errorf("save checklist: %w", err)
	}
	return nil
}

// SetOutcome records a review decision on the mirror.
func (r *ChecklistRepository) SetOutcome(ctx context.Context, checklistID, status, rejectionReason string, appointmentSynced bool) error {
	query := `
		UPDATE checklists
		SET status = ?, rejection_reason = ?, appointment_synced = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, status, rejectionReason, appointmentSynced, time.Now(), checklistID)
	if err != nil {
		r.logger.Error("Failed to set checklist outcome", zap.String("id", checklistID), zap.Error(err))
		return fmt.Errorf("set outcome: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set outcome: checklist %s not mirrored", checklistID)
	}
	return nil
}

// MarkAppointmentSynced clears the reconciliation flag after a successful
// appointment status retry.
func (r *ChecklistRepository) MarkAppointmentSynced(ctx context.Context, checklistID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE checklists SET appointment_synced = 1, updated_at = ? WHERE id = ?",
		time.Now(), checklistID)
	if err != nil {
		return fmt.Errorf("mark appointment synced: %w", err)
	}
	return nil
}

// UnsyncedAppointment is an approved checklist whose appointment status
// update still needs to be retried.
type UnsyncedAppointment struct {
	ChecklistID   string
	AppointmentID string
}

// ListUnsyncedAppointments returns approved checklists whose appointment
// move to in_progress has not succeeded yet.
func (r *ChecklistRepository) ListUnsyncedAppointments(ctx context.Context, limit int) ([]UnsyncedAppointment, error) {
	query := `
		SELECT id, appointment_id FROM checklists
		WHERE status = ? AND appointment_synced = 0
		ORDER BY updated_at ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, models.ChecklistStatusApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced appointments: %w", err)
	}
	defer rows.Close()

	var out []UnsyncedAppointment
	for rows.Next() {
		var u UnsyncedAppointment
		if err := rows.Scan(&u.ChecklistID, &u.AppointmentID); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetByID returns the mirrored checklist, or nil when absent.
func (r *ChecklistRepository) GetByID(ctx context.Context, checklistID string) (*models.Checklist, error) {
	query := `
		SELECT id, appointment_id, status, issue_description, issue_type,
			solution_applied, rejection_reason, line_items, created_at, updated_at
		FROM checklists WHERE id = ?
	`
	var c models.Checklist
	var items string
	err := r.db.QueryRowContext(ctx, query, checklistID).Scan(
		&c.ID, &c.AppointmentID, &c.Status, &c.IssueDescription, &c.IssueType,
		&c.SolutionApplied, &c.RejectionReason, &items, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checklist: %w", err)
	}
	if err := json.Unmarshal([]byte(items), &c.LineItems); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %w", err)
	}
	return &c, nil
}
