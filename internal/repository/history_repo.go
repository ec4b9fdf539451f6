package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/minhphan/garageflow/internal/models"
	"go.uber.org/zap"
)

// HistoryRepository records review lifecycle actions for auditing.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Add appends one history entry.
func (r *HistoryRepository) Add(ctx context.Context, h *models.ReviewHistory) error {
	query := `
		INSERT INTO review_history (
			checklist_id, previous_status, new_status, action, detail, actor, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		h.ChecklistID, h.PreviousStatus, h.NewStatus, h.Action, h.Detail, h.Actor, h.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to add history entry",
			zap.String("checklist_id", h.ChecklistID),
			zap.String("action", h.Action),
			zap.Error(err))
		return fmt.Errorf("add history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// ListByChecklist returns the history for one checklist, oldest first.
func (r *HistoryRepository) ListByChecklist(ctx context.Context, checklistID string) ([]*models.ReviewHistory, error) {
	query := `
		SELECT id, checklist_id, previous_status, new_status, action, detail, actor, created_at
		FROM review_history WHERE checklist_id = ? ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, checklistID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []*models.ReviewHistory
	for rows.Next() {
		var h models.ReviewHistory
		var detail, actor sql.NullString
		if err := rows.Scan(&h.ID, &h.ChecklistID, &h.PreviousStatus, &h.NewStatus,
			&h.Action, &detail, &actor, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Detail = detail.String
		h.Actor = actor.String
		entries = append(entries, &h)
	}
	return entries, rows.Err()
}
