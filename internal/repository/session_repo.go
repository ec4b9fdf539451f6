package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/minhphan/garageflow/internal/models"
	"go.uber.org/zap"
)

// SessionRepository persists settlement sessions across restarts so the
// manager can resume polling.
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sql.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{db: db, logger: logger}
}

const sessionColumns = `
	id, order_code, checklist_id, amount, description, qr_payload,
	checkout_url, status, expires_at, created_at, updated_at
`

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, s *models.SettlementSession) error {
	query := `
		INSERT INTO settlement_sessions (
			order_code, checklist_id, amount, description, qr_payload,
			checkout_url, status, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		s.OrderCode, s.ChecklistID, s.Amount, s.Description, s.QRPayload,
		s.CheckoutURL, s.Status, s.ExpiresAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create session",
			zap.String("order_code", s.OrderCode), zap.Error(err))
		return fmt.Errorf("create session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	s.ID = id
	return nil
}

// UpdateStatus records a status change for a session.
func (r *SessionRepository) UpdateStatus(ctx context.Context, orderCode, status string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE settlement_sessions SET status = ?, updated_at = ? WHERE order_code = ?",
		status, time.Now(), orderCode)
	if err != nil {
		r.logger.Error("Failed to update session status",
			zap.String("order_code", orderCode), zap.Error(err))
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

func (r *SessionRepository) scanSession(row interface{ Scan(...interface{}) error }) (*models.SettlementSession, error) {
	var s models.SettlementSession
	err := row.Scan(
		&s.ID, &s.OrderCode, &s.ChecklistID, &s.Amount, &s.Description,
		&s.QRPayload, &s.CheckoutURL, &s.Status, &s.ExpiresAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByOrderCode returns one session, or nil when unknown.
func (r *SessionRepository) GetByOrderCode(ctx context.Context, orderCode string) (*models.SettlementSession, error) {
	query := "SELECT " + sessionColumns + " FROM settlement_sessions WHERE order_code = ?"
	s, err := r.scanSession(r.db.QueryRowContext(ctx, query, orderCode))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by order code: %w", err)
	}
	return s, nil
}

// GetLatestByChecklist returns the most recently created session for a
// checklist, or nil when none exists. Used to enforce the single active
// session rule.
func (r *SessionRepository) GetLatestByChecklist(ctx context.Context, checklistID string) (*models.SettlementSession, error) {
	query := "SELECT " + sessionColumns + ` FROM settlement_sessions
		WHERE checklist_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`
	s, err := r.scanSession(r.db.QueryRowContext(ctx, query, checklistID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest session: %w", err)
	}
	return s, nil
}

// ListActive returns non-terminal, non-expired sessions, used to resume
// polling after a restart.
func (r *SessionRepository) ListActive(ctx context.Context, now time.Time) ([]*models.SettlementSession, error) {
	query := "SELECT " + sessionColumns + ` FROM settlement_sessions
		WHERE status = ? AND expires_at > ? ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, models.SessionStatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.SettlementSession
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListSettledBetween returns paid sessions in [from, to), newest first.
// Feeds the settlement report export.
func (r *SessionRepository) ListSettledBetween(ctx context.Context, from, to time.Time) ([]*models.SettlementSession, error) {
	query := "SELECT " + sessionColumns + ` FROM settlement_sessions
		WHERE status = ? AND updated_at >= ? AND updated_at < ?
		ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, models.SessionStatusPaid, from, to)
	if err != nil {
		return nil, fmt.Errorf("list settled sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.SettlementSession
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
