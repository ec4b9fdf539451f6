package models

import "time"

// SettlementSession is a time-boxed payment request created after a
// checklist is approved. It is tracked until a terminal status or expiry.
type SettlementSession struct {
	ID          int64     `json:"id"`
	OrderCode   string    `json:"order_code"`
	ChecklistID string    `json:"checklist_id"`
	Amount      int64     `json:"amount"` // VND
	Description string    `json:"description"`
	QRPayload   string    `json:"qr_payload"`
	CheckoutURL string    `json:"checkout_url"`
	Status      string    `json:"status"` // PENDING, PAID, FAILED, CANCELLED
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Session status constants.
const (
	SessionStatusPending   = "PENDING"
	SessionStatusPaid      = "PAID"
	SessionStatusFailed    = "FAILED"
	SessionStatusCancelled = "CANCELLED"
)

// IsTerminal reports whether the session can no longer change status.
// PAID, FAILED and CANCELLED all stop polling; only PAID survives expiry.
func (s *SettlementSession) IsTerminal() bool {
	switch s.Status {
	case SessionStatusPaid, SessionStatusFailed, SessionStatusCancelled:
		return true
	}
	return false
}

// Expired reports whether the session has passed its deadline without
// being paid. Derived at read time, never stored.
func (s *SettlementSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt) && s.Status != SessionStatusPaid
}

// Active reports whether the session is still worth polling: not terminal
// and not expired.
func (s *SettlementSession) Active(now time.Time) bool {
	return !s.IsTerminal() && !s.Expired(now)
}
