package models

import (
	"testing"
	"time"
)

func TestNormalizeChecklistStatus(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"pending", ChecklistStatusPending},
		{"check_in", ChecklistStatusCheckIn},
		{"approved", ChecklistStatusApproved},
		{"accepted", ChecklistStatusApproved},
		{"rejected", ChecklistStatusRejected},
		{"canceled", ChecklistStatusRejected},
		{"cancelled", ChecklistStatusRejected},
		{"  Accepted ", ChecklistStatusApproved},
		{"something_else", ChecklistStatusPending},
		{"", ChecklistStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeChecklistStatus(tt.in); got != tt.expected {
				t.Errorf("NormalizeChecklistStatus(%q) = %q, want %q", tt.in, got, tt.expected)
			}
		})
	}
}

func TestChecklist_IsReviewable(t *testing.T) {
	tests := []struct {
		status   string
		expected bool
	}{
		{"pending", true},
		{"check_in", true},
		{"approved", false},
		{"accepted", false},
		{"rejected", false},
		{"canceled", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			c := &Checklist{Status: tt.status}
			if got := c.IsReviewable(); got != tt.expected {
				t.Errorf("IsReviewable() with status %q = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestLineItemSufficiency_Shortfall(t *testing.T) {
	tests := []struct {
		name     string
		verdict  LineItemSufficiency
		expected int
	}{
		{"covered", LineItemSufficiency{RequiredQuantity: 3, AvailableQuantity: 5}, 0},
		{"short by two", LineItemSufficiency{RequiredQuantity: 4, AvailableQuantity: 2}, 2},
		{"still checking", LineItemSufficiency{RequiredQuantity: 4, AvailableQuantity: 0, Checking: true}, 0},
		{"exact", LineItemSufficiency{RequiredQuantity: 2, AvailableQuantity: 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.verdict.Shortfall(); got != tt.expected {
				t.Errorf("Shortfall() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestSettlementSession_Expired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		session  SettlementSession
		expected bool
	}{
		{"pending before deadline", SettlementSession{Status: SessionStatusPending, ExpiresAt: now.Add(time.Hour)}, false},
		{"pending past deadline", SettlementSession{Status: SessionStatusPending, ExpiresAt: now.Add(-time.Minute)}, true},
		{"paid past deadline", SettlementSession{Status: SessionStatusPaid, ExpiresAt: now.Add(-time.Minute)}, false},
		{"failed past deadline", SettlementSession{Status: SessionStatusFailed, ExpiresAt: now.Add(-time.Minute)}, true},
		{"exactly at deadline", SettlementSession{Status: SessionStatusPending, ExpiresAt: now}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Expired(now); got != tt.expected {
				t.Errorf("Expired() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSettlementSession_Active(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		session  SettlementSession
		expected bool
	}{
		{"pending and fresh", SettlementSession{Status: SessionStatusPending, ExpiresAt: now.Add(time.Hour)}, true},
		{"pending but expired", SettlementSession{Status: SessionStatusPending, ExpiresAt: now.Add(-time.Minute)}, false},
		{"paid", SettlementSession{Status: SessionStatusPaid, ExpiresAt: now.Add(time.Hour)}, false},
		{"cancelled", SettlementSession{Status: SessionStatusCancelled, ExpiresAt: now.Add(time.Hour)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Active(now); got != tt.expected {
				t.Errorf("Active() = %v, want %v", got, tt.expected)
			}
		})
	}
}
