package models

import (
	"strings"
	"time"
)

// Checklist represents a maintenance checklist submitted by a technician
// and awaiting reviewer action.
type Checklist struct {
	ID               string     `json:"id"`
	AppointmentID    string     `json:"appointment_id"`
	Status           string     `json:"status"` // pending, check_in, approved, rejected
	IssueDescription string     `json:"issue_description"`
	IssueType        string     `json:"issue_type"`
	IssueSeverity    string     `json:"issue_severity,omitempty"`
	SolutionApplied  string     `json:"solution_applied,omitempty"`
	RejectionReason  string     `json:"rejection_reason,omitempty"`
	LineItems        []LineItem `json:"line_items"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// LineItem is one (part, quantity) pair on a checklist. Order matters for
// display only.
type LineItem struct {
	PartRef  string `json:"part_ref"`
	PartName string `json:"part_name"`
	Quantity int    `json:"quantity"`
}

// Appointment carries the booking context a checklist originates from.
// It is owned by the operations backend; this service only reads it.
type Appointment struct {
	ID           string   `json:"id"`
	CenterID     string   `json:"center_id"`
	Status       string   `json:"status"`
	Customer     Customer `json:"customer"`
	Service      Service  `json:"service"`
	VehiclePlate string   `json:"vehicle_plate,omitempty"`
	TechnicianID string   `json:"technician_id,omitempty"`
}

// Customer identifies the payer for settlement.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Service is the booked service and its base price in VND.
type Service struct {
	Name      string `json:"name"`
	BasePrice int64  `json:"base_price"`
}

// LineItemSufficiency is the per-item verdict of an inventory check. It is
// derived state and never persisted.
type LineItemSufficiency struct {
	PartRef           string `json:"part_ref"`
	RequiredQuantity  int    `json:"required_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
	Sufficient        bool   `json:"sufficient"`
	Checking          bool   `json:"checking"`
	InventoryRecordID string `json:"inventory_record_id,omitempty"`
}

// Shortfall returns how many units are missing for this item. Zero while
// the check is still in flight or when stock covers the requirement.
func (s LineItemSufficiency) Shortfall() int {
	if s.Checking || s.AvailableQuantity >= s.RequiredQuantity {
		return 0
	}
	return s.RequiredQuantity - s.AvailableQuantity
}

// InventoryRecord is one stock row returned by the inventory service.
type InventoryRecord struct {
	RecordID          string `json:"record_id"`
	PartRef           string `json:"part_ref"`
	PartName          string `json:"part_name"`
	AvailableQuantity int    `json:"available_quantity"`
	CostPerUnit       int64  `json:"cost_per_unit"`
}

// Checklist status constants. The backend also emits "accepted" and
// "canceled"; NormalizeChecklistStatus folds them into the two terminal
// statuses.
const (
	ChecklistStatusPending  = "pending"
	ChecklistStatusCheckIn  = "check_in"
	ChecklistStatusApproved = "approved"
	ChecklistStatusRejected = "rejected"
)

// Appointment status written by this service after approval.
const AppointmentStatusInProgress = "in_progress"

// NormalizeChecklistStatus maps backend status synonyms onto the canonical
// set used here.
func NormalizeChecklistStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "accepted", ChecklistStatusApproved:
		return ChecklistStatusApproved
	case "canceled", "cancelled", ChecklistStatusRejected:
		return ChecklistStatusRejected
	case ChecklistStatusCheckIn:
		return ChecklistStatusCheckIn
	default:
		return ChecklistStatusPending
	}
}

// IsReviewable reports whether the checklist is still waiting for a
// reviewer decision.
func (c *Checklist) IsReviewable() bool {
	switch NormalizeChecklistStatus(c.Status) {
	case ChecklistStatusPending, ChecklistStatusCheckIn:
		return true
	}
	return false
}

// ReviewHistory records one lifecycle action on a checklist for auditing.
type ReviewHistory struct {
	ID             int64     `json:"id"`
	ChecklistID    string    `json:"checklist_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Action         string    `json:"action"` // APPROVE, REJECT, SESSION_CREATED, ...
	Detail         string    `json:"detail,omitempty"`
	Actor          string    `json:"actor,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// History action constants.
const (
	ActionApprove        = "APPROVE"
	ActionReject         = "REJECT"
	ActionSessionCreated = "SESSION_CREATED"
	ActionSessionSettled = "SESSION_SETTLED"
)
