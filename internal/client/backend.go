package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/minhphan/garageflow/internal/models"
	"go.uber.org/zap"
)

// BackendClient talks to the operations backend that owns checklists and
// appointments. Accept and reject are the only mutations this service
// performs on checklists; the backend decrements stock on accept, so no
// separate inventory debit happens here.
type BackendClient struct {
	baseClient
}

// BackendConfig holds backend client configuration
type BackendConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewBackendClient creates a new backend client
func NewBackendClient(cfg BackendConfig, logger *zap.Logger) *BackendClient {
	return &BackendClient{
		baseClient: newBaseClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger),
	}
}

// GetChecklist fetches one checklist with its line items.
func (c *BackendClient) GetChecklist(ctx context.Context, checklistID string) (*models.Checklist, error) {
	var checklist models.Checklist
	path := "/api/checklists/" + url.PathEscape(checklistID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &checklist); err != nil {
		return nil, fmt.Errorf("get checklist %s: %w", checklistID, err)
	}
	return &checklist, nil
}

// GetAppointment fetches the appointment a checklist originates from,
// including the customer and the booked service.
func (c *BackendClient) GetAppointment(ctx context.Context, appointmentID string) (*models.Appointment, error) {
	var appointment models.Appointment
	path := "/api/appointments/" + url.PathEscape(appointmentID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &appointment); err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", appointmentID, err)
	}
	return &appointment, nil
}

type acceptRequest struct {
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// AcceptChecklist marks the checklist accepted. The idempotency key lets
// the backend dedupe a retried accept after a lost response.
func (c *BackendClient) AcceptChecklist(ctx context.Context, checklistID, idempotencyKey string) error {
	path := "/api/checklists/" + url.PathEscape(checklistID) + "/accept"
	if err := c.doJSON(ctx, http.MethodPut, path, acceptRequest{IdempotencyKey: idempotencyKey}, nil); err != nil {
		return fmt.Errorf("accept checklist %s: %w", checklistID, err)
	}
	return nil
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectChecklist cancels the checklist with the reviewer's reason.
func (c *BackendClient) RejectChecklist(ctx context.Context, checklistID, reason string) error {
	path := "/api/checklists/" + url.PathEscape(checklistID) + "/cancel"
	if err := c.doJSON(ctx, http.MethodPut, path, rejectRequest{Reason: reason}, nil); err != nil {
		return fmt.Errorf("reject checklist %s: %w", checklistID, err)
	}
	return nil
}

type appointmentStatusRequest struct {
	Status string `json:"status"`
}

// UpdateAppointmentStatus moves an appointment to the given status.
func (c *BackendClient) UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error {
	path := "/api/appointments/" + url.PathEscape(appointmentID) + "/status"
	if err := c.doJSON(ctx, http.MethodPut, path, appointmentStatusRequest{Status: status}, nil); err != nil {
		return fmt.Errorf("update appointment %s status: %w", appointmentID, err)
	}
	return nil
}
