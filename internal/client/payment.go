package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// PaymentClient creates payment sessions and queries their status against
// the external settlement provider.
type PaymentClient struct {
	baseClient
}

// PaymentConfig holds payment client configuration
type PaymentConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewPaymentClient creates a new payment client
func NewPaymentClient(cfg PaymentConfig, logger *zap.Logger) *PaymentClient {
	return &PaymentClient{
		baseClient: newBaseClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger),
	}
}

// Payer identifies who the payment request is addressed to.
type Payer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CreateSessionRequest is the payload for creating a payment session.
type CreateSessionRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Payer       Payer  `json:"payer"`
}

// SessionInfo is the provider's view of a payment session.
type SessionInfo struct {
	OrderCode   string    `json:"order_code"`
	Amount      int64     `json:"amount"`
	QRPayload   string    `json:"qr_payload"`
	CheckoutURL string    `json:"checkout_url"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CreateSession opens a new payment session with the provider.
func (c *PaymentClient) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionInfo, error) {
	var info SessionInfo
	if err := c.doJSON(ctx, http.MethodPost, "/api/payment-sessions", req, &info); err != nil {
		return nil, fmt.Errorf("create payment session: %w", err)
	}
	return &info, nil
}

// GetSessionStatus returns the current normalized status of a session.
func (c *PaymentClient) GetSessionStatus(ctx context.Context, orderCode string) (*SessionInfo, error) {
	var info SessionInfo
	path := "/api/payment-sessions/" + url.PathEscape(orderCode)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &info); err != nil {
		return nil, fmt.Errorf("get payment session %s: %w", orderCode, err)
	}
	return &info, nil
}
