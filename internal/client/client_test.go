package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeEnvelope(w http.ResponseWriter, status int, success bool, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]interface{}{"success": success}
	if message != "" {
		payload["message"] = message
	}
	if data != nil {
		payload["data"] = data
	}
	json.NewEncoder(w).Encode(payload)
}

func TestBackendClient(t *testing.T) {
	ctx := context.Background()

	t.Run("get checklist decodes the payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/checklists/cl-1", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			writeEnvelope(w, http.StatusOK, true, "", map[string]interface{}{
				"id":             "cl-1",
				"appointment_id": "apt-1",
				"status":         "pending",
				"line_items": []map[string]interface{}{
					{"part_ref": "BRK-001", "part_name": "Brake pad", "quantity": 2},
				},
			})
		}))
		defer srv.Close()

		c := NewBackendClient(BackendConfig{BaseURL: srv.URL, APIKey: "test-key", Timeout: time.Second}, zap.NewNop())

		checklist, err := c.GetChecklist(ctx, "cl-1")
		require.NoError(t, err)
		assert.Equal(t, "cl-1", checklist.ID)
		require.Len(t, checklist.LineItems, 1)
		assert.Equal(t, 2, checklist.LineItems[0].Quantity)
	})

	t.Run("accept sends the idempotency key", func(t *testing.T) {
		var received struct {
			IdempotencyKey string `json:"idempotency_key"`
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/api/checklists/cl-1/accept", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			writeEnvelope(w, http.StatusOK, true, "", nil)
		}))
		defer srv.Close()

		c := NewBackendClient(BackendConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())

		require.NoError(t, c.AcceptChecklist(ctx, "cl-1", "key-123"))
		assert.Equal(t, "key-123", received.IdempotencyKey)
	})

	t.Run("reject sends the reason", func(t *testing.T) {
		var received struct {
			Reason string `json:"reason"`
		}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/checklists/cl-1/cancel", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			writeEnvelope(w, http.StatusOK, true, "", nil)
		}))
		defer srv.Close()

		c := NewBackendClient(BackendConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())

		require.NoError(t, c.RejectChecklist(ctx, "cl-1", "broken part"))
		assert.Equal(t, "broken part", received.Reason)
	})

	t.Run("not found surfaces as a remote error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(w, http.StatusNotFound, false, "checklist not found", nil)
		}))
		defer srv.Close()

		c := NewBackendClient(BackendConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())

		_, err := c.GetChecklist(ctx, "cl-missing")
		var remoteErr *RemoteError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, http.StatusNotFound, remoteErr.StatusCode)
		assert.Equal(t, "checklist not found", remoteErr.Message)
	})

	t.Run("success false with 200 is still an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(w, http.StatusOK, false, "stock changed", nil)
		}))
		defer srv.Close()

		c := NewBackendClient(BackendConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())

		err := c.AcceptChecklist(ctx, "cl-1", "key-123")
		var remoteErr *RemoteError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, "stock changed", remoteErr.Message)
	})
}

func TestInventoryClient(t *testing.T) {
	ctx := context.Background()

	t.Run("query records passes center and part name", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/inventory", r.URL.Path)
			assert.Equal(t, "center-1", r.URL.Query().Get("center_id"))
			assert.Equal(t, "Brake pad", r.URL.Query().Get("part_name"))
			writeEnvelope(w, http.StatusOK, true, "", []map[string]interface{}{
				{"record_id": "rec-1", "part_ref": "BRK-001", "part_name": "Brake pad", "available_quantity": 5, "cost_per_unit": 150000},
			})
		}))
		defer srv.Close()

		c := NewInventoryClient(InventoryConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())

		records, err := c.QueryRecords(ctx, "center-1", "Brake pad")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 5, records[0].AvailableQuantity)
		assert.Equal(t, int64(150000), records[0].CostPerUnit)
	})

	t.Run("catalog price", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/parts/Oil%20filter/price", r.URL.EscapedPath())
			writeEnvelope(w, http.StatusOK, true, "", map[string]interface{}{
				"part_name": "Oil filter", "sell_price": 80000,
			})
		}))
		defer srv.Close()

		c := NewInventoryClient(InventoryConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())

		price, err := c.CatalogPrice(ctx, "Oil filter")
		require.NoError(t, err)
		assert.Equal(t, int64(80000), price)
	})
}

func TestPaymentClient(t *testing.T) {
	ctx := context.Background()

	t.Run("create session round trip", func(t *testing.T) {
		expires := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)
		var received CreateSessionRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/payment-sessions", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			writeEnvelope(w, http.StatusOK, true, "", map[string]interface{}{
				"order_code":   "ORD-1",
				"amount":       received.Amount,
				"qr_payload":   "qr-data",
				"checkout_url": "https://pay.example.com/ORD-1",
				"status":       "PENDING",
				"expires_at":   expires.Format(time.RFC3339),
			})
		}))
		defer srv.Close()

		c := NewPaymentClient(PaymentConfig{BaseURL: srv.URL, APIKey: "pay-key", Timeout: time.Second}, zap.NewNop())

		info, err := c.CreateSession(ctx, CreateSessionRequest{
			Amount:      580000,
			Description: "Service settlement for checklist cl-1",
			Payer:       Payer{Name: "Linh Tran", Email: "linh@example.com", Phone: "0901234567"},
		})
		require.NoError(t, err)
		assert.Equal(t, "ORD-1", info.OrderCode)
		assert.Equal(t, int64(580000), info.Amount)
		assert.True(t, info.ExpiresAt.Equal(expires))
		assert.Equal(t, int64(580000), received.Amount)
		assert.Equal(t, "Linh Tran", received.Payer.Name)
	})

	t.Run("get session status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/payment-sessions/ORD-1", r.URL.Path)
			writeEnvelope(w, http.StatusOK, true, "", map[string]interface{}{
				"order_code": "ORD-1", "status": "PAID",
			})
		}))
		defer srv.Close()

		c := NewPaymentClient(PaymentConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())

		info, err := c.GetSessionStatus(ctx, "ORD-1")
		require.NoError(t, err)
		assert.Equal(t, "PAID", info.Status)
	})

	t.Run("provider outage is not a remote error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(w, http.StatusOK, true, "", nil)
		}))
		srv.Close() // refuse connections

		c := NewPaymentClient(PaymentConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())

		_, err := c.GetSessionStatus(ctx, "ORD-1")
		require.Error(t, err)
		var remoteErr *RemoteError
		assert.False(t, errors.As(err, &remoteErr))
	})
}
