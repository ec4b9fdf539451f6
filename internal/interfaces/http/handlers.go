package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minhphan/garageflow/internal/client"
	"github.com/minhphan/garageflow/internal/models"
	"github.com/minhphan/garageflow/internal/review"
	"github.com/minhphan/garageflow/internal/settlement"
	"go.uber.org/zap"
)

// ReviewService is the review workflow surface the handlers consume.
type ReviewService interface {
	Open(ctx context.Context, checklistID string) (*review.View, error)
	Verify(ctx context.Context, checklistID string) (*review.View, error)
	Approve(ctx context.Context, checklistID, actor string) (*review.ApproveResult, error)
	Reject(ctx context.Context, checklistID, reason, actor string) (*review.View, error)
	CreateSettlement(ctx context.Context, checklistID string) (*models.SettlementSession, error)
}

// SettlementReader serves session lookups.
type SettlementReader interface {
	GetSession(ctx context.Context, orderCode string) (*settlement.SessionView, error)
}

// ReportExporter renders the settlement report.
type ReportExporter interface {
	Export(ctx context.Context, from, to time.Time) (string, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	reviews     ReviewService
	settlements SettlementReader
	reports     ReportExporter
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(reviews ReviewService, settlements SettlementReader, reports ReportExporter, logger *zap.Logger) *Handlers {
	return &Handlers{
		reviews:     reviews,
		settlements: settlements,
		reports:     reports,
		logger:      logger,
	}
}

// Response is the standard JSON envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// OpenReview handles GET /api/checklists/:id/review
func (h *Handlers) OpenReview(c *gin.Context) {
	view, err := h.reviews.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// VerifyInventory handles POST /api/checklists/:id/verify
func (h *Handlers) VerifyInventory(c *gin.Context) {
	view, err := h.reviews.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// ApproveChecklist handles POST /api/checklists/:id/approve
func (h *Handlers) ApproveChecklist(c *gin.Context) {
	result, err := h.reviews.Approve(c.Request.Context(), c.Param("id"), c.GetHeader("X-Reviewer-ID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// RejectChecklist handles POST /api/checklists/:id/reject
func (h *Handlers) RejectChecklist(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	view, err := h.reviews.Reject(c.Request.Context(), c.Param("id"), req.Reason, c.GetHeader("X-Reviewer-ID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// CreateSettlement handles POST /api/checklists/:id/settlement. It serves
// both the manual retry after a failed automatic creation and session
// regeneration after expiry.
func (h *Handlers) CreateSettlement(c *gin.Context) {
	session, err := h.reviews.CreateSettlement(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: session})
}

// GetSettlement handles GET /api/settlements/:orderCode
func (h *Handlers) GetSettlement(c *gin.Context) {
	view, err := h.settlements.GetSession(c.Request.Context(), c.Param("orderCode"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: view})
}

// ExportSettlements handles GET /api/reports/settlements?from=...&to=...
func (h *Handlers) ExportSettlements(c *gin.Context) {
	to := time.Now()
	from := to.AddDate(0, -1, 0)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid from date"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid to date"})
			return
		}
		to = t
	}

	path, err := h.reports.Export(c.Request.Context(), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.FileAttachment(path, "settlements.xlsx")
}

// respondError maps domain errors to HTTP status codes.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var remoteErr *client.RemoteError
	switch {
	case errors.Is(err, review.ErrEmptyReason):
		status = http.StatusBadRequest
	case errors.Is(err, review.ErrNotReleaseReady),
		errors.Is(err, review.ErrReviewInFlight),
		errors.Is(err, review.ErrAlreadyReviewed),
		errors.Is(err, review.ErrReviewNotOpened),
		errors.Is(err, settlement.ErrActiveSessionExists):
		status = http.StatusConflict
	case errors.Is(err, settlement.ErrMissingPayerInfo):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, settlement.ErrSessionNotFound),
		errors.Is(err, review.ErrChecklistNotFound):
		status = http.StatusNotFound
	case errors.Is(err, review.ErrBackendMutation),
		errors.Is(err, settlement.ErrPaymentCreation):
		status = http.StatusBadGateway
	case errors.As(err, &remoteErr):
		if remoteErr.StatusCode == http.StatusNotFound {
			status = http.StatusNotFound
		} else {
			status = http.StatusBadGateway
		}
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Unhandled error", zap.Error(err))
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
