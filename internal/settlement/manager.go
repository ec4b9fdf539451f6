// Package settlement owns payment sessions created after checklist
// approval: creation, regeneration after expiry, and status polling up to
// a terminal outcome. No other component writes session state.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/minhphan/garageflow/internal/client"
	"github.com/minhphan/garageflow/internal/models"
	"github.com/minhphan/garageflow/internal/review"
	"go.uber.org/zap"
)

var (
	// ErrMissingPayerInfo is returned when the appointment's customer
	// cannot serve as a payer. The approval itself is unaffected.
	ErrMissingPayerInfo = errors.New("missing or invalid payer information")

	// ErrPaymentCreation wraps provider failures during session creation.
	ErrPaymentCreation = errors.New("payment session creation failed")

	// ErrActiveSessionExists is returned when a session is requested while
	// a non-expired, non-terminal one is still being tracked.
	ErrActiveSessionExists = errors.New("an active settlement session already exists")

	// ErrSessionNotFound is returned for unknown order codes.
	ErrSessionNotFound = errors.New("settlement session not found")
)

// PaymentGateway is the contract against the external payment provider.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req client.CreateSessionRequest) (*client.SessionInfo, error)
	GetSessionStatus(ctx context.Context, orderCode string) (*client.SessionInfo, error)
}

// SessionStore persists settlement sessions.
type SessionStore interface {
	Create(ctx context.Context, s *models.SettlementSession) error
	UpdateStatus(ctx context.Context, orderCode, status string) error
	GetByOrderCode(ctx context.Context, orderCode string) (*models.SettlementSession, error)
	GetLatestByChecklist(ctx context.Context, checklistID string) (*models.SettlementSession, error)
	ListActive(ctx context.Context, now time.Time) ([]*models.SettlementSession, error)
}

// HistoryStore records settlement milestones on the review trail.
type HistoryStore interface {
	Add(ctx context.Context, h *models.ReviewHistory) error
}

// Config holds manager tuning.
type Config struct {
	PollInterval     time.Duration
	FailureThreshold int
}

// Manager creates settlement sessions and runs one poller per active
// session. Regenerating a session for a checklist cancels the previous
// poller first, so two pollers never track the same checklist.
type Manager struct {
	payments PaymentGateway
	store    SessionStore
	history  HistoryStore
	validate *validator.Validate
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	pollers map[string]*Poller     // keyed by checklist id
	creates map[string]*sync.Mutex // serializes check-and-create per checklist
}

// NewManager creates a new settlement session manager
func NewManager(payments PaymentGateway, store SessionStore, history HistoryStore, cfg Config, logger *zap.Logger) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	return &Manager{
		payments: payments,
		store:    store,
		history:  history,
		validate: validator.New(),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		pollers:  make(map[string]*Poller),
		creates:  make(map[string]*sync.Mutex),
	}
}

type payerPayload struct {
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
	Phone string `validate:"required"`
}

// CreateSession creates a payment session for an approved checklist and
// starts polling it. The amount is recomputed from the given fresh line
// item views plus the service base price. At most one active session per
// checklist is allowed; an expired or failed one may be replaced.
func (m *Manager) CreateSession(ctx context.Context, checklist *models.Checklist, appointment *models.Appointment, views []review.LineItemView) (*models.SettlementSession, error) {
	// The active-session check and the create that follows must not
	// interleave across concurrent requests for the same checklist.
	lock := m.creationLock(checklist.ID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := m.store.GetLatestByChecklist(ctx, checklist.ID)
	if err != nil {
		return nil, fmt.Errorf("load existing session: %w", err)
	}
	if latest != nil && latest.Active(m.now()) {
		return nil, fmt.Errorf("%w: order %s", ErrActiveSessionExists, latest.OrderCode)
	}

	payer := payerPayload{
		Name:  appointment.Customer.Name,
		Email: appointment.Customer.Email,
		Phone: appointment.Customer.Phone,
	}
	if err := m.validate.Struct(payer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingPayerInfo, err)
	}

	amount := review.TotalAmount(views, appointment.Service.BasePrice)
	description := fmt.Sprintf("Service settlement for checklist %s", checklist.ID)

	info, err := m.payments.CreateSession(ctx, client.CreateSessionRequest{
		Amount:      amount,
		Description: description,
		Payer: client.Payer{
			Name:  payer.Name,
			Email: payer.Email,
			Phone: payer.Phone,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentCreation, err)
	}

	session := &models.SettlementSession{
		OrderCode:   info.OrderCode,
		ChecklistID: checklist.ID,
		Amount:      info.Amount,
		Description: description,
		QRPayload:   info.QRPayload,
		CheckoutURL: info.CheckoutURL,
		Status:      models.SessionStatusPending,
		ExpiresAt:   info.ExpiresAt,
		CreatedAt:   m.now(),
		UpdatedAt:   m.now(),
	}
	if info.Status != "" {
		session.Status = info.Status
	}

	if err := m.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	m.logger.Info("Settlement session created",
		zap.String("checklist_id", checklist.ID),
		zap.String("order_code", session.OrderCode),
		zap.Int64("amount", session.Amount),
		zap.Time("expires_at", session.ExpiresAt))

	m.startPoller(session)
	return session, nil
}

// SessionView is a session plus its derived expiry flag.
type SessionView struct {
	*models.SettlementSession
	Expired bool `json:"expired"`
}

// GetSession returns the persisted session with the expired flag
// evaluated at read time.
func (m *Manager) GetSession(ctx context.Context, orderCode string) (*SessionView, error) {
	session, err := m.store.GetByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return &SessionView{
		SettlementSession: session,
		Expired:           session.Expired(m.now()),
	}, nil
}

// creationLock returns the per-checklist lock held across the active
// session check and the create that follows.
func (m *Manager) creationLock(checklistID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.creates[checklistID]
	if !ok {
		lock = &sync.Mutex{}
		m.creates[checklistID] = lock
	}
	return lock
}

// startPoller replaces any existing poller for the session's checklist.
// A poller that stops on its own deregisters itself, so the registry
// only holds pollers that are still running.
func (m *Manager) startPoller(session *models.SettlementSession) {
	m.mu.Lock()
	prev := m.pollers[session.ChecklistID]
	delete(m.pollers, session.ChecklistID)
	m.mu.Unlock()

	// Stopping waits for the previous loop to exit; never do that while
	// holding m.mu.
	if prev != nil {
		prev.Stop()
	}

	p := NewPoller(session, m.payments, m.store, m.history, PollerConfig{
		Interval:         m.cfg.PollInterval,
		FailureThreshold: m.cfg.FailureThreshold,
	}, m.logger)
	p.now = m.now
	p.onDone = func() {
		m.mu.Lock()
		if m.pollers[session.ChecklistID] == p {
			delete(m.pollers, session.ChecklistID)
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.pollers[session.ChecklistID] = p
	m.mu.Unlock()
	p.Start()
}

// Start resumes polling for every active session in the store. Called at
// boot so sessions survive a restart.
func (m *Manager) Start(ctx context.Context) error {
	sessions, err := m.store.ListActive(ctx, m.now())
	if err != nil {
		return fmt.Errorf("list active sessions: %w", err)
	}
	for _, session := range sessions {
		m.logger.Info("Resuming settlement polling",
			zap.String("order_code", session.OrderCode),
			zap.String("checklist_id", session.ChecklistID))
		m.startPoller(session)
	}
	return nil
}

// Stop cancels every running poller. Used at shutdown and when the
// hosting workflow instance is discarded.
func (m *Manager) Stop() {
	m.mu.Lock()
	pollers := make([]*Poller, 0, len(m.pollers))
	for _, p := range m.pollers {
		pollers = append(pollers, p)
	}
	m.pollers = make(map[string]*Poller)
	m.mu.Unlock()

	for _, p := range pollers {
		p.Stop()
	}
}

// Name identifies the manager to the worker registry.
func (m *Manager) Name() string {
	return "SettlementManager"
}

// PollerCount reports how many pollers are currently registered.
func (m *Manager) PollerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pollers)
}
