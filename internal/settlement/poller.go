package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/minhphan/garageflow/internal/models"
	"go.uber.org/zap"
)

// PollerConfig holds per-session polling tuning.
type PollerConfig struct {
	Interval         time.Duration
	FailureThreshold int
}

// Poller tracks exactly one settlement session at a fixed interval until
// the session reaches a terminal status or its expiry passes. Transient
// poll errors are retried on the next tick; polling is never abandoned
// before expiry because of them.
type Poller struct {
	orderCode   string
	checklistID string
	expiresAt   time.Time
	lastStatus  string

	payments PaymentGateway
	store    SessionStore
	history  HistoryStore
	cfg      PollerConfig
	logger   *zap.Logger
	now      func() time.Time
	onDone   func() // invoked once when the loop exits

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
	failures int
}

// NewPoller creates a poller for one session
func NewPoller(session *models.SettlementSession, payments PaymentGateway, store SessionStore, history HistoryStore, cfg PollerConfig, logger *zap.Logger) *Poller {
	return &Poller{
		orderCode:   session.OrderCode,
		checklistID: session.ChecklistID,
		expiresAt:   session.ExpiresAt,
		lastStatus:  session.Status,
		payments:    payments,
		store:       store,
		history:     history,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Start launches the polling loop.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.run(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
}

func (p *Poller) run(ctx context.Context) {
	defer func() {
		close(p.done)
		if p.onDone != nil {
			p.onDone()
		}
	}()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll once immediately so a paid-at-the-counter session settles
	// without waiting a full interval.
	if p.tick(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.tick(ctx) {
				return
			}
		}
	}
}

// tick performs one poll. It returns true when polling must stop: the
// session expired or reached a terminal status.
func (p *Poller) tick(ctx context.Context) bool {
	// Expiry is evaluated at read time, before touching the provider.
	if !p.now().Before(p.expiresAt) && p.lastStatus != models.SessionStatusPaid {
		p.logger.Info("Settlement session expired, stopping polling",
			zap.String("order_code", p.orderCode),
			zap.Time("expires_at", p.expiresAt))
		return true
	}

	info, err := p.payments.GetSessionStatus(ctx, p.orderCode)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		p.failures++
		if p.failures >= p.cfg.FailureThreshold {
			p.logger.Warn("Settlement polling keeps failing",
				zap.String("order_code", p.orderCode),
				zap.Int("consecutive_failures", p.failures),
				zap.Error(err))
		} else {
			p.logger.Debug("Settlement poll failed, will retry",
				zap.String("order_code", p.orderCode),
				zap.Error(err))
		}
		return false
	}
	p.failures = 0

	if info.Status != "" && info.Status != p.lastStatus {
		p.lastStatus = info.Status
		if err := p.store.UpdateStatus(ctx, p.orderCode, info.Status); err != nil {
			p.logger.Error("Failed to persist session status",
				zap.String("order_code", p.orderCode),
				zap.String("status", info.Status),
				zap.Error(err))
		}
		p.logger.Info("Settlement session status changed",
			zap.String("order_code", p.orderCode),
			zap.String("status", info.Status))
	}

	switch p.lastStatus {
	case models.SessionStatusPaid:
		h := &models.ReviewHistory{
			ChecklistID: p.checklistID,
			Action:      models.ActionSessionSettled,
			Detail:      p.orderCode,
			CreatedAt:   p.now(),
		}
		if err := p.history.Add(ctx, h); err != nil {
			p.logger.Warn("Failed to record settlement on history",
				zap.String("order_code", p.orderCode), zap.Error(err))
		}
		return true
	case models.SessionStatusFailed, models.SessionStatusCancelled:
		// Terminal for polling; only manual regeneration can follow.
		return true
	}
	return false
}
