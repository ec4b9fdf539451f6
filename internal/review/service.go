package review

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minhphan/garageflow/internal/client"
	"github.com/minhphan/garageflow/internal/models"
	"github.com/minhphan/garageflow/internal/workflow"
	"go.uber.org/zap"
)

// ChecklistGateway is the contract the review core needs from the
// operations backend.
type ChecklistGateway interface {
	GetChecklist(ctx context.Context, checklistID string) (*models.Checklist, error)
	GetAppointment(ctx context.Context, appointmentID string) (*models.Appointment, error)
	AcceptChecklist(ctx context.Context, checklistID, idempotencyKey string) error
	RejectChecklist(ctx context.Context, checklistID, reason string) error
	UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) error
}

// SettlementStarter creates a payment session for an approved checklist.
type SettlementStarter interface {
	CreateSession(ctx context.Context, checklist *models.Checklist, appointment *models.Appointment, views []LineItemView) (*models.SettlementSession, error)
}

// ChecklistStore mirrors checklists locally for reporting and
// reconciliation.
type ChecklistStore interface {
	Save(ctx context.Context, c *models.Checklist, appointmentSynced bool) error
	SetOutcome(ctx context.Context, checklistID, status, rejectionReason string, appointmentSynced bool) error
}

// HistoryStore records review lifecycle actions.
type HistoryStore interface {
	Add(ctx context.Context, h *models.ReviewHistory) error
}

// reviewSession is the per-checklist state this service owns: the latest
// resolved views and the sufficiency map with the fingerprint it was
// computed for. Exposed read-only through View.
type reviewSession struct {
	checklist   *models.Checklist
	appointment *models.Appointment
	views       []LineItemView
	sufficiency map[string]models.LineItemSufficiency
	fingerprint string
	verifiedAt  time.Time
}

func (rs *reviewSession) releaseReady() bool {
	if rs.fingerprint != Fingerprint(rs.appointment.CenterID, rs.checklist.LineItems) {
		return false
	}
	return IsReleaseReady(rs.sufficiency, rs.checklist.LineItems)
}

// View is the read model served to the reviewer.
type View struct {
	Checklist    *models.Checklist                      `json:"checklist"`
	Appointment  *models.Appointment                    `json:"appointment"`
	LineItems    []LineItemView                         `json:"line_items"`
	Sufficiency  map[string]models.LineItemSufficiency  `json:"sufficiency"`
	ReleaseReady bool                                   `json:"release_ready"`
	State        string                                 `json:"state"`
}

// ApproveResult reports an approval outcome. Settlement failures do not
// unwind the approval; they are returned alongside it for a manual retry.
type ApproveResult struct {
	View            *View                     `json:"view"`
	Session         *models.SettlementSession `json:"session,omitempty"`
	SettlementError string                    `json:"settlement_error,omitempty"`
}

// Service owns the checklist review lifecycle. It is the only component
// that mutates checklist status, and it serializes approve/reject per
// checklist behind an in-flight guard.
type Service struct {
	backend    ChecklistGateway
	resolver   *Resolver
	verifier   *Verifier
	settlement SettlementStarter
	store      ChecklistStore
	history    HistoryStore
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*reviewSession
	inflight map[string]struct{}
}

// NewService creates a new review service
func NewService(
	backend ChecklistGateway,
	resolver *Resolver,
	verifier *Verifier,
	settlement SettlementStarter,
	store ChecklistStore,
	history HistoryStore,
	logger *zap.Logger,
) *Service {
	return &Service{
		backend:    backend,
		resolver:   resolver,
		verifier:   verifier,
		settlement: settlement,
		store:      store,
		history:    history,
		logger:     logger,
		sessions:   make(map[string]*reviewSession),
		inflight:   make(map[string]struct{}),
	}
}

// Open loads a checklist and its appointment, resolves the line items and
// runs inventory verification, returning the full review view.
func (s *Service) Open(ctx context.Context, checklistID string) (*View, error) {
	checklist, err := s.backend.GetChecklist(ctx, checklistID)
	if err != nil {
		var remoteErr *client.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrChecklistNotFound, checklistID)
		}
		return nil, fmt.Errorf("open review: %w", err)
	}
	checklist.Status = models.NormalizeChecklistStatus(checklist.Status)

	appointment, err := s.backend.GetAppointment(ctx, checklist.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("open review: %w", err)
	}

	views := s.resolver.Resolve(ctx, checklist, appointment.CenterID)

	sess := &reviewSession{
		checklist:   checklist,
		appointment: appointment,
		views:       views,
	}
	s.mu.Lock()
	s.sessions[checklistID] = sess
	s.mu.Unlock()

	if err := s.store.Save(ctx, checklist, true); err != nil {
		s.logger.Warn("Failed to mirror checklist locally",
			zap.String("checklist_id", checklistID), zap.Error(err))
	}

	s.runVerification(ctx, sess)
	return s.viewOf(sess), nil
}

// Verify re-runs inventory verification for an open review, picking up
// line item or center changes.
func (s *Service) Verify(ctx context.Context, checklistID string) (*View, error) {
	return s.Open(ctx, checklistID)
}

// runVerification seeds every item as checking before the fan-out starts,
// so the gate withholds approval for the whole flight instead of racing
// on partial state.
func (s *Service) runVerification(ctx context.Context, sess *reviewSession) {
	fp := Fingerprint(sess.appointment.CenterID, sess.checklist.LineItems)

	pending := make(map[string]models.LineItemSufficiency, len(sess.checklist.LineItems))
	for _, item := range sess.checklist.LineItems {
		pending[item.PartRef] = models.LineItemSufficiency{
			PartRef:          item.PartRef,
			RequiredQuantity: item.Quantity,
			Checking:         true,
		}
	}

	s.mu.Lock()
	sess.sufficiency = pending
	sess.fingerprint = fp
	s.mu.Unlock()

	verdicts := s.verifier.Verify(ctx, sess.appointment.CenterID, sess.checklist.LineItems)

	s.mu.Lock()
	if sess.fingerprint == fp {
		sess.sufficiency = verdicts
		sess.verifiedAt = time.Now()
	}
	s.mu.Unlock()
}

// Approve transitions the checklist to approved, moves the appointment to
// in_progress best-effort, and starts settlement. It refuses to run when
// the gate is not satisfied, and serializes against concurrent actions on
// the same checklist.
func (s *Service) Approve(ctx context.Context, checklistID, actor string) (*ApproveResult, error) {
	if !s.acquire(checklistID) {
		return nil, ErrReviewInFlight
	}
	defer s.release(checklistID)

	s.mu.Lock()
	sess, ok := s.sessions[checklistID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrReviewNotOpened
	}

	s.mu.Lock()
	ready := sess.releaseReady()
	previousStatus := sess.checklist.Status
	s.mu.Unlock()

	machine := workflow.NewChecklistMachine(previousStatus, workflow.StaticGuard(ready))
	if machine.State().IsTerminal() {
		return nil, ErrAlreadyReviewed
	}
	if err := machine.Fire(ctx, workflow.TriggerApprove); err != nil {
		if errors.Is(err, workflow.ErrGuardFailed) {
			return nil, ErrNotReleaseReady
		}
		return nil, fmt.Errorf("%w: %v", ErrAlreadyReviewed, err)
	}

	// The machine accepted the transition; commit it to the backend
	// before any local state changes.
	if err := s.backend.AcceptChecklist(ctx, checklistID, uuid.NewString()); err != nil {
		s.logger.Error("Checklist accept failed, review stays pending",
			zap.String("checklist_id", checklistID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrBackendMutation, err)
	}

	// Appointment move to in_progress is best-effort: failure is recorded
	// for the reconciliation sweeper, not fatal to the approval.
	appointmentSynced := true
	if err := s.backend.UpdateAppointmentStatus(ctx, sess.appointment.ID, models.AppointmentStatusInProgress); err != nil {
		appointmentSynced = false
		s.logger.Warn("Appointment status update failed after approval",
			zap.String("checklist_id", checklistID),
			zap.String("appointment_id", sess.appointment.ID),
			zap.Error(err))
	}

	s.mu.Lock()
	sess.checklist.Status = models.ChecklistStatusApproved
	sess.checklist.UpdatedAt = time.Now()
	s.mu.Unlock()

	if err := s.store.SetOutcome(ctx, checklistID, models.ChecklistStatusApproved, "", appointmentSynced); err != nil {
		s.logger.Warn("Failed to record approval locally",
			zap.String("checklist_id", checklistID), zap.Error(err))
	}
	s.addHistory(ctx, checklistID, previousStatus, models.ChecklistStatusApproved, models.ActionApprove, "", actor)

	result := &ApproveResult{View: s.viewOf(sess)}

	session, err := s.createSettlement(ctx, sess)
	if err != nil {
		s.logger.Warn("Settlement session creation failed after approval",
			zap.String("checklist_id", checklistID), zap.Error(err))
		result.SettlementError = err.Error()
		return result, nil
	}
	result.Session = session
	return result, nil
}

// Reject transitions the checklist to rejected with a mandatory reason.
// No appointment change and no settlement session follow a rejection.
func (s *Service) Reject(ctx context.Context, checklistID, reason, actor string) (*View, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}

	if !s.acquire(checklistID) {
		return nil, ErrReviewInFlight
	}
	defer s.release(checklistID)

	s.mu.Lock()
	sess, ok := s.sessions[checklistID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrReviewNotOpened
	}

	s.mu.Lock()
	previousStatus := sess.checklist.Status
	s.mu.Unlock()

	machine := workflow.NewChecklistMachine(previousStatus, workflow.StaticGuard(false))
	if machine.State().IsTerminal() {
		return nil, ErrAlreadyReviewed
	}
	if err := machine.Fire(ctx, workflow.TriggerReject); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAlreadyReviewed, err)
	}

	if err := s.backend.RejectChecklist(ctx, checklistID, reason); err != nil {
		s.logger.Error("Checklist reject failed, review stays pending",
			zap.String("checklist_id", checklistID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrBackendMutation, err)
	}

	s.mu.Lock()
	sess.checklist.Status = models.ChecklistStatusRejected
	sess.checklist.RejectionReason = reason
	sess.checklist.UpdatedAt = time.Now()
	s.mu.Unlock()

	if err := s.store.SetOutcome(ctx, checklistID, models.ChecklistStatusRejected, reason, true); err != nil {
		s.logger.Warn("Failed to record rejection locally",
			zap.String("checklist_id", checklistID), zap.Error(err))
	}
	s.addHistory(ctx, checklistID, previousStatus, models.ChecklistStatusRejected, models.ActionReject, reason, actor)

	return s.viewOf(sess), nil
}

// CreateSettlement is the manual retry path for settlement creation after
// an approval whose automatic session creation failed, and the entry
// point for session regeneration after expiry. Prices are re-resolved so
// the amount reflects current data, not a stale verification snapshot.
func (s *Service) CreateSettlement(ctx context.Context, checklistID string) (*models.SettlementSession, error) {
	s.mu.Lock()
	sess, ok := s.sessions[checklistID]
	s.mu.Unlock()
	if !ok {
		// The review may have been opened before a restart; reload it.
		if _, err := s.Open(ctx, checklistID); err != nil {
			return nil, err
		}
		s.mu.Lock()
		sess = s.sessions[checklistID]
		s.mu.Unlock()
	}

	s.mu.Lock()
	status := sess.checklist.Status
	s.mu.Unlock()
	if models.NormalizeChecklistStatus(status) != models.ChecklistStatusApproved {
		return nil, fmt.Errorf("%w: checklist %s is %s", ErrNotReleaseReady, checklistID, status)
	}

	return s.createSettlement(ctx, sess)
}

func (s *Service) createSettlement(ctx context.Context, sess *reviewSession) (*models.SettlementSession, error) {
	s.mu.Lock()
	checklist := sess.checklist
	appointment := sess.appointment
	s.mu.Unlock()

	// Fresh price resolution guards against drift between verification
	// and settlement.
	views := s.resolver.Resolve(ctx, checklist, appointment.CenterID)

	session, err := s.settlement.CreateSession(ctx, checklist, appointment, views)
	if err != nil {
		return nil, err
	}

	s.addHistory(ctx, checklist.ID, checklist.Status, checklist.Status,
		models.ActionSessionCreated, session.OrderCode, "")
	return session, nil
}

func (s *Service) viewOf(sess *reviewSession) *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	sufficiency := make(map[string]models.LineItemSufficiency, len(sess.sufficiency))
	for k, v := range sess.sufficiency {
		sufficiency[k] = v
	}

	return &View{
		Checklist:    sess.checklist,
		Appointment:  sess.appointment,
		LineItems:    sess.views,
		Sufficiency:  sufficiency,
		ReleaseReady: sess.releaseReady(),
		State:        workflow.StateFromChecklistStatus(sess.checklist.Status).String(),
	}
}

func (s *Service) addHistory(ctx context.Context, checklistID, prev, next, action, detail, actor string) {
	h := &models.ReviewHistory{
		ChecklistID:    checklistID,
		PreviousStatus: prev,
		NewStatus:      next,
		Action:         action,
		Detail:         detail,
		Actor:          actor,
		CreatedAt:      time.Now(),
	}
	if err := s.history.Add(ctx, h); err != nil {
		s.logger.Warn("Failed to record review history",
			zap.String("checklist_id", checklistID),
			zap.String("action", action),
			zap.Error(err))
	}
}

// acquire takes the per-checklist in-flight token; approve and reject have
// irreversible side effects, so only one may run at a time per checklist.
func (s *Service) acquire(checklistID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[checklistID]; busy {
		return false
	}
	s.inflight[checklistID] = struct{}{}
	return true
}

func (s *Service) release(checklistID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, checklistID)
}
