package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/minhphan/garageflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testDB opens an in-memory database with the real schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../migrations/001_initial_schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	return db
}

func sampleChecklist() *models.Checklist {
	return &models.Checklist{
		ID:            "cl-1",
		AppointmentID: "apt-1",
		Status:        models.ChecklistStatusPending,
		LineItems: []models.LineItem{
			{PartRef: "BRK-001", PartName: "Brake pad", Quantity: 2},
		},
		CreatedAt: time.Now(),
	}
}

func TestChecklistRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewChecklistRepository(testDB(t), zap.NewNop())

	t.Run("save and reload round trip", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, sampleChecklist(), true))

		got, err := repo.GetByID(ctx, "cl-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "apt-1", got.AppointmentID)
		require.Len(t, got.LineItems, 1)
		assert.Equal(t, "BRK-001", got.LineItems[0].PartRef)
		assert.Equal(t, 2, got.LineItems[0].Quantity)
	})

	t.Run("save again updates instead of duplicating", func(t *testing.T) {
		c := sampleChecklist()
		c.Status = models.ChecklistStatusCheckIn
		require.NoError(t, repo.Save(ctx, c, true))

		got, err := repo.GetByID(ctx, "cl-1")
		require.NoError(t, err)
		assert.Equal(t, models.ChecklistStatusCheckIn, got.Status)
	})

	t.Run("set outcome records the decision", func(t *testing.T) {
		require.NoError(t, repo.SetOutcome(ctx, "cl-1", models.ChecklistStatusRejected, "broken part", true))

		got, err := repo.GetByID(ctx, "cl-1")
		require.NoError(t, err)
		assert.Equal(t, models.ChecklistStatusRejected, got.Status)
		assert.Equal(t, "broken part", got.RejectionReason)
	})

	t.Run("set outcome on an unmirrored checklist fails", func(t *testing.T) {
		err := repo.SetOutcome(ctx, "cl-unknown", models.ChecklistStatusApproved, "", true)
		assert.Error(t, err)
	})

	t.Run("unknown id returns nil", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "cl-unknown")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestChecklistRepository_UnsyncedAppointments(t *testing.T) {
	ctx := context.Background()
	repo := NewChecklistRepository(testDB(t), zap.NewNop())

	synced := sampleChecklist()
	require.NoError(t, repo.Save(ctx, synced, true))
	require.NoError(t, repo.SetOutcome(ctx, synced.ID, models.ChecklistStatusApproved, "", true))

	unsynced := sampleChecklist()
	unsynced.ID = "cl-2"
	unsynced.AppointmentID = "apt-2"
	require.NoError(t, repo.Save(ctx, unsynced, true))
	require.NoError(t, repo.SetOutcome(ctx, unsynced.ID, models.ChecklistStatusApproved, "", false))

	rejected := sampleChecklist()
	rejected.ID = "cl-3"
	require.NoError(t, repo.Save(ctx, rejected, true))
	require.NoError(t, repo.SetOutcome(ctx, rejected.ID, models.ChecklistStatusRejected, "no parts", false))

	pending, err := repo.ListUnsyncedAppointments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "cl-2", pending[0].ChecklistID)
	assert.Equal(t, "apt-2", pending[0].AppointmentID)

	require.NoError(t, repo.MarkAppointmentSynced(ctx, "cl-2"))

	pending, err = repo.ListUnsyncedAppointments(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func sampleSession(orderCode, checklistID string, createdAt time.Time) *models.SettlementSession {
	return &models.SettlementSession{
		OrderCode:   orderCode,
		ChecklistID: checklistID,
		Amount:      580000,
		Description: "Service settlement",
		QRPayload:   "qr-data",
		CheckoutURL: "https://pay.example.com/" + orderCode,
		Status:      models.SessionStatusPending,
		ExpiresAt:   createdAt.Add(15 * time.Minute),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository(testDB(t), zap.NewNop())
	now := time.Now()

	t.Run("create assigns an id", func(t *testing.T) {
		s := sampleSession("ORD-1", "cl-1", now)
		require.NoError(t, repo.Create(ctx, s))
		assert.NotZero(t, s.ID)
	})

	t.Run("get by order code", func(t *testing.T) {
		got, err := repo.GetByOrderCode(ctx, "ORD-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(580000), got.Amount)
		assert.Equal(t, "cl-1", got.ChecklistID)
	})

	t.Run("unknown order code returns nil", func(t *testing.T) {
		got, err := repo.GetByOrderCode(ctx, "ORD-MISSING")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("duplicate order codes are rejected", func(t *testing.T) {
		err := repo.Create(ctx, sampleSession("ORD-1", "cl-9", now))
		assert.Error(t, err)
	})

	t.Run("latest by checklist picks the newest", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, sampleSession("ORD-2", "cl-1", now.Add(time.Minute))))

		got, err := repo.GetLatestByChecklist(ctx, "cl-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "ORD-2", got.OrderCode)
	})

	t.Run("update status", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, "ORD-2", models.SessionStatusPaid))

		got, err := repo.GetByOrderCode(ctx, "ORD-2")
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusPaid, got.Status)
	})

	t.Run("list active skips terminal and expired sessions", func(t *testing.T) {
		expired := sampleSession("ORD-3", "cl-3", now.Add(-time.Hour))
		require.NoError(t, repo.Create(ctx, expired))

		active, err := repo.ListActive(ctx, now)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "ORD-1", active[0].OrderCode)
	})

	t.Run("list settled between", func(t *testing.T) {
		settled, err := repo.ListSettledBetween(ctx, now.Add(-time.Hour), now.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, settled, 1)
		assert.Equal(t, "ORD-2", settled[0].OrderCode)
	})
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository(testDB(t), zap.NewNop())

	first := &models.ReviewHistory{
		ChecklistID:    "cl-1",
		PreviousStatus: models.ChecklistStatusPending,
		NewStatus:      models.ChecklistStatusApproved,
		Action:         models.ActionApprove,
		Actor:          "reviewer-1",
		CreatedAt:      time.Now().Add(-time.Minute),
	}
	require.NoError(t, repo.Add(ctx, first))
	assert.NotZero(t, first.ID)

	second := &models.ReviewHistory{
		ChecklistID: "cl-1",
		Action:      models.ActionSessionCreated,
		Detail:      "ORD-1",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, repo.Add(ctx, second))

	other := &models.ReviewHistory{
		ChecklistID: "cl-2",
		Action:      models.ActionReject,
		Detail:      "broken part",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, repo.Add(ctx, other))

	entries, err := repo.ListByChecklist(ctx, "cl-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionApprove, entries[0].Action)
	assert.Equal(t, "reviewer-1", entries[0].Actor)
	assert.Equal(t, models.ActionSessionCreated, entries[1].Action)
	assert.Equal(t, "ORD-1", entries[1].Detail)
}
