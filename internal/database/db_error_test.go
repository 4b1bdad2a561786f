package database

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/internal/models"
)

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close() // Close the DB to trigger errors

	ctx := context.Background()
	now := time.Now()

	t.Run("CreateBookingWithLock", func(t *testing.T) {
		assert.Error(t, db.CreateBookingWithLock(ctx, &models.Booking{}, "x"))
	})
	t.Run("GetAutoRejectCandidates", func(t *testing.T) {
		_, err := db.GetAutoRejectCandidates(ctx, now)
		assert.Error(t, err)
	})
	t.Run("GetNoShowCandidates", func(t *testing.T) {
		_, err := db.GetNoShowCandidates(ctx, now)
		assert.Error(t, err)
	})
	t.Run("GetExpiredActiveCoupons", func(t *testing.T) {
		_, err := db.GetExpiredActiveCoupons(ctx, now)
		assert.Error(t, err)
	})
	t.Run("GetPropertyStats", func(t *testing.T) {
		_, err := db.GetPropertyStats(ctx)
		assert.Error(t, err)
	})
	t.Run("GetPayableHosts", func(t *testing.T) {
		_, err := db.GetPayableHosts(ctx, models.PreviousMonth(now))
		assert.Error(t, err)
	})
	t.Run("CreateNotification", func(t *testing.T) {
		assert.Error(t, db.CreateNotification(ctx, &models.Notification{Type: "x"}))
	})
	t.Run("ClaimNotifications", func(t *testing.T) {
		_, err := db.ClaimNotifications(ctx, now, 10, time.Minute)
		assert.Error(t, err)
	})
	t.Run("SyncInventory", func(t *testing.T) {
		assert.Error(t, db.SyncInventory(ctx, nil, nil))
	})
	t.Run("Record", func(t *testing.T) {
		assert.Error(t, db.Record(ctx, models.AuditWorkerFailure, models.TableBookings, 1, nil, nil))
	})
}
