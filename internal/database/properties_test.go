package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/internal/lifecycle"
	"reservo/internal/models"
)

func TestSyncInventory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	props := []*models.Property{{ID: 10, HostID: 1, Name: "Lakeside", IsActive: true, IsPublished: true}}
	rooms := []*models.RoomType{{ID: 100, PropertyID: 10, Name: "Suite", TotalRooms: 4, BasePrice: 250, IsActive: true}}
	require.NoError(t, db.SyncInventory(ctx, props, rooms))

	require.NoError(t, db.SetPropertyFeatured(ctx, 10, true, time.Now(), models.ActorSystem))

	rooms[0].TotalRooms = 6
	props[0].Name = "Lakeside Lodge"
	require.NoError(t, db.SyncInventory(ctx, props, rooms))

	rt, err := db.GetRoomType(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 6, rt.TotalRooms)

	p, err := db.GetProperty(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Lakeside Lodge", p.Name)
	assert.True(t, p.IsFeatured, "sync keeps derived columns")

	_, err = db.GetRoomType(ctx, 101)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPropertyStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p, rt := seedRoomType(t, db, 5)

	hidden := &models.Property{HostID: 1, Name: "Draft", IsActive: true, IsPublished: false}
	require.NoError(t, db.CreateProperty(ctx, hidden))

	for _, r := range []struct {
		rating   float64
		approved bool
	}{{5, true}, {4, true}, {1, false}} {
		require.NoError(t, db.CreateReview(ctx, &models.Review{PropertyID: p.ID, Rating: r.rating, IsApproved: r.approved}))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, db.IncrementPropertyViews(ctx, p.ID))
	}

	now := date(2024, 1, 1)
	kept := newBooking(rt, date(2024, 2, 1), date(2024, 2, 2), 1, now)
	dropped := newBooking(rt, date(2024, 2, 1), date(2024, 2, 2), 1, now)
	require.NoError(t, db.CreateBookingWithLock(ctx, kept, "x"))
	require.NoError(t, db.CreateBookingWithLock(ctx, dropped, "x"))
	_, err := db.TransitionBooking(ctx, dropped.ID, "x", func(b *models.Booking) (string, error) {
		c, err := lifecycle.Apply(b, lifecycle.EventCancel, now)
		if err != nil {
			return "", err
		}
		return c.Action, nil
	})
	require.NoError(t, err)

	stats, err := db.GetPropertyStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)

	s := stats[0]
	assert.Equal(t, p.ID, s.PropertyID)
	assert.Equal(t, 2, s.ApprovedReviewCount)
	assert.InDelta(t, 4.5, s.AverageRating, 0.0001)
	assert.Equal(t, 1, s.BookingCount)
	assert.Equal(t, int64(3), s.ViewCount)
	assert.False(t, s.IsFeatured)
}

func TestSetPropertyFeatured(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	p, _ := seedRoomType(t, db, 1)
	now := time.Now()

	assert.ErrorIs(t, db.SetPropertyFeatured(ctx, p.ID, false, now, models.ActorSystem), ErrGuardFailed)
	require.NoError(t, db.SetPropertyFeatured(ctx, p.ID, true, now, models.ActorSystem))
	assert.ErrorIs(t, db.SetPropertyFeatured(ctx, p.ID, true, now, models.ActorSystem), ErrGuardFailed)

	audit, err := db.ListAudit(ctx, models.TableProperties, p.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, models.AuditFeaturedChanged, audit[0].Action)

	assert.ErrorIs(t, db.SetPropertyFeatured(ctx, 999, true, now, models.ActorSystem), ErrNotFound)
}
