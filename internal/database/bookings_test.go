package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/internal/lifecycle"
	"reservo/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(os.Stdout).Level(zerolog.WarnLevel)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedRoomType(t *testing.T, db *DB, totalRooms int) (*models.Property, *models.RoomType) {
	ctx := context.Background()
	p := &models.Property{HostID: 7, Name: "Harbour Inn", IsActive: true, IsPublished: true}
	require.NoError(t, db.CreateProperty(ctx, p))
	rt := &models.RoomType{PropertyID: p.ID, Name: "Double", TotalRooms: totalRooms, BasePrice: 100, IsActive: true}
	require.NoError(t, db.CreateRoomType(ctx, rt))
	return p, rt
}

func newBooking(rt *models.RoomType, checkIn, checkOut time.Time, rooms int, bookedAt time.Time) *models.Booking {
	return &models.Booking{
		Code:          "BK-" + uuid.NewString()[:8],
		CustomerID:    42,
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		PropertyID:    rt.PropertyID,
		RoomTypeID:    rt.ID,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		Nights:        models.NightsBetween(checkIn, checkOut),
		Adults:        2,
		RoomsCount:    rooms,
		RoomPrice:     100,
		TotalAmount:   200,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentUnpaid,
		BookingDate:   bookedAt,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateBookingWithLock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, rt := seedRoomType(t, db, 2)
	now := date(2024, 1, 1)

	b := newBooking(rt, date(2024, 1, 10), date(2024, 1, 12), 2, now)
	require.NoError(t, db.CreateBookingWithLock(ctx, b, "customer:42"))
	assert.NotZero(t, b.ID)
	assert.Equal(t, int64(1), b.Version)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Code, got.Code)
	assert.True(t, got.CheckIn.Equal(b.CheckIn))
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.ConfirmedAt)

	byCode, err := db.GetBookingByCode(ctx, b.Code)
	require.NoError(t, err)
	assert.Equal(t, b.ID, byCode.ID)

	// Fully booked on the 11th.
	overlap := newBooking(rt, date(2024, 1, 11), date(2024, 1, 13), 1, now)
	err = db.CreateBookingWithLock(ctx, overlap, "customer:42")
	assert.ErrorIs(t, err, ErrNotAvailable)

	// The checkout day is free.
	next := newBooking(rt, date(2024, 1, 12), date(2024, 1, 14), 2, now)
	require.NoError(t, db.CreateBookingWithLock(ctx, next, "customer:42"))

	audit, err := db.ListAudit(ctx, models.TableBookings, b.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, models.AuditCreate, audit[0].Action)
	assert.Equal(t, "customer:42", audit[0].Actor)
}

func TestCreateBookingWithLock_UnknownRoomType(t *testing.T) {
	db := setupTestDB(t)
	_, rt := seedRoomType(t, db, 1)
	rt.ID = 999

	err := db.CreateBookingWithLock(context.Background(), newBooking(rt, date(2024, 1, 1), date(2024, 1, 2), 1, date(2023, 12, 1)), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateBookingWithLock_CancelledFreesInventory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, rt := seedRoomType(t, db, 1)
	now := date(2024, 1, 1)

	b := newBooking(rt, date(2024, 1, 10), date(2024, 1, 11), 1, now)
	require.NoError(t, db.CreateBookingWithLock(ctx, b, "x"))

	_, err := db.TransitionBooking(ctx, b.ID, "x", func(b *models.Booking) (string, error) {
		c, err := lifecycle.Apply(b, lifecycle.EventCancel, now)
		if err != nil {
			return "", err
		}
		return c.Action, nil
	})
	require.NoError(t, err)

	again := newBooking(rt, date(2024, 1, 10), date(2024, 1, 11), 1, now)
	assert.NoError(t, db.CreateBookingWithLock(ctx, again, "x"))
}

func TestCreateBookingWithLock_Coupon(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, rt := seedRoomType(t, db, 5)
	now := date(2024, 3, 10)

	c := &models.Coupon{
		Code: "spring", DiscountType: models.DiscountPercent, DiscountValue: 10,
		StartDate: date(2024, 3, 1), EndDate: date(2024, 4, 1), IsActive: true, UsageLimit: 1,
	}
	require.NoError(t, db.CreateCoupon(ctx, c))

	first := newBooking(rt, date(2024, 4, 1), date(2024, 4, 2), 1, now)
	first.CouponCode = "SPRING"
	require.NoError(t, db.CreateBookingWithLock(ctx, first, "x"))

	second := newBooking(rt, date(2024, 4, 1), date(2024, 4, 2), 1, now)
	second.CouponCode = "SPRING"
	assert.ErrorIs(t, db.CreateBookingWithLock(ctx, second, "x"), ErrCouponUnavailable)

	got, err := db.GetCoupon(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsedCount)

	_, err = db.GetBookingByCode(ctx, second.Code)
	assert.ErrorIs(t, err, ErrNotFound, "a rejected coupon rolls back the insert")
}

func TestTransitionBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, rt := seedRoomType(t, db, 1)
	now := date(2024, 1, 1)

	b := newBooking(rt, date(2024, 1, 10), date(2024, 1, 11), 1, now)
	require.NoError(t, db.CreateBookingWithLock(ctx, b, "x"))

	pay := func(b *models.Booking) (string, error) {
		c, err := lifecycle.Apply(b, lifecycle.EventPaymentSucceeded, now.Add(time.Hour))
		if err != nil {
			return "", err
		}
		return c.Action, nil
	}

	updated, err := db.TransitionBooking(ctx, b.ID, "gateway", pay)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
	assert.Equal(t, int64(2), updated.Version)

	stored, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	require.NotNil(t, stored.ConfirmedAt)
	assert.True(t, stored.ConfirmedAt.Equal(now.Add(time.Hour)))

	// Re-applying fails the lifecycle guard and writes nothing.
	_, err = db.TransitionBooking(ctx, b.ID, "gateway", pay)
	assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)

	audit, err := db.ListAudit(ctx, models.TableBookings, b.ID)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, models.AuditPaymentConfirmed, audit[1].Action)
	assert.Contains(t, audit[1].OldValues, `"status":"pending"`)
	assert.Contains(t, audit[1].NewValues, `"status":"confirmed"`)
}

func TestTransitionBooking_GuardFailedRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, rt := seedRoomType(t, db, 1)

	b := newBooking(rt, date(2024, 1, 10), date(2024, 1, 11), 1, date(2024, 1, 1))
	require.NoError(t, db.CreateBookingWithLock(ctx, b, "x"))

	_, err := db.TransitionBooking(ctx, b.ID, "x", func(b *models.Booking) (string, error) {
		b.Status = models.StatusCancelled
		return "", ErrGuardFailed
	})
	assert.True(t, errors.Is(err, ErrGuardFailed))

	stored, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestTransitionBooking_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.TransitionBooking(context.Background(), 404, "x", func(*models.Booking) (string, error) {
		return "noop", nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCandidateQueries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, rt := seedRoomType(t, db, 10)
	now := date(2024, 6, 10).Add(12 * time.Hour)

	stale := newBooking(rt, date(2024, 7, 1), date(2024, 7, 2), 1, now.Add(-25*time.Hour))
	fresh := newBooking(rt, date(2024, 7, 1), date(2024, 7, 2), 1, now.Add(-2*time.Hour))
	tooNew := newBooking(rt, date(2024, 7, 1), date(2024, 7, 2), 1, now.Add(-30*time.Minute))
	for _, b := range []*models.Booking{stale, fresh, tooNew} {
		require.NoError(t, db.CreateBookingWithLock(ctx, b, "x"))
	}

	rejects, err := db.GetAutoRejectCandidates(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, rejects, 1)
	assert.Equal(t, stale.ID, rejects[0].ID)

	reminders, err := db.GetReminderCandidates(ctx, now.Add(-24*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, fresh.ID, reminders[0].ID)

	arrived := newBooking(rt, now.Add(-8*time.Hour), now.Add(40*time.Hour), 1, now.Add(-72*time.Hour))
	require.NoError(t, db.CreateBookingWithLock(ctx, arrived, "x"))
	_, err = db.TransitionBooking(ctx, arrived.ID, "x", func(b *models.Booking) (string, error) {
		c, err := lifecycle.Apply(b, lifecycle.EventPaymentSucceeded, now.Add(-70*time.Hour))
		if err != nil {
			return "", err
		}
		return c.Action, nil
	})
	require.NoError(t, err)

	noShows, err := db.GetNoShowCandidates(ctx, now.Add(-6*time.Hour))
	require.NoError(t, err)
	require.Len(t, noShows, 1)
	assert.Equal(t, arrived.ID, noShows[0].ID)
}

func TestGetOccupyingBookings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, rt := seedRoomType(t, db, 3)
	now := date(2024, 1, 1)

	require.NoError(t, db.CreateBookingWithLock(ctx, newBooking(rt, date(2024, 1, 10), date(2024, 1, 12), 1, now), "x"))
	require.NoError(t, db.CreateBookingWithLock(ctx, newBooking(rt, date(2024, 1, 20), date(2024, 1, 22), 1, now), "x"))

	got, err := db.GetOccupyingBookings(ctx, rt.ID, date(2024, 1, 12), date(2024, 1, 20))
	require.NoError(t, err)
	assert.Empty(t, got, "neither stay covers a night in the range")

	got, err = db.GetOccupyingBookings(ctx, rt.ID, date(2024, 1, 11), date(2024, 1, 21))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
