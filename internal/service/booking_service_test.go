package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"reservo/internal/clock"
	"reservo/internal/config"
	"reservo/internal/database"
	"reservo/internal/events"
	"reservo/internal/lifecycle"
	"reservo/internal/models"
	"reservo/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) Enqueue(ctx context.Context, kind, recipient string, bookingID int64, payload models.Payload) error {
	return m.Called(ctx, kind, recipient, bookingID, payload).Error(0)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type fixture struct {
	db       *database.DB
	svc      *BookingService
	queue    *mockQueue
	bus      *mockEventBus
	clock    *clock.Manual
	property *models.Property
	roomType *models.RoomType
}

func newFixture(t *testing.T, totalRooms int, queueErr error) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	p := &models.Property{HostID: 3, Name: "Dune House", IsActive: true, IsPublished: true, DiscountPercent: 10}
	require.NoError(t, db.CreateProperty(ctx, p))
	rt := &models.RoomType{PropertyID: p.ID, Name: "Suite", TotalRooms: totalRooms, BasePrice: 100, IsActive: true}
	require.NoError(t, db.CreateRoomType(ctx, rt))

	queue := new(mockQueue)
	queue.On("Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(queueErr)
	bus := new(mockEventBus)
	bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	clk := clock.NewManual(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	pricing := config.BookingConfig{TaxPercent: 10, ServiceFeePercent: 5, MaxNights: 30}

	return &fixture{
		db:       db,
		svc:      NewBookingService(db, queue, bus, clk, pricing, &logger),
		queue:    queue,
		bus:      bus,
		clock:    clk,
		property: p,
		roomType: rt,
	}
}

func (f *fixture) request(in, out time.Time, rooms int) CreateBookingRequest {
	return CreateBookingRequest{
		CustomerID:    42,
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		PropertyID:    f.property.ID,
		RoomTypeID:    f.roomType.ID,
		CheckIn:       in,
		CheckOut:      out,
		Adults:        2,
		Rooms:         rooms,
	}
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestBookingService_Create(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()

	coupon := &models.Coupon{Code: "save10", DiscountType: models.DiscountPercent, DiscountValue: 10,
		StartDate: day(1), EndDate: day(31), IsActive: true, UsageLimit: 5}
	require.NoError(t, f.db.CreateCoupon(ctx, coupon))

	req := f.request(day(10), day(12), 1)
	req.CouponCode = "save10"
	b, err := f.svc.Create(ctx, req)
	require.NoError(t, err)

	assert.NotZero(t, b.ID)
	assert.Regexp(t, `^BK20240101-[0-9A-F]{6}$`, b.Code)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, models.PaymentUnpaid, b.PaymentStatus)
	assert.Equal(t, 2, b.Nights)
	// 200 base, 20 property discount, 18 coupon, 10% tax and 5% fee on 162
	assert.InDelta(t, 20, b.PropertyDiscountAmount, 0.001)
	assert.InDelta(t, 18, b.CouponDiscountAmount, 0.001)
	assert.InDelta(t, 16.2, b.TaxAmount, 0.001)
	assert.InDelta(t, 8.1, b.ServiceFee, 0.001)
	assert.InDelta(t, 186.3, b.TotalAmount, 0.001)
	assert.Equal(t, "SAVE10", b.CouponCode)

	used, err := f.db.GetCouponByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, used.UsedCount)

	f.bus.AssertCalled(t, "PublishJSON", events.EventBookingCreated, mock.Anything)
	f.queue.AssertCalled(t, "Enqueue", mock.Anything, models.NotifBookingCreated, "ada@example.com", b.ID, mock.Anything)
}

func TestBookingService_CreateRejections(t *testing.T) {
	f := newFixture(t, 1, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.request(day(10), day(11), 1))
	require.NoError(t, err)

	t.Run("NotAvailable", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.request(day(9), day(11), 1))
		assert.ErrorIs(t, err, database.ErrNotAvailable)
	})

	t.Run("CheckoutDayIsFree", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.request(day(11), day(12), 1))
		assert.NoError(t, err)
	})

	t.Run("InvalidRange", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.request(day(12), day(12), 1))
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("InvalidRooms", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.request(day(20), day(21), 0))
		assert.ErrorIs(t, err, ErrInvalidRooms)
	})

	t.Run("StayTooLong", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.request(day(1), day(1).AddDate(0, 2, 0), 1))
		assert.ErrorIs(t, err, ErrStayTooLong)
	})

	t.Run("UnknownCoupon", func(t *testing.T) {
		req := f.request(day(20), day(21), 1)
		req.CouponCode = "nope"
		_, err := f.svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrCouponInvalid)
	})

	t.Run("ExpiredCoupon", func(t *testing.T) {
		require.NoError(t, f.db.CreateCoupon(ctx, &models.Coupon{Code: "xmas", DiscountType: models.DiscountFixed,
			DiscountValue: 5, StartDate: day(1).AddDate(0, -1, 0), EndDate: day(1), IsActive: true}))
		req := f.request(day(20), day(21), 1)
		req.CouponCode = "xmas"
		_, err := f.svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrCouponInvalid)
	})

	t.Run("RoomTypeOfOtherProperty", func(t *testing.T) {
		req := f.request(day(20), day(21), 1)
		req.PropertyID = f.property.ID + 100
		_, err := f.svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrRoomTypeNotFound)
	})
}

func TestBookingService_Lifecycle(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.request(day(10), day(12), 1))
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	b, err = f.svc.ConfirmPayment(ctx, b.ID, "gateway")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.Equal(t, models.PaymentPaid, b.PaymentStatus)
	require.NotNil(t, b.ConfirmedAt)
	assert.True(t, b.ConfirmedAt.Equal(f.clock.Now()))

	_, err = f.svc.CheckOut(ctx, b.ID, "host:3")
	assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)

	f.clock.Set(day(10).Add(15 * time.Hour))
	b, err = f.svc.CheckIn(ctx, b.ID, "host:3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedIn, b.Status)

	f.clock.Set(day(12).Add(10 * time.Hour))
	b, err = f.svc.CheckOut(ctx, b.ID, "host:3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, b.Status)
	require.NotNil(t, b.CheckedOutAt)

	_, err = f.svc.Cancel(ctx, b.ID, "customer:42", "changed plans")
	assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)

	audit, err := f.db.ListAudit(ctx, models.TableBookings, b.ID)
	require.NoError(t, err)
	var actions []string
	for _, e := range audit {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{models.AuditCreate, models.AuditPaymentConfirmed, models.AuditCheckIn, models.AuditCheckOut}, actions)

	f.bus.AssertCalled(t, "PublishJSON", events.EventBookingConfirmed, mock.Anything)
	f.bus.AssertCalled(t, "PublishJSON", events.EventBookingCheckedOut, mock.Anything)
	f.queue.AssertCalled(t, "Enqueue", mock.Anything, models.NotifBookingConfirmation, "ada@example.com", b.ID, mock.Anything)
	f.queue.AssertCalled(t, "Enqueue", mock.Anything, models.NotifCheckOut, "ada@example.com", b.ID, mock.Anything)
}

func TestBookingService_CancelAndRefund(t *testing.T) {
	f := newFixture(t, 1, nil)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.request(day(10), day(12), 1))
	require.NoError(t, err)
	_, err = f.svc.PartialPayment(ctx, b.ID, "gateway")
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, b.ID, "admin")
	assert.ErrorIs(t, err, lifecycle.ErrIllegalTransition)

	b, err = f.svc.Cancel(ctx, b.ID, "customer:42", "changed plans")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, b.Status)
	assert.Equal(t, "changed plans", b.CancellationReason)
	require.NotNil(t, b.CancelledAt)

	b, err = f.svc.Refund(ctx, b.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, b.Status)
	assert.Equal(t, models.PaymentRefunded, b.PaymentStatus)

	// Cancelled rooms are free again.
	res, err := f.svc.CheckAvailability(ctx, f.property.ID, f.roomType.ID, day(10), day(12), 1)
	require.NoError(t, err)
	assert.True(t, res.Available)

	f.queue.AssertCalled(t, "Enqueue", mock.Anything, models.NotifRefundTicket, "ada@example.com", b.ID, mock.Anything)
}

func TestBookingService_CheckInTimeDrivesNoShow(t *testing.T) {
	f := newFixture(t, 1, nil)
	ctx := context.Background()

	in, out := day(10).Add(14*time.Hour), day(12).Add(11*time.Hour)
	b, err := f.svc.Create(ctx, f.request(in, out, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, b.Nights)

	stored, err := f.db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, stored.CheckIn.Equal(in), "stored check-in %s", stored.CheckIn)
	assert.True(t, stored.CheckOut.Equal(out), "stored check-out %s", stored.CheckOut)

	// the departure day is free for the next guest
	_, err = f.svc.Create(ctx, f.request(day(12).Add(15*time.Hour), day(13).Add(11*time.Hour), 1))
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(ctx, b.ID, "gateway")
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	w := worker.NewNoShowWorker(f.db, f.queue, f.bus, f.db, f.clock, 6*time.Hour, &logger)

	f.clock.Set(day(10).Add(7 * time.Hour))
	res, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Applied)

	stored, err = f.db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, stored.Status)

	f.clock.Set(day(10).Add(20*time.Hour + time.Minute))
	res, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	stored, err = f.db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, stored.Status)
}

func TestBookingService_EnqueueFailureKeepsTransition(t *testing.T) {
	f := newFixture(t, 1, errors.New("queue down"))
	ctx := context.Background()

	b, err := f.svc.Create(ctx, f.request(day(10), day(12), 1))
	require.NoError(t, err)

	b, err = f.svc.Cancel(ctx, b.ID, "customer:42", "")
	require.NoError(t, err)

	stored, err := f.db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)
}

func TestBookingService_GetAvailableDates(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.request(day(30), day(1).AddDate(0, 1, 1), 2))
	require.NoError(t, err)

	days, err := f.svc.GetAvailableDates(ctx, f.roomType.ID, 2024, time.January)
	require.NoError(t, err)
	require.Len(t, days, 31)
	assert.Equal(t, 2, days[28].Available)
	assert.Equal(t, 0, days[29].Available)
	assert.Equal(t, 0, days[30].Available)

	feb, err := f.svc.GetAvailableDates(ctx, f.roomType.ID, 2024, time.February)
	require.NoError(t, err)
	require.Len(t, feb, 29)
	assert.Equal(t, 0, feb[0].Available)
	assert.Equal(t, 2, feb[1].Available)
}
