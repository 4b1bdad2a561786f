package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"reservo/internal/clock"
	"reservo/internal/config"
	"reservo/internal/database"
	"reservo/internal/domain"
	"reservo/internal/events"
	"reservo/internal/lifecycle"
	"reservo/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrCouponInvalid = errors.New("coupon is invalid or expired")
	ErrStayTooLong   = errors.New("stay exceeds the maximum number of nights")
)

// CreateBookingRequest is a customer's booking attempt.
type CreateBookingRequest struct {
	CustomerID    int64
	CustomerName  string
	CustomerEmail string
	PropertyID    int64
	RoomTypeID    int64
	CheckIn       time.Time
	CheckOut      time.Time
	Adults        int
	Children      int
	Rooms         int
	CouponCode    string
}

var transitionNotifications = map[lifecycle.Event]string{
	lifecycle.EventPaymentSucceeded: models.NotifBookingConfirmation,
	lifecycle.EventCheckIn:          models.NotifCheckIn,
	lifecycle.EventCheckOut:         models.NotifCheckOut,
	lifecycle.EventCancel:           models.NotifBookingCancellation,
	lifecycle.EventRefund:           models.NotifRefundTicket,
}

type BookingService struct {
	repo         domain.BookingRepository
	availability *AvailabilityService
	queue        domain.NotificationQueue
	eventBus     domain.EventPublisher
	clock        clock.Clock
	pricing      config.BookingConfig
	logger       *zerolog.Logger
}

func NewBookingService(
	repo domain.BookingRepository,
	queue domain.NotificationQueue,
	eventBus domain.EventPublisher,
	clk clock.Clock,
	pricing config.BookingConfig,
	logger *zerolog.Logger,
) *BookingService {
	if clk == nil {
		clk = clock.Real{}
	}
	if pricing.MaxNights <= 0 {
		pricing.MaxNights = 90
	}
	return &BookingService{
		repo:         repo,
		availability: NewAvailabilityService(repo, logger),
		queue:        queue,
		eventBus:     eventBus,
		clock:        clk,
		pricing:      pricing,
		logger:       logger,
	}
}

// Create prices the stay and inserts a pending, unpaid booking. Availability
// is checked here and again inside the insert transaction.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	now := s.clock.Now()
	checkIn, checkOut := req.CheckIn.UTC(), req.CheckOut.UTC()

	nights := models.NightsBetween(checkIn, checkOut)
	if nights > s.pricing.MaxNights {
		return nil, ErrStayTooLong
	}

	res, err := s.availability.CheckAvailability(ctx, req.PropertyID, req.RoomTypeID, checkIn, checkOut, req.Rooms)
	if err != nil {
		return nil, err
	}
	if !res.Available {
		return nil, database.ErrNotAvailable
	}

	rt, err := s.repo.GetRoomType(ctx, req.RoomTypeID)
	if err != nil {
		return nil, err
	}
	property, err := s.repo.GetProperty(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}

	b := &models.Booking{
		Code:          newBookingCode(now),
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		PropertyID:    req.PropertyID,
		RoomTypeID:    req.RoomTypeID,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		Nights:        nights,
		Adults:        req.Adults,
		Children:      req.Children,
		RoomsCount:    req.Rooms,
		RoomPrice:     rt.BasePrice,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentUnpaid,
		BookingDate:   now,
	}

	var coupon *models.Coupon
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		coupon, err = s.repo.GetCouponByCode(ctx, code)
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrCouponInvalid
		}
		if err != nil {
			return nil, err
		}
		if !coupon.Usable(now) {
			return nil, ErrCouponInvalid
		}
	}
	s.price(b, property, coupon)

	actor := fmt.Sprintf("customer:%d", req.CustomerID)
	if err := s.repo.CreateBookingWithLock(ctx, b, actor); err != nil {
		if errors.Is(err, database.ErrCouponUnavailable) {
			return nil, ErrCouponInvalid
		}
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Str("code", b.Code).
		Int64("room_type_id", b.RoomTypeID).
		Int("rooms", b.RoomsCount).
		Msg("Booking created")

	s.publishEvent(events.EventBookingCreated, b, "", actor)
	s.notify(ctx, models.NotifBookingCreated, b)
	return b, nil
}

// price fills the commercial fields. Discounts apply to the room total,
// tax and service fee to the discounted subtotal.
func (s *BookingService) price(b *models.Booking, p *models.Property, c *models.Coupon) {
	base := b.RoomPrice * float64(b.Nights) * float64(b.RoomsCount)

	b.PropertyDiscountPercent = p.DiscountPercent
	b.PropertyDiscountAmount = round2(base * p.DiscountPercent / 100)
	subtotal := base - b.PropertyDiscountAmount

	if c != nil {
		percent, value := c.Discount(subtotal)
		b.CouponCode = c.Code
		b.CouponDiscountPercent = percent
		b.CouponDiscountAmount = round2(value)
		subtotal -= b.CouponDiscountAmount
	}

	b.TaxAmount = round2(subtotal * s.pricing.TaxPercent / 100)
	b.ServiceFee = round2(subtotal * s.pricing.ServiceFeePercent / 100)
	b.TotalAmount = round2(subtotal + b.TaxAmount + b.ServiceFee)
}

func (s *BookingService) ConfirmPayment(ctx context.Context, id int64, actor string) (*models.Booking, error) {
	return s.transition(ctx, id, lifecycle.EventPaymentSucceeded, actor, "")
}

func (s *BookingService) PartialPayment(ctx context.Context, id int64, actor string) (*models.Booking, error) {
	return s.transition(ctx, id, lifecycle.EventPartialPayment, actor, "")
}

func (s *BookingService) CheckIn(ctx context.Context, id int64, actor string) (*models.Booking, error) {
	return s.transition(ctx, id, lifecycle.EventCheckIn, actor, "")
}

func (s *BookingService) CheckOut(ctx context.Context, id int64, actor string) (*models.Booking, error) {
	return s.transition(ctx, id, lifecycle.EventCheckOut, actor, "")
}

func (s *BookingService) Cancel(ctx context.Context, id int64, actor, reason string) (*models.Booking, error) {
	return s.transition(ctx, id, lifecycle.EventCancel, actor, reason)
}

func (s *BookingService) Refund(ctx context.Context, id int64, actor string) (*models.Booking, error) {
	return s.transition(ctx, id, lifecycle.EventRefund, actor, "")
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) GetBookingByCode(ctx context.Context, code string) (*models.Booking, error) {
	return s.repo.GetBookingByCode(ctx, code)
}

func (s *BookingService) CheckAvailability(
	ctx context.Context,
	propertyID, roomTypeID int64,
	checkIn, checkOut time.Time,
	rooms int,
) (*models.AvailabilityResult, error) {
	return s.availability.CheckAvailability(ctx, propertyID, roomTypeID, checkIn, checkOut, rooms)
}

func (s *BookingService) GetAvailableDates(ctx context.Context, roomTypeID int64, year int, month time.Month) ([]models.DayAvailability, error) {
	return s.availability.GetAvailableDates(ctx, roomTypeID, year, month)
}

// transition applies ev to the freshly loaded row inside the store
// transaction; events and notifications follow the commit.
func (s *BookingService) transition(ctx context.Context, id int64, ev lifecycle.Event, actor, reason string) (*models.Booking, error) {
	var change *lifecycle.Change
	b, err := s.repo.TransitionBooking(ctx, id, actor, func(b *models.Booking) (string, error) {
		c, err := lifecycle.Apply(b, ev, s.clock.Now())
		if err != nil {
			return "", err
		}
		if ev == lifecycle.EventCancel {
			b.CancellationReason = reason
		}
		change = c
		return c.Action, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Str("event", string(ev)).
		Str("from", change.OldStatus).
		Str("to", change.NewStatus).
		Str("payment_status", b.PaymentStatus).
		Str("actor", actor).
		Msg("Booking transitioned")

	s.publishEvent(events.ForTransition(ev), b, change.OldStatus, actor)
	if kind, ok := transitionNotifications[ev]; ok {
		s.notify(ctx, kind, b)
	}
	return b, nil
}

func (s *BookingService) publishEvent(eventType string, b *models.Booking, oldStatus, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.NewBookingPayload(b, oldStatus, changedBy)
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}

// notify enqueues a customer notification. A failure is logged and never
// undoes the committed change.
func (s *BookingService) notify(ctx context.Context, kind string, b *models.Booking) {
	if s.queue == nil {
		return
	}
	if b.CustomerEmail == "" {
		s.logger.Debug().Int64("booking_id", b.ID).Str("type", kind).Msg("No customer e-mail, notification skipped")
		return
	}

	if err := s.queue.Enqueue(ctx, kind, b.CustomerEmail, b.ID, b.NotificationPayload()); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", b.ID).Str("type", kind).Msg("notification enqueue error")
	}
}

// newBookingCode builds codes like BK20240110-3F9A1C.
func newBookingCode(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BK" + now.Format("20060102") + "-" + strings.ToUpper(id[:6])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
