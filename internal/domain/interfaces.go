package domain

import (
	"context"
	"time"

	"reservo/internal/models"
)

// TransitionFunc re-checks a guard on the freshly loaded booking, mutates it
// and returns the audit action.
type TransitionFunc = func(b *models.Booking) (action string, err error)

type AvailabilityRepository interface {
	GetRoomType(ctx context.Context, id int64) (*models.RoomType, error)
	GetOccupyingBookings(ctx context.Context, roomTypeID int64, from, to time.Time) ([]*models.Booking, error)
}

type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByCode(ctx context.Context, code string) (*models.Booking, error)
	GetProperty(ctx context.Context, id int64) (*models.Property, error)
	GetRoomType(ctx context.Context, id int64) (*models.RoomType, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	GetOccupyingBookings(ctx context.Context, roomTypeID int64, from, to time.Time) ([]*models.Booking, error)
	CreateBookingWithLock(ctx context.Context, booking *models.Booking, actor string) error
	TransitionBooking(ctx context.Context, id int64, actor string, fn TransitionFunc) (*models.Booking, error)
}

type AutoRejectRepository interface {
	GetAutoRejectCandidates(ctx context.Context, cutoff time.Time) ([]*models.Booking, error)
	TransitionBooking(ctx context.Context, id int64, actor string, fn TransitionFunc) (*models.Booking, error)
}

type NoShowRepository interface {
	GetNoShowCandidates(ctx context.Context, cutoff time.Time) ([]*models.Booking, error)
	TransitionBooking(ctx context.Context, id int64, actor string, fn TransitionFunc) (*models.Booking, error)
}

type ReminderRepository interface {
	GetReminderCandidates(ctx context.Context, oldest, newest time.Time) ([]*models.Booking, error)
	HasRecentNotification(ctx context.Context, kind string, bookingID int64, since time.Time) (bool, error)
}

type CouponRepository interface {
	GetExpiredActiveCoupons(ctx context.Context, now time.Time) ([]*models.Coupon, error)
	ExpireCoupon(ctx context.Context, id int64, now time.Time, actor string) error
}

type PropertyRepository interface {
	GetPropertyStats(ctx context.Context) ([]*models.PropertyStats, error)
	SetPropertyFeatured(ctx context.Context, id int64, featured bool, now time.Time, actor string) error
}

type PayoutRepository interface {
	GetPayableHosts(ctx context.Context, period models.PayoutPeriod) ([]int64, error)
	CreatePayoutForHost(ctx context.Context, hostID int64, period models.PayoutPeriod, now time.Time, actor string) (*models.HostPayout, error)
	CountPayableEarnings(ctx context.Context, hostID int64, period models.PayoutPeriod) (int, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id int64) (*models.Notification, error)
	ClaimNotifications(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Notification, error)
	MarkNotificationSent(ctx context.Context, id int64, now time.Time) error
	MarkNotificationFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) (bool, error)
}

// AuditSink records mutations that happen outside a store transaction.
type AuditSink interface {
	Record(ctx context.Context, action, table string, recordID int64, oldValues, newValues interface{}) error
}

// NotificationQueue durably enqueues a notification; bookingID may be zero.
type NotificationQueue interface {
	Enqueue(ctx context.Context, kind, recipient string, bookingID int64, payload models.Payload) error
}

// Sender delivers one notification; it is called by the queue poller.
type Sender interface {
	Send(ctx context.Context, kind, recipient string, payload models.Payload) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type PayoutExporter interface {
	WritePayouts(period models.PayoutPeriod, payouts []*models.HostPayout) (string, error)
}
