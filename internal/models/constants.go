package models

// Booking status values.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCheckedIn = "checkedIn"
	StatusNoShow    = "noShow"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Payment status values.
const (
	PaymentUnpaid   = "unpaid"
	PaymentPartial  = "partial"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

var (
	BookingStatuses = []string{StatusPending, StatusConfirmed, StatusCheckedIn, StatusNoShow, StatusCompleted, StatusCancelled}
	PaymentStatuses = []string{PaymentUnpaid, PaymentPartial, PaymentPaid, PaymentRefunded}
)

// Host earning status values.
const (
	EarningApproved = "approved"
	EarningPending  = "pending"
	EarningRejected = "rejected"
)

const PayoutStatusPending = "pending"

// Coupon discount types.
const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

// Notification types.
const (
	NotifBookingCreated      = "booking_created"
	NotifBookingConfirmation = "booking_confirmation"
	NotifBookingCancellation = "booking_cancellation"
	NotifNoShow              = "no_show"
	NotifPaymentReminder     = "payment_reminder"
	NotifCheckIn             = "check_in"
	NotifCheckOut            = "check_out"
	NotifRefundTicket        = "refund_ticket"
	NotifPayoutCreated       = "payout_created"
	NotifAdminBroadcast      = "admin_broadcast"
)

// Notification queue states.
const (
	NotificationPending    = "pending"
	NotificationProcessing = "processing"
	NotificationRetry      = "retry"
	NotificationSent       = "sent"
	NotificationFailed     = "failed"
)

// Audit actions.
const (
	AuditCreate           = "CREATE"
	AuditPaymentConfirmed = "PAYMENT_CONFIRMED"
	AuditPartialPayment   = "PARTIAL_PAYMENT"
	AuditCheckIn          = "CHECK_IN"
	AuditCheckOut         = "CHECK_OUT"
	AuditCancel           = "CANCEL"
	AuditRefund           = "REFUND"
	AuditSystemReject     = "SYSTEM_REJECT"
	AuditSystemNoShow     = "SYSTEM_NO_SHOW"
	AuditCouponExpired    = "COUPON_EXPIRED"
	AuditFeaturedChanged  = "FEATURED_CHANGED"
	AuditPayoutCreated    = "PAYOUT_CREATED"
	AuditWorkerFailure    = "WORKER_FAILURE"
)

// Audited table names.
const (
	TableBookings     = "bookings"
	TableCoupons      = "coupons"
	TableProperties   = "properties"
	TableHostPayouts  = "host_payouts"
	TableHostEarnings = "host_earnings"
)

// Actor recorded for transitions applied by the engine itself.
const ActorSystem = "system"
