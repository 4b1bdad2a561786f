package models

import "time"

type Booking struct {
	ID         int64  `json:"id"`
	Code       string `json:"code"`
	CustomerID int64  `json:"customer_id"`
	// CustomerName and CustomerEmail are snapshotted at creation for notifications.
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	PropertyID    int64  `json:"property_id"`
	RoomTypeID    int64  `json:"room_type_id"`

	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Nights     int       `json:"nights"`
	Adults     int       `json:"adults"`
	Children   int       `json:"children"`
	RoomsCount int       `json:"rooms_count"`

	RoomPrice               float64 `json:"room_price"`
	PropertyDiscountPercent float64 `json:"property_discount_percent"`
	PropertyDiscountAmount  float64 `json:"property_discount_amount"`
	CouponCode              string  `json:"coupon_code,omitempty"`
	CouponDiscountPercent   float64 `json:"coupon_discount_percent"`
	CouponDiscountAmount    float64 `json:"coupon_discount_amount"`
	TaxAmount               float64 `json:"tax_amount"`
	ServiceFee              float64 `json:"service_fee"`
	TotalAmount             float64 `json:"total_amount"`

	Status             string `json:"status"`         // pending, confirmed, checkedIn, noShow, completed, cancelled
	PaymentStatus      string `json:"payment_status"` // unpaid, partial, paid, refunded
	CancellationReason string `json:"cancellation_reason,omitempty"`

	BookingDate  time.Time  `json:"booking_date"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Version      int64      `json:"version"`
}

// StateSnapshot is the audited part of a booking.
func (b *Booking) StateSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"status":         b.Status,
		"payment_status": b.PaymentStatus,
		"confirmed_at":   b.ConfirmedAt,
		"checked_in_at":  b.CheckedInAt,
		"checked_out_at": b.CheckedOutAt,
		"cancelled_at":   b.CancelledAt,
	}
}

// Occupies reports whether the booking holds rooms on the given calendar date.
// Stays are half-open: the check-out day is free.
func (b *Booking) Occupies(date time.Time) bool {
	if b.Status == StatusCancelled {
		return false
	}
	d := DateOf(date)
	return !d.Before(DateOf(b.CheckIn)) && d.Before(DateOf(b.CheckOut))
}

// DateOf truncates a timestamp to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NightsBetween counts calendar nights in [checkIn, checkOut).
func NightsBetween(checkIn, checkOut time.Time) int {
	return int(DateOf(checkOut).Sub(DateOf(checkIn)).Hours() / 24)
}

// NotificationPayload is the payload attached to notifications about the booking.
func (b *Booking) NotificationPayload() Payload {
	return Payload{
		"booking_id":     b.ID,
		"booking_code":   b.Code,
		"customer_name":  b.CustomerName,
		"property_id":    b.PropertyID,
		"check_in":       b.CheckIn.Format("2006-01-02"),
		"check_out":      b.CheckOut.Format("2006-01-02"),
		"nights":         b.Nights,
		"rooms":          b.RoomsCount,
		"total_amount":   b.TotalAmount,
		"status":         b.Status,
		"payment_status": b.PaymentStatus,
	}
}
