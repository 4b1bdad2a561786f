package lifecycle

import (
	"fmt"
	"time"

	"reservo/internal/models"
)

// AutoRejectDue holds for unpaid pending bookings created before cutoff.
// cutoff is now minus the payment deadline, captured once per run.
func AutoRejectDue(b *models.Booking, cutoff time.Time) bool {
	return Allowed(EventAutoReject, b.Status, b.PaymentStatus) && b.BookingDate.Before(cutoff)
}

// NoShowDue holds for paid confirmed bookings whose check-in is at or before
// cutoff (now minus the grace period) and which never checked in.
func NoShowDue(b *models.Booking, cutoff time.Time) bool {
	return Allowed(EventNoShow, b.Status, b.PaymentStatus) &&
		b.CheckedInAt == nil &&
		!b.CheckIn.After(cutoff)
}

// ReminderDue holds for unpaid pending bookings with bookingDate in (oldest, newest].
func ReminderDue(b *models.Booking, oldest, newest time.Time) bool {
	return b.Status == models.StatusPending &&
		b.PaymentStatus == models.PaymentUnpaid &&
		b.BookingDate.After(oldest) &&
		!b.BookingDate.After(newest)
}

// CheckSystemGuardsDisjoint verifies that no status pair can be claimed by
// more than one system-initiated event.
func CheckSystemGuardsDisjoint() error {
	for _, status := range models.BookingStatuses {
		for _, payment := range models.PaymentStatuses {
			var claimed []Event
			for ev, r := range rules {
				if r.system && Allowed(ev, status, payment) {
					claimed = append(claimed, ev)
				}
			}
			if len(claimed) > 1 {
				return fmt.Errorf("system events %v overlap on %s/%s", claimed, status, payment)
			}
		}
	}
	return nil
}
