package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/internal/models"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func booking(status, payment string) *models.Booking {
	return &models.Booking{
		ID:            1,
		Status:        status,
		PaymentStatus: payment,
		BookingDate:   t0,
		CheckIn:       t0.Add(48 * time.Hour),
		CheckOut:      t0.Add(96 * time.Hour),
	}
}

func TestApply_HappyPath(t *testing.T) {
	b := booking(models.StatusPending, models.PaymentUnpaid)

	c, err := Apply(b, EventPaymentSucceeded, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.Equal(t, models.PaymentPaid, b.PaymentStatus)
	require.NotNil(t, b.ConfirmedAt)
	assert.Equal(t, models.AuditPaymentConfirmed, c.Action)
	assert.Equal(t, models.StatusPending, c.OldStatus)
	assert.Equal(t, models.PaymentUnpaid, c.OldPayment)

	_, err = Apply(b, EventCheckIn, t0.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedIn, b.Status)
	require.NotNil(t, b.CheckedInAt)

	_, err = Apply(b, EventCheckOut, t0.Add(96*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, b.Status)
	require.NotNil(t, b.CheckedOutAt)
	assert.True(t, IsTerminal(b.Status))
}

func TestApply_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		payment string
		event   Event
	}{
		{"check-in while pending", models.StatusPending, models.PaymentUnpaid, EventCheckIn},
		{"check-out while confirmed", models.StatusConfirmed, models.PaymentPaid, EventCheckOut},
		{"cancel after check-in", models.StatusCheckedIn, models.PaymentPaid, EventCancel},
		{"cancel completed", models.StatusCompleted, models.PaymentPaid, EventCancel},
		{"cancel twice", models.StatusCancelled, models.PaymentUnpaid, EventCancel},
		{"pay cancelled", models.StatusCancelled, models.PaymentUnpaid, EventPaymentSucceeded},
		{"auto-reject paid", models.StatusPending, models.PaymentPaid, EventAutoReject},
		{"auto-reject partial", models.StatusPending, models.PaymentPartial, EventAutoReject},
		{"no-show unpaid", models.StatusConfirmed, models.PaymentUnpaid, EventNoShow},
		{"no-show pending", models.StatusPending, models.PaymentPaid, EventNoShow},
		{"check-in no-show", models.StatusNoShow, models.PaymentPaid, EventCheckIn},
		{"refund unpaid", models.StatusCancelled, models.PaymentUnpaid, EventRefund},
		{"refund active booking", models.StatusConfirmed, models.PaymentPaid, EventRefund},
		{"unknown event", models.StatusPending, models.PaymentUnpaid, Event("teleport")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := booking(tt.status, tt.payment)
			_, err := Apply(b, tt.event, t0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIllegalTransition))

			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.event, te.Event)

			assert.Equal(t, tt.status, b.Status, "booking must be untouched")
			assert.Equal(t, tt.payment, b.PaymentStatus)
		})
	}
}

func TestApply_CancelledIsTerminal(t *testing.T) {
	b := booking(models.StatusPending, models.PaymentUnpaid)
	_, err := Apply(b, EventCancel, t0)
	require.NoError(t, err)
	require.NotNil(t, b.CancelledAt)

	for ev := range rules {
		if ev == EventRefund {
			continue
		}
		_, err := Apply(b, ev, t0.Add(time.Hour))
		assert.ErrorIs(t, err, ErrIllegalTransition, "event %s", ev)
		assert.Equal(t, models.StatusCancelled, b.Status)
	}
}

func TestApply_PartialThenRefund(t *testing.T) {
	b := booking(models.StatusPending, models.PaymentUnpaid)

	_, err := Apply(b, EventPartialPayment, t0)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, models.PaymentPartial, b.PaymentStatus)

	_, err = Apply(b, EventCancel, t0.Add(time.Hour))
	require.NoError(t, err)

	c, err := Apply(b, EventRefund, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, b.Status)
	assert.Equal(t, models.PaymentRefunded, b.PaymentStatus)
	assert.Equal(t, models.AuditRefund, c.Action)
}

func TestAutoRejectDue(t *testing.T) {
	now := t0.Add(25 * time.Hour)
	cutoff := now.Add(-24 * time.Hour)

	b := booking(models.StatusPending, models.PaymentUnpaid)
	assert.True(t, AutoRejectDue(b, cutoff))

	young := booking(models.StatusPending, models.PaymentUnpaid)
	young.BookingDate = now.Add(-23 * time.Hour)
	assert.False(t, AutoRejectDue(young, cutoff))

	exact := booking(models.StatusPending, models.PaymentUnpaid)
	exact.BookingDate = cutoff
	assert.False(t, AutoRejectDue(exact, cutoff), "age must exceed the deadline")

	partial := booking(models.StatusPending, models.PaymentPartial)
	assert.False(t, AutoRejectDue(partial, cutoff))
}

func TestNoShowDue(t *testing.T) {
	now := t0.Add(100 * time.Hour)
	cutoff := now.Add(-6 * time.Hour)

	b := booking(models.StatusConfirmed, models.PaymentPaid)
	b.CheckIn = now.Add(-7 * time.Hour)
	assert.True(t, NoShowDue(b, cutoff))

	checkedIn := now.Add(-6 * time.Hour)
	b.CheckedInAt = &checkedIn
	assert.False(t, NoShowDue(b, cutoff), "a guest who checked in is never a no-show")

	early := booking(models.StatusConfirmed, models.PaymentPaid)
	early.CheckIn = now.Add(-5 * time.Hour)
	assert.False(t, NoShowDue(early, cutoff))

	unpaid := booking(models.StatusConfirmed, models.PaymentPartial)
	unpaid.CheckIn = now.Add(-7 * time.Hour)
	assert.False(t, NoShowDue(unpaid, cutoff))
}

func TestReminderDue(t *testing.T) {
	now := t0.Add(30 * time.Hour)
	oldest, newest := now.Add(-24*time.Hour), now.Add(-time.Hour)

	b := booking(models.StatusPending, models.PaymentUnpaid)
	b.BookingDate = now.Add(-2 * time.Hour)
	assert.True(t, ReminderDue(b, oldest, newest))

	b.BookingDate = newest
	assert.True(t, ReminderDue(b, oldest, newest), "upper bound is inclusive")

	b.BookingDate = oldest
	assert.False(t, ReminderDue(b, oldest, newest), "lower bound is exclusive")

	b.BookingDate = now.Add(-30 * time.Minute)
	assert.False(t, ReminderDue(b, oldest, newest))
}

func TestCheckSystemGuardsDisjoint(t *testing.T) {
	require.NoError(t, CheckSystemGuardsDisjoint())

	saved := rules[EventNoShow]
	defer func() { rules[EventNoShow] = saved }()

	overlapping := saved
	overlapping.from = []string{models.StatusPending, models.StatusConfirmed}
	overlapping.fromPayment = nil
	rules[EventNoShow] = overlapping

	assert.Error(t, CheckSystemGuardsDisjoint())
}
