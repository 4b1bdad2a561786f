// Package lifecycle holds the booking state machine: which events may move a
// booking between status and payment-status pairs, and what each move stamps.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"reservo/internal/models"
)

type Event string

const (
	EventPaymentSucceeded Event = "payment_succeeded"
	EventPartialPayment   Event = "partial_payment"
	EventCheckIn          Event = "check_in"
	EventCheckOut         Event = "check_out"
	EventCancel           Event = "cancel"
	EventRefund           Event = "refund"
	EventAutoReject       Event = "auto_reject"
	EventNoShow           Event = "no_show"
)

var ErrIllegalTransition = errors.New("illegal booking transition")

// TransitionError describes a rejected event. It unwraps to ErrIllegalTransition.
type TransitionError struct {
	Event         Event
	Status        string
	PaymentStatus string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed from %s/%s", e.Event, e.Status, e.PaymentStatus)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

type rule struct {
	from        []string
	fromPayment []string // nil matches any payment status
	to          string   // empty keeps the status
	toPayment   string   // empty keeps the payment status
	action      string
	stamp       func(b *models.Booking, now time.Time)
	system      bool
}

var rules = map[Event]rule{
	EventPaymentSucceeded: {
		from:        []string{models.StatusPending},
		fromPayment: []string{models.PaymentUnpaid, models.PaymentPartial},
		to:          models.StatusConfirmed,
		toPayment:   models.PaymentPaid,
		action:      models.AuditPaymentConfirmed,
		stamp:       func(b *models.Booking, now time.Time) { b.ConfirmedAt = &now },
	},
	EventPartialPayment: {
		from:        []string{models.StatusPending},
		fromPayment: []string{models.PaymentUnpaid},
		toPayment:   models.PaymentPartial,
		action:      models.AuditPartialPayment,
	},
	EventCheckIn: {
		from:   []string{models.StatusConfirmed},
		to:     models.StatusCheckedIn,
		action: models.AuditCheckIn,
		stamp:  func(b *models.Booking, now time.Time) { b.CheckedInAt = &now },
	},
	EventCheckOut: {
		from:   []string{models.StatusCheckedIn},
		to:     models.StatusCompleted,
		action: models.AuditCheckOut,
		stamp:  func(b *models.Booking, now time.Time) { b.CheckedOutAt = &now },
	},
	EventCancel: {
		from:   []string{models.StatusPending, models.StatusConfirmed},
		to:     models.StatusCancelled,
		action: models.AuditCancel,
		stamp:  func(b *models.Booking, now time.Time) { b.CancelledAt = &now },
	},
	EventRefund: {
		from:        []string{models.StatusCancelled},
		fromPayment: []string{models.PaymentPaid, models.PaymentPartial},
		toPayment:   models.PaymentRefunded,
		action:      models.AuditRefund,
	},
	EventAutoReject: {
		from:        []string{models.StatusPending},
		fromPayment: []string{models.PaymentUnpaid},
		to:          models.StatusCancelled,
		action:      models.AuditSystemReject,
		stamp:       func(b *models.Booking, now time.Time) { b.CancelledAt = &now },
		system:      true,
	},
	EventNoShow: {
		from:        []string{models.StatusConfirmed},
		fromPayment: []string{models.PaymentPaid},
		to:          models.StatusNoShow,
		action:      models.AuditSystemNoShow,
		system:      true,
	},
}

// Change is the outcome of a successful Apply.
type Change struct {
	Event      Event
	Action     string
	OldStatus  string
	NewStatus  string
	OldPayment string
	NewPayment string
	At         time.Time
}

// Allowed reports whether ev may fire from the given status pair.
func Allowed(ev Event, status, payment string) bool {
	r, ok := rules[ev]
	if !ok {
		return false
	}
	return contains(r.from, status) && (r.fromPayment == nil || contains(r.fromPayment, payment))
}

// Apply validates ev against b and mutates b in place. b is left untouched on error.
func Apply(b *models.Booking, ev Event, now time.Time) (*Change, error) {
	r, ok := rules[ev]
	if !ok || !Allowed(ev, b.Status, b.PaymentStatus) {
		return nil, &TransitionError{Event: ev, Status: b.Status, PaymentStatus: b.PaymentStatus}
	}

	now = now.UTC()
	c := &Change{
		Event:      ev,
		Action:     r.action,
		OldStatus:  b.Status,
		NewStatus:  b.Status,
		OldPayment: b.PaymentStatus,
		NewPayment: b.PaymentStatus,
		At:         now,
	}
	if r.to != "" {
		c.NewStatus = r.to
	}
	if r.toPayment != "" {
		c.NewPayment = r.toPayment
	}

	b.Status = c.NewStatus
	b.PaymentStatus = c.NewPayment
	if r.stamp != nil {
		r.stamp(b, now)
	}
	b.UpdatedAt = now
	return c, nil
}

// Action returns the audit action recorded for ev.
func Action(ev Event) string {
	return rules[ev].action
}

// IsTerminal reports whether no further status change is possible.
func IsTerminal(status string) bool {
	switch status {
	case models.StatusCompleted, models.StatusCancelled, models.StatusNoShow:
		return true
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
