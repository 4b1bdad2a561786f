package notify

import (
	"fmt"
	"strings"

	"reservo/internal/models"
)

type formatter func(p models.Payload) (subject, body string)

var formatters = map[string]formatter{
	models.NotifBookingCreated:      bookingCreated,
	models.NotifBookingConfirmation: bookingConfirmation,
	models.NotifBookingCancellation: bookingCancellation,
	models.NotifNoShow:              noShow,
	models.NotifPaymentReminder:     paymentReminder,
	models.NotifCheckIn:             checkIn,
	models.NotifCheckOut:            checkOut,
	models.NotifRefundTicket:        refundTicket,
	models.NotifPayoutCreated:       payoutCreated,
	models.NotifAdminBroadcast:      adminBroadcast,
}

// Known reports whether kind has a formatter.
func Known(kind string) bool {
	_, ok := formatters[kind]
	return ok
}

// Format renders kind with payload. Missing payload fields fall back to
// neutral placeholders.
func Format(kind string, p models.Payload) (subject, body string, err error) {
	f, ok := formatters[kind]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownType, kind)
	}
	subject, body = f(p)
	return subject, body, nil
}

func greeting(p models.Payload) string {
	return "Dear " + p.GetString("customer_name", "guest") + ","
}

func stay(p models.Payload) string {
	return fmt.Sprintf("%s to %s, %d night(s), %d room(s)",
		p.GetString("check_in", "n/a"),
		p.GetString("check_out", "n/a"),
		p.GetInt64("nights", 0),
		p.GetInt64("rooms", 1))
}

func code(p models.Payload) string {
	return p.GetString("booking_code", "your booking")
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n")
}

func bookingCreated(p models.Payload) (string, string) {
	return "Booking received " + code(p), lines(
		greeting(p),
		"",
		"We have received booking "+code(p)+".",
		"Stay: "+stay(p),
		fmt.Sprintf("Amount due: %.2f", p.GetFloat("total_amount", 0)),
		"Please complete the payment to confirm it.",
	)
}

func bookingConfirmation(p models.Payload) (string, string) {
	return "Booking confirmed " + code(p), lines(
		greeting(p),
		"",
		"Your payment was received and booking "+code(p)+" is confirmed.",
		"Stay: "+stay(p),
		fmt.Sprintf("Total paid: %.2f", p.GetFloat("total_amount", 0)),
	)
}

func bookingCancellation(p models.Payload) (string, string) {
	reason := p.GetString("reason", "")
	body := []string{greeting(p), "", "Booking " + code(p) + " has been cancelled."}
	if reason != "" {
		body = append(body, "Reason: "+reason)
	}
	return "Booking cancelled " + code(p), lines(body...)
}

func noShow(p models.Payload) (string, string) {
	return "Missed check-in " + code(p), lines(
		greeting(p),
		"",
		"You did not check in for booking "+code(p)+" on "+p.GetString("check_in", "the arrival date")+".",
		"The booking has been closed as a no-show.",
	)
}

func paymentReminder(p models.Payload) (string, string) {
	hours := p.GetInt64("hours_left", 0)
	deadline := "soon"
	if hours > 0 {
		deadline = fmt.Sprintf("within %d hour(s)", hours)
	}
	return "Payment pending " + code(p), lines(
		greeting(p),
		"",
		"Booking "+code(p)+" is still awaiting payment.",
		fmt.Sprintf("Amount due: %.2f", p.GetFloat("total_amount", 0)),
		"Please pay "+deadline+" or the booking will be released.",
	)
}

func checkIn(p models.Payload) (string, string) {
	return "Welcome " + p.GetString("customer_name", "guest"), lines(
		greeting(p),
		"",
		"You are checked in for booking "+code(p)+". Enjoy your stay.",
		"Check-out: "+p.GetString("check_out", "n/a"),
	)
}

func checkOut(p models.Payload) (string, string) {
	return "Thank you for staying with us", lines(
		greeting(p),
		"",
		"Booking "+code(p)+" is checked out. We hope to see you again.",
	)
}

func refundTicket(p models.Payload) (string, string) {
	return "Refund issued " + code(p), lines(
		greeting(p),
		"",
		fmt.Sprintf("A refund of %.2f for booking %s has been issued.", p.GetFloat("total_amount", 0), code(p)),
	)
}

func payoutCreated(p models.Payload) (string, string) {
	return "Payout run " + p.GetString("period", "n/a"), lines(
		"Payout run for "+p.GetString("period", "n/a"),
		fmt.Sprintf("Payouts: %d", p.GetInt64("payouts", 0)),
		fmt.Sprintf("Net amount: %.2f", p.GetFloat("net_amount", 0)),
		"Executed at: "+p.GetString("executed_at", "n/a"),
	)
}

func adminBroadcast(p models.Payload) (string, string) {
	return p.GetString("subject", "Notice"), p.GetString("message", "")
}
