// Package notify turns queued notifications into messages and delivers them
// over e-mail, Telegram or the log.
package notify

import (
	"context"
	"errors"
	"fmt"

	"reservo/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	ErrUnknownType = errors.New("unknown notification type")
	ErrNoChannel   = errors.New("no channel configured for notification")
)

// Message is a rendered notification ready for delivery.
type Message struct {
	Type    string
	To      string
	Subject string
	Body    string
}

// Channel delivers rendered messages.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// adminTypes are routed to the admin channel instead of the customer one.
var adminTypes = map[string]bool{
	models.NotifPayoutCreated:  true,
	models.NotifAdminBroadcast: true,
}

// Dispatcher implements the queue's sender: it formats by type, picks the
// channel and throttles outbound traffic.
type Dispatcher struct {
	customer Channel
	admin    Channel
	limiter  *rate.Limiter
	logger   *zerolog.Logger
}

// NewDispatcher wires the channels. Either channel may be nil; a nil limiter
// disables throttling.
func NewDispatcher(customer, admin Channel, limiter *rate.Limiter, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{customer: customer, admin: admin, limiter: limiter, logger: logger}
}

// NewLimiter returns a limiter for perSecond messages with the given burst,
// or nil when perSecond is not positive.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (d *Dispatcher) Send(ctx context.Context, kind, recipient string, payload models.Payload) error {
	subject, body, err := Format(kind, payload)
	if err != nil {
		return err
	}

	ch := d.customer
	if adminTypes[kind] {
		ch = d.admin
	}
	if ch == nil {
		return fmt.Errorf("%w: %s", ErrNoChannel, kind)
	}

	msg := Message{Type: kind, To: recipient, Subject: subject, Body: body}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if err := ch.Deliver(ctx, msg); err != nil {
		return fmt.Errorf("%s delivery: %w", ch.Name(), err)
	}
	d.logger.Debug().Str("type", kind).Str("channel", ch.Name()).Msg("Notification delivered")
	return nil
}
