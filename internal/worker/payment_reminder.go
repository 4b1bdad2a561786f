package worker

import (
	"context"
	"fmt"
	"math"
	"time"

	"reservo/internal/clock"
	"reservo/internal/domain"
	"reservo/internal/lifecycle"
	"reservo/internal/models"

	"github.com/rs/zerolog"
)

// ReminderWindows bounds which unpaid bookings get a payment reminder.
type ReminderWindows struct {
	// Deadline is the payment deadline; older bookings belong to auto-reject.
	Deadline time.Duration
	MinAge   time.Duration
	Dedup    time.Duration
}

// PaymentReminderWorker enqueues reminders for unpaid bookings between
// MinAge and Deadline old. It performs no e-mail I/O itself.
type PaymentReminderWorker struct {
	repo    domain.ReminderRepository
	queue   domain.NotificationQueue
	clock   clock.Clock
	windows ReminderWindows
	logger  *zerolog.Logger
}

func NewPaymentReminderWorker(
	repo domain.ReminderRepository,
	queue domain.NotificationQueue,
	clk clock.Clock,
	windows ReminderWindows,
	logger *zerolog.Logger,
) *PaymentReminderWorker {
	return &PaymentReminderWorker{
		repo:    repo,
		queue:   queue,
		clock:   clk,
		windows: windows,
		logger:  logger,
	}
}

func (w *PaymentReminderWorker) Name() string { return "payment_reminder" }

func (w *PaymentReminderWorker) Run(ctx context.Context) error {
	_, err := w.RunOnce(ctx)
	return err
}

func (w *PaymentReminderWorker) RunOnce(ctx context.Context) (Result, error) {
	now := w.clock.Now()
	oldest := now.Add(-w.windows.Deadline)
	newest := now.Add(-w.windows.MinAge)
	since := now.Add(-w.windows.Dedup)

	candidates, err := w.repo.GetReminderCandidates(ctx, oldest, newest)
	if err != nil {
		return Result{}, fmt.Errorf("reminder candidates: %w", err)
	}

	res := Result{Scanned: len(candidates)}
	for _, b := range candidates {
		if !lifecycle.ReminderDue(b, oldest, newest) || b.CustomerEmail == "" {
			res.Skipped++
			continue
		}

		recent, err := w.repo.HasRecentNotification(ctx, models.NotifPaymentReminder, b.ID, since)
		if err != nil {
			res.Failed++
			w.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("reminder dedup check failed")
			continue
		}
		if recent {
			res.Skipped++
			w.logger.Debug().Int64("booking_id", b.ID).Msg("Reminder sent recently, skipping")
			continue
		}

		hoursLeft := math.Ceil(b.BookingDate.Add(w.windows.Deadline).Sub(now).Hours())
		if err := notifyCustomer(ctx, w.queue, w.logger, models.NotifPaymentReminder, b, models.Payload{
			"hours_left": int64(hoursLeft),
			"deadline":   b.BookingDate.Add(w.windows.Deadline).Format(time.RFC3339),
		}); err != nil {
			res.Failed++
			continue
		}
		res.Applied++
	}

	res.report(w.Name(), w.logger)
	return res, nil
}
