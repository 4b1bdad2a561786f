package worker

import (
	"context"
	"fmt"
	"time"

	"reservo/internal/clock"
	"reservo/internal/domain"
	"reservo/internal/lifecycle"
	"reservo/internal/models"

	"github.com/rs/zerolog"
)

const autoRejectReason = "payment deadline exceeded"

// AutoRejectWorker cancels unpaid pending bookings older than the payment deadline.
type AutoRejectWorker struct {
	repo     domain.AutoRejectRepository
	queue    domain.NotificationQueue
	bus      domain.EventPublisher
	audit    domain.AuditSink
	clock    clock.Clock
	deadline time.Duration
	logger   *zerolog.Logger
}

func NewAutoRejectWorker(
	repo domain.AutoRejectRepository,
	queue domain.NotificationQueue,
	bus domain.EventPublisher,
	audit domain.AuditSink,
	clk clock.Clock,
	deadline time.Duration,
	logger *zerolog.Logger,
) *AutoRejectWorker {
	return &AutoRejectWorker{
		repo:     repo,
		queue:    queue,
		bus:      bus,
		audit:    audit,
		clock:    clk,
		deadline: deadline,
		logger:   logger,
	}
}

func (w *AutoRejectWorker) Name() string { return "auto_reject" }

func (w *AutoRejectWorker) Run(ctx context.Context) error {
	_, err := w.RunOnce(ctx)
	return err
}

func (w *AutoRejectWorker) RunOnce(ctx context.Context) (Result, error) {
	now := w.clock.Now()
	cutoff := now.Add(-w.deadline)

	candidates, err := w.repo.GetAutoRejectCandidates(ctx, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("auto-reject candidates: %w", err)
	}

	res := Result{Scanned: len(candidates)}
	due := func(b *models.Booking) bool { return lifecycle.AutoRejectDue(b, cutoff) }

	for _, c := range candidates {
		b, change, err := systemTransition(ctx, w.repo, c.ID, lifecycle.EventAutoReject, now, due, autoRejectReason)
		switch {
		case isSkip(err):
			res.Skipped++
			w.logger.Debug().Err(err).Int64("booking_id", c.ID).Msg("Booking no longer due for auto-reject")
			continue
		case err != nil:
			res.Failed++
			w.logger.Error().Err(err).Int64("booking_id", c.ID).Msg("auto-reject failed")
			recordFailure(ctx, w.audit, w.logger, w.Name(), models.TableBookings, c.ID, err)
			continue
		}

		res.Applied++
		w.logger.Info().
			Int64("booking_id", b.ID).
			Str("code", b.Code).
			Time("booking_date", b.BookingDate).
			Msg("Booking auto-rejected")

		publishTransition(w.bus, w.logger, lifecycle.EventAutoReject, b, change)
		_ = notifyCustomer(ctx, w.queue, w.logger, models.NotifBookingCancellation, b, models.Payload{
			"reason": autoRejectReason,
		})
	}

	res.report(w.Name(), w.logger)
	return res, nil
}
