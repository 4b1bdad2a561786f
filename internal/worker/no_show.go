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

// NoShowWorker marks paid, confirmed bookings as no-show once the grace
// period after check-in has passed without a check-in.
type NoShowWorker struct {
	repo   domain.NoShowRepository
	queue  domain.NotificationQueue
	bus    domain.EventPublisher
	audit  domain.AuditSink
	clock  clock.Clock
	grace  time.Duration
	logger *zerolog.Logger
}

func NewNoShowWorker(
	repo domain.NoShowRepository,
	queue domain.NotificationQueue,
	bus domain.EventPublisher,
	audit domain.AuditSink,
	clk clock.Clock,
	grace time.Duration,
	logger *zerolog.Logger,
) *NoShowWorker {
	return &NoShowWorker{
		repo:   repo,
		queue:  queue,
		bus:    bus,
		audit:  audit,
		clock:  clk,
		grace:  grace,
		logger: logger,
	}
}

func (w *NoShowWorker) Name() string { return "no_show" }

func (w *NoShowWorker) Run(ctx context.Context) error {
	_, err := w.RunOnce(ctx)
	return err
}

func (w *NoShowWorker) RunOnce(ctx context.Context) (Result, error) {
	now := w.clock.Now()
	cutoff := now.Add(-w.grace)

	candidates, err := w.repo.GetNoShowCandidates(ctx, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("no-show candidates: %w", err)
	}

	res := Result{Scanned: len(candidates)}
	due := func(b *models.Booking) bool { return lifecycle.NoShowDue(b, cutoff) }

	for _, c := range candidates {
		b, change, err := systemTransition(ctx, w.repo, c.ID, lifecycle.EventNoShow, now, due, "")
		switch {
		case isSkip(err):
			res.Skipped++
			w.logger.Debug().Err(err).Int64("booking_id", c.ID).Msg("Booking no longer due for no-show")
			continue
		case err != nil:
			res.Failed++
			w.logger.Error().Err(err).Int64("booking_id", c.ID).Msg("no-show failed")
			recordFailure(ctx, w.audit, w.logger, w.Name(), models.TableBookings, c.ID, err)
			continue
		}

		res.Applied++
		w.logger.Info().
			Int64("booking_id", b.ID).
			Str("code", b.Code).
			Time("check_in", b.CheckIn).
			Msg("Booking marked as no-show")

		publishTransition(w.bus, w.logger, lifecycle.EventNoShow, b, change)
		_ = notifyCustomer(ctx, w.queue, w.logger, models.NotifNoShow, b, nil)
	}

	res.report(w.Name(), w.logger)
	return res, nil
}
