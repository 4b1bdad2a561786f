// Package worker runs the time-driven reconciliation jobs and the
// notification queue poller.
package worker

import (
	"context"
	"errors"
	"time"

	"reservo/internal/database"
	"reservo/internal/domain"
	"reservo/internal/events"
	"reservo/internal/lifecycle"
	"reservo/internal/metrics"
	"reservo/internal/models"

	"github.com/rs/zerolog"
)

// Result counts what one run did with the rows it selected.
type Result struct {
	Scanned int
	Applied int
	Skipped int
	Failed  int
}

func (r Result) report(worker string, logger *zerolog.Logger) {
	metrics.AddItems(worker, "applied", r.Applied)
	metrics.AddItems(worker, "skipped", r.Skipped)
	metrics.AddItems(worker, "failed", r.Failed)

	ev := logger.Info()
	if r.Failed > 0 {
		ev = logger.Warn()
	}
	ev.Int("scanned", r.Scanned).
		Int("applied", r.Applied).
		Int("skipped", r.Skipped).
		Int("failed", r.Failed).
		Msg("Run finished")
}

// isSkip reports errors meaning another actor got to the row first.
func isSkip(err error) bool {
	return errors.Is(err, database.ErrGuardFailed) ||
		errors.Is(err, database.ErrConcurrentModification) ||
		errors.Is(err, database.ErrNotFound) ||
		errors.Is(err, lifecycle.ErrIllegalTransition)
}

type bookingTransitioner interface {
	TransitionBooking(ctx context.Context, id int64, actor string, fn domain.TransitionFunc) (*models.Booking, error)
}

// systemTransition applies ev to booking id as the system actor after
// re-checking due against the locked row.
func systemTransition(
	ctx context.Context,
	repo bookingTransitioner,
	id int64,
	ev lifecycle.Event,
	now time.Time,
	due func(*models.Booking) bool,
	reason string,
) (*models.Booking, *lifecycle.Change, error) {
	var change *lifecycle.Change
	b, err := repo.TransitionBooking(ctx, id, models.ActorSystem, func(b *models.Booking) (string, error) {
		if !due(b) {
			return "", database.ErrGuardFailed
		}
		c, err := lifecycle.Apply(b, ev, now)
		if err != nil {
			return "", err
		}
		if reason != "" {
			b.CancellationReason = reason
		}
		change = c
		return c.Action, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return b, change, nil
}

// recordFailure leaves a failure marker in the audit log. The marker is best
// effort; the store may be what failed.
func recordFailure(ctx context.Context, audit domain.AuditSink, logger *zerolog.Logger, worker, table string, id int64, cause error) {
	if audit == nil {
		return
	}
	err := audit.Record(ctx, models.AuditWorkerFailure, table, id, nil, map[string]string{
		"worker": worker,
		"error":  cause.Error(),
	})
	if err != nil {
		logger.Error().Err(err).Int64("record_id", id).Msg("failed to audit worker failure")
	}
}

func publishTransition(bus domain.EventPublisher, logger *zerolog.Logger, ev lifecycle.Event, b *models.Booking, change *lifecycle.Change) {
	if bus == nil {
		return
	}
	eventType := events.ForTransition(ev)
	if err := bus.PublishJSON(eventType, events.NewBookingPayload(b, change.OldStatus, models.ActorSystem)); err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}

// notifyCustomer enqueues a customer notification. Failures are logged only.
func notifyCustomer(ctx context.Context, queue domain.NotificationQueue, logger *zerolog.Logger, kind string, b *models.Booking, extra models.Payload) error {
	if queue == nil || b.CustomerEmail == "" {
		return nil
	}
	payload := b.NotificationPayload()
	for k, v := range extra {
		payload[k] = v
	}
	if err := queue.Enqueue(ctx, kind, b.CustomerEmail, b.ID, payload); err != nil {
		logger.Error().Err(err).Int64("booking_id", b.ID).Str("type", kind).Msg("notification enqueue error")
		return err
	}
	return nil
}
