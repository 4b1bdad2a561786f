package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reservo/internal/clock"
	"reservo/internal/database"
	"reservo/internal/domain"
	"reservo/internal/events"
	"reservo/internal/models"

	"github.com/rs/zerolog"
)

// PayoutWorker aggregates the previous month's approved host earnings into
// one payout per host. It acts on any day at or after the cutoff day, so a
// missed day is caught up by the next run.
type PayoutWorker struct {
	repo      domain.PayoutRepository
	queue     domain.NotificationQueue
	bus       domain.EventPublisher
	audit     domain.AuditSink
	exporter  domain.PayoutExporter
	clock     clock.Clock
	cutoffDay int
	adminTo   string
	logger    *zerolog.Logger
}

// NewPayoutWorker builds the worker. exporter and queue may be nil; adminTo
// is the recipient of the run summary broadcast.
func NewPayoutWorker(
	repo domain.PayoutRepository,
	queue domain.NotificationQueue,
	bus domain.EventPublisher,
	audit domain.AuditSink,
	exporter domain.PayoutExporter,
	clk clock.Clock,
	cutoffDay int,
	adminTo string,
	logger *zerolog.Logger,
) *PayoutWorker {
	if cutoffDay < 1 {
		cutoffDay = 1
	}
	return &PayoutWorker{
		repo:      repo,
		queue:     queue,
		bus:       bus,
		audit:     audit,
		exporter:  exporter,
		clock:     clk,
		cutoffDay: cutoffDay,
		adminTo:   adminTo,
		logger:    logger,
	}
}

func (w *PayoutWorker) Name() string { return "payout" }

func (w *PayoutWorker) Run(ctx context.Context) error {
	_, err := w.RunOnce(ctx)
	return err
}

// Active reports whether now is on or after the cutoff day, clamped to the
// length of the month.
func (w *PayoutWorker) Active(now time.Time) bool {
	now = now.UTC()
	last := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	cutoff := w.cutoffDay
	if cutoff > last {
		cutoff = last
	}
	return now.Day() >= cutoff
}

func (w *PayoutWorker) RunOnce(ctx context.Context) (Result, error) {
	now := w.clock.Now()
	if !w.Active(now) {
		w.logger.Debug().Int("cutoff_day", w.cutoffDay).Msg("Before payout cutoff day, nothing to do")
		return Result{}, nil
	}

	period := models.PreviousMonth(now)
	hosts, err := w.repo.GetPayableHosts(ctx, period)
	if err != nil {
		return Result{}, fmt.Errorf("payable hosts: %w", err)
	}

	res := Result{Scanned: len(hosts)}
	var created []*models.HostPayout
	for _, hostID := range hosts {
		p, err := w.repo.CreatePayoutForHost(ctx, hostID, period, now, models.ActorSystem)
		switch {
		case errors.Is(err, database.ErrPayoutExists):
			res.Skipped++
			w.lateEarnings(ctx, hostID, period)
			continue
		case isSkip(err):
			res.Skipped++
			continue
		case err != nil:
			res.Failed++
			w.logger.Error().Err(err).Int64("host_id", hostID).Msg("payout failed")
			recordFailure(ctx, w.audit, w.logger, w.Name(), models.TableHostPayouts, hostID, err)
			continue
		}

		res.Applied++
		created = append(created, p)
		w.logger.Info().
			Int64("host_id", hostID).
			Int64("payout_id", p.ID).
			Str("reference", p.Reference).
			Int("earnings", p.EarningsCount).
			Float64("net_amount", p.NetAmount).
			Msg("Payout created")

		if w.bus != nil {
			if err := w.bus.PublishJSON(events.EventPayoutCreated, p); err != nil {
				w.logger.Error().Err(err).Int64("payout_id", p.ID).Msg("publish event error")
			}
		}
	}

	if len(created) > 0 {
		w.export(period, created)
		w.broadcast(ctx, period, created)
	}

	res.report(w.Name(), w.logger)
	return res, nil
}

// lateEarnings logs earnings approved after the host's payout was made.
// They stay unassigned until handled by hand.
func (w *PayoutWorker) lateEarnings(ctx context.Context, hostID int64, period models.PayoutPeriod) {
	n, err := w.repo.CountPayableEarnings(ctx, hostID, period)
	if err != nil {
		w.logger.Error().Err(err).Int64("host_id", hostID).Msg("count late earnings failed")
		return
	}
	if n > 0 {
		w.logger.Warn().
			Int64("host_id", hostID).
			Time("period_start", period.Start).
			Int("earnings", n).
			Msg("Earnings approved after payout, left unassigned")
	}
}

func (w *PayoutWorker) export(period models.PayoutPeriod, payouts []*models.HostPayout) {
	if w.exporter == nil {
		return
	}
	path, err := w.exporter.WritePayouts(period, payouts)
	if err != nil {
		w.logger.Error().Err(err).Msg("payout statement export failed")
		return
	}
	w.logger.Info().Str("path", path).Int("payouts", len(payouts)).Msg("Payout statement written")
}

func (w *PayoutWorker) broadcast(ctx context.Context, period models.PayoutPeriod, payouts []*models.HostPayout) {
	if w.queue == nil || w.adminTo == "" {
		return
	}
	var total float64
	for _, p := range payouts {
		total += p.NetAmount
	}
	err := w.queue.Enqueue(ctx, models.NotifPayoutCreated, w.adminTo, 0, models.Payload{
		"period":      period.Start.Format("2006-01"),
		"payouts":     int64(len(payouts)),
		"net_amount":  total,
		"executed_at": w.clock.Now().Format(time.RFC3339),
	})
	if err != nil {
		w.logger.Error().Err(err).Msg("payout summary enqueue error")
	}
}
