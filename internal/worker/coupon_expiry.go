package worker

import (
	"context"
	"fmt"

	"reservo/internal/clock"
	"reservo/internal/domain"
	"reservo/internal/events"
	"reservo/internal/models"

	"github.com/rs/zerolog"
)

// CouponExpiryWorker deactivates active coupons whose end date has passed.
// The flag and its audit entry commit together in the store.
type CouponExpiryWorker struct {
	repo   domain.CouponRepository
	bus    domain.EventPublisher
	audit  domain.AuditSink
	clock  clock.Clock
	logger *zerolog.Logger
}

func NewCouponExpiryWorker(
	repo domain.CouponRepository,
	bus domain.EventPublisher,
	audit domain.AuditSink,
	clk clock.Clock,
	logger *zerolog.Logger,
) *CouponExpiryWorker {
	return &CouponExpiryWorker{repo: repo, bus: bus, audit: audit, clock: clk, logger: logger}
}

func (w *CouponExpiryWorker) Name() string { return "coupon_expiry" }

func (w *CouponExpiryWorker) Run(ctx context.Context) error {
	_, err := w.RunOnce(ctx)
	return err
}

func (w *CouponExpiryWorker) RunOnce(ctx context.Context) (Result, error) {
	now := w.clock.Now()
	coupons, err := w.repo.GetExpiredActiveCoupons(ctx, now)
	if err != nil {
		return Result{}, fmt.Errorf("expired coupons: %w", err)
	}

	res := Result{Scanned: len(coupons)}
	for _, c := range coupons {
		err := w.repo.ExpireCoupon(ctx, c.ID, now, models.ActorSystem)
		switch {
		case isSkip(err):
			res.Skipped++
			continue
		case err != nil:
			res.Failed++
			w.logger.Error().Err(err).Int64("coupon_id", c.ID).Msg("coupon expiry failed")
			recordFailure(ctx, w.audit, w.logger, w.Name(), models.TableCoupons, c.ID, err)
			continue
		}

		res.Applied++
		w.logger.Info().Int64("coupon_id", c.ID).Str("code", c.Code).Time("end_date", c.EndDate).Msg("Coupon expired")
		if w.bus != nil {
			if err := w.bus.PublishJSON(events.EventCouponExpired, map[string]interface{}{
				"coupon_id": c.ID,
				"code":      c.Code,
				"at":        now,
			}); err != nil {
				w.logger.Error().Err(err).Int64("coupon_id", c.ID).Msg("publish event error")
			}
		}
	}

	res.report(w.Name(), w.logger)
	return res, nil
}
