package worker

import (
	"context"
	"fmt"
	"time"

	"reservo/internal/clock"
	"reservo/internal/config"
	"reservo/internal/domain"
	"reservo/internal/models"

	"github.com/rs/zerolog"
)

// FeaturedCriteria are the thresholds a property must meet to be featured.
type FeaturedCriteria struct {
	MinReviews  int
	MinRating   float64
	MinBookings int
	MinViews    int64
	MinAge      time.Duration
}

func CriteriaFromConfig(cfg config.FeaturedConfig) FeaturedCriteria {
	return FeaturedCriteria{
		MinReviews:  cfg.MinReviews,
		MinRating:   cfg.MinRating,
		MinBookings: cfg.MinBookings,
		MinViews:    int64(cfg.MinViews),
		MinAge:      time.Duration(cfg.MinAgeDays) * 24 * time.Hour,
	}
}

// Qualifies evaluates the criteria against s at instant now.
func (c FeaturedCriteria) Qualifies(s *models.PropertyStats, now time.Time) bool {
	return s.ApprovedReviewCount >= c.MinReviews &&
		s.AverageRating >= c.MinRating &&
		s.BookingCount >= c.MinBookings &&
		s.ViewCount >= c.MinViews &&
		now.Sub(s.CreatedAt) >= c.MinAge
}

// FeaturedWorker recomputes the featured flag of every active, published
// property and writes only the flags that change.
type FeaturedWorker struct {
	repo     domain.PropertyRepository
	audit    domain.AuditSink
	clock    clock.Clock
	criteria FeaturedCriteria
	logger   *zerolog.Logger
}

func NewFeaturedWorker(
	repo domain.PropertyRepository,
	audit domain.AuditSink,
	clk clock.Clock,
	criteria FeaturedCriteria,
	logger *zerolog.Logger,
) *FeaturedWorker {
	return &FeaturedWorker{repo: repo, audit: audit, clock: clk, criteria: criteria, logger: logger}
}

func (w *FeaturedWorker) Name() string { return "featured" }

func (w *FeaturedWorker) Run(ctx context.Context) error {
	_, err := w.RunOnce(ctx)
	return err
}

func (w *FeaturedWorker) RunOnce(ctx context.Context) (Result, error) {
	now := w.clock.Now()
	stats, err := w.repo.GetPropertyStats(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("property stats: %w", err)
	}

	res := Result{Scanned: len(stats)}
	for _, s := range stats {
		featured := w.criteria.Qualifies(s, now)
		if featured == s.IsFeatured {
			res.Skipped++
			continue
		}

		err := w.repo.SetPropertyFeatured(ctx, s.PropertyID, featured, now, models.ActorSystem)
		switch {
		case isSkip(err):
			res.Skipped++
			continue
		case err != nil:
			res.Failed++
			w.logger.Error().Err(err).Int64("property_id", s.PropertyID).Msg("featured update failed")
			recordFailure(ctx, w.audit, w.logger, w.Name(), models.TableProperties, s.PropertyID, err)
			continue
		}

		res.Applied++
		w.logger.Info().Int64("property_id", s.PropertyID).Bool("featured", featured).Msg("Featured flag changed")
	}

	res.report(w.Name(), w.logger)
	return res, nil
}
