package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"reservo/internal/clock"
	"reservo/internal/domain"
	"reservo/internal/metrics"
	"reservo/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultWakeKey       = "reservo:notifications:wake"
	DefaultDeadLetterKey = "reservo:notifications:deadletter"

	// ClaimLease is how long a claimed item stays invisible to other pollers.
	ClaimLease = 5 * time.Minute
)

// NotificationWorker owns the durable notification queue: Enqueue persists
// an item, Run claims a batch and hands each item to the sender.
type NotificationWorker struct {
	repo          domain.NotificationRepository
	sender        domain.Sender
	redis         *redis.Client
	clock         clock.Clock
	retryPolicy   RetryPolicy
	batchSize     int
	wakeKey       string
	deadLetterKey string
	logger        *zerolog.Logger
}

// NewNotificationWorker builds a worker with sane defaults. redisClient may be nil.
func NewNotificationWorker(
	repo domain.NotificationRepository,
	sender domain.Sender,
	redisClient *redis.Client,
	clk clock.Clock,
	retry RetryPolicy,
	batchSize int,
	logger *zerolog.Logger,
) *NotificationWorker {
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = time.Minute
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Hour
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	if clk == nil {
		clk = clock.Real{}
	}

	return &NotificationWorker{
		repo:          repo,
		sender:        sender,
		redis:         redisClient,
		clock:         clk,
		retryPolicy:   retry,
		batchSize:     batchSize,
		wakeKey:       DefaultWakeKey,
		deadLetterKey: DefaultDeadLetterKey,
		logger:        logger,
	}
}

func (w *NotificationWorker) Name() string { return "notifications" }

// Enqueue persists the item before returning. bookingID zero means the item
// is not tied to a booking.
func (w *NotificationWorker) Enqueue(ctx context.Context, kind, recipient string, bookingID int64, payload models.Payload) error {
	if kind == "" {
		return errors.New("notification type is required")
	}
	if recipient == "" {
		return errors.New("notification recipient is required")
	}

	n := &models.Notification{
		Type:       kind,
		Recipient:  recipient,
		Payload:    payload.Encode(),
		Status:     models.NotificationPending,
		MaxRetries: w.retryPolicy.MaxRetries,
		CreatedAt:  w.clock.Now(),
	}
	if bookingID != 0 {
		n.BookingID = &bookingID
	}

	if err := w.repo.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	// The wake-up only shortens the poll delay; the row is the source of truth.
	if w.redis != nil {
		if err := w.redis.LPush(ctx, w.wakeKey, strconv.FormatInt(n.ID, 10)).Err(); err != nil {
			w.logger.Warn().Err(err).Int64("notification_id", n.ID).Msg("redis wake-up push failed")
		}
	}
	return nil
}

// Wait sleeps for d, returning early on a redis wake-up or ctx cancellation.
func (w *NotificationWorker) Wait(ctx context.Context, d time.Duration) {
	if w.redis == nil {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		return
	}

	_, err := w.redis.BRPop(ctx, d, w.wakeKey).Result()
	if err == nil || errors.Is(err, redis.Nil) || ctx.Err() != nil {
		return
	}
	// Redis is unreachable; fall back to a plain sleep so the loop does not spin.
	w.logger.Warn().Err(err).Msg("redis BRPOP error")
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *NotificationWorker) Run(ctx context.Context) error {
	_, err := w.RunOnce(ctx)
	return err
}

// RunOnce claims one batch of due items and processes each independently.
func (w *NotificationWorker) RunOnce(ctx context.Context) (Result, error) {
	now := w.clock.Now()
	items, err := w.repo.ClaimNotifications(ctx, now, w.batchSize, ClaimLease)
	if err != nil {
		return Result{}, fmt.Errorf("claim notifications: %w", err)
	}

	res := Result{Scanned: len(items)}
	for _, n := range items {
		if n.Abandoned() {
			res.Failed++
			w.abandon(ctx, n, errors.New(models.LeaseExpiredError))
			continue
		}
		if w.process(ctx, n, now) {
			res.Applied++
		} else {
			res.Failed++
		}
	}
	if res.Scanned > 0 {
		res.report(w.Name(), w.logger)
	}
	return res, nil
}

func (w *NotificationWorker) process(ctx context.Context, n *models.Notification, now time.Time) bool {
	err := w.sender.Send(ctx, n.Type, n.Recipient, models.ParsePayload(n.Payload))
	if err == nil {
		if err := w.repo.MarkNotificationSent(ctx, n.ID, w.clock.Now()); err != nil {
			w.logger.Error().Err(err).Int64("notification_id", n.ID).Msg("mark sent failed")
		}
		metrics.IncNotification(n.Type, "sent")
		return true
	}

	w.retryOrFail(ctx, n, now, err)
	return false
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, n *models.Notification, now time.Time, cause error) {
	next := now.Add(w.retryPolicy.NextDelay(n.RetryCount + 1))
	abandoned, err := w.repo.MarkNotificationFailed(ctx, n.ID, cause.Error(), next)
	if err != nil {
		w.logger.Error().Err(err).Int64("notification_id", n.ID).Msg("mark failed failed")
		return
	}

	if !abandoned {
		metrics.IncNotification(n.Type, "retry")
		w.logger.Warn().
			Err(cause).
			Int64("notification_id", n.ID).
			Str("type", n.Type).
			Int("attempt", n.RetryCount+1).
			Time("next_retry_at", next).
			Msg("Notification send failed, will retry")
		return
	}

	w.abandon(ctx, n, cause)
}

func (w *NotificationWorker) abandon(ctx context.Context, n *models.Notification, cause error) {
	metrics.IncNotification(n.Type, "failed")
	w.logger.Error().
		Err(cause).
		Int64("notification_id", n.ID).
		Str("type", n.Type).
		Int("retries", n.MaxRetries).
		Msg("Notification abandoned")

	n.Status = models.NotificationFailed
	msg := cause.Error()
	n.LastError = &msg
	w.pushDeadLetter(ctx, n)
}

func (w *NotificationWorker) pushDeadLetter(ctx context.Context, n *models.Notification) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		w.logger.Error().Err(err).Int64("notification_id", n.ID).Msg("encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("notification_id", n.ID).Msg("deadletter push failed")
	}
}
