package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reservo/internal/models"
)

const notificationColumns = `id, type, recipient, booking_id, payload, status, retry_count, max_retries,
	next_retry_at, last_error, locked_until, created_at, sent_at`

func scanNotification(row rowScanner) (*models.Notification, error) {
	n := &models.Notification{}
	var (
		bookingID                        sql.NullInt64
		lastError                        sql.NullString
		nextRetryAt, lockedUntil, sentAt sql.NullTime
	)
	err := row.Scan(&n.ID, &n.Type, &n.Recipient, &bookingID, &n.Payload, &n.Status, &n.RetryCount, &n.MaxRetries,
		&nextRetryAt, &lastError, &lockedUntil, &n.CreatedAt, &sentAt)
	if err != nil {
		return nil, err
	}
	if bookingID.Valid {
		id := bookingID.Int64
		n.BookingID = &id
	}
	if lastError.Valid {
		msg := lastError.String
		n.LastError = &msg
	}
	n.NextRetryAt = timePtr(nextRetryAt)
	n.LockedUntil = timePtr(lockedUntil)
	n.SentAt = timePtr(sentAt)
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

// CreateNotification persists a queue item before returning.
func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	if n.Payload == "" {
		n.Payload = "{}"
	}
	var bookingID interface{}
	if n.BookingID != nil {
		bookingID = *n.BookingID
	}

	err := db.conn().queryRow(ctx, `INSERT INTO notifications (type, recipient, booking_id, payload, status,
			retry_count, max_retries, next_retry_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		n.Type, n.Recipient, bookingID, n.Payload, n.Status, n.RetryCount, n.MaxRetries,
		tsPtr(n.NextRetryAt), ts(n.CreatedAt),
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (db *DB) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	n, err := scanNotification(db.conn().queryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get notification %d: %w", id, notFound(err))
	}
	return n, nil
}

func (db *DB) GetNotificationsByBooking(ctx context.Context, bookingID int64) ([]*models.Notification, error) {
	return db.listNotifications(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE booking_id = ? ORDER BY created_at, id`, bookingID)
}

func (db *DB) GetFailedNotifications(ctx context.Context) ([]*models.Notification, error) {
	return db.listNotifications(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE status = ? ORDER BY created_at DESC`, models.NotificationFailed)
}

func (db *DB) listNotifications(ctx context.Context, query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := db.conn().query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var items []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// HasRecentNotification reports whether a notification of type kind for the
// booking was created at or after since.
func (db *DB) HasRecentNotification(ctx context.Context, kind string, bookingID int64, since time.Time) (bool, error) {
	var n int
	err := db.conn().queryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE type = ? AND booking_id = ? AND created_at >= ?`,
		kind, bookingID, ts(since)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check recent notifications: %w", err)
	}
	return n > 0, nil
}

// ClaimNotifications marks up to limit due items as processing until
// now+lease and returns them oldest first. Items whose lease expired are due
// again, which recovers work from a poller that died mid-batch. Such a
// reclaim counts as a failed attempt: below the ceiling retry_count is
// incremented, at the ceiling the item is marked failed and returned with
// status failed so the caller can dead-letter it instead of sending.
func (db *DB) ClaimNotifications(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Notification, error) {
	var claimed []*models.Notification
	err := db.withTx(ctx, func(tc txConn) error {
		items, err := func() ([]*models.Notification, error) {
			rows, err := tc.query(ctx, `SELECT `+notificationColumns+` FROM notifications
				WHERE (status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?))
				   OR (status = ? AND locked_until < ?)
				ORDER BY created_at, id LIMIT ?`+tc.skipLocked(),
				models.NotificationPending, models.NotificationRetry, ts(now),
				models.NotificationProcessing, ts(now), limit)
			if err != nil {
				return nil, err
			}
			defer rows.Close()

			var out []*models.Notification
			for rows.Next() {
				n, err := scanNotification(rows)
				if err != nil {
					return nil, err
				}
				out = append(out, n)
			}
			return out, rows.Err()
		}()
		if err != nil {
			return fmt.Errorf("failed to select due notifications: %w", err)
		}

		lockedUntil := now.Add(lease).UTC()
		for _, n := range items {
			if n.Status == models.NotificationProcessing {
				if err := tc.expireLease(ctx, n); err != nil {
					return err
				}
				if n.Status == models.NotificationFailed {
					continue
				}
			}
			if _, err := tc.exec(ctx, `UPDATE notifications SET status = ?, locked_until = ? WHERE id = ?`,
				models.NotificationProcessing, ts(lockedUntil), n.ID); err != nil {
				return fmt.Errorf("failed to claim notification %d: %w", n.ID, err)
			}
			n.Status = models.NotificationProcessing
			n.LockedUntil = &lockedUntil
		}
		claimed = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// expireLease charges the lost attempt of a reclaimed item.
func (tc txConn) expireLease(ctx context.Context, n *models.Notification) error {
	msg := models.LeaseExpiredError
	n.LastError = &msg
	if n.RetryCount < n.MaxRetries {
		if _, err := tc.exec(ctx, `UPDATE notifications SET retry_count = retry_count + 1, last_error = ? WHERE id = ?`,
			msg, n.ID); err != nil {
			return fmt.Errorf("failed to charge notification %d: %w", n.ID, err)
		}
		n.RetryCount++
		return nil
	}

	if _, err := tc.exec(ctx, `UPDATE notifications SET status = ?, last_error = ?, next_retry_at = NULL, locked_until = NULL
		WHERE id = ?`, models.NotificationFailed, msg, n.ID); err != nil {
		return fmt.Errorf("failed to abandon notification %d: %w", n.ID, err)
	}
	n.Status = models.NotificationFailed
	n.LockedUntil = nil
	return nil
}

func (db *DB) MarkNotificationSent(ctx context.Context, id int64, now time.Time) error {
	_, err := db.conn().exec(ctx, `UPDATE notifications SET status = ?, sent_at = ?, locked_until = NULL, next_retry_at = NULL
		WHERE id = ?`, models.NotificationSent, ts(now), id)
	if err != nil {
		return fmt.Errorf("failed to mark notification %d sent: %w", id, err)
	}
	return nil
}

// MarkNotificationFailed records a failed attempt. While retry_count is below
// max_retries the item is rescheduled at nextRetryAt; otherwise it is
// abandoned with retry_count left at max_retries.
func (db *DB) MarkNotificationFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) (bool, error) {
	var abandoned bool
	err := db.withTx(ctx, func(tc txConn) error {
		var retryCount, maxRetries int
		err := tc.queryRow(ctx, `SELECT retry_count, max_retries FROM notifications WHERE id = ?`+tc.forUpdate(), id).
			Scan(&retryCount, &maxRetries)
		if err != nil {
			return fmt.Errorf("failed to load notification %d: %w", id, notFound(err))
		}

		if retryCount < maxRetries {
			_, err = tc.exec(ctx, `UPDATE notifications SET status = ?, retry_count = retry_count + 1, last_error = ?,
					next_retry_at = ?, locked_until = NULL
				WHERE id = ?`, models.NotificationRetry, errMsg, ts(nextRetryAt), id)
		} else {
			abandoned = true
			_, err = tc.exec(ctx, `UPDATE notifications SET status = ?, last_error = ?, next_retry_at = NULL, locked_until = NULL
				WHERE id = ?`, models.NotificationFailed, errMsg, id)
		}
		if err != nil {
			return fmt.Errorf("failed to record notification %d failure: %w", id, err)
		}
		return nil
	})
	return abandoned, err
}
