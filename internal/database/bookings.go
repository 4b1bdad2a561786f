package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reservo/internal/models"
)

const bookingColumns = `id, code, customer_id, customer_name, customer_email, property_id, room_type_id,
	check_in, check_out, nights, adults, children, rooms_count,
	room_price, property_discount_percent, property_discount_amount, coupon_code,
	coupon_discount_percent, coupon_discount_amount, tax_amount, service_fee, total_amount,
	status, payment_status, cancellation_reason, booking_date,
	confirmed_at, checked_in_at, checked_out_at, cancelled_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var confirmedAt, checkedInAt, checkedOutAt, cancelledAt sql.NullTime
	err := row.Scan(
		&b.ID, &b.Code, &b.CustomerID, &b.CustomerName, &b.CustomerEmail, &b.PropertyID, &b.RoomTypeID,
		&b.CheckIn, &b.CheckOut, &b.Nights, &b.Adults, &b.Children, &b.RoomsCount,
		&b.RoomPrice, &b.PropertyDiscountPercent, &b.PropertyDiscountAmount, &b.CouponCode,
		&b.CouponDiscountPercent, &b.CouponDiscountAmount, &b.TaxAmount, &b.ServiceFee, &b.TotalAmount,
		&b.Status, &b.PaymentStatus, &b.CancellationReason, &b.BookingDate,
		&confirmedAt, &checkedInAt, &checkedOutAt, &cancelledAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.CheckIn, b.CheckOut, b.BookingDate, b.UpdatedAt = b.CheckIn.UTC(), b.CheckOut.UTC(), b.BookingDate.UTC(), b.UpdatedAt.UTC()
	b.ConfirmedAt = timePtr(confirmedAt)
	b.CheckedInAt = timePtr(checkedInAt)
	b.CheckedOutAt = timePtr(checkedOutAt)
	b.CancelledAt = timePtr(cancelledAt)
	return b, nil
}

func (c conn) listBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (c conn) getBooking(ctx context.Context, id int64, lock bool) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	if lock {
		query += c.forUpdate()
	}
	b, err := scanBooking(c.queryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := db.conn().getBooking(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %d: %w", id, err)
	}
	return b, nil
}

func (db *DB) GetBookingByCode(ctx context.Context, code string) (*models.Booking, error) {
	b, err := scanBooking(db.conn().queryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE code = ?`, code))
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %s: %w", code, notFound(err))
	}
	return b, nil
}

// occupying returns non-cancelled bookings of a room type that may touch
// [from, to). The caller narrows to calendar days with models.Calendar.
func (c conn) occupying(ctx context.Context, roomTypeID int64, from, to time.Time) ([]*models.Booking, error) {
	return c.listBookings(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE room_type_id = ? AND status <> ? AND check_in < ? AND check_out > ?
		ORDER BY check_in, id`,
		roomTypeID, models.StatusCancelled, ts(models.DateOf(to)), ts(models.DateOf(from)))
}

func (db *DB) GetOccupyingBookings(ctx context.Context, roomTypeID int64, from, to time.Time) ([]*models.Booking, error) {
	bookings, err := db.conn().occupying(ctx, roomTypeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings for room type %d: %w", roomTypeID, err)
	}
	return bookings, nil
}

// CreateBookingWithLock checks availability, consumes the coupon and inserts
// the booking in one transaction. It returns ErrNotAvailable when any night
// of the stay lacks b.RoomsCount free rooms.
func (db *DB) CreateBookingWithLock(ctx context.Context, b *models.Booking, actor string) error {
	return db.withTx(ctx, func(tc txConn) error {
		// Locks the room type on postgres so concurrent creates serialize.
		var total int
		err := tc.queryRow(ctx, `SELECT total_rooms FROM room_types WHERE id = ? AND is_active = ?`+tc.forUpdate(),
			b.RoomTypeID, true).Scan(&total)
		if err != nil {
			return fmt.Errorf("failed to load room type %d: %w", b.RoomTypeID, notFound(err))
		}

		existing, err := tc.occupying(ctx, b.RoomTypeID, b.CheckIn, b.CheckOut)
		if err != nil {
			return fmt.Errorf("failed to check availability in tx: %w", err)
		}
		days := models.Calendar(total, existing, b.CheckIn, b.CheckOut)
		if models.MinAvailable(total, days) < b.RoomsCount {
			return ErrNotAvailable
		}

		if b.CouponCode != "" {
			if err := tc.useCoupon(ctx, b.CouponCode, b.BookingDate); err != nil {
				return err
			}
		}

		b.Version = 1
		b.UpdatedAt = b.BookingDate
		err = tc.queryRow(ctx, `INSERT INTO bookings (
				code, customer_id, customer_name, customer_email, property_id, room_type_id,
				check_in, check_out, nights, adults, children, rooms_count,
				room_price, property_discount_percent, property_discount_amount, coupon_code,
				coupon_discount_percent, coupon_discount_amount, tax_amount, service_fee, total_amount,
				status, payment_status, cancellation_reason, booking_date, updated_at, version
			) VALUES (`+placeholders(27)+`) RETURNING id`,
			b.Code, b.CustomerID, b.CustomerName, b.CustomerEmail, b.PropertyID, b.RoomTypeID,
			ts(b.CheckIn), ts(b.CheckOut), b.Nights, b.Adults, b.Children, b.RoomsCount,
			b.RoomPrice, b.PropertyDiscountPercent, b.PropertyDiscountAmount, b.CouponCode,
			b.CouponDiscountPercent, b.CouponDiscountAmount, b.TaxAmount, b.ServiceFee, b.TotalAmount,
			b.Status, b.PaymentStatus, b.CancellationReason, ts(b.BookingDate), ts(b.UpdatedAt), b.Version,
		).Scan(&b.ID)
		if err != nil {
			return fmt.Errorf("failed to insert booking in tx: %w", err)
		}

		return tc.insertAudit(ctx, &models.AuditEntry{
			Action:    models.AuditCreate,
			TableName: models.TableBookings,
			RecordID:  b.ID,
			NewValues: encodeValues(b.StateSnapshot()),
			Actor:     actor,
			CreatedAt: b.BookingDate,
		})
	})
}

// TransitionFunc re-checks its guard against the freshly read booking and
// mutates it. It returns the audit action, or an error to abort.
type TransitionFunc = func(b *models.Booking) (action string, err error)

// TransitionBooking applies fn to booking id inside a transaction. The write
// is conditional on the status, payment status and version that fn saw, and
// the audit entry commits with it.
func (db *DB) TransitionBooking(ctx context.Context, id int64, actor string, fn TransitionFunc) (*models.Booking, error) {
	var updated *models.Booking
	err := db.withTx(ctx, func(tc txConn) error {
		b, err := tc.getBooking(ctx, id, true)
		if err != nil {
			return fmt.Errorf("failed to load booking %d: %w", id, err)
		}

		oldStatus, oldPayment, oldVersion := b.Status, b.PaymentStatus, b.Version
		oldValues := b.StateSnapshot()

		action, err := fn(b)
		if err != nil {
			return err
		}

		res, err := tc.exec(ctx, `UPDATE bookings SET
				status = ?, payment_status = ?, cancellation_reason = ?,
				confirmed_at = ?, checked_in_at = ?, checked_out_at = ?, cancelled_at = ?,
				updated_at = ?, version = version + 1
			WHERE id = ? AND status = ? AND payment_status = ? AND version = ?`,
			b.Status, b.PaymentStatus, b.CancellationReason,
			tsPtr(b.ConfirmedAt), tsPtr(b.CheckedInAt), tsPtr(b.CheckedOutAt), tsPtr(b.CancelledAt),
			ts(b.UpdatedAt), id, oldStatus, oldPayment, oldVersion)
		if err != nil {
			return fmt.Errorf("failed to update booking %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConcurrentModification
		}
		b.Version = oldVersion + 1

		if err := tc.insertAudit(ctx, &models.AuditEntry{
			Action:    action,
			TableName: models.TableBookings,
			RecordID:  id,
			OldValues: encodeValues(oldValues),
			NewValues: encodeValues(b.StateSnapshot()),
			Actor:     actor,
			CreatedAt: b.UpdatedAt,
		}); err != nil {
			return err
		}

		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetAutoRejectCandidates lists unpaid pending bookings created before cutoff.
func (db *DB) GetAutoRejectCandidates(ctx context.Context, cutoff time.Time) ([]*models.Booking, error) {
	bookings, err := db.conn().listBookings(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status = ? AND payment_status = ? AND booking_date < ?
		ORDER BY booking_date, id`,
		models.StatusPending, models.PaymentUnpaid, ts(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to get auto-reject candidates: %w", err)
	}
	return bookings, nil
}

// GetNoShowCandidates lists paid confirmed bookings with check-in at or
// before cutoff that never checked in.
func (db *DB) GetNoShowCandidates(ctx context.Context, cutoff time.Time) ([]*models.Booking, error) {
	bookings, err := db.conn().listBookings(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status = ? AND payment_status = ? AND check_in <= ? AND checked_in_at IS NULL
		ORDER BY check_in, id`,
		models.StatusConfirmed, models.PaymentPaid, ts(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to get no-show candidates: %w", err)
	}
	return bookings, nil
}

// GetReminderCandidates lists unpaid pending bookings with booking date in (oldest, newest].
func (db *DB) GetReminderCandidates(ctx context.Context, oldest, newest time.Time) ([]*models.Booking, error) {
	bookings, err := db.conn().listBookings(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status = ? AND payment_status = ? AND booking_date > ? AND booking_date <= ?
		ORDER BY booking_date, id`,
		models.StatusPending, models.PaymentUnpaid, ts(oldest), ts(newest))
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder candidates: %w", err)
	}
	return bookings, nil
}
