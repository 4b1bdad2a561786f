package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reservo/internal/models"
)

const couponColumns = `id, code, discount_type, discount_value, start_date, end_date, is_active,
	usage_limit, used_count, created_at, updated_at, version`

func scanCoupon(row rowScanner) (*models.Coupon, error) {
	c := &models.Coupon{}
	err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.StartDate, &c.EndDate, &c.IsActive,
		&c.UsageLimit, &c.UsedCount, &c.CreatedAt, &c.UpdatedAt, &c.Version)
	if err != nil {
		return nil, err
	}
	c.StartDate, c.EndDate = c.StartDate.UTC(), c.EndDate.UTC()
	return c, nil
}

func (db *DB) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	c.Version = 1
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))

	err := db.conn().queryRow(ctx, `INSERT INTO coupons (code, discount_type, discount_value, start_date, end_date,
			is_active, usage_limit, used_count, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		c.Code, c.DiscountType, c.DiscountValue, ts(c.StartDate), ts(c.EndDate),
		c.IsActive, c.UsageLimit, c.UsedCount, ts(c.CreatedAt), ts(c.UpdatedAt), c.Version,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

func (db *DB) GetCoupon(ctx context.Context, id int64) (*models.Coupon, error) {
	c, err := scanCoupon(db.conn().queryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon %d: %w", id, notFound(err))
	}
	return c, nil
}

func (db *DB) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	c, err := scanCoupon(db.conn().queryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = ?`, code))
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon %s: %w", code, notFound(err))
	}
	return c, nil
}

// useCoupon increments the usage counter if the coupon is usable at now.
func (tc txConn) useCoupon(ctx context.Context, code string, now time.Time) error {
	res, err := tc.exec(ctx, `UPDATE coupons SET used_count = used_count + 1, version = version + 1, updated_at = ?
		WHERE code = ? AND is_active = ? AND start_date <= ? AND end_date > ?
		AND (usage_limit = 0 OR used_count < usage_limit)`,
		ts(now), strings.ToUpper(code), true, ts(now), ts(now))
	if err != nil {
		return fmt.Errorf("failed to use coupon: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCouponUnavailable
	}
	return nil
}

// GetExpiredActiveCoupons lists active coupons whose end date is before now.
func (db *DB) GetExpiredActiveCoupons(ctx context.Context, now time.Time) ([]*models.Coupon, error) {
	rows, err := db.conn().query(ctx, `SELECT `+couponColumns+` FROM coupons
		WHERE is_active = ? AND end_date < ? ORDER BY end_date, id`, true, ts(now))
	if err != nil {
		return nil, fmt.Errorf("failed to get expired coupons: %w", err)
	}
	defer rows.Close()

	var coupons []*models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

// ExpireCoupon deactivates coupon id and audits the change in one
// transaction. It returns ErrGuardFailed if the coupon is already inactive
// or not yet past its end date.
func (db *DB) ExpireCoupon(ctx context.Context, id int64, now time.Time, actor string) error {
	return db.withTx(ctx, func(tc txConn) error {
		c, err := scanCoupon(tc.queryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = ?`+tc.forUpdate(), id))
		if err != nil {
			return fmt.Errorf("failed to load coupon %d: %w", id, notFound(err))
		}
		if !c.IsActive || !c.EndDate.Before(now) {
			return ErrGuardFailed
		}

		res, err := tc.exec(ctx, `UPDATE coupons SET is_active = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND is_active = ? AND version = ?`, false, ts(now), id, true, c.Version)
		if err != nil {
			return fmt.Errorf("failed to deactivate coupon %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConcurrentModification
		}

		return tc.insertAudit(ctx, &models.AuditEntry{
			Action:    models.AuditCouponExpired,
			TableName: models.TableCoupons,
			RecordID:  id,
			OldValues: encodeValues(map[string]interface{}{"is_active": true, "end_date": c.EndDate}),
			NewValues: encodeValues(map[string]interface{}{"is_active": false}),
			Actor:     actor,
			CreatedAt: now,
		})
	})
}
