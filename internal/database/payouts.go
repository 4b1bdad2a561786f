package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reservo/internal/models"
)

const earningColumns = `id, host_id, booking_id, property_id, gross_amount, platform_fee, tax_amount,
	net_amount, status, earned_date, payout_id, created_at`

func scanEarning(row rowScanner) (*models.HostEarning, error) {
	e := &models.HostEarning{}
	var payoutID sql.NullInt64
	err := row.Scan(&e.ID, &e.HostID, &e.BookingID, &e.PropertyID, &e.GrossAmount, &e.PlatformFee, &e.TaxAmount,
		&e.NetAmount, &e.Status, &e.EarnedDate, &payoutID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.EarnedDate = e.EarnedDate.UTC()
	if payoutID.Valid {
		id := payoutID.Int64
		e.PayoutID = &id
	}
	return e, nil
}

func (c conn) listEarnings(ctx context.Context, query string, args ...interface{}) ([]*models.HostEarning, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var earnings []*models.HostEarning
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earning: %w", err)
		}
		earnings = append(earnings, e)
	}
	return earnings, rows.Err()
}

func (db *DB) CreateHostEarning(ctx context.Context, e *models.HostEarning) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := db.conn().queryRow(ctx, `INSERT INTO host_earnings (host_id, booking_id, property_id, gross_amount,
			platform_fee, tax_amount, net_amount, status, earned_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		e.HostID, e.BookingID, e.PropertyID, e.GrossAmount, e.PlatformFee, e.TaxAmount, e.NetAmount,
		e.Status, ts(e.EarnedDate), ts(e.CreatedAt),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to create host earning: %w", err)
	}
	return nil
}

func (db *DB) GetHostEarning(ctx context.Context, id int64) (*models.HostEarning, error) {
	e, err := scanEarning(db.conn().queryRow(ctx, `SELECT `+earningColumns+` FROM host_earnings WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get host earning %d: %w", id, notFound(err))
	}
	return e, nil
}

const payableWhere = `status = ? AND payout_id IS NULL AND earned_date >= ? AND earned_date <= ?`

// GetPayableHosts returns the hosts with approved, unassigned earnings in period.
func (db *DB) GetPayableHosts(ctx context.Context, period models.PayoutPeriod) ([]int64, error) {
	rows, err := db.conn().query(ctx, `SELECT DISTINCT host_id FROM host_earnings WHERE `+payableWhere+` ORDER BY host_id`,
		models.EarningApproved, ts(period.Start), ts(period.End))
	if err != nil {
		return nil, fmt.Errorf("failed to get payable hosts: %w", err)
	}
	defer rows.Close()

	var hosts []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan host id: %w", err)
		}
		hosts = append(hosts, id)
	}
	return hosts, rows.Err()
}

// CreatePayoutForHost aggregates the host's payable earnings in period into
// one payout and stamps every earning with its id, all in one transaction.
// It returns ErrPayoutExists when a payout for the host and period is already
// recorded, and ErrGuardFailed when nothing is left to pay.
func (db *DB) CreatePayoutForHost(
	ctx context.Context,
	hostID int64,
	period models.PayoutPeriod,
	now time.Time,
	actor string,
) (*models.HostPayout, error) {
	var payout *models.HostPayout
	err := db.withTx(ctx, func(tc txConn) error {
		var existing int
		err := tc.queryRow(ctx, `SELECT COUNT(*) FROM host_payouts WHERE host_id = ? AND period_start = ?`,
			hostID, ts(period.Start)).Scan(&existing)
		if err != nil {
			return fmt.Errorf("failed to check existing payout: %w", err)
		}
		if existing > 0 {
			return ErrPayoutExists
		}

		earnings, err := tc.listEarnings(ctx, `SELECT `+earningColumns+` FROM host_earnings
			WHERE host_id = ? AND `+payableWhere+` ORDER BY id`+tc.forUpdate(),
			hostID, models.EarningApproved, ts(period.Start), ts(period.End))
		if err != nil {
			return fmt.Errorf("failed to load earnings for host %d: %w", hostID, err)
		}
		if len(earnings) == 0 {
			return ErrGuardFailed
		}

		p := &models.HostPayout{
			Reference:   "PO-" + strings.ToUpper(uuid.NewString()[:8]) + "-" + period.Start.Format("200601"),
			HostID:      hostID,
			PeriodStart: period.Start,
			PeriodEnd:   period.End,
			Status:      models.PayoutStatusPending,
			CreatedAt:   now.UTC(),
		}
		p.Sum(earnings)

		err = tc.queryRow(ctx, `INSERT INTO host_payouts (reference, host_id, period_start, period_end, total_earnings,
				total_fees, total_tax, net_amount, earnings_count, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			p.Reference, p.HostID, ts(p.PeriodStart), ts(p.PeriodEnd), p.TotalEarnings,
			p.TotalFees, p.TotalTax, p.NetAmount, p.EarningsCount, p.Status, ts(p.CreatedAt),
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to insert payout for host %d: %w", hostID, err)
		}

		for _, e := range earnings {
			res, err := tc.exec(ctx, `UPDATE host_earnings SET payout_id = ? WHERE id = ? AND payout_id IS NULL`, p.ID, e.ID)
			if err != nil {
				return fmt.Errorf("failed to stamp earning %d: %w", e.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return ErrConcurrentModification
			}
		}

		if err := tc.insertAudit(ctx, &models.AuditEntry{
			Action:    models.AuditPayoutCreated,
			TableName: models.TableHostPayouts,
			RecordID:  p.ID,
			NewValues: encodeValues(p),
			Actor:     actor,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		payout = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// CountPayableEarnings counts approved, unassigned earnings of a host in period.
func (db *DB) CountPayableEarnings(ctx context.Context, hostID int64, period models.PayoutPeriod) (int, error) {
	var n int
	err := db.conn().queryRow(ctx, `SELECT COUNT(*) FROM host_earnings WHERE host_id = ? AND `+payableWhere,
		hostID, models.EarningApproved, ts(period.Start), ts(period.End)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count payable earnings: %w", err)
	}
	return n, nil
}

func (db *DB) GetPayouts(ctx context.Context, hostID int64) ([]*models.HostPayout, error) {
	rows, err := db.conn().query(ctx, `SELECT id, reference, host_id, period_start, period_end, total_earnings,
			total_fees, total_tax, net_amount, earnings_count, status, created_at
		FROM host_payouts WHERE host_id = ? ORDER BY period_start, id`, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*models.HostPayout
	for rows.Next() {
		p := &models.HostPayout{}
		if err := rows.Scan(&p.ID, &p.Reference, &p.HostID, &p.PeriodStart, &p.PeriodEnd, &p.TotalEarnings,
			&p.TotalFees, &p.TotalTax, &p.NetAmount, &p.EarningsCount, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		p.PeriodStart, p.PeriodEnd = p.PeriodStart.UTC(), p.PeriodEnd.UTC()
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}
