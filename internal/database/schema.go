package database

import (
	"strings"

	"reservo/internal/config"
)

var tables = []string{
	`CREATE TABLE IF NOT EXISTS properties (
		id {{pk}},
		host_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_published BOOLEAN NOT NULL DEFAULT TRUE,
		is_featured BOOLEAN NOT NULL DEFAULT FALSE,
		view_count BIGINT NOT NULL DEFAULT 0,
		discount_percent {{real}} NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS room_types (
		id {{pk}},
		property_id BIGINT NOT NULL REFERENCES properties(id),
		name TEXT NOT NULL,
		total_rooms INTEGER NOT NULL,
		base_price {{real}} NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS coupons (
		id {{pk}},
		code TEXT NOT NULL UNIQUE,
		discount_type TEXT NOT NULL,
		discount_value {{real}} NOT NULL,
		start_date {{ts}} NOT NULL,
		end_date {{ts}} NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		usage_limit INTEGER NOT NULL DEFAULT 0,
		used_count INTEGER NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		version BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id {{pk}},
		code TEXT NOT NULL UNIQUE,
		customer_id BIGINT NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		customer_email TEXT NOT NULL DEFAULT '',
		property_id BIGINT NOT NULL,
		room_type_id BIGINT NOT NULL,
		check_in {{ts}} NOT NULL,
		check_out {{ts}} NOT NULL,
		nights INTEGER NOT NULL,
		adults INTEGER NOT NULL DEFAULT 1,
		children INTEGER NOT NULL DEFAULT 0,
		rooms_count INTEGER NOT NULL DEFAULT 1,
		room_price {{real}} NOT NULL DEFAULT 0,
		property_discount_percent {{real}} NOT NULL DEFAULT 0,
		property_discount_amount {{real}} NOT NULL DEFAULT 0,
		coupon_code TEXT NOT NULL DEFAULT '',
		coupon_discount_percent {{real}} NOT NULL DEFAULT 0,
		coupon_discount_amount {{real}} NOT NULL DEFAULT 0,
		tax_amount {{real}} NOT NULL DEFAULT 0,
		service_fee {{real}} NOT NULL DEFAULT 0,
		total_amount {{real}} NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		cancellation_reason TEXT NOT NULL DEFAULT '',
		booking_date {{ts}} NOT NULL,
		confirmed_at {{ts}},
		checked_in_at {{ts}},
		checked_out_at {{ts}},
		cancelled_at {{ts}},
		updated_at {{ts}} NOT NULL,
		version BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id {{pk}},
		property_id BIGINT NOT NULL,
		booking_id BIGINT NOT NULL DEFAULT 0,
		rating {{real}} NOT NULL,
		is_approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS host_payouts (
		id {{pk}},
		reference TEXT NOT NULL UNIQUE,
		host_id BIGINT NOT NULL,
		period_start {{ts}} NOT NULL,
		period_end {{ts}} NOT NULL,
		total_earnings {{real}} NOT NULL,
		total_fees {{real}} NOT NULL,
		total_tax {{real}} NOT NULL,
		net_amount {{real}} NOT NULL,
		earnings_count INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at {{ts}} NOT NULL,
		UNIQUE (host_id, period_start)
	)`,
	`CREATE TABLE IF NOT EXISTS host_earnings (
		id {{pk}},
		host_id BIGINT NOT NULL,
		booking_id BIGINT NOT NULL,
		property_id BIGINT NOT NULL,
		gross_amount {{real}} NOT NULL,
		platform_fee {{real}} NOT NULL,
		tax_amount {{real}} NOT NULL,
		net_amount {{real}} NOT NULL,
		status TEXT NOT NULL,
		earned_date {{ts}} NOT NULL,
		payout_id BIGINT REFERENCES host_payouts(id),
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id {{pk}},
		type TEXT NOT NULL,
		recipient TEXT NOT NULL,
		booking_id BIGINT,
		payload TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL,
		next_retry_at {{ts}},
		last_error TEXT,
		locked_until {{ts}},
		created_at {{ts}} NOT NULL,
		sent_at {{ts}}
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id {{pk}},
		action TEXT NOT NULL,
		table_name TEXT NOT NULL,
		record_id BIGINT NOT NULL,
		old_values TEXT NOT NULL DEFAULT '{}',
		new_values TEXT NOT NULL DEFAULT '{}',
		actor TEXT NOT NULL,
		created_at {{ts}} NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_bookings_room_type_dates ON bookings(room_type_id, check_in, check_out)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status, payment_status)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_property ON bookings(property_id)`,
	`CREATE INDEX IF NOT EXISTS idx_coupons_active_end ON coupons(is_active, end_date)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_property ON reviews(property_id)`,
	`CREATE INDEX IF NOT EXISTS idx_earnings_payable ON host_earnings(status, payout_id, earned_date)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_due ON notifications(status, next_retry_at)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_booking ON notifications(booking_id, type, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_record ON audit_log(table_name, record_id)`,
}

func schema(driver string) []string {
	r := strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{ts}}", "DATETIME",
		"{{real}}", "REAL",
	)
	if driver == config.DriverPostgres {
		r = strings.NewReplacer(
			"{{pk}}", "BIGSERIAL PRIMARY KEY",
			"{{ts}}", "TIMESTAMPTZ",
			"{{real}}", "DOUBLE PRECISION",
		)
	}

	out := make([]string, 0, len(tables))
	for _, t := range tables {
		out = append(out, r.Replace(t))
	}
	return out
}
