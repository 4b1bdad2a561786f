package database

import (
	"context"
	"fmt"
	"time"

	"reservo/internal/config"
	"reservo/internal/models"
)

const roomTypeColumns = `id, property_id, name, total_rooms, base_price, is_active, created_at, updated_at`

func (db *DB) CreateProperty(ctx context.Context, p *models.Property) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	err := db.conn().queryRow(ctx, `INSERT INTO properties (host_id, name, is_active, is_published, is_featured,
			view_count, discount_percent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.HostID, p.Name, p.IsActive, p.IsPublished, p.IsFeatured, p.ViewCount, p.DiscountPercent,
		ts(p.CreatedAt), ts(p.UpdatedAt),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create property: %w", err)
	}
	return nil
}

func (db *DB) GetProperty(ctx context.Context, id int64) (*models.Property, error) {
	p := &models.Property{}
	err := db.conn().queryRow(ctx, `SELECT id, host_id, name, is_active, is_published, is_featured, view_count,
			discount_percent, created_at, updated_at
		FROM properties WHERE id = ?`, id).Scan(
		&p.ID, &p.HostID, &p.Name, &p.IsActive, &p.IsPublished, &p.IsFeatured, &p.ViewCount,
		&p.DiscountPercent, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get property %d: %w", id, notFound(err))
	}
	return p, nil
}

func (db *DB) CreateRoomType(ctx context.Context, rt *models.RoomType) error {
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = time.Now().UTC()
	}
	rt.UpdatedAt = rt.CreatedAt
	err := db.conn().queryRow(ctx, `INSERT INTO room_types (property_id, name, total_rooms, base_price, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		rt.PropertyID, rt.Name, rt.TotalRooms, rt.BasePrice, rt.IsActive, ts(rt.CreatedAt), ts(rt.UpdatedAt),
	).Scan(&rt.ID)
	if err != nil {
		return fmt.Errorf("failed to create room type: %w", err)
	}
	return nil
}

func (db *DB) GetRoomType(ctx context.Context, id int64) (*models.RoomType, error) {
	rt := &models.RoomType{}
	err := db.conn().queryRow(ctx, `SELECT `+roomTypeColumns+` FROM room_types WHERE id = ?`, id).Scan(
		&rt.ID, &rt.PropertyID, &rt.Name, &rt.TotalRooms, &rt.BasePrice, &rt.IsActive, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get room type %d: %w", id, notFound(err))
	}
	return rt, nil
}

// SyncInventory upserts the seed catalogue. Derived columns such as
// is_featured and view_count are left alone on existing rows.
func (db *DB) SyncInventory(ctx context.Context, properties []*models.Property, roomTypes []*models.RoomType) error {
	now := ts(time.Now())
	err := db.withTx(ctx, func(tc txConn) error {
		for _, p := range properties {
			_, err := tc.exec(ctx, `INSERT INTO properties (id, host_id, name, is_active, is_published, discount_percent, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					host_id = excluded.host_id,
					name = excluded.name,
					is_active = excluded.is_active,
					is_published = excluded.is_published,
					discount_percent = excluded.discount_percent,
					updated_at = excluded.updated_at`,
				p.ID, p.HostID, p.Name, p.IsActive, p.IsPublished, p.DiscountPercent, now, now)
			if err != nil {
				return fmt.Errorf("failed to upsert property %d: %w", p.ID, err)
			}
		}
		for _, rt := range roomTypes {
			_, err := tc.exec(ctx, `INSERT INTO room_types (id, property_id, name, total_rooms, base_price, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					property_id = excluded.property_id,
					name = excluded.name,
					total_rooms = excluded.total_rooms,
					base_price = excluded.base_price,
					is_active = excluded.is_active,
					updated_at = excluded.updated_at`,
				rt.ID, rt.PropertyID, rt.Name, rt.TotalRooms, rt.BasePrice, rt.IsActive, now, now)
			if err != nil {
				return fmt.Errorf("failed to upsert room type %d: %w", rt.ID, err)
			}
		}
		if tc.driver == config.DriverPostgres {
			for _, table := range []string{"properties", "room_types"} {
				_, err := tc.exec(ctx, fmt.Sprintf(
					`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 1))`, table))
				if err != nil {
					return fmt.Errorf("failed to advance %s sequence: %w", table, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.logger.Info().Int("properties", len(properties)).Int("room_types", len(roomTypes)).Msg("Inventory synced")
	return nil
}

func (db *DB) IncrementPropertyViews(ctx context.Context, id int64) error {
	_, err := db.conn().exec(ctx, `UPDATE properties SET view_count = view_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment views for property %d: %w", id, err)
	}
	return nil
}

func (db *DB) CreateReview(ctx context.Context, r *models.Review) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	err := db.conn().queryRow(ctx, `INSERT INTO reviews (property_id, booking_id, rating, is_approved, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`,
		r.PropertyID, r.BookingID, r.Rating, r.IsApproved, ts(r.CreatedAt),
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// GetPropertyStats returns rolling figures for every active, published property.
// Booking count includes every booking that was not cancelled.
func (db *DB) GetPropertyStats(ctx context.Context) ([]*models.PropertyStats, error) {
	rows, err := db.conn().query(ctx, `SELECT p.id, p.is_featured, p.view_count, p.created_at,
			(SELECT COUNT(*) FROM reviews r WHERE r.property_id = p.id AND r.is_approved = ?),
			(SELECT COALESCE(AVG(r.rating), 0) FROM reviews r WHERE r.property_id = p.id AND r.is_approved = ?),
			(SELECT COUNT(*) FROM bookings b WHERE b.property_id = p.id AND b.status <> ?)
		FROM properties p
		WHERE p.is_active = ? AND p.is_published = ?
		ORDER BY p.id`,
		true, true, models.StatusCancelled, true, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get property stats: %w", err)
	}
	defer rows.Close()

	var stats []*models.PropertyStats
	for rows.Next() {
		s := &models.PropertyStats{}
		if err := rows.Scan(&s.PropertyID, &s.IsFeatured, &s.ViewCount, &s.CreatedAt,
			&s.ApprovedReviewCount, &s.AverageRating, &s.BookingCount); err != nil {
			return nil, fmt.Errorf("failed to scan property stats: %w", err)
		}
		s.CreatedAt = s.CreatedAt.UTC()
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// SetPropertyFeatured writes the flag only when it differs from the stored
// value; an unchanged flag yields ErrGuardFailed and no audit entry.
func (db *DB) SetPropertyFeatured(ctx context.Context, id int64, featured bool, now time.Time, actor string) error {
	return db.withTx(ctx, func(tc txConn) error {
		var current bool
		err := tc.queryRow(ctx, `SELECT is_featured FROM properties WHERE id = ?`+tc.forUpdate(), id).Scan(&current)
		if err != nil {
			return fmt.Errorf("failed to load property %d: %w", id, notFound(err))
		}
		if current == featured {
			return ErrGuardFailed
		}

		if _, err := tc.exec(ctx, `UPDATE properties SET is_featured = ?, updated_at = ? WHERE id = ?`,
			featured, ts(now), id); err != nil {
			return fmt.Errorf("failed to update property %d: %w", id, err)
		}

		return tc.insertAudit(ctx, &models.AuditEntry{
			Action:    models.AuditFeaturedChanged,
			TableName: models.TableProperties,
			RecordID:  id,
			OldValues: encodeValues(map[string]bool{"is_featured": current}),
			NewValues: encodeValues(map[string]bool{"is_featured": featured}),
			Actor:     actor,
			CreatedAt: now,
		})
	})
}
