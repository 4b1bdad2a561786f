package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reservo/internal/models"
)

func encodeValues(v interface{}) string {
	if v == nil {
		return "{}"
	}
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func (c conn) insertAudit(ctx context.Context, e *models.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.OldValues == "" {
		e.OldValues = "{}"
	}
	if e.NewValues == "" {
		e.NewValues = "{}"
	}
	err := c.queryRow(ctx, `INSERT INTO audit_log (action, table_name, record_id, old_values, new_values, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		e.Action, e.TableName, e.RecordID, e.OldValues, e.NewValues, e.Actor, ts(e.CreatedAt),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// Record appends one audit entry outside any transaction. oldValues and
// newValues are JSON-encoded unless already strings.
func (db *DB) Record(ctx context.Context, action, table string, recordID int64, oldValues, newValues interface{}) error {
	return db.conn().insertAudit(ctx, &models.AuditEntry{
		Action:    action,
		TableName: table,
		RecordID:  recordID,
		OldValues: encodeValues(oldValues),
		NewValues: encodeValues(newValues),
		Actor:     models.ActorSystem,
	})
}

func (db *DB) ListAudit(ctx context.Context, table string, recordID int64) ([]*models.AuditEntry, error) {
	rows, err := db.conn().query(ctx, `SELECT id, action, table_name, record_id, old_values, new_values, actor, created_at
		FROM audit_log WHERE table_name = ? AND record_id = ? ORDER BY id`, table, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.Action, &e.TableName, &e.RecordID, &e.OldValues, &e.NewValues, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountAudit counts entries with the given action, across all records.
func (db *DB) CountAudit(ctx context.Context, action string) (int, error) {
	var n int
	err := db.conn().queryRow(ctx, `SELECT COUNT(*) FROM audit_log WHERE action = ?`, action).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return n, nil
}
