package models

import "time"

type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	TableName string    `json:"table_name"`
	RecordID  int64     `json:"record_id"`
	OldValues string    `json:"old_values"`
	NewValues string    `json:"new_values"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}
