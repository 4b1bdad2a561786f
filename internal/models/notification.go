package models

import "time"

// Notification is a durable e-mail queue item.
type Notification struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	Recipient   string     `json:"recipient"`
	BookingID   *int64     `json:"booking_id,omitempty"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
}

func (n *Notification) IsSent() bool { return n.Status == NotificationSent }

// Abandoned reports whether the item exhausted its retries.
func (n *Notification) Abandoned() bool { return n.Status == NotificationFailed }

// LeaseExpiredError is recorded on an item whose claim lease ran out before
// the poller reported an outcome.
const LeaseExpiredError = "claim lease expired"
