package events

import (
	"encoding/json"
	"sync"
	"time"

	"reservo/internal/lifecycle"
	"reservo/internal/models"
)

const (
	EventBookingCreated     = "booking_created"
	EventBookingConfirmed   = "booking_confirmed"
	EventBookingPartialPaid = "booking_partially_paid"
	EventBookingCheckedIn   = "booking_checked_in"
	EventBookingCheckedOut  = "booking_checked_out"
	EventBookingCanceled    = "booking_canceled"
	EventBookingRejected    = "booking_auto_rejected"
	EventBookingNoShow      = "booking_no_show"
	EventBookingRefunded    = "booking_refunded"
	EventCouponExpired      = "coupon_expired"
	EventPayoutCreated      = "payout_created"

	// AllEvents subscribes a handler to every event type.
	AllEvents = "*"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID     int64     `json:"booking_id"`
	Code          string    `json:"code"`
	CustomerID    int64     `json:"customer_id"`
	PropertyID    int64     `json:"property_id"`
	RoomTypeID    int64     `json:"room_type_id"`
	OldStatus     string    `json:"old_status,omitempty"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	ChangedBy     string    `json:"changed_by,omitempty"`
	At            time.Time `json:"at"`
}

var transitionEvents = map[lifecycle.Event]string{
	lifecycle.EventPaymentSucceeded: EventBookingConfirmed,
	lifecycle.EventPartialPayment:   EventBookingPartialPaid,
	lifecycle.EventCheckIn:          EventBookingCheckedIn,
	lifecycle.EventCheckOut:         EventBookingCheckedOut,
	lifecycle.EventCancel:           EventBookingCanceled,
	lifecycle.EventRefund:           EventBookingRefunded,
	lifecycle.EventAutoReject:       EventBookingRejected,
	lifecycle.EventNoShow:           EventBookingNoShow,
}

// ForTransition names the bus event published after a lifecycle event commits.
func ForTransition(ev lifecycle.Event) string {
	return transitionEvents[ev]
}

// NewBookingPayload snapshots b after a change from oldStatus.
func NewBookingPayload(b *models.Booking, oldStatus, changedBy string) BookingEventPayload {
	return BookingEventPayload{
		BookingID:     b.ID,
		Code:          b.Code,
		CustomerID:    b.CustomerID,
		PropertyID:    b.PropertyID,
		RoomTypeID:    b.RoomTypeID,
		OldStatus:     oldStatus,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		ChangedBy:     changedBy,
		At:            b.UpdatedAt,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type, or AllEvents.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers[AllEvents]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
