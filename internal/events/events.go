package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated     = "booking_created"
	EventBookingConfirmed   = "booking_confirmed"
	EventBookingStarted     = "booking_started"
	EventBookingCompleted   = "booking_completed"
	EventBookingCancelled   = "booking_cancelled"
	EventBookingRescheduled = "booking_rescheduled"
	EventInvoiceGenerated   = "invoice_generated"
	EventInvoiceCancelled   = "invoice_cancelled"
	EventPaymentRecorded    = "payment_recorded"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID   int64     `json:"booking_id"`
	PetID       int64     `json:"pet_id"`
	SitterID    int64     `json:"sitter_id"`
	Status      string    `json:"status"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Reason      string    `json:"reason,omitempty"`
	ChangedByID int64     `json:"changed_by_id,omitempty"`
}

// InvoiceEventPayload describes an invoice snapshot for event consumers.
type InvoiceEventPayload struct {
	InvoiceID     int64  `json:"invoice_id"`
	BookingID     int64  `json:"booking_id"`
	AccountID     int64  `json:"account_id"`
	InvoiceNumber string `json:"invoice_number"`
	TotalCents    int64  `json:"total_cents"`
	Status        string `json:"status"`
}

// Event carries a serialized payload to subscribers.
type Event struct {
	Type       string
	Payload    []byte
	OccurredAt time.Time
}

// Handler reacts to one event. Publishing never fails because a
// subscriber did.
type Handler func(event *Event) error

// EventBus is an in-process fan-out of lifecycle events. Handlers run
// synchronously on the publishing goroutine.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for an event type. Wiring happens at
// startup, before any Publish.
func (b *EventBus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
	b.mu.Unlock()
}

// Publish delivers the event to every handler of its type.
func (b *EventBus) Publish(event *Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers[event.Type] {
		_ = h(event)
	}
}

// PublishJSON marshals the payload and publishes it. A nil bus is a
// no-op so callers can skip the nil check.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw})
	return nil
}
