package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventRecordCreated  = "record_created"
	EventRecordUpdated  = "record_updated"
	EventRecordDeleted  = "record_deleted"
	EventRecordsChanged = "records_changed"
	EventLog            = "log"

	EventVendorOnboarded  = "vendor_onboarded"
	EventReviewCreated    = "review_created"
	EventReviewDeleted    = "review_deleted"
	EventBookingCreated   = "booking_created"
	EventBookingApproved  = "booking_approved"
	EventBookingCompleted = "booking_completed"
	EventBookingPaid      = "booking_paid"
)

// RecordEventPayload describes a committed write for event consumers.
// Bulk writes carry Count instead of ID.
type RecordEventPayload struct {
	Model  string `json:"model"`
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Count  int64  `json:"count,omitempty"`
}

// LogEventPayload is a client log line routed to the bus instead of stdout.
type LogEventPayload struct {
	Level     string        `json:"level"`
	Message   string        `json:"message,omitempty"`
	Model     string        `json:"model,omitempty"`
	Action    string        `json:"action,omitempty"`
	Query     string        `json:"query,omitempty"`
	Params    string        `json:"params,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID     string    `json:"booking_id"`
	UserID        string    `json:"user_id"`
	VendorID      string    `json:"vendor_id"`
	ItemID        string    `json:"item_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	TotalPrice    float64   `json:"total_price"`
}

// ReviewEventPayload carries the review and the rating it produced on its target.
type ReviewEventPayload struct {
	ReviewID string   `json:"review_id"`
	UserID   string   `json:"user_id"`
	ItemID   string   `json:"item_id,omitempty"`
	VendorID string   `json:"vendor_id,omitempty"`
	Rating   *float64 `json:"rating"`
}

type VendorEventPayload struct {
	VendorID string `json:"vendor_id"`
	UserID   string `json:"user_id"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
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

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
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

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for deferred publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

// Buffer collects events until Flush hands them to a bus. Transactions use it
// so subscribers only observe committed writes.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

func (b *Buffer) Add(event Event) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
}

// Flush publishes buffered events in order and empties the buffer.
func (b *Buffer) Flush(bus *EventBus) {
	b.mu.Lock()
	pending := b.events
	b.events = nil
	b.mu.Unlock()

	for i := range pending {
		bus.Publish(&pending[i])
	}
}

// Discard drops buffered events.
func (b *Buffer) Discard() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
