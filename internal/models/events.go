package models

import "time"

// Event types
const (
	EventTypeOrderCreated           = "ORDER_CREATED"
	EventTypeOrderTransitioned      = "ORDER_TRANSITIONED"
	EventTypeTicketsRouted          = "TICKETS_ROUTED"
	EventTypeTableReleased          = "TABLE_RELEASED"
	EventTypePaymentIntentSucceeded = "PAYMENT_INTENT_SUCCEEDED"
	EventTypePaymentIntentFailed    = "PAYMENT_INTENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is placed
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	VenueID     string          `json:"venue_id"`
	TotalAmount int64           `json:"total_amount"`
	PaymentMode PaymentMode     `json:"payment_mode"`
	Items       []OrderItemData `json:"items"`
}

// OrderTransitionedEvent published on every successful status transition
type OrderTransitionedEvent struct {
	BaseEvent
	OrderID       string        `json:"order_id"`
	VenueID       string        `json:"venue_id"`
	OrderStatus   OrderStatus   `json:"order_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// TicketsRoutedEvent published when the router creates a ticket set
type TicketsRoutedEvent struct {
	BaseEvent
	OrderID     string `json:"order_id"`
	VenueID     string `json:"venue_id"`
	TicketCount int    `json:"ticket_count"`
}

// TableReleasedEvent published when an order completion frees a table
type TableReleasedEvent struct {
	BaseEvent
	VenueID string `json:"venue_id"`
	TableID string `json:"table_id"`
	OrderID string `json:"order_id"`
}

// PaymentIntentSucceededEvent delivered by the payment processor webhook.
// Delivery is at-least-once; handlers must be idempotent on IntentRef.
type PaymentIntentSucceededEvent struct {
	BaseEvent
	IntentRef string `json:"intent_ref"`
	OrderID   string `json:"order_id"`
	VenueID   string `json:"venue_id"`
	Amount    int64  `json:"amount"`
}

// PaymentIntentFailedEvent delivered by the payment processor webhook
type PaymentIntentFailedEvent struct {
	BaseEvent
	IntentRef string `json:"intent_ref"`
	OrderID   string `json:"order_id"`
	VenueID   string `json:"venue_id"`
	Reason    string `json:"reason"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ItemID    *string `json:"item_id,omitempty"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice int64   `json:"unit_price"`
}
