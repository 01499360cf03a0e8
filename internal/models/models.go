package models

import "time"

// OrderStatus is the preparation/service axis of an order.
type OrderStatus string

const (
	OrderPlaced    OrderStatus = "PLACED"
	OrderAccepted  OrderStatus = "ACCEPTED"
	OrderInPrep    OrderStatus = "IN_PREP"
	OrderReady     OrderStatus = "READY"
	OrderServing   OrderStatus = "SERVING"
	OrderServed    OrderStatus = "SERVED"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRefunded  OrderStatus = "REFUNDED"
	OrderExpired   OrderStatus = "EXPIRED"
)

// IsTerminal reports whether no forward transition is possible from s.
// COMPLETED and CANCELLED can still move to REFUNDED.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderCompleted, OrderCancelled, OrderRefunded, OrderExpired:
		return true
	}
	return false
}

// PaymentStatus is the payment axis of an order.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPending  PaymentStatus = "PAYMENT_PENDING"
	PaymentPayLater PaymentStatus = "PAY_LATER"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// PaymentMode is the customer's declared payment intent.
type PaymentMode string

const (
	PayAtTill PaymentMode = "pay_at_till"
	PayLater  PaymentMode = "pay_later"
	PayOnline PaymentMode = "online"
)

func (m PaymentMode) Valid() bool {
	switch m {
	case PayAtTill, PayLater, PayOnline:
		return true
	}
	return false
}

// SessionStatus is the state of one table occupancy interval.
type SessionStatus string

const (
	SessionFree     SessionStatus = "FREE"
	SessionOccupied SessionStatus = "OCCUPIED"
	SessionReserved SessionStatus = "RESERVED"
	SessionCleaning SessionStatus = "CLEANING"
	SessionMerged   SessionStatus = "MERGED"
	SessionServed   SessionStatus = "SERVED"
	SessionClosed   SessionStatus = "CLOSED"
)

// TicketStatus is the kitchen display state of one ticket.
type TicketStatus string

const (
	TicketNew       TicketStatus = "new"
	TicketPreparing TicketStatus = "preparing"
	TicketReady     TicketStatus = "ready"
	TicketBumped    TicketStatus = "bumped"
	TicketServed    TicketStatus = "served"
	TicketCancelled TicketStatus = "cancelled"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketNew, TicketPreparing, TicketReady, TicketBumped, TicketServed, TicketCancelled:
		return true
	}
	return false
}

// StationTypeExpo is the station type every venue must carry; ticket routing
// falls back to it when no category-matched station exists.
const StationTypeExpo = "expo"

// AccessLevel is the caller's capability, supplied by the access-control
// collaborator. Elevated skips the venue-ownership check and nothing else.
type AccessLevel int

const (
	AccessScoped AccessLevel = iota
	AccessElevated
)

// Order represents a customer order.
type Order struct {
	ID               string        `db:"id" json:"id"`
	VenueID          string        `db:"venue_id" json:"venue_id"`
	OrderStatus      OrderStatus   `db:"order_status" json:"order_status"`
	PaymentStatus    PaymentStatus `db:"payment_status" json:"payment_status"`
	PaymentMode      PaymentMode   `db:"payment_mode" json:"payment_mode"`
	PaymentIntentRef string        `db:"payment_intent_ref" json:"payment_intent_ref,omitempty"`
	TableID          *string       `db:"table_id" json:"table_id,omitempty"`
	TableNumber      *string       `db:"table_number" json:"table_number,omitempty"`
	CustomerName     string        `db:"customer_name" json:"customer_name,omitempty"`
	TotalAmount      int64         `db:"total_amount" json:"total_amount"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
	ServedAt         *time.Time    `db:"served_at" json:"served_at,omitempty"`
}

// CountsForDashboard reports whether the order belongs to the qualifying set
// the dashboard counts over. The SQL predicate in the store must agree with
// this function.
func (o *Order) CountsForDashboard() bool {
	return o.OrderStatus != OrderCancelled &&
		o.OrderStatus != OrderExpired &&
		o.PaymentStatus != PaymentRefunded
}

// OrderItem is one line item of an order. ItemID is nil for ad-hoc items
// that have no catalog entry.
type OrderItem struct {
	ID                  string  `db:"id" json:"id"`
	OrderID             string  `db:"order_id" json:"order_id"`
	ItemID              *string `db:"item_id" json:"item_id,omitempty"`
	Name                string  `db:"name" json:"name"`
	Quantity            int     `db:"quantity" json:"quantity"`
	UnitPrice           int64   `db:"unit_price" json:"unit_price"`
	SpecialInstructions string  `db:"special_instructions" json:"special_instructions,omitempty"`
}

// Table is a physical table or counter position. The premerge columns hold
// the snapshot taken when the table becomes a merge primary, so unmerge can
// restore the exact pre-merge label and seat count.
type Table struct {
	ID                string  `db:"id" json:"id"`
	VenueID           string  `db:"venue_id" json:"venue_id"`
	Label             string  `db:"label" json:"label"`
	SeatCount         int     `db:"seat_count" json:"seat_count"`
	MergedWithTableID *string `db:"merged_with_table_id" json:"merged_with_table_id,omitempty"`
	PremergeLabel     *string `db:"premerge_label" json:"-"`
	PremergeSeatCount *int    `db:"premerge_seat_count" json:"-"`
}

// TableSession is one continuous occupancy interval of a table. At most one
// session per table may be open (closed_at IS NULL) at a time.
type TableSession struct {
	ID            string        `db:"id" json:"id"`
	VenueID       string        `db:"venue_id" json:"venue_id"`
	TableID       string        `db:"table_id" json:"table_id"`
	Status        SessionStatus `db:"status" json:"status"`
	OrderID       *string       `db:"order_id" json:"order_id,omitempty"`
	ServerID      *string       `db:"server_id" json:"server_id,omitempty"`
	GuestCount    int           `db:"guest_count" json:"guest_count"`
	ReservationID *string       `db:"reservation_id" json:"reservation_id,omitempty"`
	OpenedAt      time.Time     `db:"opened_at" json:"opened_at"`
	ClosedAt      *time.Time    `db:"closed_at" json:"closed_at,omitempty"`
}

// KitchenTicket is one line item's preparation unit at one station.
type KitchenTicket struct {
	ID                  string       `db:"id" json:"id"`
	VenueID             string       `db:"venue_id" json:"venue_id"`
	OrderID             string       `db:"order_id" json:"order_id"`
	OrderItemID         string       `db:"order_item_id" json:"order_item_id"`
	StationID           string       `db:"station_id" json:"station_id"`
	Status              TicketStatus `db:"status" json:"status"`
	ItemName            string       `db:"item_name" json:"item_name"`
	Quantity            int          `db:"quantity" json:"quantity"`
	SpecialInstructions string       `db:"special_instructions" json:"special_instructions,omitempty"`
	TableLabel          string       `db:"table_label" json:"table_label,omitempty"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at" json:"updated_at"`
}

// Station is one kitchen preparation point.
type Station struct {
	ID           string `db:"id" json:"id"`
	VenueID      string `db:"venue_id" json:"venue_id"`
	Name         string `db:"name" json:"name"`
	StationType  string `db:"station_type" json:"station_type"`
	DisplayOrder int    `db:"display_order" json:"display_order"`
	Color        string `db:"color" json:"color"`
	IsActive     bool   `db:"is_active" json:"is_active"`
}

// MenuItem is the slice of the catalog the router needs for category lookup.
type MenuItem struct {
	ID       string `db:"id" json:"id"`
	VenueID  string `db:"venue_id" json:"venue_id"`
	Name     string `db:"name" json:"name"`
	Category string `db:"category" json:"category"`
	Price    int64  `db:"price" json:"price"`
}

// TicketSpec is the derived-view form of one line item before it becomes a
// stored ticket.
type TicketSpec struct {
	OrderItemID         string
	ItemName            string
	Quantity            int
	SpecialInstructions string
	Category            string
}

// ProcessedEvent records a consumed webhook/event id for idempotency.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
