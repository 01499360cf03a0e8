package interfaces

import (
	"context"
	"time"

	"venue-service/internal/models"
)

// OrderStore is the slice of the store the order lifecycle depends on.
type OrderStore interface {
	// CreateOrder inserts the order and its items in one transaction.
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	// UpdateOrderStatusCond writes the next status pair conditioned on the
	// previously read pair being unchanged; false means a concurrent writer won.
	UpdateOrderStatusCond(ctx context.Context, orderID string,
		expectStatus models.OrderStatus, expectPayment models.PaymentStatus,
		nextStatus models.OrderStatus, nextPayment models.PaymentStatus,
		servedAt *time.Time) (bool, error)
	// UpdatePaymentModeCond writes the new mode conditioned on the payment
	// status being unchanged since read.
	UpdatePaymentModeCond(ctx context.Context, orderID string,
		expectPayment models.PaymentStatus, mode models.PaymentMode) (bool, error)
}

// TableStore is the slice of the store the table session manager depends on.
// InTx runs fn against a transactional view; every mutation inside either
// commits as a unit or not at all.
type TableStore interface {
	InTx(ctx context.Context, fn func(tx TableStore) error) error
	GetTable(ctx context.Context, venueID, tableID string) (*models.Table, error)
	UpdateTable(ctx context.Context, table *models.Table) error
	CountMergeMembers(ctx context.Context, venueID, tableID string) (int, error)
	// GetOpenSession returns the table's open session, or nil if none.
	GetOpenSession(ctx context.Context, venueID, tableID string) (*models.TableSession, error)
	CreateSession(ctx context.Context, session *models.TableSession) error
	CloseSession(ctx context.Context, sessionID string, status models.SessionStatus, closedAt time.Time) error
	// CountActiveOrdersForTable counts non-terminal orders on a table,
	// excluding the order being released.
	CountActiveOrdersForTable(ctx context.Context, venueID, tableID, excludeOrderID string) (int, error)
}

// TicketStore is the slice of the store the ticket router depends on.
type TicketStore interface {
	InTicketTx(ctx context.Context, fn func(tx TicketStore) error) error
	ListStations(ctx context.Context, venueID string) ([]models.Station, error)
	CreateStation(ctx context.Context, station *models.Station) error
	CountTicketsForOrder(ctx context.Context, venueID, orderID string) (int, error)
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	CreateTicket(ctx context.Context, ticket *models.KitchenTicket) error
	GetTicket(ctx context.Context, venueID, ticketID string) (*models.KitchenTicket, error)
	UpdateTicketStatus(ctx context.Context, venueID, ticketID string, status models.TicketStatus) error
	// ListOrdersMissingTickets returns orders in the given statuses created at
	// or after since that have no ticket yet.
	ListOrdersMissingTickets(ctx context.Context, venueID string,
		statuses []models.OrderStatus, since time.Time) ([]models.Order, error)
}

// DashboardStore is the read-only slice the dashboard aggregator depends on.
// Both methods apply the qualifying-set predicate mirrored by
// models.Order.CountsForDashboard; from/to are a half-open [from, to) window,
// nil meaning unbounded.
type DashboardStore interface {
	CountOrders(ctx context.Context, venueID string, from, to *time.Time) (int, error)
	SumPaidRevenue(ctx context.Context, venueID string, from, to *time.Time) (int64, error)
}

// CatalogStore is the DB fallback behind the cached category lookup.
type CatalogStore interface {
	GetMenuItem(ctx context.Context, itemID string) (*models.MenuItem, error)
}

// EventStore tracks consumed event ids so at-least-once webhook delivery
// stays idempotent.
type EventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}
