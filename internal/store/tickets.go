package store

import (
	"context"
	"database/sql"
	"time"

	"venue-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// ListStations retrieves a venue's stations in display order.
func (s *Store) ListStations(ctx context.Context, venueID string) ([]models.Station, error) {
	var stations []models.Station
	err := sqlx.SelectContext(ctx, s.ext(), &stations,
		"SELECT * FROM stations WHERE venue_id = $1 ORDER BY display_order, name", venueID)
	return stations, err
}

// CreateStation inserts a station. Concurrent EnsureStations calls may race
// on the same default set; the unique (venue_id, name) constraint makes the
// duplicate insert a no-op.
func (s *Store) CreateStation(ctx context.Context, station *models.Station) error {
	_, err := s.ext().ExecContext(ctx, `
		INSERT INTO stations (id, venue_id, name, station_type, display_order, color, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (venue_id, name) DO NOTHING`,
		station.ID, station.VenueID, station.Name, station.StationType,
		station.DisplayOrder, station.Color, station.IsActive)
	return err
}

// CountTicketsForOrder counts existing tickets for an order. Inside a
// transaction the count is taken with the order row locked, closing the race
// between two concurrent routing attempts.
func (s *Store) CountTicketsForOrder(ctx context.Context, venueID, orderID string) (int, error) {
	if s.tx != nil {
		// Serialize concurrent routers on the order row itself.
		var id string
		err := sqlx.GetContext(ctx, s.ext(), &id,
			"SELECT id FROM orders WHERE id = $1 FOR UPDATE", orderID)
		if err != nil && err != sql.ErrNoRows {
			return 0, err
		}
	}
	var count int
	err := sqlx.GetContext(ctx, s.ext(), &count,
		"SELECT COUNT(*) FROM kitchen_tickets WHERE venue_id = $1 AND order_id = $2",
		venueID, orderID)
	return count, err
}

// CreateTicket inserts a ticket.
func (s *Store) CreateTicket(ctx context.Context, ticket *models.KitchenTicket) error {
	_, err := s.ext().ExecContext(ctx, `
		INSERT INTO kitchen_tickets (id, venue_id, order_id, order_item_id, station_id,
			status, item_name, quantity, special_instructions, table_label, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ticket.ID, ticket.VenueID, ticket.OrderID, ticket.OrderItemID, ticket.StationID,
		ticket.Status, ticket.ItemName, ticket.Quantity, ticket.SpecialInstructions,
		ticket.TableLabel, ticket.CreatedAt, ticket.UpdatedAt)
	return err
}

// GetTicket retrieves a ticket venue-scoped, nil if absent.
func (s *Store) GetTicket(ctx context.Context, venueID, ticketID string) (*models.KitchenTicket, error) {
	var ticket models.KitchenTicket
	err := sqlx.GetContext(ctx, s.ext(), &ticket,
		"SELECT * FROM kitchen_tickets WHERE venue_id = $1 AND id = $2", venueID, ticketID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// UpdateTicketStatus writes a ticket's kitchen display state.
func (s *Store) UpdateTicketStatus(ctx context.Context, venueID, ticketID string, status models.TicketStatus) error {
	_, err := s.ext().ExecContext(ctx,
		"UPDATE kitchen_tickets SET status = $1, updated_at = NOW() WHERE venue_id = $2 AND id = $3",
		status, venueID, ticketID)
	return err
}

// ListOrdersMissingTickets returns orders in the given statuses created at or
// after since that have no ticket yet.
func (s *Store) ListOrdersMissingTickets(ctx context.Context, venueID string,
	statuses []models.OrderStatus, since time.Time) ([]models.Order, error) {

	query, args, err := sqlx.In(`
		SELECT o.* FROM orders o
		WHERE o.venue_id = ? AND o.created_at >= ? AND o.order_status IN (?)
		AND NOT EXISTS (SELECT 1 FROM kitchen_tickets t WHERE t.order_id = o.id)
		ORDER BY o.created_at`,
		venueID, since, statuses)
	if err != nil {
		return nil, err
	}
	query = s.ext().Rebind(query)

	var orders []models.Order
	err = sqlx.SelectContext(ctx, s.ext(), &orders, query, args...)
	return orders, err
}
