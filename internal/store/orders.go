package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"venue-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateOrder inserts the order and its items in one transaction.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return s.runTx(ctx, func(tx *Store) error {
		_, err := tx.ext().ExecContext(ctx, `
			INSERT INTO orders (id, venue_id, order_status, payment_status, payment_mode,
				payment_intent_ref, table_id, table_number, customer_name, total_amount,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			order.ID, order.VenueID, order.OrderStatus, order.PaymentStatus, order.PaymentMode,
			order.PaymentIntentRef, order.TableID, order.TableNumber, order.CustomerName,
			order.TotalAmount, order.CreatedAt, order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for _, item := range items {
			_, err := tx.ext().ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, item_id, name, quantity, unit_price, special_instructions)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				item.ID, item.OrderID, item.ItemID, item.Name, item.Quantity,
				item.UnitPrice, item.SpecialInstructions)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		return nil
	})
}

// GetOrder retrieves an order by id, nil if absent.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, s.ext(), &order, "SELECT * FROM orders WHERE id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order in placement order.
func (s *Store) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := sqlx.SelectContext(ctx, s.ext(), &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdateOrderStatusCond writes the next status pair only if the previously
// read pair is still current. Returns false when a concurrent writer won.
func (s *Store) UpdateOrderStatusCond(ctx context.Context, orderID string,
	expectStatus models.OrderStatus, expectPayment models.PaymentStatus,
	nextStatus models.OrderStatus, nextPayment models.PaymentStatus,
	servedAt *time.Time) (bool, error) {

	res, err := s.ext().ExecContext(ctx, `
		UPDATE orders
		SET order_status = $1, payment_status = $2,
			served_at = COALESCE($3, served_at), updated_at = NOW()
		WHERE id = $4 AND order_status = $5 AND payment_status = $6`,
		nextStatus, nextPayment, servedAt, orderID, expectStatus, expectPayment)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// UpdatePaymentModeCond writes the new mode only if the payment status is
// still what the caller read.
func (s *Store) UpdatePaymentModeCond(ctx context.Context, orderID string,
	expectPayment models.PaymentStatus, mode models.PaymentMode) (bool, error) {

	res, err := s.ext().ExecContext(ctx, `
		UPDATE orders SET payment_mode = $1, updated_at = NOW()
		WHERE id = $2 AND payment_status = $3 AND order_status <> $4`,
		mode, orderID, expectPayment, models.OrderCompleted)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// dashboardPredicate is the SQL twin of models.Order.CountsForDashboard.
const dashboardPredicate = `
	order_status NOT IN ('CANCELLED', 'EXPIRED') AND payment_status <> 'REFUNDED'`

// CountOrders counts qualifying orders in the half-open window [from, to).
func (s *Store) CountOrders(ctx context.Context, venueID string, from, to *time.Time) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, s.ext(), &count, `
		SELECT COUNT(*) FROM orders
		WHERE venue_id = $1 AND `+dashboardPredicate+`
		AND ($2::timestamptz IS NULL OR created_at >= $2)
		AND ($3::timestamptz IS NULL OR created_at < $3)`,
		venueID, from, to)
	return count, err
}

// SumPaidRevenue sums total_amount over PAID orders in [from, to).
func (s *Store) SumPaidRevenue(ctx context.Context, venueID string, from, to *time.Time) (int64, error) {
	var total int64
	err := sqlx.GetContext(ctx, s.ext(), &total, `
		SELECT COALESCE(SUM(total_amount), 0) FROM orders
		WHERE venue_id = $1 AND payment_status = 'PAID'
		AND ($2::timestamptz IS NULL OR created_at >= $2)
		AND ($3::timestamptz IS NULL OR created_at < $3)`,
		venueID, from, to)
	return total, err
}

// ListVenuesWithRecentOrders returns the venues that placed orders at or
// after since; the scheduled backfill iterates over them.
func (s *Store) ListVenuesWithRecentOrders(ctx context.Context, since time.Time) ([]string, error) {
	var venues []string
	err := sqlx.SelectContext(ctx, s.ext(), &venues,
		"SELECT DISTINCT venue_id FROM orders WHERE created_at >= $1", since)
	return venues, err
}

// GetMenuItem retrieves a catalog item by id, nil if absent.
func (s *Store) GetMenuItem(ctx context.Context, itemID string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := sqlx.GetContext(ctx, s.ext(), &item, "SELECT * FROM menu_items WHERE id = $1", itemID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// IsEventProcessed checks if an event has been processed.
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, s.ext(), &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed.
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.ext().ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
