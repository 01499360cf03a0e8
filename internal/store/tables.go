package store

import (
	"context"
	"database/sql"
	"time"

	"venue-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetTable retrieves a table by id, nil if absent. Inside a transaction the
// row is locked so a concurrent merge cannot interleave.
func (s *Store) GetTable(ctx context.Context, venueID, tableID string) (*models.Table, error) {
	query := "SELECT * FROM tables WHERE venue_id = $1 AND id = $2"
	if s.tx != nil {
		query += " FOR UPDATE"
	}
	var table models.Table
	err := sqlx.GetContext(ctx, s.ext(), &table, query, venueID, tableID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// UpdateTable writes label, seat count and merge state.
func (s *Store) UpdateTable(ctx context.Context, table *models.Table) error {
	_, err := s.ext().ExecContext(ctx, `
		UPDATE tables
		SET label = $1, seat_count = $2, merged_with_table_id = $3,
			premerge_label = $4, premerge_seat_count = $5
		WHERE venue_id = $6 AND id = $7`,
		table.Label, table.SeatCount, table.MergedWithTableID,
		table.PremergeLabel, table.PremergeSeatCount,
		table.VenueID, table.ID)
	return err
}

// CountMergeMembers counts tables merged into the given table.
func (s *Store) CountMergeMembers(ctx context.Context, venueID, tableID string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, s.ext(), &count,
		"SELECT COUNT(*) FROM tables WHERE venue_id = $1 AND merged_with_table_id = $2",
		venueID, tableID)
	return count, err
}

// GetOpenSession returns the table's open session, nil if none. Locked when
// called inside a transaction.
func (s *Store) GetOpenSession(ctx context.Context, venueID, tableID string) (*models.TableSession, error) {
	query := `SELECT * FROM table_sessions
		WHERE venue_id = $1 AND table_id = $2 AND closed_at IS NULL
		ORDER BY opened_at DESC LIMIT 1`
	if s.tx != nil {
		query += " FOR UPDATE"
	}
	var session models.TableSession
	err := sqlx.GetContext(ctx, s.ext(), &session, query, venueID, tableID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateSession opens a new session.
func (s *Store) CreateSession(ctx context.Context, session *models.TableSession) error {
	_, err := s.ext().ExecContext(ctx, `
		INSERT INTO table_sessions (id, venue_id, table_id, status, order_id,
			server_id, guest_count, reservation_id, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		session.ID, session.VenueID, session.TableID, session.Status, session.OrderID,
		session.ServerID, session.GuestCount, session.ReservationID, session.OpenedAt)
	return err
}

// CloseSession stamps closed_at and the final recorded status.
func (s *Store) CloseSession(ctx context.Context, sessionID string, status models.SessionStatus, closedAt time.Time) error {
	_, err := s.ext().ExecContext(ctx,
		"UPDATE table_sessions SET status = $1, closed_at = $2 WHERE id = $3 AND closed_at IS NULL",
		status, closedAt, sessionID)
	return err
}

// CountActiveOrdersForTable counts non-terminal orders on a table, excluding
// the order being released.
func (s *Store) CountActiveOrdersForTable(ctx context.Context, venueID, tableID, excludeOrderID string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, s.ext(), &count, `
		SELECT COUNT(*) FROM orders
		WHERE venue_id = $1 AND table_id = $2 AND id <> $3
		AND order_status NOT IN ('COMPLETED', 'CANCELLED', 'REFUNDED', 'EXPIRED')`,
		venueID, tableID, excludeOrderID)
	return count, err
}
