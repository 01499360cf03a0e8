package service

import (
	"context"
	"errors"
	"time"

	"venue-service/internal/interfaces"
	"venue-service/internal/models"
	"venue-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TableSessionManager owns table occupancy state. A table's current state is
// the status of its open session; a table with no open session is FREE.
// Every state-opening operation checks the one-open-session invariant inside
// the same transaction that mutates it.
type TableSessionManager struct {
	tables interfaces.TableStore
	logger *zap.Logger
	now    func() time.Time
}

// NewTableSessionManager creates a table session manager.
func NewTableSessionManager(tables interfaces.TableStore) *TableSessionManager {
	return &TableSessionManager{
		tables: tables,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// SeatRequest carries one seating.
type SeatRequest struct {
	VenueID       string  `json:"venue_id" binding:"required"`
	TableID       string  `json:"table_id" binding:"required"`
	GuestCount    int     `json:"guest_count"`
	ServerID      *string `json:"server_id,omitempty"`
	ReservationID *string `json:"reservation_id,omitempty"`
	OrderID       *string `json:"order_id,omitempty"`
}

// tableState derives the table's current state from its open session.
func tableState(sess *models.TableSession) models.SessionStatus {
	if sess == nil {
		return models.SessionFree
	}
	return sess.Status
}

// Seat opens an OCCUPIED session. An open FREE session is closed and
// replaced; any other open session is a conflict.
func (m *TableSessionManager) Seat(ctx context.Context, req *SeatRequest) (*models.TableSession, error) {
	ctx, span := util.StartSpan(ctx, "TableSessionManager.Seat")
	defer span.End()

	if req.GuestCount < 0 {
		return nil, validationError("guest count cannot be negative")
	}

	var session *models.TableSession
	err := m.tables.InTx(ctx, func(tx interfaces.TableStore) error {
		table, err := tx.GetTable(ctx, req.VenueID, req.TableID)
		if err != nil {
			return err
		}
		if table == nil {
			return validationError("table %s not found", req.TableID)
		}
		if table.MergedWithTableID != nil {
			return conflictError("table %s is merged into %s, seat the primary table",
				req.TableID, *table.MergedWithTableID)
		}

		open, err := tx.GetOpenSession(ctx, req.VenueID, req.TableID)
		if err != nil {
			return err
		}
		switch tableState(open) {
		case models.SessionFree:
		case models.SessionReserved:
			// A reserved table is seatable; the reservation collaborator
			// owns the handoff.
			if req.ReservationID == nil && open.ReservationID != nil {
				req.ReservationID = open.ReservationID
			}
		default:
			return conflictError("table %s already has an open %s session",
				req.TableID, open.Status)
		}
		if open != nil {
			if err := tx.CloseSession(ctx, open.ID, models.SessionClosed, m.now()); err != nil {
				return err
			}
		}

		session = &models.TableSession{
			ID:            uuid.New().String(),
			VenueID:       req.VenueID,
			TableID:       req.TableID,
			Status:        models.SessionOccupied,
			OrderID:       req.OrderID,
			ServerID:      req.ServerID,
			GuestCount:    req.GuestCount,
			ReservationID: req.ReservationID,
			OpenedAt:      m.now(),
		}
		return tx.CreateSession(ctx, session)
	})
	if err != nil {
		return nil, asServiceError(err, "failed to seat table")
	}

	util.TablesSeatedTotal.Inc()
	m.logger.Info("table seated",
		zap.String("table_id", req.TableID),
		zap.Int("guests", req.GuestCount))
	return session, nil
}

// Merge combines secondary into primary. Both tables must be FREE, and the
// secondary must not already be in a merge group (depth-1 invariant). All
// row mutations commit as one transaction.
func (m *TableSessionManager) Merge(ctx context.Context, venueID, primaryID, secondaryID string) (*models.Table, error) {
	ctx, span := util.StartSpan(ctx, "TableSessionManager.Merge")
	defer span.End()

	if primaryID == secondaryID {
		return nil, validationError("cannot merge a table with itself")
	}

	var merged *models.Table
	err := m.tables.InTx(ctx, func(tx interfaces.TableStore) error {
		primary, err := tx.GetTable(ctx, venueID, primaryID)
		if err != nil {
			return err
		}
		secondary, err := tx.GetTable(ctx, venueID, secondaryID)
		if err != nil {
			return err
		}
		if primary == nil || secondary == nil {
			return validationError("both tables must exist in venue %s", venueID)
		}
		if primary.MergedWithTableID != nil {
			return conflictError("table %s is already a merge member", primaryID)
		}
		if secondary.MergedWithTableID != nil {
			return conflictError("table %s is already a merge member", secondaryID)
		}
		members, err := tx.CountMergeMembers(ctx, venueID, secondaryID)
		if err != nil {
			return err
		}
		if members > 0 {
			return conflictError("table %s already has merged members", secondaryID)
		}

		primaryOpen, err := tx.GetOpenSession(ctx, venueID, primaryID)
		if err != nil {
			return err
		}
		secondaryOpen, err := tx.GetOpenSession(ctx, venueID, secondaryID)
		if err != nil {
			return err
		}
		if tableState(primaryOpen) != models.SessionFree {
			return conflictError("table %s is %s, merge requires FREE", primaryID, tableState(primaryOpen))
		}
		if tableState(secondaryOpen) != models.SessionFree {
			return conflictError("table %s is %s, merge requires FREE", secondaryID, tableState(secondaryOpen))
		}

		now := m.now()
		if primaryOpen != nil {
			if err := tx.CloseSession(ctx, primaryOpen.ID, models.SessionClosed, now); err != nil {
				return err
			}
		}
		if secondaryOpen != nil {
			if err := tx.CloseSession(ctx, secondaryOpen.ID, models.SessionClosed, now); err != nil {
				return err
			}
		}

		premergeLabel := primary.Label
		premergeSeats := primary.SeatCount
		primary.PremergeLabel = &premergeLabel
		primary.PremergeSeatCount = &premergeSeats
		primary.Label = premergeLabel + "+" + secondary.Label
		primary.SeatCount = premergeSeats + secondary.SeatCount
		if err := tx.UpdateTable(ctx, primary); err != nil {
			return err
		}

		secondary.MergedWithTableID = &primary.ID
		if err := tx.UpdateTable(ctx, secondary); err != nil {
			return err
		}

		for _, tableID := range []string{primary.ID, secondary.ID} {
			session := &models.TableSession{
				ID:       uuid.New().String(),
				VenueID:  venueID,
				TableID:  tableID,
				Status:   models.SessionMerged,
				OpenedAt: now,
			}
			if err := tx.CreateSession(ctx, session); err != nil {
				return err
			}
		}

		merged = primary
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "failed to merge tables")
	}

	util.TablesMergedTotal.Inc()
	m.logger.Info("tables merged",
		zap.String("primary_table_id", primaryID),
		zap.String("secondary_table_id", secondaryID),
		zap.String("label", merged.Label))
	return merged, nil
}

// Unmerge restores primary and secondary to their pre-merge labels and seat
// counts and opens fresh FREE sessions for both.
func (m *TableSessionManager) Unmerge(ctx context.Context, venueID, secondaryID string) (*models.Table, error) {
	ctx, span := util.StartSpan(ctx, "TableSessionManager.Unmerge")
	defer span.End()

	var restored *models.Table
	err := m.tables.InTx(ctx, func(tx interfaces.TableStore) error {
		secondary, err := tx.GetTable(ctx, venueID, secondaryID)
		if err != nil {
			return err
		}
		if secondary == nil {
			return validationError("table %s not found", secondaryID)
		}
		if secondary.MergedWithTableID == nil {
			return invalidStateError("table %s is not merged", secondaryID)
		}

		primary, err := tx.GetTable(ctx, venueID, *secondary.MergedWithTableID)
		if err != nil {
			return err
		}
		if primary == nil {
			return internalError("merge primary missing for table "+secondaryID, nil)
		}

		if primary.PremergeLabel != nil {
			primary.Label = *primary.PremergeLabel
		}
		if primary.PremergeSeatCount != nil {
			primary.SeatCount = *primary.PremergeSeatCount
		}
		primary.PremergeLabel = nil
		primary.PremergeSeatCount = nil
		if err := tx.UpdateTable(ctx, primary); err != nil {
			return err
		}

		secondary.MergedWithTableID = nil
		if err := tx.UpdateTable(ctx, secondary); err != nil {
			return err
		}

		now := m.now()
		for _, tableID := range []string{primary.ID, secondary.ID} {
			open, err := tx.GetOpenSession(ctx, venueID, tableID)
			if err != nil {
				return err
			}
			if open != nil {
				if err := tx.CloseSession(ctx, open.ID, models.SessionClosed, now); err != nil {
					return err
				}
			}
			session := &models.TableSession{
				ID:       uuid.New().String(),
				VenueID:  venueID,
				TableID:  tableID,
				Status:   models.SessionFree,
				OpenedAt: now,
			}
			if err := tx.CreateSession(ctx, session); err != nil {
				return err
			}
		}

		restored = secondary
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "failed to unmerge table")
	}

	m.logger.Info("table unmerged", zap.String("table_id", secondaryID))
	return restored, nil
}

// Release is called when an order on the table reaches a terminal state. The
// table stays OCCUPIED while any other non-terminal order remains on it; the
// last active order frees it. Returns whether the table was freed.
func (m *TableSessionManager) Release(ctx context.Context, venueID, tableID, orderID string) (bool, error) {
	ctx, span := util.StartSpan(ctx, "TableSessionManager.Release")
	defer span.End()

	released := false
	err := m.tables.InTx(ctx, func(tx interfaces.TableStore) error {
		remaining, err := tx.CountActiveOrdersForTable(ctx, venueID, tableID, orderID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			m.logger.Info("table kept occupied, active orders remain",
				zap.String("table_id", tableID),
				zap.Int("remaining", remaining))
			return nil
		}

		open, err := tx.GetOpenSession(ctx, venueID, tableID)
		if err != nil {
			return err
		}
		now := m.now()
		if open != nil {
			if err := tx.CloseSession(ctx, open.ID, models.SessionServed, now); err != nil {
				return err
			}
		}
		session := &models.TableSession{
			ID:       uuid.New().String(),
			VenueID:  venueID,
			TableID:  tableID,
			Status:   models.SessionFree,
			OpenedAt: now,
		}
		if err := tx.CreateSession(ctx, session); err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		return false, asServiceError(err, "failed to release table")
	}

	if released {
		util.TablesReleasedTotal.Inc()
		m.logger.Info("table released",
			zap.String("table_id", tableID),
			zap.String("order_id", orderID))
	}
	return released, nil
}

// MarkCleaning is the staff override that puts a table into CLEANING.
func (m *TableSessionManager) MarkCleaning(ctx context.Context, venueID, tableID string) (*models.TableSession, error) {
	return m.markState(ctx, venueID, tableID, models.SessionCleaning)
}

// MarkFree is the staff override that forces a table back to FREE.
func (m *TableSessionManager) MarkFree(ctx context.Context, venueID, tableID string) (*models.TableSession, error) {
	return m.markState(ctx, venueID, tableID, models.SessionFree)
}

func (m *TableSessionManager) markState(ctx context.Context, venueID, tableID string, status models.SessionStatus) (*models.TableSession, error) {
	ctx, span := util.StartSpan(ctx, "TableSessionManager.markState")
	defer span.End()

	var session *models.TableSession
	err := m.tables.InTx(ctx, func(tx interfaces.TableStore) error {
		table, err := tx.GetTable(ctx, venueID, tableID)
		if err != nil {
			return err
		}
		if table == nil {
			return validationError("table %s not found", tableID)
		}

		open, err := tx.GetOpenSession(ctx, venueID, tableID)
		if err != nil {
			return err
		}
		now := m.now()
		if open != nil {
			if err := tx.CloseSession(ctx, open.ID, models.SessionClosed, now); err != nil {
				return err
			}
		}
		session = &models.TableSession{
			ID:       uuid.New().String(),
			VenueID:  venueID,
			TableID:  tableID,
			Status:   status,
			OpenedAt: now,
		}
		return tx.CreateSession(ctx, session)
	})
	if err != nil {
		return nil, asServiceError(err, "failed to update table state")
	}

	m.logger.Info("table state overridden",
		zap.String("table_id", tableID),
		zap.String("status", string(status)))
	return session, nil
}

// asServiceError keeps typed domain errors intact and wraps raw store errors
// as internal.
func asServiceError(err error, msg string) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return internalError(msg, err)
}
