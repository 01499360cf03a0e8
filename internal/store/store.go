package store

import (
	"context"
	"fmt"
	"time"

	"venue-service/internal/interfaces"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store is the Postgres-backed implementation of every store interface the
// services consume. A Store bound to a transaction (via runTx) runs all its
// queries inside it; row-level locks are taken in that mode.
type Store struct {
	db *sqlx.DB
	tx *sqlx.Tx
}

// NewStore connects to the database.
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection.
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

func (s *Store) ext() sqlx.ExtContext {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// runTx runs fn against a transaction-bound Store. Nested calls reuse the
// already-open transaction.
func (s *Store) runTx(ctx context.Context, fn func(txStore *Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// InTx satisfies interfaces.TableStore: every table/session mutation inside
// fn commits atomically.
func (s *Store) InTx(ctx context.Context, fn func(tx interfaces.TableStore) error) error {
	return s.runTx(ctx, func(txStore *Store) error { return fn(txStore) })
}

// InTicketTx satisfies interfaces.TicketStore: the ticket existence check and
// the inserts share one transaction.
func (s *Store) InTicketTx(ctx context.Context, fn func(tx interfaces.TicketStore) error) error {
	return s.runTx(ctx, func(txStore *Store) error { return fn(txStore) })
}
