// Package repository archives signals and executed trades in PostgreSQL.
// The archive is optional; the decision engine runs without it and the
// portfolio document on disk stays the source of truth.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is an interface that both pgxpool.Pool and pgx.Tx satisfy.
// This allows Repository methods to work with either a connection pool
// or a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides database access for the signal and trade archive.
type Repository struct {
	pool *pgxpool.Pool
	db   DBTX // The actual executor (pool or transaction)
}

// NewRepository creates a new Repository with a PostgreSQL connection pool
func NewRepository(ctx context.Context, connString string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Repository{pool: pool, db: pool}, nil
}

// WithTx returns a new Repository that uses the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{pool: r.pool, db: tx}
}

// BeginTx starts a new transaction and returns a Repository that uses it.
// The caller is responsible for calling Commit() or Rollback() on the transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, *Repository, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, r.WithTx(tx), nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Health checks if the database connection is healthy
func (r *Repository) Health(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Pool returns the underlying connection pool for advanced operations.
// This is primarily intended for testing and cleanup operations.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// Migrate creates the archive tables when they don't exist yet.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS signals (
			id UUID PRIMARY KEY,
			symbol TEXT NOT NULL,
			signal TEXT NOT NULL,
			score INT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			price BIGINT NOT NULL,
			target BIGINT,
			stop_loss BIGINT,
			reasons TEXT[] NOT NULL DEFAULT '{}',
			technical_score INT NOT NULL,
			sentiment_score INT NOT NULL,
			fundamental_score INT NOT NULL,
			combined BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS signals_symbol_created_idx ON signals (symbol, created_at DESC);

		CREATE TABLE IF NOT EXISTS trades (
			id UUID PRIMARY KEY,
			trade_date DATE NOT NULL,
			action TEXT NOT NULL,
			symbol TEXT NOT NULL,
			shares BIGINT NOT NULL,
			price BIGINT NOT NULL,
			total BIGINT NOT NULL,
			reason TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS trades_symbol_date_idx ON trades (symbol, trade_date DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to run archive migration: %w", err)
	}
	return nil
}
