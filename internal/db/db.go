// Package db provides the PostgreSQL-backed audit store. Repositories
// accept a DBTX interface satisfied by both *pgxpool.Pool and pgx.Tx,
// so the same code works inside or outside a transaction.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Network-Direction/chatbot/internal/types"
)

// DBTX is the minimal query interface shared by *pgxpool.Pool and
// pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool opens a connection pool and verifies it with a ping.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "creating connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, types.NewAppError(types.ErrCodeInternalDB, "pinging database", err)
	}
	return pool, nil
}
