// Package postgres is the pgx/v5-backed implementation of store.Store.
//
// Queries follows the sqlc-generated-code shape the rest of the pack
// uses: a DBTX abstraction satisfied by both *pgxpool.Pool and pgx.Tx,
// a Querier interface of one method per statement, and a New(dbtx)
// constructor — so a transaction-scoped instance is just New(tx)
// rather than a distinct code path.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx alike, so the same
// Queries implementation runs standalone or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries is the generated-style query object.
type Queries struct {
	db DBTX
}

// New wraps a pool or an in-flight transaction. Call it with a
// *pgxpool.Pool for standalone queries, or with a pgx.Tx to scope all
// queries to one atomic unit of work.
func New(dbtx DBTX) *Queries {
	return &Queries{db: dbtx}
}
