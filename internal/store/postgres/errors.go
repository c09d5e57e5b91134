package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/basesub/subscriptions/internal/store"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// classify maps a raw pgx/pgconn error to the StorageError the rest
// of the core expects from every Store method.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isNoRows(err):
		return &store.StorageError{Kind: store.NotFound, Op: op, Err: err}
	case isUniqueViolation(err):
		return &store.StorageError{Kind: store.Conflict, Op: op, Err: err}
	default:
		return &store.StorageError{Kind: store.Transient, Op: op, Err: err}
	}
}
