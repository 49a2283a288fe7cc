package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smartpro-app/smartpro-backend/internal/apperr"
	"github.com/smartpro-app/smartpro-backend/internal/outbox"
	"github.com/smartpro-app/smartpro-backend/libs/db"
)

// Store is the single data-access layer over the hosted record store.
// Every method classifies failures into the apperr taxonomy so callers
// never see raw driver errors.
type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: outboxRepo}
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 23505 unique_violation, 23P01 exclusion_violation.
	return pgErr.Code == "23505" || pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// classify maps a storage error onto the stable taxonomy. notFound is
// used when the query matched no rows; pass "" when no-rows is not an
// error for the call site.
func classify(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindTimeout, "record store call exceeded its deadline", err)
	case IsNotFound(err) && notFound != "":
		return apperr.New(apperr.KindNotFound, notFound)
	default:
		return apperr.Wrap(apperr.KindUpstream, "record store error", err)
	}
}
