package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

const (
	sqlStateUniqueViolation    = "23505"
	sqlStateExclusionViolation = "23P01"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func IsConflict(err error) bool {
	return hasSQLState(err, sqlStateExclusionViolation)
}

func IsUniqueViolation(err error) bool {
	return hasSQLState(err, sqlStateUniqueViolation)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func hasSQLState(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// notFound turns pgx.ErrNoRows into the domain error and passes anything else through.
func notFound(err error, kind, id string) error {
	if IsNotFound(err) {
		return &model.NotFoundError{Kind: kind, ID: id}
	}
	return err
}

// validID rejects ids that cannot be a uuid before they reach Postgres, where they
// would fail with invalid_text_representation instead of a clean miss.
func validID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &model.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// validIDs keeps the well-formed ids, in order.
func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
