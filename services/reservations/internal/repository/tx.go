package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrSeatTaken means another live booking already holds one of the seats.
	ErrSeatTaken = errors.New("seat already taken")
	// ErrDuplicateBooking means the contact already holds a live booking for
	// the date.
	ErrDuplicateBooking = errors.New("contact already booked for date")
	// ErrDuplicateTicket means the generated ticket id is already in use.
	ErrDuplicateTicket = errors.New("ticket id already in use")
	// ErrInsufficientSeats means the event counter could not cover the request.
	ErrInsufficientSeats = errors.New("insufficient seats")
	// ErrDuplicateEvent means an event already exists for the date.
	ErrDuplicateEvent = errors.New("event already exists for date")
	// ErrCapacityBelowBooked means a capacity change would drop below held seats.
	ErrCapacityBelowBooked = errors.New("capacity below booked seats")
)

const queryTimeout = 3 * time.Second

func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// uniqueConstraint returns the violated index name, or "" when err is not a
// unique violation.
func uniqueConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName
	}
	return ""
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}
