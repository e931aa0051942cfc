package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PendingRepository stores seat holds awaiting code confirmation. Every read
// filters on expires_at so rows the sweeper has not reached yet are inert.
type PendingRepository interface {
	// Upsert replaces any pending reservation held by the same email.
	Upsert(ctx context.Context, p *domain.PendingReservation) error
	GetLiveByEmail(ctx context.Context, email string, now time.Time) (*domain.PendingReservation, error)
	GetLive(ctx context.Context, email, tempID string, now time.Time) (*domain.PendingReservation, error)
	ExistsLiveForDate(ctx context.Context, email string, day, now time.Time) (bool, error)
	HeldSeats(ctx context.Context, day, now time.Time) ([]int, error)
	Extend(ctx context.Context, email, tempID string, expiresAt time.Time) (bool, error)
	Delete(ctx context.Context, email, tempID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pendingRepository struct {
	pool *pgxpool.Pool
}

func NewPendingRepository(pool *pgxpool.Pool) PendingRepository {
	return &pendingRepository{pool: pool}
}

const pendingCols = `temp_id::text, email, event_date, seat_numbers, seat_labels,
booking_data, reservation_token, token_issued_ms, created_at, expires_at`

func scanPending(row pgx.Row) (*domain.PendingReservation, error) {
	var (
		p   domain.PendingReservation
		raw []byte
	)
	err := row.Scan(
		&p.TempID, &p.Email, &p.EventDate, &p.Seats.Numbers, &p.Seats.Labels,
		&raw, &p.ReservationToken, &p.TokenIssuedMs, &p.CreatedAt, &p.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &p.Request); err != nil {
		return nil, fmt.Errorf("decode booking data: %w", err)
	}
	return &p, nil
}

func (r *pendingRepository) Upsert(ctx context.Context, p *domain.PendingReservation) error {
	const q = `INSERT INTO pending_reservations (
		temp_id, email, event_date, seat_numbers, seat_labels,
		booking_data, reservation_token, token_issued_ms, expires_at
	) VALUES ($1::text::uuid,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT ((lower(email))) DO UPDATE SET
		temp_id = EXCLUDED.temp_id,
		event_date = EXCLUDED.event_date,
		seat_numbers = EXCLUDED.seat_numbers,
		seat_labels = EXCLUDED.seat_labels,
		booking_data = EXCLUDED.booking_data,
		reservation_token = EXCLUDED.reservation_token,
		token_issued_ms = EXCLUDED.token_issued_ms,
		created_at = now(),
		expires_at = EXCLUDED.expires_at
	RETURNING created_at`

	data, err := json.Marshal(p.Request)
	if err != nil {
		return fmt.Errorf("encode booking data: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return r.pool.QueryRow(ctx, q,
		p.TempID, p.Email, p.EventDate, p.Seats.Numbers, p.Seats.Labels,
		data, p.ReservationToken, p.TokenIssuedMs, p.ExpiresAt,
	).Scan(&p.CreatedAt)
}

func (r *pendingRepository) GetLiveByEmail(ctx context.Context, email string, now time.Time) (*domain.PendingReservation, error) {
	const q = `SELECT ` + pendingCols + ` FROM pending_reservations
	WHERE lower(email)=lower($1) AND expires_at > $2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanPending(r.pool.QueryRow(ctx, q, email, now))
}

func (r *pendingRepository) GetLive(ctx context.Context, email, tempID string, now time.Time) (*domain.PendingReservation, error) {
	const q = `SELECT ` + pendingCols + ` FROM pending_reservations
	WHERE lower(email)=lower($1) AND temp_id::text=$2 AND expires_at > $3`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanPending(r.pool.QueryRow(ctx, q, email, tempID, now))
}

func (r *pendingRepository) ExistsLiveForDate(ctx context.Context, email string, day, now time.Time) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM pending_reservations
		WHERE lower(email)=lower($1) AND event_date=$2 AND expires_at > $3
	)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, q, email, day, now).Scan(&exists)
	return exists, err
}

func (r *pendingRepository) HeldSeats(ctx context.Context, day, now time.Time) ([]int, error) {
	const q = `SELECT DISTINCT unnest(seat_numbers) AS n FROM pending_reservations
	WHERE event_date=$1 AND expires_at > $2
	ORDER BY n`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, day, now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func (r *pendingRepository) Extend(ctx context.Context, email, tempID string, expiresAt time.Time) (bool, error) {
	const q = `UPDATE pending_reservations SET expires_at=$3
	WHERE lower(email)=lower($1) AND temp_id::text=$2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, email, tempID, expiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pendingRepository) Delete(ctx context.Context, email, tempID string) error {
	const q = `DELETE FROM pending_reservations WHERE lower(email)=lower($1) AND temp_id::text=$2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, email, tempID)
	return err
}

func (r *pendingRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM pending_reservations WHERE expires_at <= $1`
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
