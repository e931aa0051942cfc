package repository

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Event, error)
	GetByDate(ctx context.Context, day time.Time) (*domain.Event, error)
	// EnsureForDate returns the event for day, creating it with the given
	// capacity when none exists yet.
	EnsureForDate(ctx context.Context, day time.Time, totalSeats int, eventTime string) (*domain.Event, error)
	Create(ctx context.Context, day time.Time, in domain.EventInput) (*domain.Event, error)
	Update(ctx context.Context, id int64, patch domain.EventPatch) (*domain.Event, error)
	Deactivate(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, limit, offset int) ([]domain.Event, int, error)
	ListFrom(ctx context.Context, from time.Time, limit int) ([]domain.Event, error)
}

type eventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &eventRepository{pool: pool}
}

const eventCols = `id, event_date, event_time, total_seats, available_seats,
is_active, location, session_name, created_at, updated_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID, &e.Date, &e.Time, &e.TotalSeats, &e.AvailableSeats,
		&e.IsActive, &e.Location, &e.SessionName, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	const q = `SELECT ` + eventCols + ` FROM events WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanEvent(r.pool.QueryRow(ctx, q, id))
}

func (r *eventRepository) GetByDate(ctx context.Context, day time.Time) (*domain.Event, error) {
	const q = `SELECT ` + eventCols + ` FROM events WHERE event_date=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanEvent(r.pool.QueryRow(ctx, q, day))
}

func (r *eventRepository) EnsureForDate(ctx context.Context, day time.Time, totalSeats int, eventTime string) (*domain.Event, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	const q = `INSERT INTO events (event_date, event_time, total_seats, available_seats)
	VALUES ($1, $2, $3, $3)
	ON CONFLICT (event_date) DO UPDATE SET event_date = EXCLUDED.event_date
	RETURNING ` + eventCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanEvent(r.pool.QueryRow(ctx, q, day, eventTime, totalSeats))
}

func (r *eventRepository) Create(ctx context.Context, day time.Time, in domain.EventInput) (*domain.Event, error) {
	const q = `INSERT INTO events (event_date, event_time, total_seats, available_seats, location, session_name)
	VALUES ($1, $2, $3, $3, $4, $5)
	RETURNING ` + eventCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	e, err := scanEvent(r.pool.QueryRow(ctx, q, day, in.Time, in.TotalSeats, in.Location, in.SessionName))
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEvent
	}
	return e, err
}

// Update applies patch. A capacity change moves available_seats by the same
// delta so held seats stay accounted for.
func (r *eventRepository) Update(ctx context.Context, id int64, patch domain.EventPatch) (*domain.Event, error) {
	const q = `UPDATE events SET
		event_time      = COALESCE($2, event_time),
		available_seats = available_seats + (COALESCE($3, total_seats) - total_seats),
		total_seats     = COALESCE($3, total_seats),
		is_active       = COALESCE($4, is_active),
		location        = COALESCE($5, location),
		session_name    = COALESCE($6, session_name),
		updated_at      = now()
	WHERE id=$1
	RETURNING ` + eventCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	e, err := scanEvent(r.pool.QueryRow(ctx, q, id,
		patch.Time, patch.TotalSeats, patch.IsActive, patch.Location, patch.SessionName))
	if isCheckViolation(err) {
		return nil, ErrCapacityBelowBooked
	}
	return e, err
}

func (r *eventRepository) Deactivate(ctx context.Context, id int64) (bool, error) {
	const q = `UPDATE events SET is_active=false, updated_at=now() WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *eventRepository) List(ctx context.Context, limit, offset int) ([]domain.Event, int, error) {
	const q = `SELECT ` + eventCols + `, count(*) OVER() FROM events
	ORDER BY event_date DESC LIMIT $1 OFFSET $2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		events []domain.Event
		total  int
	)
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(
			&e.ID, &e.Date, &e.Time, &e.TotalSeats, &e.AvailableSeats,
			&e.IsActive, &e.Location, &e.SessionName, &e.CreatedAt, &e.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

func (r *eventRepository) ListFrom(ctx context.Context, from time.Time, limit int) ([]domain.Event, error) {
	const q = `SELECT ` + eventCols + ` FROM events
	WHERE event_date >= $1 AND is_active
	ORDER BY event_date ASC LIMIT $2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
