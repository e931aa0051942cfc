package repository

import (
	"context"
	"errors"

	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SettingsRepository interface {
	Get(ctx context.Context) (*domain.SystemSettings, error)
	// Seed writes s only when no settings row exists yet.
	Seed(ctx context.Context, s domain.SystemSettings) error
	Save(ctx context.Context, s domain.SystemSettings) (*domain.SystemSettings, error)
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

const settingsCols = `reservation_open_date, reservation_close_date, default_total_seats,
event_times, working_days, max_seats_per_user, min_cancellation_hours, updated_at`

func scanSettings(row pgx.Row) (*domain.SystemSettings, error) {
	var (
		s    domain.SystemSettings
		days []int16
	)
	err := row.Scan(
		&s.ReservationOpenDate, &s.ReservationCloseDate, &s.DefaultTotalSeats,
		&s.EventTimes, &days, &s.MaxSeatsPerUser, &s.MinCancellationHours, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.WorkingDays = make([]int, len(days))
	for i, d := range days {
		s.WorkingDays[i] = int(d)
	}
	return &s, nil
}

func (r *settingsRepository) Get(ctx context.Context) (*domain.SystemSettings, error) {
	const q = `SELECT ` + settingsCols + ` FROM system_settings WHERE id=1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanSettings(r.pool.QueryRow(ctx, q))
}

func (r *settingsRepository) Seed(ctx context.Context, s domain.SystemSettings) error {
	const q = `INSERT INTO system_settings (id, reservation_open_date, reservation_close_date,
		default_total_seats, event_times, working_days, max_seats_per_user, min_cancellation_hours)
	VALUES (1, $1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, q,
		s.ReservationOpenDate, s.ReservationCloseDate, s.DefaultTotalSeats,
		s.EventTimes, workingDays(s.WorkingDays), s.MaxSeatsPerUser, s.MinCancellationHours)
	return err
}

func (r *settingsRepository) Save(ctx context.Context, s domain.SystemSettings) (*domain.SystemSettings, error) {
	const q = `INSERT INTO system_settings (id, reservation_open_date, reservation_close_date,
		default_total_seats, event_times, working_days, max_seats_per_user, min_cancellation_hours)
	VALUES (1, $1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		reservation_open_date = EXCLUDED.reservation_open_date,
		reservation_close_date = EXCLUDED.reservation_close_date,
		default_total_seats = EXCLUDED.default_total_seats,
		event_times = EXCLUDED.event_times,
		working_days = EXCLUDED.working_days,
		max_seats_per_user = EXCLUDED.max_seats_per_user,
		min_cancellation_hours = EXCLUDED.min_cancellation_hours,
		updated_at = now()
	RETURNING ` + settingsCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanSettings(r.pool.QueryRow(ctx, q,
		s.ReservationOpenDate, s.ReservationCloseDate, s.DefaultTotalSeats,
		s.EventTimes, workingDays(s.WorkingDays), s.MaxSeatsPerUser, s.MinCancellationHours))
}

func workingDays(days []int) []int16 {
	out := make([]int16, len(days))
	for i, d := range days {
		out[i] = int16(d)
	}
	return out
}
