package repository

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepository interface {
	Create(ctx context.Context, a *domain.Admin) (*domain.Admin, error)
	FindByUsername(ctx context.Context, username string) (*domain.Admin, error)
	FindByID(ctx context.Context, id int64) (*domain.Admin, error)
	Count(ctx context.Context) (int, error)
	// RecordFailure bumps the failed-login counter and locks the account
	// for lockout once it reaches max. An elapsed lock restarts the count.
	// It returns the new attempt count.
	RecordFailure(ctx context.Context, id int64, max int, lockout time.Duration) (int, error)
	RecordLogin(ctx context.Context, id int64, at time.Time) error
}

type adminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) AdminRepository {
	return &adminRepository{pool: pool}
}

const adminCols = `id, username, email, password_hash, role, phone, is_active,
login_attempts, lock_until, last_login, created_at`

func scanAdmin(row pgx.Row) (*domain.Admin, error) {
	var a domain.Admin
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.Phone, &a.IsActive,
		&a.LoginAttempts, &a.LockUntil, &a.LastLogin, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *adminRepository) Create(ctx context.Context, a *domain.Admin) (*domain.Admin, error) {
	const q = `INSERT INTO admins (username, email, password_hash, role, phone)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING ` + adminCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanAdmin(r.pool.QueryRow(ctx, q, a.Username, a.Email, a.PasswordHash, a.Role, a.Phone))
}

func (r *adminRepository) FindByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	const q = `SELECT ` + adminCols + ` FROM admins WHERE lower(username)=lower($1)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanAdmin(r.pool.QueryRow(ctx, q, username))
}

func (r *adminRepository) FindByID(ctx context.Context, id int64) (*domain.Admin, error) {
	const q = `SELECT ` + adminCols + ` FROM admins WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanAdmin(r.pool.QueryRow(ctx, q, id))
}

func (r *adminRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM admins`).Scan(&n)
	return n, err
}

func (r *adminRepository) RecordFailure(ctx context.Context, id int64, max int, lockout time.Duration) (int, error) {
	const q = `UPDATE admins SET
		login_attempts = CASE WHEN lock_until <= now() THEN 1 ELSE login_attempts + 1 END,
		lock_until = CASE
			WHEN lock_until <= now() THEN NULL
			WHEN login_attempts + 1 >= $2 THEN now() + make_interval(secs => $3)
			ELSE lock_until
		END,
		updated_at = now()
	WHERE id=$1
	RETURNING login_attempts`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var attempts int
	err := r.pool.QueryRow(ctx, q, id, max, lockout.Seconds()).Scan(&attempts)
	return attempts, err
}

func (r *adminRepository) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	const q = `UPDATE admins SET login_attempts=0, lock_until=NULL, last_login=$2, updated_at=now()
	WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, id, at)
	return err
}
