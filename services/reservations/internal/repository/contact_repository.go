package repository

import (
	"context"
	"errors"

	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContactRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Contact, error)
}

type contactRepository struct {
	pool *pgxpool.Pool
}

func NewContactRepository(pool *pgxpool.Pool) ContactRepository {
	return &contactRepository{pool: pool}
}

func (r *contactRepository) GetByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	const q = `SELECT ` + contactCols + ` FROM contacts c WHERE lower(c.email)=lower($1)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c domain.Contact
	err := r.pool.QueryRow(ctx, q, email).Scan(contactDest(&c)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
