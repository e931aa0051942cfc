package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	// Create upserts the contact, inserts the booking with one row per held
	// seat and decrements the event counter, all in one transaction.
	Create(ctx context.Context, nb domain.NewBooking) (*domain.Booking, error)
	GetByTicketID(ctx context.Context, ticketID string) (*domain.Booking, error)
	ExistsForContact(ctx context.Context, email string, day time.Time) (bool, error)
	// TakenSeats lists seat numbers held by live bookings on day.
	TakenSeats(ctx context.Context, day time.Time) ([]int, error)
	// Release moves a booking in one of from to status to, frees its seats
	// and returns them to the counter. A nil booking means no row matched.
	Release(ctx context.Context, ticketID string, to domain.BookingStatus, from []domain.BookingStatus, at time.Time) (*domain.Booking, error)
	CheckIn(ctx context.Context, ticketID string, at time.Time) (*domain.Booking, error)
	ReassignSeats(ctx context.Context, ticketID string, seats domain.SeatSelection) (*domain.Booking, error)
	List(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, int, error)
	CountsByEvent(ctx context.Context, eventIDs []int64) (map[int64]EventCounts, error)
	RegistrationStats(ctx context.Context, day time.Time) (*domain.RegistrationStats, error)
}

// EventCounts is the live booking tally for one event.
type EventCounts struct {
	Bookings int
	Seats    int
}

type bookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{pool: pool}
}

const bookingCols = `b.id, b.ticket_id, b.contact_id, b.event_id, b.event_date,
b.seat_numbers, b.seat_labels, b.status, b.qr_payload, b.calendar_link,
b.reservation_token, b.token_issued_ms, b.cancelled_at, b.checked_in_at,
b.created_at, b.updated_at`

const contactCols = `c.id, c.email, c.name, c.phone, c.gender, c.age_range, c.about,
c.created_at, c.updated_at`

func bookingDest(b *domain.Booking) []any {
	return []any{
		&b.ID, &b.TicketID, &b.ContactID, &b.EventID, &b.EventDate,
		&b.Seats.Numbers, &b.Seats.Labels, &b.Status, &b.QRPayload, &b.CalendarLink,
		&b.ReservationToken, &b.TokenIssuedMs, &b.CancelledAt, &b.CheckedInAt,
		&b.CreatedAt, &b.UpdatedAt,
	}
}

func contactDest(c *domain.Contact) []any {
	return []any{
		&c.ID, &c.Email, &c.Name, &c.Phone, &c.Gender, &c.AgeRange, &c.About,
		&c.CreatedAt, &c.UpdatedAt,
	}
}

func scanBookingWithContact(row pgx.Row) (*domain.Booking, error) {
	var (
		b domain.Booking
		c domain.Contact
	)
	err := row.Scan(append(bookingDest(&b), contactDest(&c)...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.Contact = &c
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, nb domain.NewBooking) (*domain.Booking, error) {
	const upsertContact = `INSERT INTO contacts (email, name, phone, gender, age_range, about)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT ((lower(email))) DO UPDATE SET
		name = EXCLUDED.name,
		phone = EXCLUDED.phone,
		gender = EXCLUDED.gender,
		age_range = EXCLUDED.age_range,
		about = EXCLUDED.about,
		updated_at = now()
	RETURNING id, email, name, phone, gender, age_range, about, created_at, updated_at`

	const insertBooking = `INSERT INTO bookings AS b (
		ticket_id, contact_id, event_id, event_date, seat_numbers, seat_labels,
		status, qr_payload, calendar_link, reservation_token, token_issued_ms
	) VALUES ($1,$2,$3,$4,$5,$6,'attending',$7,$8,$9,$10)
	RETURNING ` + bookingCols

	const insertSeats = `INSERT INTO booking_seats (booking_id, event_id, seat_number)
	SELECT $1, $2, unnest($3::int[])`

	const decrement = `UPDATE events SET available_seats = available_seats - $2, updated_at = now()
	WHERE id=$1 AND available_seats >= $2`

	var (
		b domain.Booking
		c domain.Contact
	)
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		in := nb.Contact
		if err := tx.QueryRow(ctx, upsertContact,
			in.Email, in.Name, in.Phone, in.Gender, in.AgeRange, in.About,
		).Scan(contactDest(&c)...); err != nil {
			return fmt.Errorf("upsert contact: %w", err)
		}

		if err := tx.QueryRow(ctx, insertBooking,
			nb.TicketID, c.ID, nb.EventID, nb.EventDate, nb.Seats.Numbers, nb.Seats.Labels,
			nb.QRPayload, nb.CalendarLink, nb.ReservationToken, nb.TokenIssuedMs,
		).Scan(bookingDest(&b)...); err != nil {
			switch uniqueConstraint(err) {
			case "bookings_ticket_id_key":
				return ErrDuplicateTicket
			case "bookings_contact_date_live_uniq":
				return ErrDuplicateBooking
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		if _, err := tx.Exec(ctx, insertSeats, b.ID, nb.EventID, nb.Seats.Numbers); err != nil {
			if isUniqueViolation(err) {
				return ErrSeatTaken
			}
			return fmt.Errorf("insert seats: %w", err)
		}

		tag, err := tx.Exec(ctx, decrement, nb.EventID, nb.Seats.Count())
		if err != nil {
			return fmt.Errorf("decrement seats: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrInsufficientSeats
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.Contact = &c
	return &b, nil
}

func (r *bookingRepository) GetByTicketID(ctx context.Context, ticketID string) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + `, ` + contactCols + `
	FROM bookings b JOIN contacts c ON c.id = b.contact_id
	WHERE b.ticket_id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanBookingWithContact(r.pool.QueryRow(ctx, q, ticketID))
}

func (r *bookingRepository) ExistsForContact(ctx context.Context, email string, day time.Time) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM bookings b JOIN contacts c ON c.id = b.contact_id
		WHERE lower(c.email)=lower($1) AND b.event_date=$2
		  AND b.status IN ('attending','attended')
	)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, q, email, day).Scan(&exists)
	return exists, err
}

func (r *bookingRepository) TakenSeats(ctx context.Context, day time.Time) ([]int, error) {
	const q = `SELECT s.seat_number FROM booking_seats s
	JOIN events e ON e.id = s.event_id
	WHERE e.event_date=$1 AND s.released_at IS NULL
	ORDER BY s.seat_number`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, day)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func (r *bookingRepository) Release(ctx context.Context, ticketID string, to domain.BookingStatus, from []domain.BookingStatus, at time.Time) (*domain.Booking, error) {
	const update = `UPDATE bookings AS b SET status=$2, cancelled_at=$3, updated_at=now()
	WHERE b.ticket_id=$1 AND b.status = ANY($4)
	RETURNING ` + bookingCols

	const freeSeats = `UPDATE booking_seats SET released_at=$2
	WHERE booking_id=$1 AND released_at IS NULL`

	const increment = `UPDATE events SET available_seats = available_seats + $2, updated_at = now()
	WHERE id=$1`

	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	var (
		b     domain.Booking
		found bool
	)
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, update, ticketID, to, at, statuses).Scan(bookingDest(&b)...)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		found = true

		tag, err := tx.Exec(ctx, freeSeats, b.ID, at)
		if err != nil {
			return fmt.Errorf("release seats: %w", err)
		}
		if _, err := tx.Exec(ctx, increment, b.EventID, tag.RowsAffected()); err != nil {
			return fmt.Errorf("increment seats: %w", err)
		}
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) CheckIn(ctx context.Context, ticketID string, at time.Time) (*domain.Booking, error) {
	const q = `UPDATE bookings AS b SET status='attended', checked_in_at=$2, updated_at=now()
	WHERE b.ticket_id=$1 AND b.status='attending'
	RETURNING ` + bookingCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var b domain.Booking
	err := r.pool.QueryRow(ctx, q, ticketID, at).Scan(bookingDest(&b)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ReassignSeats swaps the held seats of a live booking. The counter is left
// alone since the seat count moves with the booking.
func (r *bookingRepository) ReassignSeats(ctx context.Context, ticketID string, seats domain.SeatSelection) (*domain.Booking, error) {
	const update = `UPDATE bookings AS b SET seat_numbers=$2, seat_labels=$3, updated_at=now()
	WHERE b.ticket_id=$1 AND b.status IN ('attending','attended')
	  AND cardinality(b.seat_numbers) = cardinality($2::int[])
	RETURNING ` + bookingCols

	const freeSeats = `UPDATE booking_seats SET released_at=now()
	WHERE booking_id=$1 AND released_at IS NULL`

	const insertSeats = `INSERT INTO booking_seats (booking_id, event_id, seat_number)
	SELECT $1, $2, unnest($3::int[])`

	var (
		b     domain.Booking
		found bool
	)
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, update, ticketID, seats.Numbers, seats.Labels).Scan(bookingDest(&b)...)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		found = true

		if _, err := tx.Exec(ctx, freeSeats, b.ID); err != nil {
			return fmt.Errorf("release seats: %w", err)
		}
		if _, err := tx.Exec(ctx, insertSeats, b.ID, b.EventID, seats.Numbers); err != nil {
			if isUniqueViolation(err) {
				return ErrSeatTaken
			}
			return fmt.Errorf("insert seats: %w", err)
		}
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) List(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, int, error) {
	f.Normalize()

	var (
		where []string
		args  []any
	)
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(c.name ILIKE $%d OR c.email ILIKE $%d OR c.phone ILIKE $%d OR b.ticket_id ILIKE $%d)", n, n, n, n))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("b.status=$%d", len(args)))
	}
	if f.EventDate != nil {
		args = append(args, *f.EventDate)
		where = append(where, fmt.Sprintf("b.event_date=$%d", len(args)))
	}

	q := `SELECT ` + bookingCols + `, ` + contactCols + `, count(*) OVER()
	FROM bookings b JOIN contacts c ON c.id = b.contact_id`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset())
	q += fmt.Sprintf(` ORDER BY b.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		bookings []domain.Booking
		total    int
	)
	for rows.Next() {
		var (
			b domain.Booking
			c domain.Contact
		)
		dest := append(bookingDest(&b), contactDest(&c)...)
		if err := rows.Scan(append(dest, &total)...); err != nil {
			return nil, 0, err
		}
		b.Contact = &c
		bookings = append(bookings, b)
	}
	return bookings, total, rows.Err()
}

func (r *bookingRepository) CountsByEvent(ctx context.Context, eventIDs []int64) (map[int64]EventCounts, error) {
	const q = `SELECT event_id, count(*), COALESCE(sum(cardinality(seat_numbers)), 0)
	FROM bookings
	WHERE event_id = ANY($1) AND status IN ('attending','attended')
	GROUP BY event_id`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, eventIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]EventCounts, len(eventIDs))
	for rows.Next() {
		var (
			id int64
			c  EventCounts
		)
		if err := rows.Scan(&id, &c.Bookings, &c.Seats); err != nil {
			return nil, err
		}
		counts[id] = c
	}
	return counts, rows.Err()
}

func (r *bookingRepository) RegistrationStats(ctx context.Context, day time.Time) (*domain.RegistrationStats, error) {
	const byStatus = `SELECT b.status, count(*) FROM bookings b
	WHERE b.event_date=$1 GROUP BY b.status ORDER BY b.status`
	const byGender = `SELECT c.gender, count(*) FROM bookings b JOIN contacts c ON c.id = b.contact_id
	WHERE b.event_date=$1 AND b.status IN ('attending','attended') GROUP BY c.gender ORDER BY c.gender`
	const byAge = `SELECT c.age_range, count(*) FROM bookings b JOIN contacts c ON c.id = b.contact_id
	WHERE b.event_date=$1 AND b.status IN ('attending','attended') GROUP BY c.age_range ORDER BY c.age_range`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	stats := &domain.RegistrationStats{EventDate: domain.DayKey(day)}
	for _, part := range []struct {
		q   string
		out *[]domain.CountByKey
	}{
		{byStatus, &stats.ByStatus},
		{byGender, &stats.ByGender},
		{byAge, &stats.ByAge},
	} {
		rows, err := r.pool.Query(ctx, part.q, day)
		if err != nil {
			return nil, err
		}
		counts, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.CountByKey])
		if err != nil {
			return nil, err
		}
		*part.out = counts
	}
	for _, c := range stats.ByStatus {
		stats.Total += c.Count
	}
	return stats, nil
}
