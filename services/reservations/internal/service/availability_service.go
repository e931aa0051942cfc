package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/repository"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/seatgrid"
)

// AvailabilityService combines confirmed bookings and live holds into the
// seat map of a day.
type AvailabilityService interface {
	Availability(ctx context.Context, day time.Time) (*domain.Availability, error)
	// Conflicts returns the labels of numbers already held on day. Live
	// pending holds count only when withPending is set.
	Conflicts(ctx context.Context, day time.Time, numbers []int, withPending bool) ([]string, error)
	Invalidate(ctx context.Context, day time.Time)
}

type availabilityService struct {
	events   repository.EventRepository
	bookings repository.BookingRepository
	pending  repository.PendingRepository
	cache    repository.AvailabilityCache
	settings SettingsService
	now      func() time.Time
}

func NewAvailabilityService(
	events repository.EventRepository,
	bookings repository.BookingRepository,
	pending repository.PendingRepository,
	cache repository.AvailabilityCache,
	settings SettingsService,
) AvailabilityService {
	return &availabilityService{
		events:   events,
		bookings: bookings,
		pending:  pending,
		cache:    cache,
		settings: settings,
		now:      time.Now,
	}
}

func (s *availabilityService) Availability(ctx context.Context, day time.Time) (*domain.Availability, error) {
	if cached, err := s.cache.Get(ctx, day); err != nil {
		logger.WarnContext(ctx, "Availability cache read failed", "error", err, "event_date", domain.DayKey(day))
	} else if cached != nil {
		return cached, nil
	}

	total, err := s.capacity(ctx, day)
	if err != nil {
		return nil, err
	}
	taken, err := s.bookings.TakenSeats(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load taken seats: %w", err)
	}

	booked := make(map[int]bool, len(taken))
	for _, n := range taken {
		booked[n] = true
	}

	a := &domain.Availability{
		EventDate:         domain.DayKey(day),
		TotalSeats:        total,
		BookedSeats:       len(taken),
		BookedSeatNumbers: taken,
		AllSeats:          make([]domain.SeatInfo, 0, total),
		AvailableSeatList: make([]domain.SeatInfo, 0, total),
	}
	for _, seat := range seatgrid.All(total) {
		info := domain.SeatInfo{Number: seat.Number, Label: seat.Label, IsAvailable: !booked[seat.Number]}
		a.AllSeats = append(a.AllSeats, info)
		if info.IsAvailable {
			a.AvailableSeatList = append(a.AvailableSeatList, info)
		}
	}
	a.AvailableSeats = len(a.AvailableSeatList)

	if err := s.cache.Set(ctx, day, a); err != nil {
		logger.WarnContext(ctx, "Availability cache write failed", "error", err, "event_date", a.EventDate)
	}
	return a, nil
}

func (s *availabilityService) capacity(ctx context.Context, day time.Time) (int, error) {
	event, err := s.events.GetByDate(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("load event: %w", err)
	}
	if event != nil {
		return event.TotalSeats, nil
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return 0, err
	}
	return settings.DefaultTotalSeats, nil
}

func (s *availabilityService) Conflicts(ctx context.Context, day time.Time, numbers []int, withPending bool) ([]string, error) {
	taken, err := s.bookings.TakenSeats(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load taken seats: %w", err)
	}
	if withPending {
		held, err := s.pending.HeldSeats(ctx, day, s.now())
		if err != nil {
			return nil, fmt.Errorf("load held seats: %w", err)
		}
		taken = append(taken, held...)
	}

	busy := make(map[int]bool, len(taken))
	for _, n := range taken {
		busy[n] = true
	}
	var conflicts []string
	for _, n := range numbers {
		if busy[n] {
			conflicts = append(conflicts, seatgrid.LabelForNumber(n))
		}
	}
	return conflicts, nil
}

func (s *availabilityService) Invalidate(ctx context.Context, day time.Time) {
	if err := s.cache.Invalidate(ctx, day); err != nil {
		logger.WarnContext(ctx, "Availability cache invalidation failed", "error", err, "event_date", domain.DayKey(day))
	}
}
