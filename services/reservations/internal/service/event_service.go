package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/repository"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/seatgrid"
)

const upcomingLimit = 50

type EventService interface {
	Create(ctx context.Context, in domain.EventInput) (*domain.Event, error)
	Get(ctx context.Context, id int64) (*domain.EventStats, error)
	List(ctx context.Context, page, limit int) ([]domain.Event, domain.PageMeta, error)
	Update(ctx context.Context, id int64, patch domain.EventPatch) (*domain.Event, error)
	Deactivate(ctx context.Context, id int64) error
	Upcoming(ctx context.Context) ([]domain.EventStats, error)
	Summary(ctx context.Context) (*domain.EventsSummary, error)
}

type eventService struct {
	events       repository.EventRepository
	bookings     repository.BookingRepository
	availability AvailabilityService
	settings     SettingsService
	loc          *time.Location
	now          func() time.Time
}

func NewEventService(
	eventRepo repository.EventRepository,
	bookingRepo repository.BookingRepository,
	availability AvailabilityService,
	settings SettingsService,
	links *LinkBuilder,
) EventService {
	return &eventService{
		events:       eventRepo,
		bookings:     bookingRepo,
		availability: availability,
		settings:     settings,
		loc:          links.Location(),
		now:          time.Now,
	}
}

var errEventNotFound = domain.Reject(domain.ReasonEventNotFound, "Event not found")

// checkCapacity keeps every seat addressable by a label.
func checkCapacity(total int) error {
	switch {
	case total < 1:
		return domain.Invalid("totalSeats must be at least 1")
	case total > seatgrid.MaxSeats:
		return domain.Invalid(fmt.Sprintf("totalSeats must be at most %d", seatgrid.MaxSeats))
	}
	return nil
}

func (s *eventService) Create(ctx context.Context, in domain.EventInput) (*domain.Event, error) {
	day, err := domain.ParseDay(in.Date, s.loc)
	if err != nil {
		return nil, domain.Invalid("date must be a valid date")
	}
	if day.Before(domain.DayOf(s.now(), s.loc)) {
		return nil, domain.Reject(domain.ReasonInvalidEventDate, "Cannot create events for past dates")
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	in.Time = strings.TrimSpace(in.Time)
	if in.Time == "" {
		in.Time = settings.EventTime()
	}
	if in.TotalSeats == 0 {
		in.TotalSeats = settings.DefaultTotalSeats
	}
	if err := checkCapacity(in.TotalSeats); err != nil {
		return nil, err
	}

	e, err := s.events.Create(ctx, day, in)
	if errors.Is(err, repository.ErrDuplicateEvent) {
		return nil, domain.Reject(domain.ReasonEventExists, "An event already exists for this date")
	}
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.availability.Invalidate(ctx, day)
	logger.InfoContext(ctx, "Event created", "event_id", e.ID, "event_date", domain.DayKey(day))
	return e, nil
}

func (s *eventService) Get(ctx context.Context, id int64) (*domain.EventStats, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if e == nil {
		return nil, errEventNotFound
	}
	stats, err := s.withStats(ctx, []domain.Event{*e})
	if err != nil {
		return nil, err
	}
	return &stats[0], nil
}

func (s *eventService) List(ctx context.Context, page, limit int) ([]domain.Event, domain.PageMeta, error) {
	f := domain.BookingFilter{Page: page, Limit: limit}
	f.Normalize()
	events, total, err := s.events.List(ctx, f.Limit, f.Offset())
	if err != nil {
		return nil, domain.PageMeta{}, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, domain.NewPageMeta(f.Page, f.Limit, total), nil
}

func (s *eventService) Update(ctx context.Context, id int64, patch domain.EventPatch) (*domain.Event, error) {
	if patch.TotalSeats != nil {
		if err := checkCapacity(*patch.TotalSeats); err != nil {
			return nil, err
		}
	}
	e, err := s.events.Update(ctx, id, patch)
	if errors.Is(err, repository.ErrCapacityBelowBooked) {
		return nil, domain.Invalid("totalSeats cannot be lower than the seats already booked")
	}
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if e == nil {
		return nil, errEventNotFound
	}
	s.availability.Invalidate(ctx, e.Date)
	logger.InfoContext(ctx, "Event updated", "event_id", e.ID)
	return e, nil
}

func (s *eventService) Deactivate(ctx context.Context, id int64) error {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}
	if e == nil {
		return errEventNotFound
	}
	ok, err := s.events.Deactivate(ctx, id)
	if err != nil {
		return fmt.Errorf("deactivate event: %w", err)
	}
	if !ok {
		return errEventNotFound
	}
	s.availability.Invalidate(ctx, e.Date)
	logger.InfoContext(ctx, "Event deactivated", "event_id", id)
	return nil
}

func (s *eventService) Upcoming(ctx context.Context) ([]domain.EventStats, error) {
	events, err := s.events.ListFrom(ctx, domain.DayOf(s.now(), s.loc), upcomingLimit)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return s.withStats(ctx, events)
}

func (s *eventService) Summary(ctx context.Context) (*domain.EventsSummary, error) {
	upcoming, err := s.Upcoming(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	sum := &domain.EventsSummary{UpcomingEvents: len(upcoming), EventTimes: settings.EventTimes}
	for i := range upcoming {
		st := upcoming[i]
		sum.TotalCapacity += st.TotalSeats
		sum.TotalBooked += st.BookedSeats
		if st.IsFullyBooked {
			sum.FullyBooked++
		}
	}
	if len(upcoming) > 0 {
		sum.NextEvent = &upcoming[0]
	}
	return sum, nil
}

func (s *eventService) withStats(ctx context.Context, events []domain.Event) ([]domain.EventStats, error) {
	out := make([]domain.EventStats, 0, len(events))
	if len(events) == 0 {
		return out, nil
	}
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	counts, err := s.bookings.CountsByEvent(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	for _, e := range events {
		c := counts[e.ID]
		st := domain.EventStats{
			Event:         e,
			BookedSeats:   c.Seats,
			BookingCount:  c.Bookings,
			IsFullyBooked: e.AvailableSeats <= 0,
		}
		if e.TotalSeats > 0 {
			st.OccupancyRatio = float64(e.TotalSeats-e.AvailableSeats) / float64(e.TotalSeats)
		}
		out = append(out, st)
	}
	return out, nil
}
