package service

import (
	"context"
	"fmt"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/config"
	"github.com/diagnosis/seat-reservations/pkg/events"
	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/repository"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/reservetoken"
)

type CancellationService interface {
	// Cancel is the guest path: it needs the reservation token and respects
	// the minimum notice window.
	Cancel(ctx context.Context, req domain.CancelRequest) (*domain.Booking, error)
	AdminCancel(ctx context.Context, ticketID string) (*domain.Booking, error)
	Void(ctx context.Context, ticketID string) (*domain.Booking, error)
}

type cancellationService struct {
	bookings     repository.BookingRepository
	availability AvailabilityService
	settings     SettingsService
	notifier     NotificationService
	signer       *reservetoken.Signer
	links        *LinkBuilder
	bus          events.Publisher
	now          func() time.Time
}

func NewCancellationService(
	bookingRepo repository.BookingRepository,
	availability AvailabilityService,
	settings SettingsService,
	notifier NotificationService,
	links *LinkBuilder,
	bus events.Publisher,
	cfg *config.Config,
) CancellationService {
	return &cancellationService{
		bookings:     bookingRepo,
		availability: availability,
		settings:     settings,
		notifier:     notifier,
		signer:       reservetoken.New(cfg.Booking.ReservationSecret),
		links:        links,
		bus:          bus,
		now:          time.Now,
	}
}

var errNotCancellable = domain.Reject(domain.ReasonNotFound, "Booking not found or already processed")

func (s *cancellationService) Cancel(ctx context.Context, req domain.CancelRequest) (*domain.Booking, error) {
	ticketID := normalizeTicket(req.TicketID)
	ctx = logger.WithTicket(ctx, ticketID)

	b, err := s.bookings.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b == nil || b.Status != domain.StatusAttending || b.Contact == nil {
		return nil, errNotCancellable
	}

	if !s.signer.Verify(req.ReservationToken, b.Contact.Email, b.EventDate, b.TokenIssuedMs) {
		logger.WarnContext(ctx, "Cancellation rejected: token mismatch")
		return nil, domain.Reject(domain.ReasonInvalidToken,
			"Invalid cancellation request. Please use the link from your booking confirmation email.")
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	notice := time.Duration(settings.MinCancellationHours) * time.Hour
	if s.links.EventStart(b.EventDate).Sub(now) < notice {
		return nil, domain.Reject(domain.ReasonTooLateToCancel,
			fmt.Sprintf("Cancellation not allowed within %d hours of the event", settings.MinCancellationHours))
	}

	released, err := s.release(ctx, b, domain.StatusCancelled, []domain.BookingStatus{domain.StatusAttending}, "guest")
	if err != nil {
		return nil, err
	}
	s.notifier.BookingCancelled(ctx, released)
	logger.InfoContext(ctx, "Booking cancelled by guest", "email", b.Contact.Email)
	return released, nil
}

func (s *cancellationService) AdminCancel(ctx context.Context, ticketID string) (*domain.Booking, error) {
	ticketID = normalizeTicket(ticketID)
	ctx = logger.WithTicket(ctx, ticketID)

	b, err := s.bookings.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b == nil || b.Status != domain.StatusAttending {
		return nil, errNotCancellable
	}

	released, err := s.release(ctx, b, domain.StatusCancelled, []domain.BookingStatus{domain.StatusAttending}, "admin")
	if err != nil {
		return nil, err
	}
	s.notifier.BookingCancelled(ctx, released)
	logger.InfoContext(ctx, "Booking cancelled by admin")
	return released, nil
}

func (s *cancellationService) Void(ctx context.Context, ticketID string) (*domain.Booking, error) {
	ticketID = normalizeTicket(ticketID)
	ctx = logger.WithTicket(ctx, ticketID)

	b, err := s.bookings.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b == nil || !b.Status.HoldsSeats() {
		return nil, errNotCancellable
	}

	released, err := s.release(ctx, b, domain.StatusVoided,
		[]domain.BookingStatus{domain.StatusAttending, domain.StatusAttended}, "voided")
	if err != nil {
		return nil, err
	}
	s.notifier.BookingVoided(ctx, released)
	logger.InfoContext(ctx, "Booking voided")
	return released, nil
}

func (s *cancellationService) release(ctx context.Context, b *domain.Booking, to domain.BookingStatus, from []domain.BookingStatus, reason string) (*domain.Booking, error) {
	now := s.now()
	released, err := s.bookings.Release(ctx, b.TicketID, to, from, now)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to release booking", "error", err, "status", to)
		return nil, fmt.Errorf("release booking: %w", err)
	}
	if released == nil {
		return nil, errNotCancellable
	}
	released.Contact = b.Contact
	s.availability.Invalidate(ctx, released.EventDate)

	subject := events.BookingCancelled
	if to == domain.StatusVoided {
		subject = events.BookingVoided
	}
	email := ""
	if b.Contact != nil {
		email = b.Contact.Email
	}
	if err := s.bus.Publish(ctx, subject, events.BookingCancelledEvent{
		TicketID:    released.TicketID,
		EventID:     released.EventID,
		EventDate:   domain.DayKey(released.EventDate),
		Email:       email,
		SeatNumbers: released.Seats.Numbers,
		Reason:      reason,
		CancelledAt: now.UTC(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish release event", "error", err, "subject", subject)
	}
	return released, nil
}
