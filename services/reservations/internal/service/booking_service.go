package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/config"
	"github.com/diagnosis/seat-reservations/pkg/events"
	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/repository"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/reservetoken"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/seatgrid"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/utils"
	"github.com/google/uuid"
)

// InitiateOutcome carries exactly one of Pending (a code was emailed) or
// Booking (a returning contact was booked straight away).
type InitiateOutcome struct {
	Pending *domain.InitiateResult
	Booking *domain.Booking
}

type BookingService interface {
	Initiate(ctx context.Context, req domain.BookingRequest) (*InitiateOutcome, error)
	VerifyAndComplete(ctx context.Context, req domain.VerifyRequest) (*domain.Booking, error)
	ResendOTP(ctx context.Context, email string) (*domain.ResendResult, error)
	Availability(ctx context.Context, date string) (*domain.Availability, error)
	GetByTicketID(ctx context.Context, ticketID string) (*domain.Booking, error)
	CheckIn(ctx context.Context, ticketID string) (*domain.Booking, error)
	AssignSeats(ctx context.Context, ticketID string, labels []string) (*domain.Booking, error)
	ResendConfirmation(ctx context.Context, ticketID string) (*domain.Booking, error)
	List(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, domain.PageMeta, error)
	RegistrationStats(ctx context.Context, date string) (*domain.RegistrationStats, error)
}

type bookingService struct {
	events       repository.EventRepository
	bookings     repository.BookingRepository
	contacts     repository.ContactRepository
	pending      repository.PendingRepository
	otp          OTPService
	availability AvailabilityService
	settings     SettingsService
	notifier     NotificationService
	signer       *reservetoken.Signer
	links        *LinkBuilder
	bus          events.Publisher
	pendingTTL   time.Duration
	now          func() time.Time
	newTicketID  func() string
}

// ticketAttempts bounds the retries after a ticket id collision.
const ticketAttempts = 3

func newTicketID() string {
	return strings.ToUpper(strings.SplitN(uuid.NewString(), "-", 2)[0])
}

func NewBookingService(
	eventRepo repository.EventRepository,
	bookingRepo repository.BookingRepository,
	contactRepo repository.ContactRepository,
	pendingRepo repository.PendingRepository,
	otp OTPService,
	availability AvailabilityService,
	settings SettingsService,
	notifier NotificationService,
	links *LinkBuilder,
	bus events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		events:       eventRepo,
		bookings:     bookingRepo,
		contacts:     contactRepo,
		pending:      pendingRepo,
		otp:          otp,
		availability: availability,
		settings:     settings,
		notifier:     notifier,
		signer:       reservetoken.New(cfg.Booking.ReservationSecret),
		links:        links,
		bus:          bus,
		pendingTTL:   cfg.Booking.PendingTTL,
		now:          time.Now,
		newTicketID:  newTicketID,
	}
}

func (s *bookingService) Initiate(ctx context.Context, req domain.BookingRequest) (*InitiateOutcome, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !settings.IsOpen(now) {
		return nil, domain.Reject(domain.ReasonReservationsClosed, "Reservations are currently closed")
	}

	day, err := domain.ParseDay(req.EventDate, s.links.Location())
	if err != nil {
		return nil, domain.Invalid("eventDate must be a valid date")
	}
	if day.Before(domain.DayOf(now, s.links.Location())) {
		return nil, domain.Reject(domain.ReasonInvalidEventDate, "Cannot book for past dates")
	}
	if !settings.IsWorkingDay(day) {
		return nil, domain.Reject(domain.ReasonInvalidEventDate, "Bookings are only allowed from Monday to Friday")
	}

	contact, err := s.contacts.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}
	if contact != nil {
		booked, err := s.bookings.ExistsForContact(ctx, req.Email, day)
		if err != nil {
			return nil, fmt.Errorf("check existing booking: %w", err)
		}
		if booked {
			return nil, domain.Reject(domain.ReasonDuplicateBooking, "You already have a booking for this date")
		}
	}
	held, err := s.pending.ExistsLiveForDate(ctx, req.Email, day, now)
	if err != nil {
		return nil, fmt.Errorf("check pending booking: %w", err)
	}
	if held {
		return nil, domain.Reject(domain.ReasonPendingBookingExists, "You already have a pending booking for this date")
	}

	if len(req.SeatLabels) > settings.MaxSeatsPerUser {
		return nil, domain.Reject(domain.ReasonTooManySeats,
			fmt.Sprintf("Maximum %d seats allowed per booking", settings.MaxSeatsPerUser))
	}

	event, err := s.events.EnsureForDate(ctx, day, settings.DefaultTotalSeats, settings.EventTime())
	if err != nil {
		return nil, fmt.Errorf("resolve event: %w", err)
	}
	if !event.IsActive {
		return nil, domain.Reject(domain.ReasonInvalidEventDate, "No session is scheduled for this date")
	}

	numbers, labels, err := seatgrid.ValidateSelection(req.SeatLabels, event.TotalSeats)
	if err != nil {
		return nil, domain.Reject(domain.ReasonInvalidSeatSelection, err.Error())
	}
	if event.AvailableSeats < len(numbers) {
		return nil, domain.Reject(domain.ReasonInsufficientSeats, "Not enough seats available")
	}

	conflicts, err := s.availability.Conflicts(ctx, day, numbers, true)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, domain.SeatConflict(domain.ReasonSeatsUnavailable, conflicts)
	}

	issuedMs := now.UnixMilli()
	token := s.signer.Sign(req.Email, day, issuedMs)
	req.SeatNumbers, req.SeatLabels = numbers, labels

	if contact != nil {
		b, err := s.complete(ctx, req, day, token, issuedMs)
		if err != nil {
			return nil, err
		}
		return &InitiateOutcome{Booking: b}, nil
	}

	tempID := uuid.NewString()
	code, _, err := s.otp.Issue(ctx, req.Email, tempID)
	if err != nil {
		return nil, err
	}
	p := &domain.PendingReservation{
		TempID:           tempID,
		Email:            req.Email,
		EventDate:        day,
		Seats:            domain.SeatSelection{Numbers: numbers, Labels: labels},
		Request:          req,
		ReservationToken: token,
		TokenIssuedMs:    issuedMs,
		ExpiresAt:        now.Add(s.pendingTTL),
	}
	if err := s.pending.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("store pending reservation: %w", err)
	}

	// The hold and code stay in place on failure so a resend can recover.
	if err := s.notifier.SendOTP(ctx, req.Email, req.Name, code, p.ExpiresAt); err != nil {
		logger.ErrorContext(ctx, "Failed to send verification email", "error", err, "email", req.Email, "temp_id", tempID)
		return nil, domain.Reject(domain.ReasonNotificationFailure, "Failed to send verification email. Please try again.")
	}

	logger.InfoContext(ctx, "Pending reservation created",
		"temp_id", tempID, "event_date", domain.DayKey(day), "seats", strings.Join(labels, ","))
	return &InitiateOutcome{Pending: &domain.InitiateResult{
		TempID:           tempID,
		ExpiresAt:        p.ExpiresAt,
		ReservationToken: token,
		RequiresOTP:      true,
	}}, nil
}

func (s *bookingService) VerifyAndComplete(ctx context.Context, req domain.VerifyRequest) (*domain.Booking, error) {
	email := utils.NormalizeEmail(req.Email)
	tempID := strings.TrimSpace(req.TempID)
	if _, err := uuid.Parse(tempID); err != nil || email == "" {
		return nil, domain.Reject(domain.ReasonOTPNotFound, "Invalid verification request")
	}

	if err := s.otp.Verify(ctx, email, tempID, strings.TrimSpace(req.OTP)); err != nil {
		if domain.HasReason(err, domain.ReasonOTPExpired) || domain.HasReason(err, domain.ReasonOTPExhausted) {
			if derr := s.pending.Delete(ctx, email, tempID); derr != nil {
				logger.ErrorContext(ctx, "Failed to delete pending reservation", "error", derr, "email", email, "temp_id", tempID)
			}
		}
		return nil, err
	}

	// A verified code is single use whatever happens next.
	defer s.discard(context.WithoutCancel(ctx), email, tempID)

	p, err := s.pending.GetLive(ctx, email, tempID, s.now())
	if err != nil {
		return nil, fmt.Errorf("load pending reservation: %w", err)
	}
	if p == nil {
		return nil, domain.Reject(domain.ReasonPendingExpired, "Booking session expired. Please start again.")
	}
	if !s.signer.Verify(req.ReservationToken, p.Email, p.EventDate, p.TokenIssuedMs) {
		return nil, domain.Reject(domain.ReasonInvalidToken, "Invalid reservation token")
	}

	return s.complete(ctx, p.Request, p.EventDate, p.ReservationToken, p.TokenIssuedMs)
}

func (s *bookingService) discard(ctx context.Context, email, tempID string) {
	if err := s.otp.Discard(ctx, email); err != nil {
		logger.ErrorContext(ctx, "Failed to delete verification code", "error", err, "email", email)
	}
	if err := s.pending.Delete(ctx, email, tempID); err != nil {
		logger.ErrorContext(ctx, "Failed to delete pending reservation", "error", err, "email", email, "temp_id", tempID)
	}
}

// complete turns a validated request into a ticket. Only confirmed bookings
// are checked here; the unique seat index settles any remaining race.
func (s *bookingService) complete(ctx context.Context, req domain.BookingRequest, day time.Time, token string, issuedMs int64) (*domain.Booking, error) {
	event, err := s.events.GetByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if event == nil {
		return nil, domain.Reject(domain.ReasonEventNotFound, "Event not found")
	}
	if !event.IsActive {
		return nil, domain.Reject(domain.ReasonInvalidEventDate, "No session is scheduled for this date")
	}

	numbers, labels, err := seatgrid.ValidateSelection(req.SeatLabels, event.TotalSeats)
	if err != nil {
		return nil, domain.Reject(domain.ReasonInvalidSeatSelection, err.Error())
	}
	conflicts, err := s.availability.Conflicts(ctx, day, numbers, false)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, domain.SeatConflict(domain.ReasonSeatsNoLongerAvailable, conflicts)
	}

	seats := domain.SeatSelection{Numbers: numbers, Labels: labels}
	contact := domain.Contact{
		Email:    req.Email,
		Name:     req.Name,
		Phone:    req.Phone,
		Gender:   req.Gender,
		AgeRange: req.AgeRange,
		About:    req.About,
	}

	var b *domain.Booking
	for attempt := 1; ; attempt++ {
		ticketID := s.newTicketID()
		b, err = s.bookings.Create(logger.WithTicket(ctx, ticketID), domain.NewBooking{
			TicketID:         ticketID,
			Contact:          contact,
			EventID:          event.ID,
			EventDate:        day,
			Seats:            seats,
			QRPayload:        s.links.VerificationURL(ticketID),
			CalendarLink:     s.links.CalendarLink(day, labels, ticketID),
			ReservationToken: token,
			TokenIssuedMs:    issuedMs,
		})
		if !errors.Is(err, repository.ErrDuplicateTicket) || attempt == ticketAttempts {
			break
		}
		logger.WarnContext(ctx, "Ticket id collision, regenerating", "ticket_id", ticketID, "attempt", attempt)
	}
	switch {
	case errors.Is(err, repository.ErrSeatTaken):
		lost, cerr := s.availability.Conflicts(ctx, day, numbers, false)
		if cerr != nil || len(lost) == 0 {
			lost = labels
		}
		return nil, domain.SeatConflict(domain.ReasonSeatsNoLongerAvailable, lost)
	case errors.Is(err, repository.ErrInsufficientSeats):
		return nil, domain.Reject(domain.ReasonInsufficientSeats, "Not enough seats available")
	case errors.Is(err, repository.ErrDuplicateBooking):
		return nil, domain.Reject(domain.ReasonDuplicateBooking, "You already have a booking for this date")
	case err != nil:
		logger.ErrorContext(ctx, "Failed to create booking", "error", err, "email", req.Email, "event_date", domain.DayKey(day))
		return nil, fmt.Errorf("create booking: %w", err)
	}

	ctx = logger.WithTicket(ctx, b.TicketID)
	s.availability.Invalidate(ctx, day)
	logger.InfoContext(ctx, "Booking completed", "event_date", domain.DayKey(day), "seats", strings.Join(labels, ","))

	if err := s.bus.Publish(ctx, events.BookingConfirmed, events.BookingConfirmedEvent{
		TicketID:    b.TicketID,
		EventID:     b.EventID,
		EventDate:   domain.DayKey(b.EventDate),
		Email:       req.Email,
		SeatNumbers: numbers,
		SeatLabels:  labels,
		ConfirmedAt: b.CreatedAt,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish booking confirmed event", "error", err)
	}
	s.notifier.BookingConfirmed(ctx, b)
	return b, nil
}

func (s *bookingService) ResendOTP(ctx context.Context, email string) (*domain.ResendResult, error) {
	email = utils.NormalizeEmail(email)
	if !utils.IsValidEmail(email) {
		return nil, domain.Invalid("email must be a valid email")
	}

	now := s.now()
	notFound := domain.Reject(domain.ReasonNotFound,
		"No pending booking found for this email or session expired. Kindly book again.")
	p, err := s.pending.GetLiveByEmail(ctx, email, now)
	if err != nil {
		return nil, fmt.Errorf("load pending reservation: %w", err)
	}
	if p == nil {
		return nil, notFound
	}

	code, _, err := s.otp.Issue(ctx, email, p.TempID)
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(s.pendingTTL)
	extended, err := s.pending.Extend(ctx, email, p.TempID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("extend pending reservation: %w", err)
	}
	if !extended {
		return nil, notFound
	}

	if err := s.notifier.SendOTP(ctx, email, p.Request.Name, code, expiresAt); err != nil {
		logger.ErrorContext(ctx, "Failed to resend verification email", "error", err, "email", email)
		return nil, domain.Reject(domain.ReasonNotificationFailure, "Failed to send verification email. Please try again.")
	}
	return &domain.ResendResult{TempID: p.TempID, ExpiresAt: expiresAt}, nil
}

func (s *bookingService) Availability(ctx context.Context, date string) (*domain.Availability, error) {
	day, err := domain.ParseDay(date, s.links.Location())
	if err != nil {
		return nil, domain.Invalid("Invalid date")
	}
	return s.availability.Availability(ctx, day)
}

func normalizeTicket(ticketID string) string {
	return strings.ToUpper(strings.TrimSpace(ticketID))
}

func (s *bookingService) GetByTicketID(ctx context.Context, ticketID string) (*domain.Booking, error) {
	b, err := s.bookings.GetByTicketID(ctx, normalizeTicket(ticketID))
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if b == nil {
		return nil, &domain.Rejection{Reason: domain.ReasonNotFound, Message: "Booking not found", Detail: "Invalid ticket ID"}
	}
	return b, nil
}

func (s *bookingService) CheckIn(ctx context.Context, ticketID string) (*domain.Booking, error) {
	ticketID = normalizeTicket(ticketID)
	now := s.now()
	b, err := s.bookings.CheckIn(ctx, ticketID, now)
	if err != nil {
		return nil, fmt.Errorf("check in: %w", err)
	}
	if b == nil {
		current, err := s.bookings.GetByTicketID(ctx, ticketID)
		if err != nil {
			return nil, fmt.Errorf("load booking: %w", err)
		}
		switch {
		case current == nil:
			return nil, domain.Reject(domain.ReasonNotFound, "Booking not found or already processed")
		case current.Status == domain.StatusAttended:
			return nil, domain.Reject(domain.ReasonAlreadyCheckedIn, "Ticket already used")
		default:
			return nil, domain.Reject(domain.ReasonNotFound, "Booking has been cancelled")
		}
	}

	if err := s.bus.Publish(ctx, events.BookingCheckedIn, events.BookingCheckedInEvent{
		TicketID:    b.TicketID,
		EventDate:   domain.DayKey(b.EventDate),
		CheckedInAt: now.UTC(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish checked in event", "error", err, "ticket_id", b.TicketID)
	}
	return b, nil
}

func (s *bookingService) AssignSeats(ctx context.Context, ticketID string, labels []string) (*domain.Booking, error) {
	ticketID = normalizeTicket(ticketID)
	current, err := s.bookings.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if current == nil || !current.Status.HoldsSeats() {
		return nil, domain.Reject(domain.ReasonNotFound, "Booking not found or already processed")
	}
	if len(labels) != current.Seats.Count() {
		return nil, domain.Invalid(fmt.Sprintf("seatLabels must contain %d seats", current.Seats.Count()))
	}

	event, err := s.events.GetByID(ctx, current.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if event == nil {
		return nil, domain.Reject(domain.ReasonEventNotFound, "Event not found")
	}

	for i, l := range labels {
		labels[i] = strings.ToUpper(strings.TrimSpace(l))
	}
	numbers, canon, err := seatgrid.ValidateSelection(labels, event.TotalSeats)
	if err != nil {
		return nil, domain.Reject(domain.ReasonInvalidSeatSelection, err.Error())
	}

	conflicts, err := s.availability.Conflicts(ctx, current.EventDate, numbers, false)
	if err != nil {
		return nil, err
	}
	own := make(map[string]bool, len(current.Seats.Labels))
	for _, l := range current.Seats.Labels {
		own[l] = true
	}
	var foreign []string
	for _, l := range conflicts {
		if !own[l] {
			foreign = append(foreign, l)
		}
	}
	if len(foreign) > 0 {
		return nil, domain.SeatConflict(domain.ReasonSeatsUnavailable, foreign)
	}

	b, err := s.bookings.ReassignSeats(ctx, ticketID, domain.SeatSelection{Numbers: numbers, Labels: canon})
	if errors.Is(err, repository.ErrSeatTaken) {
		return nil, domain.SeatConflict(domain.ReasonSeatsUnavailable, canon)
	}
	if err != nil {
		return nil, fmt.Errorf("reassign seats: %w", err)
	}
	if b == nil {
		return nil, domain.Reject(domain.ReasonNotFound, "Booking not found or already processed")
	}
	b.Contact = current.Contact

	s.availability.Invalidate(ctx, b.EventDate)
	if err := s.bus.Publish(ctx, events.BookingSeatMoved, events.SeatReassignedEvent{
		TicketID:   b.TicketID,
		EventDate:  domain.DayKey(b.EventDate),
		FromLabels: current.Seats.Labels,
		ToLabels:   canon,
		MovedAt:    s.now().UTC(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish seat reassigned event", "error", err, "ticket_id", b.TicketID)
	}
	return b, nil
}

func (s *bookingService) ResendConfirmation(ctx context.Context, ticketID string) (*domain.Booking, error) {
	b, err := s.GetByTicketID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !b.Status.HoldsSeats() {
		return nil, domain.Reject(domain.ReasonNotFound, "Booking has been cancelled")
	}
	s.notifier.BookingConfirmed(ctx, b)
	return b, nil
}

func (s *bookingService) List(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, domain.PageMeta, error) {
	f.Normalize()
	bookings, total, err := s.bookings.List(ctx, f)
	if err != nil {
		return nil, domain.PageMeta{}, fmt.Errorf("list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	return bookings, domain.NewPageMeta(f.Page, f.Limit, total), nil
}

func (s *bookingService) RegistrationStats(ctx context.Context, date string) (*domain.RegistrationStats, error) {
	day, err := domain.ParseDay(date, s.links.Location())
	if err != nil {
		return nil, domain.Invalid("Invalid date")
	}
	stats, err := s.bookings.RegistrationStats(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("registration stats: %w", err)
	}
	return stats, nil
}
