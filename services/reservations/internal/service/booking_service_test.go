package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/events"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var friday = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

func TestInitiateNewContactThenDuplicatePending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.bookings.Initiate(ctx, request("ada@example.com", "a1"))
	require.NoError(t, err)
	require.NotNil(t, out.Pending)
	assert.Nil(t, out.Booking)
	assert.True(t, out.Pending.RequiresOTP)
	assert.NotEmpty(t, out.Pending.TempID)
	assert.NotEmpty(t, out.Pending.ReservationToken)
	assert.Equal(t, h.clock.Now().Add(10*time.Minute), out.Pending.ExpiresAt)

	require.Len(t, h.mail.sent, 1)
	assert.Equal(t, "ada@example.com", h.mail.sent[0].To)
	assert.Contains(t, h.mail.sent[0].HTML, h.codes.code("ada@example.com"))

	_, err = h.bookings.Initiate(ctx, request("ada@example.com", "A2"))
	assert.True(t, domain.HasReason(err, domain.ReasonPendingBookingExists), "got %v", err)
}

func TestVerifyCompletesBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, "ada@example.com", "A1")
	assert.Equal(t, domain.StatusAttending, b.Status)
	assert.Equal(t, []string{"A1"}, b.Seats.Labels)
	assert.Equal(t, []int{1}, b.Seats.Numbers)
	assert.Len(t, b.TicketID, 8)
	assert.Equal(t, "https://tickets.example.com/verify/"+b.TicketID, b.QRPayload)
	assert.Contains(t, b.CalendarLink, "calendar.google.com")

	a, err := h.bookings.Availability(ctx, "2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, 99, a.AvailableSeats)
	assert.Equal(t, []int{1}, a.BookedSeatNumbers)
	assert.False(t, a.AllSeats[0].IsAvailable)

	ev, err := fakeEventRepo{h.store}.GetByDate(ctx, friday)
	require.NoError(t, err)
	assert.Equal(t, 99, ev.AvailableSeats)

	assert.Empty(t, h.store.pending)
	assert.Empty(t, h.otpRepo.challenges)
	assert.Contains(t, h.bus.subjects(), events.BookingConfirmed)
	assert.Contains(t, h.bus.subjects(), events.NotifySend)
}

func TestReturningContactBooksDirectly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.book(t, "ada@example.com", "A1")

	req := request("ada@example.com", "B1")
	req.EventDate = "2026-10-19"
	out, err := h.bookings.Initiate(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, out.Booking)
	assert.Nil(t, out.Pending)
	assert.Equal(t, []string{"B1"}, out.Booking.Seats.Labels)

	_, err = h.bookings.Initiate(ctx, request("ada@example.com", "C1"))
	assert.True(t, domain.HasReason(err, domain.ReasonDuplicateBooking), "got %v", err)
}

func TestInitiateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.BookingRequest)
		reason domain.Reason
	}{
		{"saturday", func(r *domain.BookingRequest) { r.EventDate = "2026-10-17" }, domain.ReasonInvalidEventDate},
		{"past date", func(r *domain.BookingRequest) { r.EventDate = "2026-10-12" }, domain.ReasonInvalidEventDate},
		{"bad date", func(r *domain.BookingRequest) { r.EventDate = "16/10/2026" }, domain.ReasonInvalidInput},
		{"too many seats", func(r *domain.BookingRequest) { r.SeatLabels = []string{"A1", "A2", "A3"} }, domain.ReasonTooManySeats},
		{"unknown seat", func(r *domain.BookingRequest) { r.SeatLabels = []string{"Z9"} }, domain.ReasonInvalidSeatSelection},
		{"repeated seat", func(r *domain.BookingRequest) { r.SeatLabels = []string{"A1", "a1"} }, domain.ReasonInvalidSeatSelection},
		{"terms", func(r *domain.BookingRequest) { r.AgreeToTerms = false }, domain.ReasonInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := request("ada@example.com", "A1")
			tt.mutate(&req)
			_, err := h.bookings.Initiate(context.Background(), req)
			assert.True(t, domain.HasReason(err, tt.reason), "got %v", err)
			assert.Empty(t, h.store.pending)
		})
	}
}

func TestInitiateClosedWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	closed := h.clock.Now().Add(-time.Hour)
	_, err := h.settings.Update(ctx, domain.SettingsPatch{
		ReservationOpenDate:  ptr(closed.Add(-48 * time.Hour)),
		ReservationCloseDate: ptr(closed),
	})
	require.NoError(t, err)

	_, err = h.bookings.Initiate(ctx, request("ada@example.com", "A1"))
	assert.True(t, domain.HasReason(err, domain.ReasonReservationsClosed), "got %v", err)
}

func TestInitiateSeatHeldByPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.bookings.Initiate(ctx, request("ada@example.com", "B3"))
	require.NoError(t, err)

	_, err = h.bookings.Initiate(ctx, request("bola@example.com", "B3", "B4"))
	rej, ok := domain.AsRejection(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, domain.ReasonSeatsUnavailable, rej.Reason)
	assert.Equal(t, []string{"B3"}, rej.Seats)
}

func TestExpiredHoldFreesSeat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.bookings.Initiate(ctx, request("ada@example.com", "B3"))
	require.NoError(t, err)

	before, err := h.availability.Conflicts(ctx, friday, []int{13}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"B3"}, before)

	h.clock.Set(h.clock.Now().Add(11 * time.Minute))
	after, err := h.availability.Conflicts(ctx, friday, []int{13}, true)
	require.NoError(t, err)
	assert.Empty(t, after)

	_, err = h.bookings.Initiate(ctx, request("bola@example.com", "B3"))
	assert.NoError(t, err)
}

func TestVerifyMismatchBound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.bookings.Initiate(ctx, request("ada@example.com", "A1"))
	require.NoError(t, err)
	good := h.codes.code("ada@example.com")
	wrong := "0000"

	verify := func(code string) error {
		_, err := h.bookings.VerifyAndComplete(ctx, domain.VerifyRequest{
			Email:            "ada@example.com",
			OTP:              code,
			TempID:           out.Pending.TempID,
			ReservationToken: out.Pending.ReservationToken,
		})
		return err
	}

	for i, remaining := range []string{"2", "1", "0"} {
		err := verify(wrong)
		rej, ok := domain.AsRejection(err)
		require.True(t, ok, "attempt %d: %v", i+1, err)
		assert.Equal(t, domain.ReasonOTPMismatch, rej.Reason)
		assert.Contains(t, rej.Message, remaining+" attempts remaining")
	}

	err = verify(good)
	assert.True(t, domain.HasReason(err, domain.ReasonOTPExhausted), "got %v", err)
	assert.Empty(t, h.store.pending)
	assert.Empty(t, h.store.bookings)
}

func TestVerifyExpiredCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.bookings.Initiate(ctx, request("ada@example.com", "A1"))
	require.NoError(t, err)
	h.clock.Set(h.clock.Now().Add(11 * time.Minute))

	_, err = h.bookings.VerifyAndComplete(ctx, domain.VerifyRequest{
		Email:            "ada@example.com",
		OTP:              h.codes.code("ada@example.com"),
		TempID:           out.Pending.TempID,
		ReservationToken: out.Pending.ReservationToken,
	})
	assert.True(t, domain.HasReason(err, domain.ReasonOTPExpired), "got %v", err)
	assert.Empty(t, h.store.pending)
}

func TestVerifyRejectsForeignToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.bookings.Initiate(ctx, request("ada@example.com", "A1"))
	require.NoError(t, err)

	_, err = h.bookings.VerifyAndComplete(ctx, domain.VerifyRequest{
		Email:            "ada@example.com",
		OTP:              h.codes.code("ada@example.com"),
		TempID:           out.Pending.TempID,
		ReservationToken: "deadbeef",
	})
	assert.True(t, domain.HasReason(err, domain.ReasonInvalidToken), "got %v", err)
	assert.Empty(t, h.store.bookings)

	// the code was spent by the attempt above
	_, err = h.bookings.VerifyAndComplete(ctx, domain.VerifyRequest{
		Email:            "ada@example.com",
		OTP:              h.codes.code("ada@example.com"),
		TempID:           out.Pending.TempID,
		ReservationToken: out.Pending.ReservationToken,
	})
	assert.True(t, domain.HasReason(err, domain.ReasonOTPNotFound), "got %v", err)
}

func TestVerifyUnknownSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.bookings.VerifyAndComplete(context.Background(), domain.VerifyRequest{
		Email:  "ada@example.com",
		OTP:    "1234",
		TempID: "not-a-uuid",
	})
	assert.True(t, domain.HasReason(err, domain.ReasonOTPNotFound), "got %v", err)
}

func TestConcurrentCompletionForOneSeat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Both holds are taken before either completes, as if the earlier hold
	// had expired between the two initiations.
	first, err := h.bookings.Initiate(ctx, request("ada@example.com", "B3"))
	require.NoError(t, err)
	h.store.mu.Lock()
	h.store.pending["ada@example.com"].Seats = domain.SeatSelection{}
	h.store.mu.Unlock()
	second, err := h.bookings.Initiate(ctx, request("bola@example.com", "B3"))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		reasons []domain.Reason
	)
	for email, out := range map[string]*InitiateOutcome{"ada@example.com": first, "bola@example.com": second} {
		wg.Add(1)
		go func(email string, out *InitiateOutcome) {
			defer wg.Done()
			_, err := h.bookings.VerifyAndComplete(ctx, domain.VerifyRequest{
				Email:            email,
				OTP:              h.codes.code(email),
				TempID:           out.Pending.TempID,
				ReservationToken: out.Pending.ReservationToken,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			if rej, ok := domain.AsRejection(err); assert.True(t, ok, "unexpected fault %v", err) {
				reasons = append(reasons, rej.Reason)
			}
		}(email, out)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	require.Len(t, reasons, 1)
	assert.Equal(t, domain.ReasonSeatsNoLongerAvailable, reasons[0])
	assert.Len(t, h.store.seats, 1)

	ev, err := fakeEventRepo{h.store}.GetByDate(ctx, friday)
	require.NoError(t, err)
	assert.Equal(t, 99, ev.AvailableSeats)
}

func TestResendOTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.bookings.Initiate(ctx, request("ada@example.com", "A1"))
	require.NoError(t, err)

	h.clock.Set(h.clock.Now().Add(8 * time.Minute))
	res, err := h.bookings.ResendOTP(ctx, " ADA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, out.Pending.TempID, res.TempID)
	assert.Equal(t, h.clock.Now().Add(10*time.Minute), res.ExpiresAt)
	require.Len(t, h.mail.sent, 2)

	// the hold outlives its original expiry
	h.clock.Set(h.clock.Now().Add(5 * time.Minute))
	b, err := h.bookings.VerifyAndComplete(ctx, domain.VerifyRequest{
		Email:            "ada@example.com",
		OTP:              h.codes.code("ada@example.com"),
		TempID:           out.Pending.TempID,
		ReservationToken: out.Pending.ReservationToken,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, b.Seats.Labels)
}

func TestResendOTPWithoutPending(t *testing.T) {
	h := newHarness(t)
	_, err := h.bookings.ResendOTP(context.Background(), "nobody@example.com")
	rej, ok := domain.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonNotFound, rej.Reason)
	assert.Contains(t, rej.Message, "Kindly book again")
}

func TestVerificationEmailFailure(t *testing.T) {
	h := newHarness(t)
	h.mail.err = assert.AnError

	_, err := h.bookings.Initiate(context.Background(), request("ada@example.com", "A1"))
	assert.True(t, domain.HasReason(err, domain.ReasonNotificationFailure), "got %v", err)
	assert.Len(t, h.store.pending, 1)
}

func TestCheckIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.book(t, "ada@example.com", "A1")

	checked, err := h.bookings.CheckIn(ctx, " "+b.TicketID+" ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAttended, checked.Status)
	assert.NotNil(t, checked.CheckedInAt)

	_, err = h.bookings.CheckIn(ctx, b.TicketID)
	rej, ok := domain.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonAlreadyCheckedIn, rej.Reason)
	assert.Equal(t, "Ticket already used", rej.Message)

	_, err = h.bookings.CheckIn(ctx, "NOPE1234")
	assert.True(t, domain.HasReason(err, domain.ReasonNotFound))
}

func TestAssignSeats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.book(t, "ada@example.com", "A1", "A2")
	h.book(t, "bola@example.com", "C1")

	_, err := h.bookings.AssignSeats(ctx, a.TicketID, []string{"C1", "C2"})
	rej, ok := domain.AsRejection(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, []string{"C1"}, rej.Seats)

	_, err = h.bookings.AssignSeats(ctx, a.TicketID, []string{"D1"})
	assert.True(t, domain.HasReason(err, domain.ReasonInvalidInput))

	moved, err := h.bookings.AssignSeats(ctx, a.TicketID, []string{"A2", "b1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A2", "B1"}, moved.Seats.Labels)

	ev, err := fakeEventRepo{h.store}.GetByDate(ctx, friday)
	require.NoError(t, err)
	assert.Equal(t, 97, ev.AvailableSeats)
	assert.Contains(t, h.bus.subjects(), events.BookingSeatMoved)
}

func TestListAndStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.book(t, "ada@example.com", "A1")
	h.book(t, "bola@example.com", "A2")

	list, meta, err := h.bookings.List(ctx, domain.BookingFilter{Search: "bola", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bola@example.com", list[0].Contact.Email)
	assert.Equal(t, 1, meta.Total)

	empty, _, err := h.bookings.List(ctx, domain.BookingFilter{Search: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, empty)

	stats, err := h.bookings.RegistrationStats(ctx, "2026-10-16")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, "2026-10-16", stats.EventDate)
}

func ptr[T any](v T) *T { return &v }

func TestCompleteRetriesTicketCollision(t *testing.T) {
	h := newHarness(t)
	first := h.book(t, "ada@example.com", "A1")

	bs := h.bookings.(*bookingService)
	ids := []string{first.TicketID, first.TicketID, "FRESH001"}
	bs.newTicketID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	b := h.book(t, "bola@example.com", "A2")
	assert.Equal(t, "FRESH001", b.TicketID)
	assert.Equal(t, "https://tickets.example.com/verify/FRESH001", b.QRPayload)
}

func TestCompleteGivesUpAfterRepeatedCollisions(t *testing.T) {
	h := newHarness(t)
	first := h.book(t, "ada@example.com", "A1")

	bs := h.bookings.(*bookingService)
	calls := 0
	bs.newTicketID = func() string {
		calls++
		return first.TicketID
	}

	_, err := bs.complete(context.Background(), request("bola@example.com", "A2"), friday, "tok", 1)
	require.Error(t, err)
	_, isRejection := domain.AsRejection(err)
	assert.False(t, isRejection)
	assert.Equal(t, ticketAttempts, calls)
	assert.Equal(t, 99, available(t, h))
}

func TestCompleteRejectsSecondLiveBookingForContact(t *testing.T) {
	h := newHarness(t)
	h.book(t, "ada@example.com", "A1")

	// skips the initiate-time lookup, as a request racing the first one would
	_, err := h.bookings.(*bookingService).complete(context.Background(),
		request("ada@example.com", "A5"), friday, "tok", 1)
	assert.True(t, domain.HasReason(err, domain.ReasonDuplicateBooking), "got %v", err)
	assert.Equal(t, 99, available(t, h))
}

func TestVerifyRejectsDeactivatedEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out, err := h.bookings.Initiate(ctx, request("ada@example.com", "A1"))
	require.NoError(t, err)

	ev, err := fakeEventRepo{h.store}.GetByDate(ctx, friday)
	require.NoError(t, err)
	require.NoError(t, h.events.Deactivate(ctx, ev.ID))

	_, err = h.bookings.VerifyAndComplete(ctx, domain.VerifyRequest{
		Email:            "ada@example.com",
		OTP:              h.codes.code("ada@example.com"),
		TempID:           out.Pending.TempID,
		ReservationToken: out.Pending.ReservationToken,
	})
	assert.True(t, domain.HasReason(err, domain.ReasonInvalidEventDate), "got %v", err)
	assert.Empty(t, h.store.bookings)
}

func TestInitiateCanonicalisesLabels(t *testing.T) {
	h := newHarness(t)
	b := h.book(t, "ada@example.com", "b03")
	assert.Equal(t, []string{"B3"}, b.Seats.Labels)
	assert.Equal(t, []int{13}, b.Seats.Numbers)
}
