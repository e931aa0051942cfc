package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/config"
	"github.com/diagnosis/seat-reservations/pkg/mailer"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// memStore backs every fake repository. One mutex guards it all so a fake
// booking insert behaves like the single transaction it replaces.
type memStore struct {
	mu sync.Mutex

	events      map[int64]*domain.Event
	nextEventID int64

	contacts      map[string]*domain.Contact
	nextContactID int64

	bookings      map[string]*domain.Booking
	nextBookingID int64
	seats         map[seatKey]string

	pending  map[string]*domain.PendingReservation
	settings *domain.SystemSettings

	admins      map[int64]*domain.Admin
	nextAdminID int64
}

type seatKey struct {
	eventID int64
	seat    int
}

func newMemStore() *memStore {
	return &memStore{
		events:   map[int64]*domain.Event{},
		contacts: map[string]*domain.Contact{},
		bookings: map[string]*domain.Booking{},
		seats:    map[seatKey]string{},
		pending:  map[string]*domain.PendingReservation{},
		admins:   map[int64]*domain.Admin{},
	}
}

func (m *memStore) eventOn(day time.Time) *domain.Event {
	for _, e := range m.events {
		if e.Date.Equal(day) {
			return e
		}
	}
	return nil
}

func copyBooking(b *domain.Booking) *domain.Booking {
	c := *b
	c.Seats = domain.SeatSelection{
		Numbers: append([]int(nil), b.Seats.Numbers...),
		Labels:  append([]string(nil), b.Seats.Labels...),
	}
	if b.Contact != nil {
		contact := *b.Contact
		c.Contact = &contact
	}
	return &c
}

// events

type fakeEventRepo struct{ *memStore }

func (r fakeEventRepo) GetByID(_ context.Context, id int64) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[id]; ok {
		c := *e
		return &c, nil
	}
	return nil, nil
}

func (r fakeEventRepo) GetByDate(_ context.Context, day time.Time) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.eventOn(day); e != nil {
		c := *e
		return &c, nil
	}
	return nil, nil
}

func (r fakeEventRepo) EnsureForDate(_ context.Context, day time.Time, totalSeats int, eventTime string) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.eventOn(day); e != nil {
		c := *e
		return &c, nil
	}
	return r.insert(day, domain.EventInput{Time: eventTime, TotalSeats: totalSeats}), nil
}

func (r fakeEventRepo) insert(day time.Time, in domain.EventInput) *domain.Event {
	r.nextEventID++
	e := &domain.Event{
		ID:             r.nextEventID,
		Date:           day,
		Time:           in.Time,
		TotalSeats:     in.TotalSeats,
		AvailableSeats: in.TotalSeats,
		IsActive:       true,
		Location:       in.Location,
		SessionName:    in.SessionName,
	}
	r.events[e.ID] = e
	c := *e
	return &c
}

func (r fakeEventRepo) Create(_ context.Context, day time.Time, in domain.EventInput) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.eventOn(day) != nil {
		return nil, repository.ErrDuplicateEvent
	}
	return r.insert(day, in), nil
}

func (r fakeEventRepo) Update(_ context.Context, id int64, patch domain.EventPatch) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, nil
	}
	if patch.TotalSeats != nil {
		avail := e.AvailableSeats + *patch.TotalSeats - e.TotalSeats
		if avail < 0 {
			return nil, repository.ErrCapacityBelowBooked
		}
		e.AvailableSeats, e.TotalSeats = avail, *patch.TotalSeats
	}
	if patch.Time != nil {
		e.Time = *patch.Time
	}
	if patch.IsActive != nil {
		e.IsActive = *patch.IsActive
	}
	if patch.Location != nil {
		e.Location = *patch.Location
	}
	if patch.SessionName != nil {
		e.SessionName = *patch.SessionName
	}
	c := *e
	return &c, nil
}

func (r fakeEventRepo) Deactivate(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return false, nil
	}
	e.IsActive = false
	return true, nil
}

func (r fakeEventRepo) sorted() []domain.Event {
	out := make([]domain.Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (r fakeEventRepo) List(_ context.Context, limit, offset int) ([]domain.Event, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted()
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r fakeEventRepo) ListFrom(_ context.Context, from time.Time, limit int) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.sorted() {
		if !e.Date.Before(from) && e.IsActive && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

// bookings

type fakeBookingRepo struct{ *memStore }

func (r fakeBookingRepo) Create(_ context.Context, nb domain.NewBooking) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[nb.EventID]
	if !ok {
		return nil, repository.ErrInsufficientSeats
	}
	if _, dup := r.bookings[nb.TicketID]; dup {
		return nil, repository.ErrDuplicateTicket
	}
	for _, b := range r.bookings {
		if b.Contact != nil && b.Contact.Email == nb.Contact.Email && b.EventDate.Equal(nb.EventDate) && b.Status.HoldsSeats() {
			return nil, repository.ErrDuplicateBooking
		}
	}
	for _, n := range nb.Seats.Numbers {
		if _, taken := r.seats[seatKey{nb.EventID, n}]; taken {
			return nil, repository.ErrSeatTaken
		}
	}
	if e.AvailableSeats < nb.Seats.Count() {
		return nil, repository.ErrInsufficientSeats
	}

	contact, ok := r.contacts[nb.Contact.Email]
	if !ok {
		r.nextContactID++
		contact = &domain.Contact{ID: r.nextContactID, Email: nb.Contact.Email}
		r.contacts[nb.Contact.Email] = contact
	}
	contact.Name, contact.Phone = nb.Contact.Name, nb.Contact.Phone
	contact.Gender, contact.AgeRange, contact.About = nb.Contact.Gender, nb.Contact.AgeRange, nb.Contact.About

	for _, n := range nb.Seats.Numbers {
		r.seats[seatKey{nb.EventID, n}] = nb.TicketID
	}
	e.AvailableSeats -= nb.Seats.Count()

	r.nextBookingID++
	c := *contact
	b := &domain.Booking{
		ID:               r.nextBookingID,
		TicketID:         nb.TicketID,
		ContactID:        contact.ID,
		EventID:          nb.EventID,
		EventDate:        nb.EventDate,
		Seats:            nb.Seats,
		Status:           domain.StatusAttending,
		QRPayload:        nb.QRPayload,
		CalendarLink:     nb.CalendarLink,
		ReservationToken: nb.ReservationToken,
		TokenIssuedMs:    nb.TokenIssuedMs,
		Contact:          &c,
	}
	r.bookings[b.TicketID] = b
	return copyBooking(b), nil
}

func (r fakeBookingRepo) GetByTicketID(_ context.Context, ticketID string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bookings[ticketID]; ok {
		return copyBooking(b), nil
	}
	return nil, nil
}

func (r fakeBookingRepo) ExistsForContact(_ context.Context, email string, day time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.Contact.Email == email && b.EventDate.Equal(day) && b.Status.HoldsSeats() {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeBookingRepo) TakenSeats(_ context.Context, day time.Time) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for k := range r.seats {
		if r.events[k.eventID].Date.Equal(day) {
			out = append(out, k.seat)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (r fakeBookingRepo) Release(_ context.Context, ticketID string, to domain.BookingStatus, from []domain.BookingStatus, at time.Time) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[ticketID]
	if !ok {
		return nil, nil
	}
	matched := false
	for _, s := range from {
		matched = matched || b.Status == s
	}
	if !matched {
		return nil, nil
	}
	b.Status = to
	b.CancelledAt = &at
	for _, n := range b.Seats.Numbers {
		delete(r.seats, seatKey{b.EventID, n})
	}
	r.events[b.EventID].AvailableSeats += b.Seats.Count()
	return copyBooking(b), nil
}

func (r fakeBookingRepo) CheckIn(_ context.Context, ticketID string, at time.Time) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[ticketID]
	if !ok || b.Status != domain.StatusAttending {
		return nil, nil
	}
	b.Status = domain.StatusAttended
	b.CheckedInAt = &at
	return copyBooking(b), nil
}

func (r fakeBookingRepo) ReassignSeats(_ context.Context, ticketID string, seats domain.SeatSelection) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[ticketID]
	if !ok || !b.Status.HoldsSeats() {
		return nil, nil
	}
	for _, n := range seats.Numbers {
		if owner, taken := r.seats[seatKey{b.EventID, n}]; taken && owner != ticketID {
			return nil, repository.ErrSeatTaken
		}
	}
	for _, n := range b.Seats.Numbers {
		delete(r.seats, seatKey{b.EventID, n})
	}
	for _, n := range seats.Numbers {
		r.seats[seatKey{b.EventID, n}] = ticketID
	}
	b.Seats = seats
	return copyBooking(b), nil
}

func (r fakeBookingRepo) List(_ context.Context, f domain.BookingFilter) ([]domain.Booking, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.Booking
	for _, b := range r.bookings {
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		if f.EventDate != nil && !b.EventDate.Equal(*f.EventDate) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(b.Contact.Name+" "+b.Contact.Email+" "+b.TicketID), strings.ToLower(f.Search)) {
			continue
		}
		all = append(all, *copyBooking(b))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if f.Offset() >= total {
		return nil, total, nil
	}
	end := f.Offset() + f.Limit
	if end > total {
		end = total
	}
	return all[f.Offset():end], total, nil
}

func (r fakeBookingRepo) CountsByEvent(_ context.Context, ids []int64) (map[int64]repository.EventCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[int64]repository.EventCounts{}
	for _, id := range ids {
		for _, b := range r.bookings {
			if b.EventID == id && b.Status.HoldsSeats() {
				c := out[id]
				c.Bookings++
				c.Seats += b.Seats.Count()
				out[id] = c
			}
		}
	}
	return out, nil
}

func (r fakeBookingRepo) RegistrationStats(_ context.Context, day time.Time) (*domain.RegistrationStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byStatus := map[string]int{}
	stats := &domain.RegistrationStats{EventDate: domain.DayKey(day)}
	for _, b := range r.bookings {
		if b.EventDate.Equal(day) {
			byStatus[string(b.Status)]++
			stats.Total++
		}
	}
	for k, v := range byStatus {
		stats.ByStatus = append(stats.ByStatus, domain.CountByKey{Key: k, Count: v})
	}
	return stats, nil
}

// contacts

type fakeContactRepo struct{ *memStore }

func (r fakeContactRepo) GetByEmail(_ context.Context, email string) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contacts[email]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

// pending reservations, one per email

type fakePendingRepo struct{ *memStore }

func (r fakePendingRepo) Upsert(_ context.Context, p *domain.PendingReservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.pending[p.Email] = &cp
	return nil
}

func (r fakePendingRepo) live(email string, now time.Time) *domain.PendingReservation {
	p, ok := r.pending[email]
	if !ok || !p.IsLive(now) {
		return nil
	}
	cp := *p
	return &cp
}

func (r fakePendingRepo) GetLiveByEmail(_ context.Context, email string, now time.Time) (*domain.PendingReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live(email, now), nil
}

func (r fakePendingRepo) GetLive(_ context.Context, email, tempID string, now time.Time) (*domain.PendingReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.live(email, now)
	if p == nil || p.TempID != tempID {
		return nil, nil
	}
	return p, nil
}

func (r fakePendingRepo) ExistsLiveForDate(_ context.Context, email string, day, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.live(email, now)
	return p != nil && p.EventDate.Equal(day), nil
}

func (r fakePendingRepo) HeldSeats(_ context.Context, day, now time.Time) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, p := range r.pending {
		if p.IsLive(now) && p.EventDate.Equal(day) {
			out = append(out, p.Seats.Numbers...)
		}
	}
	return out, nil
}

func (r fakePendingRepo) Extend(_ context.Context, email, tempID string, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[email]
	if !ok || p.TempID != tempID {
		return false, nil
	}
	p.ExpiresAt = expiresAt
	return true, nil
}

func (r fakePendingRepo) Delete(_ context.Context, email, tempID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pending[email]; ok && p.TempID == tempID {
		delete(r.pending, email)
	}
	return nil
}

func (r fakePendingRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for email, p := range r.pending {
		if !p.IsLive(now) {
			delete(r.pending, email)
			n++
		}
	}
	return n, nil
}

// settings

type fakeSettingsRepo struct{ *memStore }

func (r fakeSettingsRepo) Get(context.Context) (*domain.SystemSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		return nil, nil
	}
	cp := *r.settings
	return &cp, nil
}

func (r fakeSettingsRepo) Seed(_ context.Context, s domain.SystemSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settings == nil {
		r.settings = &s
	}
	return nil
}

func (r fakeSettingsRepo) Save(_ context.Context, s domain.SystemSettings) (*domain.SystemSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = &s
	cp := s
	return &cp, nil
}

// admins

type fakeAdminRepo struct{ *memStore }

func (r fakeAdminRepo) Create(_ context.Context, a *domain.Admin) (*domain.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextAdminID++
	cp := *a
	cp.ID = r.nextAdminID
	cp.IsActive = true
	r.admins[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r fakeAdminRepo) FindByUsername(_ context.Context, username string) (*domain.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.admins {
		if strings.EqualFold(a.Username, username) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeAdminRepo) FindByID(_ context.Context, id int64) (*domain.Admin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.admins[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (r fakeAdminRepo) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.admins), nil
}

func (r fakeAdminRepo) RecordFailure(_ context.Context, id int64, max int, lockout time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.admins[id]
	a.LoginAttempts++
	if a.LoginAttempts >= max {
		until := time.Now().Add(lockout)
		a.LockUntil = &until
	}
	return a.LoginAttempts, nil
}

func (r fakeAdminRepo) RecordLogin(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.admins[id]
	a.LoginAttempts, a.LockUntil, a.LastLogin = 0, nil, &at
	return nil
}

// redis-backed stores

type fakeOTPRepo struct {
	mu         sync.Mutex
	challenges map[string]*domain.OTPChallenge
}

func (r *fakeOTPRepo) Save(_ context.Context, c *domain.OTPChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.challenges == nil {
		r.challenges = map[string]*domain.OTPChallenge{}
	}
	cp := *c
	r.challenges[c.Email] = &cp
	return nil
}

func (r *fakeOTPRepo) Get(_ context.Context, email string) (*domain.OTPChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.challenges[email]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeOTPRepo) ReserveAttempt(_ context.Context, email, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[email]
	if !ok || c.SessionID != sessionID {
		return 0, repository.ErrChallengeNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

func (r *fakeOTPRepo) MarkVerified(_ context.Context, email, sessionID string, _ time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[email]
	if !ok || c.SessionID != sessionID {
		return false, repository.ErrChallengeNotFound
	}
	if c.Verified {
		return false, nil
	}
	c.Verified = true
	return true, nil
}

func (r *fakeOTPRepo) Delete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.challenges, email)
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*domain.Availability
	hits    int
}

func (c *fakeCache) Get(_ context.Context, day time.Time) (*domain.Availability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[domain.DayKey(day)]
	if ok {
		c.hits++
	}
	return a, nil
}

func (c *fakeCache) Set(_ context.Context, day time.Time, a *domain.Availability) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[string]*domain.Availability{}
	}
	c.entries[domain.DayKey(day)] = a
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, day time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, domain.DayKey(day))
	return nil
}

// transports

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return "msg-1", nil
}

type published struct {
	subject string
	data    interface{}
}

type fakeBus struct {
	mu  sync.Mutex
	out []published
}

func (b *fakeBus) Publish(_ context.Context, subject string, data interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.out = append(b.out, published{subject, data})
	return nil
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) subjects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.out))
	for i, p := range b.out {
		out[i] = p.subject
	}
	return out
}

// codeCatcher remembers the last plain code issued per email.
type codeCatcher struct {
	OTPService
	mu    sync.Mutex
	codes map[string]string
}

func (c *codeCatcher) Issue(ctx context.Context, email, sessionID string) (string, time.Time, error) {
	code, exp, err := c.OTPService.Issue(ctx, email, sessionID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codes == nil {
		c.codes = map[string]string{}
	}
	c.codes[email] = code
	return code, exp, err
}

func (c *codeCatcher) code(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[email]
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// harness wires real services over the fakes. The clock starts on
// Wednesday 2026-10-14 09:00 UTC.
type harness struct {
	store   *memStore
	otpRepo *fakeOTPRepo
	cache   *fakeCache
	mail    *fakeMailer
	bus     *fakeBus
	codes   *codeCatcher
	clock   *clock
	cfg     *config.Config

	settings     SettingsService
	availability AvailabilityService
	bookings     BookingService
	cancel       CancellationService
	events       EventService
	admins       AdminService
	sweeper      *Sweeper
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:        "jwt-secret",
			AdminTokenTTL:    time.Hour,
			MaxLoginAttempts: 5,
			LockoutDuration:  2 * time.Hour,
		},
		Booking: config.BookingConfig{
			ReservationSecret: "reservation-secret",
			OTPTTL:            10 * time.Minute,
			PendingTTL:        10 * time.Minute,
			OTPMaxAttempts:    3,
			SweepInterval:     time.Minute,
			PublicURL:         "https://tickets.example.com",
			Timezone:          "UTC",
			EventStart:        "16:00",
			EventDuration:     2 * time.Hour,
			EventTitle:        "Event Hall",
			EventLocation:     "Main Hall",
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:   newMemStore(),
		otpRepo: &fakeOTPRepo{},
		cache:   &fakeCache{},
		mail:    &fakeMailer{},
		bus:     &fakeBus{},
		clock:   &clock{t: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)},
		cfg:     testConfig(),
	}
	cfg := h.cfg
	events := fakeEventRepo{h.store}
	bookings := fakeBookingRepo{h.store}
	pending := fakePendingRepo{h.store}

	settings := &settingsService{repo: fakeSettingsRepo{h.store}, now: h.clock.Now}
	h.settings = settings

	otp := &otpService{
		repo:        h.otpRepo,
		ttl:         cfg.Booking.OTPTTL,
		maxAttempts: cfg.Booking.OTPMaxAttempts,
		cost:        bcrypt.MinCost,
		now:         h.clock.Now,
	}
	h.codes = &codeCatcher{OTPService: otp}

	avail := NewAvailabilityService(events, bookings, pending, h.cache, settings).(*availabilityService)
	avail.now = h.clock.Now
	h.availability = avail

	links := NewLinkBuilder(cfg.Booking)
	notifier := NewNotificationService(h.mail, h.bus, links, cfg.Booking.EventTitle, cfg.Booking.EventLocation)

	bs := NewBookingService(events, bookings, fakeContactRepo{h.store}, pending,
		h.codes, avail, settings, notifier, links, h.bus, cfg).(*bookingService)
	bs.now = h.clock.Now
	h.bookings = bs

	cs := NewCancellationService(bookings, avail, settings, notifier, links, h.bus, cfg).(*cancellationService)
	cs.now = h.clock.Now
	h.cancel = cs

	es := NewEventService(events, bookings, avail, settings, links).(*eventService)
	es.now = h.clock.Now
	h.events = es

	as := NewAdminService(fakeAdminRepo{h.store}, cfg.Auth).(*adminService)
	as.now = h.clock.Now
	h.admins = as

	h.sweeper = NewSweeper(pending, h.bus, cfg.Booking.SweepInterval)
	h.sweeper.now = h.clock.Now
	return h
}

// request builds a valid initiate request for a Friday two days out.
func request(email string, seats ...string) domain.BookingRequest {
	return domain.BookingRequest{
		EventDate:    "2026-10-16",
		SeatLabels:   seats,
		Name:         "Ada Obi",
		Email:        email,
		Phone:        "+2348012345678",
		Gender:       "female",
		AgeRange:     "26-35",
		AgreeToTerms: true,
	}
}

// book runs initiate and verify for a new contact.
func (h *harness) book(t *testing.T, email string, seats ...string) *domain.Booking {
	t.Helper()
	ctx := context.Background()
	out, err := h.bookings.Initiate(ctx, request(email, seats...))
	if err != nil {
		t.Fatalf("initiate %s: %v", email, err)
	}
	if out.Booking != nil {
		return out.Booking
	}
	b, err := h.bookings.VerifyAndComplete(ctx, domain.VerifyRequest{
		Email:            email,
		OTP:              h.codes.code(email),
		TempID:           out.Pending.TempID,
		ReservationToken: out.Pending.ReservationToken,
	})
	if err != nil {
		t.Fatalf("verify %s: %v", email, err)
	}
	return b
}
