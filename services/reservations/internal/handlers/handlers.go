package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/auth"
	"github.com/diagnosis/seat-reservations/pkg/config"
	mw "github.com/diagnosis/seat-reservations/pkg/middleware"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/response"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/service"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/utils"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	bookings     service.BookingService
	cancellation service.CancellationService
	events       service.EventService
	settings     service.SettingsService
	admins       service.AdminService
	jwtSecret    string
	loc          *time.Location
}

func New(
	bookings service.BookingService,
	cancellation service.CancellationService,
	events service.EventService,
	settings service.SettingsService,
	admins service.AdminService,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		bookings:     bookings,
		cancellation: cancellation,
		events:       events,
		settings:     settings,
		admins:       admins,
		jwtSecret:    cfg.Auth.JWTSecret,
		loc:          cfg.Booking.Location(),
	}
}

// RouteOptions carries the per-route middleware built from shared clients.
// Nil entries are skipped.
type RouteOptions struct {
	ResendLimit func(http.Handler) http.Handler
	Idempotent  func(http.Handler) http.Handler
}

func passthrough(next http.Handler) http.Handler { return next }

func (h *Handlers) Register(r chi.Router, opts RouteOptions) {
	if opts.ResendLimit == nil {
		opts.ResendLimit = passthrough
	}
	if opts.Idempotent == nil {
		opts.Idempotent = passthrough
	}

	r.Route("/bookings", func(r chi.Router) {
		r.With(opts.Idempotent).Post("/initiate", h.Initiate)
		r.With(opts.Idempotent).Post("/verify", h.Verify)
		r.With(opts.ResendLimit).Post("/resend-otp", h.ResendOTP)
		r.Post("/cancel", h.Cancel)
		r.Get("/seats/{date}", h.Seats)
		r.Get("/{ticketId}", h.GetTicket)
		r.Get("/{ticketId}/qr", h.TicketQR)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.With(mw.RequireAdmin(h.jwtSecret)).Get("/profile", h.Profile)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(mw.RequireAdmin(h.jwtSecret))

		r.Get("/bookings", h.ListBookings)
		r.Get("/bookings/{ticketId}", h.GetTicket)
		r.Post("/bookings/{ticketId}/check-in", h.CheckIn)
		r.Post("/bookings/{ticketId}/cancel", h.AdminCancel)
		r.Post("/bookings/{ticketId}/resend-confirmation", h.ResendConfirmation)
		r.Put("/bookings/{ticketId}/seats", h.AssignSeats)
		r.With(requireRole(auth.RoleSuperAdmin, h.jwtSecret)).Post("/bookings/{ticketId}/void", h.Void)

		r.Get("/stats/registrations", h.RegistrationStats)

		r.Get("/settings", h.GetSettings)
		r.With(requireRole(auth.RoleSuperAdmin, h.jwtSecret)).Put("/settings", h.UpdateSettings)

		r.Get("/events", h.ListEvents)
		r.Post("/events", h.CreateEvent)
		r.Get("/events/upcoming", h.UpcomingEvents)
		r.Get("/events/summary", h.EventsSummary)
		r.Get("/events/{id}", h.GetEvent)
		r.Put("/events/{id}", h.UpdateEvent)
		r.Delete("/events/{id}", h.DeactivateEvent)
	})
}

func requireRole(role, secret string) func(http.Handler) http.Handler {
	return mw.RequireAdmin(secret, role)
}

// decode reads a JSON body and writes the 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		response.BadRequest(w, "Invalid event ID")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// EmailKey keys rate limits on the email in a JSON body, falling back to
// the client address. The body is restored for the handler.
func EmailKey(r *http.Request) string {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err == nil {
		var body struct {
			Email string `json:"email"`
		}
		if json.Unmarshal(raw, &body) == nil {
			if email := utils.NormalizeEmail(body.Email); email != "" {
				return email
			}
		}
	}
	return strings.TrimSpace(mw.ClientIP(r))
}
