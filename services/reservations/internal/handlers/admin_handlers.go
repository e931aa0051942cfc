package handlers

import (
	"net/http"
	"strings"

	"github.com/diagnosis/seat-reservations/pkg/logger"
	mw "github.com/diagnosis/seat-reservations/pkg/middleware"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/response"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.BookingFilter{
		Search: q.Get("search"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 10),
	}
	if raw := q.Get("status"); raw != "" {
		st, ok := domain.ParseBookingStatus(raw)
		if !ok {
			response.BadRequest(w, "Invalid status parameter")
			return
		}
		f.Status = &st
	}
	if raw := q.Get("eventDate"); raw != "" {
		day, err := domain.ParseDay(raw, h.loc)
		if err != nil {
			response.BadRequest(w, "Invalid eventDate parameter")
			return
		}
		f.EventDate = &day
	}

	bookings, meta, err := h.bookings.List(r.Context(), f)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Page(w, "Bookings retrieved", bookings, meta)
}

func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.CheckIn(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Ticket verified successfully", b)
}

func (h *Handlers) AdminCancel(w http.ResponseWriter, r *http.Request) {
	b, err := h.cancellation.AdminCancel(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.audit(r, "Booking cancelled", b.TicketID)
	response.OK(w, "Booking cancelled", b)
}

func (h *Handlers) Void(w http.ResponseWriter, r *http.Request) {
	b, err := h.cancellation.Void(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.audit(r, "Booking voided", b.TicketID)
	response.OK(w, "Booking voided", b)
}

func (h *Handlers) AssignSeats(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SeatLabels []string `json:"seatLabels"`
	}
	if !decode(w, r, &req) {
		return
	}
	if len(req.SeatLabels) == 0 {
		response.BadRequest(w, "seatLabels must contain at least 1 item")
		return
	}

	b, err := h.bookings.AssignSeats(r.Context(), chi.URLParam(r, "ticketId"), req.SeatLabels)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.audit(r, "Seats reassigned", b.TicketID, "seats", strings.Join(b.Seats.Labels, ","))
	response.OK(w, "Seats assigned", b)
}

func (h *Handlers) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.ResendConfirmation(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Confirmation queued", b)
}

func (h *Handlers) RegistrationStats(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		response.BadRequest(w, "date is required")
		return
	}
	stats, err := h.bookings.RegistrationStats(r.Context(), date)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Registration stats retrieved", stats)
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Settings retrieved", s)
}

func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch domain.SettingsPatch
	if !decode(w, r, &patch) {
		return
	}
	s, err := h.settings.Update(r.Context(), patch)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	h.audit(r, "Settings updated", "")
	response.OK(w, "Settings updated", s)
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, meta, err := h.events.List(r.Context(), queryInt(r, "page", 1), queryInt(r, "limit", 10))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Page(w, "Events retrieved", events, meta)
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in domain.EventInput
	if !decode(w, r, &in) {
		return
	}
	e, err := h.events.Create(r.Context(), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Created(w, "Event created", e)
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.events.Get(r.Context(), id)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Event retrieved", e)
}

func (h *Handlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch domain.EventPatch
	if !decode(w, r, &patch) {
		return
	}
	e, err := h.events.Update(r.Context(), id, patch)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Event updated", e)
}

func (h *Handlers) DeactivateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.events.Deactivate(r.Context(), id); err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Event deactivated", nil)
}

func (h *Handlers) UpcomingEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Upcoming(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Upcoming events retrieved", events)
}

func (h *Handlers) EventsSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.events.Summary(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Events summary retrieved", sum)
}

func (h *Handlers) audit(r *http.Request, msg, ticketID string, args ...any) {
	attrs := []any{}
	if claims := mw.ClaimsFrom(r.Context()); claims != nil {
		attrs = append(attrs, "admin", claims.Username)
	}
	if ticketID != "" {
		attrs = append(attrs, "ticket_id", ticketID)
	}
	logger.InfoContext(r.Context(), msg, append(attrs, args...)...)
}
