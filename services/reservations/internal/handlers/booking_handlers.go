package handlers

import (
	"net/http"
	"strconv"

	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/response"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/service"
	"github.com/go-chi/chi/v5"
)

const qrSize = 256

// ticketView is returned to the guest who just booked. It is the only
// response that carries the reservation token.
type ticketView struct {
	*domain.Booking
	ReservationToken string `json:"reservationToken"`
}

func newTicketView(b *domain.Booking) ticketView {
	return ticketView{Booking: b, ReservationToken: b.ReservationToken}
}

func (h *Handlers) Initiate(w http.ResponseWriter, r *http.Request) {
	var req domain.BookingRequest
	if !decode(w, r, &req) {
		return
	}

	out, err := h.bookings.Initiate(r.Context(), req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if out.Booking != nil {
		response.Created(w, "Booking completed successfully! Check your email for confirmation.", newTicketView(out.Booking))
		return
	}
	response.OK(w, "Verification code sent to your email. Please verify to complete booking.", out.Pending)
}

func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.OTP == "" || req.TempID == "" {
		response.BadRequest(w, "email, otp and tempId are required")
		return
	}

	b, err := h.bookings.VerifyAndComplete(r.Context(), req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Created(w, "Booking confirmed successfully!", newTicketView(b))
}

func (h *Handlers) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}

	res, err := h.bookings.ResendOTP(r.Context(), req.Email)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "New verification code sent to your email", res)
}

func (h *Handlers) Seats(w http.ResponseWriter, r *http.Request) {
	a, err := h.bookings.Availability(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Seat availability retrieved", a)
}

func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	var req domain.CancelRequest
	if !decode(w, r, &req) {
		return
	}
	if req.TicketID == "" || req.ReservationToken == "" {
		response.BadRequest(w, "ticketId and reservationToken are required")
		return
	}

	b, err := h.cancellation.Cancel(r.Context(), req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Booking cancelled successfully. You will receive a confirmation email shortly.", b)
}

func (h *Handlers) GetTicket(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.GetByTicketID(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Booking retrieved", b)
}

func (h *Handlers) TicketQR(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.GetByTicketID(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	png, err := service.QRCodePNG(b.QRPayload, qrSize)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		logger.WarnContext(r.Context(), "Failed to write QR code", "error", err, "ticket_id", b.TicketID)
	}
}
