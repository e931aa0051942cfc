// Package response writes the uniform JSON envelope every endpoint returns.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
)

type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details string      `json:"details,omitempty"`
	Seats   []string    `json:"conflictingSeats,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func OK(w http.ResponseWriter, message string, data interface{}) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func Created(w http.ResponseWriter, message string, data interface{}) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

func Page(w http.ResponseWriter, message string, data interface{}, meta domain.PageMeta) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data, Meta: meta})
}

func BadRequest(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, Envelope{Message: message, Error: string(domain.ReasonInvalidInput)})
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusUnauthorized, Envelope{Message: message, Error: string(domain.ReasonUnauthorized)})
}

func InternalError(w http.ResponseWriter) {
	WriteJSON(w, http.StatusInternalServerError, Envelope{Message: "Internal server error", Error: "INTERNAL_ERROR"})
}

// StatusFor maps a rejection reason to its HTTP status.
func StatusFor(reason domain.Reason) int {
	switch reason {
	case domain.ReasonNotFound, domain.ReasonEventNotFound:
		return http.StatusNotFound
	case domain.ReasonSeatsUnavailable, domain.ReasonSeatsNoLongerAvailable, domain.ReasonEventExists:
		return http.StatusConflict
	case domain.ReasonUnauthorized:
		return http.StatusUnauthorized
	case domain.ReasonAccountLocked:
		return http.StatusLocked
	case domain.ReasonRateLimited:
		return http.StatusTooManyRequests
	case domain.ReasonNotificationFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Error writes err as a rejection envelope, or as a generic 500 after
// logging when it is not a rejection.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	if rej, ok := domain.AsRejection(err); ok {
		WriteJSON(w, StatusFor(rej.Reason), Envelope{
			Message: rej.Message,
			Error:   string(rej.Reason),
			Details: rej.Detail,
			Seats:   rej.Seats,
		})
		return
	}
	logger.ErrorContext(r.Context(), "Request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	InternalError(w)
}
