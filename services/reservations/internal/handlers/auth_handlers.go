package handlers

import (
	"net/http"

	mw "github.com/diagnosis/seat-reservations/pkg/middleware"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/domain"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/response"
)

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.admins.Login(r.Context(), req)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Login successful", res)
}

func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	claims := mw.ClaimsFrom(r.Context())
	if claims == nil {
		response.Unauthorized(w, "Access denied. No token provided.")
		return
	}
	a, err := h.admins.Profile(r.Context(), claims.Sub)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "Profile retrieved", a)
}
