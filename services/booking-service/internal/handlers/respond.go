package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bookable-app/bookable/services/booking-service/internal/booking"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeBookingError maps domain errors onto HTTP responses with messages
// a customer can act on.
func writeBookingError(w http.ResponseWriter, err error) {
	var vErr *booking.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, booking.ErrTenantNotFound):
		writeError(w, http.StatusNotFound, "business not found")
	case errors.Is(err, booking.ErrTenantInactive):
		writeError(w, http.StatusNotFound, "this business is not currently accepting bookings")
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "that time was just booked, please pick another slot")
	case errors.Is(err, booking.ErrOutsideHours):
		writeError(w, http.StatusBadRequest, "the requested time is outside business hours")
	case errors.Is(err, booking.ErrPastSlot):
		writeError(w, http.StatusBadRequest, "that time has already passed")
	case errors.Is(err, booking.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "this appointment has already been cancelled")
	case errors.Is(err, booking.ErrTokenNotFound):
		writeError(w, http.StatusNotFound, "cancellation link is invalid or expired")
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
