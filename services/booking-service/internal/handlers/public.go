package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bookable-app/bookable/services/booking-service/internal/booking"
)

// PublicHandler serves the unauthenticated customer endpoints: browsing
// slots, booking, and self-service cancellation.
type PublicHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewPublicHandler(svc *booking.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{svc: svc, logger: logger}
}

type bookResponse struct {
	AppointmentID     string `json:"appointment_id"`
	CancellationToken string `json:"cancellation_token"`
	Date              string `json:"date"`
	Time              string `json:"time"`
}

type cancelRequest struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

type cancelResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

// Slots handles GET /api/v1/public/slots?tenant=<slug>&date=YYYY-MM-DD.
func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	slug := strings.TrimSpace(r.URL.Query().Get("tenant"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if slug == "" || date == "" {
		writeError(w, http.StatusBadRequest, "tenant and date are required")
		return
	}

	page, err := h.svc.SlotsForDate(r.Context(), slug, date)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// Book handles POST /api/v1/public/book.
func (h *PublicHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req booking.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	appt, err := h.svc.Book(r.Context(), req)
	if err != nil {
		if !booking.IsValidation(err) && !isExpectedBookingError(err) {
			h.logger.Error("booking failed", "err", err, "tenant", req.TenantSlug)
		}
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bookResponse{
		AppointmentID:     appt.ID,
		CancellationToken: appt.CancellationToken,
		Date:              appt.Date,
		Time:              appt.Time,
	})
}

// Cancel handles POST /api/v1/public/cancel with the token from the
// confirmation email.
func (h *PublicHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	appt, err := h.svc.CancelByToken(r.Context(), req.Token, req.Reason)
	if err != nil {
		// A slot in the past is terminal here, unlike on the booking path
		// where the client can pick another time.
		if errors.Is(err, booking.ErrPastSlot) {
			writeError(w, http.StatusGone, "this appointment has already taken place")
			return
		}
		writeBookingError(w, err)
		return
	}

	resp := cancelResponse{AppointmentID: appt.ID, Status: appt.Status}
	if appt.CancelledAt != nil {
		resp.CancelledAt = appt.CancelledAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	writeJSON(w, http.StatusOK, resp)
}

func isExpectedBookingError(err error) bool {
	for _, known := range []error{
		booking.ErrTenantNotFound,
		booking.ErrTenantInactive,
		booking.ErrSlotTaken,
		booking.ErrOutsideHours,
		booking.ErrPastSlot,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
