package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bookable-app/bookable/services/booking-service/internal/booking"
	"github.com/bookable-app/bookable/services/booking-service/internal/export"
	"github.com/bookable-app/bookable/services/booking-service/internal/hours"
	"github.com/bookable-app/bookable/services/booking-service/internal/model"
	"github.com/bookable-app/bookable/services/booking-service/internal/storage"
)

// AdminHandler serves the authenticated dashboard endpoints. Every
// request is scoped to the tenant carried in the admin's token.
type AdminHandler struct {
	svc          *booking.Service
	appointments *storage.AppointmentRepository
	tenants      *storage.TenantRepository
	logger       *slog.Logger
}

func NewAdminHandler(svc *booking.Service, appointments *storage.AppointmentRepository, tenants *storage.TenantRepository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		svc:          svc,
		appointments: appointments,
		tenants:      tenants,
		logger:       logger,
	}
}

type appointmentItem struct {
	ID                 string `json:"id"`
	ServiceID          string `json:"service_id,omitempty"`
	CustomerName       string `json:"customer_name"`
	CustomerEmail      string `json:"customer_email"`
	CustomerPhone      string `json:"customer_phone,omitempty"`
	Date               string `json:"date"`
	Time               string `json:"time"`
	Status             string `json:"status"`
	Notes              string `json:"notes,omitempty"`
	CancelledAt        string `json:"cancelled_at,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	ConfirmationSent   bool   `json:"confirmation_sent"`
	ReminderSent       bool   `json:"reminder_sent"`
	CreatedAt          string `json:"created_at"`
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		ID:                 a.ID,
		ServiceID:          a.ServiceID,
		CustomerName:       a.CustomerName,
		CustomerEmail:      a.CustomerEmail,
		CustomerPhone:      a.CustomerPhone,
		Date:               a.Date,
		Time:               a.Time,
		Status:             a.Status,
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		ConfirmationSent:   a.ConfirmationSent,
		ReminderSent:       a.ReminderSent,
		CreatedAt:          a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.CancelledAt != nil {
		item.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

// ListAppointments handles GET /api/v1/appointments with optional
// status, from, to and search filters.
func (h *AdminHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	q := r.URL.Query()
	filters := storage.ListFilters{
		TenantID: claims.TenantID,
		Status:   strings.TrimSpace(q.Get("status")),
		FromDate: strings.TrimSpace(q.Get("from")),
		ToDate:   strings.TrimSpace(q.Get("to")),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	if filters.Status != "" && !model.ValidStatus(filters.Status) {
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}

	appts, err := h.appointments.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("appointment list failed", "err", err, "tenant_id", claims.TenantID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentItem(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /api/v1/appointments/{id}/status.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "appointment id is required")
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	appt, err := h.svc.UpdateStatus(r.Context(), claims.TenantID, id, strings.TrimSpace(req.Status))
	if err != nil {
		if !errors.Is(err, booking.ErrAppointmentNotFound) && !booking.IsValidation(err) {
			h.logger.Error("status update failed", "err", err, "appointment_id", id)
		}
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentItem(*appt))
}

// Export handles GET /api/v1/appointments/export?from=...&to=... and
// streams a CSV attachment.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	q := r.URL.Query()
	rows, err := h.appointments.ListForExport(r.Context(), claims.TenantID,
		strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to")))
	if err != nil {
		h.logger.Error("export query failed", "err", err, "tenant_id", claims.TenantID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(time.Now())+`"`)
	if err := export.WriteCSV(w, rows); err != nil {
		h.logger.Error("csv write failed", "err", err)
	}
}

type tenantSettings struct {
	Slug          string          `json:"slug"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Address       string          `json:"address,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Email         string          `json:"email"`
	TimeInterval  int             `json:"time_interval"`
	BusinessHours hours.Week      `json:"business_hours"`
	Subscription  string          `json:"subscription_status"`
}

// Tenant handles GET and PUT on /api/v1/admin/tenant.
func (h *AdminHandler) Tenant(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getTenant(w, r)
	case http.MethodPut:
		h.putTenant(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *AdminHandler) getTenant(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	t, err := h.tenants.ByID(r.Context(), claims.TenantID)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tenantSettings{
		Slug:          t.Slug,
		Name:          t.Name,
		Description:   t.Description,
		Address:       t.Address,
		Phone:         t.Phone,
		Email:         t.Email,
		TimeInterval:  t.TimeInterval,
		BusinessHours: hours.Parse(t.BusinessHours),
		Subscription:  t.SubscriptionStatus,
	})
}

type tenantUpdateRequest struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Address       string      `json:"address"`
	Phone         string      `json:"phone"`
	Email         string      `json:"email"`
	TimeInterval  int         `json:"time_interval"`
	BusinessHours *hours.Week `json:"business_hours"`
}

func (h *AdminHandler) putTenant(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	var req tenantUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	t, err := h.tenants.ByID(r.Context(), claims.TenantID)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		t.Name = name
	}
	t.Description = strings.TrimSpace(req.Description)
	t.Address = strings.TrimSpace(req.Address)
	t.Phone = strings.TrimSpace(req.Phone)
	if email := strings.TrimSpace(req.Email); email != "" {
		t.Email = email
	}
	if req.TimeInterval != 0 {
		if req.TimeInterval < 1 {
			writeError(w, http.StatusBadRequest, "time_interval must be at least 1 minute")
			return
		}
		t.TimeInterval = req.TimeInterval
	}
	if req.BusinessHours != nil {
		if err := validateWeek(*req.BusinessHours); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		raw, err := json.Marshal(req.BusinessHours)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid business_hours")
			return
		}
		t.BusinessHours = string(raw)
	}

	if err := h.tenants.UpdateSettings(r.Context(), t); err != nil {
		if errors.Is(err, booking.ErrTenantNotFound) {
			writeBookingError(w, err)
			return
		}
		h.logger.Error("tenant update failed", "err", err, "tenant_id", claims.TenantID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.getTenant(w, r)
}

func validateWeek(week hours.Week) error {
	for _, win := range []hours.Window{
		week.Monday, week.Tuesday, week.Wednesday, week.Thursday,
		week.Friday, week.Saturday, week.Sunday,
	} {
		if !win.Enabled {
			continue
		}
		if _, err := hours.ParseClock(win.Start); err != nil {
			return errors.New("business_hours: bad start time " + win.Start)
		}
		if _, err := hours.ParseClock(win.End); err != nil {
			return errors.New("business_hours: bad end time " + win.End)
		}
	}
	return nil
}

type serviceItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DurationMins int    `json:"duration_minutes"`
	Price        string `json:"price,omitempty"`
}

// Services handles GET and POST on /api/v1/admin/services.
func (h *AdminHandler) Services(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	switch r.Method {
	case http.MethodGet:
		list, err := h.tenants.ListServices(r.Context(), claims.TenantID)
		if err != nil {
			h.logger.Error("service list failed", "err", err, "tenant_id", claims.TenantID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		items := make([]serviceItem, 0, len(list))
		for _, s := range list {
			items = append(items, serviceItem{ID: s.ID, Name: s.Name, DurationMins: s.DurationMins, Price: s.Price})
		}
		writeJSON(w, http.StatusOK, map[string]any{"services": items})

	case http.MethodPost:
		var req serviceItem
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if req.DurationMins <= 0 {
			writeError(w, http.StatusBadRequest, "duration_minutes must be positive")
			return
		}
		svc := &model.Service{
			TenantID:     claims.TenantID,
			Name:         req.Name,
			DurationMins: req.DurationMins,
			Price:        strings.TrimSpace(req.Price),
		}
		if err := h.tenants.CreateService(r.Context(), svc); err != nil {
			h.logger.Error("service create failed", "err", err, "tenant_id", claims.TenantID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusCreated, serviceItem{ID: svc.ID, Name: svc.Name, DurationMins: svc.DurationMins, Price: svc.Price})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
