package model

import "time"

// Appointment statuses. Only StatusActive blocks a slot.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Tenant is a business publishing a booking page, identified by a unique slug.
// TimeInterval is the slot granularity in minutes. BusinessHours holds the
// raw per-weekday JSON configuration; parsing and defaulting live in the
// hours package.
type Tenant struct {
	ID                 string
	Slug               string
	Name               string
	Description        string
	Address            string
	Phone              string
	Email              string
	TimeInterval       int
	BusinessHours      string
	SubscriptionStatus string
	CreatedAt          time.Time
}

// Active reports whether the tenant's booking page is publicly visible.
func (t *Tenant) Active() bool {
	return t.SubscriptionStatus == "active"
}

// Service is an offering of a tenant. Duration does not change slot length
// (slot length is governed by Tenant.TimeInterval); it is informational.
type Service struct {
	ID           string
	TenantID     string
	Name         string
	DurationMins int
	Price        string
	CreatedAt    time.Time
}

// Appointment is a booked slot. Date is a calendar date ("2006-01-02") and
// Time a wall-clock "HH:MM", both in the tenant's local zone.
type Appointment struct {
	ID                 string
	TenantID           string
	ServiceID          string
	CustomerName       string
	CustomerEmail      string
	CustomerPhone      string
	Date               string
	Time               string
	Status             string
	Notes              string
	CancellationToken  string
	CancelledAt        *time.Time
	CancellationReason string
	ConfirmationSent   bool
	ReminderSent       bool
	CreatedAt          time.Time
}

// StartsAt combines Date and Time in the given location.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, loc)
}

// TenantAdmin is a dashboard login for a tenant.
type TenantAdmin struct {
	ID           string
	TenantID     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
