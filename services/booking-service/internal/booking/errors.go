package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrTenantNotFound: the slug resolves to nothing.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrTenantInactive: the tenant exists but its subscription does not
	// allow public bookings. Distinct from not-found on purpose.
	ErrTenantInactive = errors.New("tenant is not accepting bookings")
	// ErrSlotTaken: another active appointment holds the same
	// (tenant, date, time). The caller should pick a different slot.
	ErrSlotTaken = errors.New("time slot is already booked")
	// ErrOutsideHours: the requested time is not an offered slot (outside
	// the weekday's window or not aligned to the tenant's interval).
	ErrOutsideHours = errors.New("time is outside business hours")
	// ErrPastSlot: the date+time has already elapsed.
	ErrPastSlot = errors.New("appointment time has already passed")
	// ErrAlreadyCancelled: terminal, expected state rather than a failure.
	ErrAlreadyCancelled = errors.New("appointment is already cancelled")
	// ErrTokenNotFound: unknown cancellation token.
	ErrTokenNotFound = errors.New("unknown cancellation token")
	// ErrAppointmentNotFound: admin referenced an id outside their tenant.
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// ValidationError reports missing or malformed caller input. It is resolved
// at the request boundary and never retried automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is caller input error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
