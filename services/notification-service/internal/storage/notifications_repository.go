package storage

import (
	"context"

	"github.com/bookable-app/bookable/libs/db"
)

// Notification is one row in the delivery log.
type Notification struct {
	AppointmentID string
	TenantID      string
	Kind          string // confirmation, cancellation or reminder
	Recipient     string
	Subject       string
	Status        string // sent or failed
	Error         string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, tenant_id, kind, recipient, subject, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`, n.AppointmentID, n.TenantID, n.Kind, n.Recipient, n.Subject, n.Status, n.Error)
	return err
}
