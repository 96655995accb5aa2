package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bookable-app/bookable/libs/db"
	"github.com/bookable-app/bookable/services/booking-service/internal/booking"
	"github.com/bookable-app/bookable/services/booking-service/internal/model"
)

// TenantRepository reads and writes tenant settings, services and admin
// logins. Appointment rows are owned by AppointmentRepository.
type TenantRepository struct {
	pool *db.Pool
}

func NewTenantRepository(pool *db.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

const tenantColumns = `
	id::text, slug, name, COALESCE(description, ''), COALESCE(address, ''),
	COALESCE(phone, ''), email, time_interval, COALESCE(business_hours, ''),
	subscription_status, created_at`

func (r *TenantRepository) BySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants
		WHERE slug = $1
	`, slug)
	return scanTenant(row)
}

func (r *TenantRepository) ByID(ctx context.Context, id string) (*model.Tenant, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants
		WHERE id = $1
	`, id)
	return scanTenant(row)
}

func scanTenant(row pgx.Row) (*model.Tenant, error) {
	var t model.Tenant
	err := row.Scan(
		&t.ID,
		&t.Slug,
		&t.Name,
		&t.Description,
		&t.Address,
		&t.Phone,
		&t.Email,
		&t.TimeInterval,
		&t.BusinessHours,
		&t.SubscriptionStatus,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateSettings overwrites the tenant's display metadata, slot interval and
// business-hours blob. The blob is stored as given; parsing falls back to
// the default schedule on read.
func (r *TenantRepository) UpdateSettings(ctx context.Context, t *model.Tenant) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tenants
		SET name = $2,
			description = $3,
			address = $4,
			phone = $5,
			email = $6,
			time_interval = $7,
			business_hours = $8,
			updated_at = now()
		WHERE id = $1
	`, t.ID, t.Name, t.Description, t.Address, t.Phone, t.Email, t.TimeInterval, t.BusinessHours)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrTenantNotFound
	}
	return nil
}

func (r *TenantRepository) ListServices(ctx context.Context, tenantID string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, tenant_id::text, name, duration_minutes, COALESCE(price::text, ''), created_at
		FROM services
		WHERE tenant_id = $1
		ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.DurationMins, &s.Price, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *TenantRepository) CreateService(ctx context.Context, svc *model.Service) error {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, tenant_id, name, duration_minutes, price)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::numeric)
	`, svc.ID, svc.TenantID, svc.Name, svc.DurationMins, svc.Price)
	return err
}

func (r *TenantRepository) AdminByEmail(ctx context.Context, email string) (*model.TenantAdmin, error) {
	var a model.TenantAdmin
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, email, password_hash, created_at
		FROM tenant_admins
		WHERE lower(email) = lower($1)
	`, email).Scan(&a.ID, &a.TenantID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pgx.ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
