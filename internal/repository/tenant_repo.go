package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// TenantRepository handles tenant persistence
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create creates a new tenant
func (r *TenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, system_prompt, calendar_id, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tenant.ID, tenant.Name, tenant.SystemPrompt, tenant.CalendarID, tenant.Timezone,
		tenant.CreatedAt, tenant.UpdatedAt)

	return err
}

// Get retrieves a tenant by ID
func (r *TenantRepository) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	tenant := &domain.Tenant{}
	var prompt, calendarID, timezone sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, system_prompt, calendar_id, timezone, created_at, updated_at
		FROM tenants WHERE id = ?
	`, id).Scan(&tenant.ID, &tenant.Name, &prompt, &calendarID, &timezone,
		&tenant.CreatedAt, &tenant.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tenant.SystemPrompt = prompt.String
	tenant.CalendarID = calendarID.String
	tenant.Timezone = timezone.String

	return tenant, nil
}

// List retrieves all tenants
func (r *TenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, system_prompt, calendar_id, timezone, created_at, updated_at
		FROM tenants ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		tenant := &domain.Tenant{}
		var prompt, calendarID, timezone sql.NullString

		if err := rows.Scan(&tenant.ID, &tenant.Name, &prompt, &calendarID, &timezone,
			&tenant.CreatedAt, &tenant.UpdatedAt); err != nil {
			return nil, err
		}

		tenant.SystemPrompt = prompt.String
		tenant.CalendarID = calendarID.String
		tenant.Timezone = timezone.String
		tenants = append(tenants, tenant)
	}

	return tenants, rows.Err()
}

// Update updates a tenant
func (r *TenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	tenant.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, `
		UPDATE tenants SET name = ?, system_prompt = ?, calendar_id = ?, timezone = ?, updated_at = ?
		WHERE id = ?
	`, tenant.Name, tenant.SystemPrompt, tenant.CalendarID, tenant.Timezone,
		tenant.UpdatedAt, tenant.ID)

	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("tenant %s: %w", tenant.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete deletes a tenant and, through the foreign key, its documents
func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("tenant %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Count returns the number of tenants
func (r *TenantRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&count)
	return count, err
}
