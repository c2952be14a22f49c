package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// SupportRepository persists the tenant records tools read and append:
// business info, tickets, notifications, orders and calendar event audits.
type SupportRepository struct {
	db *DB
}

// NewSupportRepository creates a new support repository
func NewSupportRepository(db *DB) *SupportRepository {
	return &SupportRepository{db: db}
}

// CreateBusinessInfo stores a business info entry
func (r *SupportRepository) CreateBusinessInfo(ctx context.Context, info *domain.BusinessInfo) error {
	if info.ID == "" {
		info.ID = uuid.New().String()
	}
	info.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO business_info (id, tenant_id, info_type, title, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, info.ID, info.TenantID, info.InfoType, info.Title, info.Content, info.CreatedAt)
	return err
}

// ListBusinessInfo returns up to limit entries of a type; an empty type lists all
func (r *SupportRepository) ListBusinessInfo(ctx context.Context, tenantID, infoType string, limit int) ([]*domain.BusinessInfo, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, info_type, title, content, created_at
		FROM business_info
		WHERE tenant_id = ? AND (? = '' OR info_type = ?)
		ORDER BY created_at ASC LIMIT ?
	`, tenantID, infoType, infoType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []*domain.BusinessInfo
	for rows.Next() {
		info := &domain.BusinessInfo{}
		var title sql.NullString
		if err := rows.Scan(&info.ID, &info.TenantID, &info.InfoType, &title, &info.Content, &info.CreatedAt); err != nil {
			return nil, err
		}
		info.Title = title.String
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

// CreateTicket opens a support ticket and assigns its numeric id
func (r *SupportRepository) CreateTicket(ctx context.Context, ticket *domain.SupportTicket) error {
	ticket.CreatedAt = time.Now()
	if ticket.Status == "" {
		ticket.Status = "open"
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO support_tickets (tenant_id, user_id, customer_email, subject, description, priority, category, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ticket.TenantID, ticket.UserID, ticket.CustomerEmail, ticket.Subject, ticket.Description,
		ticket.Priority, ticket.Category, ticket.Status, ticket.CreatedAt)
	if err != nil {
		return err
	}

	ticket.ID, err = result.LastInsertId()
	return err
}

// ListTickets returns a tenant's tickets, newest first
func (r *SupportRepository) ListTickets(ctx context.Context, tenantID string) ([]*domain.SupportTicket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, user_id, customer_email, subject, description, priority, category, status, created_at
		FROM support_tickets WHERE tenant_id = ?
		ORDER BY id DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*domain.SupportTicket
	for rows.Next() {
		t := &domain.SupportTicket{}
		var userID, email sql.NullString
		if err := rows.Scan(&t.ID, &t.TenantID, &userID, &email, &t.Subject, &t.Description,
			&t.Priority, &t.Category, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.UserID = userID.String
		t.CustomerEmail = email.String
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

// QueueNotification records an outbound email with status queued
func (r *SupportRepository) QueueNotification(ctx context.Context, n *domain.EmailNotification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now()
	n.Status = "queued"

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_notifications (id, tenant_id, user_id, recipient_email, subject, body, template_type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.TenantID, n.UserID, n.RecipientEmail, n.Subject, n.Body, n.TemplateType, n.Status, n.CreatedAt)
	return err
}

// UpsertOrder creates or replaces an order
func (r *SupportRepository) UpsertOrder(ctx context.Context, order *domain.Order) error {
	order.CreatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (order_id, tenant_id, status, delivery_date, tracking, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, order_id) DO UPDATE SET
			status = excluded.status,
			delivery_date = excluded.delivery_date,
			tracking = excluded.tracking
	`, order.OrderID, order.TenantID, order.Status, order.DeliveryDate, order.Tracking, order.CreatedAt)
	return err
}

// GetOrder looks up an order; it returns nil when the tenant has no such order
func (r *SupportRepository) GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	order := &domain.Order{}
	var delivery, tracking sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT order_id, tenant_id, status, delivery_date, tracking, created_at
		FROM orders WHERE tenant_id = ? AND order_id = ?
	`, tenantID, orderID).Scan(&order.OrderID, &order.TenantID, &order.Status, &delivery, &tracking, &order.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	order.DeliveryDate = delivery.String
	order.Tracking = tracking.String
	return order, nil
}

// CreateCalendarEvent writes the pending audit record of a calendar event
func (r *SupportRepository) CreateCalendarEvent(ctx context.Context, ev *domain.CalendarEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	now := time.Now()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	if ev.Status == "" {
		ev.Status = domain.CalendarEventPending
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO calendar_events (id, tenant_id, user_id, title, description, start_time, end_time, attendee_email, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.TenantID, ev.UserID, ev.Title, ev.Description, ev.StartTime, ev.EndTime,
		ev.AttendeeEmail, ev.Status, ev.CreatedAt, ev.UpdatedAt)
	return err
}

// FinishCalendarEvent finalises an audit record with the remote outcome
func (r *SupportRepository) FinishCalendarEvent(ctx context.Context, ev *domain.CalendarEvent) error {
	ev.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE calendar_events SET google_event_id = ?, link = ?, status = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, ev.RemoteID, ev.Link, ev.Status, ev.Error, ev.UpdatedAt, ev.ID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("calendar event %s: %w", ev.ID, domain.ErrNotFound)
	}
	return nil
}

// GetCalendarEvent retrieves a calendar event audit record
func (r *SupportRepository) GetCalendarEvent(ctx context.Context, id string) (*domain.CalendarEvent, error) {
	ev := &domain.CalendarEvent{}
	var userID, desc, attendee, remoteID, link, errMsg sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, user_id, title, description, start_time, end_time, attendee_email,
			google_event_id, link, status, error, created_at, updated_at
		FROM calendar_events WHERE id = ?
	`, id).Scan(&ev.ID, &ev.TenantID, &userID, &ev.Title, &desc, &ev.StartTime, &ev.EndTime,
		&attendee, &remoteID, &link, &ev.Status, &errMsg, &ev.CreatedAt, &ev.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ev.UserID = userID.String
	ev.Description = desc.String
	ev.AttendeeEmail = attendee.String
	ev.RemoteID = remoteID.String
	ev.Link = link.String
	ev.Error = errMsg.String
	return ev, nil
}
