package domain

import "time"

// BusinessInfo is a tenant-maintained fact served by the business info tool
type BusinessInfo struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	InfoType  string    `json:"info_type" binding:"required,oneof=hours contact policy faq general"`
	Title     string    `json:"title"`
	Content   string    `json:"content" binding:"required"`
	CreatedAt time.Time `json:"created_at"`
}

// SupportTicket is opened by the assistant for human follow-up
type SupportTicket struct {
	ID            int64     `json:"id"`
	TenantID      string    `json:"tenant_id"`
	UserID        string    `json:"user_id,omitempty"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	Subject       string    `json:"subject"`
	Description   string    `json:"description"`
	Priority      string    `json:"priority"`
	Category      string    `json:"category"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// EmailNotification is a queued outbound email
type EmailNotification struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	UserID         string    `json:"user_id,omitempty"`
	RecipientEmail string    `json:"recipient_email"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	TemplateType   string    `json:"template_type"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Order is a customer order visible to the order status tool
type Order struct {
	OrderID      string    `json:"order_id" binding:"required"`
	TenantID     string    `json:"tenant_id"`
	Status       string    `json:"status" binding:"required"`
	DeliveryDate string    `json:"delivery_date,omitempty"`
	Tracking     string    `json:"tracking,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Calendar event audit states
const (
	CalendarEventPending   = "pending"
	CalendarEventConfirmed = "confirmed"
	CalendarEventFailed    = "failed"
)

// CalendarEvent is the local audit record of a remote calendar event
type CalendarEvent struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	UserID        string    `json:"user_id,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	AttendeeEmail string    `json:"attendee_email,omitempty"`
	RemoteID      string    `json:"google_event_id,omitempty"`
	Link          string    `json:"link,omitempty"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
