package domain

import "time"

// DefaultSystemPrompt is used when a tenant has no prompt of its own
const DefaultSystemPrompt = "You are a helpful AI customer support assistant."

// Tenant is the owning scope for documents, conversations and tool effects
type Tenant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	CalendarID   string    `json:"calendar_id,omitempty"`
	Timezone     string    `json:"timezone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Prompt returns the tenant's base system instruction
func (t *Tenant) Prompt() string {
	if t == nil || t.SystemPrompt == "" {
		return DefaultSystemPrompt
	}
	return t.SystemPrompt
}

// CreateTenantRequest is the request to create a tenant
type CreateTenantRequest struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name" binding:"required"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	CalendarID   string `json:"calendar_id,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
}

// UpdateTenantRequest is the request to update a tenant
type UpdateTenantRequest struct {
	Name         string `json:"name,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	CalendarID   string `json:"calendar_id,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
}

// Stats represents system statistics
type Stats struct {
	TotalTenants         int `json:"total_tenants"`
	TotalDocuments       int `json:"total_documents"`
	TotalChats           int `json:"total_chats"`
	TotalToolInvocations int `json:"total_tool_invocations"`
}
