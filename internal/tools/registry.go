// Package tools holds the catalog of actions the assistant may take, the
// typed arguments of each action, and the executor that validates, runs and
// audits them.
package tools

import "github.com/liliang-cn/askdesk/internal/domain"

// Tool names offered to the model
const (
	SearchKnowledgeBase       = "search_knowledge_base"
	CheckCalendarAvailability = "check_calendar_availability"
	CreateCalendarEvent       = "create_calendar_event"
	GetBusinessInfo           = "get_business_info"
	ListAvailableDocuments    = "list_available_documents"
	CreateSupportTicket       = "create_support_ticket"
	SendEmailNotification     = "send_email_notification"
	GetOrderStatus            = "get_order_status"
)

var catalog = []domain.ToolDefinition{
	{
		Name:        SearchKnowledgeBase,
		Description: "Search the company's uploaded documents and business information for relevant answers. Use this when the customer asks questions about products, services, policies, or procedures.",
		Params: []domain.ToolParam{
			{Name: "query", Type: domain.ParamString, Required: true,
				Description: "The search query to find relevant information in the knowledge base"},
		},
	},
	{
		Name:        CheckCalendarAvailability,
		Description: "Check if user is free at a specific time or find available time slots in Google Calendar. If checking a specific time (e.g., '1pm'), set timeMin to that time and timeMax to 1 hour later. If checking a time range, use actual start and end times.",
		Params: []domain.ToolParam{
			{Name: "date", Type: domain.ParamString, Required: true,
				Description: "The date to check availability (format: YYYY-MM-DD or 'tomorrow', 'today', etc.)"},
			{Name: "timeMin", Type: domain.ParamString,
				Description: "Start time in 24-hour format (e.g., '13:00' for 1pm). If checking a single time, this is the time to check."},
			{Name: "timeMax", Type: domain.ParamString,
				Description: "End time in 24-hour format (e.g., '14:00' for 2pm). Should be AFTER timeMin. If checking a single time like '1pm', add at least 1 hour (e.g., '14:00')."},
		},
	},
	{
		Name:        CreateCalendarEvent,
		Description: "Create a new event in Google Calendar. Use this after confirming meeting details with the customer.",
		Mutating:    true,
		Params: []domain.ToolParam{
			{Name: "title", Type: domain.ParamString, Required: true, Description: "Event title/summary"},
			{Name: "description", Type: domain.ParamString, Description: "Event description or agenda"},
			{Name: "startDateTime", Type: domain.ParamString, Required: true,
				Description: "Start date and time (ISO 8601 format: YYYY-MM-DDTHH:MM:SS)"},
			{Name: "endDateTime", Type: domain.ParamString, Required: true,
				Description: "End date and time (ISO 8601 format: YYYY-MM-DDTHH:MM:SS)"},
			{Name: "attendeeEmail", Type: domain.ParamString, Required: true,
				Description: "Customer's email address to send calendar invite"},
		},
	},
	{
		Name:        GetBusinessInfo,
		Description: "Retrieve specific business information like hours, contact details, policies, or FAQs from the business_info table.",
		Params: []domain.ToolParam{
			{Name: "infoType", Type: domain.ParamString, Required: true,
				Enum:        []string{"hours", "contact", "policy", "faq", "general"},
				Description: "Type of business information to retrieve"},
		},
	},
	{
		Name:        ListAvailableDocuments,
		Description: "List all uploaded documents and files available in the knowledge base. Use this when customer asks what documentation or resources are available.",
		Params: []domain.ToolParam{
			{Name: "fileType", Type: domain.ParamString,
				Description: "Filter by file type (e.g., 'pdf', 'docx', 'txt'). Leave empty for all files."},
		},
	},
	{
		Name:        CreateSupportTicket,
		Description: "Create a support ticket for issues that require human agent attention. Use this for complex problems, complaints, or requests that can't be resolved by AI.",
		Mutating:    true,
		Params: []domain.ToolParam{
			{Name: "subject", Type: domain.ParamString, Required: true, Description: "Brief subject line describing the issue"},
			{Name: "description", Type: domain.ParamString, Required: true, Description: "Detailed description of the customer's issue"},
			{Name: "priority", Type: domain.ParamString, Required: true,
				Enum:        []string{"low", "medium", "high", "urgent"},
				Description: "Priority level based on issue severity"},
			{Name: "category", Type: domain.ParamString, Required: true,
				Enum:        []string{"technical", "billing", "product", "general"},
				Description: "Category of the support ticket"},
		},
	},
	{
		Name:        SendEmailNotification,
		Description: "Send an email notification to the customer. Use this for confirmations, follow-ups, or sending requested information.",
		Mutating:    true,
		Params: []domain.ToolParam{
			{Name: "recipientEmail", Type: domain.ParamString, Required: true, Description: "Customer's email address"},
			{Name: "subject", Type: domain.ParamString, Required: true, Description: "Email subject line"},
			{Name: "body", Type: domain.ParamString, Required: true, Description: "Email body content"},
			{Name: "templateType", Type: domain.ParamString, Required: true,
				Enum:        []string{"confirmation", "followup", "information", "alert"},
				Description: "Type of email template to use"},
		},
	},
	{
		Name:        GetOrderStatus,
		Description: "Look up order status and tracking information. Use this when customer asks about their order.",
		Params: []domain.ToolParam{
			{Name: "orderId", Type: domain.ParamString, Required: true, Description: "Order ID or order number provided by customer"},
		},
	},
}

// Registry is the fixed tool catalog
type Registry struct {
	defs   []domain.ToolDefinition
	byName map[string]domain.ToolDefinition
}

// NewRegistry returns the catalog of every built-in tool
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]domain.ToolDefinition, len(catalog))}
	for _, d := range catalog {
		r.defs = append(r.defs, d)
		r.byName[d.Name] = d
	}
	return r
}

// Definitions returns the catalog in a stable order
func (r *Registry) Definitions() []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Lookup finds a tool by name
func (r *Registry) Lookup(name string) (domain.ToolDefinition, bool) {
	d, ok := r.byName[name]
	return d, ok
}
