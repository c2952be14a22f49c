package tools

import (
	"context"

	"github.com/liliang-cn/askdesk/internal/domain"
)

// Env is the turn-scoped context a tool runs in
type Env struct {
	TenantID    string
	UserID      string
	UserEmail   string
	CalendarID  string
	Timezone    string
	Credentials domain.Credentials
}

// Args is the validated argument set of exactly one tool
type Args interface {
	Tool() string
	dispatch(ctx context.Context, env Env, h Handlers) Result
}

// Handlers implements every tool. Adding a tool means adding its Args type
// and a method here, so an incomplete handler set fails to compile.
type Handlers interface {
	SearchKnowledgeBase(ctx context.Context, env Env, args SearchKnowledgeBaseArgs) Result
	CheckCalendarAvailability(ctx context.Context, env Env, args CheckCalendarAvailabilityArgs) Result
	CreateCalendarEvent(ctx context.Context, env Env, args CreateCalendarEventArgs) Result
	GetBusinessInfo(ctx context.Context, env Env, args GetBusinessInfoArgs) Result
	ListAvailableDocuments(ctx context.Context, env Env, args ListAvailableDocumentsArgs) Result
	CreateSupportTicket(ctx context.Context, env Env, args CreateSupportTicketArgs) Result
	SendEmailNotification(ctx context.Context, env Env, args SendEmailNotificationArgs) Result
	GetOrderStatus(ctx context.Context, env Env, args GetOrderStatusArgs) Result
}

type SearchKnowledgeBaseArgs struct {
	Query string `mapstructure:"query" validate:"required"`
}

func (*SearchKnowledgeBaseArgs) Tool() string { return SearchKnowledgeBase }

func (a *SearchKnowledgeBaseArgs) dispatch(ctx context.Context, env Env, h Handlers) Result {
	return h.SearchKnowledgeBase(ctx, env, *a)
}

type CheckCalendarAvailabilityArgs struct {
	Date    string `mapstructure:"date" validate:"required,calendar_date"`
	TimeMin string `mapstructure:"timeMin" validate:"omitempty,clock"`
	TimeMax string `mapstructure:"timeMax" validate:"omitempty,clock"`
}

func (*CheckCalendarAvailabilityArgs) Tool() string { return CheckCalendarAvailability }

func (a *CheckCalendarAvailabilityArgs) dispatch(ctx context.Context, env Env, h Handlers) Result {
	return h.CheckCalendarAvailability(ctx, env, *a)
}

type CreateCalendarEventArgs struct {
	Title         string `mapstructure:"title" validate:"required"`
	Description   string `mapstructure:"description"`
	StartDateTime string `mapstructure:"startDateTime" validate:"required,iso_datetime"`
	EndDateTime   string `mapstructure:"endDateTime" validate:"required,iso_datetime"`
	AttendeeEmail string `mapstructure:"attendeeEmail" validate:"required,email"`
}

func (*CreateCalendarEventArgs) Tool() string { return CreateCalendarEvent }

func (a *CreateCalendarEventArgs) dispatch(ctx context.Context, env Env, h Handlers) Result {
	return h.CreateCalendarEvent(ctx, env, *a)
}

type GetBusinessInfoArgs struct {
	InfoType string `mapstructure:"infoType" validate:"required,oneof=hours contact policy faq general"`
}

func (*GetBusinessInfoArgs) Tool() string { return GetBusinessInfo }

func (a *GetBusinessInfoArgs) dispatch(ctx context.Context, env Env, h Handlers) Result {
	return h.GetBusinessInfo(ctx, env, *a)
}

type ListAvailableDocumentsArgs struct {
	FileType string `mapstructure:"fileType"`
}

func (*ListAvailableDocumentsArgs) Tool() string { return ListAvailableDocuments }

func (a *ListAvailableDocumentsArgs) dispatch(ctx context.Context, env Env, h Handlers) Result {
	return h.ListAvailableDocuments(ctx, env, *a)
}

type CreateSupportTicketArgs struct {
	Subject     string `mapstructure:"subject" validate:"required"`
	Description string `mapstructure:"description" validate:"required"`
	Priority    string `mapstructure:"priority" validate:"required,oneof=low medium high urgent"`
	Category    string `mapstructure:"category" validate:"required,oneof=technical billing product general"`
}

func (*CreateSupportTicketArgs) Tool() string { return CreateSupportTicket }

func (a *CreateSupportTicketArgs) dispatch(ctx context.Context, env Env, h Handlers) Result {
	return h.CreateSupportTicket(ctx, env, *a)
}

type SendEmailNotificationArgs struct {
	RecipientEmail string `mapstructure:"recipientEmail" validate:"required,email"`
	Subject        string `mapstructure:"subject" validate:"required"`
	Body           string `mapstructure:"body" validate:"required"`
	TemplateType   string `mapstructure:"templateType" validate:"required,oneof=confirmation followup information alert"`
}

func (*SendEmailNotificationArgs) Tool() string { return SendEmailNotification }

func (a *SendEmailNotificationArgs) dispatch(ctx context.Context, env Env, h Handlers) Result {
	return h.SendEmailNotification(ctx, env, *a)
}

type GetOrderStatusArgs struct {
	OrderID string `mapstructure:"orderId" validate:"required"`
}

func (*GetOrderStatusArgs) Tool() string { return GetOrderStatus }

func (a *GetOrderStatusArgs) dispatch(ctx context.Context, env Env, h Handlers) Result {
	return h.GetOrderStatus(ctx, env, *a)
}

// newArgs maps each catalog entry to its argument type
var newArgs = map[string]func() Args{
	SearchKnowledgeBase:       func() Args { return &SearchKnowledgeBaseArgs{} },
	CheckCalendarAvailability: func() Args { return &CheckCalendarAvailabilityArgs{} },
	CreateCalendarEvent:       func() Args { return &CreateCalendarEventArgs{} },
	GetBusinessInfo:           func() Args { return &GetBusinessInfoArgs{} },
	ListAvailableDocuments:    func() Args { return &ListAvailableDocumentsArgs{} },
	CreateSupportTicket:       func() Args { return &CreateSupportTicketArgs{} },
	SendEmailNotification:     func() Args { return &SendEmailNotificationArgs{} },
	GetOrderStatus:            func() Args { return &GetOrderStatusArgs{} },
}
