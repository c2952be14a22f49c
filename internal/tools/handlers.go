package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"go.uber.org/zap"
)

const (
	notConnectedAvailability = "It looks like you're not connected to your Google Calendar yet. To check your availability, you'll need to link your calendar first. You can do this by going to the Integrations tab and clicking 'Connect Google Calendar'. Once that's done, I'll be happy to check your schedule for you!"
	notConnectedEvent        = "Please connect your Google Calendar first. Go to Integrations tab and click 'Connect Google Calendar'."
	availabilityFailed       = "Failed to check calendar availability. Please try reconnecting Google Calendar."

	businessInfoLimit = 5
	documentListLimit = 20
)

// Retriever finds document context for a query
type Retriever interface {
	Search(ctx context.Context, tenantID, query string, k int) []domain.RetrievalResult
}

// DocumentLister lists a tenant's uploaded documents
type DocumentLister interface {
	ListByTenant(ctx context.Context, tenantID, fileType string, limit, offset int) ([]*domain.Document, error)
}

// SupportStore persists the records tools read and write
type SupportStore interface {
	ListBusinessInfo(ctx context.Context, tenantID, infoType string, limit int) ([]*domain.BusinessInfo, error)
	CreateTicket(ctx context.Context, ticket *domain.SupportTicket) error
	QueueNotification(ctx context.Context, n *domain.EmailNotification) error
	GetOrder(ctx context.Context, tenantID, orderID string) (*domain.Order, error)
	CreateCalendarEvent(ctx context.Context, ev *domain.CalendarEvent) error
	FinishCalendarEvent(ctx context.Context, ev *domain.CalendarEvent) error
}

// Deps are the collaborators of the built-in handlers
type Deps struct {
	Retriever Retriever
	Documents DocumentLister
	Support   SupportStore
	Calendar  CalendarConnector
	Now       func() time.Time
}

type handlerSet struct {
	deps   Deps
	rag    config.RAGConfig
	cal    config.CalendarConfig
	logger *zap.Logger
}

var _ Handlers = (*handlerSet)(nil)

// NewHandlers returns the built-in implementation of every tool
func NewHandlers(cfg *config.Config, deps Deps, logger *zap.Logger) Handlers {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &handlerSet{deps: deps, rag: cfg.RAG, cal: cfg.Calendar, logger: logger.Named("tools")}
}

func (h *handlerSet) location(env Env) *time.Location {
	for _, name := range []string{env.Timezone, h.cal.Timezone} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

func (h *handlerSet) calendarID(env Env) string {
	if env.CalendarID != "" {
		return env.CalendarID
	}
	if h.cal.DefaultID != "" {
		return h.cal.DefaultID
	}
	return "primary"
}

func (h *handlerSet) SearchKnowledgeBase(ctx context.Context, env Env, args SearchKnowledgeBaseArgs) Result {
	found := h.deps.Retriever.Search(ctx, env.TenantID, args.Query, h.rag.ToolTopK)

	results := make([]map[string]any, 0, len(found))
	for _, r := range found {
		source := r.Filename
		if source == "" {
			source = "Business Info"
		}
		results = append(results, map[string]any{
			"content":    r.Content,
			"source":     source,
			"similarity": r.Similarity,
		})
	}

	return Success("", Data{
		"results": results,
		"summary": fmt.Sprintf("Found %d relevant documents", len(found)),
	})
}

func (h *handlerSet) CheckCalendarAvailability(ctx context.Context, env Env, args CheckCalendarAvailabilityArgs) Result {
	w := repairWindow(args.TimeMin, args.TimeMax, h.cal.BusinessDayStart, h.cal.BusinessDayEnd)

	if env.Credentials.GoogleAccessToken == "" {
		return Fail(FailureNotConnected, notConnectedAvailability)
	}

	loc := h.location(env)
	day, err := resolveDate(args.Date, h.deps.Now(), loc)
	if err != nil {
		return Fail(FailureValidation, "date must be YYYY-MM-DD, today or tomorrow")
	}
	start, end := atClock(day, w.Min), atClock(day, w.Max)

	cal, err := h.deps.Calendar(ctx, env.Credentials.GoogleAccessToken)
	if err != nil {
		h.logger.Warn("calendar connect failed", zap.String("tenant_id", env.TenantID), zap.Error(err))
		return Fail(FailureUpstream, availabilityFailed)
	}
	busy, err := cal.FreeBusy(ctx, h.calendarID(env), start, end)
	if err != nil {
		h.logger.Warn("free/busy query failed", zap.String("tenant_id", env.TenantID), zap.Error(err))
		if ctx.Err() != nil {
			return Fail(FailureTimeout, availabilityFailed)
		}
		return Fail(FailureUpstream, availabilityFailed)
	}

	step := time.Duration(h.cal.SlotMinutes) * time.Minute
	if step <= 0 {
		step = 30 * time.Minute
	}
	slots := freeSlots(start, end, busy, step)

	freeAtRequested := false
	for _, s := range slots {
		if s.Start.Equal(start) {
			freeAtRequested = true
			break
		}
	}

	formattedDate := day.Format("Mon, Jan 2")
	var message string
	if freeAtRequested {
		message = fmt.Sprintf("Yes! You're free on %s at %s. ", formattedDate, w.Min)
	} else {
		message = fmt.Sprintf("You're busy on %s at %s. ", formattedDate, w.Min)
	}
	if len(slots) > 0 {
		message += fmt.Sprintf("Available slots on this day: %d slots between %s and %s.", len(slots), w.Min, w.Max)
	} else {
		message += fmt.Sprintf("No available slots between %s and %s.", w.Min, w.Max)
	}

	return Success(message, Data{
		"availableSlots":        renderIntervals(slots),
		"busySlots":             renderIntervals(busy),
		"isFreeAtRequestedTime": freeAtRequested,
		"requestedTime":         w.Min,
		"date":                  formattedDate,
	})
}

func (h *handlerSet) CreateCalendarEvent(ctx context.Context, env Env, args CreateCalendarEventArgs) Result {
	if env.Credentials.GoogleAccessToken == "" {
		return Fail(FailureNotConnected, notConnectedEvent)
	}

	loc := h.location(env)
	start, err := parseDateTime(args.StartDateTime, loc)
	if err != nil {
		return Fail(FailureValidation, err.Error())
	}
	end, err := parseDateTime(args.EndDateTime, loc)
	if err != nil {
		return Fail(FailureValidation, err.Error())
	}
	if !end.After(start) {
		return Fail(FailureValidation, "endDateTime must be after startDateTime")
	}

	record := &domain.CalendarEvent{
		TenantID:      env.TenantID,
		UserID:        env.UserID,
		Title:         args.Title,
		Description:   args.Description,
		StartTime:     start.Format(time.RFC3339),
		EndTime:       end.Format(time.RFC3339),
		AttendeeEmail: args.AttendeeEmail,
		Status:        domain.CalendarEventPending,
	}
	recorded := true
	if err := h.deps.Support.CreateCalendarEvent(ctx, record); err != nil {
		recorded = false
		h.logger.Error("failed to record pending calendar event", zap.String("tenant_id", env.TenantID), zap.Error(err))
	}

	cal, err := h.deps.Calendar(ctx, env.Credentials.GoogleAccessToken)
	var created *CreatedEvent
	if err == nil {
		created, err = cal.CreateEvent(ctx, h.calendarID(env), EventRequest{
			Summary:       args.Title,
			Description:   args.Description,
			Start:         start,
			End:           end,
			TimeZone:      loc.String(),
			AttendeeEmail: args.AttendeeEmail,
		})
	}

	if err != nil {
		record.Status = domain.CalendarEventFailed
		record.Error = err.Error()
	} else {
		record.Status = domain.CalendarEventConfirmed
		record.RemoteID = created.ID
		record.Link = created.Link
	}
	if recorded {
		// The remote outcome is already final, so finish with a context that
		// survives cancellation of the turn.
		if ferr := h.deps.Support.FinishCalendarEvent(context.WithoutCancel(ctx), record); ferr != nil {
			h.logger.Error("failed to finalise calendar event record", zap.String("event_id", record.ID), zap.Error(ferr))
		}
	}

	if err != nil {
		h.logger.Warn("calendar event creation failed", zap.String("tenant_id", env.TenantID), zap.Error(err))
		return Fail(FailureMutation, "Failed to create calendar event: "+err.Error())
	}

	when := start.In(loc).Format("Mon, Jan 2, 3:04 PM")
	return Success(
		fmt.Sprintf("✅ Meeting \"%s\" scheduled for %s. Calendar invite sent to %s.", args.Title, when, args.AttendeeEmail),
		Data{"eventId": created.ID, "eventLink": created.Link},
	)
}

func (h *handlerSet) GetBusinessInfo(ctx context.Context, env Env, args GetBusinessInfoArgs) Result {
	infos, err := h.deps.Support.ListBusinessInfo(ctx, env.TenantID, args.InfoType, businessInfoLimit)
	if err != nil {
		h.logger.Warn("business info lookup failed", zap.String("tenant_id", env.TenantID), zap.Error(err))
		return Fail(FailureUpstream, "Failed to load business information.")
	}
	if infos == nil {
		infos = []*domain.BusinessInfo{}
	}
	return Success("", Data{"information": infos, "count": len(infos)})
}

func (h *handlerSet) ListAvailableDocuments(ctx context.Context, env Env, args ListAvailableDocumentsArgs) Result {
	docs, err := h.deps.Documents.ListByTenant(ctx, env.TenantID, args.FileType, documentListLimit, 0)
	if err != nil {
		h.logger.Warn("document listing failed", zap.String("tenant_id", env.TenantID), zap.Error(err))
		return Fail(FailureUpstream, "Failed to list documents.")
	}

	listed := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		listed = append(listed, map[string]any{
			"file_name":  d.Filename,
			"file_type":  d.FileType,
			"file_size":  d.FileSize,
			"created_at": d.CreatedAt,
		})
	}
	return Success("", Data{"documents": listed, "count": len(listed)})
}

func (h *handlerSet) CreateSupportTicket(ctx context.Context, env Env, args CreateSupportTicketArgs) Result {
	ticket := &domain.SupportTicket{
		TenantID:      env.TenantID,
		UserID:        env.UserID,
		CustomerEmail: env.UserEmail,
		Subject:       args.Subject,
		Description:   args.Description,
		Priority:      args.Priority,
		Category:      args.Category,
	}
	if err := h.deps.Support.CreateTicket(ctx, ticket); err != nil {
		h.logger.Error("support ticket insert failed", zap.String("tenant_id", env.TenantID), zap.Error(err))
		return Fail(FailureMutation, "Failed to create support ticket: "+err.Error())
	}

	return Success(
		fmt.Sprintf("Support ticket #%d created. Our team will respond within 24 hours.", ticket.ID),
		Data{"ticketId": ticket.ID},
	)
}

func (h *handlerSet) SendEmailNotification(ctx context.Context, env Env, args SendEmailNotificationArgs) Result {
	n := &domain.EmailNotification{
		TenantID:       env.TenantID,
		UserID:         env.UserID,
		RecipientEmail: args.RecipientEmail,
		Subject:        args.Subject,
		Body:           args.Body,
		TemplateType:   args.TemplateType,
	}
	if err := h.deps.Support.QueueNotification(ctx, n); err != nil {
		h.logger.Error("notification insert failed", zap.String("tenant_id", env.TenantID), zap.Error(err))
		return Fail(FailureMutation, "Failed to queue email: "+err.Error())
	}
	return Success("Email queued to "+args.RecipientEmail, nil)
}

func (h *handlerSet) GetOrderStatus(ctx context.Context, env Env, args GetOrderStatusArgs) Result {
	order, err := h.deps.Support.GetOrder(ctx, env.TenantID, args.OrderID)
	if err != nil {
		h.logger.Warn("order lookup failed", zap.String("tenant_id", env.TenantID), zap.Error(err))
		return Fail(FailureUpstream, fmt.Sprintf("Order %s could not be looked up right now.", args.OrderID))
	}
	if order == nil {
		return Fail(FailureNotFound, fmt.Sprintf("Order %s not found. Please verify the order number.", args.OrderID))
	}

	return Success(
		fmt.Sprintf("Order %s is currently %s. Expected delivery: %s", args.OrderID, order.Status, order.DeliveryDate),
		Data{"order": order},
	)
}

func renderIntervals(in []Interval) []map[string]string {
	out := make([]map[string]string, 0, len(in))
	for _, i := range in {
		out = append(out, map[string]string{
			"start": i.Start.Format(time.RFC3339),
			"end":   i.End.Format(time.RFC3339),
		})
	}
	return out
}
