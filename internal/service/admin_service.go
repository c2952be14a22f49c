package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/repository"
	"go.uber.org/zap"
)

// AdminService handles admin operations
type AdminService struct {
	tenantRepo   *repository.TenantRepository
	documentRepo *repository.DocumentRepository
	messageRepo  *repository.MessageRepository
	supportRepo  *repository.SupportRepository
	auditRepo    *repository.AuditRepository
	ingest       *IngestService
	logger       *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	tenantRepo *repository.TenantRepository,
	documentRepo *repository.DocumentRepository,
	messageRepo *repository.MessageRepository,
	supportRepo *repository.SupportRepository,
	auditRepo *repository.AuditRepository,
	ingest *IngestService,
	logger *zap.Logger,
) *AdminService {
	return &AdminService{
		tenantRepo:   tenantRepo,
		documentRepo: documentRepo,
		messageRepo:  messageRepo,
		supportRepo:  supportRepo,
		auditRepo:    auditRepo,
		ingest:       ingest,
		logger:       logger.Named("admin"),
	}
}

// Tenant operations

func (s *AdminService) CreateTenant(ctx context.Context, req *domain.CreateTenantRequest) (*domain.Tenant, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if err := validTimezone(req.Timezone); err != nil {
		return nil, err
	}

	tenant := &domain.Tenant{
		ID:           req.ID,
		Name:         req.Name,
		SystemPrompt: req.SystemPrompt,
		CalendarID:   req.CalendarID,
		Timezone:     req.Timezone,
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}
	s.logger.Info("tenant created", zap.String("tenant_id", tenant.ID))
	return tenant, nil
}

func (s *AdminService) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	tenant, err := s.tenantRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, fmt.Errorf("tenant %s: %w", id, domain.ErrNotFound)
	}
	return tenant, nil
}

func (s *AdminService) ListTenants(ctx context.Context) ([]*domain.Tenant, error) {
	tenants, err := s.tenantRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if tenants == nil {
		tenants = []*domain.Tenant{}
	}
	return tenants, nil
}

func (s *AdminService) UpdateTenant(ctx context.Context, id string, req *domain.UpdateTenantRequest) (*domain.Tenant, error) {
	tenant, err := s.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validTimezone(req.Timezone); err != nil {
		return nil, err
	}

	if req.Name != "" {
		tenant.Name = req.Name
	}
	if req.SystemPrompt != "" {
		tenant.SystemPrompt = req.SystemPrompt
	}
	if req.CalendarID != "" {
		tenant.CalendarID = req.CalendarID
	}
	if req.Timezone != "" {
		tenant.Timezone = req.Timezone
	}

	if err := s.tenantRepo.Update(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// DeleteTenant removes a tenant with its documents and their chunks
func (s *AdminService) DeleteTenant(ctx context.Context, id string) error {
	if _, err := s.GetTenant(ctx, id); err != nil {
		return err
	}

	const page = 100
	for {
		docs, err := s.documentRepo.ListByTenant(ctx, id, "", page, 0)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			break
		}
		for _, doc := range docs {
			if err := s.ingest.Delete(ctx, doc.ID); err != nil {
				return fmt.Errorf("failed to delete document %s: %w", doc.ID, err)
			}
		}
	}

	return s.tenantRepo.Delete(ctx, id)
}

// Document operations

func (s *AdminService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := s.documentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, nil
}

func (s *AdminService) ListDocuments(ctx context.Context, tenantID, fileType string, page, pageSize int) (*domain.DocumentListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	docs, err := s.documentRepo.ListByTenant(ctx, tenantID, fileType, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	total, err := s.documentRepo.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &domain.DocumentListResponse{
		Documents: docs,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	}, nil
}

// Support data

func (s *AdminService) CreateBusinessInfo(ctx context.Context, tenantID string, info *domain.BusinessInfo) (*domain.BusinessInfo, error) {
	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	info.TenantID = tenantID
	if info.Title == "" {
		info.Title = info.InfoType
	}
	if err := s.supportRepo.CreateBusinessInfo(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (s *AdminService) ListBusinessInfo(ctx context.Context, tenantID, infoType string) ([]*domain.BusinessInfo, error) {
	infos, err := s.supportRepo.ListBusinessInfo(ctx, tenantID, infoType, 100)
	if err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []*domain.BusinessInfo{}
	}
	return infos, nil
}

func (s *AdminService) UpsertOrder(ctx context.Context, tenantID string, order *domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.OrderID) == "" {
		return nil, domain.NewValidationError("order_id", "is required")
	}
	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	order.TenantID = tenantID
	if err := s.supportRepo.UpsertOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *AdminService) ListTickets(ctx context.Context, tenantID string) ([]*domain.SupportTicket, error) {
	tickets, err := s.supportRepo.ListTickets(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []*domain.SupportTicket{}
	}
	return tickets, nil
}

func (s *AdminService) ListToolInvocations(ctx context.Context, tenantID string, limit int) ([]*domain.ToolInvocation, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	invocations, err := s.auditRepo.ListInvocations(ctx, tenantID, limit)
	if err != nil {
		return nil, err
	}
	if invocations == nil {
		invocations = []*domain.ToolInvocation{}
	}
	return invocations, nil
}

// Stats

func (s *AdminService) GetStats(ctx context.Context) (*domain.Stats, error) {
	tenants, err := s.tenantRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.documentRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	chats, err := s.messageRepo.CountChats(ctx)
	if err != nil {
		return nil, err
	}
	invocations, err := s.auditRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.Stats{
		TotalTenants:         tenants,
		TotalDocuments:       docs,
		TotalChats:           chats,
		TotalToolInvocations: invocations,
	}, nil
}

func validTimezone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return &domain.ValidationError{Field: "timezone", Message: "is not a known time zone", Err: err}
	}
	return nil
}
