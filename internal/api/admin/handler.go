package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askdesk/internal/api/httperr"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/service"
	"go.uber.org/zap"
)

// Handler handles admin API requests
type Handler struct {
	adminService  *service.AdminService
	ingestService *service.IngestService
	logger        *zap.Logger
}

// NewHandler creates a new admin handler
func NewHandler(adminService *service.AdminService, ingestService *service.IngestService, logger *zap.Logger) *Handler {
	return &Handler{
		adminService:  adminService,
		ingestService: ingestService,
		logger:        logger.Named("admin-api"),
	}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	tenants := r.Group("/tenants")
	{
		tenants.POST("", h.CreateTenant)
		tenants.GET("", h.ListTenants)
		tenants.GET("/:id", h.GetTenant)
		tenants.PUT("/:id", h.UpdateTenant)
		tenants.DELETE("/:id", h.DeleteTenant)
		tenants.POST("/:id/documents", h.UploadDocument)
		tenants.GET("/:id/documents", h.ListDocuments)
		tenants.POST("/:id/business-info", h.CreateBusinessInfo)
		tenants.GET("/:id/business-info", h.ListBusinessInfo)
		tenants.POST("/:id/orders", h.UpsertOrder)
		tenants.GET("/:id/tickets", h.ListTickets)
		tenants.GET("/:id/tool-invocations", h.ListToolInvocations)
	}

	documents := r.Group("/documents")
	{
		documents.GET("/:id", h.GetDocument)
		documents.DELETE("/:id", h.DeleteDocument)
		documents.POST("/:id/reprocess", h.ReprocessDocument)
	}

	r.GET("/stats", h.GetStats)
}

// Tenant handlers

func (h *Handler) CreateTenant(c *gin.Context) {
	var req domain.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant, err := h.adminService.CreateTenant(c.Request.Context(), &req)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, tenant)
}

func (h *Handler) ListTenants(c *gin.Context) {
	tenants, err := h.adminService.ListTenants(c.Request.Context())
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tenants": tenants})
}

func (h *Handler) GetTenant(c *gin.Context) {
	tenant, err := h.adminService.GetTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, tenant)
}

func (h *Handler) UpdateTenant(c *gin.Context) {
	var req domain.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant, err := h.adminService.UpdateTenant(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, tenant)
}

func (h *Handler) DeleteTenant(c *gin.Context) {
	if err := h.adminService.DeleteTenant(c.Request.Context(), c.Param("id")); err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "tenant deleted"})
}

// Document handlers

// UploadDocument stores and processes a multipart file. A file that was
// stored but failed processing is reported with its failed document so the
// caller can reprocess it.
func (h *Handler) UploadDocument(c *gin.Context) {
	tenantID := c.Param("id")

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	metadata := make(map[string]any)
	if metaStr := c.PostForm("metadata"); metaStr != "" {
		if err := json.Unmarshal([]byte(metaStr), &metadata); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid metadata JSON"})
			return
		}
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	defer src.Close()

	ctx := c.Request.Context()
	doc, err := h.ingestService.Upload(ctx, service.UploadRequest{
		TenantID:     tenantID,
		Filename:     file.Filename,
		DeclaredType: c.PostForm("type"),
		Content:      src,
		Metadata:     metadata,
	})
	if err != nil {
		httperr.Write(c, err)
		return
	}

	result, err := h.ingestService.Process(ctx, doc.ID)
	if err != nil {
		h.logger.Warn("upload processing failed",
			zap.String("tenant_id", tenantID),
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
		c.JSON(httperr.Status(err), gin.H{
			"error":      err.Error(),
			"documentId": doc.ID,
			"processed":  false,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"documentId":      doc.ID,
		"processed":       result.Processed,
		"chunksProcessed": result.ChunksProcessed,
		"totalChunks":     result.TotalChunks,
		"textLength":      result.TextLength,
	})
}

func (h *Handler) ListDocuments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.adminService.ListDocuments(c.Request.Context(), c.Param("id"), c.Query("type"), page, pageSize)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetDocument(c *gin.Context) {
	document, err := h.adminService.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, document)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.ingestService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "document deleted"})
}

func (h *Handler) ReprocessDocument(c *gin.Context) {
	result, err := h.ingestService.Reprocess(c.Request.Context(), c.Param("id"))
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Support data handlers

func (h *Handler) CreateBusinessInfo(c *gin.Context) {
	var info domain.BusinessInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.adminService.CreateBusinessInfo(c.Request.Context(), c.Param("id"), &info)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListBusinessInfo(c *gin.Context) {
	infos, err := h.adminService.ListBusinessInfo(c.Request.Context(), c.Param("id"), c.Query("type"))
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"business_info": infos})
}

func (h *Handler) UpsertOrder(c *gin.Context) {
	var order domain.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.adminService.UpsertOrder(c.Request.Context(), c.Param("id"), &order)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, saved)
}

func (h *Handler) ListTickets(c *gin.Context) {
	tickets, err := h.adminService.ListTickets(c.Request.Context(), c.Param("id"))
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (h *Handler) ListToolInvocations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	invocations, err := h.adminService.ListToolInvocations(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tool_invocations": invocations})
}

// Stats

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.adminService.GetStats(c.Request.Context())
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
