package chat

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askdesk/internal/api/httperr"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/service"
)

// Orchestrator answers chat turns
type Orchestrator interface {
	Chat(ctx context.Context, turn service.Turn) (*service.Reply, error)
	History(ctx context.Context, tenantID, userID string, limit int) ([]*domain.Message, error)
}

// Handler handles public chat API requests
type Handler struct {
	orchestrator Orchestrator
}

// NewHandler creates a new chat handler
func NewHandler(orchestrator Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

// RegisterRoutes registers chat routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/:tenant_id", h.Chat)
	r.GET("/:tenant_id/history", h.History)
}

// Chat answers one message
func (h *Handler) Chat(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	turn := service.Turn{
		TenantID:     tenantID,
		UserID:       req.UserID,
		UserEmail:    req.UserEmail,
		Message:      req.Message,
		History:      req.History,
		UseRetrieval: enabled(req.UseRetrieval),
		EnableTools:  enabled(req.EnableTools),
	}
	if req.ExternalCredentials != nil {
		turn.Credentials = *req.ExternalCredentials
	}

	reply, err := h.orchestrator.Chat(c.Request.Context(), turn)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.ChatResponse{
		Message:    reply.Message,
		Sources:    reply.Sources,
		ToolsUsed:  reply.ToolsUsed,
		HasContext: reply.HasContext,
	})
}

// History returns a user's recent messages
func (h *Handler) History(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	userID := c.Query("user_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := h.orchestrator.History(c.Request.Context(), tenantID, userID, limit)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// enabled treats an omitted flag as on
func enabled(flag *bool) bool {
	return flag == nil || *flag
}
