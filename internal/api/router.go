package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askdesk/internal/api/admin"
	"github.com/liliang-cn/askdesk/internal/api/chat"
	"github.com/liliang-cn/askdesk/internal/api/middleware"
	"github.com/liliang-cn/askdesk/internal/service"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(
	orchestrator chat.Orchestrator,
	adminService *service.AdminService,
	ingestService *service.IngestService,
	cfg RouterConfig,
	logger *zap.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Chat API (public, scoped by tenant_id)
	chatHandler := chat.NewHandler(orchestrator)
	chatHandler.RegisterRoutes(r.Group("/api/chat"))

	// Admin API (requires API key)
	adminHandler := admin.NewHandler(adminService, ingestService, logger)
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.Auth(cfg.APIKey))
	adminHandler.RegisterRoutes(adminGroup)

	return r
}
