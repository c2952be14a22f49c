package main

import (
	"context"
	"fmt"
	"time"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/llm"
	"github.com/liliang-cn/askdesk/internal/repository"
	"github.com/liliang-cn/askdesk/internal/service"
	"github.com/liliang-cn/askdesk/internal/tools"
	"github.com/liliang-cn/askdesk/internal/vectorstore"
	"go.uber.org/zap"
)

// app holds the wired services shared by the commands
type app struct {
	db           *repository.DB
	vectors      *vectorstore.Store
	embedder     *llm.Embedder
	ingest       *service.IngestService
	admin        *service.AdminService
	orchestrator *service.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	vectors, err := vectorstore.New(connectCtx, cfg.Vector)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect vector store: %w", err)
	}
	if err := vectors.Migrate(connectCtx); err != nil {
		vectors.Close()
		db.Close()
		return nil, fmt.Errorf("failed to migrate vector store: %w", err)
	}

	embedder, err := llm.NewEmbedder(cfg, logger)
	if err != nil {
		vectors.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	model, err := llm.NewChatModel(cfg, logger)
	if err != nil {
		embedder.Close()
		vectors.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	tenantRepo := repository.NewTenantRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	supportRepo := repository.NewSupportRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	ingest := service.NewIngestService(cfg, documentRepo, tenantRepo, vectors, embedder, logger)
	retrieval := service.NewRetrievalService(cfg, embedder, vectors, logger)

	handlers := tools.NewHandlers(cfg, tools.Deps{
		Retriever: retrieval,
		Documents: documentRepo,
		Support:   supportRepo,
		Calendar:  tools.GoogleCalendarConnector(),
		Now:       time.Now,
	}, logger)
	executor := tools.NewExecutor(cfg, tools.NewRegistry(), handlers, auditRepo, logger)
	loop := service.NewLoopController(cfg, model, executor, logger)

	return &app{
		db:           db,
		vectors:      vectors,
		embedder:     embedder,
		ingest:       ingest,
		admin:        service.NewAdminService(tenantRepo, documentRepo, messageRepo, supportRepo, auditRepo, ingest, logger),
		orchestrator: service.NewOrchestrator(cfg, tenantRepo, messageRepo, retrieval, model, loop, logger),
	}, nil
}

func (a *app) Close() {
	a.embedder.Close()
	a.vectors.Close()
	a.db.Close()
}
