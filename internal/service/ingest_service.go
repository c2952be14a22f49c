package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/liliang-cn/askdesk/internal/chunker"
	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/extract"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// UploadRequest is a file handed to the ingestion pipeline
type UploadRequest struct {
	TenantID     string
	Filename     string
	DeclaredType string
	Content      io.Reader
	Metadata     map[string]any
}

// IngestService turns uploaded files into embedded, searchable chunks
type IngestService struct {
	docs      DocumentStore
	tenants   TenantStore
	vectors   VectorStore
	embedder  Embedder
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	cfg       *config.Config
	logger    *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	cfg *config.Config,
	docs DocumentStore,
	tenants TenantStore,
	vectors VectorStore,
	embedder Embedder,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		docs:      docs,
		tenants:   tenants,
		vectors:   vectors,
		embedder:  embedder,
		extractor: extract.New(),
		chunker: chunker.New(
			chunker.WithChunkSize(cfg.RAG.ChunkSize),
			chunker.WithOverlap(cfg.RAG.ChunkOverlap),
			chunker.WithMinLength(cfg.RAG.MinChunkLength),
		),
		cfg:    cfg,
		logger: logger.Named("ingest"),
	}
}

// DetectFileType derives a declared type from a filename extension
func DetectFileType(filename string) string {
	return extract.NormalizeType(filepath.Ext(filename))
}

// Upload validates and stores a file and records it as Uploaded. An
// unsupported type is rejected before anything is written.
func (s *IngestService) Upload(ctx context.Context, req UploadRequest) (*domain.Document, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return nil, domain.NewValidationError("tenant_id", "is required")
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, domain.NewValidationError("filename", "is required")
	}

	fileType := extract.NormalizeType(req.DeclaredType)
	if fileType == "" {
		fileType = DetectFileType(req.Filename)
	}
	if !s.extractor.Supports(fileType) {
		return nil, &domain.ValidationError{
			Field:   "file_type",
			Message: fmt.Sprintf("%q is not supported", fileType),
			Err:     domain.ErrUnsupportedType,
		}
	}

	tenant, err := s.tenants.Get(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return nil, fmt.Errorf("tenant %s: %w", req.TenantID, domain.ErrNotFound)
	}

	storageDir := filepath.Join(s.cfg.Storage.Documents, req.TenantID)
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	docID := uuid.New().String()
	storagePath := filepath.Join(storageDir, docID+"."+fileType)

	dst, err := os.Create(storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage file: %w", err)
	}
	size, err := io.Copy(dst, req.Content)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(storagePath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	doc := &domain.Document{
		ID:          docID,
		TenantID:    req.TenantID,
		Filename:    filepath.Base(req.Filename),
		FileType:    fileType,
		FileSize:    size,
		StoragePath: storagePath,
		Status:      domain.DocumentStatusUploaded,
		Metadata:    req.Metadata,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		os.Remove(storagePath)
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	s.logger.Info("document uploaded",
		zap.String("tenant_id", doc.TenantID),
		zap.String("document_id", doc.ID),
		zap.String("file_type", fileType),
		zap.Int64("size", size),
	)
	return doc, nil
}

// Ingest uploads and processes a file in one call
func (s *IngestService) Ingest(ctx context.Context, req UploadRequest) (*domain.IngestResult, error) {
	doc, err := s.Upload(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Process(ctx, doc.ID)
}

// Process runs the pipeline for an uploaded document:
// Uploaded → Extracting → Chunking → Embedding → Processed, or Failed.
// Chunks whose embedding fails are skipped; the rest are stored.
func (s *IngestService) Process(ctx context.Context, documentID string) (*domain.IngestResult, error) {
	ctx, span := tracer.Start(ctx, "ingest.Process")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	span.SetAttributes(attribute.String("tenant.id", doc.TenantID))
	logger := s.logger.With(zap.String("tenant_id", doc.TenantID), zap.String("document_id", doc.ID))

	result := &domain.IngestResult{DocumentID: doc.ID}
	fail := func(stage string, err error) (*domain.IngestResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		logger.Warn("ingestion failed", zap.String("stage", stage), zap.Error(err))

		doc.Status = domain.DocumentStatusFailed
		doc.Error = err.Error()
		doc.ChunkCount = 0
		if uerr := s.docs.UpdateResult(context.WithoutCancel(ctx), doc); uerr != nil {
			logger.Error("failed to record ingestion failure", zap.Error(uerr))
		}
		return result, fmt.Errorf("%s: %w", stage, err)
	}

	content, err := os.ReadFile(doc.StoragePath)
	if err != nil {
		return fail("read", err)
	}

	if err := s.setStatus(ctx, doc, domain.DocumentStatusExtracting); err != nil {
		return nil, err
	}
	text, err := s.extractor.Extract(ctx, doc.FileType, content)
	if err != nil {
		return fail("extract", err)
	}
	result.TextLength = utf8.RuneCountInString(text)

	if err := s.setStatus(ctx, doc, domain.DocumentStatusChunking); err != nil {
		return nil, err
	}
	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		return fail("chunk", domain.ErrNoTextExtracted)
	}
	result.TotalChunks = len(pieces)

	if err := s.setStatus(ctx, doc, domain.DocumentStatusEmbedding); err != nil {
		return nil, err
	}
	embedded := s.embedder.EmbedBatch(ctx, pieces)

	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, r := range embedded {
		if r.Err != nil {
			logger.Warn("skipping chunk after embedding failure", zap.Int("ordinal", i), zap.Error(r.Err))
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ID:           uuid.New().String(),
			DocumentID:   doc.ID,
			TenantID:     doc.TenantID,
			Content:      pieces[i],
			Embedding:    r.Vector,
			Ordinal:      i,
			SiblingCount: len(pieces),
			Metadata: map[string]any{
				domain.MetadataKeyFilename: doc.Filename,
				domain.MetadataKeyFileType: doc.FileType,
				domain.MetadataKeyOrdinal:  i,
			},
		})
	}

	if err := s.vectors.Insert(ctx, chunks); err != nil {
		return fail("store", err)
	}

	doc.Status = domain.DocumentStatusProcessed
	doc.ChunkCount = len(chunks)
	doc.TotalChunks = len(pieces)
	doc.TextLength = result.TextLength
	doc.Error = ""
	if err := s.docs.UpdateResult(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to record ingestion result: %w", err)
	}

	result.Processed = true
	result.ChunksProcessed = len(chunks)
	logger.Info("document processed",
		zap.Int("chunks", len(chunks)),
		zap.Int("total_chunks", len(pieces)),
		zap.Int("text_length", result.TextLength),
	)
	return result, nil
}

// Reprocess drops a document's chunks and runs the pipeline again from the
// stored source file.
func (s *IngestService) Reprocess(ctx context.Context, documentID string) (*domain.IngestResult, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}

	removed, err := s.vectors.DeleteByDocument(ctx, doc.TenantID, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete chunks: %w", err)
	}
	s.logger.Info("reprocessing document",
		zap.String("tenant_id", doc.TenantID),
		zap.String("document_id", doc.ID),
		zap.Int64("removed_chunks", removed),
	)

	if err := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusUploaded, ""); err != nil {
		return nil, fmt.Errorf("failed to reset document: %w", err)
	}
	return s.Process(ctx, doc.ID)
}

// Delete removes a document's chunks, stored file and record
func (s *IngestService) Delete(ctx context.Context, documentID string) error {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}

	if _, err := s.vectors.DeleteByDocument(ctx, doc.TenantID, doc.ID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := os.Remove(doc.StoragePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove stored file", zap.String("path", doc.StoragePath), zap.Error(err))
	}
	return s.docs.Delete(ctx, doc.ID)
}

func (s *IngestService) setStatus(ctx context.Context, doc *domain.Document, status domain.DocumentStatus) error {
	if err := s.docs.UpdateStatus(ctx, doc.ID, status, ""); err != nil {
		return fmt.Errorf("failed to set status %s: %w", status, err)
	}
	doc.Status = status
	return nil
}
