package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/askdesk/internal/domain"
)

// DocumentRepository handles document metadata persistence
type DocumentRepository struct {
	db *DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, tenant_id, filename, file_type, file_size, storage_path, status,
	chunk_count, total_chunks, text_length, error, metadata, created_at, updated_at`

// Create creates a new document
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	metadataJSON, _ := json.Marshal(doc.Metadata)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.TenantID, doc.Filename, doc.FileType, doc.FileSize, doc.StoragePath,
		string(doc.Status), doc.ChunkCount, doc.TotalChunks, doc.TextLength, doc.Error,
		string(metadataJSON), doc.CreatedAt, doc.UpdatedAt)

	return err
}

// Get retrieves a document by ID
func (r *DocumentRepository) Get(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

// ListByTenant retrieves a tenant's documents, newest first. An empty fileType
// matches everything; otherwise it is a case-insensitive substring match.
func (r *DocumentRepository) ListByTenant(ctx context.Context, tenantID, fileType string, limit, offset int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE tenant_id = ? AND (? = '' OR lower(file_type) LIKE '%' || lower(?) || '%')
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, tenantID, fileType, fileType, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// CountByTenant returns the number of documents a tenant owns
func (r *DocumentRepository) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE tenant_id = ?`, tenantID).Scan(&count)
	return count, err
}

// Count returns the number of documents across tenants
func (r *DocumentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// UpdateStatus moves a document to another ingestion state
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, string(status), errMsg, time.Now(), id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateResult records the outcome of a pipeline run
func (r *DocumentRepository) UpdateResult(ctx context.Context, doc *domain.Document) error {
	doc.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, chunk_count = ?, total_chunks = ?, text_length = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, string(doc.Status), doc.ChunkCount, doc.TotalChunks, doc.TextLength, doc.Error, doc.UpdatedAt, doc.ID)
	return err
}

// Delete deletes a document
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	doc := &domain.Document{}
	var status string
	var errMsg, metadataJSON sql.NullString

	if err := row.Scan(&doc.ID, &doc.TenantID, &doc.Filename, &doc.FileType, &doc.FileSize,
		&doc.StoragePath, &status, &doc.ChunkCount, &doc.TotalChunks, &doc.TextLength,
		&errMsg, &metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}

	doc.Status = domain.DocumentStatus(status)
	doc.Error = errMsg.String
	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata)
	}

	return doc, nil
}
