package domain

import "time"

// DocumentStatus is a step of the ingestion state machine
type DocumentStatus string

// Ingestion states. Processed and Failed are terminal.
const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusExtracting DocumentStatus = "extracting"
	DocumentStatusChunking   DocumentStatus = "chunking"
	DocumentStatusEmbedding  DocumentStatus = "embedding"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Chunk metadata keys
const (
	MetadataKeyFilename = "filename"
	MetadataKeyFileType = "file_type"
	MetadataKeyOrdinal  = "ordinal"
)

// Document is an uploaded source file and its ingestion state
type Document struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	Filename    string         `json:"filename"`
	FileType    string         `json:"file_type"`
	FileSize    int64          `json:"file_size"`
	StoragePath string         `json:"-"`
	Status      DocumentStatus `json:"status"`
	ChunkCount  int            `json:"chunk_count"`
	TotalChunks int            `json:"total_chunks"`
	TextLength  int            `json:"text_length"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
}

// Chunk is an embedded slice of a document. Chunks are never updated,
// only deleted together when their document is reprocessed.
type Chunk struct {
	ID           string         `json:"id"`
	DocumentID   string         `json:"document_id"`
	TenantID     string         `json:"tenant_id"`
	Content      string         `json:"content"`
	Embedding    []float32      `json:"-"`
	Ordinal      int            `json:"ordinal"`
	SiblingCount int            `json:"sibling_count"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// IngestResult is returned by the upload entry point
type IngestResult struct {
	DocumentID      string `json:"documentId"`
	Processed       bool   `json:"processed"`
	ChunksProcessed int    `json:"chunksProcessed"`
	TotalChunks     int    `json:"totalChunks"`
	TextLength      int    `json:"textLength"`
}

// DocumentListResponse is the response for listing documents
type DocumentListResponse struct {
	Documents []*Document `json:"documents"`
	Total     int         `json:"total"`
	Page      int         `json:"page"`
	PageSize  int         `json:"page_size"`
}
