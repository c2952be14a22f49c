package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/llm"
	"github.com/liliang-cn/askdesk/internal/repository"
	"github.com/liliang-cn/askdesk/internal/service"
	"github.com/liliang-cn/askdesk/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const apiKey = "test-key"

type memVectors struct {
	mu     sync.Mutex
	chunks map[string][]domain.Chunk
}

func (m *memVectors) Insert(_ context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.DocumentID] = append(m.chunks[c.DocumentID], c)
	}
	return nil
}

func (m *memVectors) DeleteByDocument(_ context.Context, _, documentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.chunks[documentID])
	delete(m.chunks, documentID)
	return int64(n), nil
}

func (m *memVectors) CountByDocument(_ context.Context, _, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks[documentID]), nil
}

func (m *memVectors) Search(context.Context, vectorstore.SearchQuery) ([]domain.RetrievalResult, error) {
	return nil, nil
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e unitEmbedder) EmbedBatch(ctx context.Context, texts []string) []llm.EmbedResult {
	out := make([]llm.EmbedResult, len(texts))
	for i := range texts {
		out[i].Vector, _ = e.Embed(ctx, texts[i])
	}
	return out
}

type echoOrchestrator struct{}

func (echoOrchestrator) Chat(_ context.Context, turn service.Turn) (*service.Reply, error) {
	return &service.Reply{Message: "echo: " + turn.Message, Sources: []domain.Source{}, ToolsUsed: []domain.ToolUse{}}, nil
}

func (echoOrchestrator) History(context.Context, string, string, int) ([]*domain.Message, error) {
	return []*domain.Message{}, nil
}

type testServer struct {
	router  *gin.Engine
	vectors *memVectors
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	cfg := config.Default()
	cfg.Storage.Documents = t.TempDir()
	cfg.Vector.Dimension = 3
	cfg.RAG.ChunkSize = 200
	cfg.RAG.ChunkOverlap = 20
	cfg.RAG.MinChunkLength = 10

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tenants := repository.NewTenantRepository(db)
	docs := repository.NewDocumentRepository(db)
	vectors := &memVectors{chunks: map[string][]domain.Chunk{}}
	ingest := service.NewIngestService(cfg, docs, tenants, vectors, unitEmbedder{}, logger)
	admin := service.NewAdminService(
		tenants,
		docs,
		repository.NewMessageRepository(db),
		repository.NewSupportRepository(db),
		repository.NewAuditRepository(db),
		ingest,
		logger,
	)

	router := SetupRouter(echoOrchestrator{}, admin, ingest, RouterConfig{APIKey: apiKey, AllowOrigins: []string{"*"}}, logger)
	return &testServer{router: router, vectors: vectors}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, tenantID, filename, declaredType, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	if declaredType != "" {
		require.NoError(t, mw.WriteField("type", declaredType))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/tenants/"+tenantID+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+apiKey)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAdminRequiresKey(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatIsPublic(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/acme", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "echo: hi", decode(t, w)["message"])
}

func TestUploadLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/admin/tenants", map[string]any{"id": "acme", "name": "Acme"})
	require.Equal(t, http.StatusCreated, w.Code)

	text := strings.Repeat("Our support desk answers every ticket within one business day. ", 10)
	w = s.upload(t, "acme", "support.txt", "", text)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["processed"])
	assert.Greater(t, body["chunksProcessed"].(float64), float64(0))
	assert.Equal(t, body["chunksProcessed"], body["totalChunks"])
	assert.Equal(t, float64(len(strings.TrimSpace(text))), body["textLength"])
	docID := body["documentId"].(string)

	w = s.do(t, http.MethodGet, "/api/admin/documents/"+docID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "processed", decode(t, w)["status"])

	w = s.do(t, http.MethodPost, "/api/admin/documents/"+docID+"/reprocess", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/tenants/acme/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total"])

	w = s.do(t, http.MethodDelete, "/api/admin/documents/"+docID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, s.vectors.chunks)

	w = s.do(t, http.MethodGet, "/api/admin/documents/"+docID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/admin/tenants", map[string]any{"id": "acme", "name": "Acme"}).Code)

	w := s.upload(t, "acme", "logo.png", "", "binary")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.upload(t, "acme", "blob.bin", "txt", "tiny")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["processed"])
	assert.NotEmpty(t, body["documentId"])

	w = s.upload(t, "ghost", "notes.txt", "", "plenty of text here")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSupportDataRoutes(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/admin/tenants", map[string]any{"id": "acme", "name": "Acme"}).Code)

	w := s.do(t, http.MethodPost, "/api/admin/tenants/acme/business-info", map[string]any{"info_type": "hours", "content": "9-5"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/tenants/acme/business-info", map[string]any{"info_type": "weather", "content": "sunny"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/tenants/acme/orders", map[string]any{"order_id": "1001", "status": "shipped"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/tenants/acme/tickets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["tickets"])

	w = s.do(t, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total_tenants"])
}
