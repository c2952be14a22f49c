package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/llm"
	"github.com/liliang-cn/askdesk/internal/tools"
	"github.com/liliang-cn/askdesk/internal/vectorstore"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Storage.Documents = t.TempDir()
	cfg.Vector.Dimension = 3
	cfg.RAG.ChunkSize = 120
	cfg.RAG.ChunkOverlap = 20
	cfg.RAG.MinChunkLength = 10
	cfg.Tools.MaxRounds = 3
	return cfg
}

type fakeEmbedder struct {
	mu      sync.Mutex
	err     error
	fail    map[string]bool
	panics  bool
	queries []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("embedder exploded")
	}
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) []llm.EmbedResult {
	out := make([]llm.EmbedResult, len(texts))
	for i, t := range texts {
		if f.fail[t] {
			out[i] = llm.EmbedResult{Err: errors.New("embedding backend unavailable")}
			continue
		}
		v, err := f.Embed(ctx, t)
		out[i] = llm.EmbedResult{Vector: v, Err: err}
	}
	return out
}

type fakeVectors struct {
	mu        sync.Mutex
	chunks    map[string][]domain.Chunk
	insertErr error
	searchErr error
	results   []domain.RetrievalResult
	query     vectorstore.SearchQuery
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{chunks: map[string][]domain.Chunk{}}
}

func (f *fakeVectors) Insert(_ context.Context, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, c := range chunks {
		f.chunks[c.DocumentID] = append(f.chunks[c.DocumentID], c)
	}
	return nil
}

func (f *fakeVectors) DeleteByDocument(_ context.Context, _, documentID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.chunks[documentID])
	delete(f.chunks, documentID)
	return int64(n), nil
}

func (f *fakeVectors) CountByDocument(_ context.Context, _, documentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks[documentID]), nil
}

func (f *fakeVectors) Search(_ context.Context, q vectorstore.SearchQuery) ([]domain.RetrievalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.query = q
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return append([]domain.RetrievalResult(nil), f.results...), nil
}

type fakeTenants struct {
	tenants map[string]*domain.Tenant
}

func (f *fakeTenants) Get(_ context.Context, id string) (*domain.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

type fakeDocs struct {
	mu       sync.Mutex
	docs     map[string]*domain.Document
	statuses []domain.DocumentStatus
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[string]*domain.Document{}}
}

func (f *fakeDocs) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *doc
	f.docs[doc.ID] = &cp
	f.statuses = append(f.statuses, doc.Status)
	return nil
}

func (f *fakeDocs) Get(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocs) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Status = status
	d.Error = errMsg
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeDocs) UpdateResult(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[doc.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *doc
	f.docs[doc.ID] = &cp
	f.statuses = append(f.statuses, doc.Status)
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}

func (f *fakeDocs) only() *domain.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		cp := *d
		return &cp
	}
	return nil
}

type fakeMessages struct {
	mu       sync.Mutex
	messages []*domain.Message
	err      error
}

func (f *fakeMessages) Append(_ context.Context, m *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeMessages) Recent(_ context.Context, tenantID, userID string, limit int) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Message
	for _, m := range f.messages {
		if m.TenantID == tenantID && m.UserID == userID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// scriptedModel returns its responses in order and records every request
type scriptedModel struct {
	mu        sync.Mutex
	responses []*llm.Completion
	err       error
	errAt     int
	requests  [][]llm.Message
	toolSets  [][]domain.ToolDefinition
}

func (m *scriptedModel) Complete(_ context.Context, messages []llm.Message, defs []domain.ToolDefinition) (*llm.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, append([]llm.Message(nil), messages...))
	m.toolSets = append(m.toolSets, defs)
	n := len(m.requests)
	if m.err != nil && (m.errAt == 0 || m.errAt == n) {
		return nil, m.err
	}
	if n > len(m.responses) {
		return m.responses[len(m.responses)-1], nil
	}
	return m.responses[n-1], nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// recordingExecutor returns canned results and records each call
type recordingExecutor struct {
	mu       sync.Mutex
	registry *tools.Registry
	calls    []tools.Call
	env      tools.Env
	delays   map[string]time.Duration
}

func newRecordingExecutor() *recordingExecutor {
	return &recordingExecutor{registry: tools.NewRegistry(), delays: map[string]time.Duration{}}
}

func (e *recordingExecutor) Registry() *tools.Registry { return e.registry }

func (e *recordingExecutor) Execute(_ context.Context, env tools.Env, call tools.Call) tools.Result {
	time.Sleep(e.delays[call.Name])
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.env = env
	e.mu.Unlock()
	if call.ParseErr != nil {
		return tools.Fail(tools.FailureValidation, "Invalid arguments")
	}
	return tools.Success("ran "+call.Name, tools.Data{"tool": call.Name})
}

func (e *recordingExecutor) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	for i, c := range e.calls {
		out[i] = c.Name
	}
	return out
}
