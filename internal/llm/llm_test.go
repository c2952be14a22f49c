package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/liliang-cn/askdesk/internal/config"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap/zaptest"
)

type fakeEmbeddings struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(text string, call int) ([]float32, error)
}

func (f *fakeEmbeddings) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbeddings) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[text]++
	call := f.calls[text]
	f.mu.Unlock()
	return f.fn(text, call)
}

func (f *fakeEmbeddings) count(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Vector.Dimension = 3
	cfg.Embedding.RetryDelay = time.Millisecond
	cfg.Embedding.BatchPause = time.Millisecond
	cfg.Embedding.RequestsPerSecond = 0
	cfg.Embedding.Timeout = time.Second
	return cfg
}

func vec3(string, int) ([]float32, error) { return []float32{1, 2, 3}, nil }

func TestEmbedder_Embed(t *testing.T) {
	fake := &fakeEmbeddings{fn: vec3}
	e, err := NewEmbedderWithClient(fake, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	v, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, v)
}

func TestEmbedder_BlankInputIsValidation(t *testing.T) {
	fake := &fakeEmbeddings{fn: vec3}
	e, err := NewEmbedderWithClient(fake, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "  \n")
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, 0, fake.count("  \n"))
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	fake := &fakeEmbeddings{fn: func(string, int) ([]float32, error) { return []float32{1, 2}, nil }}
	e, err := NewEmbedderWithClient(fake, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbedder_RetriesTransientFailures(t *testing.T) {
	fake := &fakeEmbeddings{fn: func(_ string, call int) ([]float32, error) {
		if call < 3 {
			return nil, errors.New("model is loading")
		}
		return []float32{1, 2, 3}, nil
	}}
	e, err := NewEmbedderWithClient(fake, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 3, fake.count("hello"))
}

func TestEmbedder_ExhaustedRetriesAreTransientError(t *testing.T) {
	fake := &fakeEmbeddings{fn: func(string, int) ([]float32, error) {
		return nil, errors.New("503 service unavailable")
	}}
	e, err := NewEmbedderWithClient(fake, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "hello")
	var te *domain.TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, 3, fake.count("hello"))
}

func TestEmbedder_PermanentFailureNotRetried(t *testing.T) {
	fake := &fakeEmbeddings{fn: func(string, int) ([]float32, error) {
		return nil, errors.New("unknown model")
	}}
	e, err := NewEmbedderWithClient(fake, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "hello")
	require.Error(t, err)
	var te *domain.TransientError
	assert.False(t, errors.As(err, &te))
	assert.Equal(t, 1, fake.count("hello"))
}

func TestEmbedder_BatchIsolatesFailuresAndKeepsOrder(t *testing.T) {
	var inFlight, peak int32
	fake := &fakeEmbeddings{fn: func(text string, _ int) ([]float32, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)

		if strings.HasPrefix(text, "bad") {
			return nil, errors.New("unknown model")
		}
		return []float32{float32(len(text)), 0, 0}, nil
	}}
	cfg := testConfig()
	cfg.Embedding.BatchSize = 2
	e, err := NewEmbedderWithClient(fake, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	texts := []string{"a", "bb", "bad one", "dddd", "eeeee"}
	results := e.EmbedBatch(context.Background(), texts)

	require.Len(t, results, len(texts))
	for i, r := range results {
		if i == 2 {
			assert.Error(t, r.Err)
			continue
		}
		require.NoError(t, r.Err)
		assert.Equal(t, float32(len(texts[i])), r.Vector[0])
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

type fakeModel struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.options)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestChatModel_ConvertsConversation(t *testing.T) {
	fake := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		Content: "",
		ToolCalls: []llms.ToolCall{{
			ID:           "call_1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "get_order_status", Arguments: `{"orderId":"A1"}`},
		}},
	}}}}
	m := NewChatModelWith(fake, testConfig(), zaptest.NewLogger(t))

	defs := []domain.ToolDefinition{{
		Name:        "get_order_status",
		Description: "Look up an order",
		Params:      []domain.ToolParam{{Name: "orderId", Type: domain.ParamString, Required: true}},
	}}
	out, err := m.Complete(context.Background(), []Message{
		{Role: domain.RoleSystem, Content: "sys"},
		{Role: domain.RoleUser, Content: "where is A1?"},
		{Role: domain.RoleAssistant, ToolCalls: []ToolCall{{ID: "c0", Name: "x", Arguments: "{}"}}},
		{Role: domain.RoleTool, ToolCallID: "c0", Name: "x", Content: `{"ok":true}`},
	}, defs)
	require.NoError(t, err)

	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, ToolCall{ID: "call_1", Name: "get_order_status", Arguments: `{"orderId":"A1"}`}, out.ToolCalls[0])

	require.Len(t, fake.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, fake.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, fake.messages[2].Role)
	assert.IsType(t, llms.ToolCall{}, fake.messages[2].Parts[0])
	assert.Equal(t, llms.ChatMessageTypeTool, fake.messages[3].Role)
	assert.Equal(t, llms.ToolCallResponse{ToolCallID: "c0", Name: "x", Content: `{"ok":true}`}, fake.messages[3].Parts[0])

	require.Len(t, fake.options.Tools, 1)
	assert.Equal(t, "get_order_status", fake.options.Tools[0].Function.Name)
}

func TestChatModel_NoToolsOffered(t *testing.T) {
	fake := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "hi"}}}}
	m := NewChatModelWith(fake, testConfig(), zaptest.NewLogger(t))

	out, err := m.Complete(context.Background(), []Message{{Role: domain.RoleUser, Content: "hello"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Content)
	assert.Empty(t, fake.options.Tools)
}

func TestChatModel_Errors(t *testing.T) {
	m := NewChatModelWith(&fakeModel{err: errors.New("boom")}, testConfig(), zaptest.NewLogger(t))
	_, err := m.Complete(context.Background(), []Message{{Role: domain.RoleUser, Content: "x"}}, nil)
	assert.ErrorContains(t, err, "boom")

	m = NewChatModelWith(&fakeModel{resp: &llms.ContentResponse{}}, testConfig(), zaptest.NewLogger(t))
	_, err = m.Complete(context.Background(), []Message{{Role: domain.RoleUser, Content: "x"}}, nil)
	assert.ErrorContains(t, err, "empty response")
}
