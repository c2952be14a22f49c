package service

import (
	"context"
	"errors"
	"testing"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/llm"
	"github.com/liliang-cn/askdesk/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubRetriever struct {
	results []domain.RetrievalResult
	calls   int
	k       int
}

func (s *stubRetriever) Search(_ context.Context, _, _ string, k int) []domain.RetrievalResult {
	s.calls++
	s.k = k
	return s.results
}

type chatFixture struct {
	orch      *Orchestrator
	model     *scriptedModel
	exec      *recordingExecutor
	retriever *stubRetriever
	messages  *fakeMessages
}

func newChatFixture(t *testing.T, model *scriptedModel) *chatFixture {
	cfg := testConfig(t)
	cfg.RAG.HistoryTurns = 2
	f := &chatFixture{
		model:     model,
		exec:      newRecordingExecutor(),
		retriever: &stubRetriever{},
		messages:  &fakeMessages{},
	}
	tenants := &fakeTenants{tenants: map[string]*domain.Tenant{
		"t1": {ID: "t1", Name: "Acme", CalendarID: "acme@example.com", Timezone: "Europe/Berlin"},
		"t2": {ID: "t2", Name: "Beta", SystemPrompt: "You are Beta's concierge."},
	}}
	logger := zaptest.NewLogger(t)
	loop := NewLoopController(cfg, model, f.exec, logger)
	f.orch = NewOrchestrator(cfg, tenants, f.messages, f.retriever, model, loop, logger)
	return f
}

func TestChat_DisabledPathMakesOneCall(t *testing.T) {
	f := newChatFixture(t, &scriptedModel{responses: []*llm.Completion{{Content: "Hello there!"}}})

	reply, err := f.orch.Chat(context.Background(), Turn{
		TenantID: "t1",
		UserID:   "u1",
		Message:  "Hi",
		History: []domain.HistoryMessage{
			{Role: domain.RoleUser, Content: "first"},
			{Role: domain.RoleAssistant, Content: "second"},
			{Role: domain.RoleTool, Content: "ignored"},
			{Role: domain.RoleUser, Content: "third"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello there!", reply.Message)
	assert.False(t, reply.HasContext)
	assert.Empty(t, reply.Sources)
	assert.Empty(t, reply.ToolsUsed)
	assert.Zero(t, f.retriever.calls)

	require.Equal(t, 1, f.model.calls())
	assert.Nil(t, f.model.toolSets[0])
	assert.Equal(t, []llm.Message{
		{Role: domain.RoleSystem, Content: domain.DefaultSystemPrompt},
		{Role: domain.RoleAssistant, Content: "second"},
		{Role: domain.RoleUser, Content: "third"},
		{Role: domain.RoleUser, Content: "Hi"},
	}, f.model.requests[0])
}

func TestChat_RetrievalContextInSystemPrompt(t *testing.T) {
	f := newChatFixture(t, &scriptedModel{responses: []*llm.Completion{{Content: "We ship worldwide."}}})
	f.retriever.results = []domain.RetrievalResult{
		{DocumentID: "d1", ChunkID: "c1", Content: "We ship to 40 countries.", Similarity: 0.91, Preview: "We ship to 40 countries...."},
		{DocumentID: "d2", ChunkID: "c7", Content: "Express takes 2 days.", Similarity: 0.82, Preview: "Express takes 2 days...."},
	}

	reply, err := f.orch.Chat(context.Background(), Turn{
		TenantID:     "t2",
		UserID:       "u1",
		Message:      "Do you ship abroad?",
		UseRetrieval: true,
	})
	require.NoError(t, err)

	assert.True(t, reply.HasContext)
	require.Len(t, reply.Sources, 2)
	assert.Equal(t, "d1", reply.Sources[0].DocumentID)
	assert.Equal(t, 0.91, reply.Sources[0].Similarity)
	assert.Equal(t, 3, f.retriever.k)

	want := "You are Beta's concierge." +
		"\n\nRelevant information from documents:\n" +
		"[1] We ship to 40 countries.\n" +
		"[2] Express takes 2 days.\n" +
		"\nUse this information to answer the user's questions accurately."
	assert.Equal(t, want, f.model.requests[0][0].Content)
}

func TestChat_ToolsDelegateToLoop(t *testing.T) {
	f := newChatFixture(t, &scriptedModel{responses: []*llm.Completion{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: tools.CheckCalendarAvailability, Arguments: `{"date":"tomorrow"}`}}},
		{Content: "You're free tomorrow afternoon."},
	}})

	reply, err := f.orch.Chat(context.Background(), Turn{
		TenantID:    "t1",
		UserID:      "u1",
		UserEmail:   "ana@example.com",
		Message:     "Am I free tomorrow?",
		EnableTools: true,
		Credentials: domain.Credentials{GoogleAccessToken: "tok"},
	})
	require.NoError(t, err)

	assert.Equal(t, "You're free tomorrow afternoon.", reply.Message)
	require.Len(t, reply.ToolsUsed, 1)
	assert.Equal(t, tools.CheckCalendarAvailability, reply.ToolsUsed[0].Name)

	assert.Equal(t, tools.Env{
		TenantID:    "t1",
		UserID:      "u1",
		UserEmail:   "ana@example.com",
		CalendarID:  "acme@example.com",
		Timezone:    "Europe/Berlin",
		Credentials: domain.Credentials{GoogleAccessToken: "tok"},
	}, f.exec.env)
}

func TestChat_ModelFailureApologises(t *testing.T) {
	for _, enableTools := range []bool{false, true} {
		f := newChatFixture(t, &scriptedModel{err: errors.New("connection reset")})

		reply, err := f.orch.Chat(context.Background(), Turn{TenantID: "t1", UserID: "u1", Message: "Hi", EnableTools: enableTools})
		require.NoError(t, err)
		assert.Equal(t, ApologyMessage, reply.Message)
		assert.Equal(t, 1, f.model.calls(), "model failures are not retried")
	}
}

func TestChat_PersistsBothMessages(t *testing.T) {
	f := newChatFixture(t, &scriptedModel{responses: []*llm.Completion{{Content: "Sure."}}})
	f.retriever.results = []domain.RetrievalResult{{DocumentID: "d1", Content: "ctx", Similarity: 0.8}}

	_, err := f.orch.Chat(context.Background(), Turn{TenantID: "t1", UserID: "u1", Message: "Help", UseRetrieval: true})
	require.NoError(t, err)

	history, err := f.orch.History(context.Background(), "t1", "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, "Help", history[0].Content)
	assert.Equal(t, domain.RoleAssistant, history[1].Role)
	assert.Equal(t, "Sure.", history[1].Content)
	require.Len(t, history[1].Sources, 1)
	assert.Equal(t, "d1", history[1].Sources[0].DocumentID)
}

func TestChat_PersistenceFailureIsNotFatal(t *testing.T) {
	f := newChatFixture(t, &scriptedModel{responses: []*llm.Completion{{Content: "Still here."}}})
	f.messages.err = errors.New("database is locked")

	reply, err := f.orch.Chat(context.Background(), Turn{TenantID: "t1", Message: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "Still here.", reply.Message)
}

func TestChat_RejectsInvalidTurns(t *testing.T) {
	f := newChatFixture(t, &scriptedModel{responses: []*llm.Completion{{Content: "unused"}}})

	_, err := f.orch.Chat(context.Background(), Turn{TenantID: "t1", Message: "   "})
	assert.True(t, domain.IsValidation(err))

	_, err = f.orch.Chat(context.Background(), Turn{TenantID: "missing", Message: "Hi"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Zero(t, f.model.calls())
	assert.Empty(t, f.messages.messages)
}

func TestTrimHistory(t *testing.T) {
	history := []domain.HistoryMessage{
		{Role: domain.RoleUser, Content: "1"},
		{Role: domain.RoleAssistant, Content: "2"},
		{Role: domain.RoleSystem, Content: "override"},
		{Role: domain.RoleUser, Content: ""},
		{Role: domain.RoleUser, Content: "3"},
	}

	assert.Equal(t, []llm.Message{
		{Role: domain.RoleUser, Content: "1"},
		{Role: domain.RoleAssistant, Content: "2"},
		{Role: domain.RoleUser, Content: "3"},
	}, trimHistory(history, 5))
	assert.Len(t, trimHistory(history, 1), 1)
	assert.Empty(t, trimHistory(history, 0))
}
