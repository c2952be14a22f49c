package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrchestrator struct {
	turn    service.Turn
	reply   *service.Reply
	err     error
	history []*domain.Message
	limit   int
}

func (f *fakeOrchestrator) Chat(_ context.Context, turn service.Turn) (*service.Reply, error) {
	f.turn = turn
	return f.reply, f.err
}

func (f *fakeOrchestrator) History(_ context.Context, _, _ string, limit int) ([]*domain.Message, error) {
	f.limit = limit
	return f.history, f.err
}

func newRouter(o Orchestrator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(o).RegisterRoutes(r.Group("/api/chat"))
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChat_DefaultsAndResponseShape(t *testing.T) {
	o := &fakeOrchestrator{reply: &service.Reply{
		Message:    "We open at 9.",
		Sources:    []domain.Source{{DocumentID: "d1", Similarity: 0.9, Preview: "Hours..."}},
		ToolsUsed:  []domain.ToolUse{},
		HasContext: true,
	}}

	w := post(newRouter(o), "/api/chat/acme", `{
		"message": "When do you open?",
		"history": [{"role": "user", "content": "hi"}],
		"userId": "u1",
		"externalCredentials": {"googleAccessToken": "tok"}
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "acme", o.turn.TenantID)
	assert.Equal(t, "u1", o.turn.UserID)
	assert.True(t, o.turn.UseRetrieval)
	assert.True(t, o.turn.EnableTools)
	assert.Equal(t, "tok", o.turn.Credentials.GoogleAccessToken)
	require.Len(t, o.turn.History, 1)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "We open at 9.", body["message"])
	assert.Equal(t, true, body["hasContext"])
	sources := body["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "d1", sources[0].(map[string]any)["fileId"])
	assert.Equal(t, []any{}, body["toolsUsed"])
}

func TestChat_FlagsCanBeDisabled(t *testing.T) {
	o := &fakeOrchestrator{reply: &service.Reply{Message: "ok"}}

	w := post(newRouter(o), "/api/chat/acme", `{"message":"hi","useRetrieval":false,"enableTools":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, o.turn.UseRetrieval)
	assert.False(t, o.turn.EnableTools)
}

func TestChat_Errors(t *testing.T) {
	w := post(newRouter(&fakeOrchestrator{}), "/api/chat/acme", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(newRouter(&fakeOrchestrator{err: domain.ErrNotFound}), "/api/chat/nobody", `{"message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestHistory(t *testing.T) {
	o := &fakeOrchestrator{history: []*domain.Message{{Role: domain.RoleUser, Content: "hi"}}}

	req := httptest.NewRequest(http.MethodGet, "/api/chat/acme/history?user_id=u1&limit=5", nil)
	w := httptest.NewRecorder()
	newRouter(o).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, o.limit)
	assert.Contains(t, w.Body.String(), `"content":"hi"`)
}
