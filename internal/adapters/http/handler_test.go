package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/vialy-app/vialy-api/internal/adapters/http"
	"github.com/vialy-app/vialy-api/internal/adapters/llm"
	"github.com/vialy-app/vialy-api/internal/adapters/storage/memory"
	"github.com/vialy-app/vialy-api/internal/app/cache"
	"github.com/vialy-app/vialy-api/internal/app/chat"
	"github.com/vialy-app/vialy-api/internal/app/classify"
	"github.com/vialy-app/vialy-api/internal/app/convocontext"
	"github.com/vialy-app/vialy-api/internal/app/prompt"
	"github.com/vialy-app/vialy-api/internal/app/session"
	"github.com/vialy-app/vialy-api/internal/domain"
)

type noopRetriever struct{}

func (noopRetriever) Search(_ context.Context, _ string, _ int) ([]domain.Passage, error) {
	return nil, nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	svc := chat.NewService(chat.Config{
		Classifier: classify.New(),
		Sessions:   session.NewManager(memory.NewSessionStore(), memory.NewTurnStore(), 24*time.Hour),
		Contexts:   convocontext.NewManager(memory.NewContextStore()),
		Composer:   prompt.NewComposer(false),
		Cache:      cache.New(10),
		Retriever:  noopRetriever{},
		LLM:        llm.NewMockClient(),
		TopK:       3,
		MaxHistory: 3,
	})

	return httpadapter.NewServer(svc)
}

func doAsk(t *testing.T, srv http.Handler, query, userID, sessionID string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(map[string]string{"query": query})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAsk(t *testing.T) {
	srv := newTestServer(t)

	w := doAsk(t, srv, "¿cuánto es la multa por exceso de velocidad?", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Response  string          `json:"response"`
		Sources   []domain.Source `json:"sources"`
		SessionID string          `json:"session_id"`
		Category  string          `json:"category"`
		Intent    int             `json:"intent"`
		Cached    bool            `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.Response)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "MULTA", resp.Category)
	assert.NotNil(t, resp.Sources)
	assert.False(t, resp.Cached)

	// Same query again: served from cache, same session honored.
	w = doAsk(t, srv, "¿cuánto es la multa por exceso de velocidad?", "user-1", resp.SessionID)
	require.Equal(t, http.StatusOK, w.Code)

	var second struct {
		SessionID string `json:"session_id"`
		Cached    bool   `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.True(t, second.Cached)
	assert.Equal(t, resp.SessionID, second.SessionID)
}

func TestAskValidation(t *testing.T) {
	srv := newTestServer(t)

	w := doAsk(t, srv, "¿cuánto es la multa?", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing X-User-ID")

	w = doAsk(t, srv, "ab", "user-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "query too short")

	req := httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader([]byte("no json")))
	req.Header.Set("X-User-ID", "user-1")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskServiceUnavailable(t *testing.T) {
	mock := llm.NewMockClient()
	mock.Err = assert.AnError

	svc := chat.NewService(chat.Config{
		Classifier: classify.New(),
		Sessions:   session.NewManager(memory.NewSessionStore(), memory.NewTurnStore(), 24*time.Hour),
		Contexts:   convocontext.NewManager(memory.NewContextStore()),
		Composer:   prompt.NewComposer(false),
		Cache:      cache.New(10),
		Retriever:  noopRetriever{},
		LLM:        mock,
	})
	srv := httpadapter.NewServer(svc)

	w := doAsk(t, srv, "¿cuánto es la multa?", "user-1", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSessionInfoAndClearHistory(t *testing.T) {
	srv := newTestServer(t)

	w := doAsk(t, srv, "¿qué documentos debo llevar?", "user-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/session/"+resp.SessionID, nil)
	w2 := httptest.NewRecorder()
	srv.ServeHTTP(w2, req)
	require.Equal(t, http.StatusOK, w2.Code)

	var info struct {
		SessionID    string `json:"session_id"`
		MessageCount int    `json:"message_count"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &info))
	assert.Equal(t, resp.SessionID, info.SessionID)
	assert.Equal(t, 2, info.MessageCount)

	body, _ := json.Marshal(map[string]string{"session_id": resp.SessionID})
	req = httptest.NewRequest(http.MethodPost, "/clear-history", bytes.NewReader(body))
	w3 := httptest.NewRecorder()
	srv.ServeHTTP(w3, req)
	assert.Equal(t, http.StatusOK, w3.Code)

	req = httptest.NewRequest(http.MethodGet, "/session/"+resp.SessionID, nil)
	w4 := httptest.NewRecorder()
	srv.ServeHTTP(w4, req)
	assert.Equal(t, http.StatusNotFound, w4.Code)
}

func TestClearHistoryUnknownSession(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"session_id": "no-such-session"})
	req := httptest.NewRequest(http.MethodPost, "/clear-history", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActiveSessionsAndCacheClear(t *testing.T) {
	srv := newTestServer(t)

	doAsk(t, srv, "¿cuánto cuesta renovar la licencia?", "user-1", "")
	doAsk(t, srv, "¿qué dice la norma sobre velocidad?", "user-2", "")

	req := httptest.NewRequest(http.MethodGet, "/sessions/active", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ActiveSessions int    `json:"active_sessions"`
		CacheSize      int    `json:"cache_size"`
		ServicesStatus string `json:"services_status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.ActiveSessions)
	assert.Equal(t, 2, resp.CacheSize)
	assert.Equal(t, "operational", resp.ServicesStatus)

	req = httptest.NewRequest(http.MethodPost, "/cache/clear", nil)
	w2 := httptest.NewRecorder()
	srv.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/ask", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
