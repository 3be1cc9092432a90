// Package httpadapter exposes the question answering service over
// HTTP. Identity travels in headers: X-User-ID names the caller and
// X-Session-ID pins the conversation.
package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vialy-app/vialy-api/internal/app/chat"
	"github.com/vialy-app/vialy-api/internal/domain"
)

type Server struct {
	svc *chat.Service
}

func NewServer(svc *chat.Service) http.Handler {
	s := &Server{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/clear-history", s.handleClearHistory)
	mux.HandleFunc("/session/", s.handleSessionInfo)
	mux.HandleFunc("/sessions/active", s.handleActiveSessions)
	mux.HandleFunc("/cache/clear", s.handleClearCache)
	mux.HandleFunc("/health", s.handleHealth)

	return chainMiddlewares(mux, withRequestID, withCORS, withLogging)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Response     string          `json:"response"`
	Sources      []domain.Source `json:"sources"`
	ContextUsed  bool            `json:"context_used"`
	SessionID    string          `json:"session_id"`
	Category     string          `json:"category"`
	CategoryName string          `json:"category_name"`
	Intent       int             `json:"intent"`
	Cached       bool            `json:"cached"`
}

type clearHistoryRequest struct {
	SessionID string `json:"session_id"`
}

type activeSessionsResponse struct {
	ActiveSessions int    `json:"active_sessions"`
	CacheSize      int    `json:"cache_size"`
	ServicesStatus string `json:"services_status"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		badRequest(w, "X-User-ID header is required")
		return
	}
	sessionID := r.Header.Get("X-Session-ID")

	res, err := s.svc.Ask(r.Context(), domain.UserID(userID), domain.SessionID(sessionID), req.Query)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	sources := res.Sources
	if sources == nil {
		sources = []domain.Source{}
	}

	writeJSON(w, http.StatusOK, askResponse{
		Response:     res.Answer,
		Sources:      sources,
		ContextUsed:  res.ContextUsed,
		SessionID:    string(res.SessionID),
		Category:     string(res.Category),
		CategoryName: res.CategoryName,
		Intent:       int(res.Intent),
		Cached:       res.Cached,
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req clearHistoryRequest
	// Body is optional; the session may come in the header instead.
	_ = json.NewDecoder(r.Body).Decode(&req)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = r.Header.Get("X-Session-ID")
	}
	if sessionID == "" {
		badRequest(w, "session_id is required")
		return
	}

	found, err := s.svc.ClearHistory(r.Context(), domain.SessionID(sessionID))
	if err != nil {
		internalError(w)
		return
	}
	if !found {
		notFound(w, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Historial limpiado correctamente",
		"session_id": sessionID,
	})
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/session/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	info, err := s.svc.SessionInfo(r.Context(), domain.SessionID(id))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			notFound(w, "session not found")
			return
		}
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	count, err := s.svc.ActiveSessions(r.Context())
	if err != nil {
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, activeSessionsResponse{
		ActiveSessions: count,
		CacheSize:      s.svc.CacheSize(),
		ServicesStatus: "operational",
	})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	s.svc.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Cache limpiado correctamente",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		badRequest(w, err.Error())
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":  "Servicios no disponibles",
			"status": "degraded",
		})
	default:
		internalError(w)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func notFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
