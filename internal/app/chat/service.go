// Package chat orchestrates the full question answering pipeline:
// classification, session binding, cache lookup, retrieval, prompt
// composition, generation, and the bookkeeping that follows a reply.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vialy-app/vialy-api/internal/app/cache"
	"github.com/vialy-app/vialy-api/internal/app/classify"
	"github.com/vialy-app/vialy-api/internal/app/convocontext"
	"github.com/vialy-app/vialy-api/internal/app/prompt"
	"github.com/vialy-app/vialy-api/internal/app/session"
	"github.com/vialy-app/vialy-api/internal/domain"
	"github.com/vialy-app/vialy-api/internal/observability"
	"github.com/vialy-app/vialy-api/internal/refdata"
)

const (
	minQueryLength  = 3
	maxDigestItems  = 5
	historyTurnsMax = 3
)

// Response is the outcome of one Ask call.
type Response struct {
	Answer       string
	Sources      []domain.Source
	Category     domain.Category
	CategoryName string
	Intent       domain.Intent
	SessionID    domain.SessionID
	Cached       bool
	ContextUsed  bool
}

// Service wires the pipeline components together.
type Service struct {
	classifier *classify.Classifier
	sessions   *session.Manager
	contexts   *convocontext.Manager
	composer   *prompt.Composer
	answers    *cache.Cache
	retriever  domain.Retriever
	llm        domain.LLMClient
	topK       int
	maxHistory int
	log        *slog.Logger
}

type Config struct {
	Classifier *classify.Classifier
	Sessions   *session.Manager
	Contexts   *convocontext.Manager
	Composer   *prompt.Composer
	Cache      *cache.Cache
	Retriever  domain.Retriever
	LLM        domain.LLMClient
	TopK       int
	MaxHistory int
}

func NewService(cfg Config) *Service {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = historyTurnsMax
	}
	return &Service{
		classifier: cfg.Classifier,
		sessions:   cfg.Sessions,
		contexts:   cfg.Contexts,
		composer:   cfg.Composer,
		answers:    cfg.Cache,
		retriever:  cfg.Retriever,
		llm:        cfg.LLM,
		topK:       topK,
		maxHistory: maxHistory,
		log:        observability.Component("chat"),
	}
}

// Ask answers one user query within a session. Retrieval failures
// degrade to an answer without documents; generation failures abort
// with ErrServiceUnavailable before any state is written.
func (s *Service) Ask(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, query string) (*Response, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minQueryLength {
		return nil, fmt.Errorf("%w: query must be at least %d characters", domain.ErrInvalidInput, minQueryLength)
	}

	sid, err := s.sessions.GetOrCreateSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	ctx = observability.WithSessionID(ctx, string(sid))

	category, intent := s.classifier.Analyze(query)

	if entry, ok := s.answers.Get(query); ok {
		s.log.Info("cache hit", "session_id", sid, "category", entry.Category)
		// The session still records the exchange so follow-ups stay
		// coherent even when the answer came from the cache.
		s.sessions.AppendTurn(ctx, sid, query, entry.Answer, entry.Category)
		if err := s.contexts.Update(ctx, sid, query, entry.Answer, entry.Category); err != nil {
			s.log.Error("context update failed", "session_id", sid, "error", err)
		}
		return &Response{
			Answer:       entry.Answer,
			Sources:      entry.Sources,
			Category:     entry.Category,
			CategoryName: refdata.CategoryName(entry.Category),
			Intent:       entry.Intent,
			SessionID:    sid,
			Cached:       true,
			ContextUsed:  entry.ContextUsed,
		}, nil
	}

	history := s.sessions.GetHistory(ctx, sid, s.maxHistory)

	var digest string
	contextUsed := false
	if s.contexts.ShouldIncludeContext(ctx, sid) {
		digest = s.contexts.GetFormattedContext(ctx, sid, maxDigestItems)
		contextUsed = digest != convocontext.NoContextSentinel
	}

	passages := s.retrieve(ctx, query)

	composed := s.composer.Compose(prompt.Input{
		Category:           category,
		Query:              query,
		RAGContext:         buildRAGContext(passages),
		History:            history,
		ConversationDigest: digest,
	})

	answer, err := s.llm.Generate(ctx, composed)
	if err != nil {
		s.log.Error("generation failed", "session_id", sid, "error", err)
		return nil, fmt.Errorf("%w: generating answer: %v", domain.ErrServiceUnavailable, err)
	}

	sources := make([]domain.Source, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, p.Source)
	}

	s.answers.Put(query, cache.Entry{
		Answer:      answer,
		Sources:     sources,
		ContextUsed: contextUsed,
		Category:    category,
		Intent:      intent,
	})

	s.sessions.AppendTurn(ctx, sid, query, answer, category)
	if err := s.contexts.Update(ctx, sid, query, answer, category); err != nil {
		s.log.Error("context update failed", "session_id", sid, "error", err)
	}

	return &Response{
		Answer:       answer,
		Sources:      sources,
		Category:     category,
		CategoryName: refdata.CategoryName(category),
		Intent:       intent,
		SessionID:    sid,
		ContextUsed:  contextUsed,
	}, nil
}

func (s *Service) retrieve(ctx context.Context, query string) []domain.Passage {
	passages, err := s.retriever.Search(ctx, query, s.topK)
	if err != nil {
		s.log.Warn("retrieval failed, answering without documents", "error", err)
		return nil
	}
	return passages
}

// buildRAGContext renders retrieved passages as a bullet list for
// prompt interpolation.
func buildRAGContext(passages []domain.Passage) string {
	if len(passages) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range passages {
		b.WriteString("- ")
		b.WriteString(p.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// ClearHistory removes a session's turns, context and the session
// itself. Returns whether a session existed.
func (s *Service) ClearHistory(ctx context.Context, sessionID domain.SessionID) (bool, error) {
	found, err := s.sessions.ClearHistory(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if err := s.contexts.Clear(ctx, sessionID); err != nil {
		return found, err
	}
	return found, nil
}

// SessionInfo returns the aggregate view for a session.
func (s *Service) SessionInfo(ctx context.Context, sessionID domain.SessionID) (*session.Info, error) {
	return s.sessions.SessionInfo(ctx, sessionID)
}

// ActiveSessions expires idle sessions, then counts what remains.
func (s *Service) ActiveSessions(ctx context.Context) (int, error) {
	s.sessions.CleanupExpired(ctx)
	return s.sessions.ActiveSessionCount(ctx)
}

// CacheSize returns the number of cached answers.
func (s *Service) CacheSize() int {
	return s.answers.Len()
}

// ClearCache empties the answer cache.
func (s *Service) ClearCache() {
	s.answers.Clear()
}
