package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialy-app/vialy-api/internal/adapters/storage/memory"
	"github.com/vialy-app/vialy-api/internal/app/cache"
	"github.com/vialy-app/vialy-api/internal/app/classify"
	"github.com/vialy-app/vialy-api/internal/app/convocontext"
	"github.com/vialy-app/vialy-api/internal/app/prompt"
	"github.com/vialy-app/vialy-api/internal/app/session"
	"github.com/vialy-app/vialy-api/internal/domain"
)

type stubLLM struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubLLM) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type stubRetriever struct {
	passages []domain.Passage
	err      error
}

func (s *stubRetriever) Search(_ context.Context, _ string, _ int) ([]domain.Passage, error) {
	return s.passages, s.err
}

func newService(llm domain.LLMClient, retriever domain.Retriever) *Service {
	return NewService(Config{
		Classifier: classify.New(),
		Sessions:   session.NewManager(memory.NewSessionStore(), memory.NewTurnStore(), 24*time.Hour),
		Contexts:   convocontext.NewManager(memory.NewContextStore()),
		Composer:   prompt.NewComposer(false),
		Cache:      cache.New(10),
		Retriever:  retriever,
		LLM:        llm,
		TopK:       3,
		MaxHistory: 3,
	})
}

func TestAskRejectsShortQuery(t *testing.T) {
	s := newService(&stubLLM{reply: "ok"}, &stubRetriever{})

	_, err := s.Ask(context.Background(), "user-1", "", "ab")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Ask(context.Background(), "user-1", "", "   a   ")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAskRequiresUser(t *testing.T) {
	s := newService(&stubLLM{reply: "ok"}, &stubRetriever{})

	_, err := s.Ask(context.Background(), "", "", "¿cuánto es la multa?")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAskFullPipeline(t *testing.T) {
	llm := &stubLLM{reply: "La multa por exceso de velocidad es tipo C = $711.750 (Artículo 131-C.29)."}
	retriever := &stubRetriever{passages: []domain.Passage{
		{Text: "texto del código sobre velocidad", Source: domain.Source{Excerpt: "texto del código", Page: 7, File: "codigo.pdf"}},
	}}
	s := newService(llm, retriever)

	res, err := s.Ask(context.Background(), "user-1", "", "¿cuánto es la multa por exceso de velocidad?")
	require.NoError(t, err)

	assert.Equal(t, llm.reply, res.Answer)
	assert.Equal(t, domain.CategoryMulta, res.Category)
	assert.Equal(t, "Sanciones y Multas", res.CategoryName)
	assert.NotEmpty(t, res.SessionID)
	assert.False(t, res.Cached)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "codigo.pdf", res.Sources[0].File)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "- texto del código sobre velocidad")
}

func TestAskSecondCallHitsCache(t *testing.T) {
	llm := &stubLLM{reply: "respuesta generada"}
	s := newService(llm, &stubRetriever{})

	first, err := s.Ask(context.Background(), "user-1", "", "¿cuánto cuesta el SOAT?")
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := s.Ask(context.Background(), "user-1", first.SessionID, "¿CUÁNTO CUESTA EL SOAT?")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Len(t, llm.prompts, 1, "cache hit must not call the model")

	// The cached exchange is still recorded in the session.
	info, err := s.SessionInfo(context.Background(), first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 4, info.MessageCount)
}

func TestAskRetrievalFailureDegrades(t *testing.T) {
	llm := &stubLLM{reply: "respuesta sin documentos"}
	s := newService(llm, &stubRetriever{err: errors.New("index unavailable")})

	res, err := s.Ask(context.Background(), "user-1", "", "¿qué dice la norma sobre velocidad?")
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], prompt.DefaultRAGContext)
}

func TestAskGenerationFailureWritesNothing(t *testing.T) {
	llm := &stubLLM{err: errors.New("model down")}
	s := newService(llm, &stubRetriever{})

	_, err := s.Ask(context.Background(), "user-1", "mi-sesion", "¿cuánto es la multa?")
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)

	assert.Equal(t, 0, s.CacheSize())
	info, err := s.SessionInfo(context.Background(), "mi-sesion")
	require.NoError(t, err)
	assert.Equal(t, 0, info.MessageCount)
}

func TestAskInjectsContextOnFollowUp(t *testing.T) {
	llm := &stubLLM{reply: "Según el Artículo 131-C.29 la multa es tipo C, una respuesta con detalle"}
	s := newService(llm, &stubRetriever{})

	first, err := s.Ask(context.Background(), "user-1", "", "me multaron por exceso de velocidad, ¿cuánto pago?")
	require.NoError(t, err)
	assert.False(t, first.ContextUsed, "first turn has no accumulated context")

	second, err := s.Ask(context.Background(), "user-1", first.SessionID, "¿y cómo puedo apelar ese comparendo?")
	require.NoError(t, err)
	assert.True(t, second.ContextUsed)

	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "Exceso Velocidad")
	assert.Contains(t, llm.prompts[1], "Usuario: me multaron por exceso de velocidad")
}

func TestClearHistory(t *testing.T) {
	s := newService(&stubLLM{reply: "una respuesta suficientemente larga"}, &stubRetriever{})

	res, err := s.Ask(context.Background(), "user-1", "", "¿cuánto es la multa por no tener SOAT?")
	require.NoError(t, err)

	found, err := s.ClearHistory(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.ClearHistory(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestActiveSessionsAndCache(t *testing.T) {
	s := newService(&stubLLM{reply: "respuesta"}, &stubRetriever{})

	_, err := s.Ask(context.Background(), "user-1", "", "¿cuánto cuesta renovar la licencia?")
	require.NoError(t, err)
	_, err = s.Ask(context.Background(), "user-2", "", "¿qué documentos debo llevar?")
	require.NoError(t, err)

	active, err := s.ActiveSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	assert.Equal(t, 2, s.CacheSize())
	s.ClearCache()
	assert.Equal(t, 0, s.CacheSize())
}
