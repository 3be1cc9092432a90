package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialy-app/vialy-api/internal/adapters/storage/memory"
	"github.com/vialy-app/vialy-api/internal/domain"
)

func newManager() *Manager {
	return NewManager(memory.NewSessionStore(), memory.NewTurnStore(), 24*time.Hour)
}

func TestGetOrCreateSessionRequiresOwner(t *testing.T) {
	m := newManager()

	_, err := m.GetOrCreateSession(context.Background(), "", "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetOrCreateSessionGeneratesID(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	id, err := m.GetOrCreateSession(ctx, "user-1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	// Second call with the generated id must reuse the session.
	same, err := m.GetOrCreateSession(ctx, "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, id, same)

	count, err := m.ActiveSessionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetOrCreateSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	for i := 0; i < 3; i++ {
		id, err := m.GetOrCreateSession(ctx, "user-1", "fixed-id")
		require.NoError(t, err)
		assert.Equal(t, domain.SessionID("fixed-id"), id)
	}

	count, err := m.ActiveSessionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetOrCreateSessionConcurrent(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	const n = 32
	ids := make([]domain.SessionID, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = m.GetOrCreateSession(ctx, "user-1", "carrera-id")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, domain.SessionID("carrera-id"), ids[i])
	}

	count, err := m.ActiveSessionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAppendTurnAndGetHistory(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	id, err := m.GetOrCreateSession(ctx, "user-1", "")
	require.NoError(t, err)

	m.AppendTurn(ctx, id, "¿cuánto es la multa?", "La multa es tipo C", domain.CategoryMulta)

	history := m.GetHistory(ctx, id, 5)
	assert.Equal(t, "Usuario: ¿cuánto es la multa?\nAsistente: La multa es tipo C", history)
}

func TestAppendTurnMissingSessionAbsorbed(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	// Must not panic or create a session.
	m.AppendTurn(ctx, "no-such-session", "hola", "respuesta", domain.CategoryGeneral)

	count, err := m.ActiveSessionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, NoHistorySentinel, m.GetHistory(ctx, "no-such-session", 5))
}

func TestGetHistoryTruncatesLongMessages(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	id, err := m.GetOrCreateSession(ctx, "user-1", "")
	require.NoError(t, err)

	long := strings.Repeat("a", 150)
	m.AppendTurn(ctx, id, long, "respuesta corta", domain.CategoryGeneral)

	history := m.GetHistory(ctx, id, 5)
	lines := strings.Split(history, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Usuario: "+strings.Repeat("a", 100)+"...", lines[0])
}

func TestGetHistoryLimitsTurns(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	id, err := m.GetOrCreateSession(ctx, "user-1", "")
	require.NoError(t, err)

	m.AppendTurn(ctx, id, "primera pregunta", "primera respuesta", domain.CategoryGeneral)
	m.AppendTurn(ctx, id, "segunda pregunta", "segunda respuesta", domain.CategoryGeneral)
	m.AppendTurn(ctx, id, "tercera pregunta", "tercera respuesta", domain.CategoryGeneral)

	history := m.GetHistory(ctx, id, 2)
	assert.NotContains(t, history, "primera")
	assert.Contains(t, history, "segunda pregunta")
	assert.Contains(t, history, "tercera respuesta")
}

func TestGetHistoryEmptySession(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	id, err := m.GetOrCreateSession(ctx, "user-1", "")
	require.NoError(t, err)

	assert.Equal(t, NoHistorySentinel, m.GetHistory(ctx, id, 5))
}

func TestClearHistory(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	id, err := m.GetOrCreateSession(ctx, "user-1", "")
	require.NoError(t, err)
	m.AppendTurn(ctx, id, "una pregunta", "una respuesta", domain.CategoryGeneral)

	found, err := m.ClearHistory(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, NoHistorySentinel, m.GetHistory(ctx, id, 5))

	found, err = m.ClearHistory(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	current := time.Now()
	m.now = func() time.Time { return current }

	stale, err := m.GetOrCreateSession(ctx, "user-1", "stale")
	require.NoError(t, err)
	_ = stale

	current = current.Add(25 * time.Hour)
	fresh, err := m.GetOrCreateSession(ctx, "user-2", "fresh")
	require.NoError(t, err)

	removed := m.CleanupExpired(ctx)
	assert.Equal(t, 1, removed)

	count, err := m.ActiveSessionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = m.SessionInfo(ctx, fresh)
	require.NoError(t, err)
	_, err = m.SessionInfo(ctx, "stale")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestLockMapShrinksWithSessions(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	_, err := m.GetOrCreateSession(ctx, "user-1", "s-1")
	require.NoError(t, err)
	assert.Equal(t, 1, lockCount(m))

	removed, err := m.ClearHistory(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Zero(t, lockCount(m))

	// Clearing an unknown session must not leave a lock behind either.
	removed, err = m.ClearHistory(ctx, "nunca-creada")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Zero(t, lockCount(m))

	current := time.Now()
	m.now = func() time.Time { return current }
	_, err = m.GetOrCreateSession(ctx, "user-1", "vieja")
	require.NoError(t, err)

	current = current.Add(25 * time.Hour)
	assert.Equal(t, 1, m.CleanupExpired(ctx))
	assert.Zero(t, lockCount(m))
}

func lockCount(m *Manager) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func TestSessionInfo(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	id, err := m.GetOrCreateSession(ctx, "user-9", "")
	require.NoError(t, err)
	m.AppendTurn(ctx, id, "una pregunta", "una respuesta", domain.CategoryGeneral)

	info, err := m.SessionInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, info.SessionID)
	assert.Equal(t, domain.UserID("user-9"), info.UserID)
	assert.Equal(t, domain.StatusActive, info.Status)
	assert.Equal(t, 2, info.MessageCount)
}
