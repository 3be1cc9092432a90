// Package session owns session identity, short-term turn history and
// session expiry on top of the storage ports.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vialy-app/vialy-api/internal/domain"
	"github.com/vialy-app/vialy-api/internal/observability"
)

// NoHistorySentinel is returned by GetHistory when a session has no
// turns or does not exist.
const NoHistorySentinel = "Sin historial previo."

const historyLineLimit = 100

// Info is the aggregate view returned by SessionInfo.
type Info struct {
	SessionID    domain.SessionID     `json:"session_id"`
	UserID       domain.UserID        `json:"usuario_id"`
	Status       domain.SessionStatus `json:"status"`
	StartedAt    time.Time            `json:"started_at"`
	MessageCount int                  `json:"message_count"`
}

// Manager coordinates session lifecycle and turn history. Writes to the
// same session are serialized with a per-key lock so a double-submit
// cannot create two sessions or interleave turn pairs.
type Manager struct {
	sessions domain.SessionStore
	turns    domain.TurnStore
	timeout  time.Duration
	now      func() time.Time

	mu    sync.Mutex
	locks map[domain.SessionID]*sync.Mutex
}

func NewManager(sessions domain.SessionStore, turns domain.TurnStore, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	return &Manager{
		sessions: sessions,
		turns:    turns,
		timeout:  timeout,
		now:      time.Now,
		locks:    make(map[domain.SessionID]*sync.Mutex),
	}
}

func (m *Manager) lockFor(id domain.SessionID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// forgetLock drops a session's lock entry so the map stays bounded by
// the number of live sessions. A concurrent create that re-enters after
// the drop resolves through ErrSessionExists.
func (m *Manager) forgetLock(id domain.SessionID) {
	m.mu.Lock()
	delete(m.locks, id)
	m.mu.Unlock()
}

// GetOrCreateSession returns the session id to use for a request,
// creating the session if needed. Creation is an upsert by key: a
// concurrent duplicate create resolves to the existing session.
func (m *Manager) GetOrCreateSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) (domain.SessionID, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: usuario_id is required", domain.ErrInvalidInput)
	}

	if sessionID == "" {
		sessionID = domain.SessionID(uuid.NewString())
	}

	l := m.lockFor(sessionID)
	l.Lock()
	defer l.Unlock()

	now := m.now()
	log := observability.LoggerFromContext(ctx)

	_, err := m.sessions.GetSession(ctx, sessionID)
	switch {
	case err == nil:
		if err := m.sessions.TouchSession(ctx, sessionID, now); err != nil {
			return "", fmt.Errorf("touching session: %w", err)
		}
		return sessionID, nil

	case errors.Is(err, domain.ErrSessionNotFound):
		createErr := m.sessions.CreateSession(ctx, &domain.Session{
			ID:             sessionID,
			UserID:         userID,
			Status:         domain.StatusActive,
			StartedAt:      now,
			LastActivityAt: now,
		})
		if createErr == nil {
			log.Info("session created", "session_id", sessionID, "usuario_id", userID)
			return sessionID, nil
		}
		// Lost the race against another instance: the session is there.
		if errors.Is(createErr, domain.ErrSessionExists) {
			return sessionID, nil
		}
		return "", fmt.Errorf("creating session: %w", createErr)

	default:
		return "", fmt.Errorf("loading session: %w", err)
	}
}

// AppendTurn persists a user/system message pair. A missing session is
// an operator error, not a client error (creation and append are two
// separate calls): it is logged and absorbed.
func (m *Manager) AppendTurn(ctx context.Context, sessionID domain.SessionID, userText, systemText string, category domain.Category) {
	l := m.lockFor(sessionID)
	l.Lock()
	defer l.Unlock()

	log := observability.LoggerFromContext(ctx)

	if _, err := m.sessions.GetSession(ctx, sessionID); err != nil {
		log.Warn("append turn: session not found", "session_id", sessionID)
		return
	}

	now := m.now()
	turns := []*domain.Turn{
		{
			ID:        domain.TurnID(uuid.NewString()),
			SessionID: sessionID,
			Sender:    domain.SenderUser,
			Text:      userText,
			Category:  category,
			CreatedAt: now,
		},
		{
			ID:        domain.TurnID(uuid.NewString()),
			SessionID: sessionID,
			Sender:    domain.SenderBot,
			Text:      systemText,
			Category:  category,
			CreatedAt: now,
		},
	}

	if err := m.turns.AppendTurns(ctx, turns); err != nil {
		log.Error("append turn failed", "session_id", sessionID, "error", err)
		return
	}
	if err := m.sessions.TouchSession(ctx, sessionID, now); err != nil {
		log.Error("touch session failed", "session_id", sessionID, "error", err)
	}
}

// GetHistory renders the most recent maxTurns turns in chronological
// order, one line per message, each truncated to 100 characters.
func (m *Manager) GetHistory(ctx context.Context, sessionID domain.SessionID, maxTurns int) string {
	turns, err := m.turns.GetTurnsBySession(ctx, sessionID, maxTurns*2)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("loading history failed", "session_id", sessionID, "error", err)
		return NoHistorySentinel
	}
	if len(turns) == 0 {
		return NoHistorySentinel
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		sender := "Usuario"
		if t.Sender == domain.SenderBot {
			sender = "Asistente"
		}
		lines = append(lines, sender+": "+previewText(t.Text))
	}
	return strings.Join(lines, "\n")
}

// ClearHistory deletes a session and all its turns. Returns whether a
// session was found.
func (m *Manager) ClearHistory(ctx context.Context, sessionID domain.SessionID) (bool, error) {
	l := m.lockFor(sessionID)
	l.Lock()
	defer l.Unlock()

	if err := m.turns.DeleteTurnsBySession(ctx, sessionID); err != nil {
		return false, fmt.Errorf("deleting turns: %w", err)
	}

	err := m.sessions.DeleteSession(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		m.forgetLock(sessionID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	m.forgetLock(sessionID)
	return true, nil
}

// CleanupExpired removes every session idle longer than the timeout.
// It runs opportunistically before aggregate counts, not on a timer.
func (m *Manager) CleanupExpired(ctx context.Context) int {
	cutoff := m.now().Add(-m.timeout)
	removed, err := m.sessions.DeleteIdleSessions(ctx, cutoff)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("cleanup expired sessions failed", "error", err)
		return 0
	}
	if removed > 0 {
		// The store does not report which ids were removed; resetting
		// the whole lock map keeps it from growing unbounded.
		m.mu.Lock()
		m.locks = make(map[domain.SessionID]*sync.Mutex)
		m.mu.Unlock()
		observability.LoggerFromContext(ctx).Info("expired sessions removed", "count", removed)
	}
	return removed
}

// ActiveSessionCount returns the number of active sessions.
func (m *Manager) ActiveSessionCount(ctx context.Context) (int, error) {
	return m.sessions.CountActive(ctx)
}

// SessionInfo returns the aggregate view for a session.
func (m *Manager) SessionInfo(ctx context.Context, sessionID domain.SessionID) (*Info, error) {
	sess, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	count, err := m.turns.CountTurns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("counting turns: %w", err)
	}

	return &Info{
		SessionID:    sess.ID,
		UserID:       sess.UserID,
		Status:       sess.Status,
		StartedAt:    sess.StartedAt,
		MessageCount: count,
	}, nil
}

func previewText(s string) string {
	r := []rune(s)
	if len(r) <= historyLineLimit {
		return s
	}
	return string(r[:historyLineLimit]) + "..."
}
