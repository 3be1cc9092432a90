package domain

import (
	"context"
	"time"
)

// LLMClient defines how the core application talks to a text-generation
// backend. The backend may be slow or unavailable; callers own the
// deadline via ctx.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever searches a document index for the top-k passages relevant to
// a query. Implementations must tolerate the underlying index being
// unavailable; the caller treats "no passages" as a valid degraded
// outcome, not an error.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}

// SessionStore defines session persistence.
type SessionStore interface {
	// CreateSession inserts a new session. Returns ErrSessionExists if the
	// id is already taken.
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	// TouchSession bumps last_activity_at and marks the session active.
	TouchSession(ctx context.Context, id SessionID, at time.Time) error
	DeleteSession(ctx context.Context, id SessionID) error
	// DeleteIdleSessions removes every session whose last activity is
	// before cutoff and returns how many were removed.
	DeleteIdleSessions(ctx context.Context, cutoff time.Time) (int, error)
	CountActive(ctx context.Context) (int, error)
}

// TurnStore defines turn persistence. A turn always references exactly
// one session.
type TurnStore interface {
	AppendTurns(ctx context.Context, turns []*Turn) error
	// GetTurnsBySession returns the most recent `limit` turns in
	// chronological order, oldest first. limit <= 0 means all.
	GetTurnsBySession(ctx context.Context, id SessionID, limit int) ([]*Turn, error)
	DeleteTurnsBySession(ctx context.Context, id SessionID) error
	CountTurns(ctx context.Context, id SessionID) (int, error)
}

// ContextStore defines conversation-context persistence. A context
// corresponds to exactly one session.
type ContextStore interface {
	GetContext(ctx context.Context, id SessionID) (*ConversationContext, error)
	// SaveContext upserts the context for its session.
	SaveContext(ctx context.Context, c *ConversationContext) error
	DeleteContext(ctx context.Context, id SessionID) error
}
