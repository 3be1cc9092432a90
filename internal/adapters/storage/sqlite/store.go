// Package sqlite persists sessions, turns and conversation contexts in
// a single SQLite database. It is the default durable backend for
// single-instance deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vialy-app/vialy-api/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	status           TEXT NOT NULL,
	started_at       TIMESTAMP NOT NULL,
	last_activity_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	session_id TEXT NOT NULL,
	sender     TEXT NOT NULL,
	text       TEXT NOT NULL,
	category   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns (session_id, seq);

CREATE TABLE IF NOT EXISTS contexts (
	session_id        TEXT PRIMARY KEY,
	topics            TEXT NOT NULL,
	primary_topic     TEXT NOT NULL,
	violations        TEXT NOT NULL,
	statutes          TEXT NOT NULL,
	salient_questions TEXT NOT NULL,
	key_answers       TEXT NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);
`

// Store implements the SessionStore, TurnStore and ContextStore ports
// over one SQLite file.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite serializes writes anyway; a single connection also keeps
	// :memory: databases coherent across the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ─────────────────────────────────────────────
// SessionStore
// ─────────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO sessions (id, user_id, status, started_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(sess.ID), string(sess.UserID), string(sess.Status), sess.StartedAt, sess.LastActivityAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrSessionExists
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	var (
		sess             domain.Session
		sid, uid, status string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, started_at, last_activity_at
		FROM sessions WHERE id = ?`, string(id)).
		Scan(&sid, &uid, &status, &sess.StartedAt, &sess.LastActivityAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	sess.ID = domain.SessionID(sid)
	sess.UserID = domain.UserID(uid)
	sess.Status = domain.SessionStatus(status)
	return &sess, nil
}

func (s *Store) TouchSession(ctx context.Context, id domain.SessionID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_activity_at = ?, status = ? WHERE id = ?`,
		at, string(domain.StatusActive), string(id))
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id domain.SessionID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) DeleteIdleSessions(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_activity_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting idle sessions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions WHERE status = ?`, string(domain.StatusActive)).Scan(&n)
	return n, err
}

// ─────────────────────────────────────────────
// TurnStore
// ─────────────────────────────────────────────

func (s *Store) AppendTurns(ctx context.Context, turns []*domain.Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range turns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO turns (id, session_id, sender, text, category, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(t.ID), string(t.SessionID), string(t.Sender), t.Text, string(t.Category), t.CreatedAt); err != nil {
			return fmt.Errorf("inserting turn: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetTurnsBySession(ctx context.Context, id domain.SessionID, limit int) ([]*domain.Turn, error) {
	query := `
		SELECT id, session_id, sender, text, category, created_at
		FROM turns WHERE session_id = ? ORDER BY seq`
	args := []any{string(id)}
	if limit > 0 {
		// Last N in chronological order.
		query = `
			SELECT id, session_id, sender, text, category, created_at FROM (
				SELECT seq, id, session_id, sender, text, category, created_at
				FROM turns WHERE session_id = ? ORDER BY seq DESC LIMIT ?
			) ORDER BY seq`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}
	defer rows.Close()

	var turns []*domain.Turn
	for rows.Next() {
		var (
			t                            domain.Turn
			tid, sid, sender, categoryDB string
		)
		if err := rows.Scan(&tid, &sid, &sender, &t.Text, &categoryDB, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.ID = domain.TurnID(tid)
		t.SessionID = domain.SessionID(sid)
		t.Sender = domain.Sender(sender)
		t.Category = domain.Category(categoryDB)
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

func (s *Store) DeleteTurnsBySession(ctx context.Context, id domain.SessionID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, string(id))
	return err
}

func (s *Store) CountTurns(ctx context.Context, id domain.SessionID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM turns WHERE session_id = ?`, string(id)).Scan(&n)
	return n, err
}

// ─────────────────────────────────────────────
// ContextStore
// ─────────────────────────────────────────────

func (s *Store) GetContext(ctx context.Context, id domain.SessionID) (*domain.ConversationContext, error) {
	var (
		c                                                      domain.ConversationContext
		sid, primaryTopic                                      string
		topics, violations, statutes, salientQs, keyAnswersRaw []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, topics, primary_topic, violations, statutes,
		       salient_questions, key_answers, updated_at
		FROM contexts WHERE session_id = ?`, string(id)).
		Scan(&sid, &topics, &primaryTopic, &violations, &statutes, &salientQs, &keyAnswersRaw, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrContextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading context: %w", err)
	}

	c.SessionID = domain.SessionID(sid)
	c.PrimaryTopic = domain.Category(primaryTopic)
	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{topics, &c.Topics},
		{violations, &c.ViolationsMentioned},
		{statutes, &c.StatuteReferences},
		{salientQs, &c.SalientQuestions},
		{keyAnswersRaw, &c.KeyAnswers},
	} {
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("decoding context: %w", err)
		}
	}
	return &c, nil
}

func (s *Store) SaveContext(ctx context.Context, c *domain.ConversationContext) error {
	topics, err := json.Marshal(emptyIfNil(c.Topics))
	if err != nil {
		return err
	}
	violations, err := json.Marshal(emptyIfNil(c.ViolationsMentioned))
	if err != nil {
		return err
	}
	statutes, err := json.Marshal(emptyIfNil(c.StatuteReferences))
	if err != nil {
		return err
	}
	salientQs, err := json.Marshal(emptyIfNil(c.SalientQuestions))
	if err != nil {
		return err
	}
	keyAnswers, err := json.Marshal(emptyAnswersIfNil(c.KeyAnswers))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contexts (session_id, topics, primary_topic, violations, statutes,
		                      salient_questions, key_answers, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			topics = excluded.topics,
			primary_topic = excluded.primary_topic,
			violations = excluded.violations,
			statutes = excluded.statutes,
			salient_questions = excluded.salient_questions,
			key_answers = excluded.key_answers,
			updated_at = excluded.updated_at`,
		string(c.SessionID), topics, string(c.PrimaryTopic), violations, statutes,
		salientQs, keyAnswers, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving context: %w", err)
	}
	return nil
}

func (s *Store) DeleteContext(ctx context.Context, id domain.SessionID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contexts WHERE session_id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("deleting context: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrContextNotFound
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyAnswersIfNil(s []domain.KeyAnswer) []domain.KeyAnswer {
	if s == nil {
		return []domain.KeyAnswer{}
	}
	return s
}
