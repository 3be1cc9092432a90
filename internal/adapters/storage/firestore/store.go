// Package firestore persists sessions, turns and conversation contexts
// in Cloud Firestore for multi-instance deployments.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vialy-app/vialy-api/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for the given GCP project.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionRef(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) turnsCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionRef(sessionID).Collection("turns")
}

func (s *Store) contextRef(sessionID domain.SessionID) *firestore.DocumentRef {
	return s.client.Collection("contexts").Doc(string(sessionID))
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	UserID         string    `firestore:"usuario_id"`
	Status         string    `firestore:"status"`
	StartedAt      time.Time `firestore:"started_at"`
	LastActivityAt time.Time `firestore:"last_activity_at"`
}

type turnDoc struct {
	SessionID string    `firestore:"session_id"`
	Sender    string    `firestore:"sender"`
	Text      string    `firestore:"text"`
	Category  string    `firestore:"category"`
	CreatedAt time.Time `firestore:"created_at"`
	// Seq breaks ties within a batch: both turns of a pair share one
	// created_at timestamp.
	Seq int `firestore:"seq"`
}

type keyAnswerDoc struct {
	Question  string    `firestore:"question"`
	Answer    string    `firestore:"answer"`
	Category  string    `firestore:"category"`
	Timestamp time.Time `firestore:"timestamp"`
}

type contextDoc struct {
	Topics              []string       `firestore:"topics"`
	PrimaryTopic        string         `firestore:"primary_topic"`
	ViolationsMentioned []string       `firestore:"violations_mentioned"`
	StatuteReferences   []string       `firestore:"statute_references"`
	SalientQuestions    []string       `firestore:"salient_questions"`
	KeyAnswers          []keyAnswerDoc `firestore:"key_answers"`
	UpdatedAt           time.Time      `firestore:"updated_at"`
}

// ─────────────────────────────────────────
// SessionStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	doc := sessionDoc{
		UserID:         string(sess.UserID),
		Status:         string(sess.Status),
		StartedAt:      sess.StartedAt,
		LastActivityAt: sess.LastActivityAt,
	}

	_, err := s.sessionRef(sess.ID).Create(ctx, doc)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return domain.ErrSessionExists
		}
		return fmt.Errorf("firestore CreateSession: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	snap, err := s.sessionRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("firestore GetSession: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetSession decode: %w", err)
	}

	return &domain.Session{
		ID:             id,
		UserID:         domain.UserID(doc.UserID),
		Status:         domain.SessionStatus(doc.Status),
		StartedAt:      doc.StartedAt,
		LastActivityAt: doc.LastActivityAt,
	}, nil
}

func (s *Store) TouchSession(ctx context.Context, id domain.SessionID, at time.Time) error {
	_, err := s.sessionRef(id).Update(ctx, []firestore.Update{
		{Path: "last_activity_at", Value: at},
		{Path: "status", Value: string(domain.StatusActive)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("firestore TouchSession: %w", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id domain.SessionID) error {
	// Delete is idempotent in Firestore, so existence is checked first.
	if _, err := s.GetSession(ctx, id); err != nil {
		return err
	}

	if _, err := s.sessionRef(id).Delete(ctx); err != nil {
		return fmt.Errorf("firestore DeleteSession: %w", err)
	}
	return nil
}

func (s *Store) DeleteIdleSessions(ctx context.Context, cutoff time.Time) (int, error) {
	iter := s.sessionsCol().Where("last_activity_at", "<", cutoff).Documents(ctx)
	defer iter.Stop()

	removed := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return removed, fmt.Errorf("firestore DeleteIdleSessions: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return removed, fmt.Errorf("firestore DeleteIdleSessions: %w", err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) CountActive(ctx context.Context) (int, error) {
	iter := s.sessionsCol().Where("status", "==", string(domain.StatusActive)).Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("firestore CountActive: %w", err)
		}
		count++
	}
	return count, nil
}

// ─────────────────────────────────────────
// TurnStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendTurns(ctx context.Context, turns []*domain.Turn) error {
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(turns))
	for i, t := range turns {
		doc := turnDoc{
			SessionID: string(t.SessionID),
			Sender:    string(t.Sender),
			Text:      t.Text,
			Category:  string(t.Category),
			CreatedAt: t.CreatedAt,
			Seq:       i,
		}
		job, err := bw.Set(s.turnsCol(t.SessionID).Doc(string(t.ID)), doc)
		if err != nil {
			return fmt.Errorf("firestore AppendTurns: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("firestore AppendTurns write: %w", err)
		}
	}
	return nil
}

func (s *Store) GetTurnsBySession(ctx context.Context, sessionID domain.SessionID, limit int) ([]*domain.Turn, error) {
	q := s.turnsCol(sessionID).OrderBy("created_at", firestore.Asc).OrderBy("seq", firestore.Asc)
	if limit > 0 {
		q = s.turnsCol(sessionID).OrderBy("created_at", firestore.Desc).OrderBy("seq", firestore.Desc).Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*domain.Turn
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore GetTurnsBySession: %w", err)
		}

		var doc turnDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode turnDoc: %w", err)
		}

		out = append(out, &domain.Turn{
			ID:        domain.TurnID(snap.Ref.ID),
			SessionID: sessionID,
			Sender:    domain.Sender(doc.Sender),
			Text:      doc.Text,
			Category:  domain.Category(doc.Category),
			CreatedAt: doc.CreatedAt,
		})
	}

	if limit > 0 {
		// The limited query came back newest first.
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (s *Store) DeleteTurnsBySession(ctx context.Context, sessionID domain.SessionID) error {
	iter := s.turnsCol(sessionID).Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("firestore DeleteTurnsBySession: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("firestore DeleteTurnsBySession: %w", err)
		}
	}
	return nil
}

func (s *Store) CountTurns(ctx context.Context, sessionID domain.SessionID) (int, error) {
	iter := s.turnsCol(sessionID).Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("firestore CountTurns: %w", err)
		}
		count++
	}
	return count, nil
}

// ─────────────────────────────────────────
// ContextStore implementation
// ─────────────────────────────────────────

func (s *Store) GetContext(ctx context.Context, sessionID domain.SessionID) (*domain.ConversationContext, error) {
	snap, err := s.contextRef(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrContextNotFound
		}
		return nil, fmt.Errorf("firestore GetContext: %w", err)
	}

	var doc contextDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode contextDoc: %w", err)
	}

	answers := make([]domain.KeyAnswer, 0, len(doc.KeyAnswers))
	for _, a := range doc.KeyAnswers {
		answers = append(answers, domain.KeyAnswer{
			Question:  a.Question,
			Answer:    a.Answer,
			Category:  domain.Category(a.Category),
			Timestamp: a.Timestamp,
		})
	}

	return &domain.ConversationContext{
		SessionID:           sessionID,
		Topics:              doc.Topics,
		PrimaryTopic:        domain.Category(doc.PrimaryTopic),
		ViolationsMentioned: doc.ViolationsMentioned,
		StatuteReferences:   doc.StatuteReferences,
		SalientQuestions:    doc.SalientQuestions,
		KeyAnswers:          answers,
		UpdatedAt:           doc.UpdatedAt,
	}, nil
}

func (s *Store) SaveContext(ctx context.Context, c *domain.ConversationContext) error {
	answers := make([]keyAnswerDoc, 0, len(c.KeyAnswers))
	for _, a := range c.KeyAnswers {
		answers = append(answers, keyAnswerDoc{
			Question:  a.Question,
			Answer:    a.Answer,
			Category:  string(a.Category),
			Timestamp: a.Timestamp,
		})
	}

	doc := contextDoc{
		Topics:              c.Topics,
		PrimaryTopic:        string(c.PrimaryTopic),
		ViolationsMentioned: c.ViolationsMentioned,
		StatuteReferences:   c.StatuteReferences,
		SalientQuestions:    c.SalientQuestions,
		KeyAnswers:          answers,
		UpdatedAt:           c.UpdatedAt,
	}

	if _, err := s.contextRef(c.SessionID).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore SaveContext: %w", err)
	}
	return nil
}

func (s *Store) DeleteContext(ctx context.Context, sessionID domain.SessionID) error {
	snap, err := s.contextRef(sessionID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.ErrContextNotFound
		}
		return fmt.Errorf("firestore DeleteContext: %w", err)
	}

	if _, err := snap.Ref.Delete(ctx); err != nil {
		return fmt.Errorf("firestore DeleteContext: %w", err)
	}
	return nil
}
