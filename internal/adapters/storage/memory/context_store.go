package memory

import (
	"context"
	"sync"

	"github.com/vialy-app/vialy-api/internal/domain"
)

type ContextStore struct {
	mu       sync.RWMutex
	contexts map[domain.SessionID]*domain.ConversationContext
}

func NewContextStore() *ContextStore {
	return &ContextStore{
		contexts: make(map[domain.SessionID]*domain.ConversationContext),
	}
}

func (s *ContextStore) GetContext(_ context.Context, id domain.SessionID) (*domain.ConversationContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contexts[id]
	if !ok {
		return nil, domain.ErrContextNotFound
	}

	cp := *c
	cp.Topics = append([]string(nil), c.Topics...)
	cp.ViolationsMentioned = append([]string(nil), c.ViolationsMentioned...)
	cp.StatuteReferences = append([]string(nil), c.StatuteReferences...)
	cp.SalientQuestions = append([]string(nil), c.SalientQuestions...)
	cp.KeyAnswers = append([]domain.KeyAnswer(nil), c.KeyAnswers...)
	return &cp, nil
}

func (s *ContextStore) SaveContext(_ context.Context, c *domain.ConversationContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.contexts[c.SessionID] = &cp
	return nil
}

func (s *ContextStore) DeleteContext(_ context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contexts[id]; !ok {
		return domain.ErrContextNotFound
	}

	delete(s.contexts, id)
	return nil
}
