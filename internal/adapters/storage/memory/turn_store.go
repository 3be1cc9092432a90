package memory

import (
	"context"
	"sync"

	"github.com/vialy-app/vialy-api/internal/domain"
)

type TurnStore struct {
	mu    sync.RWMutex
	turns map[domain.SessionID][]*domain.Turn
}

func NewTurnStore() *TurnStore {
	return &TurnStore{
		turns: make(map[domain.SessionID][]*domain.Turn),
	}
}

func (s *TurnStore) AppendTurns(_ context.Context, turns []*domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range turns {
		cp := *t
		s.turns[t.SessionID] = append(s.turns[t.SessionID], &cp)
	}
	return nil
}

func (s *TurnStore) GetTurnsBySession(_ context.Context, id domain.SessionID, limit int) ([]*domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[id]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	out := make([]*domain.Turn, 0, len(turns))
	for _, t := range turns {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (s *TurnStore) DeleteTurnsBySession(_ context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.turns, id)
	return nil
}

func (s *TurnStore) CountTurns(_ context.Context, id domain.SessionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.turns[id]), nil
}
