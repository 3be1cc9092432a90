package retrieval

import (
	"context"
	"log/slog"

	"github.com/vialy-app/vialy-api/internal/domain"
	"github.com/vialy-app/vialy-api/internal/observability"
)

// Chain tries retrievers in preference order and returns the first
// non-empty result. A failing retriever is logged and skipped: answers
// degrade to general knowledge rather than erroring out.
type Chain struct {
	retrievers []domain.Retriever
	log        *slog.Logger
}

func NewChain(retrievers ...domain.Retriever) *Chain {
	return &Chain{
		retrievers: retrievers,
		log:        observability.Component("retrieval"),
	}
}

func (c *Chain) Search(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	for i, r := range c.retrievers {
		passages, err := r.Search(ctx, query, k)
		if err != nil {
			c.log.Warn("retriever failed, trying next", "position", i, "error", err)
			continue
		}
		if len(passages) > 0 {
			return passages, nil
		}
	}
	return nil, nil
}
