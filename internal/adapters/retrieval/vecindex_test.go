package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vectorEmbedder returns canned vectors and counts which embedding
// path each call went through.
type vectorEmbedder struct {
	vectors    map[string][]float32
	docCalls   int
	queryCalls int
}

func (e *vectorEmbedder) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	e.docCalls++
	return e.vectors[text], nil
}

func (e *vectorEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.queryCalls++
	return e.vectors[text], nil
}

func TestVecIndexAddAndSearch(t *testing.T) {
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"multa por exceso de velocidad en vía urbana": {1, 0, 0, 0},
		"documentos obligatorios para conducir":       {0, 1, 0, 0},
		"¿cuánto cuesta la multa por velocidad?":      {0.9, 0.1, 0, 0},
	}}

	index, err := OpenVecIndex(":memory:", embedder, 4)
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	ctx := context.Background()
	require.NoError(t, index.Add(ctx, "multa por exceso de velocidad en vía urbana", "codigo.pdf", 12))
	require.NoError(t, index.Add(ctx, "documentos obligatorios para conducir", "codigo.pdf", 30))

	n, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	passages, err := index.Search(ctx, "¿cuánto cuesta la multa por velocidad?", 2)
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "multa por exceso de velocidad en vía urbana", passages[0].Text)
	assert.Equal(t, "codigo.pdf", passages[0].Source.File)
	assert.Equal(t, 12, passages[0].Source.Page)

	// Passages are embedded with the document task, queries with the
	// query task; the two paths never cross.
	assert.Equal(t, 2, embedder.docCalls)
	assert.Equal(t, 1, embedder.queryCalls)
}

func TestVecIndexRejectsDimensionMismatch(t *testing.T) {
	embedder := &vectorEmbedder{vectors: map[string][]float32{
		"texto corto": {1, 0},
	}}

	index, err := OpenVecIndex(":memory:", embedder, 4)
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	err = index.Add(context.Background(), "texto corto", "codigo.pdf", 1)
	assert.ErrorContains(t, err, "dimension mismatch")
}
