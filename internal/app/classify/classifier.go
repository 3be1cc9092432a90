// Package classify assigns a category and an intent to each user query
// using lexical signals only. Classification is a pure function of the
// lower-cased query text: no external calls, never an error. A wrong but
// present category is preferable to blocking the pipeline.
package classify

import (
	"strings"
	"sync"

	"github.com/vialy-app/vialy-api/internal/domain"
)

// categoryKeywords holds the keyword set per category. Scoring counts
// how many of a category's keywords appear as substrings of the query.
var categoryKeywords = map[domain.Category][]string{
	domain.CategoryMulta:         {"multa", "sanción", "penalización", "cuánto", "infracción", "comparendo", "pagar"},
	domain.CategoryRequisito:     {"documento", "requisito", "necesito", "tramite", "permiso", "llevar", "presentar"},
	domain.CategoryNormativa:     {"ley", "artículo", "norma", "código", "dice", "establece", "legal"},
	domain.CategoryProcedimiento: {"cómo", "pasos", "proceso", "renovar", "obtener", "hacer", "dónde"},
}

// Intent phrase buckets. Advice phrases are checked first: they win when
// both an advice phrase and an explanation phrase match.
var (
	advicePhrases  = []string{"cómo", "pasos", "proceso", "debo"}
	explainPhrases = []string{"qué es", "por qué", "explica", "funciona"}
)

const maxMemoEntries = 256

// Classifier memoizes classification results by lower-cased query text.
type Classifier struct {
	mu   sync.Mutex
	memo map[string]domain.Category
}

func New() *Classifier {
	return &Classifier{
		memo: make(map[string]domain.Category),
	}
}

// Classify maps a free-text query to a category. For each category it
// counts keyword hits and picks the strictly highest score; ties resolve
// to the first category in enumeration order. Zero hits means GENERAL.
func (c *Classifier) Classify(query string) domain.Category {
	lower := strings.ToLower(query)

	c.mu.Lock()
	if cat, ok := c.memo[lower]; ok {
		c.mu.Unlock()
		return cat
	}
	c.mu.Unlock()

	best := domain.CategoryGeneral
	bestScore := 0
	for _, cat := range domain.Categories() {
		score := 0
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = cat
			bestScore = score
		}
	}

	c.mu.Lock()
	if len(c.memo) < maxMemoEntries {
		c.memo[lower] = best
	}
	c.mu.Unlock()

	return best
}

// EstimateIntent distinguishes fact lookup, explanation, and advice.
func (c *Classifier) EstimateIntent(query string) domain.Intent {
	lower := strings.ToLower(query)

	for _, p := range advicePhrases {
		if strings.Contains(lower, p) {
			return domain.IntentAdvice
		}
	}
	for _, p := range explainPhrases {
		if strings.Contains(lower, p) {
			return domain.IntentExplain
		}
	}
	return domain.IntentInfo
}

// Analyze runs classification and intent estimation together.
func (c *Classifier) Analyze(query string) (domain.Category, domain.Intent) {
	return c.Classify(query), c.EstimateIntent(query)
}
