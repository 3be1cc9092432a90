// Package retrieval provides the document retrievers backing answers:
// a sqlite-vec semantic index, an SQLite FTS5 keyword index kept for
// legacy corpora, and a chain that tries them in preference order.
package retrieval

import (
	"strings"

	"github.com/vialy-app/vialy-api/internal/domain"
)

const excerptLength = 300

// normalizeText collapses all whitespace runs to single spaces so
// passages extracted from PDFs read as continuous text.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// excerpt shortens a passage for the source attribution shown to users.
func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptLength {
		return s
	}
	return string(r[:excerptLength]) + "..."
}

func newPassage(text, file string, page int) domain.Passage {
	normalized := normalizeText(text)
	return domain.Passage{
		Text: normalized,
		Source: domain.Source{
			Excerpt: excerpt(normalized),
			Page:    page,
			File:    file,
		},
	}
}
