package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vialy-app/vialy-api/internal/domain"
)

// FTSIndex is the keyword retriever over an SQLite FTS5 index. It is
// the legacy fallback for corpora built before the semantic index
// existed.
type FTSIndex struct {
	db *sql.DB
}

// OpenFTSIndex opens (creating if necessary) the keyword index at path.
func OpenFTSIndex(path string) (*FTSIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS passages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			file TEXT NOT NULL,
			page INTEGER NOT NULL
		);
		CREATE VIRTUAL TABLE IF NOT EXISTS passages_fts USING fts5(
			content,
			content='passages',
			content_rowid='id'
		);
		CREATE TRIGGER IF NOT EXISTS passages_ai AFTER INSERT ON passages BEGIN
			INSERT INTO passages_fts (rowid, content) VALUES (new.id, new.content);
		END;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}

	return &FTSIndex{db: db}, nil
}

// Add stores a passage in the keyword index.
func (x *FTSIndex) Add(ctx context.Context, text, file string, page int) error {
	_, err := x.db.ExecContext(ctx,
		`INSERT INTO passages (content, file, page) VALUES (?, ?, ?)`,
		normalizeText(text), file, page)
	if err != nil {
		return fmt.Errorf("inserting passage: %w", err)
	}
	return nil
}

// Search matches the query tokens against the index, best rank first.
func (x *FTSIndex) Search(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT p.content, p.file, p.page
		FROM passages_fts f
		JOIN passages p ON p.id = f.rowid
		WHERE passages_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, match, k)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var passages []domain.Passage
	for rows.Next() {
		var (
			content, file string
			page          int
		)
		if err := rows.Scan(&content, &file, &page); err != nil {
			return nil, err
		}
		passages = append(passages, newPassage(content, file, page))
	}
	return passages, rows.Err()
}

func (x *FTSIndex) Close() error {
	return x.db.Close()
}

// ftsQuery quotes each token so punctuation in user text cannot be
// parsed as FTS5 syntax, and ORs them so partial matches still rank.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		tokens = append(tokens, `"`+f+`"`)
	}
	return strings.Join(tokens, " OR ")
}
