package retrieval

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vialy-app/vialy-api/internal/domain"
)

func init() {
	// Registers sqlite-vec as an auto-loadable extension with the
	// mattn/go-sqlite3 driver.
	vec.Auto()
}

// Embedder turns text into a dense vector. Retrieval embeddings are
// asymmetric: corpus passages and search queries use different task
// types and must not be mixed.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// VecIndex is the semantic retriever: passages and their embeddings
// live in a SQLite database with a vec0 virtual table, queried by
// cosine distance.
type VecIndex struct {
	db       *sql.DB
	embedder Embedder
	dim      int
}

// OpenVecIndex opens (creating if necessary) the semantic index at
// path. dim must match the embedding model's output dimension.
func OpenVecIndex(path string, embedder Embedder, dim int) (*VecIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	// One connection keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS passages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			file TEXT NOT NULL,
			page INTEGER NOT NULL
		);
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_passages USING vec0(
			embedding float[%d]
		);
	`, dim)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}

	return &VecIndex{db: db, embedder: embedder, dim: dim}, nil
}

// Add embeds a passage and stores it in the index.
func (x *VecIndex) Add(ctx context.Context, text, file string, page int) error {
	embedding, err := x.embedder.EmbedDocument(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding passage: %w", err)
	}
	if len(embedding) != x.dim {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), x.dim)
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO passages (content, file, page) VALUES (?, ?, ?)`,
		normalizeText(text), file, page)
	if err != nil {
		return fmt.Errorf("inserting passage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vec_passages (rowid, embedding) VALUES (?, ?)`,
		id, encodeFloat32Slice(embedding)); err != nil {
		return fmt.Errorf("inserting embedding: %w", err)
	}

	return tx.Commit()
}

// Search embeds the query and returns the k nearest passages by cosine
// distance.
func (x *VecIndex) Search(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	embedding, err := x.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT p.content, p.file, p.page,
		       vec_distance_cosine(v.embedding, ?) AS distance
		FROM vec_passages v
		JOIN passages p ON p.id = v.rowid
		ORDER BY distance ASC
		LIMIT ?`, encodeFloat32Slice(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var passages []domain.Passage
	for rows.Next() {
		var (
			content, file string
			page          int
			distance      float64
		)
		if err := rows.Scan(&content, &file, &page, &distance); err != nil {
			return nil, err
		}
		passages = append(passages, newPassage(content, file, page))
	}
	return passages, rows.Err()
}

// Count returns the number of indexed passages.
func (x *VecIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passages`).Scan(&n)
	return n, err
}

func (x *VecIndex) Close() error {
	return x.db.Close()
}

// encodeFloat32Slice converts a float32 slice to bytes (little-endian),
// the blob format sqlite-vec expects.
func encodeFloat32Slice(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
