// Command vialy-index builds the retrieval indexes from a directory of
// plain-text extractions of the traffic code. Each file is split into
// paragraph chunks; every chunk lands in both the semantic index and
// the keyword fallback index.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/vialy-app/vialy-api/internal/adapters/embedding"
	"github.com/vialy-app/vialy-api/internal/adapters/retrieval"
	"github.com/vialy-app/vialy-api/internal/config"
)

const minChunkLength = 80

func main() {
	corpusDir := flag.String("corpus", "./corpus", "directory with .txt files to index")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	if cfg.GoogleAPIKey == "" {
		log.Fatal("GOOGLE_API_KEY is required to build the semantic index")
	}

	embedder, err := embedding.NewGeminiEngine(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel)
	if err != nil {
		log.Fatalf("initializing embedder: %v", err)
	}

	vecIndex, err := retrieval.OpenVecIndex(cfg.IndexPath, embedder, embedding.Dimensions)
	if err != nil {
		log.Fatalf("opening semantic index: %v", err)
	}
	defer vecIndex.Close()

	ftsIndex, err := retrieval.OpenFTSIndex(cfg.LegacyIndexPath)
	if err != nil {
		log.Fatalf("opening keyword index: %v", err)
	}
	defer ftsIndex.Close()

	files, err := filepath.Glob(filepath.Join(*corpusDir, "*.txt"))
	if err != nil {
		log.Fatalf("listing corpus: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no .txt files found in %s", *corpusDir)
	}

	total := 0
	for _, file := range files {
		n, err := indexFile(ctx, vecIndex, ftsIndex, file)
		if err != nil {
			log.Fatalf("indexing %s: %v", file, err)
		}
		fmt.Printf("%s: %d chunks\n", filepath.Base(file), n)
		total += n
	}

	count, err := vecIndex.Count(ctx)
	if err != nil {
		log.Fatalf("counting passages: %v", err)
	}
	fmt.Printf("done: %d chunks added, %d passages in index\n", total, count)
}

func indexFile(ctx context.Context, vecIndex *retrieval.VecIndex, ftsIndex *retrieval.FTSIndex, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	name := filepath.Base(path)
	added := 0
	// Page numbers are approximated as the chunk's ordinal within the
	// file, which is enough for source attribution.
	for i, chunk := range splitChunks(string(data)) {
		if err := vecIndex.Add(ctx, chunk, name, i+1); err != nil {
			return added, err
		}
		if err := ftsIndex.Add(ctx, chunk, name, i+1); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// splitChunks breaks a document on blank lines, dropping fragments too
// short to be useful as retrieval passages.
func splitChunks(text string) []string {
	var chunks []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if len([]rune(block)) >= minChunkLength {
			chunks = append(chunks, block)
		}
	}
	return chunks
}
