package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/vialy-app/vialy-api/internal/adapters/embedding"
	httpadapter "github.com/vialy-app/vialy-api/internal/adapters/http"
	"github.com/vialy-app/vialy-api/internal/adapters/llm"
	"github.com/vialy-app/vialy-api/internal/adapters/retrieval"
	firestorestore "github.com/vialy-app/vialy-api/internal/adapters/storage/firestore"
	memstore "github.com/vialy-app/vialy-api/internal/adapters/storage/memory"
	sqlitestore "github.com/vialy-app/vialy-api/internal/adapters/storage/sqlite"
	"github.com/vialy-app/vialy-api/internal/app/cache"
	"github.com/vialy-app/vialy-api/internal/app/chat"
	"github.com/vialy-app/vialy-api/internal/app/classify"
	"github.com/vialy-app/vialy-api/internal/app/convocontext"
	"github.com/vialy-app/vialy-api/internal/app/prompt"
	"github.com/vialy-app/vialy-api/internal/app/session"
	"github.com/vialy-app/vialy-api/internal/config"
	"github.com/vialy-app/vialy-api/internal/domain"
	"github.com/vialy-app/vialy-api/internal/observability"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()
	logger := observability.Component("main")

	llmClient := buildLLMClient(ctx, cfg)
	sessionStore, turnStore, contextStore := buildStorage(ctx, cfg)
	retriever := buildRetriever(ctx, cfg)

	svc := chat.NewService(chat.Config{
		Classifier: classify.New(),
		Sessions:   session.NewManager(sessionStore, turnStore, time.Duration(cfg.SessionTimeoutHours)*time.Hour),
		Contexts:   convocontext.NewManager(contextStore),
		Composer:   prompt.NewComposer(cfg.FastMode),
		Cache:      cache.New(cfg.MaxCacheSize),
		Retriever:  retriever,
		LLM:        llmClient,
		TopK:       cfg.TopKDocuments,
		MaxHistory: cfg.MaxConversationHistory,
	})

	handler := httpadapter.NewServer(svc)

	addr := ":" + cfg.Port
	logger.Info("vialy api listening", "addr", addr, "provider", string(cfg.LLMProvider), "storage", cfg.StorageBackend)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
}

func buildLLMClient(ctx context.Context, cfg *config.Config) domain.LLMClient {
	logger := observability.Component("main")

	switch cfg.LLMProvider {
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:      cfg.GoogleAPIKey,
			Project:     cfg.GCPProjectID,
			Location:    cfg.GCPLocation,
			Model:       cfg.ModelName,
			Temperature: float32(cfg.Temperature),
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			log.Fatalf("initializing Gemini client: %v", err)
		}
		logger.Info("llm client ready", "provider", "gemini", "model", cfg.ModelName)
		return client

	case config.ProviderOpenAI:
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			Temperature: float32(cfg.Temperature),
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			log.Fatalf("initializing OpenAI client: %v", err)
		}
		logger.Info("llm client ready", "provider", "openai", "model", cfg.OpenAIModel)
		return client

	default:
		logger.Warn("using mock llm client")
		return llm.NewMockClient()
	}
}

func buildStorage(ctx context.Context, cfg *config.Config) (domain.SessionStore, domain.TurnStore, domain.ContextStore) {
	logger := observability.Component("main")

	switch cfg.StorageBackend {
	case "firestore":
		store, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("initializing Firestore store: %v", err)
		}
		logger.Info("storage ready", "backend", "firestore", "project", cfg.GCPProjectID)
		return store, store, store

	case "sqlite":
		store, err := sqlitestore.Open(cfg.DBPath)
		if err != nil {
			log.Fatalf("initializing SQLite store: %v", err)
		}
		logger.Info("storage ready", "backend", "sqlite", "path", cfg.DBPath)
		return store, store, store

	default:
		logger.Info("storage ready", "backend", "memory")
		return memstore.NewSessionStore(), memstore.NewTurnStore(), memstore.NewContextStore()
	}
}

func buildRetriever(ctx context.Context, cfg *config.Config) domain.Retriever {
	logger := observability.Component("main")

	var retrievers []domain.Retriever

	if cfg.GoogleAPIKey != "" {
		embedder, err := embedding.NewGeminiEngine(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel)
		if err != nil {
			logger.Warn("embedding engine unavailable, skipping semantic index", "error", err)
		} else {
			index, err := retrieval.OpenVecIndex(cfg.IndexPath, embedder, embedding.Dimensions)
			if err != nil {
				logger.Warn("semantic index unavailable", "path", cfg.IndexPath, "error", err)
			} else {
				retrievers = append(retrievers, index)
			}
		}
	}

	fts, err := retrieval.OpenFTSIndex(cfg.LegacyIndexPath)
	if err != nil {
		logger.Warn("keyword index unavailable", "path", cfg.LegacyIndexPath, "error", err)
	} else {
		retrievers = append(retrievers, fts)
	}

	return retrieval.NewChain(retrievers...)
}
