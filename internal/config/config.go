package config

import (
	"log"
	"os"
	"strconv"
)

type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
	ProviderMock   LLMProvider = "mock"
)

type Config struct {
	Port string

	// LLM
	LLMProvider  LLMProvider
	GoogleAPIKey string
	ModelName    string
	OpenAIAPIKey string
	OpenAIModel  string
	Temperature  float64
	MaxTokens    int

	// Retrieval
	IndexPath       string // SQLite database holding the semantic index
	LegacyIndexPath string // SQLite FTS5 index kept as fallback
	TopKDocuments   int
	EmbeddingModel  string

	// Storage: "memory", "sqlite" or "firestore"
	StorageBackend string
	DBPath         string
	GCPProjectID   string
	GCPLocation    string

	// Conversation
	MaxConversationHistory int // turns injected into prompts
	SessionTimeoutHours    int
	MaxCacheSize           int
	FastMode               bool // speed-optimized prompts, no history/context
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getFloatEnv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %g", key, v, def)
		return def
	}
	return f
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "TRUE"
}

// Load reads all env vars and builds the config.
func Load() *Config {
	cfg := &Config{
		Port: getEnv("VIALY_PORT", "8080"),

		LLMProvider:  LLMProvider(getEnv("VIALY_LLM_PROVIDER", "gemini")),
		GoogleAPIKey: getEnv("GOOGLE_API_KEY", ""),
		ModelName:    getEnv("MODEL_NAME", "gemini-2.0-flash"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		Temperature:  getFloatEnv("TEMPERATURE", 0.3),
		MaxTokens:    getIntEnv("MAX_TOKENS", 1000),

		IndexPath:       getEnv("VIALY_INDEX_PATH", "./data/index.db"),
		LegacyIndexPath: getEnv("VIALY_LEGACY_INDEX_PATH", "./data/index_fts.db"),
		TopKDocuments:   getIntEnv("TOP_K_DOCUMENTS", 3),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),

		StorageBackend: getEnv("VIALY_STORAGE_BACKEND", "memory"),
		DBPath:         getEnv("VIALY_DB_PATH", "./data/vialy.db"),
		GCPProjectID:   getEnv("VIALY_GCP_PROJECT", ""),
		GCPLocation:    getEnv("VIALY_GCP_LOCATION", ""),

		MaxConversationHistory: getIntEnv("MAX_CONVERSATION_HISTORY", 5),
		SessionTimeoutHours:    getIntEnv("SESSION_TIMEOUT_HOURS", 24),
		MaxCacheSize:           getIntEnv("MAX_CACHE_SIZE", 100),
		FastMode:               getBoolEnv("VIALY_FAST_MODE", false),
	}

	// Minimal validation for the non-mock providers.
	if cfg.LLMProvider == ProviderGemini && cfg.GoogleAPIKey == "" {
		log.Println("config: GOOGLE_API_KEY not set, falling back to mock LLM")
		cfg.LLMProvider = ProviderMock
	}
	if cfg.LLMProvider == ProviderOpenAI && cfg.OpenAIAPIKey == "" {
		log.Println("config: OPENAI_API_KEY not set, falling back to mock LLM")
		cfg.LLMProvider = ProviderMock
	}
	if cfg.StorageBackend == "firestore" && cfg.GCPProjectID == "" {
		log.Fatal("VIALY_GCP_PROJECT must be set for the firestore backend")
	}

	return cfg
}
