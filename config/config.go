// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	StoreFile     = "file"
	StorePostgres = "postgres"
)

const maxRetrievalK = 50

type LLMConfig struct {
	Provider string
	Model    string
}

type EmbeddingsConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type Config struct {
	HTTPAddr string
	DataDir  string

	LLM        LLMConfig
	Embeddings EmbeddingsConfig

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	VectorStore  string
	VectorDBPath string
	PostgresDSN  string

	ChunkSize    int
	ChunkOverlap int
	RetrievalK   int

	GenerationTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		DataDir:  getEnv("DATA_DIR", "./data"),
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:    getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
		},
		OllamaHost:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		VectorStore:       getEnv("VECTOR_STORE", StoreFile),
		VectorDBPath:      getEnv("VECTOR_DB_PATH", "./vector_db"),
		PostgresDSN:       getEnv("POSTGRES_DSN", "postgres://localhost:5432/ragchat?sslmode=disable"),
		ChunkSize:         getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:      getEnvInt("CHUNK_OVERLAP", 200),
		RetrievalK:        getEnvInt("RETRIEVAL_K", 3),
		GenerationTimeout: getEnvDuration("GENERATION_TIMEOUT", 60*time.Second),
	}
}

// Validate rejects configurations that would corrupt chunking or retrieval.
// Errors here are fatal at startup and never retried.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("config: chunk overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("config: embedding dimension must be positive, got %d", c.Embeddings.Dimension)
	}
	if c.RetrievalK < 1 || c.RetrievalK > maxRetrievalK {
		return fmt.Errorf("config: retrieval k must be in 1..%d, got %d", maxRetrievalK, c.RetrievalK)
	}
	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	switch c.Embeddings.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("config: unknown embeddings provider %q", c.Embeddings.Provider)
	}
	switch c.VectorStore {
	case StoreFile, StorePostgres:
	default:
		return fmt.Errorf("config: unknown vector store %q", c.VectorStore)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
