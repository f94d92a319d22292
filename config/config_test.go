package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		LLM:               LLMConfig{Provider: ProviderOpenAI, Model: "gpt-4o-mini"},
		Embeddings:        EmbeddingsConfig{Provider: ProviderOpenAI, Model: "text-embedding-3-small", Dimension: 1536},
		VectorStore:       StoreFile,
		ChunkSize:         1000,
		ChunkOverlap:      200,
		RetrievalK:        3,
		GenerationTimeout: 60 * time.Second,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsOverlapNotLessThanSize(t *testing.T) {
	cfg := validConfig()
	cfg.ChunkOverlap = cfg.ChunkSize
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when overlap equals chunk size")
	}

	cfg.ChunkOverlap = cfg.ChunkSize + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when overlap exceeds chunk size")
	}
}

func TestValidateRejectsNonPositiveDimension(t *testing.T) {
	cfg := validConfig()
	cfg.Embeddings.Dimension = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

func TestValidateBoundsRetrievalK(t *testing.T) {
	cfg := validConfig()
	cfg.RetrievalK = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for k = 0")
	}

	cfg.RetrievalK = 51
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for k > 50")
	}
}

func TestValidateRejectsUnknownProviders(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.Provider = "mystery"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown llm provider")
	}

	cfg = validConfig()
	cfg.Embeddings.Provider = "mystery"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown embeddings provider")
	}

	cfg = validConfig()
	cfg.VectorStore = "mystery"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown vector store")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "512")
	t.Setenv("CHUNK_OVERLAP", "64")
	t.Setenv("GENERATION_TIMEOUT", "30s")
	t.Setenv("LLM_PROVIDER", ProviderOllama)

	cfg := Load()
	if cfg.ChunkSize != 512 || cfg.ChunkOverlap != 64 {
		t.Fatalf("env overrides not applied: size=%d overlap=%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.GenerationTimeout != 30*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.GenerationTimeout)
	}
	if cfg.LLM.Provider != ProviderOllama {
		t.Fatalf("unexpected provider: %s", cfg.LLM.Provider)
	}
}
