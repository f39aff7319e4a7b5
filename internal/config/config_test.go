package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.HTTPPort != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.CacheTTL != 300*time.Second {
		t.Errorf("expected default cache TTL 300s, got %s", cfg.CacheTTL)
	}
	if cfg.CacheMaxEntries != 1000 {
		t.Errorf("expected default cache capacity 1000, got %d", cfg.CacheMaxEntries)
	}
	if cfg.SearchTimeout != 5*time.Second {
		t.Errorf("expected default search timeout 5s, got %s", cfg.SearchTimeout)
	}
	if cfg.EmbeddingDimension != 1536 {
		t.Errorf("expected default dimension 1536, got %d", cfg.EmbeddingDimension)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("CACHE_TTL", "60s")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.HTTPPort != 9999 {
		t.Errorf("expected overridden port 9999, got %d", cfg.HTTPPort)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("expected overridden TTL 60s, got %s", cfg.CacheTTL)
	}
	if cfg.EmbeddingProvider != "ollama" {
		t.Errorf("expected overridden provider, got %s", cfg.EmbeddingProvider)
	}
}
