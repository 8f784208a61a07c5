package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LIBRAG_CONFIG", "")
	t.Setenv("LIBRAG_EMBED_DIM", "")
	cfg := Load()
	if cfg.EmbedDim != 384 {
		t.Fatalf("expected default dim 384, got %d", cfg.EmbedDim)
	}
	if cfg.RetrievalBatchSize != 20 || cfg.RetrievalMaxBatches != 25 {
		t.Fatalf("unexpected retrieval defaults: %+v", cfg)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LIBRAG_EMBED_DIM", "512")
	t.Setenv("LIBRAG_API_ADDR", ":9000")
	cfg := Load()
	if cfg.EmbedDim != 512 || cfg.APIAddr != ":9000" {
		t.Fatalf("env override not applied: %+v", cfg)
	}
}

func TestLoadFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("embed_dim: 768\nchunk_size: 800\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIBRAG_CONFIG", path)
	cfg := Load()
	if cfg.EmbedDim != 768 || cfg.ChunkSize != 800 {
		t.Fatalf("file override not applied: %+v", cfg)
	}
}

func TestLoadBadIntFallsBack(t *testing.T) {
	t.Setenv("LIBRAG_CHUNK_SIZE", "not-a-number")
	cfg := Load()
	if cfg.ChunkSize != 1000 {
		t.Fatalf("expected fallback chunk size, got %d", cfg.ChunkSize)
	}
}
