package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chunker.Size != 1000 || cfg.Chunker.Overlap != 200 || cfg.Chunker.MinChars != 50 {
		t.Fatalf("chunker defaults: %+v", cfg.Chunker)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.SimilarityThreshold != 0.7 {
		t.Fatalf("retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Ingest.BatchSize != 50 {
		t.Fatalf("BatchSize=%d", cfg.Ingest.BatchSize)
	}
	if cfg.Voice.ConnectTimeout != 30 || cfg.Voice.ReadTimeout != 60 || cfg.Voice.WriteTimeout != 60 {
		t.Fatalf("voice timeouts: %+v", cfg.Voice)
	}
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: "9090"
vector_store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
retrieval:
  top_k: 3
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("Port=%q", cfg.Server.Port)
	}
	if cfg.Retrieval.TopK != 3 || cfg.Retrieval.SimilarityThreshold != 0.7 {
		t.Fatalf("retrieval: %+v", cfg.Retrieval)
	}
	if cfg.VectorStore.Qdrant.Collection != "textbook_passages" {
		t.Fatalf("Collection=%q", cfg.VectorStore.Qdrant.Collection)
	}
	if cfg.Embedder.OpenAI == nil || cfg.Embedder.OpenAI.Model != "text-embedding-3-small" {
		t.Fatalf("embedder defaults: %+v", cfg.Embedder.OpenAI)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017/tutor")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Fatalf("Port=%q", cfg.Server.Port)
	}
	if cfg.SummaryStore.Type != "mongo" || cfg.SummaryStore.MongoURI != "mongodb://localhost:27017/tutor" {
		t.Fatalf("summary store: %+v", cfg.SummaryStore)
	}
	if cfg.Dispatcher.Type != "redis" {
		t.Fatalf("dispatcher: %+v", cfg.Dispatcher)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Voice.Voice = "Jessica"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Voice.Voice != "Jessica" {
		t.Fatalf("Voice=%q", loaded.Voice.Voice)
	}
}

func TestNegativeSimilarityThresholdIsKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("retrieval:\n  similarity_threshold: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retrieval.SimilarityThreshold != -1 {
		t.Fatalf("SimilarityThreshold=%v, a negative value disables filtering", cfg.Retrieval.SimilarityThreshold)
	}
}
