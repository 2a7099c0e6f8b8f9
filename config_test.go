package policyreason

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.TopK != 5 || cfg.MaxDepth != 2 {
		t.Errorf("defaults: top_k=%d max_depth=%d", cfg.TopK, cfg.MaxDepth)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Errorf("chunking defaults: %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.WeightFTS != 0 {
		t.Errorf("expected vector-only retrieval by default, weight_fts=%v", cfg.WeightFTS)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero top_k", func(c *Config) { c.TopK = 0 }},
		{"zero max_depth", func(c *Config) { c.MaxDepth = 0 }},
		{"zero embedding dim", func(c *Config) { c.EmbeddingDim = 0 }},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"negative weight", func(c *Config) { c.WeightFTS = -0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "policyreason.yaml")
	yamlData := `
db_path: /tmp/policies.db
top_k: 8
embedding:
  provider: lmstudio
  model: text-embedding-nomic
`
	if err := os.WriteFile(yamlPath, []byte(yamlData), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(yamlPath)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.DBPath != "/tmp/policies.db" || cfg.TopK != 8 {
		t.Errorf("yaml fields not applied: %+v", cfg)
	}
	if cfg.Embedding.Provider != "lmstudio" || cfg.Embedding.Model != "text-embedding-nomic" {
		t.Errorf("embedding: %+v", cfg.Embedding)
	}
	if cfg.MaxDepth != 2 {
		t.Errorf("unset fields should keep defaults, max_depth=%d", cfg.MaxDepth)
	}

	jsonPath := filepath.Join(dir, "policyreason.json")
	if err := os.WriteFile(jsonPath, []byte(`{"max_depth": 3, "weight_fts": 0.5}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfig(jsonPath)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if cfg.MaxDepth != 3 || cfg.WeightFTS != 0.5 {
		t.Errorf("json fields not applied: %+v", cfg)
	}

	badPath := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(badPath, []byte(`{"top_k": "many"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(badPath); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("POLICYREASON_DB_PATH", "/data/policy.db")
	t.Setenv("POLICYREASON_EMBED_PROVIDER", "openai")
	t.Setenv("POLICYREASON_EMBED_API_KEY", "sk-test")
	t.Setenv("POLICYREASON_TOP_K", "3")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/data/policy.db" || cfg.TopK != 3 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Embedding.Provider != "openai" || cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("embedding env not applied: %+v", cfg.Embedding)
	}
	if cfg.Embedding.Model != "nomic-embed-text" {
		t.Errorf("unset variables must not clear fields, model=%q", cfg.Embedding.Model)
	}

	t.Setenv("POLICYREASON_TOP_K", "five")
	if err := cfg.ApplyEnv(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestResolveDBPath(t *testing.T) {
	cfg := Config{DBPath: "/explicit.db"}
	if got := cfg.resolveDBPath(); got != "/explicit.db" {
		t.Errorf("explicit: %q", got)
	}

	cfg = Config{DBName: "claims", StorageDir: "local"}
	if got := cfg.resolveDBPath(); got != "claims.db" {
		t.Errorf("local: %q", got)
	}

	cfg = Config{}
	got := cfg.resolveDBPath()
	if !strings.HasSuffix(got, "policyreason.db") {
		t.Errorf("default: %q", got)
	}
}
