package policyreason

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/policyreason/embed"
)

// Config holds all configuration for the policy reasoning engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.policyreason/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set: "home" (default) or "local".
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	Embedding embed.Config `json:"embedding" yaml:"embedding"`

	// Embedding dimensions (must match model)
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// Retrieval
	TopK           int     `json:"top_k" yaml:"top_k"`
	WeightVector   float64 `json:"weight_vector" yaml:"weight_vector"`
	WeightFTS      float64 `json:"weight_fts" yaml:"weight_fts"` // 0 ranks by vector similarity only
	QueryCacheSize int     `json:"query_cache_size" yaml:"query_cache_size"`

	// Reasoning
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// Chunking, in characters
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// VocabularyPath points at a YAML tag vocabulary. Empty uses the
	// built-in one.
	VocabularyPath string `json:"vocabulary_path" yaml:"vocabulary_path"`
}

// DefaultConfig returns a Config for a local Ollama embedding model.
// Database is stored in ~/.policyreason/policyreason.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "policyreason",
		StorageDir: "home",
		Embedding: embed.Config{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim:   768,
		TopK:           5,
		WeightVector:   1.0,
		QueryCacheSize: 256,
		MaxDepth:       2,
		ChunkSize:      1000,
		ChunkOverlap:   200,
	}
}

// LoadConfig reads a JSON or YAML config file on top of DefaultConfig.
// The format is chosen by extension; anything but .json is read as YAML.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from POLICYREASON_* environment variables.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"POLICYREASON_DB_PATH":        &c.DBPath,
		"POLICYREASON_EMBED_PROVIDER": &c.Embedding.Provider,
		"POLICYREASON_EMBED_MODEL":    &c.Embedding.Model,
		"POLICYREASON_EMBED_BASE_URL": &c.Embedding.BaseURL,
		"POLICYREASON_EMBED_API_KEY":  &c.Embedding.APIKey,
		"POLICYREASON_VOCABULARY":     &c.VocabularyPath,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("POLICYREASON_TOP_K"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: POLICYREASON_TOP_K=%q", ErrInvalidConfig, v)
		}
		c.TopK = n
	}
	return nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.TopK <= 0:
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, c.TopK)
	case c.MaxDepth < 1:
		return fmt.Errorf("%w: max_depth must be at least 1, got %d", ErrInvalidConfig, c.MaxDepth)
	case c.EmbeddingDim <= 0:
		return fmt.Errorf("%w: embedding_dim must be positive, got %d", ErrInvalidConfig, c.EmbeddingDim)
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	case c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidConfig, c.ChunkOverlap)
	case c.WeightVector < 0 || c.WeightFTS < 0:
		return fmt.Errorf("%w: retrieval weights must not be negative", ErrInvalidConfig)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "policyreason"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".policyreason", name+".db")
	}
}
