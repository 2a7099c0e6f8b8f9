//go:build cgo

package policyreason

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brunobiangulo/policyreason/eligibility"
	"github.com/brunobiangulo/policyreason/embed"
	"github.com/brunobiangulo/policyreason/store"
)

// keywordEmbedServer serves Ollama /api/embed with 4-dim vectors counting
// a few policy keywords, so nearest-neighbour search is deterministic.
func keywordEmbedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		embs := make([][]float64, len(req.Input))
		for i, text := range req.Input {
			lower := strings.ToLower(text)
			embs[i] = []float64{
				float64(strings.Count(lower, "wait")),
				float64(strings.Count(lower, "cataract")),
				float64(strings.Count(lower, "accident")),
				1,
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": embs})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	srv := keywordEmbedServer(t)
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "policy.db")
	cfg.EmbeddingDim = 4
	cfg.Embedding = embed.Config{Provider: "ollama", BaseURL: srv.URL}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func writePolicy(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.txt")
	text := "Pre-existing conditions are subject to a waiting period of 24 months.\f" +
		"Cataract surgery is payable up to the sub-limit."
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEngineIngestAndEvaluate(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	path := writePolicy(t)

	docID, err := e.Ingest(ctx, path)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	again, err := e.Ingest(ctx, path)
	if err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}
	if again != docID {
		t.Errorf("unchanged file should keep its id: %d != %d", again, docID)
	}

	stats, err := e.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 1 || stats.Chunks != 2 || stats.Embeddings != 2 {
		t.Errorf("stats: %+v", stats)
	}

	tr, err := e.Trace(ctx, "Is cataract surgery covered during the waiting period?")
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if len(tr.Clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(tr.Clauses))
	}
	for _, c := range tr.Clauses {
		if c.Source != "policy.txt" {
			t.Errorf("source: %q", c.Source)
		}
	}

	d, err := e.Evaluate(ctx, "Is cataract surgery covered during the waiting period?")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Decision != eligibility.Rejected {
		t.Errorf("decision: got %q, want %q", d.Decision, eligibility.Rejected)
	}
	if d.Confidence != 3 {
		t.Errorf("confidence: got %d, want 3", d.Confidence)
	}
	if len(d.Evidence) != 2 || d.Evidence[0].Page != "2" || d.Evidence[1].Page != "1" {
		t.Errorf("evidence: %+v", d.Evidence)
	}
}

func TestEngineDocuments(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	docID, err := e.Ingest(ctx, writePolicy(t), WithMetadata(map[string]string{"insurer": "acme"}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	docs, err := e.ListDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Status != "ready" || docs[0].ParseMethod != "text" {
		t.Fatalf("documents: %+v", docs)
	}
	if docs[0].Metadata["insurer"] != "acme" {
		t.Errorf("metadata: %v", docs[0].Metadata)
	}

	if err := e.Delete(ctx, docID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := e.Delete(ctx, docID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}

	d, err := e.Evaluate(ctx, "Is cataract surgery covered?")
	if err != nil {
		t.Fatalf("Evaluate on empty store: %v", err)
	}
	if d.Decision != eligibility.NeedsReview || d.Confidence != 0 {
		t.Errorf("empty store: %+v", d)
	}
}

func TestEngineIngestErrors(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	path := filepath.Join(t.TempDir(), "policy.docx")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Ingest(ctx, path); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("  \n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Ingest(ctx, empty); !errors.Is(err, ErrParsingFailed) {
		t.Errorf("expected ErrParsingFailed, got %v", err)
	}
}

func TestEngineIngestMarksErrorWhenCleanupFails(t *testing.T) {
	ctx := context.Background()
	srv := keywordEmbedServer(t)
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "policy.db")
	cfg.EmbeddingDim = 4
	cfg.Embedding = embed.Config{Provider: "ollama", BaseURL: srv.URL}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	// Removing the vector table makes the pre-insert cleanup fail.
	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("DROP TABLE vec_chunks"); err != nil {
		t.Fatalf("dropping vec_chunks: %v", err)
	}
	db.Close()

	if _, err := e.Ingest(ctx, writePolicy(t)); err == nil {
		t.Fatal("expected ingest to fail")
	}
	docs, err := e.ListDocuments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Status != store.StatusError {
		t.Errorf("documents after failed cleanup: %+v", docs)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "policy.db")
	cfg.VocabularyPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("missing vocabulary: expected ErrInvalidConfig, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Embedding.Provider = "carrier-pigeon"
	if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("unknown provider: expected ErrInvalidConfig, got %v", err)
	}
}
