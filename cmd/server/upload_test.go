//go:build cgo

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brunobiangulo/policyreason"
	"github.com/brunobiangulo/policyreason/embed"
)

// newStoreEngine opens a real engine backed by a temp database and an
// Ollama stand-in returning 4-dim keyword vectors.
func newStoreEngine(t *testing.T) policyreason.Engine {
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

	cfg := policyreason.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "server.db")
	cfg.EmbeddingDim = 4
	cfg.Embedding = embed.Config{Provider: "ollama", BaseURL: srv.URL}
	e, err := policyreason.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestUploadTwiceKeepsOneDocument(t *testing.T) {
	ctx := context.Background()
	e := newStoreEngine(t)
	h := newTestServer(t, e, "")

	const text = "Cataract surgery is subject to a waiting period of 24 months."
	var ids []float64
	for i := 0; i < 2; i++ {
		rec := upload(t, h, "dedupe-policy.txt", text)
		if rec.Code != http.StatusOK {
			t.Fatalf("upload %d: %d %s", i, rec.Code, rec.Body.String())
		}
		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, resp["document_id"].(float64))
	}
	if ids[0] != ids[1] {
		t.Errorf("document ids differ: %v", ids)
	}

	stats, err := e.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 1 || stats.Chunks != 1 {
		t.Errorf("stats after two uploads: %+v", stats)
	}

	tr, err := e.Trace(ctx, "Is cataract surgery covered during the waiting period?")
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	if len(tr.Clauses) != 1 || tr.Clauses[0].Text != text {
		t.Errorf("clauses: %+v", tr.Clauses)
	}
}
