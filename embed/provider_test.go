package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		baseURL  string
		wantType string
		wantURL  string
	}{
		{"ollama", "", "*embed.ollamaProvider", "http://localhost:11434"},
		{"lmstudio", "", "*embed.openAICompatProvider", "http://localhost:1234"},
		{"openai", "", "*embed.openAICompatProvider", "https://api.openai.com"},
		{"custom", "http://embed.internal:8080", "*embed.openAICompatProvider", "http://embed.internal:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "m", BaseURL: tt.baseURL})
			if err != nil {
				t.Fatalf("NewProvider(%q) returned error: %v", tt.provider, err)
			}
			if got := fmt.Sprintf("%T", p); got != tt.wantType {
				t.Errorf("type = %s, want %s", got, tt.wantType)
			}
			var url string
			switch v := p.(type) {
			case *ollamaProvider:
				url = v.base.cfg.BaseURL
			case *openAICompatProvider:
				url = v.base.cfg.BaseURL
			}
			if url != tt.wantURL {
				t.Errorf("base url = %q, want %q", url, tt.wantURL)
			}
		})
	}
}

func TestNewProviderErrors(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{}, "embedding provider not specified"},
		{Config{Provider: "doesnotexist"}, "unknown embedding provider: doesnotexist"},
		{Config{Provider: "custom"}, "custom embedding provider requires base_url"},
	}
	for _, tt := range tests {
		_, err := NewProvider(tt.cfg)
		if err == nil || err.Error() != tt.want {
			t.Errorf("NewProvider(%+v) error = %v, want %q", tt.cfg, err, tt.want)
		}
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}
		resp := ollamaEmbedResponse{}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(i), 0.5})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewOllama(Config{BaseURL: srv.URL})
	got, err := p.Embed(context.Background(), []string{"cataract", "waiting period"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 || got[1][0] != 1 || got[0][1] != 0.5 {
		t.Fatalf("unexpected embeddings: %v", got)
	}
}

func TestOllamaEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings": [[1, 2]]}`))
	}))
	defer srv.Close()

	p := NewOllama(Config{BaseURL: srv.URL})
	if _, err := p.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error for short response")
	}
}

func TestOpenAICompatEmbedOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		w.Write([]byte(`{"data": [
			{"index": 1, "embedding": [0, 1]},
			{"index": 0, "embedding": [1, 0]}
		]}`))
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL, APIKey: "secret", Model: "text-embedding-3-small"})
	got, err := p.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got[0][0] != 1 || got[1][1] != 1 {
		t.Fatalf("embeddings not ordered by index: %v", got)
	}
}

func TestOpenAICompatEmbedMissingIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"index": 0, "embedding": [1, 0]}]}`))
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL})
	if _, err := p.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error for missing embedding")
	}
}

func TestDoPostRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data": [{"index": 0, "embedding": [1]}]}`))
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL}).(*openAICompatProvider)
	p.base.baseDelay = time.Millisecond
	if _, err := p.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestDoPostDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{BaseURL: srv.URL})
	if _, err := p.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}
