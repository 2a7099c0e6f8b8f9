// Package retrieval returns the policy clauses most relevant to a query
// from the ingested document store.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/policyreason/embed"
	"github.com/brunobiangulo/policyreason/semantics"
	"github.com/brunobiangulo/policyreason/store"
)

// DefaultTopK is the number of clauses retrieved per query.
const DefaultTopK = 5

// Searcher is the subset of the store used for retrieval.
type Searcher interface {
	VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]store.RetrievalResult, error)
	FTSSearch(ctx context.Context, query string, limit int) ([]store.RetrievalResult, error)
}

// Config holds retrieval engine configuration. With WeightFTS at zero the
// engine ranks by vector similarity alone.
type Config struct {
	WeightVector float64
	WeightFTS    float64
	CacheSize    int // query embedding cache entries; 0 disables
}

// SearchTrace records the breakdown of one search.
type SearchTrace struct {
	VecResults   int                       `json:"vec_results"`
	FTSResults   int                       `json:"fts_results"`
	FusedResults int                       `json:"fused_results"`
	VecWeight    float64                   `json:"vec_weight"`
	FTSWeight    float64                   `json:"fts_weight"`
	FTSQuery     string                    `json:"fts_query,omitempty"`
	CacheHit     bool                      `json:"cache_hit"`
	ElapsedMs    int64                     `json:"elapsed_ms"`
	PerResult    map[int64]FusedResultInfo `json:"per_result,omitempty"`
}

// Engine performs clause retrieval over the store.
type Engine struct {
	store    Searcher
	embedder embed.Provider
	cfg      Config
	cache    *lru.Cache[string, []float32]
}

// New creates a retrieval engine.
func New(s Searcher, embedder embed.Provider, cfg Config) (*Engine, error) {
	e := &Engine{store: s, embedder: embedder, cfg: cfg}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create query cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

// Retrieve returns up to topK untagged clauses ordered by decreasing
// relevance. A missing page becomes semantics.UnknownPage and a missing
// source becomes semantics.DefaultSource.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]semantics.Clause, error) {
	results, _, err := e.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	clauses := make([]semantics.Clause, len(results))
	for i, r := range results {
		clauses[i] = ToClause(r)
	}
	return clauses, nil
}

// ToClause converts a stored retrieval result into an untagged clause.
func ToClause(r store.RetrievalResult) semantics.Clause {
	page := ""
	if r.PageNumber > 0 {
		page = strconv.Itoa(r.PageNumber)
	}
	source := r.Source
	if source == "" {
		source = r.Filename
	}
	return semantics.NewClause(r.Content, page, source, round4(r.Score))
}

// Search runs vector search, plus FTS5 when it carries weight, and fuses
// the rankings with RRF. Any branch failing fails the search.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]store.RetrievalResult, *SearchTrace, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	trace := &SearchTrace{
		VecWeight: e.cfg.WeightVector,
		FTSWeight: e.cfg.WeightFTS,
	}
	start := time.Now()

	hybrid := e.cfg.WeightFTS > 0
	if hybrid {
		trace.FTSQuery = sanitizeFTSQuery(query)
	}

	var vecResults, ftsResults []store.RetrievalResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		emb, hit, err := e.embedQuery(gctx, query)
		if err != nil {
			return fmt.Errorf("embedding query: %w", err)
		}
		trace.CacheHit = hit
		vecResults, err = e.store.VectorSearch(gctx, emb, topK)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		return nil
	})
	if hybrid && trace.FTSQuery != "" {
		g.Go(func() error {
			var err error
			ftsResults, err = e.store.FTSSearch(gctx, trace.FTSQuery, topK)
			if err != nil {
				return fmt.Errorf("fts search: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, trace, err
	}

	trace.VecResults = len(vecResults)
	trace.FTSResults = len(ftsResults)

	results := vecResults
	if hybrid {
		results, trace.PerResult = fuseRRF(vecResults, ftsResults, e.cfg.WeightVector, e.cfg.WeightFTS, topK)
	} else if len(results) > topK {
		results = results[:topK]
	}

	trace.FusedResults = len(results)
	trace.ElapsedMs = time.Since(start).Milliseconds()

	slog.Debug("retrieval: search complete",
		"vec_results", trace.VecResults, "fts_results", trace.FTSResults,
		"results", trace.FusedResults, "cache_hit", trace.CacheHit,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return results, trace, nil
}

// embedQuery returns the query embedding, consulting the LRU cache first.
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, bool, error) {
	key := normalizeQuery(query)
	if e.cache != nil {
		if emb, ok := e.cache.Get(key); ok {
			return emb, true, nil
		}
	}

	embeddings, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, false, err
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, false, fmt.Errorf("empty embedding returned")
	}

	if e.cache != nil {
		e.cache.Add(key, embeddings[0])
	}
	return embeddings[0], false, nil
}
