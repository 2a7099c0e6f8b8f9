package policyreason

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brunobiangulo/policyreason/eligibility"
	"github.com/brunobiangulo/policyreason/graph"
	"github.com/brunobiangulo/policyreason/reasoning"
	"github.com/brunobiangulo/policyreason/retrieval"
	"github.com/brunobiangulo/policyreason/semantics"
)

// Retriever returns up to topK untagged clauses ordered by decreasing
// relevance. *retrieval.Engine satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]semantics.Clause, error)
}

// PipelineOptions bound retrieval and path search. Zero values use the
// defaults.
type PipelineOptions struct {
	TopK     int
	MaxDepth int
}

// Trace holds every intermediate artifact of one evaluation. Nothing in it
// is modified after Trace returns.
type Trace struct {
	Query       string                `json:"query"`
	Clauses     []semantics.Clause    `json:"clauses"`
	Graph       *graph.Graph          `json:"graph"`
	Paths       []reasoning.Path      `json:"paths"`
	Explanation reasoning.Explanation `json:"explanation"`
	Decision    eligibility.Decision  `json:"decision"`
	ElapsedMs   int64                 `json:"elapsed_ms"`
}

// Pipeline runs the tag, graph, path, explanation and decision stages over
// the clauses of a Retriever. It holds no per-query state and is safe for
// concurrent use.
type Pipeline struct {
	retriever Retriever
	tagger    *semantics.Tagger
	opts      PipelineOptions
}

// NewPipeline validates the vocabulary and returns a ready pipeline.
func NewPipeline(r Retriever, v semantics.Vocabulary, opts PipelineOptions) (*Pipeline, error) {
	tagger, err := semantics.NewTagger(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if opts.TopK <= 0 {
		opts.TopK = retrieval.DefaultTopK
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = reasoning.DefaultMaxDepth
	}
	return &Pipeline{retriever: r, tagger: tagger, opts: opts}, nil
}

// Evaluate answers an eligibility query with a decision.
func (p *Pipeline) Evaluate(ctx context.Context, query string) (*eligibility.Decision, error) {
	t, err := p.Trace(ctx, query)
	if err != nil {
		return nil, err
	}
	return &t.Decision, nil
}

// Trace evaluates a query and returns all intermediate artifacts. An empty
// retrieval result is not an error: it yields Needs Review with confidence 0.
func (p *Pipeline) Trace(ctx context.Context, query string) (*Trace, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	start := time.Now()

	clauses, err := p.retriever.Retrieve(ctx, query, p.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	p.tagger.TagClauses(clauses)
	clauses = semantics.MergeByPage(clauses)

	g := graph.Build(clauses)
	paths := reasoning.ExtractPaths(clauses, g, p.opts.MaxDepth)
	exp := reasoning.BuildExplanation(paths, clauses)
	decision := eligibility.Decide(exp)

	elapsed := time.Since(start)
	slog.Debug("pipeline: evaluated",
		"clauses", len(clauses), "nodes", g.Len(), "edges", g.EdgeCount(),
		"paths", len(paths), "decision", decision.Decision,
		"confidence", decision.Confidence, "vocabulary", p.tagger.Version(),
		"elapsed", elapsed.Round(time.Millisecond))

	return &Trace{
		Query:       query,
		Clauses:     clauses,
		Graph:       g,
		Paths:       paths,
		Explanation: exp,
		Decision:    decision,
		ElapsedMs:   elapsed.Milliseconds(),
	}, nil
}
