// Package policyreason decides whether a treatment is eligible under an
// insurance policy by reasoning over the policy clauses retrieved for a
// natural-language query.
package policyreason

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/brunobiangulo/policyreason/chunker"
	"github.com/brunobiangulo/policyreason/eligibility"
	"github.com/brunobiangulo/policyreason/embed"
	"github.com/brunobiangulo/policyreason/parser"
	"github.com/brunobiangulo/policyreason/retrieval"
	"github.com/brunobiangulo/policyreason/semantics"
	"github.com/brunobiangulo/policyreason/store"
)

// Engine is the main entry point: it ingests policy documents and
// evaluates eligibility queries against them.
type Engine interface {
	// Ingest parses, chunks and embeds a document. Returns document ID.
	// Skips if content hash unchanged.
	Ingest(ctx context.Context, path string, opts ...IngestOption) (int64, error)

	// Evaluate returns the eligibility decision for a query.
	Evaluate(ctx context.Context, query string) (*eligibility.Decision, error)

	// Trace is Evaluate with every intermediate artifact attached.
	Trace(ctx context.Context, query string) (*Trace, error)

	// Delete removes a document and all associated data.
	Delete(ctx context.Context, documentID int64) error

	// ListDocuments returns all ingested documents.
	ListDocuments(ctx context.Context) ([]Document, error)

	// Stats reports row counts of the underlying store.
	Stats(ctx context.Context) (*store.Stats, error)

	// Close cleanly shuts down the engine.
	Close() error
}

// Document represents an ingested document.
type Document struct {
	ID          int64             `json:"id"`
	Path        string            `json:"path"`
	Filename    string            `json:"filename"`
	Format      string            `json:"format"`
	ContentHash string            `json:"content_hash"`
	ParseMethod string            `json:"parse_method"`
	Status      string            `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// IngestOption configures ingestion behavior.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	forceReparse bool
	source       string
	metadata     map[string]string
}

// WithForceReparse forces re-parsing even if the hash hasn't changed.
func WithForceReparse() IngestOption {
	return func(o *ingestOptions) { o.forceReparse = true }
}

// WithSource overrides the source label stored on every chunk. The file
// name is used by default.
func WithSource(source string) IngestOption {
	return func(o *ingestOptions) { o.source = source }
}

// WithMetadata attaches custom metadata to the ingested document.
func WithMetadata(metadata map[string]string) IngestOption {
	return func(o *ingestOptions) { o.metadata = metadata }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg      Config
	store    *store.Store
	embedder embed.Provider
	parsers  *parser.Registry
	chunkr   *chunker.Chunker
	pipeline *Pipeline
}

// New creates an engine with the given configuration. The vocabulary is
// loaded once here and never changes for the life of the engine.
func New(cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	vocab := semantics.DefaultVocabulary()
	if cfg.VocabularyPath != "" {
		v, err := semantics.LoadVocabulary(cfg.VocabularyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		vocab = v
	}

	embedder, err := embed.NewProvider(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: creating embedding provider: %v", ErrInvalidConfig, err)
	}

	s, err := store.New(cfg.resolveDBPath(), cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	retriever, err := retrieval.New(s, embedder, retrieval.Config{
		WeightVector: cfg.WeightVector,
		WeightFTS:    cfg.WeightFTS,
		CacheSize:    cfg.QueryCacheSize,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	pipeline, err := NewPipeline(retriever, vocab, PipelineOptions{
		TopK:     cfg.TopK,
		MaxDepth: cfg.MaxDepth,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	slog.Debug("engine: ready", "db", cfg.resolveDBPath(), "vocabulary", vocab.Version,
		"embedding_provider", cfg.Embedding.Provider, "top_k", cfg.TopK, "max_depth", cfg.MaxDepth)

	return &engine{
		cfg:      cfg,
		store:    s,
		embedder: embedder,
		parsers:  parser.NewRegistry(),
		chunkr: chunker.New(chunker.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
		}),
		pipeline: pipeline,
	}, nil
}

// Ingest processes a document through parse, chunk and embed.
func (e *engine) Ingest(ctx context.Context, path string, opts ...IngestOption) (int64, error) {
	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return 0, fmt.Errorf("hashing file: %w", err)
	}

	if !options.forceReparse {
		existing, err := e.store.GetDocumentByPath(ctx, absPath)
		if err == nil && existing.ContentHash == hash && existing.Status == store.StatusReady {
			slog.Info("ingest: document unchanged", "file", existing.Filename, "doc_id", existing.ID)
			return existing.ID, nil
		}
	}

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(absPath), "."))
	p, err := e.parsers.Get(format)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	var metadataJSON string
	if options.metadata != nil {
		data, _ := json.Marshal(options.metadata)
		metadataJSON = string(data)
	}

	filename := filepath.Base(absPath)
	docID, err := e.store.UpsertDocument(ctx, store.Document{
		Path:        absPath,
		Filename:    filename,
		Format:      format,
		ContentHash: hash,
		ParseMethod: "pending",
		Status:      store.StatusProcessing,
		Metadata:    metadataJSON,
	})
	if err != nil {
		return 0, fmt.Errorf("upserting document: %w", err)
	}

	slog.Info("ingest: parsing document", "file", filename, "format", format, "doc_id", docID)
	start := time.Now()

	parsed, err := p.Parse(ctx, absPath)
	if err != nil {
		e.markError(ctx, docID)
		return 0, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	slog.Info("ingest: parsing complete",
		"file", filename, "method", parsed.Method,
		"sections", len(parsed.Sections), "elapsed", time.Since(start).Round(time.Millisecond))

	if err := e.store.UpdateDocumentParseMethod(ctx, docID, parsed.Method); err != nil {
		slog.Warn("ingest: recording parse method failed", "doc_id", docID, "error", err)
	}

	chunks := e.chunkr.Chunk(parsed.Sections)
	slog.Info("ingest: chunking complete",
		"file", filename, "chunks", len(chunks),
		"chunk_size", e.cfg.ChunkSize, "overlap", e.cfg.ChunkOverlap)

	// Re-ingest replaces everything stored for this document.
	if err := e.store.DeleteDocumentData(ctx, docID); err != nil {
		e.markError(ctx, docID)
		return 0, fmt.Errorf("cleaning old data: %w", err)
	}

	source := options.source
	if source == "" {
		source = filename
	}
	for i := range chunks {
		chunks[i].DocumentID = docID
		chunks[i].Source = source
	}

	chunkIDs, err := e.store.InsertChunks(ctx, chunks)
	if err != nil {
		e.markError(ctx, docID)
		return 0, fmt.Errorf("inserting chunks: %w", err)
	}

	slog.Info("ingest: generating embeddings", "file", filename, "chunks", len(chunks))
	embedStart := time.Now()
	if err := e.embedChunks(ctx, chunks, chunkIDs); err != nil {
		e.markError(ctx, docID)
		return 0, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	slog.Info("ingest: embeddings complete",
		"file", filename, "elapsed", time.Since(embedStart).Round(time.Millisecond))

	if err := e.store.UpdateDocumentStatus(ctx, docID, store.StatusReady); err != nil {
		return 0, fmt.Errorf("marking document ready: %w", err)
	}
	slog.Info("ingest: document ready",
		"file", filename, "doc_id", docID,
		"total_elapsed", time.Since(start).Round(time.Millisecond))
	return docID, nil
}

func (e *engine) markError(ctx context.Context, docID int64) {
	if err := e.store.UpdateDocumentStatus(ctx, docID, store.StatusError); err != nil {
		slog.Warn("ingest: marking document failed", "doc_id", docID, "error", err)
	}
}

// Evaluate runs the reasoning pipeline over retrieved clauses.
func (e *engine) Evaluate(ctx context.Context, query string) (*eligibility.Decision, error) {
	return e.pipeline.Evaluate(ctx, query)
}

// Trace runs the reasoning pipeline and keeps every intermediate artifact.
func (e *engine) Trace(ctx context.Context, query string) (*Trace, error) {
	return e.pipeline.Trace(ctx, query)
}

// Delete removes a document and all its associated data.
func (e *engine) Delete(ctx context.Context, documentID int64) error {
	err := e.store.DeleteDocument(ctx, documentID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrDocumentNotFound, documentID)
	}
	return err
}

// ListDocuments returns all ingested documents.
func (e *engine) ListDocuments(ctx context.Context) ([]Document, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Document, len(docs))
	for i, d := range docs {
		result[i] = Document{
			ID:          d.ID,
			Path:        d.Path,
			Filename:    d.Filename,
			Format:      d.Format,
			ContentHash: d.ContentHash,
			ParseMethod: d.ParseMethod,
			Status:      d.Status,
			CreatedAt:   d.CreatedAt,
			UpdatedAt:   d.UpdatedAt,
		}
		if d.Metadata != "" {
			_ = json.Unmarshal([]byte(d.Metadata), &result[i].Metadata)
		}
	}
	return result, nil
}

// Stats reports row counts of the underlying store.
func (e *engine) Stats(ctx context.Context) (*store.Stats, error) {
	return e.store.Stats(ctx)
}

// Close shuts down the engine.
func (e *engine) Close() error {
	return e.store.Close()
}

// maxEmbedChars caps a single text sent to the embedding model.
const maxEmbedChars = 24000

// truncateForEmbed truncates text to maxEmbedChars on a word boundary.
func truncateForEmbed(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	cut := strings.LastIndex(text[:maxEmbedChars], " ")
	if cut <= 0 {
		cut = maxEmbedChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
	}
	return text[:cut]
}

// embedChunks generates embeddings for chunks in batches. A failed batch
// falls back to embedding each text individually.
func (e *engine) embedChunks(ctx context.Context, chunks []store.Chunk, chunkIDs []int64) error {
	const batchSize = 32
	var failed int

	for i := 0; i < len(chunks); i += batchSize {
		end := min(i+batchSize, len(chunks))

		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			texts[j-i] = truncateForEmbed(chunks[j].Content)
		}

		embeddings, err := e.embedder.Embed(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("embedding batch failed, falling back to individual",
				"batch_start", i, "batch_end", end, "error", err)
			for j, text := range texts {
				single, serr := e.embedder.Embed(ctx, []string{text})
				if serr != nil || len(single) == 0 || len(single[0]) == 0 {
					slog.Warn("embedding single text failed",
						"chunk_id", chunkIDs[i+j], "error", serr)
					failed++
					continue
				}
				if serr := e.store.InsertEmbedding(ctx, chunkIDs[i+j], single[0]); serr != nil {
					slog.Warn("storing embedding failed",
						"chunk_id", chunkIDs[i+j], "error", serr)
					failed++
				}
			}
			continue
		}

		for j, emb := range embeddings {
			if err := e.store.InsertEmbedding(ctx, chunkIDs[i+j], emb); err != nil {
				slog.Warn("storing embedding failed",
					"chunk_id", chunkIDs[i+j], "error", err)
				failed++
			}
		}
	}

	if len(chunks) > 0 && failed == len(chunks) {
		return fmt.Errorf("all %d chunks failed embedding", len(chunks))
	}
	if failed > 0 {
		slog.Warn("some embeddings failed", "failed", failed, "total", len(chunks))
	}
	return nil
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
