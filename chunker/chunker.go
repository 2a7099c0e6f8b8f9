// Package chunker splits parsed policy text into overlapping windows that
// keep the page they came from.
package chunker

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/brunobiangulo/policyreason/parser"
	"github.com/brunobiangulo/policyreason/store"
)

// Defaults match the window used when the policy index was first built.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// defaultSeparators are tried in order: paragraphs, lines, words, runes.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Config controls the chunking behaviour. Sizes are in runes.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// Chunker converts parsed document sections into store-ready chunks.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration. A zero config gets
// the default size and overlap; an overlap not smaller than the chunk size
// is clamped.
func New(cfg Config) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
		if cfg.ChunkOverlap == 0 {
			cfg.ChunkOverlap = DefaultChunkOverlap
		}
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = defaultSeparators
	}
	return &Chunker{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config { return c.cfg }

// Chunk splits every section independently, so a chunk never spans two
// pages. Positions run across the whole document.
func (c *Chunker) Chunk(sections []parser.Section) []store.Chunk {
	var chunks []store.Chunk
	for _, sec := range sections {
		for _, text := range c.SplitText(sec.Content) {
			chunks = append(chunks, store.Chunk{
				Content:       text,
				PageNumber:    sec.PageNumber,
				PositionInDoc: len(chunks),
			})
		}
	}
	return chunks
}

// SplitText recursively splits text on the configured separators until
// every piece fits the chunk size, then merges neighbouring pieces back
// into windows that overlap by up to ChunkOverlap runes.
func (c *Chunker) SplitText(text string) []string {
	return c.split(text, c.cfg.Separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < c.cfg.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, strings.TrimSpace(piece))
		} else {
			final = append(final, c.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.merge(good)...)
	}
	return final
}

// merge packs pieces into windows of at most ChunkSize runes. When a window
// closes, pieces are dropped from its front until at most ChunkOverlap
// runes remain to seed the next window.
func (c *Chunker) merge(pieces []string) []string {
	var docs, current []string
	total := 0
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > c.cfg.ChunkSize {
			if total > c.cfg.ChunkSize {
				slog.Debug("chunker: piece exceeds chunk size", "size", total, "limit", c.cfg.ChunkSize)
			}
			if len(current) > 0 {
				if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
					docs = append(docs, doc)
				}
				for total > c.cfg.ChunkOverlap || (total+n > c.cfg.ChunkSize && total > 0) {
					total -= runeLen(current[0])
					current = current[1:]
				}
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepSeparator splits text on sep, attaching each separator to the
// start of the piece that follows it. Empty pieces are dropped. An empty
// separator splits into runes.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
