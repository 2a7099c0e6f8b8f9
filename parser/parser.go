// Package parser extracts page-addressed text from policy documents.
package parser

import (
	"context"
	"errors"
)

// ErrNoText is returned when a document yields no extractable text.
var ErrNoText = errors.New("parser: no extractable text")

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Sections []Section // in document order
	Method   string    // "native" or "text"
	Metadata map[string]string
}

// Section is a contiguous block of text. PageNumber is 1-based; 0 means
// the format has no pages.
type Section struct {
	Heading    string
	Content    string
	PageNumber int
	Metadata   map[string]string
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}
