package policyreason

import "errors"

var (
	// ErrRetrievalFailed is returned when the upstream clause retrieval
	// fails. It is never converted into a decision.
	ErrRetrievalFailed = errors.New("policyreason: retrieval failed")

	// ErrEmptyQuery is returned when a query is blank.
	ErrEmptyQuery = errors.New("policyreason: empty query")

	// ErrInvalidConfig is returned for invalid configuration values,
	// including an invalid vocabulary.
	ErrInvalidConfig = errors.New("policyreason: invalid configuration")

	// ErrDocumentNotFound is returned when a document ID does not exist.
	ErrDocumentNotFound = errors.New("policyreason: document not found")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("policyreason: unsupported document format")

	// ErrParsingFailed is returned when document parsing fails.
	ErrParsingFailed = errors.New("policyreason: parsing failed")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("policyreason: embedding generation failed")
)
