package ingest

import "errors"

// ErrExtractionFailed wraps an extractor error. It is surfaced to the
// uploading caller and never retried automatically.
var ErrExtractionFailed = errors.New("extraction failed")

// ErrEmbeddingFailed wraps an embedding service error during ingestion.
// The document stays invisible to queries when this happens.
var ErrEmbeddingFailed = errors.New("embedding failed")
