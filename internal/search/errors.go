package search

import "fmt"

// Upstream sources for error classification.
const (
	SourceEmbedder = "embedder"
	SourceIndex    = "index"
)

// ValidationError reports a malformed request. It is always returned
// before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamError wraps a failure from a dependency the engine cannot
// work around: the embedding provider or the vector index.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
