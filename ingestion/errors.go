package ingestion

import "errors"

var (
	// ErrStoresRequired is returned when the storage bundle is not provided.
	ErrStoresRequired = errors.New("storage stores required")

	// ErrProviderRequired is returned when an AI provider is not provided.
	ErrProviderRequired = errors.New("AI provider required")

	// ErrSplitterRequired is returned when a chunk splitter is not provided.
	ErrSplitterRequired = errors.New("chunk splitter required")

	// ErrConfigRequired is returned when a configuration is not provided.
	ErrConfigRequired = errors.New("config required")

	// ErrInvalidMaxAttempts is returned when a retry is requested with a
	// non-positive attempt count.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNoMergeableResult indicates every chunk of a document failed
	// extraction, leaving nothing to merge. The document is marked failed.
	ErrNoMergeableResult = errors.New("no chunk produced a mergeable result")

	// ErrReleased is returned when the pipeline is used after Release.
	ErrReleased = errors.New("pipeline released")
)
