package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")

	// ErrExtraction marks a source file that could not be parsed as a PDF.
	// Fatal for the document; the ingestion job retries then finalizes as failed.
	ErrExtraction = errors.New("pdf extraction failed")

	// ErrNoActiveModel means no embedding or generation model config is active.
	ErrNoActiveModel = errors.New("no active model configured")

	// ErrModelUnavailable means the backing provider for the active model
	// could not be resolved.
	ErrModelUnavailable = errors.New("model provider unavailable")

	// ErrUnsupportedProvider marks a model config pointing at an unknown
	// provider name.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrIndexCorrupt means a persisted vector index file failed to load.
	// Recoverable by rebuilding from the embedding store.
	ErrIndexCorrupt = errors.New("vector index corrupt")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
