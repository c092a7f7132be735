package vector

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a chunk is not found in the vector store.
var ErrNotFound = errors.New("chunk not found")

// ErrConnection is returned when the vector store connection fails.
var ErrConnection = errors.New("vector store connection failed")

// BackendError tags a storage or query failure with the backend that
// produced it. Silent data loss is worse than a visible failure, so drivers
// wrap every persistence error in one of these and never swallow it.
type BackendError struct {
	// Backend is the driver identity, e.g. "postgres", "qdrant".
	Backend string

	// Op is the failing operation, e.g. "upsert", "search".
	Op string

	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError wraps err with backend identity. Returns nil if err is nil.
func NewBackendError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Op: op, Err: err}
}
