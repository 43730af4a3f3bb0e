package types

import (
	"context"
	"errors"
)

// ResultStore persists analysis results so any worker can serve them back.
// Callers open a backend through store.Open and Close it when done.
type ResultStore interface {
	// Put stores a copy of the analysis under a newly generated ID and
	// returns that ID. The analysis' ResultID field is ignored on input.
	Put(ctx context.Context, a *Analysis) (string, error)

	// Get retrieves the analysis stored under id with ResultID populated.
	// Returns ErrNotFound if no live entry exists with that ID.
	Get(ctx context.Context, id string) (*Analysis, error)

	// Close releases backend resources. Idempotent: multiple calls succeed.
	// After Close, operations return ErrStoreClosed.
	Close() error
}

// Result store errors.
var (
	ErrNotFound    = errors.New("result not found")
	ErrInvalidID   = errors.New("invalid result ID")
	ErrStoreClosed = errors.New("result store is closed")
	ErrNilAnalysis = errors.New("analysis must not be nil")
)
