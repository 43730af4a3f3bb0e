// Package store implements the analysis result stores: an in-process map,
// a SQLite file shared by every worker on the host, and Redis.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

// Open validates cfg and returns the backend it names. The caller must
// Close the returned store.
func Open(ctx context.Context, cfg types.Config) (types.ResultStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case types.BackendMemory:
		return NewMemory(cfg.TTL()), nil
	case types.BackendSQLite:
		s, err := OpenSQLite(cfg.DataDir, cfg.TTL())
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case types.BackendRedis:
		s, err := OpenRedis(ctx, cfg.RedisURL, cfg.TTL())
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return s, nil
	default:
		return nil, types.ErrBackendUnknown
	}
}

// generateID returns a new UUID v7 for result IDs.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// validateID rejects anything that is not a UUID so lookups never reach a
// backend with arbitrary input.
func validateID(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	if _, err := uuid.Parse(id); err != nil {
		return types.ErrInvalidID
	}
	return nil
}
