// Package repository defines data access interfaces for corefacility.
package repository

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// Cache Interface (Redis or in-memory)
// =============================================================================

// Cache defines the interface for caching operations. The labjournal path
// resolver is the main consumer; redis backs distributed deployments and the
// memory implementation backs single-node ones.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX sets a value only if the key doesn't exist.
	// Returns true if the value was set, false if the key already exists.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Expire sets or updates the TTL for a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// DeleteMulti removes multiple values.
	DeleteMulti(ctx context.Context, keys ...string) error

	// Increment atomically increments an integer value. Used for the
	// per-project path generation counter: bumping the generation
	// invalidates every cached path of the tree at once.
	Increment(ctx context.Context, key string, delta int64) (int64, error)
}

// =============================================================================
// Common Cache Keys
// =============================================================================

// CacheKey generates cache keys for common scenarios.
type CacheKey struct{}

// JournalPath returns a cache key for a resolved (project, path) record id.
// The generation number makes whole-tree invalidation a single counter bump.
func (CacheKey) JournalPath(projectID, generation int64, path string) string {
	return fmt.Sprintf("cache:journal:path:%d:%d:%s", projectID, generation, path)
}

// JournalPathGen returns the generation counter key of a project tree.
func (CacheKey) JournalPathGen(projectID int64) string {
	return fmt.Sprintf("cache:journal:pathgen:%d", projectID)
}

// UserByLogin returns a cache key for a resolved login.
func (CacheKey) UserByLogin(login string) string {
	return "cache:user:login:" + login
}

// ProjectByAlias returns a cache key for a resolved project alias.
func (CacheKey) ProjectByAlias(alias string) string {
	return "cache:project:alias:" + alias
}
