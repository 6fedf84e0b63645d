// Package kv provides slot-based key-value persistence for the aggregate.
//
// The store keeps whole serialized blobs under string keys (a primary slot
// and a backup slot). Backends are swappable: an in-memory map for tests,
// a file-per-slot directory, and a SQLite database.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a slot has never been written or was deleted.
	ErrNotFound = errors.New("slot not found")

	// ErrStorageFull is returned when the backend ran out of space.
	ErrStorageFull = errors.New("storage full")
)

// Store is the persistence port used by the finance store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
