package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a key is not found
var ErrNotFound = errors.New("not found")

// Store is a namespaced, prefix-scannable key-value store. Values are
// JSON-serialized on write and decoded on read, so any JSON-marshalable type
// can be stored. All three drivers (memory, redis, postgres) implement the
// same contract; services never see driver types.
type Store interface {
	// Get decodes the value at key into dest. Returns ErrNotFound if the key
	// does not exist.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set writes value at key, overwriting any existing value.
	Set(ctx context.Context, key string, value interface{}) error

	// SetNX writes value only if key is absent and reports whether the write
	// happened. This is the conditional-write primitive used to keep the
	// one-vote-per-session invariant under concurrent requests.
	SetNX(ctx context.Context, key string, value interface{}) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// GetByPrefix returns the raw JSON values of every key under prefix,
	// ordered by ascending key. Queue entry IDs start with a millisecond
	// timestamp, so ascending key order is insertion order.
	GetByPrefix(ctx context.Context, prefix string) ([]json.RawMessage, error)

	// Ping checks the backing store connection.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
