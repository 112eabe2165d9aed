// Package store is the key/value persistence behind the exam repository.
// Values are opaque JSON documents; every write replaces the whole value.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("key not found")

// UpdateFunc receives the current value (nil when absent) and returns the
// value to store.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is implemented by every backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetMany writes all entries or none of them.
	SetMany(ctx context.Context, entries map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
	// Update runs a read-modify-write atomically with respect to other
	// writers of the same key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}

// Backend names accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// ErrUnknownBackend is returned for an unsupported STORE_BACKEND value.
var ErrUnknownBackend = errors.New("unknown store backend")

// ValidateBackend checks a configured backend name.
func ValidateBackend(name string) error {
	switch name {
	case BackendMemory, BackendRedis, BackendPostgres:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}
