package persist

import (
	"context"
	"errors"
)

// Backend defines the interface for persistence targets.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Read returns the data saved under key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write saves data under key, replacing any previous data.
	Write(ctx context.Context, key string, data []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// ErrNotFound is returned by Read when nothing is saved under a key.
var ErrNotFound = errors.New("persist: key not found")

// ErrClosed is returned when a closed backend is used.
var ErrClosed = errors.New("persist: backend is closed")

// ErrInvalidKey is returned for keys a backend cannot address.
var ErrInvalidKey = errors.New("persist: invalid key")
