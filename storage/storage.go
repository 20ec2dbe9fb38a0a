// Package storage provides durable persistence for the upload queue.
package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested entry was not found.
	ErrNotFound = errors.New("storage: not found")
	// ErrStorageCorrupt indicates data corruption was detected.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
	// ErrLockTimeout indicates a timeout acquiring the queue file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
)

// StorageError wraps storage errors with operation context.
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("failed to %s %s: %v\n", storErr.Op, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("load", "save", "lock").
	Op string
	// ID is the entry ID if applicable.
	ID string
	// Err is the underlying error.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *StorageError) Unwrap() error { return e.Err }

// Store persists the upload queue as a single durable record.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save atomically overwrites the persisted queue record.
	Save(entries []*QueueEntry) error

	// Load returns the last saved record, or an empty set if the record
	// is absent or corrupt. Load never fails the whole start-up for a
	// decodable-but-legacy record; unknown fields fall back per field.
	Load() ([]*QueueEntry, error)

	// Close releases any resources held by the store.
	Close() error
}
