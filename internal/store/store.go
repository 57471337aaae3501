// Package store persists small named blobs across reboots and layers the
// agent's configuration record and hourly reading history on top of them.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by ReadBlob when the key has never been written.
var ErrNotFound = errors.New("store: key not found")

// BlobStore is durable key/value storage.
type BlobStore interface {
	// ReadBlob returns the stored bytes or ErrNotFound.
	ReadBlob(ctx context.Context, key string) ([]byte, error)

	// WriteBlob stores value under key, replacing any previous value.
	WriteBlob(ctx context.Context, key string, value []byte) error

	// DeleteBlob removes key. Deleting a missing key is not an error.
	DeleteBlob(ctx context.Context, key string) error
}

// Error reports a failed storage operation. It is never fatal: the caller
// keeps its in-memory state and carries on.
type Error struct {
	Op  string // "read", "write", "delete"
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
