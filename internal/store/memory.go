package store

import (
	"context"
	"sync"
)

// MemoryBlobStore is an in-process BlobStore. It does not survive a restart;
// tests use it to simulate reboots by reusing the same instance.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// WriteError, if set, is returned by WriteBlob and DeleteBlob.
	WriteError error

	// ReadError, if set, is returned by ReadBlob.
	ReadError error

	// Writes counts successful WriteBlob calls.
	Writes int
}

// NewMemoryBlobStore returns an empty store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

// ReadBlob returns a copy of the stored value.
func (m *MemoryBlobStore) ReadBlob(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReadError != nil {
		return nil, &Error{Op: "read", Key: key, Err: m.ReadError}
	}
	v, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// WriteBlob stores a copy of value.
func (m *MemoryBlobStore) WriteBlob(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteError != nil {
		return &Error{Op: "write", Key: key, Err: m.WriteError}
	}
	m.blobs[key] = append([]byte(nil), value...)
	m.Writes++
	return nil
}

// DeleteBlob removes key.
func (m *MemoryBlobStore) DeleteBlob(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteError != nil {
		return &Error{Op: "delete", Key: key, Err: m.WriteError}
	}
	delete(m.blobs, key)
	return nil
}

// Has reports whether key is present.
func (m *MemoryBlobStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

// Put seeds a raw value without going through WriteError.
func (m *MemoryBlobStore) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), value...)
}
