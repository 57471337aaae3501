package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryBlobStoreCopiesValues(t *testing.T) {
	m := NewMemoryBlobStore()
	ctx := context.Background()

	in := []byte("abc")
	if err := m.WriteBlob(ctx, "k", in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	in[0] = 'z'

	got, err := m.ReadBlob(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("stored value aliased caller slice: got %q", got)
	}
}

func TestMemoryBlobStoreErrors(t *testing.T) {
	m := NewMemoryBlobStore()
	ctx := context.Background()

	if _, err := m.ReadBlob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	m.WriteError = errors.New("boom")
	err := m.WriteBlob(ctx, "k", []byte("v"))
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if se.Op != "write" || se.Key != "k" {
		t.Errorf("unexpected error fields: %+v", se)
	}
	if m.Writes != 0 {
		t.Errorf("Writes: got %d, want 0", m.Writes)
	}

	if err := m.DeleteBlob(ctx, "k"); err == nil {
		t.Error("expected delete to fail while WriteError is set")
	}
}
