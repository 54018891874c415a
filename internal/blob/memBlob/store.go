// Package memBlob keeps blobs in process memory. It backs tests and
// single-process development runs.
package memBlob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"drive-service/internal/errs"
)

type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Put stores at most size bytes from r under a fresh handle.
func (s *Store) Put(ctx context.Context, r io.Reader, size int64, _ string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	handle := uuid.NewString()

	s.mu.Lock()
	s.objects[handle] = data
	s.mu.Unlock()
	return handle, nil
}

func (s *Store) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.objects[handle]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", handle, errs.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete is idempotent.
func (s *Store) Delete(_ context.Context, handle string) error {
	s.mu.Lock()
	delete(s.objects, handle)
	s.mu.Unlock()
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
