package filestore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps blobs in a map. Used by tests and single-instance
// development setups.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Save stores content under a mem:// URI derived from the object name.
func (s *MemoryStore) Save(ctx context.Context, objectName string, content []byte) (string, error) {
	uri := "mem://" + objectName
	cp := make([]byte, len(content))
	copy(cp, content)

	s.mu.Lock()
	s.blobs[uri] = cp
	s.mu.Unlock()

	return uri, nil
}

// Fetch returns the blob bytes for the given URI.
func (s *MemoryStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	s.mu.RLock()
	content, ok := s.blobs[uri]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", uri)
	}
	cp := make([]byte, len(content))
	copy(cp, content)
	return cp, nil
}

// Delete removes the blob for the given URI.
func (s *MemoryStore) Delete(ctx context.Context, uri string) error {
	s.mu.Lock()
	delete(s.blobs, uri)
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
