package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStore is an in-process BlobStore used in tests and local runs
// without S3 credentials.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	types map[string]string

	// SignErr forces SignedGetURL failures in tests.
	SignErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
		types: make(map[string]string),
	}
}

func (m *MemoryStore) Put(_ context.Context, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	m.types[key] = contentType
	return nil
}

func (m *MemoryStore) SignedGetURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if m.SignErr != nil {
		return "", m.SignErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return "", fmt.Errorf("memory store: no blob %q", key)
	}
	exp := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("https://blobs.local/%s?expires=%d", key, exp), nil
}

func (m *MemoryStore) PublicURL(key string) string {
	return "https://assets.local/" + key
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	delete(m.types, key)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}
