package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	apppurch "github.com/clinic/pharmacy/internal/application/purchasing"
	"github.com/clinic/pharmacy/internal/infrastructure/config"
	"go.uber.org/zap"
)

// MemoryDocumentStore keeps documents in process memory. Links it hands out
// use the memory:// scheme and are only meaningful to Get.
type MemoryDocumentStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	body        []byte
	contentType string
}

// NewMemoryDocumentStore creates an empty store
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{objects: make(map[string]memoryObject), now: time.Now}
}

// Put implements DocumentStore
func (m *MemoryDocumentStore) Put(_ context.Context, key string, body []byte, contentType string) error {
	if key == "" {
		return errors.New("document key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{body: append([]byte(nil), body...), contentType: contentType}
	return nil
}

// Get returns a stored document
func (m *MemoryDocumentStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	return append([]byte(nil), obj.body...), nil
}

// PresignGet implements DocumentStore
func (m *MemoryDocumentStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	u := url.URL{Scheme: "memory", Path: "/" + key}
	u.RawQuery = url.Values{"expires": {m.now().Add(ttl).UTC().Format(time.RFC3339)}}.Encode()
	return u.String(), nil
}

// Len returns the number of stored documents
func (m *MemoryDocumentStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ apppurch.DocumentStore = (*MemoryDocumentStore)(nil)

// NewDocumentStore returns the S3 store when a bucket is configured and the
// in-memory store otherwise
func NewDocumentStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (apppurch.DocumentStore, error) {
	if cfg.Bucket == "" {
		if logger != nil {
			logger.Warn("no storage bucket configured, order documents are kept in memory")
		}
		return NewMemoryDocumentStore(), nil
	}
	store, err := NewS3DocumentStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
