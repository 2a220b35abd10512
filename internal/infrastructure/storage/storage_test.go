package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/clinic/pharmacy/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryDocumentStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()
	store.now = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }

	body := []byte(`{"order_number":"CF-2026-00001"}`)
	require.NoError(t, store.Put(ctx, "supplier-orders/2026/CF-2026-00001.json", body, "application/json"))
	body[0] = 'X'

	got, err := store.Get(ctx, "supplier-orders/2026/CF-2026-00001.json")
	require.NoError(t, err)
	assert.Equal(t, byte('{'), got[0], "stored copy is isolated from the caller's slice")

	link, err := store.PresignGet(ctx, "supplier-orders/2026/CF-2026-00001.json", 15*time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "memory", u.Scheme)
	assert.Equal(t, "2026-05-01T08:15:00Z", u.Query().Get("expires"))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	_, err = store.PresignGet(ctx, "missing", time.Minute)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Error(t, store.Put(ctx, "", body, "application/json"))
	assert.Equal(t, 1, store.Len())
}

func TestNewS3DocumentStore(t *testing.T) {
	ctx := context.Background()

	t.Run("bucket required", func(t *testing.T) {
		_, err := NewS3DocumentStore(ctx, config.StorageConfig{}, nil)
		assert.Error(t, err)
	})

	t.Run("static credentials and path-style endpoint", func(t *testing.T) {
		store, err := NewS3DocumentStore(ctx, config.StorageConfig{
			Bucket:       "pharmacy-docs",
			Endpoint:     "localhost:9000",
			AccessKeyID:  "minio",
			SecretKey:    "minio-secret",
			UsePathStyle: true,
		}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, "pharmacy-docs", store.Bucket())

		link, err := store.PresignGet(ctx, "supplier-orders/2026/CF-2026-00007.json", 10*time.Minute)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(link, "https://localhost:9000/pharmacy-docs/supplier-orders/2026/CF-2026-00007.json?"), link)
		assert.Contains(t, link, "X-Amz-Expires=600")
	})
}

func TestNewDocumentStore_WithoutBucketIsMemory(t *testing.T) {
	store, err := NewDocumentStore(context.Background(), config.StorageConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryDocumentStore{}, store)
}
