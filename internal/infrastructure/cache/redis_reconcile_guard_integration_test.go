//go:build integration

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func newRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisReconcileGuard_Integration(t *testing.T) {
	client := newRedisContainer(t)
	ctx := context.Background()

	t.Run("exclusive until released", func(t *testing.T) {
		a := NewRedisReconcileGuard(client, time.Minute, zap.NewNop())
		b := NewRedisReconcileGuard(client, time.Minute, zap.NewNop())
		med := uuid.New()

		release, ok, err := a.TryAcquire(ctx, med)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, b.IsHeld(ctx, med))

		_, ok, err = b.TryAcquire(ctx, med)
		require.NoError(t, err)
		assert.False(t, ok)

		release()
		assert.False(t, b.IsHeld(ctx, med))
		release2, ok, err := b.TryAcquire(ctx, med)
		require.NoError(t, err)
		assert.True(t, ok)
		release2()
	})

	t.Run("expired lease is not released by its old holder", func(t *testing.T) {
		g := NewRedisReconcileGuard(client, 100*time.Millisecond, zap.NewNop())
		med := uuid.New()

		staleRelease, ok, err := g.TryAcquire(ctx, med)
		require.NoError(t, err)
		require.True(t, ok)
		require.Eventually(t, func() bool { return !g.IsHeld(ctx, med) }, 2*time.Second, 20*time.Millisecond)

		long := NewRedisReconcileGuard(client, time.Minute, zap.NewNop())
		release, ok, err := long.TryAcquire(ctx, med)
		require.NoError(t, err)
		require.True(t, ok)

		staleRelease()
		assert.True(t, long.IsHeld(ctx, med))
		release()
	})

	t.Run("one winner under contention", func(t *testing.T) {
		med := uuid.New()
		var wins atomic.Int32
		var wg sync.WaitGroup
		releases := make(chan func(), 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				g := NewRedisReconcileGuard(client, time.Minute, zap.NewNop())
				release, ok, err := g.TryAcquire(ctx, med)
				if err == nil && ok {
					wins.Add(1)
					releases <- release
				}
			}()
		}
		wg.Wait()
		close(releases)
		assert.Equal(t, int32(1), wins.Load())
		for r := range releases {
			r()
		}
	})
}
