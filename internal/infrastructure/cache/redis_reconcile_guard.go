// Package cache holds the Redis-backed coordination used when several API
// instances share one database.
package cache

import (
	"context"
	"fmt"
	"time"

	appinv "github.com/clinic/pharmacy/internal/application/inventory"
	"github.com/clinic/pharmacy/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultGuardPrefix = "pharmacy:reconcile:"

// releaseScript deletes the key only while it still holds our token, so a
// pass whose lease expired never frees a lease taken by another instance.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisReconcileGuard is a ReconcileGuard shared by every instance pointing
// at the same Redis. Leases expire after ttl so a crashed pass cannot keep a
// medication locked.
type RedisReconcileGuard struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisReconcileGuard creates a guard on client
func NewRedisReconcileGuard(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisReconcileGuard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisReconcileGuard{client: client, keyPrefix: defaultGuardPrefix, ttl: ttl, logger: logger}
}

func (g *RedisReconcileGuard) key(medicationID uuid.UUID) string {
	return g.keyPrefix + medicationID.String()
}

// TryAcquire implements ReconcileGuard with SET NX PX
func (g *RedisReconcileGuard) TryAcquire(ctx context.Context, medicationID uuid.UUID) (func(), bool, error) {
	token := uuid.NewString()
	key := g.key(medicationID)
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire reconcile lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// the caller's context may already be done when the pass ends
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, g.client, []string{key}, token).Err(); err != nil {
			g.logger.Warn("failed to release reconcile lease, it will expire",
				zap.String("medication_id", medicationID.String()),
				zap.Duration("ttl", g.ttl),
				zap.Error(err))
		}
	}
	return release, true, nil
}

// IsHeld implements ReconcileGuard. Redis errors report not held.
func (g *RedisReconcileGuard) IsHeld(ctx context.Context, medicationID uuid.UUID) bool {
	n, err := g.client.Exists(ctx, g.key(medicationID)).Result()
	if err != nil {
		g.logger.Debug("reconcile lease lookup failed", zap.Error(err))
		return false
	}
	return n > 0
}

var _ appinv.ReconcileGuard = (*RedisReconcileGuard)(nil)

// NewClient opens and pings a Redis client
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// NewReconcileGuard picks the Redis guard when Redis is enabled and reachable
// and the process-local guard otherwise. The returned close func releases the
// Redis client, if any.
func NewReconcileGuard(ctx context.Context, cfg config.RedisConfig, ttl time.Duration, logger *zap.Logger) (appinv.ReconcileGuard, func() error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return appinv.NewLocalGuard(), func() error { return nil }
	}
	client, err := NewClient(ctx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, reconcile guard is process-local; "+
			"run a single instance until redis is back",
			zap.Error(err))
		return appinv.NewLocalGuard(), func() error { return nil }
	}
	logger.Info("using redis reconcile guard", zap.String("addr", cfg.Addr()), zap.Duration("ttl", ttl))
	return NewRedisReconcileGuard(client, ttl, logger), client.Close
}
