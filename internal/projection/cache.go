package projection

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"metrology/internal/domain"
	"metrology/internal/platform/redis"
	domainerrors "metrology/pkg/domain-errors"
)

// Cache stores refreshed snapshots. Readers always get the last Put value;
// an absent snapshot means no refresh has happened yet.
type Cache interface {
	Put(ctx context.Context, snapshot domain.DueSnapshot) error
	Get(ctx context.Context, name string) (domain.DueSnapshot, error)
}

// MemoryCache keeps snapshots in process memory. The single-node default.
type MemoryCache struct {
	mu        sync.RWMutex
	snapshots map[string]domain.DueSnapshot
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{snapshots: make(map[string]domain.DueSnapshot)}
}

func (c *MemoryCache) Put(ctx context.Context, snapshot domain.DueSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[snapshot.Name] = snapshot
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, name string) (domain.DueSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot, ok := c.snapshots[name]
	if !ok {
		return domain.DueSnapshot{}, domainerrors.Newf(domainerrors.CodeNotFound, "snapshot %s not refreshed yet", name)
	}
	return snapshot, nil
}

// RedisCache shares snapshots across replicas as JSON values. Entries get a
// generous TTL so stale data ages out if refreshes stop.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, ttl: 24 * time.Hour}
}

func snapshotKey(name string) string { return "metrology:projection:" + name }

func (c *RedisCache) Put(ctx context.Context, snapshot domain.DueSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "encode snapshot")
	}
	if err := c.client.Set(ctx, snapshotKey(snapshot.Name), payload, c.ttl).Err(); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "store snapshot")
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, name string) (domain.DueSnapshot, error) {
	payload, err := c.client.Get(ctx, snapshotKey(name)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return domain.DueSnapshot{}, domainerrors.Newf(domainerrors.CodeNotFound, "snapshot %s not refreshed yet", name)
		}
		return domain.DueSnapshot{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "load snapshot")
	}
	var snapshot domain.DueSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return domain.DueSnapshot{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode snapshot")
	}
	return snapshot, nil
}
