// Package bus publishes matching events and guards per-user runs across
// replicas through Redis. A nil Redis client turns both into in-process
// no-ops so a single replica works without Redis.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/logger"
)

// ChannelMatchesUpdated carries a run summary after every matching run.
const ChannelMatchesUpdated = "EVENT_MATCHES_UPDATED"

// ErrLockHeld is returned by Lock when another replica owns the run.
var ErrLockHeld = errors.New("run lock held elsewhere")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Bus wraps an optional Redis client.
type Bus struct {
	rdb *redis.Client
	log *zap.Logger
}

// New returns a Bus. rdb may be nil.
func New(rdb *redis.Client, log *zap.Logger) *Bus {
	return &Bus{rdb: rdb, log: logger.Component(log, "bus")}
}

// Enabled reports whether a Redis client is configured.
func (b *Bus) Enabled() bool { return b != nil && b.rdb != nil }

// Publish marshals payload as JSON onto channel. Failures are logged and
// swallowed: events are advisory.
func (b *Bus) Publish(ctx context.Context, channel string, payload any) {
	if !b.Enabled() {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Warn("marshal event failed", zap.String("channel", channel), zap.Error(err))
		return
	}
	if err := b.rdb.Publish(ctx, channel, data).Err(); err != nil {
		b.log.Warn("publish failed", zap.String("channel", channel), zap.Error(err))
	}
}

// Unlock releases a lock obtained from Lock.
type Unlock func()

// Lock takes the cross-replica run lock for key with the given TTL. Without
// Redis it always succeeds. The returned Unlock is safe to call once the
// lock has expired: it only deletes a key still holding this caller's token.
func (b *Bus) Lock(ctx context.Context, key string, ttl time.Duration) (Unlock, error) {
	if !b.Enabled() {
		return func() {}, nil
	}
	token := uuid.NewString()
	ok, err := b.rdb.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SETNX %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func() {
		// the run context may already be cancelled
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, b.rdb, []string{lockKey(key)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			b.log.Warn("release lock failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func lockKey(key string) string { return "matching:lock:" + key }
