package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/feedkit/core"
)

// RedisSeenTracker 用 ZSET 维护每用户"已看过"的滑动窗口：
// member 是 postID，score 是曝光时间戳。
// 每次写入顺带裁掉窗口外的旧记录，集合大小有界。
type RedisSeenTracker struct {
	client    redis.UniversalClient
	keyPrefix string

	// Window 滑动窗口长度，默认 7 天
	Window time.Duration
}

func NewRedisSeenTracker(client redis.UniversalClient, keyPrefix string) *RedisSeenTracker {
	if keyPrefix == "" {
		keyPrefix = "feed"
	}
	return &RedisSeenTracker{client: client, keyPrefix: keyPrefix, Window: 7 * 24 * time.Hour}
}

func (t *RedisSeenTracker) key(userID string) string {
	return fmt.Sprintf("%s:seen:%s", t.keyPrefix, userID)
}

func (t *RedisSeenTracker) Seen(ctx context.Context, userID string) ([]string, error) {
	cutoff := float64(time.Now().Add(-t.window()).UnixMilli())
	ids, err := t.client.ZRangeByScore(ctx, t.key(userID), &redis.ZRangeBy{
		Min: fmt.Sprintf("%f", cutoff),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, core.NewDomainError(core.ModuleCache, core.ErrorCodeUnavailable,
			fmt.Sprintf("seen: read window: %v", err))
	}
	return ids, nil
}

func (t *RedisSeenTracker) SeenBefore(ctx context.Context, userID string, cutoff time.Time) ([]string, error) {
	min := float64(time.Now().Add(-t.window()).UnixMilli())
	ids, err := t.client.ZRangeByScore(ctx, t.key(userID), &redis.ZRangeBy{
		Min: fmt.Sprintf("%f", min),
		Max: fmt.Sprintf("(%d", cutoff.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, core.NewDomainError(core.ModuleCache, core.ErrorCodeUnavailable,
			fmt.Sprintf("seen: read before cutoff: %v", err))
	}
	return ids, nil
}

func (t *RedisSeenTracker) MarkSeen(ctx context.Context, userID string, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	key := t.key(userID)
	now := time.Now()
	members := make([]redis.Z, 0, len(postIDs))
	for _, id := range postIDs {
		if id == "" {
			continue
		}
		members = append(members, redis.Z{Score: float64(now.UnixMilli()), Member: id})
	}

	pipe := t.client.TxPipeline()
	pipe.ZAdd(ctx, key, members...)
	pipe.ZRemRangeByScore(ctx, key, "-inf",
		fmt.Sprintf("%f", float64(now.Add(-t.window()).UnixMilli())))
	pipe.Expire(ctx, key, t.window())
	if _, err := pipe.Exec(ctx); err != nil {
		return core.NewDomainError(core.ModuleCache, core.ErrorCodeUnavailable,
			fmt.Sprintf("seen: mark: %v", err))
	}
	return nil
}

func (t *RedisSeenTracker) window() time.Duration {
	if t.Window > 0 {
		return t.Window
	}
	return 7 * 24 * time.Hour
}

var _ core.SeenTracker = (*RedisSeenTracker)(nil)
