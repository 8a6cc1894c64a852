package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/feedkit/core"
)

// RedisFeedCache 用每用户一个 ZSET 模拟宽列分区：
// member 是序列化后的 FeedEntry，score 就是预计算分，
// ZREVRANGE 天然给出分数降序，不需要二级索引。
//
// 写路径整体替换分区（DEL + ZADD + EXPIRE 在同一条 pipeline 内），
// 配合队列的去重锁构成每用户单写者。
type RedisFeedCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisFeedCache 创建 Redis 缓存。keyPrefix 为空时使用 "feed"。
func NewRedisFeedCache(client redis.UniversalClient, keyPrefix string) *RedisFeedCache {
	if keyPrefix == "" {
		keyPrefix = "feed"
	}
	return &RedisFeedCache{client: client, keyPrefix: keyPrefix}
}

func (c *RedisFeedCache) key(userID string) string {
	return fmt.Sprintf("%s:user:%s", c.keyPrefix, userID)
}

func (c *RedisFeedCache) UserFeed(ctx context.Context, userID string, limit int) ([]core.FeedEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	members, err := c.client.ZRevRange(ctx, c.key(userID), 0, stop).Result()
	if err != nil {
		return nil, core.NewDomainError(core.ModuleCache, core.ErrorCodeUnavailable,
			fmt.Sprintf("cache: read user feed: %v", err))
	}
	if len(members) == 0 {
		return nil, core.ErrCacheNotFound
	}

	entries := make([]core.FeedEntry, 0, len(members))
	for _, m := range members {
		var e core.FeedEntry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			// 坏条目跳过，不让单条脏数据毁掉整个分区
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (c *RedisFeedCache) PutUserFeed(ctx context.Context, userID string, entries []core.FeedEntry, ttl time.Duration) error {
	key := c.key(userID)
	if ttl <= 0 {
		ttl = time.Hour
	}

	// 同一 postID 幂等：后写覆盖前写
	byPost := make(map[string]core.FeedEntry, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.PostID == "" {
			continue
		}
		if _, ok := byPost[e.PostID]; !ok {
			order = append(order, e.PostID)
		}
		byPost[e.PostID] = e
	}

	members := make([]redis.Z, 0, len(order))
	for _, postID := range order {
		e := byPost[postID]
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		members = append(members, redis.Z{Score: e.Score, Member: string(data)})
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(members) > 0 {
		pipe.ZAdd(ctx, key, members...)
	}
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return core.NewDomainError(core.ModuleCache, core.ErrorCodeUnavailable,
			fmt.Sprintf("cache: put user feed: %v", err))
	}
	return nil
}

func (c *RedisFeedCache) DeleteUserFeed(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return core.NewDomainError(core.ModuleCache, core.ErrorCodeUnavailable,
			fmt.Sprintf("cache: delete user feed: %v", err))
	}
	return nil
}

var _ core.FeedCache = (*RedisFeedCache)(nil)
