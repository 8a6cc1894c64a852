package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rushteam/feedkit/core"
)

// RedisJobQueue 是基于 Redis List 的任务队列：
// LPUSH 入队、BRPOP 出队，每个 jobType 一个 list。
//
// dedupeKey 通过 SET NX 实现：锁存在期间同 key 的入队直接丢弃，
// worker 完成（Ack）后释放。这保证同一用户的预计算并发触发至多入队一次，
// 也构成了每用户缓存分区的单写者约束。
type RedisJobQueue struct {
	client    redis.UniversalClient
	keyPrefix string

	// DedupeTTL 去重锁的兜底过期时间（worker 崩溃后锁自动释放），默认 5 分钟
	DedupeTTL time.Duration
}

func NewRedisJobQueue(client redis.UniversalClient, keyPrefix string) *RedisJobQueue {
	if keyPrefix == "" {
		keyPrefix = "feed"
	}
	return &RedisJobQueue{client: client, keyPrefix: keyPrefix, DedupeTTL: 5 * time.Minute}
}

func (q *RedisJobQueue) listKey(jobType string) string {
	return fmt.Sprintf("%s:queue:%s", q.keyPrefix, jobType)
}

func (q *RedisJobQueue) dedupeKey(key string) string {
	return fmt.Sprintf("%s:dedupe:%s", q.keyPrefix, key)
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, jobType string, payload []byte, dedupeKey string) error {
	if dedupeKey != "" {
		ttl := q.DedupeTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		ok, err := q.client.SetNX(ctx, q.dedupeKey(dedupeKey), "1", ttl).Result()
		if err != nil {
			return core.NewDomainError(core.ModuleQueue, core.ErrorCodeUnavailable,
				fmt.Sprintf("queue: acquire dedupe: %v", err))
		}
		if !ok {
			// 同 key 任务已在队列中或执行中，静默丢弃
			return nil
		}
	}

	job := core.Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Payload:   payload,
		DedupeKey: dedupeKey,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return core.NewDomainError(core.ModuleQueue, core.ErrorCodeInvalidInput,
			fmt.Sprintf("queue: marshal job: %v", err))
	}
	if err := q.client.LPush(ctx, q.listKey(jobType), data).Err(); err != nil {
		return core.NewDomainError(core.ModuleQueue, core.ErrorCodeUnavailable,
			fmt.Sprintf("queue: enqueue: %v", err))
	}
	return nil
}

// Dequeue 阻塞等待一个任务，队列空且等待超过 wait 时返回 (nil, nil)。
func (q *RedisJobQueue) Dequeue(ctx context.Context, jobType string, wait time.Duration) (*core.Job, error) {
	if wait <= 0 {
		wait = time.Second
	}
	vals, err := q.client.BRPop(ctx, wait, q.listKey(jobType)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, core.NewDomainError(core.ModuleQueue, core.ErrorCodeUnavailable,
			fmt.Sprintf("queue: dequeue: %v", err))
	}
	// BRPOP 返回 [key, value]
	if len(vals) < 2 {
		return nil, nil
	}
	var job core.Job
	if err := json.Unmarshal([]byte(vals[1]), &job); err != nil {
		return nil, core.NewDomainError(core.ModuleQueue, core.ErrorCodeInvalidInput,
			fmt.Sprintf("queue: decode job: %v", err))
	}
	return &job, nil
}

// Ack 释放任务的去重锁；此后同 key 的触发可以再次入队。
func (q *RedisJobQueue) Ack(ctx context.Context, job *core.Job) error {
	if job == nil || job.DedupeKey == "" {
		return nil
	}
	if err := q.client.Del(ctx, q.dedupeKey(job.DedupeKey)).Err(); err != nil {
		return core.NewDomainError(core.ModuleQueue, core.ErrorCodeUnavailable,
			fmt.Sprintf("queue: ack: %v", err))
	}
	return nil
}

var _ core.JobQueue = (*RedisJobQueue)(nil)
