package precompute

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/feedkit/core"
)

// Payload 是预计算任务的载荷。
type Payload struct {
	UserID string `json:"user_id"`
}

// Enqueue 为用户投递一次预计算任务。
// dedupeKey 按用户构造：并发触发至多入队一次，
// 由此保证同一用户缓存分区的单写者。
func Enqueue(ctx context.Context, queue core.JobQueue, userID string) error {
	if queue == nil || userID == "" {
		return nil
	}
	payload, err := json.Marshal(Payload{UserID: userID})
	if err != nil {
		return err
	}
	return queue.Enqueue(ctx, core.JobPrecomputeFeed, payload, core.JobPrecomputeFeed+":"+userID)
}

// Consumer 是 worker 侧的队列契约（store.RedisJobQueue / store.MemoryJobQueue 实现）。
type Consumer interface {
	// Dequeue 阻塞等待一个任务；队列空且等待超过 wait 时返回 (nil, nil)
	Dequeue(ctx context.Context, jobType string, wait time.Duration) (*core.Job, error)

	// Ack 任务完成后释放去重锁
	Ack(ctx context.Context, job *core.Job) error
}

// Worker 消费预计算队列并驱动 Orchestrator。
//
// 并发故意压得很低（默认 2）：预计算是离线路径，
// 宁可排队也不把关系库和向量服务打满。
// 任务失败只记录日志，错误从不向上传播，也不做自动重试，
// 下一次用户触发会重新入队。
type Worker struct {
	Queue        Consumer
	Orchestrator *Orchestrator

	// Concurrency 并发执行的任务数（默认 2）
	Concurrency int

	// PollInterval 队列空时的轮询间隔（默认 500ms）
	PollInterval time.Duration

	Logger *zap.Logger
}

func (w *Worker) logger() *zap.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return zap.NewNop()
}

// Run 阻塞运行直到 ctx 取消。
func (w *Worker) Run(ctx context.Context) error {
	if w.Queue == nil || w.Orchestrator == nil {
		return core.NewDomainError(core.ModuleQueue, core.ErrorCodeInvalidInput, "worker: queue and orchestrator are required")
	}

	concurrency := w.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	poll := w.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	log := w.logger()
	log.Info("precompute worker started", zap.Int("concurrency", concurrency))

	sem := make(chan struct{}, concurrency)
	for {
		select {
		case <-ctx.Done():
			// 等在途任务收尾
			for i := 0; i < concurrency; i++ {
				sem <- struct{}{}
			}
			log.Info("precompute worker stopped")
			return ctx.Err()
		default:
		}

		job, err := w.Queue.Dequeue(ctx, core.JobPrecomputeFeed, poll)
		if err != nil {
			log.Warn("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(poll):
			}
			continue
		}
		if job == nil {
			continue
		}

		sem <- struct{}{}
		go func(job *core.Job) {
			defer func() { <-sem }()
			w.handle(ctx, job)
		}(job)
	}
}

func (w *Worker) handle(ctx context.Context, job *core.Job) {
	log := w.logger().With(zap.String("job_id", job.ID))
	defer func() {
		if err := w.Queue.Ack(ctx, job); err != nil {
			log.Warn("ack failed", zap.Error(err))
		}
	}()

	var payload Payload
	if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.UserID == "" {
		log.Warn("invalid payload", zap.Error(err))
		return
	}

	if err := w.Orchestrator.Precompute(ctx, payload.UserID); err != nil {
		log.Warn("precompute run failed",
			zap.String("user_id", payload.UserID),
			zap.Error(fmt.Errorf("job %s: %w", job.ID, err)))
	}
}
