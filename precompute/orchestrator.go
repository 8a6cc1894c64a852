// Package precompute 实现预计算编排器与队列 worker：
// 离线为每个用户构建候选池、排序、重排，并把结果落入缓存分区。
package precompute

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/filter"
	"github.com/rushteam/feedkit/pipeline"
	"github.com/rushteam/feedkit/profile"
	"github.com/rushteam/feedkit/rank"
	"github.com/rushteam/feedkit/recall"
	"github.com/rushteam/feedkit/rerank"
)

// State 是一次预计算运行的阶段标识，只用于日志与失败定位。
type State string

const (
	StateStart           State = "start"
	StateBuildPreference State = "build_preference"
	StateBuildCandidates State = "build_candidates"
	StateRank            State = "rank"
	StateRerank          State = "rerank"
	StatePersist         State = "persist"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// Orchestrator 是预计算编排器。
//
// 运行阶段：start → build_preference → build_candidates → rank → rerank → persist。
// 偏好向量先于候选池构建：推荐池的近邻检索依赖它。
//
// 容错语义分两层：
//   - 单个依赖失败（向量服务、信号服务、某个召回池）在各自组件内降级，
//     运行继续，结果质量下降但不中断
//   - 整个运行失败（候选为空或落库失败）时降级写入：只取关注池、
//     按池基准分排序、截断到 DegradedEntries，保证分区不至于一直为空
type Orchestrator struct {
	Cfg *core.Config

	Store        core.ContentStore
	Cache        core.FeedCache
	Vectors      core.VectorService
	Interactions core.InteractionStore
	SeenTracker  core.SeenTracker

	// Signals 可选：排序前刷新互动计数
	Signals core.SignalService

	Logger *zap.Logger

	// Now 便于测试注入时间；为 nil 使用 time.Now
	Now func() time.Time
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

func (o *Orchestrator) cfg() *core.Config {
	if o.Cfg != nil {
		return o.Cfg
	}
	return core.DefaultConfig()
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Precompute 为单个用户执行一次完整的预计算运行。
func (o *Orchestrator) Precompute(ctx context.Context, userID string) error {
	if userID == "" {
		return core.NewDomainError(core.ModuleFeed, core.ErrorCodeInvalidInput, "precompute: empty user id")
	}
	cfg := o.cfg()
	log := o.logger().With(zap.String("user_id", userID))
	started := o.now()
	state := StateStart

	fctx := o.buildContext(ctx, userID, cfg)

	state = StateBuildPreference
	builder := &profile.VectorBuilder{
		Interactions:    o.Interactions,
		Store:           o.Store,
		Vectors:         o.Vectors,
		MaxInteractions: cfg.Pool.PreferenceInteractions,
	}
	prefs, _ := builder.Build(ctx, userID)
	fctx.Prefs = prefs

	state = StateBuildCandidates
	pool, err := o.buildCandidates(ctx, fctx, cfg)
	if err == nil && len(pool) == 0 {
		err = core.NewDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, "precompute: empty candidate pool")
	}
	if err != nil {
		return o.fail(ctx, log, userID, state, pool, err)
	}

	state = StateRank
	rankNode := &rank.MultiSignal{
		Cfg:              cfg.Rank,
		Vectors:          o.Vectors,
		Signals:          o.Signals,
		BlendSourceScore: true,
		Now:              o.Now,
	}
	ranked, err := rankNode.Process(ctx, fctx, pool)
	if err != nil {
		return o.fail(ctx, log, userID, state, pool, err)
	}

	state = StateRerank
	rerankPipeline := &pipeline.Pipeline{Nodes: []pipeline.Node{
		&rerank.Diversity{
			AuthorCap:   cfg.Rerank.PrecomputeAuthorCap,
			Renormalize: cfg.Rerank.Renormalize,
		},
		&rerank.TopN{N: cfg.Cache.MaxEntries},
	}}
	ranked, err = rerankPipeline.Run(ctx, fctx, ranked)
	if err != nil {
		return o.fail(ctx, log, userID, state, pool, err)
	}

	state = StatePersist
	entries := o.toEntries(userID, ranked)
	if err := o.Cache.PutUserFeed(ctx, userID, entries, cfg.Cache.TTL); err != nil {
		return o.fail(ctx, log, userID, state, pool, err)
	}

	state = StateDone
	log.Info("precompute done",
		zap.String("state", string(state)),
		zap.Int("pool_size", len(pool)),
		zap.Int("entries", len(entries)),
		zap.Duration("elapsed", o.now().Sub(started)))
	return nil
}

// buildContext 装配 FeedContext。单项依赖失败按空集合降级，不中断运行。
func (o *Orchestrator) buildContext(ctx context.Context, userID string, cfg *core.Config) *core.FeedContext {
	fctx := &core.FeedContext{UserID: userID}
	if o.Store != nil {
		if followees, err := o.Store.FollowEdges(ctx, userID); err == nil {
			fctx.Followees = followees
		}
	}
	fctx.Seen = filter.SeenOf(ctx, o.SeenTracker, userID)
	fctx.Blacklist = filter.BlacklistOf(ctx, o.Interactions, userID, cfg.Pool.BlacklistInteractions)
	return fctx
}

func (o *Orchestrator) buildCandidates(ctx context.Context, fctx *core.FeedContext, cfg *core.Config) ([]*core.Candidate, error) {
	fanout := &recall.Fanout{
		Primary: []recall.Source{
			&recall.Followed{Store: o.Store, Limit: cfg.Pool.FollowedLimit},
			&recall.Suggested{Store: o.Store, Vectors: o.Vectors, K: cfg.Pool.SuggestedK},
		},
		Backfill: []recall.Source{
			&recall.Trending{Store: o.Store, Window: cfg.Pool.TrendingWindow, AuthorCap: cfg.Pool.TrendingAuthorCap},
			&recall.Discovery{Store: o.Store},
		},
		Floor:     cfg.Pool.Floor,
		AuthorCap: cfg.Pool.AuthorCap,
		Timeout:   cfg.Pool.SourceTimeout,
	}
	// 已曝光/黑名单/自己发布的剔除在 Fanout 合并时完成，
	// 水位线与作者上限作用在剔除后的池上
	return fanout.Process(ctx, fctx, nil)
}

// fail 走降级落库路径后返回原始错误。
func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, userID string, state State, pool []*core.Candidate, cause error) error {
	log.Warn("precompute failed, writing degraded feed",
		zap.String("state", string(StateFailed)),
		zap.String("failed_at", string(state)),
		zap.Error(cause))
	if err := o.writeDegraded(ctx, userID, pool); err != nil {
		log.Error("degraded write failed", zap.Error(err))
	}
	return fmt.Errorf("precompute %s: %w", state, cause)
}

// writeDegraded 只取关注池候选，按池基准分排序，截断后落库。
// 没有任何关注池候选时保留旧分区不动（过期总好过清空）。
func (o *Orchestrator) writeDegraded(ctx context.Context, userID string, pool []*core.Candidate) error {
	cfg := o.cfg()
	followed := make([]*core.Candidate, 0, len(pool))
	for _, c := range pool {
		if c != nil && c.Source == core.SourceFollowing {
			followed = append(followed, c)
		}
	}
	if len(followed) == 0 {
		return nil
	}
	sort.SliceStable(followed, func(i, j int) bool {
		return followed[i].SourceScore > followed[j].SourceScore
	})
	if len(followed) > cfg.Cache.DegradedEntries {
		followed = followed[:cfg.Cache.DegradedEntries]
	}
	for _, c := range followed {
		c.Score = c.SourceScore
	}
	return o.Cache.PutUserFeed(ctx, userID, o.toEntries(userID, followed), cfg.Cache.TTL)
}

func (o *Orchestrator) toEntries(userID string, candidates []*core.Candidate) []core.FeedEntry {
	generated := o.now()
	entries := make([]core.FeedEntry, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.PostID == "" {
			continue
		}
		entries = append(entries, core.FeedEntry{
			UserID:      userID,
			PostID:      c.PostID,
			Score:       c.Score,
			Source:      c.Source,
			CreatedAt:   c.CreatedAt,
			GeneratedAt: generated,
		})
	}
	return entries
}
