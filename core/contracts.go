package core

import (
	"context"
	"time"
)

// 本文件定义推荐链路消费的全部外部契约。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store / vector / signal）实现
//   - 契约保持窄接口：外部系统内部实现不属于本设计
//   - 所有阻塞调用都接收 context.Context，超时由调用方通过 pkg/bounded 控制

// 候选查询的排序方式
const (
	OrderByRecency    = "recency"
	OrderByEngagement = "engagement"
	OrderByRandom     = "random"
)

// PostFilter 是候选帖子查询的过滤条件（store.getCandidatePosts 的参数化形态）。
type PostFilter struct {
	// AuthorIDs 限定作者集合（为空不限定）
	AuthorIDs []string

	// ExcludeAuthorIDs 排除作者集合
	ExcludeAuthorIDs []string

	// IDs / MediaIDs 按主键或媒体 ID 精确查询
	IDs      []string
	MediaIDs []string

	// ExcludeIDs 排除帖子集合（用于发现池去重）
	ExcludeIDs []string

	// MaxAge 只取发布时间在 now-MaxAge 之后的帖子（0 不限定）
	MaxAge time.Duration

	// OrderBy：recency / engagement / random
	OrderBy string

	Limit int
}

// TrendingQuery 是热门查询的参数。
// Reference 在第一页固定并随 Cursor 透传，保证各页的衰减分母一致。
type TrendingQuery struct {
	TimeRange time.Duration
	Limit     int
	Reference time.Time

	// AfterScore / AfterDate 是上一页末尾的排序边界（翻页时设置）
	AfterScore *float64
	AfterDate  *time.Time
}

// ContentStore 是关系库契约：帖子、关注边、互动计数的权威来源。
type ContentStore interface {
	Name() string

	// FollowEdges 返回用户关注的作者 ID 列表
	FollowEdges(ctx context.Context, userID string) ([]string, error)

	// CandidatePosts 按过滤条件查询候选帖子
	CandidatePosts(ctx context.Context, f *PostFilter) ([]*Post, error)

	// FallbackFeed 是缓存不可用时的同步兜底查询：
	// 时效/互动混合排序，作者内排名截断 perAuthor
	FallbackFeed(ctx context.Context, userID string, limit, perAuthor int) ([]*Post, error)

	// TrendingPosts 在 SQL 内计算闭式衰减分并按其排序，返回帖子与对应分数
	TrendingPosts(ctx context.Context, q *TrendingQuery) ([]*Post, []float64, error)

	Close() error
}

// FeedCache 是宽列缓存契约：每用户一个分区，TTL 语义，无二级索引。
// 写入只属于预计算编排器；检索编排器只读（显式失效除外）。
type FeedCache interface {
	// UserFeed 按分数降序读取用户分区（limit <= 0 表示全部）
	UserFeed(ctx context.Context, userID string, limit int) ([]FeedEntry, error)

	// PutUserFeed 整体替换用户分区并设置 TTL（按 postID 幂等 upsert）
	PutUserFeed(ctx context.Context, userID string, entries []FeedEntry, ttl time.Duration) error

	// DeleteUserFeed 显式失效（高影响写事件触发，例如新增关注）
	DeleteUserFeed(ctx context.Context, userID string) error
}

// Neighbor 是近邻检索的一条结果。
type Neighbor struct {
	MediaID string
	Score   float64
}

// VectorService 是向量检索服务契约。
type VectorService interface {
	Name() string

	// Nearest 给定查询向量返回最近邻媒体（支持过滤表达式）
	Nearest(ctx context.Context, vector []float64, k int, filter map[string]any) ([]Neighbor, error)

	// Vectors 按媒体 ID 批量取回嵌入（直接查，不重算）
	Vectors(ctx context.Context, mediaIDs []string) (map[string]Embedding, error)

	Close() error
}

// InteractionStore 是行为记录契约，只支持按时间倒序的有限读取。
type InteractionStore interface {
	Recent(ctx context.Context, userID string, limit int) ([]Interaction, error)
}

// SeenTracker 维护用户"已看过"的 postID 滑动窗口。
type SeenTracker interface {
	Seen(ctx context.Context, userID string) ([]string, error)

	// SeenBefore 返回曝光时刻早于 cutoff 的子集。
	// 检索编排器用分区生成时刻做 cutoff，使分页排序不随本周期内的曝光漂移
	SeenBefore(ctx context.Context, userID string, cutoff time.Time) ([]string, error)

	// MarkSeen 由检索编排器在响应后异步调用，失败只记录不传播
	MarkSeen(ctx context.Context, userID string, postIDs []string) error
}

// 任务类型常量
const (
	JobPrecomputeFeed = "feed:precompute"
)

// Job 是队列中的一个工作项。
// DedupeKey 随任务透传，worker 完成后据此释放去重锁。
type Job struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Payload   []byte `json:"payload"`
	DedupeKey string `json:"dedupe_key,omitempty"`
}

// JobQueue 是任务队列契约。入队是 fire-and-forget：
// 调用方不等待执行结果；dedupeKey 保证同用户并发触发至多入队一次，
// 这也构成了每用户缓存分区的天然单写者约束。
type JobQueue interface {
	Enqueue(ctx context.Context, jobType string, payload []byte, dedupeKey string) error
}

// Engagement 是实时互动计数。
type Engagement struct {
	Likes    int64
	Comments int64
	Saves    int64
	Shares   int64
}

// SignalService 提供批量互动信号，排序阶段用它刷新召回时带出的计数。
// 实现可以是关系库直读，也可以是 Feast 在线特征。
type SignalService interface {
	Name() string
	BatchEngagement(ctx context.Context, postIDs []string) (map[string]Engagement, error)
	Close() error
}
