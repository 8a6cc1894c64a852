package core

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 收敛推荐链路的全部可调参数：权重、上限、TTL、超时、水位线。
// 原则：不允许任何模块级魔法数字，所有 tunable 都在这里显式声明，
// 按部署与按测试均可覆盖。
type Config struct {
	Pool     PoolConfig     `yaml:"pool"`
	Rank     RankConfig     `yaml:"rank"`
	Rerank   RerankConfig   `yaml:"rerank"`
	Cache    CacheConfig    `yaml:"cache"`
	Retrieve RetrieveConfig `yaml:"retrieve"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// PoolConfig 是候选池构建参数。
type PoolConfig struct {
	// FollowedLimit 关注池最大候选数
	FollowedLimit int `yaml:"followed_limit"`

	// SuggestedK 向量近邻检索的 K
	SuggestedK int `yaml:"suggested_k"`

	// Floor 触发热门/发现兜底的候选数下限
	Floor int `yaml:"floor"`

	// TrendingWindow 热门池的互动统计窗口
	TrendingWindow time.Duration `yaml:"trending_window"`

	// TrendingAuthorCap 热门池构建期的作者内上限
	TrendingAuthorCap int `yaml:"trending_author_cap"`

	// AuthorCap 合并后的全局作者上限（first-seen-wins，按池优先级）
	AuthorCap int `yaml:"author_cap"`

	// SourceTimeout 单个召回源的超时
	SourceTimeout time.Duration `yaml:"source_timeout"`

	// PreferenceInteractions 构建偏好向量读取的正反馈条数上限
	PreferenceInteractions int `yaml:"preference_interactions"`

	// BlacklistInteractions 推导黑名单读取的行为条数上限
	BlacklistInteractions int `yaml:"blacklist_interactions"`
}

// RankConfig 是多信号排序参数。权重之和必须等于 1.0（Validate 校验）。
type RankConfig struct {
	VisualWeight     float64 `yaml:"visual_weight"`
	VisionWeight     float64 `yaml:"vision_weight"`
	TextWeight       float64 `yaml:"text_weight"`
	EngagementWeight float64 `yaml:"engagement_weight"`
	RecencyWeight    float64 `yaml:"recency_weight"`
	DiversityWeight  float64 `yaml:"diversity_weight"`

	// EngagementScale 是 sigmoid 的中点缩放因子
	EngagementScale float64 `yaml:"engagement_scale"`

	// RecencyHalfLifeHours 是时效分的衰减常数（小时）
	RecencyHalfLifeHours float64 `yaml:"recency_half_life_hours"`

	// RepeatTypePenalty / RepeatAuthorPenalty 是路径相关多样性项的乘性惩罚
	RepeatTypePenalty   float64 `yaml:"repeat_type_penalty"`
	RepeatAuthorPenalty float64 `yaml:"repeat_author_penalty"`

	// BlendComputed / BlendHeuristic 是落库时计算分与池基准分的混合权重。
	// 原始实现固定 0.7/0.3；保留默认值，允许按部署覆盖。
	BlendComputed  float64 `yaml:"blend_computed"`
	BlendHeuristic float64 `yaml:"blend_heuristic"`
}

// RerankConfig 是多样性重排参数。
// 三处作者上限（2/3/5）在原始实现中就不一致，保持各自独立可配，不做统一。
type RerankConfig struct {
	// PageAuthorCap 页级重排的作者总数上限
	PageAuthorCap int `yaml:"page_author_cap"`

	// PrecomputeAuthorCap 预计算重排的作者总数上限
	PrecomputeAuthorCap int `yaml:"precompute_author_cap"`

	// TrendingAuthorCap 热门页的作者总数上限（同时约束连续出现）
	TrendingAuthorCap int `yaml:"trending_author_cap"`

	// Renormalize 重排后是否生成严格降序的合成分
	Renormalize bool `yaml:"renormalize"`
}

// CacheConfig 是预计算缓存参数。
type CacheConfig struct {
	// TTL 用户分区的存活时间
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries 单用户分区最大条数
	MaxEntries int `yaml:"max_entries"`

	// DegradedEntries 整体失败时降级写入的关注池条数
	DegradedEntries int `yaml:"degraded_entries"`

	// FreshnessFloor 缓存命中但条数低于该水位时补发预计算
	FreshnessFloor int `yaml:"freshness_floor"`
}

// RetrieveConfig 是检索编排参数。
type RetrieveConfig struct {
	// CacheTimeout / InteractionTimeout 是第一页并行读的超时上限
	CacheTimeout       time.Duration `yaml:"cache_timeout"`
	InteractionTimeout time.Duration `yaml:"interaction_timeout"`

	// FreshWindow 第一页同步注入的"极新"关注帖窗口
	FreshWindow time.Duration `yaml:"fresh_window"`

	// FreshLimit 极新注入的条数上限
	FreshLimit int `yaml:"fresh_limit"`

	// PinnedSuggested 置顶的未曝光推荐条数
	PinnedSuggested int `yaml:"pinned_suggested"`

	// FallbackLimit / FallbackPerAuthor 是同步兜底查询的参数
	FallbackLimit     int `yaml:"fallback_limit"`
	FallbackPerAuthor int `yaml:"fallback_per_author"`

	// FilterRules 是可选的 CEL 过滤规则（命中即剔除）
	FilterRules []string `yaml:"filter_rules"`
}

// WorkerConfig 是预计算 worker 参数。
type WorkerConfig struct {
	// Concurrency 小并发保护关系库与向量服务
	Concurrency int `yaml:"concurrency"`

	// PollInterval 队列空轮询间隔
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DefaultConfig 返回与原始部署一致的默认参数。
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			FollowedLimit:          200,
			SuggestedK:             100,
			Floor:                  100,
			TrendingWindow:         7 * 24 * time.Hour,
			TrendingAuthorCap:      3,
			AuthorCap:              5,
			SourceTimeout:          3 * time.Second,
			PreferenceInteractions: 15,
			BlacklistInteractions:  100,
		},
		Rank: RankConfig{
			VisualWeight:         0.20,
			VisionWeight:         0.25,
			TextWeight:           0.15,
			EngagementWeight:     0.20,
			RecencyWeight:        0.10,
			DiversityWeight:      0.10,
			EngagementScale:      10,
			RecencyHalfLifeHours: 24,
			RepeatTypePenalty:    0.7,
			RepeatAuthorPenalty:  0.8,
			BlendComputed:        0.7,
			BlendHeuristic:       0.3,
		},
		Rerank: RerankConfig{
			PageAuthorCap:       3,
			PrecomputeAuthorCap: 2,
			TrendingAuthorCap:   2,
			Renormalize:         true,
		},
		Cache: CacheConfig{
			TTL:             time.Hour,
			MaxEntries:      150,
			DegradedEntries: 50,
			FreshnessFloor:  50,
		},
		Retrieve: RetrieveConfig{
			CacheTimeout:       3 * time.Second,
			InteractionTimeout: 2 * time.Second,
			FreshWindow:        30 * time.Minute,
			FreshLimit:         10,
			PinnedSuggested:    5,
			FallbackLimit:      50,
			FallbackPerAuthor:  2,
		},
		Worker: WorkerConfig{
			Concurrency:  2,
			PollInterval: 500 * time.Millisecond,
		},
	}
}

// Validate 校验配置不变量。权重之和必须为 1.0，混合权重同理。
func (c *Config) Validate() error {
	sum := c.Rank.VisualWeight + c.Rank.VisionWeight + c.Rank.TextWeight +
		c.Rank.EngagementWeight + c.Rank.RecencyWeight + c.Rank.DiversityWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return NewDomainError(ModuleFeed, ErrorCodeInvalidInput,
			fmt.Sprintf("rank weights must sum to 1.0, got %v", sum))
	}
	if math.Abs(c.Rank.BlendComputed+c.Rank.BlendHeuristic-1.0) > 1e-9 {
		return NewDomainError(ModuleFeed, ErrorCodeInvalidInput,
			fmt.Sprintf("blend weights must sum to 1.0, got %v",
				c.Rank.BlendComputed+c.Rank.BlendHeuristic))
	}
	if c.Pool.AuthorCap <= 0 || c.Rerank.PageAuthorCap <= 0 || c.Rerank.PrecomputeAuthorCap <= 0 {
		return NewDomainError(ModuleFeed, ErrorCodeInvalidInput, "author caps must be positive")
	}
	return nil
}

// LoadConfig 从 YAML 文件加载配置，未出现的字段保持默认值。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
