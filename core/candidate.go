package core

import (
	"time"

	"github.com/rushteam/feedkit/pkg/utils"
)

// Source 标识候选帖子来自哪个召回池，决定合并优先级与兜底语义。
type Source string

const (
	SourceFollowing Source = "following" // 关注池：关注作者的帖子
	SourceSuggested Source = "suggested" // 推荐池：向量相似检索
	SourceTrending  Source = "trending"  // 热门池：近 7 天互动排序
	SourceDiscovery Source = "discovery" // 发现池：随机兜底
)

// Priority 返回来源的合并优先级，数值越小优先级越高。
// 去重与作者上限均按此顺序执行（following > suggested > trending > discovery）。
func (s Source) Priority() int {
	switch s {
	case SourceFollowing:
		return 0
	case SourceSuggested:
		return 1
	case SourceTrending:
		return 2
	case SourceDiscovery:
		return 3
	}
	return 9
}

// Candidate 是一次召回/排序过程中的统一承载结构。
// 生命周期：召回阶段创建，排序阶段只改写 Score，落库或返回后丢弃。
// 所有阶段共享同一个显式结构，避免动态字段在链路中漂移。
type Candidate struct {
	PostID      string
	AuthorID    string
	MediaID     string
	ContentType string
	CreatedAt   time.Time
	Source      Source

	// SourceScore 是召回池给出的启发式基准分，落库时按权重与计算分混合。
	SourceScore float64

	// Score 是多信号排序后的最终分
	Score float64

	// Engagement 在召回时从关系库带出，排序阶段可被 SignalService 刷新
	Likes    int64
	Comments int64

	// Labels 用于解释与观测：recall_source / filtered / rank 信号等
	Labels map[string]utils.Label
}

func NewCandidate(postID, authorID string, src Source) *Candidate {
	return &Candidate{
		PostID:   postID,
		AuthorID: authorID,
		Source:   src,
		Labels:   make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；同名 key 按默认 Merge 规则累积。
func (c *Candidate) PutLabel(key string, lbl utils.Label) {
	if c.Labels == nil {
		c.Labels = make(map[string]utils.Label)
	}
	if old, ok := c.Labels[key]; ok {
		c.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	c.Labels[key] = lbl
}
