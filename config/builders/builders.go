// Package builders 在 init 中注册内置 Node 的配置构建逻辑。
// 入口处 import _ "github.com/rushteam/feedkit/config/builders" 触发注册。
package builders

import (
	"fmt"

	"github.com/rushteam/feedkit/config"
	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/filter"
	"github.com/rushteam/feedkit/pipeline"
	"github.com/rushteam/feedkit/pkg/conv"
	"github.com/rushteam/feedkit/rank"
	"github.com/rushteam/feedkit/rerank"
)

func init() {
	config.Register("recall.fanout", BuildFanoutNode)
	config.Register("filter.node", BuildFilterNode)
	config.Register("rank.multi_signal", BuildMultiSignalNode)
	config.Register("rerank.diversity", BuildDiversityNode)
	config.Register("rerank.topn", BuildTopNNode)
}

// BuildFanoutNode 召回池需要 ContentStore / VectorService 等运行期依赖，
// 无法从纯配置构建；配置驱动的 Pipeline 只覆盖过滤/排序/重排段。
func BuildFanoutNode(_ map[string]interface{}) (pipeline.Node, error) {
	return nil, fmt.Errorf("recall.fanout requires injected services, construct it programmatically")
}

// BuildFilterNode 构建过滤 Node。
// 配置项：seen / blacklist / self_author 开关（默认全开），rules 是 CEL 表达式列表。
func BuildFilterNode(cfg map[string]interface{}) (pipeline.Node, error) {
	var filters []filter.Filter
	if conv.ConfigGet(cfg, "self_author", true) {
		filters = append(filters, &filter.SelfAuthor{})
	}
	if conv.ConfigGet(cfg, "seen", true) {
		filters = append(filters, &filter.Seen{})
	}
	if conv.ConfigGet(cfg, "blacklist", true) {
		filters = append(filters, &filter.Blacklist{})
	}
	for _, expr := range conv.SliceAnyToString(cfg["rules"]) {
		rule, err := filter.NewRule(expr)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", expr, err)
		}
		filters = append(filters, rule)
	}
	return &filter.Node{Filters: filters}, nil
}

// BuildMultiSignalNode 构建多信号排序 Node。
// weights 缺省使用默认配置；VectorService / SignalService 由调用方在构建后注入，
// 未注入时相似项按 0 处理、互动计数保留召回值。
func BuildMultiSignalNode(cfg map[string]interface{}) (pipeline.Node, error) {
	rc := core.DefaultConfig().Rank
	if weights, ok := cfg["weights"].(map[string]interface{}); ok {
		w := conv.MapToFloat64(weights)
		if v, ok := w["visual"]; ok {
			rc.VisualWeight = v
		}
		if v, ok := w["vision"]; ok {
			rc.VisionWeight = v
		}
		if v, ok := w["text"]; ok {
			rc.TextWeight = v
		}
		if v, ok := w["engagement"]; ok {
			rc.EngagementWeight = v
		}
		if v, ok := w["recency"]; ok {
			rc.RecencyWeight = v
		}
		if v, ok := w["diversity"]; ok {
			rc.DiversityWeight = v
		}
	}
	rc.EngagementScale = conv.ConfigGet(cfg, "engagement_scale", rc.EngagementScale)
	rc.RecencyHalfLifeHours = conv.ConfigGet(cfg, "recency_half_life_hours", rc.RecencyHalfLifeHours)
	rc.RepeatTypePenalty = conv.ConfigGet(cfg, "repeat_type_penalty", rc.RepeatTypePenalty)
	rc.RepeatAuthorPenalty = conv.ConfigGet(cfg, "repeat_author_penalty", rc.RepeatAuthorPenalty)

	return &rank.MultiSignal{
		Cfg:              rc,
		BlendSourceScore: conv.ConfigGet(cfg, "blend_source_score", false),
	}, nil
}

// BuildDiversityNode 构建多样性重排 Node。
func BuildDiversityNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.Diversity{
		AuthorCap:   conv.ConfigGet(cfg, "author_cap", 3),
		Renormalize: conv.ConfigGet(cfg, "renormalize", false),
	}, nil
}

// BuildTopNNode 构建截断 Node。
func BuildTopNNode(cfg map[string]interface{}) (pipeline.Node, error) {
	n := conv.ConfigGet(cfg, "n", 0)
	if n <= 0 {
		return nil, fmt.Errorf("rerank.topn requires positive n")
	}
	return &rerank.TopN{N: n}, nil
}
