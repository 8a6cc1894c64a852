package pipeline

import (
	"context"

	"github.com/rushteam/feedkit/core"
)

// Kind 用于标记 Node 类型，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindRecall Kind = "recall" // 召回阶段：生成候选池
	KindFilter Kind = "filter" // 过滤阶段：剔除黑名单/已曝光/自己发布的候选
	KindRank   Kind = "rank"   // 排序阶段：多信号打分并排序
	KindReRank Kind = "rerank" // 重排阶段：作者多样性约束
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用"输入 candidates -> 输出 candidates"的形态，
// 召回生成、过滤截断、排序改分、重排调序都是同一形态的变换。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		fctx *core.FeedContext,
		candidates []*core.Candidate,
	) ([]*core.Candidate, error)
}
