// Package feedkit 是一个 Feed 排序与预计算引擎（Feed Kit）。
//
// 设计要点：
// - Pipeline-first: 候选池构建与排序通过 Node 串联（Recall → Filter → Rank → ReRank）
// - 读写分离: 预计算编排器离线写缓存分区，检索编排器在线只读装配
// - 分层降级: 依赖超时/不可用在编排器内消化，只有兜底关系库查询失败会传播
package feedkit

import "github.com/rushteam/feedkit/pipeline"

// 轻量 facade：便于用户直接 import "feedkit" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall = pipeline.KindRecall
	KindFilter = pipeline.KindFilter
	KindRank   = pipeline.KindRank
	KindReRank = pipeline.KindReRank
)
