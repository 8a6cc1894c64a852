package rerank

import (
	"context"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/pipeline"
)

// Diversity 是确定性的贪心多样性重排 Node，输入是已按分数降序的列表。
//
// 每个输出槽位分三轮选取：
//  1. 选剩余分数最高、作者不同于上一条、且作者累计数低于 AuthorCap 的候选
//  2. 只放松累计上限约束（作者仍需不同于上一条）
//  3. 无约束兜底（保证算法必然终止，最坏 O(n²)）
//
// Renormalize 开启时输出改写为严格降序的合成分（10 - i×0.01），
// 任何只按分数排序的消费方都会复现多样性感知后的顺序。
type Diversity struct {
	// AuthorCap 单作者累计上限（页级 3，预计算级 2，热门页 2）
	AuthorCap int

	// Renormalize 重排后生成严格降序合成分
	Renormalize bool
}

func (n *Diversity) Name() string        { return "rerank.diversity" }
func (n *Diversity) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *Diversity) Process(
	_ context.Context,
	_ *core.FeedContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	out := n.Rerank(candidates)
	return out, nil
}

// Rerank 执行重排；输入不被修改的前提只有一个例外：Renormalize 改写 Score。
func (n *Diversity) Rerank(candidates []*core.Candidate) []*core.Candidate {
	items := make([]*core.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c != nil {
			items = append(items, c)
		}
	}
	if len(items) <= 1 {
		return items
	}

	authorCap := n.AuthorCap
	if authorCap <= 0 {
		authorCap = 3
	}

	remaining := items
	out := make([]*core.Candidate, 0, len(items))
	counts := make(map[string]int, 32)
	lastAuthor := ""

	for len(remaining) > 0 {
		idx := -1

		// 第 1 轮：作者交替 + 累计上限
		for i, c := range remaining {
			if c.AuthorID != lastAuthor && counts[c.AuthorID] < authorCap {
				idx = i
				break
			}
		}
		// 第 2 轮：只放松累计上限
		if idx < 0 {
			for i, c := range remaining {
				if c.AuthorID != lastAuthor {
					idx = i
					break
				}
			}
		}
		// 第 3 轮：无约束兜底
		if idx < 0 {
			idx = 0
		}

		chosen := remaining[idx]
		out = append(out, chosen)
		counts[chosen.AuthorID]++
		lastAuthor = chosen.AuthorID
		remaining = append(remaining[:idx:idx], remaining[idx+1:]...)
	}

	if n.Renormalize {
		for i, c := range out {
			c.Score = 10 - float64(i)*0.01
		}
	}
	return out
}
