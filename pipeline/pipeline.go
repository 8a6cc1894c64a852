package pipeline

import (
	"context"

	"github.com/rushteam/feedkit/core"
)

// Pipeline 把一次 Feed 构建拆成可组合的 Node 链（召回 → 过滤 → 排序 → 重排）。
type Pipeline struct {
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	fctx *core.FeedContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	cur := candidates
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, fctx, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
