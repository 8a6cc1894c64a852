package recall

import (
	"context"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/pkg/conv"
	"github.com/rushteam/feedkit/pkg/utils"
)

// Discovery 是最后一层兜底：均匀随机采样，排除所有已入池的帖子。
// Fanout 在调用前把已选 postID 写入 fctx.Params[ParamExcludeIDs]。
type Discovery struct {
	Store core.ContentStore

	// Limit 采样条数上限
	Limit int

	// BaseScore 池基准分
	BaseScore float64
}

func (r *Discovery) Name() string        { return "recall.discovery" }
func (r *Discovery) Source() core.Source { return core.SourceDiscovery }

func (r *Discovery) Recall(
	ctx context.Context,
	fctx *core.FeedContext,
) ([]*core.Candidate, error) {
	if r.Store == nil {
		return nil, nil
	}

	limit := r.Limit
	if limit <= 0 {
		limit = 50
	}
	base := r.BaseScore
	if base == 0 {
		base = 0.3
	}

	var exclude []string
	if fctx != nil && fctx.Params != nil {
		exclude = conv.SliceAnyToString(fctx.Params[ParamExcludeIDs])
	}

	posts, err := r.Store.CandidatePosts(ctx, &core.PostFilter{
		ExcludeIDs: exclude,
		OrderBy:    core.OrderByRandom,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*core.Candidate, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		c := fromPost(p, core.SourceDiscovery, base)
		c.PutLabel("recall_source", utils.Label{Value: r.Name(), Source: "recall"})
		out = append(out, c)
	}
	return out, nil
}
