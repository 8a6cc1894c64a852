package recall

import (
	"context"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/pkg/utils"
)

// Followed 是关注池：关注作者的近期帖子，基准分为常量加小时效加成。
type Followed struct {
	Store core.ContentStore

	// Limit 池大小上限（默认 200）
	Limit int

	// BaseScore / RecencyBonus 池基准分参数
	BaseScore    float64
	RecencyBonus float64
}

func (r *Followed) Name() string        { return "recall.followed" }
func (r *Followed) Source() core.Source { return core.SourceFollowing }

func (r *Followed) Recall(
	ctx context.Context,
	fctx *core.FeedContext,
) ([]*core.Candidate, error) {
	if r.Store == nil || fctx == nil || len(fctx.Followees) == 0 {
		return nil, nil
	}

	limit := r.Limit
	if limit <= 0 {
		limit = 200
	}
	base := r.BaseScore
	if base == 0 {
		base = 0.6
	}
	bonus := r.RecencyBonus
	if bonus == 0 {
		bonus = 0.2
	}

	posts, err := r.Store.CandidatePosts(ctx, &core.PostFilter{
		AuthorIDs: fctx.Followees,
		OrderBy:   core.OrderByRecency,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*core.Candidate, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		c := fromPost(p, core.SourceFollowing, base+recencyBonus(p.CreatedAt, bonus))
		c.PutLabel("recall_source", utils.Label{Value: r.Name(), Source: "recall"})
		out = append(out, c)
	}
	return out, nil
}
