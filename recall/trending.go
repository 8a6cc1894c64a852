package recall

import (
	"context"
	"time"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/pkg/utils"
)

// Trending 是热门兜底池：近 7 天按互动排序，构建期内联执行作者上限。
// 只有主池（关注+推荐）低于水位线时 Fanout 才会调用它。
type Trending struct {
	Store core.ContentStore

	// Window 互动统计窗口（默认 7 天）
	Window time.Duration

	// Limit 池大小上限
	Limit int

	// AuthorCap 构建期的作者内上限（默认 3）
	AuthorCap int

	// BaseScore 池基准分
	BaseScore float64
}

func (r *Trending) Name() string        { return "recall.trending" }
func (r *Trending) Source() core.Source { return core.SourceTrending }

func (r *Trending) Recall(
	ctx context.Context,
	fctx *core.FeedContext,
) ([]*core.Candidate, error) {
	if r.Store == nil {
		return nil, nil
	}

	window := r.Window
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	limit := r.Limit
	if limit <= 0 {
		limit = 100
	}
	authorCap := r.AuthorCap
	if authorCap <= 0 {
		authorCap = 3
	}
	base := r.BaseScore
	if base == 0 {
		base = 0.4
	}

	// 读多于 limit：作者上限会剔掉一部分
	posts, err := r.Store.CandidatePosts(ctx, &core.PostFilter{
		MaxAge:  window,
		OrderBy: core.OrderByEngagement,
		Limit:   limit * 2,
	})
	if err != nil {
		return nil, err
	}

	perAuthor := make(map[string]int, len(posts))
	out := make([]*core.Candidate, 0, limit)
	for _, p := range posts {
		if p == nil {
			continue
		}
		if perAuthor[p.AuthorID] >= authorCap {
			continue
		}
		perAuthor[p.AuthorID]++

		c := fromPost(p, core.SourceTrending, base)
		c.PutLabel("recall_source", utils.Label{Value: r.Name(), Source: "recall"})
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
