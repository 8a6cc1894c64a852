package recall

import (
	"context"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/pkg/utils"
)

// Suggested 是推荐池：用偏好向量做近邻检索，再把媒体 ID 映射回帖子。
// 没有偏好向量（冷用户）时安静返回空池。
// 关注作者的帖子被排除（关注池已覆盖），自己发布的同样排除。
type Suggested struct {
	Store   core.ContentStore
	Vectors core.VectorService

	// K 近邻检索条数（默认 100）
	K int

	// BaseScore / SimilarityBonus 池基准分参数：
	// 基准常量加按召回名次衰减的相似度加成
	BaseScore       float64
	SimilarityBonus float64
}

func (r *Suggested) Name() string        { return "recall.suggested" }
func (r *Suggested) Source() core.Source { return core.SourceSuggested }

func (r *Suggested) Recall(
	ctx context.Context,
	fctx *core.FeedContext,
) ([]*core.Candidate, error) {
	if r.Store == nil || r.Vectors == nil || fctx == nil {
		return nil, nil
	}
	if fctx.Prefs.IsEmpty() {
		// 无个性化信号不是错误
		return nil, nil
	}

	k := r.K
	if k <= 0 {
		k = 100
	}
	base := r.BaseScore
	if base == 0 {
		base = 0.5
	}
	bonus := r.SimilarityBonus
	if bonus == 0 {
		bonus = 0.3
	}

	neighbors, err := r.Vectors.Nearest(ctx, fctx.Prefs.Primary(), k, nil)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return nil, nil
	}

	mediaIDs := make([]string, 0, len(neighbors))
	rankOf := make(map[string]int, len(neighbors))
	for i, n := range neighbors {
		mediaIDs = append(mediaIDs, n.MediaID)
		rankOf[n.MediaID] = i
	}

	posts, err := r.Store.CandidatePosts(ctx, &core.PostFilter{
		MediaIDs:         mediaIDs,
		ExcludeAuthorIDs: append(append([]string{}, fctx.Followees...), fctx.UserID),
	})
	if err != nil {
		return nil, err
	}

	out := make([]*core.Candidate, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		rank, ok := rankOf[p.MediaID]
		if !ok {
			continue
		}
		// 名次衰减：第 0 名拿满额加成，第 k-1 名趋近于 0
		score := base + bonus*(1-float64(rank)/float64(k))
		c := fromPost(p, core.SourceSuggested, score)
		c.PutLabel("recall_source", utils.Label{Value: r.Name(), Source: "recall"})
		out = append(out, c)
	}
	return out, nil
}
