package feed

import (
	"context"
	"time"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/rerank"
)

// TrendingPage 是热门页的返回结构。NextCursor 为空表示没有下一页。
type TrendingPage struct {
	Items      []*core.Post
	HasMore    bool
	NextCursor string
}

// GetTrending 返回全局热门的一页。
//
// 排序由关系库内的闭式衰减分决定；第一页把当前时刻固定为衰减基准，
// 之后随游标透传，翻页期间所有页共享同一套分数，(score, date) 边界
// 因此在各页之间保持一致，不会漏帖或重帖。
//
// userID 可选，非空时剔除用户自己发布的帖子。
// 热门查询没有缓存兜底，关系库错误直接传播。
func (s *Service) GetTrending(ctx context.Context, userID string, limit int, timeRange time.Duration, cursor string) (*TrendingPage, error) {
	cfg := s.cfg()
	if limit <= 0 {
		limit = 20
	}
	if timeRange <= 0 {
		timeRange = cfg.Pool.TrendingWindow
	}

	q := &core.TrendingQuery{
		TimeRange: timeRange,
		Reference: s.now(),
		// 多取一些：lookahead 判断 HasMore，剔除自发帖后也不出短页
		Limit: limit + 1 + 5,
	}
	if cursor != "" {
		c, err := DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		q.Reference = c.Reference
		q.AfterScore = c.Score
		d := c.Date
		q.AfterDate = &d
	}

	posts, scores, err := s.Store.TrendingPosts(ctx, q)
	if err != nil {
		return nil, err
	}

	// 自发帖剔除（保持 posts/scores 对齐）
	if userID != "" {
		filtered := posts[:0:0]
		filteredScores := scores[:0:0]
		for i, p := range posts {
			if p == nil || p.AuthorID == userID {
				continue
			}
			filtered = append(filtered, p)
			if i < len(scores) {
				filteredScores = append(filteredScores, scores[i])
			}
		}
		posts, scores = filtered, filteredScores
	}

	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
		scores = scores[:limit]
	}
	if len(posts) == 0 {
		return &TrendingPage{}, nil
	}

	// 游标边界取重排前分数序的最后一条
	nextCursor := ""
	if hasMore {
		last := posts[len(posts)-1]
		lastScore := scores[len(scores)-1]
		nextCursor = (&Cursor{
			Score:     &lastScore,
			Date:      last.CreatedAt,
			Reference: q.Reference,
		}).Encode()
	}

	candidates := make([]*core.Candidate, 0, len(posts))
	for _, p := range posts {
		candidates = append(candidates, candidateOf(p, core.SourceTrending, 0))
	}
	diversity := &rerank.Diversity{AuthorCap: cfg.Rerank.TrendingAuthorCap}
	reranked := diversity.Rerank(candidates)

	return &TrendingPage{
		Items:      postsOf(reranked),
		HasMore:    hasMore,
		NextCursor: nextCursor,
	}, nil
}
