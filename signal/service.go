// Package signal 提供互动计数信号：排序阶段用它刷新召回时带出的点赞/评论数。
package signal

import (
	"context"

	"github.com/rushteam/feedkit/core"
)

// StoreService 是关系库直读的 SignalService 默认实现。
// 候选本身来自关系库时计数已经足够新，这个实现主要服务缓存命中路径：
// 缓存条目可能是一小时前算的，计数需要回查。
type StoreService struct {
	Store core.ContentStore
}

func (s *StoreService) Name() string { return "signal.store" }

func (s *StoreService) BatchEngagement(ctx context.Context, postIDs []string) (map[string]core.Engagement, error) {
	if s.Store == nil || len(postIDs) == 0 {
		return map[string]core.Engagement{}, nil
	}
	posts, err := s.Store.CandidatePosts(ctx, &core.PostFilter{IDs: postIDs})
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.Engagement, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		out[p.ID] = core.Engagement{
			Likes:    p.Likes,
			Comments: p.Comments,
			Saves:    p.Saves,
			Shares:   p.Shares,
		}
	}
	return out, nil
}

func (s *StoreService) Close() error { return nil }

var _ core.SignalService = (*StoreService)(nil)
