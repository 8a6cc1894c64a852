package filter

import (
	"context"

	"github.com/rushteam/feedkit/core"
)

// Seen 剔除滑动窗口内已曝光的帖子。
// 曝光集合由编排器从 SeenTracker 取回并装配进 FeedContext；
// 检索路径上取回失败按空集合处理（宁可重复，不可报错）。
type Seen struct{}

func (f *Seen) Name() string { return "filter.seen" }

func (f *Seen) ShouldFilter(
	_ context.Context,
	fctx *core.FeedContext,
	c *core.Candidate,
) (bool, error) {
	if c == nil {
		return true, nil
	}
	if fctx == nil {
		return false, nil
	}
	return fctx.HasSeen(c.PostID), nil
}

// SeenOf 从 SeenTracker 取回曝光集合，失败返回空集合。
func SeenOf(ctx context.Context, tracker core.SeenTracker, userID string) map[string]bool {
	out := make(map[string]bool)
	if tracker == nil {
		return out
	}
	ids, err := tracker.Seen(ctx, userID)
	if err != nil {
		return out
	}
	for _, id := range ids {
		out[id] = true
	}
	return out
}
