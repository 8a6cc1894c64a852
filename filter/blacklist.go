package filter

import (
	"context"

	"github.com/rushteam/feedkit/core"
)

// Blacklist 剔除用户负反馈（not_interested）黑名单中的帖子。
// 黑名单由编排器从近期行为记录推导并装配进 FeedContext。
type Blacklist struct{}

func (f *Blacklist) Name() string { return "filter.blacklist" }

func (f *Blacklist) ShouldFilter(
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
	return fctx.IsBlacklisted(c.PostID), nil
}

// BlacklistOf 从近期行为记录推导黑名单集合。
// 只看最近 limit 条（行为表 append-only，读取必须有限额）。
func BlacklistOf(ctx context.Context, store core.InteractionStore, userID string, limit int) map[string]bool {
	out := make(map[string]bool)
	if store == nil {
		return out
	}
	if limit <= 0 {
		limit = 100
	}
	records, err := store.Recent(ctx, userID, limit)
	if err != nil {
		return out
	}
	for _, rec := range records {
		if rec.Type == core.InteractionNotInterested {
			out[rec.TargetID] = true
		}
	}
	return out
}
