package filter

import (
	"context"

	"github.com/rushteam/feedkit/core"
)

// SelfAuthor 剔除用户自己发布的帖子。
// Fanout 合并时已经排除过一次；这里兜底覆盖缓存命中路径
// （缓存条目可能写于取关/发帖之前）。
type SelfAuthor struct{}

func (f *SelfAuthor) Name() string { return "filter.self_author" }

func (f *SelfAuthor) ShouldFilter(
	_ context.Context,
	fctx *core.FeedContext,
	c *core.Candidate,
) (bool, error) {
	if c == nil {
		return true, nil
	}
	if fctx == nil || fctx.UserID == "" {
		return false, nil
	}
	return c.AuthorID == fctx.UserID, nil
}
