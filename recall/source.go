package recall

import (
	"context"
	"math"
	"time"

	"github.com/rushteam/feedkit/core"
)

// Source 表示一个可复用的召回池（关注/推荐/热门/发现）。
// 你可以把它理解为"可并发 fan-out 的策略单元"：任何一个池失败只会
// 让整体候选池变小，绝不会中断整次构建。
type Source interface {
	Name() string
	Source() core.Source
	Recall(ctx context.Context, fctx *core.FeedContext) ([]*core.Candidate, error)
}

// ParamExcludeIDs 是 Fanout 在调用兜底池前写入 fctx.Params 的 key，
// 值为已入池的 postID 列表，发现池据此做全局排重采样。
const ParamExcludeIDs = "pool_exclude_ids"

// fromPost 把关系库的帖子行转为候选，附带池基准分。
func fromPost(p *core.Post, src core.Source, sourceScore float64) *core.Candidate {
	c := core.NewCandidate(p.ID, p.AuthorID, src)
	c.MediaID = p.MediaID
	c.ContentType = p.ContentType
	c.CreatedAt = p.CreatedAt
	c.SourceScore = sourceScore
	c.Likes = p.Likes
	c.Comments = p.Comments
	return c
}

// recencyBonus 是池基准分里的小时效加成：发布越新加成越大，一天衰减。
func recencyBonus(createdAt time.Time, max float64) float64 {
	if createdAt.IsZero() {
		return 0
	}
	hours := time.Since(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return max * math.Exp(-hours/24)
}
