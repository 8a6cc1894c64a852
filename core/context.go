package core

// FeedContext 承载一次召回/排序运行所需的用户侧信息，贯穿整个 Pipeline 透传。
// 由编排器在运行开始时一次性装配；各 Node 只读，最终列表序是本次输入的纯函数。
type FeedContext struct {
	UserID string

	// Followees 是关注边（作者 ID 列表）
	Followees []string

	// Seen 是滑动窗口内已曝光的 postID 集合
	Seen map[string]bool

	// Blacklist 是 not_interested 行为推导出的 postID 集合
	Blacklist map[string]bool

	// Prefs 是按需构建的偏好向量；全空向量表示"无个性化信号"，不是错误
	Prefs *PreferenceVector

	// Params 请求级参数（page、limit、refresh 等）
	Params map[string]any
}

// IsFollowing 判断作者是否被当前用户关注。
func (fctx *FeedContext) IsFollowing(authorID string) bool {
	for _, id := range fctx.Followees {
		if id == authorID {
			return true
		}
	}
	return false
}

// HasSeen 判断帖子是否已曝光。
func (fctx *FeedContext) HasSeen(postID string) bool {
	return fctx.Seen != nil && fctx.Seen[postID]
}

// IsBlacklisted 判断帖子是否在用户负反馈黑名单中。
func (fctx *FeedContext) IsBlacklisted(postID string) bool {
	return fctx.Blacklist != nil && fctx.Blacklist[postID]
}
