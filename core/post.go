package core

import "time"

// Post 是关系库中的帖子行，只携带召回/排序/补水需要的字段。
type Post struct {
	ID          string
	AuthorID    string
	MediaID     string
	ContentType string
	Caption     string
	CreatedAt   time.Time

	Likes    int64
	Comments int64
	Saves    int64
	Shares   int64
}

// InteractionType 是行为类型。
type InteractionType string

const (
	InteractionLike          InteractionType = "like"
	InteractionComment       InteractionType = "comment"
	InteractionSave          InteractionType = "save"
	InteractionShare         InteractionType = "share"
	InteractionInterested    InteractionType = "interested"
	InteractionNotInterested InteractionType = "not_interested"
)

// IsPositive 判断该行为是否作为偏好向量的正向信号。
func (t InteractionType) IsPositive() bool {
	switch t {
	case InteractionLike, InteractionSave, InteractionShare, InteractionInterested:
		return true
	}
	return false
}

// Interaction 是 append-only 的行为记录，按时间倒序有限读取。
type Interaction struct {
	UserID     string
	TargetID   string
	TargetType string
	Type       InteractionType
	CreatedAt  time.Time
}

// FeedEntry 是宽列缓存中的一条预计算结果。
// 同一用户分区内 PostID 唯一，读取顺序严格由 Score 降序决定。
// GeneratedAt 是本次预计算运行的时刻，同分区所有条目相同；
// 检索编排器据此区分"生成前就看过"与"本分区周期内看过"的帖子。
type FeedEntry struct {
	UserID      string    `json:"user_id"`
	PostID      string    `json:"post_id"`
	Score       float64   `json:"score"`
	Source      Source    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	GeneratedAt time.Time `json:"generated_at,omitempty"`
}
