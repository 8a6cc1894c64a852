// Package store 提供推荐链路的存储实现：
// GORM/MySQL 关系库、Redis 缓存/已读窗口/任务队列，以及测试用的内存实现。
package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rushteam/feedkit/core"
)

// postRow 是 posts 表的行模型。
type postRow struct {
	ID          string    `gorm:"column:id;primaryKey"`
	AuthorID    string    `gorm:"column:author_id"`
	MediaID     string    `gorm:"column:media_id"`
	ContentType string    `gorm:"column:content_type"`
	Caption     string    `gorm:"column:caption"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	Likes       int64     `gorm:"column:likes"`
	Comments    int64     `gorm:"column:comments"`
	Saves       int64     `gorm:"column:saves"`
	Shares      int64     `gorm:"column:shares"`
}

func (postRow) TableName() string { return "posts" }

func (r *postRow) toPost() *core.Post {
	return &core.Post{
		ID:          r.ID,
		AuthorID:    r.AuthorID,
		MediaID:     r.MediaID,
		ContentType: r.ContentType,
		Caption:     r.Caption,
		CreatedAt:   r.CreatedAt,
		Likes:       r.Likes,
		Comments:    r.Comments,
		Saves:       r.Saves,
		Shares:      r.Shares,
	}
}

// followRow 是 follows 表的行模型（关注边）。
type followRow struct {
	FollowerID string    `gorm:"column:follower_id"`
	FolloweeID string    `gorm:"column:followee_id"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (followRow) TableName() string { return "follows" }

// interactionRow 是 interactions 表的行模型（append-only 行为流水）。
type interactionRow struct {
	UserID     string    `gorm:"column:user_id"`
	TargetID   string    `gorm:"column:target_id"`
	TargetType string    `gorm:"column:target_type"`
	Type       string    `gorm:"column:type"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (interactionRow) TableName() string { return "interactions" }

// GormStore 是基于 GORM/MySQL 的权威数据源，
// 同时实现 ContentStore 和 InteractionStore。
//
// 排序类查询（兜底、热门）直接在 SQL 内完成：
// 窗口函数做作者内截断，闭式衰减分做热门排序，都不回到应用层再算。
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 用 DSN 打开 MySQL 连接。
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return &GormStore{db: db}, nil
}

// NewGormStoreWithDB 复用已有的 *gorm.DB（连接池由调用方管理）。
func NewGormStoreWithDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Name() string { return "store.gorm" }

func (s *GormStore) FollowEdges(ctx context.Context, userID string) ([]string, error) {
	var followees []string
	err := s.db.WithContext(ctx).
		Model(&followRow{}).
		Where("follower_id = ?", userID).
		Order("created_at DESC").
		Pluck("followee_id", &followees).Error
	if err != nil {
		return nil, queryError("follow edges", err)
	}
	return followees, nil
}

func (s *GormStore) CandidatePosts(ctx context.Context, f *core.PostFilter) ([]*core.Post, error) {
	if f == nil {
		f = &core.PostFilter{}
	}
	q := s.db.WithContext(ctx).Model(&postRow{})

	if len(f.AuthorIDs) > 0 {
		q = q.Where("author_id IN ?", f.AuthorIDs)
	}
	if len(f.ExcludeAuthorIDs) > 0 {
		q = q.Where("author_id NOT IN ?", f.ExcludeAuthorIDs)
	}
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if len(f.MediaIDs) > 0 {
		q = q.Where("media_id IN ?", f.MediaIDs)
	}
	if len(f.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", f.ExcludeIDs)
	}
	if f.MaxAge > 0 {
		q = q.Where("created_at > ?", time.Now().Add(-f.MaxAge))
	}

	switch f.OrderBy {
	case core.OrderByEngagement:
		q = q.Order("(likes + 2 * comments) DESC").Order("created_at DESC")
	case core.OrderByRandom:
		q = q.Order("RAND()")
	default:
		q = q.Order("created_at DESC")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []postRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, queryError("candidate posts", err)
	}
	return toPosts(rows), nil
}

// FallbackFeed 是缓存不可用时的同步兜底：
// 近一周按 时效+互动 混合排序，窗口函数把单作者截断到 perAuthor。
// 排除用户自己发布的内容。
func (s *GormStore) FallbackFeed(ctx context.Context, userID string, limit, perAuthor int) ([]*core.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	if perAuthor <= 0 {
		perAuthor = 2
	}
	const sql = `
SELECT id, author_id, media_id, content_type, caption, created_at,
       likes, comments, saves, shares
FROM (
    SELECT p.*,
           ROW_NUMBER() OVER (
               PARTITION BY p.author_id
               ORDER BY (p.likes + 2 * p.comments) DESC, p.created_at DESC
           ) AS author_rank
    FROM posts p
    WHERE p.created_at > DATE_SUB(NOW(), INTERVAL 7 DAY)
      AND p.author_id <> ?
) ranked
WHERE author_rank <= ?
ORDER BY (likes + 2 * comments) DESC, created_at DESC
LIMIT ?`

	var rows []postRow
	if err := s.db.WithContext(ctx).Raw(sql, userID, perAuthor, limit).Scan(&rows).Error; err != nil {
		return nil, queryError("fallback feed", err)
	}
	return toPosts(rows), nil
}

// trendingRow 额外带回 SQL 内计算的衰减分。
type trendingRow struct {
	postRow
	TrendScore float64 `gorm:"column:trend_score"`
}

// TrendingPosts 在 SQL 内计算闭式衰减分：
//
//	(likes + 2.5·comments + 3·saves + 4·shares) / (hours + 2)^1.5
//
// hours 以 q.Reference 为基准。Reference 在第一页固定并随游标透传，
// 翻页期间分母不随 wall clock 漂移，(score, created_at) 边界才能稳定分页。
func (s *GormStore) TrendingPosts(ctx context.Context, q *core.TrendingQuery) ([]*core.Post, []float64, error) {
	if q == nil {
		return nil, nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: nil trending query")
	}
	ref := q.Reference
	if ref.IsZero() {
		ref = time.Now()
	}
	window := q.TimeRange
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	sql := `
SELECT p.id, p.author_id, p.media_id, p.content_type, p.caption, p.created_at,
       p.likes, p.comments, p.saves, p.shares,
       (p.likes + 2.5 * p.comments + 3 * p.saves + 4 * p.shares) /
           POWER(GREATEST(TIMESTAMPDIFF(SECOND, p.created_at, ?), 0) / 3600 + 2, 1.5) AS trend_score
FROM posts p
WHERE p.created_at > ?`
	args := []any{ref, ref.Add(-window)}

	if q.AfterScore != nil && q.AfterDate != nil {
		sql += `
HAVING (trend_score < ? OR (trend_score = ? AND p.created_at < ?))`
		args = append(args, *q.AfterScore, *q.AfterScore, *q.AfterDate)
	}
	sql += `
ORDER BY trend_score DESC, p.created_at DESC
LIMIT ?`
	args = append(args, limit)

	var rows []trendingRow
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, nil, queryError("trending posts", err)
	}

	posts := make([]*core.Post, 0, len(rows))
	scores := make([]float64, 0, len(rows))
	for i := range rows {
		posts = append(posts, rows[i].postRow.toPost())
		scores = append(scores, rows[i].TrendScore)
	}
	return posts, scores, nil
}

// Recent 按时间倒序读取用户最近的行为记录（InteractionStore 契约）。
func (s *GormStore) Recent(ctx context.Context, userID string, limit int) ([]core.Interaction, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []interactionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, queryError("recent interactions", err)
	}
	out := make([]core.Interaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.Interaction{
			UserID:     r.UserID,
			TargetID:   r.TargetID,
			TargetType: r.TargetType,
			Type:       core.InteractionType(r.Type),
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toPosts(rows []postRow) []*core.Post {
	out := make([]*core.Post, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toPost())
	}
	return out
}

func queryError(op string, err error) error {
	return core.NewDomainError(core.ModuleStore, core.ErrorCodeQueryFailed,
		fmt.Sprintf("store: %s: %v", op, err))
}

var (
	_ core.ContentStore     = (*GormStore)(nil)
	_ core.InteractionStore = (*GormStore)(nil)
)
