package store

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/feedkit/core"
)

func storeFixedNow() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func newSeededStore() *MemoryStore {
	s := NewMemoryStore()
	s.Now = storeFixedNow
	now := storeFixedNow()
	posts := []struct {
		id, author, media string
		likes, comments   int64
		age               time.Duration
	}{
		{"p1", "a1", "m1", 10, 0, time.Hour},
		{"p2", "a1", "m2", 0, 20, 2 * time.Hour},
		{"p3", "a2", "m3", 5, 1, 3 * time.Hour},
		{"p4", "a3", "m4", 0, 0, 48 * time.Hour},
	}
	for _, p := range posts {
		s.AddPost(&core.Post{
			ID: p.id, AuthorID: p.author, MediaID: p.media,
			Likes: p.likes, Comments: p.comments,
			CreatedAt: now.Add(-p.age),
		})
	}
	return s
}

func TestMemoryCandidatePosts(t *testing.T) {
	s := newSeededStore()
	ctx := context.Background()

	tests := []struct {
		name   string
		filter *core.PostFilter
		want   []string
	}{
		{"按作者过滤+时间序", &core.PostFilter{AuthorIDs: []string{"a1"}}, []string{"p1", "p2"}},
		{"排除作者", &core.PostFilter{ExcludeAuthorIDs: []string{"a1", "a2"}}, []string{"p4"}},
		{"按 ID 批量补水", &core.PostFilter{IDs: []string{"p2", "p4"}}, []string{"p2", "p4"}},
		{"按媒体 ID", &core.PostFilter{MediaIDs: []string{"m3"}}, []string{"p3"}},
		{"排除 ID", &core.PostFilter{ExcludeIDs: []string{"p1", "p2", "p3"}}, []string{"p4"}},
		{"最大年龄窗口", &core.PostFilter{MaxAge: 150 * time.Minute}, []string{"p1", "p2"}},
		{"互动序", &core.PostFilter{OrderBy: core.OrderByEngagement}, []string{"p2", "p1", "p3", "p4"}},
		{"截断", &core.PostFilter{Limit: 2}, []string{"p1", "p2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := s.CandidatePosts(ctx, tt.filter)
			if err != nil {
				t.Fatalf("查询不应失败: %v", err)
			}
			if len(posts) != len(tt.want) {
				t.Fatalf("期望 %v，实际 %d 条", tt.want, len(posts))
			}
			got := make(map[string]bool, len(posts))
			for _, p := range posts {
				got[p.ID] = true
			}
			for _, id := range tt.want {
				if !got[id] {
					t.Errorf("缺少 %s", id)
				}
			}
		})
	}
}

// 兜底查询：排除自己、按互动序、单作者不超过 perAuthor。
func TestMemoryFallbackFeed(t *testing.T) {
	s := NewMemoryStore()
	s.Now = storeFixedNow
	now := storeFixedNow()
	for i := 0; i < 4; i++ {
		s.AddPost(&core.Post{
			ID: "hot" + string(rune('a'+i)), AuthorID: "prolific",
			Likes: int64(100 - i), CreatedAt: now.Add(-time.Hour),
		})
	}
	s.AddPost(&core.Post{ID: "other", AuthorID: "quiet", Likes: 1, CreatedAt: now.Add(-time.Hour)})
	s.AddPost(&core.Post{ID: "mine", AuthorID: "u1", Likes: 999, CreatedAt: now.Add(-time.Hour)})

	posts, err := s.FallbackFeed(context.Background(), "u1", 10, 2)
	if err != nil {
		t.Fatalf("兜底查询不应失败: %v", err)
	}
	counts := make(map[string]int, 4)
	for _, p := range posts {
		if p.ID == "mine" {
			t.Errorf("自己发布的帖子不应出现在兜底结果")
		}
		counts[p.AuthorID]++
	}
	if counts["prolific"] != 2 {
		t.Errorf("单作者上限 2，实际 %d", counts["prolific"])
	}
	if counts["quiet"] != 1 {
		t.Errorf("其他作者的帖子应保留")
	}
}

// 热门查询：分数降序、(score, date) 边界翻页不重不漏。
func TestMemoryTrendingPostsPagination(t *testing.T) {
	s := NewMemoryStore()
	s.Now = storeFixedNow
	now := storeFixedNow()
	likes := []int64{100, 90, 80, 70}
	for i, l := range likes {
		s.AddPost(&core.Post{
			ID: "t" + string(rune('a'+i)), AuthorID: "author" + string(rune('a'+i)),
			Likes: l, CreatedAt: now.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	// 窗口外的帖子不参与
	s.AddPost(&core.Post{ID: "ancient", AuthorID: "x", Likes: 10000, CreatedAt: now.Add(-30 * 24 * time.Hour)})

	q := &core.TrendingQuery{TimeRange: 7 * 24 * time.Hour, Reference: now, Limit: 2}
	posts, scores, err := s.TrendingPosts(context.Background(), q)
	if err != nil {
		t.Fatalf("查询不应失败: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != "ta" || posts[1].ID != "tb" {
		t.Fatalf("第一页期望 [ta tb]，实际 %v", posts)
	}
	if scores[0] <= scores[1] {
		t.Errorf("分数应降序: %v", scores)
	}

	last := posts[1]
	lastScore := scores[1]
	q2 := &core.TrendingQuery{
		TimeRange: 7 * 24 * time.Hour, Reference: now, Limit: 10,
		AfterScore: &lastScore, AfterDate: &last.CreatedAt,
	}
	page2, _, err := s.TrendingPosts(context.Background(), q2)
	if err != nil {
		t.Fatalf("第二页不应失败: %v", err)
	}
	if len(page2) != 2 || page2[0].ID != "tc" || page2[1].ID != "td" {
		t.Fatalf("第二页期望 [tc td]，实际 %v", page2)
	}
	for _, p := range page2 {
		if p.ID == "ancient" {
			t.Errorf("窗口外的帖子不应出现")
		}
	}
}

func TestMemoryTrendingNilQuery(t *testing.T) {
	s := NewMemoryStore()
	if _, _, err := s.TrendingPosts(context.Background(), nil); err == nil {
		t.Fatalf("nil 查询应报错")
	}
}

// 分区过期后按未命中处理。
func TestMemoryFeedCacheTTL(t *testing.T) {
	now := storeFixedNow()
	current := now
	c := NewMemoryFeedCache()
	c.Now = func() time.Time { return current }

	entries := []core.FeedEntry{
		{UserID: "u1", PostID: "p1", Score: 0.9},
		{UserID: "u1", PostID: "p2", Score: 0.5},
		{UserID: "u1", PostID: "p1", Score: 0.7}, // 重复 postID 覆盖
	}
	if err := c.PutUserFeed(context.Background(), "u1", entries, time.Hour); err != nil {
		t.Fatalf("写入不应失败: %v", err)
	}

	got, err := c.UserFeed(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("读取不应失败: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("重复 postID 应去重，实际 %d 条", len(got))
	}
	if got[0].PostID != "p1" || got[0].Score != 0.7 {
		t.Errorf("重复条目应保留后写入的值并按分数降序，实际 %+v", got[0])
	}

	current = now.Add(2 * time.Hour)
	if _, err := c.UserFeed(context.Background(), "u1", 0); !core.IsNotFound(err) {
		t.Errorf("过期分区应按未命中处理，实际 %v", err)
	}
}

func TestMemoryFeedCacheMiss(t *testing.T) {
	c := NewMemoryFeedCache()
	if _, err := c.UserFeed(context.Background(), "nobody", 0); !core.IsNotFound(err) {
		t.Errorf("不存在的分区应返回未命中，实际 %v", err)
	}
}

// 曝光记录幂等：重复 ID 只记一次，顺序保留。
func TestMemorySeenTracker(t *testing.T) {
	tr := NewMemorySeenTracker()
	ctx := context.Background()
	_ = tr.MarkSeen(ctx, "u1", []string{"p1", "p2", "p1", ""})
	_ = tr.MarkSeen(ctx, "u1", []string{"p2", "p3"})

	seen, err := tr.Seen(ctx, "u1")
	if err != nil {
		t.Fatalf("读取不应失败: %v", err)
	}
	want := []string{"p1", "p2", "p3"}
	if len(seen) != len(want) {
		t.Fatalf("期望 %v，实际 %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("位置 %d 期望 %s，实际 %s", i, want[i], seen[i])
		}
	}
}

// SeenBefore 只返回截止时刻之前的曝光，且重复曝光以首次时刻为准。
func TestMemorySeenTrackerSeenBefore(t *testing.T) {
	tr := NewMemorySeenTracker()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tr.Now = func() time.Time { return base.Add(-time.Hour) }
	_ = tr.MarkSeen(ctx, "u1", []string{"p1", "p2"})
	tr.Now = func() time.Time { return base.Add(time.Hour) }
	_ = tr.MarkSeen(ctx, "u1", []string{"p2", "p3"})

	before, err := tr.SeenBefore(ctx, "u1", base)
	if err != nil {
		t.Fatalf("读取不应失败: %v", err)
	}
	want := map[string]bool{"p1": true, "p2": true}
	if len(before) != len(want) {
		t.Fatalf("期望 %v，实际 %v", want, before)
	}
	for _, id := range before {
		if !want[id] {
			t.Errorf("截止之后的曝光 %s 不应返回", id)
		}
	}
}
