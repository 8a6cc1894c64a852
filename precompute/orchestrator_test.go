package precompute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/store"
	"github.com/rushteam/feedkit/vector"
)

// seedWorld 构建一个最小世界：u1 关注 f1/f2，库里另有三位陌生作者的帖子。
func seedWorld(s *store.MemoryStore) {
	now := time.Now()
	s.AddFollow("u1", "f1")
	s.AddFollow("u1", "f2")
	posts := []struct {
		id, author string
		likes      int64
		age        time.Duration
	}{
		{"f1_p1", "f1", 10, time.Hour},
		{"f1_p2", "f1", 5, 2 * time.Hour},
		{"f2_p1", "f2", 8, 3 * time.Hour},
		{"o1_p1", "o1", 50, 4 * time.Hour},
		{"o2_p1", "o2", 30, 5 * time.Hour},
		{"o3_p1", "o3", 20, 6 * time.Hour},
	}
	for _, p := range posts {
		s.AddPost(&core.Post{
			ID: p.id, AuthorID: p.author, ContentType: "image",
			Likes: p.likes, CreatedAt: now.Add(-p.age),
		})
	}
}

// 完整运行：候选入池、排序、重排、落库，分区分数严格降序且无重复。
func TestPrecomputeFullRun(t *testing.T) {
	s := store.NewMemoryStore()
	cache := store.NewMemoryFeedCache()
	tracker := store.NewMemorySeenTracker()
	seedWorld(s)
	_ = tracker.MarkSeen(context.Background(), "u1", []string{"f1_p2"})

	o := &Orchestrator{
		Store:        s,
		Cache:        cache,
		Interactions: s,
		SeenTracker:  tracker,
	}
	if err := o.Precompute(context.Background(), "u1"); err != nil {
		t.Fatalf("预计算不应失败: %v", err)
	}

	entries, err := cache.UserFeed(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("分区应已写入: %v", err)
	}
	if len(entries) == 0 || len(entries) > core.DefaultConfig().Cache.MaxEntries {
		t.Fatalf("分区条数异常: %d", len(entries))
	}

	seen := make(map[string]bool, len(entries))
	lastScore := entries[0].Score + 1
	for _, e := range entries {
		if seen[e.PostID] {
			t.Errorf("分区出现重复帖 %s", e.PostID)
		}
		seen[e.PostID] = true
		if e.PostID == "f1_p2" {
			t.Errorf("已曝光帖不应入池")
		}
		if e.Score >= lastScore {
			t.Errorf("分数应严格降序: %v 之后是 %v", lastScore, e.Score)
		}
		lastScore = e.Score
	}
	if !seen["f1_p1"] || !seen["f2_p1"] {
		t.Errorf("关注池帖子应在分区内，实际 %v", seen)
	}
}

// 关注池全部已曝光时运行不失败：剔除发生在合并阶段，
// 剔除后的池低于水位线，兜底池照常补齐并落库。
func TestPrecomputeAllFollowedSeenBackfills(t *testing.T) {
	s := store.NewMemoryStore()
	cache := store.NewMemoryFeedCache()
	tracker := store.NewMemorySeenTracker()
	seedWorld(s)
	_ = tracker.MarkSeen(context.Background(), "u1", []string{"f1_p1", "f1_p2", "f2_p1"})

	cfg := core.DefaultConfig()
	cfg.Pool.Floor = 3

	o := &Orchestrator{
		Cfg:          cfg,
		Store:        s,
		Cache:        cache,
		Interactions: s,
		SeenTracker:  tracker,
	}
	if err := o.Precompute(context.Background(), "u1"); err != nil {
		t.Fatalf("关注池全部已曝光不应使运行失败: %v", err)
	}

	entries, err := cache.UserFeed(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("分区应已写入: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("兜底后分区不应为空")
	}
	for _, e := range entries {
		if e.Source == core.SourceFollowing {
			t.Errorf("已曝光的关注帖不应入池，实际出现 %s", e.PostID)
		}
	}
}

// 偏好向量驱动推荐池：有相似媒体的陌生作者帖子以 suggested 身份入池。
func TestPrecomputeSuggestedViaPreference(t *testing.T) {
	s := store.NewMemoryStore()
	cache := store.NewMemoryFeedCache()
	vectors := vector.NewMemoryVectorService()
	now := time.Now()

	s.AddPost(&core.Post{ID: "liked", AuthorID: "x1", MediaID: "m_liked", CreatedAt: now.Add(-time.Hour)})
	s.AddPost(&core.Post{ID: "similar", AuthorID: "x2", MediaID: "m_similar", CreatedAt: now.Add(-time.Hour)})
	vectors.Put("m_liked", core.Embedding{Vision: []float64{1, 0}})
	vectors.Put("m_similar", core.Embedding{Vision: []float64{0.9, 0.1}})
	s.AddInteraction(core.Interaction{UserID: "u1", TargetID: "liked", Type: core.InteractionLike, CreatedAt: now})

	o := &Orchestrator{
		Store:        s,
		Cache:        cache,
		Vectors:      vectors,
		Interactions: s,
	}
	if err := o.Precompute(context.Background(), "u1"); err != nil {
		t.Fatalf("预计算不应失败: %v", err)
	}

	entries, err := cache.UserFeed(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("分区应已写入: %v", err)
	}
	foundSuggested := false
	for _, e := range entries {
		if e.PostID == "similar" && e.Source == core.SourceSuggested {
			foundSuggested = true
		}
	}
	if !foundSuggested {
		t.Errorf("相似媒体帖应以 suggested 入池，实际 %+v", entries)
	}
}

// 候选池为空：运行报错，分区保持不存在。
func TestPrecomputeEmptyPool(t *testing.T) {
	s := store.NewMemoryStore()
	cache := store.NewMemoryFeedCache()

	o := &Orchestrator{Store: s, Cache: cache, Interactions: s}
	if err := o.Precompute(context.Background(), "u1"); err == nil {
		t.Fatalf("空候选池应报错")
	}
	if _, err := cache.UserFeed(context.Background(), "u1", 0); !core.IsNotFound(err) {
		t.Errorf("分区不应被写入，实际 %v", err)
	}
}

// flakyCache 首次写入失败，之后透传到内存实现。
type flakyCache struct {
	*store.MemoryFeedCache
	calls int
}

func (c *flakyCache) PutUserFeed(ctx context.Context, userID string, entries []core.FeedEntry, ttl time.Duration) error {
	c.calls++
	if c.calls == 1 {
		return errors.New("cache down")
	}
	return c.MemoryFeedCache.PutUserFeed(ctx, userID, entries, ttl)
}

// 落库失败走降级路径：只写关注池候选，分数回退为池基准分。
func TestPrecomputeDegradedWrite(t *testing.T) {
	s := store.NewMemoryStore()
	cache := &flakyCache{MemoryFeedCache: store.NewMemoryFeedCache()}
	seedWorld(s)

	o := &Orchestrator{Store: s, Cache: cache, Interactions: s}
	if err := o.Precompute(context.Background(), "u1"); err == nil {
		t.Fatalf("落库失败应向上返回错误")
	}

	entries, err := cache.UserFeed(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("降级写入应成功: %v", err)
	}
	if len(entries) == 0 || len(entries) > core.DefaultConfig().Cache.DegradedEntries {
		t.Fatalf("降级条数异常: %d", len(entries))
	}
	for _, e := range entries {
		if e.Source != core.SourceFollowing {
			t.Errorf("降级分区只应包含关注池候选，实际 %s 来自 %s", e.PostID, e.Source)
		}
		if e.Score <= 0 {
			t.Errorf("降级分数应为池基准分，实际 %v", e.Score)
		}
	}
}

// 空 userID 拒绝运行。
func TestPrecomputeEmptyUser(t *testing.T) {
	o := &Orchestrator{}
	if err := o.Precompute(context.Background(), ""); err == nil {
		t.Fatalf("空 userID 应报错")
	}
}
