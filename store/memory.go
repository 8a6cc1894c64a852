package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rushteam/feedkit/core"
)

// MemoryStore 是 ContentStore / InteractionStore 的内存实现，
// 语义与 GormStore 对齐，供测试与单机示例使用。
// "random" 排序退化为插入序，测试因此是确定性的。
type MemoryStore struct {
	mu           sync.RWMutex
	posts        []*core.Post
	follows      map[string][]string
	interactions map[string][]core.Interaction

	// Now 便于测试注入时间；为 nil 使用 time.Now
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		follows:      make(map[string][]string),
		interactions: make(map[string][]core.Interaction),
	}
}

func (s *MemoryStore) Name() string { return "store.memory" }

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// AddPost 写入一条帖子（测试数据装配）。
func (s *MemoryStore) AddPost(p *core.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, p)
}

// AddFollow 写入一条关注边。
func (s *MemoryStore) AddFollow(followerID, followeeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows[followerID] = append(s.follows[followerID], followeeID)
}

// AddInteraction 写入一条行为记录。
func (s *MemoryStore) AddInteraction(in core.Interaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions[in.UserID] = append(s.interactions[in.UserID], in)
}

func (s *MemoryStore) FollowEdges(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.follows[userID]))
	copy(out, s.follows[userID])
	return out, nil
}

func (s *MemoryStore) CandidatePosts(_ context.Context, f *core.PostFilter) ([]*core.Post, error) {
	if f == nil {
		f = &core.PostFilter{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	authorSet := toSet(f.AuthorIDs)
	excludeAuthorSet := toSet(f.ExcludeAuthorIDs)
	idSet := toSet(f.IDs)
	mediaSet := toSet(f.MediaIDs)
	excludeIDSet := toSet(f.ExcludeIDs)

	var cutoff time.Time
	if f.MaxAge > 0 {
		cutoff = s.now().Add(-f.MaxAge)
	}

	out := make([]*core.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if p == nil {
			continue
		}
		if len(authorSet) > 0 && !authorSet[p.AuthorID] {
			continue
		}
		if excludeAuthorSet[p.AuthorID] {
			continue
		}
		if len(idSet) > 0 && !idSet[p.ID] {
			continue
		}
		if len(mediaSet) > 0 && !mediaSet[p.MediaID] {
			continue
		}
		if excludeIDSet[p.ID] {
			continue
		}
		if !cutoff.IsZero() && !p.CreatedAt.After(cutoff) {
			continue
		}
		out = append(out, p)
	}

	switch f.OrderBy {
	case core.OrderByEngagement:
		sort.SliceStable(out, func(i, j int) bool {
			ei := out[i].Likes + 2*out[i].Comments
			ej := out[j].Likes + 2*out[j].Comments
			if ei != ej {
				return ei > ej
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	case core.OrderByRandom:
		// 插入序
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) FallbackFeed(ctx context.Context, userID string, limit, perAuthor int) ([]*core.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	if perAuthor <= 0 {
		perAuthor = 2
	}
	all, err := s.CandidatePosts(ctx, &core.PostFilter{
		ExcludeAuthorIDs: []string{userID},
		MaxAge:           7 * 24 * time.Hour,
		OrderBy:          core.OrderByEngagement,
	})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, 32)
	out := make([]*core.Post, 0, limit)
	for _, p := range all {
		if counts[p.AuthorID] >= perAuthor {
			continue
		}
		counts[p.AuthorID]++
		out = append(out, p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) TrendingPosts(_ context.Context, q *core.TrendingQuery) ([]*core.Post, []float64, error) {
	if q == nil {
		return nil, nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: nil trending query")
	}
	ref := q.Reference
	if ref.IsZero() {
		ref = s.now()
	}
	window := q.TimeRange
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	type scored struct {
		post  *core.Post
		score float64
	}
	items := make([]scored, 0, len(s.posts))
	for _, p := range s.posts {
		if p == nil || !p.CreatedAt.After(ref.Add(-window)) {
			continue
		}
		hours := math.Max(ref.Sub(p.CreatedAt).Hours(), 0)
		raw := float64(p.Likes) + 2.5*float64(p.Comments) + 3*float64(p.Saves) + 4*float64(p.Shares)
		items = append(items, scored{post: p, score: raw / math.Pow(hours+2, 1.5)})
	}
	s.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].post.CreatedAt.After(items[j].post.CreatedAt)
	})

	posts := make([]*core.Post, 0, limit)
	scores := make([]float64, 0, limit)
	for _, it := range items {
		if q.AfterScore != nil && q.AfterDate != nil {
			if it.score > *q.AfterScore {
				continue
			}
			if it.score == *q.AfterScore && !it.post.CreatedAt.Before(*q.AfterDate) {
				continue
			}
		}
		posts = append(posts, it.post)
		scores = append(scores, it.score)
		if len(posts) >= limit {
			break
		}
	}
	return posts, scores, nil
}

func (s *MemoryStore) Recent(_ context.Context, userID string, limit int) ([]core.Interaction, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ins := s.interactions[userID]
	out := make([]core.Interaction, len(ins))
	copy(out, ins)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// MemoryFeedCache 是 FeedCache 的内存实现（带 TTL 语义）。
type MemoryFeedCache struct {
	mu        sync.RWMutex
	partition map[string][]core.FeedEntry
	expiry    map[string]time.Time

	// Now 便于测试注入时间；为 nil 使用 time.Now
	Now func() time.Time
}

func NewMemoryFeedCache() *MemoryFeedCache {
	return &MemoryFeedCache{
		partition: make(map[string][]core.FeedEntry),
		expiry:    make(map[string]time.Time),
	}
}

func (c *MemoryFeedCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *MemoryFeedCache) UserFeed(_ context.Context, userID string, limit int) ([]core.FeedEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries, ok := c.partition[userID]
	if !ok || len(entries) == 0 {
		return nil, core.ErrCacheNotFound
	}
	if exp, ok := c.expiry[userID]; ok && c.now().After(exp) {
		return nil, core.ErrCacheNotFound
	}
	out := make([]core.FeedEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *MemoryFeedCache) PutUserFeed(_ context.Context, userID string, entries []core.FeedEntry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Hour
	}
	byPost := make(map[string]int, len(entries))
	deduped := make([]core.FeedEntry, 0, len(entries))
	for _, e := range entries {
		if e.PostID == "" {
			continue
		}
		if idx, ok := byPost[e.PostID]; ok {
			deduped[idx] = e
			continue
		}
		byPost[e.PostID] = len(deduped)
		deduped = append(deduped, e)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.partition[userID] = deduped
	c.expiry[userID] = c.now().Add(ttl)
	return nil
}

func (c *MemoryFeedCache) DeleteUserFeed(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.partition, userID)
	delete(c.expiry, userID)
	return nil
}

var _ core.FeedCache = (*MemoryFeedCache)(nil)

// MemorySeenTracker 是 SeenTracker 的内存实现，曝光时刻随记录保留。
type MemorySeenTracker struct {
	mu   sync.RWMutex
	seen map[string][]string
	at   map[string]map[string]time.Time

	// Now 便于测试注入时间；为 nil 使用 time.Now
	Now func() time.Time
}

func NewMemorySeenTracker() *MemorySeenTracker {
	return &MemorySeenTracker{
		seen: make(map[string][]string),
		at:   make(map[string]map[string]time.Time),
	}
}

func (t *MemorySeenTracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *MemorySeenTracker) Seen(_ context.Context, userID string) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.seen[userID]))
	copy(out, t.seen[userID])
	return out, nil
}

func (t *MemorySeenTracker) SeenBefore(_ context.Context, userID string, cutoff time.Time) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.seen[userID]))
	for _, id := range t.seen[userID] {
		if t.at[userID][id].Before(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (t *MemorySeenTracker) MarkSeen(_ context.Context, userID string, postIDs []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.at[userID] == nil {
		t.at[userID] = make(map[string]time.Time)
	}
	for _, id := range postIDs {
		if id == "" {
			continue
		}
		if _, ok := t.at[userID][id]; ok {
			continue
		}
		t.at[userID][id] = t.now()
		t.seen[userID] = append(t.seen[userID], id)
	}
	return nil
}

var _ core.SeenTracker = (*MemorySeenTracker)(nil)

// MemoryJobQueue 是 JobQueue 的内存实现，语义与 RedisJobQueue 对齐：
// FIFO 出队，dedupeKey 在 Ack 前拦截重复入队。
type MemoryJobQueue struct {
	mu     sync.Mutex
	jobs   map[string][]*core.Job
	dedupe map[string]bool
}

func NewMemoryJobQueue() *MemoryJobQueue {
	return &MemoryJobQueue{
		jobs:   make(map[string][]*core.Job),
		dedupe: make(map[string]bool),
	}
}

func (q *MemoryJobQueue) Enqueue(_ context.Context, jobType string, payload []byte, dedupeKey string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if dedupeKey != "" {
		if q.dedupe[dedupeKey] {
			return nil
		}
		q.dedupe[dedupeKey] = true
	}
	q.jobs[jobType] = append(q.jobs[jobType], &core.Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Payload:   payload,
		DedupeKey: dedupeKey,
	})
	return nil
}

func (q *MemoryJobQueue) Dequeue(_ context.Context, jobType string, _ time.Duration) (*core.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.jobs[jobType]
	if len(pending) == 0 {
		return nil, nil
	}
	job := pending[0]
	q.jobs[jobType] = pending[1:]
	return job, nil
}

func (q *MemoryJobQueue) Ack(_ context.Context, job *core.Job) error {
	if job == nil || job.DedupeKey == "" {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.dedupe, job.DedupeKey)
	return nil
}

// Len 返回指定类型的待处理任务数（测试断言用）。
func (q *MemoryJobQueue) Len(jobType string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs[jobType])
}

var _ core.JobQueue = (*MemoryJobQueue)(nil)
