// Package feed 实现在线检索编排器：读缓存、装配页面、必要时同步兜底，
// 并在合适的时机把预计算任务补回队列。
package feed

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/filter"
	"github.com/rushteam/feedkit/pkg/bounded"
	"github.com/rushteam/feedkit/precompute"
	"github.com/rushteam/feedkit/rerank"
)

// Page 是一次检索返回的页面。
type Page struct {
	Items   []*core.Post
	HasMore bool
}

// Service 是检索编排器。
//
// 读路径的分层降级：
//   - 缓存命中：装配缓存分区（极新注入、置顶推荐、确定性打散、已读回填）
//   - 缓存未命中/强制刷新：同步关系库兜底查询，同时补发预计算
//   - 兜底查询失败（QUERY_FAILED）是唯一允许传播给调用方的错误
//
// 对缓存分区只读，写入全部属于预计算编排器（显式失效除外）。
type Service struct {
	Cfg *core.Config

	Store        core.ContentStore
	Cache        core.FeedCache
	Interactions core.InteractionStore
	SeenTracker  core.SeenTracker
	Queue        core.JobQueue

	Logger *zap.Logger

	// Now 便于测试注入时间；为 nil 使用 time.Now
	Now func() time.Time

	rulesOnce sync.Once
	rules     []filter.Filter
}

func (s *Service) cfg() *core.Config {
	if s.Cfg != nil {
		return s.Cfg
	}
	return core.DefaultConfig()
}

func (s *Service) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ruleFilters 懒编译配置里的 CEL 过滤规则；编译失败的规则跳过并记日志。
func (s *Service) ruleFilters() []filter.Filter {
	s.rulesOnce.Do(func() {
		for _, expr := range s.cfg().Retrieve.FilterRules {
			rule, err := filter.NewRule(expr)
			if err != nil {
				s.logger().Warn("skip invalid filter rule", zap.String("expr", expr), zap.Error(err))
				continue
			}
			s.rules = append(s.rules, rule)
		}
	})
	return s.rules
}

// GetFeed 返回用户 Feed 的一页。
// page 从 1 开始；refresh 只对第一页生效：跳过缓存读取并强制补发预计算，
// 后续页按普通读处理（否则一次刷新会话的每一页都打一遍关系库）。
func (s *Service) GetFeed(ctx context.Context, userID string, page, limit int, refresh bool) (*Page, error) {
	if userID == "" {
		return nil, core.NewDomainError(core.ModuleFeed, core.ErrorCodeInvalidInput, "feed: empty user id")
	}
	cfg := s.cfg()
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	refresh = refresh && page == 1
	log := s.logger().With(zap.String("user_id", userID), zap.Int("page", page))

	// 缓存与行为记录并行读，各自有独立的超时上限；
	// 输掉赛跑按空结果降级，绝不让一次慢查询拖垮整个请求
	var (
		wg       sync.WaitGroup
		cacheRes bounded.Result[[]core.FeedEntry]
		interRes bounded.Result[[]core.Interaction]
	)
	if !refresh {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cacheRes = bounded.Call(ctx, cfg.Retrieve.CacheTimeout, func(ctx context.Context) ([]core.FeedEntry, error) {
				return s.Cache.UserFeed(ctx, userID, 0)
			})
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		interRes = bounded.Call(ctx, cfg.Retrieve.InteractionTimeout, func(ctx context.Context) ([]core.Interaction, error) {
			if s.Interactions == nil {
				return nil, nil
			}
			return s.Interactions.Recent(ctx, userID, cfg.Pool.BlacklistInteractions)
		})
	}()
	wg.Wait()

	blacklist := blacklistFrom(interRes.ValueOr(nil))
	seen := filter.SeenOf(ctx, s.SeenTracker, userID)
	entries := cacheRes.ValueOr(nil)

	var ordered []*core.Post
	switch {
	case refresh:
		s.enqueuePrecompute(ctx, userID, "refresh")
		fallback, err := s.fallbackOrdered(ctx, userID, seen, blacklist)
		if err != nil {
			return nil, err
		}
		ordered = fallback
	case len(entries) == 0:
		s.enqueuePrecompute(ctx, userID, "cache_miss")
		fallback, err := s.fallbackOrdered(ctx, userID, seen, blacklist)
		if err != nil {
			return nil, err
		}
		ordered = fallback
	default:
		if len(entries) < cfg.Cache.FreshnessFloor {
			s.enqueuePrecompute(ctx, userID, "below_floor")
		}
		ordered = s.assembleFromCache(ctx, userID, entries, seen, blacklist)
	}

	items, hasMore := slicePage(ordered, page, limit)

	// 曝光记录异步写，失败只记录
	s.markSeenAsync(userID, items, log)

	return &Page{Items: items, HasMore: hasMore}, nil
}

// InvalidateFeed 显式失效用户分区并补发预计算（高影响写事件触发，例如新增关注）。
func (s *Service) InvalidateFeed(ctx context.Context, userID string) error {
	if err := s.Cache.DeleteUserFeed(ctx, userID); err != nil {
		return err
	}
	s.enqueuePrecompute(ctx, userID, "invalidate")
	return nil
}

// assembleFromCache 把缓存分区装配成完整的有序列表。
// 全序是 (分区内容, 生成时刻) 的纯函数，每一页都基于同一份全序做纯切片：
//
//  1. 批量补水并按 postID 对齐（补不齐的条目静默剔除）
//  2. 最前注入发布 ≤ FreshWindow 的关注新帖（同步查询，失败降级为不注入）
//  3. 未读条目中，推荐池的前 PinnedSuggested 条按分数置顶
//  4. 其余未读条目确定性打散（种子由 userID 和分区最新条目时间派生）
//  5. 黑名单与规则过滤、页级多样性重排
//  6. 已读条目按分数降序排在最后做回填，页面宁可重复不出短页
//
// 已读/未读的划分只看分区生成前的曝光：本周期内翻页产生的曝光
// 不改变划分，否则第 N 页的切片基准会随第 1 页的曝光漂移。
func (s *Service) assembleFromCache(
	ctx context.Context,
	userID string,
	entries []core.FeedEntry,
	seen, blacklist map[string]bool,
) []*core.Post {
	cfg := s.cfg()

	posts := s.hydrate(ctx, entryIDs(entries))
	var newest, generated time.Time
	candidates := make([]*core.Candidate, 0, len(entries))
	for _, e := range entries {
		if e.GeneratedAt.After(generated) {
			generated = e.GeneratedAt
		}
		p, ok := posts[e.PostID]
		if !ok {
			continue
		}
		c := candidateOf(p, e.Source, e.Score)
		candidates = append(candidates, c)
		if e.CreatedAt.After(newest) {
			newest = e.CreatedAt
		}
	}

	split := s.seenBeforeGeneration(ctx, userID, generated, seen)
	var unseen, seenBackfill []*core.Candidate
	for _, c := range candidates {
		if split[c.PostID] {
			seenBackfill = append(seenBackfill, c)
		} else {
			unseen = append(unseen, c)
		}
	}

	// 置顶推荐：未读推荐条目按分数序取前 N
	pinned := make([]*core.Candidate, 0, cfg.Retrieve.PinnedSuggested)
	rest := make([]*core.Candidate, 0, len(unseen))
	for _, c := range unseen {
		if c.Source == core.SourceSuggested && len(pinned) < cfg.Retrieve.PinnedSuggested {
			pinned = append(pinned, c)
		} else {
			rest = append(rest, c)
		}
	}
	shuffleDeterministic(rest, userID, newest)

	assembled := make([]*core.Candidate, 0, len(candidates)+cfg.Retrieve.FreshLimit)
	assembled = append(assembled, s.freshFollowed(ctx, userID, candidates)...)
	assembled = append(assembled, pinned...)
	assembled = append(assembled, rest...)

	fctx := &core.FeedContext{UserID: userID, Seen: seen, Blacklist: blacklist}
	assembled = s.applyFilters(ctx, fctx, assembled)

	diversity := &rerank.Diversity{AuthorCap: cfg.Rerank.PageAuthorCap, Renormalize: cfg.Rerank.Renormalize}
	assembled = diversity.Rerank(assembled)

	seenBackfill = s.applyFilters(ctx, fctx, seenBackfill)
	assembled = append(assembled, dedupeAgainst(assembled, seenBackfill)...)

	return postsOf(assembled)
}

// seenBeforeGeneration 返回"分区生成前已曝光"的集合，作为已读/未读划分的基准。
// 生成时刻缺失（旧格式分区）或查询失败时退回实时曝光集合。
func (s *Service) seenBeforeGeneration(ctx context.Context, userID string, generated time.Time, live map[string]bool) map[string]bool {
	if s.SeenTracker == nil {
		return nil
	}
	if generated.IsZero() {
		return live
	}
	ids, err := s.SeenTracker.SeenBefore(ctx, userID, generated)
	if err != nil {
		s.logger().Warn("seen split fallback", zap.String("user_id", userID), zap.Error(err))
		return live
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// fallbackOrdered 是缓存不可用时的同步路径：
// 单条关系库兜底查询，结果走同样的过滤与多样性重排。
// 这是检索链路上唯一允许向调用方传播错误的查询。
func (s *Service) fallbackOrdered(ctx context.Context, userID string, seen, blacklist map[string]bool) ([]*core.Post, error) {
	cfg := s.cfg()
	posts, err := s.Store.FallbackFeed(ctx, userID, cfg.Retrieve.FallbackLimit, cfg.Retrieve.FallbackPerAuthor)
	if err != nil {
		return nil, err
	}

	candidates := make([]*core.Candidate, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		candidates = append(candidates, candidateOf(p, core.SourceTrending, 0))
	}

	fctx := &core.FeedContext{UserID: userID, Seen: seen, Blacklist: blacklist}
	candidates = s.applyFilters(ctx, fctx, candidates)

	diversity := &rerank.Diversity{AuthorCap: cfg.Rerank.PageAuthorCap, Renormalize: cfg.Rerank.Renormalize}
	return postsOf(diversity.Rerank(candidates)), nil
}

// freshFollowed 同步查询发布 ≤ FreshWindow 的关注新帖（缓存周期内赶不上预计算的部分）。
// 任何失败降级为不注入。
func (s *Service) freshFollowed(ctx context.Context, userID string, cached []*core.Candidate) []*core.Candidate {
	cfg := s.cfg()
	if s.Store == nil {
		return nil
	}
	followees, err := s.Store.FollowEdges(ctx, userID)
	if err != nil || len(followees) == 0 {
		return nil
	}
	posts, err := s.Store.CandidatePosts(ctx, &core.PostFilter{
		AuthorIDs: followees,
		MaxAge:    cfg.Retrieve.FreshWindow,
		OrderBy:   core.OrderByRecency,
		Limit:     cfg.Retrieve.FreshLimit,
	})
	if err != nil {
		return nil
	}

	inCache := make(map[string]bool, len(cached))
	for _, c := range cached {
		inCache[c.PostID] = true
	}
	out := make([]*core.Candidate, 0, len(posts))
	for _, p := range posts {
		if p == nil || inCache[p.ID] {
			continue
		}
		out = append(out, candidateOf(p, core.SourceFollowing, 0))
	}
	return out
}

// applyFilters 执行黑名单 + 自己发布 + 配置规则的剔除。
func (s *Service) applyFilters(ctx context.Context, fctx *core.FeedContext, candidates []*core.Candidate) []*core.Candidate {
	filters := []filter.Filter{&filter.Blacklist{}, &filter.SelfAuthor{}}
	filters = append(filters, s.ruleFilters()...)
	node := &filter.Node{Filters: filters}
	out, err := node.Process(ctx, fctx, candidates)
	if err != nil {
		return candidates
	}
	return out
}

// hydrate 批量补水帖子并按 ID 建索引；查询失败按空处理（调用方自然得到空页）。
func (s *Service) hydrate(ctx context.Context, ids []string) map[string]*core.Post {
	if len(ids) == 0 || s.Store == nil {
		return nil
	}
	posts, err := s.Store.CandidatePosts(ctx, &core.PostFilter{IDs: ids})
	if err != nil {
		s.logger().Warn("hydrate failed", zap.Error(err))
		return nil
	}
	out := make(map[string]*core.Post, len(posts))
	for _, p := range posts {
		if p != nil {
			out[p.ID] = p
		}
	}
	return out
}

func (s *Service) enqueuePrecompute(ctx context.Context, userID, reason string) {
	if err := precompute.Enqueue(ctx, s.Queue, userID); err != nil {
		s.logger().Warn("enqueue precompute failed",
			zap.String("user_id", userID),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

// markSeenAsync 异步记录曝光；fire-and-forget，失败只记录。
func (s *Service) markSeenAsync(userID string, items []*core.Post, log *zap.Logger) {
	if s.SeenTracker == nil || len(items) == 0 {
		return
	}
	ids := make([]string, 0, len(items))
	for _, p := range items {
		if p != nil {
			ids = append(ids, p.ID)
		}
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.SeenTracker.MarkSeen(ctx, userID, ids); err != nil {
			log.Warn("mark seen failed", zap.Error(err))
		}
	}()
}

func candidateOf(p *core.Post, src core.Source, score float64) *core.Candidate {
	c := core.NewCandidate(p.ID, p.AuthorID, src)
	c.MediaID = p.MediaID
	c.ContentType = p.ContentType
	c.CreatedAt = p.CreatedAt
	c.Likes = p.Likes
	c.Comments = p.Comments
	c.Score = score
	return c
}

func postsOf(candidates []*core.Candidate) []*core.Post {
	out := make([]*core.Post, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		out = append(out, &core.Post{
			ID:          c.PostID,
			AuthorID:    c.AuthorID,
			MediaID:     c.MediaID,
			ContentType: c.ContentType,
			CreatedAt:   c.CreatedAt,
			Likes:       c.Likes,
			Comments:    c.Comments,
		})
	}
	return out
}

func entryIDs(entries []core.FeedEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.PostID != "" {
			ids = append(ids, e.PostID)
		}
	}
	return ids
}

func blacklistFrom(interactions []core.Interaction) map[string]bool {
	out := make(map[string]bool, 16)
	for _, in := range interactions {
		if in.Type == core.InteractionNotInterested {
			out[in.TargetID] = true
		}
	}
	return out
}

func dedupeAgainst(base, extra []*core.Candidate) []*core.Candidate {
	inBase := make(map[string]bool, len(base))
	for _, c := range base {
		inBase[c.PostID] = true
	}
	out := make([]*core.Candidate, 0, len(extra))
	for _, c := range extra {
		if c != nil && !inBase[c.PostID] {
			out = append(out, c)
		}
	}
	return out
}

func slicePage(ordered []*core.Post, page, limit int) ([]*core.Post, bool) {
	start := (page - 1) * limit
	if start >= len(ordered) {
		return nil, false
	}
	end := start + limit
	if end > len(ordered) {
		end = len(ordered)
	}
	return ordered[start:end], end < len(ordered)
}

// shuffleDeterministic 打散顺序，但种子由 userID 与分区最新条目时间派生：
// 同一分区版本内所有页共享同一份全序，分页切片彼此不相交；
// 预计算重写分区后顺序才变化。
func shuffleDeterministic(items []*core.Candidate, userID string, newest time.Time) {
	if len(items) <= 1 {
		return
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	seed := int64(h.Sum64()) ^ newest.UnixNano()
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
