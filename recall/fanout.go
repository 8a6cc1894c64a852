package recall

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/pipeline"
	"github.com/rushteam/feedkit/pkg/utils"
)

// Fanout 是候选池构建 Node：并发执行主召回池，按水位线追加兜底池，
// 再按池优先级合并（following > suggested > trending > discovery）。
//
// 容错语义：单个池超时或报错按空结果处理，绝不中断整体构建。
// 合并时剔除已曝光、黑名单与自己发布的候选，再按 postID 去重
// （first-seen-wins）并执行全局作者上限；水位线与作者上限因此
// 都作用在剔除后的池上，被剔除的候选不占任何名额。
type Fanout struct {
	// Primary 主池（关注/推荐），并发执行
	Primary []Source

	// Backfill 兜底池（热门/发现），只在主池低于水位线时顺序执行
	Backfill []Source

	// Floor 触发兜底的候选数下限
	Floor int

	// AuthorCap 合并后的全局作者上限（0 表示不限制）
	AuthorCap int

	// Timeout 单个池的超时时间
	Timeout time.Duration
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	fctx *core.FeedContext,
	_ []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(n.Primary) == 0 && len(n.Backfill) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		results = make(map[int][]*core.Candidate, len(n.Primary))
		eg, _   = errgroup.WithContext(ctx)
	)

	for i, src := range n.Primary {
		i, s := i, src
		eg.Go(func() error {
			items := n.recallOne(ctx, s, fctx)
			mu.Lock()
			results[i] = items
			mu.Unlock()
			return nil
		})
	}
	// recallOne 从不返回错误，这里的 Wait 只做汇合
	_ = eg.Wait()

	merged := newPoolMerger(n.AuthorCap, fctx)
	for i := 0; i < len(n.Primary); i++ {
		merged.add(results[i])
	}

	// 兜底池：低于水位线才执行，且逐个补，补够即止
	floor := n.Floor
	for _, src := range n.Backfill {
		if floor <= 0 || merged.size() >= floor {
			break
		}
		if fctx != nil {
			if fctx.Params == nil {
				fctx.Params = make(map[string]any)
			}
			fctx.Params[ParamExcludeIDs] = merged.chosenIDs()
		}
		merged.add(n.recallOne(ctx, src, fctx))
	}

	return merged.list(), nil
}

// recallOne 在超时保护下执行单个池；超时或错误降级为空结果。
func (n *Fanout) recallOne(ctx context.Context, s Source, fctx *core.FeedContext) []*core.Candidate {
	recallCtx := ctx
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	items, err := s.Recall(recallCtx, fctx)
	if err != nil {
		return nil
	}
	for _, it := range items {
		if it == nil {
			continue
		}
		if it.Source == "" {
			it.Source = s.Source()
		}
	}
	return items
}

// poolMerger 按加入顺序（即池优先级）合并候选：
// 剔除已曝光/黑名单/自己发布的帖子，postID 去重 first-seen-wins，全局作者上限。
type poolMerger struct {
	authorCap int
	fctx      *core.FeedContext

	seen      map[string]*core.Candidate
	perAuthor map[string]int
	out       []*core.Candidate
}

func newPoolMerger(authorCap int, fctx *core.FeedContext) *poolMerger {
	return &poolMerger{
		authorCap: authorCap,
		fctx:      fctx,
		seen:      make(map[string]*core.Candidate, 256),
		perAuthor: make(map[string]int, 64),
	}
}

func (m *poolMerger) add(items []*core.Candidate) {
	for _, it := range items {
		if it == nil || it.PostID == "" {
			continue
		}
		if m.fctx != nil {
			if it.AuthorID == m.fctx.UserID {
				continue
			}
			if m.fctx.Seen[it.PostID] || m.fctx.Blacklist[it.PostID] {
				continue
			}
		}
		if old, ok := m.seen[it.PostID]; ok {
			// 重复候选只合并 labels，保留先入池的（优先级更高）
			for k, v := range it.Labels {
				old.PutLabel(k, v)
			}
			continue
		}
		if m.authorCap > 0 && m.perAuthor[it.AuthorID] >= m.authorCap {
			it.PutLabel("dropped", utils.Label{Value: "author_cap", Source: "recall"})
			continue
		}
		m.seen[it.PostID] = it
		m.perAuthor[it.AuthorID]++
		m.out = append(m.out, it)
	}
}

func (m *poolMerger) size() int { return len(m.out) }

func (m *poolMerger) chosenIDs() []string {
	ids := make([]string, 0, len(m.out))
	for _, it := range m.out {
		ids = append(ids, it.PostID)
	}
	return ids
}

// list 返回合并结果，池优先级稳定、池内保持召回顺序。
func (m *poolMerger) list() []*core.Candidate {
	sort.SliceStable(m.out, func(i, j int) bool {
		return m.out[i].Source.Priority() < m.out[j].Source.Priority()
	})
	return m.out
}
