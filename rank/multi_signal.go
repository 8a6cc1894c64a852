package rank

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/pipeline"
	"github.com/rushteam/feedkit/pkg/utils"
)

// MultiSignal 是多信号排序 Node：
//
//	score = w_visual·visualSim + w_vision·visionSim + w_text·textSim
//	      + w_eng·sigmoid(likes+2·comments) + w_rec·exp(-h/24) + w_div·diversity
//
// 权重之和恒为 1.0（core.Config.Validate 保证）。没有任何嵌入信号的候选
// 自然退化为 互动+时效+多样性 排序——缺失的相似项贡献 0，无需特判。
//
// 多样性项是路径相关的：running set 随打分顺序（池序）更新，
// 同内容类型 ×0.7、同作者 ×0.8，这是有意设计，不是按最终序计算。
type MultiSignal struct {
	Cfg core.RankConfig

	// Vectors 批量取候选嵌入；失败时全部相似项按 0 处理，不上抛
	Vectors core.VectorService

	// Signals 可选：排序前刷新互动计数（Feast 或关系库直读）
	Signals core.SignalService

	// BlendSourceScore 预计算路径置 true：最终分混入池基准分
	// （计算分 × BlendComputed + 基准分 × BlendHeuristic），
	// 避免完全丢弃池来源意图
	BlendSourceScore bool

	// Now 便于测试注入时间；为 nil 使用 time.Now
	Now func() time.Time
}

func (n *MultiSignal) Name() string        { return "rank.multi_signal" }
func (n *MultiSignal) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *MultiSignal) Process(
	ctx context.Context,
	fctx *core.FeedContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	now := time.Now()
	if n.Now != nil {
		now = n.Now()
	}

	embeddings := n.fetchEmbeddings(ctx, candidates)
	n.refreshEngagement(ctx, candidates)

	var prefs *core.PreferenceVector
	if fctx != nil {
		prefs = fctx.Prefs
	}

	// 路径相关多样性：running set 按池序更新
	seenTypes := make(map[string]bool, 8)
	seenAuthors := make(map[string]bool, 64)

	for _, c := range candidates {
		if c == nil {
			continue
		}

		var visualSim, visionSim, textSim float64
		if emb, ok := embeddings[c.MediaID]; ok && !prefs.IsEmpty() {
			visualSim = cosineSimilarity(emb.Visual, prefs.Visual)
			visionSim = cosineSimilarity(emb.Vision, prefs.Vision)
			textSim = cosineSimilarity(emb.Text, prefs.Text)
		}

		engagement := sigmoid(float64(c.Likes)+2*float64(c.Comments), n.Cfg.EngagementScale)
		recency := recencyScore(now.Sub(c.CreatedAt).Hours(), n.Cfg.RecencyHalfLifeHours)

		diversity := 1.0
		if c.ContentType != "" && seenTypes[c.ContentType] {
			diversity *= n.Cfg.RepeatTypePenalty
		}
		if seenAuthors[c.AuthorID] {
			diversity *= n.Cfg.RepeatAuthorPenalty
		}
		if c.ContentType != "" {
			seenTypes[c.ContentType] = true
		}
		seenAuthors[c.AuthorID] = true

		computed := n.Cfg.VisualWeight*visualSim +
			n.Cfg.VisionWeight*visionSim +
			n.Cfg.TextWeight*textSim +
			n.Cfg.EngagementWeight*engagement +
			n.Cfg.RecencyWeight*recency +
			n.Cfg.DiversityWeight*diversity

		if n.BlendSourceScore {
			c.Score = n.Cfg.BlendComputed*computed + n.Cfg.BlendHeuristic*c.SourceScore
		} else {
			c.Score = computed
		}
		c.PutLabel("rank_signals", utils.Label{
			Value:  fmt.Sprintf("eng=%.3f,rec=%.3f,div=%.2f", engagement, recency, diversity),
			Source: "rank",
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i] == nil {
			return false
		}
		if candidates[j] == nil {
			return true
		}
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}

// fetchEmbeddings 批量取回候选嵌入。向量服务失败按全缺处理：
// 排序整体退化为 互动+时效+多样性，错误不逃出编排器。
func (n *MultiSignal) fetchEmbeddings(ctx context.Context, candidates []*core.Candidate) map[string]core.Embedding {
	if n.Vectors == nil {
		return nil
	}
	mediaIDs := make([]string, 0, len(candidates))
	dedup := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c == nil || c.MediaID == "" || dedup[c.MediaID] {
			continue
		}
		dedup[c.MediaID] = true
		mediaIDs = append(mediaIDs, c.MediaID)
	}
	if len(mediaIDs) == 0 {
		return nil
	}
	embeddings, err := n.Vectors.Vectors(ctx, mediaIDs)
	if err != nil {
		return nil
	}
	return embeddings
}

// refreshEngagement 用 SignalService 刷新互动计数；失败保留召回时带出的值。
func (n *MultiSignal) refreshEngagement(ctx context.Context, candidates []*core.Candidate) {
	if n.Signals == nil {
		return
	}
	postIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c != nil && c.PostID != "" {
			postIDs = append(postIDs, c.PostID)
		}
	}
	counts, err := n.Signals.BatchEngagement(ctx, postIDs)
	if err != nil {
		return
	}
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if e, ok := counts[c.PostID]; ok {
			c.Likes = e.Likes
			c.Comments = e.Comments
		}
	}
}
