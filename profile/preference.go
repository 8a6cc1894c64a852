// Package profile 从用户近期正反馈推导偏好向量。
package profile

import (
	"context"

	"github.com/rushteam/feedkit/core"
)

// VectorBuilder 是偏好向量构建器（按需构建，不持久化）。
// 取最近的正反馈（like / interested 等）对应的帖子，映射到主媒体，
// 批量取回嵌入后按族求逐维均值。
type VectorBuilder struct {
	Interactions core.InteractionStore
	Store        core.ContentStore
	Vectors      core.VectorService

	// MaxInteractions 读取的正反馈条数上限（默认 15）
	MaxInteractions int
}

// Build 构建用户的偏好向量。
// 空行为历史不是错误：返回全空向量，下游按"无个性化信号"处理。
func (b *VectorBuilder) Build(ctx context.Context, userID string) (*core.PreferenceVector, error) {
	prefs := &core.PreferenceVector{}
	if b.Interactions == nil || b.Vectors == nil {
		return prefs, nil
	}

	limit := b.MaxInteractions
	if limit <= 0 {
		limit = 15
	}

	// 行为记录读得比 limit 多一些：正反馈混在负反馈中间
	records, err := b.Interactions.Recent(ctx, userID, limit*4)
	if err != nil {
		return prefs, nil
	}

	postIDs := make([]string, 0, limit)
	distinct := make(map[string]bool, limit)
	for _, rec := range records {
		if !rec.Type.IsPositive() {
			continue
		}
		if distinct[rec.TargetID] {
			continue
		}
		distinct[rec.TargetID] = true
		postIDs = append(postIDs, rec.TargetID)
		if len(postIDs) >= limit {
			break
		}
	}
	if len(postIDs) == 0 {
		return prefs, nil
	}

	mediaIDs := b.mediaIDsOf(ctx, postIDs)
	if len(mediaIDs) == 0 {
		return prefs, nil
	}

	// 批量直查嵌入，不重算
	embeddings, err := b.Vectors.Vectors(ctx, mediaIDs)
	if err != nil {
		return prefs, nil
	}

	visual := make([][]float64, 0, len(embeddings))
	vision := make([][]float64, 0, len(embeddings))
	text := make([][]float64, 0, len(embeddings))
	for _, id := range mediaIDs {
		emb, ok := embeddings[id]
		if !ok {
			continue
		}
		if len(emb.Visual) > 0 {
			visual = append(visual, emb.Visual)
		}
		if len(emb.Vision) > 0 {
			vision = append(vision, emb.Vision)
		}
		if len(emb.Text) > 0 {
			text = append(text, emb.Text)
		}
	}

	prefs.Visual = meanVector(visual)
	prefs.Vision = meanVector(vision)
	prefs.Text = meanVector(text)
	return prefs, nil
}

// mediaIDsOf 把帖子映射到主媒体 ID；查不到的帖子直接跳过。
func (b *VectorBuilder) mediaIDsOf(ctx context.Context, postIDs []string) []string {
	if b.Store == nil {
		return nil
	}
	posts, err := b.Store.CandidatePosts(ctx, &core.PostFilter{IDs: postIDs})
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		if p != nil && p.MediaID != "" {
			out = append(out, p.MediaID)
		}
	}
	return out
}

// meanVector 求一组向量的逐维均值。
// 维度以首个向量为准，维度不一致的向量被跳过，绝不零填充；
// 没有任何可用向量时返回 nil（该族无信号）。
func meanVector(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	count := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i := range v {
			sum[i] += v[i]
		}
		count++
	}
	if count == 0 {
		return nil
	}
	for i := range sum {
		sum[i] /= float64(count)
	}
	return sum
}
