package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/rushteam/feedkit/core"
)

// MemoryVectorService 是 VectorService 的内存暴力检索实现，
// 语义与 MilvusService 对齐（余弦相似度），供测试与单机示例使用。
type MemoryVectorService struct {
	mu         sync.RWMutex
	embeddings map[string]core.Embedding
}

func NewMemoryVectorService() *MemoryVectorService {
	return &MemoryVectorService{embeddings: make(map[string]core.Embedding)}
}

func (s *MemoryVectorService) Name() string { return "vector.memory" }

// Put 写入一条媒体嵌入（测试数据装配）。
func (s *MemoryVectorService) Put(mediaID string, e core.Embedding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[mediaID] = e
}

func (s *MemoryVectorService) Nearest(_ context.Context, vector []float64, k int, _ map[string]any) ([]core.Neighbor, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}

	s.mu.RLock()
	neighbors := make([]core.Neighbor, 0, len(s.embeddings))
	for id, e := range s.embeddings {
		best := 0.0
		for _, v := range [][]float64{e.Vision, e.Visual, e.Text} {
			if sim := cosine(vector, v); sim > best {
				best = sim
			}
		}
		if best > 0 {
			neighbors = append(neighbors, core.Neighbor{MediaID: id, Score: best})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Score != neighbors[j].Score {
			return neighbors[i].Score > neighbors[j].Score
		}
		return neighbors[i].MediaID < neighbors[j].MediaID
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func (s *MemoryVectorService) Vectors(_ context.Context, mediaIDs []string) (map[string]core.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]core.Embedding, len(mediaIDs))
	for _, id := range mediaIDs {
		if e, ok := s.embeddings[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

func (s *MemoryVectorService) Close() error { return nil }

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ core.VectorService = (*MemoryVectorService)(nil)
