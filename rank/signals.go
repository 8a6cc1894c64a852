package rank

import "math"

// cosineSimilarity 计算余弦相似度；任一侧缺失或维度不一致返回 0。
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sigmoid 是互动分的饱和函数：落在 (0,1)，爆款内容平滑趋近 1。
// scale 是中点缩放因子。
func sigmoid(x, scale float64) float64 {
	if scale <= 0 {
		scale = 1
	}
	return 1 / (1 + math.Exp(-x/scale))
}

// recencyScore 是时效分：exp(-hours/halfLife)，默认一天衰减。
func recencyScore(hours, halfLife float64) float64 {
	if halfLife <= 0 {
		halfLife = 24
	}
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-hours / halfLife)
}
