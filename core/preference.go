package core

// PreferenceVector 是用户的内容偏好向量，按嵌入族独立维护。
// 每个分量是其来源嵌入的逐维均值；某一族没有任何可用向量时该分量为 nil。
// 三个分量全为 nil 是合法状态，表示"无个性化信号"，下游按无信号处理。
type PreferenceVector struct {
	Visual []float64
	Vision []float64
	Text   []float64
}

// IsEmpty 判断是否完全没有个性化信号。
func (p *PreferenceVector) IsEmpty() bool {
	return p == nil || (len(p.Visual) == 0 && len(p.Vision) == 0 && len(p.Text) == 0)
}

// Primary 返回用于近邻检索的查询向量，按 vision > visual > text 取第一个可用分量。
func (p *PreferenceVector) Primary() []float64 {
	if p == nil {
		return nil
	}
	if len(p.Vision) > 0 {
		return p.Vision
	}
	if len(p.Visual) > 0 {
		return p.Visual
	}
	return p.Text
}

// Embedding 是单个媒体的嵌入集合，与 PreferenceVector 同构。
type Embedding struct {
	Visual []float64
	Vision []float64
	Text   []float64
}
