package rerank

import (
	"context"
	"testing"

	"github.com/rushteam/feedkit/core"
)

func mkCandidate(postID, authorID string, score float64) *core.Candidate {
	c := core.NewCandidate(postID, authorID, core.SourceFollowing)
	c.Score = score
	return c
}

// 连续同作者的输入应当被打散：每个槽位优先选择作者不同于上一条的候选。
func TestDiversityAlternatesAuthors(t *testing.T) {
	n := &Diversity{AuthorCap: 3}
	in := []*core.Candidate{
		mkCandidate("p1", "a1", 10),
		mkCandidate("p2", "a1", 9),
		mkCandidate("p3", "a1", 8),
		mkCandidate("p4", "a2", 7),
		mkCandidate("p5", "a2", 6),
	}

	out := n.Rerank(in)
	if len(out) != 5 {
		t.Fatalf("期望 5 条输出，实际 %d", len(out))
	}
	for i := 1; i < len(out)-1; i++ {
		if out[i].AuthorID == out[i-1].AuthorID && out[i+1] != nil {
			// 仅当候选耗尽（第 3 轮兜底）才允许连续同作者
			remainingAuthors := map[string]bool{}
			for _, c := range out[i:] {
				remainingAuthors[c.AuthorID] = true
			}
			if len(remainingAuthors) > 1 {
				t.Errorf("位置 %d 和 %d 连续同作者 %s，但仍有其他作者可选", i-1, i, out[i].AuthorID)
			}
		}
	}
	if out[0].PostID != "p1" {
		t.Errorf("首位应保留最高分候选 p1，实际 %s", out[0].PostID)
	}
}

// 作者累计上限：上限内优先约束，候选不足时放松而不是丢弃。
func TestDiversityAuthorCapRelaxes(t *testing.T) {
	n := &Diversity{AuthorCap: 2}
	in := []*core.Candidate{
		mkCandidate("p1", "a1", 10),
		mkCandidate("p2", "a1", 9),
		mkCandidate("p3", "a1", 8),
		mkCandidate("p4", "a1", 7),
	}

	out := n.Rerank(in)
	if len(out) != 4 {
		t.Fatalf("重排不得丢弃候选：期望 4 条，实际 %d", len(out))
	}
}

// Renormalize 输出严格降序合成分，分数序与重排序一致。
func TestDiversityRenormalize(t *testing.T) {
	n := &Diversity{AuthorCap: 3, Renormalize: true}
	in := []*core.Candidate{
		mkCandidate("p1", "a1", 1),
		mkCandidate("p2", "a2", 2),
		mkCandidate("p3", "a3", 3),
	}

	out := n.Rerank(in)
	for i := 1; i < len(out); i++ {
		if out[i].Score >= out[i-1].Score {
			t.Errorf("合成分必须严格降序：out[%d]=%v >= out[%d]=%v", i, out[i].Score, i-1, out[i-1].Score)
		}
	}
	if out[0].Score != 10 {
		t.Errorf("首位合成分应为 10，实际 %v", out[0].Score)
	}
}

// 重排结果再次重排必须原样复现：贪心选取对自身输出是不动点，
// 覆盖放松累计上限（第 2 轮）与无约束兜底（第 3 轮）都生效的输入。
func TestDiversityIdempotent(t *testing.T) {
	tests := []struct {
		name string
		node *Diversity
		in   []*core.Candidate
	}{
		{
			name: "常规交替",
			node: &Diversity{AuthorCap: 3},
			in: []*core.Candidate{
				mkCandidate("p1", "a1", 10),
				mkCandidate("p2", "a1", 9),
				mkCandidate("p3", "a2", 8),
				mkCandidate("p4", "a2", 7),
				mkCandidate("p5", "a3", 6),
			},
		},
		{
			name: "上限放松与兜底",
			node: &Diversity{AuthorCap: 1},
			in: []*core.Candidate{
				mkCandidate("p1", "a1", 10),
				mkCandidate("p2", "a1", 9),
				mkCandidate("p3", "a1", 8),
				mkCandidate("p4", "a1", 7),
				mkCandidate("p5", "a2", 6),
			},
		},
		{
			name: "合成分改写",
			node: &Diversity{AuthorCap: 2, Renormalize: true},
			in: []*core.Candidate{
				mkCandidate("p1", "a1", 5),
				mkCandidate("p2", "a1", 4),
				mkCandidate("p3", "a1", 3),
				mkCandidate("p4", "a2", 2),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := tt.node.Rerank(tt.in)
			twice := tt.node.Rerank(once)
			if len(twice) != len(once) {
				t.Fatalf("二次重排条数变化：%d -> %d", len(once), len(twice))
			}
			for i := range once {
				if once[i].PostID != twice[i].PostID {
					t.Errorf("位置 %d 二次重排发生漂移：%s -> %s", i, once[i].PostID, twice[i].PostID)
				}
			}
		})
	}
}

// 空输入与单条输入原样返回。
func TestDiversityDegenerateInputs(t *testing.T) {
	n := &Diversity{AuthorCap: 2}
	if out := n.Rerank(nil); len(out) != 0 {
		t.Errorf("空输入应返回空，实际 %d 条", len(out))
	}
	single := []*core.Candidate{mkCandidate("p1", "a1", 1)}
	if out := n.Rerank(single); len(out) != 1 || out[0].PostID != "p1" {
		t.Errorf("单条输入应原样返回")
	}
}

// nil 候选被剔除，不会进入输出。
func TestDiversityDropsNil(t *testing.T) {
	n := &Diversity{AuthorCap: 2}
	in := []*core.Candidate{
		mkCandidate("p1", "a1", 2),
		nil,
		mkCandidate("p2", "a2", 1),
	}
	out, err := n.Process(context.Background(), nil, in)
	if err != nil {
		t.Fatalf("Process 不应失败: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("nil 候选应被剔除：期望 2 条，实际 %d", len(out))
	}
}

// TopN 截断语义。
func TestTopN(t *testing.T) {
	tests := []struct {
		name string
		n    int
		in   int
		want int
	}{
		{"正常截断", 2, 5, 2},
		{"不足不截断", 10, 3, 3},
		{"零表示不截断", 0, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]*core.Candidate, 0, tt.in)
			for i := 0; i < tt.in; i++ {
				in = append(in, mkCandidate("p"+string(rune('a'+i)), "a1", float64(i)))
			}
			node := &TopN{N: tt.n}
			out, err := node.Process(context.Background(), nil, in)
			if err != nil {
				t.Fatalf("Process 不应失败: %v", err)
			}
			if len(out) != tt.want {
				t.Errorf("期望 %d 条，实际 %d", tt.want, len(out))
			}
		})
	}
}
