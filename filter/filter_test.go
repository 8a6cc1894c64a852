package filter

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/store"
)

func filterCandidate(postID, authorID string, src core.Source) *core.Candidate {
	return core.NewCandidate(postID, authorID, src)
}

// 过滤 Node 串联执行：已读、黑名单、自己发布的候选被剔除并打标签。
func TestFilterNode(t *testing.T) {
	fctx := &core.FeedContext{
		UserID:    "u1",
		Seen:      map[string]bool{"seen1": true},
		Blacklist: map[string]bool{"bad1": true},
	}

	in := []*core.Candidate{
		filterCandidate("keep", "a1", core.SourceFollowing),
		filterCandidate("seen1", "a2", core.SourceFollowing),
		filterCandidate("bad1", "a3", core.SourceSuggested),
		filterCandidate("mine", "u1", core.SourceTrending),
	}

	n := &Node{Filters: []Filter{&SelfAuthor{}, &Seen{}, &Blacklist{}}}
	out, err := n.Process(context.Background(), fctx, in)
	if err != nil {
		t.Fatalf("Process 不应失败: %v", err)
	}
	if len(out) != 1 || out[0].PostID != "keep" {
		t.Fatalf("期望只保留 keep，实际 %d 条", len(out))
	}
}

// CEL 规则过滤：表达式命中的候选被剔除，编译错误在构建期暴露。
func TestRuleFilter(t *testing.T) {
	rule, err := NewRule(`candidate.source == "discovery" && candidate.likes == 0`)
	if err != nil {
		t.Fatalf("规则编译失败: %v", err)
	}

	zombie := filterCandidate("zombie", "a1", core.SourceDiscovery)
	active := filterCandidate("active", "a2", core.SourceDiscovery)
	active.Likes = 5

	fctx := &core.FeedContext{UserID: "u1"}
	if drop, _ := rule.ShouldFilter(context.Background(), fctx, zombie); !drop {
		t.Errorf("零互动发现池候选应被剔除")
	}
	if drop, _ := rule.ShouldFilter(context.Background(), fctx, active); drop {
		t.Errorf("有互动的候选不应被剔除")
	}

	if _, err := NewRule(`candidate.likes ==`); err == nil {
		t.Errorf("非法表达式应在编译期报错")
	}
}

// BlacklistOf 从 not_interested 行为推导黑名单；依赖失败降级为空集合。
func TestBlacklistOf(t *testing.T) {
	s := store.NewMemoryStore()
	now := time.Now()
	s.AddInteraction(core.Interaction{UserID: "u1", TargetID: "p1", Type: core.InteractionNotInterested, CreatedAt: now})
	s.AddInteraction(core.Interaction{UserID: "u1", TargetID: "p2", Type: core.InteractionLike, CreatedAt: now})

	blacklist := BlacklistOf(context.Background(), s, "u1", 100)
	if !blacklist["p1"] {
		t.Errorf("not_interested 目标应进入黑名单")
	}
	if blacklist["p2"] {
		t.Errorf("正反馈目标不应进入黑名单")
	}

	if out := BlacklistOf(context.Background(), nil, "u1", 100); len(out) != 0 {
		t.Errorf("无依赖时应返回空集合")
	}
}

// SeenOf 读取已曝光窗口；依赖失败降级为空集合。
func TestSeenOf(t *testing.T) {
	tracker := store.NewMemorySeenTracker()
	_ = tracker.MarkSeen(context.Background(), "u1", []string{"p1", "p2"})

	seen := SeenOf(context.Background(), tracker, "u1")
	if !seen["p1"] || !seen["p2"] {
		t.Errorf("已曝光帖子应在集合中")
	}
	if out := SeenOf(context.Background(), nil, "u1"); len(out) != 0 {
		t.Errorf("无依赖时应返回空集合")
	}
}
