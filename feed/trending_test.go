package feed

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/feedkit/core"
)

// seedTrending 写入 5 条按热度分严格降序的帖子（作者互不相同）。
func seedTrending(deps *serviceDeps) {
	now := feedFixedNow()
	likes := []int64{100, 90, 80, 70, 60}
	for i, l := range likes {
		deps.store.AddPost(&core.Post{
			ID:        "t" + string(rune('a'+i)),
			AuthorID:  "author" + string(rune('a'+i)),
			Likes:     l,
			CreatedAt: now.Add(-time.Duration(i+1) * time.Hour),
		})
	}
}

// 游标翻页：各页不相交、顺序衔接，最后一页 NextCursor 为空。
func TestGetTrendingCursorPagination(t *testing.T) {
	s, deps := newService(false)
	seedTrending(deps)

	var got []string
	cursor := ""
	for page := 0; page < 4; page++ {
		res, err := s.GetTrending(context.Background(), "", 2, 0, cursor)
		if err != nil {
			t.Fatalf("第 %d 页失败: %v", page+1, err)
		}
		for _, p := range res.Items {
			got = append(got, p.ID)
		}
		if !res.HasMore {
			if res.NextCursor != "" {
				t.Errorf("最后一页 NextCursor 应为空")
			}
			break
		}
		if res.NextCursor == "" {
			t.Fatalf("有下一页时 NextCursor 不应为空")
		}
		cursor = res.NextCursor
	}

	want := []string{"ta", "tb", "tc", "td", "te"}
	if len(got) != len(want) {
		t.Fatalf("翻完应覆盖全部 5 条，实际 %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("位置 %d 期望 %s，实际 %s", i, want[i], got[i])
		}
	}
}

// 衰减基准时刻在第一页固定，并随游标原样透传到后续页。
func TestGetTrendingReferenceStability(t *testing.T) {
	s, deps := newService(false)
	seedTrending(deps)

	res, err := s.GetTrending(context.Background(), "", 2, 0, "")
	if err != nil {
		t.Fatalf("第一页失败: %v", err)
	}
	c, err := DecodeCursor(res.NextCursor)
	if err != nil {
		t.Fatalf("游标应可解码: %v", err)
	}
	if !c.Reference.Equal(feedFixedNow()) {
		t.Errorf("基准时刻应固定为第一页时刻，实际 %v", c.Reference)
	}
	if c.Score == nil {
		t.Errorf("边界分数不应为空")
	}
}

// userID 非空时剔除用户自己发布的帖子，页面不出短页。
func TestGetTrendingExcludesSelf(t *testing.T) {
	s, deps := newService(false)
	seedTrending(deps)
	deps.store.AddPost(&core.Post{
		ID: "mine", AuthorID: "me", Likes: 1000,
		CreatedAt: feedFixedNow().Add(-time.Hour),
	})

	res, err := s.GetTrending(context.Background(), "me", 3, 0, "")
	if err != nil {
		t.Fatalf("GetTrending 不应失败: %v", err)
	}
	if len(res.Items) != 3 {
		t.Fatalf("剔除自发帖后仍应出满页，实际 %d 条", len(res.Items))
	}
	for _, p := range res.Items {
		if p.ID == "mine" {
			t.Errorf("自己发布的帖子不应出现在热门页")
		}
	}
}

// 非法游标直接报错，不静默回退第一页。
func TestGetTrendingMalformedCursor(t *testing.T) {
	s, deps := newService(false)
	seedTrending(deps)

	if _, err := s.GetTrending(context.Background(), "", 2, 0, "garbage"); err == nil {
		t.Fatalf("非法游标应报错")
	}
}

// 空结果集返回空页，无游标。
func TestGetTrendingEmpty(t *testing.T) {
	s, _ := newService(false)
	res, err := s.GetTrending(context.Background(), "", 10, 0, "")
	if err != nil {
		t.Fatalf("空库不应失败: %v", err)
	}
	if len(res.Items) != 0 || res.HasMore || res.NextCursor != "" {
		t.Errorf("期望空页，实际 %+v", res)
	}
}
