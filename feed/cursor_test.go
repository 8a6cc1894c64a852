package feed

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/rushteam/feedkit/core"
)

// 游标编解码往返：边界分数、日期与衰减基准时刻完整保留。
func TestCursorRoundTrip(t *testing.T) {
	score := 12.5
	ref := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := &Cursor{
		Score:     &score,
		Date:      ref.Add(-3 * time.Hour),
		Reference: ref,
	}

	got, err := DecodeCursor(c.Encode())
	if err != nil {
		t.Fatalf("解码失败: %v", err)
	}
	if got.Score == nil || *got.Score != score {
		t.Errorf("Score 期望 %v，实际 %v", score, got.Score)
	}
	if !got.Date.Equal(c.Date) || !got.Reference.Equal(c.Reference) {
		t.Errorf("时间字段往返不一致: %+v", got)
	}
}

// 非法游标统一按无效输入报错。
func TestDecodeCursorInvalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"空字符串", ""},
		{"非 base64", "%%%"},
		{"非 JSON", base64.RawURLEncoding.EncodeToString([]byte("not json"))},
		{"缺少基准时刻", base64.RawURLEncoding.EncodeToString([]byte(`{"d":"2026-08-01T00:00:00Z"}`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.cursor)
			if err == nil {
				t.Fatalf("应报错")
			}
			derr := core.GetDomainError(err)
			if derr == nil || derr.Code != core.ErrorCodeInvalidInput {
				t.Errorf("期望 INVALID_INPUT，实际 %v", err)
			}
		})
	}
}
