package bounded

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCallOK(t *testing.T) {
	res := Call(context.Background(), time.Second, func(context.Context) (int, error) {
		return 42, nil
	})
	if res.Status != OK || res.Value != 42 {
		t.Fatalf("期望 OK/42，实际 %+v", res)
	}
	if got := res.ValueOr(-1); got != 42 {
		t.Errorf("ValueOr 应返回结果值，实际 %d", got)
	}
}

func TestCallError(t *testing.T) {
	boom := errors.New("boom")
	res := Call(context.Background(), time.Second, func(context.Context) (int, error) {
		return 7, boom
	})
	if res.Status != Error || !errors.Is(res.Err, boom) {
		t.Fatalf("期望 Error，实际 %+v", res)
	}
	if got := res.ValueOr(-1); got != -1 {
		t.Errorf("出错时 ValueOr 应返回 fallback，实际 %d", got)
	}
}

// 输掉赛跑：结果被放弃，调用方拿到 Timeout 与 fallback。
func TestCallTimeout(t *testing.T) {
	res := Call(context.Background(), 10*time.Millisecond, func(ctx context.Context) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "late", nil
		}
	})
	if res.Status != Timeout {
		t.Fatalf("期望 Timeout，实际 %+v", res)
	}
	if got := res.ValueOr("fallback"); got != "fallback" {
		t.Errorf("超时 ValueOr 应返回 fallback，实际 %s", got)
	}
}

// 外层 ctx 取消同样结束赛跑。
func TestCallParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := Call(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if res.Status == OK {
		t.Fatalf("取消后不应返回 OK: %+v", res)
	}
}
