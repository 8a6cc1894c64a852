// Package bounded 把"调用 vs 超时赛跑"的惯用法收敛为一个可复用的 helper。
//
// 检索链路上对缓存/向量服务的每次访问都包在一个短超时里；输掉赛跑视为
// "依赖不可用"而不是致命错误，编排器降级到下一层兜底。被放弃的调用
// 不保证停止，所以依赖存储必须对迟到写入保持幂等。
package bounded

import (
	"context"
	"time"
)

// Status 是一次受限调用的结局。
type Status int

const (
	OK Status = iota
	Timeout
	Error
)

// Result 是带标签的调用结果：{ok, value} | {timeout} | {error}。
type Result[T any] struct {
	Status Status
	Value  T
	Err    error
}

// Call 在 timeout 内执行 fn。
// fn 在独立 goroutine 中运行并收到一个随超时取消的 context；
// 超时后其结果被直接丢弃（调用方视角的 abandon）。
func Call[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) Result[T] {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	// 带缓冲：超时路径下 goroutine 依然能写入并退出，不泄漏
	ch := make(chan outcome, 1)

	go func() {
		v, err := fn(callCtx)
		ch <- outcome{value: v, err: err}
	}()

	select {
	case <-callCtx.Done():
		var zero T
		return Result[T]{Status: Timeout, Value: zero, Err: callCtx.Err()}
	case out := <-ch:
		if out.err != nil {
			var zero T
			return Result[T]{Status: Error, Value: zero, Err: out.err}
		}
		return Result[T]{Status: OK, Value: out.value}
	}
}

// ValueOr 在调用成功时返回结果，否则返回 fallback。
// 对应"超时/出错按空结果继续"的降级语义。
func (r Result[T]) ValueOr(fallback T) T {
	if r.Status == OK {
		return r.Value
	}
	return fallback
}
