package filter

import (
	"context"

	"github.com/rushteam/feedkit/core"
	"github.com/rushteam/feedkit/pkg/dsl"
)

// Rule 是 CEL 表达式驱动的过滤器：表达式求值为 true 的候选被剔除。
// 用于不改代码下线某类候选，例如：
//
//	candidate.source == "discovery" && candidate.likes == 0
type Rule struct {
	rule *dsl.Rule
}

// NewRule 编译一条 CEL 过滤规则。
func NewRule(expr string) (*Rule, error) {
	r, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Rule{rule: r}, nil
}

func (f *Rule) Name() string { return "filter.rule" }

func (f *Rule) ShouldFilter(
	_ context.Context,
	fctx *core.FeedContext,
	c *core.Candidate,
) (bool, error) {
	if c == nil {
		return true, nil
	}
	return f.rule.Matches(c, fctx)
}
