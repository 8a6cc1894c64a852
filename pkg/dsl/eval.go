package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/feedkit/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("candidate", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("fctx", cel.DynType),
	)
	return env, err
}

func getCELEnv() (*cel.Env, error) {
	var err error
	celEnvOnce.Do(func() {
		celEnv, err = initCELEnv()
	})
	return celEnv, err
}

// Rule 是候选过滤规则的 CEL (Common Expression Language) 解释器。
// 表达式编译一次后可对任意候选重复求值，线程安全。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：candidate.source == "suggested" / candidate.author_id != fctx.user_id
//   - 数值：candidate.score > 0.7 / candidate.likes >= 10
//   - 逻辑：candidate.source == "trending" && candidate.score < 0.2
//   - 标签：label.recall_source.contains("followed")
type Rule struct {
	expr string
	prg  cel.Program
}

// Compile 编译一条 CEL 规则。空表达式返回 nil 规则（永不匹配）。
func Compile(expr string) (*Rule, error) {
	if expr == "" {
		return nil, nil
	}

	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %v", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %v", err)
	}

	return &Rule{expr: expr, prg: prg}, nil
}

// Expr 返回原始表达式文本。
func (r *Rule) Expr() string {
	if r == nil {
		return ""
	}
	return r.expr
}

// Matches 对一个候选求值，返回布尔结果。
// 对不存在的 key CEL 会报错；表达式应使用 label.key != null 检查存在性。
func (r *Rule) Matches(c *core.Candidate, fctx *core.FeedContext) (bool, error) {
	if r == nil {
		return false, nil
	}

	out, _, err := r.prg.Eval(buildInput(c, fctx))
	if err != nil {
		return false, fmt.Errorf("eval error: %v", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}

	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(c *core.Candidate, fctx *core.FeedContext) map[string]interface{} {
	labels := make(map[string]interface{}, len(c.Labels))
	labelAccessor := make(map[string]interface{}, len(c.Labels))
	for k, v := range c.Labels {
		labels[k] = map[string]interface{}{
			"value":  v.Value,
			"source": v.Source,
		}
		// label.recall_source 直接返回 value，兼容简写
		labelAccessor[k] = v.Value
	}

	candidate := map[string]interface{}{
		"post_id":      c.PostID,
		"author_id":    c.AuthorID,
		"media_id":     c.MediaID,
		"content_type": c.ContentType,
		"source":       string(c.Source),
		"source_score": c.SourceScore,
		"score":        c.Score,
		"likes":        c.Likes,
		"comments":     c.Comments,
		"labels":       labels,
	}

	fc := map[string]interface{}{}
	if fctx != nil {
		fc["user_id"] = fctx.UserID
		fc["params"] = fctx.Params
	}

	return map[string]interface{}{
		"candidate": candidate,
		"label":     labelAccessor,
		"fctx":      fc,
	}
}
