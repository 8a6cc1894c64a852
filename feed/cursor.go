package feed

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/rushteam/feedkit/core"
)

// Cursor 是热门分页的不透明游标：
// (score, date) 是上一页末尾的排序边界，Reference 是第一页固定的衰减基准时刻。
// 调用方原样回传，内部结构不属于对外契约。
type Cursor struct {
	Score     *float64  `json:"s,omitempty"`
	Date      time.Time `json:"d"`
	Reference time.Time `json:"r"`
}

// Encode 序列化为 URL 安全的不透明字符串。
func (c *Cursor) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor 解析游标；任何解析失败都按无效输入处理。
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, core.NewDomainError(core.ModuleFeed, core.ErrorCodeInvalidInput, "feed: empty cursor")
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleFeed, core.ErrorCodeInvalidInput, "feed: malformed cursor")
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, core.NewDomainError(core.ModuleFeed, core.ErrorCodeInvalidInput, "feed: malformed cursor")
	}
	if c.Reference.IsZero() {
		return nil, core.NewDomainError(core.ModuleFeed, core.ErrorCodeInvalidInput, "feed: cursor missing reference time")
	}
	return &c, nil
}
