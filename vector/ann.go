// Package vector 提供媒体嵌入的近邻检索实现。
//
// 主模块不直接依赖任何向量数据库 SDK：MilvusService 通过 Client 接口
// 与底层库解耦，真实 SDK 适配器在 ext/vector/milvus 子模块中提供，
// 需要时以依赖注入方式接入。
package vector

import (
	"context"
	"fmt"
	"time"
)

// Client 是向量数据库客户端的窄接口抽象。
type Client interface {
	// Search 在集合内做近邻检索，返回媒体 ID 与相似度（降序）
	Search(ctx context.Context, collection string, vector []float32, topK int64, filter string) ([]string, []float64, error)

	// Fetch 按媒体 ID 批量取回已物化的嵌入
	Fetch(ctx context.Context, collection string, ids []string) (map[string][]float64, error)

	// Insert 写入嵌入（离线物化任务使用）
	Insert(ctx context.Context, collection string, ids []string, vectors [][]float32) error

	// Close 关闭连接
	Close() error
}

// ClientConfig 是建立连接所需的参数。
type ClientConfig struct {
	Address  string
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// ClientFactory 创建 Client（依赖注入点）。
type ClientFactory interface {
	NewClient(ctx context.Context, cfg ClientConfig) (Client, error)
}

// DefaultClientFactory 是默认工厂。主模块不携带 SDK，
// 真实实现由 ext/vector/milvus 提供并通过 WithClientFactory 注入。
type DefaultClientFactory struct{}

func (f *DefaultClientFactory) NewClient(_ context.Context, _ ClientConfig) (Client, error) {
	return nil, fmt.Errorf("vector: no client factory injected, see ext/vector/milvus")
}
