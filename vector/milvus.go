package vector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rushteam/feedkit/core"
)

// 默认集合名：每个嵌入族一个集合，同一 media_id 跨集合关联。
const (
	DefaultVisualCollection = "media_visual"
	DefaultVisionCollection = "media_vision"
	DefaultTextCollection   = "media_text"
)

// MilvusService 是 Milvus 向量数据库的 VectorService 实现。
//
// 工程特征：
//   - Nearest 在主嵌入族集合上检索（默认 vision 族）
//   - Vectors 并不重算嵌入，只按 media_id 直查离线物化结果
//   - 任何底层错误统一折叠为 vector 模块的 UNAVAILABLE，调用方按降级处理
type MilvusService struct {
	Address  string
	Username string
	Password string
	Database string
	Timeout  time.Duration

	// VisualCollection / VisionCollection / TextCollection 三个嵌入族的集合名
	VisualCollection string
	VisionCollection string
	TextCollection   string

	// PrimaryCollection 是 Nearest 检索的集合，默认 VisionCollection
	PrimaryCollection string

	mu            sync.Mutex
	client        Client
	clientFactory ClientFactory
}

type MilvusOption func(*MilvusService)

func WithMilvusAuth(username, password string) MilvusOption {
	return func(s *MilvusService) {
		s.Username = username
		s.Password = password
	}
}

func WithMilvusDatabase(database string) MilvusOption {
	return func(s *MilvusService) { s.Database = database }
}

func WithMilvusTimeout(timeout time.Duration) MilvusOption {
	return func(s *MilvusService) { s.Timeout = timeout }
}

func WithCollections(visual, vision, text string) MilvusOption {
	return func(s *MilvusService) {
		s.VisualCollection = visual
		s.VisionCollection = vision
		s.TextCollection = text
	}
}

func WithPrimaryCollection(name string) MilvusOption {
	return func(s *MilvusService) { s.PrimaryCollection = name }
}

func WithClientFactory(factory ClientFactory) MilvusOption {
	return func(s *MilvusService) { s.clientFactory = factory }
}

func WithClient(client Client) MilvusOption {
	return func(s *MilvusService) { s.client = client }
}

// NewMilvusService 创建一个 Milvus 向量服务。
func NewMilvusService(address string, opts ...MilvusOption) *MilvusService {
	s := &MilvusService{
		Address:          address,
		Database:         "default",
		Timeout:          30 * time.Second,
		VisualCollection: DefaultVisualCollection,
		VisionCollection: DefaultVisionCollection,
		TextCollection:   DefaultTextCollection,
		clientFactory:    &DefaultClientFactory{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.PrimaryCollection == "" {
		s.PrimaryCollection = s.VisionCollection
	}
	return s
}

func (s *MilvusService) Name() string { return "vector.milvus" }

func (s *MilvusService) initClient(ctx context.Context) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	if s.clientFactory == nil {
		s.clientFactory = &DefaultClientFactory{}
	}
	client, err := s.clientFactory.NewClient(ctx, ClientConfig{
		Address:  s.Address,
		Username: s.Username,
		Password: s.Password,
		Database: s.Database,
		Timeout:  s.Timeout,
	})
	if err != nil {
		return nil, unavailable("init client", err)
	}
	s.client = client
	return client, nil
}

func (s *MilvusService) Nearest(ctx context.Context, vector []float64, k int, filter map[string]any) ([]core.Neighbor, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}
	client, err := s.initClient(ctx)
	if err != nil {
		return nil, err
	}

	ids, scores, err := client.Search(ctx, s.PrimaryCollection, toFloat32(vector), int64(k), buildFilterExpr(filter))
	if err != nil {
		return nil, unavailable("search", err)
	}

	neighbors := make([]core.Neighbor, 0, len(ids))
	for i, id := range ids {
		n := core.Neighbor{MediaID: id}
		if i < len(scores) {
			n.Score = scores[i]
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, nil
}

func (s *MilvusService) Vectors(ctx context.Context, mediaIDs []string) (map[string]core.Embedding, error) {
	if len(mediaIDs) == 0 {
		return map[string]core.Embedding{}, nil
	}
	client, err := s.initClient(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]core.Embedding, len(mediaIDs))
	families := []struct {
		collection string
		assign     func(e *core.Embedding, v []float64)
	}{
		{s.VisualCollection, func(e *core.Embedding, v []float64) { e.Visual = v }},
		{s.VisionCollection, func(e *core.Embedding, v []float64) { e.Vision = v }},
		{s.TextCollection, func(e *core.Embedding, v []float64) { e.Text = v }},
	}
	for _, fam := range families {
		if fam.collection == "" {
			continue
		}
		vectors, err := client.Fetch(ctx, fam.collection, mediaIDs)
		if err != nil {
			return nil, unavailable("fetch "+fam.collection, err)
		}
		for id, v := range vectors {
			e := out[id]
			fam.assign(&e, v)
			out[id] = e
		}
	}
	return out, nil
}

func (s *MilvusService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// buildFilterExpr 把等值过滤条件拼成 Milvus 布尔表达式。
func buildFilterExpr(filter map[string]any) string {
	if len(filter) == 0 {
		return ""
	}
	exprs := make([]string, 0, len(filter))
	for k, v := range filter {
		switch val := v.(type) {
		case string:
			exprs = append(exprs, fmt.Sprintf("%s == '%s'", k, val))
		case int, int64, float64, bool:
			exprs = append(exprs, fmt.Sprintf("%s == %v", k, val))
		}
	}
	return strings.Join(exprs, " && ")
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func unavailable(op string, err error) error {
	return core.NewDomainError(core.ModuleVector, core.ErrorCodeUnavailable,
		fmt.Sprintf("vector: %s: %v", op, err))
}

var _ core.VectorService = (*MilvusService)(nil)
