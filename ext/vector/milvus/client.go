// Package milvus 提供基于官方 Milvus Go SDK 的 vector.Client 实现。
//
// 作为独立子模块存在：主模块不携带 Milvus SDK 依赖，
// 需要真实连接时 import 本包并通过 vector.WithClientFactory 注入。
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/rushteam/feedkit/vector"
)

// Factory 实现 vector.ClientFactory。
type Factory struct{}

func (f *Factory) NewClient(ctx context.Context, cfg vector.ClientConfig) (vector.Client, error) {
	milvusClient, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("create milvus client: %w", err)
	}
	return &sdkClient{client: milvusClient}, nil
}

// sdkClient 把 SDK 客户端适配到 vector.Client。
// 集合约定：主键字段 media_id（VarChar），向量字段 vector。
type sdkClient struct {
	client *milvusclient.Client
}

func (a *sdkClient) Search(ctx context.Context, collection string, vec []float32, topK int64, filter string) ([]string, []float64, error) {
	opt := milvusclient.NewSearchOption(collection, int(topK), []entity.Vector{entity.FloatVector(vec)}).
		WithOutputFields("media_id")
	if filter != "" {
		opt = opt.WithFilter(filter)
	}

	results, err := a.client.Search(ctx, opt)
	if err != nil {
		return nil, nil, fmt.Errorf("milvus search: %w", err)
	}

	ids := make([]string, 0, topK)
	scores := make([]float64, 0, topK)
	for _, rs := range results {
		if rs.Err != nil {
			continue
		}
		for i := 0; i < rs.Len(); i++ {
			id, err := rs.IDs.Get(i)
			if err != nil {
				continue
			}
			switch v := id.(type) {
			case string:
				ids = append(ids, v)
			case int64:
				ids = append(ids, strconv.FormatInt(v, 10))
			default:
				ids = append(ids, fmt.Sprintf("%v", v))
			}
			if i < len(rs.Scores) {
				scores = append(scores, float64(rs.Scores[i]))
			} else {
				scores = append(scores, 0)
			}
		}
	}
	return ids, scores, nil
}

func (a *sdkClient) Fetch(ctx context.Context, collection string, ids []string) (map[string][]float64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rs, err := a.client.Query(ctx, milvusclient.NewQueryOption(collection).
		WithFilter(inExpr("media_id", ids)).
		WithOutputFields("media_id", "vector"))
	if err != nil {
		return nil, fmt.Errorf("milvus query: %w", err)
	}

	idCol, ok := rs.GetColumn("media_id").(*column.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("milvus query: unexpected media_id column type")
	}
	vecCol, ok := rs.GetColumn("vector").(*column.ColumnFloatVector)
	if !ok {
		return nil, fmt.Errorf("milvus query: unexpected vector column type")
	}

	vectors := vecCol.Data()
	out := make(map[string][]float64, len(ids))
	for i, id := range idCol.Data() {
		if id == "" || i >= len(vectors) {
			continue
		}
		out[id] = toFloat64(vectors[i])
	}
	return out, nil
}

func (a *sdkClient) Insert(ctx context.Context, collection string, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	if len(ids) == 0 {
		return nil
	}
	idColumn := column.NewColumnVarChar("media_id", ids)
	vectorColumn := column.NewColumnFloatVector("vector", len(vectors[0]), vectors)
	_, err := a.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collection, idColumn, vectorColumn))
	if err != nil {
		return fmt.Errorf("milvus insert: %w", err)
	}
	return nil
}

func (a *sdkClient) Close() error {
	return a.client.Close(context.Background())
}

// inExpr 构造 `field in ["a","b"]` 形式的过滤表达式。
func inExpr(field string, ids []string) string {
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, strconv.Quote(id))
	}
	return fmt.Sprintf("%s in [%s]", field, strings.Join(quoted, ", "))
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

var (
	_ vector.Client        = (*sdkClient)(nil)
	_ vector.ClientFactory = (*Factory)(nil)
)
