package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// 默认配置必须通过自身校验（权重之和等不变量）。
func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("默认配置校验失败: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"默认配置", func(*Config) {}, false},
		{"权重和不为一", func(c *Config) { c.Rank.VisualWeight = 0.5 }, true},
		{"混合权重和不为一", func(c *Config) { c.Rank.BlendComputed = 0.9 }, true},
		{"作者上限非正", func(c *Config) { c.Pool.AuthorCap = 0 }, true},
		{"权重重新分配仍合法", func(c *Config) {
			c.Rank.VisualWeight = 0
			c.Rank.VisionWeight = 0.45
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("期望 wantErr=%v，实际 err=%v", tt.wantErr, err)
			}
		})
	}
}

// YAML 加载：未出现的字段保持默认值，非法配置在加载期报错。
func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.yaml")
	content := []byte(`
pool:
  followed_limit: 300
cache:
  max_entries: 80
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if cfg.Pool.FollowedLimit != 300 {
		t.Errorf("覆盖字段期望 300，实际 %d", cfg.Pool.FollowedLimit)
	}
	if cfg.Cache.MaxEntries != 80 {
		t.Errorf("max_entries 期望 80，实际 %d", cfg.Cache.MaxEntries)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("未覆盖的 TTL 应保持默认 1h，实际 %v", cfg.Cache.TTL)
	}
	if cfg.Pool.SuggestedK != 100 {
		t.Errorf("未覆盖字段应保持默认值 100，实际 %d", cfg.Pool.SuggestedK)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("rank:\n  visual_weight: 0.9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Errorf("权重失衡的配置应在加载期报错")
	}
}

// 领域错误的代码判定。
func TestDomainErrorPredicates(t *testing.T) {
	err := NewDomainError(ModuleStore, ErrorCodeQueryFailed, "store: boom")
	if !IsQueryFailed(err) {
		t.Errorf("IsQueryFailed 应为 true")
	}
	if IsNotFound(err) || IsTimeout(err) || IsUnavailable(err) {
		t.Errorf("其他判定应为 false")
	}
	if IsQueryFailed(nil) {
		t.Errorf("nil 错误判定应为 false")
	}
	if !IsNotFound(ErrCacheNotFound) {
		t.Errorf("缓存未命中应是 NOT_FOUND")
	}
}
