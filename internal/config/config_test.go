package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paiban/zhiban/pkg/model"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.Port != 7012 || cfg.Database.Driver != "postgres" {
		t.Errorf("Unexpected defaults: %+v", cfg.App)
	}
	if cfg.Engine.BeamWidth != model.DefaultBeamWidth || cfg.Engine.CSPTimeout != model.DefaultCSPTimeout {
		t.Errorf("Unexpected engine defaults: %+v", cfg.Engine)
	}
	if cfg.Engine.Weights != model.DefaultWeights() {
		t.Errorf("Unexpected weights: %+v", cfg.Engine.Weights)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("ENGINE_BEAM_WIDTH", "12")
	t.Setenv("ENGINE_CSP_TIMEOUT", "3s")
	t.Setenv("ENGINE_WEIGHT_UNFILLED", "-500")
	t.Setenv("API_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("API_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.App.Port != 9000 {
		t.Errorf("Port = %d, expected 9000", cfg.App.Port)
	}
	if cfg.Database.DSN() != ":memory:" {
		t.Errorf("DSN = %q, expected :memory:", cfg.Database.DSN())
	}
	if cfg.Engine.BeamWidth != 12 || cfg.Engine.CSPTimeout != 3*time.Second {
		t.Errorf("Unexpected engine config: %+v", cfg.Engine)
	}
	if cfg.Engine.Weights.Unfilled != -500 {
		t.Errorf("Unfilled weight = %v, expected -500", cfg.Engine.Weights.Unfilled)
	}
	if len(cfg.API.CORS.Origins) != 2 {
		t.Errorf("Origins = %v", cfg.API.CORS.Origins)
	}
	if len(cfg.API.TrustedProxies) != 2 {
		t.Errorf("TrustedProxies = %v", cfg.API.TrustedProxies)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zhiban.yaml")
	content := `
app:
  env: test
database:
  driver: sqlite
  path: ledger.db
engine:
  beam_width: 8
  csp_timeout: 2s
  max_consecutive_days: 3
  strict_grading: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv("ENGINE_BEAM_WIDTH", "4")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if !cfg.IsTest() || cfg.Database.DSN() != "ledger.db" {
		t.Errorf("Unexpected file values: %+v / %+v", cfg.App, cfg.Database)
	}
	// 环境变量优先于文件
	if cfg.Engine.BeamWidth != 4 {
		t.Errorf("BeamWidth = %d, expected env override 4", cfg.Engine.BeamWidth)
	}
	// 文件未提及的字段保留默认值
	if cfg.Engine.Weights != model.DefaultWeights() {
		t.Errorf("Weights lost their defaults: %+v", cfg.Engine.Weights)
	}

	cs := cfg.Engine.ToConstraintSet([]string{"2025-08-04"}, []string{"2025-08-09"})
	if cs.BeamWidth != 4 || cs.CSPTimeout != 2*time.Second || cs.MaxConsecutiveDays != 3 {
		t.Errorf("Unexpected constraint set: %+v", cs)
	}
	if len(cs.Thresholds) == 0 || cs.Thresholds[0].MinPreferenceRate == 0 {
		t.Error("Expected strict thresholds")
	}
	if len(cs.Horizon()) != 2 {
		t.Errorf("Horizon = %v", cs.Horizon())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"默认配置", func(c *Config) {}, false},
		{"未知驱动", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"端口越界", func(c *Config) { c.App.Port = 70000 }, true},
		{"束宽为零", func(c *Config) { c.Engine.BeamWidth = 0 }, true},
		{"超时为负", func(c *Config) { c.Engine.CSPTimeout = -time.Second }, true},
		{"日志级别", func(c *Config) { c.App.LogLevel = "verbose" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for a missing file")
	}
}
