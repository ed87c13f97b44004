// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/paiban/zhiban/pkg/model"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Engine   EngineConfig   `yaml:"engine"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name      string `yaml:"name" validate:"required"`
	Env       string `yaml:"env" validate:"oneof=development test production"`
	Port      int    `yaml:"port" validate:"min=1,max=65535"`
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error fatal"`
	LogFormat string `yaml:"log_format" validate:"oneof=json console"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" validate:"oneof=postgres sqlite"`
	Path            string        `yaml:"path"` // sqlite 文件路径，":memory:" 为内存库
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=0,max=65535"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit int           `yaml:"rate_limit" validate:"min=0"` // 每秒请求数，0 表示不限
	Burst     int           `yaml:"burst" validate:"min=0"`
	Timeout   time.Duration `yaml:"timeout"`
	CORS      CORSConfig    `yaml:"cors"`
	Keys      []string      `yaml:"keys"` // "名称:密钥[:范围+范围]"，为空时不认证

	TrustedProxies []string `yaml:"trusted_proxies"` // IP 或 CIDR，限流时只信任来自这些地址的 X-Forwarded-For
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// EngineConfig 排班引擎配置
type EngineConfig struct {
	MaxConsecutiveDays int           `yaml:"max_consecutive_days" validate:"min=1"`
	BeamWidth          int           `yaml:"beam_width" validate:"min=1"`
	BeamTimeout        time.Duration `yaml:"beam_timeout"`
	CSPTimeout         time.Duration `yaml:"csp_timeout"`
	NeighborExpansion  int           `yaml:"neighbor_expansion" validate:"min=0"`
	Workers            int           `yaml:"workers" validate:"min=0"`
	StrictGrading      bool          `yaml:"strict_grading"` // 定级时同时检查空缺、硬违反、填充率与偏好率
	Weights            model.Weights `yaml:"weights"`
}

// ToConstraintSet 由引擎配置构建约束集
func (e EngineConfig) ToConstraintSet(weekdays, holidays []string) model.ConstraintSet {
	cs := model.DefaultConstraintSet(weekdays, holidays)
	cs.MaxConsecutiveDays = e.MaxConsecutiveDays
	cs.BeamWidth = e.BeamWidth
	cs.BeamTimeout = e.BeamTimeout
	cs.CSPTimeout = e.CSPTimeout
	cs.NeighborExpansion = e.NeighborExpansion
	cs.Workers = e.Workers
	cs.Weights = e.Weights
	if e.StrictGrading {
		cs.Thresholds = model.StrictThresholds()
	}
	return cs
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:      "zhiban",
			Env:       "development",
			Port:      7012,
			LogLevel:  "info",
			LogFormat: "json",
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Path:            "zhiban.db",
			Host:            "localhost",
			Port:            5432,
			Name:            "zhiban",
			User:            "zhiban",
			Password:        "zhiban123",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		API: APIConfig{
			RateLimit: 100,
			Burst:     200,
			Timeout:   60 * time.Second,
			CORS: CORSConfig{
				Enabled: true,
				Origins: []string{"*"},
			},
		},
		Engine: EngineConfig{
			MaxConsecutiveDays: model.DefaultMaxConsecutiveDays,
			BeamWidth:          model.DefaultBeamWidth,
			CSPTimeout:         model.DefaultCSPTimeout,
			Weights:            model.DefaultWeights(),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load 从环境变量加载配置；当前目录存在 .env 时先载入
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile 读取 YAML 配置文件，再以环境变量覆盖
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 以已设置的环境变量覆盖当前值
func applyEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Port = getEnvInt("APP_PORT", cfg.App.Port)
	cfg.App.LogLevel = getEnv("APP_LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.LogFormat = getEnv("APP_LOG_FORMAT", cfg.App.LogFormat)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.SSLMode = getEnv("DB_SSL_MODE", cfg.Database.SSLMode)
	cfg.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)

	cfg.API.RateLimit = getEnvInt("API_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.Burst = getEnvInt("API_RATE_BURST", cfg.API.Burst)
	cfg.API.Timeout = getEnvDuration("API_TIMEOUT", cfg.API.Timeout)
	cfg.API.CORS.Enabled = getEnvBool("API_CORS_ENABLED", cfg.API.CORS.Enabled)
	if origins := os.Getenv("API_CORS_ORIGINS"); origins != "" {
		cfg.API.CORS.Origins = strings.Split(origins, ",")
	}
	if keys := os.Getenv("API_KEYS"); keys != "" {
		cfg.API.Keys = strings.Split(keys, ",")
	}
	if proxies := os.Getenv("API_TRUSTED_PROXIES"); proxies != "" {
		cfg.API.TrustedProxies = strings.Split(proxies, ",")
	}

	cfg.Engine.MaxConsecutiveDays = getEnvInt("ENGINE_MAX_CONSECUTIVE_DAYS", cfg.Engine.MaxConsecutiveDays)
	cfg.Engine.BeamWidth = getEnvInt("ENGINE_BEAM_WIDTH", cfg.Engine.BeamWidth)
	cfg.Engine.BeamTimeout = getEnvDuration("ENGINE_BEAM_TIMEOUT", cfg.Engine.BeamTimeout)
	cfg.Engine.CSPTimeout = getEnvDuration("ENGINE_CSP_TIMEOUT", cfg.Engine.CSPTimeout)
	cfg.Engine.NeighborExpansion = getEnvInt("ENGINE_NEIGHBOR_EXPANSION", cfg.Engine.NeighborExpansion)
	cfg.Engine.Workers = getEnvInt("ENGINE_WORKERS", cfg.Engine.Workers)
	cfg.Engine.StrictGrading = getEnvBool("ENGINE_STRICT_GRADING", cfg.Engine.StrictGrading)
	cfg.Engine.Weights.Unfilled = getEnvFloat("ENGINE_WEIGHT_UNFILLED", cfg.Engine.Weights.Unfilled)
	cfg.Engine.Weights.Hard = getEnvFloat("ENGINE_WEIGHT_HARD", cfg.Engine.Weights.Hard)
	cfg.Engine.Weights.Soft = getEnvFloat("ENGINE_WEIGHT_SOFT", cfg.Engine.Weights.Soft)
	cfg.Engine.Weights.Fairness = getEnvFloat("ENGINE_WEIGHT_FAIRNESS", cfg.Engine.Weights.Fairness)
	cfg.Engine.Weights.Preference = getEnvFloat("ENGINE_WEIGHT_PREFERENCE", cfg.Engine.Weights.Preference)

	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Path = getEnv("METRICS_PATH", cfg.Metrics.Path)
}

var validate = validator.New()

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if c.Engine.BeamTimeout < 0 || c.Engine.CSPTimeout < 0 {
		return fmt.Errorf("配置校验失败: 引擎超时不能为负")
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
