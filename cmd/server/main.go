// 值班排班引擎服务
// 主程序入口

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/paiban/zhiban/internal/config"
	"github.com/paiban/zhiban/internal/database"
	"github.com/paiban/zhiban/internal/handler"
	"github.com/paiban/zhiban/internal/metrics"
	"github.com/paiban/zhiban/internal/middleware"
	"github.com/paiban/zhiban/internal/repository"
	"github.com/paiban/zhiban/internal/security"
	"github.com/paiban/zhiban/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
		Output: "stdout",
	})
	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("env", cfg.App.Env).
		Msg("值班排班引擎启动")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 数据库不可用时，非生产环境降级为不保存运行
	var store repository.TxDB
	db, err := database.New(ctx, &cfg.Database)
	switch {
	case err == nil:
		defer db.Close()
		store = db
	case cfg.IsProduction():
		logger.Fatal().Err(err).Msg("连接数据库失败")
	default:
		logger.Warn().Err(err).Msg("数据库不可用，运行结果将不会保存")
	}

	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status, dbStatus := http.StatusOK, "disabled"
		if db != nil {
			dbStatus = "ok"
			if err := db.Health(r.Context()); err != nil {
				status, dbStatus = http.StatusServiceUnavailable, "unavailable"
			}
		}
		writeJSON(w, status, map[string]string{
			"status":   http.StatusText(status),
			"service":  cfg.App.Name,
			"database": dbStatus,
		})
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
	}

	// ========================================
	// API v1 端点
	// ========================================

	mux.Handle("/api/v1/", handler.NewRouter(cfg.Engine, store))

	// ========================================
	// 中间件
	// ========================================

	keys, err := security.ParseKeys(cfg.API.Keys)
	if err != nil {
		logger.Fatal().Err(err).Msg("解析API密钥失败")
	}
	if keys.Len() == 0 && cfg.IsProduction() {
		logger.Warn().Msg("未配置API密钥，API 不做认证")
	}

	limiter := middleware.NewRateLimiter(cfg.API.RateLimit, cfg.API.Burst)
	if err := limiter.TrustProxies(cfg.API.TrustedProxies); err != nil {
		logger.Fatal().Err(err).Msg("解析可信代理失败")
	}
	root := middleware.Chain(mux,
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware,
		middleware.RecoveryMiddleware,
		middleware.SecurityHeadersMiddleware,
		middleware.CORSMiddleware(cfg.API.CORS),
		middleware.RateLimitMiddleware(limiter),
		middleware.AuthMiddleware(middleware.AuthConfig{
			Keys:      keys,
			SkipPaths: []string{"/health", "/version", cfg.Metrics.Path},
		}),
		middleware.TimeoutMiddleware(cfg.API.Timeout),
	)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go housekeeping(ctx, limiter, db)

	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("api", "http://localhost:"+strconv.Itoa(cfg.App.Port)+"/api/v1/").
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("服务器启动失败")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		return
	}
	logger.Info().Msg("服务器已关闭")
}

// loadConfig 设置 CONFIG_FILE 时读取 YAML 配置，否则只读环境变量
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// housekeeping 定期清理空闲限流器并上报连接池状态
func housekeeping(ctx context.Context, limiter *middleware.RateLimiter, db *database.DB) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Cleanup(10 * time.Minute); n > 0 {
				logger.Debug().Int("removed", n).Msg("清理空闲限流器")
			}
			if db != nil {
				s := db.Stats()
				metrics.SetDBConnections(s.InUse, s.Idle)
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
