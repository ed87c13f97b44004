// Package database 提供数据库连接和管理
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/paiban/zhiban/internal/config"
	"github.com/paiban/zhiban/pkg/logger"

	_ "github.com/lib/pq" // PostgreSQL 驱动
	_ "modernc.org/sqlite" // SQLite 驱动
)

// slowQuery 超过该耗时的语句记为慢查询
const slowQuery = 100 * time.Millisecond

// DB 数据库连接封装
type DB struct {
	*sqlx.DB
	cfg *config.DatabaseConfig
}

// New 创建新的数据库连接并执行迁移
func New(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	driver, dsn := driverName(cfg), cfg.DSN()
	if cfg.Driver == "sqlite" && dsn == "" {
		dsn = ":memory:"
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	// 配置连接池
	if cfg.Driver == "sqlite" {
		// SQLite 单写者；内存库每个连接是独立的库
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// 测试连接
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	d := &DB{DB: db, cfg: cfg}
	if err := d.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		logger.Info().Str("path", dsn).Msg("数据库连接成功")
	} else {
		logger.Info().
			Str("host", cfg.Host).
			Int("port", cfg.Port).
			Str("database", cfg.Name).
			Msg("数据库连接成功")
	}

	return d, nil
}

func driverName(cfg *config.DatabaseConfig) string {
	if cfg.Driver == "sqlite" {
		return "sqlite"
	}
	return "postgres"
}

// schema 同时适用于 PostgreSQL 与 SQLite
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		created_at    TEXT NOT NULL,
		start_date    TEXT NOT NULL,
		end_date      TEXT NOT NULL,
		staff_count   INTEGER NOT NULL,
		total_slots   INTEGER NOT NULL,
		filled_slots  INTEGER NOT NULL,
		fill_rate     DOUBLE PRECISION NOT NULL,
		score         DOUBLE PRECISION NOT NULL,
		grade         TEXT NOT NULL,
		feasible      BOOLEAN NOT NULL,
		incomplete    BOOLEAN NOT NULL,
		candidate_id  BIGINT NOT NULL,
		candidates    INTEGER NOT NULL,
		duration_ms   BIGINT NOT NULL,
		fault         TEXT NOT NULL DEFAULT '',
		schedule      TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_grade ON runs(grade)`,
	`CREATE TABLE IF NOT EXISTS candidates (
		run_id        TEXT NOT NULL REFERENCES runs(id),
		id            BIGINT NOT NULL,
		created_at    TEXT NOT NULL,
		score         DOUBLE PRECISION NOT NULL,
		grade         TEXT NOT NULL,
		method        TEXT NOT NULL,
		iteration     INTEGER NOT NULL,
		parent_id     BIGINT,
		features      TEXT NOT NULL,
		schedule      TEXT NOT NULL,
		PRIMARY KEY (run_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_candidates_grade ON candidates(run_id, grade)`,
}

// Migrate 创建运行记录与候选表
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}
	return nil
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	if db.DB != nil {
		logger.Info().Msg("关闭数据库连接")
		return db.DB.Close()
	}
	return nil
}

// Health 健康检查
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Transaction 执行事务
func (db *DB) Transaction(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("事务回滚失败: %v (原始错误: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("事务提交失败: %w", err)
	}

	return nil
}

// Stats 返回数据库统计信息
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// ExecContext 执行SQL语句
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := db.DB.ExecContext(ctx, query, args...)
	logSlow(query, time.Since(start))
	return result, err
}

// QueryxContext 执行查询
func (db *DB) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	start := time.Now()
	rows, err := db.DB.QueryxContext(ctx, query, args...)
	logSlow(query, time.Since(start))
	return rows, err
}

func logSlow(query string, d time.Duration) {
	if d > slowQuery {
		logger.Warn().
			Str("query", truncateQuery(query)).
			Dur("duration", d).
			Msg("慢SQL查询")
	}
}

// truncateQuery 截断长查询
func truncateQuery(query string) string {
	if len(query) > 200 {
		return query[:200] + "..."
	}
	return query
}
