// Package repository 提供排班运行与候选池的持久化
package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// ListFilter 列表查询过滤器
type ListFilter struct {
	Grade     string `json:"grade,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Offset    int    `json:"offset"`
	Limit     int    `json:"limit"`
	OrderBy   string `json:"order_by,omitempty"`
	OrderDir  string `json:"order_dir,omitempty"` // asc/desc
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{
		Offset:   0,
		Limit:    20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// WithLimit 设置限制
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithOffset 设置偏移
func (f ListFilter) WithOffset(offset int) ListFilter {
	f.Offset = offset
	return f
}

// WithGrade 设置等级过滤
func (f ListFilter) WithGrade(grade string) ListFilter {
	f.Grade = grade
	return f
}

// WithDateRange 设置日期范围
func (f ListFilter) WithDateRange(start, end string) ListFilter {
	f.StartDate = start
	f.EndDate = end
	return f
}

// orderColumns 允许排序的列
var orderColumns = map[string]bool{
	"created_at": true,
	"score":      true,
	"fill_rate":  true,
	"start_date": true,
}

// normalize 修正非法的分页与排序参数，避免拼接任意列名
func (f ListFilter) normalize() ListFilter {
	d := DefaultListFilter()
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = d.Limit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if !orderColumns[f.OrderBy] {
		f.OrderBy = d.OrderBy
	}
	if f.OrderDir != "asc" && f.OrderDir != "desc" {
		f.OrderDir = d.OrderDir
	}
	return f
}

// DB 数据库接口，*database.DB 与 *sqlx.Tx 均满足
type DB interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// TxDB 可开启事务的数据库
type TxDB interface {
	DB
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}
