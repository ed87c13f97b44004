package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/paiban/zhiban/pkg/engine"
	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/model"
)

// Run 一次排班运行的存档
type Run struct {
	ID          string         `db:"id" json:"id"`
	CreatedAt   string         `db:"created_at" json:"created_at"`
	StartDate   string         `db:"start_date" json:"start_date"`
	EndDate     string         `db:"end_date" json:"end_date"`
	StaffCount  int            `db:"staff_count" json:"staff_count"`
	TotalSlots  int            `db:"total_slots" json:"total_slots"`
	FilledSlots int            `db:"filled_slots" json:"filled_slots"`
	FillRate    float64        `db:"fill_rate" json:"fill_rate"`
	Score       float64        `db:"score" json:"score"`
	Grade       string         `db:"grade" json:"grade"`
	Feasible    bool           `db:"feasible" json:"feasible"`
	Incomplete  bool           `db:"incomplete" json:"incomplete"`
	CandidateID int64          `db:"candidate_id" json:"candidate_id"`
	Candidates  int            `db:"candidates" json:"candidates"`
	DurationMS  int64          `db:"duration_ms" json:"duration_ms"`
	Fault       string         `db:"fault" json:"fault,omitempty"`
	Schedule    types.JSONText `db:"schedule" json:"schedule"`
}

// DecodeSchedule 解析存档的排班表
func (r *Run) DecodeSchedule() (*model.Schedule, error) {
	var s model.Schedule
	if err := json.Unmarshal(r.Schedule, &s); err != nil {
		return nil, fmt.Errorf("解析排班表失败: %w", err)
	}
	return &s, nil
}

// DecodeFault 解析存档的无解故障，无故障时返回 nil
func (r *Run) DecodeFault() (*errors.InfeasibilityFault, error) {
	if r.Fault == "" {
		return nil, nil
	}
	var f errors.InfeasibilityFault
	if err := json.Unmarshal([]byte(r.Fault), &f); err != nil {
		return nil, fmt.Errorf("解析无解故障失败: %w", err)
	}
	return &f, nil
}

// NewRun 由排班结果构建存档
func NewRun(result *engine.ScheduleResult, createdAt time.Time) (*Run, error) {
	if result == nil || result.Schedule == nil {
		return nil, errors.New(errors.CodeInvalidInput, "排班结果为空")
	}
	schedule, err := json.Marshal(result.Schedule)
	if err != nil {
		return nil, fmt.Errorf("序列化排班表失败: %w", err)
	}
	run := &Run{
		ID:          result.RunID,
		CreatedAt:   createdAt.UTC().Format(time.RFC3339Nano),
		StaffCount:  len(result.Summary.DutyCounts),
		TotalSlots:  result.Summary.TotalSlots,
		FilledSlots: result.Summary.FilledSlots,
		FillRate:    result.Summary.FillRate,
		Score:       result.Score,
		Grade:       result.Grade.String(),
		Feasible:    result.Feasible,
		Incomplete:  result.Incomplete,
		CandidateID: int64(result.CandidateID),
		Candidates:  result.PoolSummary.Candidates,
		DurationMS:  result.Duration.Milliseconds(),
		Schedule:    types.JSONText(schedule),
	}
	if dates := result.Schedule.Dates(); len(dates) > 0 {
		run.StartDate, run.EndDate = dates[0], dates[len(dates)-1]
	}
	if result.Fault != nil {
		fault, err := json.Marshal(result.Fault)
		if err != nil {
			return nil, fmt.Errorf("序列化无解故障失败: %w", err)
		}
		run.Fault = string(fault)
	}
	return run, nil
}

// RunRepository 排班运行仓储
type RunRepository struct {
	db  TxDB
	now func() time.Time
}

// NewRunRepository 创建排班运行仓储
func NewRunRepository(db TxDB) *RunRepository {
	return &RunRepository{db: db, now: time.Now}
}

const runColumns = `id, created_at, start_date, end_date, staff_count,
	total_slots, filled_slots, fill_rate, score, grade, feasible, incomplete,
	candidate_id, candidates, duration_ms, fault, schedule`

// Save 在同一事务中保存运行结果及其候选池
func (r *RunRepository) Save(ctx context.Context, result *engine.ScheduleResult) (*Run, error) {
	run, err := NewRun(result, r.now())
	if err != nil {
		return nil, err
	}

	var records []candidateRow
	if result.Pool != nil {
		if records, err = candidateRows(run.ID, result.Pool.Export(true)); err != nil {
			return nil, err
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "开始事务失败")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO runs (` + runColumns + `) VALUES (
			:id, :created_at, :start_date, :end_date, :staff_count,
			:total_slots, :filled_slots, :fill_rate, :score, :grade, :feasible, :incomplete,
			:candidate_id, :candidates, :duration_ms, :fault, :schedule
		)
	`
	if _, err = tx.NamedExecContext(ctx, query, run); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "创建排班运行记录失败")
	}
	if err = insertCandidates(ctx, tx, records); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "事务提交失败")
	}
	return run, nil
}

// GetByID 根据ID获取运行记录
func (r *RunRepository) GetByID(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	query := r.db.Rebind(`SELECT ` + runColumns + ` FROM runs WHERE id = ?`)
	if err := r.db.GetContext(ctx, run, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("排班运行", id)
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询排班运行失败")
	}
	return run, nil
}

// GetLatest 获取最近一次运行
func (r *RunRepository) GetLatest(ctx context.Context) (*Run, error) {
	runs, _, err := r.List(ctx, DefaultListFilter().WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.NotFound("排班运行", "latest")
	}
	return runs[0], nil
}

// List 列出运行记录，返回当前页与总数
func (r *RunRepository) List(ctx context.Context, filter ListFilter) ([]*Run, int, error) {
	filter = filter.normalize()

	var conditions []string
	var args []interface{}

	if filter.Grade != "" {
		conditions = append(conditions, "grade = ?")
		args = append(args, filter.Grade)
	}
	if filter.StartDate != "" {
		conditions = append(conditions, "start_date >= ?")
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		conditions = append(conditions, "end_date <= ?")
		args = append(args, filter.EndDate)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// 计数
	var total int
	countQuery := r.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM runs %s", whereClause))
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "统计排班运行数量失败")
	}

	// 查询
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT %s FROM runs %s
		ORDER BY %s %s, id
		LIMIT ? OFFSET ?
	`, runColumns, whereClause, filter.OrderBy, filter.OrderDir))
	args = append(args, filter.Limit, filter.Offset)

	var runs []*Run
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "查询排班运行列表失败")
	}
	return runs, total, nil
}

// Delete 删除运行及其候选
func (r *RunRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "开始事务失败")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// 先删除候选
	if _, err = tx.ExecContext(ctx, tx.Rebind("DELETE FROM candidates WHERE run_id = ?"), id); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "删除候选失败")
	}

	// 再删除运行
	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM runs WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "删除排班运行失败")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("排班运行", id)
	}
	return tx.Commit()
}

var _ DB = (*sqlx.Tx)(nil)
