package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx/types"
	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/pool"
)

// insertBatch 每批写入的候选数
const insertBatch = 200

type candidateRow struct {
	RunID     string         `db:"run_id"`
	ID        int64          `db:"id"`
	CreatedAt string         `db:"created_at"`
	Score     float64        `db:"score"`
	Grade     string         `db:"grade"`
	Method    string         `db:"method"`
	Iteration int            `db:"iteration"`
	ParentID  sql.NullInt64  `db:"parent_id"`
	Features  types.JSONText `db:"features"`
	Schedule  types.JSONText `db:"schedule"`
}

func candidateRows(runID string, records []pool.ExportRecord) ([]candidateRow, error) {
	rows := make([]candidateRow, 0, len(records))
	for _, rec := range records {
		id, err := model.ParseCandidateID(rec.ID)
		if err != nil {
			return nil, err
		}
		feats, err := json.Marshal(rec.Features)
		if err != nil {
			return nil, fmt.Errorf("序列化候选特征失败: %w", err)
		}
		schedule, err := json.Marshal(rec.Schedule)
		if err != nil {
			return nil, fmt.Errorf("序列化候选排班失败: %w", err)
		}
		row := candidateRow{
			RunID:     runID,
			ID:        int64(id),
			CreatedAt: rec.Timestamp,
			Score:     rec.Score,
			Grade:     rec.Grade.String(),
			Method:    rec.GenerationMethod,
			Iteration: rec.Iteration,
			Features:  types.JSONText(feats),
			Schedule:  types.JSONText(schedule),
		}
		if rec.ParentID != nil {
			parent, err := model.ParseCandidateID(*rec.ParentID)
			if err != nil {
				return nil, err
			}
			row.ParentID = sql.NullInt64{Int64: int64(parent), Valid: true}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (row candidateRow) record(withSchedule bool) (pool.ExportRecord, error) {
	grade, err := model.ParseGrade(row.Grade)
	if err != nil {
		return pool.ExportRecord{}, err
	}
	rec := pool.ExportRecord{
		ID:               model.CandidateID(row.ID).String(),
		Timestamp:        row.CreatedAt,
		Score:            row.Score,
		Grade:            grade,
		GenerationMethod: row.Method,
		Iteration:        row.Iteration,
	}
	if err := json.Unmarshal(row.Features, &rec.Features); err != nil {
		return pool.ExportRecord{}, fmt.Errorf("解析候选特征失败: %w", err)
	}
	if row.ParentID.Valid {
		parent := model.CandidateID(row.ParentID.Int64).String()
		rec.ParentID = &parent
	}
	if withSchedule {
		var s *model.Schedule
		if err := json.Unmarshal(row.Schedule, &s); err != nil {
			return pool.ExportRecord{}, fmt.Errorf("解析候选排班失败: %w", err)
		}
		rec.Schedule = s
	}
	return rec, nil
}

func insertCandidates(ctx context.Context, db DB, rows []candidateRow) error {
	query := `
		INSERT INTO candidates (
			run_id, id, created_at, score, grade, method, iteration, parent_id, features, schedule
		) VALUES (
			:run_id, :id, :created_at, :score, :grade, :method, :iteration, :parent_id, :features, :schedule
		)
	`
	for start := 0; start < len(rows); start += insertBatch {
		end := min(start+insertBatch, len(rows))
		if _, err := db.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "批量写入候选失败")
		}
	}
	return nil
}

// CandidateRepository 候选池仓储
type CandidateRepository struct {
	db DB
}

// NewCandidateRepository 创建候选池仓储
func NewCandidateRepository(db DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

const candidateColumns = `run_id, id, created_at, score, grade, method, iteration, parent_id, features, schedule`

// ListByRun 按编号顺序列出某次运行的全部候选
func (r *CandidateRepository) ListByRun(ctx context.Context, runID string, withSchedule bool) ([]pool.ExportRecord, error) {
	var rows []candidateRow
	query := r.db.Rebind(`SELECT ` + candidateColumns + ` FROM candidates WHERE run_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询候选失败")
	}
	records := make([]pool.ExportRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record(withSchedule)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetByID 获取单个候选
func (r *CandidateRepository) GetByID(ctx context.Context, runID string, id model.CandidateID) (*pool.ExportRecord, error) {
	var row candidateRow
	query := r.db.Rebind(`SELECT ` + candidateColumns + ` FROM candidates WHERE run_id = ? AND id = ?`)
	if err := r.db.GetContext(ctx, &row, query, runID, int64(id)); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("候选", id.String())
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询候选失败")
	}
	rec, err := row.record(true)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountByGrade 统计某次运行各等级的候选数
func (r *CandidateRepository) CountByGrade(ctx context.Context, runID string) (map[string]int, error) {
	var rows []struct {
		Grade string `db:"grade"`
		Count int    `db:"n"`
	}
	query := r.db.Rebind(`SELECT grade, COUNT(*) AS n FROM candidates WHERE run_id = ? GROUP BY grade`)
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "统计候选等级失败")
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Grade] = row.Count
	}
	return counts, nil
}

// LoadPool 从存档重建只读候选池
func (r *CandidateRepository) LoadPool(ctx context.Context, runID string, thresholds []model.GradeThreshold) (*pool.Pool, error) {
	records, err := r.ListByRun(ctx, runID, true)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NotFound("候选池", runID)
	}
	p, err := pool.FromExport(records, thresholds)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "重建候选池失败")
	}
	return p, nil
}
