package pool

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/paiban/zhiban/pkg/features"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/samber/lo"
)

// ExportRecord 候选的导出格式
type ExportRecord struct {
	ID               string             `json:"id"`
	Timestamp        string             `json:"timestamp"`
	Score            float64            `json:"score"`
	Grade            model.Grade        `json:"grade"`
	Features         map[string]float64 `json:"features"`
	GenerationMethod string             `json:"generation_method"`
	Iteration        int                `json:"iteration"`
	ParentID         *string            `json:"parent_id"`
	Schedule         *model.Schedule    `json:"schedule,omitempty"`
}

// Export 候选转为导出记录
func (c *Candidate) Export(withSchedule bool) ExportRecord {
	r := ExportRecord{
		ID:               c.ID.String(),
		Timestamp:        c.Timestamp.UTC().Format(time.RFC3339Nano),
		Score:            c.Score,
		Grade:            c.Grade,
		Features:         c.Features.ToMap(),
		GenerationMethod: string(c.Method),
		Iteration:        c.Iteration,
	}
	if c.HasParent() {
		parent := c.ParentID.String()
		r.ParentID = &parent
	}
	if withSchedule {
		r.Schedule = c.Schedule
	}
	return r
}

// Candidate 导出记录还原为候选
func (r ExportRecord) Candidate() (*Candidate, error) {
	id, err := model.ParseCandidateID(r.ID)
	if err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("时间戳格式错误 %q: %w", r.Timestamp, err)
	}
	method := model.GenerationMethod(r.GenerationMethod)
	if !method.Valid() {
		return nil, fmt.Errorf("未知生成方式: %q", r.GenerationMethod)
	}
	c := &Candidate{
		ID:        id,
		Timestamp: ts,
		Schedule:  r.Schedule,
		Score:     r.Score,
		Breakdown: model.ScoreBreakdown{Total: r.Score},
		Features:  features.FromMap(r.Features),
		Grade:     r.Grade,
		Method:    method,
		Iteration: r.Iteration,
	}
	if r.ParentID != nil {
		if c.ParentID, err = model.ParseCandidateID(*r.ParentID); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Export 按插入顺序导出全部候选
func (p *Pool) Export(withSchedule bool) []ExportRecord {
	return lo.Map(p.All(), func(c *Candidate, _ int) ExportRecord {
		return c.Export(withSchedule)
	})
}

// WriteJSON 以 JSON 数组写出全部候选
func (p *Pool) WriteJSON(w io.Writer, withSchedule bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p.Export(withSchedule))
}

// ReadJSON 读取 JSON 导出
func ReadJSON(r io.Reader) ([]ExportRecord, error) {
	var records []ExportRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("解析候选导出失败: %w", err)
	}
	return records, nil
}

// FromExport 由导出记录重建封存的候选池，保留原标识、等级与时间戳
func FromExport(records []ExportRecord, thresholds []model.GradeThreshold) (*Pool, error) {
	p := New(thresholds)
	for _, r := range records {
		c, err := r.Candidate()
		if err != nil {
			return nil, err
		}
		if c.HasParent() {
			if _, ok := p.Get(c.ParentID); !ok {
				return nil, fmt.Errorf("候选 %s 的父候选 %s 不存在", c.ID, c.ParentID)
			}
		}
		if err := p.restore(c); err != nil {
			return nil, err
		}
	}
	p.Finalize()
	return p, nil
}

var csvHeader = []string{"id", "timestamp", "score", "grade", "generation_method", "iteration", "parent_id"}

// WriteCSV 以 CSV 写出全部候选，特征按名称排序展开为列
func (p *Pool) WriteCSV(w io.Writer) error {
	names := features.Names()
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string(nil), csvHeader...), names...)); err != nil {
		return err
	}
	for _, r := range p.Export(false) {
		parent := ""
		if r.ParentID != nil {
			parent = *r.ParentID
		}
		row := []string{
			r.ID,
			r.Timestamp,
			formatFloat(r.Score),
			r.Grade.String(),
			r.GenerationMethod,
			strconv.Itoa(r.Iteration),
			parent,
		}
		for _, name := range names {
			row = append(row, formatFloat(r.Features[name]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SupervisedRow 监督学习样本：特征加衍生指标与等级编码
type SupervisedRow struct {
	ID           string             `json:"id"`
	Features     map[string]float64 `json:"features"`
	Score        float64            `json:"score"`
	Efficiency   float64            `json:"efficiency"`
	BalanceScore float64            `json:"balance_score"`
	QualityIndex float64            `json:"quality_index"`
	GradeEncoded int                `json:"grade_encoded"`
}

// SupervisedRows 生成监督学习样本
// quality_index 中的硬违反与平衡项按全池最大值归一
func (p *Pool) SupervisedRows() []SupervisedRow {
	all := p.All()
	rows := make([]SupervisedRow, len(all))
	maxHard, maxBalance := 0.0, 0.0
	for i, c := range all {
		f := c.Features
		rows[i] = SupervisedRow{
			ID:           c.ID.String(),
			Features:     f.ToMap(),
			Score:        c.Score,
			Efficiency:   f.FillRate / float64(f.HardViolations+1),
			BalanceScore: 1 / (f.DutyStdDev + 1),
			GradeEncoded: c.Grade.Encoded(),
		}
		maxHard = max(maxHard, float64(f.HardViolations))
		maxBalance = max(maxBalance, rows[i].BalanceScore)
	}
	for i, c := range all {
		hardTerm := 1.0
		if maxHard > 0 {
			hardTerm = 1 - float64(c.Features.HardViolations)/maxHard
		}
		balanceTerm := 0.0
		if maxBalance > 0 {
			balanceTerm = rows[i].BalanceScore / maxBalance
		}
		rows[i].QualityIndex = c.Features.FillRate*0.4 + hardTerm*0.3 + c.Features.PreferenceRate*0.2 + balanceTerm*0.1
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
