package pool

import (
	"github.com/paiban/zhiban/pkg/features"
	"github.com/paiban/zhiban/pkg/logger"
	"github.com/paiban/zhiban/pkg/model"
)

// Recorder 把搜索阶段产生的值班表提取特征后写入候选池
// 供束搜索与约束回填使用
type Recorder struct {
	pool      *Pool
	extractor *features.Extractor
}

// NewRecorder 创建记录器
func NewRecorder(p *Pool, extractor *features.Extractor) *Recorder {
	return &Recorder{pool: p, extractor: extractor}
}

// Pool 所属候选池
func (r *Recorder) Pool() *Pool {
	return r.pool
}

// Record 记录候选；失败时记日志并返回 0
func (r *Recorder) Record(schedule *model.Schedule, breakdown model.ScoreBreakdown, method model.GenerationMethod, iteration int, parent model.CandidateID) model.CandidateID {
	id, err := r.pool.Record(RecordInput{
		Schedule:  schedule,
		Breakdown: breakdown,
		Features:  r.extractor.ExtractWithBreakdown(schedule, breakdown),
		Method:    method,
		Iteration: iteration,
		ParentID:  parent,
	})
	if err != nil {
		logger.Warn().Err(err).Str("method", string(method)).Int("iteration", iteration).Msg("记录候选失败")
		return 0
	}
	return id
}
