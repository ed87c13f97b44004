// Package solver 提供值班表求解器
package solver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/paiban/zhiban/pkg/logger"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
	"github.com/paiban/zhiban/pkg/scheduler/scorer"
)

// Solver 求解器接口
type Solver interface {
	// Solve 在给定值班表基础上填补空缺岗位，不修改入参
	Solve(ctx context.Context, start *model.Schedule) (*Result, error)

	// Name 返回求解器名称
	Name() string
}

// Result 求解结果
type Result struct {
	Schedule         *model.Schedule      `json:"schedule"`
	Score            float64              `json:"score"`
	Breakdown        model.ScoreBreakdown `json:"breakdown"`
	Statistics       *Statistics          `json:"statistics"`
	ConstraintResult *constraint.Result   `json:"constraint_result"`
	Duration         time.Duration        `json:"duration"`
	Success          bool                 `json:"success"`
	Message          string               `json:"message,omitempty"`
}

// Statistics 排班统计
type Statistics struct {
	TotalSlots       int     `json:"total_slots"`
	FilledSlots      int     `json:"filled_slots"`
	Assignments      int     `json:"assignments"` // 本次新增的分配
	FillRate         float64 `json:"fill_rate"`
	AvgDutiesPerHead float64 `json:"avg_duties_per_head"`
	Iterations       int     `json:"iterations"`
}

// GreedySolver 贪心求解器：按日期顺序，每个空缺岗位选值班最少的合法人员
type GreedySolver struct {
	domain            *model.Domain
	constraintManager *constraint.Manager
	scorer            *scorer.Scorer
	logger            *logger.SchedulerLogger
	maxIterations     int
}

// NewGreedySolver 创建贪心求解器
func NewGreedySolver(domain *model.Domain, cm *constraint.Manager) *GreedySolver {
	return &GreedySolver{
		domain:            domain,
		constraintManager: cm,
		scorer:            scorer.New(domain),
		logger:            logger.NewSchedulerLogger(),
		maxIterations:     0,
	}
}

// Name 返回求解器名称
func (s *GreedySolver) Name() string {
	return "GreedySolver"
}

// SetMaxIterations 设置最大迭代次数，0 表示不限
func (s *GreedySolver) SetMaxIterations(max int) {
	s.maxIterations = max
}

// SetLogger 替换日志器
func (s *GreedySolver) SetLogger(l *logger.SchedulerLogger) {
	s.logger = l
}

// Solve 使用贪心算法填补空缺
func (s *GreedySolver) Solve(ctx context.Context, start *model.Schedule) (*Result, error) {
	startTime := time.Now()
	d := s.domain

	if start == nil {
		start = d.NewSchedule()
	}
	work := start.Clone()
	tally := s.scorer.Tally(work)

	result := &Result{Statistics: &Statistics{TotalSlots: d.TotalSlots()}}
	if d.StaffCount() == 0 {
		return result, fmt.Errorf("没有可用医师")
	}

	iterations := 0
	assigned := 0

fill:
	for di := 0; di < d.DateCount(); di++ {
		for _, role := range d.Roles() {
			if work.GetAt(di, role).IsPresent() {
				continue
			}
			if err := ctx.Err(); err != nil {
				return s.finish(result, work, tally, assigned, iterations, startTime), err
			}

			iterations++
			if s.maxIterations > 0 && iterations > s.maxIterations {
				break fill
			}

			candidates := s.getCandidates(tally.Context(d, work), tally, di, role)
			if len(candidates) == 0 {
				s.logger.StructuralGap(d.Date(di), role.String())
				continue
			}

			staff := candidates[0]
			s.scorer.Assign(tally, work, di, role, staff)
			work.SetAt(di, role, model.Assigned(d.StaffAt(staff).ID))
			assigned++
		}
	}

	s.finish(result, work, tally, assigned, iterations, startTime)
	s.logger.ScheduleComplete(result.Duration, result.Score, s.scorer.Grade(result.Breakdown).String(), result.Breakdown.Unfilled)
	return result, nil
}

func (s *GreedySolver) finish(result *Result, work *model.Schedule, tally *scorer.Tally, assigned, iterations int, startTime time.Time) *Result {
	d := s.domain
	result.Schedule = work
	result.Breakdown = s.scorer.Breakdown(tally)
	result.Score = result.Breakdown.Total
	result.ConstraintResult = s.constraintManager.Evaluate(constraint.NewContext(d, work))
	result.Duration = time.Since(startTime)

	st := result.Statistics
	st.FilledSlots = st.TotalSlots - result.Breakdown.Unfilled
	st.Assignments = assigned
	st.Iterations = iterations
	if st.TotalSlots > 0 {
		st.FillRate = float64(st.FilledSlots) / float64(st.TotalSlots)
	}

	duties, active := 0, 0
	for si := 0; si < d.StaffCount(); si++ {
		if n := tally.Duties(si); n > 0 {
			duties += n
			active++
		}
	}
	if active > 0 {
		st.AvgDutiesPerHead = float64(duties) / float64(active)
	}

	result.Success = result.ConstraintResult.IsValid && result.Breakdown.Unfilled == 0
	switch {
	case !result.ConstraintResult.IsValid:
		result.Message = fmt.Sprintf("存在 %d 个硬约束违反", result.ConstraintResult.HardCount)
	case result.Breakdown.Unfilled > 0:
		result.Message = fmt.Sprintf("仍有 %d 个空缺岗位，填充率 %.1f%%", result.Breakdown.Unfilled, st.FillRate*100)
	default:
		result.Message = "排班成功，全部岗位已填满"
	}
	return result
}

// getCandidates 合法人员按值班次数升序排列，同次数按人员标识
func (s *GreedySolver) getCandidates(ctx *constraint.Context, tally *scorer.Tally, date int, role model.Role) []int {
	candidates := s.constraintManager.Legal(ctx, date, role)
	sort.SliceStable(candidates, func(i, j int) bool {
		return tally.Duties(candidates[i]) < tally.Duties(candidates[j])
	})
	return candidates
}
