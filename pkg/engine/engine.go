// Package engine 串联束搜索、约束回填与候选池，对外提供一次完整的排班运行
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/paiban/zhiban/pkg/analyzer"
	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/features"
	"github.com/paiban/zhiban/pkg/logger"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/pool"
	"github.com/paiban/zhiban/pkg/scheduler/beam"
	"github.com/paiban/zhiban/pkg/scheduler/constraint/builtin"
	"github.com/paiban/zhiban/pkg/scheduler/csp"
	"github.com/paiban/zhiban/pkg/scheduler/scorer"
	"github.com/paiban/zhiban/pkg/scheduler/solver"
	"github.com/paiban/zhiban/pkg/validator"
)

// Request 一次排班运行的输入
type Request struct {
	Staff       []*model.Staff
	Constraints model.ConstraintSet
	Weekdays    []string
	Holidays    []string
	Progress    chan<- model.Progress // 可为 nil
}

// Summary 结果统计
type Summary struct {
	TotalSlots       int            `json:"total_slots"`
	FilledSlots      int            `json:"filled_slots"`
	FillRate         float64        `json:"fill_rate"`
	DutyCounts       map[string]int `json:"duty_counts"`
	AvgDutiesPerHead float64        `json:"avg_duties_per_head"`
}

// BeamStats 束搜索阶段统计
type BeamStats struct {
	Steps      int             `json:"steps"`
	Completed  bool            `json:"completed"`
	Successors int             `json:"successors"`
	Gaps       []model.SlotRef `json:"gaps,omitempty"`
	BestScore  float64         `json:"best_score"`
	Duration   time.Duration   `json:"duration"`
}

// ScheduleResult 排班结果
type ScheduleResult struct {
	RunID       string                     `json:"run_id"`
	Analysis    *analyzer.Report           `json:"analysis"`
	Schedule    *model.Schedule            `json:"schedule"`
	Score       float64                    `json:"score"`
	Breakdown   model.ScoreBreakdown       `json:"breakdown"`
	Grade       model.Grade                `json:"grade"`
	CandidateID model.CandidateID          `json:"candidate_id"`
	Unfilled    []model.SlotRef            `json:"unfilled"`
	Summary     Summary                    `json:"summary"`
	Features    features.Features          `json:"features"`
	Incomplete  bool                       `json:"incomplete"`
	Feasible    bool                       `json:"feasible"`
	Fault       *errors.InfeasibilityFault `json:"fault,omitempty"`
	Beam        BeamStats                  `json:"beam"`
	CSP         csp.Stats                  `json:"csp"`
	Conflicts   []validator.Conflict       `json:"conflicts,omitempty"`
	Suggestions []solver.Suggestion        `json:"suggestions,omitempty"`
	PoolSummary pool.Summary               `json:"pool_summary"`
	Pool        *pool.Pool                 `json:"-"`
	Duration    time.Duration              `json:"duration"`
}

// Engine 排班引擎
type Engine struct {
	logger *logger.SchedulerLogger
}

// New 创建引擎
func New() *Engine {
	return &Engine{logger: logger.NewSchedulerLogger()}
}

// SetLogger 替换日志器
func (e *Engine) SetLogger(l *logger.SchedulerLogger) {
	e.logger = l
}

// RunScheduling 使用默认引擎完成一次排班
func RunScheduling(ctx context.Context, staff []*model.Staff, cs model.ConstraintSet, weekdays, holidays []string, progress chan<- model.Progress) (*ScheduleResult, error) {
	return New().Run(ctx, Request{
		Staff:       staff,
		Constraints: cs,
		Weekdays:    weekdays,
		Holidays:    holidays,
		Progress:    progress,
	})
}

// Run 执行一次排班：校验、排班前分析、束搜索、约束回填、汇总
// 输入不合法时返回 VALIDATION_FAILED 且不返回结果
// 回填证明无解时同时返回尽力而为的结果与 *errors.InfeasibilityFault
// 预算耗尽或取消不是错误，结果的 Incomplete 为 true
func (e *Engine) Run(ctx context.Context, req Request) (*ScheduleResult, error) {
	start := time.Now()

	cs := req.Constraints
	cs.Weekdays = append([]string(nil), req.Weekdays...)
	cs.Holidays = append([]string(nil), req.Holidays...)
	if len(cs.Thresholds) == 0 {
		cs.Thresholds = model.DefaultThresholds()
	}

	if ve := Validate(req.Staff, cs, cs.Weekdays, cs.Holidays); ve != nil {
		return nil, ve.ToAppError()
	}
	domain, err := model.NewDomain(req.Staff, cs)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationFail, "构建运行视图失败")
	}

	runID := uuid.NewString()
	log := e.logger.With(runID)

	report := analyzer.Analyze(domain)
	log.Analysis(string(report.Difficulty), report.DifficultyScore, report.Feasibility.Feasible, report.Bottlenecks)

	manager := builtin.NewDutyManager(cs)
	manager.SetLogger(log)
	sc := scorer.New(domain)
	extractor := features.NewExtractor(domain, sc)
	ledger := pool.New(cs.Thresholds)
	recorder := pool.NewRecorder(ledger, extractor)

	searcher := beam.New(domain, manager, sc, beam.ConfigFrom(cs))
	searcher.SetRecorder(recorder)
	searcher.SetProgress(req.Progress)
	searcher.SetLogger(log)
	br := searcher.Run(ctx)

	backfill := csp.NewSolver(domain, manager, sc, cs.CSPTimeout)
	backfill.SetRecorder(recorder)
	backfill.SetProgress(req.Progress)
	backfill.SetLogger(log)
	cr, solveErr := backfill.Solve(ctx, br.Best.Schedule, br.Best.ID)

	var fault *errors.InfeasibilityFault
	if solveErr != nil && !errors.As(solveErr, &fault) {
		return nil, errors.Wrap(solveErr, errors.CodeInternal, "约束回填失败")
	}

	final := cr.Schedule
	finalID := cr.CandidateID
	switch {
	case fault != nil:
		// 无解时以贪心补齐仍可合法填入的岗位，作为尽力而为的结果
		greedy := solver.NewGreedySolver(domain, manager)
		greedy.SetLogger(log)
		if gr, gerr := greedy.Solve(ctx, final); gr != nil {
			final = gr.Schedule
			if gerr != nil {
				log.BudgetExceeded("greedy", len(final.Unfilled(domain.Roles())))
			}
		}
		_, b := sc.Score(final)
		finalID = recorder.Record(final, b, model.MethodGreedyFill, cr.Stats.Steps, br.Best.ID)
	case cr.Stats.Variables == 0:
		finalID = br.Best.ID
	case !cr.Complete:
		_, b := sc.Score(final)
		finalID = recorder.Record(final, b, model.MethodCSPBackfill, cr.Stats.Steps, br.Best.ID)
	}

	score, breakdown := sc.Score(final)
	result := &ScheduleResult{
		RunID:       runID,
		Analysis:    report,
		Schedule:    final,
		Score:       score,
		Breakdown:   breakdown,
		Grade:       sc.Grade(breakdown),
		CandidateID: finalID,
		Unfilled:    final.Unfilled(domain.Roles()),
		Summary:     summarize(domain, final),
		Features:    extractor.ExtractWithBreakdown(final, breakdown),
		Fault:       fault,
		Beam: BeamStats{
			Steps:      br.Steps,
			Completed:  br.Completed,
			Successors: br.Successors,
			Gaps:       br.Gaps,
			BestScore:  br.Best.Score,
			Duration:   br.Duration,
		},
		CSP:         cr.Stats,
		Conflicts:   validator.ForDomain(domain).DetectAll(domain, final),
		Suggestions: solver.Suggest(domain, manager, final, solver.DefaultSuggestionLimit),
		Pool:        ledger,
	}
	if c, ok := ledger.Get(finalID); ok {
		result.Grade = c.Grade
	}
	result.Incomplete = fault == nil && len(result.Unfilled) > 0
	result.Feasible = fault == nil && breakdown.HardViolations == 0
	result.PoolSummary = ledger.Finalize()
	result.Duration = time.Since(start)

	log.ScheduleComplete(result.Duration, score, result.Grade.String(), len(result.Unfilled))

	if fault != nil {
		return result, fault
	}
	return result, nil
}

func summarize(domain *model.Domain, schedule *model.Schedule) Summary {
	total := domain.TotalSlots()
	unfilled := len(schedule.Unfilled(domain.Roles()))
	counts := schedule.DutyCounts()

	s := Summary{
		TotalSlots:  total,
		FilledSlots: total - unfilled,
		DutyCounts:  make(map[string]int, domain.StaffCount()),
	}
	if total > 0 {
		s.FillRate = float64(s.FilledSlots) / float64(total)
	}
	assigned := 0
	for _, st := range domain.StaffList() {
		s.DutyCounts[st.ID] = counts[st.ID]
		assigned += counts[st.ID]
	}
	if domain.StaffCount() > 0 {
		s.AvgDutiesPerHead = float64(assigned) / float64(domain.StaffCount())
	}
	return s
}
