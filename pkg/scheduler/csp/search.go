package csp

import (
	"context"
	"sort"
	"time"

	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/logger"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
	"github.com/paiban/zhiban/pkg/scheduler/scorer"
)

// Recorder 记录回填得到的候选，返回候选标识
type Recorder interface {
	Record(schedule *model.Schedule, breakdown model.ScoreBreakdown, method model.GenerationMethod, iteration int, parent model.CandidateID) model.CandidateID
}

// Stats 回填统计
type Stats struct {
	Variables   int           `json:"variables"`
	Steps       int           `json:"steps"`
	Assignments int           `json:"assignments"`
	Backjumps   int           `json:"backjumps"`
	Prunings    int           `json:"prunings"`     // 前向检查删除的取值数
	AC3Removals int           `json:"ac3_removals"` // 弧相容删除的取值数
	Duration    time.Duration `json:"duration"`
}

// Result 回填结果
type Result struct {
	Schedule    *model.Schedule   `json:"schedule"`
	Complete    bool              `json:"complete"`   // 全部空缺已填
	Incomplete  bool              `json:"incomplete"` // 预算耗尽或被取消
	Remaining   []model.SlotRef   `json:"remaining"`
	Stats       Stats             `json:"stats"`
	CandidateID model.CandidateID `json:"candidate_id,omitempty"`
}

// Solver 回填求解器
type Solver struct {
	domain  *model.Domain
	manager *constraint.Manager
	scorer  *scorer.Scorer
	timeout time.Duration

	recorder Recorder
	progress chan<- model.Progress
	logger   *logger.SchedulerLogger
}

// NewSolver 创建回填求解器；timeout 为 0 表示不限时
func NewSolver(domain *model.Domain, manager *constraint.Manager, sc *scorer.Scorer, timeout time.Duration) *Solver {
	return &Solver{
		domain:  domain,
		manager: manager,
		scorer:  sc,
		timeout: timeout,
		logger:  logger.NewSchedulerLogger(),
	}
}

// SetRecorder 设置候选记录器
func (s *Solver) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetProgress 设置进度通道
func (s *Solver) SetProgress(ch chan<- model.Progress) {
	s.progress = ch
}

// SetLogger 替换日志器
func (s *Solver) SetLogger(l *logger.SchedulerLogger) {
	s.logger = l
}

// Solve 回填 base 中的空缺岗位，不修改 base
// 证明无解时返回 *errors.InfeasibilityFault，同时返回尽力而为的结果
// 预算耗尽或上下文取消不是错误：Incomplete 为 true，Remaining 列出剩余空缺
func (s *Solver) Solve(ctx context.Context, base *model.Schedule, parent model.CandidateID) (*Result, error) {
	start := time.Now()
	var deadline time.Time
	if s.timeout > 0 {
		deadline = start.Add(s.timeout)
	}

	p := NewProblem(s.domain, s.manager, base)
	result := &Result{Schedule: base.Clone(), Stats: Stats{Variables: p.Len()}}
	defer func() { result.Stats.Duration = time.Since(start) }()

	if p.Len() == 0 {
		result.Complete = true
		return result, nil
	}
	s.logger.CSPStart(p.Len(), s.timeout)

	if fault := p.CheckUnary(); fault != nil {
		return s.infeasible(result, fault)
	}

	before := p.arena.total()
	ok, fault := p.Propagate(ctx, deadline)
	result.Stats.AC3Removals = before - p.arena.total()
	if fault != nil {
		return s.infeasible(result, fault)
	}
	if !ok {
		return s.incomplete(result), nil
	}

	sr := newSearch(p, s.scorer, base, &result.Stats)
	status, exhausted := sr.run(ctx, deadline, s.progress)
	switch status {
	case statusSolved:
		result.Schedule = sr.work.Clone()
		result.Complete = true
		if s.recorder != nil {
			_, b := s.scorer.Score(result.Schedule)
			result.CandidateID = s.recorder.Record(result.Schedule, b, model.MethodCSPBackfill, result.Stats.Steps, parent)
		}
		return result, nil
	case statusExhausted:
		result.Schedule = sr.best
		return s.infeasible(result, p.fault("回溯搜索穷尽全部取值", []int{exhausted.v}, exhausted.drained))
	default:
		result.Schedule = sr.best
		return s.incomplete(result), nil
	}
}

func (s *Solver) infeasible(result *Result, fault *errors.InfeasibilityFault) (*Result, error) {
	result.Remaining = result.Schedule.Unfilled(s.domain.Roles())
	s.logger.Infeasible(fault.Variables, fault.Constraints)
	return result, fault
}

func (s *Solver) incomplete(result *Result) *Result {
	result.Incomplete = true
	result.Remaining = result.Schedule.Unfilled(s.domain.Roles())
	s.logger.BudgetExceeded(string(model.PhaseCSP), len(result.Remaining))
	return result
}

type status int

const (
	statusSolved status = iota
	statusExhausted
	statusBudget
)

// frame 搜索栈的一层：一个变量及其取值顺序
type frame struct {
	v       int
	depth   int
	values  []int // 按最少约束排序
	next    int
	conf    varSet
	drained map[constraint.Type]bool

	assigned bool
	prev     *scorer.Tally
}

// search 前向检查 + 冲突回跳，显式栈实现
type search struct {
	p      *Problem
	scorer *scorer.Scorer
	work   *model.Schedule
	tally  *scorer.Tally
	stats  *Stats

	stack    []*frame
	depthOf  []int // 0 表示未赋值
	value    []int
	holdings [][]int // 每位人员当前持有的变量，按赋值顺序

	best         *model.Schedule
	bestAssigned int
	bestScore    float64
}

func newSearch(p *Problem, sc *scorer.Scorer, base *model.Schedule, stats *Stats) *search {
	work := base.Clone()
	tally := sc.Tally(work)
	return &search{
		p:         p,
		scorer:    sc,
		work:      work,
		tally:     tally,
		stats:     stats,
		depthOf:   make([]int, len(p.vars)),
		value:     make([]int, len(p.vars)),
		holdings:  make([][]int, p.domain.StaffCount()),
		best:      work.Clone(),
		bestScore: sc.Breakdown(tally).Total,
	}
}

func (s *search) top() *frame {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *search) run(ctx context.Context, deadline time.Time, progress chan<- model.Progress) (status, *frame) {
	for {
		if budgetOut(ctx, deadline) {
			return statusBudget, nil
		}
		s.stats.Steps++
		model.Notify(progress, model.Progress{
			Phase:     model.PhaseCSP,
			Iteration: s.stats.Steps,
			BestScore: s.bestScore,
			Unfilled:  len(s.p.vars) - s.bestAssigned,
		})

		f := s.top()
		if f == nil || f.assigned {
			v := s.selectVar()
			if v < 0 {
				return statusSolved, nil
			}
			s.push(v)
			continue
		}

		if f.next < len(f.values) {
			t := f.values[f.next]
			f.next++
			s.assign(f, t)
			if u := s.forwardCheck(f); u >= 0 {
				s.p.arena.culprits(u, f.conf)
				f.conf.remove(f.v)
				for typ := range s.p.drains[u] {
					f.drained[typ] = true
				}
				s.unassign(f)
				continue
			}
			s.noteBest()
			continue
		}

		// 取值耗尽，回跳到冲突集中最深的变量
		h := f.conf.clone()
		s.p.arena.culprits(f.v, h)
		h.remove(f.v)
		if h.empty() {
			return statusExhausted, f
		}
		target := s.deepest(h)
		if target < 0 {
			return statusExhausted, f
		}
		s.stats.Backjumps++

		s.stack = s.stack[:len(s.stack)-1]
		for s.top().v != target {
			s.unassign(s.top())
			s.stack = s.stack[:len(s.stack)-1]
		}
		tf := s.top()
		h.remove(target)
		tf.conf.union(h)
		for typ := range f.drained {
			tf.drained[typ] = true
		}
		s.unassign(tf)
	}
}

// selectVar 剩余取值最少的未赋值变量；同数取日期、角色靠前者
func (s *search) selectVar() int {
	best := -1
	for v := range s.p.vars {
		if s.depthOf[v] > 0 {
			continue
		}
		if best < 0 || s.p.arena.size[v] < s.p.arena.size[best] {
			best = v
		}
	}
	return best
}

func (s *search) push(v int) {
	f := &frame{
		v:       v,
		depth:   len(s.stack) + 1,
		conf:    newVarSet(len(s.p.vars)),
		drained: make(map[constraint.Type]bool),
	}
	f.values = s.orderValues(v)
	s.stack = append(s.stack, f)
}

// orderValues 最少约束优先：按对其他未赋值变量删除的取值数升序，
// 再按填入后的得分降序，最后按人员位置
func (s *search) orderValues(v int) []int {
	p := s.p
	vr := p.vars[v]
	values := p.arena.live(v)

	eliminated := make(map[int]int, len(values))
	scores := make(map[int]float64, len(values))
	for _, t := range values {
		next := s.tally.Clone()
		s.scorer.Assign(next, s.work, vr.date, vr.role, t)
		s.work.SetAt(vr.date, vr.role, model.Assigned(p.domain.StaffAt(t).ID))

		ctx := next.Context(p.domain, s.work)
		for u := range p.vars {
			if u == v || s.depthOf[u] > 0 || !p.arena.has(u, t) {
				continue
			}
			if len(p.manager.Blocking(ctx, p.vars[u].date, p.vars[u].role, t)) > 0 {
				eliminated[t]++
			}
		}
		scores[t] = s.scorer.Breakdown(next).Total
		s.work.SetAt(vr.date, vr.role, model.Absent())
	}

	sort.SliceStable(values, func(i, j int) bool {
		a, b := values[i], values[j]
		if eliminated[a] != eliminated[b] {
			return eliminated[a] < eliminated[b]
		}
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		return a < b
	})
	return values
}

func (s *search) assign(f *frame, t int) {
	vr := s.p.vars[f.v]
	next := s.tally.Clone()
	s.scorer.Assign(next, s.work, vr.date, vr.role, t)
	s.work.SetAt(vr.date, vr.role, model.Assigned(s.p.domain.StaffAt(t).ID))

	f.prev = s.tally
	f.assigned = true
	s.tally = next
	s.value[f.v] = t
	s.depthOf[f.v] = f.depth
	s.holdings[t] = append(s.holdings[t], f.v)
	s.stats.Assignments++
}

func (s *search) unassign(f *frame) {
	if !f.assigned {
		return
	}
	vr := s.p.vars[f.v]
	t := s.value[f.v]

	s.p.arena.undo(f.depth)
	s.work.SetAt(vr.date, vr.role, model.Absent())
	s.tally = f.prev
	f.prev = nil
	f.assigned = false
	s.depthOf[f.v] = 0
	s.holdings[t] = s.holdings[t][:len(s.holdings[t])-1]
}

// forwardCheck 从其余未赋值变量中删除与新分配冲突的取值
// 只有同一人员的取值会受影响；某变量被清空时返回其下标，否则返回 -1
func (s *search) forwardCheck(f *frame) int {
	p := s.p
	t := s.value[f.v]
	ctx := s.tally.Context(p.domain, s.work)

	for u := range p.vars {
		if s.depthOf[u] > 0 || !p.arena.has(u, t) {
			continue
		}
		blocked := p.manager.Blocking(ctx, p.vars[u].date, p.vars[u].role, t)
		if len(blocked) == 0 {
			continue
		}
		p.arena.remove(f.depth, u, t, s.culprits(ctx, f, u, t, blocked))
		p.drain(u, blocked...)
		s.stats.Prunings++
		if p.arena.size[u] == 0 {
			return u
		}
	}
	return -1
}

// culprits 导致人员 t 不能填入变量 u 的已赋值变量
func (s *search) culprits(ctx *constraint.Context, f *frame, u, t int, blocked []constraint.Type) varSet {
	p := s.p
	set := newVarSet(len(p.vars))
	set.add(f.v)

	target := p.vars[u]
	for _, typ := range blocked {
		switch typ {
		case constraint.TypeDoubleBooking:
			for _, w := range s.holdings[t] {
				if p.vars[w].date == target.date {
					set.add(w)
				}
			}
		case constraint.TypeQuota:
			for _, w := range s.holdings[t] {
				if p.vars[w].holiday == target.holiday {
					set.add(w)
				}
			}
		case constraint.TypeMaxConsecutiveDays:
			before, after := ctx.RunAround(t, target.date)
			for _, w := range s.holdings[t] {
				if d := p.vars[w].date; d >= target.date-before && d <= target.date+after {
					set.add(w)
				}
			}
		}
	}
	return set
}

func (s *search) deepest(h varSet) int {
	target, depth := -1, 0
	h.each(func(v int) {
		if s.depthOf[v] > depth {
			target, depth = v, s.depthOf[v]
		}
	})
	return target
}

// noteBest 记录已赋值最多（同数时得分最高）的部分解
func (s *search) noteBest() {
	assigned := len(s.stack)
	score := s.scorer.Breakdown(s.tally).Total
	if assigned > s.bestAssigned || (assigned == s.bestAssigned && score > s.bestScore) {
		s.best = s.work.Clone()
		s.bestAssigned = assigned
		s.bestScore = score
	}
}
