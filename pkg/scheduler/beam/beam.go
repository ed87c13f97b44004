// Package beam 实现按日期推进的束搜索
package beam

import (
	"context"
	"sort"
	"time"

	"github.com/paiban/zhiban/pkg/logger"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
	"github.com/paiban/zhiban/pkg/scheduler/scorer"
)

// Recorder 记录保留下来的候选，返回候选标识
type Recorder interface {
	Record(schedule *model.Schedule, breakdown model.ScoreBreakdown, method model.GenerationMethod, iteration int, parent model.CandidateID) model.CandidateID
}

// Entry 束中的一个部分值班表
// 创建后不再修改，后继条目总是先复制再写入
type Entry struct {
	Schedule *model.Schedule
	Tally    *scorer.Tally
	Score    float64
	ID       model.CandidateID // 未记录时为 0
	ParentID model.CandidateID

	parentRank int
}

// Config 束搜索参数
type Config struct {
	Width             int
	NeighborExpansion int           // 每个条目每个角色最多展开的人数，0 表示不限
	Workers           int           // 并行展开协程数
	Timeout           time.Duration // 0 表示不限
}

// ConfigFrom 由约束集得到束搜索参数
func ConfigFrom(cs model.ConstraintSet) Config {
	width := cs.BeamWidth
	if width <= 0 {
		width = model.DefaultBeamWidth
	}
	return Config{
		Width:             width,
		NeighborExpansion: cs.NeighborExpansion,
		Workers:           cs.Workers,
		Timeout:           cs.BeamTimeout,
	}
}

// Result 束搜索结果
type Result struct {
	Frontier   []*Entry        // 按得分降序
	Best       *Entry          // Frontier[0]
	Steps      int             // 已处理的日期数
	Completed  bool            // 是否处理完全部日期
	Gaps       []model.SlotRef // 最优条目中无合法人选而保留的空缺
	Successors int             // 生成的后继总数
	Duration   time.Duration
}

// Searcher 束搜索器
type Searcher struct {
	domain    *model.Domain
	manager   *constraint.Manager
	scorer    *scorer.Scorer
	evaluator *ParallelEvaluator
	config    Config

	recorder Recorder
	progress chan<- model.Progress
	logger   *logger.SchedulerLogger
}

// New 创建束搜索器
func New(domain *model.Domain, manager *constraint.Manager, sc *scorer.Scorer, cfg Config) *Searcher {
	if cfg.Width <= 0 {
		cfg.Width = model.DefaultBeamWidth
	}
	return &Searcher{
		domain:    domain,
		manager:   manager,
		scorer:    sc,
		evaluator: NewParallelEvaluator(cfg.Workers),
		config:    cfg,
		logger:    logger.NewSchedulerLogger(),
	}
}

// SetRecorder 设置候选记录器
func (s *Searcher) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetProgress 设置进度通道
func (s *Searcher) SetProgress(ch chan<- model.Progress) {
	s.progress = ch
}

// SetLogger 替换日志器
func (s *Searcher) SetLogger(l *logger.SchedulerLogger) {
	s.logger = l
}

// Run 从空值班表开始逐日推进
// 上下文取消或超时时返回当前束，Completed 为 false
func (s *Searcher) Run(ctx context.Context) *Result {
	start := time.Now()
	d := s.domain

	var deadline time.Time
	if s.config.Timeout > 0 {
		deadline = start.Add(s.config.Timeout)
	}

	root := &Entry{Schedule: d.NewSchedule()}
	root.Tally = s.scorer.Tally(root.Schedule)
	root.Score = s.scorer.Breakdown(root.Tally).Total

	frontier := []*Entry{root}
	result := &Result{}

	s.logger.StartSchedule(d.StaffCount(), d.DateCount(), s.config.Width)

	for di := 0; di < d.DateCount(); di++ {
		if ctx.Err() != nil || (!deadline.IsZero() && time.Now().After(deadline)) {
			s.logger.BudgetExceeded(string(model.PhaseBeam), d.DateCount()-di)
			break
		}

		current := frontier
		expanded, err := s.evaluator.ExpandBatch(ctx, len(current), func(i int) []*Entry {
			return s.expand(current[i], i, di)
		})
		if err != nil {
			s.logger.BudgetExceeded(string(model.PhaseBeam), d.DateCount()-di)
			break
		}

		var successors []*Entry
		for _, group := range expanded {
			successors = append(successors, group...)
		}
		generated := len(successors)
		result.Successors += generated

		s.sortSuccessors(successors, di)
		if len(successors) > s.config.Width {
			successors = successors[:s.config.Width]
		}

		if s.recorder != nil {
			for _, e := range successors {
				e.ID = s.recorder.Record(e.Schedule, s.scorer.Breakdown(e.Tally), model.MethodBeamSearch, di+1, e.ParentID)
			}
		}

		frontier = successors
		result.Steps = di + 1

		best := frontier[0]
		s.logger.BeamStep(d.Date(di), generated, len(frontier), best.Score)
		model.Notify(s.progress, model.Progress{
			Phase:     model.PhaseBeam,
			Iteration: di + 1,
			Date:      d.Date(di),
			BestScore: best.Score,
			Unfilled:  best.Tally.Unfilled,
		})
	}

	result.Frontier = frontier
	result.Best = frontier[0]
	result.Completed = result.Steps == d.DateCount()
	result.Duration = time.Since(start)

	for di := 0; di < result.Steps; di++ {
		for _, r := range d.Roles() {
			if !result.Best.Schedule.GetAt(di, r).IsPresent() {
				s.logger.StructuralGap(d.Date(di), r.String())
				result.Gaps = append(result.Gaps, model.SlotRef{Date: d.Date(di), Role: r})
			}
		}
	}
	return result
}

// expand 生成某条目在 date 上的全部后继：按角色顺序逐个填入合法人员
// 某角色无合法人员时保留空缺
func (s *Searcher) expand(parent *Entry, rank, date int) []*Entry {
	d := s.domain
	partials := []*Entry{{Schedule: parent.Schedule, Tally: parent.Tally}}

	for _, role := range d.Roles() {
		next := make([]*Entry, 0, len(partials))
		for _, p := range partials {
			if p.Schedule.GetAt(date, role).IsPresent() {
				next = append(next, p)
				continue
			}

			legal := s.manager.Legal(p.Tally.Context(d, p.Schedule), date, role)
			legal = s.limit(p, date, role, legal)
			if len(legal) == 0 {
				next = append(next, p)
				continue
			}

			for _, staff := range legal {
				child := &Entry{Schedule: p.Schedule.Clone(), Tally: p.Tally.Clone()}
				s.scorer.Assign(child.Tally, child.Schedule, date, role, staff)
				child.Schedule.SetAt(date, role, model.Assigned(d.StaffAt(staff).ID))
				next = append(next, child)
			}
		}
		partials = next
	}

	for _, p := range partials {
		p.Score = s.scorer.Breakdown(p.Tally).Total
		p.ParentID = parent.ID
		p.parentRank = rank
	}
	return partials
}

// limit 按 NeighborExpansion 截断候选人员，保留分数增量最大的人
func (s *Searcher) limit(p *Entry, date int, role model.Role, legal []int) []int {
	n := s.config.NeighborExpansion
	if n <= 0 || len(legal) <= n {
		return legal
	}

	deltas := make(map[int]float64, len(legal))
	for _, staff := range legal {
		deltas[staff] = s.scorer.Delta(p.Tally, p.Schedule, date, role, staff)
	}
	ranked := append([]int(nil), legal...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return deltas[ranked[i]] > deltas[ranked[j]]
	})
	return ranked[:n]
}

// sortSuccessors 按得分降序；同分按当日分配序列（人员标识，空缺排后），再按父条目名次
func (s *Searcher) sortSuccessors(entries []*Entry, date int) {
	roles := s.domain.Roles()
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		for _, r := range roles {
			ida, oka := a.Schedule.GetAt(date, r).StaffID()
			idb, okb := b.Schedule.GetAt(date, r).StaffID()
			if oka != okb {
				return oka
			}
			if ida != idb {
				return ida < idb
			}
		}
		return a.parentRank < b.parentRank
	})
}
