package swap

import (
	"context"
	"sort"

	"github.com/paiban/zhiban/pkg/model"
)

// 交换链搜索默认参数
const (
	DefaultChainDepth = 3
	DefaultMaxChains  = 20
	maxChainNodes     = 20000 // 单个空缺的搜索节点上限
)

// Gap 空缺岗位及其候选人
type Gap struct {
	Date      string     `json:"date"`
	Role      model.Role `json:"role"`
	Holiday   bool       `json:"holiday"`
	WithQuota []string   `json:"with_quota"` // 可直接填补
	OverQuota []string   `json:"over_quota"` // 同类型配额已满，需先让出一个值班日
}

// ChainStep 交换链中的一步：人员从 From 移到 To，From 为空表示直接接班
type ChainStep struct {
	StaffID string     `json:"staff_id"`
	Role    model.Role `json:"role"`
	From    string     `json:"from,omitempty"`
	To      string     `json:"to"`
}

// SwapChain 填补一个空缺的交换链
type SwapChain struct {
	Date        string      `json:"date"`
	Role        model.Role  `json:"role"`
	Steps       []ChainStep `json:"steps"`
	ScoreBefore float64     `json:"score_before"`
	ScoreAfter  float64     `json:"score_after"`

	schedule *model.Schedule
}

// Schedule 应用交换链后的值班表
func (c *SwapChain) Schedule() *model.Schedule {
	return c.schedule
}

// ChainOptions 交换链搜索选项
type ChainOptions struct {
	MaxDepth  int `json:"max_depth"`  // 链中最多几步
	MaxChains int `json:"max_chains"` // 每个空缺最多返回几条
}

// DefaultChainOptions 默认选项
func DefaultChainOptions() ChainOptions {
	return ChainOptions{MaxDepth: DefaultChainDepth, MaxChains: DefaultMaxChains}
}

// FillReport 自动补缺结果
type FillReport struct {
	Schedule    *model.Schedule `json:"schedule"`
	Chains      []*SwapChain    `json:"chains"`
	Remaining   []model.SlotRef `json:"remaining"`
	ScoreBefore float64         `json:"score_before"`
	ScoreAfter  float64         `json:"score_after"`
}

// AnalyzeGaps 分析空缺，候选越少越靠前
func (r *Recommender) AnalyzeGaps(schedule *model.Schedule) []Gap {
	refs := schedule.Unfilled(r.domain.Roles())
	gaps := make([]Gap, 0, len(refs))
	for _, ref := range refs {
		di, ok := r.domain.DateIndex(ref.Date)
		if !ok {
			continue
		}
		gap := Gap{Date: ref.Date, Role: ref.Role, Holiday: r.domain.IsHoliday(di)}
		for _, idx := range r.domain.StaffByRole(ref.Role) {
			if !r.eligible(schedule, idx, ref.Date) {
				continue
			}
			id := r.domain.StaffAt(idx).ID
			if r.hasQuota(schedule, idx, gap.Holiday) {
				gap.WithQuota = append(gap.WithQuota, id)
			} else {
				gap.OverQuota = append(gap.OverQuota, id)
			}
		}
		gaps = append(gaps, gap)
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		a, b := gaps[i], gaps[j]
		if len(a.WithQuota) != len(b.WithQuota) {
			return len(a.WithQuota) < len(b.WithQuota)
		}
		return len(a.OverQuota) < len(b.OverQuota)
	})
	return gaps
}

// FindSwapChains 为空缺寻找交换链
// 候选人配额未满时直接接班；否则把他同类型的另一个值班日让出，再递归为该日找人
func (r *Recommender) FindSwapChains(schedule *model.Schedule, date string, role model.Role, opts ChainOptions) []*SwapChain {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultChainDepth
	}
	if opts.MaxChains <= 0 {
		opts.MaxChains = DefaultMaxChains
	}
	di, ok := r.domain.DateIndex(date)
	if !ok || schedule.Get(date, role).IsPresent() {
		return nil
	}

	search := &chainSearch{
		r:          r,
		date:       date,
		role:       role,
		maxDepth:   opts.MaxDepth,
		baseErrors: make(map[string]bool),
		seen:       make(map[string]bool),
	}
	for _, c := range r.evaluator.detector.DetectAll(r.domain, schedule) {
		if c.IsError() {
			search.baseErrors[conflictKey(c)] = true
		}
	}
	search.scoreBefore, _ = r.evaluator.scorer.Score(schedule)
	search.fill(schedule, date, r.domain.IsHoliday(di), nil, make(map[string]bool), 0)

	chains := search.chains
	sort.SliceStable(chains, func(i, j int) bool {
		if chains[i].ScoreAfter != chains[j].ScoreAfter {
			return chains[i].ScoreAfter > chains[j].ScoreAfter
		}
		return len(chains[i].Steps) < len(chains[j].Steps)
	})
	if len(chains) > opts.MaxChains {
		chains = chains[:opts.MaxChains]
	}
	return chains
}

// FillGaps 依次为空缺应用最佳交换链，直到没有可改进的空缺
// 原表不变；取消时返回已完成部分与 ctx 错误
func (r *Recommender) FillGaps(ctx context.Context, schedule *model.Schedule, opts ChainOptions) (*FillReport, error) {
	current := schedule.Clone()
	report := &FillReport{Chains: make([]*SwapChain, 0)}
	report.ScoreBefore, _ = r.evaluator.scorer.Score(schedule)

	finish := func() *FillReport {
		report.Schedule = current
		report.Remaining = current.Unfilled(r.domain.Roles())
		report.ScoreAfter, _ = r.evaluator.scorer.Score(current)
		return report
	}

	attempted := make(map[model.SlotRef]bool)
	for {
		if err := ctx.Err(); err != nil {
			return finish(), err
		}

		var next *Gap
		for _, gap := range r.AnalyzeGaps(current) {
			ref := model.SlotRef{Date: gap.Date, Role: gap.Role}
			if !attempted[ref] {
				attempted[ref] = true
				next = &gap
				break
			}
		}
		if next == nil {
			return finish(), nil
		}

		chains := r.FindSwapChains(current, next.Date, next.Role, opts)
		if len(chains) == 0 || chains[0].ScoreAfter <= chains[0].ScoreBefore {
			continue
		}
		current = chains[0].Schedule()
		report.Chains = append(report.Chains, chains[0])
	}
}

type chainSearch struct {
	r           *Recommender
	date        string
	role        model.Role
	maxDepth    int
	scoreBefore float64
	baseErrors  map[string]bool
	seen        map[string]bool
	nodes       int
	chains      []*SwapChain
}

// fill 为 s 中 date 的空缺找人；steps 为已走的步骤，used 为链中已移动的人员
func (c *chainSearch) fill(s *model.Schedule, date string, holiday bool, steps []ChainStep, used map[string]bool, depth int) {
	if depth >= c.maxDepth {
		return
	}
	domain := c.r.domain
	for _, idx := range domain.StaffByRole(c.role) {
		if c.nodes >= maxChainNodes {
			return
		}
		id := domain.StaffAt(idx).ID
		if used[id] || !c.r.eligible(s, idx, date) {
			continue
		}
		c.nodes++

		next := s.Clone()
		_ = next.Assign(date, c.role, id)
		step := ChainStep{StaffID: id, Role: c.role, To: date}

		if c.r.hasQuota(s, idx, holiday) {
			c.record(next, append(append([]ChainStep(nil), steps...), step))
			continue
		}
		if depth+1 >= c.maxDepth {
			continue
		}

		// 让出同类型的另一个值班日，再为该日找人
		used[id] = true
		for _, from := range c.r.dutyDates(s, id, c.role, holiday, date) {
			moved := next.Clone()
			moved.Unassign(from, c.role)
			st := step
			st.From = from
			c.fill(moved, from, holiday, append(append([]ChainStep(nil), steps...), st), used, depth+1)
		}
		delete(used, id)
	}
}

// record 校验并保存完整的交换链：不得引入新的硬冲突
func (c *chainSearch) record(s *model.Schedule, steps []ChainStep) {
	key := s.Key()
	if c.seen[key] {
		return
	}
	c.seen[key] = true

	for _, conflict := range c.r.evaluator.detector.DetectAll(c.r.domain, s) {
		if conflict.IsError() && !c.baseErrors[conflictKey(conflict)] {
			return
		}
	}
	score, _ := c.r.evaluator.scorer.Score(s)
	c.chains = append(c.chains, &SwapChain{
		Date:        c.date,
		Role:        c.role,
		Steps:       steps,
		ScoreBefore: c.scoreBefore,
		ScoreAfter:  score,
		schedule:    s,
	})
}

// eligible 人员当天可用且未在任何岗位值班
func (r *Recommender) eligible(s *model.Schedule, staff int, date string) bool {
	di, ok := r.domain.DateIndex(date)
	if !ok || r.domain.Unavailable(staff, di) {
		return false
	}
	slot, ok := s.Slot(date)
	if !ok {
		return false
	}
	_, onDuty := slot.RoleOf(r.domain.StaffAt(staff).ID)
	return !onDuty
}

// hasQuota 人员在该类型日期上还有配额
func (r *Recommender) hasQuota(s *model.Schedule, staff int, holiday bool) bool {
	id := r.domain.StaffAt(staff).ID
	used := 0
	for i := 0; i < s.Len(); i++ {
		slot := s.SlotAt(i)
		di, ok := r.domain.DateIndex(slot.Date)
		if !ok || r.domain.IsHoliday(di) != holiday {
			continue
		}
		if _, onDuty := slot.RoleOf(id); onDuty {
			used++
		}
	}
	return used < r.domain.Quota(staff, holiday)
}

// dutyDates 人员以 role 值班、且日期类型相同的日期
func (r *Recommender) dutyDates(s *model.Schedule, staffID string, role model.Role, holiday bool, exclude string) []string {
	var dates []string
	for i := 0; i < s.Len(); i++ {
		slot := s.SlotAt(i)
		if slot.Date == exclude {
			continue
		}
		di, ok := r.domain.DateIndex(slot.Date)
		if !ok || r.domain.IsHoliday(di) != holiday {
			continue
		}
		if id, ok := slot.Get(role).StaffID(); ok && id == staffID {
			dates = append(dates, slot.Date)
		}
	}
	return dates
}
