// Package scorer 计算值班表得分，支持增量评分
package scorer

import (
	"math"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
)

// FairnessCeiling 公平度上限：公平度 = max(0, 上限 - 值班次数标准差)
const FairnessCeiling = 10.0

// Tally 评分计数
// 全部为整数，增量与全量计算得到同一组计数，总分由同一函数得出
type Tally struct {
	Weekday []int // 每人平日值班次数
	Holiday []int // 每人假日值班次数

	Unfilled          int
	Unavailable       int
	QuotaExcess       int
	DoubleBookings    int
	ConsecutiveExcess int
	PreferenceHits    int

	dutySum   int
	dutySumSq int
}

// Clone 复制计数
func (t *Tally) Clone() *Tally {
	c := *t
	c.Weekday = append([]int(nil), t.Weekday...)
	c.Holiday = append([]int(nil), t.Holiday...)
	return &c
}

// Hard 硬约束违反总数
func (t *Tally) Hard() int {
	return t.Unavailable + t.QuotaExcess + t.DoubleBookings
}

// Duties 某人总值班次数
func (t *Tally) Duties(staff int) int {
	return t.Weekday[staff] + t.Holiday[staff]
}

// Scorer 评分器
type Scorer struct {
	domain  *model.Domain
	weights model.Weights
	maxDays int
}

// New 创建评分器
// 系数按约束集原样使用，全零系数表示不计分；默认系数由 model.DefaultConstraintSet 与配置层填入
func New(domain *model.Domain) *Scorer {
	cs := domain.Constraints()
	w := cs.Weights
	maxDays := cs.MaxConsecutiveDays
	if maxDays <= 0 {
		maxDays = model.DefaultMaxConsecutiveDays
	}
	return &Scorer{domain: domain, weights: w, maxDays: maxDays}
}

// Weights 评分系数
func (s *Scorer) Weights() model.Weights {
	return s.weights
}

// Score 全量评分
func (s *Scorer) Score(schedule *model.Schedule) (float64, model.ScoreBreakdown) {
	b := s.Breakdown(s.Tally(schedule))
	return b.Total, b
}

// Tally 全量统计计数
func (s *Scorer) Tally(schedule *model.Schedule) *Tally {
	d := s.domain
	n := d.StaffCount()
	t := &Tally{Weekday: make([]int, n), Holiday: make([]int, n)}
	onDuty := make([][]bool, n)
	for i := range onDuty {
		onDuty[i] = make([]bool, schedule.Len())
	}

	for di := 0; di < schedule.Len(); di++ {
		slot := schedule.SlotAt(di)
		for _, r := range d.Roles() {
			if !slot.Get(r).IsPresent() {
				t.Unfilled++
			}
		}

		for _, r := range model.AllRoles {
			id, ok := slot.Get(r).StaffID()
			if !ok {
				continue
			}
			si, known := d.StaffIndex(id)
			if !known {
				continue
			}
			if onDuty[si][di] {
				t.DoubleBookings++
			}
			onDuty[si][di] = true

			if d.IsHoliday(di) {
				t.Holiday[si]++
			} else {
				t.Weekday[si]++
			}
			if d.Unavailable(si, di) {
				t.Unavailable++
			} else if d.Preferred(si, di) {
				t.PreferenceHits++
			}
		}
	}

	for si := 0; si < n; si++ {
		t.QuotaExcess += excess(t.Weekday[si], d.Quota(si, false))
		t.QuotaExcess += excess(t.Holiday[si], d.Quota(si, true))

		total := t.Duties(si)
		t.dutySum += total
		t.dutySumSq += total * total

		run := 0
		for di := 0; di < schedule.Len(); di++ {
			switch {
			case !onDuty[si][di]:
				t.ConsecutiveExcess += excess(run, s.maxDays)
				run = 0
			case run > 0 && d.AdjacentPrev(di):
				run++
			default:
				t.ConsecutiveExcess += excess(run, s.maxDays)
				run = 1
			}
		}
		t.ConsecutiveExcess += excess(run, s.maxDays)
	}

	return t
}

// Assign 增量更新计数：把 staff 填入 (date, role)
// 调用时该岗位必须为空缺，且 schedule 尚未写入本次分配
func (s *Scorer) Assign(t *Tally, schedule *model.Schedule, date int, role model.Role, staff int) {
	d := s.domain
	for _, r := range d.Roles() {
		if r == role {
			t.Unfilled--
			break
		}
	}

	holiday := d.IsHoliday(date)
	quota := d.Quota(staff, holiday)
	if holiday {
		t.QuotaExcess += excess(t.Holiday[staff]+1, quota) - excess(t.Holiday[staff], quota)
		t.Holiday[staff]++
	} else {
		t.QuotaExcess += excess(t.Weekday[staff]+1, quota) - excess(t.Weekday[staff], quota)
		t.Weekday[staff]++
	}

	if d.Unavailable(staff, date) {
		t.Unavailable++
	} else if d.Preferred(staff, date) {
		t.PreferenceHits++
	}

	total := t.Duties(staff) - 1
	t.dutySum++
	t.dutySumSq += 2*total + 1

	id := d.StaffAt(staff).ID
	if onDuty(schedule, date, id) {
		// 当天已在岗：连续段不变
		t.DoubleBookings++
		return
	}

	before, after := 0, 0
	for di := date; d.AdjacentPrev(di) && onDuty(schedule, di-1, id); di-- {
		before++
	}
	for di := date; d.AdjacentNext(di) && onDuty(schedule, di+1, id); di++ {
		after++
	}
	t.ConsecutiveExcess += excess(before+1+after, s.maxDays) - excess(before, s.maxDays) - excess(after, s.maxDays)
}

// Delta 填入一个分配带来的分数变化
func (s *Scorer) Delta(t *Tally, schedule *model.Schedule, date int, role model.Role, staff int) float64 {
	next := t.Clone()
	s.Assign(next, schedule, date, role, staff)
	return s.Breakdown(next).Total - s.Breakdown(t).Total
}

// Breakdown 由计数计算分项得分
func (s *Scorer) Breakdown(t *Tally) model.ScoreBreakdown {
	std := stdFromSums(s.domain.StaffCount(), t.dutySum, t.dutySumSq)
	fairness := math.Max(0, FairnessCeiling-std)
	hard := t.Hard()

	b := model.ScoreBreakdown{
		Unfilled:              t.Unfilled,
		UnavailableViolations: t.Unavailable,
		QuotaViolations:       t.QuotaExcess,
		DoubleBookings:        t.DoubleBookings,
		HardViolations:        hard,
		ConsecutiveExcess:     t.ConsecutiveExcess,
		PreferenceHits:        t.PreferenceHits,
		DutyStdDev:            std,
		Fairness:              fairness,

		UnfilledPenalty: s.weights.Unfilled * float64(t.Unfilled),
		HardPenalty:     s.weights.Hard * float64(hard),
		SoftPenalty:     s.weights.Soft * float64(t.ConsecutiveExcess),
		FairnessBonus:   s.weights.Fairness * fairness,
		PreferenceBonus: s.weights.Preference * float64(t.PreferenceHits),
	}
	b.Total = b.UnfilledPenalty + b.HardPenalty + b.SoftPenalty + b.FairnessBonus + b.PreferenceBonus
	return b
}

// Context 以计数构建约束上下文，与计数共享切片
func (t *Tally) Context(domain *model.Domain, schedule *model.Schedule) *constraint.Context {
	return constraint.WithCounts(domain, schedule, t.Weekday, t.Holiday)
}

func excess(value, limit int) int {
	if value > limit {
		return value - limit
	}
	return 0
}

// stdFromSums 总体标准差；由整数和计算，结果只取决于计数
func stdFromSums(n, sum, sumSq int) float64 {
	if n == 0 {
		return 0
	}
	variance := float64(n*sumSq-sum*sum) / float64(n*n)
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

func onDuty(schedule *model.Schedule, date int, staffID string) bool {
	_, ok := schedule.SlotAt(date).RoleOf(staffID)
	return ok
}

// Facts 由分项得分得到定级所需事实
func (s *Scorer) Facts(b model.ScoreBreakdown) model.GradeFacts {
	facts := model.GradeFacts{
		Unfilled:       b.Unfilled,
		HardViolations: b.HardViolations,
		PreferenceRate: 1,
	}
	if total := s.domain.TotalSlots(); total > 0 {
		facts.FillRate = float64(total-b.Unfilled) / float64(total)
	}
	if prefs := s.domain.PreferenceTotal(); prefs > 0 {
		facts.PreferenceRate = math.Min(1, float64(b.PreferenceHits)/float64(prefs))
	}
	return facts
}

// Grade 按约束集配置的分级阈值定级
func (s *Scorer) Grade(b model.ScoreBreakdown) model.Grade {
	return model.GradeFor(b.Total, s.Facts(b), s.domain.Constraints().Thresholds)
}
