// Package analyzer 在排班前评估问题规模、供需与可行性
package analyzer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/samber/lo"
)

// Difficulty 难度等级
type Difficulty string

const (
	DifficultyEasy    Difficulty = "简单"
	DifficultyMedium  Difficulty = "中等"
	DifficultyHard    Difficulty = "困难"
	DifficultyExtreme Difficulty = "极困难"
)

const (
	// hardDayOptions 当日排班组合少于该值视为困难日
	hardDayOptions = 3
	// maxProblems 逐日可用性问题的输出上限
	maxProblems = 10
)

// RoleSupply 某角色在某日期类型上的配额供需
type RoleSupply struct {
	Role    model.Role `json:"role"`
	Holiday bool       `json:"holiday"`
	Staff   int        `json:"staff"`
	Demand  int        `json:"demand"`
	Supply  int        `json:"supply"`
	Ratio   float64    `json:"ratio"` // 需求为 0 时为 0
}

// Sufficient 配额总量是否覆盖需求
func (s RoleSupply) Sufficient() bool {
	return s.Supply >= s.Demand
}

// DayOptions 某日各角色可用人数与排班组合数
type DayOptions struct {
	Date      string             `json:"date"`
	Holiday   bool               `json:"holiday"`
	Available map[model.Role]int `json:"available"`
	Options   int                `json:"options"` // 各角色可用人数之积，任一为 0 则为 0
}

// Percentiles 每日组合数分位数（线性插值）
type Percentiles struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// SearchSpace 逐日搜索空间
type SearchSpace struct {
	Log10        float64      `json:"log10"`
	DailyOptions []int        `json:"daily_options"`
	HardestDays  []DayOptions `json:"hardest_days"`
	Percentiles  Percentiles  `json:"percentiles"`
	Median       float64      `json:"median"`
}

// Feasibility 排班前的必要条件检查
// 通过检查不代表一定有解，未通过则一定无法排满
type Feasibility struct {
	Feasible  bool         `json:"feasible"`
	Shortages []RoleSupply `json:"shortages,omitempty"`
	DailyGaps []DayOptions `json:"daily_gaps,omitempty"`
	Problems  []string     `json:"problems,omitempty"`
}

// Report 排班前分析报告
type Report struct {
	TotalDays           int                `json:"total_days"`
	WeekdayCount        int                `json:"weekday_count"`
	HolidayCount        int                `json:"holiday_count"`
	TotalSlots          int                `json:"total_slots"`
	StaffCounts         map[model.Role]int `json:"staff_counts"`
	Supply              []RoleSupply       `json:"supply"`
	MinSupplyRatio      float64            `json:"min_supply_ratio"`
	ConstraintDensity   float64            `json:"constraint_density"`
	MaxPersonalConflict float64            `json:"max_personal_conflict"`
	SearchSpace         SearchSpace        `json:"search_space"`
	DifficultyScore     int                `json:"difficulty_score"`
	Difficulty          Difficulty         `json:"difficulty"`
	Feasibility         Feasibility        `json:"feasibility"`
	Bottlenecks         []string           `json:"bottlenecks"`
}

// Analyze 分析一次运行的规模、供需、搜索空间与瓶颈
func Analyze(domain *model.Domain) *Report {
	weekdays, holidays := 0, 0
	for i := 0; i < domain.DateCount(); i++ {
		if domain.IsHoliday(i) {
			holidays++
		} else {
			weekdays++
		}
	}

	r := &Report{
		TotalDays:    domain.DateCount(),
		WeekdayCount: weekdays,
		HolidayCount: holidays,
		TotalSlots:   domain.TotalSlots(),
		StaffCounts:  make(map[model.Role]int, len(domain.Roles())),
		Bottlenecks:  make([]string, 0),
	}
	for _, role := range domain.Roles() {
		r.StaffCounts[role] = len(domain.StaffByRole(role))
	}

	r.Supply = supply(domain, weekdays, holidays)
	r.MinSupplyRatio = minRatio(r.Supply)
	r.ConstraintDensity, r.MaxPersonalConflict = density(domain)
	r.SearchSpace = searchSpace(domain)
	r.DifficultyScore = difficultyScore(r)
	r.Difficulty = difficultyLevel(r.DifficultyScore)
	r.Feasibility = feasibility(domain, r.Supply)
	r.Bottlenecks = bottlenecks(domain, r, weekdays, holidays)
	return r
}

func supply(domain *model.Domain, weekdays, holidays int) []RoleSupply {
	out := make([]RoleSupply, 0, 2*len(domain.Roles()))
	for _, holiday := range []bool{false, true} {
		demand := weekdays
		if holiday {
			demand = holidays
		}
		for _, role := range domain.Roles() {
			members := domain.StaffByRole(role)
			s := RoleSupply{
				Role:    role,
				Holiday: holiday,
				Staff:   len(members),
				Demand:  demand,
				Supply:  lo.SumBy(members, func(si int) int { return domain.Quota(si, holiday) }),
			}
			if demand > 0 {
				s.Ratio = float64(s.Supply) / float64(demand)
			}
			out = append(out, s)
		}
	}
	return out
}

// minRatio 非零供需比中的最小值
func minRatio(supply []RoleSupply) float64 {
	ratios := lo.FilterMap(supply, func(s RoleSupply, _ int) (float64, bool) { return s.Ratio, s.Ratio > 0 })
	if len(ratios) == 0 {
		return 0
	}
	return lo.Min(ratios)
}

// density 范围内不可值班日占比，以及个人最高占比
func density(domain *model.Domain) (float64, float64) {
	days, n := domain.DateCount(), domain.StaffCount()
	if days == 0 || n == 0 {
		return 0, 0
	}
	total, worst := 0, 0
	for si := 0; si < n; si++ {
		count := 0
		for d := 0; d < days; d++ {
			if domain.Unavailable(si, d) {
				count++
			}
		}
		total += count
		worst = max(worst, count)
	}
	return float64(total) / float64(n*days), float64(worst) / float64(days)
}

func dayOptions(domain *model.Domain, d int) DayOptions {
	day := DayOptions{
		Date:      domain.Date(d),
		Holiday:   domain.IsHoliday(d),
		Available: make(map[model.Role]int, len(domain.Roles())),
		Options:   1,
	}
	for _, role := range domain.Roles() {
		count := lo.CountBy(domain.StaffByRole(role), func(si int) bool { return !domain.Unavailable(si, d) })
		day.Available[role] = count
		day.Options *= count
	}
	if len(domain.Roles()) == 0 {
		day.Options = 0
	}
	return day
}

func searchSpace(domain *model.Domain) SearchSpace {
	ss := SearchSpace{
		DailyOptions: make([]int, domain.DateCount()),
		HardestDays:  make([]DayOptions, 0),
	}
	for d := 0; d < domain.DateCount(); d++ {
		day := dayOptions(domain, d)
		ss.DailyOptions[d] = day.Options
		for _, role := range domain.Roles() {
			ss.Log10 += math.Log10(float64(max(day.Available[role], 1)))
		}
		if day.Options < hardDayOptions {
			ss.HardestDays = append(ss.HardestDays, day)
		}
	}

	sorted := append([]int(nil), ss.DailyOptions...)
	sort.Ints(sorted)
	ss.Percentiles = Percentiles{
		P10: percentile(sorted, 10),
		P25: percentile(sorted, 25),
		P50: percentile(sorted, 50),
		P75: percentile(sorted, 75),
		P90: percentile(sorted, 90),
	}
	ss.Median = ss.Percentiles.P50
	return ss
}

// percentile 已排序序列的分位数，秩在相邻两项之间线性插值
func percentile(sorted []int, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	frac := rank - float64(lower)
	return float64(sorted[lower]) + (float64(sorted[upper])-float64(sorted[lower]))*frac
}

func difficultyScore(r *Report) int {
	score := 0

	switch ratio := r.MinSupplyRatio; {
	case ratio < 1.0:
		score += 4
	case ratio < 1.2:
		score += 3
	case ratio < 1.5:
		score += 2
	case ratio < 2.0:
		score += 1
	}

	hardest := 0.0
	if r.TotalDays > 0 {
		hardest = float64(len(r.SearchSpace.HardestDays)) / float64(r.TotalDays)
	}
	switch {
	case hardest > 0.3:
		score += 3
	case hardest > 0.2:
		score += 2
	case hardest > 0.1:
		score += 1
	}

	switch median := r.SearchSpace.Median; {
	case median < 5:
		score += 3
	case median < 10:
		score += 2
	case median < 20:
		score += 1
	}

	switch {
	case r.ConstraintDensity > 0.3:
		score += 2
	case r.ConstraintDensity > 0.2:
		score += 1
	}
	return score
}

func difficultyLevel(score int) Difficulty {
	switch {
	case score >= 10:
		return DifficultyExtreme
	case score >= 7:
		return DifficultyHard
	case score >= 4:
		return DifficultyMedium
	default:
		return DifficultyEasy
	}
}

func dayType(holiday bool) string {
	if holiday {
		return "假日"
	}
	return "平日"
}

func feasibility(domain *model.Domain, supply []RoleSupply) Feasibility {
	f := Feasibility{Feasible: true}
	for _, s := range supply {
		if s.Sufficient() {
			continue
		}
		f.Feasible = false
		f.Shortages = append(f.Shortages, s)
		f.Problems = append(f.Problems, fmt.Sprintf("%s%s岗位供给不足：需要 %d，可提供 %d",
			dayType(s.Holiday), s.Role.Label(), s.Demand, s.Supply))
	}

	var dateProblems []string
	for d := 0; d < domain.DateCount(); d++ {
		day := dayOptions(domain, d)
		gap := false
		for _, role := range domain.Roles() {
			if day.Available[role] == 0 {
				gap = true
				dateProblems = append(dateProblems, fmt.Sprintf("%s 没有可用的%s人员", day.Date, role.Label()))
			}
		}
		if gap {
			f.Feasible = false
			f.DailyGaps = append(f.DailyGaps, day)
		}
	}
	if len(dateProblems) > maxProblems {
		rest := len(dateProblems) - maxProblems
		dateProblems = append(dateProblems[:maxProblems], fmt.Sprintf("...还有 %d 个类似问题", rest))
	}
	f.Problems = append(f.Problems, dateProblems...)
	return f
}

func bottlenecks(domain *model.Domain, r *Report, weekdays, holidays int) []string {
	out := make([]string, 0)
	ss := r.SearchSpace

	if r.TotalDays > 0 && ss.Percentiles.P10 < hardDayOptions {
		out = append(out, fmt.Sprintf("至少10%%的日子只有不到%d个排班选项（p10=%.0f）", hardDayOptions, ss.Percentiles.P10))
	}

	for _, role := range domain.Roles() {
		members := domain.StaffByRole(role)
		n := len(members)
		if n == 0 {
			out = append(out, fmt.Sprintf("无%s人员", role.Label()))
			continue
		}
		if float64(n) < float64(weekdays)/7 {
			out = append(out, fmt.Sprintf("%s人数偏少（%d人需覆盖%d个平日）", role.Label(), n, weekdays))
		}

		for _, holiday := range []bool{false, true} {
			days := weekdays
			if holiday {
				days = holidays
				if holidays == 0 {
					continue
				}
			}
			avg := lo.Mean(lo.Map(members, func(si int, _ int) float64 { return float64(domain.Quota(si, holiday)) }))
			needed := float64(days) / float64(n)
			if avg < needed*0.8 {
				out = append(out, fmt.Sprintf("%s平均%s配额不足（平均%.1f，需要%.1f）", role.Label(), dayType(holiday), avg, needed))
			}
		}
	}

	if len(ss.HardestDays) > 0 {
		hard := len(ss.HardestDays)
		for si, st := range domain.StaffList() {
			conflicts := lo.CountBy(ss.HardestDays, func(day DayOptions) bool {
				d, _ := domain.DateIndex(day.Date)
				return domain.Unavailable(si, d)
			})
			if float64(conflicts) > float64(hard)*0.5 {
				out = append(out, fmt.Sprintf("%s在%d个困难日中有%d天不可值班", st.DisplayName(), hard, conflicts))
			}
		}
	}

	for _, day := range ss.HardestDays {
		if day.Options > 0 {
			continue
		}
		counts := lo.Map(domain.Roles(), func(role model.Role, _ int) string {
			return fmt.Sprintf("%s:%d人", role.Label(), day.Available[role])
		})
		out = append(out, fmt.Sprintf("%s无任何可行排班组合（%s）", day.Date, strings.Join(counts, "，")))
	}
	return out
}
