// Package stats 提供值班表统计分析功能
package stats

import (
	"math"
	"sort"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/samber/lo"
)

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	// 值班次数公平性
	DutyGini         float64 `json:"duty_gini"`           // 值班次数基尼系数 (0=完全公平, 1=完全不公平)
	DutyVariance     float64 `json:"duty_variance"`       // 值班次数方差
	DutyStdDev       float64 `json:"duty_std_dev"`        // 值班次数标准差
	AvgDutiesPerHead float64 `json:"avg_duties_per_head"` // 人均值班次数
	MaxDuties        float64 `json:"max_duties"`
	MinDuties        float64 `json:"min_duties"`
	DutyRange        float64 `json:"duty_range"` // 极差

	// 假日班公平性
	HolidayGini float64 `json:"holiday_gini"`

	// 分角色标准差
	RoleStdDev map[string]float64 `json:"role_std_dev"`

	// 人员级别统计
	StaffStats []StaffStat `json:"staff_stats"`

	// 综合评分
	OverallFairnessScore float64 `json:"overall_fairness_score"` // 综合公平性评分 (0-100)
}

// StaffStat 人员统计
type StaffStat struct {
	StaffID        string  `json:"staff_id"`
	Role           string  `json:"role"`
	Duties         int     `json:"duties"`
	WeekdayDuties  int     `json:"weekday_duties"`
	HolidayDuties  int     `json:"holiday_duties"`
	PreferenceHits int     `json:"preference_hits"`
	Deviation      float64 `json:"deviation"` // 与平均值的偏差百分比
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct{}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{}
}

// Analyze 分析值班表公平性；未排班的人员按 0 次计入
func (f *FairnessAnalyzer) Analyze(domain *model.Domain, schedule *model.Schedule) *FairnessMetrics {
	staffStats := CollectStaffStats(domain, schedule)
	if len(staffStats) == 0 {
		return &FairnessMetrics{
			RoleStdDev:           make(map[string]float64),
			OverallFairnessScore: 100,
		}
	}

	duties := lo.Map(staffStats, func(s StaffStat, _ int) float64 { return float64(s.Duties) })
	holidays := lo.Map(staffStats, func(s StaffStat, _ int) float64 { return float64(s.HolidayDuties) })

	avg := Mean(duties)
	variance := Variance(duties, avg)
	stdDev := math.Sqrt(variance)
	maxDuties, minDuties := Range(duties)

	for i := range staffStats {
		if avg > 0 {
			staffStats[i].Deviation = (float64(staffStats[i].Duties) - avg) / avg * 100
		}
	}

	roleStd := make(map[string]float64)
	for role, group := range lo.GroupBy(staffStats, func(s StaffStat) string { return s.Role }) {
		values := lo.Map(group, func(s StaffStat, _ int) float64 { return float64(s.Duties) })
		roleStd[role] = StdDev(values)
	}

	dutyGini := Gini(duties)
	holidayGini := Gini(holidays)

	return &FairnessMetrics{
		DutyGini:             dutyGini,
		DutyVariance:         variance,
		DutyStdDev:           stdDev,
		AvgDutiesPerHead:     avg,
		MaxDuties:            maxDuties,
		MinDuties:            minDuties,
		DutyRange:            maxDuties - minDuties,
		HolidayGini:          holidayGini,
		RoleStdDev:           roleStd,
		StaffStats:           staffStats,
		OverallFairnessScore: f.calculateOverallScore(dutyGini, holidayGini, stdDev, avg),
	}
}

// CollectStaffStats 统计每位人员的值班情况，按人员标识排序
func CollectStaffStats(domain *model.Domain, schedule *model.Schedule) []StaffStat {
	out := make([]StaffStat, domain.StaffCount())
	for si, s := range domain.StaffList() {
		out[si] = StaffStat{StaffID: s.ID, Role: s.Role.String()}
	}

	for d := 0; d < schedule.Len(); d++ {
		slot := schedule.SlotAt(d)
		for _, r := range model.AllRoles {
			id, ok := slot.Get(r).StaffID()
			if !ok {
				continue
			}
			si, known := domain.StaffIndex(id)
			if !known {
				continue
			}
			out[si].Duties++
			if domain.IsHoliday(d) {
				out[si].HolidayDuties++
			} else {
				out[si].WeekdayDuties++
			}
			if domain.Preferred(si, d) && !domain.Unavailable(si, d) {
				out[si].PreferenceHits++
			}
		}
	}
	return out
}

// Mean 平均值
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return lo.Sum(values) / float64(len(values))
}

// Variance 总体方差
func Variance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// StdDev 总体标准差
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values, Mean(values)))
}

// Range 最大值与最小值
func Range(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return lo.Max(values), lo.Min(values)
}

// Gini 基尼系数，结果截断到 [0, 1]
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := lo.Sum(sorted)
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}

	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// calculateOverallScore 计算综合公平性评分
func (f *FairnessAnalyzer) calculateOverallScore(dutyGini, holidayGini, stdDev, avg float64) float64 {
	const (
		dutyWeight    = 0.5
		holidayWeight = 0.3
		cvWeight      = 0.2
	)

	dutyScore := (1 - dutyGini) * 100
	holidayScore := (1 - holidayGini) * 100

	// 变异系数越低分数越高
	cvScore := 100.0
	if avg > 0 {
		cvScore = math.Max(0, 100-stdDev/avg*200)
	}

	score := dutyWeight*dutyScore + holidayWeight*holidayScore + cvWeight*cvScore
	return math.Max(0, math.Min(100, score))
}

// CompareSchedules 比较两个值班表的公平性
func (f *FairnessAnalyzer) CompareSchedules(domain *model.Domain, a, b *model.Schedule) map[string]float64 {
	m1 := f.Analyze(domain, a)
	m2 := f.Analyze(domain, b)

	return map[string]float64{
		"duty_gini_diff":          m2.DutyGini - m1.DutyGini,
		"holiday_gini_diff":       m2.HolidayGini - m1.HolidayGini,
		"overall_score_diff":      m2.OverallFairnessScore - m1.OverallFairnessScore,
		"schedule1_overall_score": m1.OverallFairnessScore,
		"schedule2_overall_score": m2.OverallFairnessScore,
	}
}
