// Package features 从值班表提取训练用特征
package features

import (
	"math"
	"sort"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
	"github.com/paiban/zhiban/pkg/scheduler/constraint/builtin"
	"github.com/paiban/zhiban/pkg/scheduler/scorer"
	"github.com/paiban/zhiban/pkg/stats"
)

// Features 候选值班表的特征
type Features struct {
	TotalSlots    int     `json:"total_slots"`
	FilledSlots   int     `json:"filled_slots"`
	UnfilledSlots int     `json:"unfilled_slots"`
	FillRate      float64 `json:"fill_rate"`

	HardViolations        int `json:"hard_violations"`
	SoftViolations        int `json:"soft_violations"`
	UnavailableViolations int `json:"unavailable_violations"`
	QuotaViolations       int `json:"quota_violations"`
	DoubleBookings        int `json:"double_bookings"`
	ConsecutiveViolations int `json:"consecutive_violations"`

	DutyVariance float64 `json:"duty_variance"`
	DutyStdDev   float64 `json:"duty_std_dev"`
	DutyGini     float64 `json:"duty_gini"`
	MaxDutyDiff  float64 `json:"max_duty_diff"`
	Fairness     float64 `json:"fairness"`

	PreferenceHits int     `json:"preference_hits"`
	PreferenceRate float64 `json:"preference_rate"`

	WeekdayCoverage   float64 `json:"weekday_coverage"`
	HolidayCoverage   float64 `json:"holiday_coverage"`
	AttendingFillRate float64 `json:"attending_fill_rate"`
	ResidentFillRate  float64 `json:"resident_fill_rate"`
	Uniformity        float64 `json:"uniformity"`

	AvgConsecutiveDays float64 `json:"avg_consecutive_days"`
	MaxConsecutiveDays int     `json:"max_consecutive_days"`
	IsolatedDuties     int     `json:"isolated_duties"`

	AttendingWorkloadStd float64 `json:"attending_workload_std"`
	ResidentWorkloadStd  float64 `json:"resident_workload_std"`
	CrossRoleBalance     float64 `json:"cross_role_balance"`
}

// Extractor 特征提取器
type Extractor struct {
	domain   *model.Domain
	scorer   *scorer.Scorer
	fairness *stats.FairnessAnalyzer
	coverage *stats.CoverageAnalyzer
}

// NewExtractor 创建特征提取器
func NewExtractor(domain *model.Domain, sc *scorer.Scorer) *Extractor {
	if sc == nil {
		sc = scorer.New(domain)
	}
	return &Extractor{
		domain:   domain,
		scorer:   sc,
		fairness: stats.NewFairnessAnalyzer(),
		coverage: stats.NewCoverageAnalyzer(),
	}
}

// Extract 提取特征
func (e *Extractor) Extract(schedule *model.Schedule) Features {
	_, breakdown := e.scorer.Score(schedule)
	return e.ExtractWithBreakdown(schedule, breakdown)
}

// ExtractWithBreakdown 使用已算好的分项得分提取特征
func (e *Extractor) ExtractWithBreakdown(schedule *model.Schedule, b model.ScoreBreakdown) Features {
	fm := e.fairness.Analyze(e.domain, schedule)
	cm := e.coverage.Analyze(e.domain, schedule)

	f := Features{
		TotalSlots:    cm.TotalSlots,
		FilledSlots:   cm.AssignedSlots,
		UnfilledSlots: cm.TotalSlots - cm.AssignedSlots,
		FillRate:      cm.OverallCoverage,

		HardViolations:        b.HardViolations,
		SoftViolations:        b.ConsecutiveExcess,
		UnavailableViolations: b.UnavailableViolations,
		QuotaViolations:       b.QuotaViolations,
		DoubleBookings:        b.DoubleBookings,
		ConsecutiveViolations: b.ConsecutiveExcess,

		DutyVariance: fm.DutyVariance,
		DutyStdDev:   fm.DutyStdDev,
		DutyGini:     fm.DutyGini,
		MaxDutyDiff:  fm.DutyRange,
		Fairness:     b.Fairness,

		PreferenceHits: b.PreferenceHits,
		PreferenceRate: 1,

		WeekdayCoverage:   cm.WeekdayCoverage,
		HolidayCoverage:   cm.HolidayCoverage,
		AttendingFillRate: cm.RoleCoverage[model.RoleAttending.String()],
		ResidentFillRate:  cm.RoleCoverage[model.RoleResident.String()],
		Uniformity:        cm.Uniformity,

		AttendingWorkloadStd: fm.RoleStdDev[model.RoleAttending.String()],
		ResidentWorkloadStd:  fm.RoleStdDev[model.RoleResident.String()],
	}

	// 没有可兑现的偏好时视为全部满足
	if total := e.domain.PreferenceTotal(); total > 0 {
		f.PreferenceRate = math.Min(1, float64(b.PreferenceHits)/float64(total))
	}

	f.CrossRoleBalance = crossRoleBalance(fm.StaffStats)
	f.AvgConsecutiveDays, f.MaxConsecutiveDays, f.IsolatedDuties = e.streaks(schedule)
	return f
}

// GradeFacts 定级所需事实
func (f Features) GradeFacts() model.GradeFacts {
	return model.GradeFacts{
		Unfilled:       f.UnfilledSlots,
		HardViolations: f.HardViolations,
		FillRate:       f.FillRate,
		PreferenceRate: f.PreferenceRate,
	}
}

func (e *Extractor) streaks(schedule *model.Schedule) (avg float64, longest, isolated int) {
	ctx := constraint.NewContext(e.domain, schedule)
	total, count := 0, 0
	for si := 0; si < e.domain.StaffCount(); si++ {
		for _, run := range builtin.Runs(ctx, si) {
			total += run.Length
			count++
			if run.Length > longest {
				longest = run.Length
			}
			if run.Length == 1 {
				isolated++
			}
		}
	}
	if count > 0 {
		avg = float64(total) / float64(count)
	}
	return avg, longest, isolated
}

// crossRoleBalance 两个角色人均值班次数的接近程度 (1=完全一致)
func crossRoleBalance(staff []stats.StaffStat) float64 {
	sums := make(map[string]float64)
	counts := make(map[string]float64)
	for _, s := range staff {
		sums[s.Role] += float64(s.Duties)
		counts[s.Role]++
	}
	a, r := model.RoleAttending.String(), model.RoleResident.String()
	if counts[a] == 0 || counts[r] == 0 {
		return 1
	}
	ma, mr := sums[a]/counts[a], sums[r]/counts[r]
	hi := math.Max(ma, mr)
	if hi == 0 {
		return 1
	}
	return 1 - math.Abs(ma-mr)/hi
}

// ToMap 转为扁平特征表
func (f Features) ToMap() map[string]float64 {
	return map[string]float64{
		"total_slots":            float64(f.TotalSlots),
		"filled_slots":           float64(f.FilledSlots),
		"unfilled_slots":         float64(f.UnfilledSlots),
		"fill_rate":              f.FillRate,
		"hard_violations":        float64(f.HardViolations),
		"soft_violations":        float64(f.SoftViolations),
		"unavailable_violations": float64(f.UnavailableViolations),
		"quota_violations":       float64(f.QuotaViolations),
		"double_bookings":        float64(f.DoubleBookings),
		"consecutive_violations": float64(f.ConsecutiveViolations),
		"duty_variance":          f.DutyVariance,
		"duty_std_dev":           f.DutyStdDev,
		"duty_gini":              f.DutyGini,
		"max_duty_diff":          f.MaxDutyDiff,
		"fairness":               f.Fairness,
		"preference_hits":        float64(f.PreferenceHits),
		"preference_rate":        f.PreferenceRate,
		"weekday_coverage":       f.WeekdayCoverage,
		"holiday_coverage":       f.HolidayCoverage,
		"attending_fill_rate":    f.AttendingFillRate,
		"resident_fill_rate":     f.ResidentFillRate,
		"uniformity":             f.Uniformity,
		"avg_consecutive_days":   f.AvgConsecutiveDays,
		"max_consecutive_days":   float64(f.MaxConsecutiveDays),
		"isolated_duties":        float64(f.IsolatedDuties),
		"attending_workload_std": f.AttendingWorkloadStd,
		"resident_workload_std":  f.ResidentWorkloadStd,
		"cross_role_balance":     f.CrossRoleBalance,
	}
}

// FromMap 由特征表还原；缺失的键取零值
func FromMap(m map[string]float64) Features {
	return Features{
		TotalSlots:            int(m["total_slots"]),
		FilledSlots:           int(m["filled_slots"]),
		UnfilledSlots:         int(m["unfilled_slots"]),
		FillRate:              m["fill_rate"],
		HardViolations:        int(m["hard_violations"]),
		SoftViolations:        int(m["soft_violations"]),
		UnavailableViolations: int(m["unavailable_violations"]),
		QuotaViolations:       int(m["quota_violations"]),
		DoubleBookings:        int(m["double_bookings"]),
		ConsecutiveViolations: int(m["consecutive_violations"]),
		DutyVariance:          m["duty_variance"],
		DutyStdDev:            m["duty_std_dev"],
		DutyGini:              m["duty_gini"],
		MaxDutyDiff:           m["max_duty_diff"],
		Fairness:              m["fairness"],
		PreferenceHits:        int(m["preference_hits"]),
		PreferenceRate:        m["preference_rate"],
		WeekdayCoverage:       m["weekday_coverage"],
		HolidayCoverage:       m["holiday_coverage"],
		AttendingFillRate:     m["attending_fill_rate"],
		ResidentFillRate:      m["resident_fill_rate"],
		Uniformity:            m["uniformity"],
		AvgConsecutiveDays:    m["avg_consecutive_days"],
		MaxConsecutiveDays:    int(m["max_consecutive_days"]),
		IsolatedDuties:        int(m["isolated_duties"]),
		AttendingWorkloadStd:  m["attending_workload_std"],
		ResidentWorkloadStd:   m["resident_workload_std"],
		CrossRoleBalance:      m["cross_role_balance"],
	}
}

// Names 特征名（排序），用于 CSV 表头
func Names() []string {
	names := make([]string, 0, 32)
	for k := range (Features{}).ToMap() {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
