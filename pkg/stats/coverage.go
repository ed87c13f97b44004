package stats

import (
	"fmt"
	"math"
	"strings"

	"github.com/paiban/zhiban/pkg/model"
)

// CoverageMetrics 覆盖率指标
type CoverageMetrics struct {
	// 整体覆盖率
	TotalSlots      int     `json:"total_slots"`      // 应填岗位数
	AssignedSlots   int     `json:"assigned_slots"`   // 已填岗位数
	OverallCoverage float64 `json:"overall_coverage"` // 整体覆盖率 (0-1)

	// 按日期统计
	DailyCoverage map[string]DayCoverage `json:"daily_coverage"`

	// 按角色、日期类型统计
	RoleCoverage    map[string]float64 `json:"role_coverage"`
	WeekdayCoverage float64            `json:"weekday_coverage"`
	HolidayCoverage float64            `json:"holiday_coverage"`

	// 每日填充均匀度 (1=各日填充一致)
	Uniformity float64 `json:"uniformity"`

	// 问题识别
	UncoveredSlots []model.SlotRef `json:"uncovered_slots"`
}

// DayCoverage 每日覆盖情况
type DayCoverage struct {
	Date         string  `json:"date"`
	Holiday      bool    `json:"holiday"`
	Required     int     `json:"required"`
	Assigned     int     `json:"assigned"`
	CoverageRate float64 `json:"coverage_rate"`
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct{}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{}
}

// Analyze 分析值班表覆盖率
func (c *CoverageAnalyzer) Analyze(domain *model.Domain, schedule *model.Schedule) *CoverageMetrics {
	roles := domain.Roles()
	metrics := &CoverageMetrics{
		TotalSlots:     schedule.Len() * len(roles),
		DailyCoverage:  make(map[string]DayCoverage, schedule.Len()),
		RoleCoverage:   make(map[string]float64, len(roles)),
		UncoveredSlots: make([]model.SlotRef, 0),
	}

	roleFilled := make(map[model.Role]int, len(roles))
	var weekdayTotal, weekdayFilled, holidayTotal, holidayFilled int
	perDay := make([]float64, schedule.Len())

	for d := 0; d < schedule.Len(); d++ {
		slot := schedule.SlotAt(d)
		holiday := domain.IsHoliday(d)
		assigned := 0
		for _, r := range roles {
			if slot.Get(r).IsPresent() {
				assigned++
				roleFilled[r]++
			} else {
				metrics.UncoveredSlots = append(metrics.UncoveredSlots, model.SlotRef{Date: slot.Date, Role: r})
			}
		}

		metrics.AssignedSlots += assigned
		perDay[d] = float64(assigned)
		if holiday {
			holidayTotal += len(roles)
			holidayFilled += assigned
		} else {
			weekdayTotal += len(roles)
			weekdayFilled += assigned
		}
		metrics.DailyCoverage[slot.Date] = DayCoverage{
			Date:         slot.Date,
			Holiday:      holiday,
			Required:     len(roles),
			Assigned:     assigned,
			CoverageRate: ratio(assigned, len(roles)),
		}
	}

	metrics.OverallCoverage = ratio(metrics.AssignedSlots, metrics.TotalSlots)
	metrics.WeekdayCoverage = ratio(weekdayFilled, weekdayTotal)
	metrics.HolidayCoverage = ratio(holidayFilled, holidayTotal)
	for _, r := range roles {
		metrics.RoleCoverage[r.String()] = ratio(roleFilled[r], schedule.Len())
	}
	metrics.Uniformity = Uniformity(perDay)

	return metrics
}

// Uniformity 均匀度 = 1 - 变异系数，截断到 [0, 1]；全为 0 时为 0
func Uniformity(values []float64) float64 {
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	cv := StdDev(values) / mean
	return math.Max(0, math.Min(1, 1-cv))
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

// GenerateCoverageReport 生成覆盖率报告
func (c *CoverageAnalyzer) GenerateCoverageReport(metrics *CoverageMetrics) string {
	var b strings.Builder
	b.WriteString("=== 覆盖率分析报告 ===\n\n")

	b.WriteString("【整体覆盖情况】\n")
	fmt.Fprintf(&b, "  应填岗位: %d\n", metrics.TotalSlots)
	fmt.Fprintf(&b, "  已填岗位: %d\n", metrics.AssignedSlots)
	fmt.Fprintf(&b, "  覆盖率: %.1f%%\n", metrics.OverallCoverage*100)
	fmt.Fprintf(&b, "  平日覆盖率: %.1f%%  假日覆盖率: %.1f%%\n\n", metrics.WeekdayCoverage*100, metrics.HolidayCoverage*100)

	if len(metrics.UncoveredSlots) > 0 {
		b.WriteString("【空缺岗位】\n")
		for _, ref := range metrics.UncoveredSlots {
			fmt.Fprintf(&b, "  - %s %s\n", ref.Date, ref.Role.Label())
		}
	}

	return b.String()
}
