// Package swap 提供值班表的换班评估与推荐
package swap

import (
	"fmt"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/scorer"
	"github.com/paiban/zhiban/pkg/validator"
)

// 换班方式
const (
	TypeTakeOver = "take_over" // 目标人员接替该岗位
	TypeExchange = "exchange"  // 双方互换同角色的两个值班日
	TypeFill     = "fill"      // 为空缺岗位安排人员
)

// SwapEvaluator 换班评估器
type SwapEvaluator struct {
	domain   *model.Domain
	scorer   *scorer.Scorer
	detector *validator.ConflictDetector
}

// NewSwapEvaluator 创建换班评估器
func NewSwapEvaluator(domain *model.Domain) *SwapEvaluator {
	return &SwapEvaluator{
		domain:   domain,
		scorer:   scorer.New(domain),
		detector: validator.ForDomain(domain),
	}
}

// SwapRequest 换班请求
type SwapRequest struct {
	Date         string     `json:"date"`
	Role         model.Role `json:"role"`
	Target       string     `json:"target"`                  // 接班人员
	ExchangeDate string     `json:"exchange_date,omitempty"` // 互换时目标人员原值班日，同一角色
}

// SwapEvaluation 换班评估结果
type SwapEvaluation struct {
	Feasible       bool        `json:"feasible"`
	SwapType       string      `json:"swap_type"`
	Source         string      `json:"source,omitempty"` // 原值班人员，空缺时为空
	ScoreBefore    float64     `json:"score_before"`
	ScoreAfter     float64     `json:"score_after"`
	ScoreChange    float64     `json:"score_change"`
	Issues         []SwapIssue `json:"issues"`
	Impact         *SwapImpact `json:"impact,omitempty"`
	Recommendation string      `json:"recommendation"`

	schedule *model.Schedule
}

// Schedule 换班后的值班表；请求无效时为 nil
func (e *SwapEvaluation) Schedule() *model.Schedule {
	return e.schedule
}

// SwapIssue 换班问题
type SwapIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // error/warning
	StaffID  string `json:"staff_id,omitempty"`
	Message  string `json:"message"`
}

// SwapImpact 换班影响
type SwapImpact struct {
	Source *StaffImpact `json:"source,omitempty"`
	Target *StaffImpact `json:"target"`
}

// StaffImpact 单个人员受到的影响
type StaffImpact struct {
	StaffID             string `json:"staff_id"`
	DutyChange          int    `json:"duty_change"`
	HolidayChange       int    `json:"holiday_change"`
	PreferenceSatisfied bool   `json:"preference_satisfied"` // 新值班日是偏好日期
	NewConflicts        int    `json:"new_conflicts"`
}

// EvaluateSwap 评估换班可行性
// 只把换班新引入的错误级冲突视为不可行，原有冲突不计
func (e *SwapEvaluator) EvaluateSwap(schedule *model.Schedule, req SwapRequest) *SwapEvaluation {
	result := &SwapEvaluation{Feasible: true, Issues: make([]SwapIssue, 0)}

	invalid := func(typ, msg string) *SwapEvaluation {
		result.Feasible = false
		result.Issues = append(result.Issues, SwapIssue{Type: typ, Severity: "error", Message: msg})
		result.Recommendation = e.generateRecommendation(result)
		return result
	}

	// 1. 基础检查
	dateIdx, ok := e.domain.DateIndex(req.Date)
	if !ok || schedule == nil {
		return invalid("invalid_request", fmt.Sprintf("日期 %s 不在值班表中", req.Date))
	}
	targetIdx, ok := e.domain.StaffIndex(req.Target)
	if !ok {
		return invalid(string(validator.ConflictUnknownStaff), fmt.Sprintf("人员 %s 不在名单中", req.Target))
	}
	if e.domain.StaffAt(targetIdx).Role != req.Role {
		return invalid(string(validator.ConflictRoleMismatch), fmt.Sprintf("人员 %s 不能担任%s", req.Target, req.Role.Label()))
	}

	source, hasSource := schedule.Get(req.Date, req.Role).StaffID()
	if hasSource && source == req.Target {
		return invalid("invalid_request", "目标人员已在该岗位值班")
	}
	result.Source = source

	// 2. 模拟换班
	simulated := schedule.Clone()
	if err := simulated.Assign(req.Date, req.Role, req.Target); err != nil {
		return invalid("invalid_request", err.Error())
	}
	switch {
	case req.ExchangeDate != "":
		if !hasSource {
			return invalid("invalid_request", "空缺岗位不能互换")
		}
		if req.ExchangeDate == req.Date {
			return invalid("invalid_request", "互换日期不能与原日期相同")
		}
		if id, ok := schedule.Get(req.ExchangeDate, req.Role).StaffID(); !ok || id != req.Target {
			return invalid("invalid_request", fmt.Sprintf("人员 %s 在 %s 没有%s值班", req.Target, req.ExchangeDate, req.Role.Label()))
		}
		if err := simulated.Assign(req.ExchangeDate, req.Role, source); err != nil {
			return invalid("invalid_request", err.Error())
		}
		result.SwapType = TypeExchange
	case hasSource:
		result.SwapType = TypeTakeOver
	default:
		result.SwapType = TypeFill
	}
	result.schedule = simulated

	// 3. 检测新引入的冲突
	before := make(map[string]bool)
	for _, c := range e.detector.DetectAll(e.domain, schedule) {
		before[conflictKey(c)] = true
	}
	newConflicts := make(map[string]int)
	for _, c := range e.detector.DetectAll(e.domain, simulated) {
		if before[conflictKey(c)] {
			continue
		}
		newConflicts[c.StaffID]++
		result.Issues = append(result.Issues, SwapIssue{
			Type:     string(c.Type),
			Severity: c.Severity,
			StaffID:  c.StaffID,
			Message:  c.Message,
		})
		if c.IsError() {
			result.Feasible = false
		}
	}

	// 4. 得分变化
	result.ScoreBefore, _ = e.scorer.Score(schedule)
	result.ScoreAfter, _ = e.scorer.Score(simulated)
	result.ScoreChange = result.ScoreAfter - result.ScoreBefore

	// 5. 计算影响
	e.calculateImpact(result, req, dateIdx, targetIdx, newConflicts)

	// 6. 生成建议
	result.Recommendation = e.generateRecommendation(result)
	return result
}

// CanSwap 快速检查是否可换班
func (e *SwapEvaluator) CanSwap(schedule *model.Schedule, req SwapRequest) (bool, string) {
	result := e.EvaluateSwap(schedule, req)
	if !result.Feasible {
		for _, issue := range result.Issues {
			if issue.Severity == "error" {
				return false, issue.Message
			}
		}
		return false, "无法进行换班"
	}
	return true, ""
}

// calculateImpact 计算双方值班次数与偏好变化
func (e *SwapEvaluator) calculateImpact(result *SwapEvaluation, req SwapRequest, dateIdx, targetIdx int, newConflicts map[string]int) {
	holiday := 0
	if e.domain.IsHoliday(dateIdx) {
		holiday = 1
	}

	target := &StaffImpact{
		StaffID:             req.Target,
		DutyChange:          1,
		HolidayChange:       holiday,
		PreferenceSatisfied: e.domain.Preferred(targetIdx, dateIdx),
		NewConflicts:        newConflicts[req.Target],
	}
	result.Impact = &SwapImpact{Target: target}
	if result.Source == "" {
		return
	}

	source := &StaffImpact{
		StaffID:       result.Source,
		DutyChange:    -1,
		HolidayChange: -holiday,
		NewConflicts:  newConflicts[result.Source],
	}
	if req.ExchangeDate != "" {
		exIdx, _ := e.domain.DateIndex(req.ExchangeDate)
		exHoliday := 0
		if e.domain.IsHoliday(exIdx) {
			exHoliday = 1
		}
		target.DutyChange, source.DutyChange = 0, 0
		target.HolidayChange = holiday - exHoliday
		source.HolidayChange = exHoliday - holiday
		if sourceIdx, ok := e.domain.StaffIndex(result.Source); ok {
			source.PreferenceSatisfied = e.domain.Preferred(sourceIdx, exIdx)
		}
	}
	result.Impact.Source = source
}

// generateRecommendation 生成换班建议
func (e *SwapEvaluator) generateRecommendation(result *SwapEvaluation) string {
	if !result.Feasible {
		return "不建议进行此换班，存在硬约束冲突"
	}

	switch {
	case result.ScoreChange > 0:
		return "推荐，换班后整体得分提高"
	case result.ScoreChange == 0:
		return "可以进行，整体得分不变"
	case len(result.Issues) > 0:
		return "谨慎进行，会引入软约束问题"
	default:
		return "可以进行，但整体得分略有下降"
	}
}

func conflictKey(c validator.Conflict) string {
	return fmt.Sprintf("%s|%s|%s|%d", c.Type, c.StaffID, c.Date, int(c.Role))
}
