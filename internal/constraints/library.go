// Package constraints 值班约束目录
package constraints

import (
	"strconv"

	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/constraint"
	"github.com/samber/lo"
)

// ConstraintParam 约束参数定义
type ConstraintParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, float, string, bool, array
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// ConstraintDefinition 约束定义
type ConstraintDefinition struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Type        string            `json:"type"`     // hard 硬约束, soft 软约束, score 评分项
	Category    string            `json:"category"` // 分类
	Description string            `json:"description"`
	Stages      []string          `json:"stages"` // 生效阶段：beam, csp, score
	Params      []ConstraintParam `json:"params"`
}

// LibraryResponse 约束库响应
type LibraryResponse struct {
	Library []ConstraintDefinition `json:"library"`
}

// GetLibrary 获取完整的约束库
func GetLibrary() []ConstraintDefinition {
	w := model.DefaultWeights()
	return []ConstraintDefinition{
		// =====================================================
		// 硬约束
		// =====================================================
		{
			Name:        string(constraint.TypeRoleMatch),
			DisplayName: "角色匹配",
			Type:        "hard",
			Category:    "岗位资格",
			Description: "主治岗位只能由主治医师值班，总医师岗位只能由总医师值班。",
			Stages:      []string{"beam", "csp", "score"},
			Params:      []ConstraintParam{},
		},
		{
			Name:        string(constraint.TypeUnavailableDate),
			DisplayName: "不可值班日期",
			Type:        "hard",
			Category:    "个人可用性",
			Description: "人员在其不可值班日期上不得被安排。",
			Stages:      []string{"beam", "csp", "score"},
			Params: []ConstraintParam{
				{Name: "unavailable_dates", Type: "array", Description: "不可值班日期(YYYY-MM-DD)"},
			},
		},
		{
			Name:        string(constraint.TypeDoubleBooking),
			DisplayName: "同日重复排班",
			Type:        "hard",
			Category:    "岗位资格",
			Description: "同一人同一天最多占用一个岗位。",
			Stages:      []string{"beam", "csp", "score"},
			Params:      []ConstraintParam{},
		},
		{
			Name:        string(constraint.TypeQuota),
			DisplayName: "值班配额",
			Type:        "hard",
			Category:    "工作量",
			Description: "平日与假日分别计数，超出配额的每个班次记一次硬违反。",
			Stages:      []string{"beam", "csp", "score"},
			Params: []ConstraintParam{
				{Name: "weekday_quota", Type: "int", Description: "平日配额", Default: "5", Min: "0"},
				{Name: "holiday_quota", Type: "int", Description: "假日配额", Default: "2", Min: "0"},
			},
		},

		// =====================================================
		// 软约束
		// =====================================================
		{
			Name:        string(constraint.TypeMaxConsecutiveDays),
			DisplayName: "最大连续值班天数",
			Type:        "soft",
			Category:    "休息保障",
			Description: "连续值班不超过上限；搜索中视为合法性检查，评分时每个超出的值班日扣分。",
			Stages:      []string{"beam", "csp", "score"},
			Params: []ConstraintParam{
				{Name: "max_consecutive_days", Type: "int", Description: "最大连续天数", Default: "2", Min: "1"},
				{Name: "weight", Type: "float", Description: "每个超出日的系数", Default: formatWeight(w.Soft)},
			},
		},
		{
			Name:        string(constraint.TypePreferredDate),
			DisplayName: "偏好日期",
			Type:        "soft",
			Category:    "个人偏好",
			Description: "人员在偏好日期值班时加分。",
			Stages:      []string{"score"},
			Params: []ConstraintParam{
				{Name: "preferred_dates", Type: "array", Description: "偏好日期(YYYY-MM-DD)"},
				{Name: "weight", Type: "float", Description: "每次命中的系数", Default: formatWeight(w.Preference)},
			},
		},

		// =====================================================
		// 评分项
		// =====================================================
		{
			Name:        "unfilled",
			DisplayName: "空缺岗位",
			Type:        "score",
			Category:    "覆盖",
			Description: "每个未安排人员的必需岗位扣分。",
			Stages:      []string{"score"},
			Params: []ConstraintParam{
				{Name: "weight", Type: "float", Description: "每个空缺的系数", Default: formatWeight(w.Unfilled)},
			},
		},
		{
			Name:        "fairness",
			DisplayName: "值班公平度",
			Type:        "score",
			Category:    "工作量",
			Description: "公平度为 max(0, 10 - 值班数标准差)，乘以系数计入总分。",
			Stages:      []string{"score"},
			Params: []ConstraintParam{
				{Name: "weight", Type: "float", Description: "公平度系数", Default: formatWeight(w.Fairness)},
			},
		},
	}
}

// GetByName 按名称查找约束定义
func GetByName(name string) (ConstraintDefinition, bool) {
	return lo.Find(GetLibrary(), func(d ConstraintDefinition) bool {
		return d.Name == name
	})
}

// GetByType 按类型过滤约束定义
func GetByType(typ string) []ConstraintDefinition {
	return lo.Filter(GetLibrary(), func(d ConstraintDefinition, _ int) bool {
		return d.Type == typ
	})
}

// Registered 返回管理器中已注册约束的定义，顺序与管理器一致
func Registered(m *constraint.Manager) []ConstraintDefinition {
	return lo.FilterMap(m.GetAll(), func(c constraint.Constraint, _ int) (ConstraintDefinition, bool) {
		return GetByName(string(c.Type()))
	})
}

func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
