package model

import "time"

// 默认参数
const (
	DefaultWeekdayQuota       = 5
	DefaultHolidayQuota       = 2
	DefaultMaxConsecutiveDays = 2
	DefaultBeamWidth          = 5
	DefaultCSPTimeout         = 10 * time.Second
)

// Weights 评分系数，带符号：惩罚为负，奖励为正
type Weights struct {
	Unfilled   float64 `json:"unfilled" yaml:"unfilled"`     // 每个空缺岗位
	Hard       float64 `json:"hard" yaml:"hard"`             // 每次硬约束违反
	Soft       float64 `json:"soft" yaml:"soft"`             // 每个超出连续上限的值班日
	Fairness   float64 `json:"fairness" yaml:"fairness"`     // 乘以公平度
	Preference float64 `json:"preference" yaml:"preference"` // 每次命中偏好日期
}

// DefaultWeights 默认评分系数
func DefaultWeights() Weights {
	return Weights{
		Unfilled:   -1000,
		Hard:       -100,
		Soft:       -10,
		Fairness:   5,
		Preference: 2,
	}
}

// ConstraintSet 一次排班运行的约束与参数
type ConstraintSet struct {
	MaxConsecutiveDays int              `json:"max_consecutive_days" yaml:"max_consecutive_days" validate:"min=1"`
	BeamWidth          int              `json:"beam_width" yaml:"beam_width" validate:"min=1"`
	CSPTimeout         time.Duration    `json:"csp_timeout" yaml:"csp_timeout" validate:"min=0"`
	BeamTimeout        time.Duration    `json:"beam_timeout,omitempty" yaml:"beam_timeout,omitempty" validate:"min=0"`             // 0 表示不限
	NeighborExpansion  int              `json:"neighbor_expansion,omitempty" yaml:"neighbor_expansion,omitempty" validate:"min=0"` // 0 表示不限
	Workers            int              `json:"workers,omitempty" yaml:"workers,omitempty" validate:"min=0"`                       // 并行评分协程数，0 或 1 为串行
	RequiredRoles      []Role           `json:"required_roles" yaml:"required_roles" validate:"required,min=1"`
	Weekdays           []string         `json:"weekdays" yaml:"weekdays"`
	Holidays           []string         `json:"holidays" yaml:"holidays"`
	Weights            Weights          `json:"weights" yaml:"weights"`
	Thresholds         []GradeThreshold `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// DefaultConstraintSet 默认约束集
func DefaultConstraintSet(weekdays, holidays []string) ConstraintSet {
	return ConstraintSet{
		MaxConsecutiveDays: DefaultMaxConsecutiveDays,
		BeamWidth:          DefaultBeamWidth,
		CSPTimeout:         DefaultCSPTimeout,
		RequiredRoles:      append([]Role(nil), AllRoles...),
		Weekdays:           append([]string(nil), weekdays...),
		Holidays:           append([]string(nil), holidays...),
		Weights:            DefaultWeights(),
		Thresholds:         DefaultThresholds(),
	}
}

// Horizon 返回全部日期（时间顺序）
func (cs ConstraintSet) Horizon() []string {
	all := make([]string, 0, len(cs.Weekdays)+len(cs.Holidays))
	all = append(all, cs.Weekdays...)
	all = append(all, cs.Holidays...)
	return SortDates(all)
}

// Roles 返回要求的角色，按固定角色顺序
func (cs ConstraintSet) Roles() []Role {
	want := make(map[Role]bool, len(cs.RequiredRoles))
	for _, r := range cs.RequiredRoles {
		want[r] = true
	}
	roles := make([]Role, 0, len(want))
	for _, r := range AllRoles {
		if want[r] {
			roles = append(roles, r)
		}
	}
	return roles
}
