package model

import (
	"fmt"
	"strings"
)

// Grade 候选等级，数值越大越好
type Grade int

const (
	GradeF Grade = iota + 1
	GradeD
	GradeC
	GradeB
	GradeA
	GradeS
)

// AllGrades 从高到低
var AllGrades = []Grade{GradeS, GradeA, GradeB, GradeC, GradeD, GradeF}

// String 返回等级字母
func (g Grade) String() string {
	switch g {
	case GradeS:
		return "S"
	case GradeA:
		return "A"
	case GradeB:
		return "B"
	case GradeC:
		return "C"
	case GradeD:
		return "D"
	case GradeF:
		return "F"
	default:
		return "?"
	}
}

// Better 是否严格优于另一个等级
func (g Grade) Better(other Grade) bool {
	return g > other
}

// Encoded 监督学习用的数值编码，S=5 … F=0
func (g Grade) Encoded() int {
	if g < GradeF || g > GradeS {
		return 0
	}
	return int(g - GradeF)
}

// ParseGrade 解析等级字母
func ParseGrade(s string) (Grade, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "S":
		return GradeS, nil
	case "A":
		return GradeA, nil
	case "B":
		return GradeB, nil
	case "C":
		return GradeC, nil
	case "D":
		return GradeD, nil
	case "F":
		return GradeF, nil
	}
	return 0, fmt.Errorf("未知等级: %q", s)
}

// MarshalText 实现 encoding.TextMarshaler
func (g Grade) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (g *Grade) UnmarshalText(text []byte) error {
	grade, err := ParseGrade(string(text))
	if err != nil {
		return err
	}
	*g = grade
	return nil
}

// GradeThreshold 等级门槛
// MaxUnfilled / MaxHardViolations 为负数时不检查；比例门槛为 0 时不检查
type GradeThreshold struct {
	Grade             Grade   `json:"grade" yaml:"grade"`
	MinScore          float64 `json:"min_score" yaml:"min_score"`
	MaxUnfilled       int     `json:"max_unfilled" yaml:"max_unfilled"`
	MaxHardViolations int     `json:"max_hard_violations" yaml:"max_hard_violations"`
	MinFillRate       float64 `json:"min_fill_rate,omitempty" yaml:"min_fill_rate,omitempty"`
	MinPreferenceRate float64 `json:"min_preference_rate,omitempty" yaml:"min_preference_rate,omitempty"`
}

// GradeFacts 定级所需的候选事实
type GradeFacts struct {
	Unfilled       int
	HardViolations int
	FillRate       float64
	PreferenceRate float64
}

// DefaultThresholds 仅按分数定级的门槛
func DefaultThresholds() []GradeThreshold {
	return []GradeThreshold{
		{Grade: GradeS, MinScore: 0, MaxUnfilled: -1, MaxHardViolations: -1},
		{Grade: GradeA, MinScore: -100, MaxUnfilled: -1, MaxHardViolations: -1},
		{Grade: GradeB, MinScore: -500, MaxUnfilled: -1, MaxHardViolations: -1},
		{Grade: GradeC, MinScore: -1000, MaxUnfilled: -1, MaxHardViolations: -1},
		{Grade: GradeD, MinScore: -2000, MaxUnfilled: -1, MaxHardViolations: -1},
	}
}

// StrictThresholds 同时检查空缺、硬违反、填充率与偏好率的门槛
func StrictThresholds() []GradeThreshold {
	return []GradeThreshold{
		{Grade: GradeS, MinScore: 0, MaxUnfilled: 0, MaxHardViolations: 0, MinFillRate: 0.9, MinPreferenceRate: 0.8},
		{Grade: GradeA, MinScore: -100, MaxUnfilled: 2, MaxHardViolations: 1, MinFillRate: 0.9},
		{Grade: GradeB, MinScore: -500, MaxUnfilled: 5, MaxHardViolations: 3},
		{Grade: GradeC, MinScore: -1000, MaxUnfilled: 10, MaxHardViolations: 5},
		{Grade: GradeD, MinScore: -2000, MaxUnfilled: 15, MaxHardViolations: 10},
	}
}

// Admits 检查候选是否达到门槛
func (t GradeThreshold) Admits(score float64, facts GradeFacts) bool {
	if score < t.MinScore {
		return false
	}
	if t.MaxUnfilled >= 0 && facts.Unfilled > t.MaxUnfilled {
		return false
	}
	if t.MaxHardViolations >= 0 && facts.HardViolations > t.MaxHardViolations {
		return false
	}
	if t.MinFillRate > 0 && facts.FillRate < t.MinFillRate {
		return false
	}
	if t.MinPreferenceRate > 0 && facts.PreferenceRate < t.MinPreferenceRate {
		return false
	}
	return true
}

// GradeFor 按门槛定级，门槛从高到低检查，均不满足为 F
func GradeFor(score float64, facts GradeFacts, thresholds []GradeThreshold) Grade {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds()
	}
	for _, g := range AllGrades {
		for _, t := range thresholds {
			if t.Grade == g && t.Admits(score, facts) {
				return g
			}
		}
	}
	return GradeF
}
