package model

import (
	"fmt"
	"strconv"
)

// CandidateID 候选标识，单调递增；0 表示无
type CandidateID uint64

// String 十进制字符串
func (id CandidateID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseCandidateID 解析候选标识
func ParseCandidateID(s string) (CandidateID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("候选标识格式错误 %q: %w", s, err)
	}
	return CandidateID(v), nil
}

// GenerationMethod 候选生成方式
type GenerationMethod string

const (
	MethodBeamSearch  GenerationMethod = "beam-search"
	MethodCSPBackfill GenerationMethod = "csp-backfill"
	MethodGreedyFill  GenerationMethod = "greedy-fill" // 回填无解后的尽力而为补齐
)

// Valid 检查生成方式
func (m GenerationMethod) Valid() bool {
	switch m {
	case MethodBeamSearch, MethodCSPBackfill, MethodGreedyFill:
		return true
	}
	return false
}

// ScoreBreakdown 分项评分
type ScoreBreakdown struct {
	Unfilled              int     `json:"unfilled"`
	UnavailableViolations int     `json:"unavailable_violations"`
	QuotaViolations       int     `json:"quota_violations"`
	DoubleBookings        int     `json:"double_bookings"`
	HardViolations        int     `json:"hard_violations"`
	ConsecutiveExcess     int     `json:"consecutive_excess"`
	PreferenceHits        int     `json:"preference_hits"`
	DutyStdDev            float64 `json:"duty_std_dev"`
	Fairness              float64 `json:"fairness"`

	UnfilledPenalty float64 `json:"unfilled_penalty"`
	HardPenalty     float64 `json:"hard_penalty"`
	SoftPenalty     float64 `json:"soft_penalty"`
	FairnessBonus   float64 `json:"fairness_bonus"`
	PreferenceBonus float64 `json:"preference_bonus"`
	Total           float64 `json:"total"`
}
