package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/paiban/zhiban/internal/roster"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/scheduler/scorer"
	"github.com/paiban/zhiban/pkg/validator"
	"github.com/spf13/cobra"
)

// validation 值班表评估结果
type validation struct {
	IsValid   bool                 `json:"is_valid"`
	Score     float64              `json:"score"`
	Grade     model.Grade          `json:"grade"`
	Breakdown model.ScoreBreakdown `json:"breakdown"`
	Unfilled  []model.SlotRef      `json:"unfilled,omitempty"`
	Conflicts []validator.Conflict `json:"conflicts,omitempty"`
}

func newValidateCmd(a *app) *cobra.Command {
	var input, schedulePath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "评估已有值班表",
		Long:  "按排班输入对值班表评分、定级并列出冲突。值班表可以是 JSON 数组，也可以是 run 命令的 JSON 输出。",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := roster.LoadFile(input)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			domain, appErr := in.Domain(cfg.Engine)
			if appErr != nil {
				return appErr
			}
			schedule, err := loadSchedule(schedulePath)
			if err != nil {
				return err
			}
			if !slices.Equal(schedule.Dates(), domain.Dates()) {
				return fmt.Errorf("值班表日期与排班范围不一致")
			}

			sc := scorer.New(domain)
			score, breakdown := sc.Score(schedule)
			v := validation{
				IsValid:   breakdown.HardViolations == 0,
				Score:     score,
				Grade:     sc.Grade(breakdown),
				Breakdown: breakdown,
				Unfilled:  schedule.Unfilled(domain.Roles()),
				Conflicts: validator.ForDomain(domain).DetectAll(domain, schedule),
			}

			out := cmd.OutOrStdout()
			if !a.text(out) {
				return printJSON(out, v)
			}
			fmt.Fprintf(out, "合法: %v  得分: %.2f  等级: %s  空缺: %d\n", v.IsValid, v.Score, v.Grade, len(v.Unfilled))
			for _, c := range v.Conflicts {
				fmt.Fprintf(out, "  [%s] %s\n", c.Severity, c.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "排班输入文件 (YAML/JSON)")
	cmd.Flags().StringVarP(&schedulePath, "schedule", "s", "", "值班表文件 (JSON)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("schedule")
	return cmd
}

// loadSchedule 读取值班表数组，或带 schedule 字段的运行结果
func loadSchedule(path string) (*model.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取值班表失败: %w", err)
	}
	var schedule model.Schedule
	if err := json.Unmarshal(data, &schedule); err == nil {
		return &schedule, nil
	}
	var wrapped struct {
		Schedule *model.Schedule `json:"schedule"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("解析值班表失败: %w", err)
	}
	if wrapped.Schedule == nil {
		return nil, fmt.Errorf("文件中没有值班表")
	}
	return wrapped.Schedule, nil
}
