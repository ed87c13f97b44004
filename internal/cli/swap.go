package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/paiban/zhiban/internal/roster"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/paiban/zhiban/pkg/swap"
	"github.com/spf13/cobra"
)

func newSwapCmd(a *app) *cobra.Command {
	var (
		input, schedulePath, output string
		date, roleName, staffID     string
		target, exchangeDate        string
		maxResults                  int
		noExchange                  bool
	)
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "评估或推荐换班",
		Long: `指定 --target 时评估由该人员接班（配合 --exchange-date 为互换），可用 -o 写出换班后的值班表；
否则为 --date 当天的岗位推荐接班人选，岗位由 --role 或 --staff 确定。`,
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

			slot, ok := schedule.Slot(date)
			if !ok {
				return fmt.Errorf("日期 %s 不在值班表中", date)
			}
			var role model.Role
			switch {
			case staffID != "":
				if role, ok = slot.RoleOf(staffID); !ok {
					return fmt.Errorf("人员 %s 在 %s 没有值班", staffID, date)
				}
			case roleName != "":
				if role, err = model.ParseRole(roleName); err != nil {
					return err
				}
			default:
				return fmt.Errorf("必须指定 --role 或 --staff")
			}

			out := cmd.OutOrStdout()
			recommender := swap.NewRecommender(domain)

			if target != "" {
				req := swap.SwapRequest{Date: date, Role: role, Target: target, ExchangeDate: exchangeDate}
				eval := recommender.Evaluator().EvaluateSwap(schedule, req)
				if output != "" && eval.Feasible {
					if err := saveSchedule(output, eval.Schedule()); err != nil {
						return err
					}
				}
				if !a.text(out) {
					return printJSON(out, eval)
				}
				fmt.Fprintf(out, "可行: %v  方式: %s  得分变化: %+.2f\n", eval.Feasible, eval.SwapType, eval.ScoreChange)
				fmt.Fprintf(out, "建议: %s\n", eval.Recommendation)
				for _, issue := range eval.Issues {
					fmt.Fprintf(out, "  [%s] %s\n", issue.Severity, issue.Message)
				}
				if !eval.Feasible {
					return fmt.Errorf("换班不可行")
				}
				return nil
			}

			opts := swap.DefaultRecommendOptions()
			opts.MaxResults = maxResults
			opts.AllowExchange = !noExchange
			recs, err := recommender.RecommendSwapTargets(schedule, date, role, opts)
			if err != nil {
				return err
			}
			if !a.text(out) {
				return printJSON(out, recs)
			}
			if len(recs) == 0 {
				fmt.Fprintln(out, "没有可行的换班人选")
				return nil
			}
			for _, rec := range recs {
				line := fmt.Sprintf("%d. %s", rec.Rank, rec.TargetName)
				if rec.ExchangeDate != "" {
					line += fmt.Sprintf("（互换 %s）", rec.ExchangeDate)
				}
				fmt.Fprintf(out, "%s  得分 %.2f  %s\n", line, rec.Evaluation.ScoreAfter, rec.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "排班输入文件 (YAML/JSON)")
	cmd.Flags().StringVarP(&schedulePath, "schedule", "s", "", "值班表文件 (JSON)")
	cmd.Flags().StringVar(&date, "date", "", "换班日期")
	cmd.Flags().StringVar(&roleName, "role", "", "岗位角色：attending 或 resident")
	cmd.Flags().StringVar(&staffID, "staff", "", "需要换班的人员，按其当日岗位推荐")
	cmd.Flags().StringVar(&target, "target", "", "接班人员")
	cmd.Flags().StringVar(&exchangeDate, "exchange-date", "", "互换时接班人员原值班日")
	cmd.Flags().IntVarP(&maxResults, "max", "n", 5, "推荐人数上限")
	cmd.Flags().BoolVar(&noExchange, "no-exchange", false, "只推荐直接接班")
	cmd.Flags().StringVarP(&output, "output", "o", "", "写出换班后的值班表 (JSON)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("schedule")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

// saveSchedule 把值班表写为 JSON 文件
func saveSchedule(path string, schedule *model.Schedule) error {
	data, err := json.MarshalIndent(schedule, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写出值班表失败: %w", err)
	}
	return nil
}

func newRepairCmd(a *app) *cobra.Command {
	var (
		input, schedulePath, output string
		depth                       int
	)
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "用交换链填补值班表空缺",
		Long:  "配额已满的人员让出同类型的另一个值班日来填补空缺，再为让出的日期找人，链长不超过 --depth。",
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

			opts := swap.DefaultChainOptions()
			opts.MaxDepth = depth
			report, err := swap.NewRecommender(domain).FillGaps(cmd.Context(), schedule, opts)
			if err != nil {
				return err
			}
			if output != "" {
				if err := saveSchedule(output, report.Schedule); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if !a.text(out) {
				return printJSON(out, report)
			}
			fmt.Fprintf(out, "填补: %d  剩余空缺: %d  得分: %.2f -> %.2f\n",
				len(report.Chains), len(report.Remaining), report.ScoreBefore, report.ScoreAfter)
			for _, chain := range report.Chains {
				fmt.Fprintf(out, "%s %s\n", chain.Date, chain.Role.Label())
				for _, step := range chain.Steps {
					if step.From == "" {
						fmt.Fprintf(out, "  %s 接班 %s\n", step.StaffID, step.To)
					} else {
						fmt.Fprintf(out, "  %s 从 %s 移至 %s\n", step.StaffID, step.From, step.To)
					}
				}
			}
			for _, ref := range report.Remaining {
				fmt.Fprintf(out, "  未能填补: %s\n", ref)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "排班输入文件 (YAML/JSON)")
	cmd.Flags().StringVarP(&schedulePath, "schedule", "s", "", "值班表文件 (JSON)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "写出补缺后的值班表 (JSON)")
	cmd.Flags().IntVar(&depth, "depth", swap.DefaultChainDepth, "交换链最大步数")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("schedule")
	return cmd
}
