package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/paiban/zhiban/internal/roster"
	"github.com/paiban/zhiban/pkg/analyzer"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "排班前分析",
		Long:  "不执行排班，只评估供需比、逐日可选组合、难度与瓶颈。必要条件不满足时以非零状态退出。",
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

			report := analyzer.Analyze(domain)
			out := cmd.OutOrStdout()
			if a.text(out) {
				writeAnalysis(out, report)
			} else if err := printJSON(out, report); err != nil {
				return err
			}
			if !report.Feasibility.Feasible {
				return fmt.Errorf("排班必要条件不满足（%d 个问题）", len(report.Feasibility.Problems))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "排班输入文件 (YAML/JSON)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// writeAnalysis 以文本输出分析报告
func writeAnalysis(w io.Writer, r *analyzer.Report) {
	fmt.Fprintf(w, "天数: %d（平日 %d，假日 %d）  岗位: %d\n", r.TotalDays, r.WeekdayCount, r.HolidayCount, r.TotalSlots)
	fmt.Fprintf(w, "难度: %s（%d 分）  可行: %v\n", r.Difficulty, r.DifficultyScore, r.Feasibility.Feasible)
	fmt.Fprintf(w, "约束密度: %.1f%%  搜索空间: 10^%.1f  每日组合中位数: %.0f\n\n",
		r.ConstraintDensity*100, r.SearchSpace.Log10, r.SearchSpace.Median)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "角色\t类型\t人数\t需求\t配额\t供需比")
	for _, s := range r.Supply {
		kind := "平日"
		if s.Holiday {
			kind = "假日"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.2f\n", s.Role.Label(), kind, s.Staff, s.Demand, s.Supply, s.Ratio)
	}
	tw.Flush()

	if len(r.Feasibility.Problems) > 0 {
		fmt.Fprintln(w, "\n问题:")
		for _, p := range r.Feasibility.Problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	if len(r.Bottlenecks) > 0 {
		fmt.Fprintln(w, "\n瓶颈:")
		for _, b := range r.Bottlenecks {
			fmt.Fprintf(w, "  %s\n", b)
		}
	}
}
