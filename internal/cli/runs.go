package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/paiban/zhiban/internal/repository"
	"github.com/spf13/cobra"
)

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "管理已保存的排班运行",
	}
	cmd.AddCommand(newRunsListCmd(a), newRunsShowCmd(a), newRunsRmCmd(a))
	return cmd
}

func newRunsListCmd(a *app) *cobra.Command {
	var (
		limit, offset int
		grade         string
		orderBy       string
		asc           bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "列出已保存的运行",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			filter := repository.DefaultListFilter().WithLimit(limit).WithOffset(offset).WithGrade(grade)
			filter.OrderBy = orderBy
			if asc {
				filter.OrderDir = "asc"
			}
			runs, total, err := repository.NewRunRepository(db).List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !a.text(out) {
				return printJSON(out, map[string]interface{}{"total": total, "runs": runs})
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\t创建时间\t范围\t得分\t等级\t填充率\t候选")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s..%s\t%.2f\t%s\t%.1f%%\t%d\n",
					r.ID, r.CreatedAt, r.StartDate, r.EndDate, r.Score, r.Grade, r.FillRate*100, r.Candidates)
			}
			tw.Flush()
			fmt.Fprintf(out, "共 %d 条\n", total)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "最多条数")
	cmd.Flags().IntVar(&offset, "offset", 0, "偏移")
	cmd.Flags().StringVar(&grade, "grade", "", "按等级过滤")
	cmd.Flags().StringVar(&orderBy, "order-by", "created_at", "排序列：created_at、score、fill_rate、start_date")
	cmd.Flags().BoolVar(&asc, "asc", false, "升序")
	return cmd
}

func newRunsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|latest>",
		Short: "查看运行详情",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			runs := repository.NewRunRepository(db)
			var run *repository.Run
			if args[0] == "latest" {
				run, err = runs.GetLatest(cmd.Context())
			} else {
				run, err = runs.GetByID(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !a.text(out) {
				return printJSON(out, run)
			}
			fmt.Fprintf(out, "运行: %s  创建于 %s\n", run.ID, run.CreatedAt)
			fmt.Fprintf(out, "得分: %.2f  等级: %s  填充率: %.1f%%  候选: %d\n", run.Score, run.Grade, run.FillRate*100, run.Candidates)
			fault, err := run.DecodeFault()
			if err != nil {
				return err
			}
			if fault != nil {
				fmt.Fprintf(out, "无可行解: %s %v\n", fault.Reason, fault.Constraints)
			}
			schedule, err := run.DecodeSchedule()
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			writeSchedule(out, schedule)
			return nil
		},
	}
}

func newRunsRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "删除运行及其候选",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			runs := repository.NewRunRepository(db)
			for _, id := range args {
				if err := runs.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "已删除 %s\n", id)
			}
			return nil
		},
	}
}
