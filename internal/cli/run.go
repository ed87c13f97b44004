package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/paiban/zhiban/internal/repository"
	"github.com/paiban/zhiban/internal/roster"
	"github.com/paiban/zhiban/pkg/engine"
	"github.com/paiban/zhiban/pkg/model"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		input    string
		progress bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "执行一次排班",
		Long:  "读取 YAML/JSON 排班输入并执行排班；配置了数据库时保存运行与候选池。无可行解时仍输出尽力而为的结果，并以非零状态退出。",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := roster.LoadFile(input)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			req, appErr := in.Request(cfg.Engine)
			if appErr != nil {
				return appErr
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			var (
				result *engine.ScheduleResult
				runErr error
			)
			if progress {
				ch := make(chan model.Progress, 64)
				req.Progress = ch
				done := make(chan struct{})
				go func() {
					defer close(done)
					defer close(ch)
					result, runErr = engine.New().Run(ctx, req)
				}()
				for p := range ch {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s] #%d %s 最佳 %.1f 空缺 %d\n", p.Phase, p.Iteration, p.Date, p.BestScore, p.Unfilled)
				}
				<-done
			} else {
				result, runErr = engine.New().Run(ctx, req)
			}
			if result == nil {
				return runErr
			}

			if a.hasDB() && in.Persist(true) {
				if err := a.save(cmd, result); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if a.text(out) {
				writeResult(out, result)
			} else if err := printJSON(out, result); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "排班输入文件 (YAML/JSON)")
	cmd.Flags().BoolVar(&progress, "progress", false, "在标准错误输出搜索进度")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "整体时限，0 表示只受引擎预算限制")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// save 保存运行结果
func (a *app) save(cmd *cobra.Command, result *engine.ScheduleResult) error {
	db, err := a.openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := repository.NewRunRepository(db).Save(cmd.Context(), result)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "已保存运行 %s（%d 个候选）\n", run.ID, run.Candidates)
	return nil
}

// writeResult 以文本输出排班结果
func writeResult(w io.Writer, r *engine.ScheduleResult) {
	fmt.Fprintf(w, "运行: %s\n", r.RunID)
	fmt.Fprintf(w, "得分: %.2f  等级: %s  填充率: %.1f%%  耗时: %s\n",
		r.Score, r.Grade, r.Summary.FillRate*100, r.Duration.Round(time.Millisecond))
	if r.Analysis != nil {
		fmt.Fprintf(w, "难度: %s（%d 分）\n", r.Analysis.Difficulty, r.Analysis.DifficultyScore)
	}
	switch {
	case r.Fault != nil:
		fmt.Fprintf(w, "无可行解: %s\n", r.Fault.Reason)
	case r.Incomplete:
		fmt.Fprintf(w, "搜索未完成，空缺 %d 个岗位\n", len(r.Unfilled))
	}
	fmt.Fprintln(w)

	writeSchedule(w, r.Schedule)

	if len(r.Suggestions) > 0 {
		fmt.Fprintln(w, "\n空缺岗位可选人员:")
		for _, s := range r.Suggestions {
			fmt.Fprintf(w, "  %s %s: %v\n", s.Date, s.Role.Label(), s.Candidates)
		}
	}
	if len(r.Summary.DutyCounts) > 0 {
		fmt.Fprintln(w, "\n值班次数:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		ids := lo.Keys(r.Summary.DutyCounts)
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(tw, "  %s\t%d\n", id, r.Summary.DutyCounts[id])
		}
		tw.Flush()
	}
}

// writeSchedule 以表格输出值班表
func writeSchedule(w io.Writer, s *model.Schedule) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "日期\t%s\t%s\n", model.RoleAttending.Label(), model.RoleResident.Label())
	for i := 0; i < s.Len(); i++ {
		slot := s.SlotAt(i)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", slot.Date, slot.Get(model.RoleAttending), slot.Get(model.RoleResident))
	}
	tw.Flush()
}
