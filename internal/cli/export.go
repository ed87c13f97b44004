package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/paiban/zhiban/internal/repository"
	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		as         string
		output     string
		noSchedule bool
	)
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "导出运行的候选池",
		Long:  "导出候选池：json 为完整记录，csv 每行一个候选并展开特征列，training 为监督学习样本。",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			thresholds := cfg.Engine.ToConstraintSet(nil, nil).Thresholds
			p, err := repository.NewCandidateRepository(db).LoadPool(cmd.Context(), args[0], thresholds)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("创建输出文件失败: %w", err)
				}
				defer f.Close()
				w = f
			}

			switch as {
			case "json":
				err = p.WriteJSON(w, !noSchedule)
			case "csv":
				err = p.WriteCSV(w)
			case "training":
				err = printJSON(w, p.SupervisedRows())
			default:
				return fmt.Errorf("不支持的导出格式 %q", as)
			}
			if err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "已导出 %d 个候选到 %s\n", p.Len(), output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&as, "as", "json", "导出格式：json、csv、training")
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件（默认标准输出）")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "json 导出时省略值班表")
	return cmd
}
