package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/paiban/zhiban/internal/constraints"
	"github.com/spf13/cobra"
)

func newLibraryCmd(a *app) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "library",
		Short: "列出约束目录",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib := constraints.GetLibrary()
			if typ != "" {
				lib = constraints.GetByType(typ)
			}

			out := cmd.OutOrStdout()
			if !a.text(out) {
				return printJSON(out, constraints.LibraryResponse{Library: lib})
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "名称\t类型\t显示名\t说明")
			for _, d := range lib {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.Type, d.DisplayName, d.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "", "按类型过滤：hard、soft、score")
	return cmd
}
