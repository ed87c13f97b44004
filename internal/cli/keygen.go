package cli

import (
	"fmt"
	"strings"

	"github.com/paiban/zhiban/internal/security"
	"github.com/spf13/cobra"
)

func newKeygenCmd(a *app) *cobra.Command {
	var scopes []string
	cmd := &cobra.Command{
		Use:   "keygen <name>",
		Short: "生成服务端 API 密钥",
		Long:  "生成随机密钥，输出可直接写入 API_KEYS 或配置文件 api.keys 的条目。",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := security.GenerateSecret()
			if err != nil {
				return fmt.Errorf("生成密钥失败: %w", err)
			}
			spec := args[0] + ":" + secret
			if len(scopes) > 0 {
				spec += ":" + strings.Join(scopes, "+")
			}
			// 与服务端按同一规则解析，提前发现名称或范围错误
			if _, err := security.ParseKeys([]string{spec}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !a.text(out) {
				return printJSON(out, map[string]string{"name": args[0], "secret": secret, "entry": spec})
			}
			fmt.Fprintln(out, spec)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "权限范围：read、write（默认全部）")
	return cmd
}
