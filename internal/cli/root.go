// Package cli 实现 zhiban 命令行
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/paiban/zhiban/internal/config"
	"github.com/paiban/zhiban/internal/database"
	"github.com/paiban/zhiban/pkg/logger"
	"github.com/spf13/cobra"
)

// app 全局参数
type app struct {
	configPath string
	dbPath     string
	format     string
	logLevel   string
}

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "zhiban",
		Short:         "医院值班排班引擎",
		Long:          "为主治医师与总医师生成值班表：束搜索、约束回填、评分定级，并保存候选池。",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logger.Config{
				Level:  a.logLevel,
				Format: "console",
				Output: "stderr",
			})
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML 配置文件（默认只读环境变量）")
	root.PersistentFlags().StringVarP(&a.dbPath, "db", "d", os.Getenv("ZHIBAN_DB"), "SQLite 数据库路径（默认 $ZHIBAN_DB）")
	root.PersistentFlags().StringVarP(&a.format, "format", "f", "", "输出格式：json 或 text（默认终端为 text）")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "日志级别")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newAnalyzeCmd(a),
		newSwapCmd(a),
		newRepairCmd(a),
		newRunsCmd(a),
		newExportCmd(a),
		newLibraryCmd(a),
		newKeygenCmd(a),
	)
	return root
}

// loadConfig 读取配置文件或环境变量
func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath != "" {
		return config.LoadFile(a.configPath)
	}
	return config.Load()
}

// openDB 打开数据库；--db 优先，其次为配置文件中的数据库
func (a *app) openDB(ctx context.Context) (*database.DB, error) {
	if a.dbPath != "" {
		return database.New(ctx, &config.DatabaseConfig{Driver: "sqlite", Path: a.dbPath})
	}
	if a.configPath == "" {
		return nil, fmt.Errorf("未指定数据库，请使用 --db 或 --config")
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return database.New(ctx, &cfg.Database)
}

// hasDB 是否配置了数据库
func (a *app) hasDB() bool {
	return a.dbPath != "" || a.configPath != ""
}

// text 是否输出文本格式
func (a *app) text(w io.Writer) bool {
	switch a.format {
	case "text":
		return true
	case "json":
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
