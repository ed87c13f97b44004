// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

type ctxKey struct{}

// ContextWithRequestID 在上下文中写入请求ID
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestIDFromContext 读取上下文中的请求ID
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		l = l.With().Str("request_id", reqID).Logger()
	}
	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// WithFields 添加多个字段
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// SchedulerLogger 排班引擎专用日志器
type SchedulerLogger struct {
	base *zerolog.Logger
}

// NewSchedulerLogger 创建排班引擎日志器
func NewSchedulerLogger() *SchedulerLogger {
	l := Get().With().Str("component", "scheduler").Logger()
	return &SchedulerLogger{base: &l}
}

// NewNopSchedulerLogger 创建丢弃输出的日志器
func NewNopSchedulerLogger() *SchedulerLogger {
	l := zerolog.Nop()
	return &SchedulerLogger{base: &l}
}

// With 附加运行标识
func (l *SchedulerLogger) With(runID string) *SchedulerLogger {
	child := l.base.With().Str("run_id", runID).Logger()
	return &SchedulerLogger{base: &child}
}

// StartSchedule 记录排班开始
func (l *SchedulerLogger) StartSchedule(staff, days, beamWidth int) {
	l.base.Info().
		Int("staff", staff).
		Int("days", days).
		Int("beam_width", beamWidth).
		Msg("开始生成值班表")
}

// Analysis 记录排班前分析
func (l *SchedulerLogger) Analysis(difficulty string, score int, feasible bool, bottlenecks []string) {
	e := l.base.Info()
	if !feasible {
		e = l.base.Warn()
	}
	e.Str("difficulty", difficulty).
		Int("difficulty_score", score).
		Bool("feasible", feasible).
		Strs("bottlenecks", bottlenecks).
		Msg("排班前分析完成")
}

// BeamStep 记录束搜索单日推进
func (l *SchedulerLogger) BeamStep(date string, successors, kept int, best float64) {
	l.base.Debug().
		Str("date", date).
		Int("successors", successors).
		Int("kept", kept).
		Float64("best_score", best).
		Msg("束搜索推进")
}

// StructuralGap 记录无合法人选的空缺
func (l *SchedulerLogger) StructuralGap(date, role string) {
	l.base.Debug().
		Str("date", date).
		Str("role", role).
		Msg("无合法人选，保留空缺")
}

// CSPStart 记录约束回填开始
func (l *SchedulerLogger) CSPStart(variables int, budget time.Duration) {
	l.base.Info().
		Int("variables", variables).
		Dur("budget", budget).
		Msg("开始约束回填")
}

// Infeasible 记录无可行解诊断
func (l *SchedulerLogger) Infeasible(variables, constraints []string) {
	l.base.Warn().
		Strs("variables", variables).
		Strs("constraints", constraints).
		Msg("约束回填无可行解")
}

// BudgetExceeded 记录时间预算耗尽
func (l *SchedulerLogger) BudgetExceeded(phase string, remaining int) {
	l.base.Warn().
		Str("phase", phase).
		Int("remaining", remaining).
		Msg("时间预算耗尽，返回部分结果")
}

// ConstraintViolation 记录约束违反
func (l *SchedulerLogger) ConstraintViolation(constraint, details string) {
	l.base.Warn().
		Str("constraint", constraint).
		Str("details", details).
		Msg("约束违反")
}

// ScheduleComplete 记录排班完成
func (l *SchedulerLogger) ScheduleComplete(duration time.Duration, score float64, grade string, unfilled int) {
	l.base.Info().
		Dur("duration", duration).
		Float64("score", score).
		Str("grade", grade).
		Int("unfilled", unfilled).
		Msg("值班表生成完成")
}
