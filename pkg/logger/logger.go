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

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID, ok := ctx.Value("request_id").(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	// 添加分析运行ID
	if runID, ok := ctx.Value("run_id").(string); ok {
		l = l.With().Str("run_id", runID).Logger()
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

// AnalysisLogger 分析引擎专用日志器
type AnalysisLogger struct {
	base *zerolog.Logger
}

// NewAnalysisLogger 创建分析引擎日志器
func NewAnalysisLogger() *AnalysisLogger {
	l := Get().With().Str("component", "analysis").Logger()
	return &AnalysisLogger{base: &l}
}

// StartRun 记录分析运行开始
func (l *AnalysisLogger) StartRun(runID string, records int, startDate, endDate string) {
	l.base.Info().
		Str("run_id", runID).
		Int("records", records).
		Str("start_date", startDate).
		Str("end_date", endDate).
		Msg("开始缺口分析")
}

// Anomaly 记录异常事件（封顶/归一化等），附带调整前后的值
func (l *AnalysisLogger) Anomaly(runID, kind, scope, date string, before, after, factor float64) {
	l.base.Warn().
		Str("run_id", runID).
		Str("kind", kind).
		Str("scope", scope).
		Str("date", date).
		Float64("before", before).
		Float64("after", after).
		Float64("factor", factor).
		Msg("检测到异常值并已调整")
}

// BaselineFallback 记录基准回退事件
func (l *AnalysisLogger) BaselineFallback(runID, scope, pattern string, fallback float64) {
	l.base.Warn().
		Str("run_id", runID).
		Str("scope", scope).
		Str("pattern", pattern).
		Float64("fallback", fallback).
		Msg("参考期数据不足，使用全局基准回退")
}

// RunComplete 记录分析运行完成
func (l *AnalysisLogger) RunComplete(runID string, duration time.Duration, totalShortage float64, band string) {
	l.base.Info().
		Str("run_id", runID).
		Dur("duration", duration).
		Float64("total_shortage_hours", totalShortage).
		Str("severity_band", band).
		Msg("缺口分析完成")
}
