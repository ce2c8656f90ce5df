package logger // 日志组件，基于zerolog的轻量封装

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Logger 全局日志实例，应用内各包直接使用
	Logger = log.Logger
)

// Config 日志配置，控制级别、格式与调用方信息
type Config struct {
	Level        string `json:"level" yaml:"level"`                 // 日志级别：debug、info、warn、error
	Format       string `json:"format" yaml:"format"`               // 输出格式：json 或 pretty（控制台彩色）
	TimeFormat   string `json:"time_format" yaml:"time_format"`     // 时间戳格式，空则使用RFC3339
	ReportCaller bool   `json:"report_caller" yaml:"report_caller"` // 是否输出调用处文件与行号
}

// Init 按配置初始化全局日志实例
func Init(config Config) {
	InitWithWriter(config, nil)
}

// InitWithWriter 按配置初始化全局日志实例，writer非空时覆盖默认输出
// 入口处用它把控制台与滚动日志文件组合成MultiLevelWriter
func InitWithWriter(config Config, writer io.Writer) {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.TimeFormat == "" {
		zerolog.TimeFieldFormat = time.RFC3339
	} else {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	var output io.Writer = os.Stdout
	if writer != nil {
		output = writer
	} else if config.Format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: config.TimeFormat,
			NoColor:    false,
		}
	}

	contextLogger := zerolog.New(output).
		Level(level).
		With().
		Timestamp()

	if config.ReportCaller {
		contextLogger = contextLogger.Caller()
	}

	Logger = contextLogger.Logger()
	log.Logger = Logger
}

// Component 派生带component字段的子logger，便于按模块过滤日志
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Debug 开始一条调试级别的日志事件
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info 开始一条信息级别的日志事件
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn 开始一条警告级别的日志事件
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error 开始一条错误级别的日志事件
func Error() *zerolog.Event {
	return Logger.Error()
}

// Fatal 开始一条致命错误级别的日志事件，记录后进程退出
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// Ctx 从上下文中取出logger（若存在）
func Ctx(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithContext 把全局logger注入上下文并返回新的上下文
func WithContext(ctx context.Context) context.Context {
	return Logger.WithContext(ctx)
}
