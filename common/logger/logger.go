package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options 日志配置
type Options struct {
	Level       string // "debug", "info", "warn", "error" (默认: "info")
	Format      string // "json" 或 "console" (默认: "json")
	ServiceName string // 服务名称，作为全局字段 service_name
	DeviceID    string // 边缘设备标识，作为全局字段 device_id（可选）
}

// NewLogger 创建新的Logger实例
//
// json 格式输出到 stdout（便于 Docker 和日志收集器捕获），时间字段为 ISO8601 的 "timestamp"；
// console 格式用于本地调试，级别带颜色。
func NewLogger(opts Options) (*zap.Logger, error) {
	zapLevel := parseLevel(opts.Level)

	var config zap.Config
	if strings.EqualFold(opts.Format, "console") {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	baseLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	var fields []zap.Field
	if opts.ServiceName != "" {
		fields = append(fields, zap.String("service_name", opts.ServiceName))
	}
	if opts.DeviceID != "" {
		fields = append(fields, zap.String("device_id", opts.DeviceID))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		fields = append(fields, zap.String("hostname", hostname))
	}

	return baseLogger.With(fields...), nil
}

// parseLevel 解析日志级别，未知值回退到 info
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
