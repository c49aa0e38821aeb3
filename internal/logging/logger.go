package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/mautops/submission-workflow/internal/config"
	"github.com/sirupsen/logrus"
)

// ServiceName 日志中的服务名
const ServiceName = "submission-workflow"

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// NewLogger 创建默认日志记录器
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(jsonFormatter())
	logger.SetLevel(logrus.InfoLevel)
	logger.SetOutput(os.Stdout)
	return logger
}

// NewLoggerFromConfig 根据配置创建日志记录器
func NewLoggerFromConfig(cfg *config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	if cfg.Format == "json" {
		logger.SetFormatter(jsonFormatter())
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	}

	ApplyLevel(logger, cfg.Level)

	var writers []io.Writer
	if cfg.Output == "stdout" || cfg.Output == "both" {
		writers = append(writers, os.Stdout)
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		logDir := cfg.Dir
		if logDir == "" {
			logDir = "logs"
		}
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}

		file, err := os.OpenFile(filepath.Join(logDir, ServiceName+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}
	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}
	logger.SetOutput(io.MultiWriter(writers...))

	// 默认字段,用于日志聚合
	logger.AddHook(&defaultFieldsHook{
		fields: map[string]interface{}{
			"service": ServiceName,
		},
	})

	return logger, nil
}

// ApplyLevel 设置日志级别,无法解析时使用 info
func ApplyLevel(logger *logrus.Logger, level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
}

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: timestampFormat,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "msg",
		},
	}
}

// defaultFieldsHook 添加默认字段的 Hook
type defaultFieldsHook struct {
	fields map[string]interface{}
}

func (h *defaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *defaultFieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, exists := entry.Data[k]; !exists {
			entry.Data[k] = v
		}
	}
	return nil
}
