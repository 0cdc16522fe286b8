// Package logger 基于 logrus 的全局日志，文件输出由 lumberjack 按大小滚动
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/tis/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02 15:04:05"

// 默认值
const (
	defaultFilePath   = "logs/tis.log"
	defaultMaxSizeMB  = 100
	defaultMaxAgeDays = 30
	defaultMaxBackups = 10
)

var (
	mu       sync.RWMutex
	instance *logrus.Logger
)

// Init 按配置创建全局日志实例，并接管 gin 的输出
func Init(cfg config.LogConfig) error {
	l := logrus.New()

	var warnings []string
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
		if cfg.Level != "" {
			warnings = append(warnings, fmt.Sprintf("无效的日志级别 '%s'，使用 info", cfg.Level))
		}
	}
	l.SetLevel(level)

	formatter, ok := newFormatter(cfg.Format)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("无效的日志格式 '%s'，使用 text", cfg.Format))
	}
	l.SetFormatter(formatter)

	out, err := newOutput(cfg)
	if err != nil {
		return fmt.Errorf("failed to open log output: %w", err)
	}
	l.SetOutput(out)

	mu.Lock()
	instance = l
	mu.Unlock()

	gin.DefaultWriter = ginWriter{level: logrus.DebugLevel}
	gin.DefaultErrorWriter = ginWriter{level: logrus.ErrorLevel}

	for _, w := range warnings {
		l.Warn(w)
	}
	l.WithFields(logrus.Fields{"level": level.String(), "output": outputName(cfg.Output)}).Info("日志系统初始化完成")
	return nil
}

func newFormatter(format string) (logrus.Formatter, bool) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return &logrus.JSONFormatter{TimestampFormat: timestampFormat}, true
	case "", "text":
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat}, true
	default:
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat}, false
	}
}

func outputName(output string) string {
	switch output {
	case "file", "both":
		return output
	default:
		return "console"
	}
}

// newOutput console 输出到标准输出，file 写滚动文件，both 两者都写
func newOutput(cfg config.LogConfig) (io.Writer, error) {
	name := outputName(cfg.Output)
	if name == "console" {
		return os.Stdout, nil
	}

	path := cfg.FilePath
	if path == "" {
		path = defaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    positive(cfg.MaxSize, defaultMaxSizeMB),
		MaxAge:     positive(cfg.MaxAge, defaultMaxAgeDays),
		MaxBackups: positive(cfg.MaxBackups, defaultMaxBackups),
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
	if name == "file" {
		return file, nil
	}
	return io.MultiWriter(os.Stdout, file), nil
}

func positive(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

// ginWriter 把 gin 的调试输出转到日志
type ginWriter struct {
	level logrus.Level
}

func (w ginWriter) Write(p []byte) (int, error) {
	GetLogger().Log(w.level, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// GetLogger 返回全局实例，未初始化时使用标准输出的 text 日志
func GetLogger() *logrus.Logger {
	mu.RLock()
	l := instance
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = logrus.New()
		instance.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
	}
	return instance
}

// SetOutput 替换输出目标，测试中用于捕获日志
func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }

func Info(args ...interface{}) { GetLogger().Info(args...) }

func Infof(format string, args ...interface{}) { GetLogger().Infof(format, args...) }

func Warnf(format string, args ...interface{}) { GetLogger().Warnf(format, args...) }

func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }

// Fatalf 记录后退出进程
func Fatalf(format string, args ...interface{}) { GetLogger().Fatalf(format, args...) }

// WithField 带一个字段的日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields 带多个字段的日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}
