package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/tis/internal/logger"
)

// RequestLoggerConfig 请求日志中间件配置
type RequestLoggerConfig struct {
	Enabled   bool     // 是否启用
	SkipPaths []string // 跳过记录的路径前缀
}

// DefaultRequestLoggerConfig 默认配置
func DefaultRequestLoggerConfig() *RequestLoggerConfig {
	return &RequestLoggerConfig{
		Enabled:   true,
		SkipPaths: []string{"/health", "/swagger", "/favicon.ico"},
	}
}

// RequestLogger 创建请求日志记录中间件
// 请求体和响应体可能包含密码，不写入日志
func RequestLogger(config ...*RequestLoggerConfig) gin.HandlerFunc {
	cfg := DefaultRequestLoggerConfig()
	if len(config) > 0 && config[0] != nil {
		cfg = config[0]
	}

	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if hasPrefix(c.Request.URL.Path, cfg.SkipPaths) {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		fields := logrus.Fields{
			"type":        "request_log",
			"request_id":  GetRequestID(c),
			"method":      c.Request.Method,
			"path":        path,
			"raw_query":   raw,
			"status":      c.Writer.Status(),
			"latency":     latency.String(),
			"duration_ms": latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
			"size":        c.Writer.Size(),
		}
		if actor := CurrentActor(c); actor != nil {
			fields["user_id"] = actor.User.UserID
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}
		logRequestEntry(logger.WithFields(fields), c.Writer.Status())
	}
}

// logRequestEntry 根据状态码确定日志级别
func logRequestEntry(entry *logrus.Entry, status int) {
	switch {
	case status >= 500:
		entry.Error("HTTP Request")
	case status >= 400:
		entry.Warn("HTTP Request")
	default:
		entry.Info("HTTP Request")
	}
}

func hasPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
	}
	return false
}
