package middleware

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/tis/internal/audit"
	"github.com/weiwangfds/tis/internal/logger"
)

// AuditSkipPaths 不记录审计日志的路径前缀
var AuditSkipPaths = []string{"/static", "/health", "/swagger", "/favicon.ico"}

// EventWriter 审计事件写入器
type EventWriter interface {
	Write(event audit.Event) error
}

// Audit 每个请求写一条审计事件
// 只有服务器错误和 panic 会记录 error 字段，panic 记录后继续向上抛出
func Audit(writer EventWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hasPrefix(c.Request.URL.Path, AuditSkipPaths) {
			c.Next()
			return
		}

		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				errText := fmt.Sprint(recovered)
				record(writer, c, start, http.StatusInternalServerError, &errText)
				panic(recovered)
			}
		}()

		c.Next()

		var errText *string
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError && len(c.Errors) > 0 {
			text := c.Errors.Last().Error()
			errText = &text
		}
		record(writer, c, start, status, errText)
	}
}

func record(writer EventWriter, c *gin.Context, start time.Time, status int, errText *string) {
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	event := audit.Event{
		Method:     c.Request.Method,
		Path:       c.Request.URL.Path,
		Query:      c.Request.URL.RawQuery,
		StatusCode: status,
		DurationMs: math.Round(elapsed*100) / 100,
		ClientIP:   c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		RequestID:  GetRequestID(c),
		Error:      errText,
	}
	if actor := CurrentActor(c); actor != nil {
		userID := actor.User.UserID
		username := actor.User.Username
		role := actor.Role()
		branchID := actor.ScopeBranchID
		yearID := actor.ScopeAcademicYearID
		event.ActorUserID = &userID
		event.ActorUsername = &username
		event.ActorRole = &role
		event.ScopeBranchID = &branchID
		event.ScopeAcademicYearID = &yearID
	}

	if err := writer.Write(event); err != nil {
		logger.WithField("request_id", event.RequestID).Errorf("[审计] 写入审计日志失败: %v", err)
	}
}
