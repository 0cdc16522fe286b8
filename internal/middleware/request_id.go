package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 上下文键
const (
	ContextRequestID = "request_id"
	ContextActor     = "actor"
	ContextLanguage  = "lang"
)

// HeaderRequestID 请求ID响应头
const HeaderRequestID = "X-Request-ID"

// RequestID 为每个请求分配请求ID
// 客户端带了 X-Request-ID 时沿用客户端的值
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.New().String()
		}
		c.Set(ContextRequestID, requestID)
		c.Header(HeaderRequestID, requestID)
		c.Next()
	}
}

// GetRequestID 当前请求ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextRequestID)
}
