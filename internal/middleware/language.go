package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/tis/internal/i18n"
)

// Language 根据 Accept-Language 选择响应语言
func Language() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := i18n.GetInstance().ResolveLanguage(c.GetHeader("Accept-Language"))
		c.Set(ContextLanguage, lang)
		c.Header("Content-Language", lang)
		c.Next()
	}
}

// GetLanguage 当前请求的语言
func GetLanguage(c *gin.Context) string {
	if lang := c.GetString(ContextLanguage); lang != "" {
		return lang
	}
	return i18n.GetInstance().GetDefaultLanguage()
}
