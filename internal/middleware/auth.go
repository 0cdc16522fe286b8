package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/tis/internal/auth"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/logger"
	"github.com/weiwangfds/tis/internal/response"
	"gorm.io/gorm"
)

const contextTokenRejected = "token_rejected"

// Authenticator 从 Cookie 或 Authorization 头识别登录账号
type Authenticator struct {
	db         *gorm.DB
	tokens     *auth.TokenManager
	cookieName string
}

// NewAuthenticator 创建认证中间件
func NewAuthenticator(db *gorm.DB, tokens *auth.TokenManager, cookieName string) *Authenticator {
	if cookieName == "" {
		cookieName = "access_token"
	}
	return &Authenticator{db: db, tokens: tokens, cookieName: cookieName}
}

// CookieName 令牌 Cookie 名称
func (a *Authenticator) CookieName() string {
	return a.cookieName
}

// Token 请求携带的令牌，Cookie 优先
func (a *Authenticator) Token(c *gin.Context) string {
	if token, err := c.Cookie(a.cookieName); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Identify 识别账号但不拦截请求
// 令牌无效或账号停用时视为未登录
func (a *Authenticator) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := a.Token(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := a.tokens.Parse(token)
		if err != nil {
			c.Set(contextTokenRejected, true)
			c.Next()
			return
		}

		actor, err := auth.LoadActor(a.db, claims)
		if err != nil {
			if !errors.Is(err, auth.ErrActorNotFound) {
				logger.WithField("request_id", GetRequestID(c)).Errorf("[认证] 加载账号失败: %v", err)
			}
			c.Set(contextTokenRejected, true)
			c.Next()
			return
		}

		c.Set(ContextActor, actor)
		c.Next()
	}
}

// Require 要求已登录，否则返回401
func (a *Authenticator) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentActor(c) != nil {
			c.Next()
			return
		}
		code := apperrors.ErrUnauthorized
		if c.GetBool(contextTokenRejected) {
			code = apperrors.ErrSessionExpired
		}
		response.Error(c, apperrors.New(code, apperrors.GetErrorMessageWithLang(code, GetLanguage(c))))
	}
}

// CurrentActor 当前登录账号，未登录时为 nil
func CurrentActor(c *gin.Context) *auth.Actor {
	value, exists := c.Get(ContextActor)
	if !exists {
		return nil
	}
	actor, _ := value.(*auth.Actor)
	return actor
}
