package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/tis/internal/middleware"
	"github.com/weiwangfds/tis/internal/response"
	"github.com/weiwangfds/tis/internal/service/academic"
	"github.com/weiwangfds/tis/internal/service/account"
)

// ServiceName 服务名称
const ServiceName = "Teacher Information System"

// ServiceVersion 服务版本
const ServiceVersion = "1.0.0"

// SessionHandler 登录会话处理器
type SessionHandler struct {
	accounts  account.AccountService
	academics academic.AcademicService
	cookie    SessionCookie
}

// SessionCookie 令牌 Cookie 的写入方式
type SessionCookie struct {
	Name   string
	Secure bool
}

// Set 写入 HttpOnly 令牌 Cookie
func (sc SessionCookie) Set(c *gin.Context, session *account.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(time.Hour.Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sc.Name, session.Token, maxAge, "/", "", sc.Secure, true)
}

// Clear 删除令牌 Cookie
func (sc SessionCookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sc.Name, "", -1, "/", "", sc.Secure, true)
}

// NewSessionHandler 创建会话处理器实例
func NewSessionHandler(accounts account.AccountService, academics academic.AcademicService, cookie SessionCookie) *SessionHandler {
	return &SessionHandler{
		accounts:  accounts,
		academics: academics,
		cookie:    cookie,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	UserID   string `form:"user_id" json:"user_id" example:"developer"`
	Password string `form:"password" json:"password" example:"ChangeMe123"`
}

// Index 服务信息
// @Summary 服务信息
// @Description 返回服务名称、版本以及当前是否已登录
// @Tags 会话
// @Produce json
// @Success 200 {object} response.Response
// @Router / [get]
func (h *SessionHandler) Index(c *gin.Context) {
	data := gin.H{
		"service":   ServiceName,
		"version":   ServiceVersion,
		"language":  middleware.GetLanguage(c),
		"logged_in": false,
	}
	if current := actor(c); current != nil {
		data["logged_in"] = true
		data["user_id"] = current.User.UserID
		data["role"] = current.Role()
	}
	response.Success(c, data)
}

// Login 登录
// @Summary 登录
// @Description 校验账号密码，成功后写入令牌Cookie并返回令牌
// @Tags 会话
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} response.Response{data=account.Session}
// @Failure 401 {object} response.Response "账号或密码错误"
// @Router /login [post]
func (h *SessionHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	session, err := h.accounts.Login(req.UserID, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookie.Set(c, session)
	response.SuccessWithMessage(c, "Login successful.", session)
}

// Logout 退出登录
// @Summary 退出登录
// @Tags 会话
// @Produce json
// @Success 200 {object} response.Response
// @Router /logout [get]
func (h *SessionHandler) Logout(c *gin.Context) {
	h.cookie.Clear(c)
	response.SuccessWithMessage(c, "Logged out.", nil)
}

// Dashboard 当前范围的概览
// @Summary 概览
// @Description 当前分校和学年的科目、教师、班级、账号统计
// @Tags 会话
// @Produce json
// @Success 200 {object} response.Response{data=academic.Dashboard}
// @Failure 401 {object} response.Response
// @Router /dashboard [get]
func (h *SessionHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.academics.Dashboard(actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dashboard)
}
