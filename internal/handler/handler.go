// Package handler 提供TIS的HTTP处理器
// 处理器只负责绑定参数和返回响应，业务规则都在 service 层
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/middleware"
	"github.com/weiwangfds/tis/internal/response"
)

// IDSelection 批量操作选中的记录
type IDSelection struct {
	SubjectIDs []uint `form:"selected_subject_ids" json:"selected_subject_ids"`
	UserIDs    []uint `form:"selected_user_ids" json:"selected_user_ids"`
}

// parseID 解析路径中的 id 参数，失败时直接写入400响应
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "Invalid ID.")
		return 0, false
	}
	return uint(id), true
}

// bind 按 Content-Type 绑定表单或JSON，失败时直接写入400响应
func bind(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBind(obj); err != nil {
		response.BadRequest(c, "Invalid request parameters: "+err.Error())
		return false
	}
	return true
}

// actor 当前登录账号，路由已经过认证中间件
func actor(c *gin.Context) *auth.Actor {
	return middleware.CurrentActor(c)
}
