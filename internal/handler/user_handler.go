package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/tis/internal/response"
	"github.com/weiwangfds/tis/internal/service/account"
)

// UserHandler 账号管理处理器
type UserHandler struct {
	accounts account.AccountService
}

// NewUserHandler 创建账号管理处理器实例
func NewUserHandler(accounts account.AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// List 账号列表
// @Summary 账号列表
// @Description 当前学年的账号，非开发者和管理员只能看到当前分校
// @Tags 账号
// @Produce json
// @Success 200 {object} response.Response{data=account.ListResult}
// @Failure 403 {object} response.Response
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	result, err := h.accounts.List(actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Create 创建账号
// @Summary 创建账号
// @Tags 账号
// @Accept json
// @Produce json
// @Param request body account.Input true "账号"
// @Success 201 {object} response.Response{data=database.User}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response "账号已存在"
// @Router /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var input account.Input
	if !bind(c, &input) {
		return
	}
	user, err := h.accounts.Create(actor(c), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fmt.Sprintf("User created successfully: %s %s", user.FirstName, user.LastName), user)
}

// Get 获取账号
// @Summary 获取待编辑的账号
// @Tags 账号
// @Produce json
// @Param id path int true "账号ID"
// @Success 200 {object} response.Response{data=account.EditView}
// @Failure 404 {object} response.Response "账号不存在或无权访问"
// @Router /users/edit/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.accounts.Get(actor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// Update 更新账号
// @Summary 更新账号
// @Description 密码留空时保持不变
// @Tags 账号
// @Accept json
// @Produce json
// @Param id path int true "账号ID"
// @Param request body account.Input true "账号"
// @Success 200 {object} response.Response{data=database.User}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/edit/{id} [post]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input account.Input
	if !bind(c, &input) {
		return
	}
	user, err := h.accounts.Update(actor(c), id, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, fmt.Sprintf("User updated successfully: %s %s", user.FirstName, user.LastName), user)
}

// Delete 删除账号
// @Summary 删除账号
// @Description 不能删除当前登录的账号
// @Tags 账号
// @Produce json
// @Param id path int true "账号ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response "不能删除自己"
// @Router /users/delete/{id} [get]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, err := h.accounts.Delete(actor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, account.DeletedMessage(user), nil)
}

// BulkDelete 批量删除账号
// @Summary 批量删除账号
// @Description 任何一个账号不可删除时整体失败
// @Tags 账号
// @Accept json
// @Produce json
// @Param request body IDSelection true "选中的账号"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/delete-bulk [post]
func (h *UserHandler) BulkDelete(c *gin.Context) {
	var selection IDSelection
	if !bind(c, &selection) {
		return
	}
	count, err := h.accounts.BulkDelete(actor(c), selection.UserIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	message := "User deleted successfully."
	if count != 1 {
		message = fmt.Sprintf("%d users deleted successfully.", count)
	}
	response.SuccessWithMessage(c, message, gin.H{"deleted": count})
}
