package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/tis/internal/response"
	"github.com/weiwangfds/tis/internal/service/teacher"
)

// TeacherHandler 教师处理器
type TeacherHandler struct {
	teachers teacher.TeacherService
}

// NewTeacherHandler 创建教师处理器实例
func NewTeacherHandler(teachers teacher.TeacherService) *TeacherHandler {
	return &TeacherHandler{teachers: teachers}
}

// List 教师列表
// @Summary 教师列表
// @Description 当前范围的教师及其课时分配汇总，附带可选科目和任教学段
// @Tags 教师
// @Produce json
// @Success 200 {object} response.Response{data=teacher.ListResult}
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	result, err := h.teachers.List(actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Create 创建教师
// @Summary 创建教师
// @Description 所选科目的周课时之和必须等于最大课时
// @Tags 教师
// @Accept json
// @Produce json
// @Param request body teacher.Input true "教师"
// @Success 201 {object} response.Response{data=database.Teacher}
// @Failure 400 {object} response.Response "校验失败或课时不一致"
// @Failure 403 {object} response.Response
// @Router /teachers [post]
func (h *TeacherHandler) Create(c *gin.Context) {
	var input teacher.Input
	if !bind(c, &input) {
		return
	}
	created, err := h.teachers.Create(actor(c), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Teacher created successfully: "+created.FirstName+" "+created.LastName, created)
}

// Get 获取教师
// @Summary 获取待编辑的教师
// @Tags 教师
// @Produce json
// @Param id path int true "教师ID"
// @Success 200 {object} response.Response{data=teacher.EditView}
// @Failure 404 {object} response.Response
// @Router /teachers/edit/{id} [get]
func (h *TeacherHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.teachers.Get(actor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// Update 更新教师
// @Summary 更新教师
// @Description 科目分配整体替换
// @Tags 教师
// @Accept json
// @Produce json
// @Param id path int true "教师ID"
// @Param request body teacher.Input true "教师"
// @Success 200 {object} response.Response{data=database.Teacher}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /teachers/edit/{id} [post]
func (h *TeacherHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input teacher.Input
	if !bind(c, &input) {
		return
	}
	updated, err := h.teachers.Update(actor(c), id, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Teacher updated successfully: "+updated.FirstName+" "+updated.LastName, updated)
}

// Delete 删除教师
// @Summary 删除教师
// @Description 同时删除科目分配并清除班主任引用
// @Tags 教师
// @Produce json
// @Param id path int true "教师ID"
// @Success 200 {object} response.Response
// @Router /teachers/delete/{id} [get]
func (h *TeacherHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.teachers.Delete(actor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Teacher deleted successfully.", nil)
}
