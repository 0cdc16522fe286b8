package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/tis/internal/response"
	"github.com/weiwangfds/tis/internal/service/planning"
)

// PlanningHandler 班级规划处理器
type PlanningHandler struct {
	planning planning.PlanningService
}

// NewPlanningHandler 创建班级规划处理器实例
func NewPlanningHandler(planningService planning.PlanningService) *PlanningHandler {
	return &PlanningHandler{planning: planningService}
}

// Overview 班级规划列表
// @Summary 班级规划
// @Description 按年级、班级排序的班级列表，附带年级对应科目和班主任候选
// @Tags 班级规划
// @Produce json
// @Success 200 {object} response.Response{data=planning.Overview}
// @Router /planning [get]
func (h *PlanningHandler) Overview(c *gin.Context) {
	overview, err := h.planning.Overview(actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, overview)
}

// Create 创建班级
// @Summary 创建班级
// @Tags 班级规划
// @Accept json
// @Produce json
// @Param request body planning.Input true "班级"
// @Success 201 {object} response.Response{data=database.PlanningSection}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response "年级班级已存在"
// @Router /planning [post]
func (h *PlanningHandler) Create(c *gin.Context) {
	var input planning.Input
	if !bind(c, &input) {
		return
	}
	section, message, err := h.planning.Create(actor(c), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message, section)
}

// Get 获取班级
// @Summary 获取待编辑的班级
// @Tags 班级规划
// @Produce json
// @Param id path int true "班级ID"
// @Success 200 {object} response.Response{data=planning.EditView}
// @Failure 404 {object} response.Response
// @Router /planning/edit/{id} [get]
func (h *PlanningHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	view, err := h.planning.Get(actor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// Update 更新班级
// @Summary 更新班级
// @Tags 班级规划
// @Accept json
// @Produce json
// @Param id path int true "班级ID"
// @Param request body planning.Input true "班级"
// @Success 200 {object} response.Response{data=database.PlanningSection}
// @Failure 400 {object} response.Response
// @Router /planning/edit/{id} [post]
func (h *PlanningHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input planning.Input
	if !bind(c, &input) {
		return
	}
	section, err := h.planning.Update(actor(c), id, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Planning section updated successfully.", section)
}

// Delete 删除班级
// @Summary 删除班级
// @Tags 班级规划
// @Produce json
// @Param id path int true "班级ID"
// @Success 200 {object} response.Response
// @Router /planning/delete/{id} [get]
func (h *PlanningHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.planning.Delete(actor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Planning section deleted successfully.", nil)
}
