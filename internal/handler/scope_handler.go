package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/tis/internal/response"
	"github.com/weiwangfds/tis/internal/service/academic"
	"github.com/weiwangfds/tis/internal/service/account"
	"github.com/weiwangfds/tis/internal/textutil"
)

// ScopeHandler 分校/学年范围处理器
type ScopeHandler struct {
	academics academic.AcademicService
	accounts  account.AccountService
	cookie    SessionCookie
}

// NewScopeHandler 创建范围处理器实例
func NewScopeHandler(academics academic.AcademicService, accounts account.AccountService, cookie SessionCookie) *ScopeHandler {
	return &ScopeHandler{
		academics: academics,
		accounts:  accounts,
		cookie:    cookie,
	}
}

// BranchRequest 切换分校请求
type BranchRequest struct {
	BranchID uint `form:"branch_id" json:"branch_id" binding:"required"`
}

// YearRequest 学年请求
type YearRequest struct {
	AcademicYearID uint `form:"academic_year_id" json:"academic_year_id" binding:"required"`
}

// OpenYearRequest 开设学年请求
type OpenYearRequest struct {
	YearName string         `form:"year_name" json:"year_name" example:"2026-2027"`
	Activate textutil.Loose `form:"activate" json:"activate" swaggertype:"string" example:"true"`
}

// SwitchBranch 切换分校
// @Summary 切换分校
// @Description 仅开发者可用，重新签发带新范围的令牌
// @Tags 范围
// @Accept json
// @Produce json
// @Param request body BranchRequest true "分校"
// @Success 200 {object} response.Response{data=academic.Scope}
// @Failure 400 {object} response.Response "分校不可用"
// @Failure 403 {object} response.Response
// @Router /scope/branch [post]
func (h *ScopeHandler) SwitchBranch(c *gin.Context) {
	var req BranchRequest
	if !bind(c, &req) {
		return
	}
	current := actor(c)
	scope, err := h.academics.SwitchBranch(current, req.BranchID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.reissue(c, scope, "Branch switched.")
}

// SwitchYear 切换学年
// @Summary 切换查看的学年
// @Tags 范围
// @Accept json
// @Produce json
// @Param request body YearRequest true "学年"
// @Success 200 {object} response.Response{data=academic.Scope}
// @Failure 400 {object} response.Response "学年不存在"
// @Router /scope/academic-year [post]
func (h *ScopeHandler) SwitchYear(c *gin.Context) {
	var req YearRequest
	if !bind(c, &req) {
		return
	}
	scope, err := h.academics.SwitchYear(actor(c), req.AcademicYearID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.reissue(c, scope, "Academic year switched.")
}

func (h *ScopeHandler) reissue(c *gin.Context, scope *academic.Scope, message string) {
	session, err := h.accounts.Reissue(actor(c), scope.BranchID, scope.AcademicYearID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookie.Set(c, session)
	response.SuccessWithMessage(c, message, gin.H{
		"scope":        scope,
		"access_token": session.Token,
		"expires_at":   session.ExpiresAt,
	})
}

// SetCurrentYear 设置当前学年
// @Summary 设置当前学年
// @Description 开发者和管理员可用，其他学年全部设为非当前
// @Tags 范围
// @Accept json
// @Produce json
// @Param request body YearRequest true "学年"
// @Success 200 {object} response.Response{data=database.AcademicYear}
// @Failure 403 {object} response.Response
// @Router /admin/current-year [post]
func (h *ScopeHandler) SetCurrentYear(c *gin.Context) {
	var req YearRequest
	if !bind(c, &req) {
		return
	}
	year, err := h.academics.SetCurrentYear(actor(c), req.AcademicYearID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Current academic year set to "+year.YearName+".", year)
}

// OpenYear 开设学年
// @Summary 开设新学年
// @Description 仅开发者可用，学年名称格式为 YYYY-YYYY 且相差一年
// @Tags 范围
// @Accept json
// @Produce json
// @Param request body OpenYearRequest true "学年"
// @Success 201 {object} response.Response{data=database.AcademicYear}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response "学年已存在"
// @Router /developer/open-academic-year [post]
func (h *ScopeHandler) OpenYear(c *gin.Context) {
	var req OpenYearRequest
	if !bind(c, &req) {
		return
	}
	year, err := h.academics.OpenYear(actor(c), req.YearName, textutil.ParseBoolFlag(req.Activate.String()))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Academic year "+year.YearName+" opened.", year)
}

// ListYears 学年列表
// @Summary 学年列表
// @Tags 范围
// @Produce json
// @Success 200 {object} response.Response{data=[]database.AcademicYear}
// @Router /academic-years [get]
func (h *ScopeHandler) ListYears(c *gin.Context) {
	years, err := h.academics.Years()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, years)
}

// ListBranches 分校列表
// @Summary 分校列表
// @Description 非开发者只能看到自己的分校
// @Tags 范围
// @Produce json
// @Success 200 {object} response.Response{data=[]database.Branch}
// @Router /branches [get]
func (h *ScopeHandler) ListBranches(c *gin.Context) {
	branches, err := h.academics.Branches(actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, branches)
}
