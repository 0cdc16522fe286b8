package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/tis/internal/auth"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/response"
	"github.com/weiwangfds/tis/internal/service/archive"
	"github.com/weiwangfds/tis/internal/service/storage"
)

// StorageHandler 对象存储配置和审计归档处理器
type StorageHandler struct {
	configs  storage.ConfigService
	archiver archive.ArchiveService
}

// NewStorageHandler 创建存储处理器实例
func NewStorageHandler(configs storage.ConfigService, archiver archive.ArchiveService) *StorageHandler {
	return &StorageHandler{
		configs:  configs,
		archiver: archiver,
	}
}

// ToggleRequest 启用/禁用请求
type ToggleRequest struct {
	Enabled bool `form:"enabled" json:"enabled"`
}

// List 存储配置列表
// @Summary 存储配置列表
// @Description 仅开发者可用，密钥不会返回
// @Tags 对象存储
// @Produce json
// @Success 200 {object} response.Response{data=[]database.StorageConfig}
// @Failure 403 {object} response.Response
// @Router /developer/storage [get]
func (h *StorageHandler) List(c *gin.Context) {
	configs, err := h.configs.List(actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, configs)
}

// Create 创建存储配置
// @Summary 创建存储配置
// @Description 支持 aliyun、tencent、qiniu，第一个配置自动激活
// @Tags 对象存储
// @Accept json
// @Produce json
// @Param request body storage.ConfigInput true "存储配置"
// @Success 201 {object} response.Response{data=database.StorageConfig}
// @Failure 400 {object} response.Response
// @Router /developer/storage [post]
func (h *StorageHandler) Create(c *gin.Context) {
	var input storage.ConfigInput
	if !bind(c, &input) {
		return
	}
	cfg, err := h.configs.Create(actor(c), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Storage config created.", cfg)
}

// Active 当前激活的存储配置
// @Summary 当前激活的存储配置
// @Tags 对象存储
// @Produce json
// @Success 200 {object} response.Response{data=database.StorageConfig}
// @Failure 404 {object} response.Response
// @Router /developer/storage/active [get]
func (h *StorageHandler) Active(c *gin.Context) {
	if !actor(c).Can(auth.CanManageStorage) {
		response.Error(c, apperrors.Forbidden(""))
		return
	}
	cfg, err := h.configs.Active()
	if err != nil {
		response.Error(c, apperrors.Internal(apperrors.ErrDatabaseQuery, err))
		return
	}
	if cfg == nil {
		response.Error(c, apperrors.New(apperrors.ErrStorageConfigNotFound, storage.MsgNoActiveConfig))
		return
	}
	response.Success(c, cfg)
}

// Get 获取存储配置
// @Summary 获取存储配置
// @Tags 对象存储
// @Produce json
// @Param id path int true "配置ID"
// @Success 200 {object} response.Response{data=database.StorageConfig}
// @Failure 404 {object} response.Response
// @Router /developer/storage/{id} [get]
func (h *StorageHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	cfg, err := h.configs.Get(actor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, cfg)
}

// Update 更新存储配置
// @Summary 更新存储配置
// @Description 密钥留空时保持不变
// @Tags 对象存储
// @Accept json
// @Produce json
// @Param id path int true "配置ID"
// @Param request body storage.ConfigInput true "存储配置"
// @Success 200 {object} response.Response{data=database.StorageConfig}
// @Router /developer/storage/{id} [put]
func (h *StorageHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input storage.ConfigInput
	if !bind(c, &input) {
		return
	}
	cfg, err := h.configs.Update(actor(c), id, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Storage config updated.", cfg)
}

// Delete 删除存储配置
// @Summary 删除存储配置
// @Description 激活中的配置不能删除
// @Tags 对象存储
// @Produce json
// @Param id path int true "配置ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /developer/storage/{id} [delete]
func (h *StorageHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.configs.Delete(actor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Storage config deleted.", nil)
}

// Activate 激活存储配置
// @Summary 激活存储配置
// @Tags 对象存储
// @Produce json
// @Param id path int true "配置ID"
// @Success 200 {object} response.Response
// @Router /developer/storage/{id}/activate [post]
func (h *StorageHandler) Activate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.configs.Activate(actor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Storage config activated.", nil)
}

// Test 测试存储连接
// @Summary 测试存储连接
// @Tags 对象存储
// @Produce json
// @Param id path int true "配置ID"
// @Success 200 {object} response.Response
// @Failure 502 {object} response.Response "连接失败"
// @Router /developer/storage/{id}/test [post]
func (h *StorageHandler) Test(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.configs.Test(c.Request.Context(), actor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Storage connection succeeded.", nil)
}

// Toggle 启用或禁用存储配置
// @Summary 启用或禁用存储配置
// @Description 激活中的配置不能禁用
// @Tags 对象存储
// @Accept json
// @Produce json
// @Param id path int true "配置ID"
// @Param request body ToggleRequest true "启用状态"
// @Success 200 {object} response.Response
// @Router /developer/storage/{id}/toggle [put]
func (h *StorageHandler) Toggle(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ToggleRequest
	if !bind(c, &req) {
		return
	}
	if err := h.configs.Toggle(actor(c), id, req.Enabled); err != nil {
		response.Error(c, err)
		return
	}
	message := "Storage config disabled."
	if req.Enabled {
		message = "Storage config enabled."
	}
	response.SuccessWithMessage(c, message, nil)
}

// Archive 立即归档审计日志
// @Summary 立即归档审计日志
// @Description 把已滚动的审计日志上传到激活的存储配置
// @Tags 对象存储
// @Produce json
// @Success 200 {object} response.Response{data=archive.RunResult}
// @Failure 404 {object} response.Response "没有激活的存储配置"
// @Router /developer/storage/archive [post]
func (h *StorageHandler) Archive(c *gin.Context) {
	result, err := h.archiver.Trigger(c.Request.Context(), actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Audit log archive finished.", result)
}

// Logs 归档记录
// @Summary 归档记录
// @Tags 对象存储
// @Produce json
// @Param limit query int false "条数，默认100"
// @Success 200 {object} response.Response{data=[]database.ArchiveLog}
// @Router /developer/storage/logs [get]
func (h *StorageHandler) Logs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := h.archiver.Logs(actor(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, logs)
}
