package response

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/logger"
)

// 常用的下载文件类型
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeCSV  = "text/csv; charset=utf-8"
)

// Response 统一返回值结构体
// @Description API统一响应格式
type Response struct {
	// 状态码，0表示成功，非0表示失败
	Code int `json:"code" example:"0"`
	// 响应消息
	Message string `json:"message" example:"success"`
	// 响应数据
	Data interface{} `json:"data,omitempty"`
	// 逐项错误信息
	Errors []string `json:"errors,omitempty"`
	// 请求ID，用于链路追踪
	RequestID string `json:"request_id,omitempty" example:"5f0c7a1e-2b1d-4f55-9d4e-0b7b5d8c3a11"`
	// 时间戳
	Timestamp int64 `json:"timestamp" example:"1640995200"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	SuccessWithMessage(c, "success", data)
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   message,
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTime().Unix(),
	})
}

// Created 201 创建成功响应
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:      0,
		Message:   message,
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTime().Unix(),
	})
}

// Error 根据错误类型返回错误响应
// 非 AppError 一律视为服务器内部错误，原始信息只写日志
func Error(c *gin.Context, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		logger.WithField("request_id", getRequestID(c)).Errorf("未处理的错误: %v", err)
		appErr = apperrors.New(apperrors.ErrInternalServer, apperrors.GetErrorMessage(apperrors.ErrInternalServer))
	}

	status := apperrors.HTTPStatus(appErr.Code)
	if status >= http.StatusInternalServerError && appErr.OriginalError != nil {
		logger.WithField("request_id", getRequestID(c)).Errorf("%s: %v", appErr.Message, appErr.OriginalError)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{
		Code:      int(appErr.Code),
		Message:   appErr.Message,
		Errors:    appErr.Errors,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTime().Unix(),
	})
}

// ErrorWithData 带数据的错误响应，用于导入失败时回显已解析的内容
func ErrorWithData(c *gin.Context, err *apperrors.AppError, data interface{}) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(apperrors.HTTPStatus(err.Code), Response{
		Code:      int(err.Code),
		Message:   err.Message,
		Data:      data,
		Errors:    err.Errors,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTime().Unix(),
	})
}

// BadRequest 400错误响应
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, int(apperrors.ErrInvalidParams), message)
}

// Unauthorized 401错误响应
func Unauthorized(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, int(apperrors.ErrUnauthorized), message)
}

// Forbidden 403错误响应
func Forbidden(c *gin.Context, message string) {
	abort(c, http.StatusForbidden, int(apperrors.ErrForbidden), message)
}

// NotFound 404错误响应
func NotFound(c *gin.Context, message string) {
	abort(c, http.StatusNotFound, int(apperrors.ErrNotFound), message)
}

// InternalServerError 500错误响应
func InternalServerError(c *gin.Context, message string) {
	abort(c, http.StatusInternalServerError, int(apperrors.ErrInternalServer), message)
}

func abort(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:      code,
		Message:   message,
		RequestID: getRequestID(c),
		Timestamp: getCurrentTime().Unix(),
	})
}

// Attachment 以附件形式返回文件内容
func Attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}

// getRequestID 从gin上下文中获取请求ID
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

// getCurrentTime 获取当前时间，测试时可替换
var getCurrentTime = time.Now
