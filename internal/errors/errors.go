package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/weiwangfds/tis/internal/i18n"
)

// ErrorCode 错误码类型
type ErrorCode int

// 定义错误码常量
const (
	// 通用错误码 (1000-1999)
	ErrSuccess          ErrorCode = 0    // 成功
	ErrInternalServer   ErrorCode = 1000 // 服务器内部错误
	ErrInvalidParams    ErrorCode = 1001 // 参数错误
	ErrUnauthorized     ErrorCode = 1002 // 未登录
	ErrForbidden        ErrorCode = 1003 // 无权限
	ErrNotFound         ErrorCode = 1004 // 资源未找到
	ErrMethodNotAllowed ErrorCode = 1005 // 方法不允许
	ErrValidation       ErrorCode = 1006 // 表单校验失败
	ErrConflict         ErrorCode = 1007 // 数据冲突

	// 登录会话相关错误码 (2000-2999)
	ErrInvalidCredentials ErrorCode = 2000 // 账号或密码错误
	ErrSessionExpired     ErrorCode = 2001 // 会话过期
	ErrAccountInactive    ErrorCode = 2002 // 账号已停用
	ErrScopeInvalid       ErrorCode = 2003 // 分校或学年范围无效

	// 对象存储相关错误码 (3000-3999)
	ErrStorageConfigNotFound       ErrorCode = 3000 // 存储配置未找到
	ErrStorageConfigInvalid        ErrorCode = 3001 // 存储配置无效
	ErrStorageConnectionFailed     ErrorCode = 3002 // 存储连接失败
	ErrStorageUploadFailed         ErrorCode = 3003 // 上传失败
	ErrStorageListFailed           ErrorCode = 3004 // 列表获取失败
	ErrStorageProviderNotSupported ErrorCode = 3005 // 不支持的存储提供商
	ErrArchiveFailed               ErrorCode = 3006 // 审计日志归档失败

	// 数据库相关错误码 (4000-4999)
	ErrDatabaseConnection  ErrorCode = 4000 // 数据库连接错误
	ErrDatabaseQuery       ErrorCode = 4001 // 数据库查询错误
	ErrDatabaseInsert      ErrorCode = 4002 // 数据库插入错误
	ErrDatabaseUpdate      ErrorCode = 4003 // 数据库更新错误
	ErrDatabaseDelete      ErrorCode = 4004 // 数据库删除错误
	ErrDatabaseTransaction ErrorCode = 4005 // 数据库事务错误
	ErrRecordNotFound      ErrorCode = 4006 // 记录未找到
	ErrRecordAlreadyExists ErrorCode = 4007 // 记录已存在

	// 教务数据相关错误码 (5000-5999)
	ErrSubjectInUse       ErrorCode = 5000 // 科目被教师引用
	ErrImportBlocked      ErrorCode = 5001 // 导入被阻止
	ErrNoActiveYear       ErrorCode = 5002 // 没有当前学年
	ErrAllocationMismatch ErrorCode = 5003 // 课时分配与上限不一致
	ErrDuplicateSection   ErrorCode = 5004 // 年级班级重复
)

// AppError 应用错误结构体
// @Description 应用程序统一错误格式
type AppError struct {
	// 错误码
	Code ErrorCode `json:"code"`
	// 错误消息
	Message string `json:"message"`
	// 详细错误信息
	Details string `json:"details,omitempty"`
	// 逐项校验错误
	Errors []string `json:"errors,omitempty"`
	// 原始错误
	OriginalError error `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误，便于 errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// WithDetails 添加详细错误信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithErrors 添加逐项校验错误
func (e *AppError) WithErrors(errs ...string) *AppError {
	e.Errors = append(e.Errors, errs...)
	return e
}

// WithOriginalError 添加原始错误
func (e *AppError) WithOriginalError(err error) *AppError {
	e.OriginalError = err
	if e.Details == "" && err != nil {
		e.Details = err.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDetails 创建带详细信息的应用错误
func NewWithDetails(code ErrorCode, message string, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Validation 创建校验失败错误
// message 为空时使用第一条校验错误作为消息
func Validation(message string, errs ...string) *AppError {
	if message == "" && len(errs) > 0 {
		message = errs[0]
	}
	if message == "" {
		message = GetErrorMessage(ErrValidation)
	}
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Errors:  errs,
	}
}

// Wrap 包装原始错误
func Wrap(code ErrorCode, message string, err error) *AppError {
	appErr := &AppError{
		Code:          code,
		Message:       message,
		OriginalError: err,
	}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode 判断错误链中是否包含指定错误码
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Code == code
}

// HTTPStatus 错误码对应的HTTP状态码
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrSuccess:
		return http.StatusOK
	case ErrInvalidParams, ErrValidation, ErrStorageConfigInvalid, ErrImportBlocked,
		ErrNoActiveYear, ErrAllocationMismatch, ErrScopeInvalid:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrInvalidCredentials, ErrSessionExpired:
		return http.StatusUnauthorized
	case ErrForbidden, ErrAccountInactive:
		return http.StatusForbidden
	case ErrNotFound, ErrRecordNotFound, ErrStorageConfigNotFound:
		return http.StatusNotFound
	case ErrMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrConflict, ErrRecordAlreadyExists, ErrSubjectInUse, ErrDuplicateSection:
		return http.StatusConflict
	case ErrStorageConnectionFailed, ErrStorageUploadFailed, ErrStorageListFailed, ErrArchiveFailed:
		return http.StatusBadGateway
	case ErrStorageProviderNotSupported:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// 错误码到i18n键的映射
var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:          "success",
	ErrInternalServer:   "internal_server_error",
	ErrInvalidParams:    "invalid_params",
	ErrUnauthorized:     "unauthorized",
	ErrForbidden:        "forbidden",
	ErrNotFound:         "not_found",
	ErrMethodNotAllowed: "method_not_allowed",
	ErrValidation:       "validation_failed",
	ErrConflict:         "conflict",

	ErrInvalidCredentials: "invalid_credentials",
	ErrSessionExpired:     "session_expired",
	ErrAccountInactive:    "account_inactive",
	ErrScopeInvalid:       "scope_invalid",

	ErrStorageConfigNotFound:       "storage_config_not_found",
	ErrStorageConfigInvalid:        "storage_config_invalid",
	ErrStorageConnectionFailed:     "storage_connection_failed",
	ErrStorageUploadFailed:         "storage_upload_failed",
	ErrStorageListFailed:           "storage_list_failed",
	ErrStorageProviderNotSupported: "storage_provider_not_supported",
	ErrArchiveFailed:               "archive_failed",

	ErrDatabaseConnection:  "database_connection",
	ErrDatabaseQuery:       "database_query",
	ErrDatabaseInsert:      "database_insert",
	ErrDatabaseUpdate:      "database_update",
	ErrDatabaseDelete:      "database_delete",
	ErrDatabaseTransaction: "database_transaction",
	ErrRecordNotFound:      "record_not_found",
	ErrRecordAlreadyExists: "record_already_exists",

	ErrSubjectInUse:       "subject_in_use",
	ErrImportBlocked:      "import_blocked",
	ErrNoActiveYear:       "no_active_year",
	ErrAllocationMismatch: "allocation_mismatch",
	ErrDuplicateSection:   "duplicate_section",
}

// GetErrorMessage 根据错误码获取错误消息（使用默认语言）
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang 根据错误码和语言获取错误消息
// @Param lang query string true "语言代码，如en-US、ar"
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	key, exists := errorCodeToKeyMap[code]
	if !exists {
		key = "unknown_error"
	}
	return i18n.GetInstance().Translate(key, lang)
}

// Unauthorized 未登录错误
func Unauthorized() *AppError {
	return New(ErrUnauthorized, GetErrorMessage(ErrUnauthorized))
}

// Forbidden 无权限错误，message 为空时使用默认消息
func Forbidden(message string) *AppError {
	if message == "" {
		message = GetErrorMessage(ErrForbidden)
	}
	return New(ErrForbidden, message)
}

// NotFound 资源未找到错误
func NotFound(message string) *AppError {
	if message == "" {
		message = GetErrorMessage(ErrNotFound)
	}
	return New(ErrNotFound, message)
}

// Internal 包装数据库等内部错误
func Internal(code ErrorCode, err error) *AppError {
	return Wrap(code, GetErrorMessage(code), err)
}
