package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/tis/internal/audit"
	"github.com/weiwangfds/tis/internal/auth"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/logger"
	"github.com/weiwangfds/tis/internal/middleware"
	"github.com/weiwangfds/tis/internal/response"
)

const (
	msgAuditDenied     = "Only Developer and Administrator accounts can download the audit log."
	msgAuditFormat     = "Unsupported format. Use csv or xlsx."
	auditFormatCSV     = "csv"
	auditFormatXLSX    = "xlsx"
	defaultAuditFormat = auditFormatCSV
)

// AuditLog 审计日志文件位置
type AuditLog interface {
	Path() string
}

// AuditHandler 审计日志下载处理器
type AuditHandler struct {
	log AuditLog
	now func() time.Time
}

// NewAuditHandler 创建审计日志处理器实例
func NewAuditHandler(log AuditLog) *AuditHandler {
	return &AuditHandler{log: log, now: time.Now}
}

// Download 下载审计日志
// @Summary 下载审计日志
// @Description 开发者和管理员可用，CSV 以流的方式输出，日志不存在时只有表头
// @Tags 审计
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv 或 xlsx" Enums(csv, xlsx) default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Response "格式不支持"
// @Failure 403 {object} response.Response
// @Router /admin/audit-log [get]
func (h *AuditHandler) Download(c *gin.Context) {
	if !actor(c).Can(auth.CanDownloadAuditLog) {
		response.Error(c, apperrors.Forbidden(msgAuditDenied))
		return
	}

	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", defaultAuditFormat)))
	path := h.log.Path()
	switch format {
	case auditFormatCSV:
		filename := audit.ExportFilename(path, auditFormatCSV, h.now())
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Header("Content-Type", response.ContentTypeCSV)
		c.Status(http.StatusOK)
		if err := audit.WriteCSV(c.Writer, path); err != nil {
			logger.WithField("request_id", middleware.GetRequestID(c)).Errorf("[审计] 导出CSV失败: %v", err)
			_ = c.Error(err)
		}
	case auditFormatXLSX:
		data, err := audit.BuildXLSX(path)
		if err != nil {
			response.Error(c, apperrors.Internal(apperrors.ErrInternalServer, err))
			return
		}
		response.Attachment(c, audit.ExportFilename(path, auditFormatXLSX, h.now()), response.ContentTypeXLSX, data)
	default:
		response.Error(c, apperrors.Validation(msgAuditFormat))
	}
}
