package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/tis/internal/response"
	"github.com/weiwangfds/tis/internal/service/report"
)

// ReportHandler 报表处理器
type ReportHandler struct {
	reports report.ReportService
}

// NewReportHandler 创建报表处理器实例
func NewReportHandler(reports report.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// AllocationPlan 下载课时分配计划
// @Summary 课时分配计划
// @Description 当前范围的汇总、教师和班级三个工作表
// @Tags 报表
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /reports/allocation-plan.xlsx [get]
func (h *ReportHandler) AllocationPlan(c *gin.Context) {
	file, err := h.reports.AllocationPlan(actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Name, response.ContentTypeXLSX, file.Data)
}
