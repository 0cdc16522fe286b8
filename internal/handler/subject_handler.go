package handler

import (
	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/response"
	"github.com/weiwangfds/tis/internal/service/subject"
	"github.com/weiwangfds/tis/internal/textutil"
	"github.com/weiwangfds/tis/internal/xlsx"
)

// SubjectHandler 科目处理器
type SubjectHandler struct {
	subjects subject.SubjectService
}

// NewSubjectHandler 创建科目处理器实例
func NewSubjectHandler(subjects subject.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjects: subjects}
}

// SubjectForm 科目表单，课时和年级接受 "4"、"4.0" 或数字
type SubjectForm struct {
	SubjectCode string         `form:"subject_code" json:"subject_code" example:"MAT101"`
	SubjectName string         `form:"subject_name" json:"subject_name" example:"Mathematics"`
	WeeklyHours textutil.Loose `form:"weekly_hours" json:"weekly_hours" swaggertype:"string" example:"5"`
	Grade       textutil.Loose `form:"grade" json:"grade" swaggertype:"string" example:"1"`
}

// input 转换为服务层参数，无法解析的整数留空由校验报告
func (f *SubjectForm) input() *subject.Input {
	in := &subject.Input{SubjectCode: f.SubjectCode, SubjectName: f.SubjectName}
	if v, ok := textutil.ParseLenientInt(f.WeeklyHours.String()); ok {
		in.WeeklyHours = &v
	}
	if v, ok := textutil.ParseLenientInt(f.Grade.String()); ok {
		in.Grade = &v
	}
	return in
}

// List 科目列表
// @Summary 科目列表
// @Description 当前范围的科目，按ID倒序
// @Tags 科目
// @Produce json
// @Success 200 {object} response.Response{data=subject.ListResult}
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	result, err := h.subjects.List(actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Create 创建科目
// @Summary 创建科目
// @Tags 科目
// @Accept json
// @Produce json
// @Param request body SubjectForm true "科目"
// @Success 201 {object} response.Response{data=database.Subject}
// @Failure 400 {object} response.Response "校验失败"
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response "科目编码已存在"
// @Router /subjects [post]
func (h *SubjectHandler) Create(c *gin.Context) {
	var form SubjectForm
	if !bind(c, &form) {
		return
	}
	created, err := h.subjects.Create(actor(c), form.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Subject added successfully.", created)
}

// Get 获取科目
// @Summary 获取待编辑的科目
// @Tags 科目
// @Produce json
// @Param id path int true "科目ID"
// @Success 200 {object} response.Response{data=database.Subject}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /subjects/edit/{id} [get]
func (h *SubjectHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	found, err := h.subjects.Get(actor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, found)
}

// Update 更新科目
// @Summary 更新科目
// @Tags 科目
// @Accept json
// @Produce json
// @Param id path int true "科目ID"
// @Param request body SubjectForm true "科目"
// @Success 200 {object} response.Response{data=database.Subject}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /subjects/edit/{id} [post]
func (h *SubjectHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var form SubjectForm
	if !bind(c, &form) {
		return
	}
	updated, err := h.subjects.Update(actor(c), id, form.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Subject updated successfully.", updated)
}

// Delete 删除科目
// @Summary 删除科目
// @Description 被教师引用的科目不能删除，ID不存在时视为成功
// @Tags 科目
// @Produce json
// @Param id path int true "科目ID"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response "科目被引用"
// @Router /subjects/delete/{id} [get]
func (h *SubjectHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.subjects.Delete(actor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, "Subject deleted successfully.", nil)
}

// BulkDelete 批量删除科目
// @Summary 批量删除科目
// @Tags 科目
// @Accept json
// @Produce json
// @Param request body IDSelection true "选中的科目"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response "未选择科目"
// @Failure 404 {object} response.Response "科目不在当前范围"
// @Failure 409 {object} response.Response "科目被引用"
// @Router /subjects/delete-bulk [post]
func (h *SubjectHandler) BulkDelete(c *gin.Context) {
	var selection IDSelection
	if !bind(c, &selection) {
		return
	}
	message, err := h.subjects.BulkDelete(actor(c), selection.SubjectIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, message, gin.H{"deleted": len(selection.SubjectIDs)})
}

// Template 下载导入模板
// @Summary 下载科目导入模板
// @Tags 科目
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /subjects/template [get]
func (h *SubjectHandler) Template(c *gin.Context) {
	file, err := h.subjects.Template()
	h.attachment(c, file, err)
}

// Export 导出科目
// @Summary 导出当前范围的科目
// @Description 汇总表加 KG 到 Grade 12 共13个年级工作表
// @Tags 科目
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /subjects/export [get]
func (h *SubjectHandler) Export(c *gin.Context) {
	file, err := h.subjects.Export(actor(c))
	h.attachment(c, file, err)
}

func (h *SubjectHandler) attachment(c *gin.Context, file *xlsx.File, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Name, response.ContentTypeXLSX, file.Data)
}

// Import 导入科目
// @Summary 从Excel导入科目
// @Description 任何一行有错误时整个导入被阻止
// @Tags 科目
// @Accept multipart/form-data
// @Produce json
// @Param subject_file formData file true "xlsx文件"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response "导入被阻止"
// @Router /subjects/import [post]
func (h *SubjectHandler) Import(c *gin.Context) {
	header, err := c.FormFile("subject_file")
	if err != nil {
		_, err = h.subjects.Import(actor(c), "", nil)
		response.Error(c, err)
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, apperrors.Validation(subject.MsgImportUnreadable))
		return
	}
	defer file.Close()

	count, err := h.subjects.Import(actor(c), header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, subject.ImportMessage(count), gin.H{"imported": count})
}
