// Package subject 提供科目管理相关的业务逻辑服务
// 包含科目的增删改查、批量删除以及Excel模板、导入、导出
package subject

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/logger"
	"github.com/weiwangfds/tis/internal/textutil"
	"github.com/weiwangfds/tis/internal/xlsx"
	"gorm.io/gorm"
)

var (
	codePattern = regexp.MustCompile(`^[A-Z]{3}\d{3}$`)
	namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z\s'\-]*$`)
)

// 校验与业务提示信息
const (
	MsgCodeRequired    = "Subject code is required."
	MsgCodeFormat      = "Subject code must follow format AAA999 (3 letters + 3 digits)."
	MsgNameRequired    = "Subject name is required."
	MsgNameFormat      = "Subject name should contain letters only and start with an uppercase letter."
	MsgWeeklyHours     = "Weekly hours must be a positive whole number."
	MsgGrade           = "Grade must be KG (0) or a whole number from 1 to 12."
	MsgCodeExists      = "Subject code already exists. Please use another code."
	MsgSubjectInUse    = "Cannot delete this subject because it is assigned to one or more teachers."
	MsgBulkEmpty       = "Select at least one subject to delete."
	MsgBulkNotInScope  = "One or more selected subjects were not found in your current scope."
	MsgBulkInUse       = "One or more selected subjects cannot be deleted because they are assigned to teachers."
	MsgSubjectNotFound = "Subject not found."
	msgCreateFailed    = "Unable to add subject. Please correct the data."
	msgReadOnlyCreate  = "Your role has read-only access and cannot add subjects."
	msgReadOnlyImport  = "Your role has read-only access and cannot import subjects."
	msgReadOnlyEdit    = "Your role cannot edit subjects."
	msgReadOnlyDelete  = "Your role cannot delete subjects."
)

// SubjectService 科目服务接口
type SubjectService interface {
	// List 当前范围内的科目，按ID倒序
	List(actor *auth.Actor) (*ListResult, error)

	// Get 获取当前范围内的科目，需要编辑权限
	Get(actor *auth.Actor, id uint) (*database.Subject, error)

	// Create 创建科目
	Create(actor *auth.Actor, input *Input) (*database.Subject, error)

	// Update 更新科目
	Update(actor *auth.Actor, id uint, input *Input) (*database.Subject, error)

	// Delete 删除科目，科目不存在时视为成功
	Delete(actor *auth.Actor, id uint) error

	// BulkDelete 批量删除，返回提示信息
	BulkDelete(actor *auth.Actor, ids []uint) (string, error)

	// Template 下载导入模板
	Template() (*xlsx.File, error)

	// Export 按年级分表导出当前范围内的科目
	Export(actor *auth.Actor) (*xlsx.File, error)

	// Import 从Excel导入科目，任意一行出错则整体不导入
	// 返回:
	//   int - 导入数量
	//   error - 错误信息，阻止导入时 AppError.Errors 为逐行错误
	Import(actor *auth.Actor, filename string, r io.Reader) (int, error)
}

// Input 创建/更新科目的表单
type Input struct {
	SubjectCode string `form:"subject_code" json:"subject_code"`
	SubjectName string `form:"subject_name" json:"subject_name"`
	WeeklyHours *int   `form:"weekly_hours" json:"weekly_hours"`
	Grade       *int   `form:"grade" json:"grade"`
}

// ListResult 科目列表及当前账号的操作权限
type ListResult struct {
	Subjects  []database.Subject `json:"subjects"`
	CanModify bool               `json:"can_modify"`
	CanEdit   bool               `json:"can_edit"`
	CanDelete bool               `json:"can_delete"`
}

// subjectService 科目服务实现
type subjectService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSubjectService 创建科目服务实例
func NewSubjectService(db *gorm.DB) SubjectService {
	return &subjectService{
		db:  db,
		now: time.Now,
	}
}

// NormalizeCode 去掉空白并转为大写
func NormalizeCode(value string) string {
	return strings.ReplaceAll(strings.ToUpper(textutil.CollapseSpaces(value)), " ", "")
}

// NormalizeName 合并空白并把每个单词首字母大写
func NormalizeName(value string) string {
	return textutil.TitleWords(value)
}

// Validate 按固定顺序返回全部校验错误
func Validate(code, name string, weeklyHours, grade *int) []string {
	var errs []string
	switch {
	case code == "":
		errs = append(errs, MsgCodeRequired)
	case !codePattern.MatchString(code):
		errs = append(errs, MsgCodeFormat)
	}

	switch {
	case name == "":
		errs = append(errs, MsgNameRequired)
	case !namePattern.MatchString(name):
		errs = append(errs, MsgNameFormat)
	}

	if weeklyHours == nil || *weeklyHours <= 0 {
		errs = append(errs, MsgWeeklyHours)
	}
	if grade == nil || *grade < 0 || *grade > 12 {
		errs = append(errs, MsgGrade)
	}
	return errs
}

// GradeLabel 年级显示名，0 为 KG
func GradeLabel(grade int) string {
	if grade == 0 {
		return "KG"
	}
	return fmt.Sprintf("Grade %d", grade)
}

func (s *subjectService) scoped(actor *auth.Actor) *gorm.DB {
	return s.db.Where("branch_id = ? AND academic_year_id = ?", actor.ScopeBranchID, actor.ScopeAcademicYearID)
}

// List 获取科目列表
func (s *subjectService) List(actor *auth.Actor) (*ListResult, error) {
	var subjects []database.Subject
	if err := s.scoped(actor).Order("id DESC").Find(&subjects).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	return &ListResult{
		Subjects:  subjects,
		CanModify: actor.Can(auth.CanModifyData),
		CanEdit:   actor.Can(auth.CanEditData),
		CanDelete: actor.Can(auth.CanDeleteData),
	}, nil
}

func (s *subjectService) findInScope(actor *auth.Actor, id uint) (*database.Subject, error) {
	var subject database.Subject
	if err := s.scoped(actor).Where("id = ?", id).First(&subject).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(MsgSubjectNotFound)
		}
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	return &subject, nil
}

// Get 获取科目
func (s *subjectService) Get(actor *auth.Actor, id uint) (*database.Subject, error) {
	if !actor.Can(auth.CanEditData) {
		return nil, apperrors.Forbidden(msgReadOnlyEdit)
	}
	return s.findInScope(actor, id)
}

func (s *subjectService) codeTaken(code string, excludeID uint) (bool, error) {
	query := s.db.Model(&database.Subject{}).Where("subject_code = ?", code)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create 创建科目
func (s *subjectService) Create(actor *auth.Actor, input *Input) (*database.Subject, error) {
	if !actor.Can(auth.CanModifyData) {
		return nil, apperrors.Forbidden(msgReadOnlyCreate)
	}

	code := NormalizeCode(input.SubjectCode)
	name := NormalizeName(input.SubjectName)
	if errs := Validate(code, name, input.WeeklyHours, input.Grade); len(errs) > 0 {
		return nil, apperrors.Validation(msgCreateFailed, errs...)
	}

	taken, err := s.codeTaken(code, 0)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if taken {
		return nil, apperrors.New(apperrors.ErrRecordAlreadyExists, MsgCodeExists)
	}

	subject := &database.Subject{
		SubjectCode:    code,
		SubjectName:    name,
		WeeklyHours:    *input.WeeklyHours,
		Grade:          *input.Grade,
		BranchID:       actor.ScopeBranchID,
		AcademicYearID: actor.ScopeAcademicYearID,
	}
	if err := s.db.Create(subject).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRecordAlreadyExists, "Duplicate subject code is not allowed.", err)
	}

	logger.Infof("[科目服务] 账号 %s 创建科目 %s", actor.User.UserID, code)
	return subject, nil
}

// Update 更新科目
func (s *subjectService) Update(actor *auth.Actor, id uint, input *Input) (*database.Subject, error) {
	if !actor.Can(auth.CanEditData) {
		return nil, apperrors.Forbidden(msgReadOnlyEdit)
	}
	subject, err := s.findInScope(actor, id)
	if err != nil {
		return nil, err
	}

	code := NormalizeCode(input.SubjectCode)
	name := NormalizeName(input.SubjectName)
	if errs := Validate(code, name, input.WeeklyHours, input.Grade); len(errs) > 0 {
		return nil, apperrors.Validation(strings.Join(errs, " "), errs...)
	}

	taken, err := s.codeTaken(code, subject.ID)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if taken {
		return nil, apperrors.New(apperrors.ErrRecordAlreadyExists, MsgCodeExists)
	}

	subject.SubjectCode = code
	subject.SubjectName = name
	subject.WeeklyHours = *input.WeeklyHours
	subject.Grade = *input.Grade
	if err := s.db.Save(subject).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseUpdate, err)
	}

	logger.Infof("[科目服务] 账号 %s 更新科目 %d -> %s", actor.User.UserID, subject.ID, code)
	return subject, nil
}

// referenced 科目编码是否被教师主科目或分配关系引用
func referenced(db *gorm.DB, codes []string) (bool, error) {
	if len(codes) == 0 {
		return false, nil
	}
	var count int64
	if err := db.Model(&database.Teacher{}).Where("subject_code IN ?", codes).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := db.Model(&database.TeacherSubjectAllocation{}).Where("subject_code IN ?", codes).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete 删除科目
func (s *subjectService) Delete(actor *auth.Actor, id uint) error {
	if !actor.Can(auth.CanDeleteData) {
		return apperrors.Forbidden(msgReadOnlyDelete)
	}

	subject, err := s.findInScope(actor, id)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	inUse, err := referenced(s.db, []string{subject.SubjectCode})
	if err != nil {
		return apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if inUse {
		return apperrors.New(apperrors.ErrSubjectInUse, MsgSubjectInUse)
	}

	if err := s.db.Delete(subject).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseDelete, "Unable to delete subject due to related records.", err)
	}
	logger.Infof("[科目服务] 账号 %s 删除科目 %s", actor.User.UserID, subject.SubjectCode)
	return nil
}

// BulkDelete 批量删除科目
func (s *subjectService) BulkDelete(actor *auth.Actor, ids []uint) (string, error) {
	if !actor.Can(auth.CanDeleteData) {
		return "", apperrors.Forbidden(msgReadOnlyDelete)
	}

	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return "", apperrors.Validation(MsgBulkEmpty)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var subjects []database.Subject
		if err := tx.Where("branch_id = ? AND academic_year_id = ? AND id IN ?",
			actor.ScopeBranchID, actor.ScopeAcademicYearID, unique).Find(&subjects).Error; err != nil {
			return apperrors.Internal(apperrors.ErrDatabaseQuery, err)
		}
		if len(subjects) != len(unique) {
			return apperrors.NotFound(MsgBulkNotInScope)
		}

		codes := make([]string, 0, len(subjects))
		for _, subject := range subjects {
			if subject.SubjectCode != "" {
				codes = append(codes, subject.SubjectCode)
			}
		}
		inUse, err := referenced(tx, codes)
		if err != nil {
			return apperrors.Internal(apperrors.ErrDatabaseQuery, err)
		}
		if inUse {
			return apperrors.New(apperrors.ErrSubjectInUse, MsgBulkInUse)
		}

		if err := tx.Where("id IN ?", unique).Delete(&database.Subject{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrDatabaseDelete, "Bulk delete failed due to related records.", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	logger.Infof("[科目服务] 账号 %s 批量删除 %d 个科目", actor.User.UserID, len(unique))
	if len(unique) == 1 {
		return "Subject deleted successfully.", nil
	}
	return fmt.Sprintf("%d subjects deleted successfully.", len(unique)), nil
}

// uniqueIDs 去重、去零并排序
func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
