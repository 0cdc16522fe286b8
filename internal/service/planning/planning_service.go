// Package planning 提供年级班级排课计划的业务逻辑服务
// 班级的课时由同年级科目的周课时之和决定
package planning

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/logger"
	"github.com/weiwangfds/tis/internal/textutil"
	"gorm.io/gorm"
)

// 可选项
var (
	GradeOptions   = []string{"KG", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}
	SectionOptions = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"}
	StatusOptions  = []string{"Current", "New"}
)

// 班级状态
const (
	StatusCurrent = "Current"
	StatusNew     = "New"
)

// 校验提示
const (
	MsgGrade            = "Grade level is required and must be KG or Grade 1 to Grade 12."
	MsgSection          = "Section must be selected from the predefined dropdown list."
	MsgStatus           = "Class status is required and must be either Current or New."
	MsgHomeroom         = "Selected homeroom teacher is not available in the current branch/year scope."
	MsgNoSubjects       = "No subjects were found for the selected grade. Add grade-aligned subjects first in Subjects module."
	MsgDuplicateSection = "This grade and section already exists in planning for the current scope."
	MsgSectionNotFound  = "Planning section not found."
	msgCreateFailed     = "Unable to create planning section. Please fix the highlighted issues."
	msgReadOnlyCreate   = "Your role has read-only access and cannot create planning records."
	msgReadOnlyEdit     = "Your role cannot edit planning records."
	msgReadOnlyDelete   = "Your role cannot delete planning records."
)

// PlanningService 排课计划服务接口
type PlanningService interface {
	// Overview 当前范围内的全部班级及统计
	Overview(actor *auth.Actor) (*Overview, error)

	// Get 获取班级编辑数据，需要编辑权限
	Get(actor *auth.Actor, id uint) (*EditView, error)

	// Create 创建班级，返回班级与提示信息
	Create(actor *auth.Actor, input *Input) (*database.PlanningSection, string, error)

	// Update 更新班级
	Update(actor *auth.Actor, id uint, input *Input) (*database.PlanningSection, error)

	// Delete 删除班级，不存在时视为成功
	Delete(actor *auth.Actor, id uint) error
}

// Input 班级表单
type Input struct {
	GradeLevel        string         `form:"grade_level" json:"grade_level"`
	SectionName       string         `form:"section_name" json:"section_name"`
	ClassStatus       string         `form:"class_status" json:"class_status"`
	HomeroomTeacherID textutil.Loose `form:"homeroom_teacher_id" json:"homeroom_teacher_id"`
}

// AlignedSubject 与年级对应的科目
type AlignedSubject struct {
	SubjectCode string `json:"subject_code"`
	SubjectName string `json:"subject_name"`
	WeeklyHours int    `json:"weekly_hours"`
}

// TeacherChoice 班主任候选
type TeacherChoice struct {
	ID    uint   `json:"id"`
	Label string `json:"label"`
}

// Row 列表中的一个班级
type Row struct {
	database.PlanningSection
	AlignedSubjects     []AlignedSubject `json:"aligned_subjects"`
	AllocatedHours      int              `json:"allocated_hours"`
	HomeroomTeacherName string           `json:"homeroom_teacher_name"`
}

// Options 表单下拉选项
type Options struct {
	GradeOptions   []string                    `json:"grade_options"`
	SectionOptions []string                    `json:"section_options"`
	StatusOptions  []string                    `json:"status_options"`
	AlignmentMap   map[string][]AlignedSubject `json:"subject_alignment_map"`
	TeacherChoices []TeacherChoice             `json:"teacher_choices"`
}

// Overview 排课计划页面数据
type Overview struct {
	Options
	Rows                []Row `json:"planning_rows"`
	CurrentSections     int   `json:"current_sections_count"`
	NewSections         int   `json:"new_sections_count"`
	TotalAllocatedHours int   `json:"total_allocated_hours"`
	CanModify           bool  `json:"can_modify"`
	CanEdit             bool  `json:"can_edit"`
	CanDelete           bool  `json:"can_delete"`
}

// EditView 编辑页数据
type EditView struct {
	Options
	Section         database.PlanningSection `json:"planning_section"`
	AlignedSubjects []AlignedSubject         `json:"aligned_subjects"`
	AllocatedHours  int                      `json:"allocated_hours"`
}

// planningService 排课计划服务实现
type planningService struct {
	db *gorm.DB
}

// NewPlanningService 创建排课计划服务实例
func NewPlanningService(db *gorm.DB) PlanningService {
	return &planningService{db: db}
}

// NormalizeGrade K/KG/KINDERGARTEN 归一为 KG，1..12 归一为数字文本，其余为空
func NormalizeGrade(value string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(value))
	switch cleaned {
	case "K", "KG", "KINDERGARTEN":
		return "KG"
	}
	n, ok := textutil.ParseStrictInt(cleaned)
	if !ok || n < 1 || n > 12 {
		return ""
	}
	return strconv.Itoa(n)
}

// NormalizeSection 转为大写并去掉 "SECTION " 前缀
func NormalizeSection(value string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(value))
	if strings.HasPrefix(cleaned, "SECTION ") {
		cleaned = strings.TrimSpace(strings.Replace(cleaned, "SECTION ", "", 1))
	}
	return cleaned
}

// NormalizeStatus 不区分大小写匹配 Current/New
func NormalizeStatus(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "current":
		return StatusCurrent
	case "new":
		return StatusNew
	default:
		return ""
	}
}

// GradeSortValue KG 为 0，无法识别的年级排在最后
func GradeSortValue(grade string) int {
	if grade == "KG" {
		return 0
	}
	n, ok := textutil.ParseStrictInt(grade)
	if !ok {
		return 99
	}
	return n
}

// GradeLabel 科目年级数字转为班级年级文本
func GradeLabel(grade int) string {
	if grade == 0 {
		return "KG"
	}
	return strconv.Itoa(grade)
}

func contains(options []string, value string) bool {
	for _, option := range options {
		if option == value {
			return true
		}
	}
	return false
}

func scoped(db *gorm.DB, actor *auth.Actor) *gorm.DB {
	return db.Where("branch_id = ? AND academic_year_id = ?", actor.ScopeBranchID, actor.ScopeAcademicYearID)
}

// AlignmentMap 按年级分组的科目，按年级和编码排序
func AlignmentMap(db *gorm.DB, branchID, academicYearID uint) (map[string][]AlignedSubject, error) {
	var subjects []database.Subject
	if err := db.Where("branch_id = ? AND academic_year_id = ?", branchID, academicYearID).
		Order("grade ASC").Order("subject_code ASC").
		Find(&subjects).Error; err != nil {
		return nil, err
	}

	result := make(map[string][]AlignedSubject, len(GradeOptions))
	for _, grade := range GradeOptions {
		result[grade] = []AlignedSubject{}
	}
	for _, subject := range subjects {
		if subject.SubjectCode == "" {
			continue
		}
		label := GradeLabel(subject.Grade)
		if _, ok := result[label]; !ok {
			continue
		}
		name := subject.SubjectName
		if name == "" {
			name = "Unnamed Subject"
		}
		result[label] = append(result[label], AlignedSubject{
			SubjectCode: subject.SubjectCode,
			SubjectName: name,
			WeeklyHours: subject.WeeklyHours,
		})
	}
	return result, nil
}

// TeacherChoices 班主任候选，按名、姓排序；同时返回ID到姓名的映射
func TeacherChoices(db *gorm.DB, branchID, academicYearID uint) ([]TeacherChoice, map[uint]string, error) {
	var teachers []database.Teacher
	if err := db.Where("branch_id = ? AND academic_year_id = ?", branchID, academicYearID).
		Order("first_name ASC").Order("last_name ASC").
		Find(&teachers).Error; err != nil {
		return nil, nil, err
	}

	choices := make([]TeacherChoice, 0, len(teachers))
	names := make(map[uint]string, len(teachers))
	for _, t := range teachers {
		name := strings.TrimSpace(t.FullName())
		if name == "" {
			name = fmt.Sprintf("Teacher #%d", t.ID)
		}
		names[t.ID] = name
		choices = append(choices, TeacherChoice{ID: t.ID, Label: t.TeacherID + " - " + name})
	}
	return choices, names, nil
}

func sumHours(subjects []AlignedSubject) int {
	total := 0
	for _, s := range subjects {
		total += s.WeeklyHours
	}
	return total
}

// BuildRows 组装班级行并按 年级、班级、ID 排序
func BuildRows(sections []database.PlanningSection, alignment map[string][]AlignedSubject, names map[uint]string) []Row {
	rows := make([]Row, 0, len(sections))
	for _, section := range sections {
		aligned := alignment[section.GradeLevel]
		if aligned == nil {
			aligned = []AlignedSubject{}
		}
		homeroom := "-"
		if section.HomeroomTeacherID != nil {
			if name, ok := names[*section.HomeroomTeacherID]; ok {
				homeroom = name
			}
		}
		rows = append(rows, Row{
			PlanningSection:     section,
			AlignedSubjects:     aligned,
			AllocatedHours:      sumHours(aligned),
			HomeroomTeacherName: homeroom,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		gi, gj := GradeSortValue(rows[i].GradeLevel), GradeSortValue(rows[j].GradeLevel)
		if gi != gj {
			return gi < gj
		}
		if rows[i].SectionName != rows[j].SectionName {
			return rows[i].SectionName < rows[j].SectionName
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}

func (s *planningService) options(actor *auth.Actor) (*Options, map[uint]string, error) {
	alignment, err := AlignmentMap(s.db, actor.ScopeBranchID, actor.ScopeAcademicYearID)
	if err != nil {
		return nil, nil, err
	}
	choices, names, err := TeacherChoices(s.db, actor.ScopeBranchID, actor.ScopeAcademicYearID)
	if err != nil {
		return nil, nil, err
	}
	return &Options{
		GradeOptions:   GradeOptions,
		SectionOptions: SectionOptions,
		StatusOptions:  StatusOptions,
		AlignmentMap:   alignment,
		TeacherChoices: choices,
	}, names, nil
}

// Overview 获取排课计划
func (s *planningService) Overview(actor *auth.Actor) (*Overview, error) {
	var sections []database.PlanningSection
	if err := scoped(s.db, actor).Find(&sections).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	opts, names, err := s.options(actor)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}

	overview := &Overview{
		Options:   *opts,
		Rows:      BuildRows(sections, opts.AlignmentMap, names),
		CanModify: actor.Can(auth.CanModifyData),
		CanEdit:   actor.Can(auth.CanEditData),
		CanDelete: actor.Can(auth.CanDeleteData),
	}
	for _, row := range overview.Rows {
		switch row.ClassStatus {
		case StatusCurrent:
			overview.CurrentSections++
		case StatusNew:
			overview.NewSections++
		}
		overview.TotalAllocatedHours += row.AllocatedHours
	}
	return overview, nil
}

func (s *planningService) findInScope(actor *auth.Actor, id uint) (*database.PlanningSection, error) {
	var section database.PlanningSection
	if err := scoped(s.db, actor).Where("id = ?", id).First(&section).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(MsgSectionNotFound)
		}
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	return &section, nil
}

// Get 获取班级编辑数据
func (s *planningService) Get(actor *auth.Actor, id uint) (*EditView, error) {
	if !actor.Can(auth.CanEditData) {
		return nil, apperrors.Forbidden(msgReadOnlyEdit)
	}
	section, err := s.findInScope(actor, id)
	if err != nil {
		return nil, err
	}
	opts, _, err := s.options(actor)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	aligned := opts.AlignmentMap[section.GradeLevel]
	return &EditView{
		Options:         *opts,
		Section:         *section,
		AlignedSubjects: aligned,
		AllocatedHours:  sumHours(aligned),
	}, nil
}

// checked 通过校验的表单
type checked struct {
	grade          string
	section        string
	status         string
	homeroomID     *uint
	allocatedHours int
}

// validate 按固定顺序校验，excludeID 为更新时的自身ID
func (s *planningService) validate(actor *auth.Actor, input *Input, excludeID uint) (*checked, []string, error) {
	c := &checked{
		grade:   NormalizeGrade(input.GradeLevel),
		section: NormalizeSection(input.SectionName),
		status:  NormalizeStatus(input.ClassStatus),
	}

	var errs []string
	if !contains(GradeOptions, c.grade) {
		errs = append(errs, MsgGrade)
	}
	if !contains(SectionOptions, c.section) {
		errs = append(errs, MsgSection)
	}
	if !contains(StatusOptions, c.status) {
		errs = append(errs, MsgStatus)
	}

	if id, ok := textutil.ParseStrictInt(input.HomeroomTeacherID.String()); ok {
		var teacher database.Teacher
		err := scoped(s.db, actor).Where("id = ?", id).First(&teacher).Error
		switch {
		case err == nil:
			c.homeroomID = &teacher.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			errs = append(errs, MsgHomeroom)
		default:
			return nil, nil, err
		}
	}

	alignment, err := AlignmentMap(s.db, actor.ScopeBranchID, actor.ScopeAcademicYearID)
	if err != nil {
		return nil, nil, err
	}
	aligned := alignment[c.grade]
	c.allocatedHours = sumHours(aligned)
	if len(aligned) == 0 {
		errs = append(errs, MsgNoSubjects)
	}

	query := scoped(s.db.Model(&database.PlanningSection{}), actor).
		Where("grade_level = ? AND section_name = ?", c.grade, c.section)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, nil, err
	}
	if count > 0 {
		errs = append(errs, MsgDuplicateSection)
	}
	return c, errs, nil
}

func validationError(message string, errs []string) error {
	appErr := apperrors.Validation(message, errs...)
	if len(errs) == 1 && errs[0] == MsgDuplicateSection {
		appErr.Code = apperrors.ErrDuplicateSection
	}
	return appErr
}

// Create 创建班级
func (s *planningService) Create(actor *auth.Actor, input *Input) (*database.PlanningSection, string, error) {
	if !actor.Can(auth.CanModifyData) {
		return nil, "", apperrors.Forbidden(msgReadOnlyCreate)
	}

	c, errs, err := s.validate(actor, input, 0)
	if err != nil {
		return nil, "", apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if len(errs) > 0 {
		return nil, "", validationError(msgCreateFailed, errs)
	}

	section := &database.PlanningSection{
		GradeLevel:        c.grade,
		SectionName:       c.section,
		ClassStatus:       c.status,
		HomeroomTeacherID: c.homeroomID,
		BranchID:          actor.ScopeBranchID,
		AcademicYearID:    actor.ScopeAcademicYearID,
	}
	if err := s.db.Create(section).Error; err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrDuplicateSection, "Planning section creation failed due to duplicate or invalid data.", err)
	}

	logger.Infof("[排课服务] 账号 %s 创建班级 %s-%s", actor.User.UserID, c.grade, c.section)
	message := fmt.Sprintf("Planning section created successfully: Grade %s - Section %s (%d allocated hours).",
		c.grade, c.section, c.allocatedHours)
	return section, message, nil
}

// Update 更新班级
func (s *planningService) Update(actor *auth.Actor, id uint, input *Input) (*database.PlanningSection, error) {
	if !actor.Can(auth.CanEditData) {
		return nil, apperrors.Forbidden(msgReadOnlyEdit)
	}
	section, err := s.findInScope(actor, id)
	if err != nil {
		return nil, err
	}

	c, errs, err := s.validate(actor, input, section.ID)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if len(errs) > 0 {
		return nil, validationError(strings.Join(errs, " "), errs)
	}

	section.GradeLevel = c.grade
	section.SectionName = c.section
	section.ClassStatus = c.status
	section.HomeroomTeacherID = c.homeroomID
	if err := s.db.Save(section).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDuplicateSection, "Unable to update planning section due to duplicate or invalid data.", err)
	}

	logger.Infof("[排课服务] 账号 %s 更新班级 %d", actor.User.UserID, section.ID)
	return section, nil
}

// Delete 删除班级
func (s *planningService) Delete(actor *auth.Actor, id uint) error {
	if !actor.Can(auth.CanDeleteData) {
		return apperrors.Forbidden(msgReadOnlyDelete)
	}
	section, err := s.findInScope(actor, id)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.db.Delete(section).Error; err != nil {
		return apperrors.Internal(apperrors.ErrDatabaseDelete, err)
	}
	logger.Infof("[排课服务] 账号 %s 删除班级 %d", actor.User.UserID, section.ID)
	return nil
}
