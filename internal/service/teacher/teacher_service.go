// Package teacher 提供教师管理相关的业务逻辑服务
// 教师的课时上限必须与所分配科目的周课时之和完全一致
package teacher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/logger"
	"github.com/weiwangfds/tis/internal/textutil"
	"gorm.io/gorm"
)

// StandardMaxHours 未开启加班时的课时上限
const StandardMaxHours = 24

// LevelOptions 可选的任教学段
var LevelOptions = []string{
	"Homeroom Teacher",
	"K1",
	"K2",
	"Grade 1",
	"Grade 2",
	"Grade 3",
	"Grade 4",
	"Grade 5",
	"Grade 6",
	"Grade 7",
	"Grade 8",
	"Grade 9",
	"Grade 10",
	"Grade 11",
	"Grade 12",
}

var (
	teacherIDPattern = regexp.MustCompile(`^\d{1,10}$`)
	namePattern      = regexp.MustCompile(`^[A-Za-z][A-Za-z\s'\-]*$`)
)

// 校验提示
const (
	MsgTeacherID         = "Teacher ID (Iqama/National ID) must be numeric and up to 10 digits."
	MsgFirstNameRequired = "First name is required."
	MsgFirstNameLetters  = "First name must contain letters only."
	MsgMiddleNameLetters = "Middle name must contain letters only."
	MsgLastNameRequired  = "Last name is required."
	MsgLastNameLetters   = "Last name must contain letters only."
	MsgSubjectsRequired  = "Select at least one subject for this teacher."
	MsgSubjectsMissing   = "Selected subject codes do not exist in the current branch/academic year: "
	MsgInvalidLevel      = "Invalid level selected."
	MsgMaxHours          = "Max hours must be a positive whole number."
	MsgMaxHoursExtra     = "To set max hours above 24, enable Extra Hours Allowed first."
	MsgExtraHoursCount   = "Extra hours count must be a positive whole number when extra hours are allowed."
	MsgTeacherIDExists   = "Teacher ID already exists."
	MsgTeacherNotFound   = "Teacher not found."
	msgCreateFailed      = "Unable to create teacher. Please fix the highlighted issues."
	msgReadOnlyCreate    = "Your role has read-only access and cannot create teachers."
	msgReadOnlyEdit      = "Your role cannot edit teachers."
	msgReadOnlyDelete    = "Your role cannot delete teachers."
)

// TeacherService 教师服务接口
type TeacherService interface {
	// List 当前范围内的教师及其科目分配情况
	List(actor *auth.Actor) (*ListResult, error)

	// Get 获取教师及已分配的科目编码，需要编辑权限
	Get(actor *auth.Actor, id uint) (*EditView, error)

	// Create 创建教师并写入科目分配
	Create(actor *auth.Actor, input *Input) (*database.Teacher, error)

	// Update 更新教师并整体替换科目分配
	Update(actor *auth.Actor, id uint, input *Input) (*database.Teacher, error)

	// Delete 删除教师、科目分配，并清除班级的班主任引用
	Delete(actor *auth.Actor, id uint) error
}

// Input 创建/更新教师的表单
type Input struct {
	TeacherID         string         `form:"teacher_id" json:"teacher_id"`
	FirstName         string         `form:"first_name" json:"first_name"`
	MiddleName        string         `form:"middle_name" json:"middle_name"`
	LastName          string         `form:"last_name" json:"last_name"`
	SubjectCodes      []string       `form:"subject_codes" json:"subject_codes"`
	Level             string         `form:"level" json:"level"`
	MaxHours          textutil.Loose `form:"max_hours" json:"max_hours"`
	ExtraHoursAllowed textutil.Loose `form:"extra_hours_allowed" json:"extra_hours_allowed"`
	ExtraHoursCount   textutil.Loose `form:"extra_hours_count" json:"extra_hours_count"`
}

// SubjectChoice 可分配的科目
type SubjectChoice struct {
	SubjectCode string `json:"subject_code"`
	SubjectName string `json:"subject_name"`
	WeeklyHours int    `json:"weekly_hours"`
	Grade       int    `json:"grade"`
}

// Allocation 教师的科目分配汇总
type Allocation struct {
	SubjectCodes    []string `json:"subject_codes"`
	SubjectLabels   []string `json:"subject_labels"`
	AllocatedHours  int      `json:"allocated_hours"`
	MatchesMaxHours bool     `json:"matches_max_hours"`
}

// TeacherRow 列表中的一行
type TeacherRow struct {
	database.Teacher
	FullName   string     `json:"full_name"`
	Allocation Allocation `json:"allocation"`
}

// ListResult 教师列表
type ListResult struct {
	Teachers       []TeacherRow    `json:"teachers"`
	SubjectChoices []SubjectChoice `json:"subject_choices"`
	LevelOptions   []string        `json:"level_options"`
	CanModify      bool            `json:"can_modify"`
	CanEdit        bool            `json:"can_edit"`
	CanDelete      bool            `json:"can_delete"`
}

// EditView 编辑页数据
type EditView struct {
	Teacher              database.Teacher `json:"teacher"`
	AssignedSubjectCodes []string         `json:"assigned_subject_codes"`
	SubjectChoices       []SubjectChoice  `json:"subject_choices"`
	LevelOptions         []string         `json:"level_options"`
}

// teacherService 教师服务实现
type teacherService struct {
	db *gorm.DB
}

// NewTeacherService 创建教师服务实例
func NewTeacherService(db *gorm.DB) TeacherService {
	return &teacherService{db: db}
}

func (s *teacherService) scoped(db *gorm.DB, actor *auth.Actor) *gorm.DB {
	return db.Where("branch_id = ? AND academic_year_id = ?", actor.ScopeBranchID, actor.ScopeAcademicYearID)
}

// subjectChoices 当前范围内的科目，按编码排序
func (s *teacherService) subjectChoices(actor *auth.Actor) ([]SubjectChoice, error) {
	var subjects []database.Subject
	if err := s.scoped(s.db, actor).Order("subject_code ASC").Find(&subjects).Error; err != nil {
		return nil, err
	}
	choices := make([]SubjectChoice, 0, len(subjects))
	for _, subject := range subjects {
		if subject.SubjectCode == "" {
			continue
		}
		choices = append(choices, SubjectChoice{
			SubjectCode: subject.SubjectCode,
			SubjectName: subject.SubjectName,
			WeeklyHours: subject.WeeklyHours,
			Grade:       subject.Grade,
		})
	}
	return choices, nil
}

// AllocationMap 计算每位教师的科目分配与课时
func AllocationMap(db *gorm.DB, teachers []database.Teacher) (map[uint]*Allocation, error) {
	result := make(map[uint]*Allocation, len(teachers))
	if len(teachers) == 0 {
		return result, nil
	}

	ids := make([]uint, 0, len(teachers))
	for _, t := range teachers {
		ids = append(ids, t.ID)
		result[t.ID] = &Allocation{SubjectCodes: []string{}, SubjectLabels: []string{}}
	}

	var allocations []database.TeacherSubjectAllocation
	if err := db.Where("teacher_id IN ?", ids).
		Order("teacher_id ASC").Order("subject_code ASC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}

	codeSet := map[string]bool{}
	var codes []string
	for _, a := range allocations {
		if a.SubjectCode != "" && !codeSet[a.SubjectCode] {
			codeSet[a.SubjectCode] = true
			codes = append(codes, a.SubjectCode)
		}
	}
	hoursByCode := map[string]int{}
	if len(codes) > 0 {
		var subjects []database.Subject
		if err := db.Where("subject_code IN ?", codes).Find(&subjects).Error; err != nil {
			return nil, err
		}
		for _, subject := range subjects {
			hoursByCode[subject.SubjectCode] = subject.WeeklyHours
		}
	}

	for _, a := range allocations {
		entry, ok := result[a.TeacherID]
		if !ok {
			continue
		}
		hours := hoursByCode[a.SubjectCode]
		entry.SubjectCodes = append(entry.SubjectCodes, a.SubjectCode)
		entry.SubjectLabels = append(entry.SubjectLabels, fmt.Sprintf("%s (%dh)", a.SubjectCode, hours))
		entry.AllocatedHours += hours
	}

	for _, t := range teachers {
		maxHours := t.MaxHours
		if maxHours == 0 {
			maxHours = StandardMaxHours
		}
		result[t.ID].MatchesMaxHours = result[t.ID].AllocatedHours == maxHours
	}
	return result, nil
}

// List 获取教师列表
func (s *teacherService) List(actor *auth.Actor) (*ListResult, error) {
	var teachers []database.Teacher
	if err := s.scoped(s.db, actor).Order("id DESC").Find(&teachers).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	allocations, err := AllocationMap(s.db, teachers)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	choices, err := s.subjectChoices(actor)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}

	rows := make([]TeacherRow, 0, len(teachers))
	for _, t := range teachers {
		rows = append(rows, TeacherRow{
			Teacher:    t,
			FullName:   t.FullName(),
			Allocation: *allocations[t.ID],
		})
	}

	return &ListResult{
		Teachers:       rows,
		SubjectChoices: choices,
		LevelOptions:   LevelOptions,
		CanModify:      actor.Can(auth.CanModifyData),
		CanEdit:        actor.Can(auth.CanEditData),
		CanDelete:      actor.Can(auth.CanDeleteData),
	}, nil
}

func (s *teacherService) findInScope(actor *auth.Actor, id uint) (*database.Teacher, error) {
	var teacher database.Teacher
	if err := s.scoped(s.db, actor).Where("id = ?", id).First(&teacher).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(MsgTeacherNotFound)
		}
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	return &teacher, nil
}

// Get 获取教师编辑数据
func (s *teacherService) Get(actor *auth.Actor, id uint) (*EditView, error) {
	if !actor.Can(auth.CanEditData) {
		return nil, apperrors.Forbidden(msgReadOnlyEdit)
	}
	teacher, err := s.findInScope(actor, id)
	if err != nil {
		return nil, err
	}

	var codes []string
	if err := s.db.Model(&database.TeacherSubjectAllocation{}).
		Where("teacher_id = ? AND subject_code <> ''", teacher.ID).
		Order("subject_code ASC").
		Pluck("subject_code", &codes).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	choices, err := s.subjectChoices(actor)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}

	return &EditView{
		Teacher:              *teacher,
		AssignedSubjectCodes: codes,
		SubjectChoices:       choices,
		LevelOptions:         LevelOptions,
	}, nil
}

// normalized 规范化后的表单
type normalized struct {
	teacherID       string
	firstName       string
	middleName      string
	lastName        string
	codes           []string
	level           string
	maxHours        int
	maxHoursOK      bool
	extraAllowed    bool
	extraHoursCount int
	extraHoursOK    bool
}

// NormalizeCodes 编码转大写、去重并保持顺序
func NormalizeCodes(values []string) []string {
	seen := map[string]bool{}
	codes := make([]string, 0, len(values))
	for _, raw := range values {
		code := strings.ToUpper(textutil.CollapseSpaces(raw))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes
}

func normalize(input *Input) normalized {
	maxHoursText := input.MaxHours.String()
	if maxHoursText == "" {
		maxHoursText = fmt.Sprint(StandardMaxHours)
	}
	extraCountText := input.ExtraHoursCount.String()
	if extraCountText == "" {
		extraCountText = "0"
	}

	n := normalized{
		teacherID:    textutil.CollapseSpaces(input.TeacherID),
		firstName:    textutil.TitleWords(input.FirstName),
		middleName:   textutil.TitleWords(input.MiddleName),
		lastName:     textutil.TitleWords(input.LastName),
		codes:        NormalizeCodes(input.SubjectCodes),
		level:        textutil.CollapseSpaces(input.Level),
		extraAllowed: textutil.ParseBoolFlag(input.ExtraHoursAllowed.String()),
	}
	n.maxHours, n.maxHoursOK = textutil.ParseStrictInt(maxHoursText)
	n.extraHoursCount, n.extraHoursOK = textutil.ParseStrictInt(extraCountText)
	return n
}

func isLevel(level string) bool {
	for _, option := range LevelOptions {
		if option == level {
			return true
		}
	}
	return false
}

// validate 按固定顺序校验，excludeID 为更新时的自身ID
func (s *teacherService) validate(actor *auth.Actor, n *normalized, excludeID uint) ([]string, bool, error) {
	var errs []string
	mismatch := false

	if !teacherIDPattern.MatchString(n.teacherID) {
		errs = append(errs, MsgTeacherID)
	}

	switch {
	case n.firstName == "":
		errs = append(errs, MsgFirstNameRequired)
	case !namePattern.MatchString(n.firstName):
		errs = append(errs, MsgFirstNameLetters)
	}
	if n.middleName != "" && !namePattern.MatchString(n.middleName) {
		errs = append(errs, MsgMiddleNameLetters)
	}
	switch {
	case n.lastName == "":
		errs = append(errs, MsgLastNameRequired)
	case !namePattern.MatchString(n.lastName):
		errs = append(errs, MsgLastNameLetters)
	}

	hoursByCode := map[string]int{}
	if len(n.codes) == 0 {
		errs = append(errs, MsgSubjectsRequired)
	} else {
		var subjects []database.Subject
		if err := s.scoped(s.db, actor).Where("subject_code IN ?", n.codes).Find(&subjects).Error; err != nil {
			return nil, false, err
		}
		for _, subject := range subjects {
			hoursByCode[subject.SubjectCode] = subject.WeeklyHours
		}
		var missing []string
		for _, code := range n.codes {
			if _, ok := hoursByCode[code]; !ok {
				missing = append(missing, code)
			}
		}
		if len(missing) > 0 {
			errs = append(errs, MsgSubjectsMissing+strings.Join(missing, ", "))
		}
	}

	if !isLevel(n.level) {
		errs = append(errs, MsgInvalidLevel)
	}

	switch {
	case !n.maxHoursOK || n.maxHours <= 0:
		errs = append(errs, MsgMaxHours)
	case n.maxHours > StandardMaxHours && !n.extraAllowed:
		errs = append(errs, MsgMaxHoursExtra)
	}

	if n.maxHoursOK && n.maxHours > 0 && len(hoursByCode) > 0 {
		allocated := 0
		for _, code := range n.codes {
			allocated += hoursByCode[code]
		}
		if allocated != n.maxHours {
			mismatch = true
			errs = append(errs, fmt.Sprintf("Allocated subject hours (%d) must exactly match Max Hours (%d).", allocated, n.maxHours))
		}
	}

	if n.extraAllowed {
		if !n.extraHoursOK || n.extraHoursCount <= 0 {
			errs = append(errs, MsgExtraHoursCount)
		}
	} else {
		n.extraHoursCount = 0
	}

	query := s.db.Model(&database.Teacher{}).Where("teacher_id = ?", n.teacherID)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, false, err
	}
	if count > 0 {
		errs = append(errs, MsgTeacherIDExists)
	}

	return errs, mismatch && len(errs) == 1, nil
}

func validationError(message string, errs []string, onlyMismatch bool) error {
	appErr := apperrors.Validation(message, errs...)
	if onlyMismatch {
		appErr.Code = apperrors.ErrAllocationMismatch
	}
	return appErr
}

func (n *normalized) apply(teacher *database.Teacher) {
	teacher.TeacherID = n.teacherID
	teacher.FirstName = n.firstName
	teacher.MiddleName = nil
	if n.middleName != "" {
		middle := n.middleName
		teacher.MiddleName = &middle
	}
	teacher.LastName = n.lastName
	teacher.SubjectCode = n.codes[0]
	teacher.Level = n.level
	teacher.MaxHours = n.maxHours
	teacher.ExtraHoursAllowed = n.extraAllowed
	teacher.ExtraHoursCount = n.extraHoursCount
}

func allocationsFor(teacherID uint, codes []string) []database.TeacherSubjectAllocation {
	rows := make([]database.TeacherSubjectAllocation, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, database.TeacherSubjectAllocation{TeacherID: teacherID, SubjectCode: code})
	}
	return rows
}

// Create 创建教师
func (s *teacherService) Create(actor *auth.Actor, input *Input) (*database.Teacher, error) {
	if !actor.Can(auth.CanModifyData) {
		return nil, apperrors.Forbidden(msgReadOnlyCreate)
	}

	n := normalize(input)
	errs, onlyMismatch, err := s.validate(actor, &n, 0)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if len(errs) > 0 {
		return nil, validationError(msgCreateFailed, errs, onlyMismatch)
	}

	teacher := &database.Teacher{
		BranchID:       actor.ScopeBranchID,
		AcademicYearID: actor.ScopeAcademicYearID,
	}
	n.apply(teacher)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(teacher).Error; err != nil {
			return err
		}
		allocations := allocationsFor(teacher.ID, n.codes)
		return tx.Create(&allocations).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseInsert, "Teacher creation failed due to duplicate or invalid data.", err)
	}

	logger.Infof("[教师服务] 账号 %s 创建教师 %s (%s)", actor.User.UserID, teacher.TeacherID, teacher.FullName())
	return teacher, nil
}

// Update 更新教师
func (s *teacherService) Update(actor *auth.Actor, id uint, input *Input) (*database.Teacher, error) {
	if !actor.Can(auth.CanEditData) {
		return nil, apperrors.Forbidden(msgReadOnlyEdit)
	}
	teacher, err := s.findInScope(actor, id)
	if err != nil {
		return nil, err
	}

	n := normalize(input)
	errs, onlyMismatch, err := s.validate(actor, &n, teacher.ID)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if len(errs) > 0 {
		return nil, validationError(strings.Join(errs, " "), errs, onlyMismatch)
	}

	n.apply(teacher)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(teacher).Error; err != nil {
			return err
		}
		if err := tx.Where("teacher_id = ?", teacher.ID).Delete(&database.TeacherSubjectAllocation{}).Error; err != nil {
			return err
		}
		allocations := allocationsFor(teacher.ID, n.codes)
		return tx.Create(&allocations).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseUpdate, "Unable to update teacher due to duplicate or invalid data.", err)
	}

	logger.Infof("[教师服务] 账号 %s 更新教师 %d", actor.User.UserID, teacher.ID)
	return teacher, nil
}

// Delete 删除教师，不存在时视为成功
func (s *teacherService) Delete(actor *auth.Actor, id uint) error {
	if !actor.Can(auth.CanDeleteData) {
		return apperrors.Forbidden(msgReadOnlyDelete)
	}

	teacher, err := s.findInScope(actor, id)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("teacher_id = ?", teacher.ID).Delete(&database.TeacherSubjectAllocation{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&database.PlanningSection{}).
			Where("homeroom_teacher_id = ?", teacher.ID).
			Update("homeroom_teacher_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(teacher).Error
	})
	if err != nil {
		return apperrors.Internal(apperrors.ErrDatabaseDelete, err)
	}

	logger.Infof("[教师服务] 账号 %s 删除教师 %s", actor.User.UserID, teacher.TeacherID)
	return nil
}
