// Package report 生成教师课时分配计划工作簿
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/logger"
	"github.com/weiwangfds/tis/internal/service/planning"
	"github.com/weiwangfds/tis/internal/service/teacher"
	"github.com/weiwangfds/tis/internal/xlsx"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// 工作表名称
const (
	SheetSummary  = "Summary"
	SheetTeachers = "Teachers"
	SheetSections = "Sections"
)

// 表头
var (
	TeacherHeaders = []string{"Teacher ID", "Full Name", "Level", "Subjects", "Allocated Hours", "Max Hours", "Extra Hours", "Status"}
	SectionHeaders = []string{"Grade", "Section", "Status", "Homeroom Teacher", "Aligned Subjects", "Allocated Hours"}
)

// 教师分配状态
const (
	StatusBalanced = "Balanced"
	StatusMismatch = "Mismatch"
)

// ReportService 报表服务接口
type ReportService interface {
	// AllocationPlan 当前范围的课时分配计划
	AllocationPlan(actor *auth.Actor) (*xlsx.File, error)
}

// reportService 报表服务实现
type reportService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewReportService 创建报表服务实例
func NewReportService(db *gorm.DB) ReportService {
	return &reportService{db: db, now: time.Now}
}

// planData 报表需要的数据
type planData struct {
	branchName  string
	yearName    string
	teachers    []database.Teacher
	allocations map[uint]*teacher.Allocation
	sections    []planning.Row
	subjects    int64
}

func (s *reportService) load(actor *auth.Actor) (*planData, error) {
	scoped := func() *gorm.DB {
		return s.db.Where("branch_id = ? AND academic_year_id = ?", actor.ScopeBranchID, actor.ScopeAcademicYearID)
	}
	data := &planData{}

	var branch database.Branch
	if err := s.db.Where("id = ?", actor.ScopeBranchID).Limit(1).Find(&branch).Error; err != nil {
		return nil, err
	}
	data.branchName = branch.Name
	var year database.AcademicYear
	if err := s.db.Where("id = ?", actor.ScopeAcademicYearID).Limit(1).Find(&year).Error; err != nil {
		return nil, err
	}
	data.yearName = year.YearName

	if err := scoped().Model(&database.Subject{}).Count(&data.subjects).Error; err != nil {
		return nil, err
	}
	if err := scoped().Order("teacher_id ASC").Find(&data.teachers).Error; err != nil {
		return nil, err
	}
	allocations, err := teacher.AllocationMap(s.db, data.teachers)
	if err != nil {
		return nil, err
	}
	data.allocations = allocations

	var sections []database.PlanningSection
	if err := scoped().Find(&sections).Error; err != nil {
		return nil, err
	}
	alignment, err := planning.AlignmentMap(s.db, actor.ScopeBranchID, actor.ScopeAcademicYearID)
	if err != nil {
		return nil, err
	}
	_, names, err := planning.TeacherChoices(s.db, actor.ScopeBranchID, actor.ScopeAcademicYearID)
	if err != nil {
		return nil, err
	}
	data.sections = planning.BuildRows(sections, alignment, names)
	return data, nil
}

// AllocationPlan 生成课时分配计划
func (s *reportService) AllocationPlan(actor *auth.Actor) (*xlsx.File, error) {
	data, err := s.load(actor)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := xlsx.HeaderStyle(f, xlsx.ColorPrimary, true)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrInternalServer, err)
	}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, apperrors.Internal(apperrors.ErrInternalServer, err)
	}
	if _, err := f.NewSheet(SheetTeachers); err != nil {
		return nil, apperrors.Internal(apperrors.ErrInternalServer, err)
	}
	if _, err := f.NewSheet(SheetSections); err != nil {
		return nil, apperrors.Internal(apperrors.ErrInternalServer, err)
	}

	for _, step := range []func(*excelize.File, int, *planData) error{writeSummary, writeTeachers, writeSections} {
		if err := step(f, headerStyle, data); err != nil {
			return nil, apperrors.Internal(apperrors.ErrInternalServer, err)
		}
	}
	f.SetActiveSheet(0)

	content, err := xlsx.Bytes(f)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrInternalServer, err)
	}

	logger.Infof("[报表服务] 账号 %s 导出课时分配计划: 教师 %d, 班级 %d",
		actor.User.UserID, len(data.teachers), len(data.sections))
	return &xlsx.File{
		Name: fmt.Sprintf("allocation_plan_%s.xlsx", s.now().Format("20060102_150405")),
		Data: content,
	}, nil
}

func writeSummary(f *excelize.File, headerStyle int, data *planData) error {
	if err := xlsx.WriteHeader(f, SheetSummary, []string{"Metric", "Value"}, headerStyle); err != nil {
		return err
	}

	var allocated, balanced, sectionHours int
	for _, t := range data.teachers {
		a := data.allocations[t.ID]
		allocated += a.AllocatedHours
		if a.MatchesMaxHours {
			balanced++
		}
	}
	for _, row := range data.sections {
		sectionHours += row.AllocatedHours
	}

	rows := [][]interface{}{
		{"Branch", data.branchName},
		{"Academic Year", data.yearName},
		{"Subjects", data.subjects},
		{"Teachers", len(data.teachers)},
		{"Balanced Teachers", balanced},
		{"Mismatched Teachers", len(data.teachers) - balanced},
		{"Teacher Allocated Hours", allocated},
		{"Planning Sections", len(data.sections)},
		{"Section Allocated Hours", sectionHours},
	}
	for i, values := range rows {
		if err := xlsx.AppendRow(f, SheetSummary, i+2, values...); err != nil {
			return err
		}
	}
	return xlsx.SetWidths(f, SheetSummary, map[string]float64{"A": 28, "B": 30})
}

func writeTeachers(f *excelize.File, headerStyle int, data *planData) error {
	if err := xlsx.WriteHeader(f, SheetTeachers, TeacherHeaders, headerStyle); err != nil {
		return err
	}
	for i, t := range data.teachers {
		a := data.allocations[t.ID]
		status := StatusMismatch
		if a.MatchesMaxHours {
			status = StatusBalanced
		}
		maxHours := t.MaxHours
		if maxHours == 0 {
			maxHours = teacher.StandardMaxHours
		}
		if err := xlsx.AppendRow(f, SheetTeachers, i+2,
			t.TeacherID,
			t.FullName(),
			t.Level,
			strings.Join(a.SubjectLabels, ", "),
			a.AllocatedHours,
			maxHours,
			t.ExtraHoursCount,
			status,
		); err != nil {
			return err
		}
	}
	if err := xlsx.SetWidths(f, SheetTeachers, map[string]float64{
		"A": 14, "B": 30, "C": 14, "D": 40, "E": 16, "F": 12, "G": 12, "H": 12,
	}); err != nil {
		return err
	}
	return xlsx.FreezeHeader(f, SheetTeachers)
}

func writeSections(f *excelize.File, headerStyle int, data *planData) error {
	if err := xlsx.WriteHeader(f, SheetSections, SectionHeaders, headerStyle); err != nil {
		return err
	}
	for i, row := range data.sections {
		codes := make([]string, 0, len(row.AlignedSubjects))
		for _, subject := range row.AlignedSubjects {
			codes = append(codes, subject.SubjectCode)
		}
		sort.Strings(codes)
		if err := xlsx.AppendRow(f, SheetSections, i+2,
			row.GradeLevel,
			row.SectionName,
			row.ClassStatus,
			row.HomeroomTeacherName,
			strings.Join(codes, ", "),
			row.AllocatedHours,
		); err != nil {
			return err
		}
	}
	if err := xlsx.SetWidths(f, SheetSections, map[string]float64{
		"A": 10, "B": 10, "C": 12, "D": 28, "E": 40, "F": 16,
	}); err != nil {
		return err
	}
	return xlsx.FreezeHeader(f, SheetSections)
}
