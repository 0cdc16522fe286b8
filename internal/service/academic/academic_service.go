// Package academic 提供分校、学年、查看范围与首页统计服务
package academic

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/logger"
	"github.com/weiwangfds/tis/internal/service/planning"
	"github.com/weiwangfds/tis/internal/service/teacher"
	"gorm.io/gorm"
)

var yearNamePattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

// 提示信息
const (
	MsgBranchUnavailable = "Selected branch is not available."
	MsgYearNotFound      = "Selected academic year was not found."
	MsgYearNameFormat    = "Academic year must use the format YYYY-YYYY with consecutive years, for example 2026-2027."
	MsgYearExists        = "Academic year already exists."
	msgSwitchDenied      = "Only developers can switch branches."
	msgCurrentDenied     = "Your role cannot change the current academic year."
	msgOpenDenied        = "Only developers can open a new academic year."
)

// AcademicService 分校与学年服务接口
type AcademicService interface {
	// Branches 分校列表，非开发者只能看到自己的分校
	Branches(actor *auth.Actor) ([]database.Branch, error)

	// Years 全部学年，按名称倒序
	Years() ([]database.AcademicYear, error)

	// CurrentYear 当前学年
	CurrentYear() (*database.AcademicYear, error)

	// SwitchBranch 校验目标分校，返回新的查看范围
	SwitchBranch(actor *auth.Actor, branchID uint) (*Scope, error)

	// SwitchYear 校验目标学年，返回新的查看范围
	SwitchYear(actor *auth.Actor, academicYearID uint) (*Scope, error)

	// SetCurrentYear 将指定学年设为唯一的当前学年
	SetCurrentYear(actor *auth.Actor, academicYearID uint) (*database.AcademicYear, error)

	// OpenYear 开设新学年
	OpenYear(actor *auth.Actor, yearName string, activate bool) (*database.AcademicYear, error)

	// Dashboard 当前范围的统计数据
	Dashboard(actor *auth.Actor) (*Dashboard, error)
}

// Scope 查看范围
type Scope struct {
	BranchID       uint `json:"branch_id"`
	AcademicYearID uint `json:"academic_year_id"`
}

// Dashboard 首页统计
type Dashboard struct {
	BranchName                string `json:"branch_name"`
	AcademicYearName          string `json:"academic_year_name"`
	SubjectsCount             int64  `json:"subjects_count"`
	TeachersCount             int64  `json:"teachers_count"`
	UsersCount                int64  `json:"users_count"`
	PlanningSectionsCount     int64  `json:"planning_sections_count"`
	CurrentSectionsCount      int64  `json:"current_sections_count"`
	NewSectionsCount          int64  `json:"new_sections_count"`
	TotalSubjectHours         int    `json:"total_subject_hours"`
	TotalAllocatedHours       int    `json:"total_allocated_hours"`
	TeachersFullyAllocated    int    `json:"teachers_fully_allocated"`
	TeachersNotFullyAllocated int    `json:"teachers_not_fully_allocated"`
}

// academicService 分校与学年服务实现
type academicService struct {
	db *gorm.DB
}

// NewAcademicService 创建分校与学年服务实例
func NewAcademicService(db *gorm.DB) AcademicService {
	return &academicService{db: db}
}

// ValidYearName 校验学年名称，第二年必须为第一年加一
func ValidYearName(name string) bool {
	m := yearNamePattern.FindStringSubmatch(name)
	if m == nil {
		return false
	}
	first, _ := strconv.Atoi(m[1])
	second, _ := strconv.Atoi(m[2])
	return second == first+1
}

// Branches 获取分校列表
func (s *academicService) Branches(actor *auth.Actor) ([]database.Branch, error) {
	var branches []database.Branch
	query := s.db.Order("name ASC")
	if !actor.IsDeveloper() {
		query = query.Where("id = ?", actor.User.BranchID)
	}
	if err := query.Find(&branches).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	return branches, nil
}

// Years 获取学年列表
func (s *academicService) Years() ([]database.AcademicYear, error) {
	var years []database.AcademicYear
	if err := s.db.Order("year_name DESC").Find(&years).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	return years, nil
}

// CurrentYear 获取当前学年
func (s *academicService) CurrentYear() (*database.AcademicYear, error) {
	var year database.AcademicYear
	if err := s.db.Where("is_active = ?", true).Order("id DESC").First(&year).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNoActiveYear, "No active academic year found. Set current year first.")
		}
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	return &year, nil
}

// SwitchBranch 切换分校
func (s *academicService) SwitchBranch(actor *auth.Actor, branchID uint) (*Scope, error) {
	if !actor.Can(auth.CanSwitchBranch) {
		return nil, apperrors.Forbidden(msgSwitchDenied)
	}
	var count int64
	if err := s.db.Model(&database.Branch{}).Where("id = ? AND status = ?", branchID, true).Count(&count).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if count == 0 {
		return nil, apperrors.New(apperrors.ErrScopeInvalid, MsgBranchUnavailable)
	}
	logger.Infof("[学年服务] 账号 %s 切换分校到 %d", actor.User.UserID, branchID)
	return &Scope{BranchID: branchID, AcademicYearID: actor.ScopeAcademicYearID}, nil
}

func (s *academicService) findYear(db *gorm.DB, id uint) (*database.AcademicYear, error) {
	var year database.AcademicYear
	if err := db.Where("id = ?", id).First(&year).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrScopeInvalid, MsgYearNotFound)
		}
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	return &year, nil
}

// SwitchYear 切换查看的学年
func (s *academicService) SwitchYear(actor *auth.Actor, academicYearID uint) (*Scope, error) {
	year, err := s.findYear(s.db, academicYearID)
	if err != nil {
		return nil, err
	}
	logger.Infof("[学年服务] 账号 %s 切换学年到 %s", actor.User.UserID, year.YearName)
	return &Scope{BranchID: actor.ScopeBranchID, AcademicYearID: year.ID}, nil
}

// SetCurrentYear 设置当前学年
func (s *academicService) SetCurrentYear(actor *auth.Actor, academicYearID uint) (*database.AcademicYear, error) {
	if !actor.Can(auth.CanSetCurrentYear) {
		return nil, apperrors.Forbidden(msgCurrentDenied)
	}

	var year *database.AcademicYear
	err := s.db.Transaction(func(tx *gorm.DB) error {
		found, err := s.findYear(tx, academicYearID)
		if err != nil {
			return err
		}
		if err := activateOnly(tx, found.ID); err != nil {
			return apperrors.Internal(apperrors.ErrDatabaseTransaction, err)
		}
		found.IsActive = true
		year = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("[学年服务] 账号 %s 设置当前学年为 %s", actor.User.UserID, year.YearName)
	return year, nil
}

// activateOnly 只保留一个当前学年
func activateOnly(tx *gorm.DB, id uint) error {
	if err := tx.Model(&database.AcademicYear{}).Where("id <> ?", id).Update("is_active", false).Error; err != nil {
		return err
	}
	return tx.Model(&database.AcademicYear{}).Where("id = ?", id).Update("is_active", true).Error
}

// OpenYear 开设新学年
func (s *academicService) OpenYear(actor *auth.Actor, yearName string, activate bool) (*database.AcademicYear, error) {
	if !actor.Can(auth.CanOpenAcademicYear) {
		return nil, apperrors.Forbidden(msgOpenDenied)
	}
	yearName = strings.TrimSpace(yearName)
	if !ValidYearName(yearName) {
		return nil, apperrors.Validation(MsgYearNameFormat, MsgYearNameFormat)
	}

	year := &database.AcademicYear{YearName: yearName}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.AcademicYear{}).Where("year_name = ?", yearName).Count(&count).Error; err != nil {
			return apperrors.Internal(apperrors.ErrDatabaseQuery, err)
		}
		if count > 0 {
			return apperrors.New(apperrors.ErrRecordAlreadyExists, MsgYearExists)
		}
		if err := tx.Create(year).Error; err != nil {
			return apperrors.Internal(apperrors.ErrDatabaseInsert, err)
		}
		if activate {
			if err := activateOnly(tx, year.ID); err != nil {
				return apperrors.Internal(apperrors.ErrDatabaseTransaction, err)
			}
			year.IsActive = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("[学年服务] 账号 %s 开设学年 %s (当前: %v)", actor.User.UserID, yearName, activate)
	return year, nil
}

// Dashboard 首页统计
func (s *academicService) Dashboard(actor *auth.Actor) (*Dashboard, error) {
	scoped := func(model interface{}) *gorm.DB {
		return s.db.Model(model).Where("branch_id = ? AND academic_year_id = ?", actor.ScopeBranchID, actor.ScopeAcademicYearID)
	}

	d := &Dashboard{}
	var branch database.Branch
	if err := s.db.Where("id = ?", actor.ScopeBranchID).Limit(1).Find(&branch).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	d.BranchName = branch.Name
	var year database.AcademicYear
	if err := s.db.Where("id = ?", actor.ScopeAcademicYearID).Limit(1).Find(&year).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	d.AcademicYearName = year.YearName

	counts := []struct {
		model interface{}
		extra string
		arg   interface{}
		dest  *int64
	}{
		{&database.Subject{}, "", nil, &d.SubjectsCount},
		{&database.Teacher{}, "", nil, &d.TeachersCount},
		{&database.User{}, "", nil, &d.UsersCount},
		{&database.PlanningSection{}, "", nil, &d.PlanningSectionsCount},
		{&database.PlanningSection{}, "class_status = ?", planning.StatusCurrent, &d.CurrentSectionsCount},
		{&database.PlanningSection{}, "class_status = ?", planning.StatusNew, &d.NewSectionsCount},
	}
	for _, c := range counts {
		query := scoped(c.model)
		if c.extra != "" {
			query = query.Where(c.extra, c.arg)
		}
		if err := query.Count(c.dest).Error; err != nil {
			return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
		}
	}

	var subjectHours struct{ Total int }
	if err := scoped(&database.Subject{}).Select("COALESCE(SUM(weekly_hours), 0) AS total").Scan(&subjectHours).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	d.TotalSubjectHours = subjectHours.Total

	var teachers []database.Teacher
	if err := scoped(&database.Teacher{}).Find(&teachers).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	allocations, err := teacher.AllocationMap(s.db, teachers)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	for _, a := range allocations {
		d.TotalAllocatedHours += a.AllocatedHours
		if a.MatchesMaxHours {
			d.TeachersFullyAllocated++
		} else {
			d.TeachersNotFullyAllocated++
		}
	}
	return d, nil
}
