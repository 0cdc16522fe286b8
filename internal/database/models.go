// Package database 定义了数据库相关的模型和结构体
// 包含分校、学年、账号、科目、教师、排课计划等教务数据模型
package database

import "time"

// Branch 分校
type Branch struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	Name     string `gorm:"not null;size:100" json:"name"`
	Location string `gorm:"size:200" json:"location"`
	Status   bool   `gorm:"not null" json:"status"` // 是否启用
}

// TableName 指定表名
func (Branch) TableName() string {
	return "branches"
}

// AcademicYear 学年，系统中同一时间只有一个当前学年
type AcademicYear struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	YearName string `gorm:"not null;size:20;uniqueIndex" json:"year_name"` // 如 2025-2026
	IsActive bool   `gorm:"not null;index" json:"is_active"`
}

// TableName 指定表名
func (AcademicYear) TableName() string {
	return "academic_years"
}

// User 系统账号
type User struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	UserID         string    `gorm:"not null;size:30;uniqueIndex" json:"user_id"`  // 登录账号，小写
	Username       string    `gorm:"not null;size:30;uniqueIndex" json:"username"` // 与 UserID 保持一致
	FirstName      string    `gorm:"size:100" json:"first_name"`
	LastName       string    `gorm:"size:100" json:"last_name"`
	Position       string    `gorm:"size:50" json:"position"`
	Password       string    `gorm:"not null;size:255" json:"-"`
	Role           string    `gorm:"not null;size:20" json:"role"`
	BranchID       uint      `gorm:"not null" json:"branch_id"`
	AcademicYearID uint      `gorm:"not null" json:"academic_year_id"`
	IsActive       bool      `gorm:"not null" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// Subject 科目，编码全局唯一；Grade 为 0 表示幼儿园
type Subject struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	SubjectCode    string    `gorm:"not null;size:20;uniqueIndex" json:"subject_code"`
	SubjectName    string    `gorm:"not null;size:100" json:"subject_name"`
	WeeklyHours    int       `gorm:"not null" json:"weekly_hours"`
	Grade          int       `gorm:"not null" json:"grade"`
	BranchID       uint      `gorm:"not null" json:"branch_id"`
	AcademicYearID uint      `gorm:"not null" json:"academic_year_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Subject) TableName() string {
	return "subjects"
}

// Teacher 教师
// TeacherID 为身份证/居留证号；SubjectCode 保存第一个分配科目
type Teacher struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	TeacherID         string    `gorm:"not null;size:10;uniqueIndex" json:"teacher_id"`
	FirstName         string    `gorm:"not null;size:100" json:"first_name"`
	MiddleName        *string   `gorm:"size:100" json:"middle_name"`
	LastName          string    `gorm:"not null;size:100" json:"last_name"`
	SubjectCode       string    `gorm:"size:20" json:"subject_code"`
	Level             string    `gorm:"size:30" json:"level"`
	MaxHours          int       `gorm:"not null;default:24" json:"max_hours"`
	ExtraHoursAllowed bool      `gorm:"not null" json:"extra_hours_allowed"`
	ExtraHoursCount   int       `gorm:"not null" json:"extra_hours_count"`
	BranchID          uint      `gorm:"not null" json:"branch_id"`
	AcademicYearID    uint      `gorm:"not null" json:"academic_year_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Teacher) TableName() string {
	return "teachers"
}

// FullName 返回包含中间名的全名
func (t Teacher) FullName() string {
	name := t.FirstName
	if t.MiddleName != nil && *t.MiddleName != "" {
		name += " " + *t.MiddleName
	}
	if t.LastName != "" {
		name += " " + t.LastName
	}
	return name
}

// TeacherSubjectAllocation 教师与科目的分配关系
// TeacherID 指向 teachers.id 而不是教师证件号
type TeacherSubjectAllocation struct {
	ID          uint   `gorm:"primarykey" json:"id"`
	TeacherID   uint   `gorm:"not null;uniqueIndex:idx_allocation_teacher_subject" json:"teacher_id"`
	SubjectCode string `gorm:"not null;size:20;uniqueIndex:idx_allocation_teacher_subject" json:"subject_code"`
}

// TableName 指定表名
func (TeacherSubjectAllocation) TableName() string {
	return "teacher_subject_allocations"
}

// PlanningSection 排课计划中的年级班级
// 同一分校学年内 年级+班级 唯一
type PlanningSection struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	GradeLevel        string    `gorm:"not null;size:5;uniqueIndex:idx_planning_scope_section" json:"grade_level"`   // KG 或 1..12
	SectionName       string    `gorm:"not null;size:5;uniqueIndex:idx_planning_scope_section" json:"section_name"`  // A..L
	ClassStatus       string    `gorm:"not null;size:10" json:"class_status"`                                        // Current / New
	HomeroomTeacherID *uint     `json:"homeroom_teacher_id"`
	BranchID          uint      `gorm:"not null;uniqueIndex:idx_planning_scope_section" json:"branch_id"`
	AcademicYearID    uint      `gorm:"not null;uniqueIndex:idx_planning_scope_section" json:"academic_year_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName 指定表名
func (PlanningSection) TableName() string {
	return "planning_sections"
}

// AllModels 返回需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&Branch{},
		&AcademicYear{},
		&User{},
		&Subject{},
		&Teacher{},
		&TeacherSubjectAllocation{},
		&PlanningSection{},
		&StorageConfig{},
		&ArchiveLog{},
	}
}
