// Package testutil 测试用的数据库和账号夹具
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 创建已迁移的内存数据库
// 内存库只能有一个连接，否则每个连接各自是一份空库
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Fixture 基础数据：两个分校、两个学年（第二个为当前学年）
type Fixture struct {
	DB         *gorm.DB
	Branch     database.Branch
	Branch2    database.Branch
	PastYear   database.AcademicYear
	ActiveYear database.AcademicYear
}

// NewFixture 创建数据库并写入基础数据
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	db := NewDB(t)
	f := &Fixture{
		DB:         db,
		Branch:     database.Branch{Name: "Main Branch", Status: true},
		Branch2:    database.Branch{Name: "North Branch", Status: true},
		PastYear:   database.AcademicYear{YearName: "2024-2025"},
		ActiveYear: database.AcademicYear{YearName: "2025-2026", IsActive: true},
	}
	require.NoError(t, db.Create(&f.Branch).Error)
	require.NoError(t, db.Create(&f.Branch2).Error)
	require.NoError(t, db.Create(&f.PastYear).Error)
	require.NoError(t, db.Create(&f.ActiveYear).Error)
	return f
}

// CreateUser 在主分校当前学年创建一个启用的账号
func (f *Fixture) CreateUser(t *testing.T, userID, role string) database.User {
	t.Helper()
	hash, err := auth.HashPassword("Secret123")
	require.NoError(t, err)
	user := database.User{
		UserID:         userID,
		Username:       userID,
		FirstName:      "Test",
		LastName:       "User",
		Password:       hash,
		Role:           role,
		BranchID:       f.Branch.ID,
		AcademicYearID: f.ActiveYear.ID,
		IsActive:       true,
	}
	require.NoError(t, f.DB.Create(&user).Error)
	return user
}

// Actor 创建账号并返回以其默认范围登录的 Actor
func (f *Fixture) Actor(t *testing.T, userID, role string) *auth.Actor {
	t.Helper()
	user := f.CreateUser(t, userID, role)
	return &auth.Actor{
		User:                user,
		ScopeBranchID:       user.BranchID,
		ScopeAcademicYearID: user.AcademicYearID,
	}
}

// CreateSubject 在 actor 的范围内创建科目
func (f *Fixture) CreateSubject(t *testing.T, actor *auth.Actor, code string, hours, grade int) database.Subject {
	t.Helper()
	subject := database.Subject{
		SubjectCode:    code,
		SubjectName:    "Subject " + code,
		WeeklyHours:    hours,
		Grade:          grade,
		BranchID:       actor.ScopeBranchID,
		AcademicYearID: actor.ScopeAcademicYearID,
	}
	require.NoError(t, f.DB.Create(&subject).Error)
	return subject
}

// CreateTeacher 在 actor 的范围内创建教师并分配科目
func (f *Fixture) CreateTeacher(t *testing.T, actor *auth.Actor, teacherID string, maxHours int, codes ...string) database.Teacher {
	t.Helper()
	teacher := database.Teacher{
		TeacherID:      teacherID,
		FirstName:      "Teacher",
		LastName:       teacherID,
		Level:          "Grade 1",
		MaxHours:       maxHours,
		BranchID:       actor.ScopeBranchID,
		AcademicYearID: actor.ScopeAcademicYearID,
	}
	if len(codes) > 0 {
		teacher.SubjectCode = codes[0]
	}
	require.NoError(t, f.DB.Create(&teacher).Error)
	for _, code := range codes {
		require.NoError(t, f.DB.Create(&database.TeacherSubjectAllocation{TeacherID: teacher.ID, SubjectCode: code}).Error)
	}
	return teacher
}
