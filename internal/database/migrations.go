// Package database 提供数据库迁移和初始化功能
package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/weiwangfds/tis/internal/logger"
	"gorm.io/gorm"
)

// Migrate 执行全部表结构迁移并创建复合索引
func Migrate(db *gorm.DB) error {
	logger.Info("开始执行数据库迁移...")

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}

	if err := createIndexes(db); err != nil {
		return err
	}

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建按分校学年过滤时用到的复合索引
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// 科目按分校学年和年级查询
		"CREATE INDEX IF NOT EXISTS idx_subjects_scope_grade ON subjects(branch_id, academic_year_id, grade)",
		"CREATE INDEX IF NOT EXISTS idx_teachers_scope ON teachers(branch_id, academic_year_id)",
		"CREATE INDEX IF NOT EXISTS idx_users_scope ON users(academic_year_id, branch_id)",
		// 删除科目前检查引用
		"CREATE INDEX IF NOT EXISTS idx_allocations_subject ON teacher_subject_allocations(subject_code)",
		"CREATE INDEX IF NOT EXISTS idx_planning_homeroom ON planning_sections(homeroom_teacher_id)",
		"CREATE INDEX IF NOT EXISTS idx_archive_logs_config_file ON archive_logs(storage_config_id, file_name, status)",
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			logger.Errorf("创建索引失败: %s, 错误: %v", indexSQL, err)
			return err
		}
	}

	return nil
}

// SeedData 首次启动写入的基础数据
type SeedData struct {
	BranchName string
	// YearName 为空时按当前日期推算，如 2025-2026
	YearName        string
	DeveloperUserID string
	// DeveloperPasswordHash 已经过哈希的密码
	DeveloperPasswordHash string
}

// DefaultAcademicYearName 根据日期推算学年名称，8月起算新学年
func DefaultAcademicYearName(now time.Time) string {
	start := now.Year()
	if now.Month() < time.August {
		start--
	}
	return fmt.Sprintf("%d-%d", start, start+1)
}

// Seed 初始化基础数据，可重复执行
// 保证至少有一个启用的分校、一个当前学年和一个开发者账号
func Seed(db *gorm.DB, data SeedData) error {
	logger.Info("开始初始化基础数据...")

	return db.Transaction(func(tx *gorm.DB) error {
		var branch Branch
		if err := tx.Where("status = ?", true).Order("id ASC").First(&branch).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			branch = Branch{Name: data.BranchName, Status: true}
			if branch.Name == "" {
				branch.Name = "Main Branch"
			}
			if err := tx.Create(&branch).Error; err != nil {
				return err
			}
			logger.Infof("创建默认分校: %s", branch.Name)
		}

		var year AcademicYear
		if err := tx.Where("is_active = ?", true).Order("id DESC").First(&year).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			name := data.YearName
			if name == "" {
				name = DefaultAcademicYearName(time.Now())
			}
			if err := tx.Where(AcademicYear{YearName: name}).FirstOrCreate(&year).Error; err != nil {
				return err
			}
			if err := tx.Model(&year).Update("is_active", true).Error; err != nil {
				return err
			}
			logger.Infof("设置当前学年: %s", name)
		}

		var developers int64
		if err := tx.Model(&User{}).Where("role = ?", "Developer").Count(&developers).Error; err != nil {
			return err
		}
		if developers == 0 && data.DeveloperUserID != "" && data.DeveloperPasswordHash != "" {
			userID := strings.ToLower(strings.TrimSpace(data.DeveloperUserID))
			developer := User{
				UserID:         userID,
				Username:       userID,
				FirstName:      "System",
				LastName:       "Developer",
				Password:       data.DeveloperPasswordHash,
				Role:           "Developer",
				BranchID:       branch.ID,
				AcademicYearID: year.ID,
				IsActive:       true,
			}
			if err := tx.Where(User{UserID: userID}).FirstOrCreate(&developer).Error; err != nil {
				return err
			}
			logger.Infof("创建开发者账号: %s", userID)
		}

		logger.Info("基础数据初始化完成")
		return nil
	})
}
