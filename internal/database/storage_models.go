// Package database 定义了对象存储相关的数据库模型
// 包含存储配置和审计日志归档记录
package database

import (
	"time"

	"gorm.io/gorm"
)

// StorageConfig 对象存储服务配置模型
// 用于把滚动后的审计日志归档到阿里云、腾讯云或七牛云
type StorageConfig struct {
	ID          uint           `gorm:"primarykey" json:"id"`                     // 主键ID，自增
	Name        string         `gorm:"not null;size:100" json:"name"`            // 配置名称
	Provider    string         `gorm:"not null;size:20" json:"provider"`         // 提供商：aliyun、tencent、qiniu
	Region      string         `gorm:"not null;size:50" json:"region"`           // 服务区域，如：cn-hangzhou、ap-beijing
	Bucket      string         `gorm:"not null;size:100" json:"bucket"`          // 存储桶名称
	AccessKey   string         `gorm:"not null;size:100" json:"access_key"`      // 访问密钥ID
	SecretKey   string         `gorm:"not null;size:200" json:"-"`               // 访问密钥Secret，不在响应中返回
	Endpoint    string         `gorm:"size:200" json:"endpoint"`                 // 自定义服务端点，可选
	IsActive    bool           `gorm:"not null" json:"is_active"`                // 是否为当前使用的配置，只能有一个
	IsEnabled   bool           `gorm:"not null" json:"is_enabled"`               // 是否启用
	AutoArchive bool           `gorm:"not null" json:"auto_archive"`             // 是否由后台任务自动归档
	Prefix      string         `gorm:"size:200;default:'audit'" json:"prefix"`   // 对象键前缀
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName 指定StorageConfig模型对应的数据库表名
func (StorageConfig) TableName() string {
	return "storage_configs"
}

// 归档状态
const (
	ArchiveStatusPending = "pending"
	ArchiveStatusSuccess = "success"
	ArchiveStatusFailed  = "failed"
)

// ArchiveLog 审计日志归档记录
// 每次上传尝试一条，成功记录用于避免重复上传
type ArchiveLog struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	StorageConfigID uint      `gorm:"not null" json:"storage_config_id"`
	FileName        string    `gorm:"not null;size:255" json:"file_name"` // 本地备份文件名
	ObjectKey       string    `gorm:"size:500" json:"object_key"`         // 对象存储中的完整路径
	Status          string    `gorm:"not null;size:20" json:"status"`     // pending、success、failed
	FileSize        int64     `json:"file_size"`                          // 字节
	Duration        int64     `json:"duration"`                           // 毫秒
	ErrorMsg        string    `gorm:"type:text" json:"error_msg"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName 指定ArchiveLog模型对应的数据库表名
func (ArchiveLog) TableName() string {
	return "archive_logs"
}
