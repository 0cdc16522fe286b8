package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/logger"
	"gorm.io/gorm"
)

// 校验提示
const (
	MsgNameRequired      = "Configuration name is required."
	MsgProviderInvalid   = "Provider must be one of aliyun, tencent or qiniu."
	MsgRegionRequired    = "Region is required."
	MsgBucketRequired    = "Bucket is required."
	MsgAccessKeyRequired = "Access key is required."
	MsgSecretKeyRequired = "Secret key is required."
	MsgNameExists        = "Configuration name already exists."
	MsgConfigNotFound    = "Storage configuration not found."
	MsgDeleteActive      = "The active storage configuration cannot be deleted."
	MsgDisableActive     = "The active storage configuration cannot be disabled."
	MsgNoActiveConfig    = "No active storage configuration."
	msgDenied            = "Only developers can manage storage configurations."
)

// ConfigService 对象存储配置服务接口
type ConfigService interface {
	// Create 创建配置，第一个配置自动激活
	Create(actor *auth.Actor, input *ConfigInput) (*database.StorageConfig, error)

	// Get 根据ID获取配置
	Get(actor *auth.Actor, id uint) (*database.StorageConfig, error)

	// List 全部配置，按创建时间倒序
	List(actor *auth.Actor) ([]database.StorageConfig, error)

	// Update 更新配置，密钥为空时保持不变
	Update(actor *auth.Actor, id uint, input *ConfigInput) (*database.StorageConfig, error)

	// Delete 删除配置，不允许删除激活的配置
	Delete(actor *auth.Actor, id uint) error

	// Activate 激活配置并取消其他配置的激活状态
	Activate(actor *auth.Actor, id uint) error

	// Toggle 启用或禁用配置，不允许禁用激活的配置
	Toggle(actor *auth.Actor, id uint, enabled bool) error

	// Test 测试配置连接
	Test(ctx context.Context, actor *auth.Actor, id uint) error

	// Active 当前激活且启用的配置，没有时返回 nil
	Active() (*database.StorageConfig, error)

	// ProviderFor 为配置创建提供商
	ProviderFor(cfg *database.StorageConfig) (Provider, error)
}

// ConfigInput 配置表单
type ConfigInput struct {
	Name        string `form:"name" json:"name"`
	Provider    string `form:"provider" json:"provider"`
	Region      string `form:"region" json:"region"`
	Bucket      string `form:"bucket" json:"bucket"`
	AccessKey   string `form:"access_key" json:"access_key"`
	SecretKey   string `form:"secret_key" json:"secret_key"`
	Endpoint    string `form:"endpoint" json:"endpoint"`
	Prefix      string `form:"prefix" json:"prefix"`
	AutoArchive bool   `form:"auto_archive" json:"auto_archive"`
	IsActive    bool   `form:"is_active" json:"is_active"`
}

// configService 对象存储配置服务实现
type configService struct {
	db      *gorm.DB
	factory Factory
}

// NewConfigService 创建配置服务实例，factory 为空时使用默认工厂
func NewConfigService(db *gorm.DB, factory Factory) ConfigService {
	if factory == nil {
		factory = NewProvider
	}
	return &configService{db: db, factory: factory}
}

func isSupported(provider string) bool {
	for _, p := range SupportedProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// apply 把表单写入配置，keepSecret 为真且表单密钥为空时保留原密钥
func (in *ConfigInput) apply(cfg *database.StorageConfig, keepSecret bool) {
	cfg.Name = strings.TrimSpace(in.Name)
	cfg.Provider = strings.ToLower(strings.TrimSpace(in.Provider))
	cfg.Region = strings.TrimSpace(in.Region)
	cfg.Bucket = strings.TrimSpace(in.Bucket)
	cfg.AccessKey = strings.TrimSpace(in.AccessKey)
	if secret := strings.TrimSpace(in.SecretKey); secret != "" || !keepSecret {
		cfg.SecretKey = secret
	}
	cfg.Endpoint = strings.TrimSpace(in.Endpoint)
	cfg.Prefix = strings.Trim(strings.TrimSpace(in.Prefix), "/")
	if cfg.Prefix == "" {
		cfg.Prefix = "audit"
	}
	cfg.AutoArchive = in.AutoArchive
}

func (s *configService) validate(cfg *database.StorageConfig) ([]string, error) {
	var errs []string
	if cfg.Name == "" {
		errs = append(errs, MsgNameRequired)
	}
	if !isSupported(cfg.Provider) {
		errs = append(errs, MsgProviderInvalid)
	}
	if cfg.Region == "" {
		errs = append(errs, MsgRegionRequired)
	}
	if cfg.Bucket == "" {
		errs = append(errs, MsgBucketRequired)
	}
	if cfg.AccessKey == "" {
		errs = append(errs, MsgAccessKeyRequired)
	}
	if cfg.SecretKey == "" {
		errs = append(errs, MsgSecretKeyRequired)
	}

	if cfg.Name != "" {
		var count int64
		query := s.db.Model(&database.StorageConfig{}).Where("name = ?", cfg.Name)
		if cfg.ID > 0 {
			query = query.Where("id <> ?", cfg.ID)
		}
		if err := query.Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			errs = append(errs, MsgNameExists)
		}
	}
	return errs, nil
}

func deactivateAll(tx *gorm.DB) error {
	return tx.Model(&database.StorageConfig{}).Where("is_active = ?", true).Update("is_active", false).Error
}

func (s *configService) find(id uint) (*database.StorageConfig, error) {
	var cfg database.StorageConfig
	if err := s.db.First(&cfg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrStorageConfigNotFound, MsgConfigNotFound)
		}
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	return &cfg, nil
}

// Create 创建配置
func (s *configService) Create(actor *auth.Actor, input *ConfigInput) (*database.StorageConfig, error) {
	if !actor.Can(auth.CanManageStorage) {
		return nil, apperrors.Forbidden(msgDenied)
	}

	cfg := &database.StorageConfig{IsEnabled: true, IsActive: input.IsActive}
	input.apply(cfg, false)
	errs, err := s.validate(cfg)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if len(errs) > 0 {
		return nil, apperrors.Validation("", errs...)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.StorageConfig{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			cfg.IsActive = true
		}
		if cfg.IsActive {
			if err := deactivateAll(tx); err != nil {
				return err
			}
		}
		return tx.Create(cfg).Error
	})
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseInsert, err)
	}

	logger.Infof("[存储配置服务] 创建存储配置: %s (提供商: %s, 存储桶: %s, 激活: %v)",
		cfg.Name, cfg.Provider, cfg.Bucket, cfg.IsActive)
	return cfg, nil
}

// Get 获取配置
func (s *configService) Get(actor *auth.Actor, id uint) (*database.StorageConfig, error) {
	if !actor.Can(auth.CanManageStorage) {
		return nil, apperrors.Forbidden(msgDenied)
	}
	return s.find(id)
}

// List 配置列表
func (s *configService) List(actor *auth.Actor) ([]database.StorageConfig, error) {
	if !actor.Can(auth.CanManageStorage) {
		return nil, apperrors.Forbidden(msgDenied)
	}
	var configs []database.StorageConfig
	if err := s.db.Order("created_at DESC").Order("id DESC").Find(&configs).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	return configs, nil
}

// Update 更新配置
func (s *configService) Update(actor *auth.Actor, id uint, input *ConfigInput) (*database.StorageConfig, error) {
	if !actor.Can(auth.CanManageStorage) {
		return nil, apperrors.Forbidden(msgDenied)
	}
	cfg, err := s.find(id)
	if err != nil {
		return nil, err
	}
	wasActive := cfg.IsActive

	input.apply(cfg, true)
	errs, err := s.validate(cfg)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if len(errs) > 0 {
		return nil, apperrors.Validation("", errs...)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if input.IsActive && !wasActive {
			if err := deactivateAll(tx); err != nil {
				return err
			}
			cfg.IsActive = true
			cfg.IsEnabled = true
		}
		return tx.Save(cfg).Error
	})
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseUpdate, err)
	}

	logger.Infof("[存储配置服务] 更新存储配置: %s (ID: %d, 激活: %v)", cfg.Name, cfg.ID, cfg.IsActive)
	return cfg, nil
}

// Delete 删除配置
func (s *configService) Delete(actor *auth.Actor, id uint) error {
	if !actor.Can(auth.CanManageStorage) {
		return apperrors.Forbidden(msgDenied)
	}
	cfg, err := s.find(id)
	if err != nil {
		return err
	}
	if cfg.IsActive {
		return apperrors.New(apperrors.ErrConflict, MsgDeleteActive)
	}
	if err := s.db.Delete(cfg).Error; err != nil {
		return apperrors.Internal(apperrors.ErrDatabaseDelete, err)
	}
	logger.Infof("[存储配置服务] 删除存储配置: %s (ID: %d)", cfg.Name, cfg.ID)
	return nil
}

// Activate 激活配置
func (s *configService) Activate(actor *auth.Actor, id uint) error {
	if !actor.Can(auth.CanManageStorage) {
		return apperrors.Forbidden(msgDenied)
	}
	cfg, err := s.find(id)
	if err != nil {
		return err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := deactivateAll(tx); err != nil {
			return err
		}
		return tx.Model(&database.StorageConfig{}).Where("id = ?", id).
			Updates(map[string]interface{}{"is_active": true, "is_enabled": true}).Error
	})
	if err != nil {
		return apperrors.Internal(apperrors.ErrDatabaseTransaction, err)
	}
	logger.Infof("[存储配置服务] 激活存储配置: %s (ID: %d)", cfg.Name, cfg.ID)
	return nil
}

// Toggle 启用或禁用配置
func (s *configService) Toggle(actor *auth.Actor, id uint, enabled bool) error {
	if !actor.Can(auth.CanManageStorage) {
		return apperrors.Forbidden(msgDenied)
	}
	cfg, err := s.find(id)
	if err != nil {
		return err
	}
	if !enabled && cfg.IsActive {
		return apperrors.New(apperrors.ErrConflict, MsgDisableActive)
	}
	if err := s.db.Model(cfg).Update("is_enabled", enabled).Error; err != nil {
		return apperrors.Internal(apperrors.ErrDatabaseUpdate, err)
	}
	logger.Infof("[存储配置服务] 存储配置 %s 启用状态: %v", cfg.Name, enabled)
	return nil
}

// Test 测试连接
func (s *configService) Test(ctx context.Context, actor *auth.Actor, id uint) error {
	if !actor.Can(auth.CanManageStorage) {
		return apperrors.Forbidden(msgDenied)
	}
	cfg, err := s.find(id)
	if err != nil {
		return err
	}
	provider, err := s.ProviderFor(cfg)
	if err != nil {
		return err
	}
	if err := provider.TestConnection(ctx); err != nil {
		logger.Warnf("[存储配置服务] 存储配置 %s 连接测试失败: %v", cfg.Name, err)
		return apperrors.Wrap(apperrors.ErrStorageConnectionFailed, "Storage connection test failed.", err)
	}
	logger.Infof("[存储配置服务] 存储配置 %s 连接测试成功", cfg.Name)
	return nil
}

// Active 获取激活配置
func (s *configService) Active() (*database.StorageConfig, error) {
	var cfg database.StorageConfig
	if err := s.db.Where("is_active = ? AND is_enabled = ?", true, true).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// ProviderFor 创建提供商
func (s *configService) ProviderFor(cfg *database.StorageConfig) (Provider, error) {
	provider, err := s.factory(cfg)
	if err != nil {
		if errors.Is(err, ErrUnsupportedProvider) {
			return nil, apperrors.New(apperrors.ErrStorageProviderNotSupported, MsgProviderInvalid)
		}
		return nil, apperrors.Wrap(apperrors.ErrStorageConfigInvalid, "Unable to create storage client.", err)
	}
	return provider, nil
}
