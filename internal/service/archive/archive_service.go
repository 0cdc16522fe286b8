// Package archive 定时把滚动后的审计日志上传到对象存储
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/weiwangfds/tis/config"
	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/logger"
	"github.com/weiwangfds/tis/internal/service/storage"
	"gorm.io/gorm"
)

// ErrAlreadyRunning 后台任务已启动
var ErrAlreadyRunning = errors.New("archiver is already running")

const msgDenied = "Only developers can archive audit logs."

// BackupSource 提供已滚动的审计日志文件
type BackupSource interface {
	BackupFiles() ([]string, error)
}

// ArchiveService 审计日志归档服务接口
type ArchiveService interface {
	// Start 启动后台定时归档
	Start(ctx context.Context) error

	// Stop 停止后台任务并等待当前归档结束
	Stop() error

	// Trigger 立即执行一次归档，不要求配置开启自动归档
	Trigger(ctx context.Context, actor *auth.Actor) (*RunResult, error)

	// Logs 最近的归档记录
	Logs(actor *auth.Actor, limit int) ([]database.ArchiveLog, error)
}

// RunResult 一次归档的结果
type RunResult struct {
	ConfigID uint     `json:"storage_config_id"`
	Uploaded []string `json:"uploaded"`
	Skipped  []string `json:"skipped"`
	Failed   []string `json:"failed"`
}

// archiveService 归档服务实现
type archiveService struct {
	db        *gorm.DB
	configs   storage.ConfigService
	source    BackupSource
	interval  time.Duration
	removeOld bool

	runMu     sync.Mutex // 同一时间只执行一次归档
	mu        sync.Mutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
}

// NewArchiveService 创建归档服务实例
func NewArchiveService(db *gorm.DB, configs storage.ConfigService, source BackupSource, cfg config.ArchiveConfig) ArchiveService {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &archiveService{
		db:        db,
		configs:   configs,
		source:    source,
		interval:  interval,
		removeOld: cfg.DeleteAfterUpload,
	}
}

// Start 启动后台任务
func (s *archiveService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrAlreadyRunning
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx, s.stopChan)

	logger.Infof("[归档服务] 归档任务已启动，间隔: %v", s.interval)
	return nil
}

// Stop 停止后台任务
func (s *archiveService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	close(s.stopChan)
	s.wg.Wait()
	s.isRunning = false

	logger.Info("[归档服务] 归档任务已停止")
	return nil
}

func (s *archiveService) loop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if _, err := s.run(ctx, true); err != nil {
				logger.Errorf("[归档服务] 定时归档失败: %v", err)
			}
		}
	}
}

// Trigger 手动归档
func (s *archiveService) Trigger(ctx context.Context, actor *auth.Actor) (*RunResult, error) {
	if !actor.Can(auth.CanManageStorage) {
		return nil, apperrors.Forbidden(msgDenied)
	}
	logger.Infof("[归档服务] 账号 %s 手动触发归档", actor.User.UserID)
	result, err := s.run(ctx, false)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.Wrap(apperrors.ErrArchiveFailed, "Audit log archive failed.", err)
	}
	if result == nil {
		return nil, apperrors.New(apperrors.ErrStorageConfigNotFound, storage.MsgNoActiveConfig)
	}
	return result, nil
}

// Logs 归档记录
func (s *archiveService) Logs(actor *auth.Actor, limit int) ([]database.ArchiveLog, error) {
	if !actor.Can(auth.CanManageStorage) {
		return nil, apperrors.Forbidden(msgDenied)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []database.ArchiveLog
	if err := s.db.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	return logs, nil
}

// run 执行一次归档；scheduled 为真时只处理开启自动归档的配置
// 没有可用配置时返回 nil 结果
func (s *archiveService) run(ctx context.Context, scheduled bool) (*RunResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	cfg, err := s.configs.Active()
	if err != nil {
		return nil, err
	}
	if cfg == nil || (scheduled && !cfg.AutoArchive) {
		return nil, nil
	}

	files, err := s.source.BackupFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to list audit backups: %w", err)
	}
	result := &RunResult{ConfigID: cfg.ID, Uploaded: []string{}, Skipped: []string{}, Failed: []string{}}
	if len(files) == 0 {
		return result, nil
	}

	provider, err := s.configs.ProviderFor(cfg)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		name := filepath.Base(file)
		done, err := s.archived(cfg.ID, name)
		if err != nil {
			return result, err
		}
		if done {
			result.Skipped = append(result.Skipped, name)
			continue
		}
		if err := s.upload(ctx, provider, cfg, file); err != nil {
			logger.Warnf("[归档服务] 上传 %s 失败，下次重试: %v", name, err)
			result.Failed = append(result.Failed, name)
			continue
		}
		result.Uploaded = append(result.Uploaded, name)
	}

	if len(result.Uploaded) > 0 || len(result.Failed) > 0 {
		logger.Infof("[归档服务] 归档完成，配置: %s, 上传: %d, 跳过: %d, 失败: %d",
			cfg.Name, len(result.Uploaded), len(result.Skipped), len(result.Failed))
	}
	return result, nil
}

func (s *archiveService) archived(configID uint, name string) (bool, error) {
	var count int64
	err := s.db.Model(&database.ArchiveLog{}).
		Where("storage_config_id = ? AND file_name = ? AND status = ?", configID, name, database.ArchiveStatusSuccess).
		Count(&count).Error
	return count > 0, err
}

// ObjectKey 备份文件在存储桶中的路径
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".gz") {
		return "application/gzip"
	}
	return "application/x-ndjson"
}

// upload 上传单个文件并记录归档日志
func (s *archiveService) upload(ctx context.Context, provider storage.Provider, cfg *database.StorageConfig, file string) error {
	name := filepath.Base(file)
	entry := &database.ArchiveLog{
		StorageConfigID: cfg.ID,
		FileName:        name,
		ObjectKey:       ObjectKey(cfg.Prefix, name),
		Status:          database.ArchiveStatusPending,
	}
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create archive log: %w", err)
	}

	started := time.Now()
	err := func() error {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		if info, err := f.Stat(); err == nil {
			entry.FileSize = info.Size()
		}
		return provider.Upload(ctx, entry.ObjectKey, f, contentType(name))
	}()

	updates := map[string]interface{}{
		"file_size": entry.FileSize,
		"duration":  time.Since(started).Milliseconds(),
		"status":    database.ArchiveStatusSuccess,
	}
	if err != nil {
		updates["status"] = database.ArchiveStatusFailed
		updates["error_msg"] = err.Error()
	}
	if dbErr := s.db.Model(entry).Updates(updates).Error; dbErr != nil {
		logger.Errorf("[归档服务] 更新归档记录失败: %v", dbErr)
	}
	if err != nil {
		return err
	}

	if s.removeOld {
		if rmErr := os.Remove(file); rmErr != nil {
			logger.Warnf("[归档服务] 删除本地备份 %s 失败: %v", name, rmErr)
		}
	}
	logger.Infof("[归档服务] 已上传 %s -> %s (%d 字节)", name, entry.ObjectKey, entry.FileSize)
	return nil
}
