// Package storage 管理对象存储配置并封装各云厂商的上传接口
// 用于把滚动后的审计日志归档到阿里云OSS、腾讯云COS或七牛云Kodo
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/weiwangfds/tis/internal/database"
)

// 支持的提供商
const (
	ProviderAliyun  = "aliyun"
	ProviderTencent = "tencent"
	ProviderQiniu   = "qiniu"
)

// SupportedProviders 支持的提供商列表
var SupportedProviders = []string{ProviderAliyun, ProviderTencent, ProviderQiniu}

// ErrUnsupportedProvider 不支持的提供商
var ErrUnsupportedProvider = errors.New("unsupported storage provider")

// Provider 对象存储提供商接口
type Provider interface {
	// Upload 上传对象
	Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) error

	// Exists 检查对象是否存在
	Exists(ctx context.Context, objectKey string) (bool, error)

	// List 按前缀列出对象
	List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error)

	// Delete 删除对象
	Delete(ctx context.Context, objectKey string) error

	// TestConnection 测试连接
	TestConnection(ctx context.Context) error
}

// ObjectInfo 对象信息
type ObjectInfo struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
	ETag         string `json:"etag"`
}

// Factory 根据配置创建提供商
type Factory func(cfg *database.StorageConfig) (Provider, error)

// NewProvider 默认工厂
func NewProvider(cfg *database.StorageConfig) (Provider, error) {
	switch cfg.Provider {
	case ProviderAliyun:
		return NewAliyunProvider(cfg)
	case ProviderTencent:
		return NewTencentProvider(cfg)
	case ProviderQiniu:
		return NewQiniuProvider(cfg)
	default:
		return nil, ErrUnsupportedProvider
	}
}
