package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/weiwangfds/tis/internal/database"
)

// AliyunProvider 阿里云OSS
type AliyunProvider struct {
	client *oss.Client
	bucket *oss.Bucket
	name   string
}

// NewAliyunProvider 创建阿里云OSS提供商
func NewAliyunProvider(cfg *database.StorageConfig) (*AliyunProvider, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", cfg.Region)
	}

	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}
	return &AliyunProvider{client: client, bucket: bucket, name: cfg.Bucket}, nil
}

// Upload 上传对象
func (p *AliyunProvider) Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var options []oss.Option
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}
	if err := p.bucket.PutObject(objectKey, reader, options...); err != nil {
		return fmt.Errorf("failed to upload object to aliyun oss: %w", err)
	}
	return nil
}

// Exists 检查对象是否存在
func (p *AliyunProvider) Exists(ctx context.Context, objectKey string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	exists, err := p.bucket.IsObjectExist(objectKey)
	if err != nil {
		return false, fmt.Errorf("failed to check object in aliyun oss: %w", err)
	}
	return exists, nil
}

// List 列出对象
func (p *AliyunProvider) List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := p.bucket.ListObjects(oss.Prefix(prefix), oss.MaxKeys(maxKeys))
	if err != nil {
		return nil, fmt.Errorf("failed to list objects from aliyun oss: %w", err)
	}

	objects := make([]ObjectInfo, 0, len(result.Objects))
	for _, object := range result.Objects {
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified.Format(time.RFC3339),
			ETag:         strings.Trim(object.ETag, "\""),
		})
	}
	return objects, nil
}

// Delete 删除对象
func (p *AliyunProvider) Delete(ctx context.Context, objectKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.bucket.DeleteObject(objectKey); err != nil {
		return fmt.Errorf("failed to delete object from aliyun oss: %w", err)
	}
	return nil
}

// TestConnection 读取存储桶信息
func (p *AliyunProvider) TestConnection(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.client.GetBucketInfo(p.name); err != nil {
		return fmt.Errorf("failed to test aliyun oss connection: %w", err)
	}
	return nil
}
