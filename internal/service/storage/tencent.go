package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tencentyun/cos-go-sdk-v5"
	"github.com/weiwangfds/tis/internal/database"
)

// TencentProvider 腾讯云COS
type TencentProvider struct {
	client *cos.Client
}

// NewTencentProvider 创建腾讯云COS提供商
func NewTencentProvider(cfg *database.StorageConfig) (*TencentProvider, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		bucketURL = cfg.Endpoint
	}
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		},
	})
	return &TencentProvider{client: client}, nil
}

// Upload 上传对象
func (p *TencentProvider) Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) error {
	options := &cos.ObjectPutOptions{}
	if contentType != "" {
		options.ObjectPutHeaderOptions = &cos.ObjectPutHeaderOptions{ContentType: contentType}
	}
	if _, err := p.client.Object.Put(ctx, objectKey, reader, options); err != nil {
		return fmt.Errorf("failed to upload object to tencent cos: %w", err)
	}
	return nil
}

// Exists 检查对象是否存在
func (p *TencentProvider) Exists(ctx context.Context, objectKey string) (bool, error) {
	if _, err := p.client.Object.Head(ctx, objectKey, nil); err != nil {
		if cos.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object in tencent cos: %w", err)
	}
	return true, nil
}

// List 列出对象
func (p *TencentProvider) List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error) {
	result, _, err := p.client.Bucket.Get(ctx, &cos.BucketGetOptions{Prefix: prefix, MaxKeys: maxKeys})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects from tencent cos: %w", err)
	}

	objects := make([]ObjectInfo, 0, len(result.Contents))
	for _, object := range result.Contents {
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         int64(object.Size),
			LastModified: object.LastModified,
			ETag:         strings.Trim(object.ETag, "\""),
		})
	}
	return objects, nil
}

// Delete 删除对象
func (p *TencentProvider) Delete(ctx context.Context, objectKey string) error {
	if _, err := p.client.Object.Delete(ctx, objectKey); err != nil {
		return fmt.Errorf("failed to delete object from tencent cos: %w", err)
	}
	return nil
}

// TestConnection 查询存储桶
func (p *TencentProvider) TestConnection(ctx context.Context) error {
	if _, err := p.client.Bucket.Head(ctx); err != nil {
		return fmt.Errorf("failed to test tencent cos connection: %w", err)
	}
	return nil
}
