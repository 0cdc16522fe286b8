package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	kodo "github.com/qiniu/go-sdk/v7/storage"
	"github.com/weiwangfds/tis/internal/database"
)

// QiniuProvider 七牛云Kodo
type QiniuProvider struct {
	mac    *qbox.Mac
	bucket string
	region *kodo.Region
}

// NewQiniuProvider 创建七牛云Kodo提供商，存储区域由存储桶查询得到
func NewQiniuProvider(cfg *database.StorageConfig) (*QiniuProvider, error) {
	region, err := kodo.GetRegion(cfg.AccessKey, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get qiniu region: %w", err)
	}
	return &QiniuProvider{
		mac:    qbox.NewMac(cfg.AccessKey, cfg.SecretKey),
		bucket: cfg.Bucket,
		region: region,
	}, nil
}

func (p *QiniuProvider) manager() *kodo.BucketManager {
	return kodo.NewBucketManager(p.mac, &kodo.Config{Region: p.region, UseHTTPS: true})
}

// Upload 表单上传
func (p *QiniuProvider) Upload(ctx context.Context, objectKey string, reader io.Reader, contentType string) error {
	policy := kodo.PutPolicy{Scope: fmt.Sprintf("%s:%s", p.bucket, objectKey)}
	uploader := kodo.NewFormUploader(&kodo.Config{Region: p.region, UseHTTPS: true})

	extra := kodo.PutExtra{}
	if contentType != "" {
		extra.MimeType = contentType
	}
	ret := kodo.PutRet{}
	if err := uploader.Put(ctx, &ret, policy.UploadToken(p.mac), objectKey, reader, -1, &extra); err != nil {
		return fmt.Errorf("failed to upload object to qiniu kodo: %w", err)
	}
	return nil
}

// Exists 检查对象是否存在
func (p *QiniuProvider) Exists(ctx context.Context, objectKey string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := p.manager().Stat(p.bucket, objectKey); err != nil {
		if strings.Contains(err.Error(), "no such file or directory") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object in qiniu kodo: %w", err)
	}
	return true, nil
}

// List 列出对象
func (p *QiniuProvider) List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, _, _, _, err := p.manager().ListFiles(p.bucket, prefix, "", "", maxKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects from qiniu kodo: %w", err)
	}

	objects := make([]ObjectInfo, 0, len(entries))
	for _, entry := range entries {
		objects = append(objects, ObjectInfo{
			Key:          entry.Key,
			Size:         entry.Fsize,
			LastModified: time.Unix(entry.PutTime/10000000, 0).UTC().Format(time.RFC3339),
			ETag:         entry.Hash,
		})
	}
	return objects, nil
}

// Delete 删除对象
func (p *QiniuProvider) Delete(ctx context.Context, objectKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.manager().Delete(p.bucket, objectKey); err != nil {
		return fmt.Errorf("failed to delete object from qiniu kodo: %w", err)
	}
	return nil
}

// TestConnection 列出一个对象
func (p *QiniuProvider) TestConnection(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, _, _, err := p.manager().ListFiles(p.bucket, "", "", "", 1); err != nil {
		return fmt.Errorf("failed to test qiniu kodo connection: %w", err)
	}
	return nil
}
