package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/testutil"
)

type stubProvider struct {
	testErr error
}

func (p *stubProvider) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	return nil
}
func (p *stubProvider) Exists(ctx context.Context, key string) (bool, error) { return false, nil }
func (p *stubProvider) List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error) {
	return nil, nil
}
func (p *stubProvider) Delete(ctx context.Context, key string) error { return nil }
func (p *stubProvider) TestConnection(ctx context.Context) error    { return p.testErr }

func input(name string) *ConfigInput {
	return &ConfigInput{
		Name:      name,
		Provider:  " Aliyun ",
		Region:    "cn-hangzhou",
		Bucket:    "audit-bucket",
		AccessKey: "ak",
		SecretKey: "sk",
		Prefix:    "/tis/audit/",
	}
}

func TestConfigLifecycle(t *testing.T) {
	f := testutil.NewFixture(t)
	stub := &stubProvider{}
	svc := NewConfigService(f.DB, func(cfg *database.StorageConfig) (Provider, error) {
		if !isSupported(cfg.Provider) {
			return nil, ErrUnsupportedProvider
		}
		return stub, nil
	})
	dev := f.Actor(t, "dev", auth.RoleDeveloper)

	t.Run("只有开发者可以管理", func(t *testing.T) {
		admin := f.Actor(t, "admin", auth.RoleAdministrator)
		_, err := svc.List(admin)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
	})

	t.Run("校验", func(t *testing.T) {
		_, err := svc.Create(dev, &ConfigInput{Provider: "s3"})
		appErr, ok := apperrors.GetAppError(err)
		require.True(t, ok)
		assert.Equal(t, []string{
			MsgNameRequired, MsgProviderInvalid, MsgRegionRequired,
			MsgBucketRequired, MsgAccessKeyRequired, MsgSecretKeyRequired,
		}, appErr.Errors)
	})

	first, err := svc.Create(dev, input("primary"))
	require.NoError(t, err)
	second, err := svc.Create(dev, input("backup"))
	require.NoError(t, err)

	t.Run("第一个配置自动激活", func(t *testing.T) {
		assert.True(t, first.IsActive)
		assert.False(t, second.IsActive)
		assert.Equal(t, ProviderAliyun, first.Provider)
		assert.Equal(t, "tis/audit", first.Prefix)

		_, err := svc.Create(dev, input("primary"))
		appErr, _ := apperrors.GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, []string{MsgNameExists}, appErr.Errors)
	})

	t.Run("激活配置不能删除或禁用", func(t *testing.T) {
		assert.True(t, apperrors.HasCode(svc.Delete(dev, first.ID), apperrors.ErrConflict))
		assert.True(t, apperrors.HasCode(svc.Toggle(dev, first.ID, false), apperrors.ErrConflict))
	})

	t.Run("切换激活", func(t *testing.T) {
		require.NoError(t, svc.Activate(dev, second.ID))
		active, err := svc.Active()
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, second.ID, active.ID)

		require.NoError(t, svc.Toggle(dev, first.ID, false))
		require.NoError(t, svc.Delete(dev, first.ID))
		_, err = svc.Get(dev, first.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrStorageConfigNotFound))
	})

	t.Run("更新时保留密钥", func(t *testing.T) {
		in := input("backup")
		in.SecretKey = ""
		in.AutoArchive = true
		updated, err := svc.Update(dev, second.ID, in)
		require.NoError(t, err)
		assert.Equal(t, "sk", updated.SecretKey)
		assert.True(t, updated.AutoArchive)
	})

	t.Run("连接测试", func(t *testing.T) {
		require.NoError(t, svc.Test(context.Background(), dev, second.ID))
		stub.testErr = errors.New("denied")
		err := svc.Test(context.Background(), dev, second.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrStorageConnectionFailed))
	})
}

func TestNewProviderRejectsUnknown(t *testing.T) {
	_, err := NewProvider(&database.StorageConfig{Provider: "s3"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}
