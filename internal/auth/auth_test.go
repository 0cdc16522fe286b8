package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/tis/internal/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleDeveloper, NormalizeRole(" developer "))
	assert.Equal(t, RoleAdministrator, NormalizeRole("ADMIN"))
	assert.Equal(t, RoleLimited, NormalizeRole("read-only"))
	assert.Equal(t, "", NormalizeRole("superuser"))
}

func TestPermissions(t *testing.T) {
	cases := []struct {
		role                        string
		modify, edit, delete, users bool
	}{
		{RoleDeveloper, true, true, true, true},
		{RoleAdministrator, true, true, true, true},
		{RoleEditor, true, true, false, false},
		{RoleUser, true, false, false, false},
		{RoleLimited, false, false, false, false},
		{"unknown", false, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			assert.Equal(t, tc.modify, CanModifyData(tc.role))
			assert.Equal(t, tc.edit, CanEditData(tc.role))
			assert.Equal(t, tc.delete, CanDeleteData(tc.role))
			assert.Equal(t, tc.users, CanManageUsers(tc.role))
		})
	}

	assert.True(t, CanSwitchBranch(RoleDeveloper))
	assert.False(t, CanSwitchBranch(RoleAdministrator))
	assert.True(t, CanSetCurrentYear(RoleAdministrator))
	assert.False(t, CanOpenAcademicYear(RoleAdministrator))
	assert.False(t, CanDownloadAuditLog(RoleEditor))
}

func TestCanManageTargetUserAccount(t *testing.T) {
	dev := AccountRef{Role: RoleDeveloper, BranchID: 1}
	admin := AccountRef{Role: RoleAdministrator, BranchID: 1}
	editor := AccountRef{Role: RoleEditor, BranchID: 1}

	assert.True(t, CanManageTargetUserAccount(dev, AccountRef{Role: RoleDeveloper, BranchID: 2}))
	assert.True(t, CanManageTargetUserAccount(admin, AccountRef{Role: RoleUser, BranchID: 1}))
	assert.False(t, CanManageTargetUserAccount(admin, AccountRef{Role: RoleUser, BranchID: 2}))
	assert.False(t, CanManageTargetUserAccount(admin, AccountRef{Role: RoleDeveloper, BranchID: 1}))
	assert.False(t, CanManageTargetUserAccount(editor, AccountRef{Role: RoleLimited, BranchID: 1}))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("Secret123")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("Secret123", hash))
	assert.False(t, VerifyPassword("secret123", hash))
	assert.False(t, NeedsRehash(hash))

	sum := sha256.Sum256([]byte("legacy-pass"))
	legacy := hex.EncodeToString(sum[:])
	assert.True(t, VerifyPassword("legacy-pass", legacy))
	assert.False(t, VerifyPassword("other", legacy))
	assert.True(t, NeedsRehash(legacy))
	assert.False(t, VerifyPassword("anything", ""))
}

func TestTokenManager(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, expiresAt, err := m.Issue("alice", 2, 3)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, uint(2), claims.BranchID)
	assert.Equal(t, uint(3), claims.AcademicYearID)

	_, err = NewTokenManager("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue("alice", 0, 0)
	require.NoError(t, err)
	_, err = m.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func setupActorDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	require.NoError(t, db.Create(&database.Branch{ID: 1, Name: "Main", Status: true}).Error)
	require.NoError(t, db.Create(&database.Branch{ID: 2, Name: "North", Status: true}).Error)
	require.NoError(t, db.Create(&database.AcademicYear{ID: 1, YearName: "2024-2025"}).Error)
	require.NoError(t, db.Create(&database.AcademicYear{ID: 2, YearName: "2025-2026", IsActive: true}).Error)
	return db
}

func TestLoadActor(t *testing.T) {
	db := setupActorDB(t)
	users := []database.User{
		{UserID: "dev", Username: "dev", Password: "x", Role: RoleDeveloper, BranchID: 1, AcademicYearID: 2, IsActive: true},
		{UserID: "admin", Username: "admin", Password: "x", Role: RoleAdministrator, BranchID: 1, AcademicYearID: 2, IsActive: true},
		{UserID: "gone", Username: "gone", Password: "x", Role: RoleUser, BranchID: 1, AcademicYearID: 2, IsActive: false},
	}
	require.NoError(t, db.Create(&users).Error)

	t.Run("开发者可切换分校", func(t *testing.T) {
		actor, err := LoadActor(db, &Claims{BranchID: 2, AcademicYearID: 1, RegisteredClaims: subject("dev")})
		require.NoError(t, err)
		assert.Equal(t, uint(2), actor.ScopeBranchID)
		assert.Equal(t, uint(1), actor.ScopeAcademicYearID)
	})

	t.Run("管理员分校范围固定", func(t *testing.T) {
		actor, err := LoadActor(db, &Claims{BranchID: 2, AcademicYearID: 1, RegisteredClaims: subject("admin")})
		require.NoError(t, err)
		assert.Equal(t, uint(1), actor.ScopeBranchID)
		assert.Equal(t, uint(1), actor.ScopeAcademicYearID)
	})

	t.Run("失效学年回退", func(t *testing.T) {
		actor, err := LoadActor(db, &Claims{AcademicYearID: 99, RegisteredClaims: subject("admin")})
		require.NoError(t, err)
		assert.Equal(t, uint(2), actor.ScopeAcademicYearID)
	})

	t.Run("停用或不存在的账号", func(t *testing.T) {
		_, err := LoadActor(db, &Claims{RegisteredClaims: subject("gone")})
		assert.ErrorIs(t, err, ErrActorNotFound)
		_, err = LoadActor(db, &Claims{RegisteredClaims: subject("nobody")})
		assert.ErrorIs(t, err, ErrActorNotFound)
	})
}

func subject(userID string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: userID}
}
