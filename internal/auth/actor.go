package auth

import (
	"errors"
	"fmt"

	"github.com/weiwangfds/tis/internal/database"
	"gorm.io/gorm"
)

// ErrActorNotFound 令牌对应的账号不存在或已停用
var ErrActorNotFound = errors.New("account not found or inactive")

// Actor 当前请求的登录账号及其查看范围
// 非开发者的分校范围总是自己的分校
type Actor struct {
	User                database.User
	ScopeBranchID       uint
	ScopeAcademicYearID uint
}

// Role 规范化后的角色
func (a *Actor) Role() string {
	return NormalizeRole(a.User.Role)
}

// Ref 用于账号管理权限判断
func (a *Actor) Ref() AccountRef {
	return AccountRef{Role: a.User.Role, BranchID: a.User.BranchID}
}

// IsDeveloper 是否为开发者
func (a *Actor) IsDeveloper() bool {
	return a.Role() == RoleDeveloper
}

// Can 在账号启用时执行权限判断
func (a *Actor) Can(check func(role string) bool) bool {
	return a != nil && a.User.IsActive && check(a.User.Role)
}

// CanManage 能否管理目标账号
func (a *Actor) CanManage(target database.User) bool {
	if a == nil || !a.User.IsActive {
		return false
	}
	return CanManageTargetUserAccount(a.Ref(), AccountRef{Role: target.Role, BranchID: target.BranchID})
}

// LoadActor 根据令牌声明加载账号并确定查看范围
// 声明中的范围已失效时回退到账号自己的分校和学年
func LoadActor(db *gorm.DB, claims *Claims) (*Actor, error) {
	var user database.User
	if err := db.Where("user_id = ?", claims.Subject).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActorNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if !user.IsActive {
		return nil, ErrActorNotFound
	}

	actor := &Actor{
		User:                user,
		ScopeBranchID:       user.BranchID,
		ScopeAcademicYearID: user.AcademicYearID,
	}

	if claims.BranchID != 0 && claims.BranchID != user.BranchID && actor.IsDeveloper() {
		var count int64
		if err := db.Model(&database.Branch{}).Where("id = ? AND status = ?", claims.BranchID, true).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check branch scope: %w", err)
		}
		if count > 0 {
			actor.ScopeBranchID = claims.BranchID
		}
	}

	if claims.AcademicYearID != 0 && claims.AcademicYearID != user.AcademicYearID {
		var count int64
		if err := db.Model(&database.AcademicYear{}).Where("id = ?", claims.AcademicYearID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check academic year scope: %w", err)
		}
		if count > 0 {
			actor.ScopeAcademicYearID = claims.AcademicYearID
		}
	}

	return actor, nil
}
