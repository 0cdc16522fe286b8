// Package auth 提供角色权限判断、密码哈希和登录令牌
package auth

import "strings"

// 角色
const (
	RoleDeveloper     = "Developer"
	RoleAdministrator = "Administrator"
	RoleEditor        = "Editor"
	RoleUser          = "User"
	RoleLimited       = "Limited"
)

// AllRoles 按权限从高到低排列的全部角色
var AllRoles = []string{RoleDeveloper, RoleAdministrator, RoleEditor, RoleUser, RoleLimited}

var roleAliases = map[string]string{
	"developer":     RoleDeveloper,
	"dev":           RoleDeveloper,
	"administrator": RoleAdministrator,
	"admin":         RoleAdministrator,
	"editor":        RoleEditor,
	"user":          RoleUser,
	"limited":       RoleLimited,
	"viewer":        RoleLimited,
	"read-only":     RoleLimited,
	"readonly":      RoleLimited,
}

// NormalizeRole 规范化角色名称，无法识别时返回空字符串
func NormalizeRole(role string) string {
	return roleAliases[strings.ToLower(strings.TrimSpace(role))]
}

func hasRole(role string, allowed ...string) bool {
	normalized := NormalizeRole(role)
	if normalized == "" {
		return false
	}
	for _, r := range allowed {
		if normalized == r {
			return true
		}
	}
	return false
}

// CanModifyData 是否可以新增科目、教师、排课等教务数据
func CanModifyData(role string) bool {
	return hasRole(role, RoleDeveloper, RoleAdministrator, RoleEditor, RoleUser)
}

// CanEditData 是否可以修改教务数据
func CanEditData(role string) bool {
	return hasRole(role, RoleDeveloper, RoleAdministrator, RoleEditor)
}

// CanDeleteData 是否可以删除教务数据
func CanDeleteData(role string) bool {
	return hasRole(role, RoleDeveloper, RoleAdministrator)
}

// CanManageUsers 是否可以进入账号管理
func CanManageUsers(role string) bool {
	return hasRole(role, RoleDeveloper, RoleAdministrator)
}

// CanEditUserAccounts 是否可以修改账号
func CanEditUserAccounts(role string) bool {
	return hasRole(role, RoleDeveloper, RoleAdministrator)
}

// CanDeleteUserAccounts 是否可以删除账号
func CanDeleteUserAccounts(role string) bool {
	return hasRole(role, RoleDeveloper, RoleAdministrator)
}

// CanSwitchBranch 是否可以切换分校范围
func CanSwitchBranch(role string) bool {
	return hasRole(role, RoleDeveloper)
}

// CanSetCurrentYear 是否可以设置当前学年
func CanSetCurrentYear(role string) bool {
	return hasRole(role, RoleDeveloper, RoleAdministrator)
}

// CanOpenAcademicYear 是否可以开设新学年
func CanOpenAcademicYear(role string) bool {
	return hasRole(role, RoleDeveloper)
}

// CanDownloadAuditLog 是否可以下载审计日志
func CanDownloadAuditLog(role string) bool {
	return hasRole(role, RoleDeveloper, RoleAdministrator)
}

// CanManageStorage 是否可以管理对象存储和归档
func CanManageStorage(role string) bool {
	return hasRole(role, RoleDeveloper)
}

// AccountRef 判断账号管理权限时需要的最少信息
type AccountRef struct {
	Role     string
	BranchID uint
}

// CanManageTargetUserAccount 操作者能否管理目标账号
// 开发者可以管理所有账号；管理员只能管理本分校的非开发者账号
func CanManageTargetUserAccount(actor, target AccountRef) bool {
	switch NormalizeRole(actor.Role) {
	case RoleDeveloper:
		return true
	case RoleAdministrator:
		return NormalizeRole(target.Role) != RoleDeveloper && actor.BranchID == target.BranchID
	default:
		return false
	}
}
