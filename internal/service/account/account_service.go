// Package account 提供登录和系统账号管理服务
package account

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/weiwangfds/tis/internal/auth"
	"github.com/weiwangfds/tis/internal/database"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/logger"
	"github.com/weiwangfds/tis/internal/textutil"
	"gorm.io/gorm"
)

// 职位
var Positions = []string{
	"Academic Supervisor",
	"Principle",
	"Education Excellence",
}

var positionAliases = map[string]string{
	"Principal":           "Principle",
	"Education Excelency": "Education Excellence",
}

var allRoles = []string{
	auth.RoleDeveloper,
	auth.RoleAdministrator,
	auth.RoleEditor,
	auth.RoleUser,
	auth.RoleLimited,
}

var (
	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,30}$`)
	namePattern   = regexp.MustCompile(`^[A-Za-z][A-Za-z\s'-]*$`)
)

// 提示信息
const (
	MsgInvalidLogin      = "Invalid user ID or password."
	MsgUserIDFormat      = "User ID must be 3-30 characters using letters, numbers, underscore, dot, or dash."
	MsgFirstNameLetters  = "First name must contain letters only."
	MsgLastNameLetters   = "Last name must contain letters only."
	MsgInvalidPosition   = "Invalid position selected."
	MsgRoleNotAllowed    = "You are not allowed to assign this role."
	MsgPasswordLength    = "Password must be at least 8 characters."
	MsgBranchNotAllowed  = "You are not allowed to assign this branch."
	MsgNoActiveYear      = "No active academic year found. Set current year first."
	MsgInvalidStatus     = "Invalid status selected."
	MsgUserIDExists      = "User ID already exists."
	MsgUserNotAccessible = "User not found or access denied."
	MsgDeleteSelf        = "You cannot delete the account you are currently logged in with."
	MsgBulkEmpty         = "Select at least one user to delete."
	msgCreateFailed      = "Unable to create user. Please fix the highlighted issues."
	msgUpdateFailed      = "Unable to update user. Please fix the highlighted issues."
	msgManageDenied      = "Your role cannot manage user accounts."
	msgEditDenied        = "Your role cannot edit user accounts."
	msgDeleteDenied      = "Your role cannot delete user accounts."
)

// AccountService 登录与账号管理服务接口
type AccountService interface {
	// Login 校验账号密码并签发令牌
	Login(userID, password string) (*Session, error)

	// Reissue 以新的查看范围重新签发令牌
	Reissue(actor *auth.Actor, branchID, academicYearID uint) (*Session, error)

	// List 账号列表，需要账号管理权限
	List(actor *auth.Actor) (*ListResult, error)

	// Get 获取可管理的账号
	Get(actor *auth.Actor, id uint) (*EditView, error)

	// Create 创建账号
	Create(actor *auth.Actor, input *Input) (*database.User, error)

	// Update 更新账号，密码为空时保持不变
	Update(actor *auth.Actor, id uint, input *Input) (*database.User, error)

	// Delete 删除账号
	Delete(actor *auth.Actor, id uint) (*database.User, error)

	// BulkDelete 批量删除账号，返回删除数量
	BulkDelete(actor *auth.Actor, ids []uint) (int, error)
}

// Session 登录结果
type Session struct {
	Token     string        `json:"access_token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      database.User `json:"user"`
}

// Input 账号表单
type Input struct {
	UserID    string         `form:"user_id" json:"user_id"`
	FirstName string         `form:"first_name" json:"first_name"`
	LastName  string         `form:"last_name" json:"last_name"`
	Position  string         `form:"position" json:"position"`
	Role      string         `form:"role" json:"role"`
	Password  string         `form:"password" json:"password"`
	BranchID  uint           `form:"branch_id" json:"branch_id"`
	IsActive  textutil.Loose `form:"is_active" json:"is_active"`
}

// ListResult 账号页面数据
type ListResult struct {
	Users               []database.User   `json:"users"`
	BranchMap           map[uint]string   `json:"branch_map"`
	Positions           []string          `json:"positions"`
	RoleChoices         []string          `json:"role_choices"`
	AvailableBranches   []database.Branch `json:"available_branches"`
	ManageableUserIDs   []uint            `json:"manageable_user_ids"`
	CanManageUsers      bool              `json:"can_manage_users"`
	CanEditUserAccounts bool              `json:"can_edit_user_accounts"`
}

// EditView 编辑页数据
type EditView struct {
	User              database.User     `json:"user"`
	Position          string            `json:"position"`
	Positions         []string          `json:"positions"`
	RoleChoices       []string          `json:"role_choices"`
	AvailableBranches []database.Branch `json:"available_branches"`
}

// accountService 账号服务实现
type accountService struct {
	db     *gorm.DB
	tokens *auth.TokenManager
}

// NewAccountService 创建账号服务实例
func NewAccountService(db *gorm.DB, tokens *auth.TokenManager) AccountService {
	return &accountService{db: db, tokens: tokens}
}

// NormalizeUserID 去除空白并转为小写
func NormalizeUserID(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// NormalizePosition 处理职位别名
func NormalizePosition(value string) string {
	cleaned := strings.TrimSpace(value)
	if alias, ok := positionAliases[cleaned]; ok {
		return alias
	}
	return cleaned
}

// ParseActiveStatus 解析账号状态，无法识别时返回 false
func ParseActiveStatus(value string) (active bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "active", "true", "1", "yes", "on":
		return true, true
	case "inactive", "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// RoleChoices 操作者可以分配的角色
func RoleChoices(actor *auth.Actor) []string {
	switch actor.Role() {
	case auth.RoleDeveloper:
		return allRoles
	case auth.RoleAdministrator:
		return []string{auth.RoleAdministrator, auth.RoleEditor, auth.RoleUser, auth.RoleLimited}
	default:
		return []string{auth.RoleEditor, auth.RoleUser, auth.RoleLimited}
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// availableBranches 开发者可分配全部启用的分校，其他人只能分配自己的分校
func (s *accountService) availableBranches(actor *auth.Actor) ([]database.Branch, error) {
	var branches []database.Branch
	query := s.db.Where("status = ?", true)
	if !actor.IsDeveloper() {
		query = query.Where("id = ?", actor.User.BranchID)
	}
	if err := query.Order("name ASC").Find(&branches).Error; err != nil {
		return nil, err
	}
	return branches, nil
}

// Login 登录
func (s *accountService) Login(userID, password string) (*Session, error) {
	userID = NormalizeUserID(userID)

	var user database.User
	if err := s.db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warnf("[账号服务] 登录失败，账号不存在: %s", userID)
			return nil, apperrors.New(apperrors.ErrInvalidCredentials, MsgInvalidLogin)
		}
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if !auth.VerifyPassword(password, user.Password) || !user.IsActive {
		logger.Warnf("[账号服务] 登录失败: %s", userID)
		return nil, apperrors.New(apperrors.ErrInvalidCredentials, MsgInvalidLogin)
	}

	if auth.NeedsRehash(user.Password) {
		if hashed, err := auth.HashPassword(password); err == nil {
			if err := s.db.Model(&user).Update("password", hashed).Error; err != nil {
				logger.Warnf("[账号服务] 升级密码哈希失败: %v", err)
			} else {
				user.Password = hashed
			}
		}
	}

	token, expiresAt, err := s.tokens.Issue(user.UserID, user.BranchID, user.AcademicYearID)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrInternalServer, err)
	}
	logger.Infof("[账号服务] 账号登录成功: %s", user.UserID)
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Reissue 重新签发令牌
func (s *accountService) Reissue(actor *auth.Actor, branchID, academicYearID uint) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(actor.User.UserID, branchID, academicYearID)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrInternalServer, err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: actor.User}, nil
}

// List 账号列表
func (s *accountService) List(actor *auth.Actor) (*ListResult, error) {
	if !actor.Can(auth.CanManageUsers) {
		return nil, apperrors.Forbidden(msgManageDenied)
	}

	query := s.db.Where("academic_year_id = ?", actor.ScopeAcademicYearID)
	if role := actor.Role(); role != auth.RoleDeveloper && role != auth.RoleAdministrator {
		query = query.Where("branch_id = ?", actor.ScopeBranchID)
	}
	var users []database.User
	if err := query.Order("id DESC").Find(&users).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}

	var branches []database.Branch
	if err := s.db.Find(&branches).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	branchMap := make(map[uint]string, len(branches))
	for _, b := range branches {
		branchMap[b.ID] = b.Name
	}

	available, err := s.availableBranches(actor)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}

	result := &ListResult{
		Users:               users,
		BranchMap:           branchMap,
		Positions:           Positions,
		RoleChoices:         RoleChoices(actor),
		AvailableBranches:   available,
		ManageableUserIDs:   []uint{},
		CanManageUsers:      true,
		CanEditUserAccounts: actor.Can(auth.CanEditUserAccounts),
	}
	if result.CanEditUserAccounts {
		for _, u := range users {
			if actor.CanManage(u) {
				result.ManageableUserIDs = append(result.ManageableUserIDs, u.ID)
			}
		}
	}
	return result, nil
}

// findManageable 查找操作者可以管理的账号
func (s *accountService) findManageable(db *gorm.DB, actor *auth.Actor, id uint) (*database.User, error) {
	var user database.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(MsgUserNotAccessible)
		}
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if !actor.CanManage(user) {
		return nil, apperrors.NotFound(MsgUserNotAccessible)
	}
	return &user, nil
}

// Get 获取账号编辑数据
func (s *accountService) Get(actor *auth.Actor, id uint) (*EditView, error) {
	if !actor.Can(auth.CanManageUsers) {
		return nil, apperrors.Forbidden(msgManageDenied)
	}
	if !actor.Can(auth.CanEditUserAccounts) {
		return nil, apperrors.Forbidden(msgEditDenied)
	}
	user, err := s.findManageable(s.db, actor, id)
	if err != nil {
		return nil, err
	}
	available, err := s.availableBranches(actor)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}

	roles := RoleChoices(actor)
	if current := auth.NormalizeRole(user.Role); current != "" && !containsString(roles, current) {
		roles = append([]string{current}, roles...)
	}
	return &EditView{
		User:              *user,
		Position:          NormalizePosition(user.Position),
		Positions:         Positions,
		RoleChoices:       roles,
		AvailableBranches: available,
	}, nil
}

// normalized 规范化后的表单
type normalized struct {
	userID    string
	firstName string
	lastName  string
	position  string
	role      string
	password  string
}

func normalizeInput(input *Input) normalized {
	return normalized{
		userID:    NormalizeUserID(input.UserID),
		firstName: textutil.TitleWords(input.FirstName),
		lastName:  textutil.TitleWords(input.LastName),
		position:  NormalizePosition(input.Position),
		role:      auth.NormalizeRole(input.Role),
		password:  strings.TrimSpace(input.Password),
	}
}

// validateCommon 创建与更新共用的校验，按固定顺序追加
func validateCommon(actor *auth.Actor, n normalized) []string {
	var errs []string
	if !userIDPattern.MatchString(n.userID) {
		errs = append(errs, MsgUserIDFormat)
	}
	if !namePattern.MatchString(n.firstName) {
		errs = append(errs, MsgFirstNameLetters)
	}
	if !namePattern.MatchString(n.lastName) {
		errs = append(errs, MsgLastNameLetters)
	}
	if !containsString(Positions, n.position) {
		errs = append(errs, MsgInvalidPosition)
	}
	if !containsString(RoleChoices(actor), n.role) {
		errs = append(errs, MsgRoleNotAllowed)
	}
	return errs
}

func (s *accountService) branchAllowed(actor *auth.Actor, branchID uint) (bool, error) {
	branches, err := s.availableBranches(actor)
	if err != nil {
		return false, err
	}
	for _, b := range branches {
		if b.ID == branchID {
			return true, nil
		}
	}
	return false, nil
}

func (s *accountService) userIDTaken(userID string, excludeID uint) (bool, error) {
	query := s.db.Model(&database.User{}).Where("user_id = ? OR username = ?", userID, userID)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create 创建账号
func (s *accountService) Create(actor *auth.Actor, input *Input) (*database.User, error) {
	if !actor.Can(auth.CanManageUsers) {
		return nil, apperrors.Forbidden(msgManageDenied)
	}

	n := normalizeInput(input)
	errs := validateCommon(actor, n)
	if len(n.password) < auth.MinPasswordLength {
		errs = append(errs, MsgPasswordLength)
	}

	allowed, err := s.branchAllowed(actor, input.BranchID)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if !allowed {
		errs = append(errs, MsgBranchNotAllowed)
	}

	var activeYear database.AcademicYear
	hasYear := true
	if err := s.db.Where("is_active = ?", true).First(&activeYear).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
		}
		hasYear = false
		errs = append(errs, MsgNoActiveYear)
	}

	taken, err := s.userIDTaken(n.userID, 0)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if taken {
		errs = append(errs, MsgUserIDExists)
	}

	if len(errs) > 0 {
		appErr := apperrors.Validation(msgCreateFailed, errs...)
		if len(errs) == 1 && !hasYear {
			appErr.Code = apperrors.ErrNoActiveYear
		}
		return nil, appErr
	}

	hashed, err := auth.HashPassword(n.password)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrInternalServer, err)
	}
	user := &database.User{
		UserID:         n.userID,
		Username:       n.userID,
		FirstName:      n.firstName,
		LastName:       n.lastName,
		Position:       n.position,
		Role:           n.role,
		Password:       hashed,
		BranchID:       input.BranchID,
		AcademicYearID: activeYear.ID,
		IsActive:       true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRecordAlreadyExists, "User creation failed due to a duplicate value. Check User ID.", err)
	}

	logger.Infof("[账号服务] 账号 %s 创建账号 %s (%s)", actor.User.UserID, user.UserID, user.Role)
	return user, nil
}

// Update 更新账号
func (s *accountService) Update(actor *auth.Actor, id uint, input *Input) (*database.User, error) {
	if !actor.Can(auth.CanManageUsers) {
		return nil, apperrors.Forbidden(msgManageDenied)
	}
	if !actor.Can(auth.CanEditUserAccounts) {
		return nil, apperrors.Forbidden(msgEditDenied)
	}
	user, err := s.findManageable(s.db, actor, id)
	if err != nil {
		return nil, err
	}

	n := normalizeInput(input)
	status := input.IsActive.String()
	if strings.TrimSpace(status) == "" {
		status = "active"
	}
	active, statusOK := ParseActiveStatus(status)

	errs := validateCommon(actor, n)
	allowed, err := s.branchAllowed(actor, input.BranchID)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if !allowed {
		errs = append(errs, MsgBranchNotAllowed)
	}
	if !statusOK {
		errs = append(errs, MsgInvalidStatus)
	}
	if n.password != "" && len(n.password) < auth.MinPasswordLength {
		errs = append(errs, MsgPasswordLength)
	}
	taken, err := s.userIDTaken(n.userID, user.ID)
	if err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseQuery, err)
	}
	if taken {
		errs = append(errs, MsgUserIDExists)
	}
	if len(errs) > 0 {
		return nil, apperrors.Validation(msgUpdateFailed, errs...)
	}

	user.UserID = n.userID
	user.Username = n.userID
	user.FirstName = n.firstName
	user.LastName = n.lastName
	user.Position = n.position
	user.Role = n.role
	user.BranchID = input.BranchID
	user.IsActive = active
	if n.password != "" {
		hashed, err := auth.HashPassword(n.password)
		if err != nil {
			return nil, apperrors.Internal(apperrors.ErrInternalServer, err)
		}
		user.Password = hashed
	}
	if err := s.db.Save(user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRecordAlreadyExists, "User update failed due to a duplicate value. Check User ID.", err)
	}

	logger.Infof("[账号服务] 账号 %s 更新账号 %s", actor.User.UserID, user.UserID)
	return user, nil
}

// Delete 删除账号，返回被删除的账号
func (s *accountService) Delete(actor *auth.Actor, id uint) (*database.User, error) {
	if !actor.Can(auth.CanManageUsers) {
		return nil, apperrors.Forbidden(msgManageDenied)
	}
	if !actor.Can(auth.CanDeleteUserAccounts) {
		return nil, apperrors.Forbidden(msgDeleteDenied)
	}
	user, err := s.findManageable(s.db, actor, id)
	if err != nil {
		return nil, err
	}
	if user.ID == actor.User.ID {
		return nil, apperrors.New(apperrors.ErrConflict, MsgDeleteSelf)
	}
	if err := s.db.Delete(user).Error; err != nil {
		return nil, apperrors.Internal(apperrors.ErrDatabaseDelete, err)
	}

	logger.Infof("[账号服务] 账号 %s 删除账号 %s", actor.User.UserID, user.UserID)
	return user, nil
}

// BulkDelete 批量删除账号，任何一个账号不可删除时整体失败
func (s *accountService) BulkDelete(actor *auth.Actor, ids []uint) (int, error) {
	if !actor.Can(auth.CanManageUsers) {
		return 0, apperrors.Forbidden(msgManageDenied)
	}
	if !actor.Can(auth.CanDeleteUserAccounts) {
		return 0, apperrors.Forbidden(msgDeleteDenied)
	}

	seen := make(map[uint]bool, len(ids))
	unique := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return 0, apperrors.Validation(MsgBulkEmpty)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, id := range unique {
			user, err := s.findManageable(tx, actor, id)
			if err != nil {
				return err
			}
			if user.ID == actor.User.ID {
				return apperrors.New(apperrors.ErrConflict, MsgDeleteSelf)
			}
		}
		if err := tx.Where("id IN ?", unique).Delete(&database.User{}).Error; err != nil {
			return apperrors.Internal(apperrors.ErrDatabaseDelete, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Infof("[账号服务] 账号 %s 批量删除 %d 个账号", actor.User.UserID, len(unique))
	return len(unique), nil
}

// DeletedMessage 删除成功提示
func DeletedMessage(user *database.User) string {
	return fmt.Sprintf("User deleted successfully: %s", strings.TrimSpace(user.FirstName+" "+user.LastName))
}
