package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tapcard/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// AuthService 负责账号注册与密码校验
type AuthService struct {
	db *gorm.DB
}

// NewAuthService 构造 AuthService
func NewAuthService(gdb *gorm.DB) *AuthService {
	return &AuthService{db: gdb}
}

// Register 创建账号并同时创建名片资料，slug 由用户名生成并自动去重
func (s *AuthService) Register(ctx context.Context, username, password string) (*db.User, *db.Profile, error) {
	username = strings.TrimSpace(username)

	fields := make(map[string]string)
	if !usernamePattern.MatchString(username) {
		fields["username"] = "username must be 3-32 letters, digits, dots, dashes or underscores"
	}
	if len(password) < minPasswordLength {
		fields["password"] = fmt.Sprintf("password must be at least %d characters", minPasswordLength)
	}
	if len(fields) > 0 {
		return nil, nil, NewValidationError(fields)
	}

	return s.createAccount(ctx, username, password)
}

func (s *AuthService) createAccount(ctx context.Context, username, password string) (*db.User, *db.Profile, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	var (
		user    db.User
		profile db.Profile
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}

		user = db.User{Username: username, Password: string(hashed)}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		slug, err := availableSlug(tx, username)
		if err != nil {
			return err
		}
		profile = db.Profile{ID: user.ID, Slug: slug, Name: username, AllowNetworkSaves: true}
		return tx.Create(&profile).Error
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, ErrUsernameTaken
		}
		return nil, nil, fmt.Errorf("register user: %w", err)
	}

	return &user, &profile, nil
}

// Authenticate 校验用户名与密码
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*db.User, error) {
	var user db.User
	if err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// EnsureUser 存在性检查：用户名与密码均非空且账号不存在时创建账号，已存在时不做修改
// 用于部署时预置账号，不做注册时的格式校验
func (s *AuthService) EnsureUser(ctx context.Context, username, password string) (created bool, err error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return false, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&db.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	if _, _, err := s.createAccount(ctx, username, password); err != nil {
		return false, err
	}
	return true, nil
}
