// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"time"

	"smiling-nurse-go/internal/model"
	"smiling-nurse-go/internal/repository"
	"smiling-nurse-go/pkg/database"
	"smiling-nurse-go/pkg/hash"
	"smiling-nurse-go/pkg/token"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(username, password string, profile model.Profile) (*model.User, error)
	Login(username, password string) (user *model.User, accessToken, refreshToken string, err error)
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
	Logout(tokenString string) error
	GetByUsername(username string) (*model.User, error)
	GetProfile(userID uint) (*model.Profile, error)
	UpdateProfile(userID uint, profile model.Profile) error
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(username, password string, profile model.Profile) (*model.User, error) {
	// 1. 校验必填的资料字段
	if err := validateProfile(profile); err != nil {
		return nil, err
	}

	// 2. 检查用户名是否已存在
	_, err := s.userRepo.FindByUsername(username)
	if err == nil {
		return nil, errors.New("用户名已存在")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 3. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 4. 创建新用户
	newUser := &model.User{
		Username: username,
		Password: hashedPassword,
		Profile:  datatypes.NewJSONType(profile),
	}
	if err := s.userRepo.Create(newUser); err != nil {
		return nil, err
	}

	return newUser, nil
}

// Login 处理用户登录的业务逻辑。
func (s *userService) Login(username, password string) (*model.User, string, string, error) {
	// 1. 查找用户
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", "", errors.New("用户名或密码不正确")
		}
		return nil, "", "", err
	}

	// 2. 验证密码
	if !hash.CheckPasswordHash(password, user.Password) {
		return nil, "", "", errors.New("用户名或密码不正确")
	}

	// 3. 生成 access token 和 refresh token
	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, "", "", err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, "", "", err
	}

	return user, accessToken, refreshToken, nil
}

// RefreshToken 验证 refresh token 并签发新的 access token 和 refresh token。
func (s *userService) RefreshToken(refreshTokenString string) (string, string, error) {
	// 1. 验证 refresh token 是否有效
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", errors.New("invalid refresh token")
	}

	// 2. 检查用户是否存在
	user, err := s.userRepo.FindByUsername(claims.Username)
	if err != nil {
		return "", "", errors.New("user not found")
	}

	// 3. 签发新的 token
	newAccessToken, err := s.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return "", "", err
	}
	return newAccessToken, newRefreshToken, nil
}

// Logout 处理用户登出逻辑，将 token 加入 Redis 黑名单。
func (s *userService) Logout(tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return err
	}
	// token 的剩余有效期将作为 Redis key 的过期时间。
	expiration := time.Until(claims.ExpiresAt.Time)
	return database.RDB.Set(context.Background(), "blacklist:"+tokenString, "true", expiration).Err()
}

// GetByUsername 根据用户名获取用户详细信息。
func (s *userService) GetByUsername(username string) (*model.User, error) {
	return s.userRepo.FindByUsername(username)
}

// GetProfile 获取用户的个人资料。
func (s *userService) GetProfile(userID uint) (*model.Profile, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	profile := user.Profile.Data()
	return &profile, nil
}

// UpdateProfile 整体更新用户的个人资料。
func (s *userService) UpdateProfile(userID uint, profile model.Profile) error {
	if err := validateProfile(profile); err != nil {
		return err
	}
	if _, err := s.userRepo.FindByID(userID); err != nil {
		return err
	}
	return s.userRepo.UpdateProfile(userID, profile)
}

// validateProfile 校验资料中的必填字段与取值范围。
func validateProfile(profile model.Profile) error {
	if profile.Name == "" {
		return errors.New("姓名不能为空")
	}
	if profile.Age <= 0 || profile.Age > 120 {
		return errors.New("年龄不在有效范围内")
	}
	if profile.Gender == "" {
		return errors.New("性别不能为空")
	}
	return nil
}
