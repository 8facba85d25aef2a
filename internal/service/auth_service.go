package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/cache"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/repository"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/pkg/jwt"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/pkg/util"
)

// 认证服务相关错误
var (
	ErrUserExists    = errors.New("用户名已存在")
	ErrUserNotFound  = errors.New("用户不存在")
	ErrPasswordWrong = errors.New("密码错误")
)

// AuthService 认证服务
// 计时引擎的每个修改操作都要求带上经过认证的用户 ID，
// 这里提供最小的账号能力：注册、登录、刷新、登出
type AuthService struct {
	userRepo   *repository.UserRepository // 用户数据访问层
	cache      *cache.RedisCache          // Redis 缓存（JWT 黑名单）
	jwtService *jwt.JWTService            // JWT 服务
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(userRepo *repository.UserRepository, redisCache *cache.RedisCache, jwtService *jwt.JWTService) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		cache:      redisCache,
		jwtService: jwtService,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string  `json:"username" binding:"required,min=3,max=50"` // 用户名
	Password string  `json:"password" binding:"required,min=6,max=72"` // 密码
	Email    *string `json:"email"`                                    // 邮箱（可选）
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // 用户名
	Password string `json:"password" binding:"required"` // 密码
}

// TokenResponse 令牌响应
type TokenResponse struct {
	AccessToken  string `json:"access_token"`  // 访问令牌
	RefreshToken string `json:"refresh_token"` // 刷新令牌
	UserID       int64  `json:"user_id"`       // 用户ID
	Username     string `json:"username"`      // 用户名
}

// Register 注册新用户
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*TokenResponse, error) {
	// 检查用户名是否已被占用
	existing, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     req.Username,
		PasswordHash: hash,
		Email:        req.Email,
		Status:       1,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issueTokens(user)
}

// Login 用户登录
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !util.CheckPassword(req.Password, user.PasswordHash) {
		return nil, ErrPasswordWrong
	}

	return s.issueTokens(user)
}

// RefreshToken 用 Refresh Token 换取新的令牌对
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	// 确认用户仍然存在且未被禁用
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != 1 {
		return nil, ErrUserNotFound
	}

	return s.issueTokens(user)
}

// Logout 用户登出
// 把 Token 的哈希加入黑名单，保留到 Token 自然过期为止
func (s *AuthService) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.BlacklistToken(ctx, HashToken(token), time.Until(expiresAt))
}

// issueTokens 为用户签发访问令牌和刷新令牌
func (s *AuthService) issueTokens(user *model.User) (*TokenResponse, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       user.ID,
		Username:     user.Username,
	}, nil
}

// HashToken 计算 Token 的 SHA256 哈希值
// 黑名单只存哈希，不存原始 Token
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
