package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-voice-api/internal/dto"
	"github.com/noah-isme/campus-voice-api/internal/models"
	appErrors "github.com/noah-isme/campus-voice-api/pkg/errors"
)

type authUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// AuthService provides registration, login, and token validation. It is the
// identity collaborator: it verifies who a submitter is, while everything
// downstream of submission only ever sees the derived anonymous token.
type AuthService struct {
	repo      authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Expiration <= 0 {
		config.Expiration = 7 * 24 * time.Hour
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, config: config}
}

// Register creates a verified identity and returns an access token.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	role := models.UserRole(req.Role)
	if role == "" {
		role = models.RoleStudent
	}
	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         role,
		Active:       true,
	}
	if req.Department != "" {
		user.Department = &req.Department
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	return s.issueToken(user)
}

// Login authenticates a user and returns an access token.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	return s.issueToken(user)
}

// Me returns the identity projection for the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*dto.UserInfo, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	info := userInfo(user)
	return &info, nil
}

// ValidateToken parses and verifies an access token, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	claims := &models.JWTClaims{}
	if uid, ok := mapClaims["uid"].(string); ok {
		claims.UserID = uid
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if role, ok := mapClaims["role"].(string); ok {
		claims.Role = models.UserRole(role)
	}
	if dept, ok := mapClaims["department"].(string); ok {
		claims.Department = dept
	}
	if claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) issueToken(user *models.User) (*dto.AuthResponse, error) {
	now := time.Now().UTC()
	mapClaims := jwt.MapClaims{
		"uid":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"iss":   s.config.Issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(s.config.Expiration).Unix(),
	}
	if user.Department != nil {
		mapClaims["department"] = *user.Department
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	return &dto.AuthResponse{
		Token:     token,
		ExpiresIn: int64(s.config.Expiration.Seconds()),
		User:      userInfo(user),
	}, nil
}

func userInfo(user *models.User) dto.UserInfo {
	info := dto.UserInfo{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
	}
	if user.Department != nil {
		info.Department = *user.Department
	}
	return info
}
