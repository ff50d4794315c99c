// Package service реализует сценарии авторизации поверх хранилища
// пользователей и сервиса токенов. HTTP ничего не знает о деталях отказов:
// наружу выходят только грубые ошибки, причина пишется в лог и метрики.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/iudanet/tokenauth/internal/crypto"
	"github.com/iudanet/tokenauth/internal/models"
	"github.com/iudanet/tokenauth/internal/server/jwt"
	"github.com/iudanet/tokenauth/internal/server/metrics"
	"github.com/iudanet/tokenauth/internal/server/storage"
	"github.com/iudanet/tokenauth/internal/validation"
)

var (
	// ErrInvalidCredentials - неизвестный email или неверный пароль
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRefreshRejected - refresh токен не принят, нужен повторный вход
	ErrRefreshRejected = errors.New("refresh token rejected, login required")
)

// LoginResult - результат успешного входа или обмена refresh токена
type LoginResult struct {
	User         *models.User
	AccessToken  jwt.Token
	RefreshToken jwt.Token
}

// AuthService реализует register, login, revoke, me, refresh
type AuthService struct {
	logger  *slog.Logger
	users   storage.UserStorage
	tokens  *jwt.Service
	hasher  crypto.PasswordHasher
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAuthService создает сервис авторизации. m может быть nil.
func NewAuthService(
	logger *slog.Logger,
	users storage.UserStorage,
	tokens *jwt.Service,
	hasher crypto.PasswordHasher,
	m *metrics.Metrics,
) *AuthService {
	return &AuthService{
		logger:  logger,
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
		metrics: m,
		now:     time.Now,
	}
}

// Tokens возвращает сервис токенов
func (s *AuthService) Tokens() *jwt.Service {
	return s.tokens
}

// Register создает пользователя с версией токенов 0.
// Любой отказ (невалидный ввод, занятый email, ошибка хранилища) дает false.
func (s *AuthService) Register(ctx context.Context, email, password string) bool {
	email = validation.NormalizeEmail(email)

	if err := validation.ValidateEmail(email); err != nil {
		s.logger.WarnContext(ctx, "register rejected: invalid email", slog.Any("error", err))
		s.metrics.RecordRegistration(metrics.ResultFailure)
		return false
	}
	if err := validation.ValidatePassword(password); err != nil {
		s.logger.WarnContext(ctx, "register rejected: invalid password", slog.Any("error", err))
		s.metrics.RecordRegistration(metrics.ResultFailure)
		return false
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		s.metrics.RecordRegistration(metrics.ResultError)
		return false
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			s.logger.WarnContext(ctx, "register rejected: email already taken", slog.String("email", email))
			s.metrics.RecordRegistration(metrics.ResultFailure)
			return false
		}
		s.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		s.metrics.RecordRegistration(metrics.ResultError)
		return false
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", email))
	s.metrics.RecordRegistration(metrics.ResultSuccess)

	return true
}

// Login проверяет пароль и выпускает пару токенов.
// Неизвестный email и неверный пароль неразличимы: ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = validation.NormalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.logger.WarnContext(ctx, "login failed: unknown email", slog.String("email", email))
			s.metrics.RecordLogin(metrics.ResultFailure)
			return nil, ErrInvalidCredentials
		}
		s.metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := s.hasher.Compare(password, user.PasswordHash)
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultError)
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.logger.WarnContext(ctx, "login failed: wrong password", slog.Int64("user_id", user.ID))
		s.metrics.RecordLogin(metrics.ResultFailure)
		return nil, ErrInvalidCredentials
	}

	result, err := s.issue(user)
	if err != nil {
		s.metrics.RecordLogin(metrics.ResultError)
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.Int64("user_id", user.ID))
	s.metrics.RecordLogin(metrics.ResultSuccess)

	return result, nil
}

// Revoke инвалидирует все выпущенные refresh токены пользователя.
// Уже выпущенные access токены действуют до своего exp.
func (s *AuthService) Revoke(ctx context.Context, userID int64) error {
	version, err := s.users.IncrementTokenVersion(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.metrics.RecordRevocation(metrics.ResultFailure)
			return err
		}
		s.metrics.RecordRevocation(metrics.ResultError)
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "refresh tokens revoked",
		slog.Int64("user_id", userID),
		slog.Int64("token_version", version))
	s.metrics.RecordRevocation(metrics.ResultSuccess)

	return nil
}

// Me - мягкая проверка access токена: при любом отказе пользователь отсутствует
func (s *AuthService) Me(ctx context.Context, accessToken string) (*models.User, bool) {
	if accessToken == "" {
		return nil, false
	}

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		s.logger.DebugContext(ctx, "me: access token rejected",
			slog.String("kind", jwt.Kind(err)),
			slog.Any("error", err))
		s.metrics.RecordVerificationFailure(metrics.TokenAccess, jwt.Kind(err))
		return nil, false
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.logger.WarnContext(ctx, "me: user from token not found", slog.Int64("user_id", claims.UserID))
		} else {
			s.logger.ErrorContext(ctx, "me: failed to get user", slog.Any("error", err))
		}
		return nil, false
	}

	return user, true
}

// Refresh обменивает действующий refresh токен на новый access токен
// и новый refresh токен с текущей версией.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if refreshToken == "" {
		s.metrics.RecordVerificationFailure(metrics.TokenRefresh, "missing")
		s.metrics.RecordRefresh(metrics.ResultFailure)
		return nil, ErrRefreshRejected
	}

	// пользователь загружается один раз и используется и для сверки версии, и для выпуска
	var user *models.User
	lookup := jwt.VersionLookupFunc(func(ctx context.Context, userID int64) (int64, error) {
		u, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			return 0, err
		}
		user = u
		return u.TokenVersion, nil
	})

	if _, err := s.tokens.VerifyRefresh(ctx, refreshToken, lookup); err != nil {
		kind := jwt.Kind(err)
		if kind == "error" {
			s.logger.ErrorContext(ctx, "refresh: failed to verify token", slog.Any("error", err))
		} else {
			s.logger.WarnContext(ctx, "refresh: token rejected", slog.String("kind", kind))
		}
		s.metrics.RecordVerificationFailure(metrics.TokenRefresh, kind)
		s.metrics.RecordRefresh(metrics.ResultFailure)
		return nil, ErrRefreshRejected
	}

	result, err := s.issue(user)
	if err != nil {
		s.logger.ErrorContext(ctx, "refresh: failed to issue tokens", slog.Any("error", err))
		s.metrics.RecordRefresh(metrics.ResultError)
		return nil, ErrRefreshRejected
	}

	s.logger.DebugContext(ctx, "tokens refreshed", slog.Int64("user_id", user.ID))
	s.metrics.RecordRefresh(metrics.ResultSuccess)

	return result, nil
}

// Users возвращает всех пользователей
func (s *AuthService) Users(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Bye формирует ответ защищенного эндпоинта
func (s *AuthService) Bye(userID int64) string {
	return "Your user id is: " + strconv.FormatInt(userID, 10)
}

func (s *AuthService) issue(user *models.User) (*LoginResult, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	refresh, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	return &LoginResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
