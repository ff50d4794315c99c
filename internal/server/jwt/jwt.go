// Package jwt выпускает и проверяет access и refresh токены.
//
// Оба класса токенов - HS256 JWT, подписанные разными секретами, поэтому
// утечка одного секрета не позволяет подделать токен другого класса.
// Service неизменяем после создания и безопасен для конкурентного использования.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iudanet/tokenauth/internal/models"
	"github.com/iudanet/tokenauth/internal/server/storage"
)

// Ошибки проверки токенов
var (
	// ErrInvalidToken - подпись не сходится, токен поврежден или выпущен другим секретом
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired - срок действия токена истек
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked - версия в refresh токене не совпадает с текущей версией пользователя
	ErrTokenRevoked = errors.New("token revoked")
)

// AccessClaims - payload access токена
type AccessClaims struct {
	gojwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

// RefreshClaims - payload refresh токена
type RefreshClaims struct {
	gojwt.RegisteredClaims
	UserID       int64 `json:"user_id"`
	TokenVersion int64 `json:"token_version"`
}

// Token - подписанный токен, момент выпуска и момент истечения.
// Оба момента берутся из часов сервиса.
type Token struct {
	IssuedAt  time.Time
	ExpiresAt time.Time
	Value     string
}

// TTL возвращает время жизни токена
func (t Token) TTL() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}

// VersionLookup возвращает текущую версию токенов пользователя
type VersionLookup interface {
	GetTokenVersion(ctx context.Context, userID int64) (int64, error)
}

// VersionLookupFunc адаптер функции к VersionLookup
type VersionLookupFunc func(ctx context.Context, userID int64) (int64, error)

// GetTokenVersion вызывает f(ctx, userID)
func (f VersionLookupFunc) GetTokenVersion(ctx context.Context, userID int64) (int64, error) {
	return f(ctx, userID)
}

// Config содержит секреты и время жизни токенов
type Config struct {
	Issuer        string
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Option настраивает Service
type Option func(*Service)

// WithClock подменяет источник текущего времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service выпускает и проверяет токены
type Service struct {
	now     func() time.Time
	access  *gojwt.Parser
	refresh *gojwt.Parser
	cfg     Config
}

// NewService создает сервис токенов
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}

	s := &Service{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.access = s.newParser()
	s.refresh = s.newParser()

	return s, nil
}

func (s *Service) newParser() *gojwt.Parser {
	parserOpts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		parserOpts = append(parserOpts, gojwt.WithIssuer(s.cfg.Issuer))
	}
	return gojwt.NewParser(parserOpts...)
}

// AccessTTL возвращает время жизни access токена
func (s *Service) AccessTTL() time.Duration {
	return s.cfg.AccessTTL
}

// RefreshTTL возвращает время жизни refresh токена
func (s *Service) RefreshTTL() time.Duration {
	return s.cfg.RefreshTTL
}

// IssueAccessToken подписывает {user_id} секретом access токенов
func (s *Service) IssueAccessToken(user *models.User) (Token, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)

	claims := AccessClaims{
		UserID:           user.ID,
		RegisteredClaims: s.registered(now, expiresAt),
	}

	value, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.cfg.AccessSecret)
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return Token{Value: value, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

// IssueRefreshToken подписывает {user_id, token_version} секретом refresh токенов
func (s *Service) IssueRefreshToken(user *models.User) (Token, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.RefreshTTL)

	claims := RefreshClaims{
		UserID:           user.ID,
		TokenVersion:     user.TokenVersion,
		RegisteredClaims: s.registered(now, expiresAt),
	}

	value, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.cfg.RefreshSecret)
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return Token{Value: value, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

func (s *Service) registered(now, expiresAt time.Time) gojwt.RegisteredClaims {
	return gojwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    s.cfg.Issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(expiresAt),
	}
}

// VerifyAccess проверяет подпись и срок действия access токена
func (s *Service) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(s.access, token, claims, s.cfg.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh проверяет подпись и срок действия refresh токена, и только затем
// сверяет версию в токене с текущей версией пользователя.
// Отсутствующий пользователь считается отозванным токеном.
func (s *Service) VerifyRefresh(ctx context.Context, token string, lookup VersionLookup) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(s.refresh, token, claims, s.cfg.RefreshSecret); err != nil {
		return nil, err
	}

	current, err := lookup.GetTokenVersion(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, fmt.Errorf("failed to get token version: %w", err)
	}

	if current != claims.TokenVersion {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

func (s *Service) parse(p *gojwt.Parser, token string, claims gojwt.Claims, secret []byte) error {
	_, err := p.ParseWithClaims(token, claims, func(*gojwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gojwt.ErrTokenExpired) {
		return ErrTokenExpired
	}

	return fmt.Errorf("%w: %w", ErrInvalidToken, err)
}

// Kind возвращает короткое имя причины отказа для логов и метрик
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrInvalidToken):
		return "invalid"
	default:
		return "error"
	}
}
