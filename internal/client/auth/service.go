// Package auth управляет сессией CLI клиента: вход, выход, обновление
// токенов и получение действующего access токена.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/tokenauth/internal/client/api"
	"github.com/iudanet/tokenauth/internal/client/storage"
	pkgapi "github.com/iudanet/tokenauth/pkg/api"
)

// ErrNotLoggedIn - локальной сессии нет или refresh токен отклонен
var ErrNotLoggedIn = errors.New("not logged in, please run 'login' first")

// refreshLeeway - access токен обновляется заранее, чтобы не истечь в пути
const refreshLeeway = 10 * time.Second

// Service предоставляет функции авторизации поверх API и локального хранилища
type Service struct {
	apiClient *api.Client
	sessions  storage.SessionStorage
	now       func() time.Time
}

// NewService создает новый сервис авторизации
func NewService(apiClient *api.Client, sessions storage.SessionStorage) *Service {
	return &Service{
		apiClient: apiClient,
		sessions:  sessions,
		now:       time.Now,
	}
}

// Register регистрирует нового пользователя.
// Сервер не сообщает причину отказа, поэтому ok=false без ошибки.
func (s *Service) Register(ctx context.Context, email, password string) (bool, error) {
	return s.apiClient.Register(ctx, pkgapi.RegisterRequest{Email: email, Password: password})
}

// Login выполняет вход и сохраняет сессию
func (s *Service) Login(ctx context.Context, email, password string) (*storage.Session, error) {
	result, err := s.apiClient.Login(ctx, pkgapi.LoginRequest{Email: email, Password: password})
	if err != nil {
		if errors.Is(err, api.ErrUnauthenticated) {
			return nil, fmt.Errorf("invalid email or password")
		}
		return nil, err
	}

	session := &storage.Session{
		Email:            result.Response.User.Email,
		UserID:           result.Response.User.ID,
		AccessToken:      result.Response.AccessToken,
		AccessExpiresAt:  result.Response.ExpiresAt,
		RefreshToken:     result.Refresh.Value,
		RefreshExpiresAt: result.Refresh.ExpiresAt,
	}

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// Logout удаляет локальную сессию и просит сервер очистить cookie.
// Уже выпущенные токены продолжают действовать до отзыва или истечения.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.sessions.DeleteSession(ctx); err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return ErrNotLoggedIn
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if err := s.apiClient.Logout(ctx); err != nil {
		return fmt.Errorf("session removed locally, but server logout failed: %w", err)
	}

	return nil
}

// Session возвращает сохраненную сессию
func (s *Service) Session(ctx context.Context) (*storage.Session, error) {
	session, err := s.sessions.GetSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// Refresh меняет сохраненный refresh токен на новую пару токенов.
// Если сервер отклонил токен, сессия удаляется.
func (s *Service) Refresh(ctx context.Context) (*storage.Session, error) {
	session, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}

	if !session.RefreshValid(s.now()) {
		_ = s.sessions.DeleteSession(ctx)
		return nil, ErrNotLoggedIn
	}

	result, err := s.apiClient.Refresh(ctx, session.RefreshToken)
	if err != nil {
		if errors.Is(err, api.ErrRefreshRejected) {
			_ = s.sessions.DeleteSession(ctx)
			return nil, ErrNotLoggedIn
		}
		return nil, err
	}

	session.AccessToken = result.AccessToken
	session.AccessExpiresAt = result.ExpiresAt
	session.RefreshToken = result.Refresh.Value
	session.RefreshExpiresAt = result.Refresh.ExpiresAt

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// AccessToken возвращает действующий access токен, при необходимости обновляя его
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	session, err := s.Session(ctx)
	if err != nil {
		return "", err
	}

	if session.AccessValid(s.now().Add(refreshLeeway)) {
		return session.AccessToken, nil
	}

	session, err = s.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return session.AccessToken, nil
}

// Me возвращает текущего пользователя по данным сервера или nil
func (s *Service) Me(ctx context.Context) (*pkgapi.User, error) {
	token, err := s.AccessToken(ctx)
	if err != nil {
		if errors.Is(err, ErrNotLoggedIn) {
			return nil, nil
		}
		return nil, err
	}
	return s.apiClient.Me(ctx, token)
}

// Bye вызывает защищенный эндпоинт с действующим access токеном
func (s *Service) Bye(ctx context.Context) (string, error) {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	return s.apiClient.Bye(ctx, token)
}

// Users возвращает список пользователей
func (s *Service) Users(ctx context.Context) ([]pkgapi.User, error) {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.apiClient.Users(ctx, token)
}

// Revoke отзывает refresh токены пользователя userID
func (s *Service) Revoke(ctx context.Context, userID int64) (bool, error) {
	return s.apiClient.Revoke(ctx, userID)
}
