// Package storage описывает локальное хранилище сессии CLI клиента.
package storage

import (
	"context"
	"time"
)

// SessionStorage defines interface for storing the client session
type SessionStorage interface {
	// SaveSession replaces the stored session
	SaveSession(ctx context.Context, session *Session) error

	// GetSession retrieves the stored session
	// Returns ErrSessionNotFound if no session exists
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the stored session (logout)
	// Returns ErrSessionNotFound if no session exists
	DeleteSession(ctx context.Context) error
}

// Session - сохраненные токены и данные вошедшего пользователя.
// RefreshToken хранится так, как сервер отдал его в cookie.
type Session struct {
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	Email            string    `json:"email"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	UserID           int64     `json:"user_id"`
}

// AccessValid сообщает, действует ли access токен в момент now
func (s *Session) AccessValid(now time.Time) bool {
	return s.AccessToken != "" && now.Before(s.AccessExpiresAt)
}

// RefreshValid сообщает, можно ли еще обменять refresh токен.
// Нулевой RefreshExpiresAt означает, что срок неизвестен.
func (s *Session) RefreshValid(now time.Time) bool {
	if s.RefreshToken == "" {
		return false
	}
	return s.RefreshExpiresAt.IsZero() || now.Before(s.RefreshExpiresAt)
}
