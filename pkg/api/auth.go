// Package api содержит DTO HTTP API, общие для сервера и клиента.
package api

import "time"

// Пути HTTP API
const (
	PathRegister     = "/api/v1/auth/register"
	PathLogin        = "/api/v1/auth/login"
	PathLogout       = "/api/v1/auth/logout"
	PathMe           = "/api/v1/auth/me"
	PathRevoke       = "/api/v1/auth/revoke"
	PathRefreshToken = "/api/v1/auth/refresh_token"
	PathBye          = "/api/v1/bye"
	PathUsers        = "/api/v1/users"
	PathHealth       = "/api/v1/health"
)

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OKResponse - булев результат операции (register, logout, revoke)
type OKResponse struct {
	OK bool `json:"ok"`
}

// User - публичное представление пользователя (без хеша пароля)
type User struct {
	CreatedAt    time.Time `json:"created_at"`
	Email        string    `json:"email"`
	ID           int64     `json:"id"`
	TokenVersion int64     `json:"token_version"`
}

// LoginResponse представляет ответ на успешный вход.
// Refresh токен передается только в cookie.
type LoginResponse struct {
	ExpiresAt   time.Time `json:"expires_at"`   // момент истечения access token
	User        User      `json:"user"`         // вошедший пользователь
	AccessToken string    `json:"access_token"` // JWT access token
}

// MeResponse - текущий пользователь или null
type MeResponse struct {
	User *User `json:"user"`
}

// RevokeRequest представляет запрос на отзыв refresh токенов пользователя
type RevokeRequest struct {
	UserID int64 `json:"user_id"`
}

// RefreshResponse представляет ответ на обмен refresh токена.
// При отказе ok=false и access_token пустой.
type RefreshResponse struct {
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
	AccessToken string    `json:"access_token"`
	OK          bool      `json:"ok"`
}

// ByeResponse ответ защищенного эндпоинта /bye
type ByeResponse struct {
	Message string `json:"message"`
}

// UsersResponse список пользователей
type UsersResponse struct {
	Users []User `json:"users"`
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
