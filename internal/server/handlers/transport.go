package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/tokenauth/internal/server/jwt"
)

// BearerPrefix - обязательный префикс заголовка Authorization
const BearerPrefix = "Bearer "

var (
	// ErrMissingAuthorization - заголовок Authorization отсутствует
	ErrMissingAuthorization = errors.New("missing authorization header")

	// ErrMalformedAuthorization - заголовок не в формате "Bearer <token>"
	ErrMalformedAuthorization = errors.New("malformed authorization header")
)

// CookieConfig параметры cookie с refresh токеном
type CookieConfig struct {
	Name   string
	Path   string
	Secure bool
}

// AttachRefreshToken записывает refresh токен в HttpOnly cookie.
// Срок жизни cookie равен TTL токена и не зависит от часов handler'а.
func AttachRefreshToken(w http.ResponseWriter, cfg CookieConfig, token jwt.Token) {
	maxAge := int(token.TTL().Seconds())
	if maxAge <= 0 {
		// cookie с MaxAge=0 браузер считает сессионной, истекший токен просто удаляем
		ClearRefreshToken(w, cfg)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    token.Value,
		Path:     cfg.Path,
		Expires:  token.ExpiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearRefreshToken удаляет cookie с refresh токеном
func ClearRefreshToken(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     cfg.Path,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RefreshTokenFromRequest возвращает refresh токен из cookie или пустую строку
func RefreshTokenFromRequest(r *http.Request, cfg CookieConfig) string {
	cookie, err := r.Cookie(cfg.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ExtractBearerToken извлекает токен из заголовка "Authorization: Bearer <token>".
// Префикс сравнивается буквально.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingAuthorization
	}

	token, ok := strings.CutPrefix(header, BearerPrefix)
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrMalformedAuthorization
	}

	return token, nil
}
