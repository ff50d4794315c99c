package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/tokenauth/internal/server/service"
	"github.com/iudanet/tokenauth/internal/server/storage"
	"github.com/iudanet/tokenauth/pkg/api"
)

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger  *slog.Logger
	service *service.AuthService
	cookie  CookieConfig
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, svc *service.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		service: svc,
		cookie:  cookie,
	}
}

// Register обрабатывает POST /api/v1/auth/register
// Причина отказа клиенту не сообщается: только ok=false.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	ok := h.service.Register(ctx, req.Email, req.Password)

	sendJSON(h.logger, w, api.OKResponse{OK: ok}, http.StatusOK)
}

// Login обрабатывает POST /api/v1/auth/login
// Access токен возвращается в теле, refresh токен - в HttpOnly cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			sendError(h.logger, w, "invalid email or password", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "login failed", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	AttachRefreshToken(w, h.cookie, result.RefreshToken)

	resp := api.LoginResponse{
		AccessToken: result.AccessToken.Value,
		ExpiresAt:   result.AccessToken.ExpiresAt,
		User:        toAPIUser(result.User),
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Logout обрабатывает POST /api/v1/auth/logout
// Только очищает cookie: хранилище не трогается, версия токенов не меняется.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearRefreshToken(w, h.cookie)
	sendJSON(h.logger, w, api.OKResponse{OK: true}, http.StatusOK)
}

// Me обрабатывает GET /api/v1/auth/me
// Мягкая проверка: при любом отказе возвращается {"user": null} со статусом 200.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := api.MeResponse{}

	token, err := ExtractBearerToken(r)
	if err != nil {
		h.logger.DebugContext(ctx, "me: no bearer token", slog.Any("error", err))
		sendJSON(h.logger, w, resp, http.StatusOK)
		return
	}

	if user, ok := h.service.Me(ctx, token); ok {
		u := toAPIUser(user)
		resp.User = &u
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Revoke обрабатывает POST /api/v1/auth/revoke
// Увеличивает версию токенов пользователя, все его refresh токены перестают действовать.
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RevokeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode revoke request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.UserID <= 0 {
		sendError(h.logger, w, "user_id must be positive", http.StatusBadRequest)
		return
	}

	if err := h.service.Revoke(ctx, req.UserID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.logger.WarnContext(ctx, "revoke: user not found", slog.Int64("user_id", req.UserID))
			sendJSON(h.logger, w, api.OKResponse{OK: false}, http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "revoke failed", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, api.OKResponse{OK: true}, http.StatusOK)
}

// RefreshToken обрабатывает POST /api/v1/auth/refresh_token
// Меняет refresh токен из cookie на новый access токен и новый refresh токен.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.service.Refresh(ctx, RefreshTokenFromRequest(r, h.cookie))
	if err != nil {
		sendJSON(h.logger, w, api.RefreshResponse{OK: false}, http.StatusUnauthorized)
		return
	}

	AttachRefreshToken(w, h.cookie, result.RefreshToken)

	resp := api.RefreshResponse{
		OK:          true,
		AccessToken: result.AccessToken.Value,
		ExpiresAt:   result.AccessToken.ExpiresAt,
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Bye обрабатывает GET /api/v1/bye
// Требует AuthMiddleware: id пользователя берется из контекста.
func (h *AuthHandler) Bye(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		sendError(h.logger, w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	sendJSON(h.logger, w, api.ByeResponse{Message: h.service.Bye(userID)}, http.StatusOK)
}

// Users обрабатывает GET /api/v1/users
func (h *AuthHandler) Users(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.service.Users(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list users", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.UsersResponse{Users: make([]api.User, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, toAPIUser(u))
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}
