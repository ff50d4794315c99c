// Package api - HTTP клиент сервера авторизации.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iudanet/tokenauth/pkg/api"
)

// DefaultCookieName имя cookie с refresh токеном по умолчанию
const DefaultCookieName = "jid"

var (
	// ErrRefreshRejected - сервер не принял refresh токен, нужен повторный вход
	ErrRefreshRejected = errors.New("refresh token rejected, please login again")

	// ErrUnauthenticated - access токен отсутствует, истек или отозван
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNoRefreshCookie - сервер не выставил cookie с refresh токеном
	ErrNoRefreshCookie = errors.New("server did not set refresh token cookie")
)

// StatusError - ответ сервера с кодом вне 2xx
type StatusError struct {
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// RefreshCookie - refresh токен, полученный из Set-Cookie
type RefreshCookie struct {
	ExpiresAt time.Time
	Value     string
}

// LoginResult - тело ответа login и refresh токен из cookie
type LoginResult struct {
	Refresh  RefreshCookie
	Response api.LoginResponse
}

// RefreshResult - новый access токен и новый refresh токен
type RefreshResult struct {
	ExpiresAt   time.Time
	Refresh     RefreshCookie
	AccessToken string
}

// Option настраивает Client
type Option func(*Client)

// WithCookieName задает имя cookie с refresh токеном
func WithCookieName(name string) Option {
	return func(c *Client) {
		c.cookieName = name
	}
}

// WithHTTPClient подменяет http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client представляет HTTP клиент для взаимодействия с сервером.
// Cookie jar не используется: refresh токен передается явно,
// потому что сервер помечает cookie как Secure.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cookieName string
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookieName: DefaultCookieName,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request описывает один HTTP вызов
type request struct {
	body       any
	result     any
	method     string
	path       string
	bearer     string
	refresh    string
	okStatuses []int
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (bool, error) {
	var resp api.OKResponse
	if _, err := c.doRequest(ctx, request{method: http.MethodPost, path: api.PathRegister, body: req, result: &resp}); err != nil {
		return false, fmt.Errorf("register request failed: %w", err)
	}
	return resp.OK, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*LoginResult, error) {
	var resp api.LoginResponse
	cookies, err := c.doRequest(ctx, request{method: http.MethodPost, path: api.PathLogin, body: req, result: &resp})
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}

	refresh, ok := c.refreshCookie(cookies)
	if !ok {
		return nil, ErrNoRefreshCookie
	}

	return &LoginResult{Response: resp, Refresh: refresh}, nil
}

// Logout просит сервер очистить cookie. Версия токенов не меняется.
func (c *Client) Logout(ctx context.Context) error {
	var resp api.OKResponse
	if _, err := c.doRequest(ctx, request{method: http.MethodPost, path: api.PathLogout, result: &resp}); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// Me возвращает текущего пользователя или nil, если токен не принят
func (c *Client) Me(ctx context.Context, accessToken string) (*api.User, error) {
	var resp api.MeResponse
	if _, err := c.doRequest(ctx, request{method: http.MethodGet, path: api.PathMe, bearer: accessToken, result: &resp}); err != nil {
		return nil, fmt.Errorf("me request failed: %w", err)
	}
	return resp.User, nil
}

// Revoke отзывает все refresh токены пользователя.
// false без ошибки - пользователь не найден.
func (c *Client) Revoke(ctx context.Context, userID int64) (bool, error) {
	var resp api.OKResponse
	_, err := c.doRequest(ctx, request{
		method:     http.MethodPost,
		path:       api.PathRevoke,
		body:       api.RevokeRequest{UserID: userID},
		result:     &resp,
		okStatuses: []int{http.StatusNotFound},
	})
	if err != nil {
		return false, fmt.Errorf("revoke request failed: %w", err)
	}
	return resp.OK, nil
}

// Refresh меняет refresh токен на новую пару токенов
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	var resp api.RefreshResponse
	cookies, err := c.doRequest(ctx, request{
		method:     http.MethodPost,
		path:       api.PathRefreshToken,
		refresh:    refreshToken,
		result:     &resp,
		okStatuses: []int{http.StatusUnauthorized},
	})
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}

	if !resp.OK || resp.AccessToken == "" {
		return nil, ErrRefreshRejected
	}

	refresh, ok := c.refreshCookie(cookies)
	if !ok {
		return nil, ErrNoRefreshCookie
	}

	return &RefreshResult{
		AccessToken: resp.AccessToken,
		ExpiresAt:   resp.ExpiresAt,
		Refresh:     refresh,
	}, nil
}

// Bye вызывает защищенный эндпоинт
func (c *Client) Bye(ctx context.Context, accessToken string) (string, error) {
	var resp api.ByeResponse
	if _, err := c.doRequest(ctx, request{method: http.MethodGet, path: api.PathBye, bearer: accessToken, result: &resp}); err != nil {
		return "", fmt.Errorf("bye request failed: %w", err)
	}
	return resp.Message, nil
}

// Users возвращает список пользователей
func (c *Client) Users(ctx context.Context, accessToken string) ([]api.User, error) {
	var resp api.UsersResponse
	if _, err := c.doRequest(ctx, request{method: http.MethodGet, path: api.PathUsers, bearer: accessToken, result: &resp}); err != nil {
		return nil, fmt.Errorf("users request failed: %w", err)
	}
	return resp.Users, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if _, err := c.doRequest(ctx, request{method: http.MethodGet, path: api.PathHealth, result: &resp}); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

func (c *Client) refreshCookie(cookies []*http.Cookie) (RefreshCookie, bool) {
	for _, cookie := range cookies {
		if cookie.Name != c.cookieName || cookie.Value == "" {
			continue
		}
		rc := RefreshCookie{Value: cookie.Value, ExpiresAt: cookie.Expires}
		if cookie.MaxAge > 0 {
			rc.ExpiresAt = time.Now().Add(time.Duration(cookie.MaxAge) * time.Second)
		}
		return rc, true
	}
	return RefreshCookie{}, false
}

// doRequest выполняет HTTP запрос и возвращает cookies ответа
func (c *Client) doRequest(ctx context.Context, r request) ([]*http.Cookie, error) {
	url := c.baseURL + r.path

	var bodyReader io.Reader
	if r.body != nil {
		jsonData, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}
	if r.refresh != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: r.refresh})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if !statusOK(resp.StatusCode, r.okStatuses) {
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthenticated
		}
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			statusErr.Message = errResp.Message
		}
		return nil, statusErr
	}

	if r.result != nil {
		if err := json.Unmarshal(respBody, r.result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.Cookies(), nil
}

func statusOK(code int, extra []int) bool {
	if code >= 200 && code < 300 {
		return true
	}
	for _, c := range extra {
		if c == code {
			return true
		}
	}
	return false
}
