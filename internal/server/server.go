// Package server собирает HTTP сервер авторизации из конфигурации:
// хранилище, сервис токенов, handlers, middleware и метрики.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/iudanet/tokenauth/internal/crypto"
	"github.com/iudanet/tokenauth/internal/server/config"
	"github.com/iudanet/tokenauth/internal/server/handlers"
	"github.com/iudanet/tokenauth/internal/server/jwt"
	"github.com/iudanet/tokenauth/internal/server/metrics"
	"github.com/iudanet/tokenauth/internal/server/middleware"
	"github.com/iudanet/tokenauth/internal/server/service"
	"github.com/iudanet/tokenauth/internal/server/storage"
	"github.com/iudanet/tokenauth/internal/server/storage/postgres"
	"github.com/iudanet/tokenauth/internal/server/storage/redis"
	"github.com/iudanet/tokenauth/internal/server/storage/sqlite"
	"github.com/iudanet/tokenauth/pkg/api"
)

// OpenStorage открывает хранилище пользователей выбранного драйвера.
// Для sqlite и postgres применяются миграции.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (storage.UserStorage, error) {
	var (
		store storage.UserStorage
		err   error
	)

	switch cfg.Driver {
	case config.DriverSQLite:
		store, err = sqlite.New(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		store, err = postgres.New(ctx, cfg.PostgresDSN)
	case config.DriverRedis:
		store, err = redis.New(ctx, &goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Driver, err)
	}

	return store, nil
}

// Server - HTTP сервер авторизации
type Server struct {
	logger     *slog.Logger
	store      storage.UserStorage
	metrics    *metrics.Metrics
	limiter    *middleware.RateLimiter
	httpServer *http.Server
	cfg        config.Config
}

// New создает сервер поверх открытого хранилища.
// Хранилище закрывается в Close.
func New(cfg config.Config, logger *slog.Logger, store storage.UserStorage, version string) (*Server, error) {
	tokens, err := jwt.NewService(jwt.Config{
		Issuer:        cfg.Auth.Issuer,
		AccessSecret:  []byte(cfg.Auth.AccessTokenSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshTokenSecret),
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	m := metrics.New()
	svc := service.NewAuthService(logger, store, tokens, crypto.NewBcryptHasher(cfg.Auth.BcryptCost), m)

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: m,
	}
	if cfg.RateLimit.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Window)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.routes(svc, tokens, version),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	return s, nil
}

func (s *Server) routes(svc *service.AuthService, tokens *jwt.Service, version string) http.Handler {
	authHandler := handlers.NewAuthHandler(s.logger, svc, handlers.CookieConfig{
		Name:   s.cfg.Auth.CookieName,
		Path:   s.cfg.Auth.CookiePath,
		Secure: s.cfg.Auth.CookieSecure,
	})
	healthHandler := handlers.NewHealthHandler(s.logger, s.store, version)

	requireAuth := middleware.AuthMiddleware(s.logger, tokens, s.metrics)

	var limited []middleware.Middleware
	if s.limiter != nil {
		limited = append(limited, middleware.RateLimitMiddleware(s.limiter, s.logger, s.metrics, s.cfg.RateLimit.TrustProxyHeaders))
	}

	mux := http.NewServeMux()
	handle := func(method, path string, h http.HandlerFunc, mws ...middleware.Middleware) {
		chain := append([]middleware.Middleware{middleware.MetricsMiddleware(s.metrics, path)}, mws...)
		mux.Handle(method+" "+path, middleware.Chain(h, chain...))
	}

	handle(http.MethodPost, api.PathRegister, authHandler.Register, limited...)
	handle(http.MethodPost, api.PathLogin, authHandler.Login, limited...)
	handle(http.MethodPost, api.PathLogout, authHandler.Logout)
	handle(http.MethodGet, api.PathMe, authHandler.Me)
	// TODO: закрыть revoke отдельной ролью администратора, когда появятся роли
	handle(http.MethodPost, api.PathRevoke, authHandler.Revoke)
	handle(http.MethodPost, api.PathRefreshToken, authHandler.RefreshToken, limited...)
	handle(http.MethodGet, api.PathBye, authHandler.Bye, requireAuth)
	handle(http.MethodGet, api.PathUsers, authHandler.Users, requireAuth)
	handle(http.MethodGet, api.PathHealth, healthHandler.Health)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return middleware.Chain(mux,
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger, api.PathHealth, "/metrics"),
	)
}

// Handler возвращает корневой HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run слушает cfg.HTTP.Addr до отмены ctx
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.HTTP.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает запросы на ln до отмены ctx, затем корректно
// завершает активные запросы в пределах cfg.HTTP.ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.InfoContext(ctx, "server started", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	// дожидаемся выхода горутины Serve
	<-errCh

	s.logger.Info("server stopped")
	return nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.HTTP.ShutdownTimeout > 0 {
		return s.cfg.HTTP.ShutdownTimeout
	}
	return 15 * time.Second
}

// Close останавливает rate limiter и закрывает хранилище
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.store.Close()
}
