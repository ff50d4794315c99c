// Package config загружает неизменяемую конфигурацию сервера.
//
// Источники значений (по возрастанию приоритета):
//  1. значения по умолчанию (Default);
//  2. YAML файл, если задан путь;
//  3. переменные окружения с префиксом TOKENAUTH_ ("__" разделяет уровни вложенности,
//     например TOKENAUTH_AUTH__ACCESS_TOKEN_SECRET);
//  4. явно переданные флаги командной строки.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "TOKENAUTH_"

// Поддерживаемые драйверы хранилища пользователей
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config корневая конфигурация сервера
type Config struct {
	Storage   StorageConfig   `koanf:"storage"`
	Auth      AuthConfig      `koanf:"auth"`
	Log       LogConfig       `koanf:"log"`
	HTTP      HTTPConfig      `koanf:"http"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// HTTPConfig сетевые настройки HTTP сервера
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AuthConfig параметры выпуска и проверки токенов
type AuthConfig struct {
	AccessTokenSecret  string        `koanf:"access_token_secret"`
	RefreshTokenSecret string        `koanf:"refresh_token_secret"`
	Issuer             string        `koanf:"issuer"`
	CookieName         string        `koanf:"cookie_name"`
	CookiePath         string        `koanf:"cookie_path"`
	AccessTokenTTL     time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `koanf:"refresh_token_ttl"`
	BcryptCost         int           `koanf:"bcrypt_cost"`
	CookieSecure       bool          `koanf:"cookie_secure"`
}

// StorageConfig выбор и настройки хранилища пользователей
type StorageConfig struct {
	Driver        string `koanf:"driver"`
	SQLitePath    string `koanf:"sqlite_path"`
	PostgresDSN   string `koanf:"postgres_dsn"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

// LogConfig настройки логирования
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RateLimitConfig ограничение частоты запросов к login/register/refresh
type RateLimitConfig struct {
	Window  time.Duration `koanf:"window"`
	Rate    int           `koanf:"rate"`
	Enabled bool          `koanf:"enabled"`
	// TrustProxyHeaders - брать IP клиента из X-Forwarded-For/X-Real-IP.
	// Включать только за прокси, который перезаписывает эти заголовки.
	TrustProxyHeaders bool `koanf:"trust_proxy_headers"`
}

// Default возвращает конфигурацию по умолчанию (без секретов)
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:          "tokenauth",
			CookieName:      "jid",
			CookiePath:      "/api/v1/auth/refresh_token",
			CookieSecure:    true,
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			BcryptCost:      12,
		},
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: "tokenauth.db",
			RedisAddr:  "localhost:6379",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    20,
			Window:  time.Minute,
		},
	}
}

// RegisterFlags регистрирует флаги, значения которых переопределяют остальные источники.
// Имена флагов совпадают с ключами конфигурации.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http.addr", d.HTTP.Addr, "HTTP listen address")
	fs.String("storage.driver", d.Storage.Driver, "user storage driver: sqlite, postgres or redis")
	fs.String("storage.sqlite_path", d.Storage.SQLitePath, "path to SQLite database file")
	fs.String("storage.postgres_dsn", d.Storage.PostgresDSN, "PostgreSQL connection string")
	fs.String("storage.redis_addr", d.Storage.RedisAddr, "Redis address host:port")
	fs.String("log.level", d.Log.Level, "log level: debug, info, warn, error")
	fs.String("log.format", d.Log.Format, "log format: text or json")
	fs.Bool("auth.cookie_secure", d.Auth.CookieSecure, "set Secure flag on refresh cookie")
	fs.Bool("rate_limit.trust_proxy_headers", d.RateLimit.TrustProxyHeaders, "key rate limit on X-Forwarded-For/X-Real-IP (only behind a trusted proxy)")
}

// Load собирает конфигурацию из всех источников и валидирует ее.
// path и fs могут быть пустыми.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load env: %w", err)
	}

	if fs != nil {
		// Передаем k, чтобы неизмененные флаги не затирали значения из файла и env
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// envKey переводит TOKENAUTH_AUTH__ACCESS_TOKEN_SECRET в auth.access_token_secret
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate проверяет согласованность конфигурации
func (c Config) Validate() error {
	var errs []error

	if c.Auth.AccessTokenSecret == "" {
		errs = append(errs, errors.New("auth.access_token_secret is required"))
	}
	if c.Auth.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("auth.refresh_token_secret is required"))
	}
	if c.Auth.AccessTokenSecret != "" && c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		errs = append(errs, errors.New("auth.access_token_secret and auth.refresh_token_secret must differ"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("auth.access_token_ttl must be positive"))
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("auth.refresh_token_ttl must be longer than auth.access_token_ttl"))
	}
	if c.Auth.CookieName == "" || !strings.HasPrefix(c.Auth.CookiePath, "/") {
		errs = append(errs, errors.New("auth.cookie_name and an absolute auth.cookie_path are required"))
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for sqlite driver"))
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for postgres driver"))
		}
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	if c.RateLimit.Enabled && (c.RateLimit.Rate <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate_limit.rate and rate_limit.window must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return nil
}
