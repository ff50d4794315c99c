// Package cli реализует команды CLI клиента tokenauth.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tokenauth/internal/client/api"
	"github.com/iudanet/tokenauth/internal/client/auth"
	"github.com/iudanet/tokenauth/internal/client/iocli"
	"github.com/iudanet/tokenauth/internal/client/storage/boltdb"
)

// PasswordEnv - переменная окружения с паролем для неинтерактивного запуска
const PasswordEnv = "TOKENAUTH_PASSWORD"

// BuildInfo - версия клиента, проставляется через ldflags
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// Options - глобальные флаги клиента
type Options struct {
	ServerURL  string
	DBPath     string
	CookieName string
	Timeout    time.Duration
}

// Cli хранит общие зависимости команд
type Cli struct {
	io   iocli.IO
	opts Options
}

// Passwords - источники пароля в порядке убывания приоритета:
// переменная окружения, файл, флаг, интерактивный ввод.
type Passwords struct {
	FromFile string
	FromArgs string
}

// withService открывает локальное хранилище, создает сервис авторизации
// и закрывает хранилище после выполнения fn.
func (c *Cli) withService(ctx context.Context, fn func(ctx context.Context, svc *auth.Service) error) error {
	store, err := boltdb.New(ctx, c.opts.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open local storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	svc := auth.NewService(c.apiClient(), store)
	return fn(ctx, svc)
}

func (c *Cli) apiClient() *api.Client {
	return api.NewClient(c.opts.ServerURL, api.WithCookieName(c.opts.CookieName))
}

// getPassword возвращает пароль из первого непустого источника
func (c *Cli) getPassword(passwords Passwords, prompt string) (string, error) {
	if password := os.Getenv(PasswordEnv); password != "" {
		return password, nil
	}

	if passwords.FromFile != "" {
		data, err := os.ReadFile(passwords.FromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		password := strings.TrimSpace(string(data))
		if password == "" {
			return "", fmt.Errorf("password file is empty")
		}
		return password, nil
	}

	if passwords.FromArgs != "" {
		return passwords.FromArgs, nil
	}

	password, err := c.io.ReadPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// getEmail возвращает email из флага или запрашивает его
func (c *Cli) getEmail(fromArgs string) (string, error) {
	if fromArgs != "" {
		return fromArgs, nil
	}
	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return "", fmt.Errorf("failed to read email: %w", err)
	}
	return email, nil
}

// NewRootCmd создает корневую команду клиента
func NewRootCmd(info BuildInfo) *cobra.Command {
	c := &Cli{}

	cmd := &cobra.Command{
		Use:   "tokenauth",
		Short: "tokenauth - command line client for the tokenauth server",
		Long: `tokenauth logs in against a tokenauth server, keeps the session
(access and refresh tokens) in a local BoltDB file and refreshes the
access token automatically when it expires.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.io = iocli.New(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.opts.ServerURL, "server", "http://localhost:8080", "server URL")
	flags.StringVar(&c.opts.DBPath, "db", "tokenauth-client.db", "path to local session database")
	flags.StringVar(&c.opts.CookieName, "cookie-name", api.DefaultCookieName, "name of the refresh token cookie")
	flags.DurationVar(&c.opts.Timeout, "timeout", 30*time.Second, "request timeout")

	cmd.AddCommand(
		c.newRegisterCmd(),
		c.newLoginCmd(),
		c.newLogoutCmd(),
		c.newMeCmd(),
		c.newByeCmd(),
		c.newRefreshCmd(),
		c.newRevokeCmd(),
		c.newUsersCmd(),
		c.newStatusCmd(),
		newVersionCmd(info),
	)

	return cmd
}

// commandContext добавляет таймаут из флага --timeout
func (c *Cli) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if c.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.Timeout)
}

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "tokenauth client\n")
			_, _ = fmt.Fprintf(out, "Version:    %s\n", info.Version)
			_, _ = fmt.Fprintf(out, "Build Date: %s\n", info.BuildDate)
			_, _ = fmt.Fprintf(out, "Git Commit: %s\n", info.GitCommit)
		},
	}
}

func passwordFromEnv() bool {
	return os.Getenv(PasswordEnv) != ""
}
