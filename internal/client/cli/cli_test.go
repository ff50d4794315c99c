package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tokenauth/internal/client/iocli"
	"github.com/iudanet/tokenauth/internal/logging"
	"github.com/iudanet/tokenauth/internal/server"
	"github.com/iudanet/tokenauth/internal/server/config"
)

func startServer(t *testing.T) string {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.SQLitePath = ":memory:"
	cfg.Auth.AccessTokenSecret = "access-secret"
	cfg.Auth.RefreshTokenSecret = "refresh-secret"
	cfg.Auth.BcryptCost = 4
	cfg.RateLimit.Enabled = false

	store, err := server.OpenStorage(context.Background(), cfg.Storage)
	require.NoError(t, err)

	srv, err := server.New(cfg, logging.Discard(), store, "test")
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return ts.URL
}

// run выполняет команду клиента и возвращает вывод
func run(t *testing.T, serverURL, dbPath, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd(BuildInfo{Version: "test", BuildDate: "today", GitCommit: "abc"})
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", serverURL, "--db", dbPath}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd(BuildInfo{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	for _, sub := range []string{"register", "login", "logout", "me", "bye", "refresh", "revoke", "users", "status", "version"} {
		assert.Contains(t, out.String(), sub)
	}
	assert.Contains(t, out.String(), "--server")
	assert.Contains(t, out.String(), "--cookie-name")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "http://localhost:0", filepath.Join(t.TempDir(), "c.db"), "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    test")
	assert.Contains(t, out, "Git Commit: abc")
}

func TestCli_SessionLifecycle(t *testing.T) {
	url := startServer(t)
	db := filepath.Join(t.TempDir(), "client.db")

	out, err := run(t, url, db, "", "register", "--email", "A@X.com", "--password", "secret123")
	require.NoError(t, err)
	assert.Contains(t, out, "Registration successful")
	assert.Contains(t, out, "a@x.com")

	out, err = run(t, url, db, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Server: ok")
	assert.Contains(t, out, "Not authenticated")

	out, err = run(t, url, db, "", "me")
	require.NoError(t, err)
	assert.Contains(t, out, "Not authenticated")

	// email и пароль из stdin
	out, err = run(t, url, db, "a@x.com\nsecret123\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Login successful")
	assert.Contains(t, out, "User ID: 1")

	out, err = run(t, url, db, "", "me")
	require.NoError(t, err)
	assert.Contains(t, out, "Email: a@x.com")

	out, err = run(t, url, db, "", "bye")
	require.NoError(t, err)
	assert.Contains(t, out, "Your user id is: 1")

	out, err = run(t, url, db, "", "users")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 1 user(s)")

	out, err = run(t, url, db, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: Authenticated")

	out, err = run(t, url, db, "", "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "Tokens refreshed")

	out, err = run(t, url, db, "", "revoke", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "revoked")

	// refresh токен отозван, сессия удаляется
	_, err = run(t, url, db, "", "refresh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	out, err = run(t, url, db, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestCli_Logout(t *testing.T) {
	url := startServer(t)
	db := filepath.Join(t.TempDir(), "client.db")

	_, err := run(t, url, db, "", "register", "--email", "a@x.com", "--password", "secret123")
	require.NoError(t, err)
	_, err = run(t, url, db, "", "login", "--email", "a@x.com", "--password", "secret123")
	require.NoError(t, err)

	out, err := run(t, url, db, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = run(t, url, db, "", "bye")
	require.Error(t, err)
}

func TestCli_RegisterErrors(t *testing.T) {
	url := startServer(t)
	db := filepath.Join(t.TempDir(), "client.db")

	_, err := run(t, url, db, "", "register", "--email", "not-an-email", "--password", "secret123")
	require.Error(t, err)

	_, err = run(t, url, db, "a@x.com\nsecret123\nother123\n", "register")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passwords do not match")

	_, err = run(t, url, db, "a@x.com\nsecret123\nsecret123\n", "register")
	require.NoError(t, err)

	_, err = run(t, url, db, "", "register", "--email", "a@x.com", "--password", "secret123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration rejected")
}

func TestCli_LoginInvalidCredentials(t *testing.T) {
	url := startServer(t)
	db := filepath.Join(t.TempDir(), "client.db")

	_, err := run(t, url, db, "", "login", "--email", "a@x.com", "--password", "secret123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password")
}

func TestCli_RevokeErrors(t *testing.T) {
	url := startServer(t)
	db := filepath.Join(t.TempDir(), "client.db")

	_, err := run(t, url, db, "", "revoke", "abc")
	require.Error(t, err)

	_, err = run(t, url, db, "", "revoke", "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user 42 not found")
}

func TestGetPassword_FromEnvVar(t *testing.T) {
	t.Setenv(PasswordEnv, "env_password_123")
	c := &Cli{io: iocli.New(strings.NewReader(""), &bytes.Buffer{})}

	password, err := c.getPassword(Passwords{FromArgs: "args_password"}, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "env_password_123", password)
}

func TestGetPassword_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password.txt")
	require.NoError(t, os.WriteFile(path, []byte("file_password_456\n"), 0o600))
	c := &Cli{io: iocli.New(strings.NewReader(""), &bytes.Buffer{})}

	password, err := c.getPassword(Passwords{FromFile: path, FromArgs: "args_password"}, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "file_password_456", password)
}

func TestGetPassword_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o600))
	c := &Cli{io: iocli.New(strings.NewReader(""), &bytes.Buffer{})}

	_, err := c.getPassword(Passwords{FromFile: path}, "Password: ")
	assert.Error(t, err)
}

func TestGetPassword_FromArgsAndPrompt(t *testing.T) {
	c := &Cli{io: iocli.New(strings.NewReader("prompt_password\n"), &bytes.Buffer{})}

	password, err := c.getPassword(Passwords{FromArgs: "args_password"}, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "args_password", password)

	password, err = c.getPassword(Passwords{}, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "prompt_password", password)
}
