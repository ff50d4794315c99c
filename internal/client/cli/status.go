package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tokenauth/internal/client/auth"
)

func (c *Cli) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local session and server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.commandContext(cmd)
			defer cancel()
			return c.withService(ctx, c.runStatus)
		},
	}
}

func (c *Cli) runStatus(ctx context.Context, svc *auth.Service) error {
	c.io.Println("=== Authentication Status ===")
	c.io.Println()

	// состояние сервера не влияет на вывод сессии
	if health, err := c.apiClient().Health(ctx); err != nil {
		c.io.Printf("Server: unreachable (%v)\n", err)
	} else {
		c.io.Printf("Server: %s (version %s)\n", health.Status, health.Version)
	}

	session, err := svc.Session(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrNotLoggedIn) {
			c.io.Println("Status: Not authenticated")
			c.io.Println()
			c.io.Println("Run 'tokenauth login' to authenticate.")
			return nil
		}
		return err
	}

	now := time.Now()
	c.io.Println("Status: Authenticated")
	c.io.Printf("Email: %s\n", session.Email)
	c.io.Printf("User ID: %d\n", session.UserID)
	c.io.Printf("Access token expires: %s\n", session.AccessExpiresAt.Local().Format(time.RFC3339))

	if session.AccessValid(now) {
		c.io.Printf("Time remaining: %s\n", session.AccessExpiresAt.Sub(now).Round(time.Second))
	} else {
		c.io.Println("⚠️  Access token has expired, it will be refreshed on next request.")
	}

	if !session.RefreshExpiresAt.IsZero() {
		c.io.Printf("Refresh token expires: %s\n", session.RefreshExpiresAt.Local().Format(time.RFC3339))
	}
	if !session.RefreshValid(now) {
		c.io.Println("⚠️  Refresh token has expired. Please login again.")
	}

	return nil
}
